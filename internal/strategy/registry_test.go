package strategy

import (
	"errors"
	"testing"
)

func defaultSet(t *testing.T) []Strategy {
	t.Helper()
	set, err := Defaults(&kindSource{})
	if err != nil {
		t.Fatalf("defaults: %v", err)
	}
	return set
}

func seededRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	for _, s := range defaultSet(t) {
		if err := r.Register(s); err != nil {
			t.Fatalf("register %s: %v", s.Name(), err)
		}
	}
	return r
}

func TestRegistryRejectsDuplicate(t *testing.T) {
	r := seededRegistry(t)
	s, _ := NewSMACrossover(Config{Name: "sma", Enabled: true, Weight: 1}, &kindSource{})
	if err := r.Register(s); !errors.Is(err, ErrStrategyExists) {
		t.Fatalf("expected ErrStrategyExists, got %v", err)
	}
}

func TestRegistryUnregister(t *testing.T) {
	r := seededRegistry(t)
	if err := r.Unregister("rsi"); err != nil {
		t.Fatalf("unregister: %v", err)
	}
	if _, ok := r.Get("rsi"); ok {
		t.Fatal("rsi still resolvable after unregister")
	}
	if err := r.Unregister("rsi"); !errors.Is(err, ErrStrategyNotFound) {
		t.Fatalf("expected ErrStrategyNotFound, got %v", err)
	}
}

func TestRegistryListSorted(t *testing.T) {
	r := seededRegistry(t)
	want := []string{"bollinger", "macd", "rsi", "sma"}
	got := r.List()
	if len(got) != len(want) {
		t.Fatalf("expected %d strategies, got %d", len(want), len(got))
	}
	for i, s := range got {
		if s.Name() != want[i] {
			t.Fatalf("position %d: expected %s, got %s", i, want[i], s.Name())
		}
	}
}

func TestRegistrySnapshotFiltersAndSkipsDisabled(t *testing.T) {
	r := seededRegistry(t)
	disabled, _ := NewRSI(Config{Name: "rsi-off", Enabled: false, Weight: 1}, &kindSource{})
	if err := r.Register(disabled); err != nil {
		t.Fatalf("register disabled: %v", err)
	}

	snap := r.Snapshot("sma", "rsi-off", "ghost")
	if len(snap) != 1 || snap[0].Name() != "sma" {
		t.Fatalf("unexpected snapshot %v", snap)
	}

	// no names means every enabled strategy
	if got := r.Snapshot(); len(got) != 4 {
		t.Fatalf("expected 4 active strategies, got %d", len(got))
	}
}

func TestRegistrySnapshotIsStable(t *testing.T) {
	r := seededRegistry(t)
	snap := r.Snapshot()
	if err := r.Unregister("macd"); err != nil {
		t.Fatalf("unregister: %v", err)
	}
	if len(snap) != 4 {
		t.Fatal("snapshot changed after registry mutation")
	}
}

func TestRegistryProfiles(t *testing.T) {
	r := seededRegistry(t)
	profiles := r.Profiles()
	p, ok := profiles["macd"]
	if !ok {
		t.Fatal("missing macd profile")
	}
	if !approx(p.Weight, 1.2) || !approx(p.MinConfidence, 0.3) {
		t.Fatalf("unexpected macd profile %+v", p)
	}
}
