package repository

import "testing"

func TestNormalizeTimeframe(t *testing.T) {
	if got := NormalizeTimeframe("5m"); got != TF5m {
		t.Fatalf("expected 5m, got %s", got)
	}
	if got := NormalizeTimeframe(""); got != DefaultTimeframe() {
		t.Fatalf("expected default, got %s", got)
	}
	if got := NormalizeTimeframe("2w"); got != DefaultTimeframe() {
		t.Fatalf("expected default for unknown, got %s", got)
	}
}

func TestOrderedTimeframesValid(t *testing.T) {
	order := OrderedTimeframes()
	if len(order) == 0 {
		t.Fatalf("expected non-empty order")
	}
	weights := DefaultTimeframeWeights()
	prev := 0.0
	for _, tf := range order {
		if !IsValidTimeframe(tf) {
			t.Fatalf("timeframe %s not valid", tf)
		}
		w, ok := weights[tf]
		if !ok {
			t.Fatalf("timeframe %s has no weight", tf)
		}
		if w <= prev {
			t.Fatalf("weights must increase with timeframe, got %f after %f", w, prev)
		}
		prev = w
	}
}
