package models

import "time"

// Candle represents one OHLCV record.
type Candle struct {
	Bucket    time.Time `json:"bucket"`
	SymbolID  int64     `json:"symbol_id"`
	Timeframe string    `json:"timeframe"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// IndicatorValue is the latest computed reading of one indicator kind for a
// symbol/timeframe, as supplied by the indicator source adapter. Only the
// fields of the reported kind are populated.
type IndicatorValue struct {
	SymbolID  int64     `json:"symbol_id"`
	Timeframe string    `json:"timeframe"`
	Kind      string    `json:"kind"` // sma, macd, rsi, bollinger
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"` // close at computation time

	// Moving averages (kind=sma)
	Fast float64 `json:"fast,omitempty"`
	Slow float64 `json:"slow,omitempty"`

	// MACD components (kind=macd)
	MACD       float64 `json:"macd,omitempty"`
	MACDSignal float64 `json:"macd_signal,omitempty"`
	MACDHist   float64 `json:"macd_hist,omitempty"`

	// RSI (kind=rsi)
	RSI float64 `json:"rsi,omitempty"`

	// Bollinger bands (kind=bollinger)
	UpperBand  float64 `json:"upper_band,omitempty"`
	MiddleBand float64 `json:"middle_band,omitempty"`
	LowerBand  float64 `json:"lower_band,omitempty"`
}
