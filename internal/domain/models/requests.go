package models

// Requests for the signal and workflow HTTP endpoints. Defined in domain for
// consistency and reuse.

type EvaluateSignalRequest struct {
	SymbolID   int64    `query:"symbol_id" json:"symbol_id" validate:"required,gt=0"`
	Ticker     string   `query:"ticker" json:"ticker" validate:"required"`
	Exchange   string   `query:"exchange" json:"exchange" validate:"required"`
	TF         string   `query:"tf" json:"tf" default:"1h" validate:"oneof=1m 5m 15m 30m 1h 4h"`
	Strategies []string `query:"strategies" json:"strategies"`
}

type EvaluateMultiTimeframeRequest struct {
	SymbolID   int64    `query:"symbol_id" json:"symbol_id" validate:"required,gt=0"`
	Ticker     string   `query:"ticker" json:"ticker" validate:"required"`
	Exchange   string   `query:"exchange" json:"exchange" validate:"required"`
	Strategies []string `query:"strategies" json:"strategies"`
}

type RegisterStrategyRequest struct {
	Kind          string             `json:"kind" validate:"required,oneof=sma rsi macd bollinger"`
	Name          string             `json:"name" validate:"required,min=2,max=64"`
	Description   string             `json:"description"`
	Version       string             `json:"version" default:"1.0"`
	Enabled       *bool              `json:"enabled"`
	Weight        float64            `json:"weight" default:"1.0" validate:"gt=0"`
	MinConfidence float64            `json:"min_confidence" validate:"gte=0,lte=1"`
	Params        map[string]float64 `json:"params"`
}

type UpdateAggregationRequest struct {
	Method              string             `json:"method" validate:"required,oneof=weighted_average majority_vote consensus confidence_weighted"`
	MinStrategies       int                `json:"min_strategies" default:"2" validate:"gte=1"`
	ConsensusThreshold  float64            `json:"consensus_threshold" default:"0.66" validate:"gt=0,lte=1"`
	ConfidenceThreshold float64            `json:"confidence_threshold" default:"0.5" validate:"gte=0,lte=1"`
	ConflictPenalty     float64            `json:"conflict_penalty" default:"0.3" validate:"gte=0,lt=1"`
	CustomWeights       map[string]float64 `json:"custom_weights"`
}

type ExecuteWorkflowRequest struct {
	Mode  string `query:"mode" json:"mode" default:"realtime" validate:"oneof=realtime backfill"`
	Async bool   `query:"async" json:"async"`
}

type RecentCandlesRequest struct {
	SymbolID int64  `query:"symbol_id" json:"symbol_id" validate:"required,gt=0"`
	TF       string `query:"tf" json:"tf" default:"1h" validate:"oneof=1m 5m 15m 30m 1h 4h"`
	Limit    int    `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=1000"`
	From     string `query:"from" json:"from"`
	To       string `query:"to" json:"to"`
}
