package repository

import (
	"context"
	"errors"
	"time"

	"SignalFlow/internal/domain/models"
)

// ErrDataUnavailable marks a strategy/indicator read that could not obtain
// enough history. Callers exclude the affected candidate from aggregation;
// they never abort the surrounding evaluation for it.
var ErrDataUnavailable = errors.New("market data unavailable")

// IndicatorSource supplies the latest computed indicator value for a
// symbol/timeframe. Supplied by the excluded data/resampling layer.
type IndicatorSource interface {
	GetLatestIndicator(ctx context.Context, symbolID int64, tf Timeframe, kind string) (models.IndicatorValue, error)
}

// CandleSource supplies closed candles, oldest first.
type CandleSource interface {
	GetRecentCandles(ctx context.Context, symbolID int64, tf Timeframe, limit int) ([]models.Candle, error)
	GetCandlesRange(ctx context.Context, symbolID int64, tf Timeframe, from, to time.Time) ([]models.Candle, error)
}

// Deliverer hands a final signal payload to a named delivery channel.
// Fire-and-forget from the executor's point of view.
type Deliverer interface {
	Deliver(ctx context.Context, channel string, payload interface{}) error
}

// WorkflowStore loads and persists workflow graph records.
type WorkflowStore interface {
	GetWorkflow(ctx context.Context, id string) (*models.Workflow, error)
	SaveWorkflow(ctx context.Context, wf *models.Workflow) error
	ListWorkflows(ctx context.Context) ([]models.Workflow, error)
}

// RunStore persists workflow run records. Append on start, replace on the
// terminal transition; no partial updates.
type RunStore interface {
	AppendRun(ctx context.Context, run *models.WorkflowRun) error
	ReplaceRun(ctx context.Context, run *models.WorkflowRun) error
	ListRuns(ctx context.Context, workflowID string, limit int) ([]models.WorkflowRun, error)
	LatestRun(ctx context.Context, workflowID string) (*models.WorkflowRun, error)
}

// Metrics records operational counters and timings.
type Metrics interface {
	RecordEvaluation(strategy, outcome string)
	RecordAggregation(method string, direction, reason string)
	RecordRun(status string, seconds float64)
	RecordNodeError(kind string)
	RecordDelivery(channel, result string)
	RecordSourceLatency(op string, seconds float64)
}
