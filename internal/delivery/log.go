package delivery

import (
	"context"

	"SignalFlow/internal/domain/models"
	applogger "SignalFlow/pkg/logger"
)

// LogSink writes final signals into the structured log. Always configured
// and used as the fallback channel.
type LogSink struct {
	logger *applogger.Logger
}

func NewLogSink(log *applogger.Logger) *LogSink {
	return &LogSink{logger: log}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Send(_ context.Context, payload interface{}) error {
	switch p := payload.(type) {
	case *models.AggregatedSignal:
		s.logger.Info("signal",
			applogger.String("ticker", p.Symbol.Ticker),
			applogger.String("tf", p.Timeframe),
			applogger.String("direction", string(p.Direction)),
			applogger.Any("strength", p.Strength),
			applogger.Any("confidence", p.Confidence))
	case *models.MultiTimeframeSignal:
		s.logger.Info("multi-timeframe signal",
			applogger.String("ticker", p.Symbol.Ticker),
			applogger.String("direction", string(p.Direction)),
			applogger.Any("buy_ratio", p.BuyRatio),
			applogger.Any("sell_ratio", p.SellRatio),
			applogger.Any("confidence", p.Confidence))
	default:
		s.logger.Info("signal", applogger.Any("payload", payload))
	}
	return nil
}
