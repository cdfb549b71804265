package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"SignalFlow/internal/domain/models"
	domrepo "SignalFlow/internal/domain/repository"
	pkgch "SignalFlow/pkg/clickhouse"
	applogger "SignalFlow/pkg/logger"
)

// CHMarketStore implements IndicatorSource and CandleSource backed by
// ClickHouse. Indicator rows are written by the resampling pipeline; this
// store only reads.
type CHMarketStore struct {
	db *sql.DB
	l  *applogger.Logger
}

func NewCHMarketStore(ch *pkgch.Client) *CHMarketStore {
	return &CHMarketStore{db: ch.DB()}
}

// SetLogger injects a structured logger.
func (s *CHMarketStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHMarketStore) GetLatestIndicator(ctx context.Context, symbolID int64, tf domrepo.Timeframe, kind string) (models.IndicatorValue, error) {
	start := time.Now()
	const q = `
        SELECT symbol_id, tf, kind, ts, price,
               fast, slow, macd, macd_signal, macd_hist,
               rsi, upper_band, middle_band, lower_band
        FROM signalflow.indicators
        WHERE symbol_id = ? AND tf = ? AND kind = ?
        ORDER BY ts DESC
        LIMIT 1
    `
	var iv models.IndicatorValue
	row := s.db.QueryRowContext(ctx, q, symbolID, string(tf), kind)
	err := row.Scan(&iv.SymbolID, &iv.Timeframe, &iv.Kind, &iv.Timestamp, &iv.Price,
		&iv.Fast, &iv.Slow, &iv.MACD, &iv.MACDSignal, &iv.MACDHist,
		&iv.RSI, &iv.UpperBand, &iv.MiddleBand, &iv.LowerBand)
	if errors.Is(err, sql.ErrNoRows) {
		return models.IndicatorValue{}, fmt.Errorf("indicator %s %s/%d: %w", kind, tf, symbolID, domrepo.ErrDataUnavailable)
	}
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse latest_indicator query error",
				applogger.Int64("symbol_id", symbolID),
				applogger.String("tf", string(tf)),
				applogger.String("kind", kind),
				applogger.Error(err),
			)
		}
		return models.IndicatorValue{}, fmt.Errorf("get latest indicator: %w", err)
	}
	if s.l != nil {
		s.l.Debug("clickhouse latest_indicator ok",
			applogger.Int64("symbol_id", symbolID),
			applogger.String("tf", string(tf)),
			applogger.String("kind", kind),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return iv, nil
}

func (s *CHMarketStore) GetRecentCandles(ctx context.Context, symbolID int64, tf domrepo.Timeframe, limit int) ([]models.Candle, error) {
	start := time.Now()
	if limit <= 0 {
		limit = 100
	}
	const q = `
        SELECT bucket, symbol_id, tf, open, high, low, close, vol
        FROM signalflow.candles
        WHERE symbol_id = ? AND tf = ?
        ORDER BY bucket DESC
        LIMIT ?
    `
	rows, err := s.db.QueryContext(ctx, q, symbolID, string(tf), limit)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse recent_candles query error",
				applogger.Int64("symbol_id", symbolID),
				applogger.String("tf", string(tf)),
				applogger.Int("limit", limit),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("get recent candles: %w", err)
	}
	defer rows.Close()

	tmp := make([]models.Candle, 0, limit)
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Bucket, &c.SymbolID, &c.Timeframe, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		tmp = append(tmp, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	// reverse to ASC, oldest first
	for i, j := 0, len(tmp)-1; i < j; i, j = i+1, j-1 {
		tmp[i], tmp[j] = tmp[j], tmp[i]
	}
	if s.l != nil {
		s.l.Debug("clickhouse recent_candles ok",
			applogger.Int64("symbol_id", symbolID),
			applogger.String("tf", string(tf)),
			applogger.Int("rows", len(tmp)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return tmp, nil
}

func (s *CHMarketStore) GetCandlesRange(ctx context.Context, symbolID int64, tf domrepo.Timeframe, from, to time.Time) ([]models.Candle, error) {
	const q = `
        SELECT bucket, symbol_id, tf, open, high, low, close, vol
        FROM signalflow.candles
        WHERE symbol_id = ? AND tf = ? AND bucket >= ? AND bucket < ?
        ORDER BY bucket ASC
    `
	rows, err := s.db.QueryContext(ctx, q, symbolID, string(tf), from, to)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse candles_range query error",
				applogger.Int64("symbol_id", symbolID),
				applogger.String("tf", string(tf)),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("get candles range: %w", err)
	}
	defer rows.Close()

	out := make([]models.Candle, 0, 64)
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Bucket, &c.SymbolID, &c.Timeframe, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}
