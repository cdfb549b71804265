package api

import (
	"time"

	models "SignalFlow/internal/domain/models"
	domrepo "SignalFlow/internal/domain/repository"
	xhttp "SignalFlow/pkg/http"
	xlogger "SignalFlow/pkg/logger"
	"SignalFlow/pkg/util"

	"github.com/labstack/echo/v4"
)

// MarketEchoHandler serves raw market data reads used by chart frontends.
type MarketEchoHandler struct {
	logger  *xlogger.Logger
	candles domrepo.CandleSource
}

func NewMarketEchoHandler(logger *xlogger.Logger, candles domrepo.CandleSource) *MarketEchoHandler {
	return &MarketEchoHandler{logger: logger, candles: candles}
}

func (h *MarketEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/market/candles", h.RecentCandles)
}

func (h *MarketEchoHandler) RecentCandles(c echo.Context) error {
	req := &models.RecentCandlesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	tf := domrepo.NormalizeTimeframe(req.TF)
	ctx := c.Request().Context()

	var rows []models.Candle
	var err error
	if req.From != "" || req.To != "" {
		now := time.Now().UTC()
		from := util.ParseTimeDefault(req.From, now.Add(-24*time.Hour))
		to := util.ParseTimeDefault(req.To, now)
		from, to = util.AlignFromTo(from, to, string(tf))
		rows, err = h.candles.GetCandlesRange(ctx, req.SymbolID, tf, from, to)
	} else {
		rows, err = h.candles.GetRecentCandles(ctx, req.SymbolID, tf, req.Limit)
	}
	if err != nil {
		h.logger.Error("candles read error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}
