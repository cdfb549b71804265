package api

import (
	"errors"

	models "SignalFlow/internal/domain/models"
	domrepo "SignalFlow/internal/domain/repository"
	"SignalFlow/internal/strategy"
	"SignalFlow/internal/usecase"
	xhttp "SignalFlow/pkg/http"
	xlogger "SignalFlow/pkg/logger"

	"github.com/labstack/echo/v4"
)

// SignalsEchoHandler exposes signal evaluation and strategy administration.
type SignalsEchoHandler struct {
	logger  *xlogger.Logger
	signals *usecase.SignalService
}

func NewSignalsEchoHandler(logger *xlogger.Logger, signals *usecase.SignalService) *SignalsEchoHandler {
	return &SignalsEchoHandler{logger: logger, signals: signals}
}

func (h *SignalsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/signals/evaluate", h.Evaluate)
	g.GET("/signals/multi-timeframe", h.MultiTimeframe)
	g.GET("/strategies", h.ListStrategies)
	g.POST("/strategies", h.RegisterStrategy)
	g.DELETE("/strategies/:name", h.UnregisterStrategy)
	g.GET("/aggregation", h.AggregationInfo)
	g.PUT("/aggregation", h.UpdateAggregation)
}

func (h *SignalsEchoHandler) Evaluate(c echo.Context) error {
	req := &models.EvaluateSignalRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	symbol := models.SymbolRef{ID: req.SymbolID, Ticker: req.Ticker, Exchange: req.Exchange}
	tf := domrepo.NormalizeTimeframe(req.TF)

	res, err := h.signals.EvaluateSignal(c.Request().Context(), symbol, tf, req.Strategies...)
	if err != nil {
		h.logger.Error("evaluate usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *SignalsEchoHandler) MultiTimeframe(c echo.Context) error {
	req := &models.EvaluateMultiTimeframeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	symbol := models.SymbolRef{ID: req.SymbolID, Ticker: req.Ticker, Exchange: req.Exchange}

	res, err := h.signals.EvaluateMultiTimeframe(c.Request().Context(), symbol, nil, req.Strategies...)
	if err != nil {
		h.logger.Error("multi-timeframe usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *SignalsEchoHandler) ListStrategies(c echo.Context) error {
	rows := h.signals.ListStrategies()
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *SignalsEchoHandler) RegisterStrategy(c echo.Context) error {
	req := &models.RegisterStrategyRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	cfg, err := h.signals.RegisterStrategy(req)
	if errors.Is(err, strategy.ErrStrategyExists) {
		return xhttp.AppErrorResponse(c, xhttp.ConflictErrorf("strategy %s already registered", req.Name).WithError(err))
	}
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()).WithError(err))
	}
	return xhttp.CreatedResponse(c, cfg)
}

func (h *SignalsEchoHandler) UnregisterStrategy(c echo.Context) error {
	name := c.Param("name")
	err := h.signals.UnregisterStrategy(name)
	if errors.Is(err, strategy.ErrStrategyNotFound) {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("strategy %s not registered", name).WithError(err))
	}
	if err != nil {
		h.logger.Error("unregister strategy error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.NoContentResponse(c)
}

func (h *SignalsEchoHandler) AggregationInfo(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.signals.GetAggregationInfo())
}

func (h *SignalsEchoHandler) UpdateAggregation(c echo.Context) error {
	req := &models.UpdateAggregationRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	cfg, err := h.signals.UpdateAggregationConfig(req)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()).WithError(err))
	}
	return xhttp.SuccessResponse(c, cfg)
}
