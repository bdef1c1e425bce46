package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"SentiTrade/internal/domain/models"
	"SentiTrade/internal/scheduler"
	"SentiTrade/internal/service/ratelimit"
	"SentiTrade/internal/usecase"
	xhttp "SentiTrade/pkg/http"
	xlogger "SentiTrade/pkg/logger"

	"github.com/labstack/echo/v4"
)

// BotController is the scheduler as seen by the control surface.
type BotController interface {
	Start() error
	Stop(ctx context.Context) error
	Status() scheduler.Status
}

// HealthCheck probes one dependency.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// TradingHandler serves the control surface: health, insights, manual trades and bot control.
type TradingHandler struct {
	logger      *xlogger.Logger
	manual      *usecase.ManualTrader
	insights    *usecase.Insights
	bot         BotController
	limiter     *ratelimit.Limiter
	checks      []HealthCheck
	stopTimeout time.Duration
}

func NewTradingHandler(
	logger *xlogger.Logger,
	manual *usecase.ManualTrader,
	insights *usecase.Insights,
	bot BotController,
	limiter *ratelimit.Limiter,
	checks ...HealthCheck,
) *TradingHandler {
	return &TradingHandler{
		logger:      logger,
		manual:      manual,
		insights:    insights,
		bot:         bot,
		limiter:     limiter,
		checks:      checks,
		stopTimeout: 30 * time.Second,
	}
}

func (h *TradingHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)

	g := e.Group("/api")
	g.GET("/portfolio", h.Portfolio)
	g.GET("/sentiment/:symbol", h.Sentiment)
	g.GET("/sentiment/:symbol/observations", h.Observations)
	g.GET("/trades", h.Trades)
	g.POST("/trade", h.Trade)

	bot := g.Group("/bot")
	bot.POST("/start", h.StartBot)
	bot.POST("/stop", h.StopBot)
	bot.GET("/status", h.BotStatus)
}

type healthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components"`
	Timestamp  time.Time         `json:"timestamp"`
}

func (h *TradingHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	res := healthResponse{Status: "healthy", Components: make(map[string]string, len(h.checks)+1), Timestamp: time.Now().UTC()}
	for _, chk := range h.checks {
		if err := chk.Check(ctx); err != nil {
			res.Status = "degraded"
			res.Components[chk.Name] = "error: " + err.Error()
			continue
		}
		res.Components[chk.Name] = "ok"
	}
	if h.bot.Status().Running {
		res.Components["scheduler"] = "running"
	} else {
		res.Components["scheduler"] = "stopped"
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *TradingHandler) Portfolio(c echo.Context) error {
	positions, live, err := h.insights.Portfolio(c.Request().Context())
	if err != nil {
		h.logger.Error("portfolio fetch failed", xlogger.Error(err))
		return xhttp.ErrorResponse(c, mapError(err))
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"positions": positions,
		"live":      live,
	})
}

func (h *TradingHandler) Sentiment(c echo.Context) error {
	req := &models.SymbolRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.ValidationResponse(c, verr)
	}
	view, err := h.insights.Sentiment(c.Request().Context(), req.Symbol)
	if err != nil {
		h.logger.Error("sentiment aggregate failed", xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		return xhttp.ErrorResponse(c, mapError(err))
	}
	return xhttp.SuccessResponse(c, view)
}

func (h *TradingHandler) Observations(c echo.Context) error {
	req := &models.ObservationsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.ValidationResponse(c, verr)
	}
	obs, err := h.insights.Observations(c.Request().Context(), req.Symbol, req.Source, req.Limit)
	if err != nil {
		h.logger.Error("observations fetch failed", xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		return xhttp.ErrorResponse(c, mapError(err))
	}
	return xhttp.ListResponse(c, obs)
}

func (h *TradingHandler) Trades(c echo.Context) error {
	req := &models.TradesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.ValidationResponse(c, verr)
	}
	trades, err := h.insights.Trades(c.Request().Context(), req.Symbol, req.Limit)
	if err != nil {
		h.logger.Error("trade history failed", xlogger.Error(err))
		return xhttp.ErrorResponse(c, mapError(err))
	}
	return xhttp.ListResponse(c, trades)
}

func (h *TradingHandler) Trade(c echo.Context) error {
	if h.limiter != nil && !h.limiter.Allow(c.RealIP()) {
		return xhttp.ErrorResponse(c, xhttp.StatusError(http.StatusTooManyRequests, "too many manual trades, slow down"))
	}
	req := &models.ManualTradeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.ValidationResponse(c, verr)
	}

	trade, err := h.manual.Trade(c.Request().Context(), req)
	if err != nil {
		if trade != nil && errors.Is(err, models.ErrTradeNotRecorded) {
			h.logger.Error("manual trade executed but not recorded", xlogger.String("order_id", trade.BrokerOrderID), xlogger.Error(err))
			return xhttp.SuccessResponse(c, map[string]interface{}{
				"message":  "Trade executed but could not be recorded",
				"trade":    trade,
				"recorded": false,
			})
		}
		h.logger.Warn("manual trade failed",
			xlogger.String("symbol", req.Symbol),
			xlogger.String("side", req.Side),
			xlogger.Error(err))
		return xhttp.ErrorResponse(c, mapError(err))
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"message":  "Trade executed successfully",
		"trade":    trade,
		"recorded": true,
	})
}

func (h *TradingHandler) StartBot(c echo.Context) error {
	err := h.bot.Start()
	switch {
	case errors.Is(err, scheduler.ErrAlreadyRunning):
		return xhttp.SuccessResponse(c, map[string]string{"message": "Trading bot already running"})
	case err != nil:
		h.logger.Error("bot start failed", xlogger.Error(err))
		return xhttp.ErrorResponse(c, xhttp.InternalError("could not start trading bot").Wrap(err))
	}
	return xhttp.SuccessResponse(c, map[string]string{"message": "Trading bot started"})
}

func (h *TradingHandler) StopBot(c echo.Context) error {
	// stopping waits for the in-flight instrument; do not tie it to the client connection
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request().Context()), h.stopTimeout)
	defer cancel()
	err := h.bot.Stop(ctx)
	switch {
	case errors.Is(err, scheduler.ErrNotRunning):
		return xhttp.SuccessResponse(c, map[string]string{"message": "Trading bot not running"})
	case err != nil:
		h.logger.Error("bot stop failed", xlogger.Error(err))
		return xhttp.ErrorResponse(c, xhttp.InternalError("trading bot did not stop in time").Wrap(err))
	}
	return xhttp.SuccessResponse(c, map[string]string{"message": "Trading bot stopped"})
}

func (h *TradingHandler) BotStatus(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.bot.Status())
}

var errorStatuses = []struct {
	target error
	status int
	code   string
}{
	{models.ErrInvalidOrder, http.StatusBadRequest, "ERR_BAD_REQUEST"},
	{models.ErrNotFound, http.StatusNotFound, "ERR_NOT_FOUND"},
	{models.ErrInstrumentBusy, http.StatusConflict, "ERR_CONFLICT"},
	{models.ErrExceedsCap, http.StatusUnprocessableEntity, "ERR_EXCEEDS_CAP"},
	{models.ErrOrderRejected, http.StatusUnprocessableEntity, "ERR_ORDER_REJECTED"},
	{models.ErrBrokerUnavailable, http.StatusBadGateway, "ERR_BROKER_UNAVAILABLE"},
	{models.ErrPriceUnavailable, http.StatusServiceUnavailable, "ERR_PRICE_UNAVAILABLE"},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, "ERR_TIMEOUT"},
}

// mapError translates domain errors into HTTP errors; the first match wins.
func mapError(err error) *xhttp.AppError {
	var appErr *xhttp.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	for _, m := range errorStatuses {
		if errors.Is(err, m.target) {
			return xhttp.NewAppError(m.status, m.code, err.Error()).Wrap(err)
		}
	}
	return xhttp.InternalError(err.Error()).Wrap(err)
}
