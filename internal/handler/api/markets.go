package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"SniperBot/internal/domain/models"
	"SniperBot/internal/repository"
	"SniperBot/internal/service/metrics"
	"SniperBot/internal/service/ratelimit"
	"SniperBot/internal/usecase"
	xhttp "SniperBot/pkg/http"
	xlogger "SniperBot/pkg/logger"
)

// Markets is the registry surface the display API drives.
type Markets interface {
	Mode() string
	Statuses() []models.MarketStatus
	Board(feed models.FeedID) (models.Board, error)
	Activate(ctx context.Context, feed models.FeedID) (*usecase.FeedSession, error)
	Deactivate(feed models.FeedID) error
	Select(ctx context.Context, feed models.FeedID) (*usecase.FeedSession, error)
}

type AlertLookup interface {
	Last(ctx context.Context, feed models.FeedID) (models.AlertEvent, error)
}

type BoardStream interface {
	Subscribe(feed models.FeedID) *usecase.BoardSubscriber
}

// MarketsHandler serves the board display and feed controls.
type MarketsHandler struct {
	logger   *xlogger.Logger
	markets  Markets
	alerts   AlertLookup
	stream   BoardStream
	metrics  *metrics.APIMetrics
	rl       *ratelimit.Limiter
	upgrader websocket.Upgrader

	pingInterval time.Duration
}

func NewMarketsHandler(logger *xlogger.Logger, markets Markets, alerts AlertLookup, stream BoardStream, m *metrics.APIMetrics, rl *ratelimit.Limiter) *MarketsHandler {
	return &MarketsHandler{
		logger:  logger,
		markets: markets,
		alerts:  alerts,
		stream:  stream,
		metrics: m,
		rl:      rl,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		pingInterval: 30 * time.Second,
	}
}

func (h *MarketsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/markets")
	g.GET("", h.List)
	g.GET("/:feed/board", h.Board)
	g.GET("/:feed/alert", h.LastAlert)

	g.POST("/:feed/select", h.Select, h.limitControl)
	g.POST("/:feed/activate", h.Activate, h.limitControl)
	g.POST("/:feed/deactivate", h.Deactivate, h.limitControl)

	e.GET("/ws/markets/:feed", h.Stream)
}

func (h *MarketsHandler) observe(endpoint string, start time.Time) {
	h.metrics.Latency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

func (h *MarketsHandler) fail(c echo.Context, endpoint string, err error) error {
	appErr := toAppError(err)
	h.metrics.Errors.WithLabelValues(endpoint, appErr.Code).Inc()
	if appErr.Status >= 500 {
		h.logger.Error("markets handler error", xlogger.String("endpoint", endpoint), xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}

// limitControl throttles feed control requests per client IP.
func (h *MarketsHandler) limitControl(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if h.rl != nil && !h.rl.Allow(c.RealIP()) {
			h.logger.Warn("feed control rate limited", xlogger.String("remote", c.RealIP()))
			return h.fail(c, "control", xhttp.TooManyRequestsError("too many feed changes, slow down"))
		}
		return next(c)
	}
}

func (h *MarketsHandler) List(c echo.Context) error {
	defer h.observe("list", time.Now())
	return xhttp.SuccessResponse(c, models.MarketsResponse{
		Mode:    h.markets.Mode(),
		Markets: h.markets.Statuses(),
	})
}

func (h *MarketsHandler) Board(c echo.Context) error {
	defer h.observe("board", time.Now())
	req := &models.BoardRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	b, err := h.markets.Board(models.FeedID(req.Feed))
	if err != nil {
		return h.fail(c, "board", err)
	}
	if req.Order == models.OrderOldest {
		b = b.Oldest()
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return xhttp.SuccessResponse(c, b)
}

func (h *MarketsHandler) LastAlert(c echo.Context) error {
	defer h.observe("alert", time.Now())
	req := &models.FeedRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	ev, err := h.alerts.Last(c.Request().Context(), models.FeedID(req.Feed))
	if err != nil {
		return h.fail(c, "alert", err)
	}
	return xhttp.SuccessResponse(c, ev)
}

func (h *MarketsHandler) Select(c echo.Context) error {
	return h.control(c, "select", func(ctx context.Context, feed models.FeedID) error {
		_, err := h.markets.Select(ctx, feed)
		return err
	})
}

func (h *MarketsHandler) Activate(c echo.Context) error {
	return h.control(c, "activate", func(ctx context.Context, feed models.FeedID) error {
		_, err := h.markets.Activate(ctx, feed)
		return err
	})
}

func (h *MarketsHandler) Deactivate(c echo.Context) error {
	return h.control(c, "deactivate", func(_ context.Context, feed models.FeedID) error {
		return h.markets.Deactivate(feed)
	})
}

// control runs a feed change and answers with the new market list.
func (h *MarketsHandler) control(c echo.Context, action string, fn func(context.Context, models.FeedID) error) error {
	defer h.observe(action, time.Now())
	req := &models.FeedRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	if err := fn(c.Request().Context(), models.FeedID(req.Feed)); err != nil {
		return h.fail(c, action, err)
	}
	h.metrics.Switches.WithLabelValues(action).Inc()
	h.logger.Info("feed control", xlogger.String("action", action), xlogger.String("feed", req.Feed))
	return xhttp.SuccessResponse(c, models.MarketsResponse{
		Mode:    h.markets.Mode(),
		Markets: h.markets.Statuses(),
	})
}

func toAppError(err error) *xhttp.AppError {
	var appErr *xhttp.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, usecase.ErrUnknownFeed):
		return xhttp.NewAppError("ERR_UNKNOWN_FEED", "feed", "feed is not tracked", http.StatusNotFound).WithError(err)
	case errors.Is(err, usecase.ErrFeedInactive):
		return xhttp.ConflictError("ERR_FEED_INACTIVE", "feed is not active").WithError(err)
	case errors.Is(err, usecase.ErrSingleFeedMode), errors.Is(err, usecase.ErrMultiFeedMode):
		return xhttp.ConflictError("ERR_FEED_MODE", err.Error()).WithError(err)
	case errors.Is(err, repository.ErrNoAlert):
		return xhttp.NewAppError("ERR_NO_ALERT", "", "no alert recorded for feed", http.StatusNotFound).WithError(err)
	default:
		return xhttp.InternalError("internal error").WithError(err)
	}
}
