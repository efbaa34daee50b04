package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	models "RegimeLab/internal/domain/models"
	mid "RegimeLab/internal/middleware"
	icache "RegimeLab/internal/service/cache"
	"RegimeLab/internal/service/metrics"
	"RegimeLab/internal/service/ratelimit"
	"RegimeLab/internal/usecase"
	xhttp "RegimeLab/pkg/http"
	xlogger "RegimeLab/pkg/logger"
	"RegimeLab/pkg/util"

	"github.com/labstack/echo/v4"
)

// HealthCheck probes one infrastructure dependency.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// RegimesEchoHandler serves the latest detection over Echo.
type RegimesEchoHandler struct {
	logger  *xlogger.Logger
	results *usecase.Results
	guard   *mid.RunGuard
	cache   icache.BytesCache
	rl      *ratelimit.Limiter
	checks  []HealthCheck
}

func NewRegimesEchoHandler(logger *xlogger.Logger, results *usecase.Results, guard *mid.RunGuard) *RegimesEchoHandler {
	metrics.Register()
	return &RegimesEchoHandler{
		logger:  logger,
		results: results,
		guard:   guard,
		rl:      ratelimit.New(),
	}
}

// SetCache enables response caching for read endpoints.
func (h *RegimesEchoHandler) SetCache(c icache.BytesCache) { h.cache = c }

// AddHealthCheck registers a dependency probe for /api/health.
func (h *RegimesEchoHandler) AddHealthCheck(name string, check func(ctx context.Context) error) {
	h.checks = append(h.checks, HealthCheck{Name: name, Check: check})
}

func (h *RegimesEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/regimes", h.Regimes)
	g.GET("/summary", h.Summary)
	g.GET("/transitions", h.Transitions)
	g.GET("/strategy", h.Strategy)
	g.POST("/runs", h.Runs)
	g.GET("/health", h.Health)
}

func (h *RegimesEchoHandler) Regimes(c echo.Context) error {
	start := time.Now()
	endpoint := "regimes"
	defer func() { metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.RegimesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.allow(c, endpoint, 5, 2) {
		return h.rateLimited(c, endpoint)
	}

	key := "regimes:" + req.From + ":" + req.To + ":" + req.Order
	if b, ok := h.cached(endpoint, key, req.Limit); ok {
		return c.JSONBlob(http.StatusOK, b)
	}

	var from, to time.Time
	if req.From != "" {
		from, _ = util.ParseISODate(req.From)
	}
	if req.To != "" {
		to, _ = util.ParseISODate(req.To)
	}

	points := h.results.Points(from, to, req.Limit, req.Order)
	if points == nil && h.results.Detection() == nil {
		return h.notReady(c, endpoint)
	}

	return h.respond(c, endpoint, key, req.Limit, map[string]interface{}{
		"rows":  points,
		"total": len(points),
	})
}

func (h *RegimesEchoHandler) Summary(c echo.Context) error {
	start := time.Now()
	endpoint := "summary"
	defer func() { metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	if !h.allow(c, endpoint, 5, 2) {
		return h.rateLimited(c, endpoint)
	}
	if b, ok := h.cached(endpoint, "summary", 0); ok {
		return c.JSONBlob(http.StatusOK, b)
	}

	d := h.results.Detection()
	if d == nil {
		return h.notReady(c, endpoint)
	}

	return h.respond(c, endpoint, "summary", 0, map[string]interface{}{
		"symbol":    d.Symbol,
		"fitted_at": d.FittedAt,
		"model":     d.Model,
		"scaler":    d.Scaler,
		"summaries": d.Summaries,
	})
}

func (h *RegimesEchoHandler) Transitions(c echo.Context) error {
	start := time.Now()
	endpoint := "transitions"
	defer func() { metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	if !h.allow(c, endpoint, 5, 2) {
		return h.rateLimited(c, endpoint)
	}
	if b, ok := h.cached(endpoint, "transitions", 0); ok {
		return c.JSONBlob(http.StatusOK, b)
	}

	tm := h.results.Transitions()
	if tm == nil {
		return h.notReady(c, endpoint)
	}
	return h.respond(c, endpoint, "transitions", 0, tm)
}

func (h *RegimesEchoHandler) Strategy(c echo.Context) error {
	start := time.Now()
	endpoint := "strategy"
	defer func() { metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	if !h.allow(c, endpoint, 5, 2) {
		return h.rateLimited(c, endpoint)
	}
	if b, ok := h.cached(endpoint, "strategy", 0); ok {
		return c.JSONBlob(http.StatusOK, b)
	}

	sr := h.results.Strategy()
	if sr == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("strategy report not available"))
	}
	return h.respond(c, endpoint, "strategy", 0, sr)
}

func (h *RegimesEchoHandler) Runs(c echo.Context) error {
	start := time.Now()
	endpoint := "runs"
	defer func() { metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.RunRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.allow(c, endpoint, 2, 0.5) {
		return h.rateLimited(c, endpoint)
	}

	acc, err := h.guard.Submit(c.Request().Context(), *req)
	if err != nil {
		metrics.APIErrors.WithLabelValues(endpoint).Inc()
		if h.logger != nil {
			h.logger.Error("run submit error", xlogger.Error(err))
		}
		return statusResponse(c, http.StatusServiceUnavailable, acc)
	}
	if acc.Status == "throttled" {
		return statusResponse(c, http.StatusTooManyRequests, acc)
	}
	return statusResponse(c, http.StatusAccepted, acc)
}

func (h *RegimesEchoHandler) Health(c echo.Context) error {
	ctx := c.Request().Context()
	status := http.StatusOK
	out := map[string]string{}

	for _, hc := range h.checks {
		probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := hc.Check(probeCtx); err != nil {
			out[hc.Name] = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			out[hc.Name] = "ok"
		}
		cancel()
	}

	detection := "none"
	if h.results.Detection() != nil {
		detection = "ready"
	}

	return statusResponse(c, status, map[string]interface{}{
		"checks":    out,
		"detection": detection,
	})
}

// statusResponse writes the envelope at its real HTTP status. Run submission
// and health need the wire status, not just the envelope one.
func statusResponse(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, xhttp.APIResponse{
		Status:  status,
		Message: http.StatusText(status),
		Data:    data,
	})
}

// allow applies the per-client, per-endpoint rate limit.
func (h *RegimesEchoHandler) allow(c echo.Context, endpoint string, capacity, refill float64) bool {
	return h.rl.Allow(c.RealIP()+":"+endpoint, capacity, refill)
}

func (h *RegimesEchoHandler) rateLimited(c echo.Context, endpoint string) error {
	if h.logger != nil {
		h.logger.Warn("api rate_limited",
			xlogger.String("endpoint", endpoint),
			xlogger.String("remote", c.RealIP()),
		)
	}
	return statusResponse(c, http.StatusTooManyRequests, "rate limited")
}

func (h *RegimesEchoHandler) notReady(c echo.Context, endpoint string) error {
	if h.logger != nil {
		h.logger.Debug("api no detection yet", xlogger.String("endpoint", endpoint))
	}
	return xhttp.AppErrorResponse(c, xhttp.NotFoundError("no detection available yet"))
}

// cached returns the cached response envelope, keyed by endpoint query shape.
// Limited queries are not cached; each limit would need its own entry.
func (h *RegimesEchoHandler) cached(endpoint, key string, limit int) ([]byte, bool) {
	if h.cache == nil || limit > 0 {
		return nil, false
	}
	b, ok, err := h.cache.GetBytes(key)
	if err != nil {
		if h.logger != nil {
			h.logger.Warn("api cache_get_error",
				xlogger.String("endpoint", endpoint),
				xlogger.Error(err),
			)
		}
		return nil, false
	}
	if ok && h.logger != nil {
		h.logger.Debug("api cache_hit", xlogger.String("key", key))
	}
	return b, ok
}

// respond marshals the standard envelope, caches it, and writes it out.
func (h *RegimesEchoHandler) respond(c echo.Context, endpoint, key string, limit int, data interface{}) error {
	b, err := json.Marshal(xhttp.APIResponse{
		Status:  http.StatusOK,
		Message: http.StatusText(http.StatusOK),
		Data:    data,
	})
	if err != nil {
		metrics.APIErrors.WithLabelValues(endpoint).Inc()
		if h.logger != nil {
			h.logger.Error("api marshal_error",
				xlogger.String("endpoint", endpoint),
				xlogger.Error(err),
			)
		}
		return xhttp.InternalServerErrorResponse(c)
	}
	if h.cache != nil && limit == 0 {
		if err := h.cache.SetBytes(key, b, 30*time.Second); err != nil && h.logger != nil {
			h.logger.Warn("api cache_set_error",
				xlogger.String("endpoint", endpoint),
				xlogger.Error(err),
			)
		}
	}
	return c.JSONBlob(http.StatusOK, b)
}
