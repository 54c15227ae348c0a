package api

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"SearchInsight/internal/domain/models"
	domrepo "SearchInsight/internal/domain/repository"
	"SearchInsight/internal/service/metrics"
	"SearchInsight/internal/service/ratelimit"
	"SearchInsight/internal/service/searchconsole"
	"SearchInsight/internal/usecase"
	xhttp "SearchInsight/pkg/http"
	xlogger "SearchInsight/pkg/logger"

	"github.com/labstack/echo/v4"
)

// RateLimit is the per-client token bucket applied to every API route.
type RateLimit struct {
	Capacity  float64
	PerSecond float64
}

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

type InsightsHandler struct {
	logger *xlogger.Logger
	svc    *usecase.InsightService
	rl     *ratelimit.Limiter
	limit  RateLimit
	checks map[string]HealthCheck
}

func NewInsightsHandler(logger *xlogger.Logger, svc *usecase.InsightService, rl *ratelimit.Limiter, limit RateLimit) *InsightsHandler {
	metrics.Register()
	if logger == nil {
		logger = xlogger.Nop()
	}
	if rl == nil {
		rl = ratelimit.New()
	}
	return &InsightsHandler{
		logger: logger.Component("api"),
		svc:    svc,
		rl:     rl,
		limit:  limit,
		checks: make(map[string]HealthCheck),
	}
}

// AddHealthCheck registers a dependency check reported by /healthz.
func (h *InsightsHandler) AddHealthCheck(name string, check HealthCheck) {
	h.checks[name] = check
}

func (h *InsightsHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api")
	g.GET("/insights", h.instrument("insights", h.Insights))
	g.GET("/opportunities", h.instrument("opportunities", h.Opportunities))
	g.GET("/trends", h.instrument("trends", h.Trend))
	g.GET("/ctr", h.instrument("ctr", h.CTR))
	g.POST("/classify", h.instrument("classify", h.Classify))
	g.POST("/analyze", h.instrument("analyze", h.Analyze))
	g.DELETE("/cache", h.instrument("cache", h.InvalidateCache))
}

// instrument applies the per-client limit and records endpoint metrics.
func (h *InsightsHandler) instrument(endpoint string, next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		defer func() {
			metrics.EndpointLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		}()

		if h.limit.Capacity > 0 && !h.rl.Allow(c.RealIP()+":"+endpoint, h.limit.Capacity, h.limit.PerSecond) {
			h.logger.Warn("rate limited",
				xlogger.String("endpoint", endpoint),
				xlogger.String("remote", c.RealIP()))
			metrics.EndpointErrors.WithLabelValues(endpoint).Inc()
			return xhttp.TooManyRequestsResponse(c)
		}

		err := next(c)
		if c.Response().Status >= http.StatusBadRequest {
			metrics.EndpointErrors.WithLabelValues(endpoint).Inc()
		}
		return err
	}
}

func (h *InsightsHandler) Insights(c echo.Context) error {
	req := &models.InsightRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.svc.Report(c.Request().Context(), usecase.InsightParams{
		Site:      req.Site,
		Start:     req.Start,
		End:       req.End,
		Limit:     req.Limit,
		TrendKeys: req.TrendKeys,
		Top:       req.Top,
		Publish:   req.Publish,
	})
	if err != nil {
		h.logger.Error("insights usecase error", xlogger.String("site", req.Site), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=300")
	return xhttp.SuccessResponse(c, res)
}

func (h *InsightsHandler) Opportunities(c echo.Context) error {
	req := &models.OpportunityRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.svc.Opportunities(c.Request().Context(), usecase.OpportunityParams{
		Site:  req.Site,
		Start: req.Start,
		End:   req.End,
		Limit: req.Limit,
		Top:   req.Top,
	})
	if err != nil {
		h.logger.Error("opportunities usecase error", xlogger.String("site", req.Site), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.ListResponse(c, res, int64(len(res)))
}

func (h *InsightsHandler) Trend(c echo.Context) error {
	req := &models.TrendRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.svc.Trend(c.Request().Context(), usecase.TrendParams{
		Site:      req.Site,
		Dimension: domrepo.NormalizeDimension(req.Dimension),
		Key:       req.Key,
		Metric:    domrepo.NormalizeMetric(req.Metric),
		Start:     req.Start,
		End:       req.End,
	})
	if err != nil {
		h.logger.Error("trend usecase error", xlogger.String("key", req.Key), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *InsightsHandler) CTR(c echo.Context) error {
	req := &models.CTRRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return xhttp.SuccessResponse(c, h.svc.CTR(req.Position, req.CTR))
}

func (h *InsightsHandler) Classify(c echo.Context) error {
	req := &models.ClassifyRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return xhttp.SuccessResponse(c, h.svc.Classify(req.Queries))
}

func (h *InsightsHandler) Analyze(c echo.Context) error {
	req := &models.AnalyzeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	recs := h.svc.AnalyzeRows(*req)
	return xhttp.ListResponse(c, recs, int64(len(recs)))
}

func (h *InsightsHandler) InvalidateCache(c echo.Context) error {
	req := &models.CacheInvalidateRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.svc.InvalidateCache(c.Request().Context(), req.Site); err != nil {
		h.logger.Error("cache invalidate error", xlogger.String("site", req.Site), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("cache invalidation failed").WithError(err))
	}
	return xhttp.SuccessResponse(c, map[string]string{"site": req.Site, "status": "invalidated"})
}

type healthStatus struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (h *InsightsHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	res := healthStatus{Status: "ok"}
	if len(names) > 0 {
		res.Checks = make(map[string]string, len(names))
	}
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			res.Status = "degraded"
			res.Checks[name] = err.Error()
			continue
		}
		res.Checks[name] = "ok"
	}
	if res.Status != "ok" {
		return xhttp.DataResponse(c, http.StatusServiceUnavailable, res)
	}
	return xhttp.SuccessResponse(c, res)
}

// toAppError maps use case failures onto API errors.
func toAppError(err error) *xhttp.AppError {
	var appErr *xhttp.AppError
	var se *xhttp.StatusError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, searchconsole.ErrNoCredentials), errors.Is(err, domrepo.ErrNotConfigured):
		return xhttp.UnavailableError("search console is not configured").WithError(err)
	case errors.As(err, &se):
		return xhttp.BadGatewayError("search console request failed").
			WithParam("upstreamStatus", se.StatusCode).
			WithError(err)
	case errors.Is(err, context.DeadlineExceeded):
		return xhttp.NewAppError("ERR_TIMEOUT", "", "analysis timed out", http.StatusGatewayTimeout).WithError(err)
	default:
		return xhttp.InternalError("analysis failed").WithError(err)
	}
}
