package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"SearchInsight/internal/domain/models"
	"SearchInsight/internal/service/ratelimit"
	"SearchInsight/internal/service/searchconsole"
	"SearchInsight/internal/services/benchmark"
	"SearchInsight/internal/services/intent"
	"SearchInsight/internal/services/opportunity"
	"SearchInsight/internal/services/recommend"
	"SearchInsight/internal/services/trend"
	"SearchInsight/internal/usecase"
	xhttp "SearchInsight/pkg/http"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	rows        []models.PerformanceRow
	err         error
	invalidated []string
}

func (s *stubSource) Query(context.Context, models.AnalyticsQuery) ([]models.PerformanceRow, error) {
	return s.rows, s.err
}
func (s *stubSource) Sites(context.Context) ([]string, error) { return nil, nil }
func (s *stubSource) Invalidate(_ context.Context, site string) error {
	s.invalidated = append(s.invalidated, site)
	return nil
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestServer(src *stubSource, limit RateLimit) (*echo.Echo, *InsightsHandler) {
	engine := usecase.Engine{
		CTR:     benchmark.NewModel(),
		Trends:  trend.NewDetector(),
		Intents: intent.NewClassifier(),
		Scorer:  opportunity.NewScorer(),
		Recs:    recommend.NewEngine(),
	}
	svc := usecase.NewInsightService(src, nil, nil, nil, engine, usecase.InsightConfig{}, nil)
	h := NewInsightsHandler(nil, svc, ratelimit.New(), limit)
	e := echo.New()
	h.RegisterRoutes(e)
	return e, h
}

func do(t *testing.T, e *echo.Echo, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func sampleRows() []models.PerformanceRow {
	return []models.PerformanceRow{
		{Query: "buy running shoes", Page: "https://example.com/shoes", Clicks: 10, Impressions: 1000, CTR: 0.01, Position: 2},
		{Query: "how to clean suede shoes", Page: "https://example.com/clean", Clicks: 5, Impressions: 500, CTR: 0.01, Position: 6},
	}
}

func TestInsights(t *testing.T) {
	e, _ := newTestServer(&stubSource{rows: sampleRows()}, RateLimit{})

	rec, env := do(t, e, http.MethodGet, "/api/insights?site=sc-domain:example.com&start=2024-01-01&end=2024-01-28&trend_keys=0", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var rep models.InsightReport
	require.NoError(t, json.Unmarshal(env.Data, &rep))
	assert.Equal(t, "sc-domain:example.com", rep.Site)
	assert.Equal(t, "2024-01-01", rep.StartDate)
	assert.Equal(t, 2, rep.Totals.Rows)
	assert.NotEmpty(t, rep.Recommendations)
	assert.Equal(t, "private, max-age=300", rec.Header().Get(echo.HeaderCacheControl))
}

func TestInsights_Validation(t *testing.T) {
	e, _ := newTestServer(&stubSource{}, RateLimit{})

	rec, env := do(t, e, http.MethodGet, "/api/insights", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var verrs []xhttp.ValidationError
	require.NoError(t, json.Unmarshal(env.Data, &verrs))
	require.NotEmpty(t, verrs)
	assert.Equal(t, "site", verrs[0].Field)

	rec, _ = do(t, e, http.MethodGet, "/api/insights?site=x&start=01/02/2024", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInsights_ErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"upstream", fmt.Errorf("fetch rows: %w", &xhttp.StatusError{StatusCode: 503}), http.StatusBadGateway, "ERR_UPSTREAM"},
		{"credentials", fmt.Errorf("client: %w", searchconsole.ErrNoCredentials), http.StatusServiceUnavailable, "ERR_UNAVAILABLE"},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout, "ERR_TIMEOUT"},
		{"other", errors.New("boom"), http.StatusInternalServerError, "ERR_INTERNAL"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e, _ := newTestServer(&stubSource{err: tc.err}, RateLimit{})
			rec, env := do(t, e, http.MethodGet, "/api/opportunities?site=x", "")
			assert.Equal(t, tc.status, rec.Code)

			var errs []xhttp.AppError
			require.NoError(t, json.Unmarshal(env.Data, &errs))
			require.Len(t, errs, 1)
			assert.Equal(t, tc.code, errs[0].Code)
		})
	}
}

func TestOpportunities(t *testing.T) {
	e, _ := newTestServer(&stubSource{rows: sampleRows()}, RateLimit{})

	rec, env := do(t, e, http.MethodGet, "/api/opportunities?site=x&top=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Rows  []models.ScoredOpportunity `json:"rows"`
		Total int64                      `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list.Rows, 1)
	assert.EqualValues(t, 1, list.Total)
}

func TestTrend(t *testing.T) {
	src := &stubSource{rows: []models.PerformanceRow{
		{Date: "2024-01-01", Clicks: 1, Impressions: 10},
		{Date: "2024-01-02", Clicks: 2, Impressions: 10},
		{Date: "2024-01-03", Clicks: 3, Impressions: 10},
		{Date: "2024-01-04", Clicks: 4, Impressions: 10},
	}}
	e, _ := newTestServer(src, RateLimit{})

	rec, env := do(t, e, http.MethodGet, "/api/trends?site=x&key=running+shoes&start=2024-01-01&end=2024-01-04", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var st models.SeriesTrend
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.Equal(t, "running shoes", st.Key)
	assert.Equal(t, "query", st.Dimension)
	assert.Equal(t, "clicks", st.Metric)
	assert.Equal(t, models.DirectionRising, st.Trend.Direction)

	rec, _ = do(t, e, http.MethodGet, "/api/trends?site=x&key=k&dimension=device", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCTR(t *testing.T) {
	e, _ := newTestServer(&stubSource{}, RateLimit{})

	rec, env := do(t, e, http.MethodGet, "/api/ctr?position=1&ctr=0.3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var ca models.CtrAnalysis
	require.NoError(t, json.Unmarshal(env.Data, &ca))
	assert.Equal(t, 1.0, ca.Position)
	assert.Greater(t, ca.ExpectedCTR, 0.0)

	rec, _ = do(t, e, http.MethodGet, "/api/ctr?ctr=0.3", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = do(t, e, http.MethodGet, "/api/ctr?position=2&ctr=1.5", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClassify(t *testing.T) {
	e, _ := newTestServer(&stubSource{}, RateLimit{})

	rec, env := do(t, e, http.MethodPost, "/api/classify", `{"queries":["buy shoes","login example"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var cl models.Classification
	require.NoError(t, json.Unmarshal(env.Data, &cl))
	require.Len(t, cl.Queries, 2)
	assert.Equal(t, models.IntentTransactional, cl.Queries[0].Intent)
	assert.Equal(t, models.IntentNavigational, cl.Queries[1].Intent)

	rec, _ = do(t, e, http.MethodPost, "/api/classify", `{"queries":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = do(t, e, http.MethodPost, "/api/classify", `{"queries":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyze(t *testing.T) {
	e, _ := newTestServer(&stubSource{}, RateLimit{})

	body := `{"rows":[{"query":"buy running shoes","page":"https://example.com/shoes","clicks":10,"impressions":1000,"ctr":0.01,"position":2}]}`
	rec, env := do(t, e, http.MethodPost, "/api/analyze", body)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Rows []models.Recommendation `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.NotEmpty(t, list.Rows)
	assert.Equal(t, models.RecTitleOptimization, list.Rows[0].Type)

	rec, _ = do(t, e, http.MethodPost, "/api/analyze", `{"rows":[{"query":"q","clicks":-1}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInvalidateCache(t *testing.T) {
	src := &stubSource{}
	e, _ := newTestServer(src, RateLimit{})

	rec, _ := do(t, e, http.MethodDelete, "/api/cache?site=sc-domain:example.com", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"sc-domain:example.com"}, src.invalidated)

	rec, _ = do(t, e, http.MethodDelete, "/api/cache", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRateLimit(t *testing.T) {
	e, _ := newTestServer(&stubSource{}, RateLimit{Capacity: 1, PerSecond: 0.001})

	rec, _ := do(t, e, http.MethodGet, "/api/ctr?position=1&ctr=0.3", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = do(t, e, http.MethodGet, "/api/ctr?position=1&ctr=0.3", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// buckets are per endpoint
	rec, _ = do(t, e, http.MethodPost, "/api/classify", `{"queries":["q"]}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealth(t *testing.T) {
	e, h := newTestServer(&stubSource{}, RateLimit{})

	rec, _ := do(t, e, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	h.AddHealthCheck("clickhouse", func(context.Context) error { return errors.New("connection refused") })
	h.AddHealthCheck("cache", func(context.Context) error { return nil })
	rec, env := do(t, e, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var hs healthStatus
	require.NoError(t, json.Unmarshal(env.Data, &hs))
	assert.Equal(t, "degraded", hs.Status)
	assert.Equal(t, "connection refused", hs.Checks["clickhouse"])
	assert.Equal(t, "ok", hs.Checks["cache"])
}
