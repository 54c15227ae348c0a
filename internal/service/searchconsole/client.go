// Package searchconsole is a rate-limited, cached client for the Search
// Console searchAnalytics API.
package searchconsole

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"SearchInsight/internal/domain/models"
	"SearchInsight/internal/domain/repository"
	"SearchInsight/internal/service/metrics"
	"SearchInsight/internal/service/ratelimit"
	"SearchInsight/pkg/cache"
	xhttp "SearchInsight/pkg/http"
	applogger "SearchInsight/pkg/logger"
)

// MaxRowLimit is the largest page the API returns.
const MaxRowLimit = 25000

const limiterKey = "searchconsole"

type Config struct {
	BaseURL       string
	Timeout       time.Duration
	MaxRetries    int
	RowLimit      int
	SearchType    string
	CacheTTL      time.Duration
	RateCapacity  float64
	RatePerSecond float64
}

// Client implements repository.SearchAnalytics.
type Client struct {
	cfg     Config
	http    *xhttp.Client
	limiter *ratelimit.Limiter
	cache   cache.Service
	metrics repository.Metrics
	log     *applogger.Logger
	backoff time.Duration
}

// New builds a client. hc carries authentication (see CredentialSource);
// limiter, store and rec may be nil.
func New(cfg Config, hc *http.Client, limiter *ratelimit.Limiter, store cache.Service, rec repository.Metrics, l *applogger.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://www.googleapis.com"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.RowLimit <= 0 || cfg.RowLimit > MaxRowLimit {
		cfg.RowLimit = MaxRowLimit
	}
	if cfg.SearchType == "" {
		cfg.SearchType = "web"
	}
	if cfg.RateCapacity < 1 {
		cfg.RateCapacity = 1
	}
	if l == nil {
		l = applogger.Nop()
	}
	opts := []xhttp.ClientOption{xhttp.WithTimeout(cfg.Timeout)}
	if hc != nil {
		opts = append(opts, xhttp.WithHTTPClient(hc))
	}
	return &Client{
		cfg:     cfg,
		http:    xhttp.NewClient(opts...),
		limiter: limiter,
		cache:   store,
		metrics: rec,
		log:     l.Component("searchconsole"),
		backoff: 250 * time.Millisecond,
	}
}

type apiFilter struct {
	Dimension  string `json:"dimension"`
	Operator   string `json:"operator"`
	Expression string `json:"expression"`
}

type apiFilterGroup struct {
	GroupType string      `json:"groupType"`
	Filters   []apiFilter `json:"filters"`
}

type apiRequest struct {
	StartDate             string           `json:"startDate"`
	EndDate               string           `json:"endDate"`
	Dimensions            []string         `json:"dimensions,omitempty"`
	Type                  string           `json:"type,omitempty"`
	DimensionFilterGroups []apiFilterGroup `json:"dimensionFilterGroups,omitempty"`
	RowLimit              int              `json:"rowLimit"`
	StartRow              int              `json:"startRow"`
}

type apiRow struct {
	Keys        []string `json:"keys"`
	Clicks      float64  `json:"clicks"`
	Impressions float64  `json:"impressions"`
	CTR         float64  `json:"ctr"`
	Position    float64  `json:"position"`
}

type apiResponse struct {
	Rows []apiRow `json:"rows"`
}

type siteEntry struct {
	SiteURL         string `json:"siteUrl"`
	PermissionLevel string `json:"permissionLevel"`
}

type sitesResponse struct {
	SiteEntry []siteEntry `json:"siteEntry"`
}

// Query returns every row for q, paging until a short page or q.RowLimit
// rows. Results are cached per site and query shape.
func (c *Client) Query(ctx context.Context, q models.AnalyticsQuery) ([]models.PerformanceRow, error) {
	if q.SiteURL == "" {
		return nil, fmt.Errorf("searchconsole: site is required")
	}
	if q.StartDate == "" || q.EndDate == "" {
		return nil, fmt.Errorf("searchconsole: start and end dates are required")
	}
	if q.SearchType == "" {
		q.SearchType = c.cfg.SearchType
	}

	start := time.Now()
	rows, hit, err := cache.GetOrLoad(ctx, c.cache, CacheKey(q), c.cfg.CacheTTL, func(ctx context.Context) ([]models.PerformanceRow, error) {
		return c.fetchAll(ctx, q)
	})
	if c.cache != nil {
		if hit {
			metrics.CacheLookups.WithLabelValues("hit").Inc()
		} else {
			metrics.CacheLookups.WithLabelValues("miss").Inc()
		}
	}
	if err != nil {
		c.recordError()
		return nil, err
	}

	if c.metrics != nil {
		c.metrics.RecordLatency("searchconsole_query", time.Since(start).Seconds())
		if !hit {
			c.metrics.RecordRowsFetched(q.SiteURL, len(rows))
		}
	}
	c.log.Debug("query done",
		applogger.String("site", q.SiteURL),
		applogger.Strings("dimensions", q.Dimensions),
		applogger.Int("rows", len(rows)),
		applogger.Bool("cached", hit),
	)
	return rows, nil
}

func (c *Client) fetchAll(ctx context.Context, q models.AnalyticsQuery) ([]models.PerformanceRow, error) {
	endpoint := fmt.Sprintf("%s/webmasters/v3/sites/%s/searchAnalytics/query", c.cfg.BaseURL, url.PathEscape(q.SiteURL))
	req := apiRequest{
		StartDate:  q.StartDate,
		EndDate:    q.EndDate,
		Dimensions: q.Dimensions,
		Type:       q.SearchType,
	}
	if len(q.Filters) > 0 {
		g := apiFilterGroup{GroupType: "and"}
		for _, f := range q.Filters {
			op := f.Operator
			if op == "" {
				op = "equals"
			}
			g.Filters = append(g.Filters, apiFilter{Dimension: f.Dimension, Operator: op, Expression: f.Expression})
		}
		req.DimensionFilterGroups = []apiFilterGroup{g}
	}

	var out []models.PerformanceRow
	for {
		pageSize := c.cfg.RowLimit
		if q.RowLimit > 0 && q.RowLimit-len(out) < pageSize {
			pageSize = q.RowLimit - len(out)
		}
		req.RowLimit = pageSize
		req.StartRow = len(out)

		var resp apiResponse
		if err := c.do(ctx, "query", &xhttp.RequestOptions{
			Method: xhttp.MethodPost,
			URL:    endpoint,
			Body:   req,
		}, &resp); err != nil {
			return nil, fmt.Errorf("searchanalytics query %s: %w", q.SiteURL, err)
		}

		for _, r := range resp.Rows {
			out = append(out, toRow(q.Dimensions, r))
		}
		if len(resp.Rows) < pageSize || (q.RowLimit > 0 && len(out) >= q.RowLimit) {
			break
		}
	}
	if out == nil {
		out = []models.PerformanceRow{}
	}
	return out, nil
}

// Sites lists properties the credentials can read.
func (c *Client) Sites(ctx context.Context) ([]string, error) {
	var resp sitesResponse
	if err := c.do(ctx, "sites", &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.cfg.BaseURL + "/webmasters/v3/sites",
	}, &resp); err != nil {
		c.recordError()
		return nil, fmt.Errorf("list sites: %w", err)
	}
	sites := make([]string, 0, len(resp.SiteEntry))
	for _, s := range resp.SiteEntry {
		if s.PermissionLevel == "siteUnverifiedUser" {
			continue
		}
		sites = append(sites, s.SiteURL)
	}
	return sites, nil
}

// Invalidate drops every cached response for site.
func (c *Client) Invalidate(ctx context.Context, site string) error {
	if c.cache == nil {
		return nil
	}
	if err := c.cache.DeleteByPattern(ctx, cache.BuildPattern(SitePrefix(site))); err != nil {
		return fmt.Errorf("invalidate %s: %w", site, err)
	}
	c.log.Info("cache invalidated", applogger.String("site", site))
	return nil
}

// do waits on the shared limiter before every attempt and retries
// throttling and server errors with linear backoff.
func (c *Client) do(ctx context.Context, op string, opts *xhttp.RequestOptions, dest interface{}) error {
	attempts := c.cfg.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 1; i <= attempts; i++ {
		if c.limiter != nil {
			if werr := c.limiter.Wait(ctx, limiterKey, c.cfg.RateCapacity, c.cfg.RatePerSecond); werr != nil {
				return fmt.Errorf("rate limit: %w", werr)
			}
		}
		err = c.http.SendAndParse(ctx, opts, dest)
		if err == nil {
			metrics.UpstreamRequests.WithLabelValues(op, "ok").Inc()
			return nil
		}
		if !xhttp.IsTemporary(err) || i == attempts {
			metrics.UpstreamRequests.WithLabelValues(op, "error").Inc()
			return err
		}
		metrics.UpstreamRequests.WithLabelValues(op, "retry").Inc()
		c.log.Warn("retrying upstream request",
			applogger.String("op", op),
			applogger.Int("attempt", i),
			applogger.Error(err),
		)
		select {
		case <-time.After(time.Duration(i) * c.backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (c *Client) recordError() {
	if c.metrics != nil {
		c.metrics.RecordError("searchconsole")
	}
}

func toRow(dims []string, r apiRow) models.PerformanceRow {
	row := models.PerformanceRow{
		Clicks:      r.Clicks,
		Impressions: r.Impressions,
		CTR:         r.CTR,
		Position:    r.Position,
	}
	for i, d := range dims {
		if i >= len(r.Keys) {
			break
		}
		switch d {
		case "query":
			row.Query = r.Keys[i]
		case "page":
			row.Page = r.Keys[i]
		case "date":
			row.Date = r.Keys[i]
		case "device":
			row.Device = r.Keys[i]
		case "country":
			row.Country = r.Keys[i]
		}
	}
	return row
}

// SitePrefix is the cache key prefix shared by all responses for site.
func SitePrefix(site string) string {
	return "gsc:" + cache.HashKey(site) + ":"
}

// CacheKey identifies a query by site plus a hash of its shape.
func CacheKey(q models.AnalyticsQuery) string {
	b, _ := json.Marshal(q)
	return SitePrefix(q.SiteURL) + cache.HashKey(string(b))
}
