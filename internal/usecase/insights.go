package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"SearchInsight/internal/domain/models"
	domrepo "SearchInsight/internal/domain/repository"
	domsvc "SearchInsight/internal/domain/service"
	"SearchInsight/internal/services/features"
	"SearchInsight/internal/services/opportunity"
	applogger "SearchInsight/pkg/logger"
	"SearchInsight/pkg/util"

	"golang.org/x/sync/errgroup"
)

// Engine bundles the analysis components the insight use case runs.
type Engine struct {
	CTR     domsvc.CTRBenchmark
	Trends  domsvc.TrendDetector
	Intents domsvc.IntentClassifier
	Scorer  domsvc.OpportunityScorer
	Recs    domsvc.RecommendationEngine
}

type InsightConfig struct {
	LookbackDays int
	LagDays      int
	TrendKeys    int
	Workers      int
	Timeout      time.Duration
}

// InsightService fetches Search Console rows and runs them through the
// analysis engine. store and pub are optional.
type InsightService struct {
	source  domrepo.SearchAnalytics
	store   domrepo.PerformanceStore
	pub     domrepo.Publisher
	metrics domrepo.Metrics
	engine  Engine
	cfg     InsightConfig
	now     func() time.Time
	l       *applogger.Logger
}

func NewInsightService(source domrepo.SearchAnalytics, store domrepo.PerformanceStore, pub domrepo.Publisher, metrics domrepo.Metrics, engine Engine, cfg InsightConfig, l *applogger.Logger) *InsightService {
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = 28
	}
	if cfg.LagDays < 0 {
		cfg.LagDays = 0
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Minute
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &InsightService{
		source:  source,
		store:   store,
		pub:     pub,
		metrics: metrics,
		engine:  engine,
		cfg:     cfg,
		now:     time.Now,
		l:       l.Component("insights"),
	}
}

type InsightParams struct {
	Site      string
	Start     string
	End       string
	Limit     int
	TrendKeys int
	Top       int
	Publish   bool
}

type OpportunityParams struct {
	Site  string
	Start string
	End   string
	Limit int
	Top   int
}

type TrendParams struct {
	Site      string
	Dimension domrepo.Dimension
	Key       string
	Metric    domrepo.Metric
	Start     string
	End       string
}

// Report runs the full analysis for a site. Only the main row fetch is
// fatal; failures in trend series or publishing are reported in Errors.
func (s *InsightService) Report(ctx context.Context, p InsightParams) (*models.InsightReport, error) {
	if p.Site == "" {
		return nil, fmt.Errorf("site required")
	}
	if p.TrendKeys < 0 {
		p.TrendKeys = 0
	}
	if p.Top <= 0 {
		p.Top = 25
	}
	start := s.now()
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	from, to := s.window(p.Start, p.End)
	rows, err := s.source.Query(ctx, models.AnalyticsQuery{
		SiteURL:    p.Site,
		StartDate:  from,
		EndDate:    to,
		Dimensions: []string{string(domrepo.DimQuery), string(domrepo.DimPage)},
		RowLimit:   p.Limit,
	})
	if err != nil {
		s.recordError("report")
		return nil, fmt.Errorf("fetch rows: %w", err)
	}

	report := &models.InsightReport{
		Site:        p.Site,
		StartDate:   from,
		EndDate:     to,
		GeneratedAt: start.UTC(),
		Totals:      features.Summarize(rows),
		CTRSummary:  map[models.Performance]int{},
		Errors:      map[string]string{},
	}

	ctrs := s.engine.CTR.AnalyzeBatch(rows)
	for _, c := range ctrs {
		report.CTRSummary[c.Performance]++
	}

	keys := features.TopKeys(rows, domrepo.DimQuery, p.TrendKeys)
	trends, errs := s.detectTrends(ctx, p.Site, domrepo.DimQuery, keys, from, to)
	for k, e := range errs {
		report.Errors["trend:"+k] = e.Error()
	}
	report.Trends = trends

	signals := make(map[string]float64, len(trends))
	for _, t := range trends {
		signals[t.Key] = opportunity.TrendSignal(t.Trend)
	}
	opps := s.engine.Scorer.ScoreRows(rows, signals)
	if len(opps) > p.Top {
		opps = opps[:p.Top]
	}
	report.Opportunities = opps

	classified := s.engine.Intents.ClassifyAll(features.Queries(rows))
	report.Intents = s.engine.Intents.Distribution(classified)

	recs := s.engine.Recs.Generate(domsvc.RecommendationInput{
		Rows:          rows,
		CtrAnalyses:   ctrs,
		Trends:        trends,
		Opportunities: opps,
	})
	report.Recommendations = s.engine.Recs.Deduplicate(recs)
	s.recordRecommendations(report.Recommendations)

	if p.Publish {
		if err := s.publish(ctx, report); err != nil {
			report.Errors["publish"] = err.Error()
		}
	}
	if len(report.Errors) == 0 {
		report.Errors = nil
	}

	if s.metrics != nil {
		s.metrics.RecordLatency("report", time.Since(start).Seconds())
	}
	s.l.Info("report generated",
		applogger.String("site", p.Site),
		applogger.String("start", from),
		applogger.String("end", to),
		applogger.Int("rows", len(rows)),
		applogger.Int("trends", len(trends)),
		applogger.Int("recommendations", len(report.Recommendations)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return report, nil
}

// Opportunities scores query/page rows, best first.
func (s *InsightService) Opportunities(ctx context.Context, p OpportunityParams) ([]models.ScoredOpportunity, error) {
	if p.Site == "" {
		return nil, fmt.Errorf("site required")
	}
	from, to := s.window(p.Start, p.End)
	rows, err := s.source.Query(ctx, models.AnalyticsQuery{
		SiteURL:    p.Site,
		StartDate:  from,
		EndDate:    to,
		Dimensions: []string{string(domrepo.DimQuery), string(domrepo.DimPage)},
		RowLimit:   p.Limit,
	})
	if err != nil {
		s.recordError("opportunities")
		return nil, fmt.Errorf("fetch rows: %w", err)
	}
	opps := s.engine.Scorer.ScoreRows(rows, nil)
	if p.Top > 0 && len(opps) > p.Top {
		opps = opps[:p.Top]
	}
	return opps, nil
}

// Trend analyzes the daily series of one query or page.
func (s *InsightService) Trend(ctx context.Context, p TrendParams) (*models.SeriesTrend, error) {
	if p.Site == "" || p.Key == "" {
		return nil, fmt.Errorf("site and key required")
	}
	if p.Dimension != domrepo.DimQuery && p.Dimension != domrepo.DimPage {
		return nil, fmt.Errorf("unsupported dimension: %s", p.Dimension)
	}
	if p.Metric == "" {
		p.Metric = domrepo.MetricClicks
	}
	from, to := s.window(p.Start, p.End)
	points, err := s.series(ctx, p.Site, p.Dimension, p.Key, from, to, p.Metric)
	if err != nil {
		s.recordError("trend")
		return nil, err
	}
	return &models.SeriesTrend{
		Site:      p.Site,
		Dimension: string(p.Dimension),
		Key:       p.Key,
		Metric:    string(p.Metric),
		StartDate: from,
		EndDate:   to,
		Points:    points,
		Trend:     s.engine.Trends.Detect(points),
	}, nil
}

// Classify assigns an intent to every query.
func (s *InsightService) Classify(queries []string) models.Classification {
	classified := s.engine.Intents.ClassifyAll(queries)
	return models.Classification{
		Queries:      classified,
		Distribution: s.engine.Intents.Distribution(classified),
	}
}

// AnalyzeRows runs the recommendation rules on caller-supplied data and returns
// the deduplicated, ordered list.
func (s *InsightService) AnalyzeRows(req models.AnalyzeRequest) []models.Recommendation {
	recs := s.engine.Recs.Generate(domsvc.RecommendationInput{
		Rows:          req.Rows,
		CtrAnalyses:   req.CtrAnalyses,
		Trends:        req.Trends,
		Opportunities: req.Opportunities,
	})
	return s.engine.Recs.Deduplicate(recs)
}

// CTR benchmarks one position/CTR pair.
func (s *InsightService) CTR(position, ctr float64) models.CtrAnalysis {
	return s.engine.CTR.Analyze(position, ctr)
}

// InvalidateCache drops cached upstream responses for site.
func (s *InsightService) InvalidateCache(ctx context.Context, site string) error {
	return s.source.Invalidate(ctx, site)
}

func (s *InsightService) window(start, end string) (string, string) {
	return util.ResolveRange(start, end, s.now(), s.cfg.LookbackDays, s.cfg.LagDays)
}

// detectTrends fetches each key's series with bounded concurrency. A failed
// key is reported and skipped; the result is ordered by key.
func (s *InsightService) detectTrends(ctx context.Context, site string, dim domrepo.Dimension, keys []string, from, to string) ([]models.KeyedTrend, map[string]error) {
	if len(keys) == 0 {
		return []models.KeyedTrend{}, nil
	}

	var (
		mu     sync.Mutex
		series = make(map[string][]models.TrendPoint, len(keys))
		errs   = make(map[string]error)
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for _, key := range keys {
		key := key
		g.Go(func() error {
			pts, err := s.series(gctx, site, dim, key, from, to, domrepo.MetricClicks)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs[key] = err
				return nil
			}
			series[key] = pts
			return nil
		})
	}
	_ = g.Wait()

	ordered := make([]string, 0, len(series))
	for k := range series {
		ordered = append(ordered, k)
	}
	sort.Strings(ordered)
	out := make([]models.KeyedTrend, 0, len(ordered))
	for _, k := range ordered {
		out = append(out, models.KeyedTrend{Key: k, Trend: s.engine.Trends.Detect(series[k])})
	}
	return out, errs
}

// series reads a daily series from the store when one is configured and
// falls back to a filtered upstream query.
func (s *InsightService) series(ctx context.Context, site string, dim domrepo.Dimension, key, from, to string, metric domrepo.Metric) ([]models.TrendPoint, error) {
	if s.store != nil {
		fromT, _ := util.ParseDate(from)
		toT, _ := util.ParseDate(to)
		pts, err := s.store.DailySeries(ctx, site, dim, key, fromT, toT, metric)
		if err == nil && len(pts) > 0 {
			return pts, nil
		}
		if err != nil && !errors.Is(err, domrepo.ErrNotConfigured) {
			s.l.Warn("store series failed, using upstream",
				applogger.String("site", site),
				applogger.String("key", key),
				applogger.Error(err),
			)
		}
	}

	rows, err := s.source.Query(ctx, models.AnalyticsQuery{
		SiteURL:    site,
		StartDate:  from,
		EndDate:    to,
		Dimensions: []string{string(domrepo.DimDate)},
		Filters:    []models.DimensionFilter{{Dimension: string(dim), Operator: "equals", Expression: key}},
	})
	if err != nil {
		return nil, fmt.Errorf("fetch series %s: %w", key, err)
	}
	return features.SeriesFromRows(rows, metric), nil
}

func (s *InsightService) publish(ctx context.Context, report *models.InsightReport) error {
	if s.pub == nil {
		return domrepo.ErrNotConfigured
	}
	if err := s.pub.PublishReport(ctx, report); err != nil {
		s.recordError("publish_report")
		return err
	}
	return nil
}

func (s *InsightService) recordRecommendations(recs []models.Recommendation) {
	if s.metrics == nil {
		return
	}
	counts := make(map[models.RecommendationType]int)
	for _, r := range recs {
		counts[r.Type]++
	}
	for kind, n := range counts {
		s.metrics.RecordRecommendations(string(kind), n)
	}
}

func (s *InsightService) recordError(kind string) {
	if s.metrics != nil {
		s.metrics.RecordError(kind)
	}
}
