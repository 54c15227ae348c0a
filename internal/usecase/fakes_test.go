package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"SearchInsight/internal/domain/models"
	domrepo "SearchInsight/internal/domain/repository"
	"SearchInsight/internal/services/benchmark"
	"SearchInsight/internal/services/intent"
	"SearchInsight/internal/services/opportunity"
	"SearchInsight/internal/services/recommend"
	"SearchInsight/internal/services/trend"
)

// fakeSource serves canned rows. Filtered queries are answered from series
// keyed by the filter expression.
type fakeSource struct {
	mu          sync.Mutex
	rows        []models.PerformanceRow
	series      map[string][]models.PerformanceRow
	seriesErr   map[string]error
	err         error
	sites       []string
	sitesErr    error
	queries     []models.AnalyticsQuery
	invalidated []string
}

func (f *fakeSource) Query(_ context.Context, q models.AnalyticsQuery) ([]models.PerformanceRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	if len(q.Filters) > 0 {
		key := q.Filters[0].Expression
		if err := f.seriesErr[key]; err != nil {
			return nil, err
		}
		return append([]models.PerformanceRow(nil), f.series[key]...), nil
	}
	return append([]models.PerformanceRow(nil), f.rows...), nil
}

func (f *fakeSource) Sites(context.Context) ([]string, error) { return f.sites, f.sitesErr }

func (f *fakeSource) Invalidate(_ context.Context, site string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, site)
	return nil
}

func (f *fakeSource) recorded() []models.AnalyticsQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.AnalyticsQuery(nil), f.queries...)
}

type fakeStore struct {
	mu     sync.Mutex
	series map[string][]models.TrendPoint
	err    error
	stored []*models.Snapshot
	closed bool
}

func (s *fakeStore) Init(context.Context) error { return nil }

func (s *fakeStore) StoreSnapshot(_ context.Context, snap *models.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.stored = append(s.stored, snap)
	return nil
}

func (s *fakeStore) DailySeries(_ context.Context, _ string, _ domrepo.Dimension, key string, _, _ time.Time, _ domrepo.Metric) ([]models.TrendPoint, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.series[key], nil
}

func (s *fakeStore) Health(context.Context) error { return nil }
func (s *fakeStore) Close() error                 { s.closed = true; return nil }

type fakePublisher struct {
	mu        sync.Mutex
	err       error
	snapshots []*models.Snapshot
	reports   []*models.InsightReport
}

func (p *fakePublisher) PublishSnapshot(_ context.Context, snap *models.Snapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.snapshots = append(p.snapshots, snap)
	return nil
}

func (p *fakePublisher) PublishReport(_ context.Context, r *models.InsightReport) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.reports = append(p.reports, r)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

type fakeMetrics struct {
	mu     sync.Mutex
	errors map[string]int
	recs   map[string]int
	stored int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{errors: map[string]int{}, recs: map[string]int{}}
}

func (m *fakeMetrics) RecordRowsFetched(string, int) {}
func (m *fakeMetrics) RecordSnapshotStored(string, string) {
	m.mu.Lock()
	m.stored++
	m.mu.Unlock()
}
func (m *fakeMetrics) RecordRecommendations(kind string, n int) {
	m.mu.Lock()
	m.recs[kind] += n
	m.mu.Unlock()
}
func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	m.errors[kind]++
	m.mu.Unlock()
}
func (m *fakeMetrics) RecordLatency(string, float64) {}

type fakeEnqueuer struct {
	mu   sync.Mutex
	err  error
	msgs []CollectRequest
}

func (q *fakeEnqueuer) Enqueue(_ context.Context, msgType string, payload interface{}) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	if msgType != JobCollectSite {
		return fmt.Errorf("unexpected type %s", msgType)
	}
	q.msgs = append(q.msgs, payload.(CollectRequest))
	return nil
}

func testEngine() Engine {
	return Engine{
		CTR:     benchmark.NewModel(),
		Trends:  trend.NewDetector(),
		Intents: intent.NewClassifier(),
		Scorer:  opportunity.NewScorer(),
		Recs:    recommend.NewEngine(),
	}
}

var fixedNow = time.Date(2024, 3, 31, 15, 0, 0, 0, time.UTC)

// dailyRows builds one row per day starting at start with the given clicks.
func dailyRows(start string, clicks ...float64) []models.PerformanceRow {
	t0, _ := time.Parse("2006-01-02", start)
	out := make([]models.PerformanceRow, len(clicks))
	for i, c := range clicks {
		out[i] = models.PerformanceRow{
			Date:        t0.AddDate(0, 0, i).Format("2006-01-02"),
			Clicks:      c,
			Impressions: c * 10,
			Position:    3,
		}
	}
	return out
}
