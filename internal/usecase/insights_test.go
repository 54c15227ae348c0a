package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"SearchInsight/internal/domain/models"
	domrepo "SearchInsight/internal/domain/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const site = "sc-domain:example.com"

func reportRows() []models.PerformanceRow {
	return []models.PerformanceRow{
		{Query: "buy running shoes", Page: "https://example.com/shoes", Clicks: 10, Impressions: 1000, CTR: 0.01, Position: 2},
		{Query: "how to clean suede shoes", Page: "https://example.com/clean", Clicks: 5, Impressions: 500, CTR: 0.01, Position: 6},
		{Query: "example shoes", Page: "https://example.com/shoes", Clicks: 1, Impressions: 5, CTR: 0.2, Position: 4},
	}
}

func newService(src *fakeSource, store domrepo.PerformanceStore, pub domrepo.Publisher, m domrepo.Metrics) *InsightService {
	s := NewInsightService(src, store, pub, m, testEngine(), InsightConfig{LookbackDays: 28, LagDays: 3, Workers: 2}, nil)
	s.now = func() time.Time { return fixedNow }
	return s
}

func TestReport_BuildsFullReport(t *testing.T) {
	src := &fakeSource{
		rows: reportRows(),
		series: map[string][]models.PerformanceRow{
			"buy running shoes": dailyRows("2024-03-01", 10, 12, 14, 16, 18, 20, 22),
		},
		seriesErr: map[string]error{
			"how to clean suede shoes": errors.New("quota exceeded"),
		},
	}
	m := newFakeMetrics()
	svc := newService(src, nil, nil, m)

	rep, err := svc.Report(context.Background(), InsightParams{Site: site, TrendKeys: 2})
	require.NoError(t, err)

	assert.Equal(t, site, rep.Site)
	assert.Equal(t, "2024-03-01", rep.StartDate)
	assert.Equal(t, "2024-03-28", rep.EndDate)
	assert.Equal(t, 3, rep.Totals.Rows)
	assert.Equal(t, 3, rep.Totals.Queries)
	assert.Equal(t, 2, rep.Totals.Pages)

	total := 0
	for _, n := range rep.CTRSummary {
		total += n
	}
	assert.Equal(t, 3, total)

	require.Len(t, rep.Trends, 1)
	assert.Equal(t, "buy running shoes", rep.Trends[0].Key)
	assert.Equal(t, models.DirectionRising, rep.Trends[0].Trend.Direction)
	assert.Contains(t, rep.Errors, "trend:how to clean suede shoes")

	assert.Len(t, rep.Opportunities, 3)
	for i := 1; i < len(rep.Opportunities); i++ {
		assert.GreaterOrEqual(t, rep.Opportunities[i-1].Score.Score, rep.Opportunities[i].Score.Score)
	}

	assert.GreaterOrEqual(t, rep.Intents[models.IntentTransactional], 1)

	types := map[models.RecommendationType]bool{}
	for _, r := range rep.Recommendations {
		types[r.Type] = true
	}
	assert.True(t, types[models.RecTitleOptimization])
	assert.Equal(t, 1, m.recs[string(models.RecTitleOptimization)])

	series := 0
	for _, q := range src.recorded() {
		if len(q.Filters) > 0 {
			series++
			assert.Equal(t, []string{"date"}, q.Dimensions)
			assert.Equal(t, "query", q.Filters[0].Dimension)
		}
	}
	assert.Equal(t, 2, series)
}

func TestReport_FetchErrorIsFatal(t *testing.T) {
	m := newFakeMetrics()
	svc := newService(&fakeSource{err: errors.New("boom")}, nil, nil, m)

	_, err := svc.Report(context.Background(), InsightParams{Site: site})
	require.Error(t, err)
	assert.Equal(t, 1, m.errors["report"])

	_, err = svc.Report(context.Background(), InsightParams{})
	assert.Error(t, err)
}

func TestReport_NoErrorsIsNil(t *testing.T) {
	svc := newService(&fakeSource{rows: reportRows()}, nil, nil, nil)
	rep, err := svc.Report(context.Background(), InsightParams{Site: site, TrendKeys: 0, Top: 1})
	require.NoError(t, err)
	assert.Nil(t, rep.Errors)
	assert.Empty(t, rep.Trends)
	assert.Len(t, rep.Opportunities, 1)
}

func TestReport_UsesStoreSeries(t *testing.T) {
	src := &fakeSource{rows: reportRows()}
	store := &fakeStore{series: map[string][]models.TrendPoint{
		"buy running shoes": {
			{Date: "2024-03-01", Value: 30}, {Date: "2024-03-02", Value: 25},
			{Date: "2024-03-03", Value: 20}, {Date: "2024-03-04", Value: 15},
			{Date: "2024-03-05", Value: 10},
		},
	}}
	svc := newService(src, store, nil, nil)

	rep, err := svc.Report(context.Background(), InsightParams{Site: site, TrendKeys: 1})
	require.NoError(t, err)
	require.Len(t, rep.Trends, 1)
	assert.Equal(t, models.DirectionFalling, rep.Trends[0].Trend.Direction)
	assert.Len(t, src.recorded(), 1)
}

func TestReport_StoreFailureFallsBack(t *testing.T) {
	src := &fakeSource{
		rows: reportRows(),
		series: map[string][]models.PerformanceRow{
			"buy running shoes": dailyRows("2024-03-01", 1, 2, 3, 4, 5),
		},
	}
	svc := newService(src, &fakeStore{err: errors.New("clickhouse down")}, nil, nil)

	rep, err := svc.Report(context.Background(), InsightParams{Site: site, TrendKeys: 1})
	require.NoError(t, err)
	require.Len(t, rep.Trends, 1)
	assert.Equal(t, models.DirectionRising, rep.Trends[0].Trend.Direction)
}

func TestReport_Publish(t *testing.T) {
	pub := &fakePublisher{}
	svc := newService(&fakeSource{rows: reportRows()}, nil, pub, nil)

	rep, err := svc.Report(context.Background(), InsightParams{Site: site, Publish: true})
	require.NoError(t, err)
	assert.Nil(t, rep.Errors)
	require.Len(t, pub.reports, 1)
	assert.Same(t, rep, pub.reports[0])

	pub.err = errors.New("broker unavailable")
	rep, err = svc.Report(context.Background(), InsightParams{Site: site, Publish: true})
	require.NoError(t, err)
	assert.Equal(t, "broker unavailable", rep.Errors["publish"])

	svc = newService(&fakeSource{rows: reportRows()}, nil, nil, nil)
	rep, err = svc.Report(context.Background(), InsightParams{Site: site, Publish: true})
	require.NoError(t, err)
	assert.Equal(t, domrepo.ErrNotConfigured.Error(), rep.Errors["publish"])
}

func TestOpportunities(t *testing.T) {
	src := &fakeSource{rows: reportRows()}
	svc := newService(src, nil, nil, nil)

	opps, err := svc.Opportunities(context.Background(), OpportunityParams{Site: site, Start: "2024-01-01", End: "2024-01-31", Top: 2})
	require.NoError(t, err)
	require.Len(t, opps, 2)
	assert.GreaterOrEqual(t, opps[0].Score.Score, opps[1].Score.Score)

	q := src.recorded()[0]
	assert.Equal(t, "2024-01-01", q.StartDate)
	assert.Equal(t, "2024-01-31", q.EndDate)
	assert.Equal(t, []string{"query", "page"}, q.Dimensions)

	_, err = svc.Opportunities(context.Background(), OpportunityParams{})
	assert.Error(t, err)
}

func TestTrend(t *testing.T) {
	src := &fakeSource{series: map[string][]models.PerformanceRow{
		"https://example.com/shoes": dailyRows("2024-03-01", 5, 5, 5, 5, 5, 5),
	}}
	svc := newService(src, nil, nil, nil)

	st, err := svc.Trend(context.Background(), TrendParams{
		Site:      site,
		Dimension: domrepo.DimPage,
		Key:       "https://example.com/shoes",
		Metric:    domrepo.MetricImpressions,
	})
	require.NoError(t, err)
	assert.Equal(t, "page", st.Dimension)
	assert.Equal(t, "impressions", st.Metric)
	require.Len(t, st.Points, 6)
	assert.Equal(t, 50.0, st.Points[0].Value)
	assert.Equal(t, models.DirectionStable, st.Trend.Direction)
	assert.Equal(t, "page", src.recorded()[0].Filters[0].Dimension)

	_, err = svc.Trend(context.Background(), TrendParams{Site: site, Dimension: domrepo.DimDevice, Key: "MOBILE"})
	assert.Error(t, err)
	_, err = svc.Trend(context.Background(), TrendParams{Site: site, Dimension: domrepo.DimQuery})
	assert.Error(t, err)
}

func TestPureOperations(t *testing.T) {
	src := &fakeSource{}
	svc := newService(src, nil, nil, nil)

	c := svc.Classify([]string{"buy shoes", "how to tie shoes"})
	require.Len(t, c.Queries, 2)
	assert.Equal(t, models.IntentTransactional, c.Queries[0].Intent)
	assert.Equal(t, 1, c.Distribution[models.IntentTransactional])

	ca := svc.CTR(1, 0.3)
	assert.Equal(t, 1.0, ca.Position)
	assert.Greater(t, ca.ExpectedCTR, 0.0)

	row := models.PerformanceRow{Query: "buy running shoes", Page: "/shoes", Clicks: 10, Impressions: 1000, CTR: 0.01, Position: 2}
	recs := svc.AnalyzeRows(models.AnalyzeRequest{Rows: []models.PerformanceRow{row, row}})
	n := 0
	for _, r := range recs {
		if r.Type == models.RecTitleOptimization {
			n++
		}
	}
	assert.Equal(t, 1, n)

	require.NoError(t, svc.InvalidateCache(context.Background(), site))
	assert.Equal(t, []string{site}, src.invalidated)
}
