package recommend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SearchInsight/internal/domain/models"
	"SearchInsight/internal/domain/service"
	"SearchInsight/internal/services/benchmark"
)

func ofType(recs []models.Recommendation, kind models.RecommendationType) []models.Recommendation {
	var out []models.Recommendation
	for _, r := range recs {
		if r.Type == kind {
			out = append(out, r)
		}
	}
	return out
}

func TestTitleOptimization(t *testing.T) {
	row := models.PerformanceRow{Query: "seo audit", Page: "/audit", Impressions: 5000, Clicks: 10, CTR: 0.002, Position: 2}

	got := ofType(Generate(service.RecommendationInput{Rows: []models.PerformanceRow{row}}), models.RecTitleOptimization)
	require.Len(t, got, 1)
	assert.Equal(t, models.PriorityHigh, got[0].Priority)
	assert.Equal(t, models.EffortLow, got[0].Effort)
	assert.Equal(t, "seo audit", got[0].Data["query"])
	assert.Equal(t, "/audit", got[0].Data["page"])

	row.Position = 5
	assert.Empty(t, ofType(Generate(service.RecommendationInput{Rows: []models.PerformanceRow{row}}), models.RecTitleOptimization))
}

func TestTitleOptimizationUsesCtrAnalysis(t *testing.T) {
	rows := []models.PerformanceRow{
		// raw CTR above 0.05 but well below the rank-1 benchmark
		{Query: "a", Page: "/a", Impressions: 1000, CTR: 0.1, Position: 1},
		// raw CTR below 0.05, also under its benchmark
		{Query: "b", Page: "/b", Impressions: 1000, CTR: 0.04, Position: 3},
	}

	without := ofType(Generate(service.RecommendationInput{Rows: rows}), models.RecTitleOptimization)
	require.Len(t, without, 1)
	assert.Equal(t, "b", without[0].Data["query"])

	with := ofType(Generate(service.RecommendationInput{
		Rows:        rows,
		CtrAnalyses: benchmark.BatchAnalyzeCTR(rows),
	}), models.RecTitleOptimization)
	require.Len(t, with, 2)
}

func TestPageBands(t *testing.T) {
	rows := []models.PerformanceRow{
		{Query: "four", Page: "/4", Impressions: 1000, Position: 4},
		{Query: "ten", Page: "/10", Impressions: 1000, Position: 10},
		{Query: "eleven", Page: "/11", Impressions: 1000, Position: 11},
		{Query: "twenty", Page: "/20", Impressions: 1000, Position: 20},
		{Query: "thin", Page: "/thin", Impressions: 999, Position: 6},
		{Query: "deep", Page: "/deep", Impressions: 5000, Position: 21},
	}
	recs := Generate(service.RecommendationInput{Rows: rows})

	expansion := ofType(recs, models.RecContentExpansion)
	require.Len(t, expansion, 2)
	for _, r := range expansion {
		assert.Equal(t, models.PriorityHigh, r.Priority)
		assert.Equal(t, models.EffortMedium, r.Effort)
	}

	pageTwo := ofType(recs, models.RecPageTwoOptimization)
	require.Len(t, pageTwo, 2)
	for _, r := range pageTwo {
		assert.Equal(t, models.PriorityMedium, r.Priority)
		assert.Equal(t, models.EffortHigh, r.Effort)
	}
}

func TestConsolidation(t *testing.T) {
	rows := []models.PerformanceRow{
		{Query: "running shoes", Page: "/shoes", Impressions: 300, Position: 8},
		{Query: "running shoes", Page: "/blog/shoes", Impressions: 200, Position: 14},
		{Query: "running shoes", Page: "/shoes", Impressions: 50, Position: 9},
		{Query: "trail shoes", Page: "/trail", Impressions: 100, Position: 5},
	}
	got := ofType(Generate(service.RecommendationInput{Rows: rows}), models.RecConsolidation)
	require.Len(t, got, 1)
	assert.Equal(t, models.PriorityHigh, got[0].Priority)
	assert.Equal(t, models.EffortMedium, got[0].Effort)
	assert.Equal(t, "running shoes", got[0].Data["query"])
	assert.Equal(t, []string{"/shoes", "/blog/shoes"}, got[0].Data["pages"])
	assert.InDelta(t, 550, got[0].Data["totalImpressions"], 1e-9)
}

func TestContentRefresh(t *testing.T) {
	falling := models.TrendAnalysis{Direction: models.DirectionFalling, PercentChange: -40, Summary: "Falling trend."}
	rows := []models.PerformanceRow{
		{Query: "busy", Page: "/busy", Impressions: 500, Position: 6},
		{Query: "quiet", Page: "/quiet", Impressions: 20, Position: 6},
	}

	t.Run("disabled without trends", func(t *testing.T) {
		assert.Empty(t, ofType(Generate(service.RecommendationInput{Rows: rows}), models.RecContentRefresh))
	})

	t.Run("matches by query or page", func(t *testing.T) {
		recs := Generate(service.RecommendationInput{
			Rows: rows,
			Trends: []models.KeyedTrend{
				{Key: "busy", Trend: falling},
				{Key: "/quiet", Trend: falling},
				{Key: "unknown", Trend: falling},
				{Key: "/busy", Trend: models.TrendAnalysis{Direction: models.DirectionRising}},
			},
		})
		got := ofType(recs, models.RecContentRefresh)
		require.Len(t, got, 2)
		for _, r := range got {
			assert.Equal(t, models.PriorityCritical, r.Priority)
			assert.Equal(t, models.EffortMedium, r.Effort)
		}
		assert.Equal(t, "busy", got[0].Data["key"])
		assert.Equal(t, "/busy", got[0].Data["page"])
		assert.Equal(t, "unknown", got[1].Data["key"])
		assert.NotContains(t, got[1].Data, "page")
	})

	t.Run("first matching row wins", func(t *testing.T) {
		dup := []models.PerformanceRow{
			{Query: "x", Page: "/first", Impressions: 50},
			{Query: "x", Page: "/second", Impressions: 5000},
		}
		recs := Generate(service.RecommendationInput{Rows: dup, Trends: []models.KeyedTrend{{Key: "x", Trend: falling}}})
		assert.Empty(t, ofType(recs, models.RecContentRefresh))
	})
}

func TestLowValueKeyword(t *testing.T) {
	rows := []models.PerformanceRow{
		{Query: "tiny", Page: "/tiny", Impressions: 9, Position: 2},
		{Query: "enough", Page: "/enough", Impressions: 10, Position: 2},
	}
	got := ofType(Generate(service.RecommendationInput{Rows: rows}), models.RecLowValueKeyword)
	require.Len(t, got, 1)
	assert.Equal(t, "tiny", got[0].Data["query"])
	assert.Equal(t, models.PriorityLow, got[0].Priority)
	assert.Equal(t, models.EffortLow, got[0].Effort)
}

func TestQuestionContentStacksWithOtherRules(t *testing.T) {
	row := models.PerformanceRow{Query: "how to choose running shoes", Page: "/guide", Impressions: 2000, CTR: 0.01, Position: 5}
	recs := Generate(service.RecommendationInput{Rows: []models.PerformanceRow{row}})

	q := ofType(recs, models.RecQuestionContent)
	require.Len(t, q, 1)
	assert.Equal(t, models.PriorityMedium, q[0].Priority)
	assert.Equal(t, models.EffortMedium, q[0].Effort)
	assert.Len(t, ofType(recs, models.RecContentExpansion), 1)

	row.Position = 3
	assert.Empty(t, ofType(Generate(service.RecommendationInput{Rows: []models.PerformanceRow{row}}), models.RecQuestionContent))
}

func TestQuestionContentLeadingWill(t *testing.T) {
	row := models.PerformanceRow{Query: "will seo matter in 2030", Page: "/future", Impressions: 500, Position: 6}
	recs := Generate(service.RecommendationInput{Rows: []models.PerformanceRow{row}})
	assert.Len(t, ofType(recs, models.RecQuestionContent), 1)

	row.Query = "would seo matter in 2030"
	recs = Generate(service.RecommendationInput{Rows: []models.PerformanceRow{row}})
	assert.Empty(t, ofType(recs, models.RecQuestionContent))
}

func TestOpportunityFocus(t *testing.T) {
	opps := []models.ScoredOpportunity{
		{Query: "a", Page: "/a", Impressions: 100, Score: models.OpportunityScore{Score: 85, Priority: models.PriorityCritical}},
		{Query: "b", Page: "/b", Impressions: 100, Score: models.OpportunityScore{Score: 65, Priority: models.PriorityHigh}},
		{Query: "c", Page: "/c", Impressions: 100, Score: models.OpportunityScore{Score: 45, Priority: models.PriorityMedium}},
	}
	got := ofType(Generate(service.RecommendationInput{Opportunities: opps}), models.RecOpportunityFocus)
	require.Len(t, got, 2)
	assert.Equal(t, models.PriorityCritical, got[0].Priority)
	assert.Equal(t, models.PriorityHigh, got[1].Priority)
}

func TestGenerateEmptyInput(t *testing.T) {
	assert.Empty(t, Generate(service.RecommendationInput{}))
}
