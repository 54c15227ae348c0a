package opportunity

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SearchInsight/internal/domain/models"
)

func f64(v float64) *float64 { return &v }

func intp(v int) *int { return &v }

func factorByName(t *testing.T, s models.OpportunityScore, name string) models.ScoreFactor {
	t.Helper()
	for _, f := range s.Factors {
		if f.Name == name {
			return f
		}
	}
	t.Fatalf("factor %q missing", name)
	return models.ScoreFactor{}
}

func TestScoreFactorsShape(t *testing.T) {
	s := Score(models.OpportunityInput{Impressions: 5000, Clicks: 20, CTR: 0.004, Position: 6})
	require.Len(t, s.Factors, 5)

	var weights float64
	for _, f := range s.Factors {
		weights += f.Weight
		assert.InDelta(t, f.Weight*f.Value, f.Contribution, 1e-12)
		assert.GreaterOrEqual(t, f.Value, 0.0)
		assert.LessOrEqual(t, f.Value, 100.0)
	}
	assert.InDelta(t, 1.0, weights, 1e-12)
}

func TestScoreBoundsAndContributionSum(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 200; i++ {
		in := models.OpportunityInput{
			Impressions: rng.Float64() * 500000,
			CTR:         rng.Float64(),
			Position:    rng.Float64()*150 - 10,
			Trend:       f64(rng.Float64()*4 - 2),
			QueryCount:  intp(rng.Intn(5000)),
		}
		s := Score(in)
		require.GreaterOrEqual(t, s.Score, 0.0)
		require.LessOrEqual(t, s.Score, 100.0)

		var sum float64
		for _, f := range s.Factors {
			sum += f.Contribution
		}
		assert.InDelta(t, s.Score, sum, 0.01)
	}
}

func TestScoreZeroImpressions(t *testing.T) {
	s := Score(models.OpportunityInput{Position: 3})
	assert.Equal(t, 0.0, factorByName(t, s, FactorImpressions).Value)
}

func TestScoreDecliningBeatsRising(t *testing.T) {
	base := models.OpportunityInput{Impressions: 2000, CTR: 0.01, Position: 8}
	declining, rising := base, base
	declining.Trend = f64(-0.8)
	rising.Trend = f64(0.8)
	assert.Greater(t, Score(declining).Score, Score(rising).Score)
}

func TestScoreFactorValues(t *testing.T) {
	s := Score(models.OpportunityInput{Impressions: 100000, CTR: 0.1, Position: 10, ExpectedCTR: f64(0.2), QueryCount: intp(1000)})
	assert.InDelta(t, 100, factorByName(t, s, FactorImpressions).Value, 1e-9)
	assert.InDelta(t, 50, factorByName(t, s, FactorCTRGap).Value, 1e-9)
	assert.InDelta(t, 50, factorByName(t, s, FactorPosition).Value, 1e-9)
	assert.InDelta(t, 50, factorByName(t, s, FactorTrend).Value, 1e-9)
	assert.InDelta(t, 100, factorByName(t, s, FactorQueryCount).Value, 1e-9)
	// 30 + 12.5 + 12.5 + 5 + 10
	assert.InDelta(t, 70, s.Score, 1e-9)
	assert.Equal(t, models.PriorityHigh, s.Priority)
}

func TestScorePositionEdges(t *testing.T) {
	assert.InDelta(t, 100, factorByName(t, Score(models.OpportunityInput{Position: 0}), FactorPosition).Value, 1e-12)
	assert.InDelta(t, 100, factorByName(t, Score(models.OpportunityInput{Position: 1}), FactorPosition).Value, 1e-12)
	assert.InDelta(t, 0, factorByName(t, Score(models.OpportunityInput{Position: 100}), FactorPosition).Value, 1e-12)
	assert.InDelta(t, 0, factorByName(t, Score(models.OpportunityInput{Position: 250}), FactorPosition).Value, 1e-12)
}

func TestScoreCTRGapUsesBenchmarkByDefault(t *testing.T) {
	// rank 1 expects 0.317
	s := Score(models.OpportunityInput{Position: 1, CTR: 0.317 / 2})
	assert.InDelta(t, 50, factorByName(t, s, FactorCTRGap).Value, 1e-9)

	over := Score(models.OpportunityInput{Position: 1, CTR: 0.9})
	assert.Zero(t, factorByName(t, over, FactorCTRGap).Value)
}

func TestScoreQueryCountDefault(t *testing.T) {
	s := Score(models.OpportunityInput{Position: 5})
	assert.InDelta(t, 100*0.30103/3.000434, factorByName(t, s, FactorQueryCount).Value, 1e-3)
}

func TestPriorityFor(t *testing.T) {
	assert.Equal(t, models.PriorityCritical, PriorityFor(80))
	assert.Equal(t, models.PriorityHigh, PriorityFor(79.99))
	assert.Equal(t, models.PriorityHigh, PriorityFor(60))
	assert.Equal(t, models.PriorityMedium, PriorityFor(40))
	assert.Equal(t, models.PriorityLow, PriorityFor(39.99))
}

func TestTrendSignal(t *testing.T) {
	assert.InDelta(t, -0.9, TrendSignal(models.TrendAnalysis{Direction: models.DirectionFalling, Confidence: 0.9}), 1e-12)
	assert.InDelta(t, 0.5, TrendSignal(models.TrendAnalysis{Direction: models.DirectionRising, Confidence: 0.5}), 1e-12)
	assert.Zero(t, TrendSignal(models.TrendAnalysis{Direction: models.DirectionStable, Confidence: 1}))
}

func TestScoreRows(t *testing.T) {
	rows := []models.PerformanceRow{
		{Query: "a", Page: "/x", Impressions: 10, CTR: 0.5, Position: 1},
		{Query: "b", Page: "/x", Impressions: 50000, CTR: 0.001, Position: 4},
		{Query: "c", Page: "/y", Impressions: 800, CTR: 0.01, Position: 12},
	}
	out := ScoreRows(rows, map[string]float64{"/y": -1})
	require.Len(t, out, 3)
	assert.Equal(t, "b", out[0].Query)
	for i := 1; i < len(out); i++ {
		assert.GreaterOrEqual(t, out[i-1].Score.Score, out[i].Score.Score)
	}

	for _, o := range out {
		qc := factorByName(t, o.Score, FactorQueryCount)
		tr := factorByName(t, o.Score, FactorTrend)
		switch o.Page {
		case "/x":
			assert.InDelta(t, queryCountValue(2), qc.Value, 1e-12)
			assert.InDelta(t, 50, tr.Value, 1e-12)
		case "/y":
			assert.InDelta(t, queryCountValue(1), qc.Value, 1e-12)
			assert.InDelta(t, 100, tr.Value, 1e-12)
		}
	}
}
