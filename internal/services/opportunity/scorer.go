// Package opportunity scores how much untapped traffic a query or page has.
package opportunity

import (
	"math"
	"sort"

	"SearchInsight/internal/domain/models"
	"SearchInsight/internal/services/benchmark"
)

// Factor names and weights. Weights sum to 1.
const (
	FactorImpressions = "impressions"
	FactorCTRGap      = "ctrGap"
	FactorPosition    = "position"
	FactorTrend       = "trend"
	FactorQueryCount  = "queryCount"

	weightImpressions = 0.30
	weightCTRGap      = 0.25
	weightPosition    = 0.25
	weightTrend       = 0.10
	weightQueryCount  = 0.10
)

// Saturation points for the log-scaled factors.
const (
	impressionsCeiling = 100000
	queryCountCeiling  = 1000
)

// Priority cut-offs on the final score.
const (
	criticalScore = 80
	highScore     = 60
	mediumScore   = 40
)

// Score rates a single opportunity. Missing optional inputs fall back to the
// benchmark CTR for the position, a neutral trend and a single query.
// NaN inputs produce undefined scores.
func Score(in models.OpportunityInput) models.OpportunityScore {
	expected := benchmark.ExpectedCTR(in.Position)
	if in.ExpectedCTR != nil {
		expected = *in.ExpectedCTR
	}
	trend := 0.0
	if in.Trend != nil {
		trend = clamp(*in.Trend, -1, 1)
	}
	queries := 1
	if in.QueryCount != nil {
		queries = *in.QueryCount
	}

	factors := []models.ScoreFactor{
		factor(FactorImpressions, weightImpressions, impressionsValue(in.Impressions)),
		factor(FactorCTRGap, weightCTRGap, ctrGapValue(in.CTR, expected)),
		factor(FactorPosition, weightPosition, positionValue(in.Position)),
		factor(FactorTrend, weightTrend, 50-trend*50),
		factor(FactorQueryCount, weightQueryCount, queryCountValue(queries)),
	}

	var total float64
	for _, f := range factors {
		total += f.Contribution
	}
	score := round2(clamp(total, 0, 100))
	return models.OpportunityScore{
		Score:    score,
		Priority: PriorityFor(score),
		Factors:  factors,
	}
}

// PriorityFor maps a 0..100 score onto a priority band.
func PriorityFor(score float64) models.Priority {
	switch {
	case score >= criticalScore:
		return models.PriorityCritical
	case score >= highScore:
		return models.PriorityHigh
	case score >= mediumScore:
		return models.PriorityMedium
	default:
		return models.PriorityLow
	}
}

// TrendSignal turns a trend analysis into the scorer's [-1,1] trend input:
// the sign follows the direction and the magnitude is the fit confidence.
func TrendSignal(a models.TrendAnalysis) float64 {
	switch a.Direction {
	case models.DirectionRising:
		return clamp(a.Confidence, 0, 1)
	case models.DirectionFalling:
		return -clamp(a.Confidence, 0, 1)
	default:
		return 0
	}
}

// ScoreRows scores every row. The query count of a row is the number of
// distinct queries seen for its page; trends are looked up by query, then
// page. The result is ordered by score descending, ties by impressions.
func ScoreRows(rows []models.PerformanceRow, trends map[string]float64) []models.ScoredOpportunity {
	pageQueries := make(map[string]map[string]struct{})
	for _, r := range rows {
		if r.Page == "" || r.Query == "" {
			continue
		}
		set, ok := pageQueries[r.Page]
		if !ok {
			set = make(map[string]struct{})
			pageQueries[r.Page] = set
		}
		set[r.Query] = struct{}{}
	}

	out := make([]models.ScoredOpportunity, 0, len(rows))
	for _, r := range rows {
		in := models.OpportunityInput{
			Impressions: r.Impressions,
			Clicks:      r.Clicks,
			CTR:         r.CTR,
			Position:    r.Position,
		}
		if set, ok := pageQueries[r.Page]; ok {
			n := len(set)
			in.QueryCount = &n
		}
		if t, ok := lookupTrend(trends, r); ok {
			in.Trend = &t
		}
		out = append(out, models.ScoredOpportunity{
			Query:       r.Query,
			Page:        r.Page,
			Impressions: r.Impressions,
			Score:       Score(in),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score.Score != out[j].Score.Score {
			return out[i].Score.Score > out[j].Score.Score
		}
		return out[i].Impressions > out[j].Impressions
	})
	return out
}

func lookupTrend(trends map[string]float64, r models.PerformanceRow) (float64, bool) {
	if len(trends) == 0 {
		return 0, false
	}
	if r.Query != "" {
		if t, ok := trends[r.Query]; ok {
			return t, true
		}
	}
	if r.Page != "" {
		if t, ok := trends[r.Page]; ok {
			return t, true
		}
	}
	return 0, false
}

func factor(name string, weight, value float64) models.ScoreFactor {
	return models.ScoreFactor{Name: name, Weight: weight, Value: value, Contribution: weight * value}
}

func impressionsValue(impressions float64) float64 {
	if impressions <= 0 {
		return 0
	}
	return clamp(math.Log10(impressions+1)/math.Log10(impressionsCeiling+1)*100, 0, 100)
}

func ctrGapValue(actual, expected float64) float64 {
	if expected <= 0 {
		return 0
	}
	gap := expected - actual
	if gap <= 0 {
		return 0
	}
	return clamp(gap/expected*100, 0, 100)
}

func positionValue(position float64) float64 {
	switch {
	case position <= 0:
		return 100
	case position >= 100:
		return 0
	default:
		return clamp(100*(1-math.Log10(position)/2), 0, 100)
	}
}

func queryCountValue(n int) float64 {
	if n <= 0 {
		return 0
	}
	return clamp(math.Log10(float64(n)+1)/math.Log10(queryCountCeiling+1)*100, 0, 100)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Scorer adapts Score to service.OpportunityScorer.
type Scorer struct{}

func NewScorer() *Scorer { return &Scorer{} }

func (Scorer) Score(in models.OpportunityInput) models.OpportunityScore { return Score(in) }

func (Scorer) ScoreRows(rows []models.PerformanceRow, trends map[string]float64) []models.ScoredOpportunity {
	return ScoreRows(rows, trends)
}
