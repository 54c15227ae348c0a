// Package recommend turns analyzed search performance into prioritized,
// explainable recommendations.
package recommend

import (
	"SearchInsight/internal/domain/models"
	"SearchInsight/internal/domain/service"
)

// Generate applies every rule to the input. Rules are independent, so one
// row can yield several recommendations. Optional inputs that are nil
// disable the rules depending on them. The result is unordered; use Sort or
// Deduplicate for presentation.
func Generate(in service.RecommendationInput) []models.Recommendation {
	out := make([]models.Recommendation, 0, len(in.Rows))

	for i, row := range in.Rows {
		out = appendRec(out, titleOptimization(row, ctrAt(in.CtrAnalyses, i)))
		out = appendRec(out, contentExpansion(row))
		out = appendRec(out, pageTwoOptimization(row))
		out = appendRec(out, lowValueKeyword(row))
		out = appendRec(out, questionContent(row))
	}

	out = append(out, consolidation(in.Rows)...)

	if in.Trends != nil {
		out = append(out, contentRefresh(in.Trends, in.Rows)...)
	}
	if in.Opportunities != nil {
		out = append(out, opportunityFocus(in.Opportunities)...)
	}
	return out
}

// ctrAt returns the analysis aligned with row i, or nil when analyses were
// not supplied.
func ctrAt(analyses []models.CtrAnalysis, i int) *models.CtrAnalysis {
	if analyses == nil || i >= len(analyses) {
		return nil
	}
	return &analyses[i]
}

func appendRec(out []models.Recommendation, rec *models.Recommendation) []models.Recommendation {
	if rec == nil {
		return out
	}
	return append(out, *rec)
}

// Engine adapts the package functions to service.RecommendationEngine.
type Engine struct{}

func NewEngine() *Engine { return &Engine{} }

func (Engine) Generate(in service.RecommendationInput) []models.Recommendation { return Generate(in) }

func (Engine) Sort(recs []models.Recommendation) []models.Recommendation { return Sort(recs) }

func (Engine) Deduplicate(recs []models.Recommendation) []models.Recommendation {
	return Deduplicate(recs)
}
