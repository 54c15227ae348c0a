package service

import "SearchInsight/internal/domain/models"

// CTRBenchmark compares click-through rates against position norms.
type CTRBenchmark interface {
	Expected(position float64) float64
	Analyze(position, actualCTR float64) models.CtrAnalysis
	AnalyzeBatch(rows []models.PerformanceRow) []models.CtrAnalysis
}

// TrendDetector summarizes a dated series.
type TrendDetector interface {
	Detect(points []models.TrendPoint) models.TrendAnalysis
}

// IntentClassifier assigns search intent to queries.
type IntentClassifier interface {
	Classify(query string) models.ClassifiedQuery
	ClassifyAll(queries []string) []models.ClassifiedQuery
	Distribution(classified []models.ClassifiedQuery) models.IntentDistribution
}

// OpportunityScorer rates how much upside a row has.
type OpportunityScorer interface {
	Score(in models.OpportunityInput) models.OpportunityScore
	// ScoreRows scores rows with per-key trend signals in [-1,1].
	ScoreRows(rows []models.PerformanceRow, trends map[string]float64) []models.ScoredOpportunity
}

// RecommendationInput feeds the recommendation engine. Nil optional slices
// disable the rules that depend on them.
type RecommendationInput struct {
	Rows          []models.PerformanceRow
	CtrAnalyses   []models.CtrAnalysis
	Trends        []models.KeyedTrend
	Opportunities []models.ScoredOpportunity
}

// RecommendationEngine turns analyzed rows into ordered recommendations.
type RecommendationEngine interface {
	Generate(in RecommendationInput) []models.Recommendation
	Sort(recs []models.Recommendation) []models.Recommendation
	Deduplicate(recs []models.Recommendation) []models.Recommendation
}
