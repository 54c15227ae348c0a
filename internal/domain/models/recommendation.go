package models

// RecommendationType names the rule that produced a recommendation.
type RecommendationType string

const (
	RecTitleOptimization   RecommendationType = "title_optimization"
	RecContentExpansion    RecommendationType = "content_expansion"
	RecPageTwoOptimization RecommendationType = "page_two_optimization"
	RecConsolidation       RecommendationType = "consolidation"
	RecContentRefresh      RecommendationType = "content_refresh"
	RecLowValueKeyword     RecommendationType = "low_value_keyword"
	RecQuestionContent     RecommendationType = "question_content"
	RecOpportunityFocus    RecommendationType = "opportunity_focus"
)

// Effort estimates the work a recommendation takes.
type Effort string

const (
	EffortLow    Effort = "low"
	EffortMedium Effort = "medium"
	EffortHigh   Effort = "high"
)

// Recommendation is an actionable suggestion. Data holds supporting values
// such as query, page, impressions or totalImpressions.
type Recommendation struct {
	Type        RecommendationType `json:"type"`
	Priority    Priority           `json:"priority"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Impact      string             `json:"impact"`
	Effort      Effort             `json:"effort"`
	Data        map[string]any     `json:"data"`
}
