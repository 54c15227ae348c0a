package models

// Requests for insight HTTP endpoints.

type InsightRequest struct {
	Site      string `query:"site" json:"site" validate:"required"`
	Start     string `query:"start" json:"start" validate:"omitempty,datetime=2006-01-02"`
	End       string `query:"end" json:"end" validate:"omitempty,datetime=2006-01-02"`
	Limit     int    `query:"limit" json:"limit" default:"5000" validate:"gte=1,lte=25000"`
	TrendKeys int    `query:"trend_keys" json:"trend_keys" default:"10" validate:"gte=0,lte=50"`
	Top       int    `query:"top" json:"top" default:"25" validate:"gte=1,lte=500"`
	Publish   bool   `query:"publish" json:"publish"`
}

type OpportunityRequest struct {
	Site  string `query:"site" json:"site" validate:"required"`
	Start string `query:"start" json:"start" validate:"omitempty,datetime=2006-01-02"`
	End   string `query:"end" json:"end" validate:"omitempty,datetime=2006-01-02"`
	Limit int    `query:"limit" json:"limit" default:"5000" validate:"gte=1,lte=25000"`
	Top   int    `query:"top" json:"top" default:"50" validate:"gte=1,lte=1000"`
}

type TrendRequest struct {
	Site      string `query:"site" json:"site" validate:"required"`
	Dimension string `query:"dimension" json:"dimension" default:"query" validate:"oneof=query page"`
	Key       string `query:"key" json:"key" validate:"required"`
	Metric    string `query:"metric" json:"metric" default:"clicks" validate:"oneof=clicks impressions ctr position"`
	Start     string `query:"start" json:"start" validate:"omitempty,datetime=2006-01-02"`
	End       string `query:"end" json:"end" validate:"omitempty,datetime=2006-01-02"`
}

type CTRRequest struct {
	Position float64 `query:"position" json:"position" validate:"required,gt=0"`
	CTR      float64 `query:"ctr" json:"ctr" validate:"gte=0,lte=1"`
}

type ClassifyRequest struct {
	Queries []string `json:"queries" validate:"required,min=1,max=5000"`
}

// AnalyzeRequest runs the recommendation engine over caller-supplied data.
type AnalyzeRequest struct {
	Rows          []PerformanceRow    `json:"rows" validate:"required,dive"`
	CtrAnalyses   []CtrAnalysis       `json:"ctr_analyses"`
	Trends        []KeyedTrend        `json:"trends"`
	Opportunities []ScoredOpportunity `json:"opportunities"`
}

type CacheInvalidateRequest struct {
	Site string `query:"site" json:"site" validate:"required"`
}
