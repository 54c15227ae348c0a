package models

import "time"

// PerformanceRow is one Search Console row. Dimension fields are empty when
// the row was not broken down by that dimension.
type PerformanceRow struct {
	Query       string  `json:"query,omitempty" validate:"omitempty,max=2048"`
	Page        string  `json:"page,omitempty" validate:"omitempty,max=2048"`
	Date        string  `json:"date,omitempty"`
	Device      string  `json:"device,omitempty"`
	Country     string  `json:"country,omitempty"`
	Clicks      float64 `json:"clicks" validate:"gte=0"`
	Impressions float64 `json:"impressions" validate:"gte=0"`
	CTR         float64 `json:"ctr" validate:"gte=0,lte=1"`
	Position    float64 `json:"position" validate:"gte=0"`
}

// TrendPoint is a dated observation of a single metric.
type TrendPoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// DimensionFilter narrows an analytics query, e.g. query equals "buy shoes".
type DimensionFilter struct {
	Dimension  string `json:"dimension"`
	Operator   string `json:"operator"`
	Expression string `json:"expression"`
}

// AnalyticsQuery describes a Search Console searchAnalytics request.
type AnalyticsQuery struct {
	SiteURL    string
	StartDate  string
	EndDate    string
	Dimensions []string
	Filters    []DimensionFilter
	SearchType string
	RowLimit   int
}

// Snapshot is one day of rows for a site, as collected for storage.
type Snapshot struct {
	Site        string           `json:"site"`
	Date        string           `json:"date"`
	Rows        []PerformanceRow `json:"rows"`
	CollectedAt time.Time        `json:"collected_at"`
}
