package models

import "time"

// Totals aggregates the rows behind a report.
type Totals struct {
	Rows        int     `json:"rows"`
	Queries     int     `json:"queries"`
	Pages       int     `json:"pages"`
	Clicks      float64 `json:"clicks"`
	Impressions float64 `json:"impressions"`
	CTR         float64 `json:"ctr"`
	Position    float64 `json:"position"` // impression-weighted
}

// InsightReport is the combined output of one analysis run for a site.
type InsightReport struct {
	Site            string              `json:"site"`
	StartDate       string              `json:"startDate"`
	EndDate         string              `json:"endDate"`
	GeneratedAt     time.Time           `json:"generatedAt"`
	Totals          Totals              `json:"totals"`
	CTRSummary      map[Performance]int `json:"ctrSummary"`
	Intents         IntentDistribution  `json:"intents"`
	Trends          []KeyedTrend        `json:"trends"`
	Opportunities   []ScoredOpportunity `json:"opportunities"`
	Recommendations []Recommendation    `json:"recommendations"`
	Errors          map[string]string   `json:"errors,omitempty"`
}

// SeriesTrend is a single key's daily series with its analysis.
type SeriesTrend struct {
	Site      string        `json:"site"`
	Dimension string        `json:"dimension"`
	Key       string        `json:"key"`
	Metric    string        `json:"metric"`
	StartDate string        `json:"startDate"`
	EndDate   string        `json:"endDate"`
	Points    []TrendPoint  `json:"points"`
	Trend     TrendAnalysis `json:"trend"`
}

// Classification is the result of classifying a batch of queries.
type Classification struct {
	Queries      []ClassifiedQuery  `json:"queries"`
	Distribution IntentDistribution `json:"distribution"`
}
