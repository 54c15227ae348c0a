package models

// Direction of a detected trend.
type Direction string

const (
	DirectionRising  Direction = "rising"
	DirectionFalling Direction = "falling"
	DirectionStable  Direction = "stable"
)

type Breakpoint struct {
	Date          string  `json:"date"`
	ChangePercent float64 `json:"changePercent"`
	Direction     string  `json:"direction"` // up | down
}

type TrendAnalysis struct {
	Direction     Direction    `json:"direction"`
	Slope         float64      `json:"slope"`
	PercentChange float64      `json:"percentChange"`
	Volatility    float64      `json:"volatility"`
	Confidence    float64      `json:"confidence"`
	Breakpoints   []Breakpoint `json:"breakpoints"`
	Summary       string       `json:"summary"`
}

// KeyedTrend ties a trend to the query or page string it was computed for.
type KeyedTrend struct {
	Key   string        `json:"key"`
	Trend TrendAnalysis `json:"trend"`
}

// Performance labels a CTR relative to its position benchmark.
type Performance string

const (
	PerformanceExcellent    Performance = "excellent"
	PerformanceGood         Performance = "good"
	PerformanceAverage      Performance = "average"
	PerformanceBelowAverage Performance = "below_average"
	PerformancePoor         Performance = "poor"
)

type CtrAnalysis struct {
	Position    float64     `json:"position"`
	ActualCTR   float64     `json:"actualCtr"`
	ExpectedCTR float64     `json:"expectedCtr"`
	CTRGap      float64     `json:"ctrGap"`
	CTRRatio    float64     `json:"ctrRatio"`
	Performance Performance `json:"performance"`
}

// Intent is the searcher goal behind a query.
type Intent string

const (
	IntentInformational   Intent = "informational"
	IntentNavigational    Intent = "navigational"
	IntentTransactional   Intent = "transactional"
	IntentInvestigational Intent = "investigational"
	IntentProblemSolving  Intent = "problem_solving"
)

// Intents lists every intent class in a stable order.
var Intents = []Intent{
	IntentInformational,
	IntentNavigational,
	IntentTransactional,
	IntentInvestigational,
	IntentProblemSolving,
}

type ClassifiedQuery struct {
	Query      string  `json:"query"`
	Intent     Intent  `json:"intent"`
	SubType    string  `json:"subType,omitempty"`
	Confidence float64 `json:"confidence"`
}

// IntentDistribution counts classified queries per intent. Every intent is present.
type IntentDistribution map[Intent]int

// NewIntentDistribution returns a distribution with all intents at zero.
func NewIntentDistribution() IntentDistribution {
	d := make(IntentDistribution, len(Intents))
	for _, in := range Intents {
		d[in] = 0
	}
	return d
}

// Priority orders opportunities and recommendations.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Rank is 0 for critical up to 3 for low; unknown priorities sort last.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	default:
		return 4
	}
}

type ScoreFactor struct {
	Name         string  `json:"name"`
	Weight       float64 `json:"weight"`
	Value        float64 `json:"value"`
	Contribution float64 `json:"contribution"`
}

// OpportunityInput carries one row's metrics plus optional signals. Nil
// pointers fall back to defaults.
type OpportunityInput struct {
	Impressions float64  `json:"impressions"`
	Clicks      float64  `json:"clicks"`
	CTR         float64  `json:"ctr"`
	Position    float64  `json:"position"`
	ExpectedCTR *float64 `json:"expectedCtr,omitempty"`
	Trend       *float64 `json:"trend,omitempty"`
	QueryCount  *int     `json:"queryCount,omitempty"`
}

type OpportunityScore struct {
	Score    float64       `json:"score"`
	Priority Priority      `json:"priority"`
	Factors  []ScoreFactor `json:"factors"`
}

// ScoredOpportunity is an opportunity score attached to its query/page.
type ScoredOpportunity struct {
	Query       string           `json:"query,omitempty"`
	Page        string           `json:"page,omitempty"`
	Impressions float64          `json:"impressions"`
	Score       OpportunityScore `json:"score"`
}
