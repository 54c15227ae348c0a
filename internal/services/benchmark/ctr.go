// Package benchmark holds the position-based CTR curve and compares observed
// click-through rates against it.
package benchmark

import (
	"math"

	"SearchInsight/internal/domain/models"
)

// topTen is the expected CTR for organic ranks 1..10.
var topTen = [10]float64{0.317, 0.247, 0.187, 0.133, 0.095, 0.069, 0.051, 0.038, 0.029, 0.022}

const (
	pageTwoCTR = 0.015 // ranks 11..20
	deepCTR    = 0.005 // beyond rank 20
)

// Performance thresholds on actual/expected.
const (
	excellentRatio    = 1.5
	goodRatio         = 1.1
	averageRatio      = 0.8
	belowAverageRatio = 0.5
)

// ExpectedCTR returns the benchmark CTR for a position. The position is
// rounded to the nearest rank and clamped to at least 1. NaN input is
// treated as rank 1.
func ExpectedCTR(position float64) float64 {
	rank := math.Round(position)
	if !(rank >= 1) {
		rank = 1
	}
	switch {
	case rank <= 10:
		return topTen[int(rank)-1]
	case rank <= 20:
		return pageTwoCTR
	default:
		return deepCTR
	}
}

// AnalyzeCTR compares actualCTR with the benchmark for position.
func AnalyzeCTR(position, actualCTR float64) models.CtrAnalysis {
	expected := ExpectedCTR(position)
	ratio := actualCTR / expected
	return models.CtrAnalysis{
		Position:    position,
		ActualCTR:   actualCTR,
		ExpectedCTR: expected,
		CTRGap:      actualCTR - expected,
		CTRRatio:    ratio,
		Performance: Classify(ratio),
	}
}

// BatchAnalyzeCTR analyzes each row; the result is index-aligned with rows.
func BatchAnalyzeCTR(rows []models.PerformanceRow) []models.CtrAnalysis {
	out := make([]models.CtrAnalysis, len(rows))
	for i, r := range rows {
		out[i] = AnalyzeCTR(r.Position, r.CTR)
	}
	return out
}

// Classify maps an actual/expected ratio onto a performance label.
func Classify(ratio float64) models.Performance {
	switch {
	case ratio >= excellentRatio:
		return models.PerformanceExcellent
	case ratio >= goodRatio:
		return models.PerformanceGood
	case ratio >= averageRatio:
		return models.PerformanceAverage
	case ratio >= belowAverageRatio:
		return models.PerformanceBelowAverage
	default:
		return models.PerformancePoor
	}
}

// Model adapts the package functions to service.CTRBenchmark.
type Model struct{}

func NewModel() *Model { return &Model{} }

func (Model) Expected(position float64) float64 { return ExpectedCTR(position) }

func (Model) Analyze(position, actualCTR float64) models.CtrAnalysis {
	return AnalyzeCTR(position, actualCTR)
}

func (Model) AnalyzeBatch(rows []models.PerformanceRow) []models.CtrAnalysis {
	return BatchAnalyzeCTR(rows)
}
