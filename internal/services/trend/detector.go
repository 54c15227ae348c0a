// Package trend detects direction, strength and breakpoints in dated series.
package trend

import (
	"fmt"
	"math"
	"sort"
	"time"

	"SearchInsight/internal/domain/models"
	"SearchInsight/pkg/util"
)

const (
	// slope/|mean| per day beyond which a series counts as moving
	directionThreshold = 0.005
	// a day-over-day move this many times the mean absolute move is a breakpoint
	breakpointFactor = 2.0

	strongConfidence   = 0.7
	moderateConfidence = 0.4
	highVolatility     = 0.5
	moderateVolatility = 0.2
)

type sample struct {
	at    time.Time
	date  string
	value float64
}

// Detect analyzes a series. Points are ordered by date first, so the result
// does not depend on input order. Points whose date cannot be parsed are
// ignored. Fewer than two usable points yields a neutral stable result.
func Detect(points []models.TrendPoint) models.TrendAnalysis {
	samples := prepare(points)
	if len(samples) < 2 {
		return insufficient()
	}

	origin := samples[0].at
	xs := make([]float64, len(samples))
	ys := make([]float64, len(samples))
	for i, s := range samples {
		xs[i] = util.DaysBetween(origin, s.at)
		ys[i] = s.value
	}

	slope, r2 := regress(xs, ys)
	mean := meanOf(ys)

	first, last := ys[0], ys[len(ys)-1]
	pct := 0.0
	if first != 0 {
		pct = (last - first) / math.Abs(first) * 100
	}

	vol := 0.0
	if mean != 0 {
		vol = stddev(ys, mean) / math.Abs(mean)
	}

	out := models.TrendAnalysis{
		Direction:     direction(slope, mean),
		Slope:         slope,
		PercentChange: pct,
		Volatility:    vol,
		Confidence:    r2,
		Breakpoints:   breakpoints(samples),
	}
	out.Summary = summarize(out, xs[len(xs)-1])
	return out
}

// DetectMany runs Detect for every keyed series; output is ordered by key.
func DetectMany(series map[string][]models.TrendPoint) []models.KeyedTrend {
	keys := make([]string, 0, len(series))
	for k := range series {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]models.KeyedTrend, 0, len(keys))
	for _, k := range keys {
		out = append(out, models.KeyedTrend{Key: k, Trend: Detect(series[k])})
	}
	return out
}

func prepare(points []models.TrendPoint) []sample {
	samples := make([]sample, 0, len(points))
	for _, p := range points {
		at, ok := util.ParseDate(p.Date)
		if !ok {
			continue
		}
		samples = append(samples, sample{at: at, date: p.Date, value: p.Value})
	}
	sort.SliceStable(samples, func(i, j int) bool {
		if !samples[i].at.Equal(samples[j].at) {
			return samples[i].at.Before(samples[j].at)
		}
		return samples[i].value < samples[j].value
	})
	return samples
}

func insufficient() models.TrendAnalysis {
	return models.TrendAnalysis{
		Direction:   models.DirectionStable,
		Breakpoints: []models.Breakpoint{},
		Summary:     "Insufficient data for trend analysis (need at least 2 data points).",
	}
}

// regress fits y = a + b*x by least squares and returns b and R² in [0,1].
func regress(xs, ys []float64) (float64, float64) {
	mx, my := meanOf(xs), meanOf(ys)
	var sxx, sxy, syy float64
	for i := range xs {
		dx, dy := xs[i]-mx, ys[i]-my
		sxx += dx * dx
		sxy += dx * dy
		syy += dy * dy
	}
	if sxx == 0 {
		return 0, 0
	}
	slope := sxy / sxx
	if syy == 0 {
		return slope, 0
	}
	intercept := my - slope*mx
	var ssRes float64
	for i := range xs {
		r := ys[i] - (intercept + slope*xs[i])
		ssRes += r * r
	}
	r2 := 1 - ssRes/syy
	return slope, math.Min(1, math.Max(0, r2))
}

func breakpoints(samples []sample) []models.Breakpoint {
	out := []models.Breakpoint{}
	if len(samples) < 2 {
		return out
	}
	deltas := make([]float64, len(samples)-1)
	var sumAbs float64
	for i := 1; i < len(samples); i++ {
		deltas[i-1] = samples[i].value - samples[i-1].value
		sumAbs += math.Abs(deltas[i-1])
	}
	meanAbs := sumAbs / float64(len(deltas))
	if meanAbs == 0 {
		return out
	}
	for i, d := range deltas {
		if math.Abs(d) <= breakpointFactor*meanAbs {
			continue
		}
		prev := samples[i].value
		change := 0.0
		if prev != 0 {
			change = math.Abs(d) / math.Abs(prev) * 100
		}
		dir := "up"
		if d < 0 {
			dir = "down"
		}
		out = append(out, models.Breakpoint{
			Date:          samples[i+1].date,
			ChangePercent: change,
			Direction:     dir,
		})
	}
	return out
}

func direction(slope, mean float64) models.Direction {
	if mean == 0 {
		return models.DirectionStable
	}
	norm := slope / math.Abs(mean)
	switch {
	case norm > directionThreshold:
		return models.DirectionRising
	case norm < -directionThreshold:
		return models.DirectionFalling
	default:
		return models.DirectionStable
	}
}

func summarize(a models.TrendAnalysis, spanDays float64) string {
	var head string
	switch a.Direction {
	case models.DirectionRising:
		head = "Rising trend"
	case models.DirectionFalling:
		head = "Falling trend"
	default:
		head = "Stable trend"
	}

	conf := "weak"
	switch {
	case a.Confidence >= strongConfidence:
		conf = "strong"
	case a.Confidence >= moderateConfidence:
		conf = "moderate"
	}

	vol := "low"
	switch {
	case a.Volatility > highVolatility:
		vol = "high"
	case a.Volatility > moderateVolatility:
		vol = "moderate"
	}

	var bp string
	switch n := len(a.Breakpoints); n {
	case 0:
		bp = "no significant breakpoints"
	case 1:
		bp = "1 significant breakpoint"
	default:
		bp = fmt.Sprintf("%d significant breakpoints", n)
	}

	return fmt.Sprintf("%s: %+.1f%% change over %.0f days (%s confidence, %s volatility), %s.",
		head, a.PercentChange, spanDays, conf, vol, bp)
}

func meanOf(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	var s float64
	for _, x := range v {
		s += x
	}
	return s / float64(len(v))
}

// stddev is the population standard deviation.
func stddev(v []float64, mean float64) float64 {
	var s float64
	for _, x := range v {
		d := x - mean
		s += d * d
	}
	return math.Sqrt(s / float64(len(v)))
}

// Detector adapts Detect to service.TrendDetector.
type Detector struct{}

func NewDetector() *Detector { return &Detector{} }

func (Detector) Detect(points []models.TrendPoint) models.TrendAnalysis { return Detect(points) }
