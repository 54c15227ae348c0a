package trend

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SearchInsight/internal/domain/models"
)

func daily(values ...float64) []models.TrendPoint {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.TrendPoint, len(values))
	for i, v := range values {
		out[i] = models.TrendPoint{Date: start.AddDate(0, 0, i).Format("2006-01-02"), Value: v}
	}
	return out
}

func TestDetectInsufficientData(t *testing.T) {
	for _, pts := range [][]models.TrendPoint{nil, daily(42)} {
		got := Detect(pts)
		assert.Equal(t, models.DirectionStable, got.Direction)
		assert.Zero(t, got.Slope)
		assert.Zero(t, got.Confidence)
		assert.Empty(t, got.Breakpoints)
		assert.Contains(t, got.Summary, "Insufficient data")
	}
}

func TestDetectLinearRise(t *testing.T) {
	vals := make([]float64, 10)
	for i := range vals {
		vals[i] = 100 + 10*float64(i)
	}
	got := Detect(daily(vals...))

	assert.Equal(t, models.DirectionRising, got.Direction)
	assert.InDelta(t, 10, got.Slope, 1e-9)
	assert.InDelta(t, 1, got.Confidence, 1e-9)
	assert.InDelta(t, 90, got.PercentChange, 1e-9)
	assert.Empty(t, got.Breakpoints)
	assert.Contains(t, got.Summary, "Rising trend")
	assert.Contains(t, got.Summary, "strong confidence")
}

func TestDetectLinearFall(t *testing.T) {
	got := Detect(daily(200, 180, 160, 140, 120, 100))
	assert.Equal(t, models.DirectionFalling, got.Direction)
	assert.InDelta(t, -20, got.Slope, 1e-9)
	assert.InDelta(t, -50, got.PercentChange, 1e-9)
}

func TestDetectFlatSeries(t *testing.T) {
	got := Detect(daily(50, 50, 50, 50))
	assert.Equal(t, models.DirectionStable, got.Direction)
	assert.Zero(t, got.Slope)
	assert.Zero(t, got.Confidence)
	assert.Zero(t, got.Volatility)
	assert.Empty(t, got.Breakpoints)
}

func TestDetectNoiseIsStable(t *testing.T) {
	got := Detect(daily(1000, 1001, 1000, 1001))
	assert.Equal(t, models.DirectionStable, got.Direction)
	assert.InDelta(t, 0.2, got.Slope, 1e-9)
}

func TestDetectIsOrderIndependent(t *testing.T) {
	pts := daily(12, 15, 11, 30, 28, 27, 35, 40, 38, 52)
	want := Detect(pts)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 5; i++ {
		shuffled := append([]models.TrendPoint(nil), pts...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		assert.Equal(t, want, Detect(shuffled), "shuffle %d", i)
	}
}

func TestDetectSingleBreakpoint(t *testing.T) {
	got := Detect(daily(100, 101, 100, 101, 100, 200))
	require.Len(t, got.Breakpoints, 1)
	bp := got.Breakpoints[0]
	assert.Equal(t, "2024-05-06", bp.Date)
	assert.Equal(t, "up", bp.Direction)
	assert.InDelta(t, 100, bp.ChangePercent, 1e-9)
	assert.Contains(t, got.Summary, "1 significant breakpoint")
}

func TestDetectDropBreakpoint(t *testing.T) {
	got := Detect(daily(80, 81, 80, 81, 80, 20, 21))
	require.Len(t, got.Breakpoints, 1)
	assert.Equal(t, "down", got.Breakpoints[0].Direction)
	assert.InDelta(t, 75, got.Breakpoints[0].ChangePercent, 1e-9)
}

func TestDetectConfidenceBounded(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 50; i++ {
		vals := make([]float64, 3+rng.Intn(20))
		for j := range vals {
			vals[j] = rng.Float64()*1000 - 200
		}
		got := Detect(daily(vals...))
		assert.GreaterOrEqual(t, got.Confidence, 0.0)
		assert.LessOrEqual(t, got.Confidence, 1.0)
		assert.GreaterOrEqual(t, got.Volatility, 0.0)
	}
}

func TestDetectZeroFirstValue(t *testing.T) {
	got := Detect(daily(0, 5, 10))
	assert.Zero(t, got.PercentChange)
	assert.Equal(t, models.DirectionRising, got.Direction)
}

func TestDetectFractionalDays(t *testing.T) {
	got := Detect([]models.TrendPoint{
		{Date: "2024-05-01T00:00:00Z", Value: 0},
		{Date: "2024-05-01T12:00:00Z", Value: 1},
	})
	assert.InDelta(t, 2, got.Slope, 1e-9)
}

func TestDetectSkipsUnparseableDates(t *testing.T) {
	pts := append(daily(1, 2), models.TrendPoint{Date: "not a date", Value: 9000})
	got := Detect(pts)
	assert.InDelta(t, 100, got.PercentChange, 1e-9)
}

func TestDetectDropsCompactDigitDates(t *testing.T) {
	pts := append(daily(1, 2), models.TrendPoint{Date: "20240101", Value: 9000})
	got := Detect(pts)
	assert.InDelta(t, 100, got.PercentChange, 1e-9)
}

func TestDetectMany(t *testing.T) {
	series := map[string][]models.TrendPoint{
		"zeta":  daily(10, 20, 30),
		"alpha": daily(30, 20, 10),
	}
	got := DetectMany(series)
	require.Len(t, got, 2)
	assert.Equal(t, "alpha", got[0].Key)
	assert.Equal(t, models.DirectionFalling, got[0].Trend.Direction)
	assert.Equal(t, "zeta", got[1].Key)
	assert.Equal(t, models.DirectionRising, got[1].Trend.Direction)
}

func ExampleDetect() {
	a := Detect(daily(100, 110, 120, 130))
	fmt.Println(a.Direction)
	// Output: rising
}
