package repository

// Dimension is a Search Console grouping key.
type Dimension string

const (
	DimQuery   Dimension = "query"
	DimPage    Dimension = "page"
	DimDate    Dimension = "date"
	DimDevice  Dimension = "device"
	DimCountry Dimension = "country"
)

// IsValidDimension returns true if d is a supported dimension.
func IsValidDimension(d Dimension) bool {
	switch d {
	case DimQuery, DimPage, DimDate, DimDevice, DimCountry:
		return true
	default:
		return false
	}
}

// NormalizeDimension converts raw string to a valid dimension (or query).
func NormalizeDimension(s string) Dimension {
	d := Dimension(s)
	if IsValidDimension(d) {
		return d
	}
	return DimQuery
}

// Metric selects which row value a series is built from.
type Metric string

const (
	MetricClicks      Metric = "clicks"
	MetricImpressions Metric = "impressions"
	MetricCTR         Metric = "ctr"
	MetricPosition    Metric = "position"
)

// NormalizeMetric converts raw string to a valid metric (or clicks).
func NormalizeMetric(s string) Metric {
	switch m := Metric(s); m {
	case MetricClicks, MetricImpressions, MetricCTR, MetricPosition:
		return m
	default:
		return MetricClicks
	}
}
