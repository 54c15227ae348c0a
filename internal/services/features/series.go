// Package features derives series and aggregates from raw performance rows.
package features

import (
	"sort"

	"SearchInsight/internal/domain/models"
	"SearchInsight/internal/domain/repository"
)

type dayAgg struct {
	clicks, impressions, weightedPos float64
}

// BuildSeries groups dated rows by the query or page dimension and returns
// one metric series per key. Rows without a date or key are skipped. Rows
// sharing a key and date are merged: clicks and impressions add up, CTR is
// recomputed and position is impression weighted.
func BuildSeries(rows []models.PerformanceRow, dim repository.Dimension, metric repository.Metric) map[string][]models.TrendPoint {
	byKey := make(map[string]map[string]*dayAgg)
	for _, r := range rows {
		key := KeyOf(r, dim)
		if key == "" || r.Date == "" {
			continue
		}
		days, ok := byKey[key]
		if !ok {
			days = make(map[string]*dayAgg)
			byKey[key] = days
		}
		a, ok := days[r.Date]
		if !ok {
			a = &dayAgg{}
			days[r.Date] = a
		}
		a.clicks += r.Clicks
		a.impressions += r.Impressions
		a.weightedPos += r.Position * r.Impressions
	}

	out := make(map[string][]models.TrendPoint, len(byKey))
	for key, days := range byKey {
		dates := make([]string, 0, len(days))
		for d := range days {
			dates = append(dates, d)
		}
		sort.Strings(dates)
		pts := make([]models.TrendPoint, 0, len(dates))
		for _, d := range dates {
			pts = append(pts, models.TrendPoint{Date: d, Value: metricValue(days[d], metric)})
		}
		out[key] = pts
	}
	return out
}

// SeriesFromRows turns rows that are already one-per-day into a series.
func SeriesFromRows(rows []models.PerformanceRow, metric repository.Metric) []models.TrendPoint {
	pts := make([]models.TrendPoint, 0, len(rows))
	for _, r := range rows {
		if r.Date == "" {
			continue
		}
		a := &dayAgg{clicks: r.Clicks, impressions: r.Impressions, weightedPos: r.Position * r.Impressions}
		v := metricValue(a, metric)
		if metric == repository.MetricCTR && r.Impressions == 0 {
			v = r.CTR
		}
		pts = append(pts, models.TrendPoint{Date: r.Date, Value: v})
	}
	return pts
}

func metricValue(a *dayAgg, metric repository.Metric) float64 {
	switch metric {
	case repository.MetricImpressions:
		return a.impressions
	case repository.MetricCTR:
		if a.impressions == 0 {
			return 0
		}
		return a.clicks / a.impressions
	case repository.MetricPosition:
		if a.impressions == 0 {
			return 0
		}
		return a.weightedPos / a.impressions
	default:
		return a.clicks
	}
}

// KeyOf returns the row value for a query or page dimension.
func KeyOf(r models.PerformanceRow, dim repository.Dimension) string {
	switch dim {
	case repository.DimPage:
		return r.Page
	case repository.DimQuery:
		return r.Query
	case repository.DimDevice:
		return r.Device
	case repository.DimCountry:
		return r.Country
	default:
		return r.Date
	}
}

// TopKeys returns up to n keys for dim ordered by total impressions, ties by key.
func TopKeys(rows []models.PerformanceRow, dim repository.Dimension, n int) []string {
	if n <= 0 {
		return nil
	}
	totals := make(map[string]float64)
	for _, r := range rows {
		if k := KeyOf(r, dim); k != "" {
			totals[k] += r.Impressions
		}
	}
	keys := make([]string, 0, len(totals))
	for k := range totals {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if totals[keys[i]] != totals[keys[j]] {
			return totals[keys[i]] > totals[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > n {
		keys = keys[:n]
	}
	return keys
}

// Summarize computes report totals. Position is impression weighted.
func Summarize(rows []models.PerformanceRow) models.Totals {
	t := models.Totals{Rows: len(rows)}
	queries := make(map[string]struct{})
	pages := make(map[string]struct{})
	var weightedPos float64
	for _, r := range rows {
		t.Clicks += r.Clicks
		t.Impressions += r.Impressions
		weightedPos += r.Position * r.Impressions
		if r.Query != "" {
			queries[r.Query] = struct{}{}
		}
		if r.Page != "" {
			pages[r.Page] = struct{}{}
		}
	}
	t.Queries = len(queries)
	t.Pages = len(pages)
	if t.Impressions > 0 {
		t.CTR = t.Clicks / t.Impressions
		t.Position = weightedPos / t.Impressions
	}
	return t
}

// Queries lists distinct non-empty queries in first-seen order.
func Queries(rows []models.PerformanceRow) []string {
	seen := make(map[string]struct{}, len(rows))
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		if r.Query == "" {
			continue
		}
		if _, ok := seen[r.Query]; ok {
			continue
		}
		seen[r.Query] = struct{}{}
		out = append(out, r.Query)
	}
	return out
}
