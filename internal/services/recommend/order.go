package recommend

import (
	"encoding/json"
	"sort"

	"SearchInsight/internal/domain/models"
)

// Sort returns a copy ordered by priority (critical first), then by
// descending impressions from the data bag. The input is not modified.
func Sort(recs []models.Recommendation) []models.Recommendation {
	out := append([]models.Recommendation(nil), recs...)
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := out[i].Priority.Rank(), out[j].Priority.Rank()
		if ri != rj {
			return ri < rj
		}
		return impressionsOf(out[i]) > impressionsOf(out[j])
	})
	return out
}

// Deduplicate sorts, then keeps the first recommendation per
// (type, query, page). Recommendations without both a query and a page are
// always kept. The input is not modified.
func Deduplicate(recs []models.Recommendation) []models.Recommendation {
	type key struct {
		kind        models.RecommendationType
		query, page string
	}
	sorted := Sort(recs)
	seen := make(map[key]struct{}, len(sorted))
	out := make([]models.Recommendation, 0, len(sorted))
	for _, r := range sorted {
		q, p := stringOf(r.Data, "query"), stringOf(r.Data, "page")
		if q == "" || p == "" {
			out = append(out, r)
			continue
		}
		k := key{kind: r.Type, query: q, page: p}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}

func impressionsOf(r models.Recommendation) float64 {
	if v, ok := number(r.Data["impressions"]); ok {
		return v
	}
	if v, ok := number(r.Data["totalImpressions"]); ok {
		return v
	}
	return 0
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func stringOf(data map[string]any, k string) string {
	s, _ := data[k].(string)
	return s
}
