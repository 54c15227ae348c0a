package recommend

import (
	"fmt"
	"strings"

	"SearchInsight/internal/domain/models"
	"SearchInsight/internal/services/benchmark"
	"SearchInsight/internal/services/intent"
)

const (
	titleMaxPosition    = 3
	titleMinImpressions = 100
	titleMaxRatio       = 0.6
	titleMaxRawCTR      = 0.05

	pageOneMaxPosition = 10
	pageTwoMaxPosition = 20
	expansionMinImpr   = 1000

	lowValueMaxPosition = 5
	lowValueMaxImpr     = 10

	questionMinImpr     = 100
	questionMinPosition = 3

	refreshMinImpr = 100
)

func titleOptimization(row models.PerformanceRow, ca *models.CtrAnalysis) *models.Recommendation {
	if row.Position > titleMaxPosition || row.Impressions < titleMinImpressions {
		return nil
	}
	expected := benchmark.ExpectedCTR(row.Position)
	if ca != nil {
		if ca.CTRRatio >= titleMaxRatio {
			return nil
		}
		expected = ca.ExpectedCTR
	} else if row.CTR >= titleMaxRawCTR {
		return nil
	}

	missed := (expected - row.CTR) * row.Impressions
	data := rowData(row)
	data["expectedCtr"] = expected
	if ca != nil {
		data["ctrRatio"] = ca.CTRRatio
	}
	return &models.Recommendation{
		Type:     models.RecTitleOptimization,
		Priority: models.PriorityHigh,
		Effort:   models.EffortLow,
		Title:    fmt.Sprintf("Rewrite title and meta description for %q", label(row)),
		Description: fmt.Sprintf("Ranks at position %.1f with %.0f impressions, but CTR is %s against an expected %s. "+
			"The snippet is not earning the clicks its ranking deserves.",
			row.Position, row.Impressions, pct(row.CTR), pct(expected)),
		Impact: fmt.Sprintf("Up to ~%.0f additional clicks at benchmark CTR.", positive(missed)),
		Data:   data,
	}
}

func contentExpansion(row models.PerformanceRow) *models.Recommendation {
	if row.Position <= titleMaxPosition || row.Position > pageOneMaxPosition || row.Impressions < expansionMinImpr {
		return nil
	}
	target := benchmark.ExpectedCTR(titleMaxPosition)
	return &models.Recommendation{
		Type:     models.RecContentExpansion,
		Priority: models.PriorityHigh,
		Effort:   models.EffortMedium,
		Title:    fmt.Sprintf("Expand content to reach the top 3 for %q", label(row)),
		Description: fmt.Sprintf("Ranks at position %.1f on page one with %.0f impressions. "+
			"Deepen topical coverage, answer related questions and add internal links.",
			row.Position, row.Impressions),
		Impact: fmt.Sprintf("A top-3 ranking typically earns %s CTR, ~%.0f clicks at current demand.",
			pct(target), target*row.Impressions),
		Data: rowData(row),
	}
}

func pageTwoOptimization(row models.PerformanceRow) *models.Recommendation {
	if row.Position <= pageOneMaxPosition || row.Position > pageTwoMaxPosition || row.Impressions < expansionMinImpr {
		return nil
	}
	target := benchmark.ExpectedCTR(pageOneMaxPosition)
	return &models.Recommendation{
		Type:     models.RecPageTwoOptimization,
		Priority: models.PriorityMedium,
		Effort:   models.EffortHigh,
		Title:    fmt.Sprintf("Move %q from page two onto page one", label(row)),
		Description: fmt.Sprintf("Ranks at position %.1f with %.0f impressions. "+
			"Strengthen the page with fresh content, backlinks and internal links from related pages.",
			row.Position, row.Impressions),
		Impact: fmt.Sprintf("Even the bottom of page one earns %s CTR, ~%.0f clicks at current demand.",
			pct(target), target*row.Impressions),
		Data: rowData(row),
	}
}

func lowValueKeyword(row models.PerformanceRow) *models.Recommendation {
	if row.Position > lowValueMaxPosition || row.Impressions >= lowValueMaxImpr {
		return nil
	}
	return &models.Recommendation{
		Type:        models.RecLowValueKeyword,
		Priority:    models.PriorityLow,
		Effort:      models.EffortLow,
		Title:       fmt.Sprintf("Deprioritize low-volume keyword %q", label(row)),
		Description: fmt.Sprintf("Already ranks at position %.1f but only drew %.0f impressions.", row.Position, row.Impressions),
		Impact:      "Minimal; focus effort on higher-demand queries.",
		Data:        rowData(row),
	}
}

func questionContent(row models.PerformanceRow) *models.Recommendation {
	if row.Query == "" || !intent.IsQuestion(row.Query) {
		return nil
	}
	if row.Impressions < questionMinImpr || row.Position <= questionMinPosition {
		return nil
	}
	return &models.Recommendation{
		Type:     models.RecQuestionContent,
		Priority: models.PriorityMedium,
		Effort:   models.EffortMedium,
		Title:    fmt.Sprintf("Answer %q directly on the page", row.Query),
		Description: fmt.Sprintf("Question query at position %.1f with %.0f impressions. "+
			"Add a concise answer near the top and an FAQ section to compete for the featured snippet.",
			row.Position, row.Impressions),
		Impact: "Featured snippet and People Also Ask visibility.",
		Data:   rowData(row),
	}
}

// consolidation flags queries served by more than one page. Groups and pages
// keep first-seen order.
func consolidation(rows []models.PerformanceRow) []models.Recommendation {
	type group struct {
		pages       []string
		seen        map[string]struct{}
		impressions float64
		clicks      float64
	}
	groups := make(map[string]*group)
	order := make([]string, 0)
	for _, r := range rows {
		if r.Query == "" || r.Page == "" {
			continue
		}
		g, ok := groups[r.Query]
		if !ok {
			g = &group{seen: make(map[string]struct{})}
			groups[r.Query] = g
			order = append(order, r.Query)
		}
		g.impressions += r.Impressions
		g.clicks += r.Clicks
		if _, dup := g.seen[r.Page]; dup {
			continue
		}
		g.seen[r.Page] = struct{}{}
		g.pages = append(g.pages, r.Page)
	}

	var out []models.Recommendation
	for _, q := range order {
		g := groups[q]
		if len(g.pages) < 2 {
			continue
		}
		out = append(out, models.Recommendation{
			Type:     models.RecConsolidation,
			Priority: models.PriorityHigh,
			Effort:   models.EffortMedium,
			Title:    fmt.Sprintf("Resolve keyword cannibalization for %q", q),
			Description: fmt.Sprintf("%d pages compete for this query: %s. "+
				"Merge them or pick a canonical page and re-target the others.",
				len(g.pages), strings.Join(g.pages, ", ")),
			Impact: fmt.Sprintf("Concentrates %.0f impressions on a single stronger page.", g.impressions),
			Data: map[string]any{
				"query":            q,
				"pages":            append([]string(nil), g.pages...),
				"totalImpressions": g.impressions,
				"totalClicks":      g.clicks,
			},
		})
	}
	return out
}

// contentRefresh flags falling trends. A trend is matched to the first row
// whose query or page equals its key; when such a row exists it must carry
// enough impressions to matter.
func contentRefresh(trends []models.KeyedTrend, rows []models.PerformanceRow) []models.Recommendation {
	var out []models.Recommendation
	for _, kt := range trends {
		if kt.Trend.Direction != models.DirectionFalling {
			continue
		}
		row, matched := matchRow(kt.Key, rows)
		if matched && row.Impressions < refreshMinImpr {
			continue
		}

		data := map[string]any{
			"key":           kt.Key,
			"percentChange": kt.Trend.PercentChange,
			"slope":         kt.Trend.Slope,
			"confidence":    kt.Trend.Confidence,
		}
		if matched {
			for k, v := range rowData(row) {
				data[k] = v
			}
		}
		out = append(out, models.Recommendation{
			Type:        models.RecContentRefresh,
			Priority:    models.PriorityCritical,
			Effort:      models.EffortMedium,
			Title:       fmt.Sprintf("Refresh declining content for %q", kt.Key),
			Description: kt.Trend.Summary + " Update facts, examples and dates, and re-check search intent.",
			Impact:      fmt.Sprintf("Stops a %.1f%% decline before rankings erode further.", -kt.Trend.PercentChange),
			Data:        data,
		})
	}
	return out
}

func matchRow(key string, rows []models.PerformanceRow) (models.PerformanceRow, bool) {
	for _, r := range rows {
		if r.Query == key || r.Page == key {
			return r, true
		}
	}
	return models.PerformanceRow{}, false
}

// opportunityFocus surfaces opportunities scored critical or high.
func opportunityFocus(opps []models.ScoredOpportunity) []models.Recommendation {
	var out []models.Recommendation
	for _, o := range opps {
		p := o.Score.Priority
		if p != models.PriorityCritical && p != models.PriorityHigh {
			continue
		}
		name := o.Query
		if name == "" {
			name = o.Page
		}
		data := map[string]any{
			"score":       o.Score.Score,
			"impressions": o.Impressions,
		}
		if o.Query != "" {
			data["query"] = o.Query
		}
		if o.Page != "" {
			data["page"] = o.Page
		}
		out = append(out, models.Recommendation{
			Type:        models.RecOpportunityFocus,
			Priority:    p,
			Effort:      models.EffortMedium,
			Title:       fmt.Sprintf("Prioritize %q (opportunity score %.0f)", name, o.Score.Score),
			Description: fmt.Sprintf("Scores %.2f/100 on impressions, CTR gap, position, trend and query breadth.", o.Score.Score),
			Impact:      fmt.Sprintf("One of the largest traffic upsides in the property (%.0f impressions).", o.Impressions),
			Data:        data,
		})
	}
	return out
}

func rowData(row models.PerformanceRow) map[string]any {
	d := map[string]any{
		"impressions": row.Impressions,
		"clicks":      row.Clicks,
		"ctr":         row.CTR,
		"position":    row.Position,
	}
	if row.Query != "" {
		d["query"] = row.Query
	}
	if row.Page != "" {
		d["page"] = row.Page
	}
	return d
}

func label(row models.PerformanceRow) string {
	if row.Query != "" {
		return row.Query
	}
	return row.Page
}

func pct(v float64) string {
	return fmt.Sprintf("%.2f%%", v*100)
}

func positive(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
