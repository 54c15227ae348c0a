// Package intent classifies search queries into intent classes using an
// ordered list of patterns.
package intent

import (
	"strings"

	"SearchInsight/internal/domain/models"
)

const (
	brandConfidence    = 0.4
	fallbackConfidence = 0.3
	minBrandLength     = 3
)

// Classify assigns an intent to a single query.
func Classify(query string) models.ClassifiedQuery {
	q := normalize(query)
	for _, rl := range defaultRules {
		if rl.pattern.MatchString(q) {
			return models.ClassifiedQuery{
				Query:      query,
				Intent:     rl.intent,
				SubType:    rl.subType,
				Confidence: rl.confidence,
			}
		}
	}
	if q != "" && !strings.Contains(q, " ") && len([]rune(q)) >= minBrandLength {
		return models.ClassifiedQuery{Query: query, Intent: models.IntentNavigational, SubType: "brand", Confidence: brandConfidence}
	}
	return models.ClassifiedQuery{Query: query, Intent: models.IntentInformational, Confidence: fallbackConfidence}
}

// ClassifyQueries classifies each query; output is index-aligned with input.
func ClassifyQueries(queries []string) []models.ClassifiedQuery {
	out := make([]models.ClassifiedQuery, len(queries))
	for i, q := range queries {
		out[i] = Classify(q)
	}
	return out
}

// Distribution counts classified queries per intent; every intent is present.
func Distribution(classified []models.ClassifiedQuery) models.IntentDistribution {
	d := models.NewIntentDistribution()
	for _, c := range classified {
		d[c.Intent]++
	}
	return d
}

func normalize(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

// Classifier adapts the package functions to service.IntentClassifier.
type Classifier struct{}

func NewClassifier() *Classifier { return &Classifier{} }

func (Classifier) Classify(query string) models.ClassifiedQuery { return Classify(query) }

func (Classifier) ClassifyAll(queries []string) []models.ClassifiedQuery {
	return ClassifyQueries(queries)
}

func (Classifier) Distribution(classified []models.ClassifiedQuery) models.IntentDistribution {
	return Distribution(classified)
}
