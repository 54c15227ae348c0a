package intent

import (
	"regexp"

	"SearchInsight/internal/domain/models"
)

// rule matches a normalized query. Rules are evaluated in order and the
// first match wins.
type rule struct {
	pattern    *regexp.Regexp
	intent     models.Intent
	subType    string
	confidence float64
}

func r(expr string, in models.Intent, sub string, conf float64) rule {
	return rule{pattern: regexp.MustCompile(expr), intent: in, subType: sub, confidence: conf}
}

// Problem solving outranks everything: "how to fix x" is a repair task, not
// a generic how-to.
var defaultRules = []rule{
	r(`\b(fix|fixing|repair|troubleshoot(ing)?|solve|resolve|debug)\b`, models.IntentProblemSolving, "troubleshooting", 0.9),
	r(`\b(not working|doesn'?t work|won'?t (start|load|open|turn on)|stopped working|broken|crash(es|ing)?|stuck)\b`, models.IntentProblemSolving, "malfunction", 0.85),
	r(`\b(error|errors|issue|issues|problem|problems|failed|failure)\b`, models.IntentProblemSolving, "error", 0.8),

	r(`\b(vs|versus|compare|comparison|compared to|difference between)\b`, models.IntentInvestigational, "comparison", 0.85),
	r(`\b(reviews?|rating|ratings|pros and cons|worth it)\b`, models.IntentInvestigational, "review", 0.8),
	r(`\b(alternatives?|similar to|competitors?)\b`, models.IntentInvestigational, "alternatives", 0.75),
	r(`\b(best|top|recommended)\b`, models.IntentInvestigational, "best_of", 0.8),

	r(`\b(buy|purchase|order|shop|for sale|add to cart)\b`, models.IntentTransactional, "purchase", 0.9),
	r(`\b(price|prices|pricing|cost|costs|cheap|cheapest|discount|deal|deals|coupon|promo)\b`, models.IntentTransactional, "pricing", 0.8),
	r(`\b(download|free trial|trial|sign ?up|subscribe|install|get started)\b`, models.IntentTransactional, "conversion", 0.8),
	r(`\b(hire|book|booking|quote|rent|rental)\b`, models.IntentTransactional, "service", 0.75),

	r(`\b(login|log in|sign ?in|account|dashboard|portal)\b`, models.IntentNavigational, "login", 0.85),
	r(`(\.(com|org|net|io|co)\b|\bwww\b|\bofficial (site|website)\b|\bhomepage\b|\bwebsite\b)`, models.IntentNavigational, "website", 0.8),
	r(`\b(contact|customer service|support|phone number|near me|address|hours|location)\b`, models.IntentNavigational, "local", 0.7),

	r(`^(how|what|why|when|where|who|which)\b`, models.IntentInformational, "question", 0.85),
	r(`\b(guide|tutorial|tips|examples?|meaning|definition|define|learn|ideas|explained|history of)\b`, models.IntentInformational, "guide", 0.8),
	r(`^(can|does|do|is|are|should|will|would|could)\b`, models.IntentInformational, "question", 0.7),
}

// questionPrefix matches queries phrased as questions.
var questionPrefix = regexp.MustCompile(`^(how|what|why|when|where|who|which|can|does|do|is|are|should|will)\b`)

// IsQuestion reports whether a query leads with an interrogative word.
func IsQuestion(query string) bool {
	return questionPrefix.MatchString(normalize(query))
}
