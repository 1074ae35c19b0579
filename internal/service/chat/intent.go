package chat

import (
	"regexp"
	"strings"
)

// Intent classifies how much report context a message deserves when a thread
// is first opened. The classification is a tunable policy, not a contract:
// a misclassified greeting costs a little prompt size, nothing more.
type Intent int

const (
	// IntentGreeting is small talk; no briefing needed.
	IntentGreeting Intent = iota
	// IntentConversational is a light question; a summary-level briefing.
	IntentConversational
	// IntentSubstantive engages the report; full briefing.
	IntentSubstantive
)

var (
	greetingRe = regexp.MustCompile(`(?i)^\s*(hi|hiya|hey|hello|howdy|yo|good (morning|afternoon|evening)|thanks?|thank you|ok(ay)?|cool|great)\s*[!.?]*\s*$`)

	businessKeywords = []string{
		"marketing", "website", "seo", "traffic", "conversion", "audience",
		"revenue", "budget", "campaign", "social", "content", "brand",
		"report", "audit", "opportunity", "recommendation", "roadmap",
		"competitor", "funnel", "strategy", "growth", "analytics",
	}
)

// ClassifyIntent buckets a user message by context richness.
func ClassifyIntent(message string) Intent {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" || greetingRe.MatchString(trimmed) {
		return IntentGreeting
	}
	lower := strings.ToLower(trimmed)
	for _, kw := range businessKeywords {
		if strings.Contains(lower, kw) {
			return IntentSubstantive
		}
	}
	// Longer free-form questions usually reference the report even without a
	// keyword hit.
	if len(trimmed) > 120 {
		return IntentSubstantive
	}
	return IntentConversational
}
