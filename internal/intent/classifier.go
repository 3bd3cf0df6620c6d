// Package intent implements C10: a deterministic, data-driven intent
// classifier plus a metaphor rewriter. Per spec.md §9, classification is a
// lookup over pattern sets (sum-type Intent, data-driven keyword/phrase
// lists) rather than ad-hoc if/else string tests — new metaphors or topics
// are additive entries in the tables below, never new branches.
package intent

import (
	"strings"

	"github.com/nlanalytics/gatewaycore/internal/domain"
)

// irrelevantPhrases are explicit topical phrases that signal the message is
// not about the user's business data at all. Classification defaults to
// data_query, so this list only needs to cover genuinely off-topic asks —
// it must never be so broad that it swallows legitimate business questions.
var irrelevantPhrases = []string{
	"capital of",
	"recipe for",
	"who is the president",
	"who won the",
	"what time is it",
	"tell me a joke",
	"weather forecast for", // literal meteorology, distinct from the "business weather" metaphor
	"what's the weather like in",
	"how tall is",
	"translate this",
	"what year did",
	"define the word",
}

// faqKeywords signal a question about the product itself rather than a
// request to analyze the user's connected data.
var faqKeywords = []string{
	"how do i upload",
	"how do i connect",
	"what plans do you offer",
	"how much does this cost",
	"pricing",
	"what is this tool",
	"what does this product do",
	"how does this work",
	"contact support",
	"cancel my subscription",
	"billing question",
}

// Classify returns the intent for a raw user message. It never errors and
// performs no I/O (spec.md §4.2).
func Classify(message string) domain.Intent {
	lower := strings.ToLower(strings.TrimSpace(message))

	for _, phrase := range irrelevantPhrases {
		if strings.Contains(lower, phrase) {
			return domain.IntentIrrelevant
		}
	}

	for _, phrase := range faqKeywords {
		if strings.Contains(lower, phrase) {
			return domain.IntentFAQProduct
		}
	}

	return domain.IntentDataQuery
}

// IsVague reports whether a data_query message is too unspecific to plan
// directly and should go through the DefaultInsightBranch instead of the
// planner (spec.md §4.12). This list is intentionally small; a message that
// contains any of these phrases is vague even if it also names a metric or
// column.
var vaguePatterns = []string{
	"analyze",
	"analyse",
	"tell me about",
	"give me an overview",
	"overview",
	"warning signs",
	"how are we doing",
	"how's business",
	"summary",
	"summarize",
	"top ",
	"trend",
	"trends",
	"insights",
	"what's going on",
}

// IsVague checks a message (already intent-classified as data_query, and
// already past metaphor rewriting) for vague phrasing.
func IsVague(message string) bool {
	lower := strings.ToLower(strings.TrimSpace(message))
	for _, p := range vaguePatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
