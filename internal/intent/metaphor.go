package intent

import "strings"

// metaphorRule rewrites a casual/metaphorical phrasing into a concrete
// business question, plus a short human preface shown before the answer.
// Match is a case-insensitive substring test against the trimmed message —
// deliberately simple, matching spec.md §4.2's "tokenized, lowercased
// lookup" description.
type metaphorRule struct {
	Match   string
	Rewrite string
	Intro   string
}

// metaphors is the data-driven table new rewrites are added to. Order
// matters only in that the first match wins; entries are written narrow
// enough that overlap is not expected in practice.
var metaphors = []metaphorRule{
	{
		Match:   "how's the weather",
		Rewrite: "overview of current business performance",
		Intro:   "☀️ Let me check the business weather for you...",
	},
	{
		Match:   "how's the weather?",
		Rewrite: "overview of current business performance",
		Intro:   "☀️ Let me check the business weather for you...",
	},
	{
		Match:   "how are we doing today",
		Rewrite: "overview of current business performance",
		Intro:   "📊 Let's see how things are looking...",
	},
	{
		Match:   "is the sky falling",
		Rewrite: "are there any critical warning signs in recent performance",
		Intro:   "🌤️ Checking for storm clouds on the horizon...",
	},
	{
		Match:   "are we winning",
		Rewrite: "overview of current performance against key metrics",
		Intro:   "🏆 Let's check the scoreboard...",
	},
	{
		Match:   "how's the temperature",
		Rewrite: "overview of current business performance",
		Intro:   "🌡️ Taking the business's temperature...",
	},
	{
		Match:   "are we on fire",
		Rewrite: "overview of current business performance highlighting standout results",
		Intro:   "🔥 Let's see what's heating up...",
	},
	{
		Match:   "give me the pulse",
		Rewrite: "overview of current business performance",
		Intro:   "💓 Checking the pulse...",
	},
}

// MaybeRewrite returns the concrete rewritten question and a human preface
// if message matches a known metaphor. The second return value is false
// when no metaphor applies, in which case the caller should classify and
// plan against the original message unchanged.
//
// A successful rewrite always overrides an irrelevant classification — the
// orchestrator achieves this simply by classifying the rewritten text, which
// by construction names a concrete business concern and therefore never
// matches an irrelevantPhrases entry (see classifier_test.go, testable
// property 8 in spec.md §8).
func MaybeRewrite(message string) (rewritten, intro string, ok bool) {
	lower := strings.ToLower(strings.TrimSpace(message))
	for _, m := range metaphors {
		if strings.Contains(lower, strings.ToLower(m.Match)) {
			return m.Rewrite, m.Intro, true
		}
	}
	return "", "", false
}
