package intent_test

import (
	"testing"

	"github.com/nlanalytics/gatewaycore/internal/domain"
	"github.com/nlanalytics/gatewaycore/internal/intent"
)

func TestClassify_DefaultsToDataQuery(t *testing.T) {
	got := intent.Classify("what's the top product?")
	if got != domain.IntentDataQuery {
		t.Errorf("expected data_query, got %s", got)
	}
}

func TestClassify_Irrelevant(t *testing.T) {
	cases := []string{
		"what's the capital of France?",
		"give me a recipe for banana bread",
		"tell me a joke",
	}
	for _, c := range cases {
		if got := intent.Classify(c); got != domain.IntentIrrelevant {
			t.Errorf("classify(%q) = %s, want irrelevant", c, got)
		}
	}
}

func TestClassify_FAQProduct(t *testing.T) {
	cases := []string{
		"how do I upload a file?",
		"what plans do you offer?",
		"how much does this cost",
	}
	for _, c := range cases {
		if got := intent.Classify(c); got != domain.IntentFAQProduct {
			t.Errorf("classify(%q) = %s, want faq_product", c, got)
		}
	}
}

// Testable property 8 (spec.md §8): classify(rewrittenByMetaphor(m)).intent
// == data_query whenever maybeRewrite(m) returns a rewrite.
func TestProperty_MetaphorRewriteAlwaysClassifiesAsDataQuery(t *testing.T) {
	inputs := []string{
		"how's the weather?",
		"how are we doing today",
		"is the sky falling",
		"are we winning",
		"give me the pulse",
	}
	for _, in := range inputs {
		rewritten, _, ok := intent.MaybeRewrite(in)
		if !ok {
			t.Fatalf("expected %q to match a metaphor", in)
		}
		if got := intent.Classify(rewritten); got != domain.IntentDataQuery {
			t.Errorf("classify(rewrite(%q)) = %s, want data_query", in, got)
		}
	}
}

func TestMaybeRewrite_NoMatch(t *testing.T) {
	_, _, ok := intent.MaybeRewrite("what were our sales last quarter?")
	if ok {
		t.Fatal("expected no metaphor match for a direct business question")
	}
}

// Scenario S2 (spec.md §8): a metaphor rewrite must land on a vague
// phrasing so the orchestrator routes it into DefaultInsightBranch instead
// of falling through to the LLM planner.
func TestIsVague_MetaphorRewritesAreVague(t *testing.T) {
	inputs := []string{
		"how's the weather?",
		"how are we doing today",
		"is the sky falling",
		"are we winning",
		"how's the temperature",
		"are we on fire",
		"give me the pulse",
	}
	for _, in := range inputs {
		rewritten, _, ok := intent.MaybeRewrite(in)
		if !ok {
			t.Fatalf("expected %q to match a metaphor", in)
		}
		if !intent.IsVague(rewritten) {
			t.Errorf("IsVague(rewrite(%q)) = false, want true (rewrite was %q)", in, rewritten)
		}
	}
}

func TestIsVague(t *testing.T) {
	vague := []string{"analyze my data", "tell me about sales", "top products", "trend over time"}
	for _, v := range vague {
		if !intent.IsVague(v) {
			t.Errorf("expected %q to be classified vague", v)
		}
	}

	specific := []string{"what was revenue in March for the northeast region?"}
	for _, s := range specific {
		if intent.IsVague(s) {
			t.Errorf("expected %q to NOT be classified vague", s)
		}
	}
}
