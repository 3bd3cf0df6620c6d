package orchestrator

import (
	"encoding/json"
	"testing"

	"github.com/nlanalytics/gatewaycore/internal/domain"
)

// Metadata always reaches reconstructResponse after a round trip through
// json.Marshal/Unmarshal (see store/messages.go), so this test builds the
// metadata the same way rather than constructing the original Go types
// directly.
func TestReconstructResponse_SurvivesJSONRoundTrip(t *testing.T) {
	original := responseMetadata(domain.ChatResponse{
		Text: "revenue was $42",
		Meta: domain.ChatMeta{
			Intent:       domain.IntentDataQuery,
			Tier:         domain.TierProfessional,
			Tables:       []string{"sales", "orders"},
			Rows:         7,
			Limited:      true,
			MetaphorUsed: true,
			Suggestions:  []string{"show me trends"},
		},
	})

	raw, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal metadata: %v", err)
	}
	var roundTripped map[string]any
	if err := json.Unmarshal(raw, &roundTripped); err != nil {
		t.Fatalf("unmarshal metadata: %v", err)
	}

	msg := domain.ChatMessage{Content: "revenue was $42", Metadata: roundTripped}
	got := reconstructResponse(msg)

	if got.Meta.Rows != 7 {
		t.Errorf("Rows = %d, want 7", got.Meta.Rows)
	}
	if !got.Meta.Limited || !got.Meta.MetaphorUsed {
		t.Errorf("Limited/MetaphorUsed not preserved: %+v", got.Meta)
	}
	if len(got.Meta.Tables) != 2 || got.Meta.Tables[0] != "sales" || got.Meta.Tables[1] != "orders" {
		t.Errorf("Tables = %v, want [sales orders]", got.Meta.Tables)
	}
	if len(got.Meta.Suggestions) != 1 || got.Meta.Suggestions[0] != "show me trends" {
		t.Errorf("Suggestions = %v, want [show me trends]", got.Meta.Suggestions)
	}
}
