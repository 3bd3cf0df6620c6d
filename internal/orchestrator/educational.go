package orchestrator

import (
	"fmt"
	"strings"

	"github.com/nlanalytics/gatewaycore/internal/domain"
)

// genericRequirement wraps a bare column name (as reported by PlanSQL's
// --MISSING: sentinel, spec.md §4.6) into the same shape DetectMissingColumns
// produces, so both paths render through one builder.
func genericRequirement(name string) ColumnRequirement {
	return ColumnRequirement{Name: name, DataType: "unknown", Example: ""}
}

func genericRequirements(names []string) []ColumnRequirement {
	out := make([]ColumnRequirement, 0, len(names))
	for _, n := range names {
		out = append(out, genericRequirement(n))
	}
	return out
}

// buildEducationalText renders the fixed, structured ReplyEducational
// message: spec.md §4.12 calls for "a fixed, structured message listing
// missing columns with type + example + alternatives, plus a list of
// analyses the current schema supports — without invoking the LLM."
func buildEducationalText(missing []ColumnRequirement, handles []domain.TableHandle) string {
	var b strings.Builder
	b.WriteString("I can't fully answer that with your current data. Here's what's missing:\n\n")
	for _, req := range missing {
		fmt.Fprintf(&b, "- **%s**", req.Name)
		switch {
		case req.DataType != "" && req.Example != "":
			fmt.Fprintf(&b, " (%s, e.g. %s)", req.DataType, req.Example)
		case req.DataType != "":
			fmt.Fprintf(&b, " (%s)", req.DataType)
		}
		if len(req.Alternatives) > 0 {
			fmt.Fprintf(&b, " — consider a column named: %s", strings.Join(req.Alternatives, ", "))
		}
		b.WriteString("\n")
	}

	possible := buildPossibleAnalyses(handles)
	if len(possible) > 0 {
		b.WriteString("\nWith your current data, I can still help with:\n")
		for _, p := range possible {
			fmt.Fprintf(&b, "- %s\n", p)
		}
	}
	return strings.TrimSpace(b.String())
}

// replyEducational builds the full ChatResponse for a DetectMissingColumns
// hit. No LLM is invoked (spec.md §4.12).
func (o *Orchestrator) replyEducational(missing []ColumnRequirement, rc *reqCtx) domain.ChatResponse {
	text := buildEducationalText(missing, rc.resolution.Handles)
	if rc.metaphorOK && rc.intro != "" {
		text = rc.intro + "\n\n" + text
	}
	return domain.ChatResponse{
		Text: text,
		Meta: domain.ChatMeta{
			Intent:       rc.classified,
			Tier:         rc.tier.Name,
			Tables:       handleNames(rc.resolution.Handles),
			Rows:         0,
			MetaphorUsed: rc.metaphorOK,
		},
	}
}

// replyEducationalGeneric is the same response shape for missing columns
// surfaced by PlanSQL's own --MISSING: sentinel rather than the pre-planning
// concept check.
func (o *Orchestrator) replyEducationalGeneric(names []string, rc *reqCtx) domain.ChatResponse {
	return o.replyEducational(genericRequirements(names), rc)
}

func handleNames(handles []domain.TableHandle) []string {
	out := make([]string, len(handles))
	for i, h := range handles {
		out[i] = h.LogicalName
	}
	return out
}
