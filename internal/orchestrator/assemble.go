package orchestrator

import (
	"fmt"
	"strings"

	"github.com/nlanalytics/gatewaycore/internal/domain"
)

// assemble applies spec.md §4.12's assembly rules in order: quality
// disclosure, metaphor intro, "Data basis" line, then the synthesized
// text, then an optional forecast section — followed by the tier-gated
// chart/suggestions attachment and meta population.
func (o *Orchestrator) assemble(
	text string,
	analyzeResult domain.AnalyzeResult,
	qualityReport domain.DataQualityReport,
	result domain.QueryResult,
	rc *reqCtx,
) domain.ChatResponse {
	var b strings.Builder

	worst := qualityReport.WorstSeverity()
	if worst == domain.SeverityCritical || worst == domain.SeverityWarning {
		b.WriteString(qualityReport.DisclosureMessage)
		b.WriteString("\n\n")
	}

	if rc.metaphorOK && rc.intro != "" {
		b.WriteString(rc.intro)
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, "Data basis: %s (%d rows analyzed)\n\n", withTablesText(result.Tables), result.RowCount)
	b.WriteString(text)

	if rc.tier.AllowForecast && analyzeResult.Forecast != nil && analyzeResult.Forecast.Narrative != "" {
		b.WriteString("\n\nForecast: ")
		b.WriteString(analyzeResult.Forecast.Narrative)
	}

	var chart *domain.Chart
	if rc.tier.AllowCharts {
		chart = analyzeResult.Chart
	}

	var suggestions []string
	if rc.tier.AllowSuggestions {
		suggestions = analyzeResult.Suggestions
	}

	return domain.ChatResponse{
		Text:  b.String(),
		Chart: chart,
		Meta: domain.ChatMeta{
			Intent:       rc.classified,
			Tier:         rc.tier.Name,
			Tables:       result.Tables,
			Rows:         result.RowCount,
			Limited:      result.RowCount == rc.tier.MaxRows,
			MetaphorUsed: rc.metaphorOK,
			Suggestions:  suggestions,
		},
	}
}

func tierRulesFor(rc *reqCtx) domain.TierRules {
	return domain.TierRules{
		AllowCharts:      rc.tier.AllowCharts,
		AllowSuggestions: rc.tier.AllowSuggestions,
		AllowForecast:    rc.tier.AllowForecast,
		Extended:         rc.req.ExtendedResponses,
	}
}
