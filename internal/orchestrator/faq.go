package orchestrator

import "strings"

// faqRule pairs a topical keyword with a canned, product-accurate answer.
// ReplyFAQ never calls the LLM — product FAQ copy is fixed and owned by the
// same core that classified the question as faq_product, mirroring how
// MetaphorMapper's rewrite table stays deterministic and data-driven
// (spec.md §9).
type faqRule struct {
	Keyword string
	Answer  string
}

var faqRules = []faqRule{
	{"upload", "You can upload a file (CSV or spreadsheet export) from the Data Sources page — once it finishes processing you can ask questions about it right away."},
	{"connect", "You can connect a live Postgres or MySQL database from the Data Sources page. We only ever run read-only queries against it."},
	{"pricing", "Pricing is based on plan tier — starter, professional, and enterprise — which controls your hourly query volume, row limits, and feature access like charts and forecasting."},
	{"how much does this cost", "Pricing is based on plan tier — starter, professional, and enterprise — which controls your hourly query volume, row limits, and feature access like charts and forecasting."},
	{"what plans", "We offer starter, professional, and enterprise plans, each with its own query volume, row limit, and feature set."},
	{"what is this tool", "This is a natural-language analytics assistant: ask a business question in plain English and it plans and runs a safe, read-only query against your connected data, then explains the result."},
	{"what does this product do", "This is a natural-language analytics assistant: ask a business question in plain English and it plans and runs a safe, read-only query against your connected data, then explains the result."},
	{"how does this work", "You ask a question in plain English. We classify it, plan a safe read-only SQL query against your connected data, run it, and explain the result back to you in plain language."},
	{"contact support", "You can reach support from the help menu in the app, or by emailing support — we typically respond within a business day."},
	{"cancel my subscription", "You can cancel anytime from your account's billing settings; your plan stays active until the end of the current billing period."},
	{"billing", "Billing questions are best handled from your account's billing settings, where you can see your current plan, usage, and invoices."},
}

// ReplyFAQ finds the best-matching canned answer for a faq_product message.
// It never calls an LLM (spec.md §4.12: "ReplyEducational... without
// invoking the LLM" — the same no-LLM discipline applies to FAQ answers,
// since product copy should not hallucinate either).
func ReplyFAQ(message string) string {
	lower := strings.ToLower(message)
	for _, r := range faqRules {
		if strings.Contains(lower, r.Keyword) {
			return r.Answer
		}
	}
	return "This assistant turns your business questions into safe, read-only queries against your connected data. Ask about your data, or check the help menu for billing and account questions."
}
