// Package orchestrator implements C12, the top-level state machine that
// composes C1–C11 into the single `chat()` entry point (spec.md §4.12,
// §6). Every seam below maps its failure into the seven-kind error
// taxonomy (spec.md §7) before it reaches the caller; Chat returns a plain
// error only for an unrecognized tier or when resolving the user's data
// sources or connection secrets fails.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nlanalytics/gatewaycore/internal/datasource"
	"github.com/nlanalytics/gatewaycore/internal/executor"
	"github.com/nlanalytics/gatewaycore/internal/intent"
	"github.com/nlanalytics/gatewaycore/internal/metrics"
	"github.com/nlanalytics/gatewaycore/internal/multistep"
	"github.com/nlanalytics/gatewaycore/internal/quality"
	"github.com/nlanalytics/gatewaycore/internal/ratelimit"
	"github.com/nlanalytics/gatewaycore/internal/responsevalidate"

	"github.com/nlanalytics/gatewaycore/internal/domain"
)

// contentDedupWindow bounds how recent a ConversationStore hash match must
// be to short-circuit a repeat submission (spec.md §8, testable property 6:
// "issued within 60 seconds").
const contentDedupWindow = 60 * time.Second

// Orchestrator is C12. It holds one instance of each collaborator
// component; none of them know about each other, only about Orchestrator.
type Orchestrator struct {
	RateLimiter      *ratelimit.Limiter
	Resolver         *datasource.Resolver
	Prompt           domain.PromptService
	Executor         *executor.Executor
	Quality          *quality.Analyzer
	ResponseValidate *responsevalidate.Validator
	MultiStep        *multistep.Planner

	Dedup         domain.DedupCache
	Conversations domain.ConversationStore // optional: nil disables transcript persistence
	Clock         domain.Clock
	Logger        *slog.Logger
}

// New wires C12 from its collaborators. Conversations may be nil — the
// core runs standalone without a persistence layer, per spec.md §1's
// treatment of persistence as an external collaborator.
func New(
	rl *ratelimit.Limiter,
	resolver *datasource.Resolver,
	prompt domain.PromptService,
	exec *executor.Executor,
	qa *quality.Analyzer,
	rv *responsevalidate.Validator,
	planner *multistep.Planner,
	dedup domain.DedupCache,
	conversations domain.ConversationStore,
	clock domain.Clock,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		RateLimiter:      rl,
		Resolver:         resolver,
		Prompt:           prompt,
		Executor:         exec,
		Quality:          qa,
		ResponseValidate: rv,
		MultiStep:        planner,
		Dedup:            dedup,
		Conversations:    conversations,
		Clock:            clock,
		Logger:           logger,
	}
}

// reqCtx threads the per-request state every DataBranch helper needs,
// rather than growing each method's parameter list every time a new piece
// of context is needed.
type reqCtx struct {
	req        domain.ChatRequest
	tier       domain.Tier
	message    string // post-metaphor-rewrite
	intro      string
	metaphorOK bool
	classified domain.Intent
	resolution datasource.Resolution
	secrets    map[int64]string // live TableHandle.SourceID -> connection secret
}

// Chat is the sole entry point (spec.md §6). It is safe for concurrent use
// across different requests; within one request its internal pipeline is
// single-threaded and sequential (spec.md §5). It wraps chat with the
// request counter/histogram the ledger promises — timing and outcome
// labeling live here so chat itself stays free of instrumentation concerns.
func (o *Orchestrator) Chat(ctx context.Context, req domain.ChatRequest) (domain.ChatResponse, error) {
	start := o.Clock.Now()
	resp, err := o.chat(ctx, req)

	intentLabel := string(resp.Meta.Intent)
	if intentLabel == "" {
		intentLabel = "unknown"
	}
	tierLabel := string(resp.Meta.Tier)
	if tierLabel == "" {
		tierLabel = req.Tier
	}
	outcome := "ok"
	if err != nil {
		outcome = "internal_error"
	}
	metrics.ObserveChatRequest(intentLabel, tierLabel, outcome, o.Clock.Now().Sub(start))

	return resp, err
}

// chat is spec.md §4.12's state machine proper.
func (o *Orchestrator) chat(ctx context.Context, req domain.ChatRequest) (domain.ChatResponse, error) {
	tier, ok := domain.LookupTier(req.Tier)
	if !ok {
		return domain.ChatResponse{}, fmt.Errorf("orchestrator: unrecognized tier %q", req.Tier)
	}

	if req.RequestID != "" {
		if resp, hit := o.Dedup.Get(req.UserID, req.RequestID); hit {
			return resp, nil
		}
	}

	if resp, hit, err := o.contentDedupHit(ctx, req); err != nil {
		o.Logger.Warn("orchestrator: content-hash dedup lookup failed", "error", err)
	} else if hit {
		return resp, nil
	}

	decision := o.RateLimiter.Check(req.UserID, tier, req.IsSuggestionFollowup)
	if !decision.Allow {
		resp := domain.ChatResponse{
			Text: decision.Message,
			Meta: domain.ChatMeta{Tier: tier.Name},
		}
		return resp, nil
	}

	rewritten, intro, metaphorOK := intent.MaybeRewrite(req.Message)
	message := req.Message
	if metaphorOK {
		message = rewritten
	}

	classified := intent.Classify(message)

	if classified == domain.IntentIrrelevant && !metaphorOK {
		resp := domain.ChatResponse{
			Text: "I'm built to answer questions about your connected business data. That looks like something outside that scope — try asking about your metrics, trends, or specific records instead.",
			Meta: domain.ChatMeta{Intent: classified, Tier: tier.Name},
		}
		return o.finish(ctx, req, resp), nil
	}

	resolution, err := o.Resolver.GetActive(ctx, req.UserID, tier)
	if err != nil {
		return domain.ChatResponse{}, fmt.Errorf("orchestrator: resolve data sources: %w", err)
	}
	if !resolution.Active {
		resp := domain.ChatResponse{
			Text: "Please connect a database or upload a file to get started.",
			Meta: domain.ChatMeta{Intent: classified, Tier: tier.Name},
		}
		return o.finish(ctx, req, resp), nil
	}

	if classified == domain.IntentFAQProduct {
		text := ReplyFAQ(message)
		if metaphorOK && intro != "" {
			text = intro + "\n\n" + text
		}
		resp := domain.ChatResponse{
			Text: text,
			Meta: domain.ChatMeta{Intent: classified, Tier: tier.Name, MetaphorUsed: metaphorOK},
		}
		return o.finish(ctx, req, resp), nil
	}

	secrets, err := o.secretsFor(ctx, req.UserID, resolution.Handles)
	if err != nil {
		return domain.ChatResponse{}, fmt.Errorf("orchestrator: resolve connection secrets: %w", err)
	}

	rc := &reqCtx{
		req:        req,
		tier:       tier,
		message:    message,
		intro:      intro,
		metaphorOK: metaphorOK,
		classified: classified,
		resolution: resolution,
		secrets:    secrets,
	}

	resp, err := o.dataBranch(ctx, rc)
	if err != nil {
		resp = o.mapError(err, rc)
	}
	return o.finish(ctx, req, resp), nil
}

// dataBranch implements spec.md §4.12's DataBranch: missing-column check,
// vague-query default insight, then single- or multi-step planning.
func (o *Orchestrator) dataBranch(ctx context.Context, rc *reqCtx) (domain.ChatResponse, error) {
	if missing := DetectMissingColumns(rc.message, rc.resolution.Handles); len(missing) > 0 {
		return o.replyEducational(missing, rc), nil
	}

	if intent.IsVague(rc.message) {
		resp, handled, err := o.defaultInsightBranch(ctx, rc)
		if err != nil {
			return domain.ChatResponse{}, err
		}
		if handled {
			return resp, nil
		}
		// schema doesn't support any default-insight template — fall
		// through to normal planning, per spec.md §4.12.
	}

	maxSubSteps := rc.tier.MaxSubSteps
	multiPlan, err := o.MultiStep.Plan(ctx, rc.message, rc.resolution.Handles, maxSubSteps)
	if err != nil {
		o.Logger.Warn("orchestrator: multi-step planning failed, falling back to single-step", "error", err)
		multiPlan = multistep.Plan{NeedsMultiStep: false}
	}

	if multiPlan.NeedsMultiStep && rc.tier.AllowMultiStep {
		return o.multiStepBranch(ctx, rc, multiPlan)
	}
	return o.singleStepBranch(ctx, rc)
}

// secretsFor fetches connection secrets for live-kind handles only; a
// file-only resolution never touches the descriptor store.
func (o *Orchestrator) secretsFor(ctx context.Context, userID int64, handles []domain.TableHandle) (map[int64]string, error) {
	needsLive := false
	for _, h := range handles {
		if h.Kind != domain.SourceFile {
			needsLive = true
			break
		}
	}
	if !needsLive {
		return nil, nil
	}

	descriptors, err := o.Resolver.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	m := make(map[int64]string, len(descriptors))
	for _, d := range descriptors {
		m[d.ID] = d.ConnectionSecret
	}
	return m, nil
}

// sourceFor builds an executor.Source for one handle, pulling the
// connection secret out of rc.secrets for live kinds.
func (o *Orchestrator) sourceFor(h domain.TableHandle, rc *reqCtx) (executor.Source, error) {
	if h.Kind == domain.SourceFile {
		return executor.Source{Kind: domain.SourceFile, FileSourceID: h.SourceID}, nil
	}
	secret, ok := rc.secrets[h.SourceID]
	if !ok {
		return executor.Source{}, fmt.Errorf("no connection secret resolved for source %d", h.SourceID)
	}
	return executor.Source{Kind: h.Kind, ConnectionSecret: secret}, nil
}

// mapError converts a *domain.Error (or any other error) into the
// user-facing apology the caller sees. Per spec.md §7 the service never
// returns a stack trace or raw driver error, and the response is still a
// normal ChatResponse, not a transport-level failure.
func (o *Orchestrator) mapError(err error, rc *reqCtx) domain.ChatResponse {
	var derr *domain.Error
	text := "I ran into a problem answering that. Please try rephrasing your question or simplifying it."
	if errors.As(err, &derr) {
		text = derr.Message
		if derr.Suggestion != "" {
			text += " (" + derr.Suggestion + ")"
		}
		o.Logger.Warn("orchestrator: mapped taxonomy error", "kind", derr.Kind, "cause", derr.Unwrap())
	} else {
		o.Logger.Error("orchestrator: unmapped internal error", "error", err)
	}

	if rc.metaphorOK && rc.intro != "" {
		text = rc.intro + "\n\n" + text
	}

	return domain.ChatResponse{
		Text: text,
		Meta: domain.ChatMeta{Intent: rc.classified, Tier: rc.tier.Name, MetaphorUsed: rc.metaphorOK},
	}
}

// finish performs the orchestrator's end-of-request side effects: caching
// the response for requestID-based dedup and persisting the transcript.
// Both are best-effort — a failure here never changes what the caller
// already received.
func (o *Orchestrator) finish(ctx context.Context, req domain.ChatRequest, resp domain.ChatResponse) domain.ChatResponse {
	if req.RequestID != "" {
		o.Dedup.Put(req.UserID, req.RequestID, resp)
	}
	o.persist(ctx, req, resp)
	return resp
}

// persist writes the user and assistant turns to ConversationStore when one
// is configured. Metadata carries enough of ChatResponse to reconstruct it
// for content-hash dedup (see contentDedupHit).
func (o *Orchestrator) persist(ctx context.Context, req domain.ChatRequest, resp domain.ChatResponse) {
	if o.Conversations == nil || req.ConversationID == 0 {
		return
	}
	if _, err := o.Conversations.SaveUser(ctx, req.ConversationID, req.Message, req.RequestID); err != nil {
		o.Logger.Warn("orchestrator: persist user turn failed", "error", err)
		return
	}
	meta := responseMetadata(resp)
	if _, err := o.Conversations.SaveAI(ctx, req.ConversationID, resp.Text, req.RequestID, meta); err != nil {
		o.Logger.Warn("orchestrator: persist assistant turn failed", "error", err)
	}
}

func responseMetadata(resp domain.ChatResponse) map[string]any {
	return map[string]any{
		"intent":       string(resp.Meta.Intent),
		"tier":         string(resp.Meta.Tier),
		"tables":       resp.Meta.Tables,
		"rows":         resp.Meta.Rows,
		"limited":      resp.Meta.Limited,
		"metaphorUsed": resp.Meta.MetaphorUsed,
		"suggestions":  resp.Meta.Suggestions,
	}
}

// contentDedupHit checks ConversationStore's content-hash index (distinct
// from the requestID-keyed Dedup cache) for a very recent identical
// submission and, if found, reconstructs the ChatResponse it produced
// (spec.md §8 testable property 6, §9 "deduplication is by content hash,
// not by requestId alone").
func (o *Orchestrator) contentDedupHit(ctx context.Context, req domain.ChatRequest) (domain.ChatResponse, bool, error) {
	if o.Conversations == nil || req.ConversationID == 0 {
		return domain.ChatResponse{}, false, nil
	}

	msg, ok, err := o.Conversations.ByHash(ctx, req.UserID, req.ConversationID, req.Message)
	if err != nil {
		return domain.ChatResponse{}, false, err
	}
	if !ok || !msg.IsComplete || msg.Role != domain.RoleAssistant {
		return domain.ChatResponse{}, false, nil
	}
	if o.Clock.Now().Sub(msg.CreatedAt) > contentDedupWindow {
		return domain.ChatResponse{}, false, nil
	}

	return reconstructResponse(msg), true, nil
}

// reconstructResponse rebuilds a ChatResponse from metadata that has been
// round-tripped through json.Marshal/Unmarshal in ConversationStore — every
// slice decodes as []interface{} and every number as float64, never the
// concrete Go types responseMetadata wrote, so the assertions below match
// what json.Unmarshal(&map[string]any{}) actually produces.
func reconstructResponse(msg domain.ChatMessage) domain.ChatResponse {
	meta := domain.ChatMeta{}
	if v, ok := msg.Metadata["intent"].(string); ok {
		meta.Intent = domain.Intent(v)
	}
	if v, ok := msg.Metadata["tier"].(string); ok {
		meta.Tier = domain.TierName(v)
	}
	if v, ok := msg.Metadata["tables"]; ok {
		meta.Tables = stringSlice(v)
	}
	if v, ok := msg.Metadata["rows"].(float64); ok {
		meta.Rows = int(v)
	}
	if v, ok := msg.Metadata["limited"].(bool); ok {
		meta.Limited = v
	}
	if v, ok := msg.Metadata["metaphorUsed"].(bool); ok {
		meta.MetaphorUsed = v
	}
	if v, ok := msg.Metadata["suggestions"]; ok {
		meta.Suggestions = stringSlice(v)
	}
	return domain.ChatResponse{Text: msg.Content, Meta: meta}
}

// stringSlice converts a decoded []interface{} of strings back into
// []string, skipping any non-string element rather than failing outright.
func stringSlice(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// withTablesText is a tiny helper used by assemble to render a readable
// "Data basis" line even when no tables were resolved (should not happen
// for a successful query, but keeps the assembled text well-formed).
func withTablesText(tables []string) string {
	if len(tables) == 0 {
		return "your connected data"
	}
	return strings.Join(tables, ", ")
}
