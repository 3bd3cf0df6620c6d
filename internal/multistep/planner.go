// Package multistep implements C11 MultiStepPlanner: decides whether a
// question needs more than one SQL step, and turns the model's proposed
// steps into an ordered, cycle-free plan the orchestrator executes strictly
// sequentially (spec.md §4.7, §9 "multi-step execution is strictly
// sequential").
package multistep

import (
	"context"
	"fmt"

	"github.com/nlanalytics/gatewaycore/internal/domain"
)

// Plan is the planner's output. NeedsMultiStep false means the caller
// should fall through to the single-step branch; Steps is always in
// dependency-respecting execution order when NeedsMultiStep is true.
type Plan struct {
	NeedsMultiStep bool
	Steps          []domain.PlanStep
}

// Planner is C11.
type Planner struct {
	prompt domain.PromptService
}

// New constructs a Planner.
func New(prompt domain.PromptService) *Planner {
	return &Planner{prompt: prompt}
}

// Plan asks the PromptService for a multi-step breakdown and validates it
// against maxSubSteps and the step graph's shape before returning it.
// Any rejection (too many steps, a cycle, a dangling dependsOn) degrades to
// single-step rather than erroring the whole request — a question that
// cannot be safely decomposed is still answerable as one step.
func (p *Planner) Plan(ctx context.Context, question string, schema []domain.TableHandle, maxSubSteps int) (Plan, error) {
	result, err := p.prompt.PlanMultiStep(ctx, question, schema, maxSubSteps)
	if err != nil {
		return Plan{}, fmt.Errorf("multistep: plan: %w", err)
	}

	if !result.NeedsMultiStep || len(result.Steps) == 0 {
		return Plan{NeedsMultiStep: false}, nil
	}

	if maxSubSteps != domain.Unbounded && len(result.Steps) > maxSubSteps {
		return Plan{NeedsMultiStep: false}, nil
	}

	ordered, ok := topoSort(result.Steps)
	if !ok {
		return Plan{NeedsMultiStep: false}, nil
	}

	for _, step := range ordered {
		if step.SubQuestion == "" {
			return Plan{NeedsMultiStep: false}, nil
		}
	}

	return Plan{NeedsMultiStep: true, Steps: ordered}, nil
}

// topoSort orders steps so that every step appears after everything it
// DependsOn, rejecting cycles and dangling references. Ties (independent
// steps) keep their original relative order, matching spec.md's
// "dependsOn[]" contract without over-specifying concurrency — execution
// stays sequential per spec.md §9 regardless of this order's freedom.
func topoSort(steps []domain.PlanStep) ([]domain.PlanStep, bool) {
	byOrder := make(map[int]domain.PlanStep, len(steps))
	for _, s := range steps {
		if _, dup := byOrder[s.Order]; dup {
			return nil, false
		}
		byOrder[s.Order] = s
	}
	for _, s := range steps {
		for _, dep := range s.DependsOn {
			if _, ok := byOrder[dep]; !ok {
				return nil, false
			}
		}
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[int]int, len(steps))
	var out []domain.PlanStep

	var visit func(order int) bool
	visit = func(order int) bool {
		switch color[order] {
		case black:
			return true
		case gray:
			return false // cycle
		}
		color[order] = gray
		step := byOrder[order]
		for _, dep := range step.DependsOn {
			if !visit(dep) {
				return false
			}
		}
		color[order] = black
		out = append(out, step)
		return true
	}

	for _, s := range steps {
		if !visit(s.Order) {
			return nil, false
		}
	}

	return out, true
}
