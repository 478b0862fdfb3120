// Package router selects the backing model for an authorized capability.
// Selection is a pure function of the capability's mapped models, the
// persona policy's cost ceiling and each model's current flags: identical
// inputs always produce the identical choice, regardless of interaction id,
// wall clock or call count.
package router

import (
	"context"
	"fmt"
	"sort"

	"github.com/revenuelab/modelgate/internal/registry"
	"go.uber.org/zap"
)

// FailureNoEligibleModel marks a resource-availability failure. It is
// distinct from a policy denial: authorization already passed, but no
// mapped model survived the budget and eligibility filters.
const FailureNoEligibleModel = "NO_ELIGIBLE_MODEL"

// Selection is the outcome of a routing attempt.
type Selection struct {
	Success bool

	// Populated on success.
	ModelID       string
	ModelSlug     string
	UnitCost      float64
	RoutingScore  float64
	RoutingReason string

	// Populated on failure, so operators can tell "too expensive"
	// apart from "all candidates disabled".
	FailureReason         string
	ExcludedByBudget      int
	ExcludedByEligibility int
}

// Router resolves a capability's model candidates and applies the
// deterministic selection rule.
type Router struct {
	models registry.ModelSource
	logger *zap.Logger
}

// NewRouter creates a Router over the given model source.
func NewRouter(models registry.ModelSource, logger *zap.Logger) *Router {
	return &Router{models: models, logger: logger}
}

// SelectModel picks the model that should serve the capability for the
// persona. The channel participates in scoring context only through the
// capability mapping; it never introduces nondeterminism.
//
// Steps: resolve mapped models, drop candidates over the policy's
// max_cost_per_call, drop inactive or ineligible candidates, then score the
// remainder from static attributes and pick the highest with a fixed total
// ordering for ties.
func (r *Router) SelectModel(ctx context.Context, capabilityKey string, policy *registry.PersonaPolicy, channel string) (Selection, error) {
	candidates, err := r.models.ModelsForCapability(ctx, capabilityKey)
	if err != nil {
		return Selection{}, fmt.Errorf("SelectModel: %w", err)
	}

	var excludedByBudget, excludedByEligibility int
	eligible := make([]registry.CandidateModel, 0, len(candidates))
	for _, c := range candidates {
		if policy != nil && policy.MaxCostPerCall != nil && c.UnitCost > *policy.MaxCostPerCall {
			excludedByBudget++
			continue
		}
		if !c.IsActive || !c.IsEligible {
			excludedByEligibility++
			continue
		}
		eligible = append(eligible, c)
	}

	if len(eligible) == 0 {
		r.logger.Warn("no eligible model",
			zap.String("capability_key", capabilityKey),
			zap.String("channel", channel),
			zap.Int("excluded_by_budget", excludedByBudget),
			zap.Int("excluded_by_eligibility", excludedByEligibility),
		)
		return Selection{
			FailureReason:         FailureNoEligibleModel,
			ExcludedByBudget:      excludedByBudget,
			ExcludedByEligibility: excludedByEligibility,
		}, nil
	}

	// Fixed total ordering: score desc, then quality tier desc, then unit
	// cost asc, then slug asc. The outcome is never ambiguous.
	sort.Slice(eligible, func(i, j int) bool {
		si, sj := Score(eligible[i]), Score(eligible[j])
		if si != sj {
			return si > sj
		}
		if eligible[i].QualityTier != eligible[j].QualityTier {
			return eligible[i].QualityTier > eligible[j].QualityTier
		}
		if eligible[i].UnitCost != eligible[j].UnitCost {
			return eligible[i].UnitCost < eligible[j].UnitCost
		}
		return eligible[i].Slug < eligible[j].Slug
	})

	best := eligible[0]
	score := Score(best)
	return Selection{
		Success:       true,
		ModelID:       best.ID,
		ModelSlug:     best.Slug,
		UnitCost:      best.UnitCost,
		RoutingScore:  score,
		RoutingReason: fmt.Sprintf("highest score %.4f (priority %d, tier %d, cost %.4f) among %d candidates", score, best.Priority, best.QualityTier, best.UnitCost, len(eligible)),
	}, nil
}
