package ledger

import (
	"context"
	"fmt"

	"github.com/revenuelab/modelgate/internal/registry"
	"github.com/revenuelab/modelgate/internal/router"
	"go.uber.org/zap"
)

// ReplayResult reports whether a past routing decision is still
// reproducible against current model state.
type ReplayResult struct {
	ReplayPossible  bool   `json:"replay_possible"`
	ReplayDeviation bool   `json:"replay_deviation"`
	DeviationReason string `json:"deviation_reason,omitempty"`
	OriginalModelID string `json:"original_model_id"`
	ReplayModelID   string `json:"replay_model_id,omitempty"`
}

// ErrDecisionNotFound is returned when replaying an unknown interaction id.
var ErrDecisionNotFound = fmt.Errorf("routing decision not found")

// Verifier replays stored decisions. It re-runs selection from the stored
// inputs (capability, persona policy version, channel — never the stored
// model id) and compares outcomes. It only reads: the ledger is never
// mutated and current model state is consulted as-is.
type Verifier struct {
	ledger   Ledger
	policies registry.PolicySource
	models   registry.ModelSource
	router   *router.Router
	logger   *zap.Logger
}

// NewVerifier creates a replay verifier.
func NewVerifier(ledger Ledger, policies registry.PolicySource, models registry.ModelSource, rt *router.Router, logger *zap.Logger) *Verifier {
	return &Verifier{ledger: ledger, policies: policies, models: models, router: rt, logger: logger}
}

// Replay re-executes the stored decision's selection against current model
// state. No eligible model now means ReplayPossible=false — an explicit
// audit finding, never a silent fallback to the original choice.
func (v *Verifier) Replay(ctx context.Context, interactionID string) (ReplayResult, error) {
	stored, err := v.ledger.Get(ctx, interactionID)
	if err != nil {
		return ReplayResult{}, fmt.Errorf("Replay: %w", err)
	}
	if stored == nil {
		return ReplayResult{}, ErrDecisionNotFound
	}

	// Pin the policy version the original decision was made under, so the
	// only moving part in the replay is current model state.
	policy, err := v.policies.GetPolicyVersion(ctx, stored.PersonaID, stored.PolicyVersion)
	if err != nil {
		return ReplayResult{}, fmt.Errorf("Replay: %w", err)
	}

	sel, err := v.router.SelectModel(ctx, stored.CapabilityKey, policy, stored.Channel)
	if err != nil {
		return ReplayResult{}, fmt.Errorf("Replay: %w", err)
	}

	result := ReplayResult{OriginalModelID: stored.ModelID}
	if !sel.Success {
		v.logger.Info("replay impossible",
			zap.String("interaction_id", interactionID),
			zap.Int("excluded_by_budget", sel.ExcludedByBudget),
			zap.Int("excluded_by_eligibility", sel.ExcludedByEligibility),
		)
		return result, nil
	}

	result.ReplayPossible = true
	result.ReplayModelID = sel.ModelID
	if sel.ModelID == stored.ModelID {
		return result, nil
	}

	result.ReplayDeviation = true
	result.DeviationReason = v.deviationReason(ctx, stored)
	v.logger.Info("replay deviation",
		zap.String("interaction_id", interactionID),
		zap.String("original_model_id", stored.ModelID),
		zap.String("replay_model_id", sel.ModelID),
		zap.String("deviation_reason", result.DeviationReason),
	)
	return result, nil
}

// deviationReason explains why the replay picked a different model.
func (v *Verifier) deviationReason(ctx context.Context, stored *Decision) string {
	candidates, err := v.models.ModelsForCapability(ctx, stored.CapabilityKey)
	if err != nil {
		return "replay selected a different model"
	}
	for _, c := range candidates {
		if c.ID != stored.ModelID {
			continue
		}
		if !c.IsActive {
			return "original model is no longer active"
		}
		if !c.IsEligible {
			return "original model is no longer eligible"
		}
		return "a different model now outranks the original"
	}
	return "original model is no longer mapped to the capability"
}
