package router

import (
	"context"
	"fmt"
	"testing"

	"github.com/revenuelab/modelgate/internal/registry"
	"go.uber.org/zap"
)

func fixtureRegistry(t *testing.T) *registry.StaticRegistry {
	t.Helper()
	reg := registry.NewStaticRegistry()
	if _, err := reg.CreateCapability(context.Background(), "email_draft", "Email Draft", ""); err != nil {
		t.Fatalf("CreateCapability failed: %v", err)
	}

	reg.AddModel(registry.Model{ID: "m-economy", Slug: "swift-7b", UnitCost: 0.002, QualityTier: 1, IsActive: true, IsEligible: true})
	reg.AddModel(registry.Model{ID: "m-standard", Slug: "atlas-70b", UnitCost: 0.015, QualityTier: 2, IsActive: true, IsEligible: true})
	reg.AddModel(registry.Model{ID: "m-premium", Slug: "titan-1", UnitCost: 0.060, QualityTier: 4, IsActive: true, IsEligible: true})

	reg.MapCapability("email_draft", "m-economy", 1)
	reg.MapCapability("email_draft", "m-standard", 3)
	reg.MapCapability("email_draft", "m-premium", 2)
	return reg
}

func TestSelectModel_HighestScoreWins(t *testing.T) {
	reg := fixtureRegistry(t)
	rt := NewRouter(reg, zap.NewNop())

	sel, err := rt.SelectModel(context.Background(), "email_draft", nil, "api")
	if err != nil {
		t.Fatalf("SelectModel failed: %v", err)
	}
	if !sel.Success {
		t.Fatalf("expected a selection, got failure %s", sel.FailureReason)
	}
	// Scores: m-economy 10+5-0.2=14.8, m-standard 30+10-1.5=38.5,
	// m-premium 20+20-6=34.
	if sel.ModelID != "m-standard" {
		t.Errorf("expected m-standard, got %s (score %.2f)", sel.ModelID, sel.RoutingScore)
	}
	if sel.RoutingReason == "" {
		t.Error("routing reason missing")
	}
}

func TestSelectModel_Deterministic(t *testing.T) {
	reg := fixtureRegistry(t)
	rt := NewRouter(reg, zap.NewNop())

	first, err := rt.SelectModel(context.Background(), "email_draft", nil, "api")
	if err != nil {
		t.Fatalf("SelectModel failed: %v", err)
	}
	for i := 0; i < 10; i++ {
		sel, err := rt.SelectModel(context.Background(), "email_draft", nil, "chat")
		if err != nil {
			t.Fatalf("iteration %d: SelectModel failed: %v", i, err)
		}
		if sel.ModelID != first.ModelID || sel.RoutingScore != first.RoutingScore {
			t.Fatalf("iteration %d: selection drifted: %s/%.4f vs %s/%.4f",
				i, sel.ModelID, sel.RoutingScore, first.ModelID, first.RoutingScore)
		}
	}
}

func TestSelectModel_BudgetExcludesExpensiveModels(t *testing.T) {
	reg := fixtureRegistry(t)
	rt := NewRouter(reg, zap.NewNop())

	ceiling := 0.010
	policy := &registry.PersonaPolicy{PersonaID: "p", Version: 1, MaxCostPerCall: &ceiling}

	sel, err := rt.SelectModel(context.Background(), "email_draft", policy, "api")
	if err != nil {
		t.Fatalf("SelectModel failed: %v", err)
	}
	if !sel.Success {
		t.Fatalf("expected a selection, got failure %s", sel.FailureReason)
	}
	if sel.ModelID != "m-economy" {
		t.Errorf("only m-economy is under the ceiling, got %s", sel.ModelID)
	}
}

func TestSelectModel_BudgetRoundTrip(t *testing.T) {
	reg := fixtureRegistry(t)
	rt := NewRouter(reg, zap.NewNop())

	// Below every candidate's cost: nothing survives.
	ceiling := 0.001
	policy := &registry.PersonaPolicy{PersonaID: "p", Version: 1, MaxCostPerCall: &ceiling}
	sel, err := rt.SelectModel(context.Background(), "email_draft", policy, "api")
	if err != nil {
		t.Fatalf("SelectModel failed: %v", err)
	}
	if sel.Success || sel.FailureReason != FailureNoEligibleModel {
		t.Fatalf("expected %s with ceiling below all costs, got %+v", FailureNoEligibleModel, sel)
	}
	if sel.ExcludedByBudget != 3 {
		t.Errorf("expected all 3 candidates excluded by budget, got %d", sel.ExcludedByBudget)
	}

	// Raised above every candidate's cost: selection succeeds again.
	ceiling = 1.0
	sel, err = rt.SelectModel(context.Background(), "email_draft", policy, "api")
	if err != nil {
		t.Fatalf("SelectModel failed: %v", err)
	}
	if !sel.Success {
		t.Errorf("expected success after raising the ceiling, got %+v", sel)
	}
}

func TestSelectModel_IneligibleAndInactiveExcluded(t *testing.T) {
	reg := fixtureRegistry(t)
	rt := NewRouter(reg, zap.NewNop())

	reg.SetEligible("m-standard", false)
	reg.SetActive("m-premium", false)

	sel, err := rt.SelectModel(context.Background(), "email_draft", nil, "api")
	if err != nil {
		t.Fatalf("SelectModel failed: %v", err)
	}
	if sel.ModelID != "m-economy" {
		t.Errorf("expected m-economy after exclusions, got %s", sel.ModelID)
	}
}

func TestSelectModel_NoEligibleModel(t *testing.T) {
	reg := fixtureRegistry(t)
	rt := NewRouter(reg, zap.NewNop())

	reg.SetEligible("m-economy", false)
	reg.SetEligible("m-standard", false)
	ceiling := 0.050
	policy := &registry.PersonaPolicy{PersonaID: "p", Version: 1, MaxCostPerCall: &ceiling}

	sel, err := rt.SelectModel(context.Background(), "email_draft", policy, "api")
	if err != nil {
		t.Fatalf("SelectModel failed: %v", err)
	}
	if sel.Success {
		t.Fatal("expected failure")
	}
	if sel.FailureReason != FailureNoEligibleModel {
		t.Errorf("expected %s, got %s", FailureNoEligibleModel, sel.FailureReason)
	}
	if sel.ExcludedByBudget != 1 {
		t.Errorf("m-premium is over the ceiling, expected 1 budget exclusion, got %d", sel.ExcludedByBudget)
	}
	if sel.ExcludedByEligibility != 2 {
		t.Errorf("expected 2 eligibility exclusions, got %d", sel.ExcludedByEligibility)
	}
}

func TestSelectModel_UnknownCapability(t *testing.T) {
	reg := fixtureRegistry(t)
	rt := NewRouter(reg, zap.NewNop())

	sel, err := rt.SelectModel(context.Background(), "no_such_capability", nil, "api")
	if err != nil {
		t.Fatalf("SelectModel failed: %v", err)
	}
	if sel.Success {
		t.Fatal("unmapped capability should fail")
	}
	if sel.FailureReason != FailureNoEligibleModel {
		t.Errorf("expected %s, got %s", FailureNoEligibleModel, sel.FailureReason)
	}
}

func TestSelectModel_TieBreakIsTotal(t *testing.T) {
	reg := registry.NewStaticRegistry()
	if _, err := reg.CreateCapability(context.Background(), "summarize", "Summarize", ""); err != nil {
		t.Fatalf("CreateCapability failed: %v", err)
	}
	// Identical score, tier and cost: the slug decides, ascending.
	for i, slug := range []string{"zephyr-x", "aurora-x", "meridian-x"} {
		id := fmt.Sprintf("m-%d", i)
		reg.AddModel(registry.Model{ID: id, Slug: slug, UnitCost: 0.010, QualityTier: 2, IsActive: true, IsEligible: true})
		reg.MapCapability("summarize", id, 1)
	}

	rt := NewRouter(reg, zap.NewNop())
	sel, err := rt.SelectModel(context.Background(), "summarize", nil, "api")
	if err != nil {
		t.Fatalf("SelectModel failed: %v", err)
	}
	if sel.ModelSlug != "aurora-x" {
		t.Errorf("tie should break on ascending slug, got %s", sel.ModelSlug)
	}
}

func TestScore(t *testing.T) {
	c := registry.CandidateModel{
		Model:    registry.Model{UnitCost: 0.015, QualityTier: 2},
		Priority: 3,
	}
	got := Score(c)
	want := 10.0*3 + 5.0*2 - 100.0*0.015
	if got != want {
		t.Errorf("Score = %v, want %v", got, want)
	}
}
