package envelope

import (
	"testing"
)

func testRequest() Request {
	return Request{
		TenantID:  "tenant_123",
		UserID:    "user_456",
		PersonaID: PersonaSDRCopilot,
		Vertical:  "saas",
		Region:    "us",
	}
}

func TestNew_CanonicalPersona(t *testing.T) {
	env, err := New(testRequest())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if env.EnvelopeVersion != Version {
		t.Errorf("expected version %s, got %s", Version, env.EnvelopeVersion)
	}
	if len(env.AllowedTools) == 0 {
		t.Error("canonical persona should have tools from its profile")
	}
	if env.ContentHash == "" {
		t.Error("content hash missing")
	}
	if len(env.ContentHash) != 64 {
		t.Errorf("expected 64-char sha256 hex digest, got %d chars", len(env.ContentHash))
	}
}

func TestNew_HashMatchesContent(t *testing.T) {
	env, err := New(testRequest())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	recomputed, err := Rehash(*env)
	if err != nil {
		t.Fatalf("Rehash failed: %v", err)
	}
	if recomputed != env.ContentHash {
		t.Errorf("recomputed hash %s does not match stored %s", recomputed, env.ContentHash)
	}
}

func TestRehash_DetectsTampering(t *testing.T) {
	env, err := New(testRequest())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	tampered := *env
	tampered.AllowedTools = append([]string{"delete_crm_records"}, tampered.AllowedTools...)

	recomputed, err := Rehash(tampered)
	if err != nil {
		t.Fatalf("Rehash failed: %v", err)
	}
	if recomputed == env.ContentHash {
		t.Error("tampered envelope produced the original hash")
	}
}

func TestRehash_Reproducible(t *testing.T) {
	env, err := New(testRequest())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		h, err := Rehash(*env)
		if err != nil {
			t.Fatalf("Rehash failed: %v", err)
		}
		if h != env.ContentHash {
			t.Fatalf("iteration %d: hash changed: %s vs %s", i, h, env.ContentHash)
		}
	}
}

func TestNew_CustomPersonaWithoutToolsRejected(t *testing.T) {
	req := testRequest()
	req.PersonaID = "some_future_persona"

	if _, err := New(req); err != ErrInvalidPersona {
		t.Errorf("expected ErrInvalidPersona, got %v", err)
	}

	// An override without allowed_tools is just as invalid.
	req.Overrides = &Overrides{AllowedIntents: []string{"reporting"}}
	if _, err := New(req); err != ErrInvalidPersona {
		t.Errorf("expected ErrInvalidPersona with toolless override, got %v", err)
	}
}

func TestNew_CustomPersonaWithToolsAccepted(t *testing.T) {
	req := testRequest()
	req.PersonaID = "partner_integration"
	req.Overrides = &Overrides{AllowedTools: []string{"crm_lookup"}}

	env, err := New(req)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if len(env.AllowedTools) != 1 || env.AllowedTools[0] != "crm_lookup" {
		t.Errorf("unexpected allowed_tools: %v", env.AllowedTools)
	}
	// Custom personas start from the minimal profile, not a canonical one.
	if env.CostBudget.ModelTier != "economy" {
		t.Errorf("expected economy tier baseline, got %s", env.CostBudget.ModelTier)
	}
	if !env.MemoryScope.Stateless {
		t.Error("custom persona baseline should be stateless")
	}
}

func TestNew_OverridesNarrowCanonicalProfile(t *testing.T) {
	req := testRequest()
	req.Overrides = &Overrides{
		AllowedTools: []string{"draft_email"},
		CostBudget:   &CostBudget{MaxTokens: 2_000, MaxCostUSD: 0.05, ModelTier: "economy"},
	}

	env, err := New(req)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if len(env.AllowedTools) != 1 || env.AllowedTools[0] != "draft_email" {
		t.Errorf("override should replace allowed_tools, got %v", env.AllowedTools)
	}
	if env.CostBudget.MaxTokens != 2_000 {
		t.Errorf("override should replace cost budget, got %+v", env.CostBudget)
	}
	// Untouched profile fields survive.
	if len(env.ForbiddenOutputs) == 0 {
		t.Error("forbidden_outputs should come from the base profile")
	}
}

func TestIsCanonical(t *testing.T) {
	for _, id := range []string{
		PersonaSDRCopilot, PersonaAccountExecutive, PersonaResearchAnalyst,
		PersonaCampaignManager, PersonaSupportAgent, PersonaDataEnricher,
		PersonaRevOpsAdmin,
	} {
		if !IsCanonical(id) {
			t.Errorf("%s should be canonical", id)
		}
	}
	if IsCanonical("made_up") {
		t.Error("made_up should not be canonical")
	}
}
