package registry

import (
	"context"
	"errors"
	"testing"
)

func TestCreateCapability_DuplicateKeyRejected(t *testing.T) {
	reg := NewStaticRegistry()
	if _, err := reg.CreateCapability(context.Background(), "email_draft", "Email Draft", ""); err != nil {
		t.Fatalf("CreateCapability failed: %v", err)
	}
	_, err := reg.CreateCapability(context.Background(), "email_draft", "Email Draft Again", "")
	if !errors.Is(err, ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestDeleteCapability_RestrictedWhileMapped(t *testing.T) {
	reg := NewStaticRegistry()
	if _, err := reg.CreateCapability(context.Background(), "email_draft", "Email Draft", ""); err != nil {
		t.Fatalf("CreateCapability failed: %v", err)
	}
	reg.AddModel(Model{ID: "m-1", Slug: "atlas-70b", IsActive: true, IsEligible: true})
	reg.MapCapability("email_draft", "m-1", 1)

	err := reg.DeleteCapability(context.Background(), "email_draft")
	if !errors.Is(err, ErrCapabilityInUse) {
		t.Errorf("expected ErrCapabilityInUse while mapped, got %v", err)
	}

	// Still resolvable after the refused delete.
	c, err := reg.GetCapability(context.Background(), "email_draft")
	if err != nil || c == nil {
		t.Errorf("capability should survive a refused delete: %v, %v", c, err)
	}
}

func TestDeleteCapability_UnmappedSucceeds(t *testing.T) {
	reg := NewStaticRegistry()
	if _, err := reg.CreateCapability(context.Background(), "orphan", "Orphan", ""); err != nil {
		t.Fatalf("CreateCapability failed: %v", err)
	}
	if err := reg.DeleteCapability(context.Background(), "orphan"); err != nil {
		t.Fatalf("unmapped capability should delete cleanly: %v", err)
	}
	c, err := reg.GetCapability(context.Background(), "orphan")
	if err != nil {
		t.Fatalf("GetCapability failed: %v", err)
	}
	if c != nil {
		t.Error("deleted capability should not resolve")
	}
}

func TestGetPolicy_LatestVersion(t *testing.T) {
	reg := NewStaticRegistry()
	reg.PutPolicy(PersonaPolicy{PersonaID: "sdr_copilot", Version: 1, AllowedCapabilities: []string{"a"}})
	reg.PutPolicy(PersonaPolicy{PersonaID: "sdr_copilot", Version: 2, AllowedCapabilities: []string{"a", "b"}})

	p, err := reg.GetPolicy(context.Background(), "sdr_copilot")
	if err != nil {
		t.Fatalf("GetPolicy failed: %v", err)
	}
	if p == nil || p.Version != 2 {
		t.Errorf("expected latest version 2, got %+v", p)
	}
}

func TestGetPolicyVersion_Pinned(t *testing.T) {
	reg := NewStaticRegistry()
	reg.PutPolicy(PersonaPolicy{PersonaID: "sdr_copilot", Version: 1, AllowedCapabilities: []string{"a"}})
	reg.PutPolicy(PersonaPolicy{PersonaID: "sdr_copilot", Version: 2, AllowedCapabilities: []string{"a", "b"}})

	p, err := reg.GetPolicyVersion(context.Background(), "sdr_copilot", 1)
	if err != nil {
		t.Fatalf("GetPolicyVersion failed: %v", err)
	}
	if p == nil || p.Version != 1 || len(p.AllowedCapabilities) != 1 {
		t.Errorf("expected pinned version 1, got %+v", p)
	}

	missing, err := reg.GetPolicyVersion(context.Background(), "sdr_copilot", 9)
	if err != nil {
		t.Fatalf("GetPolicyVersion failed: %v", err)
	}
	if missing != nil {
		t.Errorf("unknown version should return nil, got %+v", missing)
	}
}

func TestGetPolicy_UnknownPersona(t *testing.T) {
	reg := NewStaticRegistry()
	p, err := reg.GetPolicy(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("GetPolicy failed: %v", err)
	}
	if p != nil {
		t.Errorf("unknown persona should return nil policy, got %+v", p)
	}
}

func TestModelsForCapability_JoinsMappingPriority(t *testing.T) {
	reg := NewStaticRegistry()
	if _, err := reg.CreateCapability(context.Background(), "email_draft", "Email Draft", ""); err != nil {
		t.Fatalf("CreateCapability failed: %v", err)
	}
	reg.AddModel(Model{ID: "m-1", Slug: "atlas-70b", UnitCost: 0.015, QualityTier: 2, IsActive: true, IsEligible: true})
	reg.MapCapability("email_draft", "m-1", 3)

	candidates, err := reg.ModelsForCapability(context.Background(), "email_draft")
	if err != nil {
		t.Fatalf("ModelsForCapability failed: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
	if candidates[0].Priority != 3 || candidates[0].Slug != "atlas-70b" {
		t.Errorf("candidate join wrong: %+v", candidates[0])
	}
}

func TestPolicyHelpers(t *testing.T) {
	p := &PersonaPolicy{
		AllowedCapabilities:   []string{"email_draft"},
		ForbiddenCapabilities: []string{"bulk_export"},
	}
	if !p.Allows("email_draft") {
		t.Error("email_draft should be allowed")
	}
	if p.Allows("bulk_export") {
		t.Error("bulk_export is not in the whitelist")
	}
	if !p.Forbids("bulk_export") {
		t.Error("bulk_export should be forbidden")
	}
	if p.Forbids("email_draft") {
		t.Error("email_draft is not blacklisted")
	}
}
