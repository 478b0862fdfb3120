package ledger

import (
	"context"
	"testing"
	"time"
)

func testDecision(interactionID, modelID string, score float64) Decision {
	return Decision{
		InteractionID: interactionID,
		CapabilityKey: "email_draft",
		PersonaID:     "sdr_copilot",
		PolicyVersion: 1,
		ModelID:       modelID,
		ModelSlug:     "atlas-70b",
		RoutingScore:  score,
		RoutingReason: "highest score",
		Channel:       "api",
		CreatedAt:     time.Now().UTC(),
	}
}

func TestMemoryLedger_RecordAndGet(t *testing.T) {
	l := NewMemoryLedger()
	want := testDecision("int-1", "m-standard", 38.5)

	if err := l.Record(context.Background(), want); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	got, err := l.Get(context.Background(), "int-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected a stored decision")
	}
	if got.ModelID != want.ModelID || got.RoutingScore != want.RoutingScore {
		t.Errorf("stored decision mismatch: %+v", got)
	}
}

func TestMemoryLedger_DuplicateRecordKeepsFirst(t *testing.T) {
	l := NewMemoryLedger()
	first := testDecision("int-1", "m-standard", 38.5)
	second := testDecision("int-1", "m-premium", 99.0)

	if err := l.Record(context.Background(), first); err != nil {
		t.Fatalf("first Record failed: %v", err)
	}
	if err := l.Record(context.Background(), second); err != nil {
		t.Fatalf("duplicate Record should be a silent no-op, got: %v", err)
	}

	got, err := l.Get(context.Background(), "int-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.ModelID != "m-standard" || got.RoutingScore != 38.5 {
		t.Errorf("duplicate write must not replace the first decision: %+v", got)
	}
}

func TestMemoryLedger_GetUnknown(t *testing.T) {
	l := NewMemoryLedger()
	got, err := l.Get(context.Background(), "never-seen")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Errorf("unknown id should return nil, got %+v", got)
	}
}
