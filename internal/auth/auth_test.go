package auth

import (
	"context"
	"errors"
	"testing"
)

func TestStaticAuthenticator_ValidKey(t *testing.T) {
	a := NewStaticAuthenticator()
	svc, err := a.Authenticate(context.Background(), "mgk_local_dev_key_12345")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if svc.ServiceID == "" || svc.Name != "static" {
		t.Errorf("unexpected service context: %+v", svc)
	}
}

func TestStaticAuthenticator_RejectsBadKeys(t *testing.T) {
	a := NewStaticAuthenticator()
	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"wrong prefix", "tsk_other_product_key"},
		{"too short", "mgk_a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := a.Authenticate(context.Background(), tt.token); !errors.Is(err, ErrInvalidAPIKey) {
				t.Errorf("expected ErrInvalidAPIKey, got %v", err)
			}
		})
	}
}
