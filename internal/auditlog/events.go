// Package auditlog persists the append-only envelope audit stream.
// Writes are best-effort and must never block or fail the request being
// audited; the authoritative policy record is the envelope itself.
package auditlog

import "time"

// Writer is the interface for writing envelope audit entries.
// Write() must NEVER block the caller.
type Writer interface {
	Write(entry *EnvelopeAuditEntry)
	Close()
}

// EnvelopeAuditEntry is one append-only envelope_audit_log record: the
// trace a sealed envelope leaves behind after its request completes.
type EnvelopeAuditEntry struct {
	ContentHash     string
	EnvelopeVersion string
	TenantID        string
	UserID          string
	PersonaID       string
	Vertical        string
	SubVertical     string
	Region          string
	Endpoint        string
	Method          string
	CorrelationID   string
	CreatedAt       time.Time
}
