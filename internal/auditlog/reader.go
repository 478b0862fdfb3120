package auditlog

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"
)

// Reader provides read access to the ClickHouse envelope_audit_log table.
type Reader struct {
	conn   driver.Conn
	logger *zap.Logger
}

// NewReader opens a ClickHouse connection for read queries.
func NewReader(dsn string, logger *zap.Logger) (*Reader, error) {
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("NewReader: %w", err)
	}
	if opts.TLS == nil {
		opts.TLS = &tls.Config{}
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("NewReader: %w", err)
	}
	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("NewReader: %w", err)
	}

	return &Reader{conn: conn, logger: logger}, nil
}

// Close closes the ClickHouse connection.
func (r *Reader) Close() error {
	return r.conn.Close()
}

// ListEntriesParams holds filters and pagination for audit listing.
type ListEntriesParams struct {
	TenantID  string
	PersonaID *string
	UserID    *string
	Endpoint  *string
	StartTime *time.Time
	EndTime   *time.Time
	Page      int
	PageSize  int
}

// ListEntries returns paginated, filtered audit entries and the total count.
func (r *Reader) ListEntries(ctx context.Context, params ListEntriesParams) ([]EnvelopeAuditEntry, int, error) {
	conditions := []string{"tenant_id = @tenant_id"}
	args := []any{
		clickhouse.Named("tenant_id", params.TenantID),
	}

	if params.PersonaID != nil {
		conditions = append(conditions, "persona_id = @persona_id")
		args = append(args, clickhouse.Named("persona_id", *params.PersonaID))
	}
	if params.UserID != nil {
		conditions = append(conditions, "user_id = @user_id")
		args = append(args, clickhouse.Named("user_id", *params.UserID))
	}
	if params.Endpoint != nil {
		conditions = append(conditions, "endpoint = @endpoint")
		args = append(args, clickhouse.Named("endpoint", *params.Endpoint))
	}
	if params.StartTime != nil {
		conditions = append(conditions, "created_at >= @start_time")
		args = append(args, clickhouse.Named("start_time", *params.StartTime))
	}
	if params.EndTime != nil {
		conditions = append(conditions, "created_at <= @end_time")
		args = append(args, clickhouse.Named("end_time", *params.EndTime))
	}

	where := strings.Join(conditions, " AND ")
	offset := (params.Page - 1) * params.PageSize

	// Count query
	var total uint64
	countQuery := fmt.Sprintf("SELECT count() FROM envelope_audit_log WHERE %s", where)
	if err := r.conn.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ListEntries count: %w", err)
	}

	// Data query
	dataQuery := fmt.Sprintf(
		"SELECT content_hash, envelope_version, tenant_id, user_id, persona_id, "+
			"vertical, sub_vertical, region, endpoint, method, correlation_id, created_at "+
			"FROM envelope_audit_log WHERE %s "+
			"ORDER BY created_at DESC "+
			"LIMIT @limit OFFSET @offset",
		where,
	)
	args = append(args,
		clickhouse.Named("limit", uint32(params.PageSize)),
		clickhouse.Named("offset", uint32(offset)),
	)

	rows, err := r.conn.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ListEntries query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []EnvelopeAuditEntry
	for rows.Next() {
		var e EnvelopeAuditEntry
		if err := rows.Scan(
			&e.ContentHash, &e.EnvelopeVersion, &e.TenantID, &e.UserID, &e.PersonaID,
			&e.Vertical, &e.SubVertical, &e.Region, &e.Endpoint, &e.Method,
			&e.CorrelationID, &e.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("ListEntries scan: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, int(total), rows.Err()
}
