package auditlog

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"
)

const (
	bufferSize    = 10_000
	flushInterval = 100 * time.Millisecond
	flushBatch    = 1000
	drainTimeout  = 2 * time.Second
)

// ClickHouseWriter writes envelope audit entries to ClickHouse
// asynchronously. Write() is non-blocking — entries are buffered and
// batch-inserted in a background goroutine.
type ClickHouseWriter struct {
	conn    driver.Conn
	buffer  chan *EnvelopeAuditEntry
	done    chan struct{}
	flushed chan struct{} // closed by flushLoop when it returns
	logger  *zap.Logger
}

// NewClickHouseWriter creates a ClickHouseWriter and starts the background
// flush loop.
func NewClickHouseWriter(dsn string, logger *zap.Logger) (*ClickHouseWriter, error) {
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, err
	}

	// ParseDSN enables TLS when ?secure=true is in the DSN; enforce it
	// here as well for managed deployments on port 9440.
	if opts.TLS == nil {
		opts.TLS = &tls.Config{}
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, err
	}

	w := &ClickHouseWriter{
		conn:    conn,
		buffer:  make(chan *EnvelopeAuditEntry, bufferSize),
		done:    make(chan struct{}),
		flushed: make(chan struct{}),
		logger:  logger,
	}

	go w.flushLoop()
	return w, nil
}

// Write queues an audit entry for async insertion.
// Non-blocking: drops the entry if the buffer is full.
func (w *ClickHouseWriter) Write(entry *EnvelopeAuditEntry) {
	select {
	case w.buffer <- entry:
	default:
		w.logger.Warn("clickhouse buffer full, dropping audit entry",
			zap.String("correlation_id", entry.CorrelationID),
		)
	}
}

// Close signals the flush loop to drain remaining entries, waits for it to
// finish (up to drainTimeout), and then returns. Safe to call once.
func (w *ClickHouseWriter) Close() {
	close(w.done)
	<-w.flushed
}

func (w *ClickHouseWriter) flushLoop() {
	defer close(w.flushed)

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]*EnvelopeAuditEntry, 0, flushBatch)

	for {
		select {
		case entry := <-w.buffer:
			batch = append(batch, entry)
			if len(batch) >= flushBatch {
				w.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				w.flush(batch)
				batch = batch[:0]
			}
		case <-w.done:
			// Drain remaining entries from buffer
			drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
			defer cancel()
		drainLoop:
			for {
				select {
				case entry := <-w.buffer:
					batch = append(batch, entry)
				case <-drainCtx.Done():
					break drainLoop
				default:
					break drainLoop
				}
			}
			if len(batch) > 0 {
				w.flush(batch)
			}
			return
		}
	}
}

func (w *ClickHouseWriter) flush(entries []*EnvelopeAuditEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	batch, err := w.conn.PrepareBatch(ctx, `
		INSERT INTO envelope_audit_log (
			content_hash, envelope_version, tenant_id, user_id, persona_id,
			vertical, sub_vertical, region, endpoint, method,
			correlation_id, created_at
		)
	`)
	if err != nil {
		w.logger.Error("clickhouse prepare batch failed", zap.Error(err))
		return
	}

	for _, e := range entries {
		if err := batch.Append(
			e.ContentHash,
			e.EnvelopeVersion,
			e.TenantID,
			e.UserID,
			e.PersonaID,
			e.Vertical,
			e.SubVertical,
			e.Region,
			e.Endpoint,
			e.Method,
			e.CorrelationID,
			e.CreatedAt,
		); err != nil {
			w.logger.Error("clickhouse append audit entry failed",
				zap.String("correlation_id", e.CorrelationID),
				zap.Error(err),
			)
		}
	}

	if err := batch.Send(); err != nil {
		w.logger.Error("clickhouse batch send failed",
			zap.Int("batch_size", len(entries)),
			zap.Error(err),
		)
	}
}

// LogWriter is a fallback Writer for local development.
// It logs audit entries as structured JSON to stdout via zap.
type LogWriter struct {
	logger *zap.Logger
}

// NewLogWriter creates a LogWriter that outputs entries to the given logger.
func NewLogWriter(logger *zap.Logger) *LogWriter {
	return &LogWriter{logger: logger}
}

func (w *LogWriter) Write(entry *EnvelopeAuditEntry) {
	w.logger.Info("envelope_audit",
		zap.String("content_hash", entry.ContentHash),
		zap.String("envelope_version", entry.EnvelopeVersion),
		zap.String("tenant_id", entry.TenantID),
		zap.String("user_id", entry.UserID),
		zap.String("persona_id", entry.PersonaID),
		zap.String("endpoint", entry.Endpoint),
		zap.String("method", entry.Method),
		zap.String("correlation_id", entry.CorrelationID),
	)
}

func (w *LogWriter) Close() {}
