package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// DedupStore backs the orchestrator's at-most-one-in-flight guarantee with
// a durable claim row, surviving process restarts (the in-memory map the
// orchestrator also keeps is just a fast path). Grounded on the teacher's
// PostgreSQL savepoint manager: same sql.DB/driver usage, repurposed from
// transactional snapshotting to a claim-row duplicate guard.
type DedupStore struct {
	db *sql.DB
}

// NewDedupStore opens a PostgreSQL connection for duplicate suppression.
func NewDedupStore(dbURL string) (*DedupStore, error) {
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("dedup store: connect: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("dedup store: ping: %w", err)
	}
	return &DedupStore{db: db}, nil
}

// Claim attempts to register (tenantID, messageID) as in-flight. It
// returns claimed=true when this call won the race; false means another
// in-flight claim already exists and the caller must reject with
// DUPLICATE. ttl bounds how long a claim survives an orchestrator crash
// before a retried message is allowed through again.
func (d *DedupStore) Claim(ctx context.Context, tenantID, messageID string, ttl time.Duration) (claimed bool, err error) {
	expiresAt := time.Now().UTC().Add(ttl)
	res, err := d.db.ExecContext(ctx, `
		INSERT INTO flow_dedup_claims (tenant_id, message_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (tenant_id, message_id) DO UPDATE
			SET expires_at = EXCLUDED.expires_at
			WHERE flow_dedup_claims.expires_at < now()
	`, tenantID, messageID, expiresAt)
	if err != nil {
		return false, fmt.Errorf("dedup store: claim: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("dedup store: rows affected: %w", err)
	}
	return rows == 1, nil
}

// Release removes a claim once the flow reaches a terminal state,
// allowing an identical (tenantID, messageID) to be processed again
// later (e.g. a legitimate resubmission after GIVEN_UP).
func (d *DedupStore) Release(ctx context.Context, tenantID, messageID string) error {
	_, err := d.db.ExecContext(ctx, `
		DELETE FROM flow_dedup_claims WHERE tenant_id = $1 AND message_id = $2
	`, tenantID, messageID)
	if err != nil {
		return fmt.Errorf("dedup store: release: %w", err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (d *DedupStore) Close() error {
	return d.db.Close()
}
