package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Checkpoint methods back the durable engine's memoized steps. The
// idempotency key is (instance_id, step); a completed step's result survives
// process restarts so re-delivered workflow instances never repeat a side
// effect.

// LoadStep returns the memoized result of a completed step, if any.
func (s *Store) LoadStep(ctx context.Context, instanceID, step string) (string, bool, error) {
	var result string
	err := s.db.QueryRowContext(ctx,
		`SELECT result FROM workflow_steps WHERE instance_id = ? AND step = ?`,
		instanceID, step).Scan(&result)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("load step: %w", err)
	}
	return result, true, nil
}

// SaveStep records a step result. INSERT OR IGNORE keeps the first completed
// result authoritative if a retry races the original write.
func (s *Store) SaveStep(ctx context.Context, instanceID, step, result string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO workflow_steps (instance_id, step, result, completed_at)
		 VALUES (?, ?, ?, ?)`,
		instanceID, step, result, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save step: %w", err)
	}
	return nil
}
