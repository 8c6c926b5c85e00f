package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// NextSequence atomically allocates the next number for (project, prefix).
// The counter row is read and bumped inside one IMMEDIATE transaction, so
// concurrent callers serialize on the write lock and never see the same
// value. Counters are never derived from existing rows.
func (s *Store) NextSequence(ctx context.Context, projectID, prefix string) (int64, error) {
	if projectID == "" || prefix == "" {
		return 0, fmt.Errorf("project id and prefix are required")
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if err := beginImmediate(ctx, conn); err != nil {
		return 0, fmt.Errorf("begin immediate: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
		}
	}()

	var value int64
	err = conn.QueryRowContext(ctx,
		`SELECT next_value FROM sequence_counters WHERE project_id = ? AND prefix = ?`,
		projectID, prefix).Scan(&value)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		value = 1
		if _, err := conn.ExecContext(ctx,
			`INSERT INTO sequence_counters (project_id, prefix, next_value) VALUES (?, ?, 2)`,
			projectID, prefix); err != nil {
			return 0, err
		}
	case err != nil:
		return 0, err
	default:
		if _, err := conn.ExecContext(ctx,
			`UPDATE sequence_counters SET next_value = next_value + 1 WHERE project_id = ? AND prefix = ?`,
			projectID, prefix); err != nil {
			return 0, err
		}
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	committed = true
	return value, nil
}
