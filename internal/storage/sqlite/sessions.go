package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tracefit/tracefit/internal/storage"
	"github.com/tracefit/tracefit/internal/types"
)

func createSession(ctx context.Context, q querier, s *types.WorkshopSession) error {
	if s.Status == "" {
		s.Status = types.SessionOpen
	}
	if s.StartedAt.IsZero() {
		s.StartedAt = time.Now().UTC()
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO workshop_sessions (id, workshop_id, number, status, started_at, closed_at, carried_from)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.WorkshopID, s.Number, s.Status, ts(s.StartedAt), nullableTS(s.ClosedAt), s.CarriedFrom)
	if isUniqueConstraint(err) {
		return fmt.Errorf("session %d for workshop %s: %w", s.Number, s.WorkshopID, storage.ErrDuplicateCode)
	}
	return err
}

// CreateSession records a new workshop session.
func (s *Store) CreateSession(ctx context.Context, sess *types.WorkshopSession) error {
	return createSession(ctx, s.db, sess)
}

func currentSession(ctx context.Context, q querier, workshopID string) (*types.WorkshopSession, error) {
	var (
		sess      types.WorkshopSession
		startedAt string
		closedAt  sql.NullString
	)
	err := q.QueryRowContext(ctx, `
		SELECT id, workshop_id, number, status, started_at, closed_at, carried_from
		FROM workshop_sessions WHERE workshop_id = ?
		ORDER BY number DESC LIMIT 1`, workshopID).
		Scan(&sess.ID, &sess.WorkshopID, &sess.Number, &sess.Status,
			&startedAt, &closedAt, &sess.CarriedFrom)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("no session for workshop %s: %w", workshopID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	sess.StartedAt = parseTS(startedAt)
	sess.ClosedAt = parseNullTS(closedAt)
	return &sess, nil
}

// CurrentSession returns the highest-numbered session of a workshop,
// open or closed.
func (s *Store) CurrentSession(ctx context.Context, workshopID string) (*types.WorkshopSession, error) {
	return currentSession(ctx, s.db, workshopID)
}

func closeSession(ctx context.Context, q querier, sessionID string) error {
	res, err := q.ExecContext(ctx, `
		UPDATE workshop_sessions SET status = ?, closed_at = ? WHERE id = ? AND status = ?`,
		types.SessionClosed, ts(time.Now()), sessionID, types.SessionOpen)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("open session %s: %w", sessionID, storage.ErrNotFound)
	}
	return nil
}

func addSessionStep(ctx context.Context, q querier, sessionID, nodeID string, carriedOver bool) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO session_steps (session_id, node_id, carried_over)
		VALUES (?, ?, ?)
		ON CONFLICT DO NOTHING`,
		sessionID, nodeID, carriedOver)
	return err
}

// SessionSteps returns the node ids attached to a session, ordered.
func (s *Store) SessionSteps(ctx context.Context, sessionID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT node_id FROM session_steps WHERE session_id = ? ORDER BY node_id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
