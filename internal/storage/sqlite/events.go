package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/tracefit/tracefit/internal/types"
)

func addEvent(ctx context.Context, q querier, ev *types.Event) error {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	res, err := q.ExecContext(ctx, `
		INSERT INTO events (node_id, event_type, actor, old_value, new_value, comment, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.NodeID, ev.EventType, ev.Actor, ev.OldValue, ev.NewValue, ev.Comment, ts(ev.CreatedAt))
	if err != nil {
		return err
	}
	ev.ID, err = res.LastInsertId()
	return err
}

// GetEvents returns the audit trail of a node, newest first. A limit of 0
// means no limit.
func (s *Store) GetEvents(ctx context.Context, nodeID string, limit int) ([]*types.Event, error) {
	query := `
		SELECT id, node_id, event_type, actor, old_value, new_value, comment, created_at
		FROM events WHERE node_id = ? ORDER BY id DESC`
	args := []any{nodeID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*types.Event
	for rows.Next() {
		var (
			ev        types.Event
			createdAt string
		)
		if err := rows.Scan(&ev.ID, &ev.NodeID, &ev.EventType, &ev.Actor,
			&ev.OldValue, &ev.NewValue, &ev.Comment, &createdAt); err != nil {
			return nil, err
		}
		ev.CreatedAt = parseTS(createdAt)
		out = append(out, &ev)
	}
	return out, rows.Err()
}

// GetFitStatistics aggregates judgment, consolidation and confirmation
// counts for a project's in-scope nodes.
func (s *Store) GetFitStatistics(ctx context.Context, projectID string) (*types.FitStatistics, error) {
	stats := &types.FitStatistics{ProjectID: projectID}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(fit_judgment = 'fit'), 0),
		       COALESCE(SUM(fit_judgment = 'gap'), 0),
		       COALESCE(SUM(fit_judgment = 'partialFit'), 0),
		       COALESCE(SUM(fit_judgment = ''), 0)
		FROM process_nodes
		WHERE project_id = ? AND level = 4 AND scope_status = 'in_scope'`, projectID).
		Scan(&stats.Steps.Total, &stats.Steps.Fit, &stats.Steps.Gap,
			&stats.Steps.PartialFit, &stats.Steps.Pending)
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(c.effective_status = 'fit'), 0),
		       COALESCE(SUM(c.effective_status = 'gap'), 0),
		       COALESCE(SUM(c.effective_status = 'partialFit'), 0),
		       COALESCE(SUM(c.node_id IS NULL OR c.effective_status IN ('', 'pending')), 0),
		       COALESCE(SUM(n.sign_off_state = 'signedOff'), 0),
		       COALESCE(SUM(c.is_override), 0)
		FROM process_nodes n
		LEFT JOIN consolidation_records c ON c.node_id = n.id
		WHERE n.project_id = ? AND n.level = 3 AND n.scope_status = 'in_scope'`, projectID).
		Scan(&stats.Processes.Total, &stats.Processes.Fit, &stats.Processes.Gap,
			&stats.Processes.PartialFit, &stats.Processes.Pending,
			&stats.Processes.SignedOff, &stats.Processes.Overridden)
	if err != nil {
		return nil, err
	}

	var avg sql.NullFloat64
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(confirmation_state = 'ready'), 0),
		       COALESCE(SUM(confirmation_state = 'confirmed'), 0),
		       COALESCE(SUM(confirmation_state = 'confirmedWithRisk'), 0),
		       AVG(readiness_pct)
		FROM process_nodes
		WHERE project_id = ? AND level = 2 AND scope_status = 'in_scope'`, projectID).
		Scan(&stats.Areas.Total, &stats.Areas.Ready, &stats.Areas.Confirmed,
			&stats.Areas.WithRisk, &avg)
	if err != nil {
		return nil, err
	}
	if avg.Valid {
		stats.Areas.AvgReadiness = avg.Float64
	}
	return stats, nil
}
