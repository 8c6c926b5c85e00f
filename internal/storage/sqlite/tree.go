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

const processNodeColumns = `id, project_id, parent_id, level, code, title, scope_status,
	fit_judgment, sign_off_state, confirmation_state, readiness_pct, confirmation_note,
	created_at, updated_at`

func scanProcessNode(row interface{ Scan(...any) error }) (*types.ProcessNode, error) {
	var (
		n                  types.ProcessNode
		createdAt, updated string
	)
	err := row.Scan(&n.ID, &n.ProjectID, &n.ParentID, &n.Level, &n.Code, &n.Title,
		&n.ScopeStatus, &n.FitJudgment, &n.SignOffState, &n.ConfirmationState,
		&n.ReadinessPct, &n.ConfirmationNote, &createdAt, &updated)
	if err != nil {
		return nil, err
	}
	n.CreatedAt = parseTS(createdAt)
	n.UpdatedAt = parseTS(updated)
	return &n, nil
}

// CreateProcessNode inserts a node, enforcing the level invariant against
// the parent row and per-project code uniqueness.
func (s *Store) CreateProcessNode(ctx context.Context, node *types.ProcessNode) error {
	if err := node.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if node.ParentID != "" {
		parent, err := getProcessNode(ctx, s.db, node.ParentID)
		if err != nil {
			return fmt.Errorf("resolve parent %s: %w", node.ParentID, err)
		}
		if node.Level != parent.Level+1 {
			return fmt.Errorf("node level %d under level-%d parent: %w",
				node.Level, parent.Level, storage.ErrLevelMismatch)
		}
	}

	now := time.Now().UTC()
	if node.CreatedAt.IsZero() {
		node.CreatedAt = now
	}
	node.UpdatedAt = now
	if node.ScopeStatus == "" {
		node.ScopeStatus = types.ScopeInScope
	}
	if node.SignOffState == "" {
		node.SignOffState = types.SignOffPending
	}
	if node.ConfirmationState == "" {
		node.ConfirmationState = types.ConfirmNotReady
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO process_nodes (id, project_id, parent_id, level, code, title, scope_status,
			fit_judgment, sign_off_state, confirmation_state, readiness_pct, confirmation_note,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		node.ID, node.ProjectID, node.ParentID, node.Level, node.Code, node.Title,
		node.ScopeStatus, node.FitJudgment, node.SignOffState, node.ConfirmationState,
		node.ReadinessPct, node.ConfirmationNote, ts(node.CreatedAt), ts(node.UpdatedAt))
	if isUniqueConstraint(err) {
		return fmt.Errorf("code %s in project %s: %w", node.Code, node.ProjectID, storage.ErrDuplicateCode)
	}
	return err
}

func getProcessNode(ctx context.Context, q querier, id string) (*types.ProcessNode, error) {
	node, err := scanProcessNode(q.QueryRowContext(ctx,
		`SELECT `+processNodeColumns+` FROM process_nodes WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("process node %s: %w", id, storage.ErrNotFound)
	}
	return node, err
}

// GetProcessNode returns a node by id.
func (s *Store) GetProcessNode(ctx context.Context, id string) (*types.ProcessNode, error) {
	return getProcessNode(ctx, s.db, id)
}

// GetProcessNodeByCode returns a node by its per-project code.
func (s *Store) GetProcessNodeByCode(ctx context.Context, projectID, code string) (*types.ProcessNode, error) {
	node, err := scanProcessNode(s.db.QueryRowContext(ctx,
		`SELECT `+processNodeColumns+` FROM process_nodes WHERE project_id = ? AND code = ?`,
		projectID, code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("process node %s/%s: %w", projectID, code, storage.ErrNotFound)
	}
	return node, err
}

func getChildren(ctx context.Context, q querier, parentID string) ([]*types.ProcessNode, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+processNodeColumns+` FROM process_nodes WHERE parent_id = ? ORDER BY code`, parentID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*types.ProcessNode
	for rows.Next() {
		node, err := scanProcessNode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, node)
	}
	return out, rows.Err()
}

// GetChildren returns the direct children of a node, ordered by code.
func (s *Store) GetChildren(ctx context.Context, parentID string) ([]*types.ProcessNode, error) {
	return getChildren(ctx, s.db, parentID)
}

// ListProcessNodes returns all nodes of a project at the given level
// (level 0 means all levels).
func (s *Store) ListProcessNodes(ctx context.Context, projectID string, level int) ([]*types.ProcessNode, error) {
	query := `SELECT ` + processNodeColumns + ` FROM process_nodes WHERE project_id = ?`
	args := []any{projectID}
	if level > 0 {
		query += ` AND level = ?`
		args = append(args, level)
	}
	query += ` ORDER BY level, code`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*types.ProcessNode
	for rows.Next() {
		node, err := scanProcessNode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, node)
	}
	return out, rows.Err()
}

func setFitJudgment(ctx context.Context, q querier, nodeID string, j types.FitJudgment) error {
	res, err := q.ExecContext(ctx,
		`UPDATE process_nodes SET fit_judgment = ?, updated_at = ? WHERE id = ?`,
		j, ts(time.Now()), nodeID)
	if err != nil {
		return err
	}
	return requireRow(res, nodeID)
}

func setSignOffState(ctx context.Context, q querier, nodeID string, state types.SignOffState) error {
	res, err := q.ExecContext(ctx,
		`UPDATE process_nodes SET sign_off_state = ?, updated_at = ? WHERE id = ?`,
		state, ts(time.Now()), nodeID)
	if err != nil {
		return err
	}
	return requireRow(res, nodeID)
}

func setConfirmation(ctx context.Context, q querier, nodeID string, state types.ConfirmationState, pct float64, note string) error {
	res, err := q.ExecContext(ctx,
		`UPDATE process_nodes SET confirmation_state = ?, readiness_pct = ?, confirmation_note = ?, updated_at = ?
		 WHERE id = ?`,
		state, pct, note, ts(time.Now()), nodeID)
	if err != nil {
		return err
	}
	return requireRow(res, nodeID)
}

func requireRow(res sql.Result, nodeID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("process node %s: %w", nodeID, storage.ErrNotFound)
	}
	return nil
}

func getConsolidation(ctx context.Context, q querier, nodeID string) (*types.ConsolidationRecord, error) {
	var (
		rec       types.ConsolidationRecord
		decidedAt sql.NullString
	)
	err := q.QueryRowContext(ctx, `
		SELECT node_id, calculated_status, effective_status, is_override, override_rationale,
		       decided_by, decided_at, stale
		FROM consolidation_records WHERE node_id = ?`, nodeID).
		Scan(&rec.NodeID, &rec.CalculatedStatus, &rec.EffectiveStatus, &rec.IsOverride,
			&rec.OverrideRationale, &rec.DecidedBy, &decidedAt, &rec.Stale)
	if errors.Is(err, sql.ErrNoRows) {
		// Consolidation records are derived state: absent means "not yet
		// calculated", not an error.
		return &types.ConsolidationRecord{NodeID: nodeID, CalculatedStatus: types.FitStatusPending}, nil
	}
	if err != nil {
		return nil, err
	}
	rec.DecidedAt = parseNullTS(decidedAt)
	return &rec, nil
}

// GetConsolidation returns the consolidation record for a level-3 node,
// or a pending default when none has been computed yet.
func (s *Store) GetConsolidation(ctx context.Context, nodeID string) (*types.ConsolidationRecord, error) {
	return getConsolidation(ctx, s.db, nodeID)
}

func saveConsolidation(ctx context.Context, q querier, rec *types.ConsolidationRecord) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO consolidation_records
			(node_id, calculated_status, effective_status, is_override, override_rationale,
			 decided_by, decided_at, stale)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (node_id) DO UPDATE SET
			calculated_status = excluded.calculated_status,
			effective_status = excluded.effective_status,
			is_override = excluded.is_override,
			override_rationale = excluded.override_rationale,
			decided_by = excluded.decided_by,
			decided_at = excluded.decided_at,
			stale = excluded.stale`,
		rec.NodeID, rec.CalculatedStatus, rec.EffectiveStatus, rec.IsOverride,
		rec.OverrideRationale, rec.DecidedBy, nullableTS(rec.DecidedAt), rec.Stale)
	return err
}
