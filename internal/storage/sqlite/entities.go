package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tracefit/tracefit/internal/storage"
	"github.com/tracefit/tracefit/internal/types"
)

// PutEntity upserts a collaborator-store row.
func (s *Store) PutEntity(ctx context.Context, row *types.EntityRow) error {
	if row.Type == "" || row.ID == "" {
		return fmt.Errorf("entity type and id are required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entities (entity_type, id, project_id, code, title, status, priority)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (entity_type, id) DO UPDATE SET
			project_id = excluded.project_id,
			code = excluded.code,
			title = excluded.title,
			status = excluded.status,
			priority = excluded.priority`,
		row.Type, row.ID, row.ProjectID, row.Code, row.Title, row.Status, row.Priority)
	return err
}

// GetEntity returns the collaborator row for a typed reference. Process tree
// entities (scenarios, process steps, and process_level pseudo-refs) are
// backed by process_nodes rows rather than the entities table, so the lookup
// is redirected there with the level checked against the requested type.
func (s *Store) GetEntity(ctx context.Context, t types.EntityType, id string) (*types.EntityRow, error) {
	return getEntity(ctx, s.db, t, id)
}

func getEntity(ctx context.Context, q querier, t types.EntityType, id string) (*types.EntityRow, error) {
	switch t {
	case types.EntityScenario, types.EntityProcessStep, types.EntityProcessLevel:
		return getProcessEntity(ctx, q, t, id)
	}

	var row types.EntityRow
	err := q.QueryRowContext(ctx, `
		SELECT entity_type, id, project_id, code, title, status, priority
		FROM entities WHERE entity_type = ? AND id = ?`, t, id).
		Scan(&row.Type, &row.ID, &row.ProjectID, &row.Code, &row.Title, &row.Status, &row.Priority)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s %s: %w", t, id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// getProcessEntity adapts a process_nodes row into the entity envelope.
// Scenarios are level-1 nodes and process steps level-4 nodes; the generic
// process_level type accepts any level. The status tag carries whichever
// lifecycle value is meaningful at the node's level.
func getProcessEntity(ctx context.Context, q querier, t types.EntityType, id string) (*types.EntityRow, error) {
	node, err := getProcessNode(ctx, q, id)
	if err != nil {
		return nil, err
	}
	switch {
	case t == types.EntityScenario && node.Level != 1:
		return nil, fmt.Errorf("scenario %s: %w", id, storage.ErrNotFound)
	case t == types.EntityProcessStep && node.Level != 4:
		return nil, fmt.Errorf("process step %s: %w", id, storage.ErrNotFound)
	}

	row := &types.EntityRow{
		Type:      t,
		ID:        node.ID,
		ProjectID: node.ProjectID,
		Code:      node.Code,
		Title:     node.Title,
	}
	if t == types.EntityProcessLevel {
		switch node.Level {
		case 1:
			row.Type = types.EntityScenario
		case 4:
			row.Type = types.EntityProcessStep
		}
	}
	switch node.Level {
	case 4:
		row.Status = string(node.FitJudgment)
	case 3:
		row.Status = string(node.SignOffState)
	case 2:
		row.Status = string(node.ConfirmationState)
	default:
		row.Status = string(node.ScopeStatus)
	}
	return row, nil
}

// Link records a directed relation between two entities.
func (s *Store) Link(ctx context.Context, from, to types.Ref, relation string) error {
	if relation == "" {
		return fmt.Errorf("relation is required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entity_links (from_type, from_id, to_type, to_id, relation)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`,
		from.Type, from.ID, to.Type, to.ID, relation)
	return err
}

// Linked returns the refs related to (t, id) through relation. With reverse
// false it follows stored edges forward (rows where the entity is the
// source); with reverse true it finds the sources pointing at the entity.
func (s *Store) Linked(ctx context.Context, t types.EntityType, id, relation string, reverse bool) ([]types.Ref, error) {
	return linked(ctx, s.db, t, id, relation, reverse)
}

func linked(ctx context.Context, q querier, t types.EntityType, id, relation string, reverse bool) ([]types.Ref, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if reverse {
		rows, err = q.QueryContext(ctx, `
			SELECT from_type, from_id FROM entity_links
			WHERE to_type = ? AND to_id = ? AND relation = ?
			ORDER BY from_type, from_id`, t, id, relation)
	} else {
		rows, err = q.QueryContext(ctx, `
			SELECT to_type, to_id FROM entity_links
			WHERE from_type = ? AND from_id = ? AND relation = ?
			ORDER BY to_type, to_id`, t, id, relation)
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []types.Ref
	for rows.Next() {
		var ref types.Ref
		if err := rows.Scan(&ref.Type, &ref.ID); err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}

// LinkedEntities returns the full rows of fromType entities pointing at the
// given target through relation. Used by precondition checks that need
// status and priority, not just identity.
func (s *Store) LinkedEntities(ctx context.Context, to types.Ref, fromType types.EntityType, relation string) ([]*types.EntityRow, error) {
	return linkedEntities(ctx, s.db, to, fromType, relation)
}

func linkedEntities(ctx context.Context, q querier, to types.Ref, fromType types.EntityType, relation string) ([]*types.EntityRow, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT e.entity_type, e.id, e.project_id, e.code, e.title, e.status, e.priority
		FROM entity_links l
		JOIN entities e ON e.entity_type = l.from_type AND e.id = l.from_id
		WHERE l.to_type = ? AND l.to_id = ? AND l.from_type = ? AND l.relation = ?
		ORDER BY e.code, e.id`, to.Type, to.ID, fromType, relation)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*types.EntityRow
	for rows.Next() {
		var row types.EntityRow
		if err := rows.Scan(&row.Type, &row.ID, &row.ProjectID, &row.Code, &row.Title,
			&row.Status, &row.Priority); err != nil {
			return nil, err
		}
		out = append(out, &row)
	}
	return out, rows.Err()
}

// ProcessAncestor walks parent links from a node up to its ancestor at the
// given level.
func (s *Store) ProcessAncestor(ctx context.Context, nodeID string, level int) (types.Ref, error) {
	node, err := getProcessNode(ctx, s.db, nodeID)
	if err != nil {
		return types.Ref{}, err
	}
	for node.Level > level {
		if node.ParentID == "" {
			return types.Ref{}, fmt.Errorf("no level-%d ancestor of %s: %w", level, nodeID, storage.ErrNotFound)
		}
		node, err = getProcessNode(ctx, s.db, node.ParentID)
		if err != nil {
			return types.Ref{}, err
		}
	}
	if node.Level != level {
		return types.Ref{}, fmt.Errorf("no level-%d ancestor of %s: %w", level, nodeID, storage.ErrNotFound)
	}
	ref := types.Ref{Type: types.EntityProcessLevel, ID: node.ID}
	switch node.Level {
	case 1:
		ref.Type = types.EntityScenario
	case 4:
		ref.Type = types.EntityProcessStep
	}
	return ref, nil
}
