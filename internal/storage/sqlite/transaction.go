package sqlite

import (
	"context"
	"fmt"

	"github.com/tracefit/tracefit/internal/storage"
	"github.com/tracefit/tracefit/internal/types"
)

// Verify tx implements storage.Transaction at compile time.
var _ storage.Transaction = (*tx)(nil)

// tx runs all statements on one dedicated connection holding the write lock.
type tx struct {
	conn querier
}

// RunInTransaction executes fn inside a single IMMEDIATE transaction on a
// dedicated connection. The write lock is taken up front so concurrent
// writers serialize; any error or panic rolls everything back.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx storage.Transaction) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if err := beginImmediate(ctx, conn); err != nil {
		return fmt.Errorf("begin immediate: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			// The caller's ctx may already be canceled; the rollback must
			// still run.
			_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
		}
	}()

	if err := fn(&tx{conn: conn}); err != nil {
		return err
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

func (t *tx) GetProcessNode(ctx context.Context, id string) (*types.ProcessNode, error) {
	return getProcessNode(ctx, t.conn, id)
}

func (t *tx) GetChildren(ctx context.Context, parentID string) ([]*types.ProcessNode, error) {
	return getChildren(ctx, t.conn, parentID)
}

func (t *tx) GetConsolidation(ctx context.Context, nodeID string) (*types.ConsolidationRecord, error) {
	return getConsolidation(ctx, t.conn, nodeID)
}

func (t *tx) SetFitJudgment(ctx context.Context, nodeID string, j types.FitJudgment) error {
	return setFitJudgment(ctx, t.conn, nodeID, j)
}

func (t *tx) SaveConsolidation(ctx context.Context, rec *types.ConsolidationRecord) error {
	return saveConsolidation(ctx, t.conn, rec)
}

func (t *tx) SetSignOffState(ctx context.Context, nodeID string, s types.SignOffState) error {
	return setSignOffState(ctx, t.conn, nodeID, s)
}

func (t *tx) SetConfirmation(ctx context.Context, nodeID string, s types.ConfirmationState, readinessPct float64, note string) error {
	return setConfirmation(ctx, t.conn, nodeID, s, readinessPct, note)
}

func (t *tx) Linked(ctx context.Context, et types.EntityType, id, relation string, reverse bool) ([]types.Ref, error) {
	return linked(ctx, t.conn, et, id, relation, reverse)
}

func (t *tx) LinkedEntities(ctx context.Context, to types.Ref, fromType types.EntityType, relation string) ([]*types.EntityRow, error) {
	return linkedEntities(ctx, t.conn, to, fromType, relation)
}

func (t *tx) CurrentSession(ctx context.Context, workshopID string) (*types.WorkshopSession, error) {
	return currentSession(ctx, t.conn, workshopID)
}

func (t *tx) CreateSession(ctx context.Context, s *types.WorkshopSession) error {
	return createSession(ctx, t.conn, s)
}

func (t *tx) CloseSession(ctx context.Context, sessionID string) error {
	return closeSession(ctx, t.conn, sessionID)
}

func (t *tx) AddSessionStep(ctx context.Context, sessionID, nodeID string, carriedOver bool) error {
	return addSessionStep(ctx, t.conn, sessionID, nodeID, carriedOver)
}

func (t *tx) AddEvent(ctx context.Context, ev *types.Event) error {
	return addEvent(ctx, t.conn, ev)
}
