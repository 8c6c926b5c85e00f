package fit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/tracefit/tracefit/internal/schema"
	"github.com/tracefit/tracefit/internal/storage"
	"github.com/tracefit/tracefit/internal/types"
)

// CarryOver closes a workshop's current assessment session and opens the
// successor, carrying over every covered level-4 step that is still
// unjudged. Returns the new session and the carried step ids.
//
// A workshop with no session yet gets session 1 seeded with all of its
// pending steps, so multi-session assessment can start from either path.
func (e *Engine) CarryOver(ctx context.Context, workshopID, actor string) (*types.WorkshopSession, []string, error) {
	var (
		next    *types.WorkshopSession
		carried []string
	)
	err := e.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		refs, err := tx.Linked(ctx, types.EntityWorkshop, workshopID, schema.RelCovers, false)
		if err != nil {
			return err
		}
		if len(refs) == 0 {
			return storage.ErrNotFound
		}

		var pending []string
		for _, ref := range refs {
			node, err := tx.GetProcessNode(ctx, ref.ID)
			if err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					continue
				}
				return err
			}
			if node.Level == 4 && node.InScope() && !node.FitJudgment.IsSet() {
				pending = append(pending, node.ID)
			}
		}

		number := 1
		carriedFrom := ""
		cur, err := tx.CurrentSession(ctx, workshopID)
		switch {
		case err == nil:
			if err := tx.CloseSession(ctx, cur.ID); err != nil {
				return err
			}
			number = cur.Number + 1
			carriedFrom = cur.ID
		case errors.Is(err, storage.ErrNotFound):
			// first session
		default:
			return err
		}

		next = &types.WorkshopSession{
			ID:          uuid.NewString(),
			WorkshopID:  workshopID,
			Number:      number,
			Status:      types.SessionOpen,
			StartedAt:   time.Now().UTC(),
			CarriedFrom: carriedFrom,
		}
		if err := tx.CreateSession(ctx, next); err != nil {
			return err
		}

		for _, nodeID := range pending {
			if err := tx.AddSessionStep(ctx, next.ID, nodeID, carriedFrom != ""); err != nil {
				return err
			}
			comment := next.ID
			if err := tx.AddEvent(ctx, &types.Event{
				NodeID:    nodeID,
				EventType: types.EventCarryOver,
				Actor:     actor,
				Comment:   &comment,
			}); err != nil {
				return err
			}
			carried = append(carried, nodeID)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return next, carried, nil
}
