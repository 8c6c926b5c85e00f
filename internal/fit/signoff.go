package fit

import (
	"context"
	"errors"
	"fmt"

	"github.com/tracefit/tracefit/internal/schema"
	"github.com/tracefit/tracefit/internal/storage"
	"github.com/tracefit/tracefit/internal/types"
)

// SignOff formally closes the assessment of a level-3 node. With any
// precondition unmet it fails with SignOffBlockedError carrying the full
// blocking list. Signing off an already signed-off node is a no-op.
func (e *Engine) SignOff(ctx context.Context, l3ID, actor string) error {
	return e.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		node, err := tx.GetProcessNode(ctx, l3ID)
		if err != nil {
			return err
		}
		if node.Level != 3 {
			return ErrNotLevelThree
		}
		if node.SignOffState == types.SignOffSigned {
			return nil
		}

		blockers, err := e.signOffBlockers(ctx, tx, node)
		if err != nil {
			return err
		}
		if len(blockers) > 0 {
			return &SignOffBlockedError{NodeID: l3ID, Blockers: blockers}
		}

		if err := tx.SetSignOffState(ctx, l3ID, types.SignOffSigned); err != nil {
			return err
		}
		old, newVal := string(node.SignOffState), string(types.SignOffSigned)
		return tx.AddEvent(ctx, &types.Event{
			NodeID:    l3ID,
			EventType: types.EventSignedOff,
			Actor:     actor,
			OldValue:  &old,
			NewValue:  &newVal,
		})
	})
}

// Reopen moves a signed-off level-3 node back to reopened and reverts the
// parent's confirmation if it had been given. The consolidation record is
// preserved — reopening questions the decision, it does not erase it.
func (e *Engine) Reopen(ctx context.Context, l3ID, actor string) error {
	return e.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		return e.reopenNode(ctx, tx, l3ID, actor)
	})
}

func (e *Engine) reopenNode(ctx context.Context, tx storage.Transaction, l3ID, actor string) error {
	node, err := tx.GetProcessNode(ctx, l3ID)
	if err != nil {
		return err
	}
	if node.Level != 3 {
		return ErrNotLevelThree
	}
	if node.SignOffState == types.SignOffReopened {
		return nil
	}

	old := string(node.SignOffState)
	if err := tx.SetSignOffState(ctx, l3ID, types.SignOffReopened); err != nil {
		return err
	}
	newVal := string(types.SignOffReopened)
	if err := tx.AddEvent(ctx, &types.Event{
		NodeID:    l3ID,
		EventType: types.EventReopened,
		Actor:     actor,
		OldValue:  &old,
		NewValue:  &newVal,
	}); err != nil {
		return err
	}

	return e.revertConfirmation(ctx, tx, node.ParentID, actor)
}

// revertConfirmation drops a confirmed level-2 node back to ready/notReady
// after a child sign-off reopened. Unconfirmed parents only get their
// readiness refreshed.
func (e *Engine) revertConfirmation(ctx context.Context, tx storage.Transaction, l2ID, actor string) error {
	l2, err := tx.GetProcessNode(ctx, l2ID)
	if err != nil {
		return err
	}
	if !l2.ConfirmationState.IsConfirmed() {
		return e.propagateArea(ctx, tx, l2ID)
	}

	pct, err := e.readiness(ctx, tx, l2ID)
	if err != nil {
		return err
	}
	state := types.ConfirmNotReady
	if pct == 100 {
		state = types.ConfirmReady
	}
	if err := tx.SetConfirmation(ctx, l2ID, state, pct, l2.ConfirmationNote); err != nil {
		return err
	}
	old, newVal := string(l2.ConfirmationState), string(state)
	return tx.AddEvent(ctx, &types.Event{
		NodeID:    l2ID,
		EventType: types.EventReverted,
		Actor:     actor,
		OldValue:  &old,
		NewValue:  &newVal,
	})
}

// ReopenWorkshop is the external trigger for the reopen cascade: every
// signed-off level-3 node assessed by the workshop is reopened in one
// transaction. Returns the reopened node ids.
func (e *Engine) ReopenWorkshop(ctx context.Context, workshopID, actor string) ([]string, error) {
	var reopened []string
	err := e.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		refs, err := tx.Linked(ctx, types.EntityWorkshop, workshopID, schema.RelAssesses, false)
		if err != nil {
			return err
		}
		if len(refs) == 0 {
			return fmt.Errorf("workshop %s assesses no process levels: %w", workshopID, storage.ErrNotFound)
		}
		for _, ref := range refs {
			node, err := tx.GetProcessNode(ctx, ref.ID)
			if err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					continue // dangling link
				}
				return err
			}
			if node.SignOffState != types.SignOffSigned {
				continue
			}
			if err := e.reopenNode(ctx, tx, node.ID, actor); err != nil {
				return err
			}
			reopened = append(reopened, node.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reopened, nil
}
