package fit

import (
	"context"
	"fmt"

	"github.com/tracefit/tracefit/internal/schema"
	"github.com/tracefit/tracefit/internal/storage"
	"github.com/tracefit/tracefit/internal/types"
)

// Confirm formally closes a level-2 process area. Plain confirmed requires
// zero unresolved open items anywhere in the subtree; confirmedWithRisk
// tolerates non-blocking (priority > 1) ones. Both require the node to be
// ready, i.e. 100% of in-scope level-3 children carry an effective status.
func (e *Engine) Confirm(ctx context.Context, l2ID string, target types.ConfirmationState, note, actor string) error {
	if target != types.Confirmed && target != types.ConfirmedRisk {
		return fmt.Errorf("confirmation status must be %q or %q (got %q)",
			types.Confirmed, types.ConfirmedRisk, target)
	}

	return e.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		node, err := tx.GetProcessNode(ctx, l2ID)
		if err != nil {
			return err
		}
		if node.Level != 2 {
			return ErrNotLevelTwo
		}
		if node.ConfirmationState == target {
			return nil
		}

		var blockers []string
		if node.ConfirmationState != types.ConfirmReady {
			blockers = append(blockers, fmt.Sprintf("area is %s (readiness %.0f%%)",
				node.ConfirmationState, node.ReadinessPct))
		}

		open, err := e.unresolvedOpenItems(ctx, tx, node)
		if err != nil {
			return err
		}
		for _, it := range open {
			if it.Priority == 1 {
				blockers = append(blockers, fmt.Sprintf("unresolved P1 open item %s", it.Code))
			} else if target == types.Confirmed {
				blockers = append(blockers, fmt.Sprintf("unresolved open item %s (confirm with risk instead)", it.Code))
			}
		}
		if len(blockers) > 0 {
			return &SignOffBlockedError{NodeID: l2ID, Blockers: blockers}
		}

		if err := tx.SetConfirmation(ctx, l2ID, target, node.ReadinessPct, note); err != nil {
			return err
		}
		old, newVal := string(node.ConfirmationState), string(target)
		ev := &types.Event{
			NodeID:    l2ID,
			EventType: types.EventConfirmed,
			Actor:     actor,
			OldValue:  &old,
			NewValue:  &newVal,
		}
		if note != "" {
			ev.Comment = &note
		}
		return tx.AddEvent(ctx, ev)
	})
}

// unresolvedOpenItems collects unresolved open items linked to the level-2
// node or any of its level-3 children.
func (e *Engine) unresolvedOpenItems(ctx context.Context, tx storage.Transaction, l2 *types.ProcessNode) ([]*types.EntityRow, error) {
	ids := []string{l2.ID}
	children, err := tx.GetChildren(ctx, l2.ID)
	if err != nil {
		return nil, err
	}
	for _, c := range children {
		if c.InScope() {
			ids = append(ids, c.ID)
		}
	}

	var open []*types.EntityRow
	for _, id := range ids {
		items, err := tx.LinkedEntities(ctx, types.Ref{Type: types.EntityProcessLevel, ID: id},
			types.EntityOpenItem, schema.RelRaisedFor)
		if err != nil {
			return nil, err
		}
		for _, it := range items {
			if types.OpenItemUnresolved(it.Status) {
				open = append(open, it)
			}
		}
	}
	return open, nil
}
