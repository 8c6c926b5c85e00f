package fit

import (
	"context"
	"fmt"

	"github.com/tracefit/tracefit/internal/storage"
	"github.com/tracefit/tracefit/internal/types"
)

// Consolidate records the human decision for a level-3 node at the
// aggregation boundary: either accepting the calculated status or
// overriding it with a mandatory rationale.
//
// Preconditions: the node is level 3 and every in-scope level-4 child has a
// judgment. A decision that differs from the calculated status without a
// rationale fails with ErrMissingRationale. Repeating the same decision is
// idempotent. Level-2 readiness is re-derived in the same transaction — an
// override can itself flip readiness.
func (e *Engine) Consolidate(ctx context.Context, l3ID string, decision types.FitStatus, rationale, actor string) (*types.ConsolidationRecord, error) {
	switch decision {
	case types.FitStatusFit, types.FitStatusGap, types.FitStatusPartialFit:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidDecision, decision)
	}

	var rec *types.ConsolidationRecord
	err := e.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		node, err := tx.GetProcessNode(ctx, l3ID)
		if err != nil {
			return err
		}
		if node.Level != 3 {
			return ErrNotLevelThree
		}

		children, err := tx.GetChildren(ctx, l3ID)
		if err != nil {
			return err
		}
		summary := Summarize(children)
		if summary.Pending > 0 || summary.Total == 0 {
			return fmt.Errorf("%w (%d of %d unjudged)", ErrPendingChildren, summary.Pending, summary.Total)
		}

		calc := CalculateStatus(summary)
		isOverride := decision != calc
		if isOverride && rationale == "" {
			return ErrMissingRationale
		}

		rec, err = tx.GetConsolidation(ctx, l3ID)
		if err != nil {
			return err
		}
		rec.CalculatedStatus = calc
		rec.EffectiveStatus = decision
		rec.IsOverride = isOverride
		rec.OverrideRationale = rationale
		if !isOverride {
			rec.OverrideRationale = ""
		}
		rec.DecidedBy = actor
		rec.DecidedAt = now()
		rec.Stale = false
		if err := tx.SaveConsolidation(ctx, rec); err != nil {
			return err
		}

		evType := types.EventConsolidated
		if isOverride {
			evType = types.EventOverridden
		}
		oldVal, newVal := string(calc), string(decision)
		comment := rationale
		ev := &types.Event{
			NodeID:    l3ID,
			EventType: evType,
			Actor:     actor,
			OldValue:  &oldVal,
			NewValue:  &newVal,
		}
		if comment != "" {
			ev.Comment = &comment
		}
		if err := tx.AddEvent(ctx, ev); err != nil {
			return err
		}

		// A consolidation can complete (or un-complete) a level-3 node, so
		// the sign-off state and level-2 readiness follow immediately.
		if err := e.autoSignOffState(ctx, tx, node, calc); err != nil {
			return err
		}
		return e.propagateArea(ctx, tx, node.ParentID)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}
