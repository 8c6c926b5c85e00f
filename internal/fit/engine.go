// Package fit implements the fit-status consolidation engine: bottom-up
// status propagation over the 4-level process tree, human consolidation
// with override semantics, and the sign-off/confirmation state machines.
//
// Every mutation runs inside one storage transaction covering the whole
// affected subtree. A level-4 judgment write is never observable at level 3
// without its level-2 consequences; partial propagation is a correctness
// bug, not an intermediate state.
package fit

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/tracefit/tracefit/internal/schema"
	"github.com/tracefit/tracefit/internal/storage"
	"github.com/tracefit/tracefit/internal/types"
)

// gapThreshold is the share of gap judgments above which a level-3 node is
// calculated as gap rather than partialFit.
const gapThreshold = 0.5

// Engine drives all fit-status mutations. Reads go straight to the store;
// writes are transactional per level-3 (judgments) or level-2
// (confirmations) subtree, so edits to disjoint subtrees proceed
// independently.
type Engine struct {
	store  storage.Storage
	logger *log.Logger

	propagations metric.Int64Counter
}

// New creates a fit engine over the given store.
func New(store storage.Storage, logger *log.Logger) *Engine {
	meter := otel.Meter("github.com/tracefit/tracefit")
	propagations, _ := meter.Int64Counter("tracefit.propagations",
		metric.WithDescription("Number of bottom-up status propagations"))
	return &Engine{store: store, logger: logger, propagations: propagations}
}

// SetJudgment records (or clears, with FitJudgmentUnset) a level-4 fit
// judgment and propagates the consequences up the tree in the same
// transaction.
func (e *Engine) SetJudgment(ctx context.Context, nodeID string, j types.FitJudgment, actor string) error {
	if !j.IsValid() {
		return fmt.Errorf("invalid fit judgment: %q", j)
	}
	err := e.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		node, err := tx.GetProcessNode(ctx, nodeID)
		if err != nil {
			return err
		}
		if node.Level != 4 {
			return ErrNotLevelFour
		}
		old := string(node.FitJudgment)
		if err := tx.SetFitJudgment(ctx, nodeID, j); err != nil {
			return err
		}

		evType := types.EventJudgmentSet
		if !j.IsSet() {
			evType = types.EventJudgmentUnset
		}
		newVal := string(j)
		if err := tx.AddEvent(ctx, &types.Event{
			NodeID:    nodeID,
			EventType: evType,
			Actor:     actor,
			OldValue:  &old,
			NewValue:  &newVal,
		}); err != nil {
			return err
		}

		return e.propagate(ctx, tx, node.ParentID)
	})
	if err != nil {
		return err
	}
	e.propagations.Add(ctx, 1)
	return nil
}

// Recalculate re-runs propagation for a level-3 subtree without changing
// any judgment. Idempotent: running it twice produces identical state.
func (e *Engine) Recalculate(ctx context.Context, l3ID string) error {
	return e.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		return e.propagate(ctx, tx, l3ID)
	})
}

// propagate recomputes the level-3 calculated status from its level-4
// children, updates the consolidation record and sign-off state, then
// re-derives level-2 readiness. Level 1 carries only aggregates and is
// computed on read.
func (e *Engine) propagate(ctx context.Context, tx storage.Transaction, l3ID string) error {
	l3, err := tx.GetProcessNode(ctx, l3ID)
	if err != nil {
		return err
	}
	if l3.Level != 3 {
		return fmt.Errorf("propagation target %s is level %d: %w", l3ID, l3.Level, ErrNotLevelThree)
	}

	children, err := tx.GetChildren(ctx, l3ID)
	if err != nil {
		return err
	}
	summary := Summarize(children)
	calc := CalculateStatus(summary)

	rec, err := tx.GetConsolidation(ctx, l3ID)
	if err != nil {
		return err
	}
	rec.CalculatedStatus = calc
	if rec.IsOverride {
		// A later judgment change never silently overwrites the human
		// decision; divergence is surfaced as data instead.
		rec.Stale = rec.EffectiveStatus != calc
	} else {
		rec.Stale = false
		if calc.IsFinal() {
			rec.EffectiveStatus = calc
		} else {
			rec.EffectiveStatus = ""
		}
	}
	if err := tx.SaveConsolidation(ctx, rec); err != nil {
		return err
	}

	if err := e.autoSignOffState(ctx, tx, l3, calc); err != nil {
		return err
	}

	return e.propagateArea(ctx, tx, l3.ParentID)
}

// autoSignOffState drives the automatic part of the level-3 state machine.
// Manual transitions (signedOff) and external ones (reopened) are never
// applied here; a signed-off node keeps its state and surfaces divergence
// through the stale flag.
func (e *Engine) autoSignOffState(ctx context.Context, tx storage.Transaction, l3 *types.ProcessNode, calc types.FitStatus) error {
	switch l3.SignOffState {
	case types.SignOffSigned:
		return nil
	case types.SignOffPending, types.SignOffReopened, types.SignOffReady, "":
		next := types.SignOffPending
		if calc.IsFinal() {
			blockers, err := e.signOffBlockers(ctx, tx, l3)
			if err != nil {
				return err
			}
			if len(blockers) == 0 {
				next = types.SignOffReady
			}
		}
		if next != l3.SignOffState {
			return tx.SetSignOffState(ctx, l3.ID, next)
		}
		return nil
	default:
		return fmt.Errorf("invalid sign-off state %q on %s", l3.SignOffState, l3.ID)
	}
}

// propagateArea recomputes level-2 readiness from the effective statuses of
// all in-scope level-3 children and flips notReady/ready, never skipping
// states. Confirmed states are only reverted by the reopen cascade.
func (e *Engine) propagateArea(ctx context.Context, tx storage.Transaction, l2ID string) error {
	l2, err := tx.GetProcessNode(ctx, l2ID)
	if err != nil {
		return err
	}
	if l2.Level != 2 {
		return fmt.Errorf("readiness target %s is level %d: %w", l2ID, l2.Level, ErrNotLevelTwo)
	}

	pct, err := e.readiness(ctx, tx, l2ID)
	if err != nil {
		return err
	}

	state := l2.ConfirmationState
	switch {
	case state == "" || state == types.ConfirmNotReady:
		if pct == 100 {
			state = types.ConfirmReady
		} else {
			state = types.ConfirmNotReady
		}
	case state == types.ConfirmReady:
		if pct < 100 {
			state = types.ConfirmNotReady
		}
	}

	if state == l2.ConfirmationState && pct == l2.ReadinessPct {
		return nil
	}
	return tx.SetConfirmation(ctx, l2ID, state, pct, l2.ConfirmationNote)
}

// readiness is the percentage of in-scope level-3 children with a non-empty
// effective status.
func (e *Engine) readiness(ctx context.Context, tx storage.Transaction, l2ID string) (float64, error) {
	children, err := tx.GetChildren(ctx, l2ID)
	if err != nil {
		return 0, err
	}
	total, done := 0, 0
	for _, child := range children {
		if !child.InScope() {
			continue
		}
		total++
		rec, err := tx.GetConsolidation(ctx, child.ID)
		if err != nil {
			return 0, err
		}
		if rec.EffectiveStatus.IsFinal() {
			done++
		}
	}
	if total == 0 {
		return 0, nil
	}
	return float64(done) / float64(total) * 100, nil
}

// Summarize counts level-4 judgments across the in-scope children.
func Summarize(children []*types.ProcessNode) types.ChildSummary {
	var s types.ChildSummary
	for _, c := range children {
		if !c.InScope() {
			continue
		}
		s.Total++
		switch c.FitJudgment {
		case types.FitJudgmentFit:
			s.Fit++
		case types.FitJudgmentGap:
			s.Gap++
		case types.FitPartialFit:
			s.PartialFit++
		default:
			s.Pending++
		}
	}
	return s
}

// CalculateStatus derives a level-3 calculated status from its children's
// judgment counts:
//
//   - any child unjudged -> pending (propagation is not final)
//   - all fit            -> fit
//   - gaps over half     -> gap
//   - otherwise          -> partialFit
func CalculateStatus(s types.ChildSummary) types.FitStatus {
	if s.Total == 0 || s.Pending > 0 {
		return types.FitStatusPending
	}
	if s.Fit == s.Total {
		return types.FitStatusFit
	}
	if s.Gap > 0 && s.GapRatio() > gapThreshold {
		return types.FitStatusGap
	}
	return types.FitStatusPartialFit
}

// signOffBlockers gathers every unmet sign-off precondition for a level-3
// node: unjudged level-4 children, unresolved priority-1 open items, and
// linked requirements below approved.
func (e *Engine) signOffBlockers(ctx context.Context, tx storage.Transaction, l3 *types.ProcessNode) ([]string, error) {
	var blockers []string

	children, err := tx.GetChildren(ctx, l3.ID)
	if err != nil {
		return nil, err
	}
	for _, c := range children {
		if c.InScope() && !c.FitJudgment.IsSet() {
			blockers = append(blockers, fmt.Sprintf("fit judgment missing for %s", c.Code))
		}
	}

	levelRef := types.Ref{Type: types.EntityProcessLevel, ID: l3.ID}
	items, err := tx.LinkedEntities(ctx, levelRef, types.EntityOpenItem, schema.RelRaisedFor)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		if it.Priority == 1 && types.OpenItemUnresolved(it.Status) {
			blockers = append(blockers, fmt.Sprintf("unresolved P1 open item %s", it.Code))
		}
	}

	reqs, err := tx.LinkedEntities(ctx, levelRef, types.EntityRequirement, schema.RelRaisedFor)
	if err != nil {
		return nil, err
	}
	for _, req := range reqs {
		if !types.RequirementStatusApproved(req.Status) {
			blockers = append(blockers, fmt.Sprintf("requirement %s not approved (%s)", req.Code, req.Status))
		}
	}

	return blockers, nil
}

func now() *time.Time {
	t := time.Now().UTC()
	return &t
}
