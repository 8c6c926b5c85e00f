package fit

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"

	"github.com/tracefit/tracefit/internal/storage"
	"github.com/tracefit/tracefit/internal/storage/sqlite"
	"github.com/tracefit/tracefit/internal/types"
)

// testTree opens an in-memory store seeded with one path through the
// hierarchy: scenario SC-1 > area BD > process BD9 > five sub-process steps.
func testTree(t *testing.T) (*sqlite.Store, *Engine) {
	t.Helper()
	store, err := sqlite.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	mkNode(t, store, "s1", "", 1, "SC-1")
	mkNode(t, store, "a1", "s1", 2, "BD")
	mkNode(t, store, "l3", "a1", 3, "BD9")
	for i := 1; i <= 5; i++ {
		mkNode(t, store, fmt.Sprintf("step%d", i), "l3", 4, fmt.Sprintf("BD9-%d", i))
	}
	return store, New(store, log.New(io.Discard))
}

func mkNode(t *testing.T, store *sqlite.Store, id, parent string, level int, code string) {
	t.Helper()
	err := store.CreateProcessNode(context.Background(), &types.ProcessNode{
		ID:        id,
		ProjectID: "p1",
		ParentID:  parent,
		Level:     level,
		Code:      code,
	})
	require.NoError(t, err)
}

func judgeAll(t *testing.T, e *Engine, judgments ...types.FitJudgment) {
	t.Helper()
	for i, j := range judgments {
		require.NoError(t, e.SetJudgment(context.Background(), fmt.Sprintf("step%d", i+1), j, "tester"))
	}
}

func TestSetJudgmentRequiresLevelFour(t *testing.T) {
	_, e := testTree(t)
	err := e.SetJudgment(context.Background(), "l3", types.FitJudgmentFit, "tester")
	require.ErrorIs(t, err, ErrNotLevelFour)
}

func TestSetJudgmentUnknownNode(t *testing.T) {
	_, e := testTree(t)
	err := e.SetJudgment(context.Background(), "nope", types.FitJudgmentFit, "tester")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPropagationPendingUntilAllJudged(t *testing.T) {
	store, e := testTree(t)
	ctx := context.Background()

	require.NoError(t, e.SetJudgment(ctx, "step1", types.FitJudgmentFit, "tester"))

	rec, err := store.GetConsolidation(ctx, "l3")
	require.NoError(t, err)
	require.Equal(t, types.FitStatusPending, rec.CalculatedStatus)
	require.Empty(t, rec.EffectiveStatus)

	area, err := store.GetProcessNode(ctx, "a1")
	require.NoError(t, err)
	require.Equal(t, types.ConfirmNotReady, area.ConfirmationState)
	require.Zero(t, area.ReadinessPct)
}

func TestPropagationMixedJudgments(t *testing.T) {
	store, e := testTree(t)
	ctx := context.Background()

	// fit, fit, gap, fit, partialFit: one gap out of five (ratio 0.2) is
	// below the gap threshold.
	judgeAll(t, e,
		types.FitJudgmentFit, types.FitJudgmentFit, types.FitJudgmentGap,
		types.FitJudgmentFit, types.FitPartialFit)

	rec, err := store.GetConsolidation(ctx, "l3")
	require.NoError(t, err)
	require.Equal(t, types.FitStatusPartialFit, rec.CalculatedStatus)
	require.Equal(t, types.FitStatusPartialFit, rec.EffectiveStatus)
	require.False(t, rec.IsOverride)

	// All children judged -> the one process is final -> the area flips to
	// ready at exactly 100%.
	area, err := store.GetProcessNode(ctx, "a1")
	require.NoError(t, err)
	require.Equal(t, types.ConfirmReady, area.ConfirmationState)
	require.Equal(t, float64(100), area.ReadinessPct)
}

func TestPropagationAllFit(t *testing.T) {
	store, e := testTree(t)
	judgeAll(t, e,
		types.FitJudgmentFit, types.FitJudgmentFit, types.FitJudgmentFit,
		types.FitJudgmentFit, types.FitJudgmentFit)

	rec, err := store.GetConsolidation(context.Background(), "l3")
	require.NoError(t, err)
	require.Equal(t, types.FitStatusFit, rec.CalculatedStatus)
}

func TestPropagationGapMajority(t *testing.T) {
	store, e := testTree(t)
	judgeAll(t, e,
		types.FitJudgmentGap, types.FitJudgmentGap, types.FitJudgmentGap,
		types.FitJudgmentFit, types.FitJudgmentFit)

	rec, err := store.GetConsolidation(context.Background(), "l3")
	require.NoError(t, err)
	require.Equal(t, types.FitStatusGap, rec.CalculatedStatus)
}

func TestPropagationGapAtThresholdIsPartialFit(t *testing.T) {
	store, err := sqlite.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	e := New(store, log.New(io.Discard))

	// Even split: ratio exactly 0.5 is not "more than half".
	mkNode(t, store, "s1", "", 1, "SC-1")
	mkNode(t, store, "a1", "s1", 2, "BD")
	mkNode(t, store, "l3", "a1", 3, "BD9")
	mkNode(t, store, "step1", "l3", 4, "BD9-1")
	mkNode(t, store, "step2", "l3", 4, "BD9-2")

	ctx := context.Background()
	require.NoError(t, e.SetJudgment(ctx, "step1", types.FitJudgmentGap, "tester"))
	require.NoError(t, e.SetJudgment(ctx, "step2", types.FitJudgmentFit, "tester"))

	rec, err := store.GetConsolidation(ctx, "l3")
	require.NoError(t, err)
	require.Equal(t, types.FitStatusPartialFit, rec.CalculatedStatus)
}

func TestUnsetJudgmentDefinalizes(t *testing.T) {
	store, e := testTree(t)
	ctx := context.Background()
	judgeAll(t, e,
		types.FitJudgmentFit, types.FitJudgmentFit, types.FitJudgmentFit,
		types.FitJudgmentFit, types.FitJudgmentFit)

	require.NoError(t, e.SetJudgment(ctx, "step3", types.FitJudgmentUnset, "tester"))

	rec, err := store.GetConsolidation(ctx, "l3")
	require.NoError(t, err)
	require.Equal(t, types.FitStatusPending, rec.CalculatedStatus)
	require.Empty(t, rec.EffectiveStatus)

	area, err := store.GetProcessNode(ctx, "a1")
	require.NoError(t, err)
	require.Equal(t, types.ConfirmNotReady, area.ConfirmationState)
}

func TestPropagationIdempotent(t *testing.T) {
	store, e := testTree(t)
	ctx := context.Background()
	judgeAll(t, e,
		types.FitJudgmentFit, types.FitJudgmentGap, types.FitJudgmentGap,
		types.FitJudgmentGap, types.FitJudgmentFit)

	before, err := store.GetConsolidation(ctx, "l3")
	require.NoError(t, err)

	require.NoError(t, e.Recalculate(ctx, "l3"))
	require.NoError(t, e.Recalculate(ctx, "l3"))

	after, err := store.GetConsolidation(ctx, "l3")
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestOutOfScopeChildrenIgnored(t *testing.T) {
	nodes := []*types.ProcessNode{
		{ID: "1", Level: 4, FitJudgment: types.FitJudgmentFit},
		{ID: "2", Level: 4, FitJudgment: types.FitJudgmentFit},
		{ID: "3", Level: 4, FitJudgment: types.FitJudgmentFit},
		{ID: "4", Level: 4, FitJudgment: types.FitJudgmentFit},
		{ID: "5", Level: 4, ScopeStatus: types.ScopeOutOfScope},
	}
	s := Summarize(nodes)
	require.Equal(t, 4, s.Total)
	require.Zero(t, s.Pending)
	require.Equal(t, types.FitStatusFit, CalculateStatus(s))
}

func TestCalculateStatusTable(t *testing.T) {
	tests := []struct {
		name string
		s    types.ChildSummary
		want types.FitStatus
	}{
		{"empty", types.ChildSummary{}, types.FitStatusPending},
		{"any pending", types.ChildSummary{Total: 3, Fit: 2, Pending: 1}, types.FitStatusPending},
		{"all fit", types.ChildSummary{Total: 3, Fit: 3}, types.FitStatusFit},
		{"gap majority", types.ChildSummary{Total: 3, Gap: 2, Fit: 1}, types.FitStatusGap},
		{"gap exactly half", types.ChildSummary{Total: 4, Gap: 2, Fit: 2}, types.FitStatusPartialFit},
		{"partial mix", types.ChildSummary{Total: 4, Fit: 3, PartialFit: 1}, types.FitStatusPartialFit},
		{"single gap", types.ChildSummary{Total: 1, Gap: 1}, types.FitStatusGap},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, CalculateStatus(tt.s))
		})
	}
}
