package fit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tracefit/tracefit/internal/schema"
	"github.com/tracefit/tracefit/internal/types"
)

func TestConfirmRequiresLevelTwo(t *testing.T) {
	_, e := testTree(t)
	err := e.Confirm(context.Background(), "l3", types.Confirmed, "", "owner")
	require.ErrorIs(t, err, ErrNotLevelTwo)
}

func TestConfirmRejectsOtherStates(t *testing.T) {
	_, e := testTree(t)
	err := e.Confirm(context.Background(), "a1", types.ConfirmReady, "", "owner")
	require.Error(t, err)
}

func TestConfirmBlockedWhenNotReady(t *testing.T) {
	_, e := testTree(t)
	ctx := context.Background()
	require.NoError(t, e.SetJudgment(ctx, "step1", types.FitJudgmentFit, "tester"))

	err := e.Confirm(ctx, "a1", types.Confirmed, "", "owner")
	var blocked *SignOffBlockedError
	require.ErrorAs(t, err, &blocked)
	require.Contains(t, blocked.Blockers[0], "notReady")
}

func TestConfirmHappyPath(t *testing.T) {
	store, e := testTree(t)
	ctx := context.Background()
	allFit(t, e)

	require.NoError(t, e.Confirm(ctx, "a1", types.Confirmed, "all clear", "owner"))

	area, err := store.GetProcessNode(ctx, "a1")
	require.NoError(t, err)
	require.Equal(t, types.Confirmed, area.ConfirmationState)
	require.Equal(t, "all clear", area.ConfirmationNote)

	// Repeating the same confirmation is a no-op.
	require.NoError(t, e.Confirm(ctx, "a1", types.Confirmed, "all clear", "owner"))
}

func TestConfirmWithOpenItems(t *testing.T) {
	store, e := testTree(t)
	ctx := context.Background()
	allFit(t, e)

	// Non-blocking open item on a level-3 child.
	require.NoError(t, store.PutEntity(ctx, &types.EntityRow{
		Type: types.EntityOpenItem, ID: "oi1", Code: "OI-007",
		Status: types.OpenItemOpen, Priority: 2,
	}))
	require.NoError(t, store.Link(ctx,
		types.Ref{Type: types.EntityOpenItem, ID: "oi1"},
		types.Ref{Type: types.EntityProcessLevel, ID: "l3"},
		schema.RelRaisedFor))

	// Plain confirmed is blocked and points at the withRisk path.
	err := e.Confirm(ctx, "a1", types.Confirmed, "", "owner")
	var blocked *SignOffBlockedError
	require.ErrorAs(t, err, &blocked)
	require.Contains(t, blocked.Blockers[0], "confirm with risk instead")

	// confirmedWithRisk tolerates the non-blocking item.
	require.NoError(t, e.Confirm(ctx, "a1", types.ConfirmedRisk, "OI-007 tracked", "owner"))

	area, err := store.GetProcessNode(ctx, "a1")
	require.NoError(t, err)
	require.Equal(t, types.ConfirmedRisk, area.ConfirmationState)
}

func TestConfirmP1BlocksBothVariants(t *testing.T) {
	store, e := testTree(t)
	ctx := context.Background()
	allFit(t, e)

	require.NoError(t, store.PutEntity(ctx, &types.EntityRow{
		Type: types.EntityOpenItem, ID: "oi1", Code: "OI-001",
		Status: types.OpenItemInProgress, Priority: 1,
	}))
	require.NoError(t, store.Link(ctx,
		types.Ref{Type: types.EntityOpenItem, ID: "oi1"},
		types.Ref{Type: types.EntityProcessLevel, ID: "a1"},
		schema.RelRaisedFor))

	var blocked *SignOffBlockedError
	require.ErrorAs(t, e.Confirm(ctx, "a1", types.Confirmed, "", "owner"), &blocked)
	require.ErrorAs(t, e.Confirm(ctx, "a1", types.ConfirmedRisk, "", "owner"), &blocked)
	require.Contains(t, blocked.Blockers[0], "P1 open item OI-001")
}
