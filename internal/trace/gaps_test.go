package trace

import (
	"testing"

	"github.com/tracefit/tracefit/internal/schema"
	"github.com/tracefit/tracefit/internal/types"
)

func TestFindGapsMissingSpec(t *testing.T) {
	reg := schema.New(newFakeStore())

	// Requirement realized and tested, with workshop context, but no spec.
	result := &types.TraceResult{
		Entity: types.TraceNode{Type: types.EntityRequirement, ID: "r1"},
		Upstream: []types.TraceNode{
			{Type: types.EntityWorkshop, ID: "w1"},
		},
		Downstream: []types.TraceNode{
			{Type: types.EntityWricefItem, ID: "b1"},
			{Type: types.EntityTestCase, ID: "t1"},
		},
	}

	gaps := FindGaps(reg, types.EntityRequirement, result)
	if len(gaps) != 1 {
		t.Fatalf("got %d gaps (%v), want 1", len(gaps), gaps)
	}
	if gaps[0].Level != schema.TierSpec {
		t.Errorf("gap tier = %d, want %d", gaps[0].Level, schema.TierSpec)
	}
	// Depth scoring is independent: the chain still reaches tier 6.
	if d := ChainDepth(result); d != 6 {
		t.Errorf("ChainDepth = %d, want 6", d)
	}
}

func TestFindGapsAbsentDefectIsNotAGap(t *testing.T) {
	reg := schema.New(newFakeStore())

	result := &types.TraceResult{
		Entity: types.TraceNode{Type: types.EntityRequirement, ID: "r1"},
		Upstream: []types.TraceNode{
			{Type: types.EntityWorkshop, ID: "w1"},
		},
		Downstream: []types.TraceNode{
			{Type: types.EntityWricefItem, ID: "b1"},
			{Type: types.EntityFunctionalSpec, ID: "fs1"},
			{Type: types.EntityTestCase, ID: "t1"},
		},
	}

	if gaps := FindGaps(reg, types.EntityRequirement, result); len(gaps) != 0 {
		t.Errorf("complete chain without defect produced gaps: %v", gaps)
	}
}

func TestFindGapsBareRequirement(t *testing.T) {
	reg := schema.New(newFakeStore())

	result := &types.TraceResult{
		Entity: types.TraceNode{Type: types.EntityRequirement, ID: "r1"},
	}
	gaps := FindGaps(reg, types.EntityRequirement, result)
	// Context, realization, spec and test are all missing; the optional
	// defect segment is not.
	if len(gaps) != 4 {
		t.Fatalf("got %d gaps (%v), want 4", len(gaps), gaps)
	}
}

func TestFindGapsNoTemplate(t *testing.T) {
	reg := schema.New(newFakeStore())
	result := &types.TraceResult{
		Entity: types.TraceNode{Type: types.EntityDecision, ID: "d1"},
	}
	if gaps := FindGaps(reg, types.EntityDecision, result); gaps != nil {
		t.Errorf("decision produced gaps: %v", gaps)
	}
}
