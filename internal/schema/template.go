package schema

import "github.com/tracefit/tracefit/internal/types"

// Chain tiers for the canonical requirement-to-defect chain. The depth
// scorer and the gap templates share this numbering.
const (
	TierRequirement = 1
	TierRealization = 2
	TierSpec        = 3
	TierTest        = 4
	TierDefect      = 5
	TierContext     = 6
)

// Segment is one expected link of an entity type's canonical chain. The gap
// detector diffs segments against what traversal actually found. Optional
// segments never produce gaps: an absent defect usually means the tests
// pass, not that the chain is broken.
type Segment struct {
	Tier      int
	Direction types.EdgeKind // upstream or downstream
	Types     []types.EntityType
	Optional  bool
	Message   string
}

// Template returns the ordered canonical chain template for an entity type,
// or nil when the type has no chain expectations (cutover entities,
// decisions).
func (r *Registry) Template(t types.EntityType) []Segment {
	return r.templates[t]
}

func (r *Registry) registerTemplates() {
	realization := []types.EntityType{types.EntityWricefItem, types.EntityConfigItem, types.EntityInterface}
	specs := []types.EntityType{types.EntityFunctionalSpec, types.EntityTechnicalSpec}
	context := []types.EntityType{types.EntityWorkshop, types.EntityScenario, types.EntityProcessStep}

	r.templates[types.EntityRequirement] = []Segment{
		{Tier: TierContext, Direction: types.EdgeUpstream, Types: context,
			Message: "no originating workshop or scenario"},
		{Tier: TierRealization, Direction: types.EdgeDownstream, Types: realization,
			Message: "no WRICEF or configuration item realizes this requirement"},
		{Tier: TierSpec, Direction: types.EdgeDownstream, Types: specs,
			Message: "no functional spec"},
		{Tier: TierTest, Direction: types.EdgeDownstream, Types: []types.EntityType{types.EntityTestCase},
			Message: "no test case covers this chain"},
		{Tier: TierDefect, Direction: types.EdgeDownstream, Types: []types.EntityType{types.EntityDefect},
			Optional: true, Message: "no defect recorded"},
	}

	itemTemplate := []Segment{
		{Tier: TierRequirement, Direction: types.EdgeUpstream, Types: []types.EntityType{types.EntityRequirement},
			Message: "no requirement links to this item"},
		{Tier: TierContext, Direction: types.EdgeUpstream, Types: context,
			Optional: true, Message: "no upstream process context"},
		{Tier: TierSpec, Direction: types.EdgeDownstream, Types: specs,
			Message: "no functional spec"},
		{Tier: TierTest, Direction: types.EdgeDownstream, Types: []types.EntityType{types.EntityTestCase},
			Message: "no test case"},
		{Tier: TierDefect, Direction: types.EdgeDownstream, Types: []types.EntityType{types.EntityDefect},
			Optional: true, Message: "no defect recorded"},
	}
	r.templates[types.EntityWricefItem] = itemTemplate
	r.templates[types.EntityConfigItem] = itemTemplate

	r.templates[types.EntityFunctionalSpec] = []Segment{
		{Tier: TierRealization, Direction: types.EdgeUpstream, Types: realization,
			Message: "not linked to a WRICEF or configuration item"},
	}
	r.templates[types.EntityTestCase] = []Segment{
		{Tier: TierRealization, Direction: types.EdgeUpstream, Types: realization,
			Message: "not linked to a realization item"},
		{Tier: TierDefect, Direction: types.EdgeDownstream, Types: []types.EntityType{types.EntityDefect},
			Optional: true, Message: "no defect recorded"},
	}
	r.templates[types.EntityWorkshop] = []Segment{
		{Tier: TierRequirement, Direction: types.EdgeDownstream, Types: []types.EntityType{types.EntityRequirement},
			Message: "no requirements captured from this workshop"},
	}
}
