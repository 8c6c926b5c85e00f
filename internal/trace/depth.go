package trace

import (
	"github.com/tracefit/tracefit/internal/schema"
	"github.com/tracefit/tracefit/internal/types"
)

// tierTypes maps each chain tier to the entity types that satisfy it.
var tierTypes = map[int][]types.EntityType{
	schema.TierRequirement: {types.EntityRequirement},
	schema.TierRealization: {types.EntityWricefItem, types.EntityConfigItem, types.EntityInterface},
	schema.TierSpec:        {types.EntityFunctionalSpec, types.EntityTechnicalSpec},
	schema.TierTest:        {types.EntityTestCase},
	schema.TierDefect:      {types.EntityDefect},
	schema.TierContext:     {types.EntityWorkshop, types.EntityScenario, types.EntityProcessStep},
}

// ChainDepth maps the entity types present across a traversal (root,
// upstream and downstream) onto the 1-6 ordinal chain depth.
//
// The score is the maximum satisfied tier, not a cumulative count: a chain
// with a test case but no spec still scores 4, because specs are
// documentation, not a gate for testing. Returns 0 when no canonical chain
// type is present at all (e.g. cutover entities traced in isolation).
func ChainDepth(result *types.TraceResult) int {
	depth := 0
	for tier := schema.TierRequirement; tier <= schema.TierContext; tier++ {
		for _, t := range tierTypes[tier] {
			if result.Has(t) {
				depth = tier
				break
			}
		}
	}
	return depth
}
