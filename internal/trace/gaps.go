package trace

import (
	"github.com/tracefit/tracefit/internal/schema"
	"github.com/tracefit/tracefit/internal/types"
)

// FindGaps diffs an entity type's canonical chain template against what a
// traversal actually found and reports every required segment that is
// absent. It is a pure function over the trace result.
//
// Optional segments (notably downstream defects) never produce gaps: a
// missing defect usually means the tests pass.
func FindGaps(reg *schema.Registry, t types.EntityType, result *types.TraceResult) []types.Gap {
	template := reg.Template(t)
	if len(template) == 0 {
		return nil
	}

	var gaps []types.Gap
	for _, seg := range template {
		if seg.Optional {
			continue
		}
		nodes := result.Downstream
		if seg.Direction == types.EdgeUpstream {
			nodes = result.Upstream
		}
		if !segmentPresent(seg, result.Entity, nodes) {
			gaps = append(gaps, types.Gap{Level: seg.Tier, Message: seg.Message})
		}
	}
	return gaps
}

func segmentPresent(seg schema.Segment, root types.TraceNode, nodes []types.TraceNode) bool {
	for _, want := range seg.Types {
		if root.Type == want {
			return true
		}
		for _, n := range nodes {
			if n.Type == want {
				return true
			}
		}
	}
	return false
}
