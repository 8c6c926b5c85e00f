package trace

import (
	"context"

	"github.com/tracefit/tracefit/internal/types"
)

// Report bundles a traversal with the analyses derived from it: the ordinal
// chain depth and the missing-segment gaps.
type Report struct {
	*types.TraceResult
	ChainDepth int         `json:"chainDepth"`
	Gaps       []types.Gap `json:"gaps"`
}

// Analyze runs a traversal and computes gaps and chain depth over the
// result in one call.
func (e *Engine) Analyze(ctx context.Context, rawType, id string, maxDepth int, includeLateral bool) (*Report, error) {
	t, err := e.reg.Normalize(rawType)
	if err != nil {
		return nil, err
	}
	result, err := e.Trace(ctx, rawType, id, maxDepth, includeLateral)
	if err != nil {
		return nil, err
	}
	gaps := FindGaps(e.reg, t, result)
	if gaps == nil {
		gaps = []types.Gap{}
	}
	return &Report{
		TraceResult: result,
		ChainDepth:  ChainDepth(result),
		Gaps:        gaps,
	}, nil
}
