// Package trace implements the graph traversal engine plus the pure
// functions computed over its results: gap detection and chain depth
// scoring.
package trace

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/tracefit/tracefit/internal/schema"
	"github.com/tracefit/tracefit/internal/storage"
	"github.com/tracefit/tracefit/internal/types"
)

// MaxDepth is the hard traversal depth cap.
const MaxDepth = 20

// ErrDepthOutOfRange is returned when the caller requests a depth above
// MaxDepth or below 1.
var ErrDepthOutOfRange = fmt.Errorf("depth must be between 1 and %d", MaxDepth)

// Engine walks the entity graph through the schema registry. It performs
// pure reads and takes no engine-owned locks, so traversals may run with
// unlimited concurrency.
type Engine struct {
	reg    *schema.Registry
	store  schema.TraceStore
	logger *log.Logger

	traversals metric.Int64Counter
}

// New creates a traversal engine over the given registry and store.
func New(reg *schema.Registry, store schema.TraceStore, logger *log.Logger) *Engine {
	meter := otel.Meter("github.com/tracefit/tracefit")
	traversals, _ := meter.Int64Counter("tracefit.traversals",
		metric.WithDescription("Number of graph traversals performed"))
	return &Engine{reg: reg, store: store, logger: logger, traversals: traversals}
}

// Trace resolves the upstream chain, downstream chain and (optionally) the
// root's lateral set for any registered entity.
//
// Both chains preserve traversal order, root-adjacent first. The chain is a
// DAG by construction, but visited pairs are tracked defensively: a
// repeated (type, id) ends that branch instead of failing. A dangling
// mid-chain reference truncates the branch and is recorded in
// TraceResult.Truncated; only a missing root is an error.
func (e *Engine) Trace(ctx context.Context, rawType, id string, maxDepth int, includeLateral bool) (*types.TraceResult, error) {
	t, err := e.reg.Normalize(rawType)
	if err != nil {
		return nil, err
	}
	if maxDepth == 0 {
		maxDepth = MaxDepth
	}
	if maxDepth < 1 || maxDepth > MaxDepth {
		return nil, ErrDepthOutOfRange
	}

	desc, err := e.reg.Describe(t)
	if err != nil {
		return nil, err
	}

	row, err := e.store.GetEntity(ctx, t, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s/%s: %w", t, id, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("resolve root %s/%s: %w", t, id, err)
	}

	result := &types.TraceResult{Entity: row.TraceNode()}
	root := types.Ref{Type: t, ID: id}

	result.Upstream, err = e.walk(ctx, root, types.EdgeUpstream, maxDepth, result)
	if err != nil {
		return nil, err
	}
	result.Downstream, err = e.walk(ctx, root, types.EdgeDownstream, maxDepth, result)
	if err != nil {
		return nil, err
	}

	// Lateral links are fetched for the root only, never recursively.
	if includeLateral && desc.LateralOf != nil {
		refs, err := desc.LateralOf(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("lateral links of %s/%s: %w", t, id, err)
		}
		for _, ref := range refs {
			node, ok := e.resolve(ctx, ref, result)
			if !ok {
				continue
			}
			if result.Lateral == nil {
				result.Lateral = make(map[string][]types.TraceNode)
			}
			key := string(node.Type)
			result.Lateral[key] = append(result.Lateral[key], node)
			result.Edges = append(result.Edges, types.TraceEdge{From: root, To: ref, Kind: types.EdgeLateral})
		}
	}

	e.traversals.Add(ctx, 1)
	return result, nil
}

// walk is a breadth-first expansion in one direction.
func (e *Engine) walk(ctx context.Context, root types.Ref, kind types.EdgeKind, maxDepth int, result *types.TraceResult) ([]types.TraceNode, error) {
	type item struct {
		ref   types.Ref
		depth int
	}

	visited := map[types.Ref]bool{root: true}
	queue := []item{{ref: root, depth: 0}}
	var out []types.TraceNode

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= maxDepth {
			continue
		}

		desc, err := e.reg.Describe(cur.ref.Type)
		if err != nil {
			// Link rows can point at types outside the registry; treat the
			// branch as ended rather than failing the traversal.
			e.logger.Debug("unregistered type mid-chain", "type", cur.ref.Type, "id", cur.ref.ID)
			continue
		}
		neighbors := desc.DownstreamOf
		if kind == types.EdgeUpstream {
			neighbors = desc.UpstreamOf
		}
		if neighbors == nil {
			continue
		}

		refs, err := neighbors(ctx, cur.ref.ID)
		if err != nil {
			return nil, fmt.Errorf("neighbors of %s/%s: %w", cur.ref.Type, cur.ref.ID, err)
		}
		for _, ref := range refs {
			if visited[ref] {
				continue
			}
			visited[ref] = true
			node, ok := e.resolve(ctx, ref, result)
			if !ok {
				continue
			}
			node.Depth = cur.depth + 1
			// Resolution may map a link-target type (process_level) onto the
			// concrete node type; mark both as visited.
			visited[node.Ref()] = true
			out = append(out, node)
			result.Edges = append(result.Edges, types.TraceEdge{From: cur.ref, To: node.Ref(), Kind: kind})
			queue = append(queue, item{ref: node.Ref(), depth: cur.depth + 1})
		}
	}
	return out, nil
}

// resolve dereferences a neighbor. A dangling reference truncates the
// branch: it is recorded for gap reporting, not surfaced as an error.
func (e *Engine) resolve(ctx context.Context, ref types.Ref, result *types.TraceResult) (types.TraceNode, bool) {
	row, err := e.store.GetEntity(ctx, ref.Type, ref.ID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			e.logger.Warn("entity dereference failed", "type", ref.Type, "id", ref.ID, "error", err)
		}
		result.Truncated = append(result.Truncated, ref)
		return types.TraceNode{}, false
	}
	return row.TraceNode(), true
}
