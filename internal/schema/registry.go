// Package schema is the static description of every entity type that
// participates in the traceability graph: how to resolve its upstream,
// downstream and lateral neighbors, and which canonical chain segments it is
// expected to have.
//
// The traversal engine never switches on entity types. Registering type #17
// means adding one descriptor here and nothing else.
package schema

import (
	"context"
	"errors"
	"strings"

	"github.com/tracefit/tracefit/internal/types"
)

// ErrUnknownEntityType is returned by Describe for unregistered types. This
// is the single source of the "400 for invalid type" contract.
var ErrUnknownEntityType = errors.New("unknown entity type")

// TraceStore is the read surface the registry needs from the collaborator
// entity stores. Edges are not persisted; they are resolved on demand from
// the foreign-key link rows those stores own.
type TraceStore interface {
	GetEntity(ctx context.Context, t types.EntityType, id string) (*types.EntityRow, error)
	Linked(ctx context.Context, t types.EntityType, id, relation string, reverse bool) ([]types.Ref, error)
	// ProcessAncestor walks the process tree from a node to its ancestor at
	// the given level.
	ProcessAncestor(ctx context.Context, nodeID string, level int) (types.Ref, error)
}

// NeighborFunc resolves the neighbors of one entity in one direction.
type NeighborFunc func(ctx context.Context, id string) ([]types.Ref, error)

// Descriptor describes a single entity type. The three neighbor functions
// query the appropriate collaborator store; nil means "no neighbors in that
// direction".
type Descriptor struct {
	Type         types.EntityType
	UpstreamOf   NeighborFunc
	DownstreamOf NeighborFunc
	LateralOf    NeighborFunc
}

// Registry holds the descriptor and chain template for every registered
// entity type. It is immutable after construction and safe for concurrent
// reads.
type Registry struct {
	store       TraceStore
	descriptors map[types.EntityType]*Descriptor
	templates   map[types.EntityType][]Segment
	aliases     map[string]types.EntityType
}

// New builds a registry over the given store with all sixteen concrete
// entity types registered.
func New(store TraceStore) *Registry {
	r := &Registry{
		store:       store,
		descriptors: make(map[types.EntityType]*Descriptor),
		templates:   make(map[types.EntityType][]Segment),
		aliases: map[string]types.EntityType{
			// Legacy API name for development/realization items.
			"backlog_item": types.EntityWricefItem,
			"wricef":       types.EntityWricefItem,
		},
	}
	r.registerAll()
	r.registerTemplates()
	return r
}

// Describe returns the descriptor for an entity type.
func (r *Registry) Describe(t types.EntityType) (*Descriptor, error) {
	d, ok := r.descriptors[t]
	if !ok {
		return nil, ErrUnknownEntityType
	}
	return d, nil
}

// Normalize resolves a raw type string (API path segment, CLI argument) to a
// registered entity type, honoring aliases.
func (r *Registry) Normalize(raw string) (types.EntityType, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if t, ok := r.aliases[s]; ok {
		return t, nil
	}
	t := types.EntityType(s)
	if _, ok := r.descriptors[t]; !ok {
		return "", ErrUnknownEntityType
	}
	return t, nil
}

// Register adds or replaces a descriptor. Exposed so deployments with
// additional entity types extend the registry without touching the engine.
func (r *Registry) Register(d *Descriptor) {
	r.descriptors[d.Type] = d
}

// Types returns the registered entity types (unordered).
func (r *Registry) Types() []types.EntityType {
	out := make([]types.EntityType, 0, len(r.descriptors))
	for t := range r.descriptors {
		out = append(out, t)
	}
	return out
}

// out resolves forward link rows: entities this one points at through the
// given relations.
func (r *Registry) out(t types.EntityType, relations ...string) NeighborFunc {
	return func(ctx context.Context, id string) ([]types.Ref, error) {
		var all []types.Ref
		for _, rel := range relations {
			refs, err := r.store.Linked(ctx, t, id, rel, false)
			if err != nil {
				return nil, err
			}
			all = append(all, refs...)
		}
		return all, nil
	}
}

// in resolves reverse link rows: entities pointing at this one through the
// given relations.
func (r *Registry) in(t types.EntityType, relations ...string) NeighborFunc {
	return func(ctx context.Context, id string) ([]types.Ref, error) {
		var all []types.Ref
		for _, rel := range relations {
			refs, err := r.store.Linked(ctx, t, id, rel, true)
			if err != nil {
				return nil, err
			}
			all = append(all, refs...)
		}
		return all, nil
	}
}

// merge chains neighbor functions, preserving order.
func merge(fns ...NeighborFunc) NeighborFunc {
	return func(ctx context.Context, id string) ([]types.Ref, error) {
		var all []types.Ref
		for _, fn := range fns {
			if fn == nil {
				continue
			}
			refs, err := fn(ctx, id)
			if err != nil {
				return nil, err
			}
			all = append(all, refs...)
		}
		return all, nil
	}
}

// laterals is the common lateral set: open items raised on the entity,
// decisions taken for it, interfaces touching it.
func (r *Registry) laterals(t types.EntityType) NeighborFunc {
	return merge(
		r.in(t, RelRaisedOn),
		r.in(t, RelDecidedFor),
		r.in(t, RelTouches),
	)
}

func (r *Registry) registerAll() {
	s := r.store

	r.Register(&Descriptor{
		Type:         types.EntityScenario,
		DownstreamOf: r.out(types.EntityScenario, RelAssessedIn),
		LateralOf:    r.laterals(types.EntityScenario),
	})
	r.Register(&Descriptor{
		Type:         types.EntityWorkshop,
		UpstreamOf:   r.in(types.EntityWorkshop, RelAssessedIn),
		DownstreamOf: r.out(types.EntityWorkshop, RelRaised),
		LateralOf:    r.laterals(types.EntityWorkshop),
	})
	r.Register(&Descriptor{
		Type: types.EntityProcessStep,
		UpstreamOf: func(ctx context.Context, id string) ([]types.Ref, error) {
			ref, err := s.ProcessAncestor(ctx, id, 1)
			if err != nil {
				return nil, nil // orphan step, no upstream context
			}
			return []types.Ref{ref}, nil
		},
		// Requirements are keyed to process levels, so the reverse lookup
		// uses the process_level link-target type.
		DownstreamOf: r.in(types.EntityProcessLevel, RelRaisedFor),
		LateralOf:    r.laterals(types.EntityProcessStep),
	})
	r.Register(&Descriptor{
		Type: types.EntityRequirement,
		UpstreamOf: merge(
			r.in(types.EntityRequirement, RelRaised),
			r.out(types.EntityRequirement, RelRaisedFor),
		),
		DownstreamOf: r.out(types.EntityRequirement, RelRealizedBy),
		LateralOf:    r.laterals(types.EntityRequirement),
	})
	r.Register(&Descriptor{
		Type: types.EntityWricefItem,
		UpstreamOf: r.in(types.EntityWricefItem, RelRealizedBy),
		DownstreamOf: merge(
			r.out(types.EntityWricefItem, RelSpecifiedBy),
			r.out(types.EntityWricefItem, RelVerifiedBy),
			r.out(types.EntityWricefItem, RelAssignedTo),
		),
		LateralOf: r.laterals(types.EntityWricefItem),
	})
	r.Register(&Descriptor{
		Type: types.EntityConfigItem,
		UpstreamOf: r.in(types.EntityConfigItem, RelRealizedBy),
		DownstreamOf: merge(
			r.out(types.EntityConfigItem, RelSpecifiedBy),
			r.out(types.EntityConfigItem, RelVerifiedBy),
		),
		LateralOf: r.laterals(types.EntityConfigItem),
	})
	r.Register(&Descriptor{
		Type:         types.EntityFunctionalSpec,
		UpstreamOf:   r.in(types.EntityFunctionalSpec, RelSpecifiedBy),
		DownstreamOf: r.out(types.EntityFunctionalSpec, RelDetailedBy),
		LateralOf:    r.laterals(types.EntityFunctionalSpec),
	})
	r.Register(&Descriptor{
		Type:       types.EntityTechnicalSpec,
		UpstreamOf: r.in(types.EntityTechnicalSpec, RelDetailedBy),
		LateralOf:  r.laterals(types.EntityTechnicalSpec),
	})
	r.Register(&Descriptor{
		Type:         types.EntityTestCase,
		UpstreamOf:   r.in(types.EntityTestCase, RelVerifiedBy),
		DownstreamOf: r.out(types.EntityTestCase, RelFound),
		LateralOf:    r.laterals(types.EntityTestCase),
	})
	r.Register(&Descriptor{
		Type:       types.EntityDefect,
		UpstreamOf: r.in(types.EntityDefect, RelFound),
		LateralOf:  r.laterals(types.EntityDefect),
	})
	r.Register(&Descriptor{
		Type: types.EntityOpenItem,
		UpstreamOf: merge(
			r.out(types.EntityOpenItem, RelRaisedOn),
			r.out(types.EntityOpenItem, RelRaisedFor),
		),
		LateralOf: r.in(types.EntityOpenItem, RelDecidedFor),
	})
	r.Register(&Descriptor{
		Type:       types.EntityDecision,
		UpstreamOf: r.out(types.EntityDecision, RelDecidedFor),
	})
	r.Register(&Descriptor{
		Type: types.EntityInterface,
		UpstreamOf: merge(
			r.in(types.EntityInterface, RelRealizedBy),
			r.out(types.EntityInterface, RelAssignedTo),
		),
		DownstreamOf: r.out(types.EntityInterface, RelCheckedBy),
		LateralOf:    r.out(types.EntityInterface, RelTouches),
	})
	r.Register(&Descriptor{
		Type: types.EntityWave,
		DownstreamOf: merge(
			r.out(types.EntityWave, RelPlannedBy),
			r.in(types.EntityWave, RelAssignedTo),
		),
		LateralOf: r.laterals(types.EntityWave),
	})
	r.Register(&Descriptor{
		Type:         types.EntitySwitchPlan,
		UpstreamOf:   r.in(types.EntitySwitchPlan, RelPlannedBy),
		DownstreamOf: r.out(types.EntitySwitchPlan, RelGatedBy),
		LateralOf:    r.laterals(types.EntitySwitchPlan),
	})
	r.Register(&Descriptor{
		Type:       types.EntityConnectivityTest,
		UpstreamOf: r.in(types.EntityConnectivityTest, RelGatedBy, RelCheckedBy),
		LateralOf:  r.laterals(types.EntityConnectivityTest),
	})
}
