package schema

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/tracefit/tracefit/internal/types"
)

// fakeStore is an in-memory TraceStore for registry tests.
type fakeStore struct {
	links map[string][]types.Ref // "type/id/relation/dir" -> refs
}

func newFakeStore() *fakeStore {
	return &fakeStore{links: make(map[string][]types.Ref)}
}

func key(t types.EntityType, id, rel string, reverse bool) string {
	return fmt.Sprintf("%s/%s/%s/%v", t, id, rel, reverse)
}

func (f *fakeStore) GetEntity(_ context.Context, t types.EntityType, id string) (*types.EntityRow, error) {
	return &types.EntityRow{Type: t, ID: id}, nil
}

func (f *fakeStore) Linked(_ context.Context, t types.EntityType, id, rel string, reverse bool) ([]types.Ref, error) {
	return f.links[key(t, id, rel, reverse)], nil
}

func (f *fakeStore) ProcessAncestor(_ context.Context, nodeID string, level int) (types.Ref, error) {
	return types.Ref{}, errors.New("no ancestor")
}

func TestNormalize(t *testing.T) {
	r := New(newFakeStore())

	tests := []struct {
		raw  string
		want types.EntityType
	}{
		{"requirement", types.EntityRequirement},
		{"Requirement", types.EntityRequirement},
		{" test_case ", types.EntityTestCase},
		{"backlog_item", types.EntityWricefItem},
		{"wricef", types.EntityWricefItem},
	}
	for _, tt := range tests {
		got, err := r.Normalize(tt.raw)
		if err != nil {
			t.Errorf("Normalize(%q) error: %v", tt.raw, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Normalize(%q) = %s, want %s", tt.raw, got, tt.want)
		}
	}

	if _, err := r.Normalize("banana"); !errors.Is(err, ErrUnknownEntityType) {
		t.Errorf("Normalize(banana) error = %v, want ErrUnknownEntityType", err)
	}
}

func TestDescribeUnknownType(t *testing.T) {
	r := New(newFakeStore())
	if _, err := r.Describe("banana"); !errors.Is(err, ErrUnknownEntityType) {
		t.Errorf("Describe error = %v, want ErrUnknownEntityType", err)
	}
}

func TestAllSixteenTypesRegistered(t *testing.T) {
	r := New(newFakeStore())
	if got := len(r.Types()); got != 16 {
		t.Errorf("registered %d types, want 16", got)
	}
	for _, et := range r.Types() {
		if _, err := r.Describe(et); err != nil {
			t.Errorf("Describe(%s) failed: %v", et, err)
		}
	}
}

func TestRegisterNewTypeWithoutEngineChange(t *testing.T) {
	r := New(newFakeStore())
	custom := types.EntityType("training_material")
	r.Register(&Descriptor{Type: custom})

	if _, err := r.Describe(custom); err != nil {
		t.Fatalf("custom type not registered: %v", err)
	}
	got, err := r.Normalize("training_material")
	if err != nil || got != custom {
		t.Fatalf("Normalize(custom) = %s, %v", got, err)
	}
}

func TestRequirementNeighbors(t *testing.T) {
	store := newFakeStore()
	// REQ-1 was raised by workshop w1 and is realized by wricef item b1.
	store.links[key(types.EntityRequirement, "r1", RelRaised, true)] = []types.Ref{
		{Type: types.EntityWorkshop, ID: "w1"},
	}
	store.links[key(types.EntityRequirement, "r1", RelRealizedBy, false)] = []types.Ref{
		{Type: types.EntityWricefItem, ID: "b1"},
	}

	r := New(store)
	desc, err := r.Describe(types.EntityRequirement)
	if err != nil {
		t.Fatal(err)
	}

	up, err := desc.UpstreamOf(context.Background(), "r1")
	if err != nil {
		t.Fatal(err)
	}
	if len(up) != 1 || up[0].ID != "w1" {
		t.Errorf("upstream = %v, want workshop w1", up)
	}

	down, err := desc.DownstreamOf(context.Background(), "r1")
	if err != nil {
		t.Fatal(err)
	}
	if len(down) != 1 || down[0].ID != "b1" {
		t.Errorf("downstream = %v, want wricef item b1", down)
	}
}

func TestTemplatesOnlyForChainTypes(t *testing.T) {
	r := New(newFakeStore())
	if tpl := r.Template(types.EntityRequirement); len(tpl) == 0 {
		t.Error("requirement should carry a chain template")
	}
	if tpl := r.Template(types.EntityDecision); tpl != nil {
		t.Error("decision should not carry a chain template")
	}
	if tpl := r.Template(types.EntitySwitchPlan); tpl != nil {
		t.Error("switch plan should not carry a chain template")
	}
}
