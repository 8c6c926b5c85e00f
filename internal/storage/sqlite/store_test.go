package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/tracefit/tracefit/internal/schema"
	"github.com/tracefit/tracefit/internal/storage"
	"github.com/tracefit/tracefit/internal/types"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenInMemory()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func mustCreate(t *testing.T, s *Store, id, parent string, level int, code string) {
	t.Helper()
	err := s.CreateProcessNode(context.Background(), &types.ProcessNode{
		ID: id, ProjectID: "p1", ParentID: parent, Level: level, Code: code,
	})
	if err != nil {
		t.Fatalf("create %s: %v", id, err)
	}
}

func TestProcessNodeRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	mustCreate(t, s, "s1", "", 1, "SC-1")

	node, err := s.GetProcessNode(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if node.Code != "SC-1" || node.Level != 1 {
		t.Errorf("got %+v", node)
	}
	if node.ScopeStatus != types.ScopeInScope {
		t.Errorf("scope defaulted to %q, want in_scope", node.ScopeStatus)
	}
	if node.SignOffState != types.SignOffPending {
		t.Errorf("sign-off defaulted to %q, want pending", node.SignOffState)
	}
	if node.CreatedAt.IsZero() || node.UpdatedAt.IsZero() {
		t.Error("timestamps not set")
	}

	byCode, err := s.GetProcessNodeByCode(ctx, "p1", "SC-1")
	if err != nil {
		t.Fatal(err)
	}
	if byCode.ID != "s1" {
		t.Errorf("lookup by code returned %s", byCode.ID)
	}
}

func TestProcessNodeNotFound(t *testing.T) {
	s := testStore(t)
	if _, err := s.GetProcessNode(context.Background(), "ghost"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestDuplicateCodeRejected(t *testing.T) {
	s := testStore(t)
	mustCreate(t, s, "s1", "", 1, "SC-1")

	err := s.CreateProcessNode(context.Background(), &types.ProcessNode{
		ID: "s2", ProjectID: "p1", Level: 1, Code: "SC-1",
	})
	if !errors.Is(err, storage.ErrDuplicateCode) {
		t.Errorf("error = %v, want ErrDuplicateCode", err)
	}

	// Same code in another project is fine.
	err = s.CreateProcessNode(context.Background(), &types.ProcessNode{
		ID: "s3", ProjectID: "p2", Level: 1, Code: "SC-1",
	})
	if err != nil {
		t.Errorf("cross-project duplicate rejected: %v", err)
	}
}

func TestLevelInvariantEnforced(t *testing.T) {
	s := testStore(t)
	mustCreate(t, s, "s1", "", 1, "SC-1")

	// A level-3 node directly under a level-1 parent breaks the hierarchy.
	err := s.CreateProcessNode(context.Background(), &types.ProcessNode{
		ID: "l3", ProjectID: "p1", ParentID: "s1", Level: 3, Code: "BD9",
	})
	if !errors.Is(err, storage.ErrLevelMismatch) {
		t.Errorf("error = %v, want ErrLevelMismatch", err)
	}
}

func TestGetChildrenOrdered(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	mustCreate(t, s, "s1", "", 1, "SC-1")
	mustCreate(t, s, "a1", "s1", 2, "BD")
	mustCreate(t, s, "l3b", "a1", 3, "BD9")
	mustCreate(t, s, "l3a", "a1", 3, "BD2")

	children, err := s.GetChildren(ctx, "a1")
	if err != nil {
		t.Fatal(err)
	}
	if len(children) != 2 || children[0].Code != "BD2" || children[1].Code != "BD9" {
		t.Errorf("children = %v", children)
	}
}

func TestConsolidationDefaultRecord(t *testing.T) {
	s := testStore(t)
	rec, err := s.GetConsolidation(context.Background(), "anything")
	if err != nil {
		t.Fatal(err)
	}
	if rec.CalculatedStatus != types.FitStatusPending || rec.Decided() {
		t.Errorf("default record = %+v", rec)
	}
}

func TestTransactionRollback(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	mustCreate(t, s, "s1", "", 1, "SC-1")
	mustCreate(t, s, "a1", "s1", 2, "BD")
	mustCreate(t, s, "l3", "a1", 3, "BD9")
	mustCreate(t, s, "step1", "l3", 4, "BD9-1")

	boom := errors.New("boom")
	err := s.RunInTransaction(ctx, func(tx storage.Transaction) error {
		if err := tx.SetFitJudgment(ctx, "step1", types.FitJudgmentGap); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want boom", err)
	}

	node, err := s.GetProcessNode(ctx, "step1")
	if err != nil {
		t.Fatal(err)
	}
	if node.FitJudgment.IsSet() {
		t.Error("rolled-back judgment is visible")
	}
}

func TestTransactionReadYourWrites(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	mustCreate(t, s, "s1", "", 1, "SC-1")
	mustCreate(t, s, "a1", "s1", 2, "BD")
	mustCreate(t, s, "l3", "a1", 3, "BD9")
	mustCreate(t, s, "step1", "l3", 4, "BD9-1")

	err := s.RunInTransaction(ctx, func(tx storage.Transaction) error {
		if err := tx.SetFitJudgment(ctx, "step1", types.FitJudgmentFit); err != nil {
			return err
		}
		node, err := tx.GetProcessNode(ctx, "step1")
		if err != nil {
			return err
		}
		if node.FitJudgment != types.FitJudgmentFit {
			return fmt.Errorf("write not visible inside transaction: %q", node.FitJudgment)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestEntityLinks(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	req := types.Ref{Type: types.EntityRequirement, ID: "r1"}
	item := types.Ref{Type: types.EntityWricefItem, ID: "b1"}
	if err := s.PutEntity(ctx, &types.EntityRow{Type: req.Type, ID: req.ID, Code: "REQ-001", Status: "approved"}); err != nil {
		t.Fatal(err)
	}
	if err := s.PutEntity(ctx, &types.EntityRow{Type: item.Type, ID: item.ID, Code: "WRICEF-001"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Link(ctx, req, item, schema.RelRealizedBy); err != nil {
		t.Fatal(err)
	}
	// Linking twice is a no-op.
	if err := s.Link(ctx, req, item, schema.RelRealizedBy); err != nil {
		t.Fatal(err)
	}

	forward, err := s.Linked(ctx, req.Type, req.ID, schema.RelRealizedBy, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(forward) != 1 || forward[0] != item {
		t.Errorf("forward = %v", forward)
	}

	reverse, err := s.Linked(ctx, item.Type, item.ID, schema.RelRealizedBy, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(reverse) != 1 || reverse[0] != req {
		t.Errorf("reverse = %v", reverse)
	}

	rows, err := s.LinkedEntities(ctx, item, types.EntityRequirement, schema.RelRealizedBy)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Status != "approved" {
		t.Errorf("linked entities = %v", rows)
	}
}

func TestGetEntityProcessMapping(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	mustCreate(t, s, "s1", "", 1, "SC-1")
	mustCreate(t, s, "a1", "s1", 2, "BD")
	mustCreate(t, s, "l3", "a1", 3, "BD9")
	mustCreate(t, s, "step1", "l3", 4, "BD9-1")

	// Scenarios resolve level-1 rows only.
	row, err := s.GetEntity(ctx, types.EntityScenario, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if row.Code != "SC-1" {
		t.Errorf("scenario row = %+v", row)
	}
	if _, err := s.GetEntity(ctx, types.EntityScenario, "step1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("level-4 row served as scenario: %v", err)
	}

	// Process steps resolve level-4 rows only.
	if _, err := s.GetEntity(ctx, types.EntityProcessStep, "step1"); err != nil {
		t.Errorf("process step lookup failed: %v", err)
	}
	if _, err := s.GetEntity(ctx, types.EntityProcessStep, "a1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("level-2 row served as process step: %v", err)
	}

	// The process_level pseudo type accepts any level and maps the concrete
	// type from it.
	row, err = s.GetEntity(ctx, types.EntityProcessLevel, "step1")
	if err != nil {
		t.Fatal(err)
	}
	if row.Type != types.EntityProcessStep {
		t.Errorf("pseudo lookup type = %s, want process_step", row.Type)
	}
}

func TestProcessAncestor(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	mustCreate(t, s, "s1", "", 1, "SC-1")
	mustCreate(t, s, "a1", "s1", 2, "BD")
	mustCreate(t, s, "l3", "a1", 3, "BD9")
	mustCreate(t, s, "step1", "l3", 4, "BD9-1")

	ref, err := s.ProcessAncestor(ctx, "step1", 1)
	if err != nil {
		t.Fatal(err)
	}
	if ref.ID != "s1" || ref.Type != types.EntityScenario {
		t.Errorf("ancestor = %v", ref)
	}

	ref, err = s.ProcessAncestor(ctx, "step1", 2)
	if err != nil {
		t.Fatal(err)
	}
	if ref.ID != "a1" {
		t.Errorf("level-2 ancestor = %v", ref)
	}

	if _, err := s.ProcessAncestor(ctx, "s1", 2); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("downward ancestor lookup: %v", err)
	}
}

func TestNextSequenceConcurrent(t *testing.T) {
	// Concurrency needs a real file: in-memory stores serialize differently.
	path := filepath.Join(t.TempDir(), "seq.db")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = s.Close() }()

	const workers = 50
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		values = make(map[int64]bool)
	)
	errCh := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := s.NextSequence(context.Background(), "p1", "REQ")
			if err != nil {
				errCh <- err
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if values[v] {
				errCh <- fmt.Errorf("duplicate sequence value %d", v)
				return
			}
			values[v] = true
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Error(err)
	}
	if len(values) != workers {
		t.Errorf("allocated %d unique values, want %d", len(values), workers)
	}

	// The next allocation continues the sequence.
	v, err := s.NextSequence(context.Background(), "p1", "REQ")
	if err != nil {
		t.Fatal(err)
	}
	if v != workers+1 {
		t.Errorf("next value = %d, want %d", v, workers+1)
	}

	// An unrelated prefix starts at 1.
	v, err = s.NextSequence(context.Background(), "p1", "OI")
	if err != nil {
		t.Fatal(err)
	}
	if v != 1 {
		t.Errorf("unrelated prefix value = %d, want 1", v)
	}
}

func TestEventsNewestFirst(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	err := s.RunInTransaction(ctx, func(tx storage.Transaction) error {
		for _, et := range []types.EventType{types.EventJudgmentSet, types.EventConsolidated, types.EventSignedOff} {
			if err := tx.AddEvent(ctx, &types.Event{NodeID: "n1", EventType: et, Actor: "a"}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	events, err := s.GetEvents(ctx, "n1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events", len(events))
	}
	if events[0].EventType != types.EventSignedOff {
		t.Errorf("newest first violated: %v", events[0].EventType)
	}

	limited, err := s.GetEvents(ctx, "n1", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 {
		t.Errorf("limit ignored: %d events", len(limited))
	}
}

func TestFitStatisticsAggregates(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	mustCreate(t, s, "s1", "", 1, "SC-1")
	mustCreate(t, s, "a1", "s1", 2, "BD")
	mustCreate(t, s, "l3", "a1", 3, "BD9")
	mustCreate(t, s, "step1", "l3", 4, "BD9-1")
	mustCreate(t, s, "step2", "l3", 4, "BD9-2")

	err := s.RunInTransaction(ctx, func(tx storage.Transaction) error {
		return tx.SetFitJudgment(ctx, "step1", types.FitJudgmentFit)
	})
	if err != nil {
		t.Fatal(err)
	}

	stats, err := s.GetFitStatistics(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if stats.Steps.Total != 2 || stats.Steps.Fit != 1 || stats.Steps.Pending != 1 {
		t.Errorf("steps = %+v", stats.Steps)
	}
	if stats.Processes.Total != 1 || stats.Processes.Pending != 1 {
		t.Errorf("processes = %+v", stats.Processes)
	}
	if stats.Areas.Total != 1 {
		t.Errorf("areas = %+v", stats.Areas)
	}
}
