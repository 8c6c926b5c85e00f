// Package storage provides shared types for tracefit persistence.
//
// The concrete implementation lives in the sqlite sub-package. This package
// holds the interface and sentinel errors referenced by both the
// implementation and its consumers (the fit engine, the traversal engine,
// the HTTP server, cmd/tracefit).
package storage

import (
	"context"
	"errors"

	"github.com/tracefit/tracefit/internal/types"
)

// ErrNotFound is returned when a requested entity or node does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateCode is returned when a process node code already exists
// within the project.
var ErrDuplicateCode = errors.New("duplicate code")

// ErrLevelMismatch is returned when a node's level does not equal its
// parent's level plus one.
var ErrLevelMismatch = errors.New("level must be parent level + 1")

// Storage is the interface satisfied by *sqlite.Store.
//
// Consumers depend on this interface rather than on the concrete type so
// that alternative implementations can be substituted. Read methods take no
// engine-owned lock and may run with unlimited concurrency; every mutation
// that cascades (judgment writes, consolidation, sign-off, confirmation)
// goes through RunInTransaction so the affected subtree updates atomically.
type Storage interface {
	// Process tree
	CreateProcessNode(ctx context.Context, node *types.ProcessNode) error
	GetProcessNode(ctx context.Context, id string) (*types.ProcessNode, error)
	GetProcessNodeByCode(ctx context.Context, projectID, code string) (*types.ProcessNode, error)
	GetChildren(ctx context.Context, parentID string) ([]*types.ProcessNode, error)
	ListProcessNodes(ctx context.Context, projectID string, level int) ([]*types.ProcessNode, error)
	GetConsolidation(ctx context.Context, nodeID string) (*types.ConsolidationRecord, error)

	// Entity graph (collaborator stores, read-mostly)
	PutEntity(ctx context.Context, row *types.EntityRow) error
	GetEntity(ctx context.Context, t types.EntityType, id string) (*types.EntityRow, error)
	Link(ctx context.Context, from, to types.Ref, relation string) error
	Linked(ctx context.Context, t types.EntityType, id, relation string, reverse bool) ([]types.Ref, error)
	LinkedEntities(ctx context.Context, to types.Ref, fromType types.EntityType, relation string) ([]*types.EntityRow, error)

	// Workshop sessions
	CreateSession(ctx context.Context, s *types.WorkshopSession) error
	CurrentSession(ctx context.Context, workshopID string) (*types.WorkshopSession, error)
	SessionSteps(ctx context.Context, sessionID string) ([]string, error)

	// Audit and statistics
	GetEvents(ctx context.Context, nodeID string, limit int) ([]*types.Event, error)
	GetFitStatistics(ctx context.Context, projectID string) (*types.FitStatistics, error)

	// NextSequence atomically allocates the next sequence number for the
	// (project, prefix) pair. Two concurrent calls never return the same
	// value; unrelated prefixes never block each other beyond the store's
	// single writer.
	NextSequence(ctx context.Context, projectID, prefix string) (int64, error)

	// RunInTransaction executes fn atomically. On error or panic the
	// transaction is rolled back; partial subtree updates never commit.
	RunInTransaction(ctx context.Context, fn func(tx Transaction) error) error

	Close() error
}

// Transaction exposes the subset of operations the fit engine performs
// inside one atomic unit: a judgment write plus every cascading
// recomputation at levels 3 and 2.
type Transaction interface {
	// Tree reads (read-your-writes within the transaction)
	GetProcessNode(ctx context.Context, id string) (*types.ProcessNode, error)
	GetChildren(ctx context.Context, parentID string) ([]*types.ProcessNode, error)
	GetConsolidation(ctx context.Context, nodeID string) (*types.ConsolidationRecord, error)

	// Tree writes
	SetFitJudgment(ctx context.Context, nodeID string, j types.FitJudgment) error
	SaveConsolidation(ctx context.Context, rec *types.ConsolidationRecord) error
	SetSignOffState(ctx context.Context, nodeID string, s types.SignOffState) error
	SetConfirmation(ctx context.Context, nodeID string, s types.ConfirmationState, readinessPct float64, note string) error

	// Collaborator reads used by precondition checks
	Linked(ctx context.Context, t types.EntityType, id, relation string, reverse bool) ([]types.Ref, error)
	LinkedEntities(ctx context.Context, to types.Ref, fromType types.EntityType, relation string) ([]*types.EntityRow, error)

	// Sessions
	CurrentSession(ctx context.Context, workshopID string) (*types.WorkshopSession, error)
	CreateSession(ctx context.Context, s *types.WorkshopSession) error
	CloseSession(ctx context.Context, sessionID string) error
	AddSessionStep(ctx context.Context, sessionID, nodeID string, carriedOver bool) error

	// Audit
	AddEvent(ctx context.Context, ev *types.Event) error
}
