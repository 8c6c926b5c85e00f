// Package seq mints stable human-readable codes for newly created entities
// (REQ-014, WS-SD-003). Allocation is atomic per (project, prefix): two
// concurrent creations never receive the same number, and unrelated
// prefixes never contend.
//
// The counter lives in the store and is incremented inside an immediate
// write transaction — never derived from MAX() over existing rows, which
// loses updates under concurrency.
package seq

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// prefixRe bounds prefixes to the code alphabet: segments of uppercase
// letters and digits joined by dashes (REQ, WS-SD).
var prefixRe = regexp.MustCompile(`^[A-Z0-9]+(-[A-Z0-9]+)*$`)

// Store is the persistence surface the allocator needs.
type Store interface {
	NextSequence(ctx context.Context, projectID, prefix string) (int64, error)
}

// Allocator allocates per-project, per-prefix monotonic codes.
type Allocator struct {
	store Store
}

// New creates an allocator over the given store.
func New(store Store) *Allocator {
	return &Allocator{store: store}
}

// NextCode returns the next code for the (project, prefix) pair, formatted
// as PREFIX-NNN with at least three digits.
func (a *Allocator) NextCode(ctx context.Context, projectID, prefix string) (string, error) {
	if projectID == "" {
		return "", fmt.Errorf("project id is required")
	}
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if !prefixRe.MatchString(prefix) {
		return "", fmt.Errorf("invalid code prefix: %q", prefix)
	}
	n, err := a.store.NextSequence(ctx, projectID, prefix)
	if err != nil {
		return "", fmt.Errorf("allocate %s/%s: %w", projectID, prefix, err)
	}
	return fmt.Sprintf("%s-%03d", prefix, n), nil
}
