package fit

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingRationale is returned when a consolidation decision diverges
// from the calculated status without an override rationale.
var ErrMissingRationale = errors.New("rationale required when overriding the calculated status")

// ErrInvalidDecision is returned for consolidation decisions outside
// fit/gap/partialFit.
var ErrInvalidDecision = errors.New("invalid consolidation decision")

// ErrPendingChildren is returned when a level-3 node cannot be consolidated
// because level-4 children are still unjudged.
var ErrPendingChildren = errors.New("level-4 children still pending")

// Level-target errors for the manual operations.
var (
	ErrNotLevelFour  = errors.New("fit judgments are recorded on level-4 nodes only")
	ErrNotLevelThree = errors.New("target must be a level-3 node")
	ErrNotLevelTwo   = errors.New("target must be a level-2 node")
)

// ErrNoOpenSession is returned when a carryover is requested for a workshop
// without an open assessment session.
var ErrNoOpenSession = errors.New("workshop has no open session")

// SignOffBlockedError reports the specific unmet preconditions of a manual
// milestone (level-3 sign-off or level-2 confirmation). Callers get the
// full blocking list, never a bare boolean, so they can render actionable
// detail.
type SignOffBlockedError struct {
	NodeID   string
	Blockers []string
}

func (e *SignOffBlockedError) Error() string {
	return fmt.Sprintf("sign-off blocked for %s: %s", e.NodeID, strings.Join(e.Blockers, "; "))
}
