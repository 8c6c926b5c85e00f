// Package types defines core data structures for the tracefit engine.
package types

import (
	"fmt"
	"time"
)

// FitJudgment is the leaf-level human judgment of whether standard software
// covers a process step. Empty means the step has not been judged yet.
type FitJudgment string

// Fit judgment constants
const (
	FitJudgmentUnset FitJudgment = ""
	FitJudgmentFit   FitJudgment = "fit"
	FitJudgmentGap   FitJudgment = "gap"
	FitPartialFit    FitJudgment = "partialFit"
)

// IsValid checks if the judgment value is valid. Unset is valid: it marks a
// pending step and blocks propagation finality at the level-3 ancestor.
func (j FitJudgment) IsValid() bool {
	switch j {
	case FitJudgmentUnset, FitJudgmentFit, FitJudgmentGap, FitPartialFit:
		return true
	}
	return false
}

// IsSet reports whether a judgment has been recorded.
func (j FitJudgment) IsSet() bool { return j != FitJudgmentUnset }

// FitStatus is the consolidated status of a level-3 node. It extends
// FitJudgment with the "pending" state used while children are unjudged.
type FitStatus string

// Fit status constants
const (
	FitStatusPending    FitStatus = "pending"
	FitStatusFit        FitStatus = "fit"
	FitStatusGap        FitStatus = "gap"
	FitStatusPartialFit FitStatus = "partialFit"
)

// IsValid checks if the status value is valid.
func (s FitStatus) IsValid() bool {
	switch s {
	case FitStatusPending, FitStatusFit, FitStatusGap, FitStatusPartialFit:
		return true
	}
	return false
}

// IsFinal reports whether the status represents a completed calculation.
func (s FitStatus) IsFinal() bool { return s != FitStatusPending && s != "" }

// ScopeStatus marks whether a process node is part of the assessed scope.
type ScopeStatus string

// Scope status constants
const (
	ScopeInScope    ScopeStatus = "in_scope"
	ScopeOutOfScope ScopeStatus = "out_of_scope"
	ScopeDeferred   ScopeStatus = "deferred"
)

// IsValid checks if the scope status value is valid.
func (s ScopeStatus) IsValid() bool {
	switch s {
	case ScopeInScope, ScopeOutOfScope, ScopeDeferred:
		return true
	}
	return false
}

// SignOffState tracks formal closure of assessment at level 3.
type SignOffState string

// Sign-off state constants
const (
	SignOffPending  SignOffState = "pending"
	SignOffReady    SignOffState = "readyForSignoff"
	SignOffSigned   SignOffState = "signedOff"
	SignOffReopened SignOffState = "reopened"
)

// IsValid checks if the sign-off state value is valid.
func (s SignOffState) IsValid() bool {
	switch s {
	case SignOffPending, SignOffReady, SignOffSigned, SignOffReopened:
		return true
	}
	return false
}

// ConfirmationState tracks formal closure at level 2, derived from the
// sign-off states of all in-scope level-3 children.
type ConfirmationState string

// Confirmation state constants
const (
	ConfirmNotReady ConfirmationState = "notReady"
	ConfirmReady    ConfirmationState = "ready"
	Confirmed       ConfirmationState = "confirmed"
	ConfirmedRisk   ConfirmationState = "confirmedWithRisk"
)

// IsValid checks if the confirmation state value is valid.
func (s ConfirmationState) IsValid() bool {
	switch s {
	case ConfirmNotReady, ConfirmReady, Confirmed, ConfirmedRisk:
		return true
	}
	return false
}

// IsConfirmed reports whether the node has been manually confirmed.
func (s ConfirmationState) IsConfirmed() bool {
	return s == Confirmed || s == ConfirmedRisk
}

// ProcessNode is a node in the strict 4-level process hierarchy:
// Scenario (1) -> Process Area (2) -> E2E Process (3) -> Sub-process (4).
// Fit judgments live on level 4, consolidation and sign-off on level 3,
// confirmation on level 2. Level 1 carries only aggregate counts.
type ProcessNode struct {
	ID                string            `json:"id"`
	ProjectID         string            `json:"project_id"`
	ParentID          string            `json:"parent_id,omitempty"` // empty only at level 1
	Level             int               `json:"level"`
	Code              string            `json:"code"` // unique per project, e.g. "BD9"
	Title             string            `json:"title,omitempty"`
	ScopeStatus       ScopeStatus       `json:"scope_status,omitempty"`
	FitJudgment       FitJudgment       `json:"fit_judgment,omitempty"` // levels 3-4 only
	SignOffState      SignOffState      `json:"sign_off_state,omitempty"`
	ConfirmationState ConfirmationState `json:"confirmation_state,omitempty"`
	ReadinessPct      float64           `json:"readiness_pct"`
	ConfirmationNote  string            `json:"confirmation_note,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// Validate checks structural invariants before a node is written.
// The parent-level invariant (level == parent.level + 1) requires the parent
// row and is enforced by the store at create time.
func (n *ProcessNode) Validate() error {
	if n.ID == "" {
		return fmt.Errorf("id is required")
	}
	if n.ProjectID == "" {
		return fmt.Errorf("project_id is required")
	}
	if n.Code == "" {
		return fmt.Errorf("code is required")
	}
	if n.Level < 1 || n.Level > 4 {
		return fmt.Errorf("level must be between 1 and 4 (got %d)", n.Level)
	}
	if n.Level == 1 && n.ParentID != "" {
		return fmt.Errorf("level-1 nodes cannot have a parent")
	}
	if n.Level > 1 && n.ParentID == "" {
		return fmt.Errorf("level-%d nodes require a parent", n.Level)
	}
	if !n.ScopeStatus.IsValid() && n.ScopeStatus != "" {
		return fmt.Errorf("invalid scope status: %s", n.ScopeStatus)
	}
	if !n.FitJudgment.IsValid() {
		return fmt.Errorf("invalid fit judgment: %s", n.FitJudgment)
	}
	if n.FitJudgment.IsSet() && n.Level < 3 {
		return fmt.Errorf("fit judgments are only valid on levels 3-4 (node is level %d)", n.Level)
	}
	return nil
}

// InScope reports whether the node counts toward readiness and aggregation.
// Nodes created before scope statuses existed have an empty status and are
// treated as in scope.
func (n *ProcessNode) InScope() bool {
	return n.ScopeStatus == "" || n.ScopeStatus == ScopeInScope
}

// ConsolidationRecord is attached 1:1 to level-3 process nodes. It keeps the
// machine-computed status and the human decision as two explicit fields so
// overrides never destroy the calculated value.
type ConsolidationRecord struct {
	NodeID            string     `json:"node_id"`
	CalculatedStatus  FitStatus  `json:"calculated_status"`
	EffectiveStatus   FitStatus  `json:"effective_status,omitempty"` // empty until calculation is final or a human decides
	IsOverride        bool       `json:"is_override"`
	OverrideRationale string     `json:"override_rationale,omitempty"`
	DecidedBy         string     `json:"decided_by,omitempty"`
	DecidedAt         *time.Time `json:"decided_at,omitempty"`
	// Stale is set when an underlying judgment changed after a human decision,
	// so calculated and effective status have diverged. Surfaced in reads,
	// never an error.
	Stale bool `json:"stale,omitempty"`
}

// Decided reports whether a human has consolidated this node.
func (r *ConsolidationRecord) Decided() bool { return r.DecidedAt != nil }

// ChildSummary aggregates judgment counts for a node's children.
type ChildSummary struct {
	Total      int `json:"total"`
	Fit        int `json:"fit"`
	Gap        int `json:"gap"`
	PartialFit int `json:"partial_fit"`
	Pending    int `json:"pending"`
}

// GapRatio returns the share of judged children marked gap.
func (c ChildSummary) GapRatio() float64 {
	if c.Total == 0 {
		return 0
	}
	return float64(c.Gap) / float64(c.Total)
}
