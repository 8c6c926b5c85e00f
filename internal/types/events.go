package types

import "time"

// Event is an audit trail entry for a process node.
type Event struct {
	ID        int64     `json:"id"`
	NodeID    string    `json:"node_id"`
	EventType EventType `json:"event_type"`
	Actor     string    `json:"actor,omitempty"`
	OldValue  *string   `json:"old_value,omitempty"`
	NewValue  *string   `json:"new_value,omitempty"`
	Comment   *string   `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// EventType categorizes audit trail events
type EventType string

// Event type constants for the audit trail
const (
	EventJudgmentSet   EventType = "judgment_set"
	EventJudgmentUnset EventType = "judgment_unset"
	EventConsolidated  EventType = "consolidated"
	EventOverridden    EventType = "overridden"
	EventSignedOff     EventType = "signed_off"
	EventReopened      EventType = "reopened"
	EventConfirmed     EventType = "confirmed"
	EventReverted      EventType = "confirmation_reverted"
	EventCarryOver     EventType = "session_carryover"
)

// FitStatistics summarizes a project's assessment progress per level.
type FitStatistics struct {
	ProjectID string `json:"project_id"`

	// Level-4 judgment counts
	Steps ChildSummary `json:"steps"`

	// Level-3 effective status counts
	Processes struct {
		Total      int `json:"total"`
		Fit        int `json:"fit"`
		Gap        int `json:"gap"`
		PartialFit int `json:"partial_fit"`
		Pending    int `json:"pending"`
		SignedOff  int `json:"signed_off"`
		Overridden int `json:"overridden"`
	} `json:"processes"`

	// Level-2 confirmation counts
	Areas struct {
		Total        int     `json:"total"`
		Ready        int     `json:"ready"`
		Confirmed    int     `json:"confirmed"`
		WithRisk     int     `json:"confirmed_with_risk"`
		AvgReadiness float64 `json:"avg_readiness_pct"`
	} `json:"areas"`
}
