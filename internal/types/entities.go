package types

import "time"

// EntityType identifies one of the concrete entity kinds that participate in
// the traceability graph. The schema registry owns the set of registered
// types; this package only names them.
type EntityType string

// Entity type constants
const (
	EntityScenario         EntityType = "scenario"
	EntityWorkshop         EntityType = "workshop"
	EntityProcessStep      EntityType = "process_step"
	EntityRequirement      EntityType = "requirement"
	EntityOpenItem         EntityType = "open_item"
	EntityDecision         EntityType = "decision"
	EntityWricefItem       EntityType = "wricef_item"
	EntityConfigItem       EntityType = "config_item"
	EntityFunctionalSpec   EntityType = "functional_spec"
	EntityTechnicalSpec    EntityType = "technical_spec"
	EntityTestCase         EntityType = "test_case"
	EntityDefect           EntityType = "defect"
	EntityInterface        EntityType = "interface"
	EntityWave             EntityType = "wave"
	EntityConnectivityTest EntityType = "connectivity_test"
	EntitySwitchPlan       EntityType = "switch_plan"
)

// EntityProcessLevel is a link-target pseudo type for foreign keys pointing
// at process hierarchy nodes (any level). It is not a registered trace type.
const EntityProcessLevel EntityType = "process_level"

// Ref is a typed entity reference.
type Ref struct {
	Type EntityType `json:"entity_type"`
	ID   string     `json:"entity_id"`
}

// TraceNode is the uniform envelope used inside the traversal engine.
// Any concrete entity is adapted into this shape through the schema registry.
type TraceNode struct {
	Type         EntityType `json:"entity_type"`
	ID           string     `json:"entity_id"`
	Code         string     `json:"code,omitempty"`
	DisplayTitle string     `json:"display_title"`
	StatusTag    string     `json:"status_tag,omitempty"`
	Depth        int        `json:"depth"` // hops from the traversal root
}

// Ref returns the node's typed reference.
func (n TraceNode) Ref() Ref { return Ref{Type: n.Type, ID: n.ID} }

// EdgeKind classifies the direction of a trace edge relative to the
// canonical requirement-to-defect chain.
type EdgeKind string

// Edge kind constants
const (
	EdgeUpstream   EdgeKind = "upstream"
	EdgeDownstream EdgeKind = "downstream"
	EdgeLateral    EdgeKind = "lateral"
)

// TraceEdge is a directional relation between two traced entities. Edges are
// never persisted; they are computed on demand from foreign-key relations.
type TraceEdge struct {
	From Ref      `json:"from"`
	To   Ref      `json:"to"`
	Kind EdgeKind `json:"kind"`
}

// TraceResult is the output of a graph traversal. Upstream and Downstream
// preserve traversal order (root-adjacent first) so callers can render the
// chain left-to-right. Lateral nodes are keyed by entity type and fetched
// for the root only.
type TraceResult struct {
	Entity     TraceNode              `json:"entity"`
	Upstream   []TraceNode            `json:"upstream"`
	Downstream []TraceNode            `json:"downstream"`
	Lateral    map[string][]TraceNode `json:"lateral,omitempty"`
	Edges      []TraceEdge            `json:"edges,omitempty"`
	// Truncated lists branches that ended on a dangling reference. A broken
	// mid-chain link is reported here (and as a gap), not as an engine error.
	Truncated []Ref `json:"truncated,omitempty"`
}

// Has reports whether any traced node (root included) has the given type.
func (r *TraceResult) Has(t EntityType) bool {
	if r.Entity.Type == t {
		return true
	}
	for _, n := range r.Upstream {
		if n.Type == t {
			return true
		}
	}
	for _, n := range r.Downstream {
		if n.Type == t {
			return true
		}
	}
	return false
}

// Gap is an expected-but-missing link in a traced chain. Level is the chain
// tier (1-6) the missing segment belongs to.
type Gap struct {
	Level   int    `json:"level"`
	Message string `json:"message"`
}

// EntityRow is a raw collaborator-store row for a traced entity. Priority is
// meaningful for open items (1 = blocking); Status carries the per-type
// lifecycle value (e.g. requirement approval, test case result).
type EntityRow struct {
	Type      EntityType `json:"entity_type"`
	ID        string     `json:"id"`
	ProjectID string     `json:"project_id,omitempty"`
	Code      string     `json:"code,omitempty"`
	Title     string     `json:"title,omitempty"`
	Status    string     `json:"status,omitempty"`
	Priority  int        `json:"priority,omitempty"`
}

// TraceNode adapts the row into the traversal envelope.
func (e *EntityRow) TraceNode() TraceNode {
	return TraceNode{
		Type:         e.Type,
		ID:           e.ID,
		Code:         e.Code,
		DisplayTitle: e.Title,
		StatusTag:    e.Status,
	}
}

// Requirement approval statuses, ordered. Anything before "approved" blocks
// sign-off of linked process levels.
const (
	RequirementDraft     = "draft"
	RequirementSubmitted = "submitted"
	RequirementApproved  = "approved"
	RequirementDelivered = "delivered"
)

// RequirementApproved reports whether a requirement status counts as
// approved or later.
func RequirementStatusApproved(status string) bool {
	return status == RequirementApproved || status == RequirementDelivered
}

// Open item statuses. Resolved and closed items no longer block anything.
const (
	OpenItemOpen       = "open"
	OpenItemInProgress = "in_progress"
	OpenItemResolved   = "resolved"
	OpenItemClosed     = "closed"
)

// OpenItemUnresolved reports whether an open item still blocks.
func OpenItemUnresolved(status string) bool {
	return status != OpenItemResolved && status != OpenItemClosed
}

// WorkshopSession is one sitting of an assessment workshop. Steps left
// pending when a session closes are carried over to the successor session.
type WorkshopSession struct {
	ID          string     `json:"id"`
	WorkshopID  string     `json:"workshop_id"`
	Number      int        `json:"number"`
	Status      string     `json:"status"` // open | closed
	StartedAt   time.Time  `json:"started_at"`
	ClosedAt    *time.Time `json:"closed_at,omitempty"`
	CarriedFrom string     `json:"carried_from,omitempty"` // predecessor session id
}

// Session status constants
const (
	SessionOpen   = "open"
	SessionClosed = "closed"
)
