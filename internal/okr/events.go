package okr

import "time"

// EventKind classifies facts emitted after a unit of work commits.
type EventKind string

const (
	EventObjectiveCreated EventKind = "objective_created"
	EventObjectiveDeleted EventKind = "objective_deleted"
	EventProgressUpdated  EventKind = "progress_updated"
	EventTransition       EventKind = "workflow_transition"
)

// Event is the fact handed to the notification collaborator. Delivery is a
// downstream concern; the engine never waits on it.
type Event struct {
	Kind           EventKind      `json:"kind"`
	ObjectiveID    string         `json:"objective_id"`
	CompanyID      string         `json:"company_id"`
	ActorID        string         `json:"actor_id"`
	Action         string         `json:"action,omitempty"`
	Progress       int            `json:"progress"`
	Status         Status         `json:"status,omitempty"`
	ApprovalStatus ApprovalStatus `json:"approval_status,omitempty"`
	RiskLevel      RiskLevel      `json:"risk_level,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
}

// Emitter receives committed facts for downstream delivery.
type Emitter interface {
	Emit(evt Event)
}
