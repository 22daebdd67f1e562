package okr

import (
	"time"

	"alignhq.org/internal/ids"
)

// Action identifies an approval workflow transition.
type Action string

const (
	ActionSubmitForReview Action = "submit_for_review"
	ActionApprove         Action = "approve"
	ActionReject          Action = "reject"
	ActionActivate        Action = "activate"
	ActionPause           Action = "pause"
	ActionResume          Action = "resume"
	ActionStop            Action = "stop"
	ActionReopen          Action = "reopen"
	ActionArchive         Action = "archive"
	ActionRevertToDraft   Action = "revert_to_draft"
)

type transitionRule struct {
	from            []ApprovalStatus
	to              ApprovalStatus
	record          string // action name written to approval history
	commentRequired bool
}

// transitions is the closed workflow table. Archived is terminal: no action
// accepts it as a from-state.
var transitions = map[Action]transitionRule{
	ActionSubmitForReview: {from: []ApprovalStatus{ApprovalDraft}, to: ApprovalPendingReview, record: "submitted"},
	ActionApprove:         {from: []ApprovalStatus{ApprovalPendingReview}, to: ApprovalApproved, record: "approved"},
	ActionReject:          {from: []ApprovalStatus{ApprovalPendingReview}, to: ApprovalDraft, record: "rejected", commentRequired: true},
	ActionActivate:        {from: []ApprovalStatus{ApprovalApproved}, to: ApprovalActive, record: "activated"},
	ActionPause:           {from: []ApprovalStatus{ApprovalActive}, to: ApprovalPaused, record: "paused"},
	ActionResume:          {from: []ApprovalStatus{ApprovalPaused}, to: ApprovalActive, record: "resumed"},
	ActionStop:            {from: []ApprovalStatus{ApprovalActive, ApprovalPaused}, to: ApprovalStopped, record: "stopped"},
	ActionReopen:          {from: []ApprovalStatus{ApprovalStopped}, to: ApprovalActive, record: "reopened"},
	ActionArchive:         {from: []ApprovalStatus{ApprovalStopped}, to: ApprovalArchived, record: "archived"},
	ActionRevertToDraft:   {from: []ApprovalStatus{ApprovalPendingReview, ApprovalApproved}, to: ApprovalDraft, record: "reverted_to_draft"},
}

// elevatedActions require an elevated caller role regardless of ownership.
// The remaining actions are gated on ownership or contributor status; both
// tables are consulted by the orchestrator, never by Transition itself.
var elevatedActions = map[Action]bool{
	ActionApprove:  true,
	ActionReject:   true,
	ActionActivate: true,
	ActionPause:    true,
	ActionResume:   true,
	ActionStop:     true,
	ActionReopen:   true,
}

// elevatedRoles may perform the actions in elevatedActions.
var elevatedRoles = map[string]bool{
	RoleAdmin: true,
	RoleOwner: true,
}

// ValidAction reports whether a is a known workflow action.
func ValidAction(a Action) bool {
	_, ok := transitions[a]
	return ok
}

// Transition applies one workflow action to the objective. On success the
// objective's approval status is updated in place and the matching history
// entry is returned; on failure the objective is left untouched.
//
// Authorization is the caller's responsibility; Transition only enforces the
// state table and the mandatory-comment rule.
func Transition(obj *Objective, action Action, actor Actor, comment string, now time.Time) (ApprovalHistoryEntry, error) {
	rule, ok := transitions[action]
	if !ok {
		return ApprovalHistoryEntry{}, &ValidationError{Field: "action", Reason: "unknown action " + string(action)}
	}
	if rule.commentRequired && comment == "" {
		return ApprovalHistoryEntry{}, &ValidationError{Field: "comment", Reason: "a comment is required to " + string(action)}
	}

	allowed := false
	for _, from := range rule.from {
		if obj.ApprovalStatus == from {
			allowed = true
			break
		}
	}
	if !allowed {
		return ApprovalHistoryEntry{}, &WorkflowViolation{Action: action, Current: obj.ApprovalStatus}
	}

	obj.ApprovalStatus = rule.to
	obj.UpdatedAt = now
	if action == ActionApprove {
		obj.ApprovedBy = actor.ID
		at := now
		obj.ApprovedAt = &at
	}

	return ApprovalHistoryEntry{
		ID:          ids.New(),
		ObjectiveID: obj.ID,
		Action:      rule.record,
		ActorID:     actor.ID,
		Comment:     comment,
		CreatedAt:   now,
	}, nil
}

// authorizeTransition applies the role gates ahead of the state machine:
// elevated actions need an elevated role; ownership or a contributor link
// (or an elevated role) covers the rest.
func authorizeTransition(obj *Objective, contributors []Contributor, action Action, actor Actor) error {
	if elevatedActions[action] {
		if !elevatedRoles[actor.Role] {
			return ErrForbidden
		}
		return nil
	}
	if elevatedRoles[actor.Role] || obj.OwnerID == actor.ID {
		return nil
	}
	for _, c := range contributors {
		if c.UserID == actor.ID {
			return nil
		}
	}
	return ErrForbidden
}
