package okr

import (
	"context"
	"math"
	"strings"
	"time"

	"alignhq.org/internal/ids"
)

// CreationKind names the entity kinds subject to subscription limits.
type CreationKind string

const (
	CreationObjective CreationKind = "objective"
	CreationKeyResult CreationKind = "key_result"
)

// LimitDecision is the outcome of a subscription limit check, carrying the
// tier's usage snapshot for display.
type LimitDecision struct {
	Allowed bool
	Kind    CreationKind
	Plan    string
	Used    int
	Limit   int
	Reason  string
}

// LimitChecker is the subscription/billing collaborator. The engine supplies
// the current usage count observed inside its unit of work and surfaces a
// denial verbatim, without retry.
type LimitChecker interface {
	CheckCreation(ctx context.Context, companyID, actorID, actorRole string, kind CreationKind, used int) (LimitDecision, error)
}

// Service is the orchestrated entry point for every objective mutation.
// Each call runs inside one atomic unit of work: invariant checks, the
// mutation, derived-field recomputation, and history appends commit or roll
// back together.
type Service interface {
	CreateObjective(ctx context.Context, actor Actor, in CreateObjectiveInput) (Objective, error)
	GetObjective(ctx context.Context, actor Actor, id string) (Objective, error)
	ListObjectives(ctx context.Context, actor Actor, filter ListFilter) ([]Objective, error)
	UpdateObjective(ctx context.Context, actor Actor, id string, in UpdateObjectiveInput) (Objective, error)
	DeleteObjective(ctx context.Context, actor Actor, id string) error

	AddKeyResult(ctx context.Context, actor Actor, objectiveID string, in KeyResultInput) (Objective, error)
	UpdateKeyResult(ctx context.Context, actor Actor, objectiveID, keyResultID string, in KeyResultUpdate) (Objective, error)
	DeleteKeyResult(ctx context.Context, actor Actor, objectiveID, keyResultID string) (Objective, error)

	Transition(ctx context.Context, actor Actor, objectiveID string, action Action, comment string) (Objective, error)

	AddContributor(ctx context.Context, actor Actor, objectiveID, userID string, role ContributorRole) error
	RemoveContributor(ctx context.Context, actor Actor, objectiveID, userID string) error
	ListContributors(ctx context.Context, actor Actor, objectiveID string) ([]Contributor, error)

	ApprovalHistory(ctx context.Context, actor Actor, objectiveID string) ([]ApprovalHistoryEntry, error)
	ProgressHistory(ctx context.Context, actor Actor, objectiveID, keyResultID string) ([]ProgressHistoryEntry, error)
}

// CreateObjectiveInput carries a new objective with optional nested key
// results.
type CreateObjectiveInput struct {
	Title       string
	Description string
	Level       Level
	Period      string
	ParentID    string
	TeamID      string
	DueDate     *time.Time
	KeyResults  []KeyResultInput
}

// KeyResultInput carries a new key result.
type KeyResultInput struct {
	Title        string
	MetricType   MetricType
	StartValue   float64
	TargetValue  float64
	CurrentValue float64
	Confidence   Confidence
}

// KeyResultUpdate applies partial changes; nil fields are left untouched.
type KeyResultUpdate struct {
	Title        *string
	MetricType   *MetricType
	StartValue   *float64
	TargetValue  *float64
	CurrentValue *float64
	Confidence   *Confidence
}

// UpdateObjectiveInput applies partial changes; nil fields are left
// untouched. ParentID pointing at an empty string detaches the objective
// from its parent. ClearDueDate removes the due date (and with it all
// time-based health scoring).
type UpdateObjectiveInput struct {
	Title        *string
	Description  *string
	Period       *string
	Level        *Level
	ParentID     *string
	TeamID       *string
	DueDate      *time.Time
	ClearDueDate bool
}

// Engine sequences validation, workflow guards, persistence, and derived
// field recomputation for every mutation.
type Engine struct {
	store   Store
	limits  LimitChecker
	emitter Emitter
	now     func() time.Time
}

var _ Service = (*Engine)(nil)

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLimitChecker wires the subscription limit collaborator.
func WithLimitChecker(c LimitChecker) EngineOption {
	return func(e *Engine) { e.limits = c }
}

// WithEmitter wires the post-commit fact emitter.
func WithEmitter(em Emitter) EngineOption {
	return func(e *Engine) { e.emitter = em }
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// NewEngine constructs the lifecycle orchestrator over the given store.
func NewEngine(store Store, opts ...EngineOption) *Engine {
	e := &Engine{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) CreateObjective(ctx context.Context, actor Actor, in CreateObjectiveInput) (Objective, error) {
	if err := validateCreateInput(in); err != nil {
		return Objective{}, err
	}

	now := e.now()
	var result Objective
	err := e.store.Atomically(ctx, func(tx Tx) error {
		if err := e.checkLimit(ctx, tx, actor, CreationObjective, ""); err != nil {
			return err
		}

		if in.ParentID != "" {
			parent, err := tx.GetObjective(ctx, in.ParentID)
			if err != nil {
				return err
			}
			if parent.CompanyID != actor.CompanyID {
				return ErrNotFound
			}
			if err := ValidateParent(in.Level, parent); err != nil {
				return err
			}
		}

		obj := &Objective{
			ID:             ids.New(),
			CompanyID:      actor.CompanyID,
			OwnerID:        actor.ID,
			ParentID:       in.ParentID,
			TeamID:         in.TeamID,
			Title:          strings.TrimSpace(in.Title),
			Description:    strings.TrimSpace(in.Description),
			Level:          in.Level,
			Period:         strings.TrimSpace(in.Period),
			Status:         StatusDraft,
			ApprovalStatus: ApprovalDraft,
			DueDate:        in.DueDate,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := tx.InsertObjective(ctx, obj); err != nil {
			return err
		}

		for i, krIn := range in.KeyResults {
			if err := e.checkLimitN(ctx, actor, CreationKeyResult, i); err != nil {
				return err
			}
			kr := newKeyResult(obj.ID, krIn, now)
			if err := tx.InsertKeyResult(ctx, kr); err != nil {
				return err
			}
		}

		refreshed, err := e.recompute(ctx, tx, obj, now)
		if err != nil {
			return err
		}
		result = *refreshed
		return nil
	})
	if err != nil {
		return Objective{}, err
	}

	e.emit(Event{
		Kind:           EventObjectiveCreated,
		ObjectiveID:    result.ID,
		CompanyID:      result.CompanyID,
		ActorID:        actor.ID,
		Progress:       result.Progress,
		Status:         result.Status,
		ApprovalStatus: result.ApprovalStatus,
		RiskLevel:      result.Health.RiskLevel,
		Timestamp:      now,
	})
	return result, nil
}

func (e *Engine) GetObjective(ctx context.Context, actor Actor, id string) (Objective, error) {
	var result Objective
	err := e.store.Atomically(ctx, func(tx Tx) error {
		obj, err := e.loadScoped(ctx, tx, actor, id)
		if err != nil {
			return err
		}
		krs, err := tx.ListKeyResults(ctx, id)
		if err != nil {
			return err
		}
		obj.KeyResults = krs
		result = *obj
		return nil
	})
	return result, err
}

func (e *Engine) ListObjectives(ctx context.Context, actor Actor, filter ListFilter) ([]Objective, error) {
	filter.CompanyID = actor.CompanyID
	var result []Objective
	err := e.store.Atomically(ctx, func(tx Tx) error {
		objs, err := tx.ListObjectives(ctx, filter)
		if err != nil {
			return err
		}
		for i := range objs {
			krs, err := tx.ListKeyResults(ctx, objs[i].ID)
			if err != nil {
				return err
			}
			objs[i].KeyResults = krs
		}
		result = objs
		return nil
	})
	return result, err
}

func (e *Engine) UpdateObjective(ctx context.Context, actor Actor, id string, in UpdateObjectiveInput) (Objective, error) {
	if err := validateUpdateInput(in); err != nil {
		return Objective{}, err
	}

	now := e.now()
	var result Objective
	err := e.store.Atomically(ctx, func(tx Tx) error {
		obj, err := e.loadScoped(ctx, tx, actor, id)
		if err != nil {
			return err
		}
		if err := e.requireEditable(ctx, tx, obj, actor); err != nil {
			return err
		}

		if in.Title != nil {
			obj.Title = strings.TrimSpace(*in.Title)
		}
		if in.Description != nil {
			obj.Description = strings.TrimSpace(*in.Description)
		}
		if in.Period != nil {
			obj.Period = strings.TrimSpace(*in.Period)
		}
		if in.TeamID != nil {
			obj.TeamID = *in.TeamID
		}
		if in.DueDate != nil {
			obj.DueDate = in.DueDate
		}
		if in.ClearDueDate {
			obj.DueDate = nil
		}

		levelChanged := in.Level != nil && *in.Level != obj.Level
		if levelChanged {
			obj.Level = *in.Level
		}
		parentChanged := in.ParentID != nil && *in.ParentID != obj.ParentID
		if parentChanged {
			obj.ParentID = *in.ParentID
		}

		// Re-validate the parent link whenever it, or the level itself,
		// changes.
		if levelChanged || parentChanged {
			if obj.ParentID != "" {
				parent, err := tx.GetObjective(ctx, obj.ParentID)
				if err != nil {
					return err
				}
				if parent.CompanyID != actor.CompanyID {
					return ErrNotFound
				}
				if err := ValidateParent(obj.Level, parent); err != nil {
					return err
				}
			}
		}

		// A level change must also hold against existing children, or it
		// would silently break their placement.
		if levelChanged {
			children, err := tx.ListObjectives(ctx, ListFilter{CompanyID: obj.CompanyID, ParentID: obj.ID})
			if err != nil {
				return err
			}
			for i := range children {
				if err := ValidateParent(children[i].Level, obj); err != nil {
					return err
				}
			}
		}

		obj.UpdatedAt = now
		refreshed, err := e.recompute(ctx, tx, obj, now)
		if err != nil {
			return err
		}
		result = *refreshed
		return nil
	})
	return result, err
}

func (e *Engine) DeleteObjective(ctx context.Context, actor Actor, id string) error {
	var companyID string
	err := e.store.Atomically(ctx, func(tx Tx) error {
		obj, err := e.loadScoped(ctx, tx, actor, id)
		if err != nil {
			return err
		}
		if obj.OwnerID != actor.ID && !elevatedRoles[actor.Role] {
			return ErrForbidden
		}
		companyID = obj.CompanyID
		// Cascades to key results, contributor links, and history rows;
		// child objectives survive with their parent link cleared.
		return tx.DeleteObjective(ctx, id)
	})
	if err != nil {
		return err
	}
	e.emit(Event{
		Kind:        EventObjectiveDeleted,
		ObjectiveID: id,
		CompanyID:   companyID,
		ActorID:     actor.ID,
		Timestamp:   e.now(),
	})
	return nil
}

func (e *Engine) AddKeyResult(ctx context.Context, actor Actor, objectiveID string, in KeyResultInput) (Objective, error) {
	if err := validateKeyResultInput(in); err != nil {
		return Objective{}, err
	}

	now := e.now()
	var result Objective
	err := e.store.Atomically(ctx, func(tx Tx) error {
		obj, err := e.loadScoped(ctx, tx, actor, objectiveID)
		if err != nil {
			return err
		}
		if err := e.requireEditable(ctx, tx, obj, actor); err != nil {
			return err
		}
		if err := e.checkLimit(ctx, tx, actor, CreationKeyResult, objectiveID); err != nil {
			return err
		}

		if err := tx.InsertKeyResult(ctx, newKeyResult(obj.ID, in, now)); err != nil {
			return err
		}

		obj.UpdatedAt = now
		refreshed, err := e.recompute(ctx, tx, obj, now)
		if err != nil {
			return err
		}
		result = *refreshed
		return nil
	})
	if err != nil {
		return Objective{}, err
	}
	e.emitProgress(result, actor)
	return result, nil
}

func (e *Engine) UpdateKeyResult(ctx context.Context, actor Actor, objectiveID, keyResultID string, in KeyResultUpdate) (Objective, error) {
	if err := validateKeyResultUpdate(in); err != nil {
		return Objective{}, err
	}

	now := e.now()
	var result Objective
	err := e.store.Atomically(ctx, func(tx Tx) error {
		obj, err := e.loadScoped(ctx, tx, actor, objectiveID)
		if err != nil {
			return err
		}
		if err := e.requireEditable(ctx, tx, obj, actor); err != nil {
			return err
		}
		kr, err := tx.GetKeyResult(ctx, objectiveID, keyResultID)
		if err != nil {
			return err
		}

		previous := kr.CurrentValue
		if in.Title != nil {
			kr.Title = strings.TrimSpace(*in.Title)
		}
		if in.MetricType != nil {
			kr.MetricType = *in.MetricType
		}
		if in.StartValue != nil {
			kr.StartValue = *in.StartValue
		}
		if in.TargetValue != nil {
			kr.TargetValue = *in.TargetValue
		}
		if in.CurrentValue != nil {
			kr.CurrentValue = *in.CurrentValue
		}
		if in.Confidence != nil {
			kr.Confidence = *in.Confidence
		}
		kr.Status = keyResultStatus(*kr)
		kr.UpdatedAt = now
		if err := tx.UpdateKeyResult(ctx, kr); err != nil {
			return err
		}

		// Every value change is recorded before recomputation so the
		// history row rolls back together with the derived fields.
		if in.CurrentValue != nil && *in.CurrentValue != previous {
			entry := ProgressHistoryEntry{
				ID:            ids.New(),
				ObjectiveID:   objectiveID,
				KeyResultID:   keyResultID,
				PreviousValue: previous,
				NewValue:      *in.CurrentValue,
				ActorID:       actor.ID,
				RecordedAt:    now,
			}
			if err := tx.AppendProgressHistory(ctx, entry); err != nil {
				return err
			}
		}

		obj.UpdatedAt = now
		refreshed, err := e.recompute(ctx, tx, obj, now)
		if err != nil {
			return err
		}
		result = *refreshed
		return nil
	})
	if err != nil {
		return Objective{}, err
	}
	e.emitProgress(result, actor)
	return result, nil
}

func (e *Engine) DeleteKeyResult(ctx context.Context, actor Actor, objectiveID, keyResultID string) (Objective, error) {
	now := e.now()
	var result Objective
	err := e.store.Atomically(ctx, func(tx Tx) error {
		obj, err := e.loadScoped(ctx, tx, actor, objectiveID)
		if err != nil {
			return err
		}
		if err := e.requireEditable(ctx, tx, obj, actor); err != nil {
			return err
		}
		if err := tx.DeleteKeyResult(ctx, objectiveID, keyResultID); err != nil {
			return err
		}
		obj.UpdatedAt = now
		refreshed, err := e.recompute(ctx, tx, obj, now)
		if err != nil {
			return err
		}
		result = *refreshed
		return nil
	})
	if err != nil {
		return Objective{}, err
	}
	e.emitProgress(result, actor)
	return result, nil
}

func (e *Engine) Transition(ctx context.Context, actor Actor, objectiveID string, action Action, comment string) (Objective, error) {
	now := e.now()
	var result Objective
	err := e.store.Atomically(ctx, func(tx Tx) error {
		obj, err := e.loadScoped(ctx, tx, actor, objectiveID)
		if err != nil {
			return err
		}
		contributors, err := tx.ListContributors(ctx, objectiveID)
		if err != nil {
			return err
		}
		if err := authorizeTransition(obj, contributors, action, actor); err != nil {
			return err
		}

		entry, err := Transition(obj, action, actor, strings.TrimSpace(comment), now)
		if err != nil {
			return err
		}
		if err := tx.UpdateObjective(ctx, obj); err != nil {
			return err
		}
		if err := tx.AppendApprovalHistory(ctx, entry); err != nil {
			return err
		}

		krs, err := tx.ListKeyResults(ctx, objectiveID)
		if err != nil {
			return err
		}
		obj.KeyResults = krs
		result = *obj
		return nil
	})
	if err != nil {
		return Objective{}, err
	}

	e.emit(Event{
		Kind:           EventTransition,
		ObjectiveID:    result.ID,
		CompanyID:      result.CompanyID,
		ActorID:        actor.ID,
		Action:         string(action),
		Progress:       result.Progress,
		Status:         result.Status,
		ApprovalStatus: result.ApprovalStatus,
		RiskLevel:      result.Health.RiskLevel,
		Timestamp:      now,
	})
	return result, nil
}

func (e *Engine) AddContributor(ctx context.Context, actor Actor, objectiveID, userID string, role ContributorRole) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return &ValidationError{Field: "user_id", Reason: "is required"}
	}
	if !ValidContributorRole(role) {
		return &ValidationError{Field: "role", Reason: "unknown contributor role " + string(role)}
	}
	return e.store.Atomically(ctx, func(tx Tx) error {
		obj, err := e.loadScoped(ctx, tx, actor, objectiveID)
		if err != nil {
			return err
		}
		if obj.OwnerID != actor.ID && !elevatedRoles[actor.Role] {
			return ErrForbidden
		}
		if obj.OwnerID == userID {
			return &ValidationError{Field: "user_id", Reason: "the objective owner cannot also be a contributor"}
		}
		return tx.AddContributor(ctx, Contributor{
			ObjectiveID: objectiveID,
			UserID:      userID,
			Role:        role,
			AddedAt:     e.now(),
		})
	})
}

func (e *Engine) RemoveContributor(ctx context.Context, actor Actor, objectiveID, userID string) error {
	return e.store.Atomically(ctx, func(tx Tx) error {
		obj, err := e.loadScoped(ctx, tx, actor, objectiveID)
		if err != nil {
			return err
		}
		if obj.OwnerID != actor.ID && !elevatedRoles[actor.Role] {
			return ErrForbidden
		}
		return tx.RemoveContributor(ctx, objectiveID, userID)
	})
}

func (e *Engine) ListContributors(ctx context.Context, actor Actor, objectiveID string) ([]Contributor, error) {
	var result []Contributor
	err := e.store.Atomically(ctx, func(tx Tx) error {
		if _, err := e.loadScoped(ctx, tx, actor, objectiveID); err != nil {
			return err
		}
		list, err := tx.ListContributors(ctx, objectiveID)
		if err != nil {
			return err
		}
		result = list
		return nil
	})
	return result, err
}

func (e *Engine) ApprovalHistory(ctx context.Context, actor Actor, objectiveID string) ([]ApprovalHistoryEntry, error) {
	var result []ApprovalHistoryEntry
	err := e.store.Atomically(ctx, func(tx Tx) error {
		if _, err := e.loadScoped(ctx, tx, actor, objectiveID); err != nil {
			return err
		}
		list, err := tx.ListApprovalHistory(ctx, objectiveID)
		if err != nil {
			return err
		}
		result = list
		return nil
	})
	return result, err
}

func (e *Engine) ProgressHistory(ctx context.Context, actor Actor, objectiveID, keyResultID string) ([]ProgressHistoryEntry, error) {
	var result []ProgressHistoryEntry
	err := e.store.Atomically(ctx, func(tx Tx) error {
		if _, err := e.loadScoped(ctx, tx, actor, objectiveID); err != nil {
			return err
		}
		list, err := tx.ListProgressHistory(ctx, objectiveID, keyResultID)
		if err != nil {
			return err
		}
		result = list
		return nil
	})
	return result, err
}

// --- internals ---

// loadScoped fetches an objective and hides it entirely from callers of a
// different company.
func (e *Engine) loadScoped(ctx context.Context, tx Tx, actor Actor, id string) (*Objective, error) {
	obj, err := tx.GetObjective(ctx, id)
	if err != nil {
		return nil, err
	}
	if obj.CompanyID != actor.CompanyID {
		return nil, ErrNotFound
	}
	return obj, nil
}

// requireEditable gates data mutation on both the workflow state and the
// caller's relationship to the objective. Archived objectives are read-only.
func (e *Engine) requireEditable(ctx context.Context, tx Tx, obj *Objective, actor Actor) error {
	if obj.ApprovalStatus == ApprovalArchived {
		return &ValidationError{Field: "objective", Reason: "archived objectives are read-only"}
	}
	if elevatedRoles[actor.Role] || obj.OwnerID == actor.ID {
		return nil
	}
	contributors, err := tx.ListContributors(ctx, obj.ID)
	if err != nil {
		return err
	}
	for _, c := range contributors {
		if c.UserID == actor.ID {
			return nil
		}
	}
	return ErrForbidden
}

// recompute refreshes every derived field from the key result set observed
// in this transaction, writes the objective back, and returns it with its
// key results attached. Progress aggregation and the confidence factor read
// the same snapshot.
func (e *Engine) recompute(ctx context.Context, tx Tx, obj *Objective, now time.Time) (*Objective, error) {
	krs, err := tx.ListKeyResults(ctx, obj.ID)
	if err != nil {
		return nil, err
	}
	obj.Progress = ComputeProgress(krs)
	obj.Status, obj.Health = ClassifyHealth(obj.Progress, obj.DueDate, obj.CreatedAt, krs, now)
	obj.UpdatedAt = now
	if err := tx.UpdateObjective(ctx, obj); err != nil {
		return nil, err
	}
	obj.KeyResults = krs
	return obj, nil
}

func (e *Engine) checkLimit(ctx context.Context, tx Tx, actor Actor, kind CreationKind, objectiveID string) error {
	if e.limits == nil {
		return nil
	}
	var used int
	var err error
	switch kind {
	case CreationObjective:
		used, err = tx.CountObjectives(ctx, actor.CompanyID)
	case CreationKeyResult:
		var krs []KeyResult
		krs, err = tx.ListKeyResults(ctx, objectiveID)
		used = len(krs)
	}
	if err != nil {
		return err
	}
	return e.checkLimitN(ctx, actor, kind, used)
}

func (e *Engine) checkLimitN(ctx context.Context, actor Actor, kind CreationKind, used int) error {
	if e.limits == nil {
		return nil
	}
	decision, err := e.limits.CheckCreation(ctx, actor.CompanyID, actor.ID, actor.Role, kind, used)
	if err != nil {
		return err
	}
	if !decision.Allowed {
		return &LimitExceeded{
			Kind:   kind,
			Plan:   decision.Plan,
			Used:   decision.Used,
			Limit:  decision.Limit,
			Reason: decision.Reason,
		}
	}
	return nil
}

func (e *Engine) emit(evt Event) {
	if e.emitter != nil {
		e.emitter.Emit(evt)
	}
}

func (e *Engine) emitProgress(obj Objective, actor Actor) {
	e.emit(Event{
		Kind:           EventProgressUpdated,
		ObjectiveID:    obj.ID,
		CompanyID:      obj.CompanyID,
		ActorID:        actor.ID,
		Progress:       obj.Progress,
		Status:         obj.Status,
		ApprovalStatus: obj.ApprovalStatus,
		RiskLevel:      obj.Health.RiskLevel,
		Timestamp:      obj.UpdatedAt,
	})
}

func newKeyResult(objectiveID string, in KeyResultInput, now time.Time) *KeyResult {
	kr := &KeyResult{
		ID:           ids.New(),
		ObjectiveID:  objectiveID,
		Title:        strings.TrimSpace(in.Title),
		MetricType:   in.MetricType,
		StartValue:   in.StartValue,
		TargetValue:  in.TargetValue,
		CurrentValue: in.CurrentValue,
		Confidence:   in.Confidence,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	kr.Status = keyResultStatus(*kr)
	return kr
}

// keyResultStatus derives the informational per-key-result label. It never
// gates the workflow.
func keyResultStatus(kr KeyResult) Status {
	switch ratio := kr.CompletionRatio(); {
	case ratio >= 100:
		return StatusCompleted
	case ratio > 0:
		return StatusOnTrack
	default:
		return StatusDraft
	}
}

func validateCreateInput(in CreateObjectiveInput) error {
	if strings.TrimSpace(in.Title) == "" {
		return &ValidationError{Field: "title", Reason: "is required"}
	}
	if !ValidLevel(in.Level) {
		return &ValidationError{Field: "level", Reason: "unknown level " + string(in.Level)}
	}
	if strings.TrimSpace(in.Period) == "" {
		return &ValidationError{Field: "period", Reason: "is required"}
	}
	for _, kr := range in.KeyResults {
		if err := validateKeyResultInput(kr); err != nil {
			return err
		}
	}
	return nil
}

func validateUpdateInput(in UpdateObjectiveInput) error {
	if in.Title != nil && strings.TrimSpace(*in.Title) == "" {
		return &ValidationError{Field: "title", Reason: "cannot be empty"}
	}
	if in.Period != nil && strings.TrimSpace(*in.Period) == "" {
		return &ValidationError{Field: "period", Reason: "cannot be empty"}
	}
	if in.Level != nil && !ValidLevel(*in.Level) {
		return &ValidationError{Field: "level", Reason: "unknown level " + string(*in.Level)}
	}
	if in.DueDate != nil && in.ClearDueDate {
		return &ValidationError{Field: "due_date", Reason: "cannot both set and clear the due date"}
	}
	return nil
}

func validateKeyResultInput(in KeyResultInput) error {
	if strings.TrimSpace(in.Title) == "" {
		return &ValidationError{Field: "title", Reason: "is required"}
	}
	if !ValidMetricType(in.MetricType) {
		return &ValidationError{Field: "metric_type", Reason: "unknown metric type " + string(in.MetricType)}
	}
	if !ValidConfidence(in.Confidence) {
		return &ValidationError{Field: "confidence", Reason: "unknown confidence " + string(in.Confidence)}
	}
	for field, v := range map[string]float64{
		"start_value":   in.StartValue,
		"target_value":  in.TargetValue,
		"current_value": in.CurrentValue,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &ValidationError{Field: field, Reason: "must be a finite number"}
		}
	}
	return nil
}

func validateKeyResultUpdate(in KeyResultUpdate) error {
	if in.Title != nil && strings.TrimSpace(*in.Title) == "" {
		return &ValidationError{Field: "title", Reason: "cannot be empty"}
	}
	if in.MetricType != nil && !ValidMetricType(*in.MetricType) {
		return &ValidationError{Field: "metric_type", Reason: "unknown metric type " + string(*in.MetricType)}
	}
	if in.Confidence != nil && !ValidConfidence(*in.Confidence) {
		return &ValidationError{Field: "confidence", Reason: "unknown confidence " + string(*in.Confidence)}
	}
	for field, v := range map[string]*float64{
		"start_value":   in.StartValue,
		"target_value":  in.TargetValue,
		"current_value": in.CurrentValue,
	} {
		if v != nil && (math.IsNaN(*v) || math.IsInf(*v, 0)) {
			return &ValidationError{Field: field, Reason: "must be a finite number"}
		}
	}
	return nil
}
