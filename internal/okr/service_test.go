package okr

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var engineNow = time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

type denyAfter struct {
	kind  CreationKind
	limit int
}

func (d denyAfter) CheckCreation(ctx context.Context, companyID, actorID, actorRole string, kind CreationKind, used int) (LimitDecision, error) {
	decision := LimitDecision{Allowed: true, Kind: kind, Plan: "free", Used: used, Limit: d.limit}
	if kind == d.kind && used >= d.limit {
		decision.Allowed = false
		decision.Reason = "plan limit reached"
	}
	return decision, nil
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingEmitter) Emit(evt Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recordingEmitter) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]EventKind, len(r.events))
	for i, evt := range r.events {
		kinds[i] = evt.Kind
	}
	return kinds
}

func newTestEngine(t *testing.T, opts ...EngineOption) *Engine {
	t.Helper()
	opts = append([]EngineOption{WithClock(func() time.Time { return engineNow })}, opts...)
	return NewEngine(NewMemStore(), opts...)
}

var (
	owner = Actor{ID: "user-1", Role: RoleMember, CompanyID: "co-1"}
	admin = Actor{ID: "admin-1", Role: RoleAdmin, CompanyID: "co-1"}
)

func mustCreate(t *testing.T, e *Engine, actor Actor, in CreateObjectiveInput) Objective {
	t.Helper()
	obj, err := e.CreateObjective(context.Background(), actor, in)
	if err != nil {
		t.Fatalf("create objective: %v", err)
	}
	return obj
}

func TestCreateObjectiveDerivesFields(t *testing.T) {
	e := newTestEngine(t)
	obj := mustCreate(t, e, owner, CreateObjectiveInput{
		Title:  "Grow ARR",
		Level:  LevelCompany,
		Period: "2026-Q1",
		KeyResults: []KeyResultInput{
			{Title: "New logos", MetricType: MetricNumber, TargetValue: 100, CurrentValue: 50, Confidence: ConfidenceHigh},
			{Title: "Renewal rate", MetricType: MetricPercentage, TargetValue: 95, CurrentValue: 95, Confidence: ConfidenceMedium},
		},
	})

	if obj.ID == "" || obj.CompanyID != "co-1" || obj.OwnerID != "user-1" {
		t.Fatalf("identity fields: %+v", obj)
	}
	if obj.ApprovalStatus != ApprovalDraft {
		t.Fatalf("new objective approval status %s, want draft", obj.ApprovalStatus)
	}
	if obj.Progress != 75 {
		t.Fatalf("progress %d, want 75 for key results at 50%% and 100%%", obj.Progress)
	}
	if len(obj.KeyResults) != 2 {
		t.Fatalf("key results attached: %d, want 2", len(obj.KeyResults))
	}
	if obj.KeyResults[0].Status != StatusOnTrack || obj.KeyResults[1].Status != StatusCompleted {
		t.Fatalf("key result statuses %s/%s", obj.KeyResults[0].Status, obj.KeyResults[1].Status)
	}
}

func TestCreateObjectiveValidation(t *testing.T) {
	e := newTestEngine(t)
	cases := []struct {
		name string
		in   CreateObjectiveInput
	}{
		{"missing title", CreateObjectiveInput{Level: LevelTeam, Period: "2026-Q1"}},
		{"unknown level", CreateObjectiveInput{Title: "x", Level: "squad", Period: "2026-Q1"}},
		{"missing period", CreateObjectiveInput{Title: "x", Level: LevelTeam}},
		{"bad key result metric", CreateObjectiveInput{
			Title: "x", Level: LevelTeam, Period: "2026-Q1",
			KeyResults: []KeyResultInput{{Title: "kr", MetricType: "emoji", Confidence: ConfidenceHigh}},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var verr *ValidationError
			if _, err := e.CreateObjective(context.Background(), owner, tc.in); !errors.As(err, &verr) {
				t.Fatalf("got %v, want ValidationError", err)
			}
		})
	}
}

func TestCreateObjectiveHierarchy(t *testing.T) {
	e := newTestEngine(t)
	team := mustCreate(t, e, owner, CreateObjectiveInput{Title: "Team goal", Level: LevelTeam, Period: "2026-Q1"})

	child := mustCreate(t, e, owner, CreateObjectiveInput{
		Title: "My goal", Level: LevelIndividual, Period: "2026-Q1", ParentID: team.ID,
	})
	if child.ParentID != team.ID {
		t.Fatalf("parent id %q, want %q", child.ParentID, team.ID)
	}

	var mismatch *LevelMismatchError
	_, err := e.CreateObjective(context.Background(), owner, CreateObjectiveInput{
		Title: "Dept goal", Level: LevelDepartment, Period: "2026-Q1", ParentID: team.ID,
	})
	if !errors.As(err, &mismatch) {
		t.Fatalf("department under team: got %v, want LevelMismatchError", err)
	}
}

func TestCreateObjectiveLimit(t *testing.T) {
	e := newTestEngine(t, WithLimitChecker(denyAfter{kind: CreationObjective, limit: 1}))
	mustCreate(t, e, owner, CreateObjectiveInput{Title: "First", Level: LevelTeam, Period: "2026-Q1"})

	var limit *LimitExceeded
	_, err := e.CreateObjective(context.Background(), owner, CreateObjectiveInput{Title: "Second", Level: LevelTeam, Period: "2026-Q1"})
	if !errors.As(err, &limit) {
		t.Fatalf("got %v, want LimitExceeded", err)
	}
	if limit.Plan != "free" || limit.Used != 1 || limit.Limit != 1 {
		t.Fatalf("limit payload %+v", limit)
	}

	objs, err := e.ListObjectives(context.Background(), owner, ListFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(objs) != 1 {
		t.Fatalf("denied creation persisted: %d objectives", len(objs))
	}
}

func TestKeyResultLimit(t *testing.T) {
	e := newTestEngine(t, WithLimitChecker(denyAfter{kind: CreationKeyResult, limit: 1}))
	obj := mustCreate(t, e, owner, CreateObjectiveInput{
		Title: "Goal", Level: LevelTeam, Period: "2026-Q1",
		KeyResults: []KeyResultInput{{Title: "kr-1", MetricType: MetricNumber, TargetValue: 10, Confidence: ConfidenceHigh}},
	})

	var limit *LimitExceeded
	_, err := e.AddKeyResult(context.Background(), owner, obj.ID, KeyResultInput{
		Title: "kr-2", MetricType: MetricNumber, TargetValue: 10, Confidence: ConfidenceHigh,
	})
	if !errors.As(err, &limit) {
		t.Fatalf("got %v, want LimitExceeded", err)
	}
}

func TestCompanyScoping(t *testing.T) {
	e := newTestEngine(t)
	obj := mustCreate(t, e, owner, CreateObjectiveInput{Title: "Ours", Level: LevelTeam, Period: "2026-Q1"})

	outsider := Actor{ID: "user-2", Role: RoleAdmin, CompanyID: "co-2"}
	if _, err := e.GetObjective(context.Background(), outsider, obj.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-company read: got %v, want ErrNotFound", err)
	}

	objs, err := e.ListObjectives(context.Background(), outsider, ListFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(objs) != 0 {
		t.Fatalf("cross-company list leaked %d objectives", len(objs))
	}
}

func TestUpdateKeyResultRecomputesAndRecordsHistory(t *testing.T) {
	e := newTestEngine(t)
	obj := mustCreate(t, e, owner, CreateObjectiveInput{
		Title: "Goal", Level: LevelTeam, Period: "2026-Q1",
		KeyResults: []KeyResultInput{{Title: "kr", MetricType: MetricPercentage, TargetValue: 100, Confidence: ConfidenceHigh}},
	})
	krID := obj.KeyResults[0].ID

	value := 40.0
	updated, err := e.UpdateKeyResult(context.Background(), owner, obj.ID, krID, KeyResultUpdate{CurrentValue: &value})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Progress != 40 {
		t.Fatalf("progress %d, want 40", updated.Progress)
	}

	history, err := e.ProgressHistory(context.Background(), owner, obj.ID, krID)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 {
		t.Fatalf("progress history entries: %d, want 1", len(history))
	}
	if history[0].PreviousValue != 0 || history[0].NewValue != 40 || history[0].ActorID != owner.ID {
		t.Fatalf("history entry %+v", history[0])
	}

	// Touching other fields without a value change appends nothing.
	title := "renamed"
	if _, err := e.UpdateKeyResult(context.Background(), owner, obj.ID, krID, KeyResultUpdate{Title: &title}); err != nil {
		t.Fatal(err)
	}
	history, _ = e.ProgressHistory(context.Background(), owner, obj.ID, krID)
	if len(history) != 1 {
		t.Fatalf("no-op value update appended history: %d entries", len(history))
	}
}

func TestDeleteKeyResultRecomputes(t *testing.T) {
	e := newTestEngine(t)
	obj := mustCreate(t, e, owner, CreateObjectiveInput{
		Title: "Goal", Level: LevelTeam, Period: "2026-Q1",
		KeyResults: []KeyResultInput{
			{Title: "done", MetricType: MetricNumber, TargetValue: 10, CurrentValue: 10, Confidence: ConfidenceHigh},
			{Title: "untouched", MetricType: MetricNumber, TargetValue: 10, Confidence: ConfidenceHigh},
		},
	})
	if obj.Progress != 50 {
		t.Fatalf("initial progress %d, want 50", obj.Progress)
	}

	updated, err := e.DeleteKeyResult(context.Background(), owner, obj.ID, obj.KeyResults[1].ID)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Progress != 100 {
		t.Fatalf("progress after delete %d, want 100", updated.Progress)
	}
}

func TestTransitionThroughEngine(t *testing.T) {
	e := newTestEngine(t)
	obj := mustCreate(t, e, owner, CreateObjectiveInput{Title: "Goal", Level: LevelTeam, Period: "2026-Q1"})

	if _, err := e.Transition(context.Background(), owner, obj.ID, ActionSubmitForReview, ""); err != nil {
		t.Fatalf("submit: %v", err)
	}

	// The owner lacks an elevated role; approval is out of reach.
	if _, err := e.Transition(context.Background(), owner, obj.ID, ActionApprove, ""); !errors.Is(err, ErrForbidden) {
		t.Fatalf("member approve: got %v, want ErrForbidden", err)
	}

	approved, err := e.Transition(context.Background(), admin, obj.ID, ActionApprove, "looks solid")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.ApprovalStatus != ApprovalApproved || approved.ApprovedBy != admin.ID {
		t.Fatalf("approved objective %+v", approved)
	}

	history, err := e.ApprovalHistory(context.Background(), owner, obj.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 {
		t.Fatalf("approval history entries: %d, want 2", len(history))
	}
	if history[0].Action != "submitted" || history[1].Action != "approved" {
		t.Fatalf("history order: %s, %s", history[0].Action, history[1].Action)
	}
	if history[1].Comment != "looks solid" {
		t.Fatalf("approve comment %q", history[1].Comment)
	}
}

func TestFailedTransitionLeavesNoHistory(t *testing.T) {
	e := newTestEngine(t)
	obj := mustCreate(t, e, owner, CreateObjectiveInput{Title: "Goal", Level: LevelTeam, Period: "2026-Q1"})

	var wv *WorkflowViolation
	if _, err := e.Transition(context.Background(), admin, obj.ID, ActionApprove, ""); !errors.As(err, &wv) {
		t.Fatalf("approve from draft: got %v, want WorkflowViolation", err)
	}

	history, err := e.ApprovalHistory(context.Background(), owner, obj.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 0 {
		t.Fatalf("failed transition left %d history entries", len(history))
	}
	got, _ := e.GetObjective(context.Background(), owner, obj.ID)
	if got.ApprovalStatus != ApprovalDraft {
		t.Fatalf("failed transition changed state to %s", got.ApprovalStatus)
	}
}

func TestArchivedObjectiveIsReadOnly(t *testing.T) {
	e := newTestEngine(t)
	obj := mustCreate(t, e, owner, CreateObjectiveInput{Title: "Goal", Level: LevelTeam, Period: "2026-Q1"})

	ctx := context.Background()
	for _, step := range []Action{ActionSubmitForReview, ActionApprove, ActionActivate, ActionStop, ActionArchive} {
		actor := admin
		if step == ActionSubmitForReview {
			actor = owner
		}
		if _, err := e.Transition(ctx, actor, obj.ID, step, ""); err != nil {
			t.Fatalf("%s: %v", step, err)
		}
	}

	var verr *ValidationError
	title := "new title"
	if _, err := e.UpdateObjective(ctx, owner, obj.ID, UpdateObjectiveInput{Title: &title}); !errors.As(err, &verr) {
		t.Fatalf("update archived: got %v, want ValidationError", err)
	}
	if _, err := e.AddKeyResult(ctx, owner, obj.ID, KeyResultInput{
		Title: "kr", MetricType: MetricNumber, TargetValue: 1, Confidence: ConfidenceHigh,
	}); !errors.As(err, &verr) {
		t.Fatalf("add key result to archived: got %v, want ValidationError", err)
	}

	// Reading archived objectives stays open.
	if _, err := e.GetObjective(ctx, owner, obj.ID); err != nil {
		t.Fatalf("read archived: %v", err)
	}
}

func TestUpdateObjectiveLevelChangeRevalidatesChildren(t *testing.T) {
	e := newTestEngine(t)
	dept := mustCreate(t, e, owner, CreateObjectiveInput{Title: "Dept", Level: LevelDepartment, Period: "2026-Q1"})
	mustCreate(t, e, owner, CreateObjectiveInput{Title: "Team", Level: LevelTeam, Period: "2026-Q1", ParentID: dept.ID})

	// Narrowing the parent to team level would break the existing team child.
	level := LevelTeam
	var mismatch *LevelMismatchError
	if _, err := e.UpdateObjective(context.Background(), owner, dept.ID, UpdateObjectiveInput{Level: &level}); !errors.As(err, &mismatch) {
		t.Fatalf("narrowing with children: got %v, want LevelMismatchError", err)
	}

	// Broadening is always safe.
	level = LevelCompany
	updated, err := e.UpdateObjective(context.Background(), owner, dept.ID, UpdateObjectiveInput{Level: &level})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Level != LevelCompany {
		t.Fatalf("level %s, want company", updated.Level)
	}
}

func TestUpdateObjectiveReparent(t *testing.T) {
	e := newTestEngine(t)
	company := mustCreate(t, e, owner, CreateObjectiveInput{Title: "Company", Level: LevelCompany, Period: "2026"})
	team := mustCreate(t, e, owner, CreateObjectiveInput{Title: "Team", Level: LevelTeam, Period: "2026-Q1"})
	individual := mustCreate(t, e, owner, CreateObjectiveInput{Title: "Mine", Level: LevelIndividual, Period: "2026-Q1", ParentID: team.ID})

	parent := company.ID
	updated, err := e.UpdateObjective(context.Background(), owner, individual.ID, UpdateObjectiveInput{ParentID: &parent})
	if err != nil {
		t.Fatal(err)
	}
	if updated.ParentID != company.ID {
		t.Fatalf("parent %q, want %q", updated.ParentID, company.ID)
	}

	// Detach with an explicit empty parent id.
	detach := ""
	updated, err = e.UpdateObjective(context.Background(), owner, individual.ID, UpdateObjectiveInput{ParentID: &detach})
	if err != nil {
		t.Fatal(err)
	}
	if updated.ParentID != "" {
		t.Fatalf("parent %q after detach, want empty", updated.ParentID)
	}
}

func TestDeleteObjectiveOrphansChildren(t *testing.T) {
	e := newTestEngine(t)
	dept := mustCreate(t, e, owner, CreateObjectiveInput{Title: "Dept", Level: LevelDepartment, Period: "2026-Q1"})
	team := mustCreate(t, e, owner, CreateObjectiveInput{Title: "Team", Level: LevelTeam, Period: "2026-Q1", ParentID: dept.ID})

	if err := e.DeleteObjective(context.Background(), owner, dept.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := e.GetObjective(context.Background(), owner, dept.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted objective still readable: %v", err)
	}

	child, err := e.GetObjective(context.Background(), owner, team.ID)
	if err != nil {
		t.Fatalf("child must survive parent deletion: %v", err)
	}
	if child.ParentID != "" {
		t.Fatalf("child parent link %q, want cleared", child.ParentID)
	}
}

func TestDeleteObjectiveRequiresOwnership(t *testing.T) {
	e := newTestEngine(t)
	obj := mustCreate(t, e, owner, CreateObjectiveInput{Title: "Goal", Level: LevelTeam, Period: "2026-Q1"})

	peer := Actor{ID: "user-2", Role: RoleMember, CompanyID: "co-1"}
	if err := e.DeleteObjective(context.Background(), peer, obj.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("peer delete: got %v, want ErrForbidden", err)
	}
	if err := e.DeleteObjective(context.Background(), admin, obj.ID); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
}

func TestContributors(t *testing.T) {
	e := newTestEngine(t)
	obj := mustCreate(t, e, owner, CreateObjectiveInput{Title: "Goal", Level: LevelTeam, Period: "2026-Q1"})
	ctx := context.Background()

	if err := e.AddContributor(ctx, owner, obj.ID, "user-2", ContributorRoleContributor); err != nil {
		t.Fatal(err)
	}

	var verr *ValidationError
	if err := e.AddContributor(ctx, owner, obj.ID, owner.ID, ContributorRoleContributor); !errors.As(err, &verr) {
		t.Fatalf("owner as contributor: got %v, want ValidationError", err)
	}
	if err := e.AddContributor(ctx, owner, obj.ID, "user-3", ContributorRole("lurker")); !errors.As(err, &verr) {
		t.Fatalf("unknown role: got %v, want ValidationError", err)
	}

	// A contributor may edit but not manage the contributor list.
	contributor := Actor{ID: "user-2", Role: RoleMember, CompanyID: "co-1"}
	value := 1.0
	if _, err := e.AddKeyResult(ctx, contributor, obj.ID, KeyResultInput{
		Title: "kr", MetricType: MetricNumber, TargetValue: 10, CurrentValue: value, Confidence: ConfidenceHigh,
	}); err != nil {
		t.Fatalf("contributor edit: %v", err)
	}
	if err := e.AddContributor(ctx, contributor, obj.ID, "user-4", ContributorRoleReviewer); !errors.Is(err, ErrForbidden) {
		t.Fatalf("contributor managing contributors: got %v, want ErrForbidden", err)
	}

	list, err := e.ListContributors(ctx, owner, obj.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].UserID != "user-2" {
		t.Fatalf("contributor list %+v", list)
	}

	if err := e.RemoveContributor(ctx, owner, obj.ID, "user-2"); err != nil {
		t.Fatal(err)
	}
	if err := e.RemoveContributor(ctx, owner, obj.ID, "user-2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("double remove: got %v, want ErrNotFound", err)
	}
}

func TestEngineEmitsEvents(t *testing.T) {
	emitter := &recordingEmitter{}
	e := newTestEngine(t, WithEmitter(emitter))
	ctx := context.Background()

	obj := mustCreate(t, e, owner, CreateObjectiveInput{
		Title: "Goal", Level: LevelTeam, Period: "2026-Q1",
		KeyResults: []KeyResultInput{{Title: "kr", MetricType: MetricNumber, TargetValue: 10, Confidence: ConfidenceHigh}},
	})
	value := 5.0
	if _, err := e.UpdateKeyResult(ctx, owner, obj.ID, obj.KeyResults[0].ID, KeyResultUpdate{CurrentValue: &value}); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Transition(ctx, owner, obj.ID, ActionSubmitForReview, ""); err != nil {
		t.Fatal(err)
	}
	if err := e.DeleteObjective(ctx, owner, obj.ID); err != nil {
		t.Fatal(err)
	}

	want := []EventKind{EventObjectiveCreated, EventProgressUpdated, EventTransition, EventObjectiveDeleted}
	got := emitter.kinds()
	if len(got) != len(want) {
		t.Fatalf("event kinds %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d: %s, want %s", i, got[i], want[i])
		}
	}
}

func TestFailedMutationEmitsNothing(t *testing.T) {
	emitter := &recordingEmitter{}
	e := newTestEngine(t, WithEmitter(emitter))

	if _, err := e.CreateObjective(context.Background(), owner, CreateObjectiveInput{Level: LevelTeam}); err == nil {
		t.Fatal("expected validation failure")
	}
	if n := len(emitter.kinds()); n != 0 {
		t.Fatalf("failed create emitted %d events", n)
	}
}
