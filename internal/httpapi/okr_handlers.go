package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"alignhq.org/internal/audit"
	"alignhq.org/internal/obs"
	"alignhq.org/internal/okr"
)

type keyResultRequest struct {
	Title        string  `json:"title"`
	MetricType   string  `json:"metric_type"`
	StartValue   float64 `json:"start_value"`
	TargetValue  float64 `json:"target_value"`
	CurrentValue float64 `json:"current_value"`
	Confidence   string  `json:"confidence"`
}

type createObjectiveRequest struct {
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Level       string             `json:"level"`
	Period      string             `json:"period"`
	ParentID    string             `json:"parent_objective_id"`
	TeamID      string             `json:"team_id"`
	DueDate     *time.Time         `json:"due_date"`
	KeyResults  []keyResultRequest `json:"key_results"`
}

type updateObjectiveRequest struct {
	Title        *string    `json:"title"`
	Description  *string    `json:"description"`
	Period       *string    `json:"period"`
	Level        *string    `json:"level"`
	ParentID     *string    `json:"parent_objective_id"`
	TeamID       *string    `json:"team_id"`
	DueDate      *time.Time `json:"due_date"`
	ClearDueDate bool       `json:"clear_due_date"`
}

type updateKeyResultRequest struct {
	Title        *string  `json:"title"`
	MetricType   *string  `json:"metric_type"`
	StartValue   *float64 `json:"start_value"`
	TargetValue  *float64 `json:"target_value"`
	CurrentValue *float64 `json:"current_value"`
	Confidence   *string  `json:"confidence"`
}

type transitionRequest struct {
	Action  string `json:"action"`
	Comment string `json:"comment"`
}

type contributorRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

func (a *API) handleObjectivesCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.createObjective(w, r)
	case http.MethodGet:
		a.listObjectives(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

// handleObjectiveResource dispatches /v1/objectives/{id} and its
// sub-resources.
func (a *API) handleObjectiveResource(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/objectives/")
	segments := strings.Split(strings.Trim(rest, "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	id := segments[0]

	switch {
	case len(segments) == 1:
		a.objectiveByID(w, r, id)
	case len(segments) == 2 && segments[1] == "key-results":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.addKeyResult(w, r, id)
	case len(segments) == 3 && segments[1] == "key-results":
		a.keyResultByID(w, r, id, segments[2])
	case len(segments) == 2 && segments[1] == "transitions":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.transition(w, r, id)
	case len(segments) == 2 && segments[1] == "contributors":
		a.contributorsCollection(w, r, id)
	case len(segments) == 3 && segments[1] == "contributors":
		if r.Method != http.MethodDelete {
			methodNotAllowed(w, r, http.MethodDelete)
			return
		}
		a.removeContributor(w, r, id, segments[2])
	case len(segments) == 2 && segments[1] == "approval-history":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.approvalHistory(w, r, id)
	case len(segments) == 2 && segments[1] == "progress-history":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		a.progressHistory(w, r, id)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) createObjective(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.actor(w, r)
	if !ok {
		return
	}
	var req createObjectiveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	in := okr.CreateObjectiveInput{
		Title:       req.Title,
		Description: req.Description,
		Level:       okr.Level(req.Level),
		Period:      req.Period,
		ParentID:    strings.TrimSpace(req.ParentID),
		TeamID:      strings.TrimSpace(req.TeamID),
		DueDate:     req.DueDate,
	}
	for _, kr := range req.KeyResults {
		in.KeyResults = append(in.KeyResults, keyResultInput(kr))
	}

	obj, err := a.okr.CreateObjective(r.Context(), actor, in)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "okr.objective.create", map[string]any{
		"objective_id": obj.ID,
		"level":        string(obj.Level),
		"period":       obj.Period,
	})

	w.Header().Set("Location", "/v1/objectives/"+obj.ID)
	writeJSON(w, http.StatusCreated, obj)
}

func (a *API) listObjectives(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.actor(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	filter := okr.ListFilter{
		OwnerID:        strings.TrimSpace(q.Get("owner_id")),
		TeamID:         strings.TrimSpace(q.Get("team_id")),
		ParentID:       strings.TrimSpace(q.Get("parent_objective_id")),
		Level:          okr.Level(strings.TrimSpace(q.Get("level"))),
		ApprovalStatus: okr.ApprovalStatus(strings.TrimSpace(q.Get("approval_status"))),
		Period:         strings.TrimSpace(q.Get("period")),
	}

	objs, err := a.okr.ListObjectives(r.Context(), actor, filter)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": objs,
		"as_of": time.Now().UTC(),
	})
}

func (a *API) objectiveByID(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := a.actor(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		obj, err := a.okr.GetObjective(r.Context(), actor, id)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, obj)

	case http.MethodPatch:
		var req updateObjectiveRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		in := okr.UpdateObjectiveInput{
			Title:        req.Title,
			Description:  req.Description,
			Period:       req.Period,
			ParentID:     req.ParentID,
			TeamID:       req.TeamID,
			DueDate:      req.DueDate,
			ClearDueDate: req.ClearDueDate,
		}
		if req.Level != nil {
			level := okr.Level(*req.Level)
			in.Level = &level
		}
		obj, err := a.okr.UpdateObjective(r.Context(), actor, id, in)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "okr.objective.update", map[string]any{
			"objective_id": id,
		})
		writeJSON(w, http.StatusOK, obj)

	case http.MethodDelete:
		if err := a.okr.DeleteObjective(r.Context(), actor, id); err != nil {
			writeDomainError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "okr.objective.delete", map[string]any{
			"objective_id": id,
		})
		w.WriteHeader(http.StatusNoContent)

	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch, http.MethodDelete)
	}
}

func (a *API) addKeyResult(w http.ResponseWriter, r *http.Request, objectiveID string) {
	actor, ok := a.actor(w, r)
	if !ok {
		return
	}
	var req keyResultRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	obj, err := a.okr.AddKeyResult(r.Context(), actor, objectiveID, keyResultInput(req))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	obs.ObserveRecompute()
	_ = audit.LogEvent(r.Context(), "okr.keyresult.create", map[string]any{
		"objective_id": objectiveID,
	})
	writeJSON(w, http.StatusCreated, obj)
}

func (a *API) keyResultByID(w http.ResponseWriter, r *http.Request, objectiveID, keyResultID string) {
	actor, ok := a.actor(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodPatch:
		var req updateKeyResultRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		in := okr.KeyResultUpdate{
			Title:        req.Title,
			StartValue:   req.StartValue,
			TargetValue:  req.TargetValue,
			CurrentValue: req.CurrentValue,
		}
		if req.MetricType != nil {
			mt := okr.MetricType(*req.MetricType)
			in.MetricType = &mt
		}
		if req.Confidence != nil {
			c := okr.Confidence(*req.Confidence)
			in.Confidence = &c
		}
		obj, err := a.okr.UpdateKeyResult(r.Context(), actor, objectiveID, keyResultID, in)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		obs.ObserveRecompute()
		_ = audit.LogEvent(r.Context(), "okr.keyresult.update", map[string]any{
			"objective_id":  objectiveID,
			"key_result_id": keyResultID,
		})
		writeJSON(w, http.StatusOK, obj)

	case http.MethodDelete:
		obj, err := a.okr.DeleteKeyResult(r.Context(), actor, objectiveID, keyResultID)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		obs.ObserveRecompute()
		_ = audit.LogEvent(r.Context(), "okr.keyresult.delete", map[string]any{
			"objective_id":  objectiveID,
			"key_result_id": keyResultID,
		})
		writeJSON(w, http.StatusOK, obj)

	default:
		methodNotAllowed(w, r, http.MethodPatch, http.MethodDelete)
	}
}

func (a *API) transition(w http.ResponseWriter, r *http.Request, objectiveID string) {
	actor, ok := a.actor(w, r)
	if !ok {
		return
	}
	var req transitionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	action := okr.Action(strings.TrimSpace(req.Action))

	obj, err := a.okr.Transition(r.Context(), actor, objectiveID, action, req.Comment)
	if err != nil {
		obs.ObserveTransition(string(action), "rejected")
		writeDomainError(w, r, err)
		return
	}
	obs.ObserveTransition(string(action), "applied")

	_ = audit.LogEvent(r.Context(), "okr.workflow.transition", map[string]any{
		"objective_id":    objectiveID,
		"action":          string(action),
		"approval_status": string(obj.ApprovalStatus),
	})
	writeJSON(w, http.StatusOK, obj)
}

func (a *API) contributorsCollection(w http.ResponseWriter, r *http.Request, objectiveID string) {
	actor, ok := a.actor(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		list, err := a.okr.ListContributors(r.Context(), actor, objectiveID)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": list})

	case http.MethodPost:
		var req contributorRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		role := okr.ContributorRole(strings.TrimSpace(req.Role))
		if role == "" {
			role = okr.ContributorRoleContributor
		}
		if err := a.okr.AddContributor(r.Context(), actor, objectiveID, req.UserID, role); err != nil {
			writeDomainError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "okr.contributor.add", map[string]any{
			"objective_id": objectiveID,
			"contributor":  strings.TrimSpace(req.UserID),
			"role":         string(role),
		})
		w.WriteHeader(http.StatusNoContent)

	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) removeContributor(w http.ResponseWriter, r *http.Request, objectiveID, userID string) {
	actor, ok := a.actor(w, r)
	if !ok {
		return
	}
	if err := a.okr.RemoveContributor(r.Context(), actor, objectiveID, userID); err != nil {
		writeDomainError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "okr.contributor.remove", map[string]any{
		"objective_id": objectiveID,
		"contributor":  userID,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) approvalHistory(w http.ResponseWriter, r *http.Request, objectiveID string) {
	actor, ok := a.actor(w, r)
	if !ok {
		return
	}
	list, err := a.okr.ApprovalHistory(r.Context(), actor, objectiveID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": list})
}

func (a *API) progressHistory(w http.ResponseWriter, r *http.Request, objectiveID string) {
	actor, ok := a.actor(w, r)
	if !ok {
		return
	}
	keyResultID := strings.TrimSpace(r.URL.Query().Get("key_result_id"))
	list, err := a.okr.ProgressHistory(r.Context(), actor, objectiveID, keyResultID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": list})
}

func keyResultInput(req keyResultRequest) okr.KeyResultInput {
	return okr.KeyResultInput{
		Title:        req.Title,
		MetricType:   okr.MetricType(req.MetricType),
		StartValue:   req.StartValue,
		TargetValue:  req.TargetValue,
		CurrentValue: req.CurrentValue,
		Confidence:   okr.Confidence(req.Confidence),
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

// writeDomainError maps engine errors onto status codes. Limit denials use
// 402 and carry the tier snapshot so clients can render an upgrade prompt.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr     *okr.ValidationError
		mismatch *okr.LevelMismatchError
		wv       *okr.WorkflowViolation
		limit    *okr.LimitExceeded
	)
	switch {
	case errors.As(err, &verr), errors.As(err, &mismatch):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.As(err, &wv):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.As(err, &limit):
		payload := map[string]any{
			"error": limit.Error(),
			"kind":  string(limit.Kind),
			"plan":  limit.Plan,
			"used":  limit.Used,
			"limit": limit.Limit,
		}
		if rid := RequestIDFromContext(r.Context()); rid != "" {
			payload["request_id"] = rid
		}
		writeJSON(w, http.StatusPaymentRequired, payload)
	case errors.Is(err, okr.ErrForbidden):
		writeError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, okr.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}
