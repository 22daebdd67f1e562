package okr

import (
	"time"
)

// Level is the organizational scope of an objective, ordered by breadth.
type Level string

const (
	LevelCompany    Level = "company"
	LevelDepartment Level = "department"
	LevelTeam       Level = "team"
	LevelIndividual Level = "individual"
)

// Status is the progress-derived health label of an objective or key result.
// It is distinct from the administrative approval status.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusOnTrack   Status = "on-track"
	StatusAtRisk    Status = "at-risk"
	StatusOffTrack  Status = "off-track"
	StatusCompleted Status = "completed"
)

// ApprovalStatus is the administrative workflow state of an objective.
type ApprovalStatus string

const (
	ApprovalDraft         ApprovalStatus = "draft"
	ApprovalPendingReview ApprovalStatus = "pending_review"
	ApprovalApproved      ApprovalStatus = "approved"
	ApprovalActive        ApprovalStatus = "active"
	ApprovalPaused        ApprovalStatus = "paused"
	ApprovalStopped       ApprovalStatus = "stopped"
	ApprovalArchived      ApprovalStatus = "archived"
)

// MetricType describes how a key result is measured.
type MetricType string

const (
	MetricPercentage MetricType = "percentage"
	MetricNumber     MetricType = "number"
	MetricCurrency   MetricType = "currency"
	MetricBoolean    MetricType = "boolean"
)

// Confidence is the owner's stated confidence in hitting a key result.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// RiskLevel is a coarse severity bucket derived from pace ratio. It drives
// notification severity while Status drives filtering and sorting.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// ContributorRole is the role a non-owning user holds on an objective.
type ContributorRole string

const (
	ContributorRoleContributor ContributorRole = "contributor"
	ContributorRoleReviewer    ContributorRole = "reviewer"
)

// Objective is a goal statement at a given organizational level.
type Objective struct {
	ID          string `json:"id"`
	CompanyID   string `json:"company_id"`
	OwnerID     string `json:"owner_id"`
	ParentID    string `json:"parent_objective_id,omitempty"`
	TeamID      string `json:"team_id,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Level       Level  `json:"level"`
	Period      string `json:"period"`

	// Derived fields, recomputed after every key result mutation.
	Progress int           `json:"progress"`
	Status   Status        `json:"status"`
	Health   HealthMetrics `json:"health"`

	ApprovalStatus ApprovalStatus `json:"approval_status"`
	ApprovedBy     string         `json:"approved_by,omitempty"`
	ApprovedAt     *time.Time     `json:"approved_at,omitempty"`

	DueDate   *time.Time `json:"due_date,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`

	KeyResults []KeyResult `json:"key_results"`
}

// KeyResult is a measurable sub-target owned by exactly one objective.
// Current value is stored unclamped; clamping happens only during progress
// aggregation.
type KeyResult struct {
	ID           string     `json:"id"`
	ObjectiveID  string     `json:"objective_id"`
	Title        string     `json:"title"`
	MetricType   MetricType `json:"metric_type"`
	StartValue   float64    `json:"start_value"`
	TargetValue  float64    `json:"target_value"`
	CurrentValue float64    `json:"current_value"`
	Confidence   Confidence `json:"confidence"`
	Status       Status     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// HealthMetrics is the time-based scoring record computed alongside Status.
type HealthMetrics struct {
	PaceRatio          float64   `json:"pace_ratio"`
	ExpectedProgress   float64   `json:"expected_progress"`
	ProgressGap        float64   `json:"progress_gap"`
	DaysRemaining      int       `json:"days_remaining"`
	DaysElapsed        int       `json:"days_elapsed"`
	PercentTimeElapsed float64   `json:"percent_time_elapsed"`
	RiskLevel          RiskLevel `json:"risk_level"`
	Recommendation     string    `json:"recommendation,omitempty"`
}

// ApprovalHistoryEntry is an append-only audit record of a successful
// workflow transition. Failed transition attempts produce no entry.
type ApprovalHistoryEntry struct {
	ID          string    `json:"id"`
	ObjectiveID string    `json:"objective_id"`
	Action      string    `json:"action"`
	ActorID     string    `json:"actor_id"`
	Comment     string    `json:"comment,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ProgressHistoryEntry records a single key result value change. Append-only.
type ProgressHistoryEntry struct {
	ID            string    `json:"id"`
	ObjectiveID   string    `json:"objective_id"`
	KeyResultID   string    `json:"key_result_id"`
	PreviousValue float64   `json:"previous_value"`
	NewValue      float64   `json:"new_value"`
	ActorID       string    `json:"actor_id"`
	RecordedAt    time.Time `json:"recorded_at"`
}

// Contributor links a user to an objective without implying ownership.
type Contributor struct {
	ObjectiveID string          `json:"objective_id"`
	UserID      string          `json:"user_id"`
	Role        ContributorRole `json:"role"`
	AddedAt     time.Time       `json:"added_at"`
}

// Actor is the resolved caller identity passed into every engine operation.
type Actor struct {
	ID        string
	Role      string
	CompanyID string
}

// Caller roles recognized by the engine. Resolution of a request to a role
// is the identity collaborator's concern.
const (
	RoleMember = "member"
	RoleLead   = "lead"
	RoleAdmin  = "admin"
	RoleOwner  = "owner"
)

// ValidLevel reports whether l is one of the four organizational levels.
func ValidLevel(l Level) bool {
	_, ok := levelRank[l]
	return ok
}

// ValidMetricType reports whether m is a supported metric type.
func ValidMetricType(m MetricType) bool {
	switch m {
	case MetricPercentage, MetricNumber, MetricCurrency, MetricBoolean:
		return true
	}
	return false
}

// ValidConfidence reports whether c is a supported confidence bucket.
func ValidConfidence(c Confidence) bool {
	switch c {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return true
	}
	return false
}

// ValidContributorRole reports whether r is a supported contributor role.
func ValidContributorRole(r ContributorRole) bool {
	return r == ContributorRoleContributor || r == ContributorRoleReviewer
}
