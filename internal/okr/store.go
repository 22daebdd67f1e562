package okr

import "context"

// ListFilter narrows ListObjectives. CompanyID is always set by the engine
// from the caller's identity; the rest are optional.
type ListFilter struct {
	CompanyID      string
	OwnerID        string
	TeamID         string
	ParentID       string
	Level          Level
	ApprovalStatus ApprovalStatus
	Period         string
}

// Store is the persistence abstraction the engine runs against. Atomically
// executes fn inside one unit of work: every write fn performs commits or
// rolls back together, and reads inside fn observe a consistent snapshot.
type Store interface {
	Atomically(ctx context.Context, fn func(tx Tx) error) error
}

// Tx exposes the reads and writes available inside a unit of work.
// GetObjective acquires an exclusive lock on the objective row so that
// concurrent workflow transitions and recomputations serialize.
type Tx interface {
	GetObjective(ctx context.Context, id string) (*Objective, error)
	InsertObjective(ctx context.Context, obj *Objective) error
	UpdateObjective(ctx context.Context, obj *Objective) error
	DeleteObjective(ctx context.Context, id string) error
	ListObjectives(ctx context.Context, filter ListFilter) ([]Objective, error)
	CountObjectives(ctx context.Context, companyID string) (int, error)

	GetKeyResult(ctx context.Context, objectiveID, id string) (*KeyResult, error)
	ListKeyResults(ctx context.Context, objectiveID string) ([]KeyResult, error)
	InsertKeyResult(ctx context.Context, kr *KeyResult) error
	UpdateKeyResult(ctx context.Context, kr *KeyResult) error
	DeleteKeyResult(ctx context.Context, objectiveID, id string) error

	ListContributors(ctx context.Context, objectiveID string) ([]Contributor, error)
	AddContributor(ctx context.Context, c Contributor) error
	RemoveContributor(ctx context.Context, objectiveID, userID string) error

	AppendApprovalHistory(ctx context.Context, entry ApprovalHistoryEntry) error
	ListApprovalHistory(ctx context.Context, objectiveID string) ([]ApprovalHistoryEntry, error)
	AppendProgressHistory(ctx context.Context, entry ProgressHistoryEntry) error
	ListProgressHistory(ctx context.Context, objectiveID, keyResultID string) ([]ProgressHistoryEntry, error)
}
