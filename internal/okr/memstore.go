package okr

import (
	"context"
	"sort"
	"sync"
)

// MemStore implements Store in process memory. Transactions are serialized
// behind one mutex, which trivially satisfies the isolation the engine
// requires; rollback restores a pre-transaction snapshot. Useful for tests
// and for running without a database.
type MemStore struct {
	mu           sync.Mutex
	objectives   map[string]*Objective
	keyResults   map[string]*KeyResult
	contributors map[string][]Contributor
	approvals    map[string][]ApprovalHistoryEntry
	progress     map[string][]ProgressHistoryEntry
}

var _ Store = (*MemStore)(nil)

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		objectives:   make(map[string]*Objective),
		keyResults:   make(map[string]*KeyResult),
		contributors: make(map[string][]Contributor),
		approvals:    make(map[string][]ApprovalHistoryEntry),
		progress:     make(map[string][]ProgressHistoryEntry),
	}
}

func (s *MemStore) Atomically(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.clone()
	if err := fn(&memTx{s: s}); err != nil {
		s.objectives = snapshot.objectives
		s.keyResults = snapshot.keyResults
		s.contributors = snapshot.contributors
		s.approvals = snapshot.approvals
		s.progress = snapshot.progress
		return err
	}
	return nil
}

func (s *MemStore) clone() *MemStore {
	c := NewMemStore()
	for id, obj := range s.objectives {
		cp := *obj
		c.objectives[id] = &cp
	}
	for id, kr := range s.keyResults {
		cp := *kr
		c.keyResults[id] = &cp
	}
	for id, list := range s.contributors {
		c.contributors[id] = append([]Contributor(nil), list...)
	}
	for id, list := range s.approvals {
		c.approvals[id] = append([]ApprovalHistoryEntry(nil), list...)
	}
	for id, list := range s.progress {
		c.progress[id] = append([]ProgressHistoryEntry(nil), list...)
	}
	return c
}

type memTx struct {
	s *MemStore
}

var _ Tx = (*memTx)(nil)

func (t *memTx) GetObjective(ctx context.Context, id string) (*Objective, error) {
	obj, ok := t.s.objectives[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *obj
	return &cp, nil
}

func (t *memTx) InsertObjective(ctx context.Context, obj *Objective) error {
	cp := *obj
	cp.KeyResults = nil
	t.s.objectives[obj.ID] = &cp
	return nil
}

func (t *memTx) UpdateObjective(ctx context.Context, obj *Objective) error {
	if _, ok := t.s.objectives[obj.ID]; !ok {
		return ErrNotFound
	}
	cp := *obj
	cp.KeyResults = nil
	t.s.objectives[obj.ID] = &cp
	return nil
}

func (t *memTx) DeleteObjective(ctx context.Context, id string) error {
	if _, ok := t.s.objectives[id]; !ok {
		return ErrNotFound
	}
	delete(t.s.objectives, id)
	for krID, kr := range t.s.keyResults {
		if kr.ObjectiveID == id {
			delete(t.s.keyResults, krID)
		}
	}
	delete(t.s.contributors, id)
	delete(t.s.approvals, id)
	delete(t.s.progress, id)
	// Children survive; only the link is severed.
	for _, obj := range t.s.objectives {
		if obj.ParentID == id {
			obj.ParentID = ""
		}
	}
	return nil
}

func (t *memTx) ListObjectives(ctx context.Context, filter ListFilter) ([]Objective, error) {
	var result []Objective
	for _, obj := range t.s.objectives {
		if !matchesFilter(obj, filter) {
			continue
		}
		result = append(result, *obj)
	}
	// ULIDs sort by creation time, which gives a stable listing order.
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (t *memTx) CountObjectives(ctx context.Context, companyID string) (int, error) {
	n := 0
	for _, obj := range t.s.objectives {
		if obj.CompanyID == companyID {
			n++
		}
	}
	return n, nil
}

func (t *memTx) GetKeyResult(ctx context.Context, objectiveID, id string) (*KeyResult, error) {
	kr, ok := t.s.keyResults[id]
	if !ok || kr.ObjectiveID != objectiveID {
		return nil, ErrNotFound
	}
	cp := *kr
	return &cp, nil
}

func (t *memTx) ListKeyResults(ctx context.Context, objectiveID string) ([]KeyResult, error) {
	var result []KeyResult
	for _, kr := range t.s.keyResults {
		if kr.ObjectiveID == objectiveID {
			result = append(result, *kr)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (t *memTx) InsertKeyResult(ctx context.Context, kr *KeyResult) error {
	cp := *kr
	t.s.keyResults[kr.ID] = &cp
	return nil
}

func (t *memTx) UpdateKeyResult(ctx context.Context, kr *KeyResult) error {
	if _, ok := t.s.keyResults[kr.ID]; !ok {
		return ErrNotFound
	}
	cp := *kr
	t.s.keyResults[kr.ID] = &cp
	return nil
}

func (t *memTx) DeleteKeyResult(ctx context.Context, objectiveID, id string) error {
	kr, ok := t.s.keyResults[id]
	if !ok || kr.ObjectiveID != objectiveID {
		return ErrNotFound
	}
	delete(t.s.keyResults, id)
	return nil
}

func (t *memTx) ListContributors(ctx context.Context, objectiveID string) ([]Contributor, error) {
	return append([]Contributor(nil), t.s.contributors[objectiveID]...), nil
}

func (t *memTx) AddContributor(ctx context.Context, c Contributor) error {
	list := t.s.contributors[c.ObjectiveID]
	for i := range list {
		if list[i].UserID == c.UserID {
			list[i] = c
			return nil
		}
	}
	t.s.contributors[c.ObjectiveID] = append(list, c)
	return nil
}

func (t *memTx) RemoveContributor(ctx context.Context, objectiveID, userID string) error {
	list := t.s.contributors[objectiveID]
	for i := range list {
		if list[i].UserID == userID {
			t.s.contributors[objectiveID] = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (t *memTx) AppendApprovalHistory(ctx context.Context, entry ApprovalHistoryEntry) error {
	t.s.approvals[entry.ObjectiveID] = append(t.s.approvals[entry.ObjectiveID], entry)
	return nil
}

func (t *memTx) ListApprovalHistory(ctx context.Context, objectiveID string) ([]ApprovalHistoryEntry, error) {
	return append([]ApprovalHistoryEntry(nil), t.s.approvals[objectiveID]...), nil
}

func (t *memTx) AppendProgressHistory(ctx context.Context, entry ProgressHistoryEntry) error {
	t.s.progress[entry.ObjectiveID] = append(t.s.progress[entry.ObjectiveID], entry)
	return nil
}

func (t *memTx) ListProgressHistory(ctx context.Context, objectiveID, keyResultID string) ([]ProgressHistoryEntry, error) {
	var result []ProgressHistoryEntry
	for _, entry := range t.s.progress[objectiveID] {
		if keyResultID != "" && entry.KeyResultID != keyResultID {
			continue
		}
		result = append(result, entry)
	}
	return result, nil
}

func matchesFilter(obj *Objective, f ListFilter) bool {
	if f.CompanyID != "" && obj.CompanyID != f.CompanyID {
		return false
	}
	if f.OwnerID != "" && obj.OwnerID != f.OwnerID {
		return false
	}
	if f.TeamID != "" && obj.TeamID != f.TeamID {
		return false
	}
	if f.ParentID != "" && obj.ParentID != f.ParentID {
		return false
	}
	if f.Level != "" && obj.Level != f.Level {
		return false
	}
	if f.ApprovalStatus != "" && obj.ApprovalStatus != f.ApprovalStatus {
		return false
	}
	if f.Period != "" && obj.Period != f.Period {
		return false
	}
	return true
}
