package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"alignhq.org/internal/okr"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db), mock
}

func objectiveRows() *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"id", "company_id", "owner_id", "parent_id", "team_id", "title",
		"description", "level", "period", "progress", "status", "health",
		"approval_status", "approved_by", "approved_at", "due_date",
		"created_at", "updated_at",
	}).AddRow("obj-1", "co-1", "user-1", "", "", "Grow revenue", "",
		"company", "Q1 2026", 40, "on-track", []byte(`{"risk_level":"low"}`),
		"active", "", nil, nil, now, now)
}

func TestAtomicallyRollsBackOnError(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := store.Atomically(context.Background(), func(tx okr.Tx) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error to surface, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetObjectiveLocksRow(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`select .* from objectives where id=\$1\s+for update`).
		WithArgs("obj-1").
		WillReturnRows(objectiveRows())
	mock.ExpectCommit()

	err := store.Atomically(context.Background(), func(tx okr.Tx) error {
		obj, err := tx.GetObjective(context.Background(), "obj-1")
		if err != nil {
			return err
		}
		if obj.Title != "Grow revenue" || obj.Health.RiskLevel != okr.RiskLow {
			t.Fatalf("unexpected objective: %+v", obj)
		}
		if obj.ApprovedAt != nil || obj.DueDate != nil {
			t.Fatalf("expected null timestamps to stay nil: %+v", obj)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Atomically: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetObjectiveNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`select .* from objectives`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	err := store.Atomically(context.Background(), func(tx okr.Tx) error {
		_, err := tx.GetObjective(context.Background(), "missing")
		return err
	})
	if !errors.Is(err, okr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateObjectiveRequiresExistingRow(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`update objectives set`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := store.Atomically(context.Background(), func(tx okr.Tx) error {
		return tx.UpdateObjective(context.Background(), &okr.Objective{ID: "missing"})
	})
	if !errors.Is(err, okr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCountObjectives(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`select count\(\*\) from objectives where company_id=\$1`).
		WithArgs("co-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))
	mock.ExpectCommit()

	err := store.Atomically(context.Background(), func(tx okr.Tx) error {
		n, err := tx.CountObjectives(context.Background(), "co-1")
		if err != nil {
			return err
		}
		if n != 7 {
			t.Fatalf("expected 7, got %d", n)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Atomically: %v", err)
	}
}

func TestDeleteObjectiveClearsChildLinks(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`update objectives set parent_id=null where parent_id=\$1`).
		WithArgs("obj-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`delete from objectives where id=\$1`).
		WithArgs("obj-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.Atomically(context.Background(), func(tx okr.Tx) error {
		return tx.DeleteObjective(context.Background(), "obj-1")
	})
	if err != nil {
		t.Fatalf("Atomically: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
