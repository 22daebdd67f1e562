// Package pg persists the OKR domain in PostgreSQL. Each engine unit of
// work maps to one serializable transaction; the objective row is locked
// up front so concurrent transitions and recomputations serialize.
package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"alignhq.org/internal/okr"
)

// Store implements okr.Store over database/sql with the pgx driver.
type Store struct {
	db *sql.DB
}

var _ okr.Store = (*Store)(nil)

// Open connects to PostgreSQL with pool defaults tuned for API traffic.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewStore wraps an existing connection pool. Used by tests.
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Atomically(ctx context.Context, fn func(tx okr.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

type pgTx struct {
	tx *sql.Tx
}

var _ okr.Tx = (*pgTx)(nil)

const objectiveColumns = `id, company_id, owner_id, coalesce(parent_id,''), coalesce(team_id,''),
	title, coalesce(description,''), level, period, progress, status, health,
	approval_status, coalesce(approved_by,''), approved_at, due_date, created_at, updated_at`

func (t *pgTx) GetObjective(ctx context.Context, id string) (*okr.Objective, error) {
	row := t.tx.QueryRowContext(ctx, `
		select `+objectiveColumns+`
		from objectives where id=$1
		for update
	`, id)
	obj, err := scanObjective(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, okr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return obj, nil
}

func (t *pgTx) InsertObjective(ctx context.Context, obj *okr.Objective) error {
	health, err := json.Marshal(obj.Health)
	if err != nil {
		return fmt.Errorf("encode health: %w", err)
	}
	_, err = t.tx.ExecContext(ctx, `
		insert into objectives(
			id, company_id, owner_id, parent_id, team_id, title, description,
			level, period, progress, status, health, approval_status,
			approved_by, approved_at, due_date, created_at, updated_at)
		values ($1,$2,$3,nullif($4,''),nullif($5,''),$6,$7,$8,$9,$10,$11,$12,$13,
			nullif($14,''),$15,$16,$17,$18)
	`, obj.ID, obj.CompanyID, obj.OwnerID, obj.ParentID, obj.TeamID, obj.Title,
		obj.Description, obj.Level, obj.Period, obj.Progress, obj.Status, health,
		obj.ApprovalStatus, obj.ApprovedBy, obj.ApprovedAt, obj.DueDate,
		obj.CreatedAt, obj.UpdatedAt)
	return err
}

func (t *pgTx) UpdateObjective(ctx context.Context, obj *okr.Objective) error {
	health, err := json.Marshal(obj.Health)
	if err != nil {
		return fmt.Errorf("encode health: %w", err)
	}
	res, err := t.tx.ExecContext(ctx, `
		update objectives set
			parent_id=nullif($2,''), team_id=nullif($3,''), title=$4,
			description=$5, level=$6, period=$7, progress=$8, status=$9,
			health=$10, approval_status=$11, approved_by=nullif($12,''),
			approved_at=$13, due_date=$14, updated_at=$15
		where id=$1
	`, obj.ID, obj.ParentID, obj.TeamID, obj.Title, obj.Description, obj.Level,
		obj.Period, obj.Progress, obj.Status, health, obj.ApprovalStatus,
		obj.ApprovedBy, obj.ApprovedAt, obj.DueDate, obj.UpdatedAt)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (t *pgTx) DeleteObjective(ctx context.Context, id string) error {
	// Children survive with the link severed; key results, contributors,
	// and history rows go with the objective via FK cascade.
	if _, err := t.tx.ExecContext(ctx, `update objectives set parent_id=null where parent_id=$1`, id); err != nil {
		return err
	}
	res, err := t.tx.ExecContext(ctx, `delete from objectives where id=$1`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (t *pgTx) ListObjectives(ctx context.Context, filter okr.ListFilter) ([]okr.Objective, error) {
	query := `select ` + objectiveColumns + ` from objectives`
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, cond+"$"+strconv.Itoa(len(args)))
	}
	if filter.CompanyID != "" {
		add("company_id=", filter.CompanyID)
	}
	if filter.OwnerID != "" {
		add("owner_id=", filter.OwnerID)
	}
	if filter.TeamID != "" {
		add("team_id=", filter.TeamID)
	}
	if filter.ParentID != "" {
		add("parent_id=", filter.ParentID)
	}
	if filter.Level != "" {
		add("level=", string(filter.Level))
	}
	if filter.ApprovalStatus != "" {
		add("approval_status=", string(filter.ApprovalStatus))
	}
	if filter.Period != "" {
		add("period=", filter.Period)
	}
	if len(conds) > 0 {
		query += " where " + strings.Join(conds, " and ")
	}
	query += " order by id"

	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []okr.Objective
	for rows.Next() {
		obj, err := scanObjective(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *obj)
	}
	return result, rows.Err()
}

func (t *pgTx) CountObjectives(ctx context.Context, companyID string) (int, error) {
	var n int
	err := t.tx.QueryRowContext(ctx, `select count(*) from objectives where company_id=$1`, companyID).Scan(&n)
	return n, err
}

const keyResultColumns = `id, objective_id, title, metric_type, start_value,
	target_value, current_value, confidence, status, created_at, updated_at`

func (t *pgTx) GetKeyResult(ctx context.Context, objectiveID, id string) (*okr.KeyResult, error) {
	var kr okr.KeyResult
	err := t.tx.QueryRowContext(ctx, `
		select `+keyResultColumns+`
		from key_results where id=$1 and objective_id=$2
	`, id, objectiveID).Scan(&kr.ID, &kr.ObjectiveID, &kr.Title, &kr.MetricType,
		&kr.StartValue, &kr.TargetValue, &kr.CurrentValue, &kr.Confidence,
		&kr.Status, &kr.CreatedAt, &kr.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, okr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &kr, nil
}

func (t *pgTx) ListKeyResults(ctx context.Context, objectiveID string) ([]okr.KeyResult, error) {
	rows, err := t.tx.QueryContext(ctx, `
		select `+keyResultColumns+`
		from key_results where objective_id=$1
		order by id
	`, objectiveID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []okr.KeyResult
	for rows.Next() {
		var kr okr.KeyResult
		if err := rows.Scan(&kr.ID, &kr.ObjectiveID, &kr.Title, &kr.MetricType,
			&kr.StartValue, &kr.TargetValue, &kr.CurrentValue, &kr.Confidence,
			&kr.Status, &kr.CreatedAt, &kr.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, kr)
	}
	return result, rows.Err()
}

func (t *pgTx) InsertKeyResult(ctx context.Context, kr *okr.KeyResult) error {
	_, err := t.tx.ExecContext(ctx, `
		insert into key_results(id, objective_id, title, metric_type, start_value,
			target_value, current_value, confidence, status, created_at, updated_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, kr.ID, kr.ObjectiveID, kr.Title, kr.MetricType, kr.StartValue,
		kr.TargetValue, kr.CurrentValue, kr.Confidence, kr.Status,
		kr.CreatedAt, kr.UpdatedAt)
	return err
}

func (t *pgTx) UpdateKeyResult(ctx context.Context, kr *okr.KeyResult) error {
	res, err := t.tx.ExecContext(ctx, `
		update key_results set title=$3, metric_type=$4, start_value=$5,
			target_value=$6, current_value=$7, confidence=$8, status=$9,
			updated_at=$10
		where id=$1 and objective_id=$2
	`, kr.ID, kr.ObjectiveID, kr.Title, kr.MetricType, kr.StartValue,
		kr.TargetValue, kr.CurrentValue, kr.Confidence, kr.Status, kr.UpdatedAt)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (t *pgTx) DeleteKeyResult(ctx context.Context, objectiveID, id string) error {
	res, err := t.tx.ExecContext(ctx, `
		delete from key_results where id=$1 and objective_id=$2
	`, id, objectiveID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (t *pgTx) ListContributors(ctx context.Context, objectiveID string) ([]okr.Contributor, error) {
	rows, err := t.tx.QueryContext(ctx, `
		select objective_id, user_id, role, added_at
		from contributors where objective_id=$1
		order by added_at
	`, objectiveID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []okr.Contributor
	for rows.Next() {
		var c okr.Contributor
		if err := rows.Scan(&c.ObjectiveID, &c.UserID, &c.Role, &c.AddedAt); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (t *pgTx) AddContributor(ctx context.Context, c okr.Contributor) error {
	_, err := t.tx.ExecContext(ctx, `
		insert into contributors(objective_id, user_id, role, added_at)
		values ($1,$2,$3,$4)
		on conflict (objective_id, user_id) do update set role=excluded.role
	`, c.ObjectiveID, c.UserID, c.Role, c.AddedAt)
	return err
}

func (t *pgTx) RemoveContributor(ctx context.Context, objectiveID, userID string) error {
	res, err := t.tx.ExecContext(ctx, `
		delete from contributors where objective_id=$1 and user_id=$2
	`, objectiveID, userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (t *pgTx) AppendApprovalHistory(ctx context.Context, entry okr.ApprovalHistoryEntry) error {
	_, err := t.tx.ExecContext(ctx, `
		insert into approval_history(id, objective_id, action, actor_id, comment, created_at)
		values ($1,$2,$3,$4,nullif($5,''),$6)
	`, entry.ID, entry.ObjectiveID, entry.Action, entry.ActorID, entry.Comment, entry.CreatedAt)
	return err
}

func (t *pgTx) ListApprovalHistory(ctx context.Context, objectiveID string) ([]okr.ApprovalHistoryEntry, error) {
	rows, err := t.tx.QueryContext(ctx, `
		select id, objective_id, action, actor_id, coalesce(comment,''), created_at
		from approval_history where objective_id=$1
		order by id
	`, objectiveID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []okr.ApprovalHistoryEntry
	for rows.Next() {
		var e okr.ApprovalHistoryEntry
		if err := rows.Scan(&e.ID, &e.ObjectiveID, &e.Action, &e.ActorID, &e.Comment, &e.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func (t *pgTx) AppendProgressHistory(ctx context.Context, entry okr.ProgressHistoryEntry) error {
	_, err := t.tx.ExecContext(ctx, `
		insert into progress_history(id, objective_id, key_result_id, previous_value, new_value, actor_id, recorded_at)
		values ($1,$2,$3,$4,$5,$6,$7)
	`, entry.ID, entry.ObjectiveID, entry.KeyResultID, entry.PreviousValue,
		entry.NewValue, entry.ActorID, entry.RecordedAt)
	return err
}

func (t *pgTx) ListProgressHistory(ctx context.Context, objectiveID, keyResultID string) ([]okr.ProgressHistoryEntry, error) {
	query := `
		select id, objective_id, key_result_id, previous_value, new_value, actor_id, recorded_at
		from progress_history where objective_id=$1`
	args := []any{objectiveID}
	if keyResultID != "" {
		query += ` and key_result_id=$2`
		args = append(args, keyResultID)
	}
	query += ` order by id`

	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []okr.ProgressHistoryEntry
	for rows.Next() {
		var e okr.ProgressHistoryEntry
		if err := rows.Scan(&e.ID, &e.ObjectiveID, &e.KeyResultID, &e.PreviousValue,
			&e.NewValue, &e.ActorID, &e.RecordedAt); err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// --- helpers ---

type scannable interface {
	Scan(dest ...any) error
}

func scanObjective(row scannable) (*okr.Objective, error) {
	var (
		obj        okr.Objective
		health     []byte
		approvedAt sql.NullTime
		dueDate    sql.NullTime
	)
	err := row.Scan(&obj.ID, &obj.CompanyID, &obj.OwnerID, &obj.ParentID,
		&obj.TeamID, &obj.Title, &obj.Description, &obj.Level, &obj.Period,
		&obj.Progress, &obj.Status, &health, &obj.ApprovalStatus,
		&obj.ApprovedBy, &approvedAt, &dueDate, &obj.CreatedAt, &obj.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if approvedAt.Valid {
		at := approvedAt.Time
		obj.ApprovedAt = &at
	}
	if dueDate.Valid {
		due := dueDate.Time
		obj.DueDate = &due
	}
	if len(health) > 0 {
		if err := json.Unmarshal(health, &obj.Health); err != nil {
			return nil, fmt.Errorf("decode health: %w", err)
		}
	}
	return &obj, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return okr.ErrNotFound
	}
	return nil
}
