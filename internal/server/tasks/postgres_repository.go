package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/taskkeeper/internal/common"
	"github.com/dmitrijs2005/taskkeeper/internal/dbx"
	"github.com/jackc/pgx/v5/pgconn"
)

const taskColumns = "id, user_id, task_type, title, description, created_at, updated_at"

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// isUniqueViolation reports whether err is a PostgreSQL unique-constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (r *PostgresRepository) scanTasks(rows *sql.Rows) ([]Task, error) {
	// Non-nil even when empty, so the cached payload is a JSON array.
	tasks := []Task{}

	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.UserID, &t.TaskType, &t.Title, &t.Description, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("error scanning task row: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task rows: %w", err)
	}

	return tasks, nil
}

func (r *PostgresRepository) FindByUserID(ctx context.Context, userID int64) ([]Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE user_id = $1 ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("error performing sql request: %w", err)
	}
	defer rows.Close()

	return r.scanTasks(rows)
}

// FindByUserIDAndCriteria builds the filter incrementally: every provided
// predicate is ANDed onto the implicit user_id filter. Title and description
// match by case-sensitive substring containment, task type by equality, and
// the date bounds constrain updated_at inclusively.
func (r *PostgresRepository) FindByUserIDAndCriteria(ctx context.Context, userID int64, criteria SearchCriteria) ([]Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE user_id = $1`
	args := []any{userID}

	if criteria.TaskType != "" {
		args = append(args, criteria.TaskType)
		query += fmt.Sprintf(" AND task_type = $%d", len(args))
	}
	if criteria.Title != "" {
		args = append(args, criteria.Title)
		query += fmt.Sprintf(" AND POSITION($%d IN title) > 0", len(args))
	}
	if criteria.Description != "" {
		args = append(args, criteria.Description)
		query += fmt.Sprintf(" AND POSITION($%d IN description) > 0", len(args))
	}
	if criteria.DateFrom != nil {
		args = append(args, *criteria.DateFrom)
		query += fmt.Sprintf(" AND updated_at >= $%d", len(args))
	}
	if criteria.DateTo != nil {
		args = append(args, *criteria.DateTo)
		query += fmt.Sprintf(" AND updated_at <= $%d", len(args))
	}

	query += " ORDER BY id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error performing sql request: %w", err)
	}
	defer rows.Close()

	return r.scanTasks(rows)
}

func (r *PostgresRepository) FindByIDAndUserID(ctx context.Context, taskID int64, userID int64) (*Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1 AND user_id = $2`

	t := &Task{}
	err := r.db.QueryRowContext(ctx, query, taskID, userID).Scan(
		&t.ID, &t.UserID, &t.TaskType, &t.Title, &t.Description, &t.CreatedAt, &t.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("error performing sql request: %w", err)
	}

	return t, nil
}

func (r *PostgresRepository) Create(ctx context.Context, task *Task) (*Task, error) {
	query :=
		`INSERT INTO tasks (user_id, task_type, title, description)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at, updated_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		task.UserID, task.TaskType, task.Title, task.Description).
		Scan(&task.ID, &task.CreatedAt, &task.UpdatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return nil, common.ErrDuplicateTask
		}
		return nil, fmt.Errorf("error performing sql request: %w", err)
	}

	return task, nil
}

// Update applies the change scoped by id and owner. Zero affected rows means
// the task does not exist (or belongs to someone else).
func (r *PostgresRepository) Update(ctx context.Context, task *Task) error {
	query :=
		`UPDATE tasks
		 SET task_type = $1, title = $2, description = $3, updated_at = now()
		 WHERE id = $4 AND user_id = $5
		 `

	res, err := r.db.ExecContext(ctx, query,
		task.TaskType, task.Title, task.Description, task.ID, task.UserID)

	if err != nil {
		if isUniqueViolation(err) {
			return common.ErrDuplicateTask
		}
		return fmt.Errorf("error performing sql request: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading affected rows: %w", err)
	}
	if affected == 0 {
		return common.ErrorNotFound
	}

	return nil
}

// Delete removes the task scoped by id and owner. Deleting an already absent
// task is success: the end state is the same.
func (r *PostgresRepository) Delete(ctx context.Context, taskID int64, userID int64) error {
	query := `DELETE FROM tasks WHERE id = $1 AND user_id = $2`

	if _, err := r.db.ExecContext(ctx, query, taskID, userID); err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}

	return nil
}
