package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/abefas/tasktracker/models"
)

var (
	// ErrNotFound is returned when a row scoped to the caller does not exist.
	ErrNotFound = errors.New("not found")
	// ErrEmailTaken is returned when signing up with an email already in use.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials is returned for an unknown email or a wrong password.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrResetTokenInvalid is returned for unknown, used or expired reset tokens.
	ErrResetTokenInvalid = errors.New("reset link is invalid or has expired")
)

// Store is the backend data service: accounts, tasks and todos.
// Every task statement is filtered on user_id, so a caller can only ever
// read or change its own rows.
type Store struct {
	DB *sql.DB

	// HashCost is the bcrypt cost used for new password hashes.
	HashCost int
	// ResetTTL bounds how long a password reset token stays usable.
	ResetTTL time.Duration

	now func() time.Time
}

// NewStore is a constructor for the Store struct.
func NewStore(db *sql.DB) *Store {
	return &Store{
		DB:       db,
		HashCost: bcrypt.DefaultCost,
		ResetTTL: time.Hour,
		now:      time.Now,
	}
}

// SetClock replaces the time source. Intended for tests.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// timestamp truncates to the microsecond precision Postgres keeps, so values
// round-trip identically through both drivers.
func (s *Store) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// InsertTask stores a new task and returns it with its assigned ID and
// timestamps.
func (s *Store) InsertTask(ctx context.Context, t models.Task) (models.Task, error) {
	t.ID = uuid.NewString()
	t.CreatedAt = s.timestamp()
	t.UpdatedAt = t.CreatedAt

	_, err := s.DB.ExecContext(ctx,
		"INSERT INTO tasks(id, title, completed, user_id, created_at, updated_at) VALUES($1, $2, $3, $4, $5, $6)",
		t.ID, t.Title, t.Completed, t.UserID, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return models.Task{}, fmt.Errorf("insert task: %w", err)
	}
	return t, nil
}

// ListTasks returns every task owned by userID, incomplete first, newest
// first within each group.
func (s *Store) ListTasks(ctx context.Context, userID string) ([]models.Task, error) {
	rows, err := s.DB.QueryContext(ctx,
		"SELECT id, title, completed, user_id, created_at, updated_at FROM tasks WHERE user_id = $1 ORDER BY completed ASC, created_at DESC",
		userID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		var t models.Task
		if err := rows.Scan(&t.ID, &t.Title, &t.Completed, &t.UserID, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan task row: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate task rows: %w", err)
	}
	return tasks, nil
}

// GetTask fetches a single task scoped to its owner.
func (s *Store) GetTask(ctx context.Context, taskID, userID string) (models.Task, error) {
	var t models.Task
	err := s.DB.QueryRowContext(ctx,
		"SELECT id, title, completed, user_id, created_at, updated_at FROM tasks WHERE id = $1 AND user_id = $2",
		taskID, userID).Scan(&t.ID, &t.Title, &t.Completed, &t.UserID, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	} else if err != nil {
		return models.Task{}, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// SetCompleted updates the completed flag and reports the rows affected.
// Zero rows means the task does not exist or is not owned by userID.
func (s *Store) SetCompleted(ctx context.Context, taskID, userID string, completed bool) (int64, error) {
	res, err := s.DB.ExecContext(ctx,
		"UPDATE tasks SET completed = $1, updated_at = $2 WHERE id = $3 AND user_id = $4",
		completed, s.timestamp(), taskID, userID)
	if err != nil {
		return 0, fmt.Errorf("update task completion: %w", err)
	}
	return res.RowsAffected()
}

// SetTitle renames a task and reports the rows affected.
func (s *Store) SetTitle(ctx context.Context, taskID, userID, title string) (int64, error) {
	res, err := s.DB.ExecContext(ctx,
		"UPDATE tasks SET title = $1, updated_at = $2 WHERE id = $3 AND user_id = $4",
		title, s.timestamp(), taskID, userID)
	if err != nil {
		return 0, fmt.Errorf("update task title: %w", err)
	}
	return res.RowsAffected()
}

// DeleteTask removes a task and reports the rows affected.
func (s *Store) DeleteTask(ctx context.Context, taskID, userID string) (int64, error) {
	res, err := s.DB.ExecContext(ctx, "DELETE FROM tasks WHERE id = $1 AND user_id = $2", taskID, userID)
	if err != nil {
		return 0, fmt.Errorf("delete task: %w", err)
	}
	return res.RowsAffected()
}

// InsertTodo stores a todo and returns the created record.
func (s *Store) InsertTodo(ctx context.Context, text string) (models.Todo, error) {
	todo := models.Todo{ID: uuid.NewString(), Text: text}
	if _, err := s.DB.ExecContext(ctx, "INSERT INTO todos(id, text) VALUES($1, $2)", todo.ID, todo.Text); err != nil {
		return models.Todo{}, fmt.Errorf("insert todo: %w", err)
	}
	return todo, nil
}
