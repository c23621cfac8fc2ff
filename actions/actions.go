// Package actions implements the task mutations offered to the web layer.
// Each action validates its input, checks the caller's identity, applies
// state guards, asks the store to mutate owned rows, and invalidates the
// caller's cached task list on success.
package actions

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/log"

	"github.com/abefas/tasktracker/models"
	"github.com/abefas/tasktracker/session"
)

// TaskStore is the slice of the backend the actions need. Every method is
// scoped to userID; rows owned by someone else are invisible.
type TaskStore interface {
	InsertTask(ctx context.Context, t models.Task) (models.Task, error)
	GetTask(ctx context.Context, taskID, userID string) (models.Task, error)
	SetCompleted(ctx context.Context, taskID, userID string, completed bool) (int64, error)
	SetTitle(ctx context.Context, taskID, userID, title string) (int64, error)
	DeleteTask(ctx context.Context, taskID, userID string) (int64, error)
}

// Refresher drops whatever a reader has cached for a user's task list.
type Refresher interface {
	Invalidate(userID string)
}

// Actions holds the store and the refresh target.
type Actions struct {
	store   TaskStore
	refresh Refresher
}

// New returns Actions backed by store. refresh may be nil.
func New(store TaskStore, refresh Refresher) *Actions {
	return &Actions{store: store, refresh: refresh}
}

// validateTitle trims title and checks it is 1 to 500 characters long.
func validateTitle(op, title string) (string, *Error) {
	trimmed := strings.TrimSpace(title)
	switch {
	case trimmed == "":
		return "", &Error{Op: op, Kind: KindValidation, Msg: MsgTitleEmpty}
	case utf8.RuneCountInString(trimmed) > models.MaxTitleLength:
		return "", &Error{Op: op, Kind: KindValidation, Msg: MsgTitleTooLong}
	}
	return trimmed, nil
}

// CreateTask stores a new incomplete task owned by id.
func (a *Actions) CreateTask(ctx context.Context, id session.Identity, title string) (models.Task, error) {
	const op = "create task"

	validated, verr := validateTitle(op, title)
	if verr != nil {
		return models.Task{}, a.fail(op, "", id, verr)
	}
	if !id.Authenticated() {
		return models.Task{}, a.fail(op, "", id, unauthorized(op))
	}

	task, err := a.store.InsertTask(ctx, models.Task{
		Title:     validated,
		Completed: false,
		UserID:    id.ID,
	})
	if err != nil {
		return models.Task{}, a.fail(op, "", id, backend(op, err))
	}

	a.invalidate(id)
	log.Debug("Task created", "task_id", task.ID, "user_id", id.ID)
	return task, nil
}

// ToggleTask sets the task's completed flag to !current. A task that does not
// exist or belongs to someone else is left alone without error.
func (a *Actions) ToggleTask(ctx context.Context, id session.Identity, taskID string, current bool) error {
	const op = "toggle task"

	if !id.Authenticated() {
		return a.fail(op, taskID, id, unauthorized(op))
	}

	n, err := a.store.SetCompleted(ctx, taskID, id.ID, !current)
	if err != nil {
		return a.fail(op, taskID, id, backend(op, err))
	}

	a.invalidate(id)
	log.Debug("Task toggled", "task_id", taskID, "user_id", id.ID, "completed", !current, "rows", n)
	return nil
}

// DeleteTask removes the task if id owns it.
func (a *Actions) DeleteTask(ctx context.Context, id session.Identity, taskID string) error {
	const op = "delete task"

	if !id.Authenticated() {
		return a.fail(op, taskID, id, unauthorized(op))
	}

	n, err := a.store.DeleteTask(ctx, taskID, id.ID)
	if err != nil {
		return a.fail(op, taskID, id, backend(op, err))
	}

	a.invalidate(id)
	log.Debug("Task deleted", "task_id", taskID, "user_id", id.ID, "rows", n)
	return nil
}

// UpdateTask renames a task. Completed tasks cannot be renamed.
func (a *Actions) UpdateTask(ctx context.Context, id session.Identity, taskID, title string) error {
	const op = "update task"

	validated, verr := validateTitle(op, title)
	if verr != nil {
		return a.fail(op, taskID, id, verr)
	}
	if !id.Authenticated() {
		return a.fail(op, taskID, id, unauthorized(op))
	}

	existing, err := a.store.GetTask(ctx, taskID, id.ID)
	if err != nil {
		return a.fail(op, taskID, id, backend(op, err))
	}
	if existing.Completed {
		return a.fail(op, taskID, id, &Error{Op: op, Kind: KindTaskCompleted, Msg: MsgTaskCompleted})
	}

	if _, err := a.store.SetTitle(ctx, taskID, id.ID, validated); err != nil {
		return a.fail(op, taskID, id, backend(op, err))
	}

	a.invalidate(id)
	log.Debug("Task renamed", "task_id", taskID, "user_id", id.ID)
	return nil
}

func (a *Actions) invalidate(id session.Identity) {
	if a.refresh != nil {
		a.refresh.Invalidate(id.ID)
	}
}

// fail logs err with context and returns it unchanged.
func (a *Actions) fail(op, taskID string, id session.Identity, err *Error) error {
	fields := []any{"op", op, "kind", err.Kind}
	if taskID != "" {
		fields = append(fields, "task_id", taskID)
	}
	if id.Authenticated() {
		fields = append(fields, "user_id", id.ID)
	}
	fields = append(fields, "err", err)

	if err.Kind == KindBackend {
		log.Error("Task action failed", fields...)
	} else {
		log.Warn("Task action rejected", fields...)
	}
	return err
}

func unauthorized(op string) *Error {
	return &Error{Op: op, Kind: KindUnauthorized, Msg: MsgUnauthorized}
}

func backend(op string, err error) *Error {
	return &Error{Op: op, Kind: KindBackend, Err: err}
}
