// Package testutil provides testing utilities.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/abefas/tasktracker/database"
	"github.com/abefas/tasktracker/models"
)

// FakeStore is an in-memory stand-in for database.Store. Task rows are
// scoped by owner the same way the SQL store scopes them.
type FakeStore struct {
	mu        sync.RWMutex
	users     map[string]fakeUser
	tasks     map[string]models.Task
	todos     []models.Todo
	resets    map[string]string // token -> user id
	now       time.Time
	mutations int

	// Error injection for testing
	InsertTaskErr   error
	ListTasksErr    error
	GetTaskErr      error
	SetCompletedErr error
	SetTitleErr     error
	DeleteTaskErr   error
	InsertTodoErr   error
	UserByIDErr     error
	AuthErr         error
}

type fakeUser struct {
	user     models.User
	password string
}

// NewFakeStore creates an empty FakeStore.
func NewFakeStore() *FakeStore {
	return &FakeStore{
		users:  make(map[string]fakeUser),
		tasks:  make(map[string]models.Task),
		resets: make(map[string]string),
		now:    time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC),
	}
}

// tick advances the fake clock so every write gets a distinct timestamp.
func (f *FakeStore) tick() time.Time {
	f.now = f.now.Add(time.Second)
	return f.now
}

// Mutations returns how many writes against tasks or todos were attempted.
func (f *FakeStore) Mutations() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.mutations
}

// AddUser registers a user directly and returns it.
func (f *FakeStore) AddUser(email, password string) models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := models.User{ID: uuid.NewString(), Email: strings.ToLower(email), CreatedAt: f.tick()}
	f.users[u.ID] = fakeUser{user: u, password: password}
	return u
}

// AddTask stores a task directly, bypassing validation and counters.
func (f *FakeStore) AddTask(userID, title string, completed bool) models.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	ts := f.tick()
	t := models.Task{ID: uuid.NewString(), Title: title, Completed: completed, UserID: userID, CreatedAt: ts, UpdatedAt: ts}
	f.tasks[t.ID] = t
	return t
}

// Task returns a stored task regardless of owner.
func (f *FakeStore) Task(id string) (models.Task, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	t, ok := f.tasks[id]
	return t, ok
}

// Todos returns the stored todos.
func (f *FakeStore) Todos() []models.Todo {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]models.Todo(nil), f.todos...)
}

// InsertTask implements the task store.
func (f *FakeStore) InsertTask(ctx context.Context, t models.Task) (models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mutations++
	if f.InsertTaskErr != nil {
		return models.Task{}, f.InsertTaskErr
	}
	t.ID = uuid.NewString()
	t.CreatedAt = f.tick()
	t.UpdatedAt = t.CreatedAt
	f.tasks[t.ID] = t
	return t, nil
}

// ListTasks implements the task store.
func (f *FakeStore) ListTasks(ctx context.Context, userID string) ([]models.Task, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.ListTasksErr != nil {
		return nil, f.ListTasksErr
	}
	out := []models.Task{}
	for _, t := range f.tasks {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Completed != out[j].Completed {
			return !out[i].Completed
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// GetTask implements the task store.
func (f *FakeStore) GetTask(ctx context.Context, taskID, userID string) (models.Task, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.GetTaskErr != nil {
		return models.Task{}, f.GetTaskErr
	}
	t, ok := f.tasks[taskID]
	if !ok || t.UserID != userID {
		return models.Task{}, fmt.Errorf("task %s: %w", taskID, database.ErrNotFound)
	}
	return t, nil
}

// SetCompleted implements the task store.
func (f *FakeStore) SetCompleted(ctx context.Context, taskID, userID string, completed bool) (int64, error) {
	return f.update(taskID, userID, f.SetCompletedErr, func(t *models.Task) { t.Completed = completed })
}

// SetTitle implements the task store.
func (f *FakeStore) SetTitle(ctx context.Context, taskID, userID, title string) (int64, error) {
	return f.update(taskID, userID, f.SetTitleErr, func(t *models.Task) { t.Title = title })
}

func (f *FakeStore) update(taskID, userID string, injected error, apply func(*models.Task)) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mutations++
	if injected != nil {
		return 0, injected
	}
	t, ok := f.tasks[taskID]
	if !ok || t.UserID != userID {
		return 0, nil
	}
	apply(&t)
	t.UpdatedAt = f.tick()
	f.tasks[taskID] = t
	return 1, nil
}

// DeleteTask implements the task store.
func (f *FakeStore) DeleteTask(ctx context.Context, taskID, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mutations++
	if f.DeleteTaskErr != nil {
		return 0, f.DeleteTaskErr
	}
	t, ok := f.tasks[taskID]
	if !ok || t.UserID != userID {
		return 0, nil
	}
	delete(f.tasks, taskID)
	return 1, nil
}

// InsertTodo implements the todo store.
func (f *FakeStore) InsertTodo(ctx context.Context, text string) (models.Todo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mutations++
	if f.InsertTodoErr != nil {
		return models.Todo{}, f.InsertTodoErr
	}
	todo := models.Todo{ID: uuid.NewString(), Text: text}
	f.todos = append(f.todos, todo)
	return todo, nil
}

// UserByID implements session.UserLookup.
func (f *FakeStore) UserByID(ctx context.Context, id string) (models.User, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.UserByIDErr != nil {
		return models.User{}, f.UserByIDErr
	}
	u, ok := f.users[id]
	if !ok {
		return models.User{}, fmt.Errorf("user: %w", database.ErrNotFound)
	}
	return u.user, nil
}

func (f *FakeStore) userByEmail(email string) (fakeUser, bool) {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range f.users {
		if u.user.Email == email {
			return u, true
		}
	}
	return fakeUser{}, false
}

// CreateUser implements the account store.
func (f *FakeStore) CreateUser(ctx context.Context, email, password string) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.AuthErr != nil {
		return models.User{}, f.AuthErr
	}
	if _, ok := f.userByEmail(email); ok {
		return models.User{}, database.ErrEmailTaken
	}
	u := models.User{ID: uuid.NewString(), Email: strings.ToLower(strings.TrimSpace(email)), CreatedAt: f.tick()}
	f.users[u.ID] = fakeUser{user: u, password: password}
	return u, nil
}

// Authenticate implements the account store.
func (f *FakeStore) Authenticate(ctx context.Context, email, password string) (models.User, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.AuthErr != nil {
		return models.User{}, f.AuthErr
	}
	u, ok := f.userByEmail(email)
	if !ok || u.password != password {
		return models.User{}, database.ErrInvalidCredentials
	}
	return u.user, nil
}

// CreateResetToken implements the account store.
func (f *FakeStore) CreateResetToken(ctx context.Context, email string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.userByEmail(email)
	if !ok {
		return "", fmt.Errorf("user: %w", database.ErrNotFound)
	}
	token := uuid.NewString()
	f.resets[token] = u.user.ID
	return token, nil
}

// ResetPassword implements the account store.
func (f *FakeStore) ResetPassword(ctx context.Context, token, password string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	userID, ok := f.resets[token]
	if !ok {
		return database.ErrResetTokenInvalid
	}
	delete(f.resets, token)
	u := f.users[userID]
	u.password = password
	f.users[userID] = u
	return nil
}
