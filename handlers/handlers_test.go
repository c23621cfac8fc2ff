package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abefas/tasktracker/actions"
	"github.com/abefas/tasktracker/handlers"
	"github.com/abefas/tasktracker/models"
	"github.com/abefas/tasktracker/notify"
	"github.com/abefas/tasktracker/session"
	"github.com/abefas/tasktracker/testutil"
	"github.com/abefas/tasktracker/views"
)

var key = []byte("handlers-test-key-0123456789")

type captureMailer struct {
	links []string
}

func (c *captureMailer) SendReset(ctx context.Context, email, link string) error {
	c.links = append(c.links, link)
	return nil
}

type testApp struct {
	store   *testutil.FakeStore
	issuer  *session.Issuer
	handler http.Handler
	h       *handlers.Handlers
	mailer  *captureMailer
}

func newApp(t *testing.T) *testApp {
	t.Helper()

	store := testutil.NewFakeStore()
	cache := views.NewListCache(store, time.Minute)
	pages, err := views.NewRenderer()
	require.NoError(t, err)

	mailer := &captureMailer{}
	issuer := session.NewIssuer(key, false)
	h := handlers.NewHandlers(handlers.Deps{
		Actions:  actions.New(store, cache),
		Accounts: store,
		Todos:    store,
		Issuer:   issuer,
		List:     views.NewListView(cache),
		Pages:    pages,
		Notes:    notify.NewCenter(4*time.Second, 5),
		Mailer:   mailer,
	})

	return &testApp{
		store:   store,
		issuer:  issuer,
		handler: h.Router(session.NewGuard(key, store), false),
		h:       h,
		mailer:  mailer,
	}
}

// sessionCookie signs user in and returns the cookie a browser would hold.
func (a *testApp) sessionCookie(t *testing.T, user models.User) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	require.NoError(t, a.issuer.SetCookie(rec, user))
	return rec.Result().Cookies()[0]
}

func (a *testApp) do(req *http.Request, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func postForm(path string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func postJSON(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestUnauthenticatedTasksRedirectsToLogin(t *testing.T) {
	app := newApp(t)

	rec := app.do(httptest.NewRequest(http.MethodGet, "/tasks", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	rec = app.do(postForm("/tasks", url.Values{"title": {"Sneaky"}}))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Zero(t, app.store.Mutations())
}

func TestHomeRedirects(t *testing.T) {
	app := newApp(t)
	user := app.store.AddUser("ada@example.com", "secret1")

	rec := app.do(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	rec = app.do(httptest.NewRequest(http.MethodGet, "/", nil), app.sessionCookie(t, user))
	assert.Equal(t, "/tasks", rec.Header().Get("Location"))
}

func TestCreateTodoMissingText(t *testing.T) {
	app := newApp(t)
	user := app.store.AddUser("ada@example.com", "secret1")

	rec := app.do(postJSON("/api/todos", `{}`), app.sessionCookie(t, user))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body, "error")

	rec = app.do(postJSON("/api/todos", `{"text": 42}`), app.sessionCookie(t, user))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateTodoMalformedJSON(t *testing.T) {
	app := newApp(t)
	user := app.store.AddUser("ada@example.com", "secret1")

	rec := app.do(postJSON("/api/todos", `{"text": `), app.sessionCookie(t, user))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid request payload"}`, rec.Body.String())
	assert.Empty(t, app.store.Todos())
}

func TestCreateTodoDirectHandler(t *testing.T) {
	app := newApp(t)

	rec := httptest.NewRecorder()
	app.h.CreateTodo(rec, postJSON("/api/todos", `{}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error"`)
}

func TestCreateTodo(t *testing.T) {
	app := newApp(t)
	user := app.store.AddUser("ada@example.com", "secret1")

	rec := app.do(postJSON("/api/todos", `{"text": "Buy milk"}`), app.sessionCookie(t, user))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var todo models.Todo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &todo))
	assert.NotEmpty(t, todo.ID)
	assert.Equal(t, "Buy milk", todo.Text)
	assert.Equal(t, []models.Todo{todo}, app.store.Todos())
}

func TestCreateTodoBackendFailure(t *testing.T) {
	app := newApp(t)
	user := app.store.AddUser("ada@example.com", "secret1")
	app.store.InsertTodoErr = errors.New("insert failed")

	rec := app.do(postJSON("/api/todos", `{"text": "Buy milk"}`), app.sessionCookie(t, user))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "insert failed")
}

func TestTasksPageShowsOnlyOwnTasks(t *testing.T) {
	app := newApp(t)
	ada := app.store.AddUser("ada@example.com", "secret1")
	bob := app.store.AddUser("bob@example.com", "secret1")
	app.store.AddTask(ada.ID, "Ada's task", false)
	app.store.AddTask(bob.ID, "Bob's task", false)

	rec := app.do(httptest.NewRequest(http.MethodGet, "/tasks", nil), app.sessionCookie(t, ada))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Ada&#39;s task")
	assert.NotContains(t, rec.Body.String(), "Bob")
}

func TestTasksPageEmptyAndFetchError(t *testing.T) {
	app := newApp(t)
	user := app.store.AddUser("ada@example.com", "secret1")
	cookie := app.sessionCookie(t, user)

	rec := app.do(httptest.NewRequest(http.MethodGet, "/tasks", nil), cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No tasks yet")

	other := app.store.AddUser("bob@example.com", "secret1")
	app.store.ListTasksErr = errors.New("db down")
	rec = app.do(httptest.NewRequest(http.MethodGet, "/tasks", nil), app.sessionCookie(t, other))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Could not load your tasks")
}

func TestCreateTaskFlow(t *testing.T) {
	app := newApp(t)
	user := app.store.AddUser("ada@example.com", "secret1")
	cookie := app.sessionCookie(t, user)

	rec := app.do(postForm("/tasks", url.Values{"title": {"  Buy milk  "}}), cookie)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/tasks", rec.Header().Get("Location"))

	tasks, err := app.store.ListTasks(context.Background(), user.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Buy milk", tasks[0].Title)
	assert.False(t, tasks[0].Completed)

	// The list cache was invalidated, so the new task shows up.
	rec = app.do(httptest.NewRequest(http.MethodGet, "/tasks", nil), cookie)
	assert.Contains(t, rec.Body.String(), "Buy milk")
}

func TestCreateTaskBlankTitleIsInline(t *testing.T) {
	app := newApp(t)
	user := app.store.AddUser("ada@example.com", "secret1")

	rec := app.do(postForm("/tasks", url.Values{"title": {"   "}}), app.sessionCookie(t, user))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), actions.MsgTitleEmpty)
	assert.Zero(t, app.store.Mutations())
}

func TestToggleAndDelete(t *testing.T) {
	app := newApp(t)
	user := app.store.AddUser("ada@example.com", "secret1")
	cookie := app.sessionCookie(t, user)
	task := app.store.AddTask(user.ID, "Walk dog", false)

	rec := app.do(postForm("/tasks/"+task.ID+"/toggle", url.Values{"completed": {"false"}}), cookie)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	got, _ := app.store.Task(task.ID)
	assert.True(t, got.Completed)

	rec = app.do(postForm("/tasks/"+task.ID+"/toggle", url.Values{"completed": {"maybe"}}), cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.do(postForm("/tasks/"+task.ID+"/delete", nil), cookie)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	_, ok := app.store.Task(task.ID)
	assert.False(t, ok)
}

func TestOtherUserCannotMutate(t *testing.T) {
	app := newApp(t)
	ada := app.store.AddUser("ada@example.com", "secret1")
	bob := app.store.AddUser("bob@example.com", "secret1")
	task := app.store.AddTask(ada.ID, "Ada's task", false)
	bobCookie := app.sessionCookie(t, bob)

	app.do(postForm("/tasks/"+task.ID+"/toggle", url.Values{"completed": {"false"}}), bobCookie)
	app.do(postForm("/tasks/"+task.ID+"/title", url.Values{"title": {"Mine now"}, "action": {"save"}}), bobCookie)
	app.do(postForm("/tasks/"+task.ID+"/delete", nil), bobCookie)

	got, ok := app.store.Task(task.ID)
	require.True(t, ok)
	assert.Equal(t, "Ada's task", got.Title)
	assert.False(t, got.Completed)
}

func TestSaveTitle(t *testing.T) {
	app := newApp(t)
	user := app.store.AddUser("ada@example.com", "secret1")
	cookie := app.sessionCookie(t, user)
	task := app.store.AddTask(user.ID, "Original title", false)

	rec := app.do(postForm("/tasks/"+task.ID+"/title", url.Values{"title": {"Discarded"}, "action": {"cancel"}}), cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Original title")
	assert.NotContains(t, rec.Body.String(), "Discarded")
	assert.NotContains(t, rec.Body.String(), `aria-label="Task title"`, "editor is closed")
	assert.Zero(t, app.store.Mutations())
	got, _ := app.store.Task(task.ID)
	assert.Equal(t, "Original title", got.Title)

	rec = app.do(postForm("/tasks/"+task.ID+"/title", url.Values{"title": {"Updated title"}, "action": {"save"}}), cookie)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	got, _ = app.store.Task(task.ID)
	assert.Equal(t, "Updated title", got.Title)
}

func TestSaveTitleOnCompletedTaskKeepsEditor(t *testing.T) {
	app := newApp(t)
	user := app.store.AddUser("ada@example.com", "secret1")
	task := app.store.AddTask(user.ID, "Original title", true)

	rec := app.do(postForm("/tasks/"+task.ID+"/title", url.Values{"title": {"Typed text"}, "action": {"save"}}),
		app.sessionCookie(t, user))
	require.Equal(t, http.StatusConflict, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "Cannot edit")
	assert.Contains(t, body, `value="Typed text"`)
	assert.Contains(t, body, actions.MsgTaskCompleted)
	assert.Contains(t, body, `<details class="completed" open>`)

	got, _ := app.store.Task(task.ID)
	assert.Equal(t, "Original title", got.Title)
}

func TestDuplicateSubmissionRejected(t *testing.T) {
	app := newApp(t)
	user := app.store.AddUser("ada@example.com", "secret1")
	task := app.store.AddTask(user.ID, "Walk dog", false)

	release, ok := app.h.Pending.Begin(views.PendingKey(user.ID, task.ID, "toggle"))
	require.True(t, ok)
	defer release()

	rec := app.do(postForm("/tasks/"+task.ID+"/toggle", url.Values{"completed": {"false"}}), app.sessionCookie(t, user))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Zero(t, app.store.Mutations())

	// A different control on the same task is not blocked.
	rec = app.do(postForm("/tasks/"+task.ID+"/delete", nil), app.sessionCookie(t, user))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	_, exists := app.store.Task(task.ID)
	assert.False(t, exists)
}

func TestSignUpSignInAndLogout(t *testing.T) {
	app := newApp(t)

	rec := app.do(postForm("/login", url.Values{
		"mode": {"signup"}, "email": {"ada@example.com"}, "password": {"secret1"}, "confirmPassword": {"different"},
	}))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "Passwords do not match")

	rec = app.do(postForm("/login", url.Values{
		"mode": {"signup"}, "email": {"ada@example.com"}, "password": {"secret1"}, "confirmPassword": {"secret1"},
	}))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/tasks", rec.Header().Get("Location"))

	rec = app.do(postForm("/login", url.Values{"email": {"ada@example.com"}, "password": {"wrong-pass"}}))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid email or password")

	rec = app.do(postForm("/login", url.Values{"email": {"ada@example.com"}, "password": {"secret1"}}))
	require.Equal(t, http.StatusSeeOther, rec.Code)

	var sessionCookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName {
			sessionCookie = c
		}
	}
	require.NotNil(t, sessionCookie)

	rec = app.do(httptest.NewRequest(http.MethodGet, "/tasks", nil), sessionCookie)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = app.do(postForm("/logout", nil), sessionCookie)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestForgotAndReset(t *testing.T) {
	app := newApp(t)
	app.store.AddUser("ada@example.com", "old-secret")

	rec := app.do(postForm("/forgot", url.Values{"email": {"ghost@example.com"}}))
	assert.Equal(t, http.StatusSeeOther, rec.Code, "unknown emails look the same")
	assert.Empty(t, app.mailer.links)

	rec = app.do(postForm("/forgot", url.Values{"email": {"ada@example.com"}}))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Len(t, app.mailer.links, 1)

	link, err := url.Parse(app.mailer.links[0])
	require.NoError(t, err)
	token := link.Query().Get("token")

	rec = app.do(httptest.NewRequest(http.MethodGet, app.mailer.links[0], nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), token)

	rec = app.do(postForm("/auth/reset", url.Values{"token": {token}, "password": {"new-secret"}, "confirmPassword": {"new-secret"}}))
	require.Equal(t, http.StatusSeeOther, rec.Code)

	_, err = app.store.Authenticate(context.Background(), "ada@example.com", "new-secret")
	assert.NoError(t, err)

	rec = app.do(postForm("/auth/reset", url.Values{"token": {token}, "password": {"again-secret"}, "confirmPassword": {"again-secret"}}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStaticIsPublic(t *testing.T) {
	app := newApp(t)

	rec := app.do(httptest.NewRequest(http.MethodGet, "/static/style.css", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
