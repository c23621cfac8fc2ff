package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/abefas/tasktracker/actions"
	"github.com/abefas/tasktracker/middleware"
	"github.com/abefas/tasktracker/models"
	"github.com/abefas/tasktracker/notify"
	"github.com/abefas/tasktracker/session"
	"github.com/abefas/tasktracker/views"
)

// maxFormBytes bounds request bodies; a 500 character title fits easily.
const maxFormBytes = 64 << 10

// AccountStore is the authentication side of the backend.
type AccountStore interface {
	CreateUser(ctx context.Context, email, password string) (models.User, error)
	Authenticate(ctx context.Context, email, password string) (models.User, error)
	CreateResetToken(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, token, password string) error
}

// TodoStore backs POST /api/todos.
type TodoStore interface {
	InsertTodo(ctx context.Context, text string) (models.Todo, error)
}

// Deps are the collaborators the handlers are built from.
type Deps struct {
	Actions  *actions.Actions
	Accounts AccountStore
	Todos    TodoStore
	Issuer   *session.Issuer
	List     *views.ListView
	Pages    *views.Renderer
	Notes    *notify.Center
	Pending  *views.Pending
	Mailer   ResetMailer
}

// Handlers struct holds the application's collaborators, allowing methods to share them.
type Handlers struct {
	Deps
}

// NewHandlers is a constructor for the Handlers struct.
func NewHandlers(d Deps) *Handlers {
	if d.Mailer == nil {
		d.Mailer = LogMailer{}
	}
	if d.Pending == nil {
		d.Pending = views.NewPending()
	}
	return &Handlers{Deps: d}
}

// respondWithJSON is a helper function to format and send JSON responses.
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error("Failed to encode JSON response", "err", err)
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

// owner is the notification queue key for the request's browser.
func (h *Handlers) owner(r *http.Request) string {
	if id := middleware.BrowserFromContext(r.Context()); id != "" {
		return id
	}
	if id := session.FromContext(r.Context()); id.Authenticated() {
		return id.ID
	}
	return "anonymous"
}

func (h *Handlers) render(w http.ResponseWriter, r *http.Request, status int, page string, data any) {
	if err := h.Pages.Render(w, status, page, data); err != nil {
		log.Error("Failed to render page", "page", page, "path", r.URL.Path, "err", err)
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

// safeReturn picks a same-site path to send the browser back to.
func safeReturn(r *http.Request, fallback string) string {
	ref := r.Referer()
	if ref == "" {
		return fallback
	}
	u, err := url.Parse(ref)
	if err != nil || !strings.HasPrefix(u.Path, "/") || strings.HasPrefix(u.Path, "//") {
		return fallback
	}
	if u.Host != "" && u.Host != r.Host {
		return fallback
	}
	if u.RawQuery != "" {
		return u.Path + "?" + u.RawQuery
	}
	return u.Path
}
