package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/abefas/tasktracker/actions"
	"github.com/abefas/tasktracker/session"
	"github.com/abefas/tasktracker/views"
)

// renderTasks renders the list page for the caller with opts applied.
func (h *Handlers) renderTasks(w http.ResponseWriter, r *http.Request, status int, opts views.ListOptions) {
	id := session.FromContext(r.Context())
	page := h.List.Load(r.Context(), id, opts)
	page.Notifications = h.Notes.Live(h.owner(r))
	h.render(w, r, status, views.PageTasks, page)
}

// GetTasks renders the caller's task list.
func (h *Handlers) GetTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	h.renderTasks(w, r, http.StatusOK, views.ListOptions{
		Sort:    views.ParseSortMode(q.Get("sort")),
		Editing: q.Get("edit"),
	})
}

// parseForm bounds and parses a form body, answering 400 on failure.
func parseForm(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return false
	}
	return true
}

// begin claims the pending slot for one control. A duplicate submission gets
// an info notification and a redirect back to the list.
func (h *Handlers) begin(w http.ResponseWriter, r *http.Request, taskID, action string) (func(), bool) {
	id := session.FromContext(r.Context())
	release, ok := h.Pending.Begin(views.PendingKey(id.ID, taskID, action))
	if !ok {
		h.Notes.Info(h.owner(r), "Already in progress", "Please wait for the previous request to finish")
		http.Redirect(w, r, "/tasks", http.StatusSeeOther)
		return nil, false
	}
	return release, true
}

// CreateTask creates a new task from the form's title.
func (h *Handlers) CreateTask(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}
	release, ok := h.begin(w, r, "", "create")
	if !ok {
		return
	}
	defer release()

	id := session.FromContext(r.Context())
	title := r.PostFormValue("title")
	owner := h.owner(r)

	_, err := h.Actions.CreateTask(r.Context(), id, title)
	switch actions.KindOf(err) {
	case actions.KindNone:
		h.Notes.Success(owner, "Task created", "Your task was added")
		http.Redirect(w, r, "/tasks", http.StatusSeeOther)
	case actions.KindValidation:
		h.renderTasks(w, r, http.StatusUnprocessableEntity, views.ListOptions{
			CreateTitle: title,
			CreateErr:   actions.MessageOf(err),
		})
	case actions.KindUnauthorized:
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	default:
		h.Notes.Error(owner, "Task create failed", actions.MessageOf(err))
		h.renderTasks(w, r, http.StatusInternalServerError, views.ListOptions{
			CreateTitle: title,
			CreateErr:   "Failed to create task",
		})
	}
}

// ToggleTask flips a task's completion. The form carries the state the user
// saw, so the flip is relative to what was on screen.
func (h *Handlers) ToggleTask(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}
	taskID := mux.Vars(r)["id"]
	current, err := strconv.ParseBool(r.PostFormValue("completed"))
	if err != nil {
		http.Error(w, "Invalid completed value", http.StatusBadRequest)
		return
	}

	release, ok := h.begin(w, r, taskID, "toggle")
	if !ok {
		return
	}
	defer release()

	id := session.FromContext(r.Context())
	owner := h.owner(r)

	err = h.Actions.ToggleTask(r.Context(), id, taskID, current)
	switch actions.KindOf(err) {
	case actions.KindNone:
		if current {
			h.Notes.Success(owner, "Task reopened", "")
		} else {
			h.Notes.Success(owner, "Task completed", "")
		}
	case actions.KindUnauthorized:
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	default:
		h.Notes.Error(owner, "Task update failed", actions.MessageOf(err))
	}
	http.Redirect(w, r, "/tasks", http.StatusSeeOther)
}

// DeleteTask removes a task.
func (h *Handlers) DeleteTask(w http.ResponseWriter, r *http.Request) {
	taskID := mux.Vars(r)["id"]
	release, ok := h.begin(w, r, taskID, "delete")
	if !ok {
		return
	}
	defer release()

	id := session.FromContext(r.Context())
	owner := h.owner(r)

	err := h.Actions.DeleteTask(r.Context(), id, taskID)
	switch actions.KindOf(err) {
	case actions.KindNone:
		h.Notes.Success(owner, "Task deleted", "")
	case actions.KindUnauthorized:
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	default:
		h.Notes.Error(owner, "Task delete failed", actions.MessageOf(err))
	}
	http.Redirect(w, r, "/tasks", http.StatusSeeOther)
}

// SaveTitle handles the editor's Save and Cancel buttons. Cancel discards the
// draft without touching the backend. A failed save re-renders the list with
// the editor still open and the typed text kept.
func (h *Handlers) SaveTitle(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}
	taskID := mux.Vars(r)["id"]
	if r.PostFormValue("action") == "cancel" {
		h.renderTasks(w, r, http.StatusOK, views.ListOptions{Cancelled: taskID})
		return
	}

	release, ok := h.begin(w, r, taskID, "rename")
	if !ok {
		return
	}
	defer release()

	id := session.FromContext(r.Context())
	draft := r.PostFormValue("title")
	owner := h.owner(r)

	err := h.Actions.UpdateTask(r.Context(), id, taskID, draft)
	keepEditing := views.ListOptions{Editing: taskID, Draft: draft, EditErr: err}

	switch actions.KindOf(err) {
	case actions.KindNone:
		h.Notes.Success(owner, "Task updated", "")
		http.Redirect(w, r, "/tasks", http.StatusSeeOther)
	case actions.KindValidation:
		h.renderTasks(w, r, http.StatusUnprocessableEntity, keepEditing)
	case actions.KindUnauthorized:
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	case actions.KindTaskCompleted:
		h.Notes.Error(owner, "Cannot edit", actions.MessageOf(err))
		h.renderTasks(w, r, http.StatusConflict, keepEditing)
	default:
		h.Notes.Error(owner, "Task update failed", actions.MessageOf(err))
		h.renderTasks(w, r, http.StatusInternalServerError, keepEditing)
	}
}

// DismissNotification removes a toast and returns to the previous page.
func (h *Handlers) DismissNotification(w http.ResponseWriter, r *http.Request) {
	h.Notes.Dismiss(h.owner(r), mux.Vars(r)["id"])
	http.Redirect(w, r, safeReturn(r, "/tasks"), http.StatusSeeOther)
}
