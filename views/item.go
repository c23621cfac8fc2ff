package views

import (
	"strings"

	"github.com/abefas/tasktracker/actions"
	"github.com/abefas/tasktracker/models"
)

// Mode is the edit state of one task row.
type Mode int

const (
	Viewing Mode = iota
	Editing
)

func (m Mode) String() string {
	if m == Editing {
		return "editing"
	}
	return "viewing"
}

// ItemControl is the state of one task row. Rows are independent: opening
// one editor does not affect any other row, and toggle/delete never change
// the mode.
type ItemControl struct {
	Task  models.Task
	Mode  Mode
	Draft string
	Err   string
}

// NewItemControl returns a row in Viewing mode.
func NewItemControl(t models.Task) *ItemControl {
	return &ItemControl{Task: t, Mode: Viewing, Draft: t.Title}
}

// Editing reports whether the editor is open.
func (c *ItemControl) Editing() bool {
	return c.Mode == Editing
}

// CanEdit reports whether the editor may be opened. Completed tasks are
// read-only until reopened; the rename action enforces the same rule.
func (c *ItemControl) CanEdit() bool {
	return !c.Task.Completed
}

// BeginEdit opens the editor with the current title. It reports false and
// stays in Viewing for a completed task.
func (c *ItemControl) BeginEdit() bool {
	if !c.CanEdit() {
		return false
	}
	c.Mode = Editing
	c.Draft = c.Task.Title
	c.Err = ""
	return true
}

// Cancel closes the editor and discards the draft.
func (c *ItemControl) Cancel() {
	c.Mode = Viewing
	c.Draft = c.Task.Title
	c.Err = ""
}

// ApplySave records the outcome of saving Draft. On success the row returns
// to Viewing with the new title. On failure it stays in Editing so the typed
// text is kept, and the error is shown inline.
func (c *ItemControl) ApplySave(err error) {
	if err == nil {
		c.Task.Title = strings.TrimSpace(c.Draft)
		c.Mode = Viewing
		c.Err = ""
		return
	}
	c.Mode = Editing
	c.Err = actions.MessageOf(err)
}

// ResumeEdit reopens the editor with a draft from a save that failed.
func (c *ItemControl) ResumeEdit(draft string, err error) {
	c.Mode = Editing
	c.Draft = draft
	c.ApplySave(err)
}
