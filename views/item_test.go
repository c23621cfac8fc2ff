package views_test

import (
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abefas/tasktracker/actions"
	"github.com/abefas/tasktracker/models"
	"github.com/abefas/tasktracker/notify"
	"github.com/abefas/tasktracker/session"
	"github.com/abefas/tasktracker/views"
)

func TestItemControlEditCycle(t *testing.T) {
	ctl := views.NewItemControl(models.Task{ID: "t1", Title: "Original title"})
	assert.Equal(t, views.Viewing, ctl.Mode)

	require.True(t, ctl.BeginEdit())
	assert.Equal(t, views.Editing, ctl.Mode)
	assert.Equal(t, "Original title", ctl.Draft)

	ctl.Draft = "Typed but abandoned"
	ctl.Cancel()
	assert.Equal(t, views.Viewing, ctl.Mode)
	assert.Equal(t, "Original title", ctl.Draft)
	assert.Equal(t, "Original title", ctl.Task.Title)

	require.True(t, ctl.BeginEdit())
	ctl.Draft = "  Updated title "
	ctl.ApplySave(nil)
	assert.Equal(t, views.Viewing, ctl.Mode)
	assert.Equal(t, "Updated title", ctl.Task.Title)
}

func TestItemControlCompletedCannotEdit(t *testing.T) {
	ctl := views.NewItemControl(models.Task{ID: "t1", Title: "Done", Completed: true})

	assert.False(t, ctl.CanEdit())
	assert.False(t, ctl.BeginEdit())
	assert.Equal(t, views.Viewing, ctl.Mode)
}

func TestItemControlFailedSaveKeepsDraft(t *testing.T) {
	ctl := views.NewItemControl(models.Task{ID: "t1", Title: "Original title"})
	require.True(t, ctl.BeginEdit())
	ctl.Draft = "Updated title"

	ctl.ApplySave(&actions.Error{Op: "update task", Kind: actions.KindTaskCompleted, Msg: actions.MsgTaskCompleted})

	assert.Equal(t, views.Editing, ctl.Mode)
	assert.Equal(t, "Updated title", ctl.Draft)
	assert.Equal(t, "Original title", ctl.Task.Title)
	assert.Equal(t, actions.MsgTaskCompleted, ctl.Err)
}

func TestPendingRejectsDuplicateOnly(t *testing.T) {
	p := views.NewPending()

	release, ok := p.Begin(views.PendingKey("u1", "t1", "toggle"))
	require.True(t, ok)

	_, ok = p.Begin(views.PendingKey("u1", "t1", "toggle"))
	assert.False(t, ok, "same control is busy")

	releaseOther, ok := p.Begin(views.PendingKey("u1", "t2", "toggle"))
	require.True(t, ok, "other task is independent")
	releaseOther()

	release()
	release() // second call is harmless

	again, ok := p.Begin(views.PendingKey("u1", "t1", "toggle"))
	require.True(t, ok)
	again()
}

func TestPendingConcurrentBegin(t *testing.T) {
	p := views.NewPending()
	key := views.PendingKey("u1", "t1", "delete")

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := p.Begin(key); ok {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, winners)
}

func TestRenderTasksPage(t *testing.T) {
	r, err := views.NewRenderer()
	require.NoError(t, err)

	page := &views.TaskPage{
		Identity: session.Identity{ID: "u1", Email: "ada@example.com"},
		Sort:     views.IncompleteFirst,
		Summary:  views.Summary{Total: 2, Completed: 1, Pending: 1, Percent: 50},
		Active:   []*views.ItemControl{views.NewItemControl(models.Task{ID: "t1", Title: "Buy <milk>"})},
		Completed: []*views.ItemControl{
			views.NewItemControl(models.Task{ID: "t2", Title: "Walk dog", Completed: true}),
		},
		Notifications: []notify.Notification{{ID: "n1", Kind: notify.Success, Title: "Task created"}},
	}

	rec := httptest.NewRecorder()
	require.NoError(t, r.Render(rec, 200, views.PageTasks, page))
	body := rec.Body.String()

	assert.Contains(t, body, "Buy &lt;milk&gt;")
	assert.Contains(t, body, "Walk dog")
	assert.Contains(t, body, "Task created")
	assert.Contains(t, body, "50%")
	assert.Less(t, strings.Index(body, "Buy &lt;milk&gt;"), strings.Index(body, "Walk dog"))
	assert.Equal(t, 1, strings.Count(body, `aria-label="Edit task"`), "completed task has no edit link")
	assert.Contains(t, body, `<details class="completed">`)
}

func TestRenderCompletedEditorExpanded(t *testing.T) {
	r, err := views.NewRenderer()
	require.NoError(t, err)

	ctl := views.NewItemControl(models.Task{ID: "t2", Title: "Walk dog", Completed: true})
	ctl.ResumeEdit("Walk the dog twice", &actions.Error{Op: "update task", Kind: actions.KindTaskCompleted, Msg: actions.MsgTaskCompleted})
	page := &views.TaskPage{Sort: views.IncompleteFirst, Completed: []*views.ItemControl{ctl}}

	rec := httptest.NewRecorder()
	require.NoError(t, r.Render(rec, 409, views.PageTasks, page))
	body := rec.Body.String()

	assert.Contains(t, body, `<details class="completed" open>`)
	assert.Contains(t, body, `value="Walk the dog twice"`)
}

func TestRenderEmptyAndErrorStates(t *testing.T) {
	r, err := views.NewRenderer()
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	require.NoError(t, r.Render(rec, 200, views.PageTasks, &views.TaskPage{Empty: true, Sort: views.IncompleteFirst}))
	assert.Contains(t, rec.Body.String(), "No tasks yet")

	rec = httptest.NewRecorder()
	require.NoError(t, r.Render(rec, 200, views.PageTasks, &views.TaskPage{FetchErr: "Could not load your tasks."}))
	assert.Contains(t, rec.Body.String(), `role="alert"`)
	assert.NotContains(t, rec.Body.String(), "No tasks yet")
}
