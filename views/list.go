// Package views builds the data behind the HTML pages: the task list, its
// summary, the per-item edit state, and the notifications shown alongside.
package views

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/abefas/tasktracker/models"
	"github.com/abefas/tasktracker/notify"
	"github.com/abefas/tasktracker/session"
)

// SortMode orders the task list.
type SortMode string

const (
	// IncompleteFirst lists open tasks before completed ones.
	IncompleteFirst SortMode = "incomplete-first"
	// CompleteFirst lists completed tasks before open ones.
	CompleteFirst SortMode = "complete-first"
)

// ParseSortMode maps a query value onto a SortMode, defaulting to
// IncompleteFirst.
func ParseSortMode(s string) SortMode {
	if SortMode(s) == CompleteFirst {
		return CompleteFirst
	}
	return IncompleteFirst
}

// SortTasks orders tasks by completion (per mode), then newest first.
// The input slice is not modified.
func SortTasks(tasks []models.Task, mode SortMode) []models.Task {
	out := append([]models.Task(nil), tasks...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Completed != b.Completed {
			if mode == CompleteFirst {
				return a.Completed
			}
			return !a.Completed
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	return out
}

// Partition splits tasks into active and completed, keeping order.
func Partition(tasks []models.Task) (active, completed []models.Task) {
	for _, t := range tasks {
		if t.Completed {
			completed = append(completed, t)
		} else {
			active = append(active, t)
		}
	}
	return active, completed
}

// Summary holds the counts shown above the list.
type Summary struct {
	Total     int
	Completed int
	Pending   int
	Percent   int
}

// Summarize derives the summary from the fetched tasks.
func Summarize(tasks []models.Task) Summary {
	s := Summary{Total: len(tasks)}
	for _, t := range tasks {
		if t.Completed {
			s.Completed++
		}
	}
	s.Pending = s.Total - s.Completed
	if s.Total > 0 {
		s.Percent = int(math.Round(float64(s.Completed) / float64(s.Total) * 100))
	}
	return s
}

// TaskLister reads a user's tasks from the backend.
type TaskLister interface {
	ListTasks(ctx context.Context, userID string) ([]models.Task, error)
}

type cacheEntry struct {
	tasks   []models.Task
	fetched time.Time
}

// ListCache keeps each user's last fetched task list until it is invalidated
// or older than its TTL. It is the refresh target of the task actions.
type ListCache struct {
	mu      sync.Mutex
	lister  TaskLister
	ttl     time.Duration
	entries map[string]cacheEntry
	// gens counts invalidations per user. A fetch that raced one is not stored.
	gens map[string]uint64
	now  func() time.Time
}

// NewListCache returns a cache in front of lister.
func NewListCache(lister TaskLister, ttl time.Duration) *ListCache {
	return &ListCache{
		lister:  lister,
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		gens:    make(map[string]uint64),
		now:     time.Now,
	}
}

// Tasks returns userID's tasks, fetching them on a miss.
func (c *ListCache) Tasks(ctx context.Context, userID string) ([]models.Task, error) {
	c.mu.Lock()
	e, ok := c.entries[userID]
	gen := c.gens[userID]
	c.mu.Unlock()
	if ok && c.now().Sub(e.fetched) < c.ttl {
		return append([]models.Task(nil), e.tasks...), nil
	}

	tasks, err := c.lister.ListTasks(ctx, userID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.gens[userID] == gen {
		c.entries[userID] = cacheEntry{tasks: tasks, fetched: c.now()}
	}
	c.mu.Unlock()
	return append([]models.Task(nil), tasks...), nil
}

// Invalidate drops userID's cached list.
func (c *ListCache) Invalidate(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, userID)
	c.gens[userID]++
}

// ListOptions carries the per-request view state.
type ListOptions struct {
	Sort SortMode
	// Editing is the ID of the task whose editor is open, if any.
	Editing string
	// Draft and EditErr restore an edit after a failed save.
	Draft   string
	EditErr error
	// Cancelled is the ID of the task whose editor was just closed without
	// saving.
	Cancelled string
	// CreateTitle and CreateErr restore the create form after a rejected
	// submission.
	CreateTitle string
	CreateErr   string
}

// TaskPage is everything the tasks template renders.
type TaskPage struct {
	Identity      session.Identity
	Sort          SortMode
	Summary       Summary
	Active        []*ItemControl
	Completed     []*ItemControl
	Empty         bool
	FetchErr      string
	CreateTitle   string
	CreateErr     string
	Notifications []notify.Notification
}

// CompletedEditing reports whether an editor is open in the completed group,
// which then renders expanded.
func (p *TaskPage) CompletedEditing() bool {
	for _, ctl := range p.Completed {
		if ctl.Editing() {
			return true
		}
	}
	return false
}

// ListView assembles TaskPages.
type ListView struct {
	cache *ListCache
}

// NewListView returns a ListView reading through cache.
func NewListView(cache *ListCache) *ListView {
	return &ListView{cache: cache}
}

// Load fetches id's tasks and builds the page. A fetch failure is reported
// on the page instead of being returned.
func (v *ListView) Load(ctx context.Context, id session.Identity, opts ListOptions) *TaskPage {
	page := &TaskPage{
		Identity:    id,
		Sort:        ParseSortMode(string(opts.Sort)),
		CreateTitle: opts.CreateTitle,
		CreateErr:   opts.CreateErr,
	}

	tasks, err := v.cache.Tasks(ctx, id.ID)
	if err != nil {
		log.Error("Failed to load tasks", "user_id", id.ID, "err", err)
		page.FetchErr = "Could not load your tasks. Please try again."
		return page
	}

	page.Summary = Summarize(tasks)
	page.Empty = len(tasks) == 0

	active, completed := Partition(SortTasks(tasks, page.Sort))
	page.Active = controls(active, opts)
	page.Completed = controls(completed, opts)
	return page
}

func controls(tasks []models.Task, opts ListOptions) []*ItemControl {
	out := make([]*ItemControl, 0, len(tasks))
	for _, t := range tasks {
		ctl := NewItemControl(t)
		switch {
		case opts.Cancelled != "" && t.ID == opts.Cancelled:
			ctl.Cancel()
		case opts.Editing != "" && t.ID == opts.Editing:
			if opts.EditErr != nil {
				ctl.ResumeEdit(opts.Draft, opts.EditErr)
			} else {
				ctl.BeginEdit()
			}
		}
		out = append(out, ctl)
	}
	return out
}
