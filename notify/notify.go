// Package notify keeps short-lived user notifications (toasts) between
// requests. Each owner gets a bounded queue, newest first; entries expire
// after a fixed duration.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind selects how a notification is rendered.
type Kind string

const (
	Success Kind = "success"
	Error   Kind = "error"
	Info    Kind = "info"
)

// Notification is one queued toast.
type Notification struct {
	ID      string
	Kind    Kind
	Title   string
	Message string
	Expires time.Time
}

// Queue is a bounded, ordered sequence of notifications for one owner.
// Its methods are not safe for concurrent use; Center serializes access.
type Queue struct {
	items []Notification
	limit int
}

func (q *Queue) push(n Notification) {
	q.items = append([]Notification{n}, q.items...)
	if len(q.items) > q.limit {
		q.items = q.items[:q.limit]
	}
}

func (q *Queue) prune(now time.Time) {
	live := q.items[:0]
	for _, n := range q.items {
		if now.Before(n.Expires) {
			live = append(live, n)
		}
	}
	q.items = live
}

func (q *Queue) dismiss(id string) bool {
	for i, n := range q.items {
		if n.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return true
		}
	}
	return false
}

// Center owns the queues of all owners.
type Center struct {
	mu     sync.Mutex
	queues map[string]*Queue
	ttl    time.Duration
	limit  int
	now    func() time.Time
	// swept is when queues were last scanned for expired owners.
	swept time.Time
}

// NewCenter returns a Center whose queues hold at most limit entries, each
// living for ttl.
func NewCenter(ttl time.Duration, limit int) *Center {
	return &Center{
		queues: make(map[string]*Queue),
		ttl:    ttl,
		limit:  limit,
		now:    time.Now,
	}
}

// SetClock replaces the time source. Intended for tests.
func (c *Center) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Push queues a notification for owner and returns its ID.
func (c *Center) Push(owner string, kind Kind, title, message string) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if now.Sub(c.swept) >= c.ttl {
		c.sweep(now)
	}

	q, ok := c.queues[owner]
	if !ok {
		q = &Queue{limit: c.limit}
		c.queues[owner] = q
	}
	n := Notification{
		ID:      uuid.NewString(),
		Kind:    kind,
		Title:   title,
		Message: message,
		Expires: now.Add(c.ttl),
	}
	q.prune(now)
	q.push(n)
	return n.ID
}

// sweep drops every owner whose queue has nothing live left. Owners that
// never come back to read their toasts are released here.
func (c *Center) sweep(now time.Time) {
	for owner, q := range c.queues {
		q.prune(now)
		if len(q.items) == 0 {
			delete(c.queues, owner)
		}
	}
	c.swept = now
}

// Owners returns how many owners currently hold a queue.
func (c *Center) Owners() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queues)
}

// Success queues a success notification.
func (c *Center) Success(owner, title, message string) string {
	return c.Push(owner, Success, title, message)
}

// Error queues an error notification.
func (c *Center) Error(owner, title, message string) string {
	return c.Push(owner, Error, title, message)
}

// Info queues an informational notification.
func (c *Center) Info(owner, title, message string) string {
	return c.Push(owner, Info, title, message)
}

// Live returns owner's unexpired notifications, newest first. Empty queues
// are dropped.
func (c *Center) Live(owner string) []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()

	q, ok := c.queues[owner]
	if !ok {
		return nil
	}
	q.prune(c.now())
	if len(q.items) == 0 {
		delete(c.queues, owner)
		return nil
	}
	return append([]Notification(nil), q.items...)
}

// Dismiss removes one notification. It reports whether it was present.
func (c *Center) Dismiss(owner, id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	q, ok := c.queues[owner]
	if !ok {
		return false
	}
	return q.dismiss(id)
}
