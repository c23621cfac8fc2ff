package views

import "sync"

// Pending tracks which controls have a request outstanding, so the same
// action from the same control cannot be submitted twice at once. Different
// controls never block each other.
type Pending struct {
	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewPending returns an empty tracker.
func NewPending() *Pending {
	return &Pending{inflight: make(map[string]struct{})}
}

// PendingKey names one control: a user's action on one task.
func PendingKey(userID, taskID, action string) string {
	return userID + "/" + taskID + "/" + action
}

// Begin marks key as in flight. It returns false if key already is; otherwise
// the caller must call the returned release func when the request finishes.
func (p *Pending) Begin(key string) (release func(), ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, busy := p.inflight[key]; busy {
		return nil, false
	}
	p.inflight[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.inflight, key)
			p.mu.Unlock()
		})
	}, true
}
