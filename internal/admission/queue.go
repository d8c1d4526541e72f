// Package admission bounds how many players may be in the world at once.
// Players over the limit get a place on a waiting list and are expected to
// retry the login before their entry expires.
package admission

import (
	"sync"
	"time"
)

// retryMargin is added to the advertised retry delay before an entry expires,
// so a client retrying on schedule keeps its place.
const retryMargin = 15 * time.Second

// Candidate describes the account asking to enter.
type Candidate struct {
	PlayerID uint32
	Premium  bool
	// Privileged players (can-always-login flag or gamemaster tier and above)
	// bypass the queue entirely.
	Privileged bool
}

type entry struct {
	expires  time.Time
	playerID uint32
}

// Queue is the process-wide waiting list. Premium accounts wait in the
// priority list, which is always ranked ahead of the standard list.
type Queue struct {
	mu       sync.Mutex
	max      int
	priority []entry
	standard []entry
	now      func() time.Time
}

// Option configures a Queue.
type Option func(*Queue)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// New creates a queue admitting at most max players. max == 0 means unlimited.
func New(max int, opts ...Option) *Queue {
	q := &Queue{max: max, now: time.Now}
	for _, o := range opts {
		o(q)
	}
	return q
}

// RetryDelay is the number of seconds a client at slot should wait before
// retrying. Coarser bands for later places.
func RetryDelay(slot int) int {
	switch {
	case slot < 5:
		return 5
	case slot < 10:
		return 10
	case slot < 20:
		return 20
	case slot < 50:
		return 60
	default:
		return 120
	}
}

func expiryFor(now time.Time, slot int) time.Time {
	return now.Add(time.Duration(RetryDelay(slot))*time.Second + retryMargin)
}

// Admit decides whether c may enter given the current online count.
// Slot 0 means proceed now; otherwise it is the 1-based waiting-list place.
func (q *Queue) Admit(c Candidate, online int) int {
	if c.Privileged {
		return 0
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	q.priority = purge(q.priority, now)
	q.standard = purge(q.standard, now)

	if q.max == 0 || (len(q.priority) == 0 && len(q.standard) == 0 && online < q.max) {
		return 0
	}

	if list, idx, slot := q.find(c.PlayerID); list != nil {
		if online+slot <= q.max {
			*list = append((*list)[:idx], (*list)[idx+1:]...)
			return 0
		}
		(*list)[idx].expires = expiryFor(now, slot)
		return slot
	}

	slot := len(q.priority)
	if c.Premium {
		slot++
		q.priority = append(q.priority, entry{expires: expiryFor(now, slot), playerID: c.PlayerID})
		return slot
	}
	slot += len(q.standard) + 1
	q.standard = append(q.standard, entry{expires: expiryFor(now, slot), playerID: c.PlayerID})
	return slot
}

// find returns the list holding playerID, its index there and its combined slot.
func (q *Queue) find(playerID uint32) (*[]entry, int, int) {
	slot := 1
	for i, e := range q.priority {
		if e.playerID == playerID {
			return &q.priority, i, slot
		}
		slot++
	}
	for i, e := range q.standard {
		if e.playerID == playerID {
			return &q.standard, i, slot
		}
		slot++
	}
	return nil, 0, 0
}

// purge drops expired entries in place, preserving order.
func purge(list []entry, now time.Time) []entry {
	kept := list[:0]
	for _, e := range list {
		if e.expires.After(now) {
			kept = append(kept, e)
		}
	}
	return kept
}

// Len reports how many players are waiting.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.priority) + len(q.standard)
}

// SetMax changes the capacity.
func (q *Queue) SetMax(max int) {
	q.mu.Lock()
	q.max = max
	q.mu.Unlock()
}
