package dispatch

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

type event struct {
	id  uint64
	due time.Time
	fn  func()
}

type eventHeap []*event

func (h eventHeap) Len() int { return len(h) }
func (h eventHeap) Less(i, j int) bool {
	if h[i].due.Equal(h[j].due) {
		return h[i].id < h[j].id
	}
	return h[i].due.Before(h[j].due)
}
func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *eventHeap) Push(x any)   { *h = append(*h, x.(*event)) }
func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// Scheduler posts delayed, cancellable events onto a Dispatcher.
type Scheduler struct {
	mu     sync.Mutex
	events eventHeap
	active map[uint64]struct{}
	nextID uint64
	wake   chan struct{}
	d      *Dispatcher
}

func NewScheduler(d *Dispatcher) *Scheduler {
	return &Scheduler{
		active: make(map[uint64]struct{}),
		wake:   make(chan struct{}, 1),
		d:      d,
	}
}

// AddEvent runs fn on the dispatcher after delay and returns an id for StopEvent.
func (s *Scheduler) AddEvent(delay time.Duration, fn func()) uint64 {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	heap.Push(&s.events, &event{id: id, due: time.Now().Add(delay), fn: fn})
	s.active[id] = struct{}{}
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return id
}

// StopEvent cancels a pending event. It reports whether the event was still pending.
func (s *Scheduler) StopEvent(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.active[id]; !ok {
		return false
	}
	delete(s.active, id)
	return true
}

// Run fires due events until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		wait := s.fireDue(time.Now())
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-ctx.Done():
			return
		case <-s.wake:
		case <-timer.C:
		}
	}
}

// fireDue posts every due, still-active event and returns the time until the next one.
func (s *Scheduler) fireDue(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	for s.events.Len() > 0 {
		next := s.events[0]
		if next.due.After(now) {
			return next.due.Sub(now)
		}
		heap.Pop(&s.events)
		if _, ok := s.active[next.id]; !ok {
			continue
		}
		delete(s.active, next.id)
		s.d.AddTask(next.fn)
	}
	return time.Hour
}
