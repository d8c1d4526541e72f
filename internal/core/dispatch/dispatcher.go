// Package dispatch serializes all world mutation onto one goroutine.
// Network goroutines post closures; the dispatcher runs them in FIFO order
// interleaved with the periodic system tick.
package dispatch

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"
)

type task struct {
	fn      func()
	expires time.Time // zero = never
}

// Dispatcher is an unbounded FIFO task queue drained by Run.
type Dispatcher struct {
	mu      sync.Mutex
	tasks   []task
	signal  chan struct{}
	stopped bool

	now func() time.Time
	log *zap.Logger
}

func New(log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		signal: make(chan struct{}, 1),
		now:    time.Now,
		log:    log,
	}
}

// AddTask queues fn. Safe from any goroutine; never blocks.
func (d *Dispatcher) AddTask(fn func()) {
	d.push(task{fn: fn})
}

// AddTaskWithExpiry queues fn, dropping it if it has not started within ttl.
func (d *Dispatcher) AddTaskWithExpiry(ttl time.Duration, fn func()) {
	d.push(task{fn: fn, expires: d.now().Add(ttl)})
}

func (d *Dispatcher) push(t task) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.tasks = append(d.tasks, t)
	d.mu.Unlock()

	select {
	case d.signal <- struct{}{}:
	default:
	}
}

// Pending reports the number of queued tasks.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.tasks)
}

// Drain runs every task queued so far, plus any they queue, on the calling
// goroutine. Only the loop goroutine (or a test standing in for it) may call it.
func (d *Dispatcher) Drain() {
	for {
		d.mu.Lock()
		batch := d.tasks
		d.tasks = nil
		d.mu.Unlock()
		if len(batch) == 0 {
			return
		}
		for _, t := range batch {
			if !t.expires.IsZero() && d.now().After(t.expires) {
				d.log.Debug("dropping expired task")
				continue
			}
			d.run(t.fn)
		}
	}
}

// run executes one task; a panic is logged and never unwinds into the loop.
func (d *Dispatcher) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("task panic",
				zap.String("panic", fmt.Sprint(r)),
				zap.String("stack", string(debug.Stack())),
			)
		}
	}()
	fn()
}

// Run drains tasks as they arrive and calls onTick every tick until ctx is
// cancelled. onTick runs on the same goroutine as the tasks.
func (d *Dispatcher) Run(ctx context.Context, tick time.Duration, onTick func(dt time.Duration)) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			d.Drain()
			return
		case <-d.signal:
			d.Drain()
		case now := <-ticker.C:
			d.Drain()
			if onTick != nil {
				onTick(now.Sub(last))
			}
			last = now
		}
	}
}

// Stop rejects further tasks.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()
}
