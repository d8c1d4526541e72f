package system

import "time"

// Phase orders systems within one tick.
type Phase int

const (
	PhaseEvents  Phase = iota // 0: deliver last tick's events
	PhaseUpdate               // 1: keep-alive, linkless players, timers
	PhaseOutput               // 2: flush session output buffers
	PhasePersist              // 3: hand snapshots to the save workers
)

// System is a periodic job run by the Runner on the dispatcher goroutine.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}
