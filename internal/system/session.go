package system

import (
	"time"

	"github.com/otgo/server/internal/core/event"
	coresys "github.com/otgo/server/internal/core/system"
	"github.com/otgo/server/internal/protocol"
)

// EventsSystem delivers the events emitted during the previous tick.
// Phase 0 (Events).
type EventsSystem struct {
	bus *event.Bus
}

func NewEventsSystem(bus *event.Bus) *EventsSystem {
	return &EventsSystem{bus: bus}
}

func (s *EventsSystem) Phase() coresys.Phase { return coresys.PhaseEvents }

func (s *EventsSystem) Update(_ time.Duration) {
	s.bus.SwapBuffers()
	s.bus.DispatchAll()
}

// KeepAliveSystem pings idle clients and drops silent ones. Phase 1 (Update).
type KeepAliveSystem struct {
	sessions *protocol.Sessions
	interval time.Duration
	idle     time.Duration
	now      func() time.Time
}

func NewKeepAliveSystem(sessions *protocol.Sessions, interval, idle time.Duration) *KeepAliveSystem {
	return &KeepAliveSystem{sessions: sessions, interval: interval, idle: idle, now: time.Now}
}

func (s *KeepAliveSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *KeepAliveSystem) Update(_ time.Duration) {
	now := s.now()
	s.sessions.Each(func(gs *protocol.GameSession) {
		gs.KeepAlive(now, s.interval, s.idle)
	})
}

// OutputSystem sends each session's buffered packets once per tick.
// Phase 2 (Output).
type OutputSystem struct {
	sessions *protocol.Sessions
}

func NewOutputSystem(sessions *protocol.Sessions) *OutputSystem {
	return &OutputSystem{sessions: sessions}
}

func (s *OutputSystem) Phase() coresys.Phase { return coresys.PhaseOutput }

func (s *OutputSystem) Update(_ time.Duration) {
	s.sessions.Each(func(gs *protocol.GameSession) {
		gs.Flush()
	})
}
