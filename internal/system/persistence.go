package system

import (
	"context"
	"sync"
	"time"

	"github.com/otgo/server/internal/core/event"
	coresys "github.com/otgo/server/internal/core/system"
	"github.com/otgo/server/internal/world"
	"go.uber.org/zap"
)

// saveQueueSize bounds the snapshots waiting for the save worker.
const saveQueueSize = 1024

// PlayerSaver writes a player snapshot and stamps logins.
// *persist.PlayerRepo implements it.
type PlayerSaver interface {
	Save(ctx context.Context, d world.PlayerData) error
	MarkLogin(ctx context.Context, guid uint32, at time.Time) error
}

// saveJob is either a full snapshot or, with login set, only the
// last_login stamp of d.GUID.
type saveJob struct {
	data  world.PlayerData
	login bool
}

// PersistenceSystem hands player snapshots to a background save worker:
// every player that leaves the world, and every online player each
// interval ticks. Entering players get their login stamped right away.
// The database is never touched on the dispatcher.
// Phase 3 (Persist).
type PersistenceSystem struct {
	players  *world.State
	saver    PlayerSaver
	log      *zap.Logger
	timeout  time.Duration
	interval int // auto-save every N ticks, 0 disables

	tickCount int
	pending   []saveJob

	queue chan saveJob
	wg    sync.WaitGroup
}

func NewPersistenceSystem(bus *event.Bus, players *world.State, saver PlayerSaver, log *zap.Logger, intervalTicks int, timeout time.Duration) *PersistenceSystem {
	s := &PersistenceSystem{
		players:  players,
		saver:    saver,
		log:      log,
		timeout:  timeout,
		interval: intervalTicks,
		queue:    make(chan saveJob, saveQueueSize),
	}
	event.Subscribe(bus, func(e event.PlayerLeft) {
		if d, ok := e.Snapshot.(world.PlayerData); ok {
			s.pending = append(s.pending, saveJob{data: d})
		}
	})
	event.Subscribe(bus, func(e event.PlayerEntered) {
		s.pending = append(s.pending, saveJob{
			data:  world.PlayerData{GUID: e.GUID, Name: e.Name, LastLogin: e.At},
			login: true,
		})
	})
	s.wg.Add(1)
	go s.worker()
	return s
}

func (s *PersistenceSystem) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *PersistenceSystem) Update(_ time.Duration) {
	s.tickCount++
	if s.interval > 0 && s.tickCount >= s.interval {
		s.tickCount = 0
		s.snapshotOnline()
	}
	s.handOff()
}

// SaveAllPlayers queues every online player and waits until the worker has
// written everything. Called once during shutdown, after the last tick.
func (s *PersistenceSystem) SaveAllPlayers() {
	s.snapshotOnline()
	for _, d := range s.pending {
		s.queue <- d
	}
	s.pending = nil
	close(s.queue)
	s.wg.Wait()
}

func (s *PersistenceSystem) snapshotOnline() {
	s.players.AllPlayers(func(p *world.Player) {
		s.pending = append(s.pending, saveJob{data: p.Snapshot()})
	})
}

// handOff moves pending snapshots to the worker without blocking the tick.
// Whatever does not fit waits for the next tick.
func (s *PersistenceSystem) handOff() {
	sent := 0
loop:
	for _, d := range s.pending {
		select {
		case s.queue <- d:
			sent++
		default:
			break loop
		}
	}
	if sent < len(s.pending) {
		s.log.Warn("save queue full", zap.Int("waiting", len(s.pending)-sent))
	}
	s.pending = append(s.pending[:0], s.pending[sent:]...)
}

func (s *PersistenceSystem) worker() {
	defer s.wg.Done()
	for job := range s.queue {
		d := job.data
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		if job.login {
			if err := s.saver.MarkLogin(ctx, d.GUID, d.LastLogin); err != nil {
				s.log.Error("stamp login failed", zap.String("name", d.Name), zap.Error(err))
			}
		} else if err := s.saver.Save(ctx, d); err != nil {
			s.log.Error("save player failed", zap.String("name", d.Name), zap.Error(err))
		} else {
			s.log.Debug("player saved", zap.String("name", d.Name))
		}
		cancel()
	}
}
