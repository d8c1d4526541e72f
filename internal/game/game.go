// Package game is the minimal game-logic facade. Every method mutates the
// world and must run on the dispatcher goroutine.
package game

import (
	"errors"
	"time"

	"github.com/otgo/server/internal/core/event"
	"github.com/otgo/server/internal/data"
	"github.com/otgo/server/internal/world"
	"go.uber.org/zap"
)

// State is the server-wide game state checked at login.
type State int32

const (
	StateStartup State = iota
	StateNormal
	StateClosed // only staff may enter
	StateClosing
	StateShutdown
)

// Scheduler delays work onto the dispatcher.
type Scheduler interface {
	AddEvent(delay time.Duration, fn func()) uint64
	StopEvent(id uint64) bool
}

// Failures shown to players as a status message.
var (
	ErrNotPossible      = errors.New("Sorry, not possible.")
	ErrNotEnoughRoom    = errors.New("There is not enough room.")
	ErrTooFarAway       = errors.New("Too far away.")
	ErrCannotUse        = errors.New("You cannot use this object.")
	ErrNotMoveable      = errors.New("You cannot move this object.")
	ErrCannotLogoutHere = errors.New("You can not logout here.")
	ErrLogoutInFight    = errors.New("You may not logout during or immediately after a fight!")
	ErrProtectionZone   = errors.New("You may not attack a person in a protection zone.")
	ErrAttackSelf       = errors.New("You may not attack yourself.")
	ErrCannotAttack     = errors.New("You may not attack this creature.")
	ErrTempleWrong      = errors.New("Temple position is wrong. Contact the administrator.")
)

// Options are the tunables the game reads from configuration.
type Options struct {
	FreePremium   bool
	StepInterval  time.Duration
	FightDuration time.Duration
	Clock         func() time.Time // nil means time.Now
}

// Game owns the world on the dispatcher goroutine.
type Game struct {
	Map     *world.Map
	Players *world.State
	Items   *data.ItemTable

	hooks Hooks
	sched Scheduler
	bus   *event.Bus
	state State
	opts  Options
	now   func() time.Time
	log   *zap.Logger
}

func New(m *world.Map, items *data.ItemTable, hooks Hooks, sched Scheduler, bus *event.Bus, opts Options, log *zap.Logger) *Game {
	if hooks == nil {
		hooks = AllowAll{}
	}
	if opts.StepInterval <= 0 {
		opts.StepInterval = 400 * time.Millisecond
	}
	if opts.FightDuration <= 0 {
		opts.FightDuration = 60 * time.Second
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	return &Game{
		Map:     m,
		Players: world.NewState(),
		Items:   items,
		hooks:   hooks,
		sched:   sched,
		bus:     bus,
		state:   StateStartup,
		opts:    opts,
		now:     now,
		log:     log,
	}
}

func (g *Game) State() State       { return g.state }
func (g *Game) SetState(s State)   { g.state = s }
func (g *Game) Hooks() Hooks       { return g.hooks }
func (g *Game) Options() Options   { return g.opts }
func (g *Game) Now() time.Time     { return g.now() }
func (g *Game) PlayersOnline() int { return g.Players.PlayerCount() }

// SpawnAll places the static npcs and monsters from map data.
func (g *Game) SpawnAll(spawns []data.Spawn) int {
	placed := 0
	for _, s := range spawns {
		kind := world.KindMonster
		if s.Kind == "npc" {
			kind = world.KindNPC
		}
		n := world.NewNpc(kind, s.Name, s.Pos, s.Direction, s.Health, s.Speed, world.Outfit{
			LookType: s.LookType, Head: s.Head, Body: s.Body, Legs: s.Legs, Feet: s.Feet,
		})
		g.Players.AssignNpcID(n)
		if !g.PlaceCreature(n, s.Pos, false, false) {
			g.log.Warn("spawn blocked", zap.String("name", s.Name), zap.Stringer("pos", s.Pos))
			continue
		}
		placed++
	}
	return placed
}
