// Package protocol implements the game and login protocols: the session
// state machine, packet parsing and the map/creature delta serializer.
package protocol

import (
	"context"
	"crypto/rsa"
	"time"

	"github.com/otgo/server/internal/admission"
	"github.com/otgo/server/internal/config"
	"github.com/otgo/server/internal/game"
	"github.com/otgo/server/internal/net/packet"
	"github.com/otgo/server/internal/persist"
	"github.com/otgo/server/internal/world"
	"go.uber.org/zap"
)

// Conn is the transport side of a session. *net.Connection implements it.
type Conn interface {
	Send(payload []byte)
	SendAndClose(payload []byte)
	Close()
	SetCipherKey(key [4]uint32) error
}

// Dispatcher runs world work on the game goroutine.
type Dispatcher interface {
	AddTask(fn func())
	AddTaskWithExpiry(ttl time.Duration, fn func())
}

// AccountStore authenticates accounts.
type AccountStore interface {
	Authenticate(ctx context.Context, name, password string) (*persist.Account, error)
	CharacterNames(ctx context.Context, accountID uint32) ([]string, error)
}

// BanStore answers ban questions. Nil bans mean "not banned".
type BanStore interface {
	IPBan(ctx context.Context, ip string) (*persist.Ban, error)
	AccountBan(ctx context.Context, accountID uint32) (*persist.Ban, error)
	IsNamelocked(ctx context.Context, playerID uint32) (bool, error)
}

// PlayerStore loads characters.
type PlayerStore interface {
	LoadByName(ctx context.Context, accountID uint32, name string) (*world.PlayerData, error)
}

// Deps holds the collaborators shared by every session.
type Deps struct {
	Game       *game.Game
	Dispatcher Dispatcher
	Scheduler  game.Scheduler
	Admission  *admission.Queue
	Accounts   AccountStore
	Bans       BanStore
	Players    PlayerStore
	Sessions   *Sessions
	Handlers   *packet.Registry[*GameSession]
	Key        *rsa.PrivateKey
	Config     *config.Config
	Log        *zap.Logger

	now func() time.Time
}

// Now is the clock sessions use; tests replace it.
func (d *Deps) Now() time.Time {
	if d.now != nil {
		return d.now()
	}
	return time.Now()
}

// Sessions are the game sessions that own a player. Dispatcher only.
type Sessions struct {
	byConn map[uint64]*GameSession
}

func NewSessions() *Sessions {
	return &Sessions{byConn: make(map[uint64]*GameSession)}
}

func (s *Sessions) add(gs *GameSession)    { s.byConn[gs.connID] = gs }
func (s *Sessions) remove(gs *GameSession) { delete(s.byConn, gs.connID) }

func (s *Sessions) Len() int { return len(s.byConn) }

// Each visits every live session.
func (s *Sessions) Each(fn func(*GameSession)) {
	for _, gs := range s.byConn {
		fn(gs)
	}
}
