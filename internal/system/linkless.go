package system

import (
	"time"

	coresys "github.com/otgo/server/internal/core/system"
	"github.com/otgo/server/internal/game"
	"github.com/otgo/server/internal/world"
	"go.uber.org/zap"
)

// LinklessSystem removes players whose connection dropped during a fight
// once the fight is over. Phase 1 (Update).
type LinklessSystem struct {
	game *game.Game
	log  *zap.Logger
}

func NewLinklessSystem(g *game.Game, log *zap.Logger) *LinklessSystem {
	return &LinklessSystem{game: g, log: log}
}

func (s *LinklessSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *LinklessSystem) Update(_ time.Duration) {
	now := s.game.Now()
	var gone []*world.Player
	s.game.Players.AllPlayers(func(p *world.Player) {
		if p.Client == nil && !p.Connecting && !p.InFight(now) {
			gone = append(gone, p)
		}
	})
	for _, p := range gone {
		s.log.Debug("removing linkless player", zap.String("name", p.Name()))
		s.game.RemoveCreature(p, true)
	}
}
