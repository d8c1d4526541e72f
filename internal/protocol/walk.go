package protocol

import (
	"github.com/otgo/server/internal/geo"
)

// predictiveWalk tracks the client's speculative movement. The id is
// bumped whenever the server rejects a predicted step; acknowledgements
// carrying an older id are ignored.
type predictiveWalk struct {
	id        uint32
	cancelled bool // a cancel-walk already went out for the current step
}

// resetWalk starts a new prediction epoch, after the client's view of its
// own position was replaced.
func (s *GameSession) resetWalk() {
	s.walk.id++
	s.sendWalkID()
}

// invalidateWalk rolls back the client's prediction.
func (s *GameSession) invalidateWalk() {
	if !s.walk.cancelled {
		s.SendCancelWalk()
	}
	s.walk.id++
	s.sendWalkID()
}

// predictiveStep executes a step the client already showed, checking that
// it ended where the client predicted.
func (s *GameSession) predictiveStep(id uint32, dir geo.Direction, predicted geo.Position) {
	if id < s.walk.id {
		return
	}
	p := s.player
	s.walk.cancelled = false
	err := s.deps.Game.PlayerMove(p, dir)
	if err != nil || p.Position() != predicted {
		s.invalidateWalk()
	}
}
