package game

import (
	"time"

	"github.com/otgo/server/internal/geo"
	"github.com/otgo/server/internal/world"
)

// PlayerMove steps p one tile in dir. Stairs carry the player to the portal
// destination; teleports jump after the step. On failure the player gets a
// cancel-walk and the reason.
func (g *Game) PlayerMove(p *world.Player, dir geo.Direction) error {
	err := g.move(p, dir)
	if err != nil {
		g.stopWalk(p)
		g.cancel(p, err)
		if p.Client != nil {
			p.Client.SendCancelWalk()
		}
	}
	return err
}

func (g *Game) move(p *world.Player, dir geo.Direction) error {
	if p.IsDead() || p.Removed() || !dir.Valid() {
		return ErrNotPossible
	}
	dst := p.Position().Step(dir)
	t := g.Map.Tile(dst)
	if t == nil || t.Ground() == nil {
		return ErrNotPossible
	}
	if t.Portal != nil && !t.Portal.Teleport {
		stairs := g.Map.FindFreeTile(t.Portal.Dst, false, false)
		if stairs == nil {
			return ErrNotEnoughRoom
		}
		g.InternalMoveCreature(p, stairs, false)
		p.SetDirection(dir.Facing())
		return nil
	}
	if t.BlocksSolid() {
		return ErrNotPossible
	}
	if len(t.Creatures()) > 0 {
		return ErrNotEnoughRoom
	}
	g.InternalMoveCreature(p, t, false)
	if t.Portal != nil {
		return g.Teleport(p, t.Portal.Dst)
	}
	return nil
}

// PlayerAutoWalk follows path one step per step interval, starting now.
func (g *Game) PlayerAutoWalk(p *world.Player, path []geo.Direction) {
	g.stopWalk(p)
	if len(path) == 0 {
		return
	}
	p.WalkPath = append(p.WalkPath[:0], path...)
	g.walkStep(p)
}

// PlayerStopAutoWalk drops the remaining path.
func (g *Game) PlayerStopAutoWalk(p *world.Player) {
	g.stopWalk(p)
}

func (g *Game) walkStep(p *world.Player) {
	p.WalkEvent = 0
	if len(p.WalkPath) == 0 || p.Removed() {
		return
	}
	dir := p.WalkPath[0]
	p.WalkPath = p.WalkPath[1:]
	if err := g.PlayerMove(p, dir); err != nil {
		return
	}
	if len(p.WalkPath) > 0 && g.sched != nil {
		p.WalkEvent = g.sched.AddEvent(g.stepDuration(p), func() { g.walkStep(p) })
	}
}

func (g *Game) stopWalk(p *world.Player) {
	if p.WalkEvent != 0 && g.sched != nil {
		g.sched.StopEvent(p.WalkEvent)
	}
	p.WalkEvent = 0
	p.WalkPath = p.WalkPath[:0]
}

// stepDuration scales the configured interval by speed, 220 being the base.
func (g *Game) stepDuration(p *world.Player) time.Duration {
	speed := time.Duration(max(p.Speed(), 1))
	return max(g.opts.StepInterval*220/speed, 50*time.Millisecond)
}
