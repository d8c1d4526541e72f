package game

import (
	"github.com/otgo/server/internal/core/event"
	"github.com/otgo/server/internal/geo"
	"github.com/otgo/server/internal/world"
	"go.uber.org/zap"
)

// PlaceCreature puts c on the map and announces it to everyone who can see it.
func (g *Game) PlaceCreature(c world.Creature, pos geo.Position, extended, forced bool) bool {
	if !g.Map.PlaceCreature(c, pos, extended, forced) {
		return false
	}
	t := g.Map.Tile(c.Position())
	for _, v := range g.Map.SpectatorPlayers(c.Position()) {
		if v.Client == nil || !v.CanSeeCreature(c) {
			continue
		}
		v.Client.SendAddCreature(c, c.Position(), t.StackPosOfCreature(v, c), true)
	}
	return true
}

// PlacePlayer admits p into the world at its last position, or the temple
// when that is blocked. The login hook runs first.
func (g *Game) PlacePlayer(p *world.Player, connID uint64) error {
	if d := g.hooks.OnLogin(p); !d.Allow {
		return denied(d, "You may not login right now.")
	}
	g.Players.AssignPlayerID(p)
	// Register before placing so the player's own client gets the appear.
	g.Players.AddPlayer(p)

	placed := p.LoginPosition != (geo.Position{}) && g.PlaceCreature(p, p.LoginPosition, false, false)
	if !placed {
		temple := p.TemplePosition
		if temple == (geo.Position{}) {
			temple = g.Map.Temple
		}
		placed = g.PlaceCreature(p, temple, true, true)
	}
	if !placed {
		g.Players.RemovePlayer(p)
		return ErrTempleWrong
	}

	p.LastLogin = g.now()
	event.Emit(g.bus, event.PlayerEntered{
		PlayerID:  p.ID(),
		GUID:      p.GUID,
		Name:      p.Name(),
		AccountID: p.AccountID,
		ConnID:    connID,
		Position:  p.Position(),
		At:        p.LastLogin,
	})
	g.log.Info("player entered",
		zap.String("name", p.Name()),
		zap.Stringer("pos", p.Position()),
		zap.Int("online", g.Players.PlayerCount()),
	)
	return nil
}

// RemoveCreature takes c out of the world. Players are unregistered and a
// snapshot is handed to the persistence subscribers.
func (g *Game) RemoveCreature(c world.Creature, isLogout bool) {
	if c.Removed() {
		return
	}
	pos := c.Position()
	t := g.Map.Tile(pos)
	if t != nil {
		for _, v := range g.Map.SpectatorPlayers(pos) {
			if v.Client == nil || v == c || !v.CanSeeCreature(c) {
				continue
			}
			if sp := t.StackPosOfCreature(v, c); sp >= 0 {
				v.Client.SendRemoveTileThing(pos, sp)
			}
			if isLogout {
				v.Client.SendMagicEffect(pos, world.EffectPoff)
			}
		}
	}
	g.Map.RemoveCreature(c)

	p, ok := c.(*world.Player)
	if !ok {
		return
	}
	g.stopWalk(p)
	p.AttackTarget, p.FollowTarget = 0, 0
	p.LastLogout = g.now()
	g.Players.RemovePlayer(p)
	// Anyone chasing the player loses the target.
	g.Players.AllPlayers(func(o *world.Player) {
		if o.AttackTarget == p.ID() {
			o.AttackTarget = 0
			if o.Client != nil {
				o.Client.SendCancelTarget()
			}
		}
		if o.FollowTarget == p.ID() {
			o.FollowTarget = 0
		}
	})
	event.Emit(g.bus, event.PlayerLeft{
		PlayerID: p.ID(),
		Name:     p.Name(),
		Snapshot: p.Snapshot(),
	})
	g.log.Info("player left", zap.String("name", p.Name()), zap.Int("online", g.Players.PlayerCount()))
}

// InternalMoveCreature moves c to the tile and notifies the union of old and
// new spectators with per-viewer stack positions.
func (g *Game) InternalMoveCreature(c world.Creature, to *world.Tile, teleport bool) {
	oldPos := c.Position()
	from := g.Map.Tile(oldPos)
	newPos := to.Position()

	viewers := g.Map.SpectatorPlayers(oldPos)
	seen := make(map[uint32]struct{}, len(viewers))
	for _, v := range viewers {
		seen[v.ID()] = struct{}{}
	}
	for _, v := range g.Map.SpectatorPlayers(newPos) {
		if _, ok := seen[v.ID()]; !ok {
			viewers = append(viewers, v)
		}
	}
	oldStack := make([]int, len(viewers))
	for i, v := range viewers {
		oldStack[i] = -1
		if from != nil {
			oldStack[i] = from.StackPosOfCreature(v, c)
		}
	}

	g.Map.MoveCreature(c, to)
	if !teleport && oldPos.Z == newPos.Z {
		if d, ok := stepFacing(oldPos, newPos); ok {
			c.SetDirection(d)
		}
	}

	for i, v := range viewers {
		if v.Client == nil || !v.CanSeeCreature(c) {
			continue
		}
		v.Client.SendMoveCreature(c, newPos, to.StackPosOfCreature(v, c), oldPos, oldStack[i], teleport)
	}
}

// stepFacing is the direction a creature faces after stepping from a to b.
// Horizontal movement wins over vertical.
func stepFacing(a, b geo.Position) (geo.Direction, bool) {
	var d geo.Direction
	ok := false
	switch {
	case b.Y < a.Y:
		d, ok = geo.North, true
	case b.Y > a.Y:
		d, ok = geo.South, true
	}
	switch {
	case b.X > a.X:
		d, ok = geo.East, true
	case b.X < a.X:
		d, ok = geo.West, true
	}
	return d, ok
}

// Teleport jumps c to the nearest free tile around pos.
func (g *Game) Teleport(c world.Creature, pos geo.Position) error {
	if c.Position() == pos {
		return nil
	}
	t := g.Map.FindFreeTile(pos, true, false)
	if t == nil {
		return ErrNotEnoughRoom
	}
	g.InternalMoveCreature(c, t, true)
	g.effect(t.Position(), world.EffectTeleport)
	return nil
}

// Disconnected detaches a dropped client. The player stays in the world
// while in fight; LinklessSystem removes it later.
func (g *Game) Disconnected(p *world.Player) {
	p.Client = nil
	if p.Removed() || p.Connecting {
		return
	}
	g.stopWalk(p)
	if p.InFight(g.now()) {
		g.log.Debug("player linkless", zap.String("name", p.Name()))
		return
	}
	g.RemoveCreature(p, true)
}

// Kick disconnects p's client and removes it from the world.
func (g *Game) Kick(p *world.Player) {
	if p.Client != nil {
		p.Client.Logout(true, true)
	}
	p.Client = nil
	g.RemoveCreature(p, true)
}

// ChangeHealth sets c's health and refreshes every viewer's health bar.
func (g *Game) ChangeHealth(c world.Creature, health int32) {
	c.SetHealth(health)
	for _, v := range g.Map.SpectatorPlayers(c.Position()) {
		if v.Client == nil || !v.CanSeeCreature(c) {
			continue
		}
		v.Client.SendCreatureHealth(c)
		if v == c {
			v.Client.SendStats()
		}
	}
}

func (g *Game) effect(pos geo.Position, effect uint8) {
	for _, v := range g.Map.SpectatorPlayers(pos) {
		if v.Client != nil {
			v.Client.SendMagicEffect(pos, effect)
		}
	}
}

func denied(d Decision, fallback string) error {
	if d.Message != "" {
		return &DeniedError{Message: d.Message}
	}
	return &DeniedError{Message: fallback}
}

// DeniedError is a hook veto carrying the text shown to the player.
type DeniedError struct {
	Message string
}

func (e *DeniedError) Error() string { return e.Message }
