package game

import (
	"fmt"
	"strings"

	"github.com/otgo/server/internal/geo"
	"github.com/otgo/server/internal/world"
)

// Ranges for throwing and hearing speech.
const (
	throwRange     = 7
	sayRangeX      = 7
	sayRangeY      = 5
	yellRangeX     = 18
	yellRangeY     = 14
	whisperPlainly = 1
)

func (g *Game) cancel(p *world.Player, err error) {
	if p.Client != nil && err != nil {
		p.Client.SendTextMessage(world.MessageStatusSmall, err.Error())
	}
}

// Turn faces p toward dir.
func (g *Game) Turn(p *world.Player, dir geo.Direction) {
	if !dir.Valid() || dir.Diagonal() || p.Direction() == dir {
		return
	}
	p.SetDirection(dir)
	t := g.Map.Tile(p.Position())
	for _, v := range g.Map.SpectatorPlayers(p.Position()) {
		if v.Client == nil || !v.CanSeeCreature(p) {
			continue
		}
		v.Client.SendCreatureTurn(p, t.StackPosOfCreature(v, p))
	}
}

// Say broadcasts speech. Whispers reach adjacent players in full and the
// rest of the floor as "pspsps"; yells are uppercased and carry further.
func (g *Game) Say(p *world.Player, speakType uint8, text string) {
	if text == "" {
		return
	}
	if d := g.hooks.OnSay(p, speakType, text); !d.Allow {
		if d.Message != "" {
			g.cancel(p, &DeniedError{Message: d.Message})
		}
		return
	}
	rx, ry := sayRangeX, sayRangeY
	switch speakType {
	case world.SpeakYell:
		text = strings.ToUpper(text)
		rx, ry = yellRangeX, yellRangeY
	case world.SpeakWhisper, world.SpeakSay:
	default:
		speakType = world.SpeakSay
	}
	pos := p.Position()
	for _, v := range g.Map.SpectatorPlayers(pos) {
		if v.Client == nil {
			continue
		}
		vp := v.Position()
		if vp.Z != pos.Z || vp.DistanceX(pos) > rx || vp.DistanceY(pos) > ry {
			continue
		}
		if speakType == world.SpeakWhisper && vp.Chebyshev(pos) > whisperPlainly {
			v.Client.SendCreatureSay(p, speakType, "pspsps")
			continue
		}
		v.Client.SendCreatureSay(p, speakType, text)
	}
}

// LookAt describes the thing at pos/stackPos to p.
func (g *Game) LookAt(p *world.Player, pos geo.Position, stackPos int) {
	t := g.Map.Tile(pos)
	if t == nil || p.Client == nil {
		return
	}
	it, c := t.ThingAt(p, stackPos)
	var text string
	switch {
	case c != nil:
		text = describeCreature(p, c)
	case it != nil:
		text = describeItem(it)
	default:
		return
	}
	p.Client.SendTextMessage(world.MessageInfoDesc, text)
}

func describeCreature(viewer *world.Player, c world.Creature) string {
	if c.ID() == viewer.ID() {
		return "You see yourself."
	}
	if o, ok := c.(*world.Player); ok {
		return fmt.Sprintf("You see %s (Level %d).", o.Name(), o.Level)
	}
	return fmt.Sprintf("You see %s.", article(c.Name()))
}

func describeItem(it *world.Item) string {
	name := it.Type.Name
	if name == "" {
		name = fmt.Sprintf("item of type %d", it.Type.ID)
	}
	var b strings.Builder
	if it.Type.Stackable && it.Count > 1 {
		fmt.Fprintf(&b, "You see %d %ss.", it.Count, name)
	} else {
		fmt.Fprintf(&b, "You see %s.", article(name))
	}
	if it.Charges > 0 {
		fmt.Fprintf(&b, " It has %d charges left.", it.Charges)
	}
	if it.Type.Description != "" {
		b.WriteString("\n")
		b.WriteString(it.Type.Description)
	}
	return b.String()
}

func article(name string) string {
	if name == "" {
		return name
	}
	switch name[0] {
	case 'a', 'e', 'i', 'o', 'u', 'A', 'E', 'I', 'O', 'U':
		return "an " + name
	}
	return "a " + name
}

// UseItem uses the item at pos/stackPos.
func (g *Game) UseItem(p *world.Player, pos geo.Position, stackPos int) error {
	it, err := g.usable(p, pos, stackPos)
	if err == nil {
		if d := g.hooks.OnUse(p, it, pos); !d.Allow {
			err = denied(d, ErrCannotUse.Error())
		}
	}
	g.cancel(p, err)
	return err
}

// UseItemEx uses the item at from on the target position.
func (g *Game) UseItemEx(p *world.Player, from geo.Position, fromStack int, to geo.Position) error {
	it, err := g.usable(p, from, fromStack)
	if err == nil && g.Map.Tile(to) == nil {
		err = ErrNotPossible
	}
	if err == nil {
		if d := g.hooks.OnUse(p, it, to); !d.Allow {
			err = denied(d, ErrCannotUse.Error())
		}
	}
	g.cancel(p, err)
	return err
}

func (g *Game) usable(p *world.Player, pos geo.Position, stackPos int) (*world.Item, error) {
	t := g.Map.Tile(pos)
	if t == nil {
		return nil, ErrNotPossible
	}
	it, _ := t.ThingAt(p, stackPos)
	if it == nil {
		return nil, ErrNotPossible
	}
	if pos.Z != p.Position().Z || pos.Chebyshev(p.Position()) > 1 {
		return nil, ErrTooFarAway
	}
	if !it.Type.Useable {
		return nil, ErrCannotUse
	}
	return it, nil
}

// Throw moves count of the item at from/fromStack onto the tile at to.
func (g *Game) Throw(p *world.Player, from geo.Position, fromStack int, to geo.Position, count uint8) error {
	err := g.throw(p, from, fromStack, to, uint16(count))
	g.cancel(p, err)
	return err
}

func (g *Game) throw(p *world.Player, from geo.Position, fromStack int, to geo.Position, count uint16) error {
	src := g.Map.Tile(from)
	if src == nil {
		return ErrNotPossible
	}
	it, c := src.ThingAt(p, fromStack)
	if c != nil || it == nil || it == src.Ground() {
		return ErrNotMoveable
	}
	if !it.Type.Moveable {
		return ErrNotMoveable
	}
	me := p.Position()
	if from.Z != me.Z || from.Chebyshev(me) > 1 {
		return ErrTooFarAway
	}
	dst := g.Map.Tile(to)
	if dst == nil || dst.Ground() == nil || dst.BlocksSolid() {
		return ErrNotPossible
	}
	if to.Z != me.Z || to.Chebyshev(me) > throwRange {
		return ErrTooFarAway
	}
	if from == to {
		return nil
	}

	moved := it
	if it.Type.Stackable && count > 0 && count < it.Count {
		it.Count -= count
		moved = world.NewItem(it.Type, count)
		for _, v := range g.Map.SpectatorPlayers(from) {
			if v.Client != nil {
				v.Client.SendUpdateTileItem(from, src.StackPosOfItem(v, it), it)
			}
		}
	} else {
		viewers := g.Map.SpectatorPlayers(from)
		stacks := make([]int, len(viewers))
		for i, v := range viewers {
			stacks[i] = src.StackPosOfItem(v, it)
		}
		src.RemoveItem(it)
		for i, v := range viewers {
			if v.Client != nil && stacks[i] >= 0 {
				v.Client.SendRemoveTileThing(from, stacks[i])
			}
		}
	}

	dst.AddItem(moved)
	for _, v := range g.Map.SpectatorPlayers(to) {
		if v.Client != nil {
			v.Client.SendAddTileItem(to, dst.StackPosOfItem(v, moved), moved)
		}
	}
	return nil
}

// SetFightModes stores the client's combat stance.
func (g *Game) SetFightModes(p *world.Player, fight, chase, secure uint8) {
	p.FightMode, p.ChaseMode, p.SecureMode = fight, chase, secure
}

// Attack sets p's target. Zero clears it.
func (g *Game) Attack(p *world.Player, creatureID uint32) error {
	if creatureID == 0 {
		p.AttackTarget = 0
		return nil
	}
	err := g.attack(p, creatureID)
	if err != nil {
		p.AttackTarget = 0
		g.cancel(p, err)
		if p.Client != nil {
			p.Client.SendCancelTarget()
		}
	}
	return err
}

func (g *Game) attack(p *world.Player, creatureID uint32) error {
	target := g.Map.Creature(creatureID)
	if target == nil || !p.CanSeeCreature(target) {
		return ErrNotPossible
	}
	if target.ID() == p.ID() {
		return ErrAttackSelf
	}
	if target.Kind() == world.KindNPC {
		return ErrCannotAttack
	}
	if target.Kind() == world.KindPlayer && !p.HasFlag(world.FlagIgnoreProtectionZone) {
		if g.inProtectionZone(p.Position()) || g.inProtectionZone(target.Position()) {
			return ErrProtectionZone
		}
	}
	p.AttackTarget = creatureID
	p.FollowTarget = 0
	p.SetInFight(g.now(), g.opts.FightDuration)
	return nil
}

func (g *Game) inProtectionZone(pos geo.Position) bool {
	t := g.Map.Tile(pos)
	return t != nil && t.HasFlag(world.TileProtectionZone)
}

// Follow sets p's follow target. Zero clears it.
func (g *Game) Follow(p *world.Player, creatureID uint32) error {
	if creatureID == 0 {
		p.FollowTarget = 0
		return nil
	}
	target := g.Map.Creature(creatureID)
	if target == nil || target.ID() == p.ID() || !p.CanSeeCreature(target) {
		p.FollowTarget = 0
		if p.Client != nil {
			p.Client.SendCancelTarget()
		}
		return ErrNotPossible
	}
	p.FollowTarget = creatureID
	p.AttackTarget = 0
	return nil
}

// CancelAttackAndFollow clears both targets.
func (g *Game) CancelAttackAndFollow(p *world.Player) {
	p.AttackTarget, p.FollowTarget = 0, 0
	g.stopWalk(p)
}

// RequestOutfit opens the outfit dialog.
func (g *Game) RequestOutfit(p *world.Player) {
	if p.Client != nil {
		p.Client.SendOutfitWindow()
	}
}

// ChangeOutfit applies o and shows it to every viewer.
func (g *Game) ChangeOutfit(p *world.Player, o world.Outfit) {
	if o.LookType == 0 && o.LookTypeEx == 0 {
		return
	}
	p.SetOutfit(o)
	for _, v := range g.Map.SpectatorPlayers(p.Position()) {
		if v.Client != nil && v.CanSeeCreature(p) {
			v.Client.SendCreatureOutfit(p)
		}
	}
}

// UpdateTile resends the tile at pos to p.
func (g *Game) UpdateTile(p *world.Player, pos geo.Position) {
	if t := g.Map.Tile(pos); t != nil && p.Client != nil {
		p.Client.SendUpdateTile(t)
	}
}

// Logout removes p when the logout rules allow it. A forced logout skips
// every check.
func (g *Game) Logout(p *world.Player, displayEffect, forced bool) bool {
	if p.Removed() {
		return true
	}
	if !forced {
		if err := g.canLogout(p); err != nil {
			g.cancel(p, err)
			return false
		}
		if d := g.hooks.OnLogout(p); !d.Allow {
			if d.Message != "" {
				g.cancel(p, &DeniedError{Message: d.Message})
			}
			return false
		}
	}
	g.stopWalk(p)
	g.RemoveCreature(p, displayEffect)
	return true
}

func (g *Game) canLogout(p *world.Player) error {
	if p.IsStaff() || p.HasFlag(world.FlagCanLogoutAnytime) {
		return nil
	}
	t := g.Map.Tile(p.Position())
	if t != nil && t.HasFlag(world.TileNoLogout) {
		return ErrCannotLogoutHere
	}
	if (t == nil || !t.HasFlag(world.TileProtectionZone)) && p.InFight(g.now()) {
		return ErrLogoutInFight
	}
	return nil
}
