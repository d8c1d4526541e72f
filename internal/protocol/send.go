package protocol

import (
	"math"

	"github.com/otgo/server/internal/geo"
	"github.com/otgo/server/internal/net/packet"
	"github.com/otgo/server/internal/world"
)

// outfitEntry is one choice in the outfit dialog.
type outfitEntry struct {
	lookType uint16
	name     string
}

var (
	maleOutfits = []outfitEntry{
		{128, "Citizen"}, {129, "Hunter"}, {130, "Mage"}, {131, "Knight"},
	}
	femaleOutfits = []outfitEntry{
		{136, "Citizen"}, {137, "Hunter"}, {138, "Mage"}, {139, "Knight"},
	}
)

// sexFemale matches the stored sex column.
const sexFemale = 0

func outfitsFor(sex uint8) []outfitEntry {
	if sex == sexFemale {
		return femaleOutfits
	}
	return maleOutfits
}

// outfitAllowed reports whether a player of sex may wear lookType.
func outfitAllowed(sex uint8, lookType uint16) bool {
	for _, o := range outfitsFor(sex) {
		if o.lookType == lookType {
			return true
		}
	}
	return false
}

// SendAddCreature shows c at pos. For the client's own player this is the
// appear sequence: self id, the full map and the status packets.
func (s *GameSession) SendAddCreature(c world.Creature, pos geo.Position, stackPos int, isLogin bool) {
	me := s.player
	if me == nil {
		return
	}
	if c.ID() == me.ID() {
		s.sendSelfAppear(pos, isLogin)
		return
	}
	if !me.CanSeeCreature(c) || !s.canSee(pos) || stackPos < 0 || stackPos >= maxStackPos {
		return
	}
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_ADD_TILE_THING)
	w.WritePosition(pos)
	w.WriteC(byte(stackPos))
	s.writeCreature(w, c)
	s.write(w)
	if isLogin && c.Kind() == world.KindPlayer {
		s.SendMagicEffect(pos, world.EffectTeleport)
	}
}

func (s *GameSession) sendSelfAppear(pos geo.Position, isLogin bool) {
	me := s.player
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_SELF_APPEAR)
	w.WriteD(me.ID())
	w.WriteH(0x32) // client beat duration
	if me.HasFlag(world.FlagCanReportBugs) {
		w.WriteC(1)
	} else {
		w.WriteC(0)
	}
	if me.IsStaff() {
		w.WriteC(packet.S_OPCODE_GM_ACTIONS)
		for range 32 {
			w.WriteC(0xFF)
		}
	}
	s.write(w)

	s.sendMapDescription(pos)
	if isLogin {
		s.SendMagicEffect(pos, world.EffectTeleport)
	}
	s.SendStats()
	s.SendSkills()
	s.SendIcons(0)
	s.resetWalk()
}

// sendMapDescription sends the whole window around pos.
func (s *GameSession) sendMapDescription(pos geo.Position) {
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_MAP_DESCRIPTION)
	w.WritePosition(pos)
	a := s.aware
	s.writeMapDescription(w, int(pos.X)-a.left(), int(pos.Y)-a.top(), pos.Z, a.cols(), a.rows())
	s.write(w)
}

// sendAwareRange confirms a window change and resends the map.
func (s *GameSession) sendAwareRange() {
	pos := s.player.Position()
	a := s.aware
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_AWARE_RANGE)
	w.WriteC(byte(a.width))
	w.WriteC(byte(a.height))
	w.WritePosition(pos)
	s.writeMapDescription(w, int(pos.X)-a.left(), int(pos.Y)-a.top(), pos.Z, a.cols(), a.rows())
	s.write(w)
}

func (s *GameSession) SendRemoveTileThing(pos geo.Position, stackPos int) {
	if !s.canSee(pos) || stackPos < 0 || stackPos >= maxStackPos {
		return
	}
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_REMOVE_TILE_THING)
	s.writeRemove(w, pos, stackPos)
	s.write(w)
}

func (s *GameSession) writeRemove(w *packet.Writer, pos geo.Position, stackPos int) {
	w.WritePosition(pos)
	w.WriteC(byte(stackPos))
}

// SendMoveCreature updates the client after c moved. Steps of the
// client's own player scroll the window by one strip; anything longer is
// sent as a fresh map.
func (s *GameSession) SendMoveCreature(c world.Creature, newPos geo.Position, newStackPos int, oldPos geo.Position, oldStackPos int, teleport bool) {
	me := s.player
	if me == nil {
		return
	}
	if c.ID() == me.ID() {
		s.sendSelfMove(newPos, oldPos, oldStackPos, teleport)
		return
	}
	if !me.CanSeeCreature(c) {
		return
	}

	seeOld, seeNew := s.canSee(oldPos), s.canSee(newPos)
	switch {
	case seeOld && seeNew:
		if teleport || (oldPos.Z == geo.SurfaceLayer && newPos.Z > geo.SurfaceLayer) || oldStackPos >= maxStackPos {
			s.SendRemoveTileThing(oldPos, oldStackPos)
			s.SendAddCreature(c, newPos, newStackPos, false)
			return
		}
		w := packet.NewWriterWithOpcode(packet.S_OPCODE_MOVE_CREATURE)
		s.writeRemove(w, oldPos, oldStackPos)
		w.WritePosition(newPos)
		s.write(w)
	case seeOld:
		s.SendRemoveTileThing(oldPos, oldStackPos)
	case seeNew:
		s.SendAddCreature(c, newPos, newStackPos, false)
	}
}

func (s *GameSession) sendSelfMove(newPos, oldPos geo.Position, oldStackPos int, teleport bool) {
	far := oldPos.DistanceX(newPos) > 1 || oldPos.DistanceY(newPos) > 1 || oldPos.DistanceZ(newPos) > 1
	if teleport || far || oldStackPos >= maxStackPos {
		s.SendRemoveTileThing(oldPos, oldStackPos)
		s.sendMapDescription(newPos)
		return
	}

	w := packet.NewWriter()
	if oldPos.Z == geo.SurfaceLayer && newPos.Z > geo.SurfaceLayer {
		w.WriteC(packet.S_OPCODE_REMOVE_TILE_THING)
		s.writeRemove(w, oldPos, oldStackPos)
	} else {
		w.WriteC(packet.S_OPCODE_MOVE_CREATURE)
		s.writeRemove(w, oldPos, oldStackPos)
		w.WritePosition(newPos)
	}

	switch {
	case newPos.Z > oldPos.Z:
		s.writeFloorDown(w, newPos, oldPos)
	case newPos.Z < oldPos.Z:
		s.writeFloorUp(w, newPos, oldPos)
	}

	a := s.aware
	ox, oy := int(oldPos.X), int(oldPos.Y)
	nx, ny := int(newPos.X), int(newPos.Y)
	switch {
	case oy > ny:
		w.WriteC(packet.S_OPCODE_MAP_NORTH)
		s.writeMapDescription(w, ox-a.left(), ny-a.top(), newPos.Z, a.cols(), 1)
	case oy < ny:
		w.WriteC(packet.S_OPCODE_MAP_SOUTH)
		s.writeMapDescription(w, ox-a.left(), ny+a.bottom(), newPos.Z, a.cols(), 1)
	}
	switch {
	case ox < nx:
		w.WriteC(packet.S_OPCODE_MAP_EAST)
		s.writeMapDescription(w, nx+a.right(), ny-a.top(), newPos.Z, 1, a.rows())
	case ox > nx:
		w.WriteC(packet.S_OPCODE_MAP_WEST)
		s.writeMapDescription(w, nx-a.left(), ny-a.top(), newPos.Z, 1, a.rows())
	}
	s.write(w)
}

// writeFloorUp sends the floors that come into view climbing one floor.
// Reaching the surface reveals everything above it.
func (s *GameSession) writeFloorUp(w *packet.Writer, newPos, oldPos geo.Position) {
	a := s.aware
	x, y := int(oldPos.X)-a.left(), int(oldPos.Y)-a.top()
	w.WriteC(packet.S_OPCODE_FLOOR_CHANGE_UP)

	skip := -1
	switch {
	case newPos.Z == geo.SurfaceLayer:
		for z := geo.SurfaceLayer - 2; z >= 0; z-- {
			skip = s.writeFloorDescription(w, x, y, uint8(z), a.cols(), a.rows(), geo.SurfaceLayer+1-z, skip)
		}
	case newPos.Z > geo.SurfaceLayer:
		skip = s.writeFloorDescription(w, x, y, oldPos.Z-3, a.cols(), a.rows(), 3, skip)
	}
	if skip >= 0 {
		w.WriteC(byte(skip))
		w.WriteC(packet.TileEnd)
	}

	w.WriteC(packet.S_OPCODE_MAP_WEST)
	s.writeMapDescription(w, x, y+1, newPos.Z, 1, a.rows())
	w.WriteC(packet.S_OPCODE_MAP_NORTH)
	s.writeMapDescription(w, x, y, newPos.Z, a.cols(), 1)
}

// writeFloorDown sends the floors that come into view descending one
// floor. Going underground reveals the three floors below the surface.
func (s *GameSession) writeFloorDown(w *packet.Writer, newPos, oldPos geo.Position) {
	a := s.aware
	x, y := int(oldPos.X)-a.left(), int(oldPos.Y)-a.top()
	w.WriteC(packet.S_OPCODE_FLOOR_CHANGE_DOWN)

	skip := -1
	switch {
	case newPos.Z == geo.SurfaceLayer+1:
		for i := range 3 {
			skip = s.writeFloorDescription(w, x, y, newPos.Z+uint8(i), a.cols(), a.rows(), -i-1, skip)
		}
	case newPos.Z > geo.SurfaceLayer+1 && int(newPos.Z) < geo.MaxLayers-2:
		skip = s.writeFloorDescription(w, x, y, newPos.Z+2, a.cols(), a.rows(), -3, skip)
	}
	if skip >= 0 {
		w.WriteC(byte(skip))
		w.WriteC(packet.TileEnd)
	}

	w.WriteC(packet.S_OPCODE_MAP_EAST)
	s.writeMapDescription(w, int(oldPos.X)+a.right(), y-1, newPos.Z, 1, a.rows())
	w.WriteC(packet.S_OPCODE_MAP_SOUTH)
	s.writeMapDescription(w, x, int(oldPos.Y)+a.bottom(), newPos.Z, a.cols(), 1)
}

func (s *GameSession) SendCreatureTurn(c world.Creature, stackPos int) {
	if s.player == nil || !s.canSeeCreature(c) || stackPos < 0 || stackPos >= maxStackPos {
		return
	}
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_UPDATE_TILE_THING)
	w.WritePosition(c.Position())
	w.WriteC(byte(stackPos))
	w.WriteH(0x63)
	w.WriteD(c.ID())
	w.WriteC(byte(c.Direction()))
	s.write(w)
}

func (s *GameSession) SendCreatureSay(c world.Creature, speakType uint8, text string) {
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_CREATURE_SAY)
	w.WriteD(0) // statement id
	w.WriteS(c.Name())
	var level uint16
	if p, ok := c.(*world.Player); ok {
		level = p.Level
	}
	w.WriteH(level)
	w.WriteC(speakType)
	w.WritePosition(c.Position())
	w.WriteS(text)
	s.write(w)
}

func (s *GameSession) SendCreatureHealth(c world.Creature) {
	if s.player == nil || !s.canSeeCreature(c) {
		return
	}
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_CREATURE_HEALTH)
	w.WriteD(c.ID())
	w.WriteC(c.HealthPercent())
	s.write(w)
}

func (s *GameSession) SendCreatureOutfit(c world.Creature) {
	if s.player == nil || !s.canSeeCreature(c) {
		return
	}
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_CREATURE_OUTFIT)
	w.WriteD(c.ID())
	writeOutfit(w, c.Outfit())
	s.write(w)
}

func (s *GameSession) SendAddTileItem(pos geo.Position, stackPos int, it *world.Item) {
	s.sendTileItem(packet.S_OPCODE_ADD_TILE_THING, pos, stackPos, it)
}

func (s *GameSession) SendUpdateTileItem(pos geo.Position, stackPos int, it *world.Item) {
	s.sendTileItem(packet.S_OPCODE_UPDATE_TILE_THING, pos, stackPos, it)
}

func (s *GameSession) sendTileItem(opcode byte, pos geo.Position, stackPos int, it *world.Item) {
	if !s.canSee(pos) || stackPos < 0 || stackPos >= maxStackPos {
		return
	}
	w := packet.NewWriterWithOpcode(opcode)
	w.WritePosition(pos)
	w.WriteC(byte(stackPos))
	w.WriteItem(it.Descriptor())
	s.write(w)
}

func (s *GameSession) SendUpdateTile(t *world.Tile) {
	pos := t.Position()
	if !s.canSee(pos) {
		return
	}
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_UPDATE_TILE)
	w.WritePosition(pos)
	if t.IsEmpty() {
		w.WriteC(0x01)
	} else {
		s.writeTileDescription(w, t)
		w.WriteC(0x00)
	}
	w.WriteC(packet.TileEnd)
	s.write(w)
}

func (s *GameSession) SendMagicEffect(pos geo.Position, effect uint8) {
	if !s.canSee(pos) {
		return
	}
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_MAGIC_EFFECT)
	w.WritePosition(pos)
	w.WriteC(effect)
	s.write(w)
}

func (s *GameSession) SendTextMessage(class uint8, text string) {
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_TEXT_MESSAGE)
	w.WriteC(class)
	w.WriteS(text)
	s.write(w)
}

// SendCancelWalk rolls back the client's last predicted step.
func (s *GameSession) SendCancelWalk() {
	if s.player == nil {
		return
	}
	s.walk.cancelled = true
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_CANCEL_WALK)
	w.WriteC(byte(s.player.Direction()))
	s.write(w)
}

func (s *GameSession) SendCancelTarget() {
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_CANCEL_TARGET)
	w.WriteD(0)
	s.write(w)
}

func (s *GameSession) SendStats() {
	p := s.player
	if p == nil {
		return
	}
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_STATS)
	w.WriteH(uint16(max(p.Health(), 0)))
	w.WriteH(uint16(p.MaxHealth()))
	w.WriteD(p.FreeCapacity())
	w.WriteD(uint32(min(p.Experience, math.MaxUint32)))
	w.WriteH(p.Level)
	w.WriteC(p.LevelPercent())
	w.WriteH(uint16(max(p.Mana, 0)))
	w.WriteH(uint16(p.MaxMana))
	w.WriteC(p.MagicLevel)
	w.WriteC(0) // magic level percent
	w.WriteC(p.Soul)
	w.WriteH(p.StaminaMinutes)
	s.write(w)
}

func (s *GameSession) SendSkills() {
	p := s.player
	if p == nil {
		return
	}
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_SKILLS)
	for _, sk := range p.Skills {
		w.WriteC(sk.Level)
		w.WriteC(sk.Percent)
	}
	s.write(w)
}

func (s *GameSession) SendIcons(icons uint16) {
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_ICONS)
	w.WriteH(icons)
	s.write(w)
}

// SendOutfitWindow opens the outfit dialog with the looks p may wear.
func (s *GameSession) SendOutfitWindow() {
	p := s.player
	if p == nil {
		return
	}
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_OUTFIT_WINDOW)
	writeOutfit(w, p.Outfit())
	list := outfitsFor(p.Sex)
	w.WriteC(byte(len(list)))
	for _, o := range list {
		w.WriteH(o.lookType)
		w.WriteS(o.name)
		w.WriteC(0) // addons
	}
	s.write(w)
}

func (s *GameSession) sendWalkID() {
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_WALK_ID)
	w.WriteD(s.walk.id)
	s.write(w)
}
