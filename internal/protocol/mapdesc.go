package protocol

import (
	"github.com/otgo/server/internal/geo"
	"github.com/otgo/server/internal/net/packet"
	"github.com/otgo/server/internal/world"
)

// skipFlush is the largest run of empty tiles a single skip byte carries.
const skipFlush = 0xFE

// canSee reports whether pos is inside the attached player's window.
func (s *GameSession) canSee(pos geo.Position) bool {
	return s.player != nil && canSeeFrom(s.player.Position(), s.aware, pos)
}

// canSeeCreature combines the window check with ghost-mode visibility.
func (s *GameSession) canSeeCreature(c world.Creature) bool {
	return s.player.CanSeeCreature(c) && s.canSee(c.Position())
}

// stillVisible is the eviction preference for the known-creature set.
func (s *GameSession) stillVisible(id uint32) bool {
	c := s.deps.Game.Map.Creature(id)
	return c != nil && s.canSeeCreature(c)
}

// tileAt looks up a tile by signed coordinates, nil off the map.
func (s *GameSession) tileAt(x, y int, z uint8) *world.Tile {
	if x < 0 || y < 0 || x > 0xFFFF || y > 0xFFFF {
		return nil
	}
	return s.deps.Game.Map.Tile(geo.Position{X: uint16(x), Y: uint16(y), Z: z})
}

// writeMapDescription writes the width x height window whose top-left
// corner on the viewer's floor is (x, y). Every floor the viewer can see
// is included, shifted diagonally by its height difference.
func (s *GameSession) writeMapDescription(w *packet.Writer, x, y int, z uint8, width, height int) {
	start, end, step := int(geo.SurfaceLayer), 0, -1
	if z > geo.SurfaceLayer {
		start, end, step = int(z)-2, min(geo.MaxLayers-1, int(z)+2), 1
	}
	skip := -1
	for nz := start; ; nz += step {
		skip = s.writeFloorDescription(w, x, y, uint8(nz), width, height, int(z)-nz, skip)
		if nz == end {
			break
		}
	}
	if skip >= 0 {
		w.WriteC(byte(skip))
		w.WriteC(packet.TileEnd)
	}
}

// writeFloorDescription writes one floor and returns the pending skip
// count, -1 when nothing is pending.
func (s *GameSession) writeFloorDescription(w *packet.Writer, x, y int, z uint8, width, height, offset, skip int) int {
	for nx := 0; nx < width; nx++ {
		for ny := 0; ny < height; ny++ {
			t := s.tileAt(x+nx+offset, y+ny+offset, z)
			if t != nil && !t.IsEmpty() {
				if skip >= 0 {
					w.WriteC(byte(skip))
					w.WriteC(packet.TileEnd)
				}
				skip = 0
				s.writeTileDescription(w, t)
				continue
			}
			if skip == skipFlush {
				w.WriteC(packet.TileEnd)
				w.WriteC(packet.TileEnd)
				skip = -1
				continue
			}
			skip++
		}
	}
	return skip
}

// writeTileDescription writes at most maxStackPos things: ground, top
// items, visible creatures newest first, then loose items. On clients
// without extended stacks the viewer takes the last slot of its own tile
// if it would otherwise be cut off.
func (s *GameSession) writeTileDescription(w *packet.Writer, t *world.Tile) {
	me := s.player
	ownTile := t.Position() == me.Position()
	count := 0
	if g := t.Ground(); g != nil {
		w.WriteItem(g.Descriptor())
		count++
	}
	for _, it := range t.TopItems() {
		if count == maxStackPos {
			return
		}
		// keep the last slot for the viewer
		if ownTile && !s.extendedStack && count == maxStackPos-1 {
			break
		}
		w.WriteItem(it.Descriptor())
		count++
	}

	meAdded := false
	creatures := t.Creatures()
	for i := len(creatures) - 1; i >= 0; i-- {
		c := creatures[i]
		if !me.CanSeeCreature(c) {
			continue
		}
		if count == maxStackPos {
			return
		}
		if ownTile && !s.extendedStack && count == maxStackPos-1 && !meAdded {
			c = me
		}
		if c.ID() == me.ID() {
			meAdded = true
		}
		s.writeCreature(w, c)
		count++
	}

	for _, it := range t.DownItems() {
		if count == maxStackPos {
			return
		}
		w.WriteItem(it.Descriptor())
		count++
	}
}

// writeCreature writes the short form for known creatures and the full
// form otherwise, naming the id the client should forget to make room.
func (s *GameSession) writeCreature(w *packet.Writer, c world.Creature) {
	known, removed := s.known.check(c.ID(), s.stillVisible)
	if known {
		w.WriteH(packet.CreatureKnown)
		w.WriteD(c.ID())
	} else {
		w.WriteH(packet.CreatureUnknown)
		w.WriteD(removed)
		w.WriteD(c.ID())
		w.WriteS(c.Name())
	}
	w.WriteC(c.HealthPercent())
	w.WriteC(byte(c.Direction()))
	writeOutfit(w, c.Outfit())

	light := c.Light()
	w.WriteC(light.Level)
	w.WriteC(light.Color)
	w.WriteH(c.Speed())
	w.WriteC(c.Skull())
	w.WriteC(c.Shield())
	if !known {
		w.WriteC(c.Emblem())
	}
	w.WriteC(0x01) // impassable
}

func writeOutfit(w *packet.Writer, o world.Outfit) {
	w.WriteH(o.LookType)
	if o.LookType == 0 {
		w.WriteH(o.LookTypeEx)
		return
	}
	w.WriteC(o.Head)
	w.WriteC(o.Body)
	w.WriteC(o.Legs)
	w.WriteC(o.Feet)
	w.WriteC(o.Addons)
}
