package world

import (
	"fmt"

	"github.com/otgo/server/internal/data"
	"github.com/otgo/server/internal/geo"
)

// Map is the tile grid plus the creatures standing on it. Tiles are stored
// sparsely; a missing tile is void. Dispatcher goroutine only.
type Map struct {
	width     int
	height    int
	tiles     map[geo.Position]*Tile
	creatures map[uint32]Creature
	aoi       *AOIGrid
	Temple    geo.Position

	// spectator reach; covers the widest aware range plus floor offsets
	reachX int32
	reachY int32

	aoiBuf []uint32
}

func NewMap(width, height, cellSize int) *Map {
	return &Map{
		width:     width,
		height:    height,
		tiles:     make(map[geo.Position]*Tile),
		creatures: make(map[uint32]Creature),
		aoi:       NewAOIGrid(cellSize),
		reachX:    9 + geo.SurfaceLayer,
		reachY:    7 + geo.SurfaceLayer,
	}
}

// SetViewRange sizes spectator queries for the widest aware range a client may request.
func (m *Map) SetViewRange(maxWidth, maxHeight int) {
	m.reachX = int32(maxWidth/2+1) + geo.SurfaceLayer
	m.reachY = int32(maxHeight/2+1) + geo.SurfaceLayer
}

func (m *Map) InBounds(p geo.Position) bool {
	return int(p.X) < m.width && int(p.Y) < m.height && p.Z < geo.MaxLayers
}

// Tile returns the tile at p, or nil for void.
func (m *Map) Tile(p geo.Position) *Tile {
	return m.tiles[p]
}

// EnsureTile returns the tile at p, creating it when missing.
func (m *Map) EnsureTile(p geo.Position) *Tile {
	t := m.tiles[p]
	if t == nil {
		t = NewTile(p)
		m.tiles[p] = t
	}
	return t
}

// Creature returns a creature in the world by id.
func (m *Map) Creature(id uint32) Creature {
	return m.creatures[id]
}

// CreatureCount returns how many creatures stand on the map.
func (m *Map) CreatureCount() int {
	return len(m.creatures)
}

// Load builds tiles from static map data.
func (m *Map) Load(md *data.MapData, items *data.ItemTable) error {
	var err error
	for _, g := range md.Grounds {
		t := items.Get(g.Item)
		g.Each(func(p geo.Position) {
			if err != nil {
				return
			}
			if !m.InBounds(p) {
				err = fmt.Errorf("ground at %s outside map", p)
				return
			}
			m.EnsureTile(p).AddItem(NewItem(t, 1))
		})
	}
	if err != nil {
		return err
	}
	for _, pi := range md.Items {
		tile := m.Tile(pi.Pos)
		if tile == nil {
			return fmt.Errorf("item %d at %s: no ground", pi.Item, pi.Pos)
		}
		it := NewItem(items.Get(pi.Item), pi.Count)
		if pi.Charges > 0 {
			it.Charges = pi.Charges
		}
		it.Fluid = pi.Fluid
		tile.AddItem(it)
	}
	for _, z := range md.Zones {
		z.Each(func(p geo.Position) {
			if t := m.Tile(p); t != nil {
				if z.ProtectionZone {
					t.Flags |= TileProtectionZone
				}
				if z.NoLogout {
					t.Flags |= TileNoLogout
				}
			}
		})
	}
	for i := range md.Portals {
		p := &md.Portals[i]
		t := m.Tile(p.Src)
		if t == nil {
			return fmt.Errorf("portal %s: no tile at source", p.Src)
		}
		t.Portal = p
	}
	m.Temple = md.Temple
	return nil
}

// placement search offsets, nearest first
var (
	nearOffsets = [][2]int{
		{-1, -1}, {0, -1}, {1, -1}, {-1, 0}, {1, 0}, {-1, 1}, {0, 1}, {1, 1},
	}
	extendedOffsets = append(append([][2]int{}, nearOffsets...),
		[2]int{0, -2}, [2]int{-2, 0}, [2]int{0, 2}, [2]int{2, 0},
	)
)

// FindFreeTile returns the first walkable tile at or around pos. With
// forced set it falls back to pos itself as long as it has ground.
func (m *Map) FindFreeTile(pos geo.Position, extended, forced bool) *Tile {
	if t := m.Tile(pos); t != nil && t.Walkable() {
		return t
	}
	offsets := nearOffsets
	if extended {
		offsets = extendedOffsets
	}
	for _, o := range offsets {
		p := pos.Offset(o[0], o[1], 0)
		if !m.InBounds(p) {
			continue
		}
		if t := m.Tile(p); t != nil && t.Walkable() {
			return t
		}
	}
	if forced {
		if t := m.Tile(pos); t != nil && t.Ground() != nil {
			return t
		}
	}
	return nil
}

// PlaceCreature puts c on the tile FindFreeTile picks.
func (m *Map) PlaceCreature(c Creature, pos geo.Position, extended, forced bool) bool {
	t := m.FindFreeTile(pos, extended, forced)
	if t == nil {
		return false
	}
	m.addCreature(c, t)
	return true
}

func (m *Map) addCreature(c Creature, t *Tile) {
	b := c.base()
	b.pos = t.pos
	b.removed = false
	t.addCreature(c)
	m.creatures[b.id] = c
	m.aoi.Add(b.id, int32(t.pos.X), int32(t.pos.Y))
}

// MoveCreature moves c to the tile at to. The tile must exist.
func (m *Map) MoveCreature(c Creature, to *Tile) {
	b := c.base()
	if from := m.Tile(b.pos); from != nil {
		from.removeCreature(c)
	}
	m.aoi.Move(b.id, int32(b.pos.X), int32(b.pos.Y), int32(to.pos.X), int32(to.pos.Y))
	b.pos = to.pos
	to.addCreature(c)
}

// RemoveCreature takes c off the map and marks it removed.
func (m *Map) RemoveCreature(c Creature) {
	b := c.base()
	if t := m.Tile(b.pos); t != nil {
		t.removeCreature(c)
	}
	m.aoi.Remove(b.id, int32(b.pos.X), int32(b.pos.Y))
	delete(m.creatures, b.id)
	b.removed = true
}

// floorSpan returns the floors a viewer on z may see.
func floorSpan(z uint8) (uint8, uint8) {
	if z > geo.SurfaceLayer {
		return z - min(z, 2), min(z+2, geo.MaxLayers-1)
	}
	// surface viewers see every floor above ground, and the floors just
	// below when standing at or near sea level
	switch z {
	case geo.SurfaceLayer:
		return 0, geo.SurfaceLayer + 2
	case geo.SurfaceLayer - 1:
		return 0, geo.SurfaceLayer + 1
	}
	return 0, geo.SurfaceLayer
}

// Spectators returns every creature that a viewer near center could see.
// The result is coarse; per-client visibility is decided by the protocol.
func (m *Map) Spectators(center geo.Position, onlyPlayers bool) []Creature {
	lo, hi := floorSpan(center.Z)
	m.aoiBuf = m.aoi.Nearby(int32(center.X), int32(center.Y), m.reachX, m.reachY, m.aoiBuf)
	out := make([]Creature, 0, len(m.aoiBuf))
	for _, id := range m.aoiBuf {
		c := m.creatures[id]
		if c == nil {
			continue
		}
		if onlyPlayers && c.Kind() != KindPlayer {
			continue
		}
		p := c.Position()
		if p.Z < lo || p.Z > hi {
			continue
		}
		if int32(p.DistanceX(center)) > m.reachX || int32(p.DistanceY(center)) > m.reachY {
			continue
		}
		out = append(out, c)
	}
	return out
}

// SpectatorPlayers is Spectators narrowed to players.
func (m *Map) SpectatorPlayers(center geo.Position) []*Player {
	cs := m.Spectators(center, true)
	out := make([]*Player, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.(*Player))
	}
	return out
}
