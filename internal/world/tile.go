package world

import (
	"github.com/otgo/server/internal/data"
	"github.com/otgo/server/internal/geo"
)

// TileFlag marks zone properties of a tile.
type TileFlag uint8

const (
	TileProtectionZone TileFlag = 1 << iota
	TileNoLogout
)

// Tile is one map square. Content order, bottom to top on the wire:
// ground, top items (ascending top order), creatures (newest first),
// down items (newest first).
type Tile struct {
	pos       geo.Position
	ground    *Item
	top       []*Item
	down      []*Item    // newest first
	creatures []Creature // oldest first
	Flags     TileFlag
	Portal    *data.Portal
}

func NewTile(pos geo.Position) *Tile {
	return &Tile{pos: pos}
}

func (t *Tile) Position() geo.Position { return t.pos }
func (t *Tile) Ground() *Item          { return t.ground }
func (t *Tile) TopItems() []*Item      { return t.top }
func (t *Tile) DownItems() []*Item     { return t.down }

// Creatures returns the creatures in arrival order, oldest first.
func (t *Tile) Creatures() []Creature { return t.creatures }

func (t *Tile) HasFlag(f TileFlag) bool { return t.Flags&f != 0 }

// IsEmpty reports a tile with nothing to describe.
func (t *Tile) IsEmpty() bool {
	return t.ground == nil && len(t.top) == 0 && len(t.down) == 0 && len(t.creatures) == 0
}

// ThingCount counts every thing on the tile, ignoring visibility.
func (t *Tile) ThingCount() int {
	n := len(t.top) + len(t.down) + len(t.creatures)
	if t.ground != nil {
		n++
	}
	return n
}

// AddItem places it on the tile and returns its raw stack index.
func (t *Tile) AddItem(it *Item) {
	switch {
	case it.Type.Ground:
		t.ground = it
	case it.Type.AlwaysOnTop:
		i := 0
		for i < len(t.top) && t.top[i].Type.TopOrder <= it.Type.TopOrder {
			i++
		}
		t.top = append(t.top, nil)
		copy(t.top[i+1:], t.top[i:])
		t.top[i] = it
	default:
		t.down = append(t.down, nil)
		copy(t.down[1:], t.down)
		t.down[0] = it
	}
}

// RemoveItem takes it off the tile. It reports whether it was there.
func (t *Tile) RemoveItem(it *Item) bool {
	if t.ground == it {
		t.ground = nil
		return true
	}
	if i := indexOf(t.top, it); i >= 0 {
		t.top = append(t.top[:i], t.top[i+1:]...)
		return true
	}
	if i := indexOf(t.down, it); i >= 0 {
		t.down = append(t.down[:i], t.down[i+1:]...)
		return true
	}
	return false
}

func indexOf(items []*Item, it *Item) int {
	for i, x := range items {
		if x == it {
			return i
		}
	}
	return -1
}

func (t *Tile) addCreature(c Creature) {
	t.creatures = append(t.creatures, c)
}

func (t *Tile) removeCreature(c Creature) bool {
	for i, x := range t.creatures {
		if x.ID() == c.ID() {
			t.creatures = append(t.creatures[:i], t.creatures[i+1:]...)
			return true
		}
	}
	return false
}

// BlocksSolid reports whether any item blocks movement.
func (t *Tile) BlocksSolid() bool {
	if t.ground != nil && t.ground.Type.BlockSolid {
		return true
	}
	for _, it := range t.top {
		if it.Type.BlockSolid {
			return true
		}
	}
	for _, it := range t.down {
		if it.Type.BlockSolid {
			return true
		}
	}
	return false
}

// Walkable reports whether a creature may step here.
func (t *Tile) Walkable() bool {
	return t.ground != nil && !t.BlocksSolid() && len(t.creatures) == 0
}

// StackPosOfCreature returns c's client stack position as seen by viewer,
// or -1 if c is not on the tile. Creatures the viewer cannot see take no slot.
// A nil viewer sees everything.
func (t *Tile) StackPosOfCreature(viewer *Player, c Creature) int {
	n := len(t.top)
	if t.ground != nil {
		n++
	}
	for i := len(t.creatures) - 1; i >= 0; i-- {
		cr := t.creatures[i]
		if cr.ID() == c.ID() {
			return n
		}
		if viewer == nil || viewer.CanSeeCreature(cr) {
			n++
		}
	}
	return -1
}

// StackPosOfItem returns it's client stack position as seen by viewer, or -1.
func (t *Tile) StackPosOfItem(viewer *Player, it *Item) int {
	n := 0
	if t.ground != nil {
		if t.ground == it {
			return 0
		}
		n++
	}
	for _, x := range t.top {
		if x == it {
			return n
		}
		n++
	}
	for _, cr := range t.creatures {
		if viewer == nil || viewer.CanSeeCreature(cr) {
			n++
		}
	}
	for _, x := range t.down {
		if x == it {
			return n
		}
		n++
	}
	return -1
}

// ThingAt resolves a client stack position to an item or a creature.
func (t *Tile) ThingAt(viewer *Player, stackPos int) (*Item, Creature) {
	n := 0
	if t.ground != nil {
		if stackPos == 0 {
			return t.ground, nil
		}
		n++
	}
	for _, x := range t.top {
		if n == stackPos {
			return x, nil
		}
		n++
	}
	for i := len(t.creatures) - 1; i >= 0; i-- {
		cr := t.creatures[i]
		if viewer != nil && !viewer.CanSeeCreature(cr) {
			continue
		}
		if n == stackPos {
			return nil, cr
		}
		n++
	}
	for _, x := range t.down {
		if n == stackPos {
			return x, nil
		}
		n++
	}
	return nil, nil
}

// TopCreature returns the newest creature visible to viewer, or nil.
func (t *Tile) TopCreature(viewer *Player) Creature {
	for i := len(t.creatures) - 1; i >= 0; i-- {
		if viewer == nil || viewer.CanSeeCreature(t.creatures[i]) {
			return t.creatures[i]
		}
	}
	return nil
}

// TopDownItem returns the newest loose item, or nil.
func (t *Tile) TopDownItem() *Item {
	if len(t.down) == 0 {
		return nil
	}
	return t.down[0]
}
