package protocol

import (
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/otgo/server/internal/data"
	"github.com/otgo/server/internal/geo"
	"github.com/otgo/server/internal/net/packet"
	"github.com/otgo/server/internal/world"
	"github.com/pixil98/go-testutil"
)

var borderType = &data.ItemType{ID: 200, ClientID: 200, Name: "border", AlwaysOnTop: true, TopOrder: 1}

// viewerOn attaches a fresh player standing at pos to a new session.
func viewerOn(t *testing.T, h *harness, pos geo.Position) *GameSession {
	t.Helper()
	p := world.NewPlayer(world.PlayerData{GUID: 50, Name: "Viewer", Health: 100, MaxHealth: 100})
	h.deps.Game.Players.AssignPlayerID(p)
	if !h.deps.Game.Map.PlaceCreature(p, pos, false, true) {
		t.Fatalf("place viewer")
	}
	s, _ := h.connect()
	s.attach(p)
	return s
}

func TestTileDescriptionCapAndSelfSubstitution(t *testing.T) {
	for _, extended := range []bool{false, true} {
		t.Run(fmt.Sprintf("extended=%t", extended), func(t *testing.T) {
			h := newHarness(t, nil)
			m := h.deps.Game.Map
			// An island tile, so forced placement stacks on it.
			pos := geo.Position{X: 50, Y: 50, Z: 7}
			tile := m.EnsureTile(pos)
			tile.AddItem(world.NewItem(grassType, 1))
			for range 8 {
				tile.AddItem(world.NewItem(borderType, 1))
			}
			s := viewerOn(t, h, pos)
			s.extendedStack = extended
			npc := world.NewNpc(world.KindNPC, "Guard", pos, geo.South, 100, 200, world.Outfit{LookType: 131})
			h.deps.Game.Players.AssignNpcID(npc)
			m.PlaceCreature(npc, pos, false, true)

			w := packet.NewWriter()
			s.writeTileDescription(w, tile)
			b := w.Bytes()

			// nine items of two bytes, then one creature in full form
			testutil.AssertEqual(t, "unknown marker", binary.LittleEndian.Uint16(b[18:]), uint16(packet.CreatureUnknown))
			shown := binary.LittleEndian.Uint32(b[24:])
			want := npc.ID()
			if !extended {
				want = s.Player().ID()
			}
			testutil.AssertEqual(t, "slot ten", shown, want)
			testutil.AssertEqual(t, "one creature written", s.known.len(), 1)
		})
	}
}

func TestTileDescriptionKeepsViewerUnderFullItemStack(t *testing.T) {
	for _, extended := range []bool{false, true} {
		t.Run(fmt.Sprintf("extended=%t", extended), func(t *testing.T) {
			h := newHarness(t, nil)
			m := h.deps.Game.Map
			pos := geo.Position{X: 50, Y: 50, Z: 7}
			tile := m.EnsureTile(pos)
			tile.AddItem(world.NewItem(grassType, 1))
			for range 9 {
				tile.AddItem(world.NewItem(borderType, 1))
			}
			s := viewerOn(t, h, pos)
			s.extendedStack = extended

			w := packet.NewWriter()
			s.writeTileDescription(w, tile)
			b := w.Bytes()

			if extended {
				testutil.AssertEqual(t, "items only", len(b), 20)
				testutil.AssertEqual(t, "viewer skipped", s.known.has(s.Player().ID()), false)
				return
			}
			// ground and eight tops, then the viewer in the last slot
			testutil.AssertEqual(t, "unknown marker", binary.LittleEndian.Uint16(b[18:]), uint16(packet.CreatureUnknown))
			testutil.AssertEqual(t, "slot ten", binary.LittleEndian.Uint32(b[24:]), s.Player().ID())
			testutil.AssertEqual(t, "viewer known", s.known.has(s.Player().ID()), true)
		})
	}
}

func TestCreatureFullThenKnownForm(t *testing.T) {
	h := newHarness(t, nil)
	s := viewerOn(t, h, geo.Position{X: 20, Y: 20, Z: 7})

	npc := world.NewNpc(world.KindNPC, "Guard", geo.Position{X: 21, Y: 20, Z: 7}, geo.South, 100, 200, world.Outfit{LookType: 131})
	h.deps.Game.Players.AssignNpcID(npc)
	npc.SetLight(world.Light{Level: 7, Color: 0xD7})
	npc.SetSpeed(300)
	npc.SetSkull(world.SkullWhite)
	npc.SetShield(2)

	w := packet.NewWriter()
	s.writeCreature(w, npc)
	b := w.Bytes()
	testutil.AssertEqual(t, "full length", len(b), 34)
	testutil.AssertEqual(t, "full marker", binary.LittleEndian.Uint16(b), uint16(packet.CreatureUnknown))
	testutil.AssertEqual(t, "id", binary.LittleEndian.Uint32(b[6:]), npc.ID())
	// light, speed, skull, shield, emblem, impassable
	testutil.AssertEqual(t, "full tail", fmt.Sprintf("%x", b[26:]), "07d72c0103020001")

	w = packet.NewWriter()
	s.writeCreature(w, npc)
	b = w.Bytes()
	testutil.AssertEqual(t, "known length", len(b), 22)
	testutil.AssertEqual(t, "known marker", binary.LittleEndian.Uint16(b), uint16(packet.CreatureKnown))
	testutil.AssertEqual(t, "known tail", fmt.Sprintf("%x", b[15:]), "07d72c01030201")
}

func TestFloorDescriptionSkips(t *testing.T) {
	h := newHarness(t, nil)
	s := viewerOn(t, h, geo.Position{X: 20, Y: 20, Z: 7})

	// x=-1 is off the map, x=0 is grass.
	w := packet.NewWriter()
	skip := s.writeFloorDescription(w, -1, 0, 7, 2, 1, 0, -1)
	testutil.AssertEqual(t, "bytes", fmt.Sprintf("%x", w.Bytes()), "00ff6400")
	testutil.AssertEqual(t, "pending", skip, 0)
}

func TestFloorDescriptionSkipOverflow(t *testing.T) {
	h := newHarness(t, nil)
	s := viewerOn(t, h, geo.Position{X: 20, Y: 20, Z: 7})

	// 256 empty tiles off the map: one full run, then the counter restarts.
	w := packet.NewWriter()
	skip := s.writeFloorDescription(w, 100, 100, 7, 256, 1, 0, -1)
	testutil.AssertEqual(t, "flushed", fmt.Sprintf("%x", w.Bytes()), "ffff")
	testutil.AssertEqual(t, "pending", skip, -1)
}

func TestCanSeeFrom(t *testing.T) {
	me := geo.Position{X: 100, Y: 100, Z: 7}
	a := awareRange{width: 17, height: 13}
	tests := map[string]struct {
		pos  geo.Position
		want bool
	}{
		"west edge":         {geo.Position{X: 92, Y: 100, Z: 7}, true},
		"past west edge":    {geo.Position{X: 91, Y: 100, Z: 7}, false},
		"east extra column": {geo.Position{X: 109, Y: 100, Z: 7}, true},
		"south extra row":   {geo.Position{X: 100, Y: 107, Z: 7}, true},
		"north edge":        {geo.Position{X: 100, Y: 94, Z: 7}, true},
		"floor above shift": {geo.Position{X: 92, Y: 100, Z: 6}, false},
		"floor above":       {geo.Position{X: 93, Y: 100, Z: 6}, true},
		"underground":       {geo.Position{X: 100, Y: 100, Z: 8}, false},
	}
	for name, tt := range tests {
		testutil.AssertEqual(t, name, canSeeFrom(me, a, tt.pos), tt.want)
	}

	deep := geo.Position{X: 100, Y: 100, Z: 10}
	testutil.AssertEqual(t, "two below", canSeeFrom(deep, a, geo.Position{X: 98, Y: 98, Z: 12}), true)
	testutil.AssertEqual(t, "three below", canSeeFrom(deep, a, geo.Position{X: 97, Y: 97, Z: 13}), false)
}

func TestClampRange(t *testing.T) {
	testutil.AssertEqual(t, "even rounds down", clampRange(18, 7, 21), 17)
	testutil.AssertEqual(t, "below min", clampRange(4, 7, 21), 7)
	testutil.AssertEqual(t, "above max", clampRange(30, 7, 21), 21)
}
