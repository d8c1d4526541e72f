package data

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/otgo/server/internal/geo"
	"github.com/otgo/server/internal/net/packet"
	"github.com/pixil98/go-testutil"
)

const testItems = `
items:
  - id: 100
    name: grass
    ground: true
  - id: 1000
    client_id: 2148
    name: gold coin
    stackable: true
    pickupable: true
  - id: 1001
    name: wand of vortex
    charges: 5
  - id: 1002
    name: vial
    fluid: true
  - id: 1003
    name: stone border
    always_on_top: true
    top_order: 1
`

const testMap = `
temple: {x: 100, y: 100, z: 7}
grounds:
  - from: {x: 95, y: 95, z: 7}
    to: {x: 105, y: 105, z: 7}
    item: 100
items:
  - pos: {x: 101, y: 100, z: 7}
    item: 1000
    count: 25
zones:
  - from: {x: 99, y: 99, z: 7}
    to: {x: 101, y: 101, z: 7}
    protection_zone: true
portals:
  - src: {x: 103, y: 103, z: 7}
    dst: {x: 103, y: 103, z: 8}
    note: hole
spawns:
  - name: Rat
    kind: monster
    pos: {x: 104, y: 100, z: 7}
    look_type: 21
    health: 20
    speed: 134
    direction: west
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadItemTable(t *testing.T) {
	items, err := LoadItemTable(writeFile(t, "items.yaml", testItems))
	testutil.AssertEqual(t, "err", err, nil)
	testutil.AssertEqual(t, "count", items.Count(), 5)

	coin := items.Get(1000)
	testutil.AssertEqual(t, "client id", coin.ClientID, uint16(2148))
	testutil.AssertEqual(t, "defaulted client id", items.Get(100).ClientID, uint16(100))
	testutil.AssertEqual(t, "by client", items.ByClientID(2148).Name, "gold coin")

	testutil.AssertEqual(t, "coin traits", items.TraitsByClientID(2148), packet.ItemTraits{Stackable: true})
	testutil.AssertEqual(t, "wand traits", items.Get(1001).Traits(), packet.ItemTraits{Chargeable: true})
	testutil.AssertEqual(t, "vial traits", items.Get(1002).Traits(), packet.ItemTraits{Fluid: true})
	testutil.AssertEqual(t, "unknown traits", items.TraitsByClientID(9999), packet.ItemTraits{})
}

func TestItemTableRejectsDuplicates(t *testing.T) {
	_, err := NewItemTable([]ItemType{{ID: 1, Name: "a"}, {ID: 1, Name: "b"}})
	testutil.AssertErrorContains(t, err, "duplicate id")

	_, err = NewItemTable([]ItemType{{Name: "zero"}})
	testutil.AssertErrorContains(t, err, "reserved")
}

func TestLoadMapData(t *testing.T) {
	items, err := LoadItemTable(writeFile(t, "items.yaml", testItems))
	testutil.AssertEqual(t, "items err", err, nil)

	m, err := LoadMapData(writeFile(t, "map.yaml", testMap), items)
	testutil.AssertEqual(t, "err", err, nil)
	testutil.AssertEqual(t, "temple", m.Temple, geo.Position{X: 100, Y: 100, Z: 7})
	testutil.AssertEqual(t, "grounds", len(m.Grounds), 1)
	testutil.AssertEqual(t, "ground from", m.Grounds[0].From, geo.Position{X: 95, Y: 95, Z: 7})
	testutil.AssertEqual(t, "item count", m.Items[0].Count, uint16(25))
	testutil.AssertEqual(t, "pz", m.Zones[0].ProtectionZone, true)
	testutil.AssertEqual(t, "portal dst", m.Portals[0].Dst.Z, uint8(8))
	testutil.AssertEqual(t, "spawn direction", m.Spawns[0].Direction, geo.West)

	n := 0
	m.Zones[0].Each(func(geo.Position) { n++ })
	testutil.AssertEqual(t, "zone tiles", n, 9)
}

func TestLoadMapDataRejectsUnknownItems(t *testing.T) {
	items, _ := NewItemTable([]ItemType{{ID: 100, Ground: true}})
	_, err := LoadMapData(writeFile(t, "map.yaml", `
items:
  - pos: {x: 1, y: 1, z: 7}
    item: 555
`), items)
	testutil.AssertErrorContains(t, err, "unknown item")

	_, err = LoadMapData(writeFile(t, "map.yaml", `
spawns:
  - name: Ghost
    kind: spirit
`), items)
	testutil.AssertErrorContains(t, err, "must be monster or npc")
}
