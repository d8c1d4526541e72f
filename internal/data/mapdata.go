package data

import (
	"fmt"
	"os"

	"github.com/otgo/server/internal/geo"
	"gopkg.in/yaml.v3"
)

// Area is an inclusive box of tiles.
type Area struct {
	From geo.Position `yaml:"from"`
	To   geo.Position `yaml:"to"`
}

// Each calls fn for every position in the box.
func (a Area) Each(fn func(geo.Position)) {
	for z := int(min(a.From.Z, a.To.Z)); z <= int(max(a.From.Z, a.To.Z)); z++ {
		for y := int(min(a.From.Y, a.To.Y)); y <= int(max(a.From.Y, a.To.Y)); y++ {
			for x := int(min(a.From.X, a.To.X)); x <= int(max(a.From.X, a.To.X)); x++ {
				fn(geo.Position{X: uint16(x), Y: uint16(y), Z: uint8(z)})
			}
		}
	}
}

// GroundFill paves an area with one ground item.
type GroundFill struct {
	Area `yaml:",inline"`
	Item uint16 `yaml:"item"`
}

// PlacedItem puts one item on a tile.
type PlacedItem struct {
	Pos     geo.Position `yaml:"pos"`
	Item    uint16       `yaml:"item"`
	Count   uint16       `yaml:"count"`
	Charges uint16       `yaml:"charges"`
	Fluid   uint8        `yaml:"fluid"`
}

// Zone flags an area.
type Zone struct {
	Area           `yaml:",inline"`
	ProtectionZone bool `yaml:"protection_zone"`
	NoLogout       bool `yaml:"no_logout"`
}

// Portal moves whoever steps on Src to Dst. Teleport portals jump;
// others are stairs and ladders that walk the creature to the new floor.
type Portal struct {
	Src      geo.Position `yaml:"src"`
	Dst      geo.Position `yaml:"dst"`
	Teleport bool         `yaml:"teleport"`
	Note     string       `yaml:"note"`
}

// MapData is the static layout loaded from map.yaml.
type MapData struct {
	Temple  geo.Position `yaml:"temple"`
	Grounds []GroundFill `yaml:"grounds"`
	Items   []PlacedItem `yaml:"items"`
	Zones   []Zone       `yaml:"zones"`
	Portals []Portal     `yaml:"portals"`
	Spawns  []Spawn      `yaml:"spawns"`
}

// LoadMapData loads map.yaml and checks every item id against items.
func LoadMapData(path string, items *ItemTable) (*MapData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read map %s: %w", path, err)
	}
	var m MapData
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse map: %w", err)
	}
	for _, g := range m.Grounds {
		it := items.Get(g.Item)
		if it == nil || !it.Ground {
			return nil, fmt.Errorf("map ground %d: not a ground item", g.Item)
		}
	}
	for _, pi := range m.Items {
		if items.Get(pi.Item) == nil {
			return nil, fmt.Errorf("map item %d at %s: unknown item", pi.Item, pi.Pos)
		}
	}
	for i := range m.Spawns {
		if err := m.Spawns[i].resolve(); err != nil {
			return nil, err
		}
	}
	return &m, nil
}
