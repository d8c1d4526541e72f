package data

import (
	"fmt"
	"os"

	"github.com/otgo/server/internal/net/packet"
	"gopkg.in/yaml.v3"
)

// ItemType holds static data for one server item id.
type ItemType struct {
	ID          uint16 `yaml:"id"`
	ClientID    uint16 `yaml:"client_id"`
	Name        string `yaml:"name"`
	Ground      bool   `yaml:"ground"`
	Speed       int    `yaml:"speed"` // ground step cost, 0 = default
	AlwaysOnTop bool   `yaml:"always_on_top"`
	TopOrder    int    `yaml:"top_order"` // 1 borders, 2 ladders/signs, 3 doors
	Stackable   bool   `yaml:"stackable"`
	Charges     int    `yaml:"charges"` // default charges; > 0 marks a charged type
	Fluid       bool   `yaml:"fluid"`   // fluid container
	Splash      bool   `yaml:"splash"`
	BlockSolid  bool   `yaml:"block_solid"`
	Moveable    bool   `yaml:"moveable"`
	Pickupable  bool   `yaml:"pickupable"`
	Useable     bool   `yaml:"useable"`
	Description string `yaml:"description"`
}

// Traits returns the wire traits that choose the item descriptor's extra byte.
func (it *ItemType) Traits() packet.ItemTraits {
	return packet.ItemTraits{
		Chargeable: it.Charges > 0,
		Stackable:  it.Stackable,
		Fluid:      it.Fluid || it.Splash,
	}
}

// ItemTable holds all item types indexed by server id.
type ItemTable struct {
	items    map[uint16]*ItemType
	byClient map[uint16]*ItemType
}

// Get returns an item type by id, or nil if not found.
func (t *ItemTable) Get(id uint16) *ItemType {
	return t.items[id]
}

// ByClientID returns the type whose client id is cid, or nil.
func (t *ItemTable) ByClientID(cid uint16) *ItemType {
	return t.byClient[cid]
}

// TraitsByClientID looks up wire traits for a client id read off the wire.
func (t *ItemTable) TraitsByClientID(cid uint16) packet.ItemTraits {
	if it := t.ByClientID(cid); it != nil {
		return it.Traits()
	}
	return packet.ItemTraits{}
}

// Count returns total loaded items.
func (t *ItemTable) Count() int {
	return len(t.items)
}

type itemListFile struct {
	Items []ItemType `yaml:"items"`
}

// NewItemTable builds a table from already decoded types.
func NewItemTable(types []ItemType) (*ItemTable, error) {
	t := &ItemTable{
		items:    make(map[uint16]*ItemType, len(types)),
		byClient: make(map[uint16]*ItemType, len(types)),
	}
	for i := range types {
		it := &types[i]
		if it.ID == 0 {
			return nil, fmt.Errorf("item %q: id 0 is reserved", it.Name)
		}
		if _, dup := t.items[it.ID]; dup {
			return nil, fmt.Errorf("item %d: duplicate id", it.ID)
		}
		if it.ClientID == 0 {
			it.ClientID = it.ID
		}
		t.items[it.ID] = it
		if _, taken := t.byClient[it.ClientID]; !taken {
			t.byClient[it.ClientID] = it
		}
	}
	return t, nil
}

// LoadItemTable loads items.yaml.
func LoadItemTable(path string) (*ItemTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read item list: %w", err)
	}
	var f itemListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse item list: %w", err)
	}
	return NewItemTable(f.Items)
}
