package world

import (
	"github.com/otgo/server/internal/data"
	"github.com/otgo/server/internal/net/packet"
)

// Item is one item instance lying on a tile.
type Item struct {
	Type    *data.ItemType
	Count   uint16
	Charges uint16
	Fluid   uint8
}

// NewItem creates an item, giving charged types their default charges.
func NewItem(t *data.ItemType, count uint16) *Item {
	it := &Item{Type: t, Count: max(count, 1)}
	if t.Charges > 0 {
		it.Charges = uint16(t.Charges)
	}
	return it
}

func (it *Item) ClientID() uint16  { return it.Type.ClientID }
func (it *Item) AlwaysOnTop() bool { return it.Type.AlwaysOnTop }

// Descriptor returns the wire form of the item.
func (it *Item) Descriptor() packet.ItemDescriptor {
	return packet.DescribeItem(it.Type.ClientID, it.Type.Traits(), it.Count, it.Charges, it.Fluid)
}
