package packet

// ItemExtra selects the optional byte that follows an item's client id.
type ItemExtra uint8

const (
	ExtraNone ItemExtra = iota
	ExtraCount
	ExtraCharges
	ExtraFluid
)

// ItemTraits are the item-type flags that decide the extra byte.
type ItemTraits struct {
	Chargeable bool // type defines charges > 0
	Stackable  bool
	Fluid      bool // fluid container or splash
}

// Extra applies the priority charges > stackable > fluid.
func (t ItemTraits) Extra() ItemExtra {
	switch {
	case t.Chargeable:
		return ExtraCharges
	case t.Stackable:
		return ExtraCount
	case t.Fluid:
		return ExtraFluid
	}
	return ExtraNone
}

// ItemDescriptor is the client-facing encoding of one item.
type ItemDescriptor struct {
	ClientID uint16
	Extra    ItemExtra
	Value    byte
}

// DescribeItem builds the descriptor for an item of the given type.
// count, charges and fluid are only consulted for the matching extra kind.
func DescribeItem(clientID uint16, t ItemTraits, count uint16, charges uint16, fluid byte) ItemDescriptor {
	d := ItemDescriptor{ClientID: clientID, Extra: t.Extra()}
	switch d.Extra {
	case ExtraCharges:
		d.Value = clampByte(charges)
	case ExtraCount:
		d.Value = clampByte(count)
	case ExtraFluid:
		d.Value = fluid
	}
	return d
}

func clampByte(v uint16) byte {
	if v > 0xFF {
		return 0xFF
	}
	return byte(v)
}
