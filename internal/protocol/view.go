package protocol

import (
	"github.com/otgo/server/internal/geo"
)

// maxStackPos is the number of things per tile the client can address.
const maxStackPos = 10

// awareRange is the client's visible window, width x height tiles. Both are
// odd so the player sits on the center tile. The client keeps one extra
// column east and one extra row south.
type awareRange struct {
	width, height int
}

func (a awareRange) left() int   { return a.width / 2 }
func (a awareRange) right() int  { return a.width/2 + 1 }
func (a awareRange) top() int    { return a.height / 2 }
func (a awareRange) bottom() int { return a.height/2 + 1 }

// cols and rows are the size of a full map description.
func (a awareRange) cols() int { return a.width + 1 }
func (a awareRange) rows() int { return a.height + 1 }

// clampRange forces v into [lo, hi] and makes it odd.
func clampRange(v, lo, hi int) int {
	v = max(lo, min(v, hi))
	if v%2 == 0 {
		v--
	}
	return v
}

// canSeeFrom reports whether a viewer at me with range a can see pos.
// Surface viewers see every floor down to sea level; underground viewers
// see two floors up and down. Floors are offset diagonally by their height
// difference.
func canSeeFrom(me geo.Position, a awareRange, pos geo.Position) bool {
	if me.Z <= geo.SurfaceLayer {
		if pos.Z > geo.SurfaceLayer {
			return false
		}
	} else if me.DistanceZ(pos) > 2 {
		return false
	}
	off := int(me.Z) - int(pos.Z)
	x, y := int(pos.X), int(pos.Y)
	return x >= int(me.X)-a.left()+off && x <= int(me.X)+a.right()+off &&
		y >= int(me.Y)-a.top()+off && y <= int(me.Y)+a.bottom()+off
}
