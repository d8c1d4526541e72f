package geo

import "fmt"

// Floor layout: 0 is the highest floor, 7 is sea level, 8-15 are underground.
const (
	MaxLayers    = 16
	SurfaceLayer = 7
)

// Position is a tile coordinate. Wire form is (u16 x, u16 y, u8 z).
type Position struct {
	X uint16
	Y uint16
	Z uint8
}

func (p Position) String() string {
	return fmt.Sprintf("(%d, %d, %d)", p.X, p.Y, p.Z)
}

// Underground reports whether the position lies below sea level.
func (p Position) Underground() bool {
	return p.Z > SurfaceLayer
}

// Offset returns p moved by dx, dy, dz. Coordinates wrap like the wire types do.
func (p Position) Offset(dx, dy, dz int) Position {
	return Position{
		X: uint16(int(p.X) + dx),
		Y: uint16(int(p.Y) + dy),
		Z: uint8(int(p.Z) + dz),
	}
}

// Step returns the neighbouring position in direction d on the same floor.
func (p Position) Step(d Direction) Position {
	dx, dy := d.Delta()
	return p.Offset(dx, dy, 0)
}

// DistanceX returns |p.X - o.X|.
func (p Position) DistanceX(o Position) int {
	return absDiff(int(p.X), int(o.X))
}

// DistanceY returns |p.Y - o.Y|.
func (p Position) DistanceY(o Position) int {
	return absDiff(int(p.Y), int(o.Y))
}

// DistanceZ returns |p.Z - o.Z|.
func (p Position) DistanceZ(o Position) int {
	return absDiff(int(p.Z), int(o.Z))
}

// Chebyshev returns the tile distance on the same floor, ignoring z.
func (p Position) Chebyshev(o Position) int {
	return max(p.DistanceX(o), p.DistanceY(o))
}

func absDiff(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}
