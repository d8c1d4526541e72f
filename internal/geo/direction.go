package geo

// Direction values match the client's numbering.
type Direction uint8

const (
	North Direction = iota
	East
	South
	West
	SouthWest
	SouthEast
	NorthWest
	NorthEast
)

func (d Direction) Valid() bool {
	return d <= NorthEast
}

// Delta returns the (dx, dy) step for d.
func (d Direction) Delta() (int, int) {
	switch d {
	case North:
		return 0, -1
	case East:
		return 1, 0
	case South:
		return 0, 1
	case West:
		return -1, 0
	case SouthWest:
		return -1, 1
	case SouthEast:
		return 1, 1
	case NorthWest:
		return -1, -1
	case NorthEast:
		return 1, -1
	}
	return 0, 0
}

// Diagonal reports whether d moves on both axes.
func (d Direction) Diagonal() bool {
	return d >= SouthWest && d <= NorthEast
}

// Facing returns the cardinal direction a creature faces after stepping in d.
// Diagonal steps face east or west.
func (d Direction) Facing() Direction {
	switch d {
	case SouthWest, NorthWest:
		return West
	case SouthEast, NorthEast:
		return East
	}
	return d
}

func (d Direction) String() string {
	switch d {
	case North:
		return "north"
	case East:
		return "east"
	case South:
		return "south"
	case West:
		return "west"
	case SouthWest:
		return "southwest"
	case SouthEast:
		return "southeast"
	case NorthWest:
		return "northwest"
	case NorthEast:
		return "northeast"
	}
	return "unknown"
}

// ParseDirection is the inverse of String.
func ParseDirection(s string) (Direction, bool) {
	for d := North; d <= NorthEast; d++ {
		if d.String() == s {
			return d, true
		}
	}
	return North, false
}
