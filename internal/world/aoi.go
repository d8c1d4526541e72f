package world

// AOIGrid buckets creatures into square cells so spectator queries only scan
// the cells overlapping the query box. Floors share cells; callers filter z.
// Accessed only from the dispatcher goroutine, no locks.

type cellKey struct {
	cx int32
	cy int32
}

type AOIGrid struct {
	size  int32
	cells map[cellKey]map[uint32]struct{} // cellKey → set of creature ids
}

func NewAOIGrid(cellSize int) *AOIGrid {
	if cellSize <= 0 {
		cellSize = 16
	}
	return &AOIGrid{
		size:  int32(cellSize),
		cells: make(map[cellKey]map[uint32]struct{}),
	}
}

func (g *AOIGrid) key(x, y int32) cellKey {
	return cellKey{cx: x / g.size, cy: y / g.size}
}

// Add places a creature into the grid.
func (g *AOIGrid) Add(id uint32, x, y int32) {
	k := g.key(x, y)
	cell := g.cells[k]
	if cell == nil {
		cell = make(map[uint32]struct{})
		g.cells[k] = cell
	}
	cell[id] = struct{}{}
}

// Remove takes a creature out of the grid.
func (g *AOIGrid) Remove(id uint32, x, y int32) {
	k := g.key(x, y)
	if cell := g.cells[k]; cell != nil {
		delete(cell, id)
		if len(cell) == 0 {
			delete(g.cells, k)
		}
	}
}

// Move updates a creature's cell when its position changes.
func (g *AOIGrid) Move(id uint32, oldX, oldY, newX, newY int32) {
	if g.key(oldX, oldY) == g.key(newX, newY) {
		return
	}
	g.Remove(id, oldX, oldY)
	g.Add(id, newX, newY)
}

// Nearby appends to buf every id in cells overlapping the box
// [x-rx, x+rx] × [y-ry, y+ry]. Caller does fine-grained filtering.
func (g *AOIGrid) Nearby(x, y, rx, ry int32, buf []uint32) []uint32 {
	buf = buf[:0]
	lo := g.key(max(x-rx, 0), max(y-ry, 0))
	hi := g.key(x+rx, y+ry)
	for cx := lo.cx; cx <= hi.cx; cx++ {
		for cy := lo.cy; cy <= hi.cy; cy++ {
			for id := range g.cells[cellKey{cx: cx, cy: cy}] {
				buf = append(buf, id)
			}
		}
	}
	return buf
}
