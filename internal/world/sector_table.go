package world

import (
	"math/bits"
	"sync"
	"sync/atomic"
)

// DefaultSectorSize is the side of a sector in world units.
const DefaultSectorSize = 2048

// grid is an immutable view of the table. Growing publishes a new grid that
// reuses every existing *Sector.
type grid struct {
	width, height int
	cols, rows    int
	cells         [][]*Sector // [col][row]
	all           []*Sector   // creation order, append-only
}

// SectorTable is the zone's 2D array of sectors. Lookups are lock free;
// resizes are serialized and only ever grow the table.
type SectorTable struct {
	size  int
	shift uint

	mu  sync.Mutex // serializes Resize
	cur atomic.Pointer[grid]
}

// NewSectorTable builds a table covering width x height. sectorSize must be
// a positive power of two.
func NewSectorTable(width, height, sectorSize int) (*SectorTable, error) {
	if sectorSize <= 0 || sectorSize&(sectorSize-1) != 0 {
		return nil, ErrSectorSize
	}
	if width <= 0 || height <= 0 {
		return nil, ErrZoneSize
	}
	t := &SectorTable{
		size:  sectorSize,
		shift: uint(bits.TrailingZeros(uint(sectorSize))),
	}
	t.cur.Store(&grid{})
	t.Resize(width, height)
	return t, nil
}

func (t *SectorTable) SectorSize() int { return t.size }

// Dims returns the covered world size.
func (t *SectorTable) Dims() (width, height int) {
	g := t.cur.Load()
	return g.width, g.height
}

// GridSize returns the number of sector columns and rows.
func (t *SectorTable) GridSize() (cols, rows int) {
	g := t.cur.Load()
	return g.cols, g.rows
}

// Sectors returns every sector in creation order.
func (t *SectorTable) Sectors() []*Sector {
	return t.cur.Load().all
}

// Len returns the number of sectors.
func (t *SectorTable) Len() int {
	return len(t.cur.Load().all)
}

// SectorOf returns the sector containing (x, y). The point must lie inside
// the zone; use SectorOfSafe for untrusted coordinates.
func (t *SectorTable) SectorOf(x, y int) *Sector {
	g := t.cur.Load()
	return g.cells[x>>t.shift][y>>t.shift]
}

// SectorOfSafe clamps (x, y) into the zone before the lookup.
func (t *SectorTable) SectorOfSafe(x, y int) *Sector {
	g := t.cur.Load()
	x = clampInt(x, 0, g.width-1)
	y = clampInt(y, 0, g.height-1)
	return g.cells[x>>t.shift][y>>t.shift]
}

// At returns the sector at grid position (col, row), or nil when outside.
func (t *SectorTable) At(col, row int) *Sector {
	g := t.cur.Load()
	if col < 0 || row < 0 || col >= g.cols || row >= g.rows {
		return nil
	}
	return g.cells[col][row]
}

// span returns the inclusive column and row range of sectors intersecting r.
// ok is false when r lies entirely outside the zone.
func (t *SectorTable) span(r Rect) (c0, r0, c1, r1 int, ok bool) {
	g := t.cur.Load()
	if !r.Intersects(Rect{W: g.width, H: g.height}) {
		return 0, 0, 0, 0, false
	}
	x0 := clampInt(r.X, 0, g.width-1)
	y0 := clampInt(r.Y, 0, g.height-1)
	x1 := clampInt(r.X+r.W-1, 0, g.width-1)
	y1 := clampInt(r.Y+r.H-1, 0, g.height-1)
	return x0 >> t.shift, y0 >> t.shift, x1 >> t.shift, y1 >> t.shift, true
}

// Resize grows the table to cover width x height. Requests with a zero
// dimension, or that fit in the current table, only update the covered
// size when it grows. Existing sectors keep their identity and index; new
// ones are appended and every neighbour link is recomputed. Returns true
// when sectors were added.
func (t *SectorTable) Resize(width, height int) bool {
	if width <= 0 || height <= 0 {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	old := t.cur.Load()
	width = max(width, old.width)
	height = max(height, old.height)
	cols := (width + t.size - 1) >> t.shift
	rows := (height + t.size - 1) >> t.shift

	if cols <= old.cols && rows <= old.rows {
		if width == old.width && height == old.height {
			return false
		}
		g := *old
		g.width, g.height = width, height
		t.cur.Store(&g)
		return false
	}
	cols = max(cols, old.cols)
	rows = max(rows, old.rows)

	g := &grid{
		width:  width,
		height: height,
		cols:   cols,
		rows:   rows,
		cells:  make([][]*Sector, cols),
		all:    make([]*Sector, len(old.all), cols*rows),
	}
	copy(g.all, old.all)
	for c := 0; c < cols; c++ {
		g.cells[c] = make([]*Sector, rows)
		for r := 0; r < rows; r++ {
			if c < old.cols && r < old.rows {
				g.cells[c][r] = old.cells[c][r]
				continue
			}
			s := newSector(len(g.all), c, r, t.size)
			g.cells[c][r] = s
			g.all = append(g.all, s)
		}
	}
	link(g)
	t.cur.Store(g)
	return true
}

// link recomputes the four neighbour pointers of every sector.
func link(g *grid) {
	for c := 0; c < g.cols; c++ {
		for r := 0; r < g.rows; r++ {
			s := g.cells[c][r]
			s.left, s.right, s.top, s.bottom = nil, nil, nil, nil
			if c > 0 {
				s.left = g.cells[c-1][r]
			}
			if c+1 < g.cols {
				s.right = g.cells[c+1][r]
			}
			if r > 0 {
				s.top = g.cells[c][r-1]
			}
			if r+1 < g.rows {
				s.bottom = g.cells[c][r+1]
			}
		}
	}
}
