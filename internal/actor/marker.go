package actor

import (
	"sync/atomic"

	"github.com/l1jgo/sectorsim/internal/world"
)

// Marker is a static, selectable sprite. Clicking it selects it; clicking
// it again while selected rejects and lets the sprite below take the pick.
type Marker struct {
	world.BaseSprite
	Appearance

	selected atomic.Int32 // cameras currently holding the selection
	picks    atomic.Int64
}

func NewMarker(x, y, w, h int, layer float64, look Appearance) *Marker {
	return &Marker{
		BaseSprite: world.NewBaseSprite(x, y, w, h, layer),
		Appearance: look,
	}
}

func (m *Marker) Selected() bool { return m.selected.Load() > 0 }

// Picks returns how many selections the marker accepted.
func (m *Marker) Picks() int64 { return m.picks.Load() }

func (m *Marker) Draw(g world.Graphics, dst world.Rect) { m.draw(g, dst) }

func (m *Marker) Select(world.SelectEvent) world.SelectResult {
	if m.Selected() {
		return world.RejectContinue
	}
	m.selected.Add(1)
	m.picks.Add(1)
	return world.Accept
}

func (m *Marker) Deselect() {
	m.selected.Add(-1)
}

func (m *Marker) DrawSelection(g world.Graphics, dst world.Rect) {
	if c, ok := g.(Canvas); ok {
		c.Outline(dst, "yellow")
	}
}
