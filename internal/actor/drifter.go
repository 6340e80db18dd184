package actor

import (
	"sync/atomic"

	"github.com/l1jgo/sectorsim/internal/world"
)

// mover is the motion shared by Drifter and Ghost: a fixed velocity that
// bounces off the zone edges. Typed keys steer it once it is subscribed
// for a user: w a s d set the heading, space stops.
type mover struct {
	world.BaseSprite
	Appearance

	vx, vy int
	speed  int
	hits   atomic.Int32
}

func newMover(x, y, w, h int, layer float64, vx, vy int, look Appearance) mover {
	return mover{
		BaseSprite: world.NewBaseSprite(x, y, w, h, layer),
		Appearance: look,
		vx:         vx,
		vy:         vy,
		speed:      max(abs(vx), abs(vy), 1),
	}
}

func (m *mover) Velocity() (int, int) { return m.vx, m.vy }

func (m *mover) Draw(g world.Graphics, dst world.Rect) { m.draw(g, dst) }

func (m *mover) Update() {
	if m.hits.Swap(0) > 0 {
		m.vx, m.vy = -m.vx, -m.vy
	}
	z := m.Zone()
	x, y := m.X()+m.vx, m.Y()+m.vy
	if x < 0 || x+m.Width() > z.Width() {
		m.vx = -m.vx
		x = m.X() + m.vx
	}
	if y < 0 || y+m.Height() > z.Height() {
		m.vy = -m.vy
		y = m.Y() + m.vy
	}
	m.SetPosition(x, y)
}

func (m *mover) OnKey(ev world.KeyEvent) {
	if ev.Action != world.KeyTyped {
		return
	}
	switch ev.Rune {
	case 'w':
		m.vx, m.vy = 0, -m.speed
	case 's':
		m.vx, m.vy = 0, m.speed
	case 'a':
		m.vx, m.vy = -m.speed, 0
	case 'd':
		m.vx, m.vy = m.speed, 0
	case ' ':
		m.vx, m.vy = 0, 0
	}
}

// Drifter is a mover that reverses after touching another collider.
type Drifter struct {
	mover
	bumps atomic.Int64
}

func NewDrifter(x, y, w, h int, layer float64, vx, vy int, look Appearance) *Drifter {
	return &Drifter{mover: newMover(x, y, w, h, layer, vx, vy, look)}
}

// Bumps returns the number of collisions seen so far.
func (d *Drifter) Bumps() int64 { return d.bumps.Load() }

// Collide also runs on the worker owning the other sprite's sector.
func (d *Drifter) Collide(world.Sprite) {
	d.hits.Add(1)
	d.bumps.Add(1)
}

// Ghost is a mover that passes through everything.
type Ghost struct {
	mover
}

func NewGhost(x, y, w, h int, layer float64, vx, vy int, look Appearance) *Ghost {
	return &Ghost{mover: newMover(x, y, w, h, layer, vx, vy, look)}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
