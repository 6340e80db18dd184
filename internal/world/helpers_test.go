package world

import (
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

// dot is a plain sprite with no capabilities.
type dot struct {
	BaseSprite
}

func newDot(x, y, w, h int, layer float64) *dot {
	return &dot{BaseSprite: NewBaseSprite(x, y, w, h, layer)}
}

func (d *dot) Draw(Graphics, Rect) {}

// walker moves by (dx, dy) every update.
type walker struct {
	BaseSprite
	dx, dy  int
	updates int
	panicOn int
}

func newWalker(x, y, w, h int, dx, dy int) *walker {
	return &walker{BaseSprite: NewBaseSprite(x, y, w, h, 0), dx: dx, dy: dy}
}

func (w *walker) Draw(Graphics, Rect) {}

func (w *walker) Update() {
	w.updates++
	if w.panicOn > 0 && w.updates == w.panicOn {
		panic("walker exploded")
	}
	if w.dx != 0 || w.dy != 0 {
		w.Move(w.dx, w.dy)
	}
}

// bumper records every Collide call.
type bumper struct {
	BaseSprite
	mu   sync.Mutex
	hits map[Sprite]int
}

func newBumper(x, y, w, h int, layer float64) *bumper {
	return &bumper{BaseSprite: NewBaseSprite(x, y, w, h, layer), hits: make(map[Sprite]int)}
}

func (b *bumper) Draw(Graphics, Rect) {}

func (b *bumper) Collide(other Sprite) {
	b.mu.Lock()
	b.hits[other]++
	b.mu.Unlock()
}

func (b *bumper) hitsWith(other Sprite) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[other]
}

func (b *bumper) total() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, v := range b.hits {
		n += v
	}
	return n
}

// pickable answers selection offers with a fixed result.
type pickable struct {
	BaseSprite
	answer     SelectResult
	offers     int
	deselects  int
	selections int
	deletes    int
}

func newPickable(x, y, w, h int, layer float64, answer SelectResult) *pickable {
	return &pickable{BaseSprite: NewBaseSprite(x, y, w, h, layer), answer: answer}
}

func (p *pickable) Draw(Graphics, Rect)          {}
func (p *pickable) DrawSelection(Graphics, Rect) {}
func (p *pickable) Deselect()                    { p.deselects++ }
func (p *pickable) OnDelete()                    { p.deletes++ }

func (p *pickable) Select(SelectEvent) SelectResult {
	p.offers++
	if p.answer == Accept {
		p.selections++
	}
	return p.answer
}

// listener records delivered input in arrival order.
type listener struct {
	BaseSprite
	log []string
}

func newListener() *listener {
	return &listener{BaseSprite: NewBaseSprite(0, 0, 1, 1, 0)}
}

func (l *listener) Draw(Graphics, Rect) {}

func (l *listener) OnClick(ev ClickEvent)    { l.log = append(l.log, "click") }
func (l *listener) OnPress(ev ButtonEvent)   { l.log = append(l.log, "press") }
func (l *listener) OnRelease(ev ButtonEvent) { l.log = append(l.log, "release") }
func (l *listener) OnKey(ev KeyEvent)        { l.log = append(l.log, "key:"+ev.Action.String()) }
func (l *listener) OnWheel(ev WheelEvent)    { l.log = append(l.log, "wheel") }

func newTestZone(t *testing.T, w, h, size int) *Zone {
	t.Helper()
	z, err := NewZone(Options{
		Width:         w,
		Height:        h,
		SectorSize:    size,
		CycleInterval: time.Millisecond,
		Logger:        zaptest.NewLogger(t),
	})
	if err != nil {
		t.Fatalf("NewZone: %v", err)
	}
	return z
}

func mustAdd(t *testing.T, z *Zone, sps ...Sprite) {
	t.Helper()
	for _, sp := range sps {
		if err := z.AddSprite(sp); err != nil {
			t.Fatalf("AddSprite: %v", err)
		}
	}
}

func step(t *testing.T, z *Zone, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		ran, err := z.Step()
		if err != nil {
			t.Fatalf("Step: %v", err)
		}
		if !ran {
			t.Fatalf("Step %d did not run", i)
		}
	}
}

// checkMembership asserts every registered sprite sits in exactly one
// sector, the one under its top-left corner.
func checkMembership(t *testing.T, z *Zone) {
	t.Helper()
	for _, sp := range z.Sprites() {
		b := sp.Base()
		want := z.SectorOf(b.X(), b.Y())
		found := 0
		for _, s := range z.Sectors() {
			if s.Has(sp) {
				found++
				if s != want {
					t.Errorf("sprite at (%d,%d) is in sector %d, want %d", b.X(), b.Y(), s.Index(), want.Index())
				}
			}
		}
		if found != 1 {
			t.Errorf("sprite at (%d,%d) is in %d sectors", b.X(), b.Y(), found)
		}
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}
