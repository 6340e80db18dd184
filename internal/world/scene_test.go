package world

import (
	"testing"
)

type drawLog struct {
	names []string
}

type named struct {
	BaseSprite
	name string
}

func newNamed(name string, x, y int, layer float64) *named {
	return &named{BaseSprite: NewBaseSprite(x, y, 10, 10, layer), name: name}
}

func (n *named) Draw(g Graphics, dst Rect) {
	g.(*drawLog).names = append(g.(*drawLog).names, n.name)
}

func TestSceneLayersAndCulling(t *testing.T) {
	z := newTestZone(t, 1024, 1024, 64)
	mustAdd(t, z,
		newNamed("a", 10, 10, 3.2),
		newNamed("b", 20, 20, 3.7),
		newNamed("c", 30, 30, 1),
		newNamed("d", 40, 40, 3.5),
		newNamed("hidden", 150, 150, 2),
	)
	c := addCamera(t, z, "ann", Rect{X: 5, Y: 5, W: 100, H: 100})
	step(t, z, 2)

	sc := c.LockScene()
	if sc == nil {
		t.Fatal("no scene")
	}
	defer sc.Unlock()

	if sc.Len() != 4 {
		t.Fatalf("scene holds %d sprites, want 4", sc.Len())
	}
	band := sc.Layer(3)
	if len(band) != 3 {
		t.Fatalf("layer 3 holds %d sprites", len(band))
	}
	for i := 1; i < len(band); i++ {
		if band[i-1].Layer < band[i].Layer {
			t.Errorf("layer 3 not descending: %v before %v", band[i-1].Layer, band[i].Layer)
		}
	}
	if sc.Layer(-1) != nil || sc.Layer(NumLayers) != nil {
		t.Error("out of range layer should be nil")
	}
	first := sc.Layer(1)[0]
	if first.Dst != (Rect{X: 25, Y: 25, W: 10, H: 10}) {
		t.Errorf("dst = %+v, want viewport-relative", first.Dst)
	}
	if sc.Bounds() != c.Bounds() || sc.Cycle() != z.Cycle() {
		t.Error("scene metadata")
	}

	log := &drawLog{}
	sc.Draw(log)
	want := []string{"c", "a", "d", "b"}
	if len(log.names) != len(want) {
		t.Fatalf("drew %v", log.names)
	}
	for i := range want {
		if log.names[i] != want[i] {
			t.Fatalf("draw order %v, want %v", log.names, want)
		}
	}
}

func TestSceneBufferRotation(t *testing.T) {
	z := newTestZone(t, 256, 256, 64)
	mustAdd(t, z, newDot(10, 10, 5, 5, 0))
	c := addCamera(t, z, "ann", Rect{W: 100, H: 100})
	if c.LockScene() != nil {
		t.Fatal("scene before the first cycle")
	}
	step(t, z, 1)

	// A renderer holding the current scene never blocks the simulation.
	held := c.LockScene()
	if held == nil {
		t.Fatal("no scene")
	}
	built := held.Cycle()
	for i := 0; i < 5; i++ {
		step(t, z, 1)
	}
	if held.Cycle() != built {
		t.Error("simulation rewrote a scene the renderer holds")
	}
	held.Unlock()

	next := c.LockScene()
	if next == nil || next == held || next.Cycle() != z.Cycle() {
		t.Fatal("latest scene not published")
	}
	// The current scene is already held.
	if c.LockScene() != nil {
		t.Error("second lock of the current scene should fail")
	}
	next.Unlock()
}
