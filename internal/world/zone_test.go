package world

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/l1jgo/sectorsim/internal/core/system"
)

func TestNewZoneValidation(t *testing.T) {
	if _, err := NewZone(Options{Width: 100, Height: 100, SectorSize: 48}); !errors.Is(err, ErrSectorSize) {
		t.Errorf("sector size 48: %v", err)
	}
	if _, err := NewZone(Options{Width: 0, Height: 100}); !errors.Is(err, ErrZoneSize) {
		t.Errorf("zero width: %v", err)
	}
	if _, err := NewZone(Options{Width: 10, Height: 10, CycleInterval: -time.Second}); err == nil {
		t.Error("negative interval accepted")
	}
	z, err := NewZone(Options{Width: 10, Height: 10})
	if err != nil {
		t.Fatal(err)
	}
	if z.Table().SectorSize() != DefaultSectorSize || z.opts.CycleInterval != DefaultCycleInterval {
		t.Error("defaults not applied")
	}
}

func TestAddSpriteClamps(t *testing.T) {
	z := newTestZone(t, 4096, 4096, 2048)
	cases := []struct {
		in         [4]int
		x, y, w, h int
	}{
		{[4]int{-5, 5000, 5000, 0}, 0, 4095, 2048, 1},
		{[4]int{4000, 10, 2048, 10}, 4000, 10, 96, 10},
		{[4]int{100, 100, 3000, 3000}, 100, 100, 2048, 2048},
		{[4]int{10, 10, -3, 7}, 10, 10, 1, 7},
	}
	for _, tc := range cases {
		d := newDot(tc.in[0], tc.in[1], tc.in[2], tc.in[3], 99)
		mustAdd(t, z, d)
		if d.X() != tc.x || d.Y() != tc.y || d.Width() != tc.w || d.Height() != tc.h {
			t.Errorf("%v -> (%d,%d %dx%d), want (%d,%d %dx%d)",
				tc.in, d.X(), d.Y(), d.Width(), d.Height(), tc.x, tc.y, tc.w, tc.h)
		}
		if d.Layer() != MaxLayer {
			t.Errorf("layer = %v, want %d", d.Layer(), MaxLayer)
		}
	}
	checkMembership(t, z)
}

func TestAddSpriteTwice(t *testing.T) {
	z := newTestZone(t, 256, 256, 64)
	other := newTestZone(t, 256, 256, 64)
	d := newDot(1, 1, 1, 1, 0)
	mustAdd(t, z, d)
	if err := z.AddSprite(d); !errors.Is(err, ErrAlreadyInZone) {
		t.Errorf("re-add: %v", err)
	}
	if err := other.AddSprite(d); !errors.Is(err, ErrAlreadyInZone) {
		t.Errorf("add to second zone: %v", err)
	}
	if err := other.DeleteSprite(d); !errors.Is(err, ErrNotInZone) {
		t.Errorf("delete from wrong zone: %v", err)
	}
	if d.ID().IsZero() {
		t.Error("sprite has no id")
	}
}

type initCounter struct {
	dot
	inits int
	zone  *Zone
}

func (i *initCounter) Init(z *Zone) {
	i.inits++
	i.zone = z
}

func TestAddDeleteRoundTrip(t *testing.T) {
	z := newTestZone(t, 512, 512, 64)
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 40; i++ {
		mustAdd(t, z, newWalker(rng.Intn(512), rng.Intn(512), 1+rng.Intn(60), 1+rng.Intn(60), 0, 0))
	}
	step(t, z, 2)

	count := z.SpriteCount()
	before := make(map[*Sector][]Sprite)
	for _, s := range z.Sectors() {
		before[s] = s.Members()
	}

	p := newPickable(200, 200, 30, 30, 4, Accept)
	mustAdd(t, z, p)
	if z.SpriteCount() != count+1 {
		t.Fatalf("count after add = %d", z.SpriteCount())
	}
	step(t, z, 1)
	if err := z.DeleteSprite(p); err != nil {
		t.Fatal(err)
	}
	if err := z.DeleteSprite(p); err != nil {
		t.Fatalf("second delete before eviction: %v", err)
	}
	step(t, z, 2)

	if p.deletes != 1 {
		t.Errorf("OnDelete ran %d times", p.deletes)
	}
	if !p.Deleted() || p.Zone() != nil || p.Sector() != nil {
		t.Error("evicted sprite still attached")
	}
	if z.SpriteCount() != count {
		t.Errorf("count = %d, want %d", z.SpriteCount(), count)
	}
	for _, s := range z.Sectors() {
		if !sameSprites(before[s], s.Members()) {
			t.Errorf("sector %d membership changed", s.Index())
		}
		if s.PendingDeltas() != 0 {
			t.Errorf("sector %d has pending deltas", s.Index())
		}
	}
	if err := z.DeleteSprite(p); !errors.Is(err, ErrNotInZone) {
		t.Errorf("delete after eviction: %v", err)
	}

	// An evicted sprite can join again.
	mustAdd(t, z, p)
	if p.Deleted() || z.SpriteCount() != count+1 {
		t.Error("re-added sprite not live")
	}
}

func TestInitHook(t *testing.T) {
	z := newTestZone(t, 256, 256, 64)
	s := &initCounter{dot: dot{BaseSprite: NewBaseSprite(3, 3, 3, 3, 0)}}
	mustAdd(t, z, s)
	if s.inits != 1 || s.zone != z {
		t.Errorf("Init ran %d times with zone %p", s.inits, s.zone)
	}
}

func TestSingleMembershipUnderRandomMotion(t *testing.T) {
	z := newTestZone(t, 1024, 1024, 128)
	rng := rand.New(rand.NewSource(42))
	var walkers []*walker
	for i := 0; i < 60; i++ {
		w := newWalker(rng.Intn(1024), rng.Intn(1024), 1+rng.Intn(128), 1+rng.Intn(128), rng.Intn(61)-30, rng.Intn(61)-30)
		walkers = append(walkers, w)
		mustAdd(t, z, w)
	}
	for i := 0; i < 30; i++ {
		step(t, z, 1)
		checkMembership(t, z)
		for _, w := range walkers {
			s := w.Sector()
			if !containsSprite(s.Updating(), w) {
				t.Fatalf("cycle %d: walker missing from its sector's update list", i)
			}
		}
	}
}

func TestZoneUpdateHookAndSystems(t *testing.T) {
	var cycles []uint64
	var order []string
	z, err := NewZone(Options{
		Width:  128,
		Height: 128,
		Update: func(z *Zone) {
			cycles = append(cycles, z.Cycle())
			order = append(order, "zone")
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	z.Runner().Register(&system.Func{P: system.PhaseUpdate, Fn: func(time.Duration) {
		order = append(order, "system")
	}})
	step(t, z, 3)
	if len(cycles) != 3 || cycles[0] != 1 || cycles[2] != 3 {
		t.Errorf("hook saw cycles %v", cycles)
	}
	if len(order) != 6 || order[0] != "zone" || order[1] != "system" {
		t.Errorf("stage order %v", order)
	}
}

func TestPauseSemantics(t *testing.T) {
	mt := NewManualTime(time.Unix(1000, 0))
	z, err := NewZone(Options{Width: 256, Height: 256, SectorSize: 64, Clock: mt})
	if err != nil {
		t.Fatal(err)
	}
	l := newListener()
	mustAdd(t, z, l)
	z.Catalog().Subscribe("ann", l)

	mt.Advance(time.Second)
	step(t, z, 1)
	if z.ZoneTime() != time.Second {
		t.Fatalf("zone time = %v, want 1s", z.ZoneTime())
	}

	if !z.Pause() || z.Pause() {
		t.Fatal("Pause should succeed once")
	}
	z.Catalog().QueueClick(ClickEvent{User: "ann"})
	mt.Advance(5 * time.Second)
	cycle := z.Cycle()
	ran, err := z.Step()
	if err != nil || ran {
		t.Fatalf("Step while paused = %v, %v", ran, err)
	}
	if z.Cycle() != cycle || z.ZoneTime() != time.Second {
		t.Error("paused zone advanced")
	}
	if len(l.log) != 0 {
		t.Errorf("paused listener received %v", l.log)
	}

	if !z.Resume() || z.Resume() {
		t.Fatal("Resume should succeed once")
	}
	step(t, z, 1)
	if z.ZoneTime() != time.Second {
		t.Errorf("zone time after resume = %v, want 1s", z.ZoneTime())
	}
	if len(l.log) != 0 {
		t.Errorf("input queued while paused was delivered: %v", l.log)
	}

	mt.Advance(500 * time.Millisecond)
	z.Catalog().QueueClick(ClickEvent{User: "ann"})
	step(t, z, 1)
	if z.ZoneTime() != 1500*time.Millisecond {
		t.Errorf("zone time = %v, want 1.5s", z.ZoneTime())
	}
	if len(l.log) != 1 {
		t.Errorf("listener log = %v, want one click", l.log)
	}
}

func TestResizeLogsAndGrows(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	z, err := NewZone(Options{Width: 128, Height: 128, SectorSize: 64, Logger: zap.New(core)})
	if err != nil {
		t.Fatal(err)
	}
	d := newDot(100, 100, 10, 10, 0)
	mustAdd(t, z, d)
	home := d.Sector()

	z.Resize(300, 200)
	if z.Width() != 300 || z.Height() != 200 || z.Table().Len() != 20 {
		t.Errorf("after resize: %dx%d with %d sectors", z.Width(), z.Height(), z.Table().Len())
	}
	if d.Sector() != home || !home.Has(d) {
		t.Error("resize moved an existing sprite")
	}
	entries := logs.FilterMessage("zone resized").All()
	if len(entries) != 1 {
		t.Fatalf("resize logged %d times", len(entries))
	}
	if got := entries[0].ContextMap()["sectors"]; got != int64(20) {
		t.Errorf("logged sectors = %v", got)
	}
}

func TestTrimKeepsLiveState(t *testing.T) {
	z := newTestZone(t, 256, 256, 64)
	var walkers []*walker
	for i := 0; i < 200; i++ {
		w := newWalker(i%64, i%64, 2, 2, 0, 0)
		walkers = append(walkers, w)
		mustAdd(t, z, w)
	}
	step(t, z, 1)
	for _, w := range walkers[:190] {
		_ = z.DeleteSprite(w)
	}
	step(t, z, 2)
	z.RequestTrim()
	step(t, z, 1)
	s := z.SectorOf(0, 0)
	if len(s.Updating()) != 10 || s.Len() != 10 {
		t.Errorf("after trim: %d updating, %d members", len(s.Updating()), s.Len())
	}
	if cap(s.updating) >= 200 {
		t.Errorf("update list capacity %d not trimmed", cap(s.updating))
	}
}
