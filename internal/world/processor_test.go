package world

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func groupSizes(groups [][]*Sector) []int {
	out := make([]int, len(groups))
	for i, g := range groups {
		out[i] = len(g)
	}
	return out
}

func checkPartition(t *testing.T, groups [][]*Sector, sectors []*Sector) {
	t.Helper()
	seen := make(map[*Sector]int)
	next := 0
	for _, g := range groups {
		for _, s := range g {
			seen[s]++
			if s != sectors[next] {
				t.Fatalf("groups are not contiguous at sector %d", next)
			}
			next++
		}
	}
	for _, s := range sectors {
		if seen[s] != 1 {
			t.Errorf("sector %d appears in %d groups", s.Index(), seen[s])
		}
	}
}

func TestPartition(t *testing.T) {
	tab, _ := NewSectorTable(10*64, 64, 64)
	sectors := tab.Sectors()
	cases := []struct {
		threads int
		want    []int
	}{
		{1, []int{10}},
		{4, []int{2, 2, 2, 4}},
		{5, []int{2, 2, 2, 2, 2}},
		{3, []int{3, 3, 4}},
		{12, []int{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 0, 0}},
	}
	for _, tc := range cases {
		groups := partition(sectors, tc.threads)
		got := groupSizes(groups)
		if len(got) != len(tc.want) {
			t.Errorf("threads=%d: %v, want %v", tc.threads, got, tc.want)
			continue
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("threads=%d: %v, want %v", tc.threads, got, tc.want)
				break
			}
		}
		checkPartition(t, groups, sectors)
	}
}

func TestStartGroupsSixteenSectorsOverFourWorkers(t *testing.T) {
	z := newTestZone(t, 4*64, 4*64, 64)
	if err := z.Start(context.Background(), 4); err != nil {
		t.Fatal(err)
	}
	groups := z.Processor().Groups()
	z.Stop()
	if err := z.Wait(); err != nil {
		t.Fatal(err)
	}
	if len(groups) != 4 {
		t.Fatalf("%d groups", len(groups))
	}
	for i, g := range groups {
		if len(g) != 4 {
			t.Errorf("group %d has %d sectors", i, len(g))
		}
	}
	checkPartition(t, groups, z.Sectors())
}

func TestStartValidation(t *testing.T) {
	z := newTestZone(t, 128, 128, 64)
	if err := z.Start(context.Background(), 0); !errors.Is(err, ErrThreadCount) {
		t.Errorf("zero threads: %v", err)
	}
	if err := z.Start(context.Background(), 2); err != nil {
		t.Fatal(err)
	}
	if err := z.Start(context.Background(), 2); !errors.Is(err, ErrRunning) {
		t.Errorf("second start: %v", err)
	}
	if _, err := z.Step(); !errors.Is(err, ErrRunning) {
		t.Errorf("Step while running: %v", err)
	}
	z.Stop()
	if err := z.Wait(); err != nil {
		t.Fatal(err)
	}
	if z.Running() {
		t.Error("still running after Wait")
	}
	// Restartable.
	if err := z.Start(context.Background(), 1); err != nil {
		t.Fatalf("restart: %v", err)
	}
	z.Stop()
	_ = z.Wait()
}

func TestProcessorRunsCycles(t *testing.T) {
	z := newTestZone(t, 512, 512, 64)
	var walkers []*walker
	for i := 0; i < 32; i++ {
		w := newWalker(i*16, i*16, 4, 4, 1, 0)
		walkers = append(walkers, w)
		mustAdd(t, z, w)
	}
	c := addCamera(t, z, "ann", Rect{W: 200, H: 200})

	if err := z.Start(context.Background(), 4); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "50 cycles", func() bool { return z.Cycle() >= 50 })
	z.Stop()
	if err := z.Wait(); err != nil {
		t.Fatal(err)
	}

	cycles := int(z.Cycle())
	for i, w := range walkers {
		// Listed from the first post-update on.
		if w.updates != cycles-1 {
			t.Errorf("walker %d updated %d times in %d cycles", i, w.updates, cycles)
		}
	}
	checkMembership(t, z)
	checkTracked(t, z, c)
	if sc := c.LockScene(); sc == nil {
		t.Error("no scene published")
	} else {
		sc.Unlock()
	}
}

func TestProcessorAppliesResize(t *testing.T) {
	z := newTestZone(t, 128, 128, 64)
	if err := z.Start(context.Background(), 3); err != nil {
		t.Fatal(err)
	}
	z.Resize(512, 256)
	waitFor(t, "resize", func() bool { return z.Table().Len() == 32 })
	start := z.Cycle()
	waitFor(t, "a cycle after resize", func() bool { return z.Cycle() > start+1 })
	z.Stop()
	if err := z.Wait(); err != nil {
		t.Fatal(err)
	}
	groups := z.Processor().Groups()
	checkPartition(t, groups, z.Sectors())
	if sizes := groupSizes(groups); sizes[0] != 10 || sizes[2] != 12 {
		t.Errorf("groups after resize = %v", sizes)
	}
}

func TestProcessorFault(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	z, err := NewZone(Options{Width: 256, Height: 256, SectorSize: 64, Logger: zap.New(core)})
	if err != nil {
		t.Fatal(err)
	}
	bad := newWalker(10, 10, 2, 2, 0, 0)
	bad.panicOn = 3
	mustAdd(t, z, bad)
	for i := 0; i < 8; i++ {
		mustAdd(t, z, newWalker(70+i*20, 70, 2, 2, 0, 0))
	}
	if err := z.Start(context.Background(), 4); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- z.Wait() }()
	select {
	case err = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("pool did not stop after a fault")
	}

	var fault *FaultError
	if !errors.As(err, &fault) {
		t.Fatalf("Wait = %v, want *FaultError", err)
	}
	if fault.Stage != "update" || fault.Value != "walker exploded" || len(fault.Stack) == 0 {
		t.Errorf("fault = %+v", fault)
	}
	if bad.updates != 3 {
		t.Errorf("faulting hook ran %d times; the cycle must not be retried", bad.updates)
	}
	if logs.FilterMessage("worker fault").Len() != 1 {
		t.Error("fault not logged")
	}
}

func TestProcessorStopsOnContextCancel(t *testing.T) {
	z := newTestZone(t, 128, 128, 64)
	ctx, cancel := context.WithCancel(context.Background())
	if err := z.Start(ctx, 2); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "a cycle", func() bool { return z.Cycle() > 0 })
	cancel()
	if err := z.Wait(); err != nil {
		t.Fatal(err)
	}
}

func TestProcessorPauseHoldsCycles(t *testing.T) {
	z := newTestZone(t, 128, 128, 64)
	if err := z.Start(context.Background(), 2); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "a cycle", func() bool { return z.Cycle() > 0 })
	z.Pause()
	time.Sleep(20 * time.Millisecond) // let the cycle in flight finish
	held := z.Cycle()
	time.Sleep(300 * time.Millisecond)
	if z.Cycle() != held {
		t.Errorf("cycles advanced while paused: %d -> %d", held, z.Cycle())
	}
	z.Resume()
	waitFor(t, "cycles after resume", func() bool { return z.Cycle() > held })

	// Stop interrupts the pause sleep.
	z.Pause()
	begin := time.Now()
	z.Stop()
	if err := z.Wait(); err != nil {
		t.Fatal(err)
	}
	if time.Since(begin) > 200*time.Millisecond {
		t.Error("stop waited out the pause step")
	}
}

func TestProcessorTrimRequest(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	z, err := NewZone(Options{
		Width:        128,
		Height:       128,
		SectorSize:   64,
		TrimInterval: time.Millisecond,
		Logger:       zap.New(core),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := z.Start(context.Background(), 2); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "a trim", func() bool { return logs.FilterMessage("zone trimmed").Len() > 0 })
	z.Stop()
	if err := z.Wait(); err != nil {
		t.Fatal(err)
	}
}
