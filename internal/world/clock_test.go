package world

import (
	"testing"
	"time"
)

func TestClockExcludesPausedTime(t *testing.T) {
	mt := NewManualTime(time.Unix(0, 0))
	c := NewClock(mt)

	mt.Advance(3 * time.Second)
	if got := c.Elapsed(); got != 3*time.Second {
		t.Fatalf("elapsed = %v", got)
	}
	if !c.Pause() {
		t.Fatal("Pause returned false")
	}
	mt.Advance(10 * time.Second)
	if got := c.Elapsed(); got != 3*time.Second {
		t.Errorf("elapsed while paused = %v", got)
	}
	if got := c.PausedTotal(); got != 10*time.Second {
		t.Errorf("paused total = %v", got)
	}
	c.Resume()
	if got := c.Elapsed(); got != 3*time.Second {
		t.Errorf("elapsed right after resume = %v", got)
	}
	mt.Advance(time.Second)
	if got := c.Elapsed(); got != 4*time.Second {
		t.Errorf("elapsed = %v, want 4s", got)
	}
	if c.Resume() {
		t.Error("Resume on a running clock returned true")
	}
}
