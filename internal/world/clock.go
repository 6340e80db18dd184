package world

import (
	"sync"
	"time"
)

// TimeProvider abstracts wall-clock time so tests can drive the zone clock.
type TimeProvider interface {
	Now() time.Time
}

type systemTime struct{}

func (systemTime) Now() time.Time { return time.Now() }

// ManualTime is a TimeProvider that only moves when told to.
type ManualTime struct {
	mu  sync.Mutex
	now time.Time
}

func NewManualTime(start time.Time) *ManualTime {
	return &ManualTime{now: start}
}

func (m *ManualTime) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *ManualTime) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

// Clock measures simulation time: wall time since start minus every paused
// interval.
type Clock struct {
	mu          sync.Mutex
	tp          TimeProvider
	start       time.Time
	paused      bool
	pauseStart  time.Time
	pausedTotal time.Duration
}

func NewClock(tp TimeProvider) *Clock {
	if tp == nil {
		tp = systemTime{}
	}
	return &Clock{tp: tp, start: tp.Now()}
}

// Elapsed returns simulation time. It is frozen while paused.
func (c *Clock) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.tp.Now()
	if c.paused {
		now = c.pauseStart
	}
	return now.Sub(c.start) - c.pausedTotal
}

// Pause freezes simulation time. Returns false if already paused.
func (c *Clock) Pause() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.paused {
		return false
	}
	c.paused = true
	c.pauseStart = c.tp.Now()
	return true
}

// Resume adds the paused interval to the total. Returns false if not paused.
func (c *Clock) Resume() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.paused {
		return false
	}
	c.pausedTotal += c.tp.Now().Sub(c.pauseStart)
	c.paused = false
	c.pauseStart = time.Time{}
	return true
}

func (c *Clock) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// PausedTotal returns the cumulative paused duration, including the current
// pause.
func (c *Clock) PausedTotal() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := c.pausedTotal
	if c.paused {
		total += c.tp.Now().Sub(c.pauseStart)
	}
	return total
}
