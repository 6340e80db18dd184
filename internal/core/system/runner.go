package system

import (
	"sort"
	"sync"
	"time"
)

// Runner executes systems in phase order each cycle.
// Register may be called from any goroutine; Tick runs on the zone's leader.
type Runner struct {
	mu      sync.Mutex
	systems []System
	sorted  bool
}

func NewRunner() *Runner {
	return &Runner{
		systems: make([]System, 0, 16),
	}
}

func (r *Runner) Register(s System) {
	r.mu.Lock()
	r.systems = append(r.systems, s)
	r.sorted = false
	r.mu.Unlock()
}

// Unregister removes s. Returns false when s was never registered.
func (r *Runner) Unregister(s System) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, cur := range r.systems {
		if cur == s {
			r.systems = append(r.systems[:i], r.systems[i+1:]...)
			return true
		}
	}
	return false
}

func (r *Runner) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.systems)
}

func (r *Runner) Tick(dt time.Duration) {
	for _, s := range r.snapshot() {
		s.Update(dt)
	}
}

// TickPhase runs only the systems registered for phase.
func (r *Runner) TickPhase(phase Phase, dt time.Duration) {
	for _, s := range r.snapshot() {
		if s.Phase() == phase {
			s.Update(dt)
		}
	}
}

// snapshot returns the sorted system list so Update hooks may register
// further systems without deadlocking.
func (r *Runner) snapshot() []System {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.sorted {
		sort.SliceStable(r.systems, func(i, j int) bool {
			return r.systems[i].Phase() < r.systems[j].Phase()
		})
		r.sorted = true
	}
	out := make([]System, len(r.systems))
	copy(out, r.systems)
	return out
}
