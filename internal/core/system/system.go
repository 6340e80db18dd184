package system

import "time"

// Phase defines execution ordering among registered systems within the
// zone's per-cycle system stage.
type Phase int

const (
	PhaseEarly  Phase = iota // 0: state derived from last cycle's input
	PhaseScript              // 1: scripted per-cycle hooks
	PhaseUpdate              // 2: application logic
	PhaseReport              // 3: statistics sampling
)

// System is the interface every per-cycle application callback implements.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}

// Func adapts a plain function to System. Register it by pointer.
type Func struct {
	P  Phase
	Fn func(dt time.Duration)
}

func (f *Func) Phase() Phase            { return f.P }
func (f *Func) Update(dt time.Duration) { f.Fn(dt) }
