package system

import (
	"testing"
	"time"
)

func TestRunnerPhaseOrder(t *testing.T) {
	r := NewRunner()
	var order []string
	add := func(name string, p Phase) *Func {
		f := &Func{P: p, Fn: func(time.Duration) { order = append(order, name) }}
		r.Register(f)
		return f
	}
	add("report", PhaseReport)
	add("update-1", PhaseUpdate)
	early := add("early", PhaseEarly)
	add("update-2", PhaseUpdate)
	add("script", PhaseScript)

	r.Tick(time.Millisecond)
	want := []string{"early", "script", "update-1", "update-2", "report"}
	if len(order) != len(want) {
		t.Fatalf("order = %v", order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}

	if !r.Unregister(early) || r.Unregister(early) {
		t.Error("unregister")
	}
	order = order[:0]
	r.TickPhase(PhaseUpdate, 0)
	if len(order) != 2 || r.Len() != 4 {
		t.Errorf("TickPhase ran %v", order)
	}
}

func TestRunnerRegisterDuringTick(t *testing.T) {
	r := NewRunner()
	ran := 0
	late := &Func{P: PhaseEarly, Fn: func(time.Duration) { ran++ }}
	r.Register(&Func{P: PhaseUpdate, Fn: func(time.Duration) { r.Register(late) }})
	r.Tick(0)
	if ran != 0 {
		t.Error("system registered mid-tick ran in the same tick")
	}
	r.Tick(0)
	if ran != 1 {
		t.Errorf("late system ran %d times", ran)
	}
}
