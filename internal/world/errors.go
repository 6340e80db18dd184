package world

import (
	"errors"
	"fmt"
)

var (
	ErrSectorSize     = errors.New("sector size must be a positive power of two")
	ErrZoneSize       = errors.New("zone width and height must be positive")
	ErrThreadCount    = errors.New("thread count must be at least 1")
	ErrTooManyCameras = errors.New("camera limit reached")
	ErrAlreadyInZone  = errors.New("already attached to a zone")
	ErrNotInZone      = errors.New("not attached to this zone")
	ErrRunning        = errors.New("processor already running")
	ErrBarrierBroken  = errors.New("barrier broken")
)

// FaultError reports a panic raised by a hook on one of the processor's
// workers. The cycle it happened in is abandoned and the pool stops.
type FaultError struct {
	Worker int
	Stage  string
	Cycle  uint64
	Value  any
	Stack  []byte
}

func (e *FaultError) Error() string {
	return fmt.Sprintf("worker %d faulted in %s (cycle %d): %v", e.Worker, e.Stage, e.Cycle, e.Value)
}

// Unwrap exposes the panic value when it was an error.
func (e *FaultError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
