package world

import "sync"

// barrier is a reusable rendezvous for a fixed number of workers. Breaking
// it releases every waiter with ErrBarrierBroken, now and on every later
// Wait, so a faulted worker cannot leave the rest of the pool parked.
type barrier struct {
	mu     sync.Mutex
	cond   *sync.Cond
	n      int
	count  int
	gen    uint64
	broken bool
}

func newBarrier(n int) *barrier {
	b := &barrier{n: n}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Wait blocks until all n workers have called Wait for the current
// generation.
func (b *barrier) Wait() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.broken {
		return ErrBarrierBroken
	}
	gen := b.gen
	b.count++
	if b.count == b.n {
		b.count = 0
		b.gen++
		b.cond.Broadcast()
		return nil
	}
	for gen == b.gen && !b.broken {
		b.cond.Wait()
	}
	if gen == b.gen {
		return ErrBarrierBroken
	}
	return nil
}

func (b *barrier) Break() {
	b.mu.Lock()
	b.broken = true
	b.cond.Broadcast()
	b.mu.Unlock()
}

func (b *barrier) Broken() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.broken
}
