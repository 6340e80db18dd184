package world

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Processor drives a zone with a fixed pool of workers running the cycle
// pipeline in lockstep. Worker 0 is the leader and runs every one-pass
// stage; the other workers are parked at the barrier meanwhile.
type Processor struct {
	zone    *Zone
	log     *zap.Logger
	threads int
	bar     *barrier

	groups [][]*Sector // rebuilt by the leader only
	halt   bool        // leader decision, read after the next barrier

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
	err      error
}

// partition splits sectors into one contiguous group per worker. Groups
// hold len/threads sectors and the remainder joins the last group. With
// fewer sectors than workers, the leading workers get one sector each.
func partition(sectors []*Sector, threads int) [][]*Sector {
	groups := make([][]*Sector, threads)
	size := len(sectors) / threads
	if size == 0 {
		for i, s := range sectors {
			groups[i] = []*Sector{s}
		}
		return groups
	}
	for i := 0; i < threads; i++ {
		lo := i * size
		hi := lo + size
		if i == threads-1 {
			hi = len(sectors)
		}
		groups[i] = sectors[lo:hi:hi]
	}
	return groups
}

// Start launches the worker pool. Cancelling ctx has the same effect as
// Stop.
func (z *Zone) Start(ctx context.Context, threads int) error {
	if threads < 1 {
		return ErrThreadCount
	}
	z.procMu.Lock()
	defer z.procMu.Unlock()
	if z.proc != nil && !z.proc.finished() {
		return ErrRunning
	}
	p := &Processor{
		zone:    z,
		log:     z.log.With(zap.Int("threads", threads)),
		threads: threads,
		bar:     newBarrier(threads),
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
	p.groups = partition(z.table.Sectors(), threads)
	z.proc = p

	g, gctx := errgroup.WithContext(ctx)
	for i := range threads {
		g.Go(func() error { return p.work(i) })
	}
	g.Go(func() error {
		p.trimmer(gctx)
		return nil
	})
	go func() {
		p.err = g.Wait()
		close(p.done)
	}()

	p.log.Info("zone processor started",
		zap.Int("sectors", z.table.Len()),
		zap.Duration("interval", z.opts.CycleInterval),
	)
	return nil
}

// Stop asks the processor to finish after the cycle in flight.
func (z *Zone) Stop() {
	if p := z.Processor(); p != nil {
		p.Stop()
	}
}

// Wait blocks until the processor has stopped and returns the first worker
// fault, if any.
func (z *Zone) Wait() error {
	if p := z.Processor(); p != nil {
		return p.Wait()
	}
	return nil
}

// Running reports whether a processor is driving the zone.
func (z *Zone) Running() bool {
	p := z.Processor()
	return p != nil && !p.finished()
}

// Processor returns the most recently started processor, or nil.
func (z *Zone) Processor() *Processor {
	z.procMu.Lock()
	defer z.procMu.Unlock()
	return z.proc
}

func (p *Processor) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
}

func (p *Processor) Wait() error {
	<-p.done
	return p.err
}

// Done is closed once every worker has returned.
func (p *Processor) Done() <-chan struct{} { return p.done }

func (p *Processor) Threads() int { return p.threads }

// Groups returns the current sector partition, one group per worker.
func (p *Processor) Groups() [][]*Sector {
	out := make([][]*Sector, len(p.groups))
	for i, g := range p.groups {
		out[i] = append([]*Sector(nil), g...)
	}
	return out
}

func (p *Processor) finished() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

func (p *Processor) stopping() bool {
	select {
	case <-p.stopCh:
		return true
	default:
		return false
	}
}

// sleep waits for d or until Stop. Returns false when stopped.
func (p *Processor) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-p.stopCh:
		return false
	}
}

// work is one worker's cycle loop. A barrier broken by a faulted peer ends
// the loop quietly; only the faulting worker reports an error.
func (p *Processor) work(id int) (err error) {
	z := p.zone
	leader := id == 0
	stage := "start"
	defer func() {
		if v := recover(); v != nil {
			fault := &FaultError{
				Worker: id,
				Stage:  stage,
				Cycle:  z.cycle.Load(),
				Value:  v,
				Stack:  debug.Stack(),
			}
			p.bar.Break()
			p.Stop()
			p.log.Error("worker fault",
				zap.Int("worker", id),
				zap.String("stage", stage),
				zap.Uint64("cycle", fault.Cycle),
				zap.Any("value", v),
			)
			err = fault
		}
	}()

	wait := func() bool {
		if err := p.bar.Wait(); err != nil {
			if !errors.Is(err, ErrBarrierBroken) {
				panic(err)
			}
			return false
		}
		return true
	}

	for {
		if leader {
			stage = "prologue"
			p.prologue()
		}
		if !wait() || p.halt {
			if leader && p.halt {
				p.log.Info("zone processor stopped", zap.Uint64("cycle", z.Cycle()))
			}
			return nil
		}

		stage = "update"
		updateGroup(p.groups[id])
		if leader {
			z.camNext.Store(0)
		}
		if !wait() {
			return nil
		}

		stage = "camera"
		z.updateCameras()
		if !wait() {
			return nil
		}

		stage = "post-update"
		postUpdateGroup(p.groups[id])
		if !wait() {
			return nil
		}

		stage = "collision"
		z.detectGroup(p.groups[id])
		if !wait() {
			return nil
		}
		z.dispatchGroup(p.groups[id])
		if !wait() {
			return nil
		}
		if leader {
			z.snapshotDeletes()
		}
		if !wait() {
			return nil
		}

		stage = "deletion"
		z.deleteQueued()
		if !wait() {
			return nil
		}

		if leader {
			stage = "pacing"
			z.endCycle()
			p.pace()
		}
	}
}

// prologue is the leader's pause check followed by the one-pass opening
// stages. It sets halt when the processor should stop.
func (p *Processor) prologue() {
	z := p.zone
	for z.clock.Paused() {
		z.catalog.Deliver()
		if !p.sleep(pauseStep) {
			break
		}
	}
	if p.stopping() {
		p.halt = true
		return
	}
	if z.beginCycle() {
		p.groups = partition(z.table.Sectors(), p.threads)
		p.log.Info("worker groups rebuilt", zap.Int("sectors", z.table.Len()))
	}
}

// pace sleeps off whatever is left of the cycle interval.
func (p *Processor) pace() {
	z := p.zone
	elapsed := z.tp.Now().Sub(z.cycleStart)
	if rest := z.opts.CycleInterval - elapsed; rest > 0 {
		p.sleep(rest)
	}
}

// trimmer periodically requests a trim until the processor stops. It also
// turns ctx cancellation into Stop.
func (p *Processor) trimmer(ctx context.Context) {
	t := time.NewTicker(p.zone.opts.TrimInterval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			p.zone.RequestTrim()
		case <-ctx.Done():
			p.Stop()
			return
		case <-p.stopCh:
			return
		}
	}
}
