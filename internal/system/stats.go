package system

import (
	"context"
	"sync"
	"time"

	coresys "github.com/l1jgo/sectorsim/internal/core/system"
	"github.com/l1jgo/sectorsim/internal/persist"
	"github.com/l1jgo/sectorsim/internal/world"
	"go.uber.org/zap"
)

const (
	statsQueue   = 64
	statsTimeout = 5 * time.Second
)

// StatsWriter stores samples. *persist.StatsRepo implements it.
type StatsWriter interface {
	InsertBatch(ctx context.Context, batch []persist.CycleStats) error
}

// StatsSystem samples the zone every interval of zone time, logs the
// sample and hands it to an optional writer. Phase 3 (Report).
//
// Update runs on the zone leader and never blocks on the writer: samples
// go through a bounded queue drained by Run, and are dropped when it is
// full.
type StatsSystem struct {
	zone     *world.Zone
	name     string
	interval time.Duration
	writer   StatsWriter
	log      *zap.Logger
	out      chan persist.CycleStats

	next      time.Duration
	lastCycle uint64
	lastTime  time.Duration

	mu      sync.Mutex
	latest  persist.CycleStats
	sampled bool
	dropped int
}

func NewStatsSystem(z *world.Zone, name string, interval time.Duration, writer StatsWriter, log *zap.Logger) *StatsSystem {
	if log == nil {
		log = zap.NewNop()
	}
	return &StatsSystem{
		zone:     z,
		name:     name,
		interval: interval,
		writer:   writer,
		log:      log.With(zap.String("zone", name)),
		out:      make(chan persist.CycleStats, statsQueue),
		next:     interval,
	}
}

func (s *StatsSystem) Phase() coresys.Phase { return coresys.PhaseReport }

func (s *StatsSystem) Update(_ time.Duration) {
	now := s.zone.ZoneTime()
	if s.interval <= 0 || now < s.next {
		return
	}
	s.next = now + s.interval
	s.sample(now)
}

func (s *StatsSystem) sample(now time.Duration) {
	cycle := s.zone.Cycle()
	var rate float64
	if span := now - s.lastTime; span > 0 {
		rate = float64(cycle-s.lastCycle) / span.Seconds()
	}
	s.lastCycle, s.lastTime = cycle, now

	st := persist.CycleStats{
		Zone:      s.name,
		Cycle:     cycle,
		ZoneTime:  now,
		Sprites:   s.zone.SpriteCount(),
		Cameras:   len(s.zone.Cameras()),
		CycleRate: rate,
		SampledAt: time.Now(),
	}
	s.mu.Lock()
	s.latest, s.sampled = st, true
	s.mu.Unlock()

	s.log.Info("cycle stats",
		zap.Uint64("cycle", st.Cycle),
		zap.Duration("zone_time", st.ZoneTime),
		zap.Int("sprites", st.Sprites),
		zap.Int("cameras", st.Cameras),
		zap.Float64("cycles_per_sec", st.CycleRate),
	)

	if s.writer == nil {
		return
	}
	select {
	case s.out <- st:
	default:
		s.mu.Lock()
		s.dropped++
		s.mu.Unlock()
		s.log.Warn("stats queue full, sample dropped", zap.Uint64("cycle", cycle))
	}
}

// Latest returns the most recent sample.
func (s *StatsSystem) Latest() (persist.CycleStats, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest, s.sampled
}

// Dropped returns how many samples the writer queue refused.
func (s *StatsSystem) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Run drains queued samples to the writer until ctx ends, then flushes
// what is left. It returns nil without a writer.
func (s *StatsSystem) Run(ctx context.Context) error {
	if s.writer == nil {
		return nil
	}
	batch := make([]persist.CycleStats, 0, statsQueue)
	for {
		select {
		case st := <-s.out:
			batch = s.drain(append(batch[:0], st))
			s.write(ctx, batch)
		case <-ctx.Done():
			if batch = s.drain(batch[:0]); len(batch) > 0 {
				s.write(context.Background(), batch)
			}
			return nil
		}
	}
}

// drain appends every queued sample to batch without blocking.
func (s *StatsSystem) drain(batch []persist.CycleStats) []persist.CycleStats {
	for {
		select {
		case st := <-s.out:
			batch = append(batch, st)
		default:
			return batch
		}
	}
}

func (s *StatsSystem) write(ctx context.Context, batch []persist.CycleStats) {
	wctx, cancel := context.WithTimeout(ctx, statsTimeout)
	defer cancel()
	if err := s.writer.InsertBatch(wctx, batch); err != nil {
		s.log.Error("write cycle stats failed", zap.Int("samples", len(batch)), zap.Error(err))
	}
}
