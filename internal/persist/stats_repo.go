package persist

import (
	"context"
	"fmt"
	"time"
)

// CycleStats is one sample of a running zone.
type CycleStats struct {
	Zone      string
	Cycle     uint64
	ZoneTime  time.Duration
	Sprites   int
	Cameras   int
	CycleRate float64 // cycles per second of zone time since the last sample
	SampledAt time.Time
}

type StatsRepo struct {
	db *DB
}

func NewStatsRepo(db *DB) *StatsRepo {
	return &StatsRepo{db: db}
}

// InsertBatch writes samples in a single transaction.
func (r *StatsRepo) InsertBatch(ctx context.Context, batch []CycleStats) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("stats begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, s := range batch {
		if _, err := tx.Exec(ctx,
			`INSERT INTO cycle_stats (zone, cycle, zone_ms, sprites, cameras, cycle_rate, sampled_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			s.Zone, int64(s.Cycle), s.ZoneTime.Milliseconds(), s.Sprites, s.Cameras, s.CycleRate, s.SampledAt,
		); err != nil {
			return fmt.Errorf("stats insert: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// Recent returns up to limit samples of zone, newest first.
func (r *StatsRepo) Recent(ctx context.Context, zone string, limit int) ([]CycleStats, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT zone, cycle, zone_ms, sprites, cameras, cycle_rate, sampled_at
		 FROM cycle_stats WHERE zone = $1
		 ORDER BY sampled_at DESC, id DESC LIMIT $2`,
		zone, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CycleStats
	for rows.Next() {
		var s CycleStats
		var cycle, ms int64
		if err := rows.Scan(&s.Zone, &cycle, &ms, &s.Sprites, &s.Cameras, &s.CycleRate, &s.SampledAt); err != nil {
			return nil, err
		}
		s.Cycle = uint64(cycle)
		s.ZoneTime = time.Duration(ms) * time.Millisecond
		out = append(out, s)
	}
	return out, rows.Err()
}
