package persist

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

// RunRow records one simulator run: what was spawned and how far it got.
type RunRow struct {
	ID        int64
	Zone      string
	SpawnFile string
	Seed      int64
	Sprites   int
	StartedAt time.Time
	StoppedAt *time.Time
	LastCycle *int64
}

type RunRepo struct {
	db *DB
}

func NewRunRepo(db *DB) *RunRepo {
	return &RunRepo{db: db}
}

// Begin inserts a run and returns its id.
func (r *RunRepo) Begin(ctx context.Context, zone, spawnFile string, seed int64, sprites int) (int64, error) {
	var id int64
	err := r.db.Pool.QueryRow(ctx,
		`INSERT INTO spawn_runs (zone, spawn_file, seed, sprites)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		zone, spawnFile, seed, sprites,
	).Scan(&id)
	return id, err
}

// Finish stamps the stop time and last cycle of a run.
func (r *RunRepo) Finish(ctx context.Context, id int64, lastCycle uint64) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE spawn_runs SET stopped_at = NOW(), last_cycle = $2 WHERE id = $1`,
		id, int64(lastCycle),
	)
	return err
}

// Load returns the run with id, or nil when there is none.
func (r *RunRepo) Load(ctx context.Context, id int64) (*RunRow, error) {
	row := &RunRow{}
	err := r.db.Pool.QueryRow(ctx,
		`SELECT id, zone, spawn_file, seed, sprites, started_at, stopped_at, last_cycle
		 FROM spawn_runs WHERE id = $1`, id,
	).Scan(
		&row.ID, &row.Zone, &row.SpawnFile, &row.Seed, &row.Sprites,
		&row.StartedAt, &row.StoppedAt, &row.LastCycle,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}
