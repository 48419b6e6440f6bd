package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"truncfee/internal/model"
)

// Store provides Postgres persistence for fee snapshots.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// UpsertFeeSnapshots inserts or updates fee snapshots.
func (s *Store) UpsertFeeSnapshots(ctx context.Context, snapshots []model.FeeSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, snap := range snapshots {
		batch.Queue(`
			INSERT INTO fee_snapshots (
				pool, ts, base_fee_ppm, surge_fee_ppm, total_fee_ppm, in_cap, emitted_at, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
			ON CONFLICT (pool, ts)
			DO UPDATE SET
				base_fee_ppm = EXCLUDED.base_fee_ppm,
				surge_fee_ppm = EXCLUDED.surge_fee_ppm,
				total_fee_ppm = EXCLUDED.total_fee_ppm,
				in_cap = EXCLUDED.in_cap,
				emitted_at = EXCLUDED.emitted_at,
				updated_at = now()
		`,
			snap.Pool,
			int64(snap.Timestamp),
			int64(snap.BaseFeePpm),
			int64(snap.SurgeFeePpm),
			int64(snap.TotalFeePpm),
			snap.InCap,
			snap.EmittedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range snapshots {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// PutSnapshotBatch satisfies the storage.Sink interface. The runner owns
// cancellation at batch boundaries, so a background context is used here.
func (s *Store) PutSnapshotBatch(snapshots []model.FeeSnapshot) error {
	return s.UpsertFeeSnapshots(context.Background(), snapshots)
}

// LoadState returns last_processed_ts for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var ts uint64
	row := s.pool.QueryRow(ctx, `SELECT last_processed_ts FROM feectl_state WHERE name=$1`, name)
	if err := row.Scan(&ts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return ts, true, nil
}

// SaveState upserts last_processed_ts for a name.
func (s *Store) SaveState(ctx context.Context, name string, ts uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO feectl_state (name, last_processed_ts, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_ts = EXCLUDED.last_processed_ts, updated_at = now()
	`, name, ts)
	return err
}
