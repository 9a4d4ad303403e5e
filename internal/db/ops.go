package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/georgysavva/scany/pgxscan"
	"github.com/jackc/pgx/v4"

	"github.com/aakash-soni-git/bitalino/internal/session"
)

var (
	ErrInsertFailed           = errors.New("insert operation failed")
	ErrTransactionStartFailed = errors.New("transaction start failed")
	ErrSelectFailed           = errors.New("select operation failed")
)

// CreateSession registers a session before its samples start arriving.
func (db *DB) CreateSession(ctx context.Context, row SessionRow) error {
	const fn = "DB:CreateSession"
	_, err := db.pool.Exec(ctx, `
		INSERT INTO sessions (
			stamp,
			sampling_rate,
			labels,
			started_at
		) VALUES ($1, $2, $3, $4)
	`, row.Stamp, row.SamplingRate, row.Labels, row.StartedAt)
	if err != nil {
		return fmt.Errorf("%s:%w:%w", fn, ErrInsertFailed, err)
	}
	return nil
}

// InsertBlock stores one converted block inside a transaction so a
// session's series advance together or not at all.
func (db *DB) InsertBlock(ctx context.Context, blk *session.Block) error {
	const fn = "DB:InsertBlock"
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%s:%w:%w", fn, ErrTransactionStartFailed, err)
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		} else {
			tx.Commit(ctx)
		}
	}()

	for i, sensor := range blk.Labels {
		for j, value := range blk.Values[i] {
			_, err = tx.Exec(ctx, `
				INSERT INTO samples (
					session_stamp,
					sensor,
					idx,
					value
				) VALUES ($1, $2, $3, $4)
			`, blk.Stamp, sensor, int64(blk.Offset+j), value)
			if err != nil {
				return fmt.Errorf("%s:%w:%w", fn, ErrInsertFailed, err)
			}
		}
	}
	return nil
}

// LoadSeries returns one sensor's samples of a session within the given
// index range, in acquisition order.
func (db *DB) LoadSeries(ctx context.Context, stamp, sensor string, from, to int64) ([]SampleRow, error) {
	const fn = "DB:LoadSeries"
	var rows []SampleRow
	err := pgxscan.Select(ctx, db.pool, &rows, `
			SELECT
				session_stamp,
				sensor,
				idx,
				value
			FROM samples
			WHERE session_stamp = $1
			AND sensor = $2
			AND idx >= $3
			AND idx <= $4
			ORDER BY idx ASC
		`, stamp, sensor, from, to)
	if err != nil {
		if err == pgx.ErrNoRows {
			return []SampleRow{}, nil
		}
		return nil, fmt.Errorf("%s:%w:%w", fn, ErrSelectFailed, err)
	}
	return rows, nil
}

// ListSessions returns known sessions, newest first.
func (db *DB) ListSessions(ctx context.Context) ([]SessionRow, error) {
	const fn = "DB:ListSessions"
	var rows []SessionRow
	err := pgxscan.Select(ctx, db.pool, &rows, `
			SELECT
				stamp,
				sampling_rate,
				labels,
				started_at
			FROM sessions
			ORDER BY started_at DESC
		`)
	if err != nil {
		if err == pgx.ErrNoRows {
			return []SessionRow{}, nil
		}
		return nil, fmt.Errorf("%s:%w:%w", fn, ErrSelectFailed, err)
	}
	return rows, nil
}

// BlockWriter adapts the store to the acquisition sink interface.
type BlockWriter struct {
	DB *DB
}

func (w *BlockWriter) WriteBlock(ctx context.Context, blk *session.Block) error {
	return w.DB.InsertBlock(ctx, blk)
}

// Close is a no-op; the pool is owned by whoever ran Init.
func (w *BlockWriter) Close(_ context.Context) error { return nil }
