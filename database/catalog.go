package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

const schema = `
CREATE TABLE IF NOT EXISTS partitions (
	instrument  TEXT        NOT NULL,
	as_of       DATE        NOT NULL,
	target      TEXT        NOT NULL,
	uri         TEXT        NOT NULL,
	bytes       BIGINT      NOT NULL,
	run_id      UUID        NOT NULL,
	written_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (instrument, as_of, target)
)`

const upsertPartition = `
INSERT INTO partitions (instrument, as_of, target, uri, bytes, run_id, written_at)
VALUES ($1, $2, $3, $4, $5, $6, now())
ON CONFLICT (instrument, as_of, target)
DO UPDATE SET uri = EXCLUDED.uri, bytes = EXCLUDED.bytes, run_id = EXCLUDED.run_id, written_at = now()`

// Entry is one partition written by a run.
type Entry struct {
	RunID      string
	Instrument string
	AsOf       time.Time
	Target     string
	URI        string
	Bytes      int64
}

// Catalog records written partitions. Rewriting a partition replaces its row.
type Catalog struct {
	db *pgx.Conn
}

func NewCatalog(db *pgx.Conn) *Catalog {
	return &Catalog{db: db}
}

// Open connects to url and makes sure the partitions table exists.
func Open(ctx context.Context, url string) (*Catalog, error) {
	conn, err := Connect(ctx, url)
	if err != nil {
		return nil, err
	}

	c := NewCatalog(conn)
	if err := c.EnsureSchema(ctx); err != nil {
		_ = conn.Close(ctx)
		return nil, err
	}
	return c, nil
}

func (c *Catalog) EnsureSchema(ctx context.Context) error {
	if _, err := c.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create partitions table: %w", err)
	}
	return nil
}

// Record upserts entries in a single batch.
func (c *Catalog) Record(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(upsertPartition, e.Instrument, e.AsOf, e.Target, e.URI, e.Bytes, e.RunID)
	}

	br := c.db.SendBatch(ctx, batch)
	for _, e := range entries {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("record partition %s/%s: %w", e.Instrument, e.AsOf.Format(time.DateOnly), err)
		}
	}
	return br.Close()
}

// LatestPartition gets the most recent as-of date recorded for instrument on target. If none is
// found, a zero time.Time is returned and err is nil.
func (c *Catalog) LatestPartition(ctx context.Context, instrument, target string) (time.Time, error) {
	var asOf time.Time
	err := c.db.QueryRow(
		ctx,
		"SELECT as_of FROM partitions WHERE instrument = $1 AND target = $2 ORDER BY as_of DESC LIMIT 1",
		instrument, target,
	).Scan(&asOf)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, nil
	}
	return asOf, err
}

func (c *Catalog) Close(ctx context.Context) error {
	return c.db.Close(ctx)
}
