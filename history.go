package deltazip

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// SQLite driver using pure Go implementation
	_ "modernc.org/sqlite"
)

// RunHistory appends benchmark results to a SQLite database so runs can be
// compared over time.
type RunHistory struct {
	db *sql.DB
}

const historySchema = `
CREATE TABLE IF NOT EXISTS runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	started_at TEXT NOT NULL,
	codec TEXT NOT NULL,
	device_id INTEGER NOT NULL,
	chunk_size INTEGER NOT NULL,
	batch_size INTEGER NOT NULL,
	iterations INTEGER NOT NULL,
	input_bytes INTEGER NOT NULL,
	compressed_bytes INTEGER NOT NULL,
	ratio REAL NOT NULL,
	compress_gbps REAL NOT NULL,
	decompress_gbps REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_codec ON runs(codec);
`

// OpenRunHistory opens (creating if needed) a history database.
func OpenRunHistory(path string) (*RunHistory, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("deltazip: open history database: %w", err)
	}
	if _, err := db.Exec(historySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("deltazip: create history schema: %w", err)
	}
	return &RunHistory{db: db}, nil
}

// Append stores one run result.
func (h *RunHistory) Append(ctx context.Context, r *RunResult) error {
	_, err := h.db.ExecContext(ctx, `
		INSERT INTO runs (started_at, codec, device_id, chunk_size, batch_size,
			iterations, input_bytes, compressed_bytes, ratio, compress_gbps, decompress_gbps)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.StartedAt.UTC().Format(time.RFC3339Nano),
		r.Codec, r.DeviceID, r.ChunkSize, r.BatchSize,
		r.IterationCount, r.TotalInputBytes, r.TotalCompressedBytes,
		r.CompressionRatio, r.CompressGBps, r.DecompressGBps,
	)
	if err != nil {
		return fmt.Errorf("deltazip: append history row: %w", err)
	}
	return nil
}

// List returns the most recent results for a codec, newest first. An empty
// codec matches every run.
func (h *RunHistory) List(ctx context.Context, codec string, limit int) ([]RunResult, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT started_at, codec, device_id, chunk_size, batch_size,
			iterations, input_bytes, compressed_bytes, ratio, compress_gbps, decompress_gbps
		FROM runs`
	args := []any{}
	if codec != "" {
		query += ` WHERE codec = ?`
		args = append(args, codec)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("deltazip: query history: %w", err)
	}
	defer rows.Close()

	var results []RunResult
	for rows.Next() {
		var r RunResult
		var startedAt string
		if err := rows.Scan(&startedAt, &r.Codec, &r.DeviceID, &r.ChunkSize, &r.BatchSize,
			&r.IterationCount, &r.TotalInputBytes, &r.TotalCompressedBytes,
			&r.CompressionRatio, &r.CompressGBps, &r.DecompressGBps); err != nil {
			return nil, fmt.Errorf("deltazip: scan history row: %w", err)
		}
		if t, err := time.Parse(time.RFC3339Nano, startedAt); err == nil {
			r.StartedAt = t
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("deltazip: iterate history rows: %w", err)
	}
	return results, nil
}

// Close closes the underlying database.
func (h *RunHistory) Close() error {
	return h.db.Close()
}
