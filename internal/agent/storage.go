package agent

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/zeebo/xxh3"

	"github.com/emberprof/ember/internal/hotspot"
	"github.com/emberprof/ember/internal/safe"
)

// Storage handles local persistence of hotspot report snapshots in DuckDB.
type Storage struct {
	db     *sql.DB
	logger zerolog.Logger
	mu     sync.RWMutex

	// Content fingerprint of the last stored snapshot. An interval whose
	// ranked content matches the previous one is not stored again.
	lastFingerprint uint64
	hasFingerprint  bool
}

// StoredSnapshot is a persisted report snapshot with its ranked entries.
type StoredSnapshot struct {
	ID        string
	TakenAt   time.Time
	Total     int64
	Evictions int64
	Tracked   int
	Capacity  int
	Entries   []hotspot.Entry
}

// NewStorage creates snapshot storage on db, initializing the schema.
func NewStorage(db *sql.DB, logger zerolog.Logger) (*Storage, error) {
	s := &Storage{
		db:     db,
		logger: logger.With().Str("component", "snapshot_storage").Logger(),
	}

	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

// initSchema creates the local snapshot tables.
func (s *Storage) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS hotspot_snapshots_local (
			snapshot_id TEXT PRIMARY KEY,
			taken_at    TIMESTAMP NOT NULL,
			total       BIGINT    NOT NULL,
			evictions   BIGINT    NOT NULL,
			tracked     INTEGER   NOT NULL,
			capacity    INTEGER   NOT NULL,
			fingerprint TEXT      NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_hotspot_snapshots_taken_at
			ON hotspot_snapshots_local (taken_at);

		-- Ranked entries, one row per table line of the rendered report.
		CREATE TABLE IF NOT EXISTS hotspot_entries_local (
			snapshot_id    TEXT    NOT NULL,
			entry_rank     INTEGER NOT NULL,
			unit_type      TEXT    NOT NULL,
			unit_signature TEXT    NOT NULL,
			sample_count   BIGINT  NOT NULL,
			share          DOUBLE  NOT NULL,
			PRIMARY KEY (snapshot_id, entry_rank)
		);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	s.logger.Debug().Msg("Snapshot storage schema initialized")
	return nil
}

// StoreSnapshot persists snap and returns its id. When the snapshot content
// matches the previously stored one, nothing is written and stored is false.
func (s *Storage) StoreSnapshot(ctx context.Context, snap hotspot.Snapshot) (id string, stored bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fp := fingerprintSnapshot(snap)
	if s.hasFingerprint && fp == s.lastFingerprint {
		s.logger.Debug().Msg("Snapshot content unchanged, skipping store")
		return "", false, nil
	}

	id = uuid.New().String()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer safe.Rollback(tx, s.logger)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO hotspot_snapshots_local (
			snapshot_id, taken_at, total, evictions, tracked, capacity, fingerprint
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`, id, snap.Taken, snap.Total, snap.Evictions, snap.Size, snap.Capacity, fmt.Sprintf("%016x", fp))
	if err != nil {
		return "", false, fmt.Errorf("failed to store snapshot: %w", err)
	}

	for i, e := range snap.Entries {
		var share float64
		if snap.Total > 0 {
			share = 100 * float64(e.Count) / float64(snap.Total)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO hotspot_entries_local (
				snapshot_id, entry_rank, unit_type, unit_signature, sample_count, share
			) VALUES (?, ?, ?, ?, ?, ?)
		`, id, i+1, e.Key.Type, e.Key.Signature, e.Count, share)
		if err != nil {
			return "", false, fmt.Errorf("failed to store entry %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.lastFingerprint = fp
	s.hasFingerprint = true

	return id, true, nil
}

// QueryLatest returns the most recent stored snapshot, or nil when none
// exists yet.
func (s *Storage) QueryLatest(ctx context.Context) (*StoredSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT snapshot_id, taken_at, total, evictions, tracked, capacity
		FROM hotspot_snapshots_local
		ORDER BY taken_at DESC
		LIMIT 1
	`)

	var snap StoredSnapshot
	err := row.Scan(&snap.ID, &snap.TakenAt, &snap.Total, &snap.Evictions, &snap.Tracked, &snap.Capacity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest snapshot: %w", err)
	}

	snap.Entries, err = s.loadEntries(ctx, snap.ID)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// QueryRange returns the snapshots taken within [start, end], oldest first.
func (s *Storage) QueryRange(ctx context.Context, start, end time.Time) ([]StoredSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT snapshot_id, taken_at, total, evictions, tracked, capacity
		FROM hotspot_snapshots_local
		WHERE taken_at >= ? AND taken_at <= ?
		ORDER BY taken_at ASC
	`, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var snaps []StoredSnapshot
	for rows.Next() {
		var snap StoredSnapshot
		if err := rows.Scan(&snap.ID, &snap.TakenAt, &snap.Total, &snap.Evictions, &snap.Tracked, &snap.Capacity); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}

	for i := range snaps {
		snaps[i].Entries, err = s.loadEntries(ctx, snaps[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return snaps, nil
}

// loadEntries loads the ranked entries of one snapshot in rank order.
func (s *Storage) loadEntries(ctx context.Context, snapshotID string) ([]hotspot.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT unit_type, unit_signature, sample_count
		FROM hotspot_entries_local
		WHERE snapshot_id = ?
		ORDER BY entry_rank ASC
	`, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []hotspot.Entry
	for rows.Next() {
		var e hotspot.Entry
		if err := rows.Scan(&e.Key.Type, &e.Key.Signature, &e.Count); err != nil {
			return nil, fmt.Errorf("failed to scan entry row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entries: %w", err)
	}
	return entries, nil
}

// Cleanup removes snapshots taken before the retention window, entries
// included. Both deletes commit in one transaction so a snapshot row never
// outlives its entries.
func (s *Storage) Cleanup(ctx context.Context, retention time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-retention)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer safe.Rollback(tx, s.logger)

	_, err = tx.ExecContext(ctx, `
		DELETE FROM hotspot_entries_local
		WHERE snapshot_id IN (
			SELECT snapshot_id FROM hotspot_snapshots_local WHERE taken_at < ?
		)
	`, cutoff)
	if err != nil {
		return fmt.Errorf("failed to cleanup old entries: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM hotspot_snapshots_local WHERE taken_at < ?`, cutoff)
	if err != nil {
		return fmt.Errorf("failed to cleanup old snapshots: %w", err)
	}
	rowsDeleted, _ := result.RowsAffected()

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cleanup: %w", err)
	}

	if rowsDeleted > 0 {
		s.logger.Debug().
			Int64("rows_deleted", rowsDeleted).
			Time("cutoff", cutoff).
			Msg("Cleaned up old snapshots")
	}
	return nil
}

// RunCleanupLoop periodically removes snapshots past the retention window
// until the context is cancelled.
func (s *Storage) RunCleanupLoop(ctx context.Context, retention time.Duration) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	s.logger.Info().
		Dur("retention", retention).
		Msg("Starting snapshot cleanup loop")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Stopping snapshot cleanup loop")
			return
		case <-ticker.C:
			if err := s.Cleanup(ctx, retention); err != nil {
				s.logger.Error().Err(err).Msg("Failed to cleanup old snapshots")
			}
		}
	}
}

// fingerprintSnapshot hashes the ranked content of a snapshot for
// deduplication: totals plus every (key, count) pair in rank order.
func fingerprintSnapshot(snap hotspot.Snapshot) uint64 {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%d|%d|", snap.Total, snap.Evictions)
	for _, e := range snap.Entries {
		fmt.Fprintf(&b, "%s\x00%s\x00%d|", e.Key.Type, e.Key.Signature, e.Count)
	}
	return xxh3.Hash(b.Bytes())
}
