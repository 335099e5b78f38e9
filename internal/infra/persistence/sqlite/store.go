// Package sqlite provides a SQLite-backed persistent store that snapshots the
// in-memory engine state after every committed transaction.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"herdcore/internal/infra/persistence/memory"
	"herdcore/pkg/domain"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

var _ domain.PersistentStore = (*Store)(nil)

const defaultPath = "herdcore.db"

// connParams makes every write transaction take the database write lock up
// front and wait for a competing writer instead of failing with SQLITE_BUSY.
const connParams = "?_pragma=busy_timeout(5000)&_txlock=immediate"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS herd_state (
		bucket     TEXT PRIMARY KEY,
		payload    BLOB NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS herd_version (
		id      INTEGER PRIMARY KEY CHECK (id = 1),
		version INTEGER NOT NULL
	)`,
	`INSERT INTO herd_version(id, version) VALUES (1, 0) ON CONFLICT(id) DO NOTHING`,
}

const (
	selectVersion = `SELECT version FROM herd_version WHERE id = 1`
	bumpVersion   = `UPDATE herd_version SET version = version + 1 WHERE id = 1 AND version = ?`
	upsertState   = `INSERT INTO herd_state(bucket,payload,updated_at) VALUES(?,?,datetime('now'))
		ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload, updated_at=excluded.updated_at`
)

// Store keeps one row per bucket in herd_state and a commit counter in
// herd_version. Before each transaction the engine state is reloaded when
// another process moved the counter. A commit writes the changed buckets only
// if the counter still holds the value the transaction read, otherwise it
// fails with a ConflictError and the engine transaction is rolled back.
type Store struct {
	*memory.Store
	db      *sql.DB
	path    string
	diff    memory.BucketDiff
	version int64
}

// NewStore opens (creating if needed) the database at path and hydrates the
// engine from it.
func NewStore(path string, engine *domain.RulesEngine, opts ...memory.Option) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path+connParams)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create herd_state: %w", err)
		}
	}
	s := &Store{db: db, path: path}
	snapshot, err := s.load(context.Background())
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	opts = append(opts, memory.WithCommitHook(s.persist), memory.WithSyncHook(s.sync))
	s.Store = memory.NewStore(engine, opts...)
	s.ImportState(snapshot)
	return s, nil
}

// load reads the counter before the buckets. A commit landing in between
// leaves newer buckets under an older counter, which the next commit reports
// as a conflict rather than overwriting.
func (s *Store) load(ctx context.Context) (memory.Snapshot, error) {
	var version int64
	if err := s.db.QueryRowContext(ctx, selectVersion).Scan(&version); err != nil {
		return memory.Snapshot{}, fmt.Errorf("select herd_version: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, `SELECT bucket, payload FROM herd_state`)
	if err != nil {
		return memory.Snapshot{}, fmt.Errorf("select herd_state: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var snapshot memory.Snapshot
	loaded := make(map[string][]byte)
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return memory.Snapshot{}, fmt.Errorf("scan herd_state: %w", err)
		}
		if err := memory.DecodeBucket(&snapshot, bucket, payload); err != nil {
			return memory.Snapshot{}, err
		}
		loaded[bucket] = payload
	}
	if err := rows.Err(); err != nil {
		return memory.Snapshot{}, fmt.Errorf("iterate herd_state: %w", err)
	}
	s.diff = memory.BucketDiff{}
	s.diff.Ack(loaded)
	s.version = version
	return snapshot, nil
}

func (s *Store) sync(ctx context.Context) (memory.Snapshot, bool, error) {
	var version int64
	if err := s.db.QueryRowContext(ctx, selectVersion).Scan(&version); err != nil {
		return memory.Snapshot{}, false, fmt.Errorf("select herd_version: %w", err)
	}
	if version == s.version {
		return memory.Snapshot{}, false, nil
	}
	snapshot, err := s.load(ctx)
	if err != nil {
		return memory.Snapshot{}, false, err
	}
	return snapshot, true, nil
}

func (s *Store) persist(ctx context.Context, snapshot memory.Snapshot) (retErr error) {
	pending, err := s.diff.Pending(snapshot)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	res, err := tx.ExecContext(ctx, bumpVersion, s.version)
	if err != nil {
		return fmt.Errorf("bump herd_version: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("bump herd_version: %w", err)
	}
	if n == 0 {
		return domain.ErrStaleState
	}
	for _, bucket := range memory.Ordered(pending) {
		if _, err = tx.ExecContext(ctx, upsertState, bucket, pending[bucket]); err != nil {
			return fmt.Errorf("upsert %s: %w", bucket, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.version++
	s.diff.Ack(pending)
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for tests.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }

// Version returns the commit counter this store last read or wrote.
func (s *Store) Version() int64 { return s.version }
