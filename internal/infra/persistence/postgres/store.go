// Package postgres persists the engine snapshot to Postgres, one JSONB row
// per bucket, through the pgx database/sql driver.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"herdcore/internal/infra/persistence/memory"
	"herdcore/pkg/domain"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
)

var _ domain.PersistentStore = (*Store)(nil)

const (
	driverName = "pgx"
	defaultDSN = "postgres://localhost/herdcore?sslmode=disable"
)

const (
	createStateTable = `CREATE TABLE IF NOT EXISTS herd_state (
		bucket TEXT PRIMARY KEY,
		payload JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`
	createVersionTable = `CREATE TABLE IF NOT EXISTS herd_version (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		version BIGINT NOT NULL
	)`
	seedVersion   = `INSERT INTO herd_version (id, version) VALUES (1, 0) ON CONFLICT (id) DO NOTHING`
	selectVersion = `SELECT version FROM herd_version WHERE id = 1`
	bumpVersion   = `UPDATE herd_version SET version = version + 1 WHERE id = 1 AND version = $1`
	selectState   = `SELECT bucket, payload FROM herd_state`
	upsertState   = `INSERT INTO herd_state (bucket, payload) VALUES ($1, $2)
		ON CONFLICT (bucket) DO UPDATE SET payload = EXCLUDED.payload, updated_at = now()`
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store runs transactions on the in-memory engine and writes changed buckets
// to Postgres before a commit becomes visible. herd_version counts commits:
// a stale engine state is reloaded before each transaction, and a commit
// whose counter moved underneath it fails with domain.ErrStaleState.
type Store struct {
	*memory.Store
	db      *sql.DB
	diff    memory.BucketDiff
	version int64
}

// NewStore connects to dsn (defaultDSN when empty), creates herd_state when
// missing and hydrates the engine from it.
func NewStore(ctx context.Context, dsn string, engine *domain.RulesEngine, opts ...memory.Option) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(driverName, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	for _, stmt := range []string{createStateTable, createVersionTable, seedVersion} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create herd_state: %w", err)
		}
	}
	s := &Store{db: db}
	snapshot, err := s.load(ctx)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	opts = append(opts, memory.WithCommitHook(s.persist), memory.WithSyncHook(s.sync))
	s.Store = memory.NewStore(engine, opts...)
	s.ImportState(snapshot)
	return s, nil
}

// DB exposes the underlying sql.DB for tests.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Version returns the commit counter this store last read or wrote.
func (s *Store) Version() int64 { return s.version }

// load reads the counter before the buckets, so a concurrent commit can only
// make the loaded state look older than it is.
func (s *Store) load(ctx context.Context) (memory.Snapshot, error) {
	var version int64
	if err := s.db.QueryRowContext(ctx, selectVersion).Scan(&version); err != nil {
		return memory.Snapshot{}, fmt.Errorf("select herd_version: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, selectState)
	if err != nil {
		return memory.Snapshot{}, fmt.Errorf("select herd_state: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var snapshot memory.Snapshot
	raw := make(map[string][]byte)
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return memory.Snapshot{}, fmt.Errorf("scan herd_state: %w", err)
		}
		if err := memory.DecodeBucket(&snapshot, bucket, payload); err != nil {
			return memory.Snapshot{}, err
		}
		raw[bucket] = payload
	}
	if err := rows.Err(); err != nil {
		return memory.Snapshot{}, fmt.Errorf("iterate herd_state: %w", err)
	}
	s.diff = memory.BucketDiff{}
	s.diff.Ack(raw)
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

func (s *Store) persist(ctx context.Context, snapshot memory.Snapshot) error {
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
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	// The row lock taken here serialises writers; a loser re-evaluates the
	// WHERE clause against the winner's counter and matches nothing.
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
		if _, err := tx.ExecContext(ctx, upsertState, bucket, pending[bucket]); err != nil {
			return fmt.Errorf("upsert %s: %w", bucket, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	s.version++
	s.diff.Ack(pending)
	return nil
}

// OverrideSQLOpen swaps the connection constructor for tests and returns a
// restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
