package testutil

import (
	"context"
	"testing"
)

func TestStubDBCommitAndRollback(t *testing.T) {
	ctx := context.Background()
	db, conn := NewStubDB()
	t.Cleanup(func() { _ = db.Close() })

	if err := db.PingContext(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO herd_state (bucket, payload) VALUES ($1, $2)", "animals", []byte("{}")); err != nil {
		t.Fatalf("exec: %v", err)
	}
	if len(conn.Rows) != 0 {
		t.Fatalf("uncommitted write leaked: %v", conn.Buckets())
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if got := conn.Buckets(); len(got) != 1 || got[0] != "animals" {
		t.Fatalf("unexpected buckets %v", got)
	}

	tx, err = db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO herd_state (bucket, payload) VALUES ($1, $2)", "lactations", "[]"); err != nil {
		t.Fatalf("exec: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if len(conn.Rows) != 1 {
		t.Fatalf("rolled back write persisted: %v", conn.Buckets())
	}

	rows, err := db.QueryContext(ctx, "select bucket, payload from herd_state")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	defer func() { _ = rows.Close() }()
	var bucket string
	var payload []byte
	if !rows.Next() {
		t.Fatalf("expected a row")
	}
	if err := rows.Scan(&bucket, &payload); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if bucket != "animals" || string(payload) != "{}" {
		t.Fatalf("unexpected row %s=%s", bucket, payload)
	}
}

func TestStubDBRejectsUnknownStatements(t *testing.T) {
	db, _ := NewStubDB()
	t.Cleanup(func() { _ = db.Close() })
	if _, err := db.ExecContext(context.Background(), "DELETE FROM herd_state"); err == nil {
		t.Fatalf("expected unsupported statement error")
	}
	if _, err := db.QueryContext(context.Background(), "SELECT 1"); err == nil {
		t.Fatalf("expected unsupported query error")
	}
}

func TestStubDBVersionCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	db, conn := NewStubDB()
	t.Cleanup(func() { _ = db.Close() })
	bump := "UPDATE herd_version SET version = version + 1 WHERE id = 1 AND version = $1"

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	res, err := tx.ExecContext(ctx, bump, int64(0))
	if err != nil {
		t.Fatalf("bump: %v", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		t.Fatalf("expected the matching counter to move, affected %d", n)
	}
	if conn.Version != 0 {
		t.Fatalf("uncommitted bump leaked: %d", conn.Version)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	var version int64
	if err := conn.Open().QueryRowContext(ctx, "SELECT version FROM herd_version WHERE id = 1").Scan(&version); err != nil {
		t.Fatalf("select: %v", err)
	}
	if version != 1 {
		t.Fatalf("expected version 1, got %d", version)
	}

	res, err = db.ExecContext(ctx, bump, int64(0))
	if err != nil {
		t.Fatalf("stale bump: %v", err)
	}
	if n, _ := res.RowsAffected(); n != 0 {
		t.Fatalf("stale counter must not match, affected %d", n)
	}
}
