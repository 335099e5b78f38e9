// Package testutil provides a database/sql fake that understands the handful
// of herd_state and herd_version statements issued by the postgres store.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync/atomic"
)

var stubSeq atomic.Int64

// StubConn is a single shared connection holding herd_state rows and the
// herd_version counter in memory. Writes issued inside a transaction become
// visible on Commit only.
type StubConn struct {
	Statements []string
	Rows       map[string][]byte
	Upserts    []string
	Version    int64

	FailPing   bool
	FailBegin  bool
	FailExec   bool
	FailQuery  bool
	FailCommit bool

	pending        map[string][]byte
	pendingVersion *int64
}

// NewStubDB registers a fresh driver and returns a sql.DB bound to it.
func NewStubDB() (*sql.DB, *StubConn) {
	conn := &StubConn{Rows: make(map[string][]byte)}
	return conn.Open(), conn
}

// Open returns another sql.DB bound to the same connection, standing in for a
// second process sharing the database.
func (c *StubConn) Open() *sql.DB {
	name := fmt.Sprintf("herdstub%d", stubSeq.Add(1))
	sql.Register(name, stubDriver{conn: c})
	db, err := sql.Open(name, "")
	if err != nil {
		panic(err)
	}
	db.SetMaxOpenConns(1)
	return db
}

// Buckets returns the stored bucket names in sorted order.
func (c *StubConn) Buckets() []string {
	out := make([]string, 0, len(c.Rows))
	for b := range c.Rows {
		out = append(out, b)
	}
	sort.Strings(out)
	return out
}

type stubDriver struct{ conn *StubConn }

func (d stubDriver) Open(string) (driver.Conn, error) { return d.conn, nil }

// Prepare implements driver.Conn; only the context fast paths are supported.
func (c *StubConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("stub: prepared statements unsupported")
}

// Close implements driver.Conn.
func (c *StubConn) Close() error { return nil }

// Begin implements driver.Conn.
func (c *StubConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

// Ping implements driver.Pinger.
func (c *StubConn) Ping(context.Context) error {
	if c.FailPing {
		return errors.New("stub: connection refused")
	}
	return nil
}

// BeginTx implements driver.ConnBeginTx.
func (c *StubConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	if c.FailBegin {
		return nil, errors.New("stub: begin refused")
	}
	c.pending = make(map[string][]byte)
	c.pendingVersion = nil
	return stubTx{conn: c}, nil
}

// ExecContext implements driver.ExecerContext.
func (c *StubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	stmt := normalize(query)
	c.Statements = append(c.Statements, stmt)
	if c.FailExec {
		return nil, errors.New("stub: exec refused")
	}
	switch {
	case strings.HasPrefix(stmt, "CREATE TABLE"), strings.HasPrefix(stmt, "INSERT INTO HERD_VERSION"):
		return driver.RowsAffected(0), nil
	case strings.HasPrefix(stmt, "UPDATE HERD_VERSION"):
		if len(args) != 1 {
			return nil, fmt.Errorf("stub: version bump wants 1 arg, got %d", len(args))
		}
		expected, ok := args[0].Value.(int64)
		if !ok {
			return nil, fmt.Errorf("stub: version must be an int64, got %T", args[0].Value)
		}
		current := c.Version
		if c.pendingVersion != nil {
			current = *c.pendingVersion
		}
		if current != expected {
			return driver.RowsAffected(0), nil
		}
		next := current + 1
		if c.pending != nil {
			c.pendingVersion = &next
		} else {
			c.Version = next
		}
		return driver.RowsAffected(1), nil
	case strings.HasPrefix(stmt, "INSERT INTO HERD_STATE"):
		if len(args) != 2 {
			return nil, fmt.Errorf("stub: upsert wants 2 args, got %d", len(args))
		}
		bucket, ok := args[0].Value.(string)
		if !ok {
			return nil, fmt.Errorf("stub: bucket must be a string, got %T", args[0].Value)
		}
		payload, err := asBytes(args[1].Value)
		if err != nil {
			return nil, err
		}
		c.Upserts = append(c.Upserts, bucket)
		if c.pending != nil {
			c.pending[bucket] = payload
		} else {
			c.Rows[bucket] = payload
		}
		return driver.RowsAffected(1), nil
	}
	return nil, fmt.Errorf("stub: unsupported statement %q", stmt)
}

// QueryContext implements driver.QueryerContext.
func (c *StubConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	stmt := normalize(query)
	c.Statements = append(c.Statements, stmt)
	if c.FailQuery {
		return nil, errors.New("stub: query refused")
	}
	switch {
	case strings.HasPrefix(stmt, "SELECT VERSION FROM HERD_VERSION"):
		return &stubRows{columns: []string{"version"}, values: [][]driver.Value{{c.Version}}}, nil
	case strings.HasPrefix(stmt, "SELECT BUCKET, PAYLOAD FROM HERD_STATE"):
		rows := &stubRows{columns: []string{"bucket", "payload"}}
		for _, bucket := range c.Buckets() {
			rows.values = append(rows.values, []driver.Value{bucket, c.Rows[bucket]})
		}
		return rows, nil
	}
	return nil, fmt.Errorf("stub: unsupported query %q", stmt)
}

type stubTx struct{ conn *StubConn }

func (t stubTx) Commit() error {
	defer t.reset()
	if t.conn.FailCommit {
		return errors.New("stub: commit refused")
	}
	for bucket, payload := range t.conn.pending {
		t.conn.Rows[bucket] = payload
	}
	if t.conn.pendingVersion != nil {
		t.conn.Version = *t.conn.pendingVersion
	}
	return nil
}

func (t stubTx) Rollback() error {
	t.reset()
	return nil
}

func (t stubTx) reset() {
	t.conn.pending = nil
	t.conn.pendingVersion = nil
}

type stubRows struct {
	columns []string
	values  [][]driver.Value
	next    int
}

func (r *stubRows) Columns() []string { return r.columns }

func (r *stubRows) Close() error { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.next >= len(r.values) {
		return io.EOF
	}
	copy(dest, r.values[r.next])
	r.next++
	return nil
}

func normalize(query string) string {
	return strings.ToUpper(strings.Join(strings.Fields(query), " "))
}

func asBytes(v driver.Value) ([]byte, error) {
	switch p := v.(type) {
	case []byte:
		return append([]byte(nil), p...), nil
	case string:
		return []byte(p), nil
	default:
		return nil, fmt.Errorf("stub: payload must be bytes, got %T", v)
	}
}
