package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	sqliteFileName = "cog.sqlite"
)

type Options struct {
	// Dir is the workspace directory. It holds the sqlite file, blobs and editor state.
	Dir string
	// Driver is DriverSQLite (default) or DriverPostgres.
	Driver string
	// DSN is required for postgres; for sqlite it defaults to <Dir>/cog.sqlite.
	DSN string
}

// Store is the persistence backend behind the server actions. It owns a single
// database handle; blobs and small state files live under Dir.
type Store struct {
	Dir    string
	driver string
	dsn    string
	db     *sql.DB

	now    func() time.Time
	clock  sync.Mutex
	lastMs int64
}

func Open(ctx context.Context, opts Options) (*Store, error) {
	dir := filepath.Clean(strings.TrimSpace(opts.Dir))
	if dir == "" || dir == "." {
		return nil, errors.New("store: missing workspace dir")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	driver := strings.ToLower(strings.TrimSpace(opts.Driver))
	if driver == "" {
		driver = DriverSQLite
	}
	dsn := strings.TrimSpace(opts.DSN)

	var db *sql.DB
	var err error
	switch driver {
	case DriverSQLite:
		if dsn == "" {
			dsn = filepath.Join(dir, sqliteFileName)
		}
		db, err = openSQLite(ctx, dsn)
	case DriverPostgres:
		if dsn == "" {
			return nil, errors.New("store: postgres driver requires a dsn")
		}
		db, err = sql.Open("postgres", dsn)
		if err == nil {
			err = db.PingContext(ctx)
		}
	default:
		return nil, fmt.Errorf("store: unknown driver %q (expected sqlite|postgres)", opts.Driver)
	}
	if err != nil {
		if db != nil {
			_ = db.Close()
		}
		return nil, err
	}

	s := &Store{Dir: dir, driver: driver, dsn: dsn, db: db, now: time.Now}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return s, nil
}

func openSQLite(ctx context.Context, path string) (*sql.DB, error) {
	// modernc.org/sqlite driver name is "sqlite".
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection: writes are serialized in-process and pragmas stick.
	db.SetMaxOpenConns(1)
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return db, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Driver() string { return s.driver }

// WatchPath returns the file whose changes signal that another process mutated the
// store. It is empty for non-file backends.
func (s *Store) WatchPath() string {
	if s.driver != DriverSQLite {
		return ""
	}
	return s.dsn
}

// rebind converts '?' placeholders to the driver's syntax.
func (s *Store) rebind(q string) string {
	if s.driver != DriverPostgres {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) exec(ctx context.Context, q querier, query string, args ...any) (sql.Result, error) {
	return q.ExecContext(ctx, s.rebind(query), args...)
}

func (s *Store) query(ctx context.Context, q querier, query string, args ...any) (*sql.Rows, error) {
	return q.QueryContext(ctx, s.rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, q querier, query string, args ...any) *sql.Row {
	return q.QueryRowContext(ctx, s.rebind(query), args...)
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// nowMs is strictly increasing per Store so creation order is stable.
func (s *Store) nowMs() int64 {
	s.clock.Lock()
	defer s.clock.Unlock()
	ms := s.now().UTC().UnixMilli()
	if ms <= s.lastMs {
		ms = s.lastMs + 1
	}
	s.lastMs = ms
	return ms
}

func fromMs(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullString(p *string) sql.NullString {
	if p == nil || strings.TrimSpace(*p) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func strPtr(ns sql.NullString) *string {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	v := ns.String
	return &v
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
