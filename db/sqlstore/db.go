// Package sqlstore is the source of truth for users, posts and comments,
// backed by PostgreSQL (lib/pq) or SQLite (modernc.org/sqlite).
package sqlstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"modernc.org/sqlite"
)

var (
	ErrMissingDSN     = errors.New("sqlstore: DSN is required")
	ErrUnknownDialect = errors.New("sqlstore: unknown dialect")
)

//go:embed migrations
var migrations embed.FS

const sqlitePragmas = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

// sqliteLower is a Unicode-aware LOWER for SQLite, whose built-in one
// folds ASCII only.
const sqliteLower = "scribe_lower"

func init() {
	sqlite.MustRegisterDeterministicScalarFunction(sqliteLower, 1, unicodeLower)
}

func unicodeLower(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return v, nil
	}
}

// DB wraps a connection pool with the dialect it speaks.
type DB struct {
	db      *sql.DB
	dialect Dialect
}

// Open connects using the provided options, applies pool settings and
// verifies the connection.
func Open(ctx context.Context, opts ...Option) (*DB, error) {
	cfg := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.DSN == "" {
		return nil, ErrMissingDSN
	}

	var (
		driver string
		dsn    = cfg.DSN
	)
	switch cfg.Dialect {
	case Postgres:
		driver = "postgres"
	case SQLite:
		driver = "sqlite"
		dsn = sqliteDSN(cfg.DSN)
		// one writer at a time; concurrent writers only produce SQLITE_BUSY
		cfg.MaxOpenConns = 1
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDialect, cfg.Dialect)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns >= 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlstore: ping: %w", err)
	}

	return &DB{db: db, dialect: cfg.Dialect}, nil
}

func sqliteDSN(dsn string) string {
	if dsn == ":memory:" {
		return "file::memory:?mode=memory&cache=shared&" + sqlitePragmas
	}
	if strings.Contains(dsn, "?") {
		return "file:" + dsn + "&" + sqlitePragmas
	}
	return "file:" + dsn + "?" + sqlitePragmas
}

// Migrate applies the embedded migrations for the active dialect.
func (d *DB) Migrate(ctx context.Context) error {
	fsys, err := fs.Sub(migrations, "migrations/"+string(d.dialect))
	if err != nil {
		return fmt.Errorf("sqlstore: migrations fs: %w", err)
	}
	gd := goose.DialectPostgres
	if d.dialect == SQLite {
		gd = goose.DialectSQLite3
	}
	provider, err := goose.NewProvider(gd, d.db, fsys)
	if err != nil {
		return fmt.Errorf("sqlstore: migration provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("sqlstore: migrate: %w", err)
	}
	return nil
}

func (d *DB) Ping(ctx context.Context) error { return d.db.PingContext(ctx) }

func (d *DB) Close() error { return d.db.Close() }

// Dialect reports the driver in use.
func (d *DB) Dialect() Dialect { return d.dialect }

// lower wraps expr in the dialect's case folding function.
func (d Dialect) lower(expr string) string {
	if d == SQLite {
		return sqliteLower + "(" + expr + ")"
	}
	return "LOWER(" + expr + ")"
}

// rebind rewrites '?' placeholders into the dialect's form.
func (d *DB) rebind(query string) string {
	if d.dialect != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (d *DB) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return d.db.ExecContext(ctx, d.rebind(query), args...)
}

func (d *DB) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return d.db.QueryContext(ctx, d.rebind(query), args...)
}

func (d *DB) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return d.db.QueryRowContext(ctx, d.rebind(query), args...)
}

// tx runs fn inside a transaction, rolling back when it fails.
func (d *DB) tx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return translate(err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return translate(tx.Commit())
}
