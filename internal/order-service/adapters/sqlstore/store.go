// Package sqlstore is the relational implementation of ports.Store.
//
// One database/sql code path serves two dialects: SQLite through the pure-Go
// modernc driver (the default, no CGO needed in Docker) and Postgres through
// the pgx stdlib driver. The dialect only decides placeholders, schema and
// how timestamps and amounts are written and compared.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/jcmexdev/orders-service/internal/order-service/domain"
	"github.com/jcmexdev/orders-service/internal/order-service/ports"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	pgUniqueViolation = "23505"
)

type dialect struct {
	name     string
	schema   string
	numbered bool
}

var (
	sqliteDialect   = dialect{name: DriverSQLite, schema: sqliteSchema}
	postgresDialect = dialect{name: DriverPostgres, schema: postgresSchema, numbered: true}
)

// bind rewrites ? placeholders into $n for Postgres.
func (d dialect) bind(q string) string {
	if !d.numbered {
		return q
	}
	var b strings.Builder
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

func (d dialect) encodeTime(t time.Time) any {
	if d.numbered {
		return t.UTC()
	}
	return t.UTC().Format(textTimeLayout)
}

func (d dialect) encodeTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return d.encodeTime(*t)
}

// amountCmp compares the total_amount column numerically with one bound
// parameter.
func (d dialect) amountCmp(op string) string {
	if d.numbered {
		return "o.total_amount " + op + " CAST(? AS NUMERIC)"
	}
	return "CAST(o.total_amount AS REAL) " + op + " CAST(? AS REAL)"
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db  *sql.DB
	d   dialect
	now func() time.Time
}

var _ ports.Store = (*Store)(nil)

type Option func(*Store)

// WithClock overrides the clock used for the "recent orders" window of Stats.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open connects to the database and applies the schema.
//
//	store, err := sqlstore.Open(ctx, sqlstore.DriverSQLite, "./data/orders.db")
//	store, err := sqlstore.Open(ctx, sqlstore.DriverPostgres, "postgres://...")
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*Store, error) {
	switch driver {
	case DriverSQLite:
		return OpenSQLite(ctx, dsn, opts...)
	case DriverPostgres:
		return OpenPostgres(ctx, dsn, opts...)
	}
	return nil, fmt.Errorf("sqlstore: unknown driver %q", driver)
}

// OpenSQLite opens (or creates) the SQLite database at path. WAL mode lets
// the HTTP handlers read while the reconciler writes.
func OpenSQLite(ctx context.Context, path string, opts ...Option) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlstore: create %q: %w", dir, err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %q: %w", path, err)
	}
	// SQLite performs best with a single writer connection.
	db.SetMaxOpenConns(1)

	return newStore(ctx, db, sqliteDialect, opts)
}

func OpenPostgres(ctx context.Context, url string, opts ...Option) (*Store, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlstore: ping postgres: %w", err)
	}
	return newStore(ctx, db, postgresDialect, opts)
}

func newStore(ctx context.Context, db *sql.DB, d dialect, opts []Option) (*Store, error) {
	if _, err := db.ExecContext(ctx, d.schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlstore: apply %s schema: %w", d.name, err)
	}

	s := &Store{db: db, d: d, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return classify("ping", err)
	}
	return nil
}

// InTx runs fn in one transaction. fn's error is returned as is.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx ports.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify("begin", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, &txn{q: sqlTx, d: s.d}); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return classify("commit", err)
	}
	return nil
}

// reader runs the transactional queries directly on the pool.
func (s *Store) reader() *txn {
	return &txn{q: s.db, d: s.d}
}

// classify maps driver errors onto the domain sentinels.
func classify(op string, err error) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("sqlstore: %s: %w", op, domain.ErrNotFound)
	case isUniqueViolation(err):
		return fmt.Errorf("sqlstore: %s: %w: %w", op, domain.ErrConflict, err)
	}
	return fmt.Errorf("sqlstore: %s: %w: %w", op, domain.ErrPersistence, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}
