// Package dxdb reads the DX cluster database filled by the spot collector:
// WWV bulletins (K index and conditions) and DX spots.
package dxdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/i474232898/sunflux/internal/logging"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// sqliteTimeLayout is how the collector writes wwv.time in sqlite.
const sqliteTimeLayout = "2006-01-02 15:04:05"

var errUnknownDriver = errors.New("unknown database driver")

// DB is a read handle on the DX database.
type DB struct {
	db     *sql.DB
	driver string
	log    *slog.Logger
}

// Open connects to the database and checks it is reachable.
func Open(ctx context.Context, driver, dsn string) (*DB, error) {
	driver = strings.ToLower(strings.TrimSpace(driver))
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("%w: %q", errUnknownDriver, driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to %s: %w", driver, err)
	}

	d := &DB{
		db:     db,
		driver: driver,
		log:    logging.Component("dxdb").With("driver", driver),
	}

	if driver == DriverSQLite {
		// The collector writes concurrently.
		if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
			d.log.Warn("failed to set busy timeout", "error", err)
		}
	}
	return d, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

// EnsureSchema creates the tables read by this package when they are
// missing. The collector normally owns them.
func (d *DB) EnsureSchema(ctx context.Context) error {
	timeType := "TIMESTAMP"
	if d.driver == DriverSQLite {
		timeType = "TEXT"
	}
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS wwv (
			time %s NOT NULL,
			sfi INTEGER,
			A INTEGER,
			K INTEGER,
			conditions TEXT
		)`, timeType),
		`CREATE TABLE IF NOT EXISTS dxspot (
			de TEXT,
			frequency REAL,
			dx TEXT,
			band INTEGER,
			de_cont TEXT,
			to_cont TEXT,
			de_ituzone INTEGER,
			de_cqzone INTEGER,
			time REAL NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $n for postgres.
func (d *DB) rebind(query string) string {
	if d.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// timeArg renders a wwv timestamp the way the driver stores it.
func (d *DB) timeArg(t time.Time) interface{} {
	if d.driver == DriverSQLite {
		return t.UTC().Format(sqliteTimeLayout)
	}
	return t.UTC()
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// parseTime reads a timestamp column scanned as text.
func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
