package bulk

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/gftdcojp/tng-client/internal/config"
	"go.uber.org/zap"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	_ "modernc.org/sqlite"             // pure go sqlite driver
)

// Supported database/sql driver names.
const (
	DriverSQLite = "sqlite"
	DriverPgx    = "pgx"
)

var (
	ErrUnknownDriver = errors.New("bulk: unknown driver")
	ErrInvalidTable  = errors.New("bulk: invalid table name")
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Open opens and pings the configured relational sink.
func Open(ctx context.Context, cfg config.BulkConfig) (*sql.DB, error) {
	if cfg.Driver != DriverSQLite && cfg.Driver != DriverPgx {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Driver, err)
	}
	return db, nil
}

// Sink appends rows to one table. The table and its columns are created
// from the first appended row: every key becomes a column, and nested
// values are stored as JSON text. Appends are serialized.
type Sink struct {
	db     *sql.DB
	driver string
	table  string
	logger *zap.Logger

	mu      sync.Mutex
	columns []string
}

func NewSink(db *sql.DB, driver, table string, logger *zap.Logger) (*Sink, error) {
	if driver != DriverSQLite && driver != DriverPgx {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
	if !identRe.MatchString(table) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTable, table)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{db: db, driver: driver, table: table, logger: logger.Named("sink")}, nil
}

func (s *Sink) Table() string { return s.table }

// Append writes rows in one transaction and returns the number written.
func (s *Sink) Append(ctx context.Context, rows []map[string]any) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.columns == nil {
		if err := s.createTable(ctx, rows[0]); err != nil {
			return 0, err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.insertSQL())
	if err != nil {
		return 0, fmt.Errorf("prepare insert into %s: %w", s.table, err)
	}
	defer stmt.Close()

	args := make([]any, len(s.columns))
	for _, row := range rows {
		for i, col := range s.columns {
			v, err := sqlValue(row[col])
			if err != nil {
				return 0, fmt.Errorf("column %s: %w", col, err)
			}
			args[i] = v
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, fmt.Errorf("insert into %s: %w", s.table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(rows), nil
}

func (s *Sink) createTable(ctx context.Context, first map[string]any) error {
	cols := make([]string, 0, len(first))
	for k := range first {
		if !identRe.MatchString(k) {
			s.logger.Debug("skipping column with unsupported name", zap.String("column", k))
			continue
		}
		cols = append(cols, k)
	}
	if len(cols) == 0 {
		return fmt.Errorf("bulk: first row of %s has no usable columns", s.table)
	}
	sort.Strings(cols)

	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = quote(c) + " " + s.columnType(first[c])
	}
	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quote(s.table), strings.Join(defs, ", "))
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	s.columns = cols
	s.logger.Debug("table ready", zap.String("table", s.table), zap.Strings("columns", cols))
	return nil
}

func (s *Sink) columnType(v any) string {
	switch v.(type) {
	case float64:
		if s.driver == DriverPgx {
			return "DOUBLE PRECISION"
		}
		return "REAL"
	case bool:
		if s.driver == DriverPgx {
			return "BOOLEAN"
		}
		return "INTEGER"
	default:
		return "TEXT"
	}
}

func (s *Sink) insertSQL() string {
	names := make([]string, len(s.columns))
	marks := make([]string, len(s.columns))
	for i, c := range s.columns {
		names[i] = quote(c)
		if s.driver == DriverPgx {
			marks[i] = "$" + strconv.Itoa(i+1)
		} else {
			marks[i] = "?"
		}
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quote(s.table), strings.Join(names, ", "), strings.Join(marks, ", "))
}

func quote(ident string) string {
	return `"` + ident + `"`
}

func sqlValue(v any) (any, error) {
	switch x := v.(type) {
	case nil, float64, bool, string:
		return x, nil
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	}
}
