// Package sqlite implements the owner's single-writer local log store: a
// pure-Go (CGo-free) SQLite engine over modernc.org/sqlite, schema
// bootstrap, batch atomicity, and table-change notifications.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/localfirst/eventcore/apperr"
	"github.com/localfirst/eventcore/ids"
	"github.com/localfirst/eventcore/store/sqlite/migrate"
	"github.com/localfirst/eventcore/telemetry"
	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

type engineConfig struct {
	dsn          string
	maxOpenConns int
	maxIdleConns int
	walMode      bool
	autoMigrate  bool
	logger       *slog.Logger
	metrics      *telemetry.Metrics
}

func defaultEngineConfig() engineConfig {
	return engineConfig{
		dsn:          "eventcore.db",
		maxOpenConns: 1,
		maxIdleConns: 1,
		walMode:      true,
		autoMigrate:  true,
		logger:       slog.Default(),
		metrics:      telemetry.Noop().Metrics,
	}
}

// WithLogger overrides the Engine's *slog.Logger, used for bootstrap and
// per-statement diagnostics. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *engineConfig) { c.logger = logger }
}

// WithMetrics attaches OpenTelemetry instruments recording Execute/Batch
// counts and TablesChanged deliveries. Defaults to a no-op instrument set.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(c *engineConfig) { c.metrics = m }
}

// Option configures an Engine at construction time.
type Option func(*engineConfig)

// WithDSN sets the data source name (a file path, or ":memory:").
func WithDSN(dsn string) Option {
	return func(c *engineConfig) { c.dsn = dsn }
}

// WithMaxOpenConns bounds the connection pool. The owner is a
// single-writer engine, so the default is 1; raise it only for read
// replicas that never write.
func WithMaxOpenConns(n int) Option {
	return func(c *engineConfig) { c.maxOpenConns = n }
}

// WithMaxIdleConns bounds idle pooled connections.
func WithMaxIdleConns(n int) Option {
	return func(c *engineConfig) { c.maxIdleConns = n }
}

// WithWALMode toggles write-ahead logging. Unavailable for ":memory:".
func WithWALMode(enabled bool) Option {
	return func(c *engineConfig) { c.walMode = enabled }
}

// WithAutoMigrate toggles running pending migrations during Open.
func WithAutoMigrate(enabled bool) Option {
	return func(c *engineConfig) { c.autoMigrate = enabled }
}

// Engine is the owner's embedded SQL store: the single process-local
// instance holding the write lease for one store_id. It serializes all
// writes behind mu and fans out per-statement table changes to
// SubscribeTables listeners.
type Engine struct {
	db  *sql.DB
	dsn string
	mu  sync.Mutex

	subMu       sync.Mutex
	subscribers map[string]*subscription

	logger  *slog.Logger
	metrics *telemetry.Metrics
}

type subscription struct {
	tables map[string]struct{}
	ch     chan []string
}

// Open creates or opens the owner database at the configured DSN,
// applying WAL mode and pending migrations per the supplied Options.
func Open(opts ...Option) (*Engine, error) {
	cfg := defaultEngineConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := sql.Open("sqlite", cfg.dsn)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeDbInvalidState, err, "open database %s", cfg.dsn)
	}

	if cfg.dsn == ":memory:" {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		db.SetMaxOpenConns(cfg.maxOpenConns)
		db.SetMaxIdleConns(cfg.maxIdleConns)
	}
	db.SetConnMaxLifetime(time.Hour)

	e := &Engine{db: db, dsn: cfg.dsn, subscribers: make(map[string]*subscription), logger: cfg.logger, metrics: cfg.metrics}

	if cfg.walMode && cfg.dsn != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode = WAL; PRAGMA synchronous = NORMAL; PRAGMA foreign_keys = ON;"); err != nil {
			db.Close()
			return nil, apperr.Wrap(apperr.CodeDbInvalidState, err, "set WAL mode")
		}
	}

	if cfg.autoMigrate {
		migrator, err := migrate.New(db)
		if err != nil {
			db.Close()
			return nil, err
		}
		if err := migrator.Up(); err != nil {
			db.Close()
			return nil, apperr.Wrap(apperr.CodeMigration, err, "apply pending migrations")
		}
	}

	cfg.logger.Info("sqlite: owner engine opened", "dsn", cfg.dsn)
	return e, nil
}

// Shutdown releases the write lease and closes the underlying connection.
func (e *Engine) Shutdown() error {
	e.subMu.Lock()
	for _, sub := range e.subscribers {
		close(sub.ch)
	}
	e.subscribers = make(map[string]*subscription)
	e.subMu.Unlock()
	return e.db.Close()
}

// ExportMain returns a raw snapshot of the entire database file, for
// development-only backup/restore. It uses VACUUM INTO to produce a
// consistent copy without blocking readers.
func (e *Engine) ExportMain(ctx context.Context) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	tmp, err := os.CreateTemp("", "eventcore-export-*.db")
	if err != nil {
		return nil, fmt.Errorf("sqlite: export: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if _, err := e.db.ExecContext(ctx, fmt.Sprintf("VACUUM INTO %s", quoteLiteral(tmpPath))); err != nil {
		return nil, apperr.Wrap(apperr.CodeDbInvalidState, err, "export_main")
	}
	data, err := os.ReadFile(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: export: read snapshot: %w", err)
	}
	return data, nil
}

// ImportMain replaces the database's contents with a snapshot previously
// produced by ExportMain. Only valid for file-backed engines; it closes
// and reopens the underlying connection, so no other operation may run
// concurrently with it.
func (e *Engine) ImportMain(data []byte) error {
	if e.dsn == ":memory:" {
		return apperr.New(apperr.CodeDbInvalidState, "import_main is unsupported for in-memory engines")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.db.Close(); err != nil {
		return fmt.Errorf("sqlite: import: close current database: %w", err)
	}
	if err := os.WriteFile(e.dsn, data, 0o600); err != nil {
		return fmt.Errorf("sqlite: import: write snapshot: %w", err)
	}

	db, err := sql.Open("sqlite", e.dsn)
	if err != nil {
		return apperr.Wrap(apperr.CodeDbInvalidState, err, "import_main: reopen database")
	}
	e.db = db
	return nil
}

func quoteLiteral(path string) string {
	return "'" + strings.ReplaceAll(path, "'", "''") + "'"
}

// Query runs a read-only SELECT and returns raw *sql.Rows. Callers must
// Close the result.
func (e *Engine) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classifyError(err)
	}
	return rows, nil
}

// Execute runs one write statement outside a batch and notifies
// subscribers of the tables it touched.
func (e *Engine) Execute(ctx context.Context, stmt string, args ...any) (sql.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	res, err := e.db.ExecContext(ctx, stmt, args...)
	e.metrics.ExecuteTotal.Add(ctx, 1)
	if err != nil {
		return nil, classifyError(err)
	}
	e.notify(ctx, []string{tableFromStatement(stmt)})
	return res, nil
}

// Statement is one write in a Batch call.
type Statement struct {
	SQL  string
	Args []any
}

// Batch executes every Statement inside a single transaction: either all
// succeed and are committed, or the first failure rolls back the whole
// batch and no TablesChanged notification fires.
func (e *Engine) Batch(ctx context.Context, stmts []Statement) error {
	if len(stmts) == 0 {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.metrics.BatchTotal.Add(ctx, 1)

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return classifyError(err)
	}
	defer tx.Rollback()

	touched := make([]string, 0, len(stmts))
	for _, s := range stmts {
		if _, err := tx.ExecContext(ctx, s.SQL, s.Args...); err != nil {
			e.metrics.BatchRollbackTotal.Add(ctx, 1)
			e.logger.Warn("sqlite: batch rolled back", "statement", s.SQL, "error", err)
			return apperr.Wrap(apperr.CodeTransactionAborted, classifyError(err), "batch statement failed: %s", s.SQL)
		}
		touched = append(touched, tableFromStatement(s.SQL))
	}

	if err := tx.Commit(); err != nil {
		e.metrics.BatchRollbackTotal.Add(ctx, 1)
		return classifyError(err)
	}
	e.notify(ctx, touched)
	return nil
}

// SubscribeTables registers subscriptionID's interest in tables and
// returns a channel receiving the changed-table subset of every future
// Execute or Batch commit that touches at least one of them. Calling it
// again with the same subscriptionID replaces the previous registration.
func (e *Engine) SubscribeTables(subscriptionID string, tables []string) <-chan []string {
	e.subMu.Lock()
	defer e.subMu.Unlock()

	if existing, ok := e.subscribers[subscriptionID]; ok {
		close(existing.ch)
	}
	set := make(map[string]struct{}, len(tables))
	for _, t := range tables {
		set[t] = struct{}{}
	}
	sub := &subscription{tables: set, ch: make(chan []string, 16)}
	e.subscribers[subscriptionID] = sub
	return sub.ch
}

// SubscribeTablesAuto is SubscribeTables for callers with no natural
// subscription identity of their own (a projection rebuild, a one-off CLI
// watcher): it mints a sortable id and returns it alongside the channel so
// the caller can still UnsubscribeTables later.
func (e *Engine) SubscribeTablesAuto(tables []string) (subscriptionID string, ch <-chan []string) {
	id := ids.NewSortableID().String()
	return id, e.SubscribeTables(id, tables)
}

// UnsubscribeTables removes subscriptionID's registration, closing its
// notification channel.
func (e *Engine) UnsubscribeTables(subscriptionID string) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	if s, ok := e.subscribers[subscriptionID]; ok {
		close(s.ch)
		delete(e.subscribers, subscriptionID)
	}
}

func (e *Engine) notify(ctx context.Context, tables []string) {
	e.subMu.Lock()
	defer e.subMu.Unlock()

	for _, sub := range e.subscribers {
		var matched []string
		for _, t := range tables {
			if _, ok := sub.tables[t]; ok {
				matched = append(matched, t)
			}
		}
		if len(matched) == 0 {
			continue
		}
		select {
		case sub.ch <- matched:
			e.metrics.TableNotifications.Add(ctx, 1)
		default:
			// slow subscriber; drop rather than block the writer.
			e.logger.Warn("sqlite: dropped TablesChanged notification for slow subscriber", "tables", matched)
		}
	}
}

func classifyError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY"):
		return apperr.Wrap(apperr.CodeDbLocked, err, "database busy")
	case strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return apperr.Wrap(apperr.CodeConstraintViolation, err, "constraint violation")
	default:
		return fmt.Errorf("sqlite: %w", err)
	}
}
