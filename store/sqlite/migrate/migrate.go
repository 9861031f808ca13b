// Package migrate loads and applies the owner database's versioned schema
// migrations, tracked via SQLite's PRAGMA user_version rather than a
// separate bookkeeping table.
package migrate

import (
	"database/sql"
	"embed"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// Migration is a single versioned schema change.
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// Migrator applies Migrations in order, tracking progress via
// PRAGMA user_version. It supports a linear versioned bootstrap, not
// arbitrary branching migration graphs.
type Migrator struct {
	db         *sql.DB
	migrations []Migration
}

// New creates a Migrator with its migrations preloaded from the embedded
// filesystem bundled with this package.
func New(db *sql.DB) (*Migrator, error) {
	m := &Migrator{db: db}
	if err := m.loadFromFS(embeddedMigrations, "migrations"); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Migrator) loadFromFS(fsys embed.FS, dir string) error {
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("migrate: read migration directory: %w", err)
	}

	byVersion := make(map[int]*Migration)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		parts := strings.SplitN(entry.Name(), "_", 2)
		if len(parts) != 2 {
			continue
		}
		version, err := strconv.Atoi(parts[0])
		if err != nil {
			continue
		}
		content, err := fsys.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("migrate: read %s: %w", entry.Name(), err)
		}

		mig, ok := byVersion[version]
		if !ok {
			mig = &Migration{Version: version}
			byVersion[version] = mig
		}
		switch {
		case strings.HasSuffix(parts[1], ".up.sql"):
			mig.Name = strings.TrimSuffix(parts[1], ".up.sql")
			mig.Up = string(content)
		case strings.HasSuffix(parts[1], ".down.sql"):
			mig.Down = string(content)
		}
	}

	for _, mig := range byVersion {
		m.migrations = append(m.migrations, *mig)
	}
	sort.Slice(m.migrations, func(i, j int) bool { return m.migrations[i].Version < m.migrations[j].Version })
	return nil
}

func (m *Migrator) userVersion() (int, error) {
	var v int
	if err := m.db.QueryRow("PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("migrate: read user_version: %w", err)
	}
	return v, nil
}

func (m *Migrator) setUserVersion(v int) error {
	_, err := m.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", v))
	return err
}

// Up applies every migration whose version exceeds the database's current
// user_version, each inside its own transaction.
func (m *Migrator) Up() error {
	current, err := m.userVersion()
	if err != nil {
		return err
	}

	maxKnown := 0
	for _, mig := range m.migrations {
		if mig.Version > maxKnown {
			maxKnown = mig.Version
		}
	}
	if current > maxKnown {
		return fmt.Errorf("migrate: database user_version %d exceeds the highest known migration %d", current, maxKnown)
	}

	for _, mig := range m.migrations {
		if mig.Version <= current {
			continue
		}
		if err := m.apply(mig); err != nil {
			return fmt.Errorf("migrate: apply version %d (%s): %w", mig.Version, mig.Name, err)
		}
	}
	return nil
}

func (m *Migrator) apply(mig Migration) error {
	tx, err := m.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(mig.Up); err != nil {
		return fmt.Errorf("execute up script: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	return m.setUserVersion(mig.Version)
}

// Version returns the database's current user_version.
func (m *Migrator) Version() (int, error) {
	return m.userVersion()
}
