package store

import (
	"context"
	"database/sql"
	"fmt"
)

// migration upgrades the schema from version-1 to version.
type migration struct {
	version int
	name    string
	stmts   []string
}

// Schema history:
// 0 - fresh file, nothing created
// 1 - ocr_texts table plus created_at index
var migrations = []migration{
	{
		version: 1,
		name:    "create ocr_texts",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS ocr_texts (
				id TEXT PRIMARY KEY NOT NULL,
				text TEXT NOT NULL,
				created_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_ocr_texts_created_at ON ocr_texts(created_at)`,
		},
	},
}

// Migrator upgrades the schema stored in PRAGMA user_version.
//
// Migrations are applied in strictly increasing version order, each in its
// own transaction together with the version bump, so a failure leaves the
// store at the last fully applied version. A store already at or beyond the
// target is left untouched: the migrator never downgrades.
type Migrator struct {
	db         *sql.DB
	migrations []migration
}

// NewMigrator creates a Migrator for the built-in schema history.
func NewMigrator(db *sql.DB) *Migrator {
	return newMigrator(db, migrations)
}

func newMigrator(db *sql.DB, steps []migration) *Migrator {
	return &Migrator{db: db, migrations: steps}
}

// Target returns the version the migrator upgrades to.
func (m *Migrator) Target() int {
	if len(m.migrations) == 0 {
		return 0
	}
	return m.migrations[len(m.migrations)-1].version
}

// Version reads the persisted schema version (0 for a fresh store).
func (m *Migrator) Version(ctx context.Context) (int, error) {
	var version int
	if err := m.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("get user_version: %w", err)
	}
	return version, nil
}

// Migrate applies every pending migration and returns the version before and
// after. Running it again on an up-to-date store is a no-op.
func (m *Migrator) Migrate(ctx context.Context) (from, to int, err error) {
	from, err = m.Version(ctx)
	if err != nil {
		return 0, 0, err
	}

	current := from
	if current >= m.Target() {
		return from, current, nil
	}

	for _, step := range m.migrations {
		if step.version <= current {
			continue
		}
		if step.version != current+1 {
			return from, current, fmt.Errorf("migration gap: at version %d, next is %d (%s)", current, step.version, step.name)
		}
		if err := m.apply(ctx, step); err != nil {
			return from, current, err
		}
		current = step.version
	}

	return from, current, nil
}

// apply runs one migration and its version bump atomically.
func (m *Migrator) apply(ctx context.Context, step migration) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migrate to v%d: begin tx: %w", step.version, err)
	}
	defer tx.Rollback() // No-op if committed

	for _, stmt := range step.stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate to v%d (%s): %w", step.version, step.name, err)
		}
	}

	// PRAGMA does not accept bound parameters.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", step.version)); err != nil {
		return fmt.Errorf("migrate to v%d: set user_version: %w", step.version, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migrate to v%d: commit: %w", step.version, err)
	}
	return nil
}
