package store

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/snaptext/internal/ir"
)

// Clock supplies wall-clock time for created_at stamps.
type Clock interface {
	Now() time.Time
}

// SystemClock reads time.Now.
type SystemClock struct{}

// Now returns the current time.
func (SystemClock) Now() time.Time { return time.Now() }

// Store provides durable storage for text records.
type Store struct {
	db     *sql.DB
	clock  Clock
	ids    ir.IDGenerator
	logger *slog.Logger

	// schema versions before and after the migration run by Open.
	migratedFrom, migratedTo int

	// mu guards last, the most recent created_at issued or loaded.
	mu   sync.Mutex
	last time.Time
}

// Option configures a Store at Open time.
type Option func(*Store)

// WithClock sets the clock used for created_at stamps.
func WithClock(c Clock) Option {
	return func(s *Store) {
		s.clock = c
	}
}

// WithIDGenerator sets the record id generator.
// Default: ir.UUIDv7Generator.
func WithIDGenerator(g ir.IDGenerator) Option {
	return func(s *Store) {
		s.ids = g
	}
}

// WithLogger sets the logger used for migration and lifecycle messages.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and runs the migrator before returning.
//
// This function is idempotent - safe to call multiple times on the same file.
func Open(path string, opts ...Option) (*Store, error) {
	return OpenContext(context.Background(), path, opts...)
}

// OpenContext is Open with a context for the migration step.
func OpenContext(ctx context.Context, path string, opts ...Option) (*Store, error) {
	s := &Store{
		clock:  SystemClock{},
		ids:    ir.UUIDv7Generator{},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}

	// Open database (creates file if doesn't exist)
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections.
	// A single connection also keeps ":memory:" databases alive and shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	from, to, err := NewMigrator(db).Migrate(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	if from != to {
		s.logger.Info("store migrated", "path", path, "from", from, "to", to)
	}

	s.db = db
	s.migratedFrom, s.migratedTo = from, to

	if err := s.loadLastStamp(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using Store methods when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

// SchemaVersion reports the persisted schema version.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	return NewMigrator(s.db).Version(ctx)
}

// Migrated reports the schema versions before and after Open migrated.
// Equal values mean the store was already current.
func (s *Store) Migrated() (from, to int) {
	return s.migratedFrom, s.migratedTo
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// loadLastStamp seeds the monotonic stamp from the newest stored record so
// ordering survives a restart on a clock that went backwards.
func (s *Store) loadLastStamp(ctx context.Context) error {
	var latest sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT MAX(created_at) FROM ocr_texts`).Scan(&latest)
	if err != nil {
		return fmt.Errorf("load latest stamp: %w", err)
	}
	if !latest.Valid {
		return nil
	}
	t, err := ir.ParseTimestamp(latest.String)
	if err != nil {
		return fmt.Errorf("load latest stamp: %w", err)
	}
	s.last = t
	return nil
}

// nextStamp returns a created_at strictly after every stamp issued so far.
func (s *Store) nextStamp() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now().UTC()
	if !now.After(s.last) {
		now = s.last.Add(time.Nanosecond)
	}
	s.last = now
	return now
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
