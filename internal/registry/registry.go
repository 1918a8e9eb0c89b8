package registry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/roach88/snaptext/internal/ir"
)

// RecordStore is the persistence surface the registry needs.
// Implemented by *store.Store.
type RecordStore interface {
	Insert(ctx context.Context, text string) (ir.TextRecord, error)
	ListOrdered(ctx context.Context) ([]ir.TextRecord, error)
	GetByID(ctx context.Context, id string) (ir.TextRecord, bool, error)
	DeleteByID(ctx context.Context, id string) error
}

// Registry caches the ordered record list.
//
// Thread-safety: all methods are safe for concurrent use. Refresh swaps the
// cache under the write lock so readers never see a partial list.
type Registry struct {
	store  RecordStore
	logger *slog.Logger

	mu      sync.RWMutex
	records []ir.TextRecord
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry's logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates an empty registry over store. Call Refresh to load it.
func New(store RecordStore, opts ...Option) *Registry {
	r := &Registry{
		store:   store,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		records: []ir.TextRecord{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Refresh reloads the cache from the store.
// On error the previous cache is kept.
func (r *Registry) Refresh(ctx context.Context) error {
	records, err := r.store.ListOrdered(ctx)
	if err != nil {
		return fmt.Errorf("refresh registry: %w", err)
	}

	r.mu.Lock()
	r.records = records
	r.mu.Unlock()

	r.logger.Debug("registry refreshed", "count", len(records))
	return nil
}

// List returns a copy of the cached records, newest first.
func (r *Registry) List() []ir.TextRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ir.TextRecord, len(r.records))
	copy(out, r.records)
	return out
}

// Add inserts text and refreshes the cache.
//
// If the insert succeeds but the refresh fails, the record is returned along
// with the error: it is stored, only the view is stale.
func (r *Registry) Add(ctx context.Context, text string) (ir.TextRecord, error) {
	rec, err := r.store.Insert(ctx, text)
	if err != nil {
		return ir.TextRecord{}, err
	}
	r.logger.Debug("record added", "id", rec.ID)

	if err := r.Refresh(ctx); err != nil {
		return rec, err
	}
	return rec, nil
}

// Remove deletes the record with id. It does not refresh.
func (r *Registry) Remove(ctx context.Context, id string) error {
	if err := r.store.DeleteByID(ctx, id); err != nil {
		return err
	}
	r.logger.Debug("record removed", "id", id)
	return nil
}

// Get looks a record up in the store, bypassing the cache.
func (r *Registry) Get(ctx context.Context, id string) (ir.TextRecord, bool, error) {
	return r.store.GetByID(ctx, id)
}
