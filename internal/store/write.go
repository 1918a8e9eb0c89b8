package store

import (
	"context"
	"fmt"

	"github.com/roach88/snaptext/internal/ir"
)

// Insert persists a new record holding text and returns it.
//
// The id comes from the configured generator and created_at from the clock,
// bumped to stay strictly after the previous stamp. A duplicate id is a
// constraint violation and is returned as an error, never ignored.
func (s *Store) Insert(ctx context.Context, text string) (ir.TextRecord, error) {
	rec := ir.TextRecord{
		ID:        s.ids.Generate(),
		Text:      text,
		CreatedAt: s.nextStamp(),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ocr_texts (id, text, created_at)
		VALUES (?, ?, ?)
	`,
		rec.ID,
		rec.Text,
		ir.FormatTimestamp(rec.CreatedAt),
	)
	if err != nil {
		return ir.TextRecord{}, fmt.Errorf("insert text record: %w", err)
	}

	return rec, nil
}

// DeleteByID removes the record with the given id.
// Deleting an id that does not exist is not an error.
func (s *Store) DeleteByID(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM ocr_texts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete text record %s: %w", id, err)
	}
	return nil
}
