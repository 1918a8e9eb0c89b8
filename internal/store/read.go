package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/snaptext/internal/ir"
)

// ListOrdered returns every record ordered by created_at descending.
// rowid breaks ties for rows written by other tools with equal stamps.
//
// Returns an empty slice (not nil) if the store holds no records.
func (s *Store) ListOrdered(ctx context.Context) ([]ir.TextRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, text, created_at
		FROM ocr_texts
		ORDER BY created_at DESC, rowid DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query text records: %w", err)
	}
	defer rows.Close()

	records := []ir.TextRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate text records: %w", err)
	}

	return records, nil
}

// GetByID retrieves a single record. The bool is false when no record has
// that id; absence is not an error.
func (s *Store) GetByID(ctx context.Context, id string) (ir.TextRecord, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, text, created_at
		FROM ocr_texts
		WHERE id = ?
	`, id)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.TextRecord{}, false, nil
	}
	if err != nil {
		return ir.TextRecord{}, false, err
	}
	return rec, true, nil
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ocr_texts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count text records: %w", err)
	}
	return n, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (ir.TextRecord, error) {
	var rec ir.TextRecord
	var createdAt string
	if err := row.Scan(&rec.ID, &rec.Text, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ir.TextRecord{}, err
		}
		return ir.TextRecord{}, fmt.Errorf("scan text record: %w", err)
	}

	t, err := ir.ParseTimestamp(createdAt)
	if err != nil {
		return ir.TextRecord{}, fmt.Errorf("scan text record %s: %w", rec.ID, err)
	}
	rec.CreatedAt = t
	return rec, nil
}
