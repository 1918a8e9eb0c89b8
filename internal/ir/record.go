package ir

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// TimestampLayout is the persisted form of TextRecord.CreatedAt.
// Fixed nine fractional digits keep string comparison chronological.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z"

// RegionDelimiter separates region texts inside TextRecord.Text.
const RegionDelimiter = "\t"

// TextRecord is a persisted unit of recognized text.
type TextRecord struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Bounds is a rectangular box in pixel coordinates.
type Bounds struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// TextRegion is one recognized text fragment returned by the engine.
// Only Text is used beyond display; geometry and confidence are engine detail.
type TextRegion struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence,omitempty"`
	Bounds     Bounds  `json:"bounds"`
}

// JoinRegions concatenates region texts with RegionDelimiter.
// The result is NFC normalized so equal text from different engines compares equal.
func JoinRegions(regions []TextRegion) string {
	parts := make([]string, len(regions))
	for i, r := range regions {
		parts[i] = r.Text
	}
	return norm.NFC.String(strings.Join(parts, RegionDelimiter))
}

// FormatTimestamp renders t in TimestampLayout (always UTC).
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp parses a value written by FormatTimestamp.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(TimestampLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}
