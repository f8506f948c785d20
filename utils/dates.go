package utils

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"review-extractor/internal/types"
)

// ErrDateParse is returned when no known date encoding matches
var ErrDateParse = errors.New("unrecognized date format")

// Locale text layouts emitted by some sources
var (
	LayoutUSNumeric = "1/2/2006"
	LayoutLongMonth = "January 2, 2006"
	LayoutAbbrMonth = "Jan 2, 2006"
)

// DefaultLocaleLayouts are the text formats tried after the ISO forms
var DefaultLocaleLayouts = []string{LayoutUSNumeric, LayoutLongMonth, LayoutAbbrMonth}

var isoDateTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseReviewDate tries, in order: an ISO date (dropping anything after a 'T' or space
// separator), a full ISO datetime, then each locale layout. The zone is discarded; the
// calendar date is taken as written.
func ParseReviewDate(raw string, localeLayouts ...string) (types.Date, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return types.Date{}, fmt.Errorf("%w: empty value", ErrDateParse)
	}

	datePart := raw
	if i := strings.IndexAny(raw, "T "); i > 0 {
		datePart = raw[:i]
	}
	if t, err := time.Parse(types.DateLayout, datePart); err == nil {
		return types.DateOf(t), nil
	}

	for _, layout := range isoDateTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return types.DateOf(t), nil
		}
	}

	for _, layout := range localeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return types.DateOf(t), nil
		}
	}

	return types.Date{}, fmt.Errorf("%w: %q", ErrDateParse, raw)
}
