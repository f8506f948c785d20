package types

import (
	"errors"
	"fmt"
	"strings"
)

// InputError reports invalid caller input. Fatal, raised before any network activity.
type InputError struct {
	Field string
	Msg   string
	Err   error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}

func (e *InputError) Unwrap() error { return e.Err }

// ResolutionKind classifies why a company could not be resolved
type ResolutionKind string

const (
	ResolutionNotFound     ResolutionKind = "not_found"
	ResolutionBlocked      ResolutionKind = "blocked"
	ResolutionUnresolvable ResolutionKind = "unresolvable"
	ResolutionTransport    ResolutionKind = "transport"
)

// ResolutionError reports a company that could not be mapped to a listing
type ResolutionError struct {
	Source      Source
	Company     string
	Kind        ResolutionKind
	Msg         string
	Suggestions []string
	Err         error
}

func (e *ResolutionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: resolve %q: %s", e.Source.DisplayName(), e.Company, e.Kind)
	if e.Msg != "" {
		b.WriteString(": " + e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	if len(e.Suggestions) > 0 {
		b.WriteString(" (try: " + strings.Join(e.Suggestions, ", ") + ")")
	}
	return b.String()
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// TransportError reports a failed request or a non-200 response
type TransportError struct {
	URL    string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("request %s failed: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("request %s: unexpected status code: %d", e.URL, e.Status)
}

func (e *TransportError) Unwrap() error { return e.Err }

// SkipReason names why a single candidate was dropped
type SkipReason string

const (
	SkipMissingDate   SkipReason = "missing_date"
	SkipBadDate       SkipReason = "bad_date"
	SkipOutOfRange    SkipReason = "out_of_range"
	SkipMissingBody   SkipReason = "missing_body"
	SkipMissingAuthor SkipReason = "missing_author"
	SkipPanic         SkipReason = "extraction_panic"
)

// ExtractionSkip is the per-candidate failure; it never aborts a page
type ExtractionSkip struct {
	Reason SkipReason
	Detail string
}

func (e *ExtractionSkip) Error() string {
	if e.Detail == "" {
		return "skip: " + string(e.Reason)
	}
	return fmt.Sprintf("skip: %s: %s", e.Reason, e.Detail)
}

// Skip builds an ExtractionSkip
func Skip(reason SkipReason, detail string) *ExtractionSkip {
	return &ExtractionSkip{Reason: reason, Detail: detail}
}

// ExitCode maps a run error to a process exit status. Only input and
// resolution failures exit 1; everything else leaves a completed run.
func ExitCode(err error) int {
	var inputErr *InputError
	var resErr *ResolutionError
	if errors.As(err, &inputErr) || errors.As(err, &resErr) {
		return 1
	}
	return 0
}
