package pulse

import (
	"errors"
	"fmt"
)

// Frame errors signal "not this protocol". They are always recoverable.
var (
	ErrLengthMismatch        = errors.New("length mismatch")
	ErrHeaderMismatch        = errors.New("header mismatch")
	ErrFooterMismatch        = errors.New("footer mismatch")
	ErrStartSequenceMismatch = errors.New("start sequence mismatch")
)

// Field errors make decode yield no message.
var (
	ErrSyncMismatch = errors.New("sync mismatch")
	ErrInvalidState = errors.New("invalid state")
	ErrAmbiguousBit = errors.New("ambiguous bit")
	ErrNoPattern    = errors.New("no matching pattern")
)

// Request errors are reported to the caller of an encode.
var (
	ErrMissingField      = errors.New("missing field")
	ErrOutOfRange        = errors.New("out of range")
	ErrConflictingFields = errors.New("conflicting fields")
)

// FieldError reports which field made a decode fail.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %s: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// RequestError reports the offending field of an encode request.
type RequestError struct {
	Field string
	Err   error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Missing returns a RequestError for an absent required field.
func Missing(field string) error {
	return &RequestError{Field: field, Err: ErrMissingField}
}

// OutOfRange returns a RequestError for a value outside its declared range.
func OutOfRange(field string) error {
	return &RequestError{Field: field, Err: ErrOutOfRange}
}

// Conflicting returns a RequestError for mutually exclusive fields.
func Conflicting(field string) error {
	return &RequestError{Field: field, Err: ErrConflictingFields}
}

var reasons = []struct {
	err  error
	name string
}{
	{ErrLengthMismatch, "length_mismatch"},
	{ErrHeaderMismatch, "header_mismatch"},
	{ErrFooterMismatch, "footer_mismatch"},
	{ErrStartSequenceMismatch, "start_sequence_mismatch"},
	{ErrSyncMismatch, "sync_mismatch"},
	{ErrInvalidState, "invalid_state"},
	{ErrAmbiguousBit, "ambiguous_bit"},
	{ErrNoPattern, "no_pattern"},
	{ErrMissingField, "missing_field"},
	{ErrOutOfRange, "out_of_range"},
	{ErrConflictingFields, "conflicting_fields"},
}

// Reason returns a short snake_case label for err, suitable for metrics.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.name
		}
	}
	return "other"
}

// IsFrameError reports whether err came from structural validation.
func IsFrameError(err error) bool {
	return errors.Is(err, ErrLengthMismatch) ||
		errors.Is(err, ErrHeaderMismatch) ||
		errors.Is(err, ErrFooterMismatch) ||
		errors.Is(err, ErrStartSequenceMismatch)
}
