package chwire

import (
	"fmt"

	"github.com/go-faster/errors"
)

// ParseError is returned when a type string is lexically or
// grammatically malformed.
type ParseError struct {
	Position int
	Reason   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("chwire: parse error at byte %d: %s", e.Position, e.Reason)
}

func newParseError(pos int, format string, args ...interface{}) error {
	return errors.WithStack(&ParseError{Position: pos, Reason: fmt.Sprintf(format, args...)})
}

// TypeError is returned when a parsed type tree contains an illegal
// combination, e.g. LowCardinality(DateTime64) or Map with a Nullable key.
type TypeError struct {
	Path   string
	Reason string
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("chwire: illegal type %s: %s", e.Path, e.Reason)
}

func newTypeError(path, format string, args ...interface{}) error {
	return errors.WithStack(&TypeError{Path: path, Reason: fmt.Sprintf(format, args...)})
}

// ValidationError is returned when a Value does not structurally match
// its declared TypeDesc.
type ValidationError struct {
	Path   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("chwire: value does not match type at %s: %s", e.Path, e.Reason)
}

func newValidationError(path, format string, args ...interface{}) error {
	return errors.WithStack(&ValidationError{Path: path, Reason: fmt.Sprintf(format, args...)})
}

// SchemaMismatch is returned when a decoded header schema is incompatible
// with a caller-supplied schema.
type SchemaMismatch struct {
	Reason string
}

func (e *SchemaMismatch) Error() string {
	return fmt.Sprintf("chwire: schema mismatch: %s", e.Reason)
}

func newSchemaMismatch(format string, args ...interface{}) error {
	return errors.WithStack(&SchemaMismatch{Reason: fmt.Sprintf(format, args...)})
}

// EncodingError is returned for numeric overflow, unknown enum variants,
// and decimal overflow during encode.
type EncodingError struct {
	Reason string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("chwire: encoding error: %s", e.Reason)
}

func newEncodingError(format string, args ...interface{}) error {
	return errors.WithStack(&EncodingError{Reason: fmt.Sprintf(format, args...)})
}

// DecodingError is returned for truncated input, oversized LEB128 values,
// unknown codec tags, and checksum mismatches.
type DecodingError struct {
	Reason string
}

func (e *DecodingError) Error() string {
	return fmt.Sprintf("chwire: decoding error: %s", e.Reason)
}

func newDecodingError(format string, args ...interface{}) error {
	return errors.WithStack(&DecodingError{Reason: fmt.Sprintf(format, args...)})
}

// IoError wraps a failure from the underlying byte source or sink.
// It is never interpreted, only propagated.
type IoError struct {
	Cause error
}

func (e *IoError) Error() string { return fmt.Sprintf("chwire: io error: %v", e.Cause) }
func (e *IoError) Unwrap() error { return e.Cause }

func newIoError(cause error) error {
	if cause == nil {
		return nil
	}
	return errors.WithStack(&IoError{Cause: cause})
}

// NotSeekable is returned when seek_row is requested on a reader whose
// byte source does not implement io.Seeker.
type NotSeekable struct{}

func (e *NotSeekable) Error() string { return "chwire: underlying source is not seekable" }

// RowCountMismatch is returned by the Native block builder when columns
// do not share the same row count.
type RowCountMismatch struct {
	Column   string
	Expected int
	Got      int
}

func (e *RowCountMismatch) Error() string {
	return fmt.Sprintf("chwire: column %q has %d rows, expected %d", e.Column, e.Got, e.Expected)
}

func newRowCountMismatch(column string, expected, got int) error {
	return errors.WithStack(&RowCountMismatch{Column: column, Expected: expected, Got: got})
}

// MissingColumn is returned by the streaming Native writer's append_row
// when a schema column has no setter value.
type MissingColumn struct {
	Column string
}

func (e *MissingColumn) Error() string { return fmt.Sprintf("chwire: missing column %q", e.Column) }

func newMissingColumn(column string) error {
	return errors.WithStack(&MissingColumn{Column: column})
}

// UnknownColumn is returned by the streaming Native writer's append_row
// when a setter key names a column not present in the schema.
type UnknownColumn struct {
	Column string
}

func (e *UnknownColumn) Error() string { return fmt.Sprintf("chwire: unknown column %q", e.Column) }

func newUnknownColumn(column string) error {
	return errors.WithStack(&UnknownColumn{Column: column})
}

// InvalidValue is returned by append_json when a JSON value cannot be
// coerced into the declared column type.
type InvalidValue struct {
	Column string
	Reason string
}

func (e *InvalidValue) Error() string {
	return fmt.Sprintf("chwire: invalid value for column %q: %s", e.Column, e.Reason)
}

func newInvalidValue(column, format string, args ...interface{}) error {
	return errors.WithStack(&InvalidValue{Column: column, Reason: fmt.Sprintf(format, args...)})
}
