// Package storage is the record I/O boundary of the pipeline. Every backend
// exposes Load or Save over a slice of records; the CSV store lives here and the
// remote backends live in subpackages.
package storage

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrIO wraps failures of the underlying medium (open, read, write, network).
	ErrIO = errors.New("storage: io failure")

	// ErrMalformedRecord marks a record that does not parse into its type.
	ErrMalformedRecord = errors.New("storage: malformed record")

	// ErrUnsupported is returned for a location scheme that cannot serve the
	// requested direction, e.g. loading from postgres://.
	ErrUnsupported = errors.New("storage: unsupported location")
)

type Loader[T any] interface {
	Load(ctx context.Context) ([]T, error)
}

type Saver[T any] interface {
	Save(ctx context.Context, records []T) error
}

// Codec maps a record type to and from a flat row of fields.
type Codec[T any] interface {
	Header() []string
	Decode(row []string) (T, error)
	Encode(v T) []string
}

// RecordError locates a malformed record. Line is 1-based; Column is empty when
// the row as a whole is wrong (e.g. field count).
type RecordError struct {
	Source string
	Line   int
	Column string
	Err    error
}

func (e *RecordError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%v: %s:%d column %q: %v", ErrMalformedRecord, e.Source, e.Line, e.Column, e.Err)
	}
	return fmt.Sprintf("%v: %s:%d: %v", ErrMalformedRecord, e.Source, e.Line, e.Err)
}

func (e *RecordError) Unwrap() []error { return []error{ErrMalformedRecord, e.Err} }

// IOError wraps err as ErrIO, naming the location.
func IOError(op, source string, err error) error {
	return fmt.Errorf("%w: %s %s: %w", ErrIO, op, source, err)
}

// Store is a location that can be both read and written (CSV, RocksDB).
type Store[T any] interface {
	Loader[T]
	Saver[T]
}
