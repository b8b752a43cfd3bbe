package storage

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/chenzhangda16/web3-feed/internal/feed/model"
)

// CSV stores records in a headed CSV file. The first row is always treated as
// the header and skipped on load.
type CSV[T any] struct {
	path  string
	codec Codec[T]
}

func NewCSV[T any](path string, codec Codec[T]) *CSV[T] {
	return &CSV[T]{path: path, codec: codec}
}

func (s *CSV[T]) Path() string { return s.path }

// Load reads every row. It stops at the first row that fails to parse.
func (s *CSV[T]) Load(ctx context.Context) ([]T, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, IOError("open", s.path, err)
	}
	defer f.Close()
	return s.read(ctx, f)
}

func (s *CSV[T]) read(ctx context.Context, r io.Reader) ([]T, error) {
	return ReadCSV(ctx, r, s.codec, s.path)
}

// ReadCSV decodes a headed CSV stream, stopping at the first row that fails to
// parse. source names the origin in errors.
func ReadCSV[T any](ctx context.Context, r io.Reader, codec Codec[T], source string) ([]T, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var out []T
	header := true
	for n := 0; ; n++ {
		if n&1023 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				return nil, &RecordError{Source: source, Line: pe.Line, Err: pe.Err}
			}
			return nil, IOError("read", source, err)
		}
		if header {
			header = false
			continue
		}
		v, err := codec.Decode(row)
		if err != nil {
			line, _ := cr.FieldPos(0)
			re := &RecordError{Source: source, Line: line, Err: err}
			var ce *model.ColumnError
			if errors.As(err, &ce) {
				re.Column, re.Err = ce.Column, ce.Err
			}
			return nil, re
		}
		out = append(out, v)
	}
}

// Save replaces the file with a header and one row per record. The write goes to
// a temp file in the same directory first, so readers never see a partial file.
func (s *CSV[T]) Save(ctx context.Context, records []T) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return IOError("mkdir", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return IOError("create", s.path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := s.write(ctx, tmp, records); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return IOError("close", tmpName, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return IOError("rename", s.path, err)
	}
	return nil
}

func (s *CSV[T]) write(ctx context.Context, w io.Writer, records []T) error {
	return WriteCSV(ctx, w, s.codec, records, s.path)
}

// WriteCSV encodes records with a header row. source names the destination in errors.
func WriteCSV[T any](ctx context.Context, w io.Writer, codec Codec[T], records []T, source string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(codec.Header()); err != nil {
		return IOError("write", source, err)
	}
	for i, r := range records {
		if i&1023 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if err := cw.Write(codec.Encode(r)); err != nil {
			return IOError("write", source, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return IOError("flush", source, err)
	}
	return nil
}
