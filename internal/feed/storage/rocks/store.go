// Package rocks keeps a record snapshot in RocksDB: one JSON value per record
// under rec:<seq>, plus meta:count.
package rocks

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/tecbot/gorocksdb"

	"github.com/chenzhangda16/web3-feed/internal/feed/storage"
)

const batchFlush = 5000

var (
	recPrefix = []byte("rec:")
	countKey  = []byte("meta:count")
)

type Store[T any] struct {
	path string
	db   *gorocksdb.DB
	ro   *gorocksdb.ReadOptions
	wo   *gorocksdb.WriteOptions
}

func Open[T any](path string) (*Store[T], error) {
	opts := gorocksdb.NewDefaultOptions()
	opts.SetCreateIfMissing(true)
	opts.IncreaseParallelism(2)

	db, err := gorocksdb.OpenDb(opts, path)
	if err != nil {
		return nil, storage.IOError("open", path, err)
	}
	return &Store[T]{
		path: path,
		db:   db,
		ro:   gorocksdb.NewDefaultReadOptions(),
		wo:   gorocksdb.NewDefaultWriteOptions(),
	}, nil
}

func (s *Store[T]) Close() {
	if s.ro != nil {
		s.ro.Destroy()
	}
	if s.wo != nil {
		s.wo.Destroy()
	}
	if s.db != nil {
		s.db.Close()
	}
}

// Count returns meta:count, 0 for an empty store.
func (s *Store[T]) Count() (int, error) {
	val, err := s.db.Get(s.ro, countKey)
	if err != nil {
		return 0, storage.IOError("get", s.path, err)
	}
	defer val.Free()
	if !val.Exists() {
		return 0, nil
	}
	n, err := strconv.Atoi(string(val.Data()))
	if err != nil {
		return 0, &storage.RecordError{Source: s.path + "/meta:count", Err: err}
	}
	return n, nil
}

// Load returns records in sequence order.
func (s *Store[T]) Load(ctx context.Context) ([]T, error) {
	want, err := s.Count()
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, want)

	it := s.db.NewIterator(s.ro)
	defer it.Close()

	for it.Seek(recPrefix); it.ValidForPrefix(recPrefix); it.Next() {
		if len(out)&1023 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		k := it.Key()
		v := it.Value()
		rec, err := decodeRecord[T](v.Data())
		key := string(k.Data())
		k.Free()
		v.Free()
		if err != nil {
			return nil, &storage.RecordError{Source: s.path + "/" + key, Line: len(out) + 1, Err: err}
		}
		out = append(out, rec)
	}
	if err := it.Err(); err != nil {
		return nil, storage.IOError("iterate", s.path, err)
	}
	if len(out) != want {
		return nil, &storage.RecordError{
			Source: s.path,
			Line:   len(out),
			Err:    fmt.Errorf("snapshot has %d records, meta:count says %d", len(out), want),
		}
	}
	return out, nil
}

// Save replaces the snapshot. Old records beyond the new count are deleted in the
// same batches.
func (s *Store[T]) Save(ctx context.Context, records []T) error {
	prev, err := s.Count()
	if err != nil {
		return err
	}

	wb := gorocksdb.NewWriteBatch()
	defer wb.Destroy()

	flush := func() error {
		if wb.Count() == 0 {
			return nil
		}
		if err := s.db.Write(s.wo, wb); err != nil {
			return storage.IOError("write", s.path, err)
		}
		wb.Clear()
		return nil
	}

	// Shrink first so a reader never sees meta:count larger than the record set.
	wb.Put(countKey, []byte("0"))
	for i := len(records); i < prev; i++ {
		wb.Delete(RecordKey(i))
	}
	if err := flush(); err != nil {
		return err
	}

	for i, r := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		b, err := encodeRecord(r)
		if err != nil {
			return fmt.Errorf("rocks: encode record %d: %w", i, err)
		}
		wb.Put(RecordKey(i), b)
		if wb.Count() >= batchFlush {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	wb.Put(countKey, []byte(strconv.Itoa(len(records))))
	return flush()
}

// RecordKey is "rec:" followed by the zero-padded sequence, so byte order is
// sequence order.
func RecordKey(i int) []byte {
	return []byte(fmt.Sprintf("rec:%020d", i))
}

// Records are stored as their JSON form; every field a codec reads must survive it.
func encodeRecord[T any](rec T) ([]byte, error) { return json.Marshal(rec) }

func decodeRecord[T any](b []byte) (T, error) {
	var rec T
	err := json.Unmarshal(b, &rec)
	return rec, err
}
