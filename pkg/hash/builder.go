package hash

import (
	"crypto/sha256"
	"encoding/binary"
	"math"
	"sort"
)

// Builder builds a canonical byte sequence then hashes it to Hash32 (sha256).
//
// Encoding rules:
//   - Fixed-width integers: big-endian
//   - Floats: IEEE-754 bits as u64, so 0.2 and 0.20000000000000001 hash the same
//   - Bytes/string: u32(len) big-endian + bytes
//
// Used for run fingerprints: same seed, parameters and inputs give the same digest.
type Builder struct {
	b []byte
}

func NewBuilder() *Builder { return &Builder{b: make([]byte, 0, 128)} }

func (d *Builder) Reset() { d.b = d.b[:0] }

func (d *Builder) Bytes() []byte { return append([]byte(nil), d.b...) }

func (d *Builder) PutU64(v uint64) *Builder {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	d.b = append(d.b, buf[:]...)
	return d
}

func (d *Builder) PutI64(v int64) *Builder { return d.PutU64(uint64(v)) }

func (d *Builder) PutF64(v float64) *Builder { return d.PutU64(math.Float64bits(v)) }

// PutBytes appends: u32(len) + bytes
func (d *Builder) PutBytes(p []byte) *Builder {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(len(p)))
	d.b = append(d.b, buf[:]...)
	d.b = append(d.b, p...)
	return d
}

func (d *Builder) PutString(s string) *Builder { return d.PutBytes([]byte(s)) }

// PutStringSet writes a count followed by the strings in sorted order, so the
// digest does not depend on the order a set was collected in.
func (d *Builder) PutStringSet(ss []string) *Builder {
	sorted := append([]string(nil), ss...)
	sort.Strings(sorted)
	d.PutU64(uint64(len(sorted)))
	for _, s := range sorted {
		d.PutString(s)
	}
	return d
}

func (d *Builder) Sum32() Hash32 {
	return sha256.Sum256(d.b)
}
