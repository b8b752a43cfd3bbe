package hash

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Hash32 is a sha256-sized digest: tx hashes on the block stream and run fingerprints.
type Hash32 [32]byte

var (
	ErrInvalidHex   = errors.New("hash: invalid hex")
	ErrInvalidLen   = errors.New("hash: invalid length")
	ErrEmptyHashStr = errors.New("hash: empty string")
)

// Hex returns the lower-case, 0x-prefixed form.
func (h Hash32) Hex() string {
	return "0x" + hex.EncodeToString(h[:])
}

// Short is the first 8 bytes, enough to tell runs apart in log lines.
func (h Hash32) Short() string {
	return hex.EncodeToString(h[:8])
}

func (h Hash32) IsZero() bool {
	return h == Hash32{}
}

func Parse(s string) (Hash32, error) {
	var h Hash32

	s = strings.TrimSpace(s)
	if s == "" {
		return h, ErrEmptyHashStr
	}
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimPrefix(s, "0X")
	if len(s) != 64 {
		return h, fmt.Errorf("%w: want 64 hex chars, got %d", ErrInvalidLen, len(s))
	}
	if _, err := hex.Decode(h[:], []byte(s)); err != nil {
		return h, fmt.Errorf("%w: %v", ErrInvalidHex, err)
	}
	return h, nil
}

// MarshalText makes Hash32 a JSON string ("0x...") and a usable map key.
func (h Hash32) MarshalText() ([]byte, error) {
	return []byte(h.Hex()), nil
}

// UnmarshalText accepts "0x..." and the empty string (zero hash); blocks produced
// before the hash field existed decode as zero.
func (h *Hash32) UnmarshalText(text []byte) error {
	if len(strings.TrimSpace(string(text))) == 0 {
		*h = Hash32{}
		return nil
	}
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}
