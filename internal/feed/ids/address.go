package ids

import (
	"encoding/hex"
	"errors"
	"strings"
)

var ErrBadAddress = errors.New("ids: bad address")

// Addr20 is the canonical EOA address key (20 bytes).
type Addr20 [20]byte

// ParseAddr20 parses a "0x" prefixed or plain 40-hex string into 20 bytes.
func ParseAddr20(s string) (Addr20, error) {
	var out Addr20
	s = strings.TrimSpace(s)
	if len(s) == 42 && (s[0:2] == "0x" || s[0:2] == "0X") {
		s = s[2:]
	}
	if len(s) != 40 {
		return out, ErrBadAddress
	}
	if _, err := hex.Decode(out[:], []byte(s)); err != nil {
		return out, ErrBadAddress
	}
	return out, nil
}

func (a Addr20) Hex() string { return "0x" + hex.EncodeToString(a[:]) }

// Canonical folds hex addresses to lower-case 0x form so checksummed and plain
// spellings of one account land on one node. Anything that is not a 20-byte hex
// address (labels, test fixtures) is only trimmed.
func Canonical(s string) string {
	if a, err := ParseAddr20(s); err == nil {
		return a.Hex()
	}
	return strings.TrimSpace(s)
}
