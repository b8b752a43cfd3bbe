package ids

import "fmt"

// Index assigns dense positions 0..N-1 to addresses in first-seen order. It is the
// address -> matrix row mapping of a run and must not change once the trust matrix
// has been built from it.
//
// Not safe for concurrent mutation; the trust computation is single-threaded.
type Index struct {
	pos map[string]int
	rev []string // index = position
}

func NewIndex(capHint int) *Index {
	if capHint < 0 {
		capHint = 0
	}
	return &Index{
		pos: make(map[string]int, capHint),
		rev: make([]string, 0, capHint),
	}
}

// IndexOf builds the index of an ordered, duplicate-free address list.
func IndexOf(addrs []string) *Index {
	x := NewIndex(len(addrs))
	for _, a := range addrs {
		x.Add(a)
	}
	return x
}

// Add returns the position of addr, assigning the next one on first sight.
func (x *Index) Add(addr string) int {
	if i, ok := x.pos[addr]; ok {
		return i
	}
	i := len(x.rev)
	x.pos[addr] = i
	x.rev = append(x.rev, addr)
	return i
}

func (x *Index) Lookup(addr string) (int, bool) {
	i, ok := x.pos[addr]
	return i, ok
}

// MustLookup is for addresses the caller knows are indexed; a miss means the index
// and the vicinity it was built from have diverged.
func (x *Index) MustLookup(addr string) int {
	i, ok := x.pos[addr]
	if !ok {
		panic(fmt.Sprintf("ids: address %q not in index", addr))
	}
	return i
}

func (x *Index) Len() int { return len(x.rev) }
