package kafka

import "github.com/chenzhangda16/web3-feed/pkg/hash"

// Deduper remembers tx hashes until their expiry, measured in block time.
// Entries are evicted in insertion order.
type Deduper struct {
	m    map[hash.Hash32]int64
	q    []dedupItem
	head int
}

type dedupItem struct {
	key    hash.Hash32
	expire int64
}

func NewDeduper(capHint int) *Deduper {
	if capHint < 0 {
		capHint = 0
	}
	return &Deduper{
		m: make(map[hash.Hash32]int64, capHint),
		q: make([]dedupItem, 0, capHint),
	}
}

// SeenOrAdd reports whether key is live at now; if not it is recorded until expire.
func (d *Deduper) SeenOrAdd(key hash.Hash32, expire, now int64) bool {
	if exp, ok := d.m[key]; ok && exp >= now {
		return true
	}
	d.m[key] = expire
	d.q = append(d.q, dedupItem{key: key, expire: expire})
	return false
}

// Evict drops entries that expired before now.
func (d *Deduper) Evict(now int64) {
	for d.head < len(d.q) {
		it := d.q[d.head]
		if it.expire >= now {
			break
		}
		// A re-added key has a newer expiry in m; leave it.
		if exp, ok := d.m[it.key]; ok && exp == it.expire {
			delete(d.m, it.key)
		}
		d.head++
	}
	if d.head > 4096 && d.head*2 > len(d.q) {
		d.q = append(make([]dedupItem, 0, len(d.q)-d.head), d.q[d.head:]...)
		d.head = 0
	}
}
