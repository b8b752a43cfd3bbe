// Package neighbors finds the vicinity of a seed: every address reachable over
// from→to transfer edges within a bounded number of hops.
package neighbors

import "github.com/chenzhangda16/web3-feed/internal/feed/model"

// Limit is the default hop bound.
const Limit = 2

type Option func(*Explorer)

// WithLimit overrides the hop bound. Negative values are clamped to 0.
func WithLimit(n int) Option {
	return func(e *Explorer) {
		if n < 0 {
			n = 0
		}
		e.limit = n
	}
}

// Explorer holds the out-edge index of a record set so several explorations can
// share it.
type Explorer struct {
	limit int
	out   map[string][]string
}

// NewExplorer indexes records by From. Neighbours keep record order; a repeated
// edge is indexed once.
func NewExplorer(records []model.TxRecord, opts ...Option) *Explorer {
	e := &Explorer{limit: Limit, out: make(map[string][]string)}
	for _, o := range opts {
		o(e)
	}
	seen := make(map[[2]string]struct{}, len(records))
	for _, r := range records {
		k := [2]string{r.From, r.To}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		e.out[r.From] = append(e.out[r.From], r.To)
	}
	return e
}

func (e *Explorer) Limit() int { return e.limit }

type item struct {
	addr  string
	level int
}

// Explore returns the addresses reachable from seeds, where seeds sit at level
// depth and each hop adds one level. Nothing beyond level Limit is expanded;
// depth > Limit yields an empty result. Order is first discovery.
func (e *Explorer) Explore(seeds []string, depth int) []string {
	if depth > e.limit {
		return []string{}
	}

	visited := make(map[string]struct{})
	out := make([]string, 0, len(seeds))
	queue := make([]item, 0, len(seeds))

	for _, s := range seeds {
		if _, ok := visited[s]; ok {
			continue
		}
		visited[s] = struct{}{}
		out = append(out, s)
		queue = append(queue, item{addr: s, level: depth})
	}

	for head := 0; head < len(queue); head++ {
		it := queue[head]
		if it.level >= e.limit {
			continue
		}
		for _, to := range e.out[it.addr] {
			if _, ok := visited[to]; ok {
				continue
			}
			visited[to] = struct{}{}
			out = append(out, to)
			queue = append(queue, item{addr: to, level: it.level + 1})
		}
	}
	return out
}

// Explore is a one-shot NewExplorer(records, opts...).Explore(seeds, depth).
func Explore(seeds []string, records []model.TxRecord, depth int, opts ...Option) []string {
	return NewExplorer(records, opts...).Explore(seeds, depth)
}
