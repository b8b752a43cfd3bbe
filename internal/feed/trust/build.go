// Package trust builds the local trust matrix of a vicinity and propagates
// pre-trust through it by power iteration.
package trust

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	"github.com/chenzhangda16/web3-feed/internal/feed/ids"
	"github.com/chenzhangda16/web3-feed/internal/feed/matrix"
	"github.com/chenzhangda16/web3-feed/internal/feed/model"
)

type buildConfig struct {
	exclude    string
	hasExclude bool
	workers    int
}

type BuildOption func(*buildConfig)

// WithExcludeTarget leaves the column of addr empty, so no peer sends trust to it
// through the matrix. Used to keep the pre-trusted seed from being reinforced.
func WithExcludeTarget(addr string) BuildOption {
	return func(c *buildConfig) {
		c.exclude = addr
		c.hasExclude = true
	}
}

// WithWorkers normalises rows on n goroutines. n <= 1 runs inline.
func WithWorkers(n int) BuildOption {
	return func(c *buildConfig) { c.workers = n }
}

// BuildLocalTrust returns the N×N row-stochastic matrix over vicinity. Cell (i,j)
// is the summed value sent from vicinity[i] to vicinity[j]; edges leaving the
// vicinity are dropped. Rows are then normalised by normalizeRow.
func BuildLocalTrust(vicinity []string, records []model.TxRecord, opts ...BuildOption) (*matrix.Dense, error) {
	cfg := buildConfig{workers: 1}
	for _, o := range opts {
		o(&cfg)
	}
	n := len(vicinity)
	if n == 0 {
		return nil, ErrEmptyVicinity
	}

	idx := ids.IndexOf(vicinity)
	if idx.Len() != n {
		return nil, fmt.Errorf("%w: vicinity has %d duplicates", ErrDimensionMismatch, n-idx.Len())
	}
	m, err := matrix.NewDense(n, n)
	if err != nil {
		return nil, err
	}

	excluded := -1
	if cfg.hasExclude {
		if i, ok := idx.Lookup(cfg.exclude); ok {
			excluded = i
		}
	}

	for _, r := range records {
		i, ok := idx.Lookup(r.From)
		if !ok {
			continue
		}
		j, ok := idx.Lookup(r.To)
		if !ok || j == excluded {
			continue
		}
		m.Set(i, j, m.At(i, j)+float64(r.Value))
	}

	if err := normalizeRows(m, cfg.workers); err != nil {
		return nil, err
	}
	return m, nil
}

func normalizeRows(m *matrix.Dense, workers int) error {
	n := m.Rows()
	if workers <= 1 || n < 2 {
		for i := 0; i < n; i++ {
			normalizeRow(m.RowView(i), i)
		}
		return nil
	}
	if workers > n {
		workers = n
	}

	g, _ := errgroup.WithContext(context.Background())
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		i := i
		row := m.RowView(i)
		g.Go(func() error {
			normalizeRow(row, i)
			return nil
		})
	}
	return g.Wait()
}

// normalizeRow rewrites row self in place:
//  1. a row with no outgoing weight becomes all ones;
//  2. the diagonal is zeroed;
//  3. the row is divided by its remaining sum. A row whose only weight was the
//     self-loop is spread uniformly over the other cells instead. A 1×1 row ends
//     as zero.
func normalizeRow(row []float64, self int) {
	if floats.Sum(row) == 0 {
		for j := range row {
			row[j] = 1
		}
	}
	row[self] = 0

	sum := floats.Sum(row)
	if sum == 0 {
		if len(row) == 1 {
			return
		}
		u := 1 / float64(len(row)-1)
		for j := range row {
			if j != self {
				row[j] = u
			}
		}
		return
	}
	floats.Scale(1/sum, row)
}
