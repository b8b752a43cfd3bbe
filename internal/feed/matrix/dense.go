// Package matrix holds the dense matrix and vector primitives the trust
// propagation runs on. Dense wraps a gonum *mat.Dense in row-major order.
package matrix

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

type Dense struct {
	m *mat.Dense
}

// NewDense returns an r×c zero matrix.
func NewDense(r, c int) (*Dense, error) {
	if r <= 0 || c <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrBadShape, r, c)
	}
	return &Dense{m: mat.NewDense(r, c, nil)}, nil
}

// FromRows copies a rectangular [][]float64 into a Dense.
func FromRows(rows [][]float64) (*Dense, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrBadShape)
	}
	r, c := len(rows), len(rows[0])
	data := make([]float64, 0, r*c)
	for i, row := range rows {
		if len(row) != c {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", ErrBadShape, i, len(row), c)
		}
		data = append(data, row...)
	}
	return &Dense{m: mat.NewDense(r, c, data)}, nil
}

func (d *Dense) Dims() (r, c int) { return d.m.Dims() }

func (d *Dense) Rows() int {
	r, _ := d.m.Dims()
	return r
}

func (d *Dense) Cols() int {
	_, c := d.m.Dims()
	return c
}

// At and Set panic on out-of-range indices, like gonum.
func (d *Dense) At(i, j int) float64 { return d.m.At(i, j) }

func (d *Dense) Set(i, j int, v float64) { d.m.Set(i, j, v) }

// RowView returns row i backed by the matrix storage. Writes through it mutate the
// matrix; distinct rows never alias, so rows may be rewritten concurrently.
func (d *Dense) RowView(i int) []float64 { return d.m.RawRowView(i) }

// Row returns a copy of row i.
func (d *Dense) Row(i int) []float64 { return append([]float64(nil), d.m.RawRowView(i)...) }

// Rows2D copies the matrix out as [][]float64.
func (d *Dense) Rows2D() [][]float64 {
	r := d.Rows()
	out := make([][]float64, r)
	for i := 0; i < r; i++ {
		out[i] = d.Row(i)
	}
	return out
}

// T returns a materialised transpose.
func (d *Dense) T() *Dense {
	return &Dense{m: mat.DenseCopyOf(d.m.T())}
}

// MulVec returns d·v.
func (d *Dense) MulVec(v Vector) (Vector, error) {
	r, c := d.m.Dims()
	if len(v) != c {
		return nil, fmt.Errorf("%w: %dx%d · %d", ErrDimensionMismatch, r, c, len(v))
	}
	var out mat.VecDense
	out.MulVec(d.m, mat.NewVecDense(c, v.Clone()))
	res := make(Vector, r)
	for i := 0; i < r; i++ {
		res[i] = out.AtVec(i)
	}
	return res, nil
}

func (d *Dense) String() string {
	return fmt.Sprintf("%v", mat.Formatted(d.m, mat.Squeeze()))
}
