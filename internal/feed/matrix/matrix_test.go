package matrix

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDenseShape(t *testing.T) {
	_, err := NewDense(0, 3)
	assert.ErrorIs(t, err, ErrBadShape)

	_, err = FromRows([][]float64{{1, 2}, {3}})
	assert.ErrorIs(t, err, ErrBadShape)

	_, err = FromRows(nil)
	assert.ErrorIs(t, err, ErrBadShape)

	d, err := NewDense(2, 3)
	require.NoError(t, err)
	r, c := d.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 3, c)
}

func TestTransposeAndMulVec(t *testing.T) {
	m, err := FromRows([][]float64{
		{0, 0.5, 0.5},
		{1, 0, 0},
		{0.5, 0.5, 0},
	})
	require.NoError(t, err)

	mt := m.T()
	assert.Equal(t, [][]float64{
		{0, 1, 0.5},
		{0.5, 0, 0.5},
		{0.5, 0, 0},
	}, mt.Rows2D())

	got, err := mt.MulVec(Vector{1, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, Vector{0, 0.5, 0.5}, got)

	_, err = m.MulVec(Vector{1, 0})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestTransposeDoesNotAlias(t *testing.T) {
	m, err := FromRows([][]float64{{1, 2}, {3, 4}})
	require.NoError(t, err)
	mt := m.T()
	m.Set(0, 1, 9)
	assert.Equal(t, 2.0, mt.At(1, 0))
}

func TestRowViewWritesThrough(t *testing.T) {
	m, err := NewDense(2, 2)
	require.NoError(t, err)
	m.RowView(1)[0] = 7
	assert.Equal(t, 7.0, m.At(1, 0))

	cp := m.Row(1)
	cp[0] = 1
	assert.Equal(t, 7.0, m.At(1, 0))
}

func TestVectorOps(t *testing.T) {
	v := Vector{0, 0.5, 0.5}

	s := v.Scale(0.8)
	assert.InDeltaSlice(t, []float64{0, 0.4, 0.4}, s, 1e-15)
	assert.Equal(t, Vector{0, 0.5, 0.5}, v, "Scale must not mutate the receiver")

	sum, err := s.AddVec(Unit(3, 0).Scale(0.2))
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.2, 0.4, 0.4}, sum, 1e-15)
	assert.InDelta(t, 1.0, sum.Sum(), 1e-15)

	_, err = v.AddVec(Vector{1})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	d, err := Vector{1, 2}.Distance1(Vector{0, 4})
	require.NoError(t, err)
	assert.Equal(t, 3.0, d)
	assert.Equal(t, 0.0, Vector{}.Sum())
}
