package matrix

import "errors"

var (
	// ErrBadShape is returned for non-positive dimensions or ragged row input.
	ErrBadShape = errors.New("matrix: invalid shape")

	// ErrDimensionMismatch is returned when operand lengths do not line up,
	// e.g. MulVec with len(v) != Cols().
	ErrDimensionMismatch = errors.New("matrix: dimension mismatch")
)
