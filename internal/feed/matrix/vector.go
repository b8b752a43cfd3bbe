package matrix

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Vector is a dense float64 vector. Operations return new vectors and leave the
// receiver untouched, so a pre-trust vector can be reused across iterations.
type Vector []float64

// Unit returns a length-n vector with 1 at position i.
func Unit(n, i int) Vector {
	v := make(Vector, n)
	v[i] = 1
	return v
}

func (v Vector) Len() int { return len(v) }

func (v Vector) Clone() Vector { return append(Vector(nil), v...) }

// Scale returns c·v.
func (v Vector) Scale(c float64) Vector {
	out := v.Clone()
	floats.Scale(c, out)
	return out
}

// AddVec returns v + o element-wise.
func (v Vector) AddVec(o Vector) (Vector, error) {
	if len(v) != len(o) {
		return nil, fmt.Errorf("%w: add %d + %d", ErrDimensionMismatch, len(v), len(o))
	}
	out := v.Clone()
	floats.Add(out, o)
	return out, nil
}

func (v Vector) Sum() float64 {
	if len(v) == 0 {
		return 0
	}
	return floats.Sum(v)
}

// Distance1 is the L1 distance between v and o.
func (v Vector) Distance1(o Vector) (float64, error) {
	if len(v) != len(o) {
		return 0, fmt.Errorf("%w: distance %d vs %d", ErrDimensionMismatch, len(v), len(o))
	}
	if len(v) == 0 {
		return 0, nil
	}
	return floats.Distance(v, o, 1), nil
}
