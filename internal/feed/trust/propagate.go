package trust

import (
	"fmt"
	"math"

	"github.com/chenzhangda16/web3-feed/internal/feed/matrix"
)

const (
	DefaultIterations = 30
	DefaultWeight     = 0.2
)

type PropagateOption func(*Propagator)

// WithWeight sets the share of pre-trust injected every round.
func WithWeight(w float64) PropagateOption {
	return func(p *Propagator) { p.weight = w }
}

func WithIterations(n int) PropagateOption {
	return func(p *Propagator) { p.iterations = n }
}

// WithTolerance stops early once the L1 change of a round is <= eps.
// Zero disables the check.
func WithTolerance(eps float64) PropagateOption {
	return func(p *Propagator) { p.tolerance = eps }
}

// Propagator runs g ← (1−w)·Mᵀg + w·p for a fixed number of rounds,
// starting from g = p.
type Propagator struct {
	mt         *matrix.Dense
	pre        matrix.Vector
	weight     float64
	iterations int
	tolerance  float64

	rounds int
}

// NewPropagator validates its inputs once; Run cannot fail afterwards.
func NewPropagator(m *matrix.Dense, preTrust matrix.Vector, opts ...PropagateOption) (*Propagator, error) {
	p := &Propagator{
		weight:     DefaultWeight,
		iterations: DefaultIterations,
	}
	for _, o := range opts {
		o(p)
	}

	if m == nil {
		return nil, fmt.Errorf("%w: nil matrix", ErrDimensionMismatch)
	}
	r, c := m.Dims()
	if r != c || r != len(preTrust) {
		return nil, fmt.Errorf("%w: matrix %dx%d, pre-trust %d", ErrDimensionMismatch, r, c, len(preTrust))
	}
	if math.IsNaN(p.weight) || p.weight < 0 || p.weight > 1 {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidWeight, p.weight)
	}
	if p.iterations < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidIterations, p.iterations)
	}
	if math.IsNaN(p.tolerance) || p.tolerance < 0 {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidTolerance, p.tolerance)
	}
	for i := 0; i < r; i++ {
		for j, v := range m.RowView(i) {
			if v < 0 || math.IsNaN(v) {
				return nil, fmt.Errorf("%w: matrix[%d][%d]=%v", ErrNegativeEntry, i, j, v)
			}
		}
	}
	for i, v := range preTrust {
		if v < 0 || math.IsNaN(v) {
			return nil, fmt.Errorf("%w: pre-trust[%d]=%v", ErrNegativeEntry, i, v)
		}
	}

	p.mt = m.T()
	p.pre = preTrust.Clone()
	return p, nil
}

// Run returns the global trust vector. It is not normalised.
func (p *Propagator) Run() matrix.Vector {
	g := p.pre.Clone()
	anchor := p.pre.Scale(p.weight)
	p.rounds = 0

	for k := 0; k < p.iterations; k++ {
		next := p.step(g, anchor)
		p.rounds++
		if p.tolerance > 0 {
			d, _ := next.Distance1(g)
			g = next
			if d <= p.tolerance {
				break
			}
			continue
		}
		g = next
	}
	return g
}

// Rounds reports how many iterations the last Run executed.
func (p *Propagator) Rounds() int { return p.rounds }

func (p *Propagator) step(g, anchor matrix.Vector) matrix.Vector {
	propagated, err := p.mt.MulVec(g)
	if err != nil {
		panic(fmt.Sprintf("trust: validated dimensions drifted: %v", err))
	}
	next, err := propagated.Scale(1 - p.weight).AddVec(anchor)
	if err != nil {
		panic(fmt.Sprintf("trust: validated dimensions drifted: %v", err))
	}
	return next
}

// Propagate is NewPropagator(m, preTrust, WithWeight(weight), WithIterations(iterations)).Run().
func Propagate(m *matrix.Dense, preTrust matrix.Vector, weight float64, iterations int) (matrix.Vector, error) {
	p, err := NewPropagator(m, preTrust, WithWeight(weight), WithIterations(iterations))
	if err != nil {
		return nil, err
	}
	return p.Run(), nil
}

// PreTrust returns the length-n vector concentrated on index seed.
func PreTrust(n, seed int) (matrix.Vector, error) {
	if seed < 0 || seed >= n {
		return nil, fmt.Errorf("%w: seed index %d of %d", ErrDimensionMismatch, seed, n)
	}
	return matrix.Unit(n, seed), nil
}
