package rng

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeterministicStreamsRepeat(t *testing.T) {
	a := New(Deterministic, 7)
	b := New(Deterministic, 7)

	for i := 0; i < 5; i++ {
		assert.Equal(t, a.R(Amount).Int63(), b.R(Amount).Int63())
	}
	assert.Same(t, a.R(Amount), a.R(Amount))
}

func TestStreamsAreIndependent(t *testing.T) {
	a := New(Deterministic, 7)
	b := New(Deterministic, 7)

	// drawing from another stream first must not shift FromPick
	_ = a.R(ToPick).Int63()
	assert.Equal(t, a.R(FromPick).Int63(), b.R(FromPick).Int63())
	assert.NotEqual(t, deriveSeed(7, FromPick), deriveSeed(7, ToPick))
}
