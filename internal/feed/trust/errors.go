package trust

import "errors"

var (
	ErrEmptyVicinity     = errors.New("trust: empty vicinity")
	ErrDimensionMismatch = errors.New("trust: dimension mismatch")
	ErrInvalidWeight     = errors.New("trust: pre-trust weight must be in [0,1]")
	ErrInvalidIterations = errors.New("trust: iterations must be >= 1")
	ErrInvalidTolerance  = errors.New("trust: tolerance must be >= 0")
	ErrNegativeEntry     = errors.New("trust: negative entry")
)
