// Package retry runs remote writes with capped exponential backoff.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/chenzhangda16/web3-feed/internal/feed/storage"
)

type Class int

const (
	Retryable Class = iota
	Fatal
)

type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      time.Duration

	// Classify defaults to DefaultClassify.
	Classify func(error) Class

	OnRetry func(attempt int, wait time.Duration, err error)
}

// Remote is the policy the network sinks use.
func Remote(onRetry func(attempt int, wait time.Duration, err error)) Policy {
	return Policy{
		MaxAttempts: 5,
		BaseDelay:   200 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		Jitter:      100 * time.Millisecond,
		OnRetry:     onRetry,
	}
}

// DefaultClassify treats bad data and cancellation as fatal; everything else is
// assumed transient.
func DefaultClassify(err error) Class {
	switch {
	case errors.Is(err, storage.ErrMalformedRecord),
		errors.Is(err, storage.ErrUnsupported),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return Fatal
	}
	var fe *fatalError
	if errors.As(err, &fe) {
		return Fatal
	}
	return Retryable
}

type fatalError struct{ err error }

func (e *fatalError) Error() string { return e.err.Error() }
func (e *fatalError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying under DefaultClassify.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &fatalError{err: err}
}

// Delay is the wait before attempt+1: BaseDelay·2^(attempt−1) capped at MaxDelay,
// without jitter.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	wait := p.BaseDelay
	for i := 1; i < attempt; i++ {
		wait <<= 1
		if wait >= p.MaxDelay || wait <= 0 {
			return p.MaxDelay
		}
	}
	if wait > p.MaxDelay {
		wait = p.MaxDelay
	}
	return wait
}

func Do(ctx context.Context, p Policy, fn func(context.Context) error) error {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 100 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 5 * time.Second
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	classify := p.Classify
	if classify == nil {
		classify = DefaultClassify
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if classify(err) == Fatal || attempt == p.MaxAttempts {
			break
		}

		wait := p.Delay(attempt)
		if p.Jitter > 0 {
			wait += time.Duration(rand.Int63n(int64(p.Jitter)))
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, wait, err)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	var fe *fatalError
	if errors.As(lastErr, &fe) && lastErr == error(fe) {
		return fe.err
	}
	return lastErr
}
