// Package retry is the pure failure-classification and backoff layer.
// It performs no I/O of its own beyond sleeping between attempts.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"net/http"
	"sync"
	"time"

	"polychat/internal/llm"
)

type Kind string

const (
	KindNetwork         Kind = "network"
	KindTimeout         Kind = "timeout"
	KindAuth            Kind = "auth"
	KindRateLimit       Kind = "rate_limit"
	KindInvalidResponse Kind = "invalid_response"
	KindServerError     Kind = "server_error"
	KindUnknown         Kind = "unknown"
)

// defaultRetryAfter applies to rate limits whose response carried no
// Retry-After header.
const defaultRetryAfter = 5 * time.Second

type Classification struct {
	Kind       Kind
	Retryable  bool
	RetryAfter time.Duration
}

// Classify maps a raw failure into the fixed taxonomy. Pure: it only
// inspects the error chain.
func Classify(err error) Classification {
	if err == nil {
		return Classification{Kind: KindUnknown}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Classification{Kind: KindTimeout, Retryable: true}
	}
	if errors.Is(err, context.Canceled) {
		return Classification{Kind: KindUnknown}
	}

	var pe *llm.ProtocolError
	if errors.As(err, &pe) {
		return Classification{Kind: KindInvalidResponse}
	}

	if ae, ok := llm.AsAPIError(err); ok {
		switch {
		case ae.StatusCode == http.StatusUnauthorized || ae.StatusCode == http.StatusForbidden:
			return Classification{Kind: KindAuth}
		case ae.StatusCode == http.StatusTooManyRequests:
			ra := ae.RetryAfter
			if ra <= 0 {
				ra = defaultRetryAfter
			}
			return Classification{Kind: KindRateLimit, Retryable: true, RetryAfter: ra}
		case ae.StatusCode == http.StatusRequestTimeout:
			return Classification{Kind: KindTimeout, Retryable: true}
		case ae.StatusCode >= 500:
			return Classification{Kind: KindServerError, Retryable: true}
		default:
			return Classification{Kind: KindUnknown}
		}
	}

	var ne net.Error
	if errors.As(err, &ne) {
		if ne.Timeout() {
			return Classification{Kind: KindTimeout, Retryable: true}
		}
		return Classification{Kind: KindNetwork, Retryable: true}
	}

	return Classification{Kind: KindUnknown}
}

type Backoff struct {
	Initial    time.Duration
	Multiplier float64
	Max        time.Duration
	Jitter     float64 // fraction, 0.1 = +/-10%
}

func DefaultBackoff() Backoff {
	return Backoff{
		Initial:    500 * time.Millisecond,
		Multiplier: 2,
		Max:        30 * time.Second,
		Jitter:     0.1,
	}
}

// Next computes the delay before retrying after the given zero-based
// attempt: initial * multiplier^attempt, clamped, jittered.
func (b Backoff) Next(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	initial := b.Initial
	if initial <= 0 {
		initial = 500 * time.Millisecond
	}
	mult := b.Multiplier
	if mult < 1 {
		mult = 2
	}
	max := b.Max
	if max <= 0 {
		max = 30 * time.Second
	}

	d := float64(initial)
	for i := 0; i < attempt; i++ {
		d *= mult
		if d >= float64(max) {
			d = float64(max)
			break
		}
	}
	if j := b.Jitter; j > 0 {
		d *= 1 + (rand.Float64()*2-1)*j
	}
	if d > float64(max) {
		d = float64(max)
	}
	return time.Duration(d)
}

type Policy struct {
	MaxAttempts int
	Backoff     Backoff
}

func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, Backoff: DefaultBackoff()}
}

// Do runs fn up to MaxAttempts times, sleeping the larger of the computed
// backoff and any explicit retry-after between attempts. Non-retryable
// failures and exhaustion both surface the last error.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		cl := Classify(lastErr)
		if !cl.Retryable || attempt == attempts-1 {
			return lastErr
		}
		delay := p.Backoff.Next(attempt)
		if cl.RetryAfter > delay {
			delay = cl.RetryAfter
		}
		if err := sleep(ctx, delay); err != nil {
			return lastErr
		}
	}
	return lastErr
}

// Retrier is the stateful variant, tracking attempt count and last error
// for progress reporting.
type Retrier struct {
	Policy Policy

	mu       sync.Mutex
	attempts int
	lastErr  error
}

func NewRetrier(p Policy) *Retrier {
	return &Retrier{Policy: p}
}

func (r *Retrier) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	err := Do(ctx, r.Policy, func(ctx context.Context) error {
		e := fn(ctx)
		r.mu.Lock()
		r.attempts++
		r.lastErr = e
		r.mu.Unlock()
		return e
	})
	return err
}

func (r *Retrier) Attempts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempts
}

func (r *Retrier) LastError() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

func (r *Retrier) Reset() {
	r.mu.Lock()
	r.attempts = 0
	r.lastErr = nil
	r.mu.Unlock()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
