package llm

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned while the breaker is rejecting upstream calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerConfig tunes the upstream call breaker.
type BreakerConfig struct {
	// MaxFailures is the consecutive-failure count that trips the circuit.
	MaxFailures uint32
	// Timeout is how long the circuit stays open before probing upstream.
	Timeout time.Duration
	// HalfOpenMaxSuccesses is how many probe calls must succeed before the
	// circuit closes again.
	HalfOpenMaxSuccesses uint32
}

// Breaker guards chat completion calls. After MaxFailures consecutive
// failures it rejects calls with ErrCircuitOpen until Timeout elapses, then
// admits HalfOpenMaxSuccesses probe calls before closing.
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// NewBreaker returns a breaker; zero config fields fall back to 3 failures,
// 30 seconds open, 2 probe successes.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 3
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.HalfOpenMaxSuccesses == 0 {
		cfg.HalfOpenMaxSuccesses = 2
	}
	return &Breaker{cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "llm-chat",
		MaxRequests: cfg.HalfOpenMaxSuccesses,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
	})}
}

// Call runs one chat completion through the breaker. A canceled context
// fails fast without charging the circuit.
func (b *Breaker) Call(ctx context.Context, fn func() (*Response, error)) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out, err := b.cb.Execute(func() (interface{}, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return fn()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, ErrCircuitOpen
		}
		return nil, err
	}
	return out.(*Response), nil
}

// State reports "closed", "open" or "half-open".
func (b *Breaker) State() string {
	switch b.cb.State() {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateOpen:
		return "open"
	case gobreaker.StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Counts exposes the breaker's rolling counters for health reporting.
func (b *Breaker) Counts() gobreaker.Counts {
	return b.cb.Counts()
}
