package retry

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/jpillora/backoff"
)

// Class buckets a failed remote call by how the loop should react.
type Class int

const (
	Unknown Class = iota
	RateLimited
	Transient
	Client
)

func (c Class) String() string {
	switch c {
	case RateLimited:
		return "rate_limited"
	case Transient:
		return "transient"
	case Client:
		return "client"
	default:
		return "unknown"
	}
}

// Verdict is the outcome of classifying one failure. ResetAt is only
// meaningful for RateLimited and may be zero when the platform sent no
// reset timestamp.
type Verdict struct {
	Class   Class
	ResetAt time.Time
}

// Classifier maps an error from the wrapped call to a Verdict. It must
// handle any error the call can produce, including wrapped ones.
type Classifier func(error) Verdict

// Policy bounds the retry loop for a single call site. Client errors are
// never retried. RateLimited waits honor the platform reset timestamp plus
// ResetBuffer, clamped to MaxDelay and WaitCeiling. Everything else backs
// off exponentially between BaseDelay and MaxDelay.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	ResetBuffer time.Duration
	WaitCeiling time.Duration
	Classify    Classifier
}

// Do runs fn until it succeeds, fails a non-retryable way, or exhausts
// p.MaxAttempts. Waits are interruptible: a cancelled ctx stops the loop
// without another call to fn.
func (p Policy) Do(ctx context.Context, op string, fn func() error) error {
	classify := p.Classify
	if classify == nil {
		classify = func(error) Verdict { return Verdict{} }
	}

	ladder := &backoff.Backoff{
		Min:    p.BaseDelay,
		Max:    p.MaxDelay,
		Factor: 2,
		Jitter: true,
	}

	var totalWait time.Duration
	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				log.Printf("[RETRY] %s succeeded on attempt %d/%d after %s of waiting", op, attempt, p.MaxAttempts, totalWait)
			}
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			log.Printf("[RETRY] %s aborted: %v", op, ctx.Err())
			return fmt.Errorf("%s: %w", op, ctx.Err())
		}

		v := classify(err)
		if v.Class == Client {
			log.Printf("[RETRY] %s failed (%s), not retrying: %v", op, v.Class, err)
			return fmt.Errorf("%s: %w", op, err)
		}
		if attempt == p.MaxAttempts {
			break
		}

		var wait time.Duration
		if v.Class == RateLimited {
			wait = p.rateLimitWait(v.ResetAt, time.Now())
		} else {
			wait = ladder.Duration()
		}
		log.Printf("[RETRY] %s attempt %d/%d failed (%s): %v, retrying in %s", op, attempt, p.MaxAttempts, v.Class, err, wait.Round(time.Millisecond))

		totalWait += wait
		select {
		case <-ctx.Done():
			log.Printf("[RETRY] %s aborted during wait: %v", op, ctx.Err())
			return fmt.Errorf("%s: %w", op, ctx.Err())
		case <-time.After(wait):
		}
	}

	log.Printf("[RETRY] %s failed after %d attempts (waited %s total): %v", op, p.MaxAttempts, totalWait, lastErr)
	return fmt.Errorf("%s: %d attempts: %w", op, p.MaxAttempts, lastErr)
}

// rateLimitWait honors the reset timestamp the platform sent, padded by
// ResetBuffer so the next call lands after the window actually flips, and
// never waits less than BaseDelay nor longer than MaxDelay / WaitCeiling.
func (p Policy) rateLimitWait(resetAt, now time.Time) time.Duration {
	wait := p.BaseDelay
	if !resetAt.IsZero() {
		if until := resetAt.Sub(now) + p.ResetBuffer; until > wait {
			wait = until
		}
	}
	wait += time.Duration(rand.Int63n(int64(time.Second)))
	if p.MaxDelay > 0 && wait > p.MaxDelay {
		wait = p.MaxDelay
	}
	if p.WaitCeiling > 0 && wait > p.WaitCeiling {
		wait = p.WaitCeiling
	}
	return wait
}
