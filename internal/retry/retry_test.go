package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(attempts int, classify Classifier) Policy {
	return Policy{
		MaxAttempts: attempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
		Classify:    classify,
	}
}

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := fastPolicy(3, nil).Do(context.Background(), "op", func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_ClientErrorNotRetried(t *testing.T) {
	boom := errors.New("bad request")
	calls := 0
	classify := func(error) Verdict { return Verdict{Class: Client} }

	err := fastPolicy(5, classify).Do(context.Background(), "op", func() error {
		calls++
		return boom
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls, "client errors must be attempted exactly once")
	assert.ErrorIs(t, err, boom)
}

func TestDo_TransientRetriedUntilSuccess(t *testing.T) {
	calls := 0
	classify := func(error) Verdict { return Verdict{Class: Transient} }

	err := fastPolicy(5, classify).Do(context.Background(), "op", func() error {
		calls++
		if calls < 3 {
			return errors.New("connection reset")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	boom := errors.New("still down")
	calls := 0
	classify := func(error) Verdict { return Verdict{Class: Transient} }

	err := fastPolicy(3, classify).Do(context.Background(), "op", func() error {
		calls++
		return boom
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "3 attempts")
}

func TestDo_NilClassifierRetriesUnknown(t *testing.T) {
	calls := 0
	err := fastPolicy(2, nil).Do(context.Background(), "op", func() error {
		calls++
		return errors.New("mystery")
	})
	require.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestDo_CancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    time.Second,
		Classify:    func(error) Verdict { return Verdict{Class: Transient} },
	}

	calls := 0
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	start := time.Now()
	err := p.Do(ctx, "op", func() error {
		calls++
		return errors.New("down")
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls, "no further calls after cancellation")
	assert.Less(t, time.Since(start), 500*time.Millisecond, "wait must be interruptible")
}

func TestDo_CancelledBeforeRetry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := fastPolicy(3, nil).Do(ctx, "op", func() error {
		calls++
		cancel()
		return errors.New("interrupted")
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestRateLimitWait_HonorsResetTimestamp(t *testing.T) {
	p := Policy{
		BaseDelay:   time.Second,
		MaxDelay:    60 * time.Second,
		ResetBuffer: 0,
	}
	now := time.Now()

	// Reset five seconds out: wait at least that long, never past MaxDelay.
	wait := p.rateLimitWait(now.Add(5*time.Second), now)
	assert.GreaterOrEqual(t, wait, 5*time.Second)
	assert.LessOrEqual(t, wait, 60*time.Second)
}

func TestRateLimitWait_BufferAndFloor(t *testing.T) {
	p := Policy{
		BaseDelay:   2 * time.Second,
		MaxDelay:    60 * time.Second,
		ResetBuffer: 5 * time.Second,
	}
	now := time.Now()

	wait := p.rateLimitWait(now.Add(10*time.Second), now)
	assert.GreaterOrEqual(t, wait, 15*time.Second)

	// No reset timestamp: fall back to the base delay.
	wait = p.rateLimitWait(time.Time{}, now)
	assert.GreaterOrEqual(t, wait, 2*time.Second)
	assert.LessOrEqual(t, wait, 3*time.Second)

	// Reset already in the past: still wait the base delay, not zero.
	wait = p.rateLimitWait(now.Add(-time.Minute), now)
	assert.GreaterOrEqual(t, wait, 2*time.Second)
}

func TestRateLimitWait_Ceiling(t *testing.T) {
	p := Policy{
		BaseDelay:   time.Second,
		WaitCeiling: 600 * time.Second,
	}
	now := time.Now()

	wait := p.rateLimitWait(now.Add(2*time.Hour), now)
	assert.Equal(t, 600*time.Second, wait)
}

func TestDo_RateLimitedRetries(t *testing.T) {
	calls := 0
	p := Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    2 * time.Millisecond,
		Classify: func(error) Verdict {
			return Verdict{Class: RateLimited, ResetAt: time.Now().Add(time.Millisecond)}
		},
	}
	err := p.Do(context.Background(), "op", func() error {
		calls++
		if calls == 2 {
			return nil
		}
		return errors.New("429")
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}
