package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/wiktor-jurek/stewthius/internal/errors"
)

type recordingSleeper struct {
	waits []time.Duration
}

func (r *recordingSleeper) sleep(_ context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return nil
}

type hinted struct {
	wait time.Duration
}

func (h *hinted) Error() string             { return "rate limited" }
func (h *hinted) RetryAfter() time.Duration { return h.wait }

func TestDo_TransientThenSuccess(t *testing.T) {
	sleeper := &recordingSleeper{}
	p := Transport(4)
	p.Sleep = sleeper.sleep

	statuses := []int{429, 429, 200}
	got, err := Do(context.Background(), p, func(_ context.Context, attempt int) (int, error) {
		status := statuses[attempt-1]
		if status != 200 {
			return 0, apperrors.Transient(nil, "status 429")
		}
		return status, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 200, got)
	require.Len(t, sleeper.waits, 2)
	assert.LessOrEqual(t, sleeper.waits[0], sleeper.waits[1])
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, sleeper.waits)
}

func TestDo_StopsOnNonRetryable(t *testing.T) {
	sleeper := &recordingSleeper{}
	p := Transport(5)
	p.Sleep = sleeper.sleep

	calls := 0
	permanent := apperrors.New(apperrors.CodeExternal, "status 400")
	_, err := Do(context.Background(), p, func(context.Context, int) (string, error) {
		calls++
		return "", permanent
	})

	assert.Same(t, permanent, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, sleeper.waits)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	sleeper := &recordingSleeper{}
	p := Transport(3)
	p.Sleep = sleeper.sleep

	calls := 0
	_, err := Do(context.Background(), p, func(context.Context, int) (struct{}, error) {
		calls++
		return struct{}{}, apperrors.Transient(nil, "status 503")
	})

	require.Error(t, err)
	assert.True(t, apperrors.IsTransient(err))
	assert.Equal(t, 3, calls)
	assert.Len(t, sleeper.waits, 2)
}

func TestDo_RetryAfterHintIsCapped(t *testing.T) {
	sleeper := &recordingSleeper{}
	p := Transport(3)
	p.Sleep = sleeper.sleep
	p.Classify = nil

	hints := []time.Duration{5 * time.Second, 10 * time.Minute}
	_, err := Do(context.Background(), p, func(_ context.Context, attempt int) (int, error) {
		if attempt <= len(hints) {
			return 0, &hinted{wait: hints[attempt-1]}
		}
		return 1, nil
	})

	require.NoError(t, err)
	assert.Equal(t, []time.Duration{5 * time.Second, TransportMaxDelay}, sleeper.waits)
}

func TestDo_ValidationRetriesImmediately(t *testing.T) {
	sleeper := &recordingSleeper{}
	p := Validation(3)
	p.Sleep = sleeper.sleep

	var retried []int
	p.OnRetry = func(attempt int, wait time.Duration, _ error) {
		retried = append(retried, attempt)
		assert.Zero(t, wait)
	}

	got, err := Do(context.Background(), p, func(_ context.Context, attempt int) (int, error) {
		if attempt == 1 {
			return 0, apperrors.SchemaValidation(nil, "rating_overall=25")
		}
		return attempt, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, got)
	assert.Equal(t, []int{1}, retried)
	assert.Empty(t, sleeper.waits)
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{MaxAttempts: 5, Backoff: Exponential(time.Hour, time.Hour)}

	calls := 0
	_, err := Do(ctx, p, func(context.Context, int) (int, error) {
		calls++
		cancel()
		return 0, errors.New("boom")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestExponential(t *testing.T) {
	b := Exponential(3*time.Second, 120*time.Second)
	assert.Equal(t, 3*time.Second, b(1))
	assert.Equal(t, 6*time.Second, b(2))
	assert.Equal(t, 12*time.Second, b(3))
	assert.Equal(t, 96*time.Second, b(6))
	assert.Equal(t, 120*time.Second, b(7))
	assert.Equal(t, 120*time.Second, b(40))
	assert.Zero(t, Exponential(0, time.Second)(3))
}

func TestWithJitter(t *testing.T) {
	b := WithJitter(Exponential(time.Second, time.Minute), 0.3, func() float64 { return 0.5 })
	assert.Equal(t, 1150*time.Millisecond, b(1))
	assert.Equal(t, 2300*time.Millisecond, b(2))

	noJitter := WithJitter(Exponential(time.Second, time.Minute), 0.3, func() float64 { return 0 })
	assert.Equal(t, time.Second, noJitter(1))
}

func TestSleepContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, SleepContext(ctx, time.Hour), context.Canceled)
	assert.NoError(t, SleepContext(context.Background(), time.Millisecond))
}
