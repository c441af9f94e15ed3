package acquisition

import (
	"context"
	"time"

	"github.com/wiktor-jurek/stewthius/internal/retry"
)

// breaker pauses acquisition after a run of consecutive item failures
type breaker struct {
	threshold   int
	cooldown    time.Duration
	consecutive int
	sleep       retry.Sleeper
}

// wait sleeps for the cooldown when the failure threshold has been reached. It reports
// whether a cooldown happened.
func (b *breaker) wait(ctx context.Context) (bool, error) {
	if b.threshold <= 0 || b.consecutive < b.threshold {
		return false, nil
	}
	if err := b.sleep(ctx, b.cooldown); err != nil {
		return false, err
	}
	b.consecutive = 0
	return true, nil
}

func (b *breaker) success() { b.consecutive = 0 }

func (b *breaker) failure() { b.consecutive++ }
