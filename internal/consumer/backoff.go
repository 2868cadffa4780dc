package consumer

import (
	"math"
	"math/rand"
	"time"
)

// RetryPolicy bounds the in-process retry loop around a single message.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      float64
}

// Delay returns the pause before the given retry attempt (attempt 1 is the
// first retry). Delays grow exponentially from BaseDelay, cap at MaxDelay,
// and carry random jitter so redelivering consumers do not retry in step.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(p.BaseDelay) * math.Pow(2, float64(attempt-1))
	if max := float64(p.MaxDelay); d > max {
		d = max
	}
	if p.Jitter > 0 {
		// Spread by +/- Jitter fraction of the computed delay.
		d += d * p.Jitter * (2*rand.Float64() - 1)
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}
