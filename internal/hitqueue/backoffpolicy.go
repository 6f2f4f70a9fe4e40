package hitqueue

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ExponentialRetryPolicy adapts github.com/cenkalti/backoff/v4's exponential
// backoff into a hitqueue.RetryPolicy, for hosts that want escalating retry
// intervals instead of the spec's flat default. One backoff.BackOff is kept
// per in-flight hit (keyed by hit.UniqueID; Reset discards it), since the spec's
// retry loop always retries the *same* hit until it succeeds or is dropped.
type ExponentialRetryPolicy struct {
	newBackoff func() backoff.BackOff
	current    backoff.BackOff
	forHit     string
}

// NewExponentialRetryPolicy builds a policy around
// backoff.NewExponentialBackOff with the given bounds.
func NewExponentialRetryPolicy(initial, max time.Duration) *ExponentialRetryPolicy {
	return &ExponentialRetryPolicy{
		newBackoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = initial
			b.MaxInterval = max
			b.MaxElapsedTime = 0 // never give up at the backoff layer; the hit queue owns drop policy
			return b
		},
	}
}

func (p *ExponentialRetryPolicy) NextInterval(hit Hit, attempt int) time.Duration {
	if p.current == nil || p.forHit != hit.UniqueID {
		p.current = p.newBackoff()
		p.forHit = hit.UniqueID
	}
	d := p.current.NextBackOff()
	if d == backoff.Stop {
		return 30 * time.Second
	}
	return d
}

func (p *ExponentialRetryPolicy) Reset(hit Hit) {
	if p.forHit == hit.UniqueID {
		p.current = nil
	}
}
