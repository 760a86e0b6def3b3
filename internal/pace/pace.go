// Package pace spaces out commerce API traffic so sequential generation
// stays under the sandbox's rate limits.
package pace

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Pacer enforces a minimum interval between successive calls, with a small
// random jitter so synthetic traffic does not look machine-regular.
type Pacer struct {
	interval time.Duration
	jitter   time.Duration

	mu   sync.Mutex
	rng  *rand.Rand
	next time.Time
}

// New creates a pacer. A zero interval disables pacing.
func New(interval, jitter time.Duration, rng *rand.Rand) *Pacer {
	return &Pacer{interval: interval, jitter: jitter, rng: rng}
}

// Wait blocks until the next call slot, or until ctx is cancelled.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil || p.interval <= 0 {
		return ctx.Err()
	}

	p.mu.Lock()
	now := time.Now()
	wait := p.next.Sub(now)
	if wait < 0 {
		wait = 0
	}
	if p.jitter > 0 {
		wait += time.Duration(p.rng.Int63n(int64(p.jitter)))
	}
	p.next = now.Add(wait + p.interval)
	p.mu.Unlock()

	if wait == 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
