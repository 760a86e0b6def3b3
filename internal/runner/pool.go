// Package runner fans a day run out across multiple merchants with bounded
// concurrency and a per-merchant deadline.
package runner

import (
	"context"
	"hash/fnv"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/mealforge/posgen/internal/synth"
)

// RunFunc generates one merchant's day. The rng is owned by the callee;
// the pool never shares one across merchants.
type RunFunc func(ctx context.Context, merchantID string, rng *rand.Rand) (synth.Tally, error)

// MerchantResult is the outcome of one merchant's run.
type MerchantResult struct {
	MerchantID string      `json:"merchant_id"`
	Tally      synth.Tally `json:"tally"`
	Err        error       `json:"-"`
}

// Pool runs merchant days concurrently, at most workers at a time.
type Pool struct {
	workers int
	timeout time.Duration // per merchant, 0 disables
	run     RunFunc
}

// New creates a pool. workers below 1 is treated as 1.
func New(workers int, timeout time.Duration, run RunFunc) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{workers: workers, timeout: timeout, run: run}
}

// Run processes every merchant and returns results in input order. A
// merchant failure is captured in its result, not propagated; cancelling
// ctx stops unstarted merchants and interrupts running ones.
func (p *Pool) Run(ctx context.Context, merchants []string, baseSeed int64) []MerchantResult {
	results := make([]MerchantResult, len(merchants))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < p.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = p.runOne(ctx, merchants[i], baseSeed)
			}
		}()
	}

	for i := range merchants {
		select {
		case jobs <- i:
		case <-ctx.Done():
			results[i] = MerchantResult{MerchantID: merchants[i], Err: ctx.Err()}
		}
	}
	close(jobs)
	wg.Wait()
	return results
}

func (p *Pool) runOne(ctx context.Context, merchantID string, baseSeed int64) MerchantResult {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	// Derive a stable per-merchant seed so multi-merchant runs stay
	// reproducible regardless of scheduling order.
	rng := rand.New(rand.NewSource(baseSeed ^ merchantSalt(merchantID)))

	start := time.Now()
	tally, err := p.run(ctx, merchantID, rng)
	if err != nil {
		slog.Error("merchant run failed", "merchant_id", merchantID, "err", err,
			"elapsed", time.Since(start).Round(time.Millisecond))
	}
	return MerchantResult{MerchantID: merchantID, Tally: tally, Err: err}
}

func merchantSalt(merchantID string) int64 {
	h := fnv.New64a()
	h.Write([]byte(merchantID))
	return int64(h.Sum64())
}
