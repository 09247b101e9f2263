// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sources

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// pacerState names the phases of the adaptive rate-limit state machine.
type pacerState int

const (
	pacerNormal pacerState = iota
	pacerBackingOff
	pacerCooldown
)

// pacerBackoffBase is the base delay for 429 backoff. Tests shrink it.
var pacerBackoffBase = 2 * time.Second

// cooldownAfter is the consecutive-429 count that triggers an extended
// cooldown window before normal pacing resumes.
const cooldownAfter = 3

// pacer enforces a minimum inter-request spacing and adapts to rate-limit
// responses. NCBI allows 3 req/s without an API key and 10 with one; on
// HTTP 429 the pacer backs off exponentially with jitter and, after
// repeated 429s, enters a cooldown window.
//
// The state is private to one adapter instance. PubMed's phases are
// sequential within a query, so the mutex only matters when one adapter
// instance is shared across concurrent queries.
type pacer struct {
	limiter *rate.Limiter

	mu             sync.Mutex
	state          pacerState
	consecutive429 int
	cooldownUntil  time.Time
}

func newPacer(reqPerSec float64) *pacer {
	if reqPerSec <= 0 {
		reqPerSec = 3
	}
	return &pacer{limiter: rate.NewLimiter(rate.Limit(reqPerSec), 1)}
}

// Wait blocks until the next request is allowed: first any active cooldown
// window, then the steady-state limiter.
func (p *pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	until := p.cooldownUntil
	p.mu.Unlock()

	if d := time.Until(until); d > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d):
		}
		p.mu.Lock()
		if p.state == pacerCooldown && !time.Now().Before(p.cooldownUntil) {
			p.state = pacerNormal
			p.consecutive429 = 0
		}
		p.mu.Unlock()
	}

	return p.limiter.Wait(ctx)
}

// OnRateLimited records a 429 and returns how long the caller should sleep
// before retrying. The delay doubles per consecutive 429 with up to 25%
// jitter; from the third consecutive 429 the pacer also opens a cooldown
// window covering the same span.
func (p *pacer) OnRateLimited() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.consecutive429++
	p.state = pacerBackingOff

	d := time.Duration(math.Pow(2, float64(p.consecutive429-1))) * pacerBackoffBase
	d += time.Duration(rand.Int63n(int64(d)/4 + 1))

	if p.consecutive429 >= cooldownAfter {
		p.state = pacerCooldown
		p.cooldownUntil = time.Now().Add(d)
	}
	return d
}

// OnSuccess resets the backoff counters after a non-429 response.
func (p *pacer) OnSuccess() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != pacerCooldown {
		p.state = pacerNormal
	}
	p.consecutive429 = 0
}
