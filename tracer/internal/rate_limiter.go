package internal

import (
	"sync"
	"time"
)

// rateLimiter keeps the unspent quota as elapsed wall-clock time. The balance is the distance
// between now and walletFloor, capped at maxBalance, and every take pushes the floor forward by
// the time one unit of cost is worth at the configured quota.
type rateLimiter struct {
	// quota is the number of units admitted per second.
	quota float64

	// maxBalance bounds how much unused quota can pile up for a burst.
	maxBalance time.Duration

	walletFloor time.Time

	clock clock
	mu    sync.Mutex
}

func newRateLimiter(quota float64, maxBalance time.Duration, c clock) *rateLimiter {
	return &rateLimiter{
		quota:       quota,
		maxBalance:  maxBalance,
		walletFloor: c.now(),
		clock:       c,
	}
}

// take consumes cost from the balance and reports whether there was enough of it.
// The wallet is left untouched when it is not.
func (r *rateLimiter) take(cost float64) bool {
	if r.quota == 0 {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	costDuration := time.Duration(cost / r.quota * float64(time.Second))

	now := r.clock.now()
	balance := now.Sub(r.walletFloor)
	if balance > r.maxBalance {
		balance = r.maxBalance
	}

	remaining := balance - costDuration
	if remaining < 0 {
		return false
	}

	r.walletFloor = now.Add(-remaining)
	return true
}
