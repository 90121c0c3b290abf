// Package ratelimit enforces a per-minute ceiling on outbound API requests
// using a sliding window of grant timestamps.
package ratelimit

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// window is the sliding interval the ceiling applies to.
const window = 60 * time.Second

// margin is added to the computed wait so the oldest grant is strictly
// outside the window when the caller proceeds.
const margin = 100 * time.Millisecond

// DefaultCeiling matches the classification API's requests-per-minute quota.
const DefaultCeiling = 480

// Limiter admits at most ceiling requests per sliding 60-second window.
// Admission is deliberately serialized: the throttling sleep happens with
// the lock held, so at most one caller is admitted at a time once the
// window approaches capacity. Acquire never fails; the worst case is
// reduced throughput.
type Limiter struct {
	mu      sync.Mutex
	ceiling int
	grants  []time.Time

	now   func() time.Time
	sleep func(time.Duration)
}

// New returns a Limiter with the given requests-per-minute ceiling.
// Non-positive ceilings fall back to DefaultCeiling.
func New(ceiling int) *Limiter {
	if ceiling <= 0 {
		ceiling = DefaultCeiling
	}
	return &Limiter{
		ceiling: ceiling,
		now:     time.Now,
		sleep:   time.Sleep,
	}
}

// Acquire blocks until a request may be sent and records its grant
// timestamp. The wait triggers at 95% of the ceiling: the caller sleeps
// until the oldest retained grant leaves the 60-second window, plus a
// small margin.
func (l *Limiter) Acquire() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.prune(now)

	threshold := int(float64(l.ceiling) * 0.95)
	if len(l.grants) >= threshold && len(l.grants) > 0 {
		elapsed := now.Sub(l.grants[0])
		if elapsed < window {
			wait := window - elapsed + margin
			log.Debug().
				Dur("wait", wait).
				Int("in_window", len(l.grants)).
				Int("ceiling", l.ceiling).
				Msg("Rate ceiling near, throttling")
			l.sleep(wait)
			l.prune(l.now())
		}
	}

	l.grants = append(l.grants, l.now())
}

// InWindow reports how many grants currently fall inside the window.
func (l *Limiter) InWindow() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(l.now())
	return len(l.grants)
}

// prune drops grants older than the window. Caller holds l.mu.
func (l *Limiter) prune(now time.Time) {
	cut := 0
	for cut < len(l.grants) && now.Sub(l.grants[cut]) > window {
		cut++
	}
	if cut > 0 {
		l.grants = append(l.grants[:0], l.grants[cut:]...)
	}
}
