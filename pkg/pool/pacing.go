package pool

import (
	"time"

	"golang.org/x/time/rate"
)

// reconnectPacer turns "delay-before-retry seconds" (spec §4.2 reconnect-
// delay timer) into a burst-of-one rate.Limiter, so a caller that forces
// an immediate extra rotation doesn't get to bypass the configured delay.
type reconnectPacer struct {
	limiter *rate.Limiter
}

func newReconnectPacer(delay time.Duration) *reconnectPacer {
	if delay <= 0 {
		delay = time.Nanosecond
	}
	return &reconnectPacer{limiter: rate.NewLimiter(rate.Every(delay), 1)}
}

// wait returns how long the caller must still wait before the next
// reconnect attempt is allowed.
func (p *reconnectPacer) wait() time.Duration {
	r := p.limiter.ReserveN(time.Now(), 1)
	if !r.OK() {
		return 0
	}
	return r.DelayFrom(time.Now())
}

// hashratePacer enforces "no more than once per interval" on hashrate
// reports even if a caller triggers an out-of-band report.
type hashratePacer struct {
	limiter *rate.Limiter
}

func newHashratePacer(interval time.Duration) *hashratePacer {
	if interval <= 0 {
		interval = time.Second
	}
	return &hashratePacer{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

func (p *hashratePacer) allow() bool {
	return p.limiter.Allow()
}
