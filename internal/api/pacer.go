package api

import (
	"context"
	"sync"
	"time"
)

// pacer enforces a minimum spacing between outbound requests derived from
// a requests-per-minute ceiling. Callers block until their slot comes up
// rather than being rejected; slots are reserved under the lock so
// concurrent fetches queue fairly.
type pacer struct {
	mu      sync.Mutex
	spacing time.Duration
	next    time.Time
}

func newPacer(requestsPerMinute int) *pacer {
	if requestsPerMinute < 1 {
		requestsPerMinute = 1
	}
	return &pacer{
		spacing: time.Minute / time.Duration(requestsPerMinute),
	}
}

// Wait blocks until the next request slot, or until ctx is done.
func (p *pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	now := time.Now()
	slot := p.next
	if slot.Before(now) {
		slot = now
	}
	p.next = slot.Add(p.spacing)
	p.mu.Unlock()

	wait := time.Until(slot)
	if wait <= 0 {
		return ctx.Err()
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
