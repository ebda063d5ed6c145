package gateway

import (
	"context"
	"fmt"
	"time"

	"ex-sniper/internal/clock"
)

// Heartbeat emits heartbeat frames on one stream at a fixed interval.
type Heartbeat struct {
	clock    clock.Clock
	interval time.Duration
	send     func() error
}

// NewHeartbeat creates a scheduler that calls send every interval.
func NewHeartbeat(c clock.Clock, interval time.Duration, send func() error) *Heartbeat {
	if c == nil {
		c = clock.Real()
	}

	return &Heartbeat{clock: c, interval: interval, send: send}
}

// Run sends one heartbeat immediately and then one per interval until ctx is
// cancelled. A send failure is returned so the owner can tear the stream down.
func (h *Heartbeat) Run(ctx context.Context) error {
	if h.interval <= 0 {
		return fmt.Errorf("heartbeat: interval must be > 0")
	}

	for {
		if err := h.send(); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("heartbeat send: %w", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-h.clock.After(h.interval):
		}
	}
}
