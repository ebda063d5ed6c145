package gateway

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	baseRetryDelay = 2 * time.Second
	maxRetryDelay  = 60 * time.Second
)

// newReconnectBackoff yields 2s, 4s, 8s, ... capped at 60s, without jitter
// and without a retry limit.
func newReconnectBackoff() *backoff.ExponentialBackOff {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = baseRetryDelay
	policy.Multiplier = 2
	policy.RandomizationFactor = 0
	policy.MaxInterval = maxRetryDelay
	policy.MaxElapsedTime = 0
	policy.Reset()

	return policy
}
