package gateway

import (
	"testing"
	"time"
)

func TestReconnectBackoffSequence(t *testing.T) {
	t.Parallel()

	policy := newReconnectBackoff()
	want := []time.Duration{2, 4, 8, 16, 32, 60, 60, 60}
	for index, seconds := range want {
		if got := policy.NextBackOff(); got != seconds*time.Second {
			t.Fatalf("delay %d = %s, want %s", index, got, seconds*time.Second)
		}
	}

	policy.Reset()
	if got := policy.NextBackOff(); got != baseRetryDelay {
		t.Fatalf("delay after reset = %s, want %s", got, baseRetryDelay)
	}
}

func TestStateString(t *testing.T) {
	t.Parallel()

	tests := map[State]string{
		StateDisconnected: "disconnected",
		StateValidating:   "validating",
		StateStreaming:    "streaming",
		StateReconnecting: "reconnecting",
		StateFailed:       "failed",
		State(42):         "unknown",
	}
	for state, want := range tests {
		if got := state.String(); got != want {
			t.Fatalf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}
