package gateway

// State is one connection lifecycle phase.
type State int32

const (
	// StateDisconnected means no session is running.
	StateDisconnected State = iota
	// StateValidating means the credential is being checked.
	StateValidating
	// StateStreaming means a stream is being opened or is open.
	StateStreaming
	// StateReconnecting means the manager is waiting before redialing.
	StateReconnecting
	// StateFailed means the credential was rejected; the manager will not retry.
	StateFailed
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateValidating:
		return "validating"
	case StateStreaming:
		return "streaming"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
