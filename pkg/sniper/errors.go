package sniper

import "errors"

var (
	// ErrInvalidMessage indicates that a message does not carry the identity fields the cache needs.
	ErrInvalidMessage = errors.New("sniper: invalid message")
	// ErrInvalidOutboundRequest indicates that an outbound call is missing required arguments.
	ErrInvalidOutboundRequest = errors.New("sniper: invalid outbound request")
	// ErrNotConnected indicates that no gateway stream is currently active.
	ErrNotConnected = errors.New("sniper: not connected")
	// ErrUnknownUser indicates that an identity lookup did not resolve.
	ErrUnknownUser = errors.New("sniper: unknown user")
)
