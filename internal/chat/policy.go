// Package chat manages the websocket connection of one chat channel: dial,
// history load, live pushes, and bounded reconnects after the socket closes.
package chat

import "time"

// Close codes that drive the reconnect policy.
const (
	// CloseAuthError is sent by the backend when the socket credential is
	// rejected. Handshake rejections with 401/403 are mapped to it.
	CloseAuthError = 4001

	// CloseAbnormal is used for every other dial or read failure.
	CloseAbnormal = 1006
)

// MaxReconnectAttempts bounds the attempt counter.
const MaxReconnectAttempts = 4

// ReconnectDelay is the fixed wait between a close and the next dial.
const ReconnectDelay = 2 * time.Second

// Decision is the outcome of ReconnectPolicy.
type Decision struct {
	Reconnect   bool
	NextAttempt int
}

// ReconnectPolicy decides whether to dial again after a close. Repeated auth
// failures stop once the counter reaches the bound, which also resets it.
// Every other close reconnects, with the counter saturating at the bound.
func ReconnectPolicy(closeCode, attempt int) Decision {
	if closeCode == CloseAuthError && attempt >= MaxReconnectAttempts {
		return Decision{Reconnect: false, NextAttempt: 0}
	}
	next := attempt + 1
	if next > MaxReconnectAttempts {
		next = MaxReconnectAttempts
	}
	return Decision{Reconnect: true, NextAttempt: next}
}
