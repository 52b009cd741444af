package obs

import "errors"

// Domain errors for the obs package.
//
// Transport failures are recovered by the client's reconnect loop; callers
// only see them on requests that were in flight when the connection dropped:
//
//	if errors.Is(err, obs.ErrTransport) {
//	    // connection lost, the client is already reconnecting
//	}
var (
	// ErrTransport is returned when the WebSocket is refused, closed, or times out.
	ErrTransport = errors.New("obs: transport failure")

	// ErrProtocol is returned when a message has an unexpected shape.
	ErrProtocol = errors.New("obs: protocol error")

	// ErrNotConnected is returned when a request is issued before the session is identified.
	ErrNotConnected = errors.New("obs: not connected")

	// ErrRequestFailed is returned when OBS answers a request with requestStatus.result=false.
	ErrRequestFailed = errors.New("obs: request failed")

	// ErrRequestTimeout is returned when no response arrives within the request timeout.
	ErrRequestTimeout = errors.New("obs: request timed out")

	// ErrClosed is returned after Close has been called.
	ErrClosed = errors.New("obs: client closed")

	// ErrInvalidURL is returned when the configured URL is not ws:// or wss://.
	ErrInvalidURL = errors.New("obs: invalid url")
)
