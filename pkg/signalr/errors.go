package signalr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrReceiveTimeout   = errors.New("receive timeout")
	ErrNotConnected     = errors.New("not connected")
	ErrNotNegotiated    = errors.New("not negotiated")
	ErrStartRejected    = errors.New("start rejected")
	ErrUnknownHub       = errors.New("unknown hub")
	ErrInvalidFrame     = errors.New("invalid frame")
	ErrClientClosed     = errors.New("client closed")
)

// NegotiationError is returned when the negotiate request fails.
type NegotiationError struct {
	StatusCode int    // 0 if no response was received
	Body       string // first bytes of the response body
	Err        error
}

func (e *NegotiationError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("negotiation failed with status %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("negotiation failed: %v", e.Err)
}

func (e *NegotiationError) Unwrap() error {
	return e.Err
}

// TransportHandshakeError is returned when the server rejects the websocket upgrade.
type TransportHandshakeError struct {
	StatusCode int
	Header     http.Header
	Attempts   int
	Err        error
}

func (e *TransportHandshakeError) Error() string {
	return fmt.Sprintf("websocket handshake rejected with status %d after %d attempt(s)",
		e.StatusCode, e.Attempts)
}

func (e *TransportHandshakeError) Unwrap() error {
	return e.Err
}

// Cookies returns the cookies offered by the rejecting response.
func (e *TransportHandshakeError) Cookies() []*http.Cookie {
	if e.Header == nil {
		return nil
	}
	return (&http.Response{Header: e.Header}).Cookies()
}
