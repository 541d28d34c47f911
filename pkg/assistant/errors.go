package assistant

import (
	"fmt"

	"github.com/go-go-golems/bookwright/pkg/events"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

var (
	// ErrUnauthenticated means no credential was available; nothing was dialed.
	ErrUnauthenticated = errors.New("no credential for the assistant")
	// ErrConnectFailed means the connection did not reach the open state in time.
	ErrConnectFailed = errors.New("could not connect to the assistant")
	// ErrAbnormalClose means the connection closed with a non-normal code.
	ErrAbnormalClose = errors.New("assistant connection closed abnormally")
	// ErrIdleTimeout means a turn received no event for the configured idle window.
	ErrIdleTimeout = errors.New("assistant stopped responding")
	// ErrProtocolNoise marks an unparseable frame. It never reaches the UI.
	ErrProtocolNoise = events.ErrProtocolNoise

	ErrEmptyPrompt  = errors.New("prompt is empty")
	ErrTurnInFlight = errors.New("a turn is already running")
	ErrStopped      = errors.New("turn stopped")
)

// CloseError describes why a connection ended.
type CloseError struct {
	Code   int
	Reason string
	// Err is the transport error when the connection broke without a close frame.
	Err error
}

func (e *CloseError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("connection closed (%d): %s", e.Code, e.Reason)
	}
	if e.Err != nil {
		return fmt.Sprintf("connection closed (%d): %v", e.Code, e.Err)
	}
	return fmt.Sprintf("connection closed (%d)", e.Code)
}

// Normal reports a regular 1000 closure.
func (e *CloseError) Normal() bool {
	return e.Code == websocket.CloseNormalClosure
}

// Fatal is an abnormal closure without a reason the user could act upon.
func (e *CloseError) Fatal() bool {
	return !e.Normal() && e.Reason == ""
}

func (e *CloseError) Unwrap() error {
	if e.Normal() {
		return nil
	}
	return ErrAbnormalClose
}
