package assistant

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// Conn is one duplex message connection.
type Conn interface {
	// WriteMessage sends one text message. Calls are serialized by the controller.
	WriteMessage(data []byte) error
	// ReadMessage blocks for the next message. When the connection ends it
	// returns a *CloseError.
	ReadMessage() ([]byte, error)
	// Close sends a close frame with code and reason and releases the connection.
	Close(code int, reason string) error
}

type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

const writeWait = 5 * time.Second

// WebsocketDialer dials with gorilla/websocket.
type WebsocketDialer struct {
	Dialer *websocket.Dialer
}

func NewWebsocketDialer() *WebsocketDialer {
	return &WebsocketDialer{
		Dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

func (d *WebsocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, errors.Wrapf(err, "handshake failed with status %d", resp.StatusCode)
		}
		return nil, errors.Wrap(err, "dial failed")
	}
	return &websocketConn{conn: conn}, nil
}

var _ Dialer = (*WebsocketDialer)(nil)

type websocketConn struct {
	conn *websocket.Conn
}

func (w *websocketConn) WriteMessage(data []byte) error {
	if err := w.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

func (w *websocketConn) ReadMessage() ([]byte, error) {
	_, data, err := w.conn.ReadMessage()
	if err != nil {
		return nil, asCloseError(err)
	}
	return data, nil
}

func (w *websocketConn) Close(code int, reason string) error {
	msg := websocket.FormatCloseMessage(code, reason)
	// the peer may already be gone, the close frame is best effort
	_ = w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return w.conn.Close()
}

func asCloseError(err error) *CloseError {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		// 1006 never travels on the wire, its text is a local read error
		if ce.Code == websocket.CloseAbnormalClosure {
			return &CloseError{Code: ce.Code, Err: err}
		}
		return &CloseError{Code: ce.Code, Reason: ce.Text}
	}
	return &CloseError{Code: websocket.CloseAbnormalClosure, Err: err}
}
