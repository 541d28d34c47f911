package replay

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-go-golems/bookwright/pkg/events"
	"github.com/go-go-golems/bookwright/pkg/fields"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const writeWait = 5 * time.Second

// Server plays a Script to every websocket client. Turns are consumed in order
// across connections, so a client that reconnects continues the script.
type Server struct {
	script   *Script
	token    string
	upgrader websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	next        int
	requests    []events.Request
	connections int
	conns       map[*websocket.Conn]struct{}
}

type Option func(*Server)

// WithToken rejects connections whose token query parameter differs.
func WithToken(token string) Option {
	return func(s *Server) {
		s.token = token
	}
}

func NewServer(script *Script, options ...Option) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		script: script,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		ctx:    ctx,
		cancel: cancel,
		conns:  map[*websocket.Conn]struct{}{},
	}
	for _, o := range options {
		o(s)
	}
	return s
}

// Requests returns every request received so far.
func (s *Server) Requests() []events.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	ret := make([]events.Request, len(s.requests))
	copy(ret, s.requests)
	return ret
}

// Connections returns the number of accepted handshakes.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connections
}

// Close drops every open connection and waits for the handlers to return.
func (s *Server) Close() {
	s.mu.Lock()
	s.cancel()
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		http.Error(w, "server closed", http.StatusServiceUnavailable)
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("component", "replay").Msg("Upgrade failed")
		return
	}

	s.mu.Lock()
	s.connections++
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		_ = conn.Close()
	}()

	if s.token != "" && r.URL.Query().Get("token") != s.token {
		log.Info().Str("component", "replay").Msg("Rejecting connection with invalid token")
		s.closeWith(conn, websocket.ClosePolicyViolation, "invalid token")
		return
	}
	if s.script.Unavailable {
		s.closeWith(conn, websocket.CloseInternalServerErr, "LLM not available")
		return
	}

	s.serve(conn)
}

func (s *Server) serve(conn *websocket.Conn) {
	ctx, cancel := context.WithCancel(s.ctx)
	requests := make(chan events.Request)
	defer func() {
		cancel()
		_ = conn.Close()
		for range requests {
		}
	}()

	go func() {
		defer cancel()
		defer close(requests)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				log.Debug().Err(err).Str("component", "replay").Msg("Client gone")
				return
			}
			req := events.Request{}
			if err := json.Unmarshal(data, &req); err != nil {
				log.Warn().Err(err).Str("component", "replay").Msg("Ignoring malformed request")
				continue
			}
			select {
			case requests <- req:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-requests:
			if !ok {
				return
			}
			s.mu.Lock()
			s.requests = append(s.requests, req)
			s.mu.Unlock()

			turn, ok := s.nextTurn()
			if !ok {
				log.Info().Str("component", "replay").Msg("Script exhausted")
				s.closeWith(conn, websocket.CloseInternalServerErr, "script exhausted")
				return
			}
			closed, err := s.play(ctx, conn, turn)
			if err != nil {
				log.Debug().Err(err).Str("component", "replay").Msg("Turn aborted")
				return
			}
			if closed {
				return
			}
		}
	}
}

func (s *Server) nextTurn() (Turn, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.script.Turns) == 0 {
		return Turn{}, false
	}
	if s.next >= len(s.script.Turns) {
		if !s.script.Loop {
			return Turn{}, false
		}
		s.next = 0
	}
	t := s.script.Turns[s.next]
	s.next++
	return t, true
}

// play writes the turn's events and reports whether the connection was closed.
func (s *Server) play(ctx context.Context, conn *websocket.Conn, turn Turn) (bool, error) {
	for _, e := range turn.Events {
		delay := e.Delay
		if delay == 0 {
			delay = s.script.Delay
		}
		if delay > 0 {
			t := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return true, ctx.Err()
			case <-t.C:
			}
		}

		payload, err := encodeEvent(e)
		if err != nil {
			return false, err
		}
		if err := s.write(conn, payload); err != nil {
			return true, err
		}
	}

	switch {
	case turn.Close != nil:
		s.closeWith(conn, turn.Close.Code, turn.Close.Reason)
		return true, nil
	case turn.Hold:
		return false, nil
	default:
		return false, s.write(conn, []byte(`{"type":"end","value":""}`))
	}
}

func (s *Server) write(conn *websocket.Conn, payload []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, payload)
}

func (s *Server) closeWith(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil {
		log.Debug().Err(err).Str("component", "replay").Msg("Close frame not sent")
	}
}

func encodeEvent(e Event) ([]byte, error) {
	if e.Raw != "" {
		return []byte(e.Raw), nil
	}
	value := e.Value
	if e.Type == fields.PageCount {
		value = sanitizePageCount(value)
	}
	b, err := json.Marshal(struct {
		Type  string      `json:"type"`
		Value interface{} `json:"value"`
	}{Type: e.Type, Value: value})
	if err != nil {
		return nil, errors.Wrapf(err, "could not encode %s event", e.Type)
	}
	return b, nil
}

// sanitizePageCount keeps positive integers and turns anything else into null.
func sanitizePageCount(v interface{}) interface{} {
	switch n := v.(type) {
	case int:
		if n >= 1 {
			return n
		}
	case int64:
		if n >= 1 {
			return n
		}
	case uint64:
		if n >= 1 {
			return n
		}
	}
	return nil
}
