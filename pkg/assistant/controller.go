// Package assistant owns the connection to the streaming book assistant.
//
// A Controller opens the websocket on demand, sends one request per turn,
// feeds the incoming events through the classifier and renderer, and makes
// sure that every way a turn can end (end event, stop, server close, network
// loss, idle timeout) leaves the blocks flushed and the surface idle.
//
// All state transitions happen under a single mutex, so network reads,
// reveal frames and user actions are processed one at a time in arrival
// order. Surface, Form and EventSink methods are called with that mutex held
// and must not call back into the controller. Notifier and hook callbacks are
// made after the mutex is released.
package assistant

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-go-golems/bookwright/pkg/classifier"
	"github.com/go-go-golems/bookwright/pkg/events"
	"github.com/go-go-golems/bookwright/pkg/fields"
	"github.com/go-go-golems/bookwright/pkg/typewriter"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// Surface is the widget the controller drives.
type Surface interface {
	classifier.View
	// SetRunning toggles the in-flight presentation: input disabled, stop shown.
	SetRunning(running bool)
	// Reset collapses the widget back to its hidden baseline.
	Reset()
}

const (
	DefaultConnectTimeout = 5 * time.Second
	DefaultPollInterval   = 50 * time.Millisecond
	DefaultIdleTimeout    = 60 * time.Second
	DefaultCredentialKey  = "access-token"
	// TokenQueryParam carries the bearer credential, since the websocket
	// handshake cannot set custom headers from a browser.
	TokenQueryParam = "token"
)

type Config struct {
	// URL is the websocket endpoint, e.g. ws://localhost:8000/api/llm/book
	URL           string
	CredentialKey string
	Fields        fields.Set

	ConnectTimeout time.Duration
	PollInterval   time.Duration
	// IdleTimeout ends a turn that receives no event for this long. Zero disables it.
	IdleTimeout    time.Duration
	RevealFraction float64
}

func (c Config) withDefaults() Config {
	if c.CredentialKey == "" {
		c.CredentialKey = DefaultCredentialKey
	}
	if c.Fields == nil {
		c.Fields = fields.BookFields()
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.IdleTimeout < 0 {
		c.IdleTimeout = 0
	}
	return c
}

// Turn is one prompt/response exchange.
type Turn struct {
	ID        string
	Prompt    string
	Snapshot  fields.Map
	StartedAt time.Time
}

// TurnResult is reported once per turn. Err is nil for a regular end.
type TurnResult struct {
	Turn *Turn
	Err  error
}

type Option func(*Controller)

func WithDialer(d Dialer) Option {
	return func(c *Controller) {
		c.dialer = d
	}
}

func WithScheduler(s typewriter.Scheduler) Option {
	return func(c *Controller) {
		c.scheduler = s
	}
}

func WithNotifier(n Notifier) Option {
	return func(c *Controller) {
		c.notifier = n
	}
}

func WithEventSink(s events.EventSink) Option {
	return func(c *Controller) {
		c.sink = s
	}
}

// WithTurnFinished registers a hook called after every turn ends.
func WithTurnFinished(f func(TurnResult)) Option {
	return func(c *Controller) {
		c.onTurnFinished = f
	}
}

// WithStateChange registers a hook called on every connection state change.
// It runs with the controller mutex held.
func WithStateChange(f func(from, to State)) Option {
	return func(c *Controller) {
		c.onStateChange = f
	}
}

type notification struct {
	message string
	level   Level
}

type Controller struct {
	mu sync.Mutex

	cfg        Config
	creds      CredentialStore
	surface    Surface
	form       fields.Form
	dialer     Dialer
	scheduler  typewriter.Scheduler
	notifier   Notifier
	sink       events.EventSink
	decoder    *events.Decoder
	renderer   *typewriter.Renderer
	classifier *classifier.Classifier

	onTurnFinished func(TurnResult)
	onStateChange  func(from, to State)

	state State
	conn  Conn
	// gen identifies the current connection attempt, callbacks from older
	// attempts are ignored
	gen     uint64
	dialErr error
	// dialCancel aborts the dial of the current attempt
	dialCancel context.CancelFunc

	running bool
	turn    *Turn
	seq     uint64

	watchdog   *time.Timer
	watchdogID uint64

	pendingNotes   []notification
	pendingResults []TurnResult

	wg sync.WaitGroup
}

func New(cfg Config, creds CredentialStore, surface Surface, form fields.Form, options ...Option) *Controller {
	c := &Controller{
		cfg:     cfg.withDefaults(),
		creds:   creds,
		surface: surface,
		form:    form,
	}
	for _, o := range options {
		o(c)
	}
	if c.dialer == nil {
		c.dialer = NewWebsocketDialer()
	}
	if c.scheduler == nil {
		c.scheduler = typewriter.NewFrameScheduler(typewriter.DefaultFrameInterval)
	}
	if c.notifier == nil {
		c.notifier = LogNotifier{}
	}
	if c.sink == nil {
		c.sink = events.NullSink{}
	}

	rendererOptions := []typewriter.Option{}
	if c.cfg.RevealFraction > 0 {
		rendererOptions = append(rendererOptions, typewriter.WithFraction(c.cfg.RevealFraction))
	}
	c.decoder = events.NewDecoder(c.cfg.Fields)
	c.renderer = typewriter.NewRenderer(&lockedScheduler{inner: c.scheduler, c: c}, rendererOptions...)
	c.classifier = classifier.New(c.renderer, surface, form)

	return c
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// CurrentTurn returns a copy of the turn in flight, nil if idle.
func (c *Controller) CurrentTurn() *Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.turn == nil {
		return nil
	}
	t := *c.turn
	return &t
}

// Connect opens the connection if it is not already open or opening. The
// dial runs in the background and is aborted when ctx is cancelled.
func (c *Controller) Connect(ctx context.Context) error {
	c.mu.Lock()
	err := c.connectLocked(ctx)
	if err != nil {
		c.notifyConnectErrorLocked(err)
	}
	c.unlockAndDispatch()
	return err
}

// Send starts a turn. If the connection is not open it connects first and
// polls for readiness for at most the configured connect timeout.
func (c *Controller) Send(ctx context.Context, prompt string, snapshot fields.Map) error {
	if strings.TrimSpace(prompt) == "" {
		return ErrEmptyPrompt
	}

	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return ErrTurnInFlight
	}
	if c.state != StateOpen {
		if err := c.connectLocked(ctx); err != nil {
			c.notifyConnectErrorLocked(err)
			c.unlockAndDispatch()
			return err
		}
		c.unlockAndDispatch()

		if err := c.awaitOpen(ctx); err != nil {
			return err
		}

		c.mu.Lock()
		if c.running {
			c.mu.Unlock()
			return ErrTurnInFlight
		}
		if c.state != StateOpen {
			c.mu.Unlock()
			return ErrConnectFailed
		}
	}

	err := c.startTurnLocked(prompt, snapshot)
	c.unlockAndDispatch()
	return err
}

// Stop closes the connection and ends the turn in flight, revealing any
// pending text immediately. It is safe to call at any time.
func (c *Controller) Stop() {
	c.mu.Lock()
	c.stopLocked()
	c.unlockAndDispatch()
}

// Close stops and waits for the connection goroutines to exit. The controller
// can still be used afterwards only if the owning view is remounted.
func (c *Controller) Close() {
	c.Stop()
	c.wg.Wait()
}

// OnOpen marks the current connection attempt as open.
func (c *Controller) OnOpen() {
	c.mu.Lock()
	c.onOpenLocked()
	c.unlockAndDispatch()
}

// OnMessage processes one raw message from the current connection.
func (c *Controller) OnMessage(raw []byte) {
	c.mu.Lock()
	c.onMessageLocked(raw)
	c.unlockAndDispatch()
}

// OnClose handles the end of the current connection.
func (c *Controller) OnClose(code int, reason string) {
	c.mu.Lock()
	c.onCloseLocked(&CloseError{Code: code, Reason: reason})
	c.unlockAndDispatch()
}

// OnError handles a failure to open the current connection.
func (c *Controller) OnError(err error) {
	c.mu.Lock()
	c.onErrorLocked(err)
	c.unlockAndDispatch()
}

func (c *Controller) connectLocked(ctx context.Context) error {
	if c.state == StateConnecting || c.state == StateOpen {
		return nil
	}

	token, ok := c.creds.Get(c.cfg.CredentialKey)
	if !ok || token == "" {
		return ErrUnauthenticated
	}
	endpoint, err := endpointURL(c.cfg.URL, token)
	if err != nil {
		return errors.Wrap(ErrConnectFailed, err.Error())
	}

	// a leftover connection is torn down before a new one is opened
	if c.conn != nil {
		c.teardownLocked()
	}

	c.gen++
	gen := c.gen
	c.dialErr = nil
	c.setStateLocked(StateConnecting)

	c.logger().Debug().Uint64("gen", gen).Msg("Connecting")

	dialCtx, cancel := context.WithCancel(ctx)
	c.dialCancel = cancel

	c.wg.Add(1)
	go c.dial(dialCtx, gen, endpoint)

	return nil
}

func (c *Controller) dial(ctx context.Context, gen uint64, endpoint string) {
	defer c.wg.Done()

	conn, err := c.dialer.Dial(ctx, endpoint)

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		if conn != nil {
			_ = conn.Close(websocket.CloseNormalClosure, "")
		}
		return
	}
	cancelled := ctx.Err() != nil
	c.cancelDialLocked()
	if err != nil {
		c.dialErr = err
		if cancelled {
			// the caller gave up, nothing to report
			c.logger().Debug().Err(err).Msg("Connect cancelled")
			c.setStateLocked(StateDisconnected)
		} else {
			c.onErrorLocked(err)
		}
		c.unlockAndDispatch()
		return
	}

	c.conn = conn
	c.onOpenLocked()
	c.wg.Add(1)
	go c.readLoop(gen, conn)
	c.unlockAndDispatch()
}

func (c *Controller) readLoop(gen uint64, conn Conn) {
	defer c.wg.Done()

	for {
		data, err := conn.ReadMessage()
		if err != nil {
			ce, ok := err.(*CloseError)
			if !ok {
				ce = &CloseError{Code: websocket.CloseAbnormalClosure, Err: err}
			}
			c.mu.Lock()
			if gen == c.gen {
				c.onCloseLocked(ce)
			}
			c.unlockAndDispatch()
			return
		}

		c.mu.Lock()
		if gen == c.gen {
			c.onMessageLocked(data)
		}
		c.unlockAndDispatch()
	}
}

// awaitOpen polls the connection state until it is open, the attempt failed,
// or the connect timeout expired.
func (c *Controller) awaitOpen(ctx context.Context) error {
	deadline := time.NewTimer(c.cfg.ConnectTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		c.mu.Lock()
		switch c.state {
		case StateOpen:
			c.mu.Unlock()
			return nil
		case StateDisconnected, StateClosing:
			dialErr := c.dialErr
			c.mu.Unlock()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// a dial error was already reported through OnError
			if dialErr != nil {
				return errors.Wrap(ErrConnectFailed, dialErr.Error())
			}
			return ErrConnectFailed
		case StateConnecting:
		}
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			c.mu.Lock()
			c.abandonConnectLocked()
			c.unlockAndDispatch()
			return ctx.Err()
		case <-deadline.C:
			c.mu.Lock()
			if c.abandonConnectLocked() {
				c.notifyLocked("Could not reach the assistant, please try again", LevelError)
			}
			c.unlockAndDispatch()
			return ErrConnectFailed
		case <-ticker.C:
		}
	}
}

// abandonConnectLocked gives up on a pending attempt. It reports whether
// there was one.
func (c *Controller) abandonConnectLocked() bool {
	if c.state != StateConnecting {
		return false
	}
	c.gen++
	c.cancelDialLocked()
	c.setStateLocked(StateDisconnected)
	return true
}

func (c *Controller) cancelDialLocked() {
	if c.dialCancel != nil {
		c.dialCancel()
		c.dialCancel = nil
	}
}

func (c *Controller) startTurnLocked(prompt string, snapshot fields.Map) error {
	if c.conn == nil {
		return ErrConnectFailed
	}
	turn := &Turn{
		ID:        uuid.NewString(),
		Prompt:    prompt,
		Snapshot:  snapshot.Clone(),
		StartedAt: time.Now(),
	}
	payload, err := json.Marshal(events.Request{Prompt: prompt, Fields: turn.Snapshot})
	if err != nil {
		return errors.Wrap(err, "failed to encode request")
	}

	c.classifier.Reset()
	c.renderer.FlushAll()
	c.turn = turn
	c.seq = 0
	c.running = true
	c.surface.SetRunning(true)

	if err := c.conn.WriteMessage(payload); err != nil {
		err = errors.Wrap(err, "failed to send request")
		c.logger().Error().Err(err).Str("turn_id", turn.ID).Msg("Send failed")
		c.finishTurnLocked(err)
		c.teardownLocked()
		c.notifyLocked("Could not send the request to the assistant", LevelError)
		return err
	}

	c.armWatchdogLocked()
	c.logger().Info().Str("turn_id", turn.ID).Int("fields", len(turn.Snapshot)).Msg("Turn started")
	return nil
}

func (c *Controller) finishTurnLocked(err error) {
	if !c.running {
		return
	}
	c.classifier.Finish()
	c.renderer.FlushAll()
	c.running = false
	c.stopWatchdogLocked()

	turn := c.turn
	c.turn = nil
	c.surface.SetRunning(false)
	c.pendingResults = append(c.pendingResults, TurnResult{Turn: turn, Err: err})

	ev := c.logger().Info()
	if err != nil {
		ev = c.logger().Warn().Err(err)
	}
	if turn != nil {
		ev = ev.Str("turn_id", turn.ID)
	}
	ev.Uint64("events", c.seq).Msg("Turn finished")
}

func (c *Controller) stopLocked() {
	c.teardownLocked()
	c.finishTurnLocked(ErrStopped)
	c.classifier.Reset()
	c.renderer.FlushAll()
}

// teardownLocked closes the current connection normally and invalidates any
// callbacks still pending for it.
func (c *Controller) teardownLocked() {
	c.gen++
	c.cancelDialLocked()
	if c.conn != nil {
		conn := c.conn
		c.conn = nil
		c.setStateLocked(StateClosing)
		if err := conn.Close(websocket.CloseNormalClosure, ""); err != nil {
			c.logger().Debug().Err(err).Msg("Close failed")
		}
	}
	c.setStateLocked(StateDisconnected)
}

func (c *Controller) onOpenLocked() {
	if c.state != StateConnecting {
		return
	}
	c.setStateLocked(StateOpen)
	c.logger().Debug().Msg("Connection open")
}

func (c *Controller) onErrorLocked(err error) {
	c.logger().Error().Err(err).Msg("Connection failed")
	if c.state == StateConnecting {
		c.setStateLocked(StateDisconnected)
	}
	c.notifyLocked("Could not connect to the assistant", LevelError)
}

func (c *Controller) onMessageLocked(raw []byte) {
	ev, err := c.decoder.Decode(raw)
	if err != nil {
		c.logger().Debug().Err(err).Int("len", len(raw)).Msg("Dropping unparseable message")
		return
	}
	if !c.running {
		c.logger().Debug().Str("type", string(ev.Type())).Msg("Dropping event outside of a turn")
		return
	}

	seq := c.seq
	c.seq++
	if env, err := events.NewEnvelope(c.turn.ID, seq, ev); err == nil {
		if err := c.sink.PublishEvent(env); err != nil {
			c.logger().Warn().Err(err).Msg("Event sink failed")
		}
	}

	c.logger().Trace().Object("event", ev).Uint64("seq", seq).Msg("Event")
	c.armWatchdogLocked()

	if ended := c.classifier.Handle(ev); ended {
		c.finishTurnLocked(nil)
	}
}

func (c *Controller) onCloseLocked(ce *CloseError) {
	wasRunning := c.running
	if c.running {
		c.finishTurnLocked(ce)
	}
	if c.conn != nil {
		conn := c.conn
		c.conn = nil
		_ = conn.Close(websocket.CloseNormalClosure, "")
	}
	c.gen++
	c.setStateLocked(StateDisconnected)

	c.logger().Info().
		Int("code", ce.Code).
		Str("reason", ce.Reason).
		Bool("was_running", wasRunning).
		Msg("Connection closed")

	switch {
	case ce.Normal():
	case !ce.Fatal():
		c.notifyLocked(ce.Reason, LevelError)
	default:
		c.notifyLocked("The assistant connection was lost", LevelError)
		c.surface.Reset()
	}
}

func (c *Controller) armWatchdogLocked() {
	if c.cfg.IdleTimeout <= 0 || c.turn == nil {
		return
	}
	c.stopWatchdogLocked()
	id := c.watchdogID
	c.watchdog = time.AfterFunc(c.cfg.IdleTimeout, func() {
		c.mu.Lock()
		if id == c.watchdogID && c.running {
			c.logger().Warn().Dur("idle", c.cfg.IdleTimeout).Msg("Turn went idle")
			c.finishTurnLocked(ErrIdleTimeout)
			c.notifyLocked("The assistant stopped responding", LevelWarning)
		}
		c.unlockAndDispatch()
	})
}

func (c *Controller) stopWatchdogLocked() {
	c.watchdogID++
	if c.watchdog != nil {
		c.watchdog.Stop()
		c.watchdog = nil
	}
}

func (c *Controller) setStateLocked(s State) {
	if c.state == s {
		return
	}
	from := c.state
	c.state = s
	if c.onStateChange != nil {
		c.onStateChange(from, s)
	}
}

func (c *Controller) notifyConnectErrorLocked(err error) {
	if errors.Is(err, ErrUnauthenticated) {
		c.notifyLocked("Sign in to use the assistant", LevelError)
		return
	}
	c.notifyLocked("Could not connect to the assistant", LevelError)
}

func (c *Controller) notifyLocked(message string, level Level) {
	c.pendingNotes = append(c.pendingNotes, notification{message: message, level: level})
}

// unlockAndDispatch releases the mutex and then delivers queued notifications
// and turn results.
func (c *Controller) unlockAndDispatch() {
	notes := c.pendingNotes
	results := c.pendingResults
	c.pendingNotes = nil
	c.pendingResults = nil
	c.mu.Unlock()

	for _, n := range notes {
		c.notifier.Notify(n.message, n.level)
	}
	if c.onTurnFinished != nil {
		for _, r := range results {
			c.onTurnFinished(r)
		}
	}
}

func (c *Controller) logger() *zerolog.Logger {
	l := log.With().Str("component", "assistant").Logger()
	return &l
}

func endpointURL(base string, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", errors.Wrap(err, "invalid assistant url")
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", errors.Errorf("unsupported assistant url scheme %q", u.Scheme)
	}
	q := u.Query()
	q.Set(TokenQueryParam, token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// lockedScheduler runs reveal frames under the controller mutex.
type lockedScheduler struct {
	inner typewriter.Scheduler
	c     *Controller
}

func (l *lockedScheduler) ScheduleFrame(fn func()) func() {
	return l.inner.ScheduleFrame(func() {
		l.c.mu.Lock()
		defer l.c.mu.Unlock()
		fn()
	})
}
