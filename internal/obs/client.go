package obs

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// closeOnce wraps a channel with sync.Once to prevent double-close panics.
type closeOnce struct {
	ch   chan struct{}
	once sync.Once
}

func newCloseOnce() *closeOnce {
	return &closeOnce{ch: make(chan struct{})}
}

func (c *closeOnce) Close() {
	c.once.Do(func() { close(c.ch) })
}

func (c *closeOnce) Done() <-chan struct{} {
	return c.ch
}

const (
	defaultConnectTimeout    = 10 * time.Second
	defaultRequestTimeout    = 10 * time.Second
	defaultReconnectInterval = 5 * time.Second

	// maxReconnectInterval caps the exponential reconnect backoff.
	maxReconnectInterval = 2 * time.Minute

	// writeTimeout bounds a single frame write.
	writeTimeout = 5 * time.Second

	// dispatchQueueSize is the buffer between the read loop and listeners.
	dispatchQueueSize = 256

	// closeAuthenticationFailed is the close code OBS sends for a bad token.
	closeAuthenticationFailed = 4009
)

// State is the connection lifecycle state.
type State int32

// Connection states.
const (
	StateDisconnected State = iota
	StateAwaitingChallenge
	StateAwaitingIdentified
	StateReady
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateAwaitingChallenge:
		return "awaiting_challenge"
	case StateAwaitingIdentified:
		return "awaiting_identified"
	case StateReady:
		return "ready"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Config holds OBS connection settings.
type Config struct {
	// URL is the OBS WebSocket address, e.g. "ws://127.0.0.1:4455".
	URL string

	// Password is the shared secret. Ignored when OBS has auth disabled.
	Password string

	// ConnectTimeout bounds dialing plus the hello/identify exchange.
	// Default: 10 seconds.
	ConnectTimeout time.Duration

	// RequestTimeout bounds the wait for a correlated response.
	// Default: 10 seconds.
	RequestTimeout time.Duration

	// ReconnectInterval is the initial delay between reconnection attempts.
	// Default: 5 seconds.
	ReconnectInterval time.Duration
}

// Stats holds operational statistics.
type Stats struct {
	MessagesTx      uint64
	MessagesRx      uint64
	DispatchDropped uint64 // Items dropped due to a full dispatch queue
	ErrorsTotal     uint64
	ReconnectsTotal uint64 // Successful re-identifications after the first
	LastActivity    time.Time
	State           State
}

// SceneList is the result of a GetSceneList request.
type SceneList struct {
	Scenes []string
	// Current is the program scene reported alongside the listing, if any.
	Current string
}

// EventHandler receives events of one type.
type EventHandler func(Event)

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Connector is the client surface used by the rest of the rotator.
type Connector interface {
	RequestSceneList(ctx context.Context) ([]string, error)
	SwitchScene(ctx context.Context, name string) error
	OnEvent(eventType string, handler EventHandler)
	OnSceneList(handler func(SceneList))
	OnStateChange(handler func(State))
	State() State
	Stats() Stats
	Close() error
}

// Ensure Client implements Connector.
var _ Connector = (*Client)(nil)

type result struct {
	resp RequestResponse
	err  error
}

// Client is an OBS WebSocket v5 client with automatic reconnection.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Frames are written by one writer at a time, in the order callers issue them.
//   - Listeners run on a single dispatch goroutine, never concurrently.
//
// Auto-Reconnection:
//   - A supervisor goroutine dials, identifies, and runs the read loop.
//   - On loss it waits ReconnectInterval, growing ×1.5 per failed attempt up to 2 minutes.
//   - Reconnection stops only when Close() is called.
type Client struct {
	cfg    Config
	dialer *websocket.Dialer

	connMu sync.RWMutex
	conn   *websocket.Conn

	state   atomic.Int32
	readyMu sync.Mutex
	readyCh chan struct{}

	// writeMu serialises frames onto the wire.
	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]chan result

	handlersMu        sync.RWMutex
	eventHandlers     map[string][]EventHandler
	sceneListHandlers []func(SceneList)
	stateHandlers     []func(State)

	queue chan func()

	// refreshMu guards refreshing and refreshAgain.
	refreshMu    sync.Mutex
	refreshing   bool
	refreshAgain bool

	started  atomic.Bool
	sessions atomic.Uint64
	done     *closeOnce
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	logger   Logger
	loggerMu sync.RWMutex

	messagesTx      atomic.Uint64
	messagesRx      atomic.Uint64
	dispatchDropped atomic.Uint64
	errorsTotal     atomic.Uint64
	reconnectsTotal atomic.Uint64
	lastActivity    atomic.Int64
}

// NewClient creates a client. Register listeners, then call Start.
func NewClient(cfg Config) *Client {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = defaultReconnectInterval
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		cfg:           cfg,
		ctx:           ctx,
		cancel:        cancel,
		dialer:        &websocket.Dialer{HandshakeTimeout: cfg.ConnectTimeout},
		readyCh:       make(chan struct{}),
		pending:       make(map[string]chan result),
		eventHandlers: make(map[string][]EventHandler),
		queue:         make(chan func(), dispatchQueueSize),
		done:          newCloseOnce(),
		logger:        noopLogger{},
	}
}

// Start launches the dispatch goroutine and the connection supervisor.
// It returns immediately; use WaitReady to block until identified.
// Calling Start more than once is a no-op.
func (c *Client) Start() error {
	if c.isClosed() {
		return ErrClosed
	}
	if err := validateURL(c.cfg.URL); err != nil {
		return err
	}
	if !c.started.CompareAndSwap(false, true) {
		return nil
	}

	c.wg.Add(2)
	go c.dispatchLoop()
	go c.supervise()
	return nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("%w: scheme %q (use ws or wss)", ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	return nil
}

// supervise owns the connection: one session at a time, reconnecting with
// backoff until Close.
func (c *Client) supervise() {
	defer c.wg.Done()

	backoff := c.cfg.ReconnectInterval
	for {
		if c.isClosed() {
			return
		}

		identified, err := c.runSession()
		c.teardown()

		if c.isClosed() {
			return
		}
		if identified {
			backoff = c.cfg.ReconnectInterval
		}

		c.logSessionEnd(err, backoff)

		select {
		case <-c.done.Done():
			return
		case <-time.After(backoff):
		}

		if !identified {
			backoff = time.Duration(float64(backoff) * 1.5)
			if backoff > maxReconnectInterval {
				backoff = maxReconnectInterval
			}
		}
	}
}

func (c *Client) logSessionEnd(err error, backoff time.Duration) {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) && closeErr.Code == closeAuthenticationFailed {
		c.logError("OBS rejected authentication, check obs.password", err)
		return
	}
	c.log().Warn("OBS connection lost, will reconnect", "error", err, "backoff", backoff.String())
}

// runSession dials OBS and runs the read loop until the connection fails.
// identified reports whether the session reached Ready.
func (c *Client) runSession() (identified bool, err error) {
	ctx, cancel := context.WithTimeout(c.ctx, c.cfg.ConnectTimeout)
	conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
	cancel()
	if err != nil {
		c.errorsTotal.Add(1)
		return false, fmt.Errorf("%w: dial %s: %w", ErrTransport, c.cfg.URL, err)
	}

	c.connMu.Lock()
	if c.isClosed() {
		c.connMu.Unlock()
		conn.Close()
		return false, ErrClosed
	}
	c.conn = conn
	c.connMu.Unlock()

	c.setState(StateAwaitingChallenge)
	c.log().Debug("connected, awaiting hello", "url", c.cfg.URL)

	// The handshake must finish within the connect timeout; the deadline is
	// lifted once identified.
	_ = conn.SetReadDeadline(time.Now().Add(c.cfg.ConnectTimeout))

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return identified, fmt.Errorf("%w: read: %w", ErrTransport, err)
		}
		c.messagesRx.Add(1)
		c.lastActivity.Store(time.Now().Unix())

		msg, err := Decode(data)
		if err != nil {
			c.errorsTotal.Add(1)
			c.logError("dropping malformed message", err)
			continue
		}

		if err := c.handle(conn, msg); err != nil {
			if errors.Is(err, ErrTransport) {
				return identified, err
			}
			c.errorsTotal.Add(1)
			c.logError("dropping unexpected message", err)
		}

		if !identified && c.State() == StateReady {
			identified = true
		}
	}
}

// handle is the per-opcode state machine. It runs on the read goroutine.
func (c *Client) handle(conn *websocket.Conn, msg Message) error {
	state := c.State()

	switch m := msg.(type) {
	case Hello:
		if state != StateAwaitingChallenge {
			return fmt.Errorf("%w: hello while %s", ErrProtocol, state)
		}
		if err := c.writeFrame(newIdentify(m, c.cfg.Password)); err != nil {
			return err
		}
		c.setState(StateAwaitingIdentified)

	case Identified:
		if state != StateAwaitingIdentified {
			return fmt.Errorf("%w: identified while %s", ErrProtocol, state)
		}
		_ = conn.SetReadDeadline(time.Time{})
		if c.sessions.Add(1) > 1 {
			c.reconnectsTotal.Add(1)
		}
		c.setState(StateReady)
		c.log().Info("identified with OBS", "rpc_version", m.NegotiatedRPCVersion)
		c.scheduleRefresh()

	case Event:
		if state != StateReady {
			return fmt.Errorf("%w: event %s while %s", ErrProtocol, m.Type, state)
		}
		c.dispatchEvent(m)
		if changesSceneList(m.Type) {
			c.scheduleRefresh()
		}

	case RequestResponse:
		c.resolve(m)
	}
	return nil
}

// teardown drops the connection and fails every in-flight request.
func (c *Client) teardown() {
	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	c.setState(StateDisconnected)

	c.pendingMu.Lock()
	pending := c.pending
	c.pending = make(map[string]chan result)
	c.pendingMu.Unlock()

	for id, ch := range pending {
		ch <- result{err: fmt.Errorf("%w: connection lost before response to %s", ErrTransport, id)}
	}
}

func (c *Client) setState(s State) {
	c.readyMu.Lock()
	old := State(c.state.Swap(int32(s)))
	if old == s {
		c.readyMu.Unlock()
		return
	}
	switch {
	case s == StateReady:
		close(c.readyCh)
	case old == StateReady:
		c.readyCh = make(chan struct{})
	}
	c.readyMu.Unlock()

	c.handlersMu.RLock()
	handlers := slices.Clone(c.stateHandlers)
	c.handlersMu.RUnlock()
	if len(handlers) == 0 {
		return
	}
	c.enqueue(func() {
		for _, h := range handlers {
			c.invoke("state handler", func() { h(s) })
		}
	})
}

// writeFrame encodes and sends one frame. A failed write closes the socket
// so the read loop notices and the supervisor reconnects.
func (c *Client) writeFrame(frame outgoing) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.connMu.RLock()
	conn := c.conn
	c.connMu.RUnlock()

	if conn == nil {
		return fmt.Errorf("%w: %w", ErrTransport, ErrNotConnected)
	}

	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return fmt.Errorf("%w: set deadline: %w", ErrTransport, err)
	}
	if err := conn.WriteJSON(frame); err != nil {
		c.errorsTotal.Add(1)
		conn.Close()
		return fmt.Errorf("%w: write: %w", ErrTransport, err)
	}

	c.messagesTx.Add(1)
	c.lastActivity.Store(time.Now().Unix())
	return nil
}

// request sends a correlated request and waits for its response.
func (c *Client) request(ctx context.Context, requestType string, data any) (RequestResponse, error) {
	if c.isClosed() {
		return RequestResponse{}, ErrClosed
	}
	if c.State() != StateReady {
		return RequestResponse{}, fmt.Errorf("%w: %w", ErrTransport, ErrNotConnected)
	}

	id := uuid.NewString()
	ch := make(chan result, 1)

	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()

	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	if err := c.writeFrame(newRequest(id, requestType, data)); err != nil {
		return RequestResponse{}, err
	}

	timer := time.NewTimer(c.cfg.RequestTimeout)
	defer timer.Stop()

	select {
	case r := <-ch:
		return r.resp, r.err
	case <-ctx.Done():
		return RequestResponse{}, ctx.Err()
	case <-timer.C:
		return RequestResponse{}, fmt.Errorf("%w: %s after %s", ErrRequestTimeout, requestType, c.cfg.RequestTimeout)
	case <-c.done.Done():
		return RequestResponse{}, ErrClosed
	}
}

// resolve hands a response to the waiting request, if any.
func (c *Client) resolve(m RequestResponse) {
	c.pendingMu.Lock()
	ch, ok := c.pending[m.ID]
	if ok {
		delete(c.pending, m.ID)
	}
	c.pendingMu.Unlock()

	if ok {
		ch <- result{resp: m}
		return
	}

	// One-way requests (scene switches) land here.
	if !m.Succeeded() {
		c.log().Warn("OBS rejected request",
			"request_type", m.Type, "code", m.Status.Code, "comment", m.Status.Comment)
		return
	}
	c.log().Debug("uncorrelated response", "request_type", m.Type, "request_id", m.ID)
}

// RequestSceneList fetches the full scene listing. On success the listing is
// also delivered to OnSceneList listeners.
func (c *Client) RequestSceneList(ctx context.Context) ([]string, error) {
	resp, err := c.request(ctx, RequestGetSceneList, nil)
	if err != nil {
		return nil, err
	}
	if !resp.Succeeded() {
		return nil, fmt.Errorf("%w: %s: code %d: %s",
			ErrRequestFailed, RequestGetSceneList, resp.Status.Code, resp.Status.Comment)
	}

	scenes, current, err := decodeSceneList(resp.Data)
	if err != nil {
		c.errorsTotal.Add(1)
		return nil, err
	}

	c.handlersMu.RLock()
	handlers := slices.Clone(c.sceneListHandlers)
	c.handlersMu.RUnlock()
	if len(handlers) > 0 {
		list := SceneList{Scenes: slices.Clone(scenes), Current: current}
		c.enqueue(func() {
			for _, h := range handlers {
				c.invoke("scene list handler", func() { h(list) })
			}
		})
	}

	return scenes, nil
}

// SwitchScene asks OBS to make name the program scene. It does not wait for
// confirmation; that arrives as a CurrentProgramSceneChanged event. The name
// is not checked against the listing.
func (c *Client) SwitchScene(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.isClosed() {
		return ErrClosed
	}
	if c.State() != StateReady {
		return fmt.Errorf("%w: %w", ErrTransport, ErrNotConnected)
	}

	data := struct {
		SceneName string `json:"sceneName"`
	}{SceneName: name}

	return c.writeFrame(newRequest(uuid.NewString(), RequestSetCurrentProgramScene, data))
}

// scheduleRefresh requests a fresh scene list in the background. Triggers
// that arrive while a refresh is running are coalesced into one more pass.
func (c *Client) scheduleRefresh() {
	c.refreshMu.Lock()
	if c.refreshing {
		c.refreshAgain = true
		c.refreshMu.Unlock()
		return
	}
	c.refreshing = true
	c.refreshMu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		for {
			ctx, cancel := context.WithTimeout(c.ctx, c.cfg.RequestTimeout)
			if _, err := c.RequestSceneList(ctx); err != nil && !c.isClosed() {
				c.logError("scene list refresh failed", err)
			}
			cancel()

			// The check and the release happen under one lock so a trigger
			// cannot land in between and be dropped.
			c.refreshMu.Lock()
			if !c.refreshAgain || c.isClosed() {
				c.refreshing = false
				c.refreshAgain = false
				c.refreshMu.Unlock()
				return
			}
			c.refreshAgain = false
			c.refreshMu.Unlock()
		}
	}()
}

func (c *Client) dispatchEvent(e Event) {
	c.handlersMu.RLock()
	handlers := slices.Clone(c.eventHandlers[e.Type])
	c.handlersMu.RUnlock()
	if len(handlers) == 0 {
		return
	}

	c.enqueue(func() {
		for _, h := range handlers {
			c.invoke("event handler", func() { h(e) })
		}
	})
}

// enqueue hands fn to the dispatch goroutine without blocking.
func (c *Client) enqueue(fn func()) {
	select {
	case c.queue <- fn:
	default:
		c.dispatchDropped.Add(1)
		c.errorsTotal.Add(1)
		c.log().Warn("dispatch queue full, dropping item")
	}
}

func (c *Client) dispatchLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.done.Done():
			c.drainQueue()
			return
		case fn := <-c.queue:
			fn()
		}
	}
}

func (c *Client) drainQueue() {
	for {
		select {
		case <-c.queue:
		default:
			return
		}
	}
}

// invoke runs a listener, recovering panics.
func (c *Client) invoke(kind string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.logError(kind+" panic", fmt.Errorf("%v", r))
		}
	}()
	fn()
}

// OnEvent registers a listener for eventType. Listeners for the same type
// run in registration order.
func (c *Client) OnEvent(eventType string, handler EventHandler) {
	c.handlersMu.Lock()
	c.eventHandlers[eventType] = append(c.eventHandlers[eventType], handler)
	c.handlersMu.Unlock()
}

// OnSceneList registers a listener for every successful scene listing,
// including the one fetched automatically after each identify.
func (c *Client) OnSceneList(handler func(SceneList)) {
	c.handlersMu.Lock()
	c.sceneListHandlers = append(c.sceneListHandlers, handler)
	c.handlersMu.Unlock()
}

// OnStateChange registers a listener for connection state transitions.
func (c *Client) OnStateChange(handler func(State)) {
	c.handlersMu.Lock()
	c.stateHandlers = append(c.stateHandlers, handler)
	c.handlersMu.Unlock()
}

// WaitReady blocks until the client is identified, ctx ends, or the client
// is closed.
func (c *Client) WaitReady(ctx context.Context) error {
	c.readyMu.Lock()
	ch := c.readyCh
	c.readyMu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done.Done():
		return ErrClosed
	}
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	return State(c.state.Load())
}

// Stats returns current operational statistics.
func (c *Client) Stats() Stats {
	return Stats{
		MessagesTx:      c.messagesTx.Load(),
		MessagesRx:      c.messagesRx.Load(),
		DispatchDropped: c.dispatchDropped.Load(),
		ErrorsTotal:     c.errorsTotal.Load(),
		ReconnectsTotal: c.reconnectsTotal.Load(),
		LastActivity:    time.Unix(c.lastActivity.Load(), 0),
		State:           c.State(),
	}
}

// Close stops reconnection, closes the socket, and waits for all client
// goroutines. Safe to call multiple times.
func (c *Client) Close() error {
	c.done.Close()
	c.cancel()

	c.connMu.Lock()
	if c.conn != nil {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.conn.Close()
	}
	c.connMu.Unlock()

	c.wg.Wait()
	return nil
}

func (c *Client) isClosed() bool {
	select {
	case <-c.done.Done():
		return true
	default:
		return false
	}
}

// SetLogger sets the logger for this client.
func (c *Client) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

func (c *Client) log() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

func (c *Client) logError(msg string, err error) {
	c.log().Error(msg, "error", err)
}
