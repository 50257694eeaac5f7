package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// State is the connection lifecycle phase. Transitions are strictly
// sequential: Disconnected -> Connecting -> Open -> Closing ->
// Disconnected.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateOpen         State = "open"
	StateClosing      State = "closing"
)

const (
	// Time allowed for the server to accept a connection attempt.
	connectTimeout = 5 * time.Second

	// Heartbeat ping period while the channel is open.
	defaultHeartbeatPeriod = 30 * time.Second

	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	baseReconnectDelay   = 1 * time.Second
	maxReconnectDelay    = 30 * time.Second
	maxReconnectAttempts = 5

	// Close reason sent on deliberate local disconnects.
	manualCloseReason = "manual disconnect"
)

var (
	// ErrNotConnected is returned when an outbound frame is dropped
	// because the channel is not open. Dropped frames are not queued.
	ErrNotConnected = errors.New("live update channel is not open")

	// ErrConnectTimeout is returned when the open state was not
	// reached within the establishment window.
	ErrConnectTimeout = errors.New("connection establishment timed out")
)

// TokenSource resolves the bearer credential presented on connect
type TokenSource interface {
	ResolveToken() (string, bool)
}

// UpdateHandler receives inbound topic updates for reconciliation
type UpdateHandler interface {
	HandleUpdate(topic Topic, action Action, entityID int, payload json.RawMessage)
}

// Conn is the subset of *websocket.Conn the client depends on
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// Dialer opens a websocket connection; swapped for a double in tests
type Dialer interface {
	Dial(url string) (Conn, error)
}

type websocketDialer struct{}

func (websocketDialer) Dial(rawURL string) (Conn, error) {
	d := websocket.Dialer{HandshakeTimeout: connectTimeout}
	conn, _, err := d.Dial(rawURL, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Timer is a cancellable pending callback
type Timer interface {
	Stop() bool
}

// TimerFactory schedules fn after d; swapped for a double in tests
type TimerFactory func(d time.Duration, fn func()) Timer

func defaultTimerFactory(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// Client maintains the single authenticated websocket connection to
// the sync server, dispatches inbound topic updates to the handler and
// reconnects with exponential backoff on abnormal closes.
type Client struct {
	// Injected collaborators; set before Connect
	Dialer          Dialer
	NewTimer        TimerFactory
	HeartbeatPeriod time.Duration

	endpoint string
	tokens   TokenSource
	handler  UpdateHandler

	mu      sync.Mutex
	writeMu sync.Mutex

	conn              Conn
	state             State
	gen               int
	reconnectAttempts int
	manualClose       bool
	dialTimedOut      bool
	lastPongAt        time.Time

	connectTimer   Timer
	reconnectTimer Timer
	heartbeatStop  chan struct{}

	nextObserverID int
	stateObservers map[int]func(connected bool)
	errorObservers map[int]func(message string)
}

// NewClient creates a disconnected channel client. tokens may be nil,
// in which case the connection is attempted anonymously and the server
// is expected to reject it.
func NewClient(endpoint string, tokens TokenSource, handler UpdateHandler) *Client {
	return &Client{
		Dialer:          websocketDialer{},
		NewTimer:        defaultTimerFactory,
		HeartbeatPeriod: defaultHeartbeatPeriod,
		endpoint:        endpoint,
		tokens:          tokens,
		handler:         handler,
		state:           StateDisconnected,
		stateObservers:  make(map[int]func(bool)),
		errorObservers:  make(map[int]func(string)),
	}
}

// Connect tears down any existing connection and dials the server.
// Safe to call in any state. On an abnormal failure the client keeps
// retrying on its own up to the attempt cap.
func (c *Client) Connect() error {
	c.teardown()

	c.mu.Lock()
	c.manualClose = false
	c.dialTimedOut = false
	c.state = StateConnecting
	gen := c.gen

	wsURL, err := c.buildURL()
	if err != nil {
		c.state = StateDisconnected
		c.mu.Unlock()
		return err
	}
	c.connectTimer = c.NewTimer(connectTimeout, func() { c.onConnectTimeout(gen) })
	c.mu.Unlock()

	log.Printf("🔌 Connecting to live update channel at %s", redactToken(wsURL))
	conn, dialErr := c.Dialer.Dial(wsURL)

	c.mu.Lock()
	if gen != c.gen {
		// Superseded by a newer Connect or a Disconnect while dialing
		c.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return nil
	}
	stopTimer(&c.connectTimer)

	if dialErr != nil || c.dialTimedOut {
		if dialErr == nil {
			conn.Close()
			dialErr = ErrConnectTimeout
		}
		c.state = StateDisconnected
		c.mu.Unlock()

		log.Printf("❌ Live channel connection failed: %v", dialErr)
		c.notifyState(false)
		c.scheduleReconnect()
		return dialErr
	}

	c.conn = conn
	c.state = StateOpen
	c.reconnectAttempts = 0
	c.lastPongAt = time.Time{}
	stop := make(chan struct{})
	c.heartbeatStop = stop
	c.mu.Unlock()

	log.Println("✅ Connected to real-time sync server")
	c.notifyState(true)
	c.subscribeAll()
	go c.heartbeatLoop(stop)
	go c.readLoop(gen, conn)
	return nil
}

// Disconnect deliberately closes the channel. No reconnect is
// scheduled. Safe to call repeatedly and when never connected.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.manualClose = true
	c.mu.Unlock()

	log.Println("🛑 Disconnecting live update channel")
	c.teardown()
	c.notifyState(false)
}

// Reconnect resets the attempt counter and dials again; used for
// manual recovery after the automatic attempts are exhausted.
func (c *Client) Reconnect() error {
	c.mu.Lock()
	c.reconnectAttempts = 0
	c.mu.Unlock()
	return c.Connect()
}

// Send broadcasts a local mutation on the channel. If the channel is
// not open the frame is dropped with a warning; outbound updates are
// never queued here (offline capture exists only for sales, in the
// transaction flow).
func (c *Client) Send(topic Topic, action Action, payload any) error {
	c.mu.Lock()
	open := c.state == StateOpen && c.conn != nil
	c.mu.Unlock()

	if !open {
		log.Printf("⚠️ Cannot send %s_update: %v", topic, ErrNotConnected)
		return ErrNotConnected
	}

	frame := map[string]any{
		"type":        string(topic) + "_update",
		"action":      action,
		string(topic): payload,
	}
	return c.writeJSON(frame)
}

// State returns the current lifecycle phase
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connected reports whether the channel is open
func (c *Client) Connected() bool {
	return c.State() == StateOpen
}

// LastPongAt returns the time of the last heartbeat response, zero if
// none was received on the current connection.
func (c *Client) LastPongAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastPongAt
}

// OnConnectionChange registers a connection-state observer and returns
// its unsubscribe handle.
func (c *Client) OnConnectionChange(fn func(connected bool)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextObserverID
	c.nextObserverID++
	c.stateObservers[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.stateObservers, id)
	}
}

// OnChannelError registers an observer for server-reported errors and
// terminal reconnect failures.
func (c *Client) OnChannelError(fn func(message string)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextObserverID
	c.nextObserverID++
	c.errorObservers[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.errorObservers, id)
	}
}

// teardown closes any live socket with the manual-disconnect sentinel
// and cancels every pending timer. Bumping the generation makes the
// old read loop's close handling a no-op.
func (c *Client) teardown() {
	c.mu.Lock()
	c.gen++
	stopTimer(&c.reconnectTimer)
	stopTimer(&c.connectTimer)
	if c.heartbeatStop != nil {
		close(c.heartbeatStop)
		c.heartbeatStop = nil
	}
	conn := c.conn
	c.conn = nil
	if conn != nil {
		c.state = StateClosing
	} else {
		c.state = StateDisconnected
	}
	c.mu.Unlock()

	if conn != nil {
		deadline := time.Now().Add(writeWait)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, manualCloseReason)
		_ = conn.WriteControl(websocket.CloseMessage, msg, deadline)
		_ = conn.Close()

		c.mu.Lock()
		c.state = StateDisconnected
		c.mu.Unlock()
	}
}

func (c *Client) onConnectTimeout(gen int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || c.state != StateConnecting {
		return
	}
	// The dial in flight observes this flag and aborts the half-open
	// attempt when it returns.
	c.dialTimedOut = true
	log.Println("⏱️ Live channel connection timeout")
}

// readLoop pumps inbound frames until the transport fails. One
// malformed frame is skipped, never fatal to the connection.
func (c *Client) readLoop(gen int, conn Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleClose(gen, err)
			return
		}
		c.handleMessage(data)
	}
}

// handleClose owns all reconnect scheduling. Transport errors surface
// here through the read loop, so an error can never schedule a second
// parallel reconnect.
func (c *Client) handleClose(gen int, cause error) {
	c.mu.Lock()
	if gen != c.gen {
		// A deliberate teardown already handled this connection
		c.mu.Unlock()
		return
	}
	stopTimer(&c.connectTimer)
	if c.heartbeatStop != nil {
		close(c.heartbeatStop)
		c.heartbeatStop = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.state = StateDisconnected
	manual := c.manualClose
	c.mu.Unlock()

	log.Printf("🔌 Disconnected from real-time sync server: %v", cause)
	c.notifyState(false)

	if !manual {
		c.scheduleReconnect()
	}
}

func (c *Client) scheduleReconnect() {
	c.mu.Lock()
	if c.reconnectAttempts >= maxReconnectAttempts {
		c.mu.Unlock()
		log.Println("❌ Max reconnection attempts reached; manual reconnect required")
		c.notifyError("live updates suspended: max reconnection attempts reached")
		return
	}

	delay := baseReconnectDelay << uint(c.reconnectAttempts)
	if delay > maxReconnectDelay {
		delay = maxReconnectDelay
	}
	attempt := c.reconnectAttempts + 1

	stopTimer(&c.reconnectTimer)
	c.reconnectTimer = c.NewTimer(delay, func() {
		c.mu.Lock()
		c.reconnectAttempts++
		c.mu.Unlock()
		_ = c.Connect()
	})
	c.mu.Unlock()

	log.Printf("🔄 Reconnecting in %v (attempt %d/%d)", delay, attempt, maxReconnectAttempts)
}

func (c *Client) heartbeatLoop(stop chan struct{}) {
	ticker := time.NewTicker(c.HeartbeatPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if c.State() != StateOpen {
				continue
			}
			if err := c.writeJSON(map[string]string{"type": "ping"}); err != nil {
				log.Printf("⚠️ Heartbeat write failed: %v", err)
			}
		case <-stop:
			return
		}
	}
}

func (c *Client) subscribeAll() {
	for _, topic := range Topics {
		if err := c.writeJSON(map[string]string{"type": subscribeType(topic)}); err != nil {
			log.Printf("⚠️ Failed to subscribe to %s updates: %v", topic, err)
		}
	}
}

func subscribeType(topic Topic) string {
	switch topic {
	case TopicProduct:
		return "subscribe_products"
	case TopicSale:
		return "subscribe_sales"
	case TopicInventory:
		return "subscribe_inventory"
	case TopicWarehouse:
		return "subscribe_warehouses"
	}
	return "subscribe_" + string(topic)
}

func (c *Client) handleMessage(data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Printf("⚠️ Skipping malformed channel frame: %v", err)
		return
	}

	switch env.Type {
	case msgConnectionEstablished:
		log.Printf("✅ Live channel confirmed: %s", env.Message)
	case msgSubscriptionSuccess:
		log.Printf("✅ Subscription confirmed: %s", env.Message)
	case msgPong:
		c.mu.Lock()
		c.lastPongAt = time.Now()
		c.mu.Unlock()
	case msgError:
		log.Printf("❌ Live channel server error: %s", env.Message)
		c.notifyError(env.Message)
	default:
		topic, ok := updateTopic(env.Type)
		if !ok {
			log.Printf("❓ Unknown channel frame type %q", env.Type)
			return
		}
		if c.handler == nil {
			return
		}
		payload, hint := env.payloadFor(topic)
		c.handler.HandleUpdate(topic, env.Action, entityID(payload, hint), payload)
	}
}

func (c *Client) writeJSON(v any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode channel frame: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) buildURL() (string, error) {
	endpoint := c.endpoint
	if strings.HasPrefix(endpoint, "http") {
		endpoint = "ws" + strings.TrimPrefix(endpoint, "http")
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid websocket endpoint %q: %w", c.endpoint, err)
	}
	u.Path = "/ws/socket-server/"

	if c.tokens != nil {
		if token, ok := c.tokens.ResolveToken(); ok {
			q := u.Query()
			q.Set("token", token)
			u.RawQuery = q.Encode()
		} else {
			log.Println("⚠️ No valid credential found; connecting anonymously, server may reject")
		}
	}
	return u.String(), nil
}

func (c *Client) notifyState(connected bool) {
	c.mu.Lock()
	observers := make([]func(bool), 0, len(c.stateObservers))
	for _, fn := range c.stateObservers {
		observers = append(observers, fn)
	}
	c.mu.Unlock()

	for _, fn := range observers {
		fn(connected)
	}
}

func (c *Client) notifyError(message string) {
	c.mu.Lock()
	observers := make([]func(string), 0, len(c.errorObservers))
	for _, fn := range c.errorObservers {
		observers = append(observers, fn)
	}
	c.mu.Unlock()

	for _, fn := range observers {
		fn(message)
	}
}

func stopTimer(t *Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

// redactToken hides the credential in connection log lines
func redactToken(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	if q.Get("token") != "" {
		q.Set("token", "[TOKEN]")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
