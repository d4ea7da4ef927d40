// Package transport maintains the push channel to the portal: STOMP 1.2
// frames carried over a WebSocket, with negotiated heartbeats, the three
// dashboard subscriptions and reconnect-with-backoff.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-stomp/stomp/v3/frame"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/order-desk/console/internal/order"
)

const (
	writeTimeout = 10 * time.Second
	// A peer is considered gone after this many missed heartbeat intervals.
	heartbeatTolerance = 2
)

// ConnectionState is the lifecycle state of the push channel.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	}
	return "unknown"
}

// Options configures a Client.
type Options struct {
	HeartbeatOutgoing time.Duration
	HeartbeatIncoming time.Duration
	ConnectTimeout    time.Duration
	BaseDelay         time.Duration
	MaxAttempts       int

	// Header is sent with the WebSocket upgrade (session cookie, auth).
	Header http.Header
	// ConnectHeaders are added to the STOMP CONNECT frame (CSRF token).
	ConnectHeaders map[string]string
	// Topics defaults to order.Topics.
	Topics []string

	Logger *slog.Logger
}

// Handlers receive decoded push events. They are called from the client's
// read goroutine in the order frames arrive; nil handlers are skipped.
type Handlers struct {
	OnCounters           func(order.CounterSnapshot)
	OnOrderUpdate        func(order.OrderEvent)
	OnNewOrder           func(order.OrderEvent)
	OnOrderModified      func(order.OrderEvent)
	OnAlert              func(order.AlertEvent)
	OnConnectionStatus   func(connected bool)
	OnReconnectScheduled func(attempt int, delay time.Duration)
	OnGiveUp             func(attempts int)
}

type stopper interface {
	Stop() bool
}

// Client manages one STOMP session at a time. There is exactly one
// Client per process.
type Client struct {
	url      string
	opts     Options
	handlers Handlers
	log      *slog.Logger
	dialer   *websocket.Dialer

	// afterFunc schedules reconnect attempts; replaced in tests.
	afterFunc func(time.Duration, func()) stopper

	mu        sync.Mutex
	writeMu   sync.Mutex // serialises all conn writes (frames, heartbeats)
	state     ConnectionState
	conn      *websocket.Conn
	cancel    context.CancelFunc // stops the active connection's loops
	attempts  int
	closed    bool // deliberate Close; suppresses reconnect
	retry     stopper
	reported  bool // last value passed to OnConnectionStatus
	subs      map[string]string
	heartbeat [2]time.Duration // negotiated outgoing, incoming
}

// New creates a client for the given ws:// or wss:// URL. It does not
// connect until Connect is called.
func New(rawURL string, opts Options, handlers Handlers) *Client {
	if len(opts.Topics) == 0 {
		opts.Topics = order.Topics
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 15 * time.Second
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 3 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		url:      rawURL,
		opts:     opts,
		handlers: handlers,
		log:      logger.With("component", "transport"),
		dialer: &websocket.Dialer{
			HandshakeTimeout: opts.ConnectTimeout,
			Proxy:            http.ProxyFromEnvironment,
		},
		afterFunc: func(d time.Duration, f func()) stopper { return time.AfterFunc(d, f) },
		subs:      make(map[string]string),
	}
}

// State returns the current connection state.
func (c *Client) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Attempts returns the number of consecutive failed connection attempts.
func (c *Client) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// Heartbeats returns the negotiated outgoing and incoming intervals of the
// current session; zero means disabled.
func (c *Client) Heartbeats() (out, in time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.heartbeat[0], c.heartbeat[1]
}

// Connect opens the WebSocket, performs the STOMP handshake and subscribes
// to the dashboard topics. On failure a retry is scheduled before the
// error is returned. Calling Connect while a session is open or being
// opened is a no-op.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.New("transport closed")
	}
	if c.state != Disconnected {
		c.mu.Unlock()
		return nil
	}
	c.state = Connecting
	c.mu.Unlock()

	conn, out, in, err := c.handshake(ctx)
	if err != nil {
		c.mu.Lock()
		c.state = Disconnected
		c.mu.Unlock()
		c.log.Warn("connect failed", "url", c.url, "err", err)
		c.scheduleReconnect()
		return err
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		cancel()
		conn.Close()
		return errors.New("transport closed")
	}
	c.conn = conn
	c.cancel = cancel
	c.state = Connected
	c.attempts = 0
	c.heartbeat = [2]time.Duration{out, in}
	c.mu.Unlock()

	if err := c.subscribeToChannels(conn); err != nil {
		c.log.Warn("subscribe failed", "err", err)
		c.handleDrop(conn, err)
		return err
	}

	go c.readLoop(loopCtx, conn, in)
	go c.heartbeatLoop(loopCtx, conn, out)

	c.log.Info("connected", "url", c.url, "heartbeat_out", out, "heartbeat_in", in)
	c.setReported(true)
	return nil
}

// Reconnect clears the attempt counter and connects again. It is the
// manual path after the attempt cap was reached.
func (c *Client) Reconnect(ctx context.Context) error {
	c.mu.Lock()
	c.closed = false
	c.attempts = 0
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
	c.mu.Unlock()
	return c.Connect(ctx)
}

// Close ends the session deliberately. No reconnect is scheduled.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
	conn := c.conn
	c.conn = nil
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.state = Disconnected
	c.mu.Unlock()

	if conn == nil {
		c.setReported(false)
		return nil
	}

	_ = c.sendFrame(conn, frame.New(frame.DISCONNECT, "receipt", uuid.NewString()))
	c.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeTimeout))
	c.writeMu.Unlock()
	err := conn.Close()
	c.setReported(false)
	return err
}

func (c *Client) handshake(ctx context.Context) (*websocket.Conn, time.Duration, time.Duration, error) {
	dialCtx, cancel := context.WithTimeout(ctx, c.opts.ConnectTimeout)
	defer cancel()

	conn, resp, err := c.dialer.DialContext(dialCtx, c.url, c.opts.Header)
	if err != nil {
		if resp != nil {
			return nil, 0, 0, fmt.Errorf("dial %s: %s: %w", c.url, resp.Status, err)
		}
		return nil, 0, 0, fmt.Errorf("dial %s: %w", c.url, err)
	}

	connect := frame.New(frame.CONNECT,
		"accept-version", "1.2,1.1,1.0",
		"host", hostOf(c.url),
		"heart-beat", formatHeartbeat(c.opts.HeartbeatOutgoing, c.opts.HeartbeatIncoming),
	)
	for k, v := range c.opts.ConnectHeaders {
		connect.Header.Add(k, v)
	}
	if err := c.sendFrame(conn, connect); err != nil {
		conn.Close()
		return nil, 0, 0, fmt.Errorf("send CONNECT: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(c.opts.ConnectTimeout))
	f, err := readFirstFrame(conn)
	if err != nil {
		conn.Close()
		return nil, 0, 0, fmt.Errorf("await CONNECTED: %w", err)
	}
	switch f.Command {
	case frame.CONNECTED:
	case frame.ERROR:
		conn.Close()
		return nil, 0, 0, fmt.Errorf("server refused session: %s", f.Header.Get("message"))
	default:
		conn.Close()
		return nil, 0, 0, fmt.Errorf("unexpected %s frame during handshake", f.Command)
	}
	conn.SetReadDeadline(time.Time{})

	out, in := negotiateHeartbeat(c.opts.HeartbeatOutgoing, c.opts.HeartbeatIncoming, f.Header.Get("heart-beat"))
	return conn, out, in, nil
}

// readFirstFrame skips heartbeat-only messages until a real frame arrives.
func readFirstFrame(conn *websocket.Conn) (*frame.Frame, error) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		frames, err := decodeFrames(data)
		if err != nil {
			return nil, err
		}
		if len(frames) > 0 {
			return frames[0], nil
		}
	}
}

// subscribeToChannels registers the dashboard topics on a fresh session.
func (c *Client) subscribeToChannels(conn *websocket.Conn) error {
	subs := make(map[string]string, len(c.opts.Topics))
	for _, dest := range c.opts.Topics {
		id := "sub-" + uuid.NewString()
		f := frame.New(frame.SUBSCRIBE, "id", id, "destination", dest, "ack", "auto")
		if err := c.sendFrame(conn, f); err != nil {
			return fmt.Errorf("subscribe %s: %w", dest, err)
		}
		subs[id] = dest
	}
	c.mu.Lock()
	c.subs = subs
	c.mu.Unlock()
	return nil
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn, in time.Duration) {
	extend := func() {
		if in > 0 {
			conn.SetReadDeadline(time.Now().Add(in * heartbeatTolerance))
		}
	}
	extend()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				c.handleDrop(conn, err)
			}
			return
		}
		extend()

		frames, err := decodeFrames(data)
		if err != nil {
			c.log.Warn("dropping undecodable frame", "err", err, "bytes", len(data))
		}
		for _, f := range frames {
			if err := c.handleFrame(f); err != nil {
				c.handleDrop(conn, err)
				return
			}
		}
	}
}

func (c *Client) heartbeatLoop(ctx context.Context, conn *websocket.Conn, out time.Duration) {
	if out <= 0 {
		return
	}
	ticker := time.NewTicker(out)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.write(conn, []byte("\n")); err != nil {
				c.log.Debug("heartbeat write failed", "err", err)
				return
			}
		}
	}
}

func (c *Client) handleFrame(f *frame.Frame) error {
	switch f.Command {
	case frame.MESSAGE:
		dest := f.Header.Get("destination")
		if dest == "" {
			c.mu.Lock()
			dest = c.subs[f.Header.Get("subscription")]
			c.mu.Unlock()
		}
		c.dispatch(dest, f.Body)
	case frame.ERROR:
		return fmt.Errorf("server error frame: %s", f.Header.Get("message"))
	case frame.RECEIPT:
		c.log.Debug("receipt", "id", f.Header.Get("receipt-id"))
	default:
		c.log.Debug("ignoring frame", "command", f.Command)
	}
	return nil
}

// dispatch decodes a MESSAGE body for its destination. Malformed payloads
// are logged and dropped; the channel stays up.
func (c *Client) dispatch(dest string, body []byte) {
	switch dest {
	case order.TopicCounters:
		var counters order.CounterSnapshot
		if err := json.Unmarshal(body, &counters); err != nil {
			c.log.Warn("malformed counters payload", "err", err)
			return
		}
		if c.handlers.OnCounters != nil {
			c.handlers.OnCounters(counters.Normalize())
		}

	case order.TopicOrders:
		var ev order.OrderEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			c.log.Warn("malformed order event", "err", err)
			return
		}
		if ev.OrderID == 0 {
			ev.OrderID = ev.OrderData.ID
		}
		if ev.OrderData.ID == 0 {
			ev.OrderData.ID = ev.OrderID
		}
		var h func(order.OrderEvent)
		switch ev.EventType {
		case order.EventStatusChanged:
			h = c.handlers.OnOrderUpdate
		case order.EventNewOrder:
			h = c.handlers.OnNewOrder
		case order.EventOrderModified:
			h = c.handlers.OnOrderModified
		default:
			c.log.Warn("unknown order event type", "type", ev.EventType, "order", ev.OrderID)
			return
		}
		if h != nil {
			h(ev)
		}

	case order.TopicAlerts:
		var alert order.AlertEvent
		if err := json.Unmarshal(body, &alert); err != nil {
			c.log.Warn("malformed alert payload", "err", err)
			return
		}
		if c.handlers.OnAlert != nil {
			c.handlers.OnAlert(alert)
		}

	default:
		c.log.Debug("message for unknown destination", "destination", dest)
	}
}

// handleDrop tears down conn after an unexpected error and schedules a
// reconnect unless the close was deliberate.
func (c *Client) handleDrop(conn *websocket.Conn, err error) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.state = Disconnected
	deliberate := c.closed || websocket.IsCloseError(err, websocket.CloseNormalClosure)
	c.mu.Unlock()

	conn.Close()
	c.log.Warn("connection lost", "err", err, "deliberate", deliberate)
	c.setReported(false)
	if !deliberate {
		c.scheduleReconnect()
	}
}

// scheduleReconnect arms the next attempt or gives up at the cap.
func (c *Client) scheduleReconnect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.attempts++
	attempt := c.attempts
	if c.opts.MaxAttempts > 0 && attempt > c.opts.MaxAttempts {
		c.mu.Unlock()
		c.log.Error("reconnect attempts exhausted", "attempts", attempt-1)
		if c.handlers.OnGiveUp != nil {
			c.handlers.OnGiveUp(attempt - 1)
		}
		return
	}
	delay := Backoff(c.opts.BaseDelay, attempt)
	if c.retry != nil {
		c.retry.Stop()
	}
	c.retry = c.afterFunc(delay, func() {
		_ = c.Connect(context.Background())
	})
	c.mu.Unlock()

	c.log.Info("reconnect scheduled", "attempt", attempt, "delay", delay)
	if c.handlers.OnReconnectScheduled != nil {
		c.handlers.OnReconnectScheduled(attempt, delay)
	}
}

func (c *Client) setReported(connected bool) {
	c.mu.Lock()
	changed := c.reported != connected
	c.reported = connected
	c.mu.Unlock()
	if changed && c.handlers.OnConnectionStatus != nil {
		c.handlers.OnConnectionStatus(connected)
	}
}

func (c *Client) sendFrame(conn *websocket.Conn, f *frame.Frame) error {
	var buf bytes.Buffer
	if err := frame.NewWriter(&buf).Write(f); err != nil {
		return err
	}
	return c.write(conn, buf.Bytes())
}

func (c *Client) write(conn *websocket.Conn, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// Backoff returns the delay before the given 1-based attempt:
// base, 2·base, 4·base, ...
func Backoff(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	shift := min(attempt-1, 16)
	return base * time.Duration(1<<shift)
}

// decodeFrames splits one WebSocket message into STOMP frames. Heartbeat
// newlines produce no frames.
func decodeFrames(data []byte) ([]*frame.Frame, error) {
	r := frame.NewReader(bytes.NewReader(data))
	var frames []*frame.Frame
	for {
		f, err := r.Read()
		if errors.Is(err, io.EOF) {
			return frames, nil
		}
		if err != nil {
			return frames, err
		}
		if f != nil {
			frames = append(frames, f)
		}
	}
}

// negotiateHeartbeat applies the STOMP rule: each direction uses the
// larger of what one side offers and the other wants, or zero if either
// side declines.
func negotiateHeartbeat(clientOut, clientIn time.Duration, server string) (out, in time.Duration) {
	parts := strings.Split(strings.TrimSpace(server), ",")
	if len(parts) != 2 {
		return 0, 0
	}
	sx, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	sy, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil || sx < 0 || sy < 0 {
		return 0, 0
	}
	serverOut := time.Duration(sx) * time.Millisecond
	serverIn := time.Duration(sy) * time.Millisecond

	if clientOut > 0 && serverIn > 0 {
		out = max(clientOut, serverIn)
	}
	if clientIn > 0 && serverOut > 0 {
		in = max(clientIn, serverOut)
	}
	return out, in
}

func formatHeartbeat(out, in time.Duration) string {
	return fmt.Sprintf("%d,%d", out.Milliseconds(), in.Milliseconds())
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
