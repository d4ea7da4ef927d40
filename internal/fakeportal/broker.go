package fakeportal

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-stomp/stomp/v3/frame"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const sendBuffer = 64

// stompSession is one connected STOMP client. All writes go through send
// and are performed by writePump.
type stompSession struct {
	conn *websocket.Conn
	send chan []byte

	mu   sync.Mutex
	subs map[string]string // subscription id -> destination
}

func (s *stompSession) writePump(heartbeat time.Duration) {
	defer s.conn.Close()
	var tick <-chan time.Time
	if heartbeat > 0 {
		t := time.NewTicker(heartbeat)
		defer t.Stop()
		tick = t.C
	}
	for {
		select {
		case msg, ok := <-s.send:
			if !ok {
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-tick:
			if err := s.conn.WriteMessage(websocket.TextMessage, []byte("\n")); err != nil {
				return
			}
		}
	}
}

func (s *stompSession) subscribed(dest string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, d := range s.subs {
		if d == dest {
			ids = append(ids, id)
		}
	}
	return ids
}

// BrokerOptions configures a Broker.
type BrokerOptions struct {
	// Heartbeat is offered in both directions on CONNECTED. Zero disables.
	Heartbeat time.Duration
	// When CSRFToken is set, CONNECT must carry it in CSRFHeader.
	CSRFHeader string
	CSRFToken  string
	Logger     *slog.Logger
}

// Broker is a minimal STOMP 1.2 server over WebSocket: CONNECT,
// SUBSCRIBE, UNSUBSCRIBE and DISCONNECT from clients, MESSAGE fan-out to
// subscribers of a destination.
type Broker struct {
	opts     BrokerOptions
	log      *slog.Logger
	upgrader websocket.Upgrader

	mu       sync.RWMutex
	sessions map[*stompSession]bool
}

// NewBroker creates a broker with no sessions.
func NewBroker(opts BrokerOptions) *Broker {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Broker{
		opts:     opts,
		log:      logger.With("component", "broker"),
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		sessions: make(map[*stompSession]bool),
	}
}

// ServeHTTP upgrades the request and runs the session until the client
// disconnects.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.log.Warn("upgrade failed", "err", err)
		return
	}

	connect, err := b.awaitConnect(conn)
	if err != nil {
		b.log.Warn("handshake failed", "remote", r.RemoteAddr, "err", err)
		writeFrame(conn, frame.New(frame.ERROR, "message", err.Error()))
		conn.Close()
		return
	}

	serverHB := formatMillis(b.opts.Heartbeat)
	if err := writeFrame(conn, frame.New(frame.CONNECTED,
		"version", "1.2",
		"server", "portal-mock",
		"heart-beat", serverHB+","+serverHB,
	)); err != nil {
		conn.Close()
		return
	}

	s := &stompSession{
		conn: conn,
		send: make(chan []byte, sendBuffer),
		subs: make(map[string]string),
	}
	b.mu.Lock()
	b.sessions[s] = true
	b.mu.Unlock()
	go s.writePump(outgoingHeartbeat(b.opts.Heartbeat, connect.Header.Get("heart-beat")))
	b.log.Info("session opened", "remote", r.RemoteAddr)

	defer func() {
		b.remove(s)
		b.log.Info("session closed", "remote", r.RemoteAddr)
	}()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		frames, err := decode(data)
		if err != nil {
			b.log.Warn("undecodable frame", "err", err)
			continue
		}
		for _, f := range frames {
			if !b.handle(s, f) {
				return
			}
		}
	}
}

func (b *Broker) awaitConnect(conn *websocket.Conn) (*frame.Frame, error) {
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	defer conn.SetReadDeadline(time.Time{})
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		frames, err := decode(data)
		if err != nil {
			return nil, err
		}
		if len(frames) == 0 {
			continue
		}
		f := frames[0]
		if f.Command != frame.CONNECT && f.Command != frame.STOMP {
			return nil, fmt.Errorf("expected CONNECT, got %s", f.Command)
		}
		if b.opts.CSRFToken != "" && f.Header.Get(b.opts.CSRFHeader) != b.opts.CSRFToken {
			return nil, errors.New("invalid CSRF token")
		}
		return f, nil
	}
}

// handle processes one client frame. It returns false when the session
// should end.
func (b *Broker) handle(s *stompSession, f *frame.Frame) bool {
	switch f.Command {
	case frame.SUBSCRIBE:
		id, dest := f.Header.Get("id"), f.Header.Get("destination")
		if id == "" || dest == "" {
			b.enqueue(s, frame.New(frame.ERROR, "message", "SUBSCRIBE requires id and destination"))
			return false
		}
		s.mu.Lock()
		s.subs[id] = dest
		s.mu.Unlock()
		b.log.Debug("subscribed", "id", id, "destination", dest)
	case frame.UNSUBSCRIBE:
		s.mu.Lock()
		delete(s.subs, f.Header.Get("id"))
		s.mu.Unlock()
	case frame.DISCONNECT:
		if receipt := f.Header.Get("receipt"); receipt != "" {
			b.enqueue(s, frame.New(frame.RECEIPT, "receipt-id", receipt))
		}
		return false
	case frame.SEND:
		b.log.Debug("ignoring SEND", "destination", f.Header.Get("destination"))
	default:
		b.log.Debug("ignoring frame", "command", f.Command)
	}
	return true
}

// Publish sends payload as JSON to every subscriber of dest. Sessions
// that cannot keep up are disconnected.
func (b *Broker) Publish(dest string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("publish %s: %w", dest, err)
	}

	var slow []*stompSession
	b.mu.RLock()
	for s := range b.sessions {
		for _, id := range s.subscribed(dest) {
			f := frame.New(frame.MESSAGE,
				"destination", dest,
				"subscription", id,
				"message-id", uuid.NewString(),
				"content-type", "application/json",
			)
			f.Body = body
			data, err := encode(f)
			if err != nil {
				b.mu.RUnlock()
				return fmt.Errorf("publish %s: %w", dest, err)
			}
			select {
			case s.send <- data:
			default:
				slow = append(slow, s)
			}
		}
	}
	b.mu.RUnlock()

	for _, s := range slow {
		b.log.Warn("stomp client too slow, disconnecting")
		b.remove(s)
	}
	return nil
}

// Subscribers counts subscriptions to dest across all sessions.
func (b *Broker) Subscribers(dest string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for s := range b.sessions {
		n += len(s.subscribed(dest))
	}
	return n
}

// SessionCount returns the number of open sessions.
func (b *Broker) SessionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.sessions)
}

// Close ends every session.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for s := range b.sessions {
		delete(b.sessions, s)
		close(s.send)
	}
}

func (b *Broker) enqueue(s *stompSession, f *frame.Frame) {
	data, err := encode(f)
	if err != nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.sessions[s] {
		return
	}
	select {
	case s.send <- data:
	default:
	}
}

func (b *Broker) remove(s *stompSession) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sessions[s] {
		delete(b.sessions, s)
		close(s.send)
	}
}

func writeFrame(conn *websocket.Conn, f *frame.Frame) error {
	data, err := encode(f)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	defer conn.SetWriteDeadline(time.Time{})
	return conn.WriteMessage(websocket.TextMessage, data)
}

func encode(f *frame.Frame) ([]byte, error) {
	var buf bytes.Buffer
	if err := frame.NewWriter(&buf).Write(f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(data []byte) ([]*frame.Frame, error) {
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

func formatMillis(d time.Duration) string {
	if d <= 0 {
		return "0"
	}
	return strconv.FormatInt(d.Milliseconds(), 10)
}

// outgoingHeartbeat is how often the server beats: the larger of its own
// offer and what the client wants to receive, or zero if either is zero.
func outgoingHeartbeat(offer time.Duration, clientHeader string) time.Duration {
	parts := strings.Split(clientHeader, ",")
	if len(parts) != 2 || offer <= 0 {
		return 0
	}
	want, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || want <= 0 {
		return 0
	}
	return max(offer, time.Duration(want)*time.Millisecond)
}
