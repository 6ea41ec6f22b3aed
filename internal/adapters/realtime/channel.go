// Package realtime manages the push channel: one WebSocket connection to the
// clusterview backend, message parsing, and reconnection with capped
// exponential backoff. Polling fallback is the sync coordinator's job; the
// channel only reports up/down transitions.
package realtime

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/clusterview/clusterview/internal/core"
	"github.com/clusterview/clusterview/internal/domain/model"
	"github.com/clusterview/clusterview/internal/observability/statsd"
	"github.com/clusterview/clusterview/internal/pubsub"
)

const (
	// DefaultInitialBackoff is the first reconnect delay.
	DefaultInitialBackoff = time.Second
	// DefaultMaxBackoff caps the reconnect delay.
	DefaultMaxBackoff = 30 * time.Second
)

// Options configures the realtime channel.
type Options struct {
	URL     string               // Required: ws:// or wss:// endpoint
	APIKey  string               // Optional: sent as X-API-Key on the handshake
	Handler core.RealtimeHandler // Required: receives parsed messages

	Logger  *slog.Logger // Optional: structured logger
	Metrics statsd.Sink  // Optional: metrics sink

	Dialer         *websocket.Dialer // Optional: defaults to websocket.DefaultDialer
	InitialBackoff time.Duration     // Optional: defaults to DefaultInitialBackoff
	MaxBackoff     time.Duration     // Optional: defaults to DefaultMaxBackoff
}

// Channel owns one WebSocket connection. Connect is idempotent; Destroy is
// final. All late callbacks after Destroy are no-ops.
type Channel struct {
	url            string
	apiKey         string
	handler        core.RealtimeHandler
	logger         *slog.Logger
	metrics        statsd.Sink
	dialer         *websocket.Dialer
	initialBackoff time.Duration
	maxBackoff     time.Duration

	// clientID identifies this manager instance to the server and in logs.
	clientID string

	status *pubsub.Subject[model.ConnectionStatus]

	mu             sync.Mutex
	conn           *websocket.Conn
	connecting     bool
	dead           bool
	backoff        time.Duration
	reconnectTimer *time.Timer
	lastMessageAt  *time.Time
}

// NewChannel validates options and constructs a Channel. It does not connect.
func NewChannel(opts Options) (*Channel, error) {
	raw := strings.TrimSpace(opts.URL)
	if raw == "" {
		return nil, errors.New("websocket URL is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, errors.New("invalid websocket URL")
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, errors.New("websocket URL must use ws or wss scheme")
	}
	if opts.Handler == nil {
		return nil, errors.New("realtime handler is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	initial := opts.InitialBackoff
	if initial <= 0 {
		initial = DefaultInitialBackoff
	}
	maxB := opts.MaxBackoff
	if maxB < initial {
		maxB = DefaultMaxBackoff
	}

	clientID := uuid.NewString()
	c := &Channel{
		url:            raw,
		apiKey:         opts.APIKey,
		handler:        opts.Handler,
		logger:         logger.With("component", "realtime", "client_id", clientID),
		metrics:        opts.Metrics,
		dialer:         dialer,
		initialBackoff: initial,
		maxBackoff:     maxB,
		clientID:       clientID,
		status:         pubsub.NewSubject[model.ConnectionStatus](),
		backoff:        initial,
	}
	c.status.Publish(model.ConnectionStatus{Connected: false, Source: model.ConnectionPolling})
	return c, nil
}

// Status returns the observable connection status.
func (c *Channel) Status() *pubsub.Subject[model.ConnectionStatus] {
	return c.status
}

// Connected reports whether the socket is currently open.
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Connect opens the socket. Calling it while already connected, connecting,
// waiting to reconnect, or destroyed is a no-op.
func (c *Channel) Connect() {
	c.mu.Lock()
	if c.dead || c.conn != nil || c.connecting || c.reconnectTimer != nil {
		c.mu.Unlock()
		return
	}
	c.connecting = true
	c.mu.Unlock()

	go c.dial()
}

// Destroy closes the socket, cancels any pending reconnect, and flips the
// dead flag so late callbacks become no-ops. Idempotent.
func (c *Channel) Destroy() {
	c.mu.Lock()
	if c.dead {
		c.mu.Unlock()
		return
	}
	c.dead = true
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	c.status.Close()
}

// dial performs one connection attempt.
func (c *Channel) dial() {
	header := http.Header{}
	header.Set("X-Client-ID", c.clientID)
	if c.apiKey != "" {
		header.Set("X-API-Key", c.apiKey)
	}

	conn, resp, err := c.dialer.Dial(c.url, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	c.mu.Lock()
	c.connecting = false
	if c.dead {
		c.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		c.logger.Warn("websocket dial failed", "error", err, "retry_in", c.backoff)
		c.count("realtime.dial.errors")
		c.scheduleReconnectLocked()
		c.mu.Unlock()
		c.publishStatus(false)
		c.handler.HandleConnectionDown()
		return
	}

	c.conn = conn
	// A successful open resets the backoff ladder.
	c.backoff = c.initialBackoff
	c.mu.Unlock()

	c.logger.Info("websocket connected")
	c.count("realtime.connected")
	c.publishStatus(true)
	c.handler.HandleConnectionUp()

	go c.readLoop(conn)
}

// readLoop consumes messages until the connection fails. Malformed messages
// are dropped and logged; they never close the socket.
func (c *Channel) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.onClose(conn, err)
			return
		}
		c.touch()

		var msg model.WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("dropping malformed message", "error", err)
			c.count("realtime.messages.malformed")
			continue
		}
		c.dispatch(msg)
	}
}

// dispatch routes one parsed message to the handler.
func (c *Channel) dispatch(msg model.WSMessage) {
	switch msg.Type {
	case model.WSTypeInitial:
		hosts := make(map[string][]model.JobRecord, len(msg.Hosts))
		for hostname, jobs := range msg.Hosts {
			hosts[hostname] = stampHostname(jobs, hostname)
		}
		c.countTyped("initial")
		c.handler.HandleInitial(hosts)

	case model.WSTypeStateChange:
		var rec model.JobRecord
		if err := json.Unmarshal(msg.Job, &rec); err != nil {
			c.logger.Warn("dropping malformed state_change", "job_id", msg.JobID, "error", err)
			c.count("realtime.messages.malformed")
			return
		}
		if rec.JobID == "" {
			rec.JobID = msg.JobID
		}
		if rec.Hostname == "" {
			rec.Hostname = msg.Hostname
		}
		if rec.JobID == "" || rec.Hostname == "" {
			c.logger.Warn("dropping state_change without identity")
			c.count("realtime.messages.malformed")
			return
		}
		c.countTyped("state_change")
		c.handler.HandleStateChange(rec)

	case model.WSTypeBatchUpdate:
		recs := make([]model.JobRecord, 0, len(msg.Updates))
		for _, delta := range msg.Updates {
			rec := delta.Job
			if rec.JobID == "" {
				rec.JobID = delta.JobID
			}
			if rec.Hostname == "" {
				rec.Hostname = delta.Hostname
			}
			if rec.JobID == "" || rec.Hostname == "" {
				c.count("realtime.messages.malformed")
				continue
			}
			recs = append(recs, rec)
		}
		c.countTyped("batch_update")
		c.handler.HandleBatchUpdate(recs)

	default:
		c.logger.Debug("ignoring unknown message type", "type", msg.Type)
		c.count("realtime.messages.unknown")
	}
}

// onClose handles a connection failure: mark disconnected, tell the handler
// so polling can start, and schedule a reconnect.
func (c *Channel) onClose(conn *websocket.Conn, err error) {
	_ = conn.Close()

	c.mu.Lock()
	if c.dead || c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.scheduleReconnectLocked()
	c.mu.Unlock()

	c.logger.Warn("websocket closed", "error", err)
	c.count("realtime.disconnected")
	c.publishStatus(false)
	c.handler.HandleConnectionDown()
}

// scheduleReconnectLocked arms the reconnect timer and doubles the backoff up
// to the cap. Caller holds the lock.
func (c *Channel) scheduleReconnectLocked() {
	if c.reconnectTimer != nil {
		return
	}
	delay := c.backoff
	c.backoff = min(c.backoff*2, c.maxBackoff)
	c.reconnectTimer = time.AfterFunc(delay, func() {
		c.mu.Lock()
		c.reconnectTimer = nil
		if c.dead || c.conn != nil || c.connecting {
			c.mu.Unlock()
			return
		}
		c.connecting = true
		c.mu.Unlock()
		c.dial()
	})
}

func (c *Channel) publishStatus(connected bool) {
	c.mu.Lock()
	last := c.lastMessageAt
	dead := c.dead
	c.mu.Unlock()
	if dead {
		return
	}

	source := model.ConnectionPolling
	if connected {
		source = model.ConnectionWebSocket
	}
	c.status.Publish(model.ConnectionStatus{
		Connected:     connected,
		Source:        source,
		LastMessageAt: last,
	})
}

// touch records message arrival time and refreshes the published status.
func (c *Channel) touch() {
	now := time.Now()
	c.mu.Lock()
	c.lastMessageAt = &now
	dead := c.dead
	connected := c.conn != nil
	c.mu.Unlock()
	if dead {
		return
	}
	source := model.ConnectionPolling
	if connected {
		source = model.ConnectionWebSocket
	}
	c.status.Publish(model.ConnectionStatus{Connected: connected, Source: source, LastMessageAt: &now})
}

func (c *Channel) count(name string) {
	if c.metrics != nil {
		c.metrics.Count(name, 1, nil)
	}
}

func (c *Channel) countTyped(msgType string) {
	if c.metrics != nil {
		c.metrics.Count("realtime.messages", 1, map[string]string{"type": msgType})
	}
}

// stampHostname fills the hostname on snapshot records keyed by host.
func stampHostname(jobs []model.JobRecord, hostname string) []model.JobRecord {
	out := make([]model.JobRecord, len(jobs))
	for i, job := range jobs {
		if job.Hostname == "" {
			job.Hostname = hostname
		}
		out[i] = job
	}
	return out
}
