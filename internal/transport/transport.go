// Package transport is the low-level connection for a streaming session: a
// single TLS socket carrying line-delimited JSON frames terminated by
// CRLF (§6). It owns reconnection with exponential backoff but nothing
// about authentication or subscription state — that belongs to
// stream.Session, which layers its own state machine on top of the five
// states exposed here.
package transport

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/fd1az/betexstream/internal/transport"
const meterName = "github.com/fd1az/betexstream/internal/transport"

// maxLineSize bounds a single inbound frame; the teacher's wsconn applies
// an analogous MaxMessageSize to the websocket read limit.
const maxLineSize = 1 << 20

// State is the connection's lifecycle state. It deliberately stays
// narrower than a Session's state machine — Authenticating/Authenticated/
// Subscribed are protocol concepts layered on top of a Connected socket.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateClosed       State = "closed"
)

// Config controls dial parameters, backoff, and timeouts. There is no
// PingInterval here: liveness on this protocol is entirely receive-driven
// (every inbound line refreshes the session heartbeat), so the transport
// never originates a keepalive frame of its own.
type Config struct {
	Host string
	Port int
	Name string

	InsecureSkipVerify bool

	DialTimeout    time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxReconnects  int // 0 = infinite

	MaxMessageSize int64
}

// DefaultConfig returns sane defaults for dialing host:port.
func DefaultConfig(host string, port int, name string) Config {
	return Config{
		Host:           host,
		Port:           port,
		Name:           name,
		DialTimeout:    10 * time.Second,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   5 * time.Second,
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
		MaxReconnects:  0,
		MaxMessageSize: maxLineSize,
	}
}

func (c Config) addr() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

// LineHandler is invoked once per inbound line, with the trailing CRLF
// already stripped.
type LineHandler func(ctx context.Context, line []byte)

// StateChangeHandler is invoked whenever the connection transitions.
type StateChangeHandler func(state State, err error)

type metrics struct {
	connectionState metric.Int64Gauge
	linesReceived   metric.Int64Counter
	linesSent       metric.Int64Counter
	reconnectsTotal metric.Int64Counter
	droppedLines    metric.Int64Counter
	readLatency     metric.Float64Histogram
	bytesReceived   metric.Int64Counter
	bytesSent       metric.Int64Counter
}

// Client is a single reconnecting TLS connection carrying CRLF-delimited
// JSON lines, structurally mirroring the teacher's websocket client but
// swapping the wire framing and dropping the ping loop.
type Client struct {
	config Config

	conn   *tls.Conn
	reader *bufio.Reader
	connMu sync.RWMutex

	state   State
	stateMu sync.RWMutex

	lines  chan []byte
	done   chan struct{}
	closeMu sync.Mutex
	closed atomic.Bool

	tracer  trace.Tracer
	metrics *metrics

	handlersMu    sync.RWMutex
	onLine        LineHandler
	onStateChange StateChangeHandler

	reconnects   int
	reconnectsMu sync.Mutex

	connectedAt time.Time
}

// New builds a Client and registers its OTEL instruments.
func New(config Config) (*Client, error) {
	if config.MaxMessageSize == 0 {
		config.MaxMessageSize = maxLineSize
	}
	c := &Client{
		config: config,
		state:  StateDisconnected,
		lines:  make(chan []byte, 256),
		done:   make(chan struct{}),
		tracer: otel.Tracer(tracerName),
	}
	if err := c.initMetrics(); err != nil {
		return nil, fmt.Errorf("transport: init metrics: %w", err)
	}
	return c, nil
}

func (c *Client) initMetrics() error {
	meter := otel.Meter(meterName)
	m := &metrics{}
	var err error

	if m.connectionState, err = meter.Int64Gauge("stream_connection_state",
		metric.WithDescription("connection state (0=disconnected,1=connecting,2=connected,3=reconnecting,4=closed)")); err != nil {
		return err
	}
	if m.linesReceived, err = meter.Int64Counter("stream_lines_received_total"); err != nil {
		return err
	}
	if m.linesSent, err = meter.Int64Counter("stream_lines_sent_total"); err != nil {
		return err
	}
	if m.reconnectsTotal, err = meter.Int64Counter("stream_reconnects_total"); err != nil {
		return err
	}
	if m.droppedLines, err = meter.Int64Counter("stream_dropped_lines_total"); err != nil {
		return err
	}
	if m.readLatency, err = meter.Float64Histogram("stream_read_latency_ms"); err != nil {
		return err
	}
	if m.bytesReceived, err = meter.Int64Counter("stream_bytes_received_total"); err != nil {
		return err
	}
	if m.bytesSent, err = meter.Int64Counter("stream_bytes_sent_total"); err != nil {
		return err
	}

	c.metrics = m
	return nil
}

// OnLine registers the handler invoked for each inbound line.
func (c *Client) OnLine(handler LineHandler) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.onLine = handler
}

// OnStateChange registers the handler invoked on every state transition.
func (c *Client) OnStateChange(handler StateChangeHandler) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.onStateChange = handler
}

// Connect dials once, without retry.
func (c *Client) Connect(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "transport.connect")
	defer span.End()

	c.setState(StateConnecting)

	dialer := &net.Dialer{Timeout: c.config.DialTimeout}
	tlsConfig := &tls.Config{InsecureSkipVerify: c.config.InsecureSkipVerify}

	rawConn, err := tls.DialWithDialer(dialer, "tcp", c.config.addr(), tlsConfig)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dial failed")
		c.setState(StateDisconnected)
		return fmt.Errorf("transport: dial %s: %w", c.config.addr(), err)
	}

	c.connMu.Lock()
	c.conn = rawConn
	c.reader = bufio.NewReaderSize(rawConn, 64*1024)
	c.connMu.Unlock()

	c.connectedAt = time.Now()
	c.setState(StateConnected)

	go c.readLoop(ctx)
	return nil
}

// ConnectWithRetry dials with exponential backoff and jitter until it
// succeeds, MaxReconnects is exhausted, or ctx is cancelled.
func (c *Client) ConnectWithRetry(ctx context.Context) error {
	backoff := c.config.InitialBackoff
	attempt := 0
	for {
		err := c.Connect(ctx)
		if err == nil {
			return nil
		}

		attempt++
		if c.config.MaxReconnects > 0 && attempt >= c.config.MaxReconnects {
			return fmt.Errorf("transport: exhausted %d reconnect attempts: %w", attempt, err)
		}

		jitter := time.Duration(rand.Int63n(int64(backoff) / 2 + 1))
		wait := backoff + jitter

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return errors.New("transport: closed during connect retry")
		case <-time.After(wait):
		}

		backoff *= 2
		if backoff > c.config.MaxBackoff {
			backoff = c.config.MaxBackoff
		}
	}
}

func (c *Client) readLoop(ctx context.Context) {
	for {
		c.connMu.RLock()
		reader := c.reader
		conn := c.conn
		c.connMu.RUnlock()
		if reader == nil || conn == nil {
			return
		}

		if c.config.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		}

		start := time.Now()
		line, err := reader.ReadBytes('\n')
		if err != nil {
			c.handleDisconnect(ctx, err)
			return
		}

		c.metrics.readLatency.Record(ctx, float64(time.Since(start).Milliseconds()))
		c.metrics.bytesReceived.Add(ctx, int64(len(line)))

		// Strip the CRLF (or bare LF) terminator per §6 framing.
		line = trimCRLF(line)
		if len(line) == 0 {
			continue
		}
		if int64(len(line)) > c.config.MaxMessageSize {
			c.metrics.droppedLines.Add(ctx, 1)
			continue
		}

		c.metrics.linesReceived.Add(ctx, 1)

		c.handlersMu.RLock()
		handler := c.onLine
		c.handlersMu.RUnlock()
		if handler != nil {
			handler(ctx, line)
		}
	}
}

func trimCRLF(line []byte) []byte {
	n := len(line)
	for n > 0 && (line[n-1] == '\n' || line[n-1] == '\r') {
		n--
	}
	return line[:n]
}

func (c *Client) handleDisconnect(ctx context.Context, err error) {
	if c.closed.Load() {
		return
	}
	c.setState(StateReconnecting)

	c.connMu.Lock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
		c.reader = nil
	}
	c.connMu.Unlock()

	_, span := c.tracer.Start(ctx, "transport.disconnect")
	span.RecordError(err)
	span.End()

	go c.reconnect(ctx)
}

func (c *Client) reconnect(ctx context.Context) {
	if c.closed.Load() {
		return
	}

	c.reconnectsMu.Lock()
	c.reconnects++
	attempt := c.reconnects
	c.reconnectsMu.Unlock()
	c.metrics.reconnectsTotal.Add(ctx, 1)

	if c.config.MaxReconnects > 0 && attempt > c.config.MaxReconnects {
		c.setState(StateDisconnected)
		c.handlersMu.RLock()
		handler := c.onStateChange
		c.handlersMu.RUnlock()
		if handler != nil {
			handler(StateDisconnected, fmt.Errorf("transport: exceeded %d reconnects", c.config.MaxReconnects))
		}
		return
	}

	backoff := c.config.InitialBackoff * time.Duration(1<<uint(min(attempt-1, 10)))
	if backoff > c.config.MaxBackoff {
		backoff = c.config.MaxBackoff
	}
	jitter := time.Duration(rand.Int63n(int64(backoff)/2 + 1))

	timer := time.NewTimer(backoff + jitter)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-c.done:
		return
	case <-timer.C:
	}

	if err := c.Connect(ctx); err != nil {
		go c.reconnect(ctx)
		return
	}

	c.reconnectsMu.Lock()
	c.reconnects = 0
	c.reconnectsMu.Unlock()
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Send writes line followed by a CRLF terminator.
func (c *Client) Send(ctx context.Context, line []byte) error {
	ctx, span := c.tracer.Start(ctx, "transport.send")
	defer span.End()

	c.connMu.RLock()
	conn := c.conn
	c.connMu.RUnlock()
	if conn == nil {
		err := errors.New("transport: not connected")
		span.RecordError(err)
		return err
	}

	if c.config.WriteTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	}

	framed := make([]byte, 0, len(line)+2)
	framed = append(framed, line...)
	framed = append(framed, '\r', '\n')

	if _, err := conn.Write(framed); err != nil {
		span.RecordError(err)
		return fmt.Errorf("transport: write: %w", err)
	}

	c.metrics.linesSent.Add(ctx, 1)
	c.metrics.bytesSent.Add(ctx, int64(len(framed)))
	return nil
}

// SendJSON marshals v and sends it as a single line.
func (c *Client) SendJSON(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("transport: marshal: %w", err)
	}
	return c.Send(ctx, data)
}

// State returns the current connection state.
func (c *Client) State() State {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

// IsConnected reports whether the socket is currently usable.
func (c *Client) IsConnected() bool { return c.State() == StateConnected }

// Close idempotently tears down the connection.
func (c *Client) Close() error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if c.closed.Swap(true) {
		return nil
	}
	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
		c.reader = nil
	}
	c.connMu.Unlock()

	c.setState(StateClosed)
	return nil
}

// ReconnectCount returns the number of reconnect attempts since the last
// successful connection.
func (c *Client) ReconnectCount() int {
	c.reconnectsMu.Lock()
	defer c.reconnectsMu.Unlock()
	return c.reconnects
}

var stateGaugeValue = map[State]int64{
	StateDisconnected: 0,
	StateConnecting:   1,
	StateConnected:    2,
	StateReconnecting: 3,
	StateClosed:       4,
}

func (c *Client) setState(state State) {
	c.stateMu.Lock()
	changed := c.state != state
	c.state = state
	c.stateMu.Unlock()

	if c.metrics != nil {
		c.metrics.connectionState.Record(context.Background(), stateGaugeValue[state],
			metric.WithAttributes(attribute.String("name", c.config.Name)))
	}

	if changed {
		c.handlersMu.RLock()
		handler := c.onStateChange
		c.handlersMu.RUnlock()
		if handler != nil {
			handler(state, nil)
		}
	}
}
