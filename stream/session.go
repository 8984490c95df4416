package stream

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/fd1az/betexstream/internal/apperror"
	"github.com/fd1az/betexstream/internal/circuitbreaker"
	"github.com/fd1az/betexstream/internal/config"
	"github.com/fd1az/betexstream/internal/logger"
	"github.com/fd1az/betexstream/internal/ratelimit"
	"github.com/fd1az/betexstream/internal/transport"
	"github.com/shopspring/decimal"
)

// SessionState is the §4.1 protocol-level state machine layered on top of
// the transport's own, narrower connection state.
type SessionState string

const (
	SessionDisconnected  SessionState = "disconnected"
	SessionConnecting    SessionState = "connecting"
	SessionAuthenticating SessionState = "authenticating"
	SessionAuthenticated SessionState = "authenticated"
	SessionSubscribed    SessionState = "subscribed"
	SessionClosing       SessionState = "closing"
	SessionClosed        SessionState = "closed"
)

// RawFunc taps every inbound line before it reaches the decoder, for a
// recorder or other passive observer (§4.6).
type RawFunc func(line []byte)

// StatusFunc is invoked on every inbound status frame (§6).
type StatusFunc func(statusCode string, errorCode string, errorMessage string)

// Session drives one streaming connection end to end: open, authenticate,
// subscribe, and the reconnect/heartbeat supervision that keeps the
// subscriptions alive across a dropped socket (§4.1, §4.5).
type Session struct {
	cfg    *config.StreamConfig
	log    logger.LoggerInterface
	client *transport.Client

	decoder   *Decoder
	heartbeat *Heartbeat

	stateMu sync.RWMutex
	state   SessionState

	pendingMu sync.Mutex
	pending   map[int64]string // packet id -> op awaiting an ack

	marketIDs   []string
	orderFilter *OrderFilter
	subscribed  bool

	subMu      sync.Mutex
	marketSubs []MarketChangeFunc
	orderSubs  []OrderChangeFunc
	rawSubs    []RawFunc
	statusSubs []StatusFunc

	nextID atomic.Int64

	closeOnce sync.Once

	// authBreaker guards the authentication frame against a persistently
	// failing endpoint: repeated auth failures trip it open so a
	// misconfigured app key doesn't retry-storm the server every restart.
	authBreaker *circuitbreaker.CircuitBreaker[struct{}]
	// restartLimiter paces forced reconnects triggered by missed
	// heartbeats, so a server that never answers a heartbeat doesn't
	// drive an unbounded reconnect loop.
	restartLimiter *ratelimit.Limiter
}

// NewSession builds a Session ready to Open.
func NewSession(cfg *config.StreamConfig, log logger.LoggerInterface) *Session {
	rate := decimal.NewFromFloat(cfg.CurrencyRate)
	if rate.IsZero() {
		rate = decimal.NewFromInt(1)
	}

	s := &Session{
		cfg:     cfg,
		log:     log,
		decoder: NewDecoder(rate),
		state:   SessionDisconnected,
		pending: make(map[int64]string),
	}
	s.decoder.OnMarketChange = s.fanOutMarketChange
	s.decoder.OnOrderChange = s.fanOutOrderChange
	s.heartbeat = NewHeartbeat(s.onHeartbeatMissed)
	s.nextID.Store(int64(100_000_000 + rand.Intn(100_000_000)))
	s.authBreaker = circuitbreaker.New[struct{}](circuitbreaker.DefaultConfig("stream-auth"))
	s.restartLimiter = ratelimit.New(6) // at most 6 forced restarts per minute
	return s
}

// OnMarketChange registers an additional market-cache callback. Every
// registered callback is invoked, in registration order, on each frame —
// this is what lets a recorder bridge and a UI renderer both observe the
// same stream without one silently overwriting the other's subscription.
func (s *Session) OnMarketChange(fn MarketChangeFunc) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.marketSubs = append(s.marketSubs, fn)
}

// OnOrderChange registers an additional order-cache callback.
func (s *Session) OnOrderChange(fn OrderChangeFunc) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.orderSubs = append(s.orderSubs, fn)
}

// OnRawData registers an additional tap invoked on every inbound line
// prior to decoding, for a recorder (§4.6).
func (s *Session) OnRawData(fn RawFunc) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.rawSubs = append(s.rawSubs, fn)
}

// OnStatus registers an additional inbound status-frame callback.
func (s *Session) OnStatus(fn StatusFunc) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.statusSubs = append(s.statusSubs, fn)
}

func (s *Session) fanOutMarketChange(snapshot map[string]*MarketCache, deltas []string) {
	s.subMu.Lock()
	subs := append([]MarketChangeFunc(nil), s.marketSubs...)
	s.subMu.Unlock()
	for _, fn := range subs {
		fn(snapshot, deltas)
	}
}

func (s *Session) fanOutOrderChange(snapshot map[string]*OrderAccountCache, deltas []string) {
	s.subMu.Lock()
	subs := append([]OrderChangeFunc(nil), s.orderSubs...)
	s.subMu.Unlock()
	for _, fn := range subs {
		fn(snapshot, deltas)
	}
}

// State returns the current protocol-level state.
func (s *Session) State() SessionState {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

func (s *Session) setState(state SessionState) {
	s.stateMu.Lock()
	s.state = state
	s.stateMu.Unlock()
	s.log.Info(context.Background(), "session state changed", "state", string(state))
}

// Open dials the exchange and sends the authentication frame. It returns
// once that frame is sent and does not wait for the server's reply; the
// status frame that acknowledges it moves the session to Authenticated.
// Open does not re-subscribe; Restart does that after calling Open.
func (s *Session) Open(ctx context.Context) error {
	s.setState(SessionConnecting)

	tc := transport.DefaultConfig(s.cfg.Host, s.cfg.Port, "betex-stream")
	tc.DialTimeout = s.cfg.DialTimeout
	tc.ReadTimeout = s.cfg.ReadTimeout
	tc.WriteTimeout = s.cfg.WriteTimeout
	tc.InitialBackoff = s.cfg.InitialBackoff
	tc.MaxBackoff = s.cfg.MaxBackoff
	tc.MaxReconnects = s.cfg.MaxReconnects
	tc.InsecureSkipVerify = s.cfg.InsecureSkipVerify

	client, err := transport.New(tc)
	if err != nil {
		return apperror.Transport("build transport client", err)
	}
	s.client = client

	client.OnLine(s.handleLine)
	client.OnStateChange(s.handleTransportStateChange)

	if err := client.ConnectWithRetry(ctx); err != nil {
		s.setState(SessionDisconnected)
		return apperror.Transport("connect", err)
	}

	return s.authenticate(ctx)
}

func (s *Session) authenticate(ctx context.Context) error {
	s.setState(SessionAuthenticating)
	id := s.nextPacketID()
	s.trackPending(id, opAuthentication)

	msg := authenticationWire{
		Op:      opAuthentication,
		AppKey:  s.cfg.AppKey,
		Session: s.cfg.SessionToken,
		ID:      id,
	}
	_, err := s.authBreaker.Execute(func() (struct{}, error) {
		return struct{}{}, s.client.SendJSON(ctx, msg)
	})
	if err != nil {
		return apperror.AuthFailed("send authentication", err)
	}
	return nil
}

// SubscribeMarkets (re)subscribes to the given market ids, resetting the
// decoder's cache since a fresh subscription always starts from an image.
// An empty list stops the heartbeat supervisor (§4.1): there is nothing
// left to expect traffic for.
func (s *Session) SubscribeMarkets(ctx context.Context, marketIDs []string) error {
	s.marketIDs = marketIDs
	s.decoder.Reset()

	if len(marketIDs) == 0 {
		s.heartbeat.Stop()
	}

	id := s.nextPacketID()
	s.trackPending(id, opMarketSubscription)

	msg := marketSubscriptionWire{
		Op:                  opMarketSubscription,
		ID:                  id,
		MarketFilter:        marketFilterWire{MarketIDs: marketIDs},
		SegmentationEnabled: s.cfg.SegmentationOn,
		ConflateMs:          s.cfg.ConflateMs,
		HeartbeatMs:         s.cfg.HeartbeatMs,
	}
	if err := s.client.SendJSON(ctx, msg); err != nil {
		return apperror.SubscriptionFailed("send market subscription", err)
	}
	s.subscribed = true
	return nil
}

// SubscribeOrders (re)subscribes to order updates for the given filter
// (nil for the default, unfiltered view).
func (s *Session) SubscribeOrders(ctx context.Context, filter *OrderFilter) error {
	s.orderFilter = filter
	s.decoder.Reset()

	id := s.nextPacketID()
	s.trackPending(id, opOrderSubscription)

	msg := orderSubscriptionWire{
		Op:                  opOrderSubscription,
		ID:                  id,
		OrderFilter:         filter,
		SegmentationEnabled: s.cfg.SegmentationOn,
		ConflateMs:          s.cfg.ConflateMs,
		HeartbeatMs:         s.cfg.HeartbeatMs,
	}
	if err := s.client.SendJSON(ctx, msg); err != nil {
		return apperror.SubscriptionFailed("send order subscription", err)
	}
	s.subscribed = true
	return nil
}

// Close tears the session down for good; Restart is not implied.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.setState(SessionClosing)
		s.heartbeat.Stop()
		if s.client != nil {
			err = s.client.Close()
		}
		s.setState(SessionClosed)
	})
	return err
}

// Restart reconnects and, if a subscription was active, re-issues it —
// the resubscribe always starts from a fresh image (§4.1).
func (s *Session) Restart(ctx context.Context) error {
	if err := s.Open(ctx); err != nil {
		return err
	}
	if s.marketIDs != nil {
		return s.waitThenResubscribeMarkets(ctx)
	}
	if s.orderFilter != nil || s.subscribed {
		return s.waitThenResubscribeOrders(ctx)
	}
	return nil
}

func (s *Session) waitThenResubscribeMarkets(ctx context.Context) error {
	return s.SubscribeMarkets(ctx, s.marketIDs)
}

func (s *Session) waitThenResubscribeOrders(ctx context.Context) error {
	return s.SubscribeOrders(ctx, s.orderFilter)
}

func (s *Session) nextPacketID() int64 { return s.nextID.Add(1) }

func (s *Session) trackPending(id int64, op string) {
	s.pendingMu.Lock()
	s.pending[id] = op
	s.pendingMu.Unlock()
}

func (s *Session) resolvePending(id int64) (string, bool) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	op, ok := s.pending[id]
	if ok {
		delete(s.pending, id)
	}
	return op, ok
}

// handleLine is the Client.OnLine callback: raw tap, heartbeat refresh,
// decoder feed, and — for frames the decoder leaves unhandled — the
// session's own connection/status classification.
func (s *Session) handleLine(ctx context.Context, line []byte) {
	s.subMu.Lock()
	rawSubs := append([]RawFunc(nil), s.rawSubs...)
	s.subMu.Unlock()
	for _, fn := range rawSubs {
		fn(line)
	}
	if !s.heartbeat.Refresh() {
		s.log.Warn(ctx, "heartbeat refresh skipped: not currently beating")
	}

	handled, err := s.decoder.Feed(line)
	if err != nil {
		s.log.Warn(ctx, "decoder rejected frame", "error", err.Error())
	}
	if handled {
		return
	}

	op, sniffErr := sniffOp(line)
	if sniffErr != nil {
		s.log.Warn(ctx, "failed to sniff op on unhandled frame", "error", sniffErr.Error())
		return
	}

	switch op {
	case opConnection:
		var cw connectionWire
		if err := json.Unmarshal(line, &cw); err == nil {
			s.log.Info(ctx, "connection established", "connectionId", cw.ConnectionID)
		}
	case opStatus:
		s.handleStatus(ctx, line)
	default:
		s.log.Debug(ctx, "ignoring unrecognized op", "op", op)
	}
}

func (s *Session) handleStatus(ctx context.Context, line []byte) {
	var sw statusWire
	if err := json.Unmarshal(line, &sw); err != nil {
		s.log.Warn(ctx, "failed to decode status frame", "error", err.Error())
		return
	}

	if sw.ID != nil {
		if op, ok := s.resolvePending(*sw.ID); ok {
			s.advanceOnAck(op, sw)
		}
	}

	s.subMu.Lock()
	statusSubs := append([]StatusFunc(nil), s.statusSubs...)
	s.subMu.Unlock()
	for _, fn := range statusSubs {
		fn(sw.StatusCode, sw.ErrorCode, sw.ErrorMessage)
	}

	if sw.StatusCode != statusSuccess {
		s.log.Warn(ctx, "status frame reported failure", "errorCode", sw.ErrorCode, "errorMessage", sw.ErrorMessage)
		return
	}

	if s.cfg.HeartbeatMs > 0 {
		s.heartbeat.Start(s.cfg.HeartbeatMs)
	}
}

func (s *Session) advanceOnAck(op string, sw statusWire) {
	if sw.StatusCode != statusSuccess {
		return
	}
	switch op {
	case opAuthentication:
		s.setState(SessionAuthenticated)
	case opMarketSubscription, opOrderSubscription:
		s.setState(SessionSubscribed)
	}
}

func (s *Session) handleTransportStateChange(state transport.State, err error) {
	ctx := context.Background()
	switch state {
	case transport.StateReconnecting:
		s.log.Warn(ctx, "transport reconnecting")
	case transport.StateDisconnected:
		s.setState(SessionDisconnected)
		s.heartbeat.Stop()
		if err != nil {
			s.log.Error(ctx, "transport gave up reconnecting", "error", err.Error())
		}
	}
}

// onHeartbeatMissed is the Heartbeat's dead-man-timer callback. The
// chosen policy (§9 open question) is to force a reconnect rather than
// merely log and keep the stale session: a missed heartbeat means the
// server-side liveness guarantee has already lapsed, so waiting longer
// only delays detecting a connection that is already dead.
func (s *Session) onHeartbeatMissed() {
	ctx := context.Background()
	s.log.Error(ctx, "heartbeat missed, forcing reconnect")
	if s.client != nil {
		_ = s.client.Close()
	}
	go func() {
		if err := s.restartLimiter.Wait(context.Background()); err != nil {
			s.log.Error(ctx, "restart throttled", "error", err.Error())
			return
		}
		if err := s.Restart(context.Background()); err != nil {
			s.log.Error(ctx, "restart after missed heartbeat failed", "error", err.Error())
		}
	}()
}
