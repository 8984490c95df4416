package stream

import (
	"context"
	"fmt"

	"github.com/fd1az/betexstream/internal/authclient"
	"github.com/fd1az/betexstream/internal/config"
	"github.com/fd1az/betexstream/internal/logger"
)

// Stream is the package's public surface: it composes a Session, the
// Decoder it drives, and the Heartbeat supervising it behind a small set
// of operations a caller actually needs — open, authenticate implicitly
// as part of Open, subscribe, and close (§4.1's "Public surface"
// component).
type Stream struct {
	session *Session
}

// New builds a Stream from configuration. Nothing is dialed yet — call
// Open to connect and authenticate.
func New(cfg *config.StreamConfig, log logger.LoggerInterface) *Stream {
	return &Stream{session: NewSession(cfg, log)}
}

// Open connects and sends the authentication frame; it returns without
// waiting for the server to acknowledge it. Subsequent flow — subscribe,
// then inbound-driven callbacks — follows per §4.1.
//
// When the configured session token is empty and a login URL is set, Open
// first exchanges the configured username/password for a session token via
// a REST login call, the same two-step login-then-stream flow real
// betting-exchange protocols use, before dialing the stream itself.
func (s *Stream) Open(ctx context.Context) error {
	cfg := s.session.cfg
	if cfg.SessionToken == "" && cfg.LoginURL != "" {
		token, err := s.login(ctx, cfg)
		if err != nil {
			return err
		}
		cfg.SessionToken = token
	}
	return s.session.Open(ctx)
}

func (s *Stream) login(ctx context.Context, cfg *config.StreamConfig) (string, error) {
	client, err := authclient.New(cfg.LoginURL, cfg.AppKey)
	if err != nil {
		return "", fmt.Errorf("build login client: %w", err)
	}
	token, err := client.Login(ctx, cfg.Username, cfg.Password)
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	return token, nil
}

// SubscribeMarkets subscribes to the given market ids. Every call resets
// the market cache: a (re)subscription always starts from a fresh image.
func (s *Stream) SubscribeMarkets(ctx context.Context, marketIDs []string) error {
	return s.session.SubscribeMarkets(ctx, marketIDs)
}

// SubscribeOrders subscribes to order updates, optionally filtered.
func (s *Stream) SubscribeOrders(ctx context.Context, filter *OrderFilter) error {
	return s.session.SubscribeOrders(ctx, filter)
}

// OnMarketChange registers the callback invoked after every merged market
// change frame, with a defensive cache snapshot and a human-readable
// delta list.
func (s *Stream) OnMarketChange(fn MarketChangeFunc) { s.session.OnMarketChange(fn) }

// OnOrderChange is the order-cache analogue of OnMarketChange.
func (s *Stream) OnOrderChange(fn OrderChangeFunc) { s.session.OnOrderChange(fn) }

// OnRawData registers a tap receiving every inbound line before decoding,
// intended for a recorder or other passive observer.
func (s *Stream) OnRawData(fn RawFunc) { s.session.OnRawData(fn) }

// OnStatus registers a callback for inbound status frames.
func (s *Stream) OnStatus(fn StatusFunc) { s.session.OnStatus(fn) }

// State returns the current protocol-level session state.
func (s *Stream) State() SessionState { return s.session.State() }

// Close tears the session down.
func (s *Stream) Close() error { return s.session.Close() }
