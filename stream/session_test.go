package stream

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/fd1az/betexstream/internal/config"
	"github.com/fd1az/betexstream/internal/logger"
	"github.com/fd1az/betexstream/internal/transport"
	"github.com/shopspring/decimal"
)

func testLogger() logger.LoggerInterface {
	return logger.New(discardWriter{}, logger.LevelError, "test", nil)
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestNewSession_DefaultsCurrencyRateToOne(t *testing.T) {
	cfg := &config.StreamConfig{Host: "example.com", Port: 443, CurrencyRate: 0}
	s := NewSession(cfg, testLogger())
	if !s.decoder.currencyRate.Equal(decimal.NewFromInt(1)) {
		t.Errorf("expected currencyRate 1 default, got %s", s.decoder.currencyRate)
	}
}

func TestSession_PacketIDsAreUniqueAndTracked(t *testing.T) {
	cfg := &config.StreamConfig{Host: "example.com", Port: 443, CurrencyRate: 1}
	s := NewSession(cfg, testLogger())

	id1 := s.nextPacketID()
	id2 := s.nextPacketID()
	if id1 == id2 {
		t.Fatalf("expected unique packet ids, got %d twice", id1)
	}

	s.trackPending(id1, opAuthentication)
	op, ok := s.resolvePending(id1)
	if !ok || op != opAuthentication {
		t.Errorf("resolvePending(%d) = %q, %v; want opAuthentication, true", id1, op, ok)
	}
	if _, ok := s.resolvePending(id1); ok {
		t.Errorf("expected pending entry consumed after first resolve")
	}
}

func TestSession_InitialState(t *testing.T) {
	cfg := &config.StreamConfig{Host: "example.com", Port: 443, CurrencyRate: 1}
	s := NewSession(cfg, testLogger())
	if s.State() != SessionDisconnected {
		t.Errorf("State() = %v, want disconnected", s.State())
	}
}

func TestSession_OnMarketChange_FansOutToEverySubscriber(t *testing.T) {
	cfg := &config.StreamConfig{Host: "example.com", Port: 443, CurrencyRate: 1}
	s := NewSession(cfg, testLogger())

	var firstCalls, secondCalls int
	s.OnMarketChange(func(markets map[string]*MarketCache, deltas []string) { firstCalls++ })
	s.OnMarketChange(func(markets map[string]*MarketCache, deltas []string) { secondCalls++ })

	s.fanOutMarketChange(map[string]*MarketCache{}, nil)

	if firstCalls != 1 || secondCalls != 1 {
		t.Errorf("expected both subscribers invoked once, got first=%d second=%d", firstCalls, secondCalls)
	}
}

func TestNewSession_InitializesBreakerAndLimiter(t *testing.T) {
	cfg := &config.StreamConfig{Host: "example.com", Port: 443, CurrencyRate: 1}
	s := NewSession(cfg, testLogger())

	if s.authBreaker == nil {
		t.Fatal("expected authBreaker to be initialized")
	}
	if s.restartLimiter == nil {
		t.Fatal("expected restartLimiter to be initialized")
	}
	if !s.restartLimiter.Allow() {
		t.Error("expected a fresh restartLimiter to allow its first request")
	}
}

func TestSession_SubscribeMarkets_EmptyListStopsHeartbeat(t *testing.T) {
	cfg := &config.StreamConfig{Host: "example.com", Port: 443, CurrencyRate: 1}
	s := NewSession(cfg, testLogger())

	client, err := transport.New(transport.DefaultConfig(cfg.Host, cfg.Port, "test"))
	if err != nil {
		t.Fatalf("transport.New() error = %v", err)
	}
	s.client = client

	s.heartbeat.Start(5000)
	if !s.heartbeat.Beating() {
		t.Fatal("expected heartbeat to be beating after Start")
	}

	_ = s.SubscribeMarkets(context.Background(), nil)

	if s.heartbeat.Beating() {
		t.Error("expected SubscribeMarkets(nil) to stop the heartbeat")
	}
}

func TestSession_HandleLine_WarnsWhenHeartbeatNotBeating(t *testing.T) {
	var buf bytes.Buffer
	cfg := &config.StreamConfig{Host: "example.com", Port: 443, CurrencyRate: 1}
	s := NewSession(cfg, logger.New(&buf, logger.LevelWarn, "test", nil))

	if s.heartbeat.Beating() {
		t.Fatal("expected heartbeat not beating before first status ack")
	}

	s.handleLine(context.Background(), []byte(`{"op":"mcm"}`))

	if !strings.Contains(buf.String(), "heartbeat refresh skipped") {
		t.Errorf("expected a warning logged for refresh while not beating, got: %s", buf.String())
	}
}

func TestSession_AdvanceOnAck(t *testing.T) {
	cfg := &config.StreamConfig{Host: "example.com", Port: 443, CurrencyRate: 1}
	s := NewSession(cfg, testLogger())

	s.advanceOnAck(opAuthentication, statusWire{StatusCode: statusSuccess})
	if s.State() != SessionAuthenticated {
		t.Errorf("State() = %v, want authenticated after auth ack", s.State())
	}

	s.advanceOnAck(opMarketSubscription, statusWire{StatusCode: statusSuccess})
	if s.State() != SessionSubscribed {
		t.Errorf("State() = %v, want subscribed after subscription ack", s.State())
	}

	s.setState(SessionAuthenticated)
	s.advanceOnAck(opMarketSubscription, statusWire{StatusCode: statusFailure})
	if s.State() != SessionAuthenticated {
		t.Errorf("a failed ack must not advance state, got %v", s.State())
	}
}
