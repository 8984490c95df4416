package transport

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net"
	"strconv"
	"testing"
	"time"
)

// selfSignedListener starts a TLS listener on 127.0.0.1 backed by an
// ephemeral self-signed certificate, mirroring the shape of
// httptest.NewTLSServer for a raw (non-HTTP) socket.
func selfSignedListener(t *testing.T) net.Listener {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "127.0.0.1"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	cert := tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}

	ln, err := tls.Listen("tcp", "127.0.0.1:0", &tls.Config{Certificates: []tls.Certificate{cert}})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	return ln
}

func hostPort(t *testing.T, ln net.Listener) (string, int) {
	t.Helper()
	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		t.Fatalf("split host port: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}
	return host, port
}

func TestClient_ConnectReceivesLines(t *testing.T) {
	ln := selfSignedListener(t)
	defer ln.Close()
	host, port := hostPort(t, ln)

	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		conn.Write([]byte("{\"op\":\"connection\",\"connectionId\":\"abc\"}\r\n"))
		conn.Write([]byte("{\"op\":\"status\",\"statusCode\":\"SUCCESS\"}\r\n"))
	}()

	cfg := DefaultConfig(host, port, "test")
	cfg.InsecureSkipVerify = true
	cfg.ReadTimeout = 2 * time.Second

	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer client.Close()

	received := make(chan []byte, 2)
	client.OnLine(func(ctx context.Context, line []byte) {
		received <- append([]byte(nil), line...)
	})

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	for i := 0; i < 2; i++ {
		select {
		case line := <-received:
			if len(line) == 0 {
				t.Errorf("expected a non-empty line")
			}
		case <-time.After(3 * time.Second):
			t.Fatalf("timed out waiting for line %d", i)
		}
	}

	<-serverDone
}

func TestClient_SendFramesWithCRLF(t *testing.T) {
	ln := selfSignedListener(t)
	defer ln.Close()
	host, port := hostPort(t, ln)

	gotFrame := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 256)
		n, _ := conn.Read(buf)
		gotFrame <- buf[:n]
	}()

	cfg := DefaultConfig(host, port, "test")
	cfg.InsecureSkipVerify = true

	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer client.Close()

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := client.Send(context.Background(), []byte(`{"op":"authentication"}`)); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	select {
	case frame := <-gotFrame:
		s := string(frame)
		if s[len(s)-2:] != "\r\n" {
			t.Errorf("expected frame to end with CRLF, got %q", s)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for server to receive the frame")
	}
}

func TestClient_StateTransitionsOnConnectAndClose(t *testing.T) {
	ln := selfSignedListener(t)
	defer ln.Close()
	host, port := hostPort(t, ln)

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		time.Sleep(200 * time.Millisecond)
	}()

	cfg := DefaultConfig(host, port, "test")
	cfg.InsecureSkipVerify = true
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	var states []State
	client.OnStateChange(func(s State, err error) { states = append(states, s) })

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if !client.IsConnected() {
		t.Fatalf("expected IsConnected() true after Connect")
	}

	client.Close()
	if client.State() != StateClosed {
		t.Errorf("State() = %v, want closed", client.State())
	}

	foundConnecting, foundConnected := false, false
	for _, s := range states {
		if s == StateConnecting {
			foundConnecting = true
		}
		if s == StateConnected {
			foundConnected = true
		}
	}
	if !foundConnecting || !foundConnected {
		t.Errorf("expected connecting and connected transitions, got %v", states)
	}
}
