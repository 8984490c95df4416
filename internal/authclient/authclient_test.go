package authclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func TestClient_Login_Success(t *testing.T) {
	var gotAppKey, gotBody string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAppKey = r.Header.Get("X-Application")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"sessionToken":"tok-123","loginStatus":"SUCCESS"}`))
	}))
	defer server.Close()

	client, err := New(server.URL, "my-app-key")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	token, err := client.Login(context.Background(), "alice", "hunter2")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if token != "tok-123" {
		t.Errorf("Login() token = %q, want tok-123", token)
	}
	if gotAppKey != "my-app-key" {
		t.Errorf("X-Application header = %q, want my-app-key", gotAppKey)
	}

	form, err := url.ParseQuery(gotBody)
	if err != nil {
		t.Fatalf("failed to parse request body: %v", err)
	}
	if form.Get("username") != "alice" || form.Get("password") != "hunter2" {
		t.Errorf("request body = %q, want username/password for alice/hunter2", gotBody)
	}
}

func TestClient_Login_EscapesSpecialCharacters(t *testing.T) {
	var gotBody string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"sessionToken":"tok-456","loginStatus":"SUCCESS"}`))
	}))
	defer server.Close()

	client, err := New(server.URL, "my-app-key")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	password := "p&ss=w ord%"
	if _, err := client.Login(context.Background(), "alice", password); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	form, err := url.ParseQuery(gotBody)
	if err != nil {
		t.Fatalf("failed to parse request body: %v", err)
	}
	if form.Get("password") != password {
		t.Errorf("password round-tripped as %q, want %q", form.Get("password"), password)
	}
}

func TestClient_Login_RejectedStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"loginStatus":"INVALID_CREDENTIALS"}`))
	}))
	defer server.Close()

	client, err := New(server.URL, "my-app-key")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := client.Login(context.Background(), "alice", "wrong"); err == nil {
		t.Fatal("Login() expected error for rejected status, got nil")
	}
}

func TestClient_Login_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client, err := New(server.URL, "my-app-key")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := client.Login(context.Background(), "alice", "hunter2"); err == nil {
		t.Fatal("Login() expected error for 500 response, got nil")
	}
}
