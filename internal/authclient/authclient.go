// Package authclient exchanges exchange-account credentials for the
// session token the streaming connection authenticates with. Most
// betting-exchange wire protocols separate login (a REST call) from the
// stream's own authentication frame, which only ever carries an app key
// and an already-obtained session token (§4.1).
package authclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/fd1az/betexstream/internal/apperror"
	"github.com/fd1az/betexstream/internal/httpclient"
)

// loginResponse is the subset of a typical exchange login response this
// client cares about.
type loginResponse struct {
	SessionToken string `json:"sessionToken"`
	Status       string `json:"loginStatus"`
}

// Client performs the REST login call.
type Client struct {
	http   httpclient.Client
	appKey string
}

// New builds a Client. loginURL becomes the underlying HTTP client's base
// URL; appKey is sent as a header on every login request, the same app
// key the stream's own authentication frame carries.
func New(loginURL, appKey string) (*Client, error) {
	hc, err := httpclient.NewInstrumentedClient(
		httpclient.WithBaseURL(loginURL),
		httpclient.WithProviderName("betex-login"),
	)
	if err != nil {
		return nil, apperror.AuthFailed("build login http client", err)
	}
	return &Client{http: hc, appKey: appKey}, nil
}

// Login exchanges username/password for a session token.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	form := url.Values{"username": {username}, "password": {password}}.Encode()
	resp, err := c.http.NewRequest().
		SetHeader("X-Application", c.appKey).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetBody([]byte(form)).
		Post(ctx, "/login")
	if err != nil {
		return "", apperror.AuthFailed("login request", err)
	}
	if resp.IsError() {
		return "", apperror.AuthFailed("login rejected", fmt.Errorf("status %d: %s", resp.StatusCode, resp.String()))
	}

	var lr loginResponse
	if err := json.Unmarshal(resp.Body(), &lr); err != nil {
		return "", apperror.AuthFailed("decode login response", err)
	}
	if lr.Status != "SUCCESS" || lr.SessionToken == "" {
		return "", apperror.AuthFailed("login status", fmt.Errorf("loginStatus=%q", lr.Status))
	}
	return lr.SessionToken, nil
}
