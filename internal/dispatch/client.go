// Package dispatch is the facade over the downstream IPTV channel manager's
// REST API. Authentication is JWT from username/password; an expired token
// is refreshed transparently on the first 401. All calls share one pacer so
// a large reconcile cannot hammer the manager.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/teamarr/teamarr/internal/httpclient"
)

// Config points the facade at one manager instance.
type Config struct {
	BaseURL  string
	Username string
	Password string

	// RequestsPerSecond paces outbound calls. Zero means the default of 8.
	RequestsPerSecond float64
	Timeout           time.Duration
}

// Client talks to the manager. Safe for concurrent use.
type Client struct {
	base    string
	http    *http.Client
	limiter *rate.Limiter
	log     zerolog.Logger

	username string
	password string

	mu    sync.Mutex
	token string
}

// StatusError is a non-2xx manager response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("manager returned %d: %s", e.Code, e.Body)
}

func NewClient(cfg Config, log zerolog.Logger) *Client {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 8
	}
	hc := httpclient.Default()
	if cfg.Timeout > 0 {
		hc = httpclient.WithTimeout(cfg.Timeout)
	}
	return &Client{
		base:     strings.TrimRight(cfg.BaseURL, "/"),
		http:     hc,
		limiter:  rate.NewLimiter(rate.Limit(rps), int(rps)*2),
		log:      log.With().Str("component", "dispatch").Logger(),
		username: cfg.Username,
		password: cfg.Password,
	}
}

// login exchanges credentials for a fresh access token.
func (c *Client) login(ctx context.Context) error {
	payload, _ := json.Marshal(map[string]string{
		"username": c.username,
		"password": c.password,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/accounts/token/", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("manager login: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var out struct {
		Access string `json:"access"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("decode token response: %w", err)
	}
	if out.Access == "" {
		return fmt.Errorf("manager login: empty access token")
	}
	c.mu.Lock()
	c.token = out.Access
	c.mu.Unlock()
	c.log.Debug().Msg("manager token acquired")
	return nil
}

func (c *Client) currentToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// do sends one authenticated request, retrying exactly once after a 401
// with a freshly acquired token. out may be nil for calls with no response
// body of interest.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	release := httpclient.GlobalHostSem.Acquire(c.base)
	defer release()

	if c.currentToken() == "" {
		if err := c.login(ctx); err != nil {
			return err
		}
	}

	retried := false
	for {
		var reader io.Reader
		if body != nil {
			payload, err := json.Marshal(body)
			if err != nil {
				return err
			}
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+c.currentToken())
		req.Header.Set("X-Request-ID", uuid.NewString())
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}

		if resp.StatusCode == http.StatusUnauthorized && !retried {
			resp.Body.Close()
			retried = true
			c.log.Debug().Str("path", path).Msg("token rejected; re-authenticating")
			if err := c.login(ctx); err != nil {
				return err
			}
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
		}
		if out != nil {
			err = json.NewDecoder(resp.Body).Decode(out)
		}
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("decode %s %s: %w", method, path, err)
		}
		return nil
	}
}
