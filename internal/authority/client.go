// Package authority is the HTTP client for the remote admin authority used
// by the verified authentication strategy. All calls go through a circuit
// breaker so a flapping authority fails fast instead of piling up retries.
package authority

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"admin-auth/internal/config"
	"admin-auth/internal/identity"
	"admin-auth/internal/rbac"
	"admin-auth/internal/util"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

const (
	loginPath  = "/admin/login"
	verifyPath = "/admin/verify"
	logoutPath = "/admin/logout"

	maxResponseBytes = 1 << 20
)

// UserPayload is the authority's view of an admin user. Permissions here are
// the source of truth in verified mode; they are never recomputed locally.
type UserPayload struct {
	Address     string    `json:"address"`
	Role        string    `json:"role"`
	Permissions []string  `json:"permissions"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	CreatedAt   time.Time `json:"createdAt"`
}

// LoginResponse is the authority's answer to a successful login.
type LoginResponse struct {
	Token string      `json:"token"`
	User  UserPayload `json:"user"`
}

type errorPayload struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

type httpResult struct {
	status int
	body   []byte
}

// Client talks to the remote authority.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[httpResult]
}

// NewClient builds an authority client from config.
func NewClient(cfg *config.Config) *Client {
	maxFailures := cfg.Auth.BreakerMaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	timeout := cfg.Auth.BreakerTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	cb := gobreaker.NewCircuitBreaker[httpResult](gobreaker.Settings{
		Name:        "admin-authority",
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			util.Warn("Authority circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &Client{
		baseURL: strings.TrimRight(cfg.Auth.AuthorityURL, "/"),
		http:    &http.Client{Timeout: cfg.Auth.AuthorityTimeout},
		breaker: cb,
	}
}

// Login exchanges credentials for a token and the authority-resolved user.
func (c *Client) Login(ctx context.Context, credentials, walletAddress string, requestedRole rbac.Role) (*LoginResponse, error) {
	body, err := json.Marshal(map[string]string{
		"credentials":   credentials,
		"walletAddress": walletAddress,
		"requestedRole": requestedRole.String(),
	})
	if err != nil {
		return nil, fmt.Errorf("encode login request: %w", err)
	}

	res, err := c.do(ctx, http.MethodPost, loginPath, "", body)
	if err != nil {
		return nil, err
	}
	if res.status == http.StatusForbidden {
		return nil, &identity.RoleNotPermittedError{Role: requestedRole}
	}
	if res.status < 200 || res.status >= 300 {
		return nil, &identity.AuthenticationFailedError{Message: remoteMessage(res)}
	}

	var out LoginResponse
	if err := json.Unmarshal(res.body, &out); err != nil {
		return nil, fmt.Errorf("decode login response: %w", err)
	}
	if out.Token == "" {
		return nil, &identity.AuthenticationFailedError{Message: "authority returned no token"}
	}
	return &out, nil
}

// Verify introspects an existing token. Any non-2xx answer is a rejection.
func (c *Client) Verify(ctx context.Context, token string) (*UserPayload, error) {
	res, err := c.do(ctx, http.MethodGet, verifyPath, token, nil)
	if err != nil {
		return nil, err
	}
	if res.status < 200 || res.status >= 300 {
		return nil, &identity.AuthenticationFailedError{Message: remoteMessage(res)}
	}

	var out struct {
		User UserPayload `json:"user"`
	}
	if err := json.Unmarshal(res.body, &out); err != nil {
		return nil, fmt.Errorf("decode verify response: %w", err)
	}
	return &out.User, nil
}

// Logout notifies the authority that the token is revoked.
func (c *Client) Logout(ctx context.Context, token string) error {
	res, err := c.do(ctx, http.MethodPost, logoutPath, token, nil)
	if err != nil {
		return err
	}
	if res.status < 200 || res.status >= 300 {
		return fmt.Errorf("authority logout returned status %d", res.status)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path, bearer string, body []byte) (httpResult, error) {
	return c.breaker.Execute(func() (httpResult, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return httpResult{}, fmt.Errorf("build authority request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if bearer != "" {
			req.Header.Set("Authorization", "Bearer "+bearer)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return httpResult{}, fmt.Errorf("authority request failed: %w", err)
		}
		defer resp.Body.Close()

		b, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return httpResult{}, fmt.Errorf("read authority response: %w", err)
		}
		return httpResult{status: resp.StatusCode, body: b}, nil
	})
}

func remoteMessage(res httpResult) string {
	var p errorPayload
	if err := json.Unmarshal(res.body, &p); err == nil {
		if p.Message != "" {
			return p.Message
		}
		if p.Error != "" {
			return p.Error
		}
	}
	return http.StatusText(res.status)
}
