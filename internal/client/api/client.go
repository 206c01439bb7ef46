// Package api is a typed client for the idkeeper HTTP API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/idkeeper/internal/common"
)

var (
	// ErrUnavailable means the server could not be reached at all.
	ErrUnavailable = errors.New("server unavailable")
	// ErrNotLoggedIn is returned by calls that need a session token.
	ErrNotLoggedIn = errors.New("not logged in")
)

// Error is a non-2xx response decoded from the envelope.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http %d", e.Status)
	}
	return fmt.Sprintf("%s (http %d)", e.Message, e.Status)
}

// Account mirrors the public account shape returned by the server.
type Account struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Role       string    `json:"role"`
	IsVerified bool      `json:"isVerified"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// ProfilePatch carries optional profile changes. Nil fields are omitted.
type ProfilePatch struct {
	Name     *string `json:"name,omitempty"`
	Email    *string `json:"email,omitempty"`
	Password *string `json:"password,omitempty"`
}

// Health is the /api/health report.
type Health struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	Environment string `json:"environment"`
	Uptime      string `json:"uptime"`
	Store       string `json:"store"`
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type Client struct {
	base string
	http *http.Client

	mu    sync.RWMutex
	token string
}

// New returns a client for the server at baseURL (e.g. http://localhost:3000).
func New(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server url must be http or https, got %q", baseURL)
	}
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: timeout},
	}, nil
}

func (c *Client) SetToken(t string) {
	c.mu.Lock()
	c.token = t
	c.mu.Unlock()
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// do sends body as JSON and decodes the envelope. out, when non-nil,
// receives the data field. The returned message is the envelope message.
func (c *Client) do(ctx context.Context, method, path string, auth bool, body, out any) (string, error) {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return "", err
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rdr)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		t := c.Token()
		if t == "" {
			return "", ErrNotLoggedIn
		}
		req.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+t)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&env); err != nil && !errors.Is(err, io.EOF) {
		if resp.StatusCode >= 400 {
			return "", &Error{Status: resp.StatusCode}
		}
		return "", fmt.Errorf("decode response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return "", &Error{Status: resp.StatusCode, Code: env.Error, Message: env.Message}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return "", fmt.Errorf("decode data: %w", err)
		}
	}
	return env.Message, nil
}

const authPath = common.APIPrefix + "/auth"

// SignUp registers an account. emailSent reports whether the server
// managed to send the verification email.
func (c *Client) SignUp(ctx context.Context, name, email, password string) (acc Account, emailSent bool, err error) {
	var out struct {
		User                  Account `json:"user"`
		VerificationEmailSent bool    `json:"verificationEmailSent"`
	}
	_, err = c.do(ctx, http.MethodPost, authPath+"/sign-up", false,
		map[string]string{"name": name, "email": email, "password": password}, &out)
	return out.User, out.VerificationEmailSent, err
}

// SignIn starts the MFA login; the code arrives by email.
func (c *Client) SignIn(ctx context.Context, email, password string) (string, error) {
	return c.do(ctx, http.MethodPost, authPath+"/sign-in", false,
		map[string]string{"email": email, "password": password}, nil)
}

// VerifyMfa completes login and stores the session token on the client.
func (c *Client) VerifyMfa(ctx context.Context, email, code string) error {
	var out struct {
		Token string `json:"token"`
	}
	if _, err := c.do(ctx, http.MethodPost, authPath+"/verify-mfacode", false,
		map[string]string{"email": email, "mfaCode": code}, &out); err != nil {
		return err
	}
	c.SetToken(out.Token)
	return nil
}

func (c *Client) VerifyEmail(ctx context.Context, token string) (string, error) {
	return c.do(ctx, http.MethodPost, authPath+"/verify-email", false, map[string]string{"token": token}, nil)
}

func (c *Client) ResendVerification(ctx context.Context, email string) (string, error) {
	return c.do(ctx, http.MethodPost, authPath+"/resend-verification", false, map[string]string{"email": email}, nil)
}

func (c *Client) ForgotPassword(ctx context.Context, email string) (string, error) {
	return c.do(ctx, http.MethodPost, authPath+"/forgot-password", false, map[string]string{"email": email}, nil)
}

func (c *Client) ResetPassword(ctx context.Context, token, password string) (string, error) {
	return c.do(ctx, http.MethodPost, authPath+"/reset-password", false,
		map[string]string{"token": token, "password": password}, nil)
}

func (c *Client) Me(ctx context.Context) (Account, error) {
	var out struct {
		User Account `json:"user"`
	}
	_, err := c.do(ctx, http.MethodGet, authPath+"/me", true, nil, &out)
	return out.User, err
}

func (c *Client) UpdateMe(ctx context.Context, p ProfilePatch) (Account, error) {
	var out struct {
		User Account `json:"user"`
	}
	_, err := c.do(ctx, http.MethodPut, authPath+"/me", true, p, &out)
	return out.User, err
}

func (c *Client) Users(ctx context.Context) ([]Account, error) {
	var out struct {
		Users []Account `json:"users"`
	}
	_, err := c.do(ctx, http.MethodGet, authPath+"/users", true, nil, &out)
	return out.Users, err
}

func (c *Client) DeleteUser(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, authPath+"/users/"+url.PathEscape(id), true, nil, nil)
	return err
}

// Health reads /api/health. The report is flat, not enveloped.
func (c *Client) Health(ctx context.Context) (Health, error) {
	var h Health
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/health", nil)
	if err != nil {
		return h, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return h, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return h, fmt.Errorf("decode health: %w", err)
	}
	if resp.StatusCode >= 400 {
		return h, &Error{Status: resp.StatusCode, Message: h.Message}
	}
	return h, nil
}
