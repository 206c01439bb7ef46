package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/idkeeper/internal/logging"
	"github.com/dmitrijs2005/idkeeper/internal/server/access"
	"github.com/dmitrijs2005/idkeeper/internal/server/auth"
	"github.com/dmitrijs2005/idkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/idkeeper/internal/server/models"
	"github.com/dmitrijs2005/idkeeper/internal/server/notify"
	"github.com/dmitrijs2005/idkeeper/internal/server/password"
	"github.com/dmitrijs2005/idkeeper/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/idkeeper/internal/server/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- helpers ---

type outbox struct {
	mu   sync.Mutex
	msgs []notify.Message
}

func (o *outbox) Send(_ context.Context, m notify.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.msgs = append(o.msgs, m)
	return nil
}

func (o *outbox) last(t *testing.T) notify.Message {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	require.NotEmpty(t, o.msgs)
	return o.msgs[len(o.msgs)-1]
}

var (
	codeRe  = regexp.MustCompile(`\b(\d{6})\b`)
	tokenRe = regexp.MustCompile(`token=([0-9a-f]+)`)
)

func (o *outbox) code(t *testing.T) string {
	t.Helper()
	m := codeRe.FindStringSubmatch(o.last(t).Body)
	require.Len(t, m, 2)
	return m[1]
}

func (o *outbox) token(t *testing.T) string {
	t.Helper()
	m := tokenRe.FindStringSubmatch(o.last(t).Body)
	require.Len(t, m, 2)
	return m[1]
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

type env struct {
	srv  *Server
	svc  *services.AuthService
	repo *accounts.MemoryRepository
	box  *outbox
}

func newEnv(t *testing.T, opts Options) *env {
	t.Helper()
	hasher, err := password.NewArgon2(password.Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	require.NoError(t, err)

	repo := accounts.NewMemoryRepository()
	box := &outbox{}
	issuer := auth.NewIssuer([]byte("test"), 24*time.Hour)
	svc := services.NewAuthService(repo, hasher, issuer, box, logging.Nop{}, services.Options{
		AppURL:        "http://localhost:3000",
		MfaCodeTTL:    10 * time.Minute,
		ResetTokenTTL: time.Hour,
	})
	gate := access.NewGate(issuer, repo, logging.Nop{})

	if opts.AllowedOrigins == nil {
		opts.AllowedOrigins = []string{"*"}
	}
	srv := NewServer(opts, svc, gate, pinger{}, metrics.New(prometheus.NewRegistry()), logging.Nop{})
	return &env{srv: srv, svc: svc, repo: repo, box: box}
}

type reply struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func (e *env) do(t *testing.T, method, path, token string, body any) (int, reply, http.Header) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rec, req)

	var r reply
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r), rec.Body.String())
	}
	return rec.Code, r, rec.Header()
}

func (e *env) login(t *testing.T, email, pw string) string {
	t.Helper()
	code, _, _ := e.do(t, http.MethodPost, "/api/v1/auth/sign-in", "", map[string]string{"email": email, "password": pw})
	require.Equal(t, http.StatusOK, code)

	code, r, _ := e.do(t, http.MethodPost, "/api/v1/auth/verify-mfacode", "", map[string]string{"email": email, "mfaCode": e.box.code(t)})
	require.Equal(t, http.StatusOK, code, r.Message)

	var data struct{ Token string }
	require.NoError(t, json.Unmarshal(r.Data, &data))
	return data.Token
}

func (e *env) signUp(t *testing.T, name, email, pw string) string {
	t.Helper()
	code, r, _ := e.do(t, http.MethodPost, "/api/v1/auth/sign-up", "", map[string]string{"name": name, "email": email, "password": pw})
	require.Equal(t, http.StatusCreated, code, r.Message)
	var data struct {
		User struct{ ID string }
	}
	require.NoError(t, json.Unmarshal(r.Data, &data))
	return data.User.ID
}

// --- tests ---

func TestSignInFlow(t *testing.T) {
	e := newEnv(t, Options{})

	code, r, _ := e.do(t, http.MethodPost, "/api/v1/auth/sign-up", "", map[string]string{"name": "A", "email": "a@x.com", "password": "p1"})
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "success", r.Status)

	var signUp struct {
		User                  map[string]any
		VerificationEmailSent bool
	}
	require.NoError(t, json.Unmarshal(r.Data, &signUp))
	assert.True(t, signUp.VerificationEmailSent)
	assert.NotContains(t, signUp.User, "password")
	assert.NotContains(t, signUp.User, "passwordHash")
	assert.Equal(t, "UserRole", signUp.User["role"])

	code, r, _ = e.do(t, http.MethodPost, "/api/v1/auth/sign-in", "", map[string]string{"email": "a@x.com", "password": "p1"})
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, r.Message, "MFA code sent")

	code, r, _ = e.do(t, http.MethodPost, "/api/v1/auth/verify-mfacode", "", map[string]string{"email": "a@x.com", "mfaCode": "bad"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "error", r.Status)
	assert.Equal(t, "InvalidOrExpiredMfa", r.Error)

	code, r, _ = e.do(t, http.MethodPost, "/api/v1/auth/verify-mfacode", "", map[string]string{"email": "a@x.com", "mfaCode": e.box.code(t)})
	require.Equal(t, http.StatusOK, code)
	var data struct{ Token string }
	require.NoError(t, json.Unmarshal(r.Data, &data))
	assert.NotEmpty(t, data.Token)

	code, r, _ = e.do(t, http.MethodGet, "/api/v1/auth/me", data.Token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(r.Data), `"email":"a@x.com"`)
}

func TestSignUpErrors(t *testing.T) {
	e := newEnv(t, Options{})
	e.signUp(t, "A", "a@x.com", "p1")

	code, r, _ := e.do(t, http.MethodPost, "/api/v1/auth/sign-up", "", map[string]string{"name": "B", "email": "a@x.com", "password": "p2"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "Email already registered", r.Message)

	code, r, _ = e.do(t, http.MethodPost, "/api/v1/auth/sign-up", "", map[string]string{"email": "b@x.com"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "ValidationError", r.Error)

	code, _, _ = e.do(t, http.MethodPost, "/api/v1/auth/sign-up", "", "{not json")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestSignInErrors(t *testing.T) {
	e := newEnv(t, Options{})
	e.signUp(t, "A", "a@x.com", "p1")

	code, _, _ := e.do(t, http.MethodPost, "/api/v1/auth/sign-in", "", map[string]string{"email": "a@x.com", "password": "bad"})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _, _ = e.do(t, http.MethodPost, "/api/v1/auth/sign-in", "", map[string]string{"email": "nobody@x.com", "password": "p1"})
	assert.Equal(t, http.StatusNotFound, code)

	code, r, _ := e.do(t, http.MethodPost, "/api/v1/auth/verify-mfacode", "", map[string]string{"email": "a@x.com", "mfaCode": "123456"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "MfaNotRequested", r.Error)
}

func TestVerifyEmail(t *testing.T) {
	e := newEnv(t, Options{})
	e.signUp(t, "A", "a@x.com", "p1")
	token := e.box.token(t)

	code, r, _ := e.do(t, http.MethodGet, "/api/v1/auth/verify-email?token="+token, "", nil)
	require.Equal(t, http.StatusOK, code, r.Message)
	assert.Equal(t, "Email verified successfully", r.Message)

	code, r, _ = e.do(t, http.MethodPost, "/api/v1/auth/verify-email", "", map[string]string{"token": token})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "InvalidOrExpiredToken", r.Error)

	code, r, _ = e.do(t, http.MethodPost, "/api/v1/auth/resend-verification", "", map[string]string{"email": "a@x.com"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "AlreadyVerified", r.Error)
}

func TestPasswordReset(t *testing.T) {
	e := newEnv(t, Options{})
	e.signUp(t, "A", "a@x.com", "p1")

	code, _, _ := e.do(t, http.MethodPost, "/api/v1/auth/forgot-password", "", map[string]string{"email": "a@x.com"})
	require.Equal(t, http.StatusOK, code)
	token := e.box.token(t)

	code, r, _ := e.do(t, http.MethodPost, "/api/v1/auth/reset-password?token="+token, "", map[string]string{"password": "p2"})
	require.Equal(t, http.StatusOK, code, r.Message)

	code, _, _ = e.do(t, http.MethodPost, "/api/v1/auth/reset-password", "", map[string]string{"token": token, "password": "p3"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _, _ = e.do(t, http.MethodPost, "/api/v1/auth/sign-in", "", map[string]string{"email": "a@x.com", "password": "p1"})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.NotEmpty(t, e.login(t, "a@x.com", "p2"))
}

func TestGate(t *testing.T) {
	e := newEnv(t, Options{})
	id := e.signUp(t, "A", "a@x.com", "p1")
	token := e.login(t, "a@x.com", "p1")

	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"absent", "", "No token provided"},
		{"malformed", "Token " + token, "No token provided"},
		{"invalid", "Bearer x.y.z", "Invalid or expired token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			e.srv.Handler().ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			var r reply
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r))
			assert.Equal(t, tt.want, r.Message)
			assert.Equal(t, "Unauthenticated", r.Error)
		})
	}

	code, _, _ := e.do(t, http.MethodGet, "/api/v1/auth/users", token, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _, _ = e.do(t, http.MethodDelete, "/api/v1/auth/users/"+id, token, nil)
	require.Equal(t, http.StatusOK, code)

	code, r, _ := e.do(t, http.MethodGet, "/api/v1/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, code, "token for deleted account")
	assert.Equal(t, "User not found", r.Message)

	code, _, _ = e.do(t, http.MethodGet, "/api/v1/auth/users", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code, "authentication precedes role check")
}

func TestAdminRoutes(t *testing.T) {
	e := newEnv(t, Options{})
	require.NoError(t, e.svc.EnsureAdmin(context.Background(), services.AdminSeed{Email: "root@x.com", Password: "toor"}))
	bob := e.signUp(t, "B", "b@x.com", "p1")
	e.signUp(t, "C", "c@x.com", "p1")

	admin := e.login(t, "root@x.com", "toor")
	bobToken := e.login(t, "b@x.com", "p1")

	code, r, _ := e.do(t, http.MethodGet, "/api/v1/auth/users", admin, nil)
	require.Equal(t, http.StatusOK, code)
	var data struct{ Users []models.PublicAccount }
	require.NoError(t, json.Unmarshal(r.Data, &data))
	assert.Len(t, data.Users, 3)
	assert.NotContains(t, string(r.Data), "password")

	c, err := e.repo.FindByEmail(context.Background(), "c@x.com")
	require.NoError(t, err)
	code, _, _ = e.do(t, http.MethodDelete, "/api/v1/auth/users/"+c.ID, bobToken, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _, _ = e.do(t, http.MethodDelete, "/api/v1/auth/users/"+bob, admin, nil)
	assert.Equal(t, http.StatusOK, code)
	code, _, _ = e.do(t, http.MethodDelete, "/api/v1/auth/users/"+bob, admin, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestUpdateProfile(t *testing.T) {
	e := newEnv(t, Options{})
	e.signUp(t, "A", "a@x.com", "p1")
	e.signUp(t, "B", "b@x.com", "p1")
	token := e.login(t, "a@x.com", "p1")

	code, _, _ := e.do(t, http.MethodPut, "/api/v1/auth/me", token, map[string]string{"email": "b@x.com"})
	assert.Equal(t, http.StatusConflict, code)

	code, r, _ := e.do(t, http.MethodPut, "/api/v1/auth/me", token, map[string]string{"name": "Anna"})
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(r.Data), `"name":"Anna"`)
	assert.Contains(t, string(r.Data), `"email":"a@x.com"`)
}

func TestNotFoundAndHeaders(t *testing.T) {
	e := newEnv(t, Options{Production: true})

	code, r, h := e.do(t, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Route not found", r.Message)
	assert.Equal(t, "nosniff", h.Get("X-Content-Type-Options"))
	assert.Equal(t, "SAMEORIGIN", h.Get("X-Frame-Options"))
	assert.NotEmpty(t, h.Get("Strict-Transport-Security"))

	code, _, _ = e.do(t, http.MethodDelete, "/api/v1/auth/sign-in", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, code)
}

func TestHealth(t *testing.T) {
	e := newEnv(t, Options{Environment: "test"})

	rec := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var rep healthReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rep))
	assert.Equal(t, "success", rep.Status)
	assert.Equal(t, "test", rep.Environment)
	assert.Equal(t, "up", rep.Store)
	assert.Regexp(t, `^\d+h \d+m \d+s$`, rep.Uptime)

	e.srv.store = pinger{err: errors.New("refused")}
	rec = httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

// blockingPinger holds the request inside the handler until released or
// until its context is cancelled.
type blockingPinger struct {
	entered chan struct{}
	release chan struct{}
}

func (p *blockingPinger) Ping(ctx context.Context) error {
	close(p.entered)
	select {
	case <-p.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestServe_DrainsInFlightRequestsOnShutdown(t *testing.T) {
	e := newEnv(t, Options{Environment: "test"})
	p := &blockingPinger{entered: make(chan struct{}), release: make(chan struct{})}
	e.srv.store = p

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- e.srv.Serve(ctx, lis) }()

	type result struct {
		code int
		err  error
	}
	got := make(chan result, 1)
	go func() {
		resp, err := http.Get("http://" + lis.Addr().String() + "/health")
		if err != nil {
			got <- result{err: err}
			return
		}
		resp.Body.Close()
		got <- result{code: resp.StatusCode}
	}()

	select {
	case <-p.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("request never reached the store ping")
	}

	cancel()
	time.Sleep(100 * time.Millisecond)
	close(p.release)

	select {
	case r := <-got:
		require.NoError(t, r.err)
		assert.Equal(t, http.StatusOK, r.code)
	case <-time.After(5 * time.Second):
		t.Fatal("in-flight request did not complete")
	}

	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	e := newEnv(t, Options{})
	e.do(t, http.MethodGet, "/health", "", nil)

	rec := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "idkeeper_http_request_duration_seconds")
}

func TestFormatUptime(t *testing.T) {
	assert.Equal(t, "0h 0m 0s", formatUptime(0))
	assert.Equal(t, "1h 1m 5s", formatUptime(time.Hour+time.Minute+5*time.Second+300*time.Millisecond))
	assert.Equal(t, "26h 0m 0s", formatUptime(26*time.Hour))
}

// failingService breaks every call with an infrastructure error.
type failingService struct{ AuthService }

func (failingService) LoginUser(context.Context, string, string) error {
	return errors.New("mongo: connection reset")
}

func TestInternalErrorExposure(t *testing.T) {
	for _, prod := range []bool{false, true} {
		srv := NewServer(Options{Production: prod}, failingService{}, nil, nil, nil, logging.Nop{})

		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/sign-in", strings.NewReader(`{"email":"a","password":"b"}`))
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)

		require.Equal(t, http.StatusInternalServerError, rec.Code)
		var r reply
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r))
		assert.Equal(t, "InternalError", r.Error)
		if prod {
			assert.Equal(t, "Internal server error", r.Message)
		} else {
			assert.Equal(t, "mongo: connection reset", r.Message)
		}
	}
}
