package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"chainhire/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignupAndLogin(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	token, userID := env.signup(t, "dev@example.com")
	assert.NotZero(t, userID)

	resp := env.do(t, http.MethodGet, "/api/me", token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	me := decode[models.User](t, resp)
	assert.Equal(t, userID, me.ID)

	tests := []struct {
		name       string
		body       map[string]string
		wantStatus int
	}{
		{"valid credentials", map[string]string{"email": "dev@example.com", "password": "secret123"}, http.StatusOK},
		{"wrong password", map[string]string{"email": "dev@example.com", "password": "nope1234"}, http.StatusUnauthorized},
		{"unknown email", map[string]string{"email": "ghost@example.com", "password": "secret123"}, http.StatusUnauthorized},
		{"missing fields", map[string]string{"email": ""}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, http.MethodPost, "/api/auth/login", "", tt.body)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
}

func TestSignup_Validation(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	env.signup(t, "taken@example.com")

	tests := []struct {
		name       string
		body       map[string]string
		wantStatus int
	}{
		{
			name:       "passwords differ",
			body:       map[string]string{"email": "a@example.com", "password": "secret123", "confirm_password": "secret124", "full_name": "A"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "short password",
			body:       map[string]string{"email": "b@example.com", "password": "abc", "confirm_password": "abc", "full_name": "B"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "bad email",
			body:       map[string]string{"email": "not-an-email", "password": "secret123", "confirm_password": "secret123", "full_name": "C"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "duplicate email",
			body:       map[string]string{"email": "taken@example.com", "password": "secret123", "confirm_password": "secret123", "full_name": "D"},
			wantStatus: http.StatusConflict,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, http.MethodPost, "/api/auth/signup", "", tt.body)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/api/auth/signup", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	resp, err := env.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	token, _ := env.signup(t, "auth@example.com")

	tests := []struct {
		name       string
		header     string
		path       string
		wantStatus int
		wantError  string
	}{
		{"no token", "", "/api/me", http.StatusUnauthorized, "Authorization required"},
		{"malformed header", "Token abc", "/api/me", http.StatusUnauthorized, "Authorization required"},
		{"garbage token", "Bearer not.a.jwt", "/api/me", http.StatusUnauthorized, "Invalid or expired token"},
		{"query token", "", "/api/me?token=" + token, http.StatusOK, ""},
		{"valid bearer", "Bearer " + token, "/api/me", http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := env.app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantError != "" {
				body := decode[models.ErrorResponse](t, resp)
				assert.Equal(t, tt.wantError, body.Error)
				assert.Equal(t, models.CodeUnauthorized, body.Code)
			}
		})
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	_, rdb := setupRedis(t)
	env := newTestEnv(t, testConfig(), rdb)
	token, _ := env.signup(t, "bye@example.com")

	resp := env.do(t, http.MethodPost, "/api/auth/refresh", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	refreshed := decode[map[string]string](t, resp)
	require.NotEmpty(t, refreshed["token"])

	resp = env.do(t, http.MethodPost, "/api/auth/logout", refreshed["token"], nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/me", refreshed["token"], nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	body := decode[models.ErrorResponse](t, resp)
	assert.Equal(t, "Token has been revoked", body.Error)

	resp = env.do(t, http.MethodPost, "/api/auth/logout", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuthRequired_WSTicket(t *testing.T) {
	_, rdb := setupRedis(t)
	env := newTestEnv(t, testConfig(), rdb)

	var seen []any
	env.app.Get("/api/ws/probe", env.server.AuthRequired(), func(c *fiber.Ctx) error {
		seen = append(seen, c.Locals("userID"))
		return c.JSON(fiber.Map{"ticket": c.Locals("wsTicket")})
	})
	token, userID := env.signup(t, "ws@example.com")

	resp := env.do(t, http.MethodPost, "/api/ws/ticket", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	issued := decode[map[string]any](t, resp)
	ticket, _ := issued["ticket"].(string)
	require.NotEmpty(t, ticket)
	assert.EqualValues(t, 60, issued["expires_in"])

	resp = env.do(t, http.MethodGet, "/api/ws/probe?ticket="+ticket, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, seen, 1)
	assert.Equal(t, userID, seen[0])

	// Tickets are single use.
	resp = env.do(t, http.MethodGet, "/api/ws/probe?ticket="+ticket, "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// With a ticket store, websocket routes do not accept raw tokens in the query.
	resp = env.do(t, http.MethodGet, "/api/ws/probe?token="+token, "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/ws/probe", token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestIssueWSTicket_NoRedis(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)
	token, _ := env.signup(t, "nows@example.com")

	resp := env.do(t, http.MethodPost, "/api/ws/ticket", token, nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestWalletLoginFlag(t *testing.T) {
	cfg := testConfig()
	cfg.FeatureFlags = "wallet_login=off"
	env := newTestEnv(t, cfg, nil)

	nonceReq := map[string]string{
		"address":     "0x1111111111111111111111111111111111111111",
		"wallet_type": "metamask",
	}
	resp := env.do(t, http.MethodPost, "/api/auth/wallet/nonce", "", nonceReq)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	token, userID := env.signup(t, "flags@example.com")
	env.makeAdmin(t, userID)
	resp = env.do(t, http.MethodPut, "/api/admin/feature-flags/wallet_login", token, map[string]string{"value": "on"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/auth/wallet/nonce", "", nonceReq)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	challenge := decode[map[string]any](t, resp)
	assert.NotEmpty(t, challenge["nonce"])
	assert.Contains(t, challenge["message"], challenge["nonce"])

	resp = env.do(t, http.MethodPut, "/api/admin/feature-flags/wallet_login", token, map[string]string{"value": "sometimes"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)

	resp := env.do(t, http.MethodGet, "/health/live", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	live := decode[map[string]any](t, resp)
	assert.Equal(t, "up", live["status"])

	resp = env.do(t, http.MethodGet, "/health/ready", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ready := decode[map[string]any](t, resp)
	checks := ready["checks"].(map[string]any)
	assert.Equal(t, "healthy", checks["database"])
	assert.Equal(t, "unavailable", checks["redis"])
	assert.Equal(t, "unavailable", checks["chain"])

	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	env = newTestEnv(t, testConfig(), rdb)
	mr.Close()
	resp = env.do(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestSwaggerDoc(t *testing.T) {
	env := newTestEnv(t, testConfig(), nil)

	resp := env.do(t, http.MethodGet, "/api/swagger/doc.json", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	doc := decode[map[string]any](t, resp)
	assert.Equal(t, "/api", doc["basePath"])

	paths := doc["paths"].(map[string]any)
	for _, p := range []string{"/auth/signup", "/auth/wallet/verify", "/jobs", "/payments/quote"} {
		assert.Contains(t, paths, p)
	}
	created := paths["/jobs"].(map[string]any)["post"].(map[string]any)["responses"].(map[string]any)
	assert.Contains(t, created, "402")
	defs := doc["definitions"].(map[string]any)
	quote := defs["server.paymentRequiredResponse"].(map[string]any)["properties"].(map[string]any)
	assert.Contains(t, quote, "quote")
}
