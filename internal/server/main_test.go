package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"chainhire/internal/chain"
	"chainhire/internal/config"
	"chainhire/internal/database"
	"chainhire/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testPlatformWallet = "0x00000000000000000000000000000000000000aa"

// MockVerifier is a mock of the on-chain transfer verifier.
type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) VerifyTransfer(ctx context.Context, hash string, exp chain.Expectation) (*chain.Result, error) {
	args := m.Called(ctx, hash, exp)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*chain.Result), args.Error(1)
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db))
	return db
}

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:             "test-secret",
		Port:                  "0",
		Env:                   "test",
		FeatureFlags:          "wallet_login=on",
		ChainID:               1,
		PlatformWallet:        testPlatformWallet,
		JobPostFeeETH:         "0.001",
		RequiredConfirmations: 1,
		ExplorerTxURL:         "https://etherscan.io/tx/",
	}
}

type testEnv struct {
	server   *Server
	app      *fiber.App
	db       *gorm.DB
	verifier *MockVerifier
}

// newTestEnv builds a server over SQLite with routes mounted. rdb may be nil.
func newTestEnv(t *testing.T, cfg *config.Config, rdb *redis.Client) *testEnv {
	t.Helper()
	db := setupTestDB(t)
	verifier := new(MockVerifier)

	s, err := NewServerWithDeps(cfg, db, rdb, WithVerifier(verifier))
	require.NoError(t, err)

	app := fiber.New()
	s.SetupRoutes(app)
	return &testEnv{server: s, app: app, db: db, verifier: verifier}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

type authBody struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// signup registers a password account and returns its token and user ID.
func (e *testEnv) signup(t *testing.T, email string) (string, uint) {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"email":            email,
		"password":         "secret123",
		"confirm_password": "secret123",
		"full_name":        "Test User",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	body := decode[authBody](t, resp)
	require.NotEmpty(t, body.Token)
	return body.Token, body.User.ID
}

func (e *testEnv) makeAdmin(t *testing.T, userID uint) {
	t.Helper()
	require.NoError(t, e.db.Model(&models.User{}).Where("id = ?", userID).Update("is_admin", true).Error)
}
