package service

import (
	"context"
	"sync"
	"testing"

	"chainhire/internal/chain"
	"chainhire/internal/database"
	"chainhire/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testRecipient = "0x1111111111111111111111111111111111111111"

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

func assertAppError(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, code, appErr.Code, appErr.Message)
}

func assertValidationError(t *testing.T, err error, contains string) {
	t.Helper()
	assertAppError(t, err, models.CodeValidation)
	assert.Contains(t, err.Error(), contains)
}

// fakeVerifier answers every transfer with the configured result, unless a
// result was set for that specific hash.
type fakeVerifier struct {
	mu     sync.Mutex
	result *chain.Result
	err    error
	byHash map[string]*chain.Result
	calls  []chain.Expectation
}

func (f *fakeVerifier) VerifyTransfer(_ context.Context, hash string, exp chain.Expectation) (*chain.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, exp)
	if res, ok := f.byHash[hash]; ok {
		out := *res
		return &out, nil
	}
	if f.err != nil {
		return nil, f.err
	}
	res := *f.result
	return &res, nil
}

func (f *fakeVerifier) setFor(hash string, res *chain.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.byHash == nil {
		f.byHash = make(map[string]*chain.Result)
	}
	f.byHash[hash] = res
}

func (f *fakeVerifier) set(res *chain.Result, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.result, f.err = res, err
}

func (f *fakeVerifier) lastExpectation() chain.Expectation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

type recordedEvent struct {
	userID    uint
	eventType string
	payload   map[string]any
}

type recordingEvents struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recordingEvents) PublishUser(_ context.Context, userID uint, eventType string, payload map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{userID: userID, eventType: eventType, payload: payload})
}

func (r *recordingEvents) PublishBroadcast(_ context.Context, eventType string, payload map[string]any) {
	r.PublishUser(context.Background(), 0, eventType, payload)
}

func (r *recordingEvents) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.eventType)
	}
	return out
}
