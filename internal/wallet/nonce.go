// Package wallet issues and redeems the single-use sign-in challenges that prove
// control of a wallet address.
package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNoChallenge means no unexpired challenge exists for the address.
var ErrNoChallenge = errors.New("no pending sign-in challenge for this wallet")

// Challenge is the message a wallet must sign.
type Challenge struct {
	Address    string    `json:"address"`
	WalletType string    `json:"wallet_type"`
	Nonce      string    `json:"nonce"`
	Message    string    `json:"message"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// NonceStore keeps at most one outstanding challenge per wallet.
type NonceStore interface {
	// Issue returns the wallet's outstanding challenge, creating one when none is pending.
	Issue(ctx context.Context, walletType, address string) (*Challenge, error)
	// Pending returns the outstanding challenge without redeeming it.
	Pending(ctx context.Context, walletType, address string) (*Challenge, error)
	// Redeem deletes the challenge carrying nonce. Only one caller can redeem a
	// challenge; the others get ErrNoChallenge.
	Redeem(ctx context.Context, walletType, address, nonce string) error
}

// NewNonceStore returns a Redis-backed store, or an in-process one when rdb is nil.
func NewNonceStore(rdb *redis.Client, ttl time.Duration) NonceStore {
	if rdb == nil {
		return &memoryStore{ttl: ttl, now: time.Now, items: make(map[string]*Challenge)}
	}
	return &redisStore{rdb: rdb, ttl: ttl, now: time.Now}
}

// SignInMessage is the text shown in the wallet prompt.
func SignInMessage(walletType, address, nonce string, issuedAt time.Time) string {
	return fmt.Sprintf(
		"chainhire wants you to sign in with your %s account:\n%s\n\nNonce: %s\nIssued At: %s",
		walletType, address, nonce, issuedAt.UTC().Format(time.RFC3339),
	)
}

func newChallenge(walletType, address string, now time.Time, ttl time.Duration) *Challenge {
	nonce := uuid.NewString()
	return &Challenge{
		Address:    address,
		WalletType: walletType,
		Nonce:      nonce,
		Message:    SignInMessage(walletType, address, nonce, now),
		ExpiresAt:  now.Add(ttl),
	}
}

func key(walletType, address string) string {
	return fmt.Sprintf("wallet:nonce:%s:%s", walletType, address)
}

type redisStore struct {
	rdb *redis.Client
	ttl time.Duration
	now func() time.Time
}

func (s *redisStore) Issue(ctx context.Context, walletType, address string) (*Challenge, error) {
	k := key(walletType, address)
	for attempt := 0; attempt < 2; attempt++ {
		c := newChallenge(walletType, address, s.now(), s.ttl)
		b, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		created, err := s.rdb.SetNX(ctx, k, b, s.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("store challenge: %w", err)
		}
		if created {
			return c, nil
		}
		existing, err := s.Pending(ctx, walletType, address)
		if errors.Is(err, ErrNoChallenge) {
			// Expired between the two calls.
			continue
		}
		return existing, err
	}
	return nil, errors.New("store challenge: challenge keeps expiring")
}

func (s *redisStore) Pending(ctx context.Context, walletType, address string) (*Challenge, error) {
	b, err := s.rdb.Get(ctx, key(walletType, address)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoChallenge
	}
	if err != nil {
		return nil, fmt.Errorf("load challenge: %w", err)
	}
	var c Challenge
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("decode challenge: %w", err)
	}
	return &c, nil
}

func (s *redisStore) Redeem(ctx context.Context, walletType, address, nonce string) error {
	k := key(walletType, address)
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		b, err := tx.Get(ctx, k).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNoChallenge
		}
		if err != nil {
			return fmt.Errorf("load challenge: %w", err)
		}
		var c Challenge
		if err := json.Unmarshal(b, &c); err != nil {
			return fmt.Errorf("decode challenge: %w", err)
		}
		if c.Nonce != nonce {
			return ErrNoChallenge
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, k)
			return nil
		})
		return err
	}, k)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrNoChallenge
	}
	return err
}

type memoryStore struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	items map[string]*Challenge
}

func (s *memoryStore) Issue(_ context.Context, walletType, address string) (*Challenge, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range s.items {
		if now.After(v.ExpiresAt) {
			delete(s.items, k)
		}
	}
	k := key(walletType, address)
	if c, ok := s.items[k]; ok {
		return c, nil
	}
	c := newChallenge(walletType, address, now, s.ttl)
	s.items[k] = c
	return c, nil
}

func (s *memoryStore) Pending(_ context.Context, walletType, address string) (*Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending(key(walletType, address))
}

func (s *memoryStore) Redeem(_ context.Context, walletType, address, nonce string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(walletType, address)
	c, err := s.pending(k)
	if err != nil {
		return err
	}
	if c.Nonce != nonce {
		return ErrNoChallenge
	}
	delete(s.items, k)
	return nil
}

func (s *memoryStore) pending(k string) (*Challenge, error) {
	c, ok := s.items[k]
	if !ok {
		return nil, ErrNoChallenge
	}
	if s.now().After(c.ExpiresAt) {
		delete(s.items, k)
		return nil, ErrNoChallenge
	}
	return c, nil
}
