package webhook

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ClaimStore marks events as in flight or done so a redelivered event does
// not run its handler twice. store.RedisClaimStore shares claims across
// instances.
type ClaimStore interface {
	// Claim returns ok=false when the key is already held or completed.
	Claim(ctx context.Context, key string, lease time.Duration) (token string, ok bool, err error)
	Complete(ctx context.Context, key, token string, ttl time.Duration) error
	Release(ctx context.Context, key, token string) error
}

// MemoryClaimStore is a process-local ClaimStore.
type MemoryClaimStore struct {
	mu     sync.Mutex
	claims map[string]memoryClaim
	now    func() time.Time
}

type memoryClaim struct {
	token   string
	done    bool
	expires time.Time
}

func NewMemoryClaimStore() *MemoryClaimStore {
	return &MemoryClaimStore{
		claims: make(map[string]memoryClaim),
		now:    time.Now,
	}
}

func (s *MemoryClaimStore) Claim(_ context.Context, key string, lease time.Duration) (string, bool, error) {
	if key == "" {
		return "", false, errors.New("claim key is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweep(now)

	if _, held := s.claims[key]; held {
		return "", false, nil
	}

	token := uuid.NewString()
	s.claims[key] = memoryClaim{token: token, expires: now.Add(lease)}
	return token, true, nil
}

func (s *MemoryClaimStore) Complete(_ context.Context, key, token string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.claims[key]
	if !ok || c.done || c.token != token {
		return nil
	}
	s.claims[key] = memoryClaim{token: token, done: true, expires: s.now().Add(ttl)}
	return nil
}

func (s *MemoryClaimStore) Release(_ context.Context, key, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.claims[key]; ok && !c.done && c.token == token {
		delete(s.claims, key)
	}
	return nil
}

// Len returns the number of live claims.
func (s *MemoryClaimStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweep(s.now())
	return len(s.claims)
}

// caller holds s.mu
func (s *MemoryClaimStore) sweep(now time.Time) {
	for key, c := range s.claims {
		if !now.Before(c.expires) {
			delete(s.claims, key)
		}
	}
}
