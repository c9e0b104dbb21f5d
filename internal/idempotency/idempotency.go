// Package idempotency remembers which order an Idempotency-Key produced, so a retried create
// returns the original order instead of placing a second one.
package idempotency

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"
)

const Header = "Idempotency-Key"

// ErrInFlight means another request holding the same key has not finished yet.
var ErrInFlight = errors.New("a request with this idempotency key is in progress")

const (
	pendingTTL = 2 * time.Minute
	doneTTL    = 24 * time.Hour
)

type Store interface {
	// Reserve claims key. It returns the order id when the key already completed, "" when the
	// caller now owns the key, and ErrInFlight when another caller owns it.
	Reserve(ctx context.Context, key string) (string, error)
	Complete(ctx context.Context, key, orderID string) error
	Release(ctx context.Context, key string) error
}

func Key(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(Header))
}

// OrderKey scopes a client key to one user.
func OrderKey(userID, key string) string {
	return "idem:order:" + userID + ":" + key
}

type entry struct {
	orderID string
	expires time.Time
}

// MemoryStore is the in-process Store used when no Redis is configured.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: map[string]entry{}, now: time.Now}
}

func (m *MemoryStore) Reserve(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if e, ok := m.entries[key]; ok && now.Before(e.expires) {
		if e.orderID == "" {
			return "", ErrInFlight
		}
		return e.orderID, nil
	}
	m.entries[key] = entry{expires: now.Add(pendingTTL)}
	return "", nil
}

func (m *MemoryStore) Complete(_ context.Context, key, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = entry{orderID: orderID, expires: m.now().Add(doneTTL)}
	return nil
}

func (m *MemoryStore) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}
