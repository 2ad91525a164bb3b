package store

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/tollgate-labs/tollgate/ports"
)

// MemoryStore is the in-memory implementation of the NonceStore interface.
// Expired entries are evicted lazily on consume; a background sweep removes
// entries that expired without ever being consumed.
type MemoryStore struct {
	nonces map[string]time.Time
	mu     sync.Mutex
	done   chan struct{}
	now    func() time.Time
}

// NewMemoryStore creates a nonce store sweeping unconsumed entries at the
// given interval. A non-positive interval disables the sweep.
func NewMemoryStore(sweepInterval time.Duration) *MemoryStore {
	s := &MemoryStore{
		nonces: make(map[string]time.Time),
		done:   make(chan struct{}),
		now:    time.Now,
	}

	if sweepInterval > 0 {
		go s.sweepLoop(sweepInterval)
	}

	return s
}

var _ ports.NonceStore = (*MemoryStore)(nil)

// Issue generates a random nonce and records it with expiry now+ttl
func (s *MemoryStore) Issue(ttl time.Duration) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	value := hex.EncodeToString(buf)

	s.mu.Lock()
	s.nonces[value] = s.now().Add(ttl)
	s.mu.Unlock()

	return value, nil
}

// Consume removes the nonce under the lock and reports whether it was
// present and unexpired. Check-and-delete is a single critical section, so
// concurrent consumes of one value observe at most one success.
func (s *MemoryStore) Consume(value string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiry, exists := s.nonces[value]
	if !exists {
		return false
	}
	delete(s.nonces, value)

	return s.now().Before(expiry)
}

// Close stops the sweep goroutine
func (s *MemoryStore) Close() {
	close(s.done)
}

func (s *MemoryStore) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *MemoryStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for value, expiry := range s.nonces {
		if now.After(expiry) {
			delete(s.nonces, value)
		}
	}
}
