package cache

import (
	"context"
	"sync"
	"time"

	"github.com/marketplace/payouts/internal/domain/shared"
)

const defaultSweepInterval = 5 * time.Minute

// MemoryStore keeps event claims in process memory. Claims are not shared
// between instances and are lost on restart.
type MemoryStore struct {
	mu      sync.Mutex
	expires map[string]time.Time
	now     func() time.Time

	stop    context.CancelFunc
	stopped chan struct{}
	once    sync.Once
}

// NewMemoryStore creates the store and starts sweeping expired claims
func NewMemoryStore() *MemoryStore {
	return newMemoryStore(defaultSweepInterval, time.Now)
}

func newMemoryStore(sweepEvery time.Duration, now func() time.Time) *MemoryStore {
	ctx, cancel := context.WithCancel(context.Background())
	s := &MemoryStore{
		expires: make(map[string]time.Time),
		now:     now,
		stop:    cancel,
		stopped: make(chan struct{}),
	}
	go s.sweepLoop(ctx, sweepEvery)
	return s
}

func (s *MemoryStore) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.live(key, now) {
		return false, nil
	}
	s.expires[key] = now.Add(ttl)
	return true, nil
}

func (s *MemoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.expires, key)
	s.mu.Unlock()
	return nil
}

// Held reports whether key has a live claim
func (s *MemoryStore) Held(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live(key, s.now())
}

// Close stops the sweeper. Calling it again is a no-op.
func (s *MemoryStore) Close() error {
	s.once.Do(func() {
		s.stop()
		<-s.stopped
	})
	return nil
}

// Len counts claims, expired ones the sweeper has not reached included
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.expires)
}

func (s *MemoryStore) live(key string, now time.Time) bool {
	expiresAt, ok := s.expires[key]
	return ok && now.Before(expiresAt)
}

func (s *MemoryStore) sweepLoop(ctx context.Context, every time.Duration) {
	defer close(s.stopped)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep deletes expired claims
func (s *MemoryStore) sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key := range s.expires {
		if !s.live(key, now) {
			delete(s.expires, key)
			removed++
		}
	}
	return removed
}

var _ shared.IdempotencyStore = (*MemoryStore)(nil)
