package progress

import (
	"context"
	"sync"
	"time"

	"museum-tour-workers/internal/common/errors"
)

type memoryEntry struct {
	mu        sync.Mutex
	status    Status
	expiresAt time.Time
	removed   bool
}

func (e *memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryStore keeps statuses in process. The map lock is held only for lookups and
// inserts; mutations lock the single entry, so unrelated requests never wait on each other.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
	now     func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewMemoryStore starts a janitor sweeping expired entries every janitorInterval. A
// non-positive interval disables the janitor; expired entries are then dropped on access.
func NewMemoryStore(janitorInterval time.Duration) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	if janitorInterval > 0 {
		s.wg.Add(1)
		go s.janitor(janitorInterval)
	}
	return s
}

func (s *MemoryStore) janitor(interval time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *MemoryStore) sweep() {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.entries {
		e.mu.Lock()
		if e.expired(now) {
			e.removed = true
			delete(s.entries, id)
		}
		e.mu.Unlock()
	}
}

// Close stops the janitor and waits for it to exit.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	s.wg.Wait()
	return nil
}

// Len returns the number of stored entries, including expired ones not yet swept.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *MemoryStore) Create(ctx context.Context, status Status, ttl time.Duration) error {
	e := &memoryEntry{status: status}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}

	s.mu.Lock()
	if old, ok := s.entries[status.RequestID]; ok {
		old.mu.Lock()
		old.removed = true
		old.mu.Unlock()
	}
	s.entries[status.RequestID] = e
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) lookup(requestID string) (*memoryEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[requestID]
	return e, ok
}

func (s *MemoryStore) Get(ctx context.Context, requestID string) (Status, error) {
	e, ok := s.lookup(requestID)
	if !ok {
		return Status{}, errors.NewProgressNotFoundError(requestID)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed || e.expired(s.now()) {
		return Status{}, errors.NewProgressNotFoundError(requestID)
	}
	return e.status, nil
}

func (s *MemoryStore) Mutate(ctx context.Context, requestID string, fn Mutation) error {
	e, ok := s.lookup(requestID)
	if !ok {
		return errors.NewProgressNotFoundError(requestID)
	}

	e.mu.Lock()
	if e.removed || e.expired(s.now()) {
		e.mu.Unlock()
		return errors.NewProgressNotFoundError(requestID)
	}

	next := e.status
	ttl, err := fn(&next)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	e.status = next
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
		e.mu.Unlock()
		return nil
	}
	e.removed = true
	e.mu.Unlock()

	s.remove(requestID, e)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, requestID string) error {
	e, ok := s.lookup(requestID)
	if !ok {
		return nil
	}
	e.mu.Lock()
	e.removed = true
	e.mu.Unlock()

	s.remove(requestID, e)
	return nil
}

// remove deletes the key only if it still points at e, so a concurrent Create wins.
func (s *MemoryStore) remove(requestID string, e *memoryEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entries[requestID] == e {
		delete(s.entries, requestID)
	}
}
