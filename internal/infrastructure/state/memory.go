package state

import (
	"context"
	"sync"
	"time"

	"PDFLibraryBot/internal/domain"
	"PDFLibraryBot/internal/ports"
)

const defaultTTL = 30 * time.Minute

// MemoryStore keeps dialogs in process memory. Entries older than the TTL
// are treated as absent and removed by Sweep.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	dialogs map[int64]domain.Dialog
}

var _ ports.StateStore = (*MemoryStore)(nil)

// NewMemoryStore builds a store; ttl <= 0 uses the default.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &MemoryStore{
		ttl:     ttl,
		now:     time.Now,
		dialogs: make(map[int64]domain.Dialog),
	}
}

// Get returns the user's dialog if one is active.
func (s *MemoryStore) Get(_ context.Context, userID int64) (domain.Dialog, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.dialogs[userID]
	if !ok {
		return domain.Dialog{}, false, nil
	}
	if s.expired(d, s.now()) {
		delete(s.dialogs, userID)
		return domain.Dialog{}, false, nil
	}
	return d, true, nil
}

// Set stores the dialog and refreshes its timestamp.
func (s *MemoryStore) Set(_ context.Context, userID int64, dialog domain.Dialog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dialog.UpdatedAt = s.now()
	s.dialogs[userID] = dialog
	return nil
}

// Clear drops the user's dialog.
func (s *MemoryStore) Clear(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.dialogs, userID)
	return nil
}

// Sweep removes expired dialogs and reports how many were dropped.
func (s *MemoryStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, d := range s.dialogs {
		if s.expired(d, now) {
			delete(s.dialogs, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored dialogs, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.dialogs)
}

func (s *MemoryStore) expired(d domain.Dialog, now time.Time) bool {
	return now.Sub(d.UpdatedAt) > s.ttl
}
