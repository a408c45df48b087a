package deck

import "sync"

// slots marks the accounts that have a session running.
type slots struct {
	mu   sync.Mutex
	busy map[int64]struct{}
}

func newSlots() *slots {
	return &slots{busy: make(map[int64]struct{})}
}

// TryAcquire claims the account and reports whether it was free.
func (s *slots) TryAcquire(accountID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.busy[accountID]; ok {
		return false
	}
	s.busy[accountID] = struct{}{}
	return true
}

func (s *slots) Release(accountID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.busy, accountID)
}
