package store

// Op is the kind of write a Change reports.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Change is published after every committed write so readers can refresh.
type Change struct {
	Kind      string `json:"kind"`
	Op        Op     `json:"op"`
	AccountID int64  `json:"account_id"`
	LocalID   int64  `json:"local_id"`
}

// Subscribe returns a stream of changes and a function to stop it.
// Slow subscribers miss changes rather than block writers.
func (s *Store) Subscribe(buffer int) (<-chan Change, func()) {
	ch := make(chan Change, buffer)

	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once bool
	return ch, func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if once {
			return
		}
		once = true
		delete(s.subs, id)
		close(ch)
	}
}

func (s *Store) publish(c Change) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- c:
		default:
		}
	}
}
