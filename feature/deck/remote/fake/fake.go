// Package fake is an in-memory Deck server implementing remote.API, used by the
// engine tests. It keeps ETags and modification times like the real server and
// can simulate connectivity loss, maintenance mode and per-operation failures.
package fake

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"deck-sync/core/errs"
	"deck-sync/feature/deck/remote"
)

type card struct {
	remote.Card
	boardID int64
	labels  map[int64]struct{}
	users   map[string]struct{}
}

type comment struct {
	remote.Comment
	cardID int64
}

type attachment struct {
	remote.Attachment
	content []byte
}

// Server is the fake. The zero value is not usable; call New.
type Server struct {
	mu sync.Mutex

	user   string
	nextID int64
	clock  int64

	listVersion  int64
	boardVersion map[int64]int64

	boards       map[int64]*remote.Board
	participants map[int64][]remote.User
	labels       map[int64]*remote.Label
	stacks       map[int64]*remote.Stack
	cards        map[int64]*card
	comments     map[int64]*comment
	attachments  map[int64]*attachment

	offline     bool
	maintenance bool
	failures    map[string]error
	calls       map[string]int
	writes      int
}

var _ remote.API = (*Server)(nil)

// New returns an empty server acting for the given user.
func New(user string) *Server {
	return &Server{
		user:         user,
		nextID:       100,
		clock:        1_700_000_000,
		boardVersion: make(map[int64]int64),
		boards:       make(map[int64]*remote.Board),
		participants: make(map[int64][]remote.User),
		labels:       make(map[int64]*remote.Label),
		stacks:       make(map[int64]*remote.Stack),
		cards:        make(map[int64]*card),
		comments:     make(map[int64]*comment),
		attachments:  make(map[int64]*attachment),
		failures:     make(map[string]error),
		calls:        make(map[string]int),
	}
}

// SetOffline makes every call fail with errs.ErrOffline.
func (s *Server) SetOffline(offline bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offline = offline
}

// SetMaintenance makes every call fail with errs.ErrMaintenance.
func (s *Server) SetMaintenance(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maintenance = on
}

// Fail makes every call of op return err. A nil err clears the failure.
func (s *Server) Fail(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

// Calls returns how often op was called.
func (s *Server) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// Writes returns the number of successful mutating calls.
func (s *Server) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// AddParticipant shares a board with a user.
func (s *Server) AddParticipant(boardID int64, u remote.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.participants[boardID] = append(s.participants[boardID], u)
	s.touch(boardID)
}

// AttachmentContent returns the uploaded bytes of an attachment.
func (s *Server) AttachmentContent(id int64) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.attachments[id]; ok {
		return a.content
	}
	return nil
}

// enter must be called with s.mu held.
func (s *Server) enter(ctx context.Context, op string) error {
	s.calls[op]++
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.offline {
		return fmt.Errorf("fake %s: %w", op, errs.ErrOffline)
	}
	if s.maintenance {
		return fmt.Errorf("fake %s: %w", op, errs.ErrMaintenance)
	}
	if err := s.failures[op]; err != nil {
		return fmt.Errorf("fake %s: %w", op, err)
	}
	return nil
}

func (s *Server) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Server) tick() int64 {
	s.clock++
	return s.clock
}

// touch records a change below a board. Must be called with s.mu held.
func (s *Server) touch(boardID int64) {
	s.boardVersion[boardID]++
	s.listVersion++
	s.writes++
}

func (s *Server) listETag() string {
	return fmt.Sprintf(`"list-%d"`, s.listVersion)
}

func (s *Server) boardETag(id int64) string {
	return fmt.Sprintf(`"board-%d-%d"`, id, s.boardVersion[id])
}

func notFound(what string, id int64) error {
	return fmt.Errorf("fake %s %d: %w", what, id, errs.ErrNotFound)
}

func rejected(format string, args ...any) error {
	return fmt.Errorf("fake: "+format+": %w", append(args, errs.ErrRejected)...)
}

func (s *Server) Capabilities(ctx context.Context) (remote.Capabilities, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, "Capabilities"); err != nil {
		return remote.Capabilities{}, err
	}
	return remote.Capabilities{Version: "27.1.0", DeckVersion: "1.11.0"}, nil
}

func (s *Server) renderBoard(b *remote.Board) remote.Board {
	out := *b
	out.ETag = s.boardETag(b.ID)
	out.Labels = nil
	for _, l := range s.labels {
		if l.BoardID == b.ID {
			out.Labels = append(out.Labels, *l)
		}
	}
	sort.Slice(out.Labels, func(i, j int) bool { return out.Labels[i].ID < out.Labels[j].ID })
	out.Users = append([]remote.User(nil), s.participants[b.ID]...)
	return out
}

func (s *Server) ListBoards(ctx context.Context, etag string) (remote.Listing[remote.Board], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, "ListBoards"); err != nil {
		return remote.Listing[remote.Board]{}, err
	}
	if etag != "" && etag == s.listETag() {
		return remote.Listing[remote.Board]{ETag: etag, Unchanged: true}, nil
	}

	out := make([]remote.Board, 0, len(s.boards))
	for _, b := range s.boards {
		out = append(out, s.renderBoard(b))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return remote.Listing[remote.Board]{Records: out, ETag: s.listETag()}, nil
}

func (s *Server) GetBoard(ctx context.Context, boardID int64) (remote.Board, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, "GetBoard"); err != nil {
		return remote.Board{}, err
	}
	b, ok := s.boards[boardID]
	if !ok {
		return remote.Board{}, notFound("board", boardID)
	}
	return s.renderBoard(b), nil
}

func (s *Server) CreateBoard(ctx context.Context, b remote.Board) (remote.Board, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, "CreateBoard"); err != nil {
		return remote.Board{}, err
	}
	if b.Title == "" {
		return remote.Board{}, rejected("board title is required")
	}
	stored := &remote.Board{ID: s.id(), Title: b.Title, Color: b.Color, LastModified: s.tick()}
	s.boards[stored.ID] = stored
	s.participants[stored.ID] = []remote.User{{UID: s.user, DisplayName: s.user}}
	s.touch(stored.ID)
	return s.renderBoard(stored), nil
}

func (s *Server) UpdateBoard(ctx context.Context, b remote.Board) (remote.Board, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, "UpdateBoard"); err != nil {
		return remote.Board{}, err
	}
	stored, ok := s.boards[b.ID]
	if !ok {
		return remote.Board{}, notFound("board", b.ID)
	}
	stored.Title = b.Title
	stored.Color = b.Color
	stored.Archived = b.Archived
	stored.LastModified = s.tick()
	s.touch(b.ID)
	return s.renderBoard(stored), nil
}

func (s *Server) DeleteBoard(ctx context.Context, boardID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, "DeleteBoard"); err != nil {
		return err
	}
	if _, ok := s.boards[boardID]; !ok {
		return notFound("board", boardID)
	}
	for id, st := range s.stacks {
		if st.BoardID == boardID {
			s.deleteStack(id)
		}
	}
	for id, l := range s.labels {
		if l.BoardID == boardID {
			delete(s.labels, id)
		}
	}
	delete(s.boards, boardID)
	delete(s.participants, boardID)
	s.touch(boardID)
	return nil
}

func (s *Server) CreateLabel(ctx context.Context, boardID int64, l remote.Label) (remote.Label, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, "CreateLabel"); err != nil {
		return remote.Label{}, err
	}
	if _, ok := s.boards[boardID]; !ok {
		return remote.Label{}, notFound("board", boardID)
	}
	stored := &remote.Label{ID: s.id(), Title: l.Title, Color: l.Color, BoardID: boardID, LastModified: s.tick()}
	s.labels[stored.ID] = stored
	s.touch(boardID)
	return *stored, nil
}

func (s *Server) UpdateLabel(ctx context.Context, boardID int64, l remote.Label) (remote.Label, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, "UpdateLabel"); err != nil {
		return remote.Label{}, err
	}
	stored, ok := s.labels[l.ID]
	if !ok || stored.BoardID != boardID {
		return remote.Label{}, notFound("label", l.ID)
	}
	stored.Title = l.Title
	stored.Color = l.Color
	stored.LastModified = s.tick()
	s.touch(boardID)
	return *stored, nil
}

func (s *Server) DeleteLabel(ctx context.Context, boardID, labelID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, "DeleteLabel"); err != nil {
		return err
	}
	stored, ok := s.labels[labelID]
	if !ok || stored.BoardID != boardID {
		return notFound("label", labelID)
	}
	delete(s.labels, labelID)
	for _, c := range s.cards {
		delete(c.labels, labelID)
	}
	s.touch(boardID)
	return nil
}
