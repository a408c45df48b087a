package fake

import (
	"bytes"
	"context"
	"io"
	"mime"
	"path/filepath"
	"sort"

	"deck-sync/feature/deck/remote"
)

func (s *Server) renderCard(c *card) remote.Card {
	out := c.Card
	out.Labels = nil
	out.AssignedUsers = nil
	for id := range c.labels {
		if l, ok := s.labels[id]; ok {
			out.Labels = append(out.Labels, *l)
		}
	}
	sort.Slice(out.Labels, func(i, j int) bool { return out.Labels[i].ID < out.Labels[j].ID })
	uids := make([]string, 0, len(c.users))
	for uid := range c.users {
		uids = append(uids, uid)
	}
	sort.Strings(uids)
	for _, uid := range uids {
		out.AssignedUsers = append(out.AssignedUsers, remote.Assignment{Participant: remote.User{UID: uid, DisplayName: uid}})
	}
	if out.DueDate != nil {
		due := *out.DueDate
		out.DueDate = &due
	}
	return out
}

func (s *Server) ListStacks(ctx context.Context, boardID int64) ([]remote.Stack, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, "ListStacks"); err != nil {
		return nil, err
	}
	if _, ok := s.boards[boardID]; !ok {
		return nil, notFound("board", boardID)
	}

	var out []remote.Stack
	for _, st := range s.stacks {
		if st.BoardID != boardID {
			continue
		}
		rendered := *st
		rendered.Cards = nil
		for _, c := range s.cards {
			if c.StackID == st.ID {
				rendered.Cards = append(rendered.Cards, s.renderCard(c))
			}
		}
		sort.Slice(rendered.Cards, func(i, j int) bool { return rendered.Cards[i].ID < rendered.Cards[j].ID })
		out = append(out, rendered)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Server) CreateStack(ctx context.Context, boardID int64, st remote.Stack) (remote.Stack, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, "CreateStack"); err != nil {
		return remote.Stack{}, err
	}
	if _, ok := s.boards[boardID]; !ok {
		return remote.Stack{}, notFound("board", boardID)
	}
	if st.Title == "" {
		return remote.Stack{}, rejected("stack title is required")
	}
	stored := &remote.Stack{ID: s.id(), Title: st.Title, BoardID: boardID, Order: st.Order, LastModified: s.tick()}
	s.stacks[stored.ID] = stored
	s.touch(boardID)
	return *stored, nil
}

func (s *Server) UpdateStack(ctx context.Context, boardID int64, st remote.Stack) (remote.Stack, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, "UpdateStack"); err != nil {
		return remote.Stack{}, err
	}
	stored, ok := s.stacks[st.ID]
	if !ok || stored.BoardID != boardID {
		return remote.Stack{}, notFound("stack", st.ID)
	}
	stored.Title = st.Title
	stored.Order = st.Order
	stored.LastModified = s.tick()
	s.touch(boardID)
	return *stored, nil
}

func (s *Server) DeleteStack(ctx context.Context, boardID, stackID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, "DeleteStack"); err != nil {
		return err
	}
	stored, ok := s.stacks[stackID]
	if !ok || stored.BoardID != boardID {
		return notFound("stack", stackID)
	}
	s.deleteStack(stackID)
	s.touch(boardID)
	return nil
}

func (s *Server) deleteStack(stackID int64) {
	for id, c := range s.cards {
		if c.StackID == stackID {
			s.deleteCard(id)
		}
	}
	delete(s.stacks, stackID)
}

func (s *Server) deleteCard(cardID int64) {
	for id, c := range s.comments {
		if c.cardID == cardID {
			delete(s.comments, id)
		}
	}
	for id, a := range s.attachments {
		if a.CardID == cardID {
			delete(s.attachments, id)
		}
	}
	delete(s.cards, cardID)
}

// lookupCard returns a card of the board. Must be called with s.mu held.
func (s *Server) lookupCard(boardID, cardID int64) (*card, error) {
	c, ok := s.cards[cardID]
	if !ok || c.boardID != boardID {
		return nil, notFound("card", cardID)
	}
	return c, nil
}

func (s *Server) GetCard(ctx context.Context, boardID, _, cardID int64) (remote.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, "GetCard"); err != nil {
		return remote.Card{}, err
	}
	c, err := s.lookupCard(boardID, cardID)
	if err != nil {
		return remote.Card{}, err
	}
	return s.renderCard(c), nil
}

func (s *Server) CreateCard(ctx context.Context, boardID int64, in remote.Card) (remote.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, "CreateCard"); err != nil {
		return remote.Card{}, err
	}
	st, ok := s.stacks[in.StackID]
	if !ok || st.BoardID != boardID {
		return remote.Card{}, notFound("stack", in.StackID)
	}
	if in.Title == "" {
		return remote.Card{}, rejected("card title is required")
	}
	c := &card{
		Card: remote.Card{
			ID:           s.id(),
			Title:        in.Title,
			Description:  in.Description,
			StackID:      in.StackID,
			Type:         "plain",
			Owner:        s.user,
			Order:        in.Order,
			DueDate:      in.DueDate,
			LastModified: s.tick(),
		},
		boardID: boardID,
		labels:  make(map[int64]struct{}),
		users:   make(map[string]struct{}),
	}
	s.cards[c.ID] = c
	s.touch(boardID)
	return s.renderCard(c), nil
}

func (s *Server) UpdateCard(ctx context.Context, boardID int64, in remote.Card) (remote.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, "UpdateCard"); err != nil {
		return remote.Card{}, err
	}
	c, err := s.lookupCard(boardID, in.ID)
	if err != nil {
		return remote.Card{}, err
	}
	if st, ok := s.stacks[in.StackID]; !ok || st.BoardID != boardID {
		return remote.Card{}, rejected("stack %d is not on board %d", in.StackID, boardID)
	}
	c.Title = in.Title
	c.Description = in.Description
	c.StackID = in.StackID
	c.Order = in.Order
	c.Archived = in.Archived
	c.DueDate = in.DueDate
	c.LastModified = s.tick()
	s.touch(boardID)
	return s.renderCard(c), nil
}

func (s *Server) DeleteCard(ctx context.Context, boardID, _, cardID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, "DeleteCard"); err != nil {
		return err
	}
	if _, err := s.lookupCard(boardID, cardID); err != nil {
		return err
	}
	s.deleteCard(cardID)
	s.touch(boardID)
	return nil
}

// cardChange applies fn to a card and records the modification.
func (s *Server) cardChange(ctx context.Context, op string, boardID, cardID int64, fn func(c *card) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, op); err != nil {
		return err
	}
	c, err := s.lookupCard(boardID, cardID)
	if err != nil {
		return err
	}
	if err := fn(c); err != nil {
		return err
	}
	c.LastModified = s.tick()
	s.touch(boardID)
	return nil
}

func (s *Server) AssignLabel(ctx context.Context, boardID, _, cardID, labelID int64) error {
	return s.cardChange(ctx, "AssignLabel", boardID, cardID, func(c *card) error {
		if l, ok := s.labels[labelID]; !ok || l.BoardID != boardID {
			return rejected("label %d is not on board %d", labelID, boardID)
		}
		c.labels[labelID] = struct{}{}
		return nil
	})
}

func (s *Server) UnassignLabel(ctx context.Context, boardID, _, cardID, labelID int64) error {
	return s.cardChange(ctx, "UnassignLabel", boardID, cardID, func(c *card) error {
		delete(c.labels, labelID)
		return nil
	})
}

func (s *Server) AssignUser(ctx context.Context, boardID, _, cardID int64, uid string) error {
	return s.cardChange(ctx, "AssignUser", boardID, cardID, func(c *card) error {
		c.users[uid] = struct{}{}
		return nil
	})
}

func (s *Server) UnassignUser(ctx context.Context, boardID, _, cardID int64, uid string) error {
	return s.cardChange(ctx, "UnassignUser", boardID, cardID, func(c *card) error {
		delete(c.users, uid)
		return nil
	})
}

func (s *Server) ListComments(ctx context.Context, cardID int64) ([]remote.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, "ListComments"); err != nil {
		return nil, err
	}
	if _, ok := s.cards[cardID]; !ok {
		return nil, notFound("card", cardID)
	}
	var out []remote.Comment
	for _, c := range s.comments {
		if c.cardID == cardID {
			out = append(out, c.Comment)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Server) CreateComment(ctx context.Context, cardID int64, message string, parentID *int64) (remote.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, "CreateComment"); err != nil {
		return remote.Comment{}, err
	}
	c, ok := s.cards[cardID]
	if !ok {
		return remote.Comment{}, notFound("card", cardID)
	}
	if message == "" {
		return remote.Comment{}, rejected("comment message is required")
	}
	stored := &comment{
		Comment: remote.Comment{
			ID:               s.id(),
			ObjectID:         cardID,
			Message:          message,
			ActorID:          s.user,
			ActorDisplayName: s.user,
			CreationDateTime: remote.ModifiedAt(s.tick()),
		},
		cardID: cardID,
	}
	if parentID != nil {
		parent, ok := s.comments[*parentID]
		if !ok || parent.cardID != cardID {
			return remote.Comment{}, rejected("comment %d is not on card %d", *parentID, cardID)
		}
		stored.ReplyTo = &remote.CommentRef{ID: *parentID}
	}
	s.comments[stored.ID] = stored
	s.touch(c.boardID)
	return stored.Comment, nil
}

func (s *Server) UpdateComment(ctx context.Context, cardID, commentID int64, message string) (remote.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, "UpdateComment"); err != nil {
		return remote.Comment{}, err
	}
	stored, ok := s.comments[commentID]
	if !ok || stored.cardID != cardID {
		return remote.Comment{}, notFound("comment", commentID)
	}
	stored.Message = message
	s.touch(s.cards[cardID].boardID)
	return stored.Comment, nil
}

func (s *Server) DeleteComment(ctx context.Context, cardID, commentID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, "DeleteComment"); err != nil {
		return err
	}
	stored, ok := s.comments[commentID]
	if !ok || stored.cardID != cardID {
		return notFound("comment", commentID)
	}
	delete(s.comments, commentID)
	s.touch(s.cards[cardID].boardID)
	return nil
}

func (s *Server) ListAttachments(ctx context.Context, boardID, _, cardID int64) ([]remote.Attachment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, "ListAttachments"); err != nil {
		return nil, err
	}
	if _, err := s.lookupCard(boardID, cardID); err != nil {
		return nil, err
	}
	var out []remote.Attachment
	for _, a := range s.attachments {
		if a.CardID == cardID {
			out = append(out, a.Attachment)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Server) UploadAttachment(ctx context.Context, boardID, _, cardID int64, filename string, content io.Reader) (remote.Attachment, error) {
	data, err := io.ReadAll(content)
	if err != nil {
		return remote.Attachment{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, "UploadAttachment"); err != nil {
		return remote.Attachment{}, err
	}
	if _, err := s.lookupCard(boardID, cardID); err != nil {
		return remote.Attachment{}, err
	}
	stored := &attachment{
		Attachment: remote.Attachment{
			ID:     s.id(),
			CardID: cardID,
			Type:   "file",
			Data:   filename,
			ExtendedData: remote.AttachmentInfo{
				FileSize: int64(len(data)),
				MimeType: mime.TypeByExtension(filepath.Ext(filename)),
			},
			LastModified: s.tick(),
		},
		content: bytes.Clone(data),
	}
	s.attachments[stored.ID] = stored
	s.touch(boardID)
	return stored.Attachment, nil
}

func (s *Server) DeleteAttachment(ctx context.Context, boardID, _, cardID, attachmentID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enter(ctx, "DeleteAttachment"); err != nil {
		return err
	}
	stored, ok := s.attachments[attachmentID]
	if !ok || stored.CardID != cardID {
		return notFound("attachment", attachmentID)
	}
	delete(s.attachments, attachmentID)
	s.touch(boardID)
	return nil
}
