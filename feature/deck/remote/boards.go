package remote

import (
	"context"
	"fmt"
	"net/http"

	"deck-sync/core/errs"
)

// ListBoards lists the account's boards with labels and participants.
// When etag matches the current version the server answers 304 and the listing
// is marked unchanged.
func (c *Client) ListBoards(ctx context.Context, etag string) (Listing[Board], error) {
	var boards []Board
	res, err := c.do(ctx, request{method: http.MethodGet, path: deckPath + "/boards?details=true", etag: etag}, &boards)
	if err != nil {
		return Listing[Board]{}, err
	}
	if res.status == http.StatusNotModified {
		return Listing[Board]{ETag: etag, Unchanged: true}, nil
	}
	return Listing[Board]{Records: liveBoards(boards), ETag: res.etag}, nil
}

func (c *Client) GetBoard(ctx context.Context, boardID int64) (Board, error) {
	var b Board
	res, err := c.do(ctx, request{method: http.MethodGet, path: fmt.Sprintf("%s/boards/%d", deckPath, boardID)}, &b)
	if err != nil {
		return Board{}, err
	}
	if b.DeletedAt != 0 {
		return Board{}, notFound("board", boardID)
	}
	if b.ETag == "" {
		b.ETag = res.etag
	}
	return b, nil
}

func (c *Client) CreateBoard(ctx context.Context, b Board) (Board, error) {
	var out Board
	_, err := c.do(ctx, request{
		method:  http.MethodPost,
		path:    deckPath + "/boards",
		payload: map[string]any{"title": b.Title, "color": b.Color},
	}, &out)
	return out, err
}

func (c *Client) UpdateBoard(ctx context.Context, b Board) (Board, error) {
	var out Board
	_, err := c.do(ctx, request{
		method:  http.MethodPut,
		path:    fmt.Sprintf("%s/boards/%d", deckPath, b.ID),
		payload: map[string]any{"title": b.Title, "color": b.Color, "archived": b.Archived},
	}, &out)
	return out, err
}

func (c *Client) DeleteBoard(ctx context.Context, boardID int64) error {
	_, err := c.do(ctx, request{method: http.MethodDelete, path: fmt.Sprintf("%s/boards/%d", deckPath, boardID)}, nil)
	return err
}

func (c *Client) CreateLabel(ctx context.Context, boardID int64, l Label) (Label, error) {
	var out Label
	_, err := c.do(ctx, request{
		method:  http.MethodPost,
		path:    fmt.Sprintf("%s/boards/%d/labels", deckPath, boardID),
		payload: map[string]any{"title": l.Title, "color": l.Color},
	}, &out)
	return out, err
}

func (c *Client) UpdateLabel(ctx context.Context, boardID int64, l Label) (Label, error) {
	var out Label
	_, err := c.do(ctx, request{
		method:  http.MethodPut,
		path:    fmt.Sprintf("%s/boards/%d/labels/%d", deckPath, boardID, l.ID),
		payload: map[string]any{"title": l.Title, "color": l.Color},
	}, &out)
	return out, err
}

func (c *Client) DeleteLabel(ctx context.Context, boardID, labelID int64) error {
	_, err := c.do(ctx, request{method: http.MethodDelete, path: fmt.Sprintf("%s/boards/%d/labels/%d", deckPath, boardID, labelID)}, nil)
	return err
}

// ListStacks returns the board's stacks with all their cards, archived ones included.
func (c *Client) ListStacks(ctx context.Context, boardID int64) ([]Stack, error) {
	var active, archived []Stack
	if _, err := c.do(ctx, request{method: http.MethodGet, path: fmt.Sprintf("%s/boards/%d/stacks", deckPath, boardID)}, &active); err != nil {
		return nil, err
	}
	if _, err := c.do(ctx, request{method: http.MethodGet, path: fmt.Sprintf("%s/boards/%d/stacks/archived", deckPath, boardID)}, &archived); err != nil {
		return nil, err
	}
	return mergeArchived(active, archived), nil
}

func (c *Client) CreateStack(ctx context.Context, boardID int64, s Stack) (Stack, error) {
	var out Stack
	_, err := c.do(ctx, request{
		method:  http.MethodPost,
		path:    fmt.Sprintf("%s/boards/%d/stacks", deckPath, boardID),
		payload: map[string]any{"title": s.Title, "order": s.Order},
	}, &out)
	return out, err
}

func (c *Client) UpdateStack(ctx context.Context, boardID int64, s Stack) (Stack, error) {
	var out Stack
	_, err := c.do(ctx, request{
		method:  http.MethodPut,
		path:    fmt.Sprintf("%s/boards/%d/stacks/%d", deckPath, boardID, s.ID),
		payload: map[string]any{"title": s.Title, "order": s.Order},
	}, &out)
	return out, err
}

func (c *Client) DeleteStack(ctx context.Context, boardID, stackID int64) error {
	_, err := c.do(ctx, request{method: http.MethodDelete, path: fmt.Sprintf("%s/boards/%d/stacks/%d", deckPath, boardID, stackID)}, nil)
	return err
}

// liveBoards drops boards the server keeps in its trash.
func liveBoards(boards []Board) []Board {
	out := make([]Board, 0, len(boards))
	for _, b := range boards {
		if b.DeletedAt == 0 {
			out = append(out, b)
		}
	}
	return out
}

// mergeArchived adds the cards of the archived listing to the matching active stacks.
func mergeArchived(active, archived []Stack) []Stack {
	out := make([]Stack, 0, len(active))
	index := make(map[int64]int, len(active))
	for _, s := range active {
		if s.DeletedAt != 0 {
			continue
		}
		index[s.ID] = len(out)
		out = append(out, s)
	}
	for _, s := range archived {
		i, ok := index[s.ID]
		if !ok {
			continue
		}
		out[i].Cards = append(out[i].Cards, s.Cards...)
	}
	for i := range out {
		cards := out[i].Cards[:0]
		for _, card := range out[i].Cards {
			if card.DeletedAt == 0 {
				cards = append(cards, card)
			}
		}
		out[i].Cards = cards
	}
	return out
}

func notFound(what string, id int64) error {
	return fmt.Errorf("%s %d: %w", what, id, errs.ErrNotFound)
}
