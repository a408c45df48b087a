package remote

import (
	"context"
	"fmt"
	"net/http"
)

func cardPath(boardID, stackID, cardID int64) string {
	return fmt.Sprintf("%s/boards/%d/stacks/%d/cards/%d", deckPath, boardID, stackID, cardID)
}

func (c *Client) GetCard(ctx context.Context, boardID, stackID, cardID int64) (Card, error) {
	var out Card
	if _, err := c.do(ctx, request{method: http.MethodGet, path: cardPath(boardID, stackID, cardID)}, &out); err != nil {
		return Card{}, err
	}
	if out.DeletedAt != 0 {
		return Card{}, notFound("card", cardID)
	}
	return out, nil
}

func (c *Client) CreateCard(ctx context.Context, boardID int64, card Card) (Card, error) {
	var out Card
	_, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   fmt.Sprintf("%s/boards/%d/stacks/%d/cards", deckPath, boardID, card.StackID),
		payload: map[string]any{
			"title":       card.Title,
			"type":        "plain",
			"order":       card.Order,
			"description": card.Description,
			"duedate":     card.DueDate,
		},
	}, &out)
	return out, err
}

// UpdateCard writes every field of the card. A changed StackID moves the card.
func (c *Client) UpdateCard(ctx context.Context, boardID int64, card Card) (Card, error) {
	owner := card.Owner
	if owner == "" {
		owner = c.cfg.User
	}
	var out Card
	_, err := c.do(ctx, request{
		method: http.MethodPut,
		path:   cardPath(boardID, card.StackID, card.ID),
		payload: map[string]any{
			"title":       card.Title,
			"type":        "plain",
			"owner":       owner,
			"description": card.Description,
			"order":       card.Order,
			"duedate":     card.DueDate,
			"archived":    card.Archived,
			"stackId":     card.StackID,
		},
	}, &out)
	return out, err
}

func (c *Client) DeleteCard(ctx context.Context, boardID, stackID, cardID int64) error {
	_, err := c.do(ctx, request{method: http.MethodDelete, path: cardPath(boardID, stackID, cardID)}, nil)
	return err
}

func (c *Client) AssignLabel(ctx context.Context, boardID, stackID, cardID, labelID int64) error {
	return c.cardAction(ctx, cardPath(boardID, stackID, cardID)+"/assignLabel", map[string]any{"labelId": labelID})
}

func (c *Client) UnassignLabel(ctx context.Context, boardID, stackID, cardID, labelID int64) error {
	return c.cardAction(ctx, cardPath(boardID, stackID, cardID)+"/removeLabel", map[string]any{"labelId": labelID})
}

func (c *Client) AssignUser(ctx context.Context, boardID, stackID, cardID int64, uid string) error {
	return c.cardAction(ctx, cardPath(boardID, stackID, cardID)+"/assignUser", map[string]any{"userId": uid})
}

func (c *Client) UnassignUser(ctx context.Context, boardID, stackID, cardID int64, uid string) error {
	return c.cardAction(ctx, cardPath(boardID, stackID, cardID)+"/unassignUser", map[string]any{"userId": uid})
}

func (c *Client) cardAction(ctx context.Context, path string, payload map[string]any) error {
	_, err := c.do(ctx, request{method: http.MethodPut, path: path, payload: payload}, nil)
	return err
}
