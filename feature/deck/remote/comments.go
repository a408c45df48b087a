package remote

import (
	"context"
	"fmt"
	"net/http"
)

func commentsPath(cardID int64) string {
	return fmt.Sprintf("%s/cards/%d/comments", ocsPath, cardID)
}

// ListComments returns every comment of a card, fetching all pages.
func (c *Client) ListComments(ctx context.Context, cardID int64) ([]Comment, error) {
	const page = 50
	var out []Comment
	for offset := 0; ; offset += page {
		batch, err := doOCS[[]Comment](ctx, c, request{
			method: http.MethodGet,
			path:   fmt.Sprintf("%s?limit=%d&offset=%d", commentsPath(cardID), page, offset),
		})
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
		if len(batch) < page {
			return out, nil
		}
	}
}

func (c *Client) CreateComment(ctx context.Context, cardID int64, message string, parentID *int64) (Comment, error) {
	payload := map[string]any{"message": message}
	if parentID != nil {
		payload["parentId"] = *parentID
	}
	return doOCS[Comment](ctx, c, request{method: http.MethodPost, path: commentsPath(cardID), payload: payload})
}

func (c *Client) UpdateComment(ctx context.Context, cardID, commentID int64, message string) (Comment, error) {
	return doOCS[Comment](ctx, c, request{
		method:  http.MethodPut,
		path:    fmt.Sprintf("%s/%d", commentsPath(cardID), commentID),
		payload: map[string]any{"message": message},
	})
}

func (c *Client) DeleteComment(ctx context.Context, cardID, commentID int64) error {
	_, err := doOCS[any](ctx, c, request{method: http.MethodDelete, path: fmt.Sprintf("%s/%d", commentsPath(cardID), commentID)})
	return err
}
