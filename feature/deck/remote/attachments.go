package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
)

func (c *Client) ListAttachments(ctx context.Context, boardID, stackID, cardID int64) ([]Attachment, error) {
	var list []Attachment
	if _, err := c.do(ctx, request{method: http.MethodGet, path: cardPath(boardID, stackID, cardID) + "/attachments"}, &list); err != nil {
		return nil, err
	}
	out := list[:0]
	for _, a := range list {
		if a.DeletedAt == 0 {
			out = append(out, a)
		}
	}
	return out, nil
}

// UploadAttachment sends content as a multipart form.
func (c *Client) UploadAttachment(ctx context.Context, boardID, stackID, cardID int64, filename string, content io.Reader) (Attachment, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	if err := form.WriteField("type", "file"); err != nil {
		return Attachment{}, err
	}
	part, err := form.CreateFormFile("file", filename)
	if err != nil {
		return Attachment{}, err
	}
	if _, err := io.Copy(part, content); err != nil {
		return Attachment{}, fmt.Errorf("read attachment %s: %w", filename, err)
	}
	if err := form.Close(); err != nil {
		return Attachment{}, err
	}

	var out Attachment
	_, err = c.do(ctx, request{
		method: http.MethodPost,
		path:   cardPath(boardID, stackID, cardID) + "/attachments",
		body:   &buf,
		ctype:  form.FormDataContentType(),
	}, &out)
	return out, err
}

func (c *Client) DeleteAttachment(ctx context.Context, boardID, stackID, cardID, attachmentID int64) error {
	_, err := c.do(ctx, request{
		method: http.MethodDelete,
		path:   fmt.Sprintf("%s/attachments/%d", cardPath(boardID, stackID, cardID), attachmentID),
	}, nil)
	return err
}
