package remote

import (
	"context"
	"io"
)

// API is the subset of the Deck server used by the sync engine.
// Implementations map failures to the sentinels of core/errs.
type API interface {
	Capabilities(ctx context.Context) (Capabilities, error)

	ListBoards(ctx context.Context, etag string) (Listing[Board], error)
	GetBoard(ctx context.Context, boardID int64) (Board, error)
	CreateBoard(ctx context.Context, b Board) (Board, error)
	UpdateBoard(ctx context.Context, b Board) (Board, error)
	DeleteBoard(ctx context.Context, boardID int64) error

	CreateLabel(ctx context.Context, boardID int64, l Label) (Label, error)
	UpdateLabel(ctx context.Context, boardID int64, l Label) (Label, error)
	DeleteLabel(ctx context.Context, boardID, labelID int64) error

	ListStacks(ctx context.Context, boardID int64) ([]Stack, error)
	CreateStack(ctx context.Context, boardID int64, s Stack) (Stack, error)
	UpdateStack(ctx context.Context, boardID int64, s Stack) (Stack, error)
	DeleteStack(ctx context.Context, boardID, stackID int64) error

	GetCard(ctx context.Context, boardID, stackID, cardID int64) (Card, error)
	CreateCard(ctx context.Context, boardID int64, c Card) (Card, error)
	UpdateCard(ctx context.Context, boardID int64, c Card) (Card, error)
	DeleteCard(ctx context.Context, boardID, stackID, cardID int64) error
	AssignLabel(ctx context.Context, boardID, stackID, cardID, labelID int64) error
	UnassignLabel(ctx context.Context, boardID, stackID, cardID, labelID int64) error
	AssignUser(ctx context.Context, boardID, stackID, cardID int64, uid string) error
	UnassignUser(ctx context.Context, boardID, stackID, cardID int64, uid string) error

	ListComments(ctx context.Context, cardID int64) ([]Comment, error)
	CreateComment(ctx context.Context, cardID int64, message string, parentID *int64) (Comment, error)
	UpdateComment(ctx context.Context, cardID, commentID int64, message string) (Comment, error)
	DeleteComment(ctx context.Context, cardID, commentID int64) error

	ListAttachments(ctx context.Context, boardID, stackID, cardID int64) ([]Attachment, error)
	UploadAttachment(ctx context.Context, boardID, stackID, cardID int64, filename string, content io.Reader) (Attachment, error)
	DeleteAttachment(ctx context.Context, boardID, stackID, cardID, attachmentID int64) error
}
