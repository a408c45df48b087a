package remote

import "time"

// Listing is the result of a conditional list request.
type Listing[T any] struct {
	Records []T
	// ETag identifies the returned version of the collection.
	ETag string
	// Unchanged is set when the server answered 304; Records is then empty.
	Unchanged bool
}

// Capabilities describes the server.
type Capabilities struct {
	Version     string
	DeckVersion string
}

// User is a server participant.
type User struct {
	UID         string `json:"uid"`
	DisplayName string `json:"displayname"`
}

// Label is an entry of a board's label catalog.
type Label struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	Color        string `json:"color"`
	BoardID      int64  `json:"boardId,omitempty"`
	LastModified int64  `json:"lastModified,omitempty"`
}

// Board is returned with its labels and participants.
type Board struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	Color        string  `json:"color"`
	Archived     bool    `json:"archived"`
	ETag         string  `json:"ETag,omitempty"`
	LastModified int64   `json:"lastModified,omitempty"`
	DeletedAt    int64   `json:"deletedAt,omitempty"`
	Labels       []Label `json:"labels,omitempty"`
	Users        []User  `json:"users,omitempty"`
}

// Stack is returned with its cards.
type Stack struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	BoardID      int64  `json:"boardId"`
	Order        int64  `json:"order"`
	LastModified int64  `json:"lastModified,omitempty"`
	DeletedAt    int64  `json:"deletedAt,omitempty"`
	Cards        []Card `json:"cards,omitempty"`
}

// Assignment wraps an assigned user.
type Assignment struct {
	Participant User `json:"participant"`
}

// Card is a card with its labels and assignees.
type Card struct {
	ID            int64        `json:"id"`
	Title         string       `json:"title"`
	Description   string       `json:"description"`
	StackID       int64        `json:"stackId"`
	Type          string       `json:"type,omitempty"`
	Owner         string       `json:"owner,omitempty"`
	Order         int64        `json:"order"`
	Archived      bool         `json:"archived"`
	DueDate       *time.Time   `json:"duedate"`
	Labels        []Label      `json:"labels,omitempty"`
	AssignedUsers []Assignment `json:"assignedUsers,omitempty"`
	ETag          string       `json:"ETag,omitempty"`
	LastModified  int64        `json:"lastModified,omitempty"`
	DeletedAt     int64        `json:"deletedAt,omitempty"`
}

// CommentRef points to the comment a reply answers.
type CommentRef struct {
	ID int64 `json:"id"`
}

// Comment is a card comment served by the OCS endpoint.
type Comment struct {
	ID               int64       `json:"id"`
	ObjectID         int64       `json:"objectId,omitempty"`
	Message          string      `json:"message"`
	ActorID          string      `json:"actorId,omitempty"`
	ActorDisplayName string      `json:"actorDisplayName,omitempty"`
	CreationDateTime time.Time   `json:"creationDateTime"`
	ReplyTo          *CommentRef `json:"replyTo,omitempty"`
}

// AttachmentInfo holds file metadata of an attachment.
type AttachmentInfo struct {
	FileSize int64  `json:"filesize"`
	MimeType string `json:"mimetype"`
}

// Attachment is a file attached to a card. Data is the file name.
type Attachment struct {
	ID           int64          `json:"id"`
	CardID       int64          `json:"cardId"`
	Type         string         `json:"type"`
	Data         string         `json:"data"`
	ExtendedData AttachmentInfo `json:"extendedData"`
	LastModified int64          `json:"lastModified,omitempty"`
	DeletedAt    int64          `json:"deletedAt,omitempty"`
}

// ModifiedAt converts a lastModified value to a time. Zero stays zero.
func ModifiedAt(unix int64) time.Time {
	if unix == 0 {
		return time.Time{}
	}
	return time.Unix(unix, 0).UTC()
}
