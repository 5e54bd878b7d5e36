package domain

import (
	"strconv"
	"time"
)

// Fixed activity messages.
const (
	ActivityClientCreated = "Client card created"
	ActivityNoteAdded     = "Note added"
	ActivityKKTUpdated    = "KKT registration numbers updated"
)

// Activity is one append-only audit entry of a client.
type Activity struct {
	ID        int64     `json:"id"`
	ClientID  int64     `json:"client_id"`
	UserID    *int64    `json:"user_id"`
	UserName  string    `json:"user_name"`
	Action    string    `json:"action"`
	CreatedAt time.Time `json:"created_at"`
}

// Note is a free-text remark on a client.
type Note struct {
	ID         int64     `json:"id"`
	ClientID   int64     `json:"client_id"`
	AuthorID   *int64    `json:"author_id"`
	AuthorName string    `json:"author_name"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"created_at"`
}

// ClientFile is a document attached to a client. StoredName is the file's
// name under the media root.
type ClientFile struct {
	ID           int64     `json:"id"`
	ClientID     int64     `json:"client_id"`
	Name         string    `json:"name"`
	StoredName   string    `json:"-"`
	Size         int64     `json:"size"`
	UploadedByID *int64    `json:"uploaded_by_id"`
	CreatedAt    time.Time `json:"created_at"`
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
