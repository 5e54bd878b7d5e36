package repository

import (
	"context"
	"fmt"

	"supportportal.io/portal/internal/domain"
)

// InsertNote stores a note and fills its id and timestamp.
func (q *Queries) InsertNote(ctx context.Context, n *domain.Note) error {
	err := q.db.QueryRow(ctx,
		`INSERT INTO client_notes (client_id, author_id, text) VALUES ($1, $2, $3) RETURNING id, created_at`,
		n.ClientID, n.AuthorID, n.Text,
	).Scan(&n.ID, &n.CreatedAt)
	return mapErr(err, fmt.Sprintf("insert note for client %d", n.ClientID))
}

// ListNotes returns a client's notes, newest first.
func (q *Queries) ListNotes(ctx context.Context, clientID int64) ([]*domain.Note, error) {
	rows, err := q.db.Query(ctx, `SELECT n.id, n.client_id, n.author_id,
		COALESCE(NULLIF(TRIM(u.first_name || ' ' || u.last_name), ''), u.email, ''),
		n.text, n.created_at
		FROM client_notes n LEFT JOIN users u ON u.id = n.author_id
		WHERE n.client_id = $1 ORDER BY n.created_at DESC, n.id DESC`, clientID)
	if err != nil {
		return nil, mapErr(err, "list notes")
	}
	defer rows.Close()

	var out []*domain.Note
	for rows.Next() {
		var n domain.Note
		if err := rows.Scan(&n.ID, &n.ClientID, &n.AuthorID, &n.AuthorName, &n.Text, &n.CreatedAt); err != nil {
			return nil, mapErr(err, "scan note")
		}
		out = append(out, &n)
	}
	return out, mapErr(rows.Err(), "list notes")
}
