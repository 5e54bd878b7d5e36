package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"supportportal.io/portal/internal/domain"
)

// InsertActivity appends one activity entry. A missing client yields ErrNotFound.
func (q *Queries) InsertActivity(ctx context.Context, clientID int64, actorID *int64, action string) error {
	_, err := q.db.Exec(ctx,
		`INSERT INTO client_activities (client_id, user_id, action) VALUES ($1, $2, $3)`,
		clientID, actorID, action)
	return mapErr(err, fmt.Sprintf("insert activity for client %d", clientID))
}

const activitySelect = `SELECT a.id, a.client_id, a.user_id,
	COALESCE(NULLIF(TRIM(u.first_name || ' ' || u.last_name), ''), u.email, ''),
	a.action, a.created_at
	FROM client_activities a LEFT JOIN users u ON u.id = a.user_id`

func scanActivities(rows pgx.Rows) ([]*domain.Activity, error) {
	defer rows.Close()
	var out []*domain.Activity
	for rows.Next() {
		var a domain.Activity
		if err := rows.Scan(&a.ID, &a.ClientID, &a.UserID, &a.UserName, &a.Action, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

// ListActivities returns a client's activity entries, newest first.
func (q *Queries) ListActivities(ctx context.Context, clientID int64) ([]*domain.Activity, error) {
	rows, err := q.db.Query(ctx, activitySelect+` WHERE a.client_id = $1 ORDER BY a.created_at DESC, a.id DESC`, clientID)
	if err != nil {
		return nil, mapErr(err, "list activities")
	}
	out, err := scanActivities(rows)
	return out, mapErr(err, "list activities")
}

// RecentActivities returns the newest entries across all clients.
func (q *Queries) RecentActivities(ctx context.Context, limit int) ([]*domain.Activity, error) {
	rows, err := q.db.Query(ctx, activitySelect+` ORDER BY a.created_at DESC, a.id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, mapErr(err, "recent activities")
	}
	out, err := scanActivities(rows)
	return out, mapErr(err, "recent activities")
}

// UserExists reports whether a user row exists.
func (q *Queries) UserExists(ctx context.Context, id int64) (bool, error) {
	var ok bool
	err := q.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id).Scan(&ok)
	return ok, mapErr(err, "user exists")
}
