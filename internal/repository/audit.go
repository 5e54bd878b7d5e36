package repository

import (
	"context"
	"encoding/json"
	"time"
)

// AuditLogRow is one platform audit record.
type AuditLogRow struct {
	ID           string
	Action       string
	ResourceType string
	ResourceID   string
	Actor        string
	Details      map[string]any
	CreatedAt    time.Time
}

// InsertAuditLog appends a platform audit record.
func (q *Queries) InsertAuditLog(ctx context.Context, r *AuditLogRow) error {
	var details []byte
	if r.Details != nil {
		var err error
		if details, err = json.Marshal(r.Details); err != nil {
			return mapErr(err, "encode audit details")
		}
	}
	_, err := q.db.Exec(ctx, `INSERT INTO audit_logs (id, action, resource_type, resource_id, actor, details)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		r.ID, r.Action, r.ResourceType, r.ResourceID, r.Actor, details)
	return mapErr(err, "insert audit log")
}

// ListAuditLogs returns the newest platform audit records.
func (q *Queries) ListAuditLogs(ctx context.Context, limit int) ([]*AuditLogRow, error) {
	rows, err := q.db.Query(ctx, `SELECT id, action, resource_type, resource_id, actor, details, created_at
		FROM audit_logs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, mapErr(err, "list audit logs")
	}
	defer rows.Close()

	var out []*AuditLogRow
	for rows.Next() {
		var r AuditLogRow
		var details []byte
		if err := rows.Scan(&r.ID, &r.Action, &r.ResourceType, &r.ResourceID, &r.Actor, &details, &r.CreatedAt); err != nil {
			return nil, mapErr(err, "scan audit log")
		}
		if len(details) > 0 {
			_ = json.Unmarshal(details, &r.Details)
		}
		out = append(out, &r)
	}
	return out, mapErr(rows.Err(), "list audit logs")
}

// DeleteAuditLogsBefore removes records older than cutoff.
func (q *Queries) DeleteAuditLogsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := q.db.Exec(ctx, `DELETE FROM audit_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, mapErr(err, "delete audit logs")
	}
	return tag.RowsAffected(), nil
}
