package repository

import (
	"context"
	"fmt"

	"supportportal.io/portal/internal/domain"
)

const fileColumns = `id, client_id, name, stored_name, size, uploaded_by_id, created_at`

// InsertFile records an uploaded file.
func (q *Queries) InsertFile(ctx context.Context, f *domain.ClientFile) error {
	err := q.db.QueryRow(ctx,
		`INSERT INTO client_files (client_id, name, stored_name, size, uploaded_by_id)
		VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`,
		f.ClientID, f.Name, f.StoredName, f.Size, f.UploadedByID,
	).Scan(&f.ID, &f.CreatedAt)
	return mapErr(err, fmt.Sprintf("insert file for client %d", f.ClientID))
}

// GetFile loads a file of a client.
func (q *Queries) GetFile(ctx context.Context, clientID, fileID int64) (*domain.ClientFile, error) {
	var f domain.ClientFile
	err := q.db.QueryRow(ctx, `SELECT `+fileColumns+` FROM client_files WHERE id = $1 AND client_id = $2`, fileID, clientID).
		Scan(&f.ID, &f.ClientID, &f.Name, &f.StoredName, &f.Size, &f.UploadedByID, &f.CreatedAt)
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("get file %d", fileID))
	}
	return &f, nil
}

// ListFiles returns a client's files, newest first.
func (q *Queries) ListFiles(ctx context.Context, clientID int64) ([]*domain.ClientFile, error) {
	rows, err := q.db.Query(ctx, `SELECT `+fileColumns+` FROM client_files WHERE client_id = $1 ORDER BY created_at DESC, id DESC`, clientID)
	if err != nil {
		return nil, mapErr(err, "list files")
	}
	defer rows.Close()

	var out []*domain.ClientFile
	for rows.Next() {
		var f domain.ClientFile
		if err := rows.Scan(&f.ID, &f.ClientID, &f.Name, &f.StoredName, &f.Size, &f.UploadedByID, &f.CreatedAt); err != nil {
			return nil, mapErr(err, "scan file")
		}
		out = append(out, &f)
	}
	return out, mapErr(rows.Err(), "list files")
}

// DeleteFile removes a file record.
func (q *Queries) DeleteFile(ctx context.Context, clientID, fileID int64) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM client_files WHERE id = $1 AND client_id = $2`, fileID, clientID)
	return expectOne(tag, err, fmt.Sprintf("delete file %d", fileID))
}
