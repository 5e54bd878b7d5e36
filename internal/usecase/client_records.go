package usecase

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"supportportal.io/portal/internal/domain"
	"supportportal.io/portal/internal/governance/audit"
	apperrors "supportportal.io/portal/internal/pkg/errors"
	"supportportal.io/portal/internal/pkg/logger"
	"supportportal.io/portal/internal/storage"
)

// Activity texts of file operations.
const (
	activityFileUploaded = "File uploaded: "
	activityFileDeleted  = "File deleted: "
)

// MediaStore persists uploaded file content. *storage.Local implements it.
type MediaStore interface {
	Save(name string, r io.Reader, limit int64) (int64, error)
	Remove(name string) error
}

// ClientRecordsUseCase adds notes and files to a client, logging each.
type ClientRecordsUseCase struct {
	tx        Transactor
	media     MediaStore
	maxUpload int64
}

// NewClientRecordsUseCase creates a new ClientRecordsUseCase.
func NewClientRecordsUseCase(tx Transactor, media MediaStore, maxUpload int64) *ClientRecordsUseCase {
	return &ClientRecordsUseCase{tx: tx, media: media, maxUpload: maxUpload}
}

// AddNote stores a note and records "Note added".
func (uc *ClientRecordsUseCase) AddNote(ctx context.Context, clientID int64, authorID *int64, text string) (*domain.Note, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.BadRequest(apperrors.CodeNoteEmpty, "note text is required")
	}
	note := &domain.Note{ClientID: clientID, AuthorID: authorID, Text: text}
	err := uc.tx.InTx(ctx, func(s ClientStore) error {
		if _, err := loadClient(ctx, s, clientID); err != nil {
			return err
		}
		if err := s.InsertNote(ctx, note); err != nil {
			return persistenceFailed(err)
		}
		return audit.NewActivityRecorder(s).Record(ctx, clientID, authorID, domain.ActivityNoteAdded)
	})
	if err != nil {
		return nil, err
	}
	return note, nil
}

// UploadFile stores content under a generated name and records the upload.
// The stored content is removed again when the database write fails.
func (uc *ClientRecordsUseCase) UploadFile(ctx context.Context, clientID int64, uploaderID *int64, name string, content io.Reader) (*domain.ClientFile, error) {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return nil, apperrors.ErrInvalidRequestf("file name is required")
	}

	f := &domain.ClientFile{ClientID: clientID, Name: name, StoredName: storage.StoredName(name), UploadedByID: uploaderID}
	saved := false
	err := uc.tx.InTx(ctx, func(s ClientStore) error {
		if _, err := loadClient(ctx, s, clientID); err != nil {
			return err
		}
		size, err := uc.media.Save(f.StoredName, content, uc.maxUpload)
		if err != nil {
			if errors.Is(err, storage.ErrTooLarge) {
				return apperrors.New(apperrors.CodeFileTooLarge, "file exceeds the upload limit", http.StatusRequestEntityTooLarge).
					WithParams(map[string]interface{}{"max_bytes": uc.maxUpload})
			}
			return persistenceFailed(err)
		}
		f.Size = size
		saved = true
		if err := s.InsertFile(ctx, f); err != nil {
			return persistenceFailed(err)
		}
		return audit.NewActivityRecorder(s).Record(ctx, clientID, uploaderID, activityFileUploaded+name)
	})
	if err != nil {
		if saved {
			if rmErr := uc.media.Remove(f.StoredName); rmErr != nil {
				logger.Warn("Failed to remove orphaned upload", zap.String("stored_name", f.StoredName), zap.Error(rmErr))
			}
		}
		return nil, err
	}
	return f, nil
}

// DeleteFile removes the file record, records the deletion and then removes
// the content. Content removal failures are logged, not returned.
func (uc *ClientRecordsUseCase) DeleteFile(ctx context.Context, clientID, fileID int64, actorID *int64) error {
	var stored string
	err := uc.tx.InTx(ctx, func(s ClientStore) error {
		f, err := s.GetFile(ctx, clientID, fileID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return apperrors.NotFound(apperrors.CodeFileNotFound, "file not found").
					WithParams(map[string]interface{}{"client_id": clientID, "file_id": fileID})
			}
			return persistenceFailed(err)
		}
		stored = f.StoredName
		if err := s.DeleteFile(ctx, clientID, fileID); err != nil {
			return persistenceFailed(err)
		}
		return audit.NewActivityRecorder(s).Record(ctx, clientID, actorID, activityFileDeleted+f.Name)
	})
	if err != nil {
		return err
	}
	if err := uc.media.Remove(stored); err != nil {
		logger.Warn("Failed to remove stored file", zap.String("stored_name", stored), zap.Error(err))
	}
	return nil
}
