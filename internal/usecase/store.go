// Package usecase provides the portal's client-level use cases.
//
// Use cases are reusable across HTTP handlers, the CLI and River workers.
// Every write runs inside one PostgreSQL transaction opened by a Transactor,
// and the activity trail is written in that same transaction.
//
// Import Path: supportportal.io/portal/internal/usecase
package usecase

import (
	"context"
	"errors"
	"net/http"

	"supportportal.io/portal/internal/changelog"
	"supportportal.io/portal/internal/domain"
	"supportportal.io/portal/internal/governance/audit"
	apperrors "supportportal.io/portal/internal/pkg/errors"
	"supportportal.io/portal/internal/repository"
)

// ClientStore is the persistence used by client use cases.
// *repository.Queries implements it.
type ClientStore interface {
	audit.ActivityStore

	GetClient(ctx context.Context, id int64) (*domain.Client, error)
	GetClientForUpdate(ctx context.Context, id int64) (*domain.Client, error)
	InsertClient(ctx context.Context, c *domain.Client) error
	UpdateClient(ctx context.Context, c *domain.Client) error
	DeleteClient(ctx context.Context, id int64) error

	RefNames(ctx context.Context) (changelog.RefNames, error)
	ActiveCustomFields(ctx context.Context) ([]*domain.CustomFieldDefinition, error)
	CustomFieldValues(ctx context.Context, clientID int64) (map[int64]string, error)
	SaveCustomFieldValues(ctx context.Context, clientID int64, values map[int64]string) error

	InsertNote(ctx context.Context, n *domain.Note) error
	InsertFile(ctx context.Context, f *domain.ClientFile) error
	GetFile(ctx context.Context, clientID, fileID int64) (*domain.ClientFile, error)
	DeleteFile(ctx context.Context, clientID, fileID int64) error
	ListFiles(ctx context.Context, clientID int64) ([]*domain.ClientFile, error)

	GetOFDCompany(ctx context.Context, id int64) (*domain.OFDCompany, error)
	ListKKT(ctx context.Context, clientID int64) ([]*domain.KKTData, error)
	UpsertKKT(ctx context.Context, k *domain.KKTData) error
	DeleteKKTExcept(ctx context.Context, clientID int64, keep []string) error
}

// Transactor runs fn atomically: fn's error rolls back every write made through s.
type Transactor interface {
	InTx(ctx context.Context, fn func(s ClientStore) error) error
}

type pgTransactor struct {
	runner *repository.TxRunner
}

// NewPGTransactor adapts a repository.TxRunner to Transactor.
func NewPGTransactor(runner *repository.TxRunner) Transactor {
	return pgTransactor{runner: runner}
}

func (t pgTransactor) InTx(ctx context.Context, fn func(s ClientStore) error) error {
	return t.runner.InTx(ctx, func(q *repository.Queries) error { return fn(q) })
}

// loadClient locks a client row, mapping a missing row to CLIENT_NOT_FOUND.
func loadClient(ctx context.Context, s ClientStore, id int64) (*domain.Client, error) {
	c, err := s.GetClientForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrClientNotFoundf(id)
		}
		return nil, persistenceFailed(err)
	}
	return c, nil
}

func persistenceFailed(err error) error {
	if _, ok := apperrors.IsAppError(err); ok {
		return err
	}
	return apperrors.Wrap(err, apperrors.CodePersistenceFailed, "failed to save changes", http.StatusInternalServerError)
}

// validationFailed turns a domain.FieldValueError into a 400.
func validationFailed(err error) error {
	var fve *domain.FieldValueError
	if errors.As(err, &fve) {
		return apperrors.BadRequest(apperrors.CodeValidationFailed, fve.Error()).
			WithParams(map[string]interface{}{"field": fve.Key})
	}
	return apperrors.Wrap(err, apperrors.CodeValidationFailed, "invalid client data", http.StatusBadRequest)
}

// customSnapshot renders custom field values under their change-log keys.
// Every active definition is present; unset values are "".
func customSnapshot(defs []*domain.CustomFieldDefinition, values map[int64]string) changelog.Snapshot {
	snap := make(changelog.Snapshot, len(defs))
	for _, d := range defs {
		if d.IsActive {
			snap[domain.CustomFieldKey(d.ID)] = values[d.ID]
		}
	}
	return snap
}

// activeValues keeps the submitted values that belong to active definitions.
func activeValues(defs []*domain.CustomFieldDefinition, submitted map[int64]string) map[int64]string {
	out := make(map[int64]string, len(submitted))
	for _, d := range defs {
		if !d.IsActive {
			continue
		}
		if v, ok := submitted[d.ID]; ok {
			out[d.ID] = v
		}
	}
	return out
}
