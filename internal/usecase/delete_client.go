package usecase

import (
	"context"

	"go.uber.org/zap"

	"supportportal.io/portal/internal/domain"
	"supportportal.io/portal/internal/governance/audit"
	"supportportal.io/portal/internal/pkg/logger"
)

// DeleteClientUseCase removes a client with its notes, activities and files.
type DeleteClientUseCase struct {
	tx          Transactor
	dispatcher  *domain.EventDispatcher
	auditLogger *audit.Logger
}

// NewDeleteClientUseCase creates a new DeleteClientUseCase.
func NewDeleteClientUseCase(tx Transactor) *DeleteClientUseCase {
	return &DeleteClientUseCase{tx: tx}
}

// WithDispatcher sets the event dispatcher. CLIENT_DELETED handlers receive
// the stored file names to remove from disk.
func (uc *DeleteClientUseCase) WithDispatcher(d *domain.EventDispatcher) *DeleteClientUseCase {
	uc.dispatcher = d
	return uc
}

// WithAuditLogger sets the platform audit logger (optional dependency).
func (uc *DeleteClientUseCase) WithAuditLogger(al *audit.Logger) *DeleteClientUseCase {
	uc.auditLogger = al
	return uc
}

// Execute deletes the client. The client's activity trail goes with it, so
// the deletion itself is kept in the platform audit log.
func (uc *DeleteClientUseCase) Execute(ctx context.Context, clientID int64, actorID *int64, actor string) error {
	var (
		name   string
		stored []string
	)
	err := uc.tx.InTx(ctx, func(s ClientStore) error {
		c, err := loadClient(ctx, s, clientID)
		if err != nil {
			return err
		}
		name = c.DisplayName()
		files, err := s.ListFiles(ctx, clientID)
		if err != nil {
			return persistenceFailed(err)
		}
		for _, f := range files {
			stored = append(stored, f.StoredName)
		}
		if err := s.DeleteClient(ctx, clientID); err != nil {
			return persistenceFailed(err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	_ = uc.auditLogger.LogClientDeleted(ctx, clientID, name, actor)
	_ = uc.dispatcher.Dispatch(ctx, domain.NewEvent(domain.EventClientDeleted, clientID, actorID,
		domain.ClientDeletedPayload{StoredFiles: stored}))

	logger.Info("Client deleted",
		zap.Int64("client_id", clientID),
		zap.Int("files", len(stored)),
	)
	return nil
}
