package usecase

import (
	"context"

	"go.uber.org/zap"

	"supportportal.io/portal/internal/domain"
	"supportportal.io/portal/internal/governance/audit"
	apperrors "supportportal.io/portal/internal/pkg/errors"
	"supportportal.io/portal/internal/pkg/logger"
)

// CreateClientInput describes a new client card.
type CreateClientInput struct {
	ActorID      *int64
	Patch        map[string]any
	CustomValues map[int64]string
	// Draft creates an incomplete card that is hidden from lists until it is
	// finalised by an update with is_draft=false.
	Draft bool
}

// CreateClientUseCase creates client cards and drafts.
type CreateClientUseCase struct {
	tx         Transactor
	dispatcher *domain.EventDispatcher
}

// NewCreateClientUseCase creates a new CreateClientUseCase.
func NewCreateClientUseCase(tx Transactor) *CreateClientUseCase {
	return &CreateClientUseCase{tx: tx}
}

// WithDispatcher sets the event dispatcher (optional dependency).
func (uc *CreateClientUseCase) WithDispatcher(d *domain.EventDispatcher) *CreateClientUseCase {
	uc.dispatcher = d
	return uc
}

// Execute stores the card. A complete card gets the creation activity entry;
// drafts get none until finalised.
func (uc *CreateClientUseCase) Execute(ctx context.Context, input CreateClientInput) (*domain.Client, error) {
	c := &domain.Client{Status: domain.ClientStatusActive, IsDraft: input.Draft, CreatedByID: input.ActorID}
	if err := c.ApplyPatch(input.Patch); err != nil {
		return nil, validationFailed(err)
	}

	err := uc.tx.InTx(ctx, func(s ClientStore) error {
		if err := s.InsertClient(ctx, c); err != nil {
			return persistenceFailed(err)
		}
		if len(input.CustomValues) > 0 {
			defs, err := s.ActiveCustomFields(ctx)
			if err != nil {
				return persistenceFailed(err)
			}
			if err := s.SaveCustomFieldValues(ctx, c.ID, activeValues(defs, input.CustomValues)); err != nil {
				return persistenceFailed(err)
			}
		}
		if input.Draft {
			return nil
		}
		return audit.NewActivityRecorder(s).Record(ctx, c.ID, input.ActorID, domain.ActivityClientCreated)
	})
	if err != nil {
		return nil, err
	}

	if !c.IsDraft {
		_ = uc.dispatcher.Dispatch(ctx, domain.NewEvent(domain.EventClientCreated, c.ID, input.ActorID, nil))
	}
	logger.Info("Client created", zap.Int64("client_id", c.ID), zap.Bool("draft", c.IsDraft))
	return c, nil
}

// DiscardDraft deletes a draft card. Complete cards are rejected.
func (uc *CreateClientUseCase) DiscardDraft(ctx context.Context, clientID int64) error {
	return uc.tx.InTx(ctx, func(s ClientStore) error {
		c, err := loadClient(ctx, s, clientID)
		if err != nil {
			return err
		}
		if !c.IsDraft {
			return apperrors.BadRequest(apperrors.CodeDraftOnly, "only drafts can be discarded").
				WithParams(map[string]interface{}{"client_id": clientID})
		}
		if err := s.DeleteClient(ctx, clientID); err != nil {
			return persistenceFailed(err)
		}
		return nil
	})
}
