package usecase

import (
	"context"
	"maps"
	"net/http"

	"go.uber.org/zap"

	"supportportal.io/portal/internal/changelog"
	"supportportal.io/portal/internal/domain"
	"supportportal.io/portal/internal/governance/audit"
	apperrors "supportportal.io/portal/internal/pkg/errors"
	"supportportal.io/portal/internal/pkg/logger"
)

// UpdateClientInput is a partial update of a client card.
type UpdateClientInput struct {
	ClientID int64
	ActorID  *int64
	// Patch holds the submitted card fields keyed by request key. Keys that
	// are absent are left unchanged and never reported as changed.
	Patch map[string]any
	// CustomValues holds submitted custom field values by definition id.
	// nil means the custom fields were not part of the request.
	CustomValues map[int64]string
}

// UpdateClientOutput is the result of an update.
type UpdateClientOutput struct {
	Client  *domain.Client
	Action  string
	Changes []changelog.ChangeDescription
}

// UpdateClientUseCase applies a partial update and logs the field changes.
type UpdateClientUseCase struct {
	tx         Transactor
	dispatcher *domain.EventDispatcher
}

// NewUpdateClientUseCase creates a new UpdateClientUseCase.
func NewUpdateClientUseCase(tx Transactor) *UpdateClientUseCase {
	return &UpdateClientUseCase{tx: tx}
}

// WithDispatcher sets the event dispatcher (optional dependency).
func (uc *UpdateClientUseCase) WithDispatcher(d *domain.EventDispatcher) *UpdateClientUseCase {
	uc.dispatcher = d
	return uc
}

// Execute snapshots the card, writes the patch, diffs the snapshot against the
// submitted values and records a single activity entry, all in one transaction.
// Finalising a draft records the creation entry instead of a diff.
func (uc *UpdateClientUseCase) Execute(ctx context.Context, input UpdateClientInput) (*UpdateClientOutput, error) {
	var out UpdateClientOutput

	err := uc.tx.InTx(ctx, func(s ClientStore) error {
		old, err := loadClient(ctx, s, input.ClientID)
		if err != nil {
			return err
		}

		defs, err := s.ActiveCustomFields(ctx)
		if err != nil {
			return persistenceFailed(err)
		}
		reg, err := changelog.ClientFields.With(changelog.CustomFieldSpecs(defs)...)
		if err != nil {
			logger.Error("Custom field keys collide with the client registry", zap.Error(err))
			return apperrors.Wrap(err, apperrors.CodeInternal, "field registry error", http.StatusInternalServerError)
		}
		oldCustom, err := s.CustomFieldValues(ctx, old.ID)
		if err != nil {
			return persistenceFailed(err)
		}
		oldSnap := changelog.Extract(old, changelog.ClientFields).Merge(customSnapshot(defs, oldCustom))

		updated := *old
		if err := updated.ApplyPatch(input.Patch); err != nil {
			return validationFailed(err)
		}
		finalising := false
		if v, ok := input.Patch["is_draft"]; ok {
			updated.IsDraft = domain.Truthy(v)
			finalising = old.IsDraft && !updated.IsDraft
		}
		if err := s.UpdateClient(ctx, &updated); err != nil {
			return persistenceFailed(err)
		}

		newRaw := make(map[string]any, len(input.Patch)+len(input.CustomValues))
		maps.Copy(newRaw, input.Patch)
		if input.CustomValues != nil {
			values := activeValues(defs, input.CustomValues)
			if err := s.SaveCustomFieldValues(ctx, updated.ID, values); err != nil {
				return persistenceFailed(err)
			}
			for id, v := range values {
				newRaw[domain.CustomFieldKey(id)] = v
			}
		}

		if finalising {
			out.Action = domain.ActivityClientCreated
		} else {
			refs, err := s.RefNames(ctx)
			if err != nil {
				return persistenceFailed(err)
			}
			out.Changes = changelog.Diff(oldSnap, newRaw, reg, refs)
			out.Action = changelog.ComposeAction(out.Changes)
			if len(out.Changes) == 0 {
				logger.Debug("Client update produced no field changes",
					zap.Int64("client_id", updated.ID),
					zap.Bool("submitted_logged_fields", submitsLoggedField(reg, newRaw)),
				)
			}
		}

		if err := audit.NewActivityRecorder(s).Record(ctx, updated.ID, input.ActorID, out.Action); err != nil {
			return err
		}
		out.Client = &updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	eventType := domain.EventClientUpdated
	if out.Action == domain.ActivityClientCreated {
		eventType = domain.EventClientCreated
	}
	_ = uc.dispatcher.Dispatch(ctx, domain.NewEvent(eventType, out.Client.ID, input.ActorID, nil))

	logger.Info("Client updated",
		zap.Int64("client_id", out.Client.ID),
		zap.Int("changes", len(out.Changes)),
	)
	return &out, nil
}

// submitsLoggedField reports whether newRaw carries any key the registry diffs.
func submitsLoggedField(reg *changelog.Registry, newRaw map[string]any) bool {
	for _, spec := range reg.Fields() {
		key := spec.Key
		if spec.SubmitKey != "" {
			key = spec.SubmitKey
		}
		if _, ok := newRaw[key]; ok {
			return true
		}
	}
	return false
}
