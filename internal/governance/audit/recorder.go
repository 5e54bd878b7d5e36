package audit

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"supportportal.io/portal/internal/changelog"
	apperrors "supportportal.io/portal/internal/pkg/errors"
	"supportportal.io/portal/internal/pkg/logger"
)

// ActivityStore is the persistence behind ActivityRecorder. *repository.Queries
// satisfies it, inside or outside a transaction.
type ActivityStore interface {
	ClientExists(ctx context.Context, id int64) (bool, error)
	UserExists(ctx context.Context, id int64) (bool, error)
	InsertActivity(ctx context.Context, clientID int64, actorID *int64, action string) error
}

// ActivityRecorder appends entries to a client's activity trail.
type ActivityRecorder struct {
	store ActivityStore
}

// NewActivityRecorder creates a recorder writing through store.
func NewActivityRecorder(store ActivityStore) *ActivityRecorder {
	return &ActivityRecorder{store: store}
}

// Record appends one entry. The client must exist; an actor that no longer
// exists is stored as unknown. The action is capped at changelog.MaxActionLen.
func (r *ActivityRecorder) Record(ctx context.Context, clientID int64, actorID *int64, action string) error {
	ok, err := r.store.ClientExists(ctx, clientID)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodePersistenceFailed, "failed to record activity", http.StatusInternalServerError)
	}
	if !ok {
		return apperrors.ErrClientNotFoundf(clientID)
	}

	if actorID != nil {
		exists, err := r.store.UserExists(ctx, *actorID)
		if err != nil {
			return apperrors.Wrap(err, apperrors.CodePersistenceFailed, "failed to record activity", http.StatusInternalServerError)
		}
		if !exists {
			logger.Debug("Activity actor no longer exists, recording as unknown",
				zap.Int64("client_id", clientID),
				zap.Int64("actor_id", *actorID),
			)
			actorID = nil
		}
	}

	if err := r.store.InsertActivity(ctx, clientID, actorID, changelog.ClampAction(action)); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.ErrClientNotFoundf(clientID)
		}
		return apperrors.Wrap(err, apperrors.CodePersistenceFailed, "failed to record activity", http.StatusInternalServerError)
	}
	return nil
}
