package usecase

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"supportportal.io/portal/internal/changelog"
	"supportportal.io/portal/internal/domain"
	"supportportal.io/portal/internal/governance/audit"
	apperrors "supportportal.io/portal/internal/pkg/errors"
	"supportportal.io/portal/internal/pkg/logger"
)

// Transfer steps named in consistency hazard errors.
const (
	StepSummary      = "summary"
	StepRecordDest   = "record_destination"
	StepRecordPrior  = "record_replaced"
	StepClearSource  = "clear_source"
	StepRecordSource = "record_source"
)

// TransferInput moves the uplink held by SourceID at SourceSlot into DestID at DestSlot.
type TransferInput struct {
	SourceID   int64  `json:"source_id"`
	DestID     int64  `json:"destination_id"`
	SourceSlot int    `json:"source_slot"`
	DestSlot   int    `json:"destination_slot"`
	ActorID    *int64 `json:"-"`
}

// TransferOutput identifies the client that received the uplink.
type TransferOutput struct {
	DestinationID   int64  `json:"destination_id"`
	DestinationName string `json:"destination_name"`
}

// TransferUplinkUseCase moves an uplink between clients and logs both sides.
type TransferUplinkUseCase struct {
	tx         Transactor
	bundle     changelog.TransferBundle
	dispatcher *domain.EventDispatcher
}

// NewTransferUplinkUseCase creates a new TransferUplinkUseCase.
func NewTransferUplinkUseCase(tx Transactor) *TransferUplinkUseCase {
	return &TransferUplinkUseCase{tx: tx, bundle: changelog.UplinkBundle}
}

// WithDispatcher sets the event dispatcher (optional dependency).
func (uc *TransferUplinkUseCase) WithDispatcher(d *domain.EventDispatcher) *TransferUplinkUseCase {
	uc.dispatcher = d
	return uc
}

// Execute runs the transfer in one transaction:
//
//  1. read the bundle from the source slot
//  2. write it into the destination slot and save the destination
//  3. render the bundle summary
//  4. record the "received" entry on the destination
//  5. clear the source slot and save the source
//  6. record the "sent" entry on the source
//
// When the destination slot already held an uplink, the replaced values are
// recorded on the destination before the "received" entry.
//
// Preconditions are checked before anything is written. A failure in step 2
// aborts with PERSISTENCE_FAILED and no activity. A failure in steps 3 to 6
// happens after the destination was written; the transaction is rolled back
// and the failure is reported as TRANSFER_CONSISTENCY_HAZARD naming both
// clients and the step, distinct from validation errors.
func (uc *TransferUplinkUseCase) Execute(ctx context.Context, input TransferInput) (*TransferOutput, error) {
	if !domain.ValidSlot(input.SourceSlot) || !domain.ValidSlot(input.DestSlot) {
		return nil, apperrors.BadRequest(apperrors.CodeInvalidSlot, "slot must be 1 or 2").
			WithParams(map[string]interface{}{"source_slot": input.SourceSlot, "destination_slot": input.DestSlot})
	}
	if input.SourceID == input.DestID {
		return nil, apperrors.BadRequest(apperrors.CodeClientSelfTransfer, "cannot transfer an uplink to the same client").
			WithParams(map[string]interface{}{"client_id": input.SourceID})
	}

	var out TransferOutput
	err := uc.tx.InTx(ctx, func(s ClientStore) error {
		src, dst, err := lockPair(ctx, s, input.SourceID, input.DestID)
		if err != nil {
			return err
		}
		if dst.IsDraft {
			return apperrors.ErrClientNotFoundf(dst.ID)
		}
		refs, err := s.RefNames(ctx)
		if err != nil {
			return persistenceFailed(err)
		}

		// Step 1.
		srcSnap := changelog.Extract(src, changelog.ClientFields)
		moved := *src.Uplink(input.SourceSlot)
		replaced := !dst.Uplink(input.DestSlot).IsEmpty()
		dstSnap := changelog.Extract(dst, changelog.ClientFields)

		// Step 2.
		*dst.Uplink(input.DestSlot) = moved
		if err := s.UpdateClient(ctx, dst); err != nil {
			return persistenceFailed(err)
		}

		hazard := func(step string, err error) error {
			return uc.hazard(input, step, err)
		}

		// Step 3.
		summary, err := uc.bundle.Summary(changelog.ClientFields, srcSnap, input.SourceSlot, refs)
		if err != nil {
			return hazard(StepSummary, err)
		}

		rec := audit.NewActivityRecorder(s)

		if replaced {
			prior, err := uc.bundle.Summary(changelog.ClientFields, dstSnap, input.DestSlot, refs)
			if err != nil {
				return hazard(StepRecordPrior, err)
			}
			if err := rec.Record(ctx, dst.ID, input.ActorID, changelog.ReplacedAction(uc.bundle, input.DestSlot, prior)); err != nil {
				return hazard(StepRecordPrior, err)
			}
		}

		// Step 4.
		received := changelog.ReceivedAction(uc.bundle, src.DisplayName(), input.DestSlot, summary)
		if err := rec.Record(ctx, dst.ID, input.ActorID, received); err != nil {
			return hazard(StepRecordDest, err)
		}

		// Step 5.
		*src.Uplink(input.SourceSlot) = domain.Uplink{}
		if err := s.UpdateClient(ctx, src); err != nil {
			return hazard(StepClearSource, err)
		}

		// Step 6.
		sent := changelog.SentAction(uc.bundle, dst.DisplayName(), input.DestSlot, summary)
		if err := rec.Record(ctx, src.ID, input.ActorID, sent); err != nil {
			return hazard(StepRecordSource, err)
		}

		out = TransferOutput{DestinationID: dst.ID, DestinationName: dst.DisplayName()}
		return nil
	})
	if err != nil {
		return nil, err
	}

	_ = uc.dispatcher.Dispatch(ctx, domain.NewEvent(domain.EventUplinkTransferred, input.SourceID, input.ActorID,
		domain.UplinkTransferredPayload{
			DestinationID: input.DestID,
			SourceSlot:    input.SourceSlot,
			DestSlot:      input.DestSlot,
		}))

	logger.Info("Uplink transferred",
		zap.Int64("source_id", input.SourceID),
		zap.Int("source_slot", input.SourceSlot),
		zap.Int64("destination_id", input.DestID),
		zap.Int("destination_slot", input.DestSlot),
	)
	return &out, nil
}

func (uc *TransferUplinkUseCase) hazard(input TransferInput, step string, err error) error {
	logger.Error("Uplink transfer failed after the destination was written; rolled back",
		zap.Int64("source_id", input.SourceID),
		zap.Int64("destination_id", input.DestID),
		zap.String("step", step),
		zap.Error(err),
	)
	return apperrors.Wrap(err, apperrors.CodeTransferHazard,
		"uplink transfer failed and was rolled back; neither client was changed", http.StatusInternalServerError).
		WithParams(map[string]interface{}{
			"source_id":      input.SourceID,
			"destination_id": input.DestID,
			"step":           step,
		})
}

// lockPair locks both clients in id order so concurrent transfers between
// the same pair cannot deadlock.
func lockPair(ctx context.Context, s ClientStore, srcID, dstID int64) (*domain.Client, *domain.Client, error) {
	first, second := srcID, dstID
	if second < first {
		first, second = second, first
	}
	a, err := loadClient(ctx, s, first)
	if err != nil {
		return nil, nil, err
	}
	b, err := loadClient(ctx, s, second)
	if err != nil {
		return nil, nil, err
	}
	if a.ID == srcID {
		return a, b, nil
	}
	return b, a, nil
}

// IsTransferHazard reports whether err is a consistency hazard raised by a transfer.
func IsTransferHazard(err error) bool {
	var appErr *apperrors.AppError
	return errors.As(err, &appErr) && appErr.Code == apperrors.CodeTransferHazard
}
