package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/iho/esledger/internal/domain"
	"github.com/iho/esledger/internal/infrastructure/logging"
)

// TransferProcessManager drives a requested transfer to completion or
// cancellation by reacting to account events. It keeps no state of its own:
// everything it needs travels in the events.
//
// Failures are logged and dropped. A transfer whose reaction failed stays
// pending on the origin until an operator cancels it.
type TransferProcessManager struct {
	store    domain.EventStore
	logger   *logging.Logger
	recorder MetricsRecorder
}

// NewTransferProcessManager creates the saga. store must publish what it
// commits so that follow-up events reach the saga again.
func NewTransferProcessManager(store domain.EventStore, logger *logging.Logger, recorder MetricsRecorder) *TransferProcessManager {
	if logger == nil {
		logger = logging.Discard()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &TransferProcessManager{store: store, logger: logger, recorder: recorder}
}

// Handle reacts to one event. It never returns an error to the bus.
func (pm *TransferProcessManager) Handle(ctx context.Context, event domain.Event) {
	r := &transferReaction{ctx: ctx, pm: pm, outcome: ReactionIgnored}
	event.ApplyOn(r)

	if r.err != nil {
		r.outcome = ReactionFailed
		pm.logger.ErrorCtx(ctx, "transfer reaction failed",
			"event_type", event.EventType(),
			"aggregate_id", event.AggregateID(),
			"transfer_id", r.transferID,
			"error", r.err,
		)
	}
	pm.recorder.RecordSagaReaction(event.EventType(), r.outcome)
}

// transferReaction carries one Handle call through the event visitor.
type transferReaction struct {
	ctx context.Context
	pm  *TransferProcessManager

	transferID string
	outcome    string
	err        error
}

func (r *transferReaction) OnTransferRequested(e domain.TransferRequested) {
	r.transferID = e.TransferID

	dest, err := domain.LoadAccount(r.ctx, r.pm.store, e.DestinationID)
	switch {
	case err == nil:
		r.done(dest.ReceiveTransfer(r.ctx, e.AccountID, e.TransferID, e.Amount), "receive transfer")
		if r.err == nil {
			r.pm.logger.InfoCtx(r.ctx, "transfer received",
				"transfer_id", e.TransferID,
				"origin_id", e.AccountID,
				"destination_id", e.DestinationID,
				"amount", e.Amount,
			)
		}
	case errors.Is(err, domain.ErrAccountNotFound):
		origin, err := domain.LoadAccount(r.ctx, r.pm.store, e.AccountID)
		if err != nil {
			r.done(err, "load origin "+e.AccountID)
			return
		}
		r.done(origin.CancelTransfer(r.ctx, e.TransferID), "cancel transfer")
		if r.err == nil {
			r.pm.logger.WarnCtx(r.ctx, "transfer canceled, destination does not exist",
				"transfer_id", e.TransferID,
				"origin_id", e.AccountID,
				"destination_id", e.DestinationID,
			)
		}
	default:
		r.done(err, "load destination "+e.DestinationID)
	}
}

func (r *transferReaction) OnTransferReceived(e domain.TransferReceived) {
	r.transferID = e.TransferID

	origin, err := domain.LoadAccount(r.ctx, r.pm.store, e.OriginID)
	if err != nil {
		r.done(err, "load origin "+e.OriginID)
		return
	}
	r.done(origin.CompleteTransfer(r.ctx, e.TransferID), "complete transfer")
}

func (r *transferReaction) OnAccountRegistered(domain.AccountRegistered) {}
func (r *transferReaction) OnCreditProvisioned(domain.CreditProvisioned) {}
func (r *transferReaction) OnCreditWithdrawn(domain.CreditWithdrawn)     {}
func (r *transferReaction) OnTransferCompleted(domain.TransferCompleted) {}
func (r *transferReaction) OnTransferCanceled(domain.TransferCanceled)   {}

func (r *transferReaction) done(err error, step string) {
	if err != nil {
		r.err = fmt.Errorf("%s: %w", step, err)
		return
	}
	r.outcome = ReactionHandled
}
