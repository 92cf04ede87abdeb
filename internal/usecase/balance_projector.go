package usecase

import (
	"context"

	"github.com/iho/esledger/internal/domain"
	"github.com/iho/esledger/internal/infrastructure/logging"
)

// BalanceProjector keeps BalanceView in step with the event stream. On each
// event it rebuilds the affected account and stores its balance, so
// redelivered or reordered events never move the view backwards.
type BalanceProjector struct {
	store  domain.EventStore
	view   BalanceView
	logger *logging.Logger
}

// NewBalanceProjector creates a BalanceProjector.
func NewBalanceProjector(store domain.EventStore, view BalanceView, logger *logging.Logger) *BalanceProjector {
	if logger == nil {
		logger = logging.Discard()
	}
	return &BalanceProjector{store: store, view: view, logger: logger}
}

// Handle refreshes the projection of the event's account. Errors are logged;
// the next event of the same account repairs the view.
func (p *BalanceProjector) Handle(ctx context.Context, event domain.Event) {
	acc, err := domain.LoadAccount(ctx, p.store, event.AggregateID())
	if err != nil {
		p.logger.ErrorCtx(ctx, "failed to rebuild account for projection",
			"aggregate_id", event.AggregateID(),
			"error", err,
		)
		return
	}

	if _, err := p.view.Put(ctx, acc.Balance()); err != nil {
		p.logger.ErrorCtx(ctx, "failed to store projected balance",
			"aggregate_id", event.AggregateID(),
			"error", err,
		)
	}
}

// GetBalance returns the projected balance, which may trail the event store.
func (p *BalanceProjector) GetBalance(ctx context.Context, accountID string) (domain.AccountBalance, error) {
	return p.view.Get(ctx, accountID)
}
