package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/iho/esledger/internal/domain"
)

// ReconciliationUseCase compares the balance read model against the event
// store, which is always authoritative.
type ReconciliationUseCase struct {
	store domain.EventStore
	view  BalanceView
	now   func() time.Time
}

// NewReconciliationUseCase creates a new reconciliation use case
func NewReconciliationUseCase(store domain.EventStore, view BalanceView) *ReconciliationUseCase {
	return &ReconciliationUseCase{
		store: store,
		view:  view,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// ReconciliationResult represents the result of a reconciliation check
type ReconciliationResult struct {
	AccountID        string
	RecordedBalance  int64
	RecordedVersion  int64
	ProjectedBalance int64
	ProjectedVersion int64
	Difference       int64
	IsReconciled     bool
	Repaired         bool
	LastChecked      time.Time
}

// ReconcileAccount rebuilds the account from its events and checks the
// projected balance against it. When repair is set, any drifted projection is
// replaced by the recorded balance, including one stored at the current
// version with a wrong balance.
func (uc *ReconciliationUseCase) ReconcileAccount(ctx context.Context, accountID string, repair bool) (*ReconciliationResult, error) {
	acc, err := domain.LoadAccount(ctx, uc.store, accountID)
	if err != nil {
		return nil, err
	}
	recorded := acc.Balance()

	projected, err := uc.view.Get(ctx, accountID)
	if err != nil && !errors.Is(err, domain.ErrAccountNotFound) {
		return nil, err
	}

	result := &ReconciliationResult{
		AccountID:        accountID,
		RecordedBalance:  recorded.Balance,
		RecordedVersion:  recorded.Version,
		ProjectedBalance: projected.Balance,
		ProjectedVersion: projected.Version,
		Difference:       recorded.Balance - projected.Balance,
		LastChecked:      uc.now(),
	}
	result.IsReconciled = result.Difference == 0 && recorded.Version == projected.Version

	if !result.IsReconciled && repair {
		if err := uc.view.Overwrite(ctx, recorded); err != nil {
			return nil, err
		}
		result.Repaired = true
	}

	return result, nil
}
