package usecase

import (
	"context"
	"errors"

	"github.com/iho/esledger/internal/domain"
)

// Command names reported to MetricsRecorder.
const (
	CommandRegisterAccount = "register_account"
	CommandProvisionCredit = "provision_credit"
	CommandWithdrawCredit  = "withdraw_credit"
	CommandRequestTransfer = "request_transfer"
	CommandCancelTransfer  = "cancel_transfer"
)

// AccountUseCase is the command surface over the account aggregate.
type AccountUseCase struct {
	store    domain.EventStore
	idGen    domain.IDGenerator
	retrier  Retrier
	recorder MetricsRecorder
}

// AccountUseCaseOption configures an AccountUseCase.
type AccountUseCaseOption func(*AccountUseCase)

// WithTransferIDGenerator overrides the ULID transfer id generator.
func WithTransferIDGenerator(g domain.IDGenerator) AccountUseCaseOption {
	return func(uc *AccountUseCase) { uc.idGen = g }
}

// WithMetricsRecorder sets where command outcomes are reported.
func WithMetricsRecorder(r MetricsRecorder) AccountUseCaseOption {
	return func(uc *AccountUseCase) {
		if r != nil {
			uc.recorder = r
		}
	}
}

// NewAccountUseCase creates a new AccountUseCase. The retrier decides which
// errors are worth a reload; a nil retrier runs every command once.
func NewAccountUseCase(store domain.EventStore, retrier Retrier, opts ...AccountUseCaseOption) *AccountUseCase {
	uc := &AccountUseCase{
		store:    store,
		retrier:  retrier,
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(uc)
	}
	if uc.retrier == nil {
		uc.retrier = onceRetrier{}
	}
	return uc
}

// RegisterAccount opens a new account. A duplicate id yields domain.ErrConflict
// and is never retried.
func (uc *AccountUseCase) RegisterAccount(ctx context.Context, id string) (domain.Snapshot, error) {
	acc, err := domain.RegisterAccount(ctx, uc.store, id, uc.accountOptions()...)
	uc.recorder.RecordCommand(CommandRegisterAccount, commandOutcome(err))
	if err != nil {
		return domain.Snapshot{}, err
	}
	return acc.Snapshot(), nil
}

// GetAccount rebuilds the account from its events.
func (uc *AccountUseCase) GetAccount(ctx context.Context, id string) (domain.Snapshot, error) {
	acc, err := domain.LoadAccount(ctx, uc.store, id)
	if err != nil {
		return domain.Snapshot{}, err
	}
	return acc.Snapshot(), nil
}

// ListEvents returns the account's committed history in order.
func (uc *AccountUseCase) ListEvents(ctx context.Context, id string) ([]domain.Event, error) {
	events, err := uc.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, domain.ErrAccountNotFound
	}
	return events, nil
}

// ProvisionCreditInput represents input for provisioning credit.
type ProvisionCreditInput struct {
	AccountID string
	Amount    int64
}

// ProvisionCredit adds credit to an account.
func (uc *AccountUseCase) ProvisionCredit(ctx context.Context, input ProvisionCreditInput) (domain.Snapshot, error) {
	return uc.execute(ctx, CommandProvisionCredit, input.AccountID, func(acc *domain.Account) error {
		return acc.ProvisionCredit(ctx, input.Amount)
	})
}

// WithdrawCreditInput represents input for withdrawing credit.
type WithdrawCreditInput struct {
	AccountID string
	Amount    int64
}

// WithdrawCredit removes credit from an account.
func (uc *AccountUseCase) WithdrawCredit(ctx context.Context, input WithdrawCreditInput) (domain.Snapshot, error) {
	return uc.execute(ctx, CommandWithdrawCredit, input.AccountID, func(acc *domain.Account) error {
		return acc.WithdrawCredit(ctx, input.Amount)
	})
}

// RequestTransferInput represents input for requesting a transfer.
type RequestTransferInput struct {
	OriginID      string
	DestinationID string
	Amount        int64
}

// RequestTransfer reserves credit on the origin and returns the transfer id.
// Settlement happens asynchronously through TransferProcessManager.
func (uc *AccountUseCase) RequestTransfer(ctx context.Context, input RequestTransferInput) (string, error) {
	var transferID string
	_, err := uc.execute(ctx, CommandRequestTransfer, input.OriginID, func(acc *domain.Account) error {
		id, err := acc.RequestTransfer(ctx, input.DestinationID, input.Amount)
		if err != nil {
			return err
		}
		transferID = id
		return nil
	})
	if err != nil {
		return "", err
	}
	return transferID, nil
}

// CancelTransfer refunds a transfer that is still pending on the origin.
func (uc *AccountUseCase) CancelTransfer(ctx context.Context, accountID, transferID string) (domain.Snapshot, error) {
	return uc.execute(ctx, CommandCancelTransfer, accountID, func(acc *domain.Account) error {
		return acc.CancelTransfer(ctx, transferID)
	})
}

// execute runs load, decide and save, starting over from a fresh load each
// time the retrier accepts the failure.
func (uc *AccountUseCase) execute(ctx context.Context, command, accountID string, decide func(*domain.Account) error) (domain.Snapshot, error) {
	var snapshot domain.Snapshot

	err := uc.retrier.Retry(ctx, func() error {
		acc, err := domain.LoadAccount(ctx, uc.store, accountID, uc.accountOptions()...)
		if err != nil {
			return err
		}
		if err := decide(acc); err != nil {
			return err
		}
		snapshot = acc.Snapshot()
		return nil
	})

	uc.recorder.RecordCommand(command, commandOutcome(err))
	if err != nil {
		return domain.Snapshot{}, err
	}
	return snapshot, nil
}

func (uc *AccountUseCase) accountOptions() []domain.AccountOption {
	if uc.idGen == nil {
		return nil
	}
	return []domain.AccountOption{domain.WithIDGenerator(uc.idGen)}
}

// IsConflict is the retry predicate for command execution.
func IsConflict(err error) bool {
	return errors.Is(err, domain.ErrConflict)
}

func commandOutcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, domain.ErrConflict):
		return OutcomeConflict
	case errors.Is(err, domain.ErrInvalidCommand), errors.Is(err, domain.ErrAccountNotFound):
		return OutcomeRejected
	default:
		return OutcomeError
	}
}

type onceRetrier struct{}

func (onceRetrier) Retry(_ context.Context, operation func() error) error {
	return operation()
}
