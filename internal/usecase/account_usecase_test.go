package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/iho/esledger/internal/domain"
	"github.com/iho/esledger/internal/infrastructure/logging"
	"github.com/iho/esledger/internal/infrastructure/retry"
	"github.com/iho/esledger/internal/usecase"
	"github.com/iho/esledger/internal/usecase/mocks"
)

func newConflictRetrier(maxRetries int) *retry.Retrier {
	return retry.New(retry.Config{
		MaxRetries:      maxRetries,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		MaxElapsedTime:  time.Second,
		Retryable:       usecase.IsConflict,
		Logger:          logging.Discard(),
		Name:            "command",
	})
}

func registerWithCredit(t *testing.T, uc *usecase.AccountUseCase, id string, credit int64) {
	t.Helper()
	ctx := context.Background()
	_, err := uc.RegisterAccount(ctx, id)
	require.NoError(t, err)
	if credit > 0 {
		_, err = uc.ProvisionCredit(ctx, usecase.ProvisionCreditInput{AccountID: id, Amount: credit})
		require.NoError(t, err)
	}
}

func TestAccountUseCase_RegisterAccount(t *testing.T) {
	ctrl := gomock.NewController(t)
	recorder := mocks.NewMockMetricsRecorder(ctrl)
	recorder.EXPECT().RecordCommand(usecase.CommandRegisterAccount, usecase.OutcomeSuccess)
	recorder.EXPECT().RecordCommand(usecase.CommandRegisterAccount, usecase.OutcomeConflict)

	store := mocks.NewMockEventStore()
	uc := usecase.NewAccountUseCase(store, newConflictRetrier(3), usecase.WithMetricsRecorder(recorder))

	snapshot, err := uc.RegisterAccount(context.Background(), "acc-1")
	require.NoError(t, err)
	require.Equal(t, "acc-1", snapshot.ID)
	require.Equal(t, int64(1), snapshot.Version)

	_, err = uc.RegisterAccount(context.Background(), "acc-1")
	require.ErrorIs(t, err, domain.ErrConflict)
	require.Equal(t, 2, store.SaveCalls, "duplicate registration must not be retried")
	require.Len(t, store.Stream("acc-1"), 1)
}

func TestAccountUseCase_GetAccount(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(t *testing.T, uc *usecase.AccountUseCase)
		id          string
		wantBalance int64
		wantErr     error
	}{
		{
			name:        "existing account",
			setup:       func(t *testing.T, uc *usecase.AccountUseCase) { registerWithCredit(t, uc, "acc-1", 7) },
			id:          "acc-1",
			wantBalance: 7,
		},
		{
			name:    "unknown account",
			setup:   func(*testing.T, *usecase.AccountUseCase) {},
			id:      "ghost",
			wantErr: domain.ErrAccountNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc := usecase.NewAccountUseCase(mocks.NewMockEventStore(), nil)
			tt.setup(t, uc)

			snapshot, err := uc.GetAccount(context.Background(), tt.id)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.wantBalance, snapshot.CreditBalance)
		})
	}
}

func TestAccountUseCase_ListEvents(t *testing.T) {
	uc := usecase.NewAccountUseCase(mocks.NewMockEventStore(), nil)
	registerWithCredit(t, uc, "acc-1", 3)

	events, err := uc.ListEvents(context.Background(), "acc-1")
	require.NoError(t, err)
	require.Equal(t, []domain.Event{
		domain.AccountRegistered{AccountID: "acc-1"},
		domain.CreditProvisioned{AccountID: "acc-1", Amount: 3, NewBalance: 3},
	}, events)

	_, err = uc.ListEvents(context.Background(), "ghost")
	require.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestAccountUseCase_RetriesOnConflict(t *testing.T) {
	store := mocks.NewMockEventStore()
	uc := usecase.NewAccountUseCase(store, newConflictRetrier(3))
	registerWithCredit(t, uc, "acc-1", 0)

	// The first save loses a race against a concurrent provision.
	raced := false
	store.SaveFunc = func(ctx context.Context, id string, expected int64, events ...domain.Event) ([]domain.Event, error) {
		if !raced {
			raced = true
			_, err := store.Append(id, expected, domain.CreditProvisioned{AccountID: id, Amount: 5, NewBalance: 5})
			require.NoError(t, err)
			return nil, domain.ErrConflict
		}
		return store.Append(id, expected, events...)
	}

	snapshot, err := uc.ProvisionCredit(context.Background(), usecase.ProvisionCreditInput{AccountID: "acc-1", Amount: 2})
	require.NoError(t, err)
	require.Equal(t, int64(7), snapshot.CreditBalance)
	require.Equal(t, int64(3), snapshot.Version)
}

func TestAccountUseCase_GivesUpAfterMaxRetries(t *testing.T) {
	store := mocks.NewMockEventStore()
	uc := usecase.NewAccountUseCase(store, newConflictRetrier(2))
	registerWithCredit(t, uc, "acc-1", 5)

	saves := 0
	store.SaveFunc = func(context.Context, string, int64, ...domain.Event) ([]domain.Event, error) {
		saves++
		return nil, domain.ErrConflict
	}

	_, err := uc.WithdrawCredit(context.Background(), usecase.WithdrawCreditInput{AccountID: "acc-1", Amount: 1})
	require.ErrorIs(t, err, domain.ErrConflict)
	require.Equal(t, 3, saves)
}

func TestAccountUseCase_DoesNotRetryRejectedCommands(t *testing.T) {
	tests := []struct {
		name    string
		run     func(uc *usecase.AccountUseCase) error
		wantErr error
	}{
		{
			name: "insufficient credit",
			run: func(uc *usecase.AccountUseCase) error {
				_, err := uc.WithdrawCredit(context.Background(), usecase.WithdrawCreditInput{AccountID: "acc-1", Amount: 10})
				return err
			},
			wantErr: domain.ErrInsufficientCredit,
		},
		{
			name: "negative provision",
			run: func(uc *usecase.AccountUseCase) error {
				_, err := uc.ProvisionCredit(context.Background(), usecase.ProvisionCreditInput{AccountID: "acc-1", Amount: -1})
				return err
			},
			wantErr: domain.ErrInvalidAmount,
		},
		{
			name: "transfer to self",
			run: func(uc *usecase.AccountUseCase) error {
				_, err := uc.RequestTransfer(context.Background(), usecase.RequestTransferInput{OriginID: "acc-1", DestinationID: "acc-1", Amount: 1})
				return err
			},
			wantErr: domain.ErrSameAccount,
		},
		{
			name: "unknown account",
			run: func(uc *usecase.AccountUseCase) error {
				_, err := uc.ProvisionCredit(context.Background(), usecase.ProvisionCreditInput{AccountID: "ghost", Amount: 1})
				return err
			},
			wantErr: domain.ErrAccountNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := mocks.NewMockEventStore()
			uc := usecase.NewAccountUseCase(store, newConflictRetrier(3))
			registerWithCredit(t, uc, "acc-1", 5)
			loads, saves := store.LoadCalls, store.SaveCalls

			err := tt.run(uc)
			require.ErrorIs(t, err, tt.wantErr)
			require.Equal(t, loads+1, store.LoadCalls)
			require.Equal(t, saves, store.SaveCalls)
		})
	}
}

func TestAccountUseCase_RequestAndCancelTransfer(t *testing.T) {
	ids := mocks.NewMockIDGenerator()
	ids.Prefix = "transfer-"
	store := mocks.NewMockEventStore()
	uc := usecase.NewAccountUseCase(store, newConflictRetrier(3), usecase.WithTransferIDGenerator(ids))
	registerWithCredit(t, uc, "acc-1", 5)

	transferID, err := uc.RequestTransfer(context.Background(), usecase.RequestTransferInput{
		OriginID:      "acc-1",
		DestinationID: "acc-2",
		Amount:        4,
	})
	require.NoError(t, err)
	require.Equal(t, "transfer-1", transferID)

	snapshot, err := uc.GetAccount(context.Background(), "acc-1")
	require.NoError(t, err)
	require.Equal(t, int64(1), snapshot.CreditBalance)
	require.Contains(t, snapshot.PendingTransfers, transferID)

	snapshot, err = uc.CancelTransfer(context.Background(), "acc-1", transferID)
	require.NoError(t, err)
	require.Equal(t, int64(5), snapshot.CreditBalance)
	require.Empty(t, snapshot.PendingTransfers)

	_, err = uc.CancelTransfer(context.Background(), "acc-1", transferID)
	require.ErrorIs(t, err, domain.ErrTransferNotPending)
}

func TestAccountUseCase_RecordsCommandOutcomes(t *testing.T) {
	ctrl := gomock.NewController(t)
	recorder := mocks.NewMockMetricsRecorder(ctrl)

	store := mocks.NewMockEventStore()
	uc := usecase.NewAccountUseCase(store, nil, usecase.WithMetricsRecorder(recorder))

	gomock.InOrder(
		recorder.EXPECT().RecordCommand(usecase.CommandRegisterAccount, usecase.OutcomeSuccess),
		recorder.EXPECT().RecordCommand(usecase.CommandWithdrawCredit, usecase.OutcomeRejected),
		recorder.EXPECT().RecordCommand(usecase.CommandProvisionCredit, usecase.OutcomeError),
	)

	_, err := uc.RegisterAccount(context.Background(), "acc-1")
	require.NoError(t, err)

	_, err = uc.WithdrawCredit(context.Background(), usecase.WithdrawCreditInput{AccountID: "acc-1", Amount: 1})
	require.ErrorIs(t, err, domain.ErrInsufficientCredit)

	storeErr := errors.New("disk on fire")
	store.LoadFunc = func(context.Context, string) ([]domain.Event, error) { return nil, storeErr }
	_, err = uc.ProvisionCredit(context.Background(), usecase.ProvisionCreditInput{AccountID: "acc-1", Amount: 1})
	require.ErrorIs(t, err, storeErr)
}
