package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/iho/esledger/internal/domain"
	"github.com/iho/esledger/internal/usecase"
	"github.com/iho/esledger/internal/usecase/mocks"
)

func TestReconciliationUseCase_ReconcileAccount(t *testing.T) {
	recorded := domain.AccountBalance{AccountID: "acc-1", Balance: 6, Version: 2}

	tests := []struct {
		name           string
		repair         bool
		setupView      func(view *mocks.MockBalanceView)
		wantReconciled bool
		wantRepaired   bool
		wantDifference int64
	}{
		{
			name: "projection up to date",
			setupView: func(view *mocks.MockBalanceView) {
				view.EXPECT().Get(gomock.Any(), "acc-1").Return(recorded, nil)
			},
			wantReconciled: true,
		},
		{
			name: "projection lagging without repair",
			setupView: func(view *mocks.MockBalanceView) {
				view.EXPECT().Get(gomock.Any(), "acc-1").Return(domain.AccountBalance{AccountID: "acc-1", Balance: 0, Version: 1}, nil)
			},
			wantDifference: 6,
		},
		{
			name:   "projection lagging with repair",
			repair: true,
			setupView: func(view *mocks.MockBalanceView) {
				view.EXPECT().Get(gomock.Any(), "acc-1").Return(domain.AccountBalance{AccountID: "acc-1", Balance: 0, Version: 1}, nil)
				view.EXPECT().Overwrite(gomock.Any(), recorded).Return(nil)
			},
			wantRepaired:   true,
			wantDifference: 6,
		},
		{
			name: "same version wrong balance without repair",
			setupView: func(view *mocks.MockBalanceView) {
				view.EXPECT().Get(gomock.Any(), "acc-1").Return(domain.AccountBalance{AccountID: "acc-1", Balance: 999, Version: 2}, nil)
			},
			wantDifference: -993,
		},
		{
			name:   "same version wrong balance with repair",
			repair: true,
			setupView: func(view *mocks.MockBalanceView) {
				view.EXPECT().Get(gomock.Any(), "acc-1").Return(domain.AccountBalance{AccountID: "acc-1", Balance: 999, Version: 2}, nil)
				view.EXPECT().Overwrite(gomock.Any(), recorded).Return(nil)
			},
			wantRepaired:   true,
			wantDifference: -993,
		},
		{
			name:   "projection ahead of the store with repair",
			repair: true,
			setupView: func(view *mocks.MockBalanceView) {
				view.EXPECT().Get(gomock.Any(), "acc-1").Return(domain.AccountBalance{AccountID: "acc-1", Balance: 6, Version: 7}, nil)
				view.EXPECT().Overwrite(gomock.Any(), recorded).Return(nil)
			},
			wantRepaired: true,
		},
		{
			name:   "projection missing with repair",
			repair: true,
			setupView: func(view *mocks.MockBalanceView) {
				view.EXPECT().Get(gomock.Any(), "acc-1").Return(domain.AccountBalance{}, domain.ErrAccountNotFound)
				view.EXPECT().Overwrite(gomock.Any(), recorded).Return(nil)
			},
			wantRepaired:   true,
			wantDifference: 6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			view := mocks.NewMockBalanceView(ctrl)
			tt.setupView(view)

			store := mocks.NewMockEventStore()
			registerWithCredit(t, usecase.NewAccountUseCase(store, nil), "acc-1", 6)

			uc := usecase.NewReconciliationUseCase(store, view)
			result, err := uc.ReconcileAccount(context.Background(), "acc-1", tt.repair)
			require.NoError(t, err)
			require.Equal(t, tt.wantReconciled, result.IsReconciled)
			require.Equal(t, tt.wantRepaired, result.Repaired)
			require.Equal(t, tt.wantDifference, result.Difference)
			require.Equal(t, int64(6), result.RecordedBalance)
			require.False(t, result.LastChecked.IsZero())
		})
	}
}

func TestReconciliationUseCase_Errors(t *testing.T) {
	ctrl := gomock.NewController(t)
	view := mocks.NewMockBalanceView(ctrl)
	store := mocks.NewMockEventStore()
	uc := usecase.NewReconciliationUseCase(store, view)

	_, err := uc.ReconcileAccount(context.Background(), "ghost", false)
	require.ErrorIs(t, err, domain.ErrAccountNotFound)

	registerWithCredit(t, usecase.NewAccountUseCase(store, nil), "acc-1", 0)
	viewErr := errors.New("redis down")
	view.EXPECT().Get(gomock.Any(), "acc-1").Return(domain.AccountBalance{}, viewErr)

	_, err = uc.ReconcileAccount(context.Background(), "acc-1", true)
	require.ErrorIs(t, err, viewErr)

	writeErr := errors.New("redis read-only")
	view.EXPECT().Get(gomock.Any(), "acc-1").Return(domain.AccountBalance{AccountID: "acc-1", Balance: 5, Version: 1}, nil)
	view.EXPECT().Overwrite(gomock.Any(), gomock.Any()).Return(writeErr)

	_, err = uc.ReconcileAccount(context.Background(), "acc-1", true)
	require.ErrorIs(t, err, writeErr)
}
