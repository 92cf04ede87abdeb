package dto

import (
	"sort"
	"time"

	"github.com/iho/esledger/internal/domain"
	"github.com/iho/esledger/internal/usecase"
)

// AccountResponse represents an account in API responses.
type AccountResponse struct {
	ID               string                    `json:"id"`
	CreditBalance    int64                     `json:"credit_balance"`
	Version          int64                     `json:"version"`
	PendingTransfers []PendingTransferResponse `json:"pending_transfers"`
}

// PendingTransferResponse is an outgoing transfer awaiting settlement.
type PendingTransferResponse struct {
	TransferID    string `json:"transfer_id"`
	DestinationID string `json:"destination_id"`
	Amount        int64  `json:"amount"`
}

// AccountFromDomain converts an account snapshot to a response.
func AccountFromDomain(s domain.Snapshot) *AccountResponse {
	pending := make([]PendingTransferResponse, 0, len(s.PendingTransfers))
	for id, t := range s.PendingTransfers {
		pending = append(pending, PendingTransferResponse{
			TransferID:    id,
			DestinationID: t.DestinationID,
			Amount:        t.Amount,
		})
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].TransferID < pending[j].TransferID })

	return &AccountResponse{
		ID:               s.ID,
		CreditBalance:    s.CreditBalance,
		Version:          s.Version,
		PendingTransfers: pending,
	}
}

// EventResponse is one entry of an account's history.
type EventResponse struct {
	Version int64        `json:"version"`
	Type    string       `json:"type"`
	Data    domain.Event `json:"data"`
}

// EventsFromDomain converts an ordered event stream to responses.
func EventsFromDomain(events []domain.Event) []EventResponse {
	result := make([]EventResponse, len(events))
	for i, e := range events {
		result[i] = EventResponse{Version: int64(i + 1), Type: e.EventType(), Data: e}
	}
	return result
}

// BalanceResponse is the projected balance of an account.
type BalanceResponse struct {
	AccountID string `json:"account_id"`
	Balance   int64  `json:"balance"`
	Version   int64  `json:"version"`
}

// BalanceFromDomain converts a read-model balance to a response.
func BalanceFromDomain(b domain.AccountBalance) *BalanceResponse {
	return &BalanceResponse{AccountID: b.AccountID, Balance: b.Balance, Version: b.Version}
}

// TransferAcceptedResponse acknowledges a transfer request.
type TransferAcceptedResponse struct {
	TransferID string `json:"transfer_id"`
	Status     string `json:"status"`
}

// ReconciliationResponse reports projection drift for an account.
type ReconciliationResponse struct {
	AccountID        string    `json:"account_id"`
	RecordedBalance  int64     `json:"recorded_balance"`
	RecordedVersion  int64     `json:"recorded_version"`
	ProjectedBalance int64     `json:"projected_balance"`
	ProjectedVersion int64     `json:"projected_version"`
	Difference       int64     `json:"difference"`
	IsReconciled     bool      `json:"is_reconciled"`
	Repaired         bool      `json:"repaired"`
	LastChecked      time.Time `json:"last_checked"`
}

// ReconciliationFromUseCase converts a reconciliation result to a response.
func ReconciliationFromUseCase(r *usecase.ReconciliationResult) *ReconciliationResponse {
	return &ReconciliationResponse{
		AccountID:        r.AccountID,
		RecordedBalance:  r.RecordedBalance,
		RecordedVersion:  r.RecordedVersion,
		ProjectedBalance: r.ProjectedBalance,
		ProjectedVersion: r.ProjectedVersion,
		Difference:       r.Difference,
		IsReconciled:     r.IsReconciled,
		Repaired:         r.Repaired,
		LastChecked:      r.LastChecked,
	}
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
