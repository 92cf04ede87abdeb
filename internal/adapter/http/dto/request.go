package dto

import (
	"errors"

	"github.com/iho/esledger/internal/usecase"
)

var (
	errMissingID          = errors.New("id is required")
	errMissingAmount      = errors.New("amount is required")
	errMissingDestination = errors.New("destination_id is required")
)

// RegisterAccountRequest represents a request to open an account.
type RegisterAccountRequest struct {
	ID string `json:"id"`
}

// Validate checks the request shape.
func (r *RegisterAccountRequest) Validate() error {
	if r.ID == "" {
		return errMissingID
	}
	return nil
}

// AmountRequest carries the amount of a credit provision or withdrawal.
type AmountRequest struct {
	Amount *int64 `json:"amount"`
}

// Validate checks the request shape. Business limits are enforced by the
// account itself.
func (r *AmountRequest) Validate() error {
	if r.Amount == nil {
		return errMissingAmount
	}
	return nil
}

// ToProvisionInput converts to use case input.
func (r *AmountRequest) ToProvisionInput(accountID string) usecase.ProvisionCreditInput {
	return usecase.ProvisionCreditInput{AccountID: accountID, Amount: *r.Amount}
}

// ToWithdrawInput converts to use case input.
func (r *AmountRequest) ToWithdrawInput(accountID string) usecase.WithdrawCreditInput {
	return usecase.WithdrawCreditInput{AccountID: accountID, Amount: *r.Amount}
}

// RequestTransferRequest represents a request to move credit to another account.
type RequestTransferRequest struct {
	DestinationID string `json:"destination_id"`
	Amount        *int64 `json:"amount"`
}

// Validate checks the request shape.
func (r *RequestTransferRequest) Validate() error {
	if r.DestinationID == "" {
		return errMissingDestination
	}
	if r.Amount == nil {
		return errMissingAmount
	}
	return nil
}

// ToUseCaseInput converts to use case input.
func (r *RequestTransferRequest) ToUseCaseInput(originID string) usecase.RequestTransferInput {
	return usecase.RequestTransferInput{
		OriginID:      originID,
		DestinationID: r.DestinationID,
		Amount:        *r.Amount,
	}
}
