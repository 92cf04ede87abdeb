package domain

import "errors"

var (
	// Store errors
	ErrConflict         = errors.New("concurrent modification: expected version does not match stream")
	ErrAccountNotFound  = errors.New("account not found")
	ErrUnknownEventType = errors.New("unknown event type")

	// ErrInvalidCommand is the parent of every business rule violation below.
	ErrInvalidCommand = errors.New("invalid command")

	ErrMissingAccountID      = errors.New("account id is required")
	ErrAlreadyRegistered     = errors.New("account is already registered")
	ErrInvalidAmount         = errors.New("amount must not be negative")
	ErrInsufficientCredit    = errors.New("insufficient credit")
	ErrSameAccount           = errors.New("cannot transfer to same account")
	ErrTransferNotPending    = errors.New("transfer is not pending")
	ErrMissingTransferTarget = errors.New("transfer destination is required")
)

// invalidCommandError matches both ErrInvalidCommand and its reason.
type invalidCommandError struct {
	reason error
}

func (e *invalidCommandError) Error() string {
	return ErrInvalidCommand.Error() + ": " + e.reason.Error()
}

func (e *invalidCommandError) Unwrap() []error {
	return []error{ErrInvalidCommand, e.reason}
}

func invalidCommand(reason error) error {
	return &invalidCommandError{reason: reason}
}
