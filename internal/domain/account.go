package domain

import (
	"context"
	"fmt"
	"maps"

	"github.com/oklog/ulid/v2"
)

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

type ulidGenerator struct{}

func (ulidGenerator) Generate() string { return ulid.Make().String() }

// Account is the event-sourced account aggregate. Its state only changes by
// folding committed events; the store holds the durable copy.
type Account struct {
	store EventStore
	idGen IDGenerator

	id               string
	creditBalance    int64
	version          int64
	pendingTransfers map[string]TransferRequested
}

// AccountOption configures an Account.
type AccountOption func(*Account)

// WithIDGenerator sets the generator used for transfer ids.
func WithIDGenerator(g IDGenerator) AccountOption {
	return func(a *Account) {
		if g != nil {
			a.idGen = g
		}
	}
}

func newAccount(store EventStore, opts ...AccountOption) *Account {
	a := &Account{
		store:            store,
		idGen:            ulidGenerator{},
		pendingTransfers: make(map[string]TransferRequested),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// RegisterAccount creates a new account with the given id. It returns
// ErrConflict if the id already has committed events.
func RegisterAccount(ctx context.Context, store EventStore, id string, opts ...AccountOption) (*Account, error) {
	a := newAccount(store, opts...)
	if err := a.register(ctx, id); err != nil {
		return nil, err
	}
	return a, nil
}

// LoadAccount rebuilds an account by folding its full event stream.
func LoadAccount(ctx context.Context, store EventStore, id string, opts ...AccountOption) (*Account, error) {
	events, err := store.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load account %s: %w", id, err)
	}
	if len(events) == 0 {
		return nil, ErrAccountNotFound
	}

	a := newAccount(store, opts...)
	for _, e := range events {
		a.apply(e)
	}
	return a, nil
}

// ID returns the account id.
func (a *Account) ID() string { return a.id }

// CreditBalance returns the current balance.
func (a *Account) CreditBalance() int64 { return a.creditBalance }

// Version returns the number of events folded into this instance.
func (a *Account) Version() int64 { return a.version }

// PendingTransfer returns the outstanding request for a transfer id.
func (a *Account) PendingTransfer(transferID string) (TransferRequested, bool) {
	t, ok := a.pendingTransfers[transferID]
	return t, ok
}

// Snapshot returns a copy of the account state.
func (a *Account) Snapshot() Snapshot {
	return Snapshot{
		ID:               a.id,
		CreditBalance:    a.creditBalance,
		Version:          a.version,
		PendingTransfers: maps.Clone(a.pendingTransfers),
	}
}

func (a *Account) register(ctx context.Context, id string) error {
	if a.id != "" {
		return invalidCommand(ErrAlreadyRegistered)
	}
	if id == "" {
		return invalidCommand(ErrMissingAccountID)
	}
	return a.commit(ctx, id, AccountRegistered{AccountID: id})
}

// ProvisionCredit adds credit to the account.
func (a *Account) ProvisionCredit(ctx context.Context, amount int64) error {
	if amount < 0 {
		return invalidCommand(ErrInvalidAmount)
	}
	return a.commit(ctx, a.id, CreditProvisioned{
		AccountID:  a.id,
		Amount:     amount,
		NewBalance: a.creditBalance + amount,
	})
}

// WithdrawCredit removes credit from the account.
func (a *Account) WithdrawCredit(ctx context.Context, amount int64) error {
	if amount < 0 {
		return invalidCommand(ErrInvalidAmount)
	}
	if amount > a.creditBalance {
		return invalidCommand(ErrInsufficientCredit)
	}
	return a.commit(ctx, a.id, CreditWithdrawn{
		AccountID:  a.id,
		Amount:     amount,
		NewBalance: a.creditBalance - amount,
	})
}

// RequestTransfer reserves amount for a transfer to destinationID and
// returns the generated transfer id.
func (a *Account) RequestTransfer(ctx context.Context, destinationID string, amount int64) (string, error) {
	switch {
	case destinationID == "":
		return "", invalidCommand(ErrMissingTransferTarget)
	case destinationID == a.id:
		return "", invalidCommand(ErrSameAccount)
	case amount < 0:
		return "", invalidCommand(ErrInvalidAmount)
	case amount > a.creditBalance:
		return "", invalidCommand(ErrInsufficientCredit)
	}

	transferID := a.idGen.Generate()
	err := a.commit(ctx, a.id, TransferRequested{
		AccountID:     a.id,
		TransferID:    transferID,
		DestinationID: destinationID,
		Amount:        amount,
		NewBalance:    a.creditBalance - amount,
	})
	if err != nil {
		return "", err
	}
	return transferID, nil
}

// ReceiveTransfer credits an incoming transfer. Receiving the same transfer
// twice credits it twice.
func (a *Account) ReceiveTransfer(ctx context.Context, originID, transferID string, amount int64) error {
	if amount < 0 {
		return invalidCommand(ErrInvalidAmount)
	}
	return a.commit(ctx, a.id, TransferReceived{
		AccountID:  a.id,
		TransferID: transferID,
		OriginID:   originID,
		Amount:     amount,
		NewBalance: a.creditBalance + amount,
	})
}

// CompleteTransfer settles a pending transfer.
func (a *Account) CompleteTransfer(ctx context.Context, transferID string) error {
	pending, ok := a.pendingTransfers[transferID]
	if !ok {
		return invalidCommand(fmt.Errorf("%w: %s", ErrTransferNotPending, transferID))
	}
	return a.commit(ctx, a.id, TransferCompleted{
		AccountID:     a.id,
		TransferID:    transferID,
		DestinationID: pending.DestinationID,
	})
}

// CancelTransfer drops a pending transfer and refunds the reserved amount.
func (a *Account) CancelTransfer(ctx context.Context, transferID string) error {
	pending, ok := a.pendingTransfers[transferID]
	if !ok {
		return invalidCommand(fmt.Errorf("%w: %s", ErrTransferNotPending, transferID))
	}
	return a.commit(ctx, a.id, TransferCanceled{
		AccountID:     a.id,
		TransferID:    transferID,
		DestinationID: pending.DestinationID,
		Amount:        pending.Amount,
		NewBalance:    a.creditBalance + pending.Amount,
	})
}

// commit saves e at the current version and folds whatever the store
// committed.
func (a *Account) commit(ctx context.Context, aggregateID string, e Event) error {
	committed, err := a.store.Save(ctx, aggregateID, a.version, e)
	if err != nil {
		return err
	}
	for _, c := range committed {
		a.apply(c)
	}
	return nil
}

func (a *Account) apply(e Event) {
	e.ApplyOn(evolution{a: a})
}

// evolution folds events into an Account. It is the only code that mutates
// account state.
type evolution struct {
	a *Account
}

func (ev evolution) OnAccountRegistered(e AccountRegistered) {
	ev.a.id = e.AccountID
	ev.a.version++
}

func (ev evolution) OnCreditProvisioned(e CreditProvisioned) {
	ev.a.creditBalance = e.NewBalance
	ev.a.version++
}

func (ev evolution) OnCreditWithdrawn(e CreditWithdrawn) {
	ev.a.creditBalance = e.NewBalance
	ev.a.version++
}

func (ev evolution) OnTransferRequested(e TransferRequested) {
	ev.a.creditBalance = e.NewBalance
	ev.a.pendingTransfers[e.TransferID] = e
	ev.a.version++
}

func (ev evolution) OnTransferReceived(e TransferReceived) {
	ev.a.creditBalance = e.NewBalance
	ev.a.version++
}

func (ev evolution) OnTransferCompleted(e TransferCompleted) {
	delete(ev.a.pendingTransfers, e.TransferID)
	ev.a.version++
}

func (ev evolution) OnTransferCanceled(e TransferCanceled) {
	delete(ev.a.pendingTransfers, e.TransferID)
	ev.a.creditBalance = e.NewBalance
	ev.a.version++
}

// Snapshot is a value copy of an account's state.
type Snapshot struct {
	ID               string
	CreditBalance    int64
	Version          int64
	PendingTransfers map[string]TransferRequested
}

// Equal reports whether both snapshots describe the same state.
func (s Snapshot) Equal(o Snapshot) bool {
	return s.ID == o.ID &&
		s.CreditBalance == o.CreditBalance &&
		s.Version == o.Version &&
		maps.Equal(s.PendingTransfers, o.PendingTransfers)
}
