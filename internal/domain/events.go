package domain

// Event types
const (
	EventTypeAccountRegistered = "account.registered"
	EventTypeCreditProvisioned = "credit.provisioned"
	EventTypeCreditWithdrawn   = "credit.withdrawn"
	EventTypeTransferRequested = "transfer.requested"
	EventTypeTransferReceived  = "transfer.received"
	EventTypeTransferCompleted = "transfer.completed"
	EventTypeTransferCanceled  = "transfer.canceled"
)

// Event is an immutable fact about a single account.
// The set of events is closed: only this package can implement it.
type Event interface {
	AggregateID() string
	EventType() string
	// ApplyOn dispatches the event to the matching listener method.
	ApplyOn(l EventListener)

	sealed()
}

// EventListener has one method per event kind. Adding an event kind breaks
// every implementation until it handles the new kind.
type EventListener interface {
	OnAccountRegistered(e AccountRegistered)
	OnCreditProvisioned(e CreditProvisioned)
	OnCreditWithdrawn(e CreditWithdrawn)
	OnTransferRequested(e TransferRequested)
	OnTransferReceived(e TransferReceived)
	OnTransferCompleted(e TransferCompleted)
	OnTransferCanceled(e TransferCanceled)
}

// AccountRegistered payload
type AccountRegistered struct {
	AccountID string `json:"account_id"`
}

// CreditProvisioned payload
type CreditProvisioned struct {
	AccountID  string `json:"account_id"`
	Amount     int64  `json:"amount"`
	NewBalance int64  `json:"new_balance"`
}

// CreditWithdrawn payload
type CreditWithdrawn struct {
	AccountID  string `json:"account_id"`
	Amount     int64  `json:"amount"`
	NewBalance int64  `json:"new_balance"`
}

// TransferRequested is recorded on the origin account. The amount is
// reserved immediately.
type TransferRequested struct {
	AccountID     string `json:"account_id"`
	TransferID    string `json:"transfer_id"`
	DestinationID string `json:"destination_id"`
	Amount        int64  `json:"amount"`
	NewBalance    int64  `json:"new_balance"`
}

// TransferReceived is recorded on the destination account.
type TransferReceived struct {
	AccountID  string `json:"account_id"`
	TransferID string `json:"transfer_id"`
	OriginID   string `json:"origin_id"`
	Amount     int64  `json:"amount"`
	NewBalance int64  `json:"new_balance"`
}

// TransferCompleted is recorded on the origin account.
type TransferCompleted struct {
	AccountID     string `json:"account_id"`
	TransferID    string `json:"transfer_id"`
	DestinationID string `json:"destination_id"`
}

// TransferCanceled is recorded on the origin account and refunds the
// reserved amount.
type TransferCanceled struct {
	AccountID     string `json:"account_id"`
	TransferID    string `json:"transfer_id"`
	DestinationID string `json:"destination_id"`
	Amount        int64  `json:"amount"`
	NewBalance    int64  `json:"new_balance"`
}

func (e AccountRegistered) AggregateID() string { return e.AccountID }
func (e CreditProvisioned) AggregateID() string { return e.AccountID }
func (e CreditWithdrawn) AggregateID() string   { return e.AccountID }
func (e TransferRequested) AggregateID() string { return e.AccountID }
func (e TransferReceived) AggregateID() string  { return e.AccountID }
func (e TransferCompleted) AggregateID() string { return e.AccountID }
func (e TransferCanceled) AggregateID() string  { return e.AccountID }

func (AccountRegistered) EventType() string { return EventTypeAccountRegistered }
func (CreditProvisioned) EventType() string { return EventTypeCreditProvisioned }
func (CreditWithdrawn) EventType() string   { return EventTypeCreditWithdrawn }
func (TransferRequested) EventType() string { return EventTypeTransferRequested }
func (TransferReceived) EventType() string  { return EventTypeTransferReceived }
func (TransferCompleted) EventType() string { return EventTypeTransferCompleted }
func (TransferCanceled) EventType() string  { return EventTypeTransferCanceled }

func (e AccountRegistered) ApplyOn(l EventListener) { l.OnAccountRegistered(e) }
func (e CreditProvisioned) ApplyOn(l EventListener) { l.OnCreditProvisioned(e) }
func (e CreditWithdrawn) ApplyOn(l EventListener)   { l.OnCreditWithdrawn(e) }
func (e TransferRequested) ApplyOn(l EventListener) { l.OnTransferRequested(e) }
func (e TransferReceived) ApplyOn(l EventListener)  { l.OnTransferReceived(e) }
func (e TransferCompleted) ApplyOn(l EventListener) { l.OnTransferCompleted(e) }
func (e TransferCanceled) ApplyOn(l EventListener)  { l.OnTransferCanceled(e) }

func (AccountRegistered) sealed() {}
func (CreditProvisioned) sealed() {}
func (CreditWithdrawn) sealed()   {}
func (TransferRequested) sealed() {}
func (TransferReceived) sealed()  {}
func (TransferCompleted) sealed() {}
func (TransferCanceled) sealed()  {}
