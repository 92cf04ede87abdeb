package domain

// AccountBalance is the read-model view of an account's credit.
type AccountBalance struct {
	AccountID string `json:"account_id"`
	Balance   int64  `json:"balance"`
	Version   int64  `json:"version"`
}

// Balance returns the read-model view of the account's current state.
func (a *Account) Balance() AccountBalance {
	return AccountBalance{AccountID: a.id, Balance: a.creditBalance, Version: a.version}
}
