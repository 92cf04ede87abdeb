package dto

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/iho/esledger/internal/domain"
	"github.com/iho/esledger/internal/usecase"
)

func TestAccountFromDomain(t *testing.T) {
	snap := domain.Snapshot{
		ID:            "acc-1",
		CreditBalance: 4,
		Version:       3,
		PendingTransfers: map[string]domain.TransferRequested{
			"t2": {AccountID: "acc-1", TransferID: "t2", DestinationID: "c", Amount: 1},
			"t1": {AccountID: "acc-1", TransferID: "t1", DestinationID: "b", Amount: 2},
		},
	}

	resp := AccountFromDomain(snap)
	if resp.ID != "acc-1" || resp.CreditBalance != 4 || resp.Version != 3 {
		t.Fatalf("unexpected account response: %+v", resp)
	}
	if len(resp.PendingTransfers) != 2 {
		t.Fatalf("expected 2 pending transfers, got %d", len(resp.PendingTransfers))
	}
	if resp.PendingTransfers[0].TransferID != "t1" || resp.PendingTransfers[1].TransferID != "t2" {
		t.Fatalf("pending transfers not sorted: %+v", resp.PendingTransfers)
	}
}

func TestAccountFromDomain_NoPendingEncodesEmptyList(t *testing.T) {
	body, err := json.Marshal(AccountFromDomain(domain.Snapshot{ID: "acc-1", Version: 1}))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	want := `{"id":"acc-1","credit_balance":0,"version":1,"pending_transfers":[]}`
	if string(body) != want {
		t.Fatalf("got %s, want %s", body, want)
	}
}

func TestEventsFromDomain(t *testing.T) {
	events := []domain.Event{
		domain.AccountRegistered{AccountID: "a"},
		domain.CreditProvisioned{AccountID: "a", Amount: 5, NewBalance: 5},
	}

	resp := EventsFromDomain(events)
	if len(resp) != 2 {
		t.Fatalf("expected 2 events, got %d", len(resp))
	}
	if resp[0].Version != 1 || resp[0].Type != domain.EventTypeAccountRegistered {
		t.Fatalf("unexpected first event: %+v", resp[0])
	}
	if resp[1].Version != 2 || resp[1].Type != domain.EventTypeCreditProvisioned {
		t.Fatalf("unexpected second event: %+v", resp[1])
	}
}

func TestReconciliationFromUseCase(t *testing.T) {
	now := time.Now()
	resp := ReconciliationFromUseCase(&usecase.ReconciliationResult{
		AccountID:        "a",
		RecordedBalance:  5,
		RecordedVersion:  2,
		ProjectedBalance: 3,
		ProjectedVersion: 1,
		Difference:       2,
		LastChecked:      now,
	})
	if resp.AccountID != "a" || resp.Difference != 2 || resp.IsReconciled || !resp.LastChecked.Equal(now) {
		t.Fatalf("unexpected reconciliation response: %+v", resp)
	}
}

func TestBalanceFromDomain(t *testing.T) {
	resp := BalanceFromDomain(domain.AccountBalance{AccountID: "a", Balance: 9, Version: 4})
	if *resp != (BalanceResponse{AccountID: "a", Balance: 9, Version: 4}) {
		t.Fatalf("unexpected balance response: %+v", resp)
	}
}
