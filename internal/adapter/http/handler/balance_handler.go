package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/esledger/internal/adapter/http/dto"
	"github.com/iho/esledger/internal/domain"
	"github.com/iho/esledger/internal/usecase"
)

// BalanceService reads the projected balance.
type BalanceService interface {
	GetBalance(ctx context.Context, accountID string) (domain.AccountBalance, error)
}

// ReconciliationService compares the projection with the event store.
type ReconciliationService interface {
	ReconcileAccount(ctx context.Context, accountID string, repair bool) (*usecase.ReconciliationResult, error)
}

// BalanceHandler serves the balance read model.
type BalanceHandler struct {
	balances  BalanceService
	reconcile ReconciliationService
}

// NewBalanceHandler creates a new BalanceHandler.
func NewBalanceHandler(balances BalanceService, reconcile ReconciliationService) *BalanceHandler {
	return &BalanceHandler{balances: balances, reconcile: reconcile}
}

// Get returns the projected balance. It may trail the account by a few
// events while projections catch up.
func (h *BalanceHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	balance, err := h.balances.GetBalance(r.Context(), id)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to get balance", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.BalanceFromDomain(balance))
}

// Check reports drift between the projection and the event store.
func (h *BalanceHandler) Check(w http.ResponseWriter, r *http.Request) {
	h.reconcileAccount(w, r, false)
}

// Repair overwrites a drifted projection from the event store.
func (h *BalanceHandler) Repair(w http.ResponseWriter, r *http.Request) {
	h.reconcileAccount(w, r, true)
}

func (h *BalanceHandler) reconcileAccount(w http.ResponseWriter, r *http.Request, repair bool) {
	id := chi.URLParam(r, "id")

	result, err := h.reconcile.ReconcileAccount(r.Context(), id, repair)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to reconcile account", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.ReconciliationFromUseCase(result))
}
