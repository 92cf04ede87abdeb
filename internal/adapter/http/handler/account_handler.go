package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/esledger/internal/adapter/http/dto"
	"github.com/iho/esledger/internal/domain"
	"github.com/iho/esledger/internal/usecase"
)

// AccountService defines the behavior needed by AccountHandler.
type AccountService interface {
	RegisterAccount(ctx context.Context, id string) (domain.Snapshot, error)
	GetAccount(ctx context.Context, id string) (domain.Snapshot, error)
	ListEvents(ctx context.Context, id string) ([]domain.Event, error)
	ProvisionCredit(ctx context.Context, input usecase.ProvisionCreditInput) (domain.Snapshot, error)
	WithdrawCredit(ctx context.Context, input usecase.WithdrawCreditInput) (domain.Snapshot, error)
}

// AccountHandler handles account-related HTTP requests.
type AccountHandler struct {
	accountUC AccountService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accountUC AccountService) *AccountHandler {
	return &AccountHandler{accountUC: accountUC}
}

// Register opens a new account.
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	snap, err := h.accountUC.RegisterAccount(r.Context(), req.ID)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to register account", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, dto.AccountFromDomain(snap))
}

// Get retrieves an account by ID.
func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing account ID", "")
		return
	}

	snap, err := h.accountUC.GetAccount(r.Context(), id)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to get account", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.AccountFromDomain(snap))
}

// ListEvents returns the committed history of an account. The optional
// from_version query parameter skips earlier events.
func (h *AccountHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing account ID", "")
		return
	}

	events, err := h.accountUC.ListEvents(r.Context(), id)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to list events", err.Error())
		return
	}

	resp := dto.EventsFromDomain(events)
	from := parseIntQuery(r, "from_version", 1)
	if from < 1 {
		from = 1
	}
	if from > len(resp) {
		resp = resp[:0]
	} else {
		resp = resp[from-1:]
	}

	writeJSON(w, http.StatusOK, resp)
}

// Provision adds credit to an account.
func (h *AccountHandler) Provision(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	req, ok := decodeAmount(w, r)
	if !ok {
		return
	}

	snap, err := h.accountUC.ProvisionCredit(r.Context(), req.ToProvisionInput(id))
	if err != nil {
		writeError(w, mapDomainError(err), "failed to provision credit", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.AccountFromDomain(snap))
}

// Withdraw removes credit from an account.
func (h *AccountHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	req, ok := decodeAmount(w, r)
	if !ok {
		return
	}

	snap, err := h.accountUC.WithdrawCredit(r.Context(), req.ToWithdrawInput(id))
	if err != nil {
		writeError(w, mapDomainError(err), "failed to withdraw credit", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.AccountFromDomain(snap))
}

func decodeAmount(w http.ResponseWriter, r *http.Request) (dto.AmountRequest, bool) {
	var req dto.AmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return req, false
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", err.Error())
		return req, false
	}
	return req, true
}
