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

// TransferStatusPending is reported for a transfer accepted by its origin.
// Settlement happens asynchronously.
const TransferStatusPending = "pending"

// TransferService defines the behavior needed by TransferHandler.
type TransferService interface {
	RequestTransfer(ctx context.Context, input usecase.RequestTransferInput) (string, error)
	CancelTransfer(ctx context.Context, accountID, transferID string) (domain.Snapshot, error)
}

// TransferHandler handles transfer-related HTTP requests.
type TransferHandler struct {
	transferUC TransferService
}

// NewTransferHandler creates a new TransferHandler.
func NewTransferHandler(transferUC TransferService) *TransferHandler {
	return &TransferHandler{transferUC: transferUC}
}

// Request reserves credit on the origin account and starts a transfer.
func (h *TransferHandler) Request(w http.ResponseWriter, r *http.Request) {
	originID := chi.URLParam(r, "id")

	var req dto.RequestTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	transferID, err := h.transferUC.RequestTransfer(r.Context(), req.ToUseCaseInput(originID))
	if err != nil {
		writeError(w, mapDomainError(err), "failed to request transfer", err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, dto.TransferAcceptedResponse{
		TransferID: transferID,
		Status:     TransferStatusPending,
	})
}

// Cancel refunds a transfer that is still pending on its origin account.
func (h *TransferHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")
	transferID := chi.URLParam(r, "transferID")
	if transferID == "" {
		writeError(w, http.StatusBadRequest, "missing transfer ID", "")
		return
	}

	snap, err := h.transferUC.CancelTransfer(r.Context(), accountID, transferID)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to cancel transfer", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.AccountFromDomain(snap))
}
