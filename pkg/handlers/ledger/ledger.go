package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/chris/mutual-credit-ledger/pkg/api"
	"github.com/chris/mutual-credit-ledger/pkg/mapping"
	"github.com/chris/mutual-credit-ledger/pkg/models"
	"github.com/shopspring/decimal"
)

// LedgerService reads the local agent's own chain.
type LedgerService interface {
	Self() models.AgentID
	QueryMyTransactions(ctx context.Context) ([]models.Transaction, error)
	QueryMyBalance(ctx context.Context) (decimal.Decimal, error)
}

// LedgerHandler holds the dependencies for ledger-related handlers.
type LedgerHandler struct {
	Service LedgerService
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(service LedgerService) *LedgerHandler {
	return &LedgerHandler{Service: service}
}

func (h *LedgerHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	domainTxs, err := h.Service.QueryMyTransactions(r.Context())
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to retrieve transactions: %v", err), http.StatusInternalServerError)
		return
	}

	apiTxs := make([]*api.Transaction, len(domainTxs))
	for i := range domainTxs {
		apiTxs[i] = mapping.ToApiTransaction(&domainTxs[i])
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(apiTxs); err != nil {
		http.Error(w, fmt.Sprintf("Failed to write response: %v", err), http.StatusInternalServerError)
	}
}

func (h *LedgerHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.Service.QueryMyBalance(r.Context())
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to compute balance: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(mapping.ToApiBalance(h.Service.Self(), balance)); err != nil {
		http.Error(w, fmt.Sprintf("Failed to write response: %v", err), http.StatusInternalServerError)
	}
}
