package offers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/chris/mutual-credit-ledger/pkg/api"
	"github.com/chris/mutual-credit-ledger/pkg/mapping"
	"github.com/chris/mutual-credit-ledger/pkg/models"
	offersvc "github.com/chris/mutual-credit-ledger/pkg/offers"
	"github.com/shopspring/decimal"
)

// OfferService is the part of the offer service the HTTP surface drives.
type OfferService interface {
	CreateOffer(ctx context.Context, creditor models.AgentID, amount decimal.Decimal, timestamp time.Time) (string, error)
	ConsentForOffer(ctx context.Context, offerID string) (string, error)
	CancelOffer(ctx context.Context, offerID string) (string, error)
	GetCounterpartySnapshot(ctx context.Context, offerID string) (*models.CounterpartySnapshot, error)
	AwaitSnapshot(ctx context.Context, offerID string, backoff offersvc.Backoff) (*models.CounterpartySnapshot, error)
	AcceptOffer(ctx context.Context, offerID, approvedHeader string) (string, error)
	QueryOffer(ctx context.Context, offerID string) (*models.Offer, error)
	QueryMyOffers(ctx context.Context) ([]models.Offer, error)
}

// Make sure we conform to the interface
var _ OfferService = (*offersvc.Service)(nil)

// OffersHandler holds the dependencies for offer-related handlers.
type OffersHandler struct {
	Service OfferService
	Backoff offersvc.Backoff
}

// NewOffersHandler creates a new OffersHandler.
func NewOffersHandler(service OfferService) *OffersHandler {
	return &OffersHandler{Service: service, Backoff: offersvc.DefaultBackoff()}
}

// StatusFor maps an offer service error to an HTTP status code.
func StatusFor(err error) int {
	var invalid *offersvc.ChainInvalidError
	switch {
	case errors.Is(err, offersvc.ErrInvalidAmount), errors.Is(err, offersvc.ErrInvalidCounterparty):
		return http.StatusBadRequest
	case errors.Is(err, offersvc.ErrNotCounterparty), errors.Is(err, offersvc.ErrNotCreditor):
		return http.StatusForbidden
	case errors.Is(err, offersvc.ErrOfferNotFound):
		return http.StatusNotFound
	case errors.Is(err, offersvc.ErrNotPending), errors.Is(err, offersvc.ErrStaleHeaderConflict):
		return http.StatusConflict
	case errors.Is(err, offersvc.ErrCreditLimitExceeded), errors.Is(err, offersvc.ErrUnverifiedEntry), errors.As(err, &invalid):
		return http.StatusUnprocessableEntity
	case errors.Is(err, offersvc.ErrCounterpartyOffline), errors.Is(err, offersvc.ErrCounterpartyNotConsented):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "offer request failed", "op", op, "error", err)
		http.Error(w, fmt.Sprintf("Failed to %s: %v", op, err), status)
		return
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, fmt.Sprintf("Failed to write response: %v", err), http.StatusInternalServerError)
	}
}

// ListOffers returns every offer in the local agent's view.
func (h *OffersHandler) ListOffers(w http.ResponseWriter, r *http.Request) {
	domainOffers, err := h.Service.QueryMyOffers(r.Context())
	if err != nil {
		writeError(w, r, "list offers", err)
		return
	}

	apiOffers := make([]*api.Offer, len(domainOffers))
	for i := range domainOffers {
		apiOffers[i] = mapping.ToApiOffer(&domainOffers[i])
	}
	writeJSON(w, http.StatusOK, apiOffers)
}

// CreateOffer proposes a new offer with the local agent as debtor.
func (h *OffersHandler) CreateOffer(w http.ResponseWriter, r *http.Request) {
	var newOffer api.NewOffer
	if err := json.NewDecoder(r.Body).Decode(&newOffer); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	req, err := mapping.ToDomainNewOffer(&newOffer)
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	offerID, err := h.Service.CreateOffer(r.Context(), req.Creditor, req.Amount, req.Timestamp)
	if err != nil {
		writeError(w, r, "create offer", err)
		return
	}
	writeJSON(w, http.StatusCreated, api.OfferResult{OfferId: offerID})
}

// GetOfferById returns one offer.
func (h *OffersHandler) GetOfferById(w http.ResponseWriter, r *http.Request, offerId string) {
	offer, err := h.Service.QueryOffer(r.Context(), offerId)
	if err != nil {
		writeError(w, r, "retrieve offer", err)
		return
	}
	writeJSON(w, http.StatusOK, mapping.ToApiOffer(offer))
}

// ConsentForOffer records the creditor's consent to reveal its chain.
func (h *OffersHandler) ConsentForOffer(w http.ResponseWriter, r *http.Request, offerId string) {
	id, err := h.Service.ConsentForOffer(r.Context(), offerId)
	if err != nil {
		writeError(w, r, "consent to offer", err)
		return
	}
	writeJSON(w, http.StatusOK, api.OfferResult{OfferId: id})
}

// CancelOffer cancels a non-terminal offer.
func (h *OffersHandler) CancelOffer(w http.ResponseWriter, r *http.Request, offerId string) {
	id, err := h.Service.CancelOffer(r.Context(), offerId)
	if err != nil {
		writeError(w, r, "cancel offer", err)
		return
	}
	writeJSON(w, http.StatusOK, api.OfferResult{OfferId: id})
}

// GetCounterpartySnapshot returns the counterparty's state. With wait=true it polls until the
// result no longer depends on the counterparty coming online, consenting or propagating.
func (h *OffersHandler) GetCounterpartySnapshot(w http.ResponseWriter, r *http.Request, offerId string, params api.GetCounterpartySnapshotParams) {
	var (
		snap *models.CounterpartySnapshot
		err  error
	)
	if params.Wait != nil && *params.Wait {
		snap, err = h.Service.AwaitSnapshot(r.Context(), offerId, h.Backoff)
	} else {
		snap, err = h.Service.GetCounterpartySnapshot(r.Context(), offerId)
	}
	if err != nil {
		writeError(w, r, "compute snapshot", err)
		return
	}
	writeJSON(w, http.StatusOK, mapping.ToApiSnapshot(snap))
}

// AcceptOffer commits a pending offer against the header the caller saw in its last snapshot.
func (h *OffersHandler) AcceptOffer(w http.ResponseWriter, r *http.Request, offerId string) {
	var body api.AcceptRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	id, err := h.Service.AcceptOffer(r.Context(), offerId, body.ApprovedHeader)
	if err != nil {
		writeError(w, r, "accept offer", err)
		return
	}
	writeJSON(w, http.StatusOK, api.OfferResult{OfferId: id})
}
