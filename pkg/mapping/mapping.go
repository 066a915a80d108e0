package mapping

import (
	"fmt"
	"time"

	"github.com/chris/mutual-credit-ledger/pkg/api"
	"github.com/chris/mutual-credit-ledger/pkg/models"
	"github.com/shopspring/decimal"
)

// ToApiTransaction converts a domain Transaction model to an API Transaction model.
func ToApiTransaction(tx *models.Transaction) *api.Transaction {
	return &api.Transaction{
		Id:        tx.Id,
		Debtor:    string(tx.Debtor),
		Creditor:  string(tx.Creditor),
		Amount:    tx.Amount.String(),
		Timestamp: tx.Timestamp,
	}
}

// ToApiOffer converts a domain Offer model to an API Offer model.
func ToApiOffer(offer *models.Offer) *api.Offer {
	out := &api.Offer{
		Id:           offer.Id,
		Transaction:  *ToApiTransaction(&offer.Transaction),
		State:        api.OfferState(offer.State),
		Proposer:     string(offer.Proposer),
		Counterparty: string(offer.Counterparty),
		CreatedAt:    offer.CreatedAt,
		UpdatedAt:    offer.UpdatedAt,
	}
	if offer.ApprovedHeader != "" {
		header := offer.ApprovedHeader
		out.ApprovedHeader = &header
	}
	return out
}

// NewOfferRequest is a validated API NewOffer.
type NewOfferRequest struct {
	Creditor  models.AgentID
	Amount    decimal.Decimal
	Timestamp time.Time
}

// ToDomainNewOffer parses an API NewOffer. The amount sign is checked by the offer service.
func ToDomainNewOffer(newOffer *api.NewOffer) (*NewOfferRequest, error) {
	amount, err := decimal.NewFromString(newOffer.Amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", newOffer.Amount, err)
	}
	req := &NewOfferRequest{
		Creditor: models.AgentID(newOffer.Creditor),
		Amount:   amount,
	}
	if newOffer.Timestamp != nil {
		req.Timestamp = *newOffer.Timestamp
	}
	return req, nil
}

// ToApiChainHeader converts a domain ChainHeader model to an API ChainHeader model.
func ToApiChainHeader(h *models.ChainHeader) *api.ChainHeader {
	if h == nil {
		return nil
	}
	out := &api.ChainHeader{
		Address:      h.Address,
		EntryAddress: h.EntryAddress,
		Timestamp:    h.Timestamp,
	}
	if h.PreviousHeader != "" {
		prev := h.PreviousHeader
		out.PreviousHeader = &prev
	}
	return out
}

// ToApiSnapshot converts a CounterpartySnapshot. The chain snapshot carries the token to accept with,
// which is empty for a counterparty whose chain is empty.
func ToApiSnapshot(snap *models.CounterpartySnapshot) *api.CounterpartySnapshot {
	out := &api.CounterpartySnapshot{
		Online:    snap.Online,
		Consented: snap.Consented,
	}
	if snap.Snapshot == nil {
		return out
	}

	s := snap.Snapshot
	token := s.Token()
	out.Snapshot = &api.ChainSnapshot{
		Executable: s.Executable,
		Valid:      s.Valid,
		Balance:    s.Balance.String(),
		LastHeader: ToApiChainHeader(s.LastHeader),
		Token:      &token,
	}
	if s.InvalidReason != nil {
		out.Snapshot.InvalidReason = &api.InvalidReason{
			Kind:      string(s.InvalidReason.Kind),
			Detail:    s.InvalidReason.Detail,
			Retryable: s.InvalidReason.Retryable(),
		}
	}
	return out
}

// ToApiBalance converts an agent balance to an API Balance model.
func ToApiBalance(agent models.AgentID, balance decimal.Decimal) *api.Balance {
	return &api.Balance{
		AgentId: string(agent),
		Balance: balance.String(),
	}
}
