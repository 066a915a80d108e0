package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AgentID identifies a participant. It is the hex encoded ed25519 public key of the agent.
type AgentID string

// OfferState defines the possible states of an offer.
type OfferState string

const (
	RECEIVED  OfferState = "RECEIVED"
	PENDING   OfferState = "PENDING"
	CANCELED  OfferState = "CANCELED"
	APPROVED  OfferState = "APPROVED"
	COMPLETED OfferState = "COMPLETED"
)

// Valid reports whether s is one of the known offer states.
func (s OfferState) Valid() bool {
	switch s {
	case RECEIVED, PENDING, CANCELED, APPROVED, COMPLETED:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed out of s.
func (s OfferState) Terminal() bool {
	switch s {
	case CANCELED, COMPLETED:
		return true
	case RECEIVED, PENDING, APPROVED:
		return false
	}
	return false
}

// Transaction is the immutable record committed to both the debtor's and the creditor's chain.
// Both copies carry the same Id, which is how each chain cross-references the other.
type Transaction struct {
	Id        string          `json:"id"`
	Debtor    AgentID         `json:"debtor"`
	Creditor  AgentID         `json:"creditor"`
	Amount    decimal.Decimal `json:"amount"`
	Timestamp time.Time       `json:"timestamp"`
}

// Involves reports whether agent is the debtor or the creditor of the transaction.
func (t Transaction) Involves(agent AgentID) bool {
	return t.Debtor == agent || t.Creditor == agent
}

// Counterparty returns the other party of the transaction from the point of view of agent.
func (t Transaction) Counterparty(agent AgentID) AgentID {
	if t.Debtor == agent {
		return t.Creditor
	}
	return t.Debtor
}

// ChainHeader identifies one entry of an agent's chain.
// PreviousHeader is empty for the first entry of a chain.
type ChainHeader struct {
	Address        string    `json:"address"`
	EntryAddress   string    `json:"entry_address"`
	PreviousHeader string    `json:"previous_header,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// HeaderToken returns the optimistic concurrency token for a chain head.
// An empty chain is represented by the empty token.
func HeaderToken(h *ChainHeader) string {
	if h == nil {
		return ""
	}
	return h.Address
}

// ChainEntry is one signed, hash-linked entry of an agent's chain.
type ChainEntry struct {
	Author      AgentID     `json:"author"`
	Header      ChainHeader `json:"header"`
	Transaction Transaction `json:"transaction"`
	Signature   []byte      `json:"signature"`
}

// Attestation is a counterparty's signed statement that Subject's chain holds
// TransactionID at Header. EntrySignature is Subject's own signature of Header,
// so an attestation cannot claim an entry the subject never wrote.
type Attestation struct {
	Subject        AgentID `json:"subject"`
	Witness        AgentID `json:"witness"`
	TransactionID  string  `json:"transaction_id"`
	Header         string  `json:"header"`
	EntrySignature []byte  `json:"entry_signature"`
	Signature      []byte  `json:"signature"`
}

// Offer is one agent's local view of a proposed transaction.
// Proposer is always the debtor and Counterparty the creditor; Owner is the agent whose view this is.
type Offer struct {
	Id             string      `json:"id"`
	Owner          AgentID     `json:"owner"`
	Transaction    Transaction `json:"transaction"`
	State          OfferState  `json:"state"`
	Proposer       AgentID     `json:"proposer"`
	Counterparty   AgentID     `json:"counterparty"`
	ApprovedHeader string      `json:"approved_header,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// Other returns the participant of the offer that is not self.
func (o Offer) Other(self AgentID) AgentID {
	if o.Proposer == self {
		return o.Counterparty
	}
	return o.Proposer
}

// CounterpartySnapshot is the trust-qualified view of a counterparty for one pending offer.
// It is computed on demand and never persisted.
type CounterpartySnapshot struct {
	Online    bool           `json:"online"`
	Consented *bool          `json:"consented,omitempty"`
	Snapshot  *ChainSnapshot `json:"snapshot,omitempty"`
}

// ChainSnapshot is the validated state of the counterparty's chain at fetch time.
type ChainSnapshot struct {
	Executable    bool            `json:"executable"`
	Valid         bool            `json:"valid"`
	InvalidReason *InvalidReason  `json:"invalid_reason,omitempty"`
	Balance       decimal.Decimal `json:"balance"`
	LastHeader    *ChainHeader    `json:"last_header,omitempty"`
}

// Token returns the header token a caller must present to accept the offer.
func (s *ChainSnapshot) Token() string {
	return HeaderToken(s.LastHeader)
}
