// Package peer carries the offer protocol messages between agents' runtimes.
package peer

import (
	"context"
	"errors"
	"fmt"

	"github.com/chris/mutual-credit-ledger/pkg/models"
)

// ErrUnreachable is returned when the other runtime cannot be reached or does not answer in time.
var ErrUnreachable = errors.New("peer unreachable")

// RemoteError is an error reported by the other runtime.
type RemoteError struct {
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("peer rejected request (%d): %s", e.StatusCode, e.Message)
}

// OfferMessage proposes a transaction to its creditor.
type OfferMessage struct {
	Transaction models.Transaction `json:"transaction"`
}

// ConsentReply reports the other side's view of an offer.
// State is empty when the offer is unknown to the other side. A completed offer carries
// the header of the other side's entry and its signature.
type ConsentReply struct {
	State     models.OfferState   `json:"state,omitempty"`
	Header    *models.ChainHeader `json:"header,omitempty"`
	Signature []byte              `json:"signature,omitempty"`
}

// Consented reports whether the other side agreed to reveal its chain for the offer.
func (r *ConsentReply) Consented() bool {
	switch r.State {
	case models.PENDING, models.APPROVED, models.COMPLETED:
		return true
	}
	return false
}

// CommitRequest asks the debtor to commit the offer on top of ApprovedHeader.
type CommitRequest struct {
	OfferID        string `json:"offer_id"`
	ApprovedHeader string `json:"approved_header"`
}

// CommitStatus is the debtor's answer to a CommitRequest.
type CommitStatus string

const (
	CommitCommitted     CommitStatus = "COMMITTED"
	CommitStaleHeader   CommitStatus = "STALE_HEADER"
	CommitLimitExceeded CommitStatus = "LIMIT_EXCEEDED"
	CommitCanceled      CommitStatus = "CANCELED"
	CommitNotPending    CommitStatus = "NOT_PENDING"
)

// CommitReply carries the debtor's header and its signature when the commit succeeded.
type CommitReply struct {
	Status    CommitStatus        `json:"status"`
	Header    *models.ChainHeader `json:"header,omitempty"`
	Signature []byte              `json:"signature,omitempty"`
}

// AttestRequest hands the debtor the creditor's entry for a completed offer, so the debtor
// can attest to it.
type AttestRequest struct {
	OfferID   string             `json:"offer_id"`
	Header    models.ChainHeader `json:"header"`
	Signature []byte             `json:"signature"`
}

// Messenger sends protocol messages to other agents.
type Messenger interface {
	SendOffer(ctx context.Context, to models.AgentID, tx models.Transaction) error
	QueryConsent(ctx context.Context, to models.AgentID, offerID string) (*ConsentReply, error)
	SendCancel(ctx context.Context, to models.AgentID, offerID string) error
	RequestCommit(ctx context.Context, to models.AgentID, req CommitRequest) (*CommitReply, error)
	SendAttestation(ctx context.Context, to models.AgentID, req AttestRequest) error
}

// Handler receives protocol messages from other agents.
type Handler interface {
	ReceiveOffer(ctx context.Context, from models.AgentID, tx models.Transaction) error
	ConsentStatus(ctx context.Context, from models.AgentID, offerID string) (*ConsentReply, error)
	ReceiveCancel(ctx context.Context, from models.AgentID, offerID string) error
	CommitOffer(ctx context.Context, from models.AgentID, req CommitRequest) (*CommitReply, error)
	ReceiveAttestation(ctx context.Context, from models.AgentID, req AttestRequest) error
}

// ChainServer serves the local agent's own chain to other agents.
type ChainServer interface {
	ServeChain(ctx context.Context, since string) ([]models.ChainEntry, error)
}
