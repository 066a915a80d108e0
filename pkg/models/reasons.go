package models

import "fmt"

// ReasonKind classifies why a chain was found invalid.
type ReasonKind string

const (
	// ReasonAwaitingPropagation means the chain is missing a transaction known to exist.
	// The caller should wait and retry.
	ReasonAwaitingPropagation ReasonKind = "AWAITING_PROPAGATION"

	ReasonHeaderMismatch       ReasonKind = "HEADER_MISMATCH"
	ReasonEntryMismatch        ReasonKind = "ENTRY_MISMATCH"
	ReasonForeignAuthor        ReasonKind = "FOREIGN_AUTHOR"
	ReasonBadSignature         ReasonKind = "BAD_SIGNATURE"
	ReasonNonPositiveAmount    ReasonKind = "NON_POSITIVE_AMOUNT"
	ReasonSelfTransaction      ReasonKind = "SELF_TRANSACTION"
	ReasonNotParty             ReasonKind = "NOT_PARTY"
	ReasonDuplicateHeader      ReasonKind = "DUPLICATE_HEADER"
	ReasonDuplicateTransaction ReasonKind = "DUPLICATE_TRANSACTION"
	ReasonFork                 ReasonKind = "FORK"
	ReasonGap                  ReasonKind = "GAP"
	ReasonOverLimit            ReasonKind = "OVER_LIMIT"

	// ReasonAttestationMismatch means the chain lacks an entry its counterparty attested to.
	// Either the entry has not propagated yet or the chain was served without it, so it
	// is retried like ReasonAwaitingPropagation but never accepted while it lasts.
	ReasonAttestationMismatch ReasonKind = "ATTESTATION_MISMATCH"
)

// InvalidReason describes the first violation found in a chain.
type InvalidReason struct {
	Kind   ReasonKind `json:"kind"`
	Detail string     `json:"detail"`
}

// NewInvalidReason builds an InvalidReason with a formatted detail message.
func NewInvalidReason(kind ReasonKind, format string, args ...any) *InvalidReason {
	return &InvalidReason{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// Retryable reports whether the condition may clear on its own.
func (r *InvalidReason) Retryable() bool {
	return r != nil && (r.Kind == ReasonAwaitingPropagation || r.Kind == ReasonAttestationMismatch)
}

func (r *InvalidReason) Error() string {
	return fmt.Sprintf("invalid chain (%s): %s", r.Kind, r.Detail)
}
