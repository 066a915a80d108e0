package offers

import (
	"errors"
	"fmt"

	"github.com/chris/mutual-credit-ledger/pkg/models"
)

var (
	// ErrInvalidAmount is returned when an offer amount is not positive.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrInvalidCounterparty is returned when the creditor is the caller or not a valid agent id.
	ErrInvalidCounterparty = errors.New("invalid counterparty")

	// ErrOfferNotFound is returned when the offer does not exist, or no longer accepts snapshots.
	ErrOfferNotFound = errors.New("offer not found")

	// ErrNotPending is returned when an operation targets an offer in a state that does not allow it.
	ErrNotPending = errors.New("offer is not pending")

	// ErrNotCounterparty is returned when the caller is not the party the operation belongs to.
	ErrNotCounterparty = errors.New("caller is not a party allowed to do this")

	// ErrNotCreditor is returned when someone other than the creditor tries to accept an offer.
	ErrNotCreditor = errors.New("only the creditor can accept an offer")

	// ErrCounterpartyOffline is returned when the counterparty could not be reached. Retry later.
	ErrCounterpartyOffline = errors.New("counterparty offline")

	// ErrCounterpartyNotConsented is returned when the counterparty has not consented yet. Poll, do not retry blindly.
	ErrCounterpartyNotConsented = errors.New("counterparty has not consented")

	// ErrCreditLimitExceeded is returned when committing would take the debtor beyond its credit limit.
	ErrCreditLimitExceeded = errors.New("credit limit exceeded")

	// ErrStaleHeaderConflict is returned when the approved header is no longer the counterparty's head.
	// Fetch a new snapshot and retry.
	ErrStaleHeaderConflict = errors.New("stale header")

	// ErrUnverifiedEntry is returned when a counterparty hands over a chain entry that does not verify.
	ErrUnverifiedEntry = errors.New("counterparty entry does not verify")
)

// ChainInvalidError is returned when the counterparty's chain failed validation.
type ChainInvalidError struct {
	Reason *models.InvalidReason
}

func (e *ChainInvalidError) Error() string {
	return fmt.Sprintf("counterparty chain invalid: %s", e.Reason.Detail)
}

// Retryable reports whether the chain may become valid without user action.
func (e *ChainInvalidError) Retryable() bool {
	return e.Reason.Retryable()
}

func notPending(offer *models.Offer) error {
	return fmt.Errorf("%w: offer %s is %s", ErrNotPending, offer.Id, offer.State)
}
