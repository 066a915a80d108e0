package handlers

import (
	"github.com/chris/mutual-credit-ledger/pkg/api"
	"github.com/chris/mutual-credit-ledger/pkg/handlers/ledger"
	"github.com/chris/mutual-credit-ledger/pkg/handlers/offers"
)

// ApiHandler implements the generated server interface.
// It composes the specialized handlers for each resource.
type ApiHandler struct {
	*offers.OffersHandler
	*ledger.LedgerHandler
}

// NewApiHandler creates a new ApiHandler with all its dependencies.
func NewApiHandler(offerService offers.OfferService, ledgerService ledger.LedgerService) *ApiHandler {
	return &ApiHandler{
		OffersHandler: offers.NewOffersHandler(offerService),
		LedgerHandler: ledger.NewLedgerHandler(ledgerService),
	}
}

// Make sure we conform to the interface
var _ api.ServerInterface = (*ApiHandler)(nil)
