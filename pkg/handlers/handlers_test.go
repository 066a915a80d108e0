package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chris/mutual-credit-ledger/pkg/api"
	ledgermocks "github.com/chris/mutual-credit-ledger/pkg/handlers/ledger/mocks"
	offermocks "github.com/chris/mutual-credit-ledger/pkg/handlers/offers/mocks"
	"github.com/chris/mutual-credit-ledger/pkg/models"
	offersvc "github.com/chris/mutual-credit-ledger/pkg/offers"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newRouter(offerService *offermocks.OfferService, ledgerService *ledgermocks.LedgerService) http.Handler {
	return api.HandlerFromMux(NewApiHandler(offerService, ledgerService), chi.NewRouter())
}

func TestRouting(t *testing.T) {
	t.Run("Accept binds the offer id from the path", func(t *testing.T) {
		// Arrange
		offerService := new(offermocks.OfferService)
		ledgerService := new(ledgermocks.LedgerService)
		offerService.On("AcceptOffer", mock.Anything, "offer-42", "head").Return("offer-42", nil)

		body, _ := json.Marshal(api.AcceptRequest{ApprovedHeader: "head"})
		req := httptest.NewRequest(http.MethodPost, "/offers/offer-42/accept", bytes.NewReader(body))
		rr := httptest.NewRecorder()

		// Act
		newRouter(offerService, ledgerService).ServeHTTP(rr, req)

		// Assert
		assert.Equal(t, http.StatusOK, rr.Code)
		var result api.OfferResult
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
		assert.Equal(t, "offer-42", result.OfferId)
		offerService.AssertExpectations(t)
	})

	t.Run("Snapshot with wait uses the polling path", func(t *testing.T) {
		offerService := new(offermocks.OfferService)
		ledgerService := new(ledgermocks.LedgerService)
		offerService.On("AwaitSnapshot", mock.Anything, "offer-1", offersvc.DefaultBackoff()).
			Return(&models.CounterpartySnapshot{Online: false}, nil)

		req := httptest.NewRequest(http.MethodGet, "/offers/offer-1/snapshot?wait=true", nil)
		rr := httptest.NewRecorder()

		newRouter(offerService, ledgerService).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		offerService.AssertExpectations(t)
	})

	t.Run("Snapshot rejects a malformed wait flag", func(t *testing.T) {
		offerService := new(offermocks.OfferService)
		ledgerService := new(ledgermocks.LedgerService)

		req := httptest.NewRequest(http.MethodGet, "/offers/offer-1/snapshot?wait=maybe", nil)
		rr := httptest.NewRecorder()

		newRouter(offerService, ledgerService).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		offerService.AssertNotCalled(t, "GetCounterpartySnapshot", mock.Anything, mock.Anything)
		offerService.AssertNotCalled(t, "AwaitSnapshot", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Balance goes to the ledger handler", func(t *testing.T) {
		offerService := new(offermocks.OfferService)
		ledgerService := new(ledgermocks.LedgerService)
		ledgerService.On("QueryMyBalance", mock.Anything).Return(decimal.RequireFromString("7.25"), nil)
		ledgerService.On("Self").Return(models.AgentID("alice"))

		req := httptest.NewRequest(http.MethodGet, "/balance", nil)
		rr := httptest.NewRecorder()

		newRouter(offerService, ledgerService).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		var balance api.Balance
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &balance))
		assert.Equal(t, "7.25", balance.Balance)
		ledgerService.AssertExpectations(t)
	})

	t.Run("Unknown route", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/unknown", nil)
		rr := httptest.NewRecorder()

		newRouter(new(offermocks.OfferService), new(ledgermocks.LedgerService)).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}
