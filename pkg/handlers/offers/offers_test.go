package offers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/chris/mutual-credit-ledger/pkg/api"
	"github.com/chris/mutual-credit-ledger/pkg/handlers/offers"
	"github.com/chris/mutual-credit-ledger/pkg/handlers/offers/mocks"
	"github.com/chris/mutual-credit-ledger/pkg/models"
	offersvc "github.com/chris/mutual-credit-ledger/pkg/offers"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCreateOffer(t *testing.T) {
	newOffer := api.NewOffer{Creditor: "bob", Amount: "12.50"}

	t.Run("Success", func(t *testing.T) {
		// Arrange
		mockService := new(mocks.OfferService)
		mockService.On("CreateOffer", mock.Anything, models.AgentID("bob"), mock.MatchedBy(func(d decimal.Decimal) bool {
			return d.Equal(decimal.RequireFromString("12.5"))
		}), mock.Anything).Return("offer-1", nil)

		h := offers.NewOffersHandler(mockService)

		body, _ := json.Marshal(newOffer)
		req := httptest.NewRequest(http.MethodPost, "/offers", bytes.NewReader(body))
		rr := httptest.NewRecorder()

		// Act
		h.CreateOffer(rr, req)

		// Assert
		assert.Equal(t, http.StatusCreated, rr.Code)
		var result api.OfferResult
		json.Unmarshal(rr.Body.Bytes(), &result)
		assert.Equal(t, "offer-1", result.OfferId)
		mockService.AssertExpectations(t)
	})

	t.Run("Invalid Amount", func(t *testing.T) {
		mockService := new(mocks.OfferService)
		mockService.On("CreateOffer", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("", offersvc.ErrInvalidAmount)

		h := offers.NewOffersHandler(mockService)

		body, _ := json.Marshal(api.NewOffer{Creditor: "bob", Amount: "-1"})
		req := httptest.NewRequest(http.MethodPost, "/offers", bytes.NewReader(body))
		rr := httptest.NewRecorder()

		h.CreateOffer(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("Bad Request - Invalid JSON", func(t *testing.T) {
		mockService := new(mocks.OfferService)
		h := offers.NewOffersHandler(mockService)

		req := httptest.NewRequest(http.MethodPost, "/offers", strings.NewReader("not-json"))
		rr := httptest.NewRecorder()

		h.CreateOffer(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		// The service must not be called.
	})

	t.Run("Bad Request - Unparseable Amount", func(t *testing.T) {
		mockService := new(mocks.OfferService)
		h := offers.NewOffersHandler(mockService)

		body, _ := json.Marshal(api.NewOffer{Creditor: "bob", Amount: "lots"})
		req := httptest.NewRequest(http.MethodPost, "/offers", bytes.NewReader(body))
		rr := httptest.NewRecorder()

		h.CreateOffer(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockService.AssertNotCalled(t, "CreateOffer", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestAcceptOffer(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"Success", nil, http.StatusOK},
		{"Stale Header", fmt.Errorf("%w: moved", offersvc.ErrStaleHeaderConflict), http.StatusConflict},
		{"Not Creditor", offersvc.ErrNotCreditor, http.StatusForbidden},
		{"Limit Exceeded", offersvc.ErrCreditLimitExceeded, http.StatusUnprocessableEntity},
		{"Chain Invalid", &offersvc.ChainInvalidError{Reason: models.NewInvalidReason(models.ReasonFork, "two heads")}, http.StatusUnprocessableEntity},
		{"Offline", offersvc.ErrCounterpartyOffline, http.StatusServiceUnavailable},
		{"Not Found", offersvc.ErrOfferNotFound, http.StatusNotFound},
		{"Storage Failure", assert.AnError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(mocks.OfferService)
			id := "offer-1"
			if tt.err != nil {
				id = ""
			}
			mockService.On("AcceptOffer", mock.Anything, "offer-1", "h1").Once().Return(id, tt.err)

			h := offers.NewOffersHandler(mockService)

			body, _ := json.Marshal(api.AcceptRequest{ApprovedHeader: "h1"})
			req := httptest.NewRequest(http.MethodPost, "/offers/offer-1/accept", bytes.NewReader(body))
			rr := httptest.NewRecorder()

			h.AcceptOffer(rr, req, "offer-1")

			assert.Equal(t, tt.status, rr.Code)
			mockService.AssertExpectations(t)
		})
	}
}

func TestGetCounterpartySnapshot(t *testing.T) {
	yes := true
	snap := &models.CounterpartySnapshot{
		Online:    true,
		Consented: &yes,
		Snapshot: &models.ChainSnapshot{
			Executable: true,
			Valid:      true,
			Balance:    decimal.NewFromInt(20),
			LastHeader: &models.ChainHeader{Address: "head"},
		},
	}

	t.Run("Success", func(t *testing.T) {
		mockService := new(mocks.OfferService)
		mockService.On("GetCounterpartySnapshot", mock.Anything, "offer-1").Return(snap, nil)

		h := offers.NewOffersHandler(mockService)

		req := httptest.NewRequest(http.MethodGet, "/offers/offer-1/snapshot", nil)
		rr := httptest.NewRecorder()

		h.GetCounterpartySnapshot(rr, req, "offer-1", api.GetCounterpartySnapshotParams{})

		require.Equal(t, http.StatusOK, rr.Code)
		var out api.CounterpartySnapshot
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
		assert.True(t, out.Online)
		require.NotNil(t, out.Snapshot)
		assert.Equal(t, "head", *out.Snapshot.Token)
		assert.Equal(t, "20", out.Snapshot.Balance)
		mockService.AssertExpectations(t)
	})

	t.Run("Wait polls with the handler's backoff", func(t *testing.T) {
		mockService := new(mocks.OfferService)
		h := offers.NewOffersHandler(mockService)
		h.Backoff = offersvc.Backoff{MaxAttempts: 1}
		mockService.On("AwaitSnapshot", mock.Anything, "offer-1", h.Backoff).Return(&models.CounterpartySnapshot{Online: false}, nil)

		wait := true
		req := httptest.NewRequest(http.MethodGet, "/offers/offer-1/snapshot?wait=true", nil)
		rr := httptest.NewRecorder()

		h.GetCounterpartySnapshot(rr, req, "offer-1", api.GetCounterpartySnapshotParams{Wait: &wait})

		assert.Equal(t, http.StatusOK, rr.Code)
		mockService.AssertNotCalled(t, "GetCounterpartySnapshot", mock.Anything, mock.Anything)
		mockService.AssertExpectations(t)
	})

	t.Run("Terminal Offer", func(t *testing.T) {
		mockService := new(mocks.OfferService)
		mockService.On("GetCounterpartySnapshot", mock.Anything, "offer-1").Return(nil, offersvc.ErrOfferNotFound)

		h := offers.NewOffersHandler(mockService)

		req := httptest.NewRequest(http.MethodGet, "/offers/offer-1/snapshot", nil)
		rr := httptest.NewRecorder()

		h.GetCounterpartySnapshot(rr, req, "offer-1", api.GetCounterpartySnapshotParams{})

		assert.Equal(t, http.StatusNotFound, rr.Code)
		mockService.AssertExpectations(t)
	})
}

func TestConsentAndCancel(t *testing.T) {
	t.Run("Consent", func(t *testing.T) {
		mockService := new(mocks.OfferService)
		mockService.On("ConsentForOffer", mock.Anything, "offer-1").Return("offer-1", nil)

		h := offers.NewOffersHandler(mockService)
		rr := httptest.NewRecorder()
		h.ConsentForOffer(rr, httptest.NewRequest(http.MethodPost, "/offers/offer-1/consent", nil), "offer-1")

		assert.Equal(t, http.StatusOK, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("Consent by the debtor", func(t *testing.T) {
		mockService := new(mocks.OfferService)
		mockService.On("ConsentForOffer", mock.Anything, "offer-1").Return("", offersvc.ErrNotCounterparty)

		h := offers.NewOffersHandler(mockService)
		rr := httptest.NewRecorder()
		h.ConsentForOffer(rr, httptest.NewRequest(http.MethodPost, "/offers/offer-1/consent", nil), "offer-1")

		assert.Equal(t, http.StatusForbidden, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("Cancel completed offer", func(t *testing.T) {
		mockService := new(mocks.OfferService)
		mockService.On("CancelOffer", mock.Anything, "offer-1").Return("", fmt.Errorf("%w: offer offer-1 is COMPLETED", offersvc.ErrNotPending))

		h := offers.NewOffersHandler(mockService)
		rr := httptest.NewRecorder()
		h.CancelOffer(rr, httptest.NewRequest(http.MethodPost, "/offers/offer-1/cancel", nil), "offer-1")

		assert.Equal(t, http.StatusConflict, rr.Code)
		mockService.AssertExpectations(t)
	})
}

func TestListAndGetOffers(t *testing.T) {
	offer := models.Offer{
		Id:           "offer-1",
		Transaction:  models.Transaction{Id: "offer-1", Debtor: "alice", Creditor: "bob", Amount: decimal.NewFromInt(5)},
		State:        models.RECEIVED,
		Proposer:     "alice",
		Counterparty: "bob",
	}

	t.Run("List", func(t *testing.T) {
		mockService := new(mocks.OfferService)
		mockService.On("QueryMyOffers", mock.Anything).Return([]models.Offer{offer}, nil)

		h := offers.NewOffersHandler(mockService)
		rr := httptest.NewRecorder()
		h.ListOffers(rr, httptest.NewRequest(http.MethodGet, "/offers", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		var out []api.Offer
		json.Unmarshal(rr.Body.Bytes(), &out)
		require.Len(t, out, 1)
		assert.Equal(t, api.RECEIVED, out[0].State)
		mockService.AssertExpectations(t)
	})

	t.Run("Get", func(t *testing.T) {
		mockService := new(mocks.OfferService)
		mockService.On("QueryOffer", mock.Anything, "offer-1").Return(&offer, nil)

		h := offers.NewOffersHandler(mockService)
		rr := httptest.NewRecorder()
		h.GetOfferById(rr, httptest.NewRequest(http.MethodGet, "/offers/offer-1", nil), "offer-1")

		assert.Equal(t, http.StatusOK, rr.Code)
		var out api.Offer
		json.Unmarshal(rr.Body.Bytes(), &out)
		assert.Equal(t, "5", out.Transaction.Amount)
		mockService.AssertExpectations(t)
	})

	t.Run("Get missing", func(t *testing.T) {
		mockService := new(mocks.OfferService)
		mockService.On("QueryOffer", mock.Anything, "nope").Return(nil, offersvc.ErrOfferNotFound)

		h := offers.NewOffersHandler(mockService)
		rr := httptest.NewRecorder()
		h.GetOfferById(rr, httptest.NewRequest(http.MethodGet, "/offers/nope", nil), "nope")

		assert.Equal(t, http.StatusNotFound, rr.Code)
		mockService.AssertExpectations(t)
	})
}
