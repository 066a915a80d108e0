package peer_test

import (
	"bytes"
	"context"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/chris/mutual-credit-ledger/pkg/credit"
	peerhandler "github.com/chris/mutual-credit-ledger/pkg/handlers/peer"
	"github.com/chris/mutual-credit-ledger/pkg/identity"
	"github.com/chris/mutual-credit-ledger/pkg/models"
	"github.com/chris/mutual-credit-ledger/pkg/offers"
	"github.com/chris/mutual-credit-ledger/pkg/peer"
	"github.com/chris/mutual-credit-ledger/pkg/storage/memory"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type node struct {
	key     *identity.KeyPair
	service *offers.Service
	server  *httptest.Server
}

// startPair runs two agents that only talk to each other over HTTP. Attestations go to a
// registry both can read.
func startPair(t *testing.T) (*node, *node, *memory.Store) {
	t.Helper()
	peers := map[models.AgentID]string{}
	limits := credit.NewStaticLimits(credit.DefaultLimit)
	registry := memory.New()

	start := func(seed string) *node {
		key, err := identity.FromSeedHex(strings.Repeat(seed, 32))
		require.NoError(t, err)

		client := peer.NewClient(key, peers, 2*time.Second)
		svc := offers.NewService(key, memory.New(), client, client, limits, offers.WithAttestations(registry))

		router := chi.NewRouter()
		peerhandler.NewHandler(svc, svc).RegisterRoutes(router)
		server := httptest.NewServer(router)
		t.Cleanup(server.Close)

		return &node{key: key, service: svc, server: server}
	}

	alice := start("01")
	bob := start("02")
	peers[alice.key.AgentID()] = alice.server.URL
	peers[bob.key.AgentID()] = bob.server.URL
	return alice, bob, registry
}

func TestSettlementOverHTTP(t *testing.T) {
	ctx := context.Background()
	alice, bob, registry := startPair(t)

	id, err := alice.service.CreateOffer(ctx, bob.key.AgentID(), decimal.NewFromInt(25), time.Time{})
	require.NoError(t, err)

	received, err := bob.service.QueryOffer(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.RECEIVED, received.State)

	_, err = bob.service.ConsentForOffer(ctx, id)
	require.NoError(t, err)

	snap, err := bob.service.GetCounterpartySnapshot(ctx, id)
	require.NoError(t, err)
	require.True(t, snap.Online)
	require.NotNil(t, snap.Snapshot)
	assert.True(t, snap.Snapshot.Executable)

	_, err = bob.service.AcceptOffer(ctx, id, snap.Snapshot.Token())
	require.NoError(t, err)

	aliceBalance, err := alice.service.QueryMyBalance(ctx)
	require.NoError(t, err)
	bobBalance, err := bob.service.QueryMyBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, "-25", aliceBalance.String())
	assert.Equal(t, "25", bobBalance.String())

	t.Run("Both entries are attested by the other party", func(t *testing.T) {
		aboutAlice, err := registry.ListAttestations(ctx, alice.key.AgentID())
		require.NoError(t, err)
		require.Len(t, aboutAlice, 1)
		assert.Equal(t, bob.key.AgentID(), aboutAlice[0].Witness)
		assert.Equal(t, id, aboutAlice[0].TransactionID)

		aboutBob, err := registry.ListAttestations(ctx, bob.key.AgentID())
		require.NoError(t, err)
		require.Len(t, aboutBob, 1)
		assert.Equal(t, alice.key.AgentID(), aboutBob[0].Witness)
	})

	t.Run("alice's snapshot of a second offer sees bob's chain", func(t *testing.T) {
		second, err := alice.service.CreateOffer(ctx, bob.key.AgentID(), decimal.NewFromInt(5), time.Time{})
		require.NoError(t, err)
		_, err = bob.service.ConsentForOffer(ctx, second)
		require.NoError(t, err)

		snap, err := alice.service.GetCounterpartySnapshot(ctx, second)
		require.NoError(t, err)
		require.NotNil(t, snap.Snapshot)
		assert.True(t, snap.Snapshot.Valid)
		assert.Equal(t, "25", snap.Snapshot.Balance.String())
	})
}

func TestCancelOverHTTP(t *testing.T) {
	ctx := context.Background()
	alice, bob, _ := startPair(t)

	id, err := alice.service.CreateOffer(ctx, bob.key.AgentID(), decimal.NewFromInt(1), time.Time{})
	require.NoError(t, err)
	_, err = alice.service.CancelOffer(ctx, id)
	require.NoError(t, err)

	offer, err := bob.service.QueryOffer(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.CANCELED, offer.State)
}

func signed(t *testing.T, key *identity.KeyPair, method, url, path string, body []byte, timestamp string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(method, url+path, bytes.NewReader(body))
	require.NoError(t, err)
	sig := key.Sign(peer.SigningPayload(method, path, timestamp, body))
	req.Header.Set(peer.HeaderAgentID, string(key.AgentID()))
	req.Header.Set(peer.HeaderSignature, hex.EncodeToString(sig))
	if timestamp != "" {
		req.Header.Set(peer.HeaderTimestamp, timestamp)
	}
	return req
}

func TestVerify(t *testing.T) {
	alice, bob, _ := startPair(t)
	body := []byte(`{"transaction":{}}`)
	now := strconv.FormatInt(time.Now().Unix(), 10)

	status := func(t *testing.T, req *http.Request) int {
		t.Helper()
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		return resp.StatusCode
	}

	t.Run("Unsigned", func(t *testing.T) {
		resp, err := http.Post(bob.server.URL+"/peer/offers", "application/json", bytes.NewReader(body))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("Correctly signed", func(t *testing.T) {
		req := signed(t, alice.key, http.MethodGet, bob.server.URL, "/peer/chain", nil, now)
		assert.Equal(t, http.StatusOK, status(t, req))
	})

	t.Run("Signature over a different body", func(t *testing.T) {
		req := signed(t, alice.key, http.MethodPost, bob.server.URL, "/peer/offers", []byte(`{}`), now)
		req.Body = io.NopCloser(bytes.NewReader(body))
		req.ContentLength = int64(len(body))
		assert.Equal(t, http.StatusUnauthorized, status(t, req))
	})

	t.Run("Signed by someone else", func(t *testing.T) {
		req := signed(t, bob.key, http.MethodGet, bob.server.URL, "/peer/chain", nil, now)
		req.Header.Set(peer.HeaderAgentID, string(alice.key.AgentID()))
		assert.Equal(t, http.StatusUnauthorized, status(t, req))
	})

	t.Run("Missing timestamp", func(t *testing.T) {
		req := signed(t, alice.key, http.MethodGet, bob.server.URL, "/peer/chain", nil, "")
		assert.Equal(t, http.StatusUnauthorized, status(t, req))
	})

	t.Run("Replayed after the allowed skew", func(t *testing.T) {
		stale := strconv.FormatInt(time.Now().Add(-peerhandler.DefaultMaxSkew-time.Minute).Unix(), 10)
		req := signed(t, alice.key, http.MethodGet, bob.server.URL, "/peer/chain", nil, stale)
		assert.Equal(t, http.StatusUnauthorized, status(t, req))
	})

	t.Run("Timestamp changed after signing", func(t *testing.T) {
		req := signed(t, alice.key, http.MethodGet, bob.server.URL, "/peer/chain", nil, now)
		req.Header.Set(peer.HeaderTimestamp, strconv.FormatInt(time.Now().Unix()+1, 10))
		assert.Equal(t, http.StatusUnauthorized, status(t, req))
	})
}

func TestCheckTimestampClock(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	h := peerhandler.NewHandler(nil, nil)
	h.Now = func() time.Time { return fixed }
	h.MaxSkew = time.Minute

	router := chi.NewRouter()
	router.With(h.Verify).Get("/peer/chain", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	server := httptest.NewServer(router)
	defer server.Close()

	key, err := identity.FromSeedHex(strings.Repeat("01", 32))
	require.NoError(t, err)

	tests := []struct {
		name   string
		at     time.Time
		status int
	}{
		{"On time", fixed, http.StatusNoContent},
		{"Slightly ahead", fixed.Add(30 * time.Second), http.StatusNoContent},
		{"Too old", fixed.Add(-2 * time.Minute), http.StatusUnauthorized},
		{"Too far ahead", fixed.Add(2 * time.Minute), http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := signed(t, key, http.MethodGet, server.URL, "/peer/chain", nil, strconv.FormatInt(tt.at.Unix(), 10))
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestOfferFromWrongSender(t *testing.T) {
	ctx := context.Background()
	alice, bob, _ := startPair(t)

	// alice claims bob owes her, which only bob may propose.
	client := peer.NewClient(alice.key, map[models.AgentID]string{bob.key.AgentID(): bob.server.URL}, time.Second)
	err := client.SendOffer(ctx, bob.key.AgentID(), models.Transaction{
		Id:       "forged",
		Debtor:   bob.key.AgentID(),
		Creditor: alice.key.AgentID(),
		Amount:   decimal.NewFromInt(50),
	})

	var remote *peer.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, http.StatusForbidden, remote.StatusCode)
}

func TestUnreachablePeer(t *testing.T) {
	ctx := context.Background()
	alice, bob, _ := startPair(t)
	bob.server.Close()

	id, err := alice.service.CreateOffer(ctx, bob.key.AgentID(), decimal.NewFromInt(1), time.Time{})
	require.NoError(t, err)

	snap, err := alice.service.GetCounterpartySnapshot(ctx, id)
	require.NoError(t, err)
	assert.False(t, snap.Online)
}
