// Package peer serves the agent-to-agent half of the offer protocol over HTTP.
// Every request must be signed by the sending agent.
package peer

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	offershandler "github.com/chris/mutual-credit-ledger/pkg/handlers/offers"
	"github.com/chris/mutual-credit-ledger/pkg/identity"
	"github.com/chris/mutual-credit-ledger/pkg/ledger"
	"github.com/chris/mutual-credit-ledger/pkg/models"
	peermsg "github.com/chris/mutual-credit-ledger/pkg/peer"
	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 1 << 20

// DefaultMaxSkew is how far a request's signed timestamp may be from the local clock.
const DefaultMaxSkew = 5 * time.Minute

type contextKey int

const senderKey contextKey = iota

// SenderFromContext returns the verified sending agent of a peer request.
func SenderFromContext(ctx context.Context) models.AgentID {
	if v, ok := ctx.Value(senderKey).(models.AgentID); ok {
		return v
	}
	return ""
}

// Handler dispatches verified peer requests to the local runtime.
type Handler struct {
	Inbound  peermsg.Handler
	Chains   peermsg.ChainServer
	Verifier ledger.Verifier
	Now      func() time.Time
	MaxSkew  time.Duration
}

// NewHandler creates a new Handler.
func NewHandler(inbound peermsg.Handler, chains peermsg.ChainServer) *Handler {
	return &Handler{
		Inbound:  inbound,
		Chains:   chains,
		Verifier: identity.Ed25519Verifier{},
		Now:      time.Now,
		MaxSkew:  DefaultMaxSkew,
	}
}

// RegisterRoutes registers the peer routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/peer", func(r chi.Router) {
		r.Use(h.Verify)
		r.Post("/offers", h.ReceiveOffer)
		r.Get("/offers/{offerId}/consent", h.ConsentStatus)
		r.Post("/offers/{offerId}/cancel", h.ReceiveCancel)
		r.Post("/offers/{offerId}/commit", h.CommitOffer)
		r.Post("/offers/{offerId}/attest", h.ReceiveAttestation)
		r.Get("/chain", h.ServeChain)
	})
}

// Verify rejects requests whose signature does not match the claimed sender, and signed
// requests whose timestamp is further than MaxSkew from the local clock.
func (h *Handler) Verify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sender := models.AgentID(r.Header.Get(peermsg.HeaderAgentID))
		sig, err := hex.DecodeString(r.Header.Get(peermsg.HeaderSignature))
		if sender == "" || err != nil || len(sig) == 0 {
			http.Error(w, "missing or malformed signature", http.StatusUnauthorized)
			return
		}

		timestamp := r.Header.Get(peermsg.HeaderTimestamp)
		if err := h.checkTimestamp(timestamp); err != nil {
			slog.Warn("rejected peer request", "sender", sender, "path", r.URL.Path, "error", err)
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to read request body: %v", err), http.StatusBadRequest)
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		if err := h.Verifier.Verify(sender, peermsg.SigningPayload(r.Method, r.URL.RequestURI(), timestamp, body), sig); err != nil {
			slog.Warn("rejected peer request", "sender", sender, "path", r.URL.Path, "error", err)
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), senderKey, sender)))
	})
}

func (h *Handler) checkTimestamp(timestamp string) error {
	if timestamp == "" {
		return fmt.Errorf("missing %s header", peermsg.HeaderTimestamp)
	}
	secs, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("malformed %s header", peermsg.HeaderTimestamp)
	}

	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	maxSkew := h.MaxSkew
	if maxSkew <= 0 {
		maxSkew = DefaultMaxSkew
	}
	skew := now().Sub(time.Unix(secs, 0))
	if skew > maxSkew || skew < -maxSkew {
		return fmt.Errorf("request timestamp is %s away from the local clock", skew.Round(time.Second))
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, fmt.Sprintf("Failed to write response: %v", err), http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := offershandler.StatusFor(err)
	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "peer request failed", "path", r.URL.Path, "error", err)
	}
	http.Error(w, err.Error(), status)
}

// ReceiveOffer stores an offer sent by its debtor.
func (h *Handler) ReceiveOffer(w http.ResponseWriter, r *http.Request) {
	var msg peermsg.OfferMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if err := h.Inbound.ReceiveOffer(r.Context(), SenderFromContext(r.Context()), msg.Transaction); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ConsentStatus reports the local state of an offer to its other party.
func (h *Handler) ConsentStatus(w http.ResponseWriter, r *http.Request) {
	reply, err := h.Inbound.ConsentStatus(r.Context(), SenderFromContext(r.Context()), chi.URLParam(r, "offerId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

// ReceiveCancel mirrors the other party's cancel.
func (h *Handler) ReceiveCancel(w http.ResponseWriter, r *http.Request) {
	if err := h.Inbound.ReceiveCancel(r.Context(), SenderFromContext(r.Context()), chi.URLParam(r, "offerId")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CommitOffer runs the debtor's half of a commit.
func (h *Handler) CommitOffer(w http.ResponseWriter, r *http.Request) {
	var req peermsg.CommitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if offerID := chi.URLParam(r, "offerId"); req.OfferID != offerID {
		http.Error(w, fmt.Sprintf("offer id %q does not match path %q", req.OfferID, offerID), http.StatusBadRequest)
		return
	}

	reply, err := h.Inbound.CommitOffer(r.Context(), SenderFromContext(r.Context()), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

// ReceiveAttestation takes the creditor's entry for a completed offer and attests to it.
func (h *Handler) ReceiveAttestation(w http.ResponseWriter, r *http.Request) {
	var req peermsg.AttestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if offerID := chi.URLParam(r, "offerId"); req.OfferID != offerID {
		http.Error(w, fmt.Sprintf("offer id %q does not match path %q", req.OfferID, offerID), http.StatusBadRequest)
		return
	}

	if err := h.Inbound.ReceiveAttestation(r.Context(), SenderFromContext(r.Context()), req); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ServeChain returns the local chain, optionally after the header given as since.
func (h *Handler) ServeChain(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Chains.ServeChain(r.Context(), r.URL.Query().Get("since"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []models.ChainEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
