package dynamodb

import (
	"fmt"
	"time"

	"github.com/chris/mutual-credit-ledger/pkg/models"
	"github.com/shopspring/decimal"
)

// headSeq is the sort key of the item tracking a chain's head.
const headSeq = 0

// entryRecord is one chain entry as stored in the chains table.
// Amounts are kept as decimal strings so no precision is lost.
type entryRecord struct {
	AgentID         string `dynamodbav:"agent_id"`
	Seq             int64  `dynamodbav:"seq"`
	Address         string `dynamodbav:"address"`
	EntryAddress    string `dynamodbav:"entry_address"`
	PreviousHeader  string `dynamodbav:"previous_header"`
	HeaderTimestamp string `dynamodbav:"header_timestamp"`
	TxID            string `dynamodbav:"tx_id"`
	Debtor          string `dynamodbav:"debtor"`
	Creditor        string `dynamodbav:"creditor"`
	Amount          string `dynamodbav:"amount"`
	TxTimestamp     string `dynamodbav:"tx_timestamp"`
	Signature       []byte `dynamodbav:"signature"`
}

// headRecord is the seq 0 item of a chain.
type headRecord struct {
	AgentID          string `dynamodbav:"agent_id"`
	Seq              int64  `dynamodbav:"seq"`
	HeadAddress      string `dynamodbav:"head_address"`
	HeadEntryAddress string `dynamodbav:"head_entry_address"`
	HeadPrevious     string `dynamodbav:"head_previous"`
	HeadTimestamp    string `dynamodbav:"head_timestamp"`
	Length           int64  `dynamodbav:"length"`
}

// offerRecord is one agent's view of an offer as stored in the offers table.
// Times are unix nanoseconds so they compare correctly in filter expressions.
type offerRecord struct {
	OwnerID        string `dynamodbav:"owner_id"`
	OfferID        string `dynamodbav:"offer_id"`
	Debtor         string `dynamodbav:"debtor"`
	Creditor       string `dynamodbav:"creditor"`
	Amount         string `dynamodbav:"amount"`
	TxTimestamp    string `dynamodbav:"tx_timestamp"`
	State          string `dynamodbav:"state"`
	Proposer       string `dynamodbav:"proposer"`
	Counterparty   string `dynamodbav:"counterparty"`
	ApprovedHeader string `dynamodbav:"approved_header,omitempty"`
	CreatedAt      int64  `dynamodbav:"created_at"`
	UpdatedAt      int64  `dynamodbav:"updated_at"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

func toEntryRecord(e models.ChainEntry, seq int64) entryRecord {
	return entryRecord{
		AgentID:         string(e.Author),
		Seq:             seq,
		Address:         e.Header.Address,
		EntryAddress:    e.Header.EntryAddress,
		PreviousHeader:  e.Header.PreviousHeader,
		HeaderTimestamp: formatTime(e.Header.Timestamp),
		TxID:            e.Transaction.Id,
		Debtor:          string(e.Transaction.Debtor),
		Creditor:        string(e.Transaction.Creditor),
		Amount:          e.Transaction.Amount.String(),
		TxTimestamp:     formatTime(e.Transaction.Timestamp),
		Signature:       e.Signature,
	}
}

func (r entryRecord) toModel() (models.ChainEntry, error) {
	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return models.ChainEntry{}, fmt.Errorf("invalid amount %q in entry %s: %w", r.Amount, r.Address, err)
	}
	headerTime, err := parseTime(r.HeaderTimestamp)
	if err != nil {
		return models.ChainEntry{}, fmt.Errorf("invalid header timestamp in entry %s: %w", r.Address, err)
	}
	txTime, err := parseTime(r.TxTimestamp)
	if err != nil {
		return models.ChainEntry{}, fmt.Errorf("invalid transaction timestamp in entry %s: %w", r.Address, err)
	}
	return models.ChainEntry{
		Author: models.AgentID(r.AgentID),
		Header: models.ChainHeader{
			Address:        r.Address,
			EntryAddress:   r.EntryAddress,
			PreviousHeader: r.PreviousHeader,
			Timestamp:      headerTime,
		},
		Transaction: models.Transaction{
			Id:        r.TxID,
			Debtor:    models.AgentID(r.Debtor),
			Creditor:  models.AgentID(r.Creditor),
			Amount:    amount,
			Timestamp: txTime,
		},
		Signature: r.Signature,
	}, nil
}

func (r headRecord) toHeader() (*models.ChainHeader, error) {
	if r.HeadAddress == "" {
		return nil, nil
	}
	ts, err := parseTime(r.HeadTimestamp)
	if err != nil {
		return nil, fmt.Errorf("invalid head timestamp for %s: %w", r.AgentID, err)
	}
	return &models.ChainHeader{
		Address:        r.HeadAddress,
		EntryAddress:   r.HeadEntryAddress,
		PreviousHeader: r.HeadPrevious,
		Timestamp:      ts,
	}, nil
}

func toOfferRecord(o *models.Offer) offerRecord {
	return offerRecord{
		OwnerID:        string(o.Owner),
		OfferID:        o.Id,
		Debtor:         string(o.Transaction.Debtor),
		Creditor:       string(o.Transaction.Creditor),
		Amount:         o.Transaction.Amount.String(),
		TxTimestamp:    formatTime(o.Transaction.Timestamp),
		State:          string(o.State),
		Proposer:       string(o.Proposer),
		Counterparty:   string(o.Counterparty),
		ApprovedHeader: o.ApprovedHeader,
		CreatedAt:      o.CreatedAt.UnixNano(),
		UpdatedAt:      o.UpdatedAt.UnixNano(),
	}
}

func (r offerRecord) toModel() (*models.Offer, error) {
	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q in offer %s: %w", r.Amount, r.OfferID, err)
	}
	txTime, err := parseTime(r.TxTimestamp)
	if err != nil {
		return nil, fmt.Errorf("invalid transaction timestamp in offer %s: %w", r.OfferID, err)
	}
	return &models.Offer{
		Id:    r.OfferID,
		Owner: models.AgentID(r.OwnerID),
		Transaction: models.Transaction{
			Id:        r.OfferID,
			Debtor:    models.AgentID(r.Debtor),
			Creditor:  models.AgentID(r.Creditor),
			Amount:    amount,
			Timestamp: txTime,
		},
		State:          models.OfferState(r.State),
		Proposer:       models.AgentID(r.Proposer),
		Counterparty:   models.AgentID(r.Counterparty),
		ApprovedHeader: r.ApprovedHeader,
		CreatedAt:      time.Unix(0, r.CreatedAt).UTC(),
		UpdatedAt:      time.Unix(0, r.UpdatedAt).UTC(),
	}, nil
}
