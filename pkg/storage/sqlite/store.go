// Package sqlite stores an agent's chain and offers in a local SQLite database.
// It suits a single runtime that serves its chain to peers over HTTP.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chris/mutual-credit-ledger/pkg/models"
	"github.com/chris/mutual-credit-ledger/pkg/storage"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// Store implements storage.Storage using SQLite.
type Store struct {
	db *sql.DB
	// writeMu serializes write transactions to avoid SQLITE_BUSY.
	writeMu sync.Mutex
	now     func() time.Time
}

// Make sure we conform to the interfaces
var (
	_ storage.Storage         = (*Store)(nil)
	_ storage.SubscriberStore = (*Store)(nil)
)

// New opens (and creates if needed) the database at dbPath.
func New(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db, now: time.Now}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS chain_entries (
		agent_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		address TEXT NOT NULL,
		entry_address TEXT NOT NULL,
		previous_header TEXT NOT NULL,
		header_ts TEXT NOT NULL,
		tx_id TEXT NOT NULL,
		debtor TEXT NOT NULL,
		creditor TEXT NOT NULL,
		amount TEXT NOT NULL,
		tx_ts TEXT NOT NULL,
		signature BLOB NOT NULL,
		PRIMARY KEY (agent_id, seq),
		UNIQUE (agent_id, previous_header)
	);

	CREATE TABLE IF NOT EXISTS offers (
		owner_id TEXT NOT NULL,
		offer_id TEXT NOT NULL,
		debtor TEXT NOT NULL,
		creditor TEXT NOT NULL,
		amount TEXT NOT NULL,
		tx_ts TEXT NOT NULL,
		state TEXT NOT NULL,
		proposer TEXT NOT NULL,
		counterparty TEXT NOT NULL,
		approved_header TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (owner_id, offer_id)
	);
	CREATE INDEX IF NOT EXISTS idx_offers_state ON offers(owner_id, state, updated_at);

	CREATE TABLE IF NOT EXISTS attestations (
		subject TEXT NOT NULL,
		tx_id TEXT NOT NULL,
		witness TEXT NOT NULL,
		header TEXT NOT NULL,
		entry_signature BLOB NOT NULL,
		signature BLOB NOT NULL,
		published_at INTEGER NOT NULL,
		PRIMARY KEY (subject, tx_id)
	);

	CREATE TABLE IF NOT EXISTS connections (
		connection_id TEXT PRIMARY KEY,
		connected_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

type rowScanner interface {
	Scan(dest ...any) error
}

const entryColumns = `agent_id, address, entry_address, previous_header, header_ts, tx_id, debtor, creditor, amount, tx_ts, signature`

func scanEntry(row rowScanner) (models.ChainEntry, error) {
	var (
		e                      models.ChainEntry
		headerTS, txTS, amount string
	)
	err := row.Scan(&e.Author, &e.Header.Address, &e.Header.EntryAddress, &e.Header.PreviousHeader, &headerTS,
		&e.Transaction.Id, &e.Transaction.Debtor, &e.Transaction.Creditor, &amount, &txTS, &e.Signature)
	if err != nil {
		return models.ChainEntry{}, err
	}

	if e.Transaction.Amount, err = decimal.NewFromString(amount); err != nil {
		return models.ChainEntry{}, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	if e.Header.Timestamp, err = time.Parse(time.RFC3339Nano, headerTS); err != nil {
		return models.ChainEntry{}, fmt.Errorf("invalid header timestamp: %w", err)
	}
	if e.Transaction.Timestamp, err = time.Parse(time.RFC3339Nano, txTS); err != nil {
		return models.ChainEntry{}, fmt.Errorf("invalid transaction timestamp: %w", err)
	}
	return e, nil
}

// ListEntries retrieves the agent's chain in append order.
func (s *Store) ListEntries(ctx context.Context, agent models.AgentID) ([]models.ChainEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM chain_entries WHERE agent_id = ? ORDER BY seq`, agent)
	if err != nil {
		return nil, fmt.Errorf("query chain entries: %w", err)
	}
	defer rows.Close()

	var entries []models.ChainEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chain entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chain entries: %w", err)
	}
	return entries, nil
}

// FetchChainSince returns the entries of agent's chain after since.
func (s *Store) FetchChainSince(ctx context.Context, agent models.AgentID, since *models.ChainHeader) ([]models.ChainEntry, error) {
	entries, err := s.ListEntries(ctx, agent)
	if err != nil {
		return nil, err
	}
	if since == nil {
		return entries, nil
	}
	for i, e := range entries {
		if e.Header.Address == since.Address {
			return entries[i+1:], nil
		}
	}
	return entries, nil
}

// Head retrieves the newest header of the agent's chain.
func (s *Store) Head(ctx context.Context, agent models.AgentID) (*models.ChainHeader, error) {
	head, _, err := s.head(ctx, s.db, agent)
	return head, err
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) head(ctx context.Context, q querier, agent models.AgentID) (*models.ChainHeader, int64, error) {
	row := q.QueryRowContext(ctx,
		`SELECT seq, `+entryColumns+` FROM chain_entries WHERE agent_id = ? ORDER BY seq DESC LIMIT 1`, agent)

	var seq int64
	e, err := scanEntry(scannerFunc(func(dest ...any) error {
		return row.Scan(append([]any{&seq}, dest...)...)
	}))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("scan chain head: %w", err)
	}
	return &e.Header, seq, nil
}

type scannerFunc func(dest ...any) error

func (f scannerFunc) Scan(dest ...any) error { return f(dest...) }

// AppendEntry appends entry if its previous header is the current head.
func (s *Store) AppendEntry(ctx context.Context, entry models.ChainEntry) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.appendTx(ctx, tx, entry)
	})
}

func (s *Store) appendTx(ctx context.Context, tx *sql.Tx, entry models.ChainEntry) error {
	head, seq, err := s.head(ctx, tx, entry.Author)
	if err != nil {
		return err
	}
	if models.HeaderToken(head) != entry.Header.PreviousHeader {
		return storage.ErrHeadMoved
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO chain_entries (agent_id, seq, address, entry_address, previous_header, header_ts,
			tx_id, debtor, creditor, amount, tx_ts, signature)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.Author, seq+1, entry.Header.Address, entry.Header.EntryAddress, entry.Header.PreviousHeader,
		formatTime(entry.Header.Timestamp), entry.Transaction.Id, entry.Transaction.Debtor, entry.Transaction.Creditor,
		entry.Transaction.Amount.String(), formatTime(entry.Transaction.Timestamp), entry.Signature)
	if err != nil {
		return fmt.Errorf("insert chain entry: %w", err)
	}
	return nil
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
