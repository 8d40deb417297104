/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements all persistence interfaces of the engine using SQLite. In
  production, the same patterns apply to PostgreSQL - only minor SQL dialect
  differences.

INTERFACES IMPLEMENTED:
  actus.ContractStore:    Deployed contracts and their applied events
  actus.TransferStore:    Ledger transfers (append-only)
  actus.ObservationStore: Market observations, served as an Oracle

APPEND-ONLY ENFORCEMENT:
  - No UPDATE or DELETE statements on the transfers table
  - contract_events rows are only ever inserted, and removed together with
    their contract on Delete

KEY TABLES:
  contracts:       Terms, running state, schedule and next-event index
  contract_events: Applied event records, one row per (contract, index)
  transfers:       Immutable ledger of payoffs between parties
  observations:    Market object code time series

INDEXES:
  - transfers.idempotency_key UNIQUE: one transfer per (contract, index)
  - idx_transfers_contract: per-contract ledger reads
  - observations primary key (code, observed_at): latest-value lookup

COMMIT PROTOCOL:
  CommitEvent runs in one SQL transaction: a conditional UPDATE of the
  contract row guarded by next_event = record.Index, then the INSERT of the
  event row. A stale index updates nothing and the commit fails with
  ErrConcurrentModification.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/actus.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  scheduler := actus.NewScheduler(engine, store, store, actus.NewLedger(store), logger)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - actus/store.go: ContractStore and ObservationStore
  - actus/ledger.go: TransferStore
  - actus/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/warp/actus-engine/actus"
	"github.com/warp/actus-engine/generic"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Deployed contracts
	CREATE TABLE IF NOT EXISTS contracts (
		id TEXT PRIMARY KEY,
		contract_type TEXT NOT NULL,
		terms_json TEXT NOT NULL,
		state_json TEXT NOT NULL,
		schedule_json TEXT NOT NULL,
		next_event INTEGER NOT NULL DEFAULT 0,
		deployed_at TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_contracts_type
		ON contracts(contract_type);

	-- Applied events, one row per schedule index
	CREATE TABLE IF NOT EXISTS contract_events (
		contract_id TEXT NOT NULL REFERENCES contracts(id) ON DELETE CASCADE,
		event_index INTEGER NOT NULL,
		event_time TEXT NOT NULL,
		event_type TEXT NOT NULL,
		payoff TEXT NOT NULL,
		state_json TEXT NOT NULL,
		transfer_id TEXT,
		created_at TEXT NOT NULL,
		PRIMARY KEY (contract_id, event_index)
	);

	-- Transfers (append-only ledger)
	CREATE TABLE IF NOT EXISTS transfers (
		id TEXT PRIMARY KEY,
		idempotency_key TEXT UNIQUE,
		contract_id TEXT NOT NULL,
		event_index INTEGER NOT NULL,
		event_type TEXT NOT NULL,
		at TEXT NOT NULL,
		from_party TEXT NOT NULL,
		to_party TEXT NOT NULL,
		asset_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transfers_contract
		ON transfers(contract_id, event_index);
	CREATE INDEX IF NOT EXISTS idx_transfers_at
		ON transfers(at);

	-- Market observations
	CREATE TABLE IF NOT EXISTS observations (
		market_object_code TEXT NOT NULL,
		observed_at TEXT NOT NULL,
		value TEXT NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY (market_object_code, observed_at)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// CONTRACT STORE (actus.ContractStore interface)
// =============================================================================

// Create stores a freshly deployed contract.
func (s *Store) Create(ctx context.Context, cs *actus.ContractState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	termsJSON, err := json.Marshal(cs.Terms)
	if err != nil {
		return fmt.Errorf("failed to encode terms: %w", err)
	}
	stateJSON, err := json.Marshal(cs.State)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	scheduleJSON, err := json.Marshal(cs.Schedule)
	if err != nil {
		return fmt.Errorf("failed to encode schedule: %w", err)
	}
	now := nowString()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO contracts
		(id, contract_type, terms_json, state_json, schedule_json, next_event, deployed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		string(cs.ID),
		string(cs.Terms.ContractType),
		string(termsJSON),
		string(stateJSON),
		string(scheduleJSON),
		cs.NextEvent,
		cs.DeployedAt.String(),
		now, now,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: %s", generic.ErrContractExists, cs.ID)
		}
		return fmt.Errorf("failed to create contract: %w", err)
	}
	return nil
}

// Get loads a contract.
func (s *Store) Get(ctx context.Context, id generic.ContractID) (*actus.ContractState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, terms_json, state_json, schedule_json, next_event, deployed_at
		FROM contracts WHERE id = ?
	`, string(id))

	cs, err := scanContract(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", generic.ErrContractNotFound, id)
	}
	return cs, err
}

// CommitEvent replaces the state, advances the index and appends the record
// in one transaction.
func (s *Store) CommitEvent(ctx context.Context, id generic.ContractID, rec actus.EventRecord) error {
	stateJSON, err := json.Marshal(rec.State)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	return s.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE contracts
			SET state_json = ?, next_event = next_event + 1, updated_at = ?
			WHERE id = ? AND next_event = ?
		`, string(stateJSON), nowString(), string(id), rec.Index)
		if err != nil {
			return fmt.Errorf("failed to update contract: %w", err)
		}
		if err := s.checkAdvanced(ctx, tx, res, id, rec.Index); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO contract_events
			(contract_id, event_index, event_time, event_type, payoff, state_json, transfer_id, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			string(id),
			rec.Index,
			rec.Event.Time.String(),
			rec.Event.Type.String(),
			rec.Payoff.String(),
			string(stateJSON),
			nullString(rec.TransferID),
			nowString(),
		)
		if err != nil {
			if isUniqueConstraintError(err) {
				return fmt.Errorf("%w: event %d of %s already committed", generic.ErrConcurrentModification, rec.Index, id)
			}
			return fmt.Errorf("failed to record event: %w", err)
		}
		return nil
	})
}

// checkAdvanced turns a guarded UPDATE that touched no row into the right
// sentinel: the contract is gone, or it is at another index.
func (s *Store) checkAdvanced(ctx context.Context, tx *sql.Tx, res sql.Result, id generic.ContractID, index int) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var current int
	err = tx.QueryRowContext(ctx, "SELECT next_event FROM contracts WHERE id = ?", string(id)).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", generic.ErrContractNotFound, id)
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: contract %s is at event %d, not %d",
		generic.ErrConcurrentModification, id, current, index)
}

// ReplacePending swaps the schedule tail from nextEvent on.
func (s *Store) ReplacePending(ctx context.Context, id generic.ContractID, nextEvent int, pending []generic.Event) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		var (
			scheduleJSON string
			current      int
		)
		err := tx.QueryRowContext(ctx,
			"SELECT schedule_json, next_event FROM contracts WHERE id = ?", string(id),
		).Scan(&scheduleJSON, &current)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", generic.ErrContractNotFound, id)
		}
		if err != nil {
			return fmt.Errorf("failed to load schedule: %w", err)
		}
		if current != nextEvent {
			return fmt.Errorf("%w: contract %s is at event %d, not %d",
				generic.ErrConcurrentModification, id, current, nextEvent)
		}

		var schedule []generic.Event
		if err := json.Unmarshal([]byte(scheduleJSON), &schedule); err != nil {
			return fmt.Errorf("failed to decode schedule: %w", err)
		}
		schedule = append(schedule[:nextEvent:nextEvent], pending...)
		updated, err := json.Marshal(schedule)
		if err != nil {
			return fmt.Errorf("failed to encode schedule: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			"UPDATE contracts SET schedule_json = ?, updated_at = ? WHERE id = ?",
			string(updated), nowString(), string(id))
		return err
	})
}

// Delete removes a contract and its event history. Transfers stay.
func (s *Store) Delete(ctx context.Context, id generic.ContractID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM contracts WHERE id = ?", string(id))
	if err != nil {
		return fmt.Errorf("failed to delete contract: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", generic.ErrContractNotFound, id)
	}
	return nil
}

// List returns every contract ordered by ID.
func (s *Store) List(ctx context.Context) ([]*actus.ContractState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, terms_json, state_json, schedule_json, next_event, deployed_at
		FROM contracts ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query contracts: %w", err)
	}
	defer rows.Close()

	var contracts []*actus.ContractState
	for rows.Next() {
		cs, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		contracts = append(contracts, cs)
	}
	return contracts, rows.Err()
}

// History returns the applied events of a contract in index order.
func (s *Store) History(ctx context.Context, id generic.ContractID) ([]actus.EventRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM contracts WHERE id = ?", string(id)).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, fmt.Errorf("%w: %s", generic.ErrContractNotFound, id)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT contract_id, event_index, event_time, event_type, payoff, state_json, transfer_id
		FROM contract_events
		WHERE contract_id = ?
		ORDER BY event_index ASC
	`, string(id))
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var records []actus.EventRecord
	for rows.Next() {
		rec, err := scanEventRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanContract(row scanner) (*actus.ContractState, error) {
	var (
		cs           actus.ContractState
		id           string
		termsJSON    string
		stateJSON    string
		scheduleJSON string
		deployedAt   string
	)
	if err := row.Scan(&id, &termsJSON, &stateJSON, &scheduleJSON, &cs.NextEvent, &deployedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan contract: %w", err)
	}

	cs.ID = generic.ContractID(id)
	if err := json.Unmarshal([]byte(termsJSON), &cs.Terms); err != nil {
		return nil, fmt.Errorf("failed to decode terms of %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(stateJSON), &cs.State); err != nil {
		return nil, fmt.Errorf("failed to decode state of %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(scheduleJSON), &cs.Schedule); err != nil {
		return nil, fmt.Errorf("failed to decode schedule of %s: %w", id, err)
	}
	cs.DeployedAt, _ = generic.ParseTimePoint(deployedAt)
	return &cs, nil
}

func scanEventRecord(rows *sql.Rows) (actus.EventRecord, error) {
	var (
		rec        actus.EventRecord
		contractID string
		eventTime  string
		eventType  string
		payoff     string
		stateJSON  string
		transferID sql.NullString
	)
	err := rows.Scan(&contractID, &rec.Index, &eventTime, &eventType, &payoff, &stateJSON, &transferID)
	if err != nil {
		return rec, fmt.Errorf("failed to scan event: %w", err)
	}

	rec.ContractID = generic.ContractID(contractID)
	rec.Event.Time, _ = generic.ParseTimePoint(eventTime)
	if rec.Event.Type, err = generic.ParseEventType(eventType); err != nil {
		return rec, fmt.Errorf("failed to decode event %s/%d: %w", contractID, rec.Index, err)
	}
	rec.Payoff = parseNumber(payoff)
	rec.TransferID = transferID.String
	if err := json.Unmarshal([]byte(stateJSON), &rec.State); err != nil {
		return rec, fmt.Errorf("failed to decode event state: %w", err)
	}
	return rec, nil
}

// =============================================================================
// TRANSACTIONAL HELPER
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(sqlTx); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// =============================================================================
// TRANSFER STORE (actus.TransferStore interface)
// =============================================================================

// AppendTransfer adds a transfer to the ledger.
func (s *Store) AppendTransfer(ctx context.Context, tr actus.Transfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transfers
		(id, idempotency_key, contract_id, event_index, event_type, at,
		 from_party, to_party, asset_id, amount, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		tr.ID,
		nullString(tr.IdempotencyKey),
		string(tr.ContractID),
		tr.EventIndex,
		tr.EventType.String(),
		tr.At.String(),
		tr.From,
		tr.To,
		tr.AssetID,
		tr.Amount.String(),
		nowString(),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return generic.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to append transfer: %w", err)
	}
	return nil
}

// TransferExists checks if an idempotency key exists.
func (s *Store) TransferExists(ctx context.Context, idempotencyKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM transfers WHERE idempotency_key = ?",
		idempotencyKey,
	).Scan(&count)

	return count > 0, err
}

// Transfers returns a contract's transfers, or every transfer when id is
// empty, ordered by contract and event index.
func (s *Store) Transfers(ctx context.Context, id generic.ContractID) ([]actus.Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, idempotency_key, contract_id, event_index, event_type, at,
		       from_party, to_party, asset_id, amount
		FROM transfers
	`
	var args []any
	if id != "" {
		query += " WHERE contract_id = ?"
		args = append(args, string(id))
	}
	query += " ORDER BY contract_id ASC, event_index ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transfers: %w", err)
	}
	defer rows.Close()

	var transfers []actus.Transfer
	for rows.Next() {
		tr, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		transfers = append(transfers, tr)
	}
	return transfers, rows.Err()
}

func scanTransfer(rows *sql.Rows) (actus.Transfer, error) {
	var (
		tr             actus.Transfer
		idempotencyKey sql.NullString
		contractID     string
		eventType      string
		at             string
		amount         string
	)
	err := rows.Scan(
		&tr.ID, &idempotencyKey, &contractID, &tr.EventIndex, &eventType, &at,
		&tr.From, &tr.To, &tr.AssetID, &amount,
	)
	if err != nil {
		return tr, fmt.Errorf("failed to scan transfer: %w", err)
	}

	tr.IdempotencyKey = idempotencyKey.String
	tr.ContractID = generic.ContractID(contractID)
	if tr.EventType, err = generic.ParseEventType(eventType); err != nil {
		return tr, fmt.Errorf("failed to decode transfer %s: %w", tr.ID, err)
	}
	tr.At, _ = generic.ParseTimePoint(at)
	tr.Amount = parseNumber(amount)
	return tr, nil
}

// =============================================================================
// OBSERVATION STORE (actus.ObservationStore interface)
// =============================================================================

// RecordObservation stores obs. A second observation at the same time
// replaces the first.
func (s *Store) RecordObservation(ctx context.Context, obs actus.Observation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO observations (market_object_code, observed_at, value, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(market_object_code, observed_at) DO UPDATE SET value = excluded.value
	`, obs.MarketObjectCode, obs.Time.String(), obs.Value.String(), nowString())
	if err != nil {
		return fmt.Errorf("failed to record observation: %w", err)
	}
	return nil
}

// Observations returns the series of a market object code in time order.
func (s *Store) Observations(ctx context.Context, code string) ([]actus.Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT market_object_code, observed_at, value
		FROM observations
		WHERE market_object_code = ?
		ORDER BY observed_at ASC
	`, code)
	if err != nil {
		return nil, fmt.Errorf("failed to query observations: %w", err)
	}
	defer rows.Close()

	var out []actus.Observation
	for rows.Next() {
		obs, err := scanObservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, obs)
	}
	return out, rows.Err()
}

// Latest returns the most recent observation for code.
func (s *Store) Latest(ctx context.Context, code string) (actus.Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT market_object_code, observed_at, value
		FROM observations
		WHERE market_object_code = ?
		ORDER BY observed_at DESC
		LIMIT 1
	`, code)
	obs, err := scanObservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return actus.Observation{}, &actus.LookupError{MarketObjectCode: code, Err: generic.ErrObservationNotFound}
	}
	return obs, err
}

func scanObservation(row scanner) (actus.Observation, error) {
	var (
		obs        actus.Observation
		observedAt string
		value      string
	)
	if err := row.Scan(&obs.MarketObjectCode, &observedAt, &value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return obs, err
		}
		return obs, fmt.Errorf("failed to scan observation: %w", err)
	}
	obs.Time, _ = generic.ParseTimePoint(observedAt)
	obs.Value = parseNumber(value)
	return obs, nil
}

// =============================================================================
// ADMIN
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"contract_events", "contracts", "transfers", "observations"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}

// Helper functions

func nowString() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func parseNumber(s string) generic.Number {
	n, err := generic.ParseNumber(s)
	if err != nil {
		return generic.Null()
	}
	return n
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

var (
	_ actus.ContractStore    = (*Store)(nil)
	_ actus.TransferStore    = (*Store)(nil)
	_ actus.ObservationStore = (*Store)(nil)
)
