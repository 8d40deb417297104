/*
store.go - Persistence interface for deployed contracts

PURPOSE:
  The ContractStore is the durable record of every deployed contract: its
  terms, running state, schedule, next-event index and applied-event
  history. The scheduler rebuilds its in-memory heap from it after a
  restart.

COMMIT PROTOCOL:
  CommitEvent(id, record) succeeds only when record.Index equals the stored
  next-event index. It then, atomically:
    - replaces the running state
    - advances the next-event index to record.Index + 1
    - appends record to the history
  A stale index returns ErrConcurrentModification, so the same event can
  never be committed twice.

IMPLEMENTATIONS:
  - actus/store/memory.go: in-memory for tests and projections
  - store/sqlite/sqlite.go: SQLite

SEE ALSO:
  - ledger.go: TransferStore, the money side of an event
*/
package actus

import (
	"context"

	"github.com/warp/actus-engine/generic"
)

// ContractStore persists deployed contracts.
type ContractStore interface {
	// Create stores a freshly deployed contract. Returns ErrContractExists
	// when the ID is taken.
	Create(ctx context.Context, cs *ContractState) error

	// Get loads a contract. Returns ErrContractNotFound when absent.
	Get(ctx context.Context, id generic.ContractID) (*ContractState, error)

	// CommitEvent applies an event record as described above.
	CommitEvent(ctx context.Context, id generic.ContractID, rec EventRecord) error

	// ReplacePending swaps the events from nextEvent on. nextEvent must equal
	// the stored next-event index.
	ReplacePending(ctx context.Context, id generic.ContractID, nextEvent int, pending []generic.Event) error

	// Delete removes a contract and its history.
	Delete(ctx context.Context, id generic.ContractID) error

	// List returns every contract, live or completed, ordered by ID.
	List(ctx context.Context) ([]*ContractState, error)

	// History returns the applied events of a contract in order.
	History(ctx context.Context, id generic.ContractID) ([]EventRecord, error)
}

// ObservationStore records market observations and serves them as an Oracle.
type ObservationStore interface {
	Oracle
	RecordObservation(ctx context.Context, obs Observation) error
	Observations(ctx context.Context, marketObjectCode string) ([]Observation, error)
}
