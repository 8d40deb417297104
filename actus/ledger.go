/*
ledger.go - Append-only transfer log fed by contract payoffs

PURPOSE:
  Every non-zero payoff becomes exactly one Transfer between the contract's
  creator and counterparty. The ledger is the record of money movement; the
  contract store is the record of contract state. They are linked by the
  idempotency key "<contract>/<event index>".

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete. EVER.
  2. IDEMPOTENT: the same (contract, event index) moves money at most once
  3. POSITIVE AMOUNTS: direction is carried by From/To, never by sign

WHY IDEMPOTENCY KEYS?
  The scheduler transfers first and commits state second. If the commit
  fails, the event is retried on the next tick; the retry hits
  ErrDuplicateIdempotencyKey, which the scheduler treats as success.

SEE ALSO:
  - scheduler.go: the only writer
  - store/sqlite: TransferStore with a UNIQUE idempotency_key column
*/
package actus

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/warp/actus-engine/generic"
)

// =============================================================================
// TRANSFER - One movement of an asset between two parties
// =============================================================================

// Transfer moves Amount of AssetID from From to To.
type Transfer struct {
	ID             string             `json:"id"`
	IdempotencyKey string             `json:"idempotency_key"`
	ContractID     generic.ContractID `json:"contract_id"`
	EventIndex     int                `json:"event_index"`
	EventType      generic.EventType  `json:"event_type"`
	At             generic.TimePoint  `json:"at"`
	From           string             `json:"from"`
	To             string             `json:"to"`
	AssetID        string             `json:"asset_id"`
	Amount         generic.Number     `json:"amount"`
}

// TransferKey is the idempotency key of the transfer for an event.
func TransferKey(id generic.ContractID, index int) string {
	return fmt.Sprintf("%s/%d", id, index)
}

// NewTransfer turns a payoff into a transfer. A positive payoff flows from
// the counterparty to the creator, a negative one the other way. Zero and
// null payoffs move nothing and return false.
func NewTransfer(cs *ContractState, index int, ev generic.Event, payoff generic.Number) (Transfer, bool) {
	if payoff.IsNull() || payoff.IsZero() {
		return Transfer{}, false
	}
	key := TransferKey(cs.ID, index)
	tr := Transfer{
		ID:             uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String(),
		IdempotencyKey: key,
		ContractID:     cs.ID,
		EventIndex:     index,
		EventType:      ev.Type,
		At:             ev.Time,
		AssetID:        cs.Terms.SettlementAsset(),
		Amount:         payoff.Abs(),
	}
	if payoff.IsPositive() {
		tr.From, tr.To = cs.Terms.CounterpartyID, cs.Terms.CreatorID
	} else {
		tr.From, tr.To = cs.Terms.CreatorID, cs.Terms.CounterpartyID
	}
	return tr, true
}

// =============================================================================
// LEDGER
// =============================================================================

// Ledger executes transfers.
type Ledger interface {
	// Transfer records tr. It returns ErrDuplicateIdempotencyKey when a
	// transfer with the same key already exists.
	Transfer(ctx context.Context, tr Transfer) error
}

// TransferStore persists transfers. Append-only.
type TransferStore interface {
	AppendTransfer(ctx context.Context, tr Transfer) error
	TransferExists(ctx context.Context, idempotencyKey string) (bool, error)
	Transfers(ctx context.Context, id generic.ContractID) ([]Transfer, error)
}

// DefaultLedger records transfers in a TransferStore.
type DefaultLedger struct {
	Store TransferStore
}

func NewLedger(store TransferStore) *DefaultLedger {
	return &DefaultLedger{Store: store}
}

func (l *DefaultLedger) Transfer(ctx context.Context, tr Transfer) error {
	if tr.IdempotencyKey != "" {
		exists, err := l.Store.TransferExists(ctx, tr.IdempotencyKey)
		if err != nil {
			return err
		}
		if exists {
			return generic.ErrDuplicateIdempotencyKey
		}
	}
	return l.Store.AppendTransfer(ctx, tr)
}

// Transfers returns the transfers of a contract in event order.
func (l *DefaultLedger) Transfers(ctx context.Context, id generic.ContractID) ([]Transfer, error) {
	return l.Store.Transfers(ctx, id)
}

// Balance sums the signed flows of a party in one asset across transfers.
func Balance(transfers []Transfer, party, asset string) generic.Number {
	total := generic.Zero
	for _, tr := range transfers {
		if tr.AssetID != asset {
			continue
		}
		if tr.To == party {
			total = total.Add(tr.Amount)
		}
		if tr.From == party {
			total = total.Sub(tr.Amount)
		}
	}
	return total
}
