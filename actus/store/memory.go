// Package store provides in-memory implementations of the actus stores.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/warp/actus-engine/actus"
	"github.com/warp/actus-engine/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements actus.ContractStore, actus.TransferStore and
// actus.ObservationStore. Values are copied in and out so callers never
// share slices with the store.
type Memory struct {
	mu           sync.RWMutex
	contracts    map[generic.ContractID]*actus.ContractState
	history      map[generic.ContractID][]actus.EventRecord
	transfers    []actus.Transfer
	idempotency  map[string]bool
	observations map[string][]actus.Observation
}

func NewMemory() *Memory {
	return &Memory{
		contracts:    make(map[generic.ContractID]*actus.ContractState),
		history:      make(map[generic.ContractID][]actus.EventRecord),
		idempotency:  make(map[string]bool),
		observations: make(map[string][]actus.Observation),
	}
}

func clone(cs *actus.ContractState) *actus.ContractState {
	out := *cs
	out.Schedule = append([]generic.Event(nil), cs.Schedule...)
	return &out
}

// -----------------------------------------------------------------------------
// Contracts
// -----------------------------------------------------------------------------

func (m *Memory) Create(_ context.Context, cs *actus.ContractState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.contracts[cs.ID]; ok {
		return fmt.Errorf("%w: %s", generic.ErrContractExists, cs.ID)
	}
	m.contracts[cs.ID] = clone(cs)
	return nil
}

func (m *Memory) Get(_ context.Context, id generic.ContractID) (*actus.ContractState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cs, ok := m.contracts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", generic.ErrContractNotFound, id)
	}
	return clone(cs), nil
}

// CommitEvent replaces the state, advances the index and appends the record
// in one step.
func (m *Memory) CommitEvent(_ context.Context, id generic.ContractID, rec actus.EventRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cs, ok := m.contracts[id]
	if !ok {
		return fmt.Errorf("%w: %s", generic.ErrContractNotFound, id)
	}
	if rec.Index != cs.NextEvent {
		return fmt.Errorf("%w: contract %s is at event %d, not %d",
			generic.ErrConcurrentModification, id, cs.NextEvent, rec.Index)
	}
	cs.State = rec.State
	cs.NextEvent++
	m.history[id] = append(m.history[id], rec)
	return nil
}

func (m *Memory) ReplacePending(_ context.Context, id generic.ContractID, nextEvent int, pending []generic.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cs, ok := m.contracts[id]
	if !ok {
		return fmt.Errorf("%w: %s", generic.ErrContractNotFound, id)
	}
	if nextEvent != cs.NextEvent {
		return fmt.Errorf("%w: contract %s is at event %d, not %d",
			generic.ErrConcurrentModification, id, cs.NextEvent, nextEvent)
	}
	schedule := make([]generic.Event, 0, nextEvent+len(pending))
	schedule = append(schedule, cs.Schedule[:nextEvent]...)
	cs.Schedule = append(schedule, pending...)
	return nil
}

func (m *Memory) Delete(_ context.Context, id generic.ContractID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.contracts[id]; !ok {
		return fmt.Errorf("%w: %s", generic.ErrContractNotFound, id)
	}
	delete(m.contracts, id)
	delete(m.history, id)
	return nil
}

func (m *Memory) List(_ context.Context) ([]*actus.ContractState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*actus.ContractState, 0, len(m.contracts))
	for _, cs := range m.contracts {
		out = append(out, clone(cs))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) History(_ context.Context, id generic.ContractID) ([]actus.EventRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.contracts[id]; !ok {
		return nil, fmt.Errorf("%w: %s", generic.ErrContractNotFound, id)
	}
	return append([]actus.EventRecord(nil), m.history[id]...), nil
}

// -----------------------------------------------------------------------------
// Transfers (append-only)
// -----------------------------------------------------------------------------

func (m *Memory) AppendTransfer(_ context.Context, tr actus.Transfer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tr.IdempotencyKey != "" && m.idempotency[tr.IdempotencyKey] {
		return generic.ErrDuplicateIdempotencyKey
	}
	m.transfers = append(m.transfers, tr)
	if tr.IdempotencyKey != "" {
		m.idempotency[tr.IdempotencyKey] = true
	}
	return nil
}

func (m *Memory) TransferExists(_ context.Context, idempotencyKey string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.idempotency[idempotencyKey], nil
}

// Transfers returns a contract's transfers, or every transfer when id is
// empty, ordered by contract and event index.
func (m *Memory) Transfers(_ context.Context, id generic.ContractID) ([]actus.Transfer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []actus.Transfer
	for _, tr := range m.transfers {
		if id == "" || tr.ContractID == id {
			out = append(out, tr)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ContractID != out[j].ContractID {
			return out[i].ContractID < out[j].ContractID
		}
		return out[i].EventIndex < out[j].EventIndex
	})
	return out, nil
}

// -----------------------------------------------------------------------------
// Observations
// -----------------------------------------------------------------------------

// RecordObservation inserts obs in time order. A second observation at the
// same time replaces the first.
func (m *Memory) RecordObservation(_ context.Context, obs actus.Observation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	series := m.observations[obs.MarketObjectCode]
	i := sort.Search(len(series), func(i int) bool {
		return !series[i].Time.Before(obs.Time)
	})
	if i < len(series) && series[i].Time.Equal(obs.Time) {
		series[i] = obs
		return nil
	}
	series = append(series, actus.Observation{})
	copy(series[i+1:], series[i:])
	series[i] = obs
	m.observations[obs.MarketObjectCode] = series
	return nil
}

func (m *Memory) Observations(_ context.Context, code string) ([]actus.Observation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]actus.Observation(nil), m.observations[code]...), nil
}

// Latest returns the most recent observation for code.
func (m *Memory) Latest(_ context.Context, code string) (actus.Observation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	series := m.observations[code]
	if len(series) == 0 {
		return actus.Observation{}, &actus.LookupError{MarketObjectCode: code, Err: generic.ErrObservationNotFound}
	}
	return series[len(series)-1], nil
}

// Reset clears all data.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contracts = make(map[generic.ContractID]*actus.ContractState)
	m.history = make(map[generic.ContractID][]actus.EventRecord)
	m.transfers = nil
	m.idempotency = make(map[string]bool)
	m.observations = make(map[string][]actus.Observation)
	return nil
}

var (
	_ actus.ContractStore    = (*Memory)(nil)
	_ actus.TransferStore    = (*Memory)(nil)
	_ actus.ObservationStore = (*Memory)(nil)
)
