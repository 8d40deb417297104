/*
scheduler.go - Drives deployed contracts along a single timeline

PURPOSE:
  The Scheduler owns the heap of next-event pointers (one per live contract)
  and applies events as the clock reaches them. Each applied event is
  persisted on its own: the ledger transfer first, then the state commit.

TICK:
  Tick(now) pops every heap root with time <= now. Each popped contract is
  advanced through all of its events due at now, in schedule order. Contracts
  are independent, so they run in parallel (errgroup, bounded by
  Parallelism). The heap is touched only by the ticking goroutine.

  After a contract is processed:
    - events remain     -> its pointer is pushed back
    - schedule finished -> it leaves the heap
    - an event failed   -> the pointer is pushed back at the failed index

  A tick at or before the previous tick's time is a no-op.

CRASH SAFETY:
  The transfer key "<contract>/<index>" makes a retried event idempotent on
  the ledger side, and CommitEvent's index check makes it idempotent on the
  store side. A crash between the two is repaired by the next tick.

SEE ALSO:
  - engine.go: Progress, the pure event application
  - generic/heap.go: SchedulerHeap
  - api/driver.go: the cron driver calling Tick
*/
package actus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/warp/actus-engine/generic"
)

// Metrics receives scheduler measurements. api/metrics.go implements it with
// Prometheus collectors.
type Metrics interface {
	EventApplied(ct ContractTypeCode, typ generic.EventType)
	EventFailed(ct ContractTypeCode, typ generic.EventType)
	TickCompleted(d time.Duration, live int)
}

type nopMetrics struct{}

func (nopMetrics) EventApplied(ContractTypeCode, generic.EventType) {}
func (nopMetrics) EventFailed(ContractTypeCode, generic.EventType)  {}
func (nopMetrics) TickCompleted(time.Duration, int)                 {}

// Scheduler applies contract events in time order.
type Scheduler struct {
	Engine      *Engine
	Store       ContractStore
	Oracle      Oracle
	Ledger      Ledger
	Logger      *zap.Logger
	Metrics     Metrics
	Parallelism int

	ops      sync.Mutex // serializes mutating operations
	mu       sync.RWMutex
	heap     *generic.SchedulerHeap
	lastTick generic.TimePoint
}

// NewScheduler creates a scheduler with an empty heap. Call Restore to load
// contracts persisted by a previous run.
func NewScheduler(engine *Engine, store ContractStore, oracle Oracle, ledger Ledger, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		Engine:      engine,
		Store:       store,
		Oracle:      oracle,
		Ledger:      ledger,
		Logger:      logger,
		Metrics:     nopMetrics{},
		Parallelism: 8,
		heap:        generic.NewSchedulerHeap(),
	}
}

// TickReport summarizes one tick.
type TickReport struct {
	Now       generic.TimePoint    `json:"now"`
	Skipped   bool                 `json:"skipped"`
	Contracts int                  `json:"contracts"`
	Applied   int                  `json:"applied"`
	Completed []generic.ContractID `json:"completed"`
	Failures  []*ApplyError        `json:"-"`
	Duration  time.Duration        `json:"duration_ns"`
}

// SchedulerStatus is a snapshot of the heap.
type SchedulerStatus struct {
	Live     int                     `json:"live"`
	Next     *generic.ScheduledEvent `json:"next,omitempty"`
	LastTick generic.TimePoint       `json:"last_tick"`
}

// Restore rebuilds the heap from every contract in the store that still has
// pending events and restarts the tick timeline.
func (s *Scheduler) Restore(ctx context.Context) error {
	s.ops.Lock()
	defer s.ops.Unlock()

	contracts, err := s.Store.List(ctx)
	if err != nil {
		return fmt.Errorf("restore: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.heap.Clear()
	s.lastTick = generic.NullTimePoint()
	for _, cs := range contracts {
		if p, ok := cs.Pointer(); ok {
			s.heap.Push(p)
		}
	}
	s.Logger.Info("scheduler restored", zap.Int("live", s.heap.Len()), zap.Int("stored", len(contracts)))
	return nil
}

// Deploy validates and persists a new contract and schedules its first
// pending event.
func (s *Scheduler) Deploy(ctx context.Context, t0 generic.TimePoint, terms ContractTerms) (*ContractState, error) {
	s.ops.Lock()
	defer s.ops.Unlock()

	cs, err := s.Engine.Deploy(t0, terms)
	if err != nil {
		return nil, err
	}
	id, err := NewContractID(terms, t0)
	if err != nil {
		return nil, err
	}
	cs.ID = id
	if err := s.Store.Create(ctx, cs); err != nil {
		return nil, err
	}
	s.schedule(cs)

	s.Logger.Info("contract deployed",
		zap.String("contract_id", string(id)),
		zap.String("contract_type", string(cs.Terms.ContractType)),
		zap.Int("events", len(cs.Schedule)))
	return cs, nil
}

// Terminate removes a contract from the heap and the store. Removing the heap
// entry is idempotent.
func (s *Scheduler) Terminate(ctx context.Context, id generic.ContractID) error {
	s.ops.Lock()
	defer s.ops.Unlock()

	s.mu.Lock()
	s.heap.Remove(id)
	s.mu.Unlock()

	if err := s.Store.Delete(ctx, id); err != nil {
		return err
	}
	s.Logger.Info("contract terminated", zap.String("contract_id", string(id)))
	return nil
}

// Progress applies every pending event of one contract due at or before
// eventTime. It fails with ErrContractCompleted when nothing is left and
// ErrEventNotDue when the next event is later than eventTime.
func (s *Scheduler) Progress(ctx context.Context, id generic.ContractID, eventTime generic.TimePoint) ([]EventRecord, error) {
	s.ops.Lock()
	defer s.ops.Unlock()

	cs, err := s.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	next, ok := cs.Next()
	if !ok {
		return nil, fmt.Errorf("%w: %s", generic.ErrContractCompleted, id)
	}
	if next.Time.After(eventTime) {
		return nil, fmt.Errorf("%w: next event %s", generic.ErrEventNotDue, next)
	}

	records, applyErr := s.advance(ctx, cs, eventTime)
	s.schedule(cs)
	return records, applyErr
}

// InjectCreditEvent adds a credit event at `at` to a live contract's
// remaining schedule.
func (s *Scheduler) InjectCreditEvent(ctx context.Context, id generic.ContractID, at generic.TimePoint) (*ContractState, error) {
	s.ops.Lock()
	defer s.ops.Unlock()

	cs, err := s.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if cs.Done() {
		return nil, fmt.Errorf("%w: %s", generic.ErrContractCompleted, id)
	}
	if !s.Engine.Supports(cs.Terms.ContractType, generic.EventCE) {
		typ := generic.EventCE
		return nil, &UnsupportedOperationError{ContractType: cs.Terms.ContractType, EventType: &typ}
	}
	if at.IsNull() || !at.After(cs.State.StatusDate) {
		return nil, &ValidationError{
			Code:    "CREDIT_EVENT_BEFORE_STATUS_DATE",
			Field:   "time",
			Message: fmt.Sprintf("credit event must be after %s", cs.State.StatusDate),
		}
	}

	pending := append(cs.Pending(), generic.NewEvent(at, generic.EventCE))
	generic.SortEvents(pending)
	if err := s.Store.ReplacePending(ctx, id, cs.NextEvent, pending); err != nil {
		return nil, err
	}
	cs.Schedule = append(cs.Schedule[:cs.NextEvent:cs.NextEvent], pending...)
	s.schedule(cs)

	s.Logger.Info("credit event injected", zap.String("contract_id", string(id)), zap.Stringer("at", at))
	return cs, nil
}

// Tick applies every event due at now across all live contracts.
func (s *Scheduler) Tick(ctx context.Context, now generic.TimePoint) (TickReport, error) {
	s.ops.Lock()
	defer s.ops.Unlock()

	report := TickReport{Now: now}
	if now.IsNull() {
		return report, fmt.Errorf("%w: tick time is null", generic.ErrInvalidTimePoint)
	}

	s.mu.Lock()
	if !s.lastTick.IsNull() && !now.After(s.lastTick) {
		s.mu.Unlock()
		report.Skipped = true
		return report, nil
	}
	s.lastTick = now
	var due []generic.ScheduledEvent
	for {
		root, ok := s.heap.Peek()
		if !ok || root.Event.Time.After(now) {
			break
		}
		s.heap.Pop()
		due = append(due, root)
	}
	s.mu.Unlock()

	start := time.Now()
	results := make([]contractResult, len(due))

	g, gctx := errgroup.WithContext(ctx)
	if s.Parallelism > 0 {
		g.SetLimit(s.Parallelism)
	}
	for i, ptr := range due {
		i, ptr := i, ptr
		g.Go(func() error {
			results[i] = s.runContract(gctx, ptr, now)
			return nil
		})
	}
	_ = g.Wait()

	s.mu.Lock()
	for i, res := range results {
		report.Applied += res.applied
		if res.failure != nil {
			report.Failures = append(report.Failures, res.failure)
		}
		switch {
		case res.cs == nil:
			// Deleted while due; nothing to reschedule.
			if res.failure != nil {
				s.heap.Push(due[i])
			}
		case res.cs.Done():
			report.Completed = append(report.Completed, res.cs.ID)
		default:
			p, _ := res.cs.Pointer()
			s.heap.Push(p)
		}
	}
	live := s.heap.Len()
	s.mu.Unlock()

	report.Contracts = len(due)
	report.Duration = time.Since(start)
	s.Metrics.TickCompleted(report.Duration, live)

	if len(due) > 0 {
		s.Logger.Info("tick completed",
			zap.Stringer("now", now),
			zap.Int("contracts", report.Contracts),
			zap.Int("applied", report.Applied),
			zap.Int("completed", len(report.Completed)),
			zap.Int("failed", len(report.Failures)),
			zap.Int("live", live))
	}
	return report, ctx.Err()
}

// Status returns the heap size, its root and the last tick time.
func (s *Scheduler) Status() SchedulerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := SchedulerStatus{Live: s.heap.Len(), LastTick: s.lastTick}
	if root, ok := s.heap.Peek(); ok {
		st.Next = &root
	}
	return st
}

// Live is the number of contracts with pending events.
func (s *Scheduler) Live() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.heap.Len()
}

// Pointer returns the heap entry held for a contract.
func (s *Scheduler) Pointer(id generic.ContractID) (generic.ScheduledEvent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.heap.Get(id)
}

type contractResult struct {
	cs      *ContractState
	applied int
	failure *ApplyError
}

func (s *Scheduler) runContract(ctx context.Context, ptr generic.ScheduledEvent, now generic.TimePoint) contractResult {
	cs, err := s.Store.Get(ctx, ptr.ContractID)
	if err != nil {
		if errors.Is(err, generic.ErrContractNotFound) {
			s.Logger.Warn("scheduled contract missing from store", zap.String("contract_id", string(ptr.ContractID)))
			return contractResult{}
		}
		return contractResult{failure: &ApplyError{ContractID: ptr.ContractID, Index: ptr.Index, Event: ptr.Event, Err: err}}
	}
	records, err := s.advance(ctx, cs, now)
	res := contractResult{cs: cs, applied: len(records)}
	if err != nil {
		var applyErr *ApplyError
		if !errors.As(err, &applyErr) {
			applyErr = &ApplyError{ContractID: cs.ID, Index: cs.NextEvent, Err: err}
		}
		res.failure = applyErr
	}
	return res
}

// advance applies cs's events due at now one at a time, stopping at the
// first failure. cs reflects every committed event on return.
func (s *Scheduler) advance(ctx context.Context, cs *ContractState, now generic.TimePoint) ([]EventRecord, error) {
	var records []EventRecord
	for {
		ev, ok := cs.Next()
		if !ok || ev.Time.After(now) {
			return records, nil
		}
		if err := ctx.Err(); err != nil {
			return records, err
		}
		rec, err := s.applyOne(ctx, cs, ev)
		if err != nil {
			s.Metrics.EventFailed(cs.Terms.ContractType, ev.Type)
			s.Logger.Error("event application failed",
				zap.String("contract_id", string(cs.ID)),
				zap.Int("index", cs.NextEvent),
				zap.Stringer("event", ev),
				zap.Error(err))
			return records, err
		}
		s.Metrics.EventApplied(cs.Terms.ContractType, ev.Type)
		records = append(records, rec)
	}
}

func (s *Scheduler) applyOne(ctx context.Context, cs *ContractState, ev generic.Event) (EventRecord, error) {
	index := cs.NextEvent
	fail := func(err error) (EventRecord, error) {
		return EventRecord{}, &ApplyError{ContractID: cs.ID, Index: index, Event: ev, Err: err}
	}

	payoff, next, err := s.Engine.Progress(ctx, ev, &cs.Terms, cs.State, s.Oracle)
	if err != nil {
		return fail(err)
	}
	rec := EventRecord{ContractID: cs.ID, Index: index, Event: ev, Payoff: payoff, State: next}

	if tr, ok := NewTransfer(cs, index, ev, payoff); ok {
		if s.Ledger != nil {
			if err := s.Ledger.Transfer(ctx, tr); err != nil && !errors.Is(err, generic.ErrDuplicateIdempotencyKey) {
				return fail(err)
			}
		}
		rec.TransferID = tr.ID
	}

	if err := s.Store.CommitEvent(ctx, cs.ID, rec); err != nil {
		return fail(err)
	}
	cs.State = next
	cs.NextEvent++

	s.Logger.Debug("event applied",
		zap.String("contract_id", string(cs.ID)),
		zap.Int("index", index),
		zap.Stringer("event", ev),
		zap.Stringer("payoff", payoff))
	return rec, nil
}

// schedule points the heap at cs's next event or removes it when done.
func (s *Scheduler) schedule(cs *ContractState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := cs.Pointer(); ok {
		s.heap.Push(p)
		return
	}
	s.heap.Remove(cs.ID)
}
