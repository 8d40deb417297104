package actus_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/actus-engine/actus"
	"github.com/warp/actus-engine/actus/store"
	"github.com/warp/actus-engine/generic"
	"github.com/warp/actus-engine/pam"
)

func TestScheduler_Tick_AppliesDueEventsAndWritesTransfers(t *testing.T) {
	// GIVEN: A 1000 bullet loan at 5% with annual coupons
	// WHEN: Ticking at the initial exchange and then at maturity
	// THEN: The lender pays 1000 out and receives 3 coupons plus principal

	ctx := context.Background()
	s, mem := newScheduler(nil)

	cs, err := s.Deploy(ctx, date(2023, time.December, 31), bulletLoan())
	require.NoError(t, err)
	require.Len(t, cs.Schedule, 5)
	assert.Equal(t, 1, s.Live())

	report, err := s.Tick(ctx, date(2024, time.January, 1))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Contracts)
	assert.Equal(t, 1, report.Applied)
	assert.Empty(t, report.Failures)

	ptr, ok := s.Pointer(cs.ID)
	require.True(t, ok)
	assert.Equal(t, 1, ptr.Index)
	assert.Equal(t, generic.EventIP, ptr.Event.Type)

	report, err = s.Tick(ctx, date(2027, time.January, 1))
	require.NoError(t, err)
	assert.Equal(t, 4, report.Applied)
	assert.Equal(t, []generic.ContractID{cs.ID}, report.Completed)
	assert.Equal(t, 0, s.Live())

	transfers, err := mem.Transfers(ctx, cs.ID)
	require.NoError(t, err)
	require.Len(t, transfers, 5)
	assert.Equal(t, "bank", transfers[0].From)
	assert.Equal(t, "alice", transfers[0].To)
	assertNumber(t, "1000", transfers[0].Amount)
	assertNumber(t, "150", actus.Balance(transfers, "bank", "USD"))
	assertNumber(t, "-150", actus.Balance(transfers, "alice", "USD"))

	history, err := mem.History(ctx, cs.ID)
	require.NoError(t, err)
	require.Len(t, history, 5)
	for i, rec := range history {
		assert.Equal(t, i, rec.Index)
	}
	assertNumber(t, "0", history[4].State.NotionalPrincipal)
}

func TestScheduler_Tick_NonAdvancingTimeIsSkipped(t *testing.T) {
	ctx := context.Background()
	s, _ := newScheduler(nil)
	_, err := s.Deploy(ctx, date(2023, time.December, 31), bulletLoan())
	require.NoError(t, err)

	_, err = s.Tick(ctx, date(2025, time.January, 1))
	require.NoError(t, err)

	for _, now := range []generic.TimePoint{date(2025, time.January, 1), date(2024, time.June, 1)} {
		report, err := s.Tick(ctx, now)
		require.NoError(t, err)
		assert.True(t, report.Skipped)
		assert.Zero(t, report.Applied)
	}
	assert.Equal(t, date(2025, time.January, 1), s.Status().LastTick)

	_, err = s.Tick(ctx, generic.NullTimePoint())
	assert.True(t, errors.Is(err, generic.ErrInvalidTimePoint))
}

func TestScheduler_Tick_FailedEventIsRetried(t *testing.T) {
	// GIVEN: A floating loan whose rate index is unavailable at the first reset
	// WHEN: Ticking through the reset date
	// THEN: The coupon before the reset is kept, the pointer stays on the
	//       reset, and a later tick applies it once the index is published

	ctx := context.Background()
	published := &atomic.Bool{}
	oracle := actus.OracleFunc(func(_ context.Context, code string) (actus.Observation, error) {
		if !published.Load() {
			return actus.Observation{}, generic.ErrObservationNotFound
		}
		return actus.Observation{MarketObjectCode: code, Value: num("0.04")}, nil
	})
	s, mem := newScheduler(oracle)

	terms := bulletLoan()
	terms.CycleAnchorDateOfRateReset = date(2025, time.January, 1)
	terms.CycleOfRateReset = generic.NewCycle(1, generic.UnitYear)
	terms.MarketObjectCodeOfRateReset = "SOFR"
	cs, err := s.Deploy(ctx, date(2023, time.December, 31), terms)
	require.NoError(t, err)

	report, err := s.Tick(ctx, date(2025, time.January, 1))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Applied)
	require.Len(t, report.Failures, 1)
	failure := report.Failures[0]
	assert.Equal(t, cs.ID, failure.ContractID)
	assert.Equal(t, generic.EventRR, failure.Event.Type)
	assert.True(t, errors.Is(failure, generic.ErrLookup))
	assert.True(t, errors.Is(failure, generic.ErrObservationNotFound))

	ptr, ok := s.Pointer(cs.ID)
	require.True(t, ok)
	assert.Equal(t, failure.Index, ptr.Index)

	published.Store(true)
	report, err = s.Tick(ctx, date(2025, time.January, 2))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Applied)
	assert.Empty(t, report.Failures)

	stored, err := mem.Get(ctx, cs.ID)
	require.NoError(t, err)
	assertNumber(t, "0.04", stored.State.NominalInterestRate)
	assert.Equal(t, failure.Index+1, stored.NextEvent)
}

func TestScheduler_Terminate_IsIdempotentOnTheHeap(t *testing.T) {
	ctx := context.Background()
	s, _ := newScheduler(nil)
	cs, err := s.Deploy(ctx, date(2023, time.December, 31), bulletLoan())
	require.NoError(t, err)

	require.NoError(t, s.Terminate(ctx, cs.ID))
	assert.Equal(t, 0, s.Live())

	err = s.Terminate(ctx, cs.ID)
	assert.True(t, errors.Is(err, generic.ErrContractNotFound))
	assert.Equal(t, 0, s.Live())

	report, err := s.Tick(ctx, date(2030, time.January, 1))
	require.NoError(t, err)
	assert.Zero(t, report.Contracts)
}

func TestScheduler_Deploy_SameTermsTwice(t *testing.T) {
	ctx := context.Background()
	s, _ := newScheduler(nil)
	t0 := date(2023, time.December, 31)

	first, err := s.Deploy(ctx, t0, bulletLoan())
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)

	_, err = s.Deploy(ctx, t0, bulletLoan())
	assert.True(t, errors.Is(err, generic.ErrContractExists))

	// A different deployment time is a different contract.
	second, err := s.Deploy(ctx, date(2023, time.December, 30), bulletLoan())
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 2, s.Live())
}

func TestScheduler_Progress_ManualApplication(t *testing.T) {
	ctx := context.Background()
	s, _ := newScheduler(nil)
	cs, err := s.Deploy(ctx, date(2023, time.December, 31), bulletLoan())
	require.NoError(t, err)

	_, err = s.Progress(ctx, cs.ID, date(2023, time.December, 31))
	assert.True(t, errors.Is(err, generic.ErrEventNotDue))

	records, err := s.Progress(ctx, cs.ID, date(2025, time.January, 1))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, generic.EventIED, records[0].Event.Type)
	assert.Equal(t, generic.EventIP, records[1].Event.Type)
	assertNumber(t, "50", records[1].Payoff)
	assert.NotEmpty(t, records[1].TransferID)

	ptr, ok := s.Pointer(cs.ID)
	require.True(t, ok)
	assert.Equal(t, 2, ptr.Index)

	_, err = s.Progress(ctx, cs.ID, date(2030, time.January, 1))
	require.NoError(t, err)
	assert.Equal(t, 0, s.Live())

	_, err = s.Progress(ctx, cs.ID, date(2031, time.January, 1))
	assert.True(t, errors.Is(err, generic.ErrContractCompleted))

	_, err = s.Progress(ctx, "missing", date(2031, time.January, 1))
	assert.True(t, errors.Is(err, generic.ErrContractNotFound))
}

func TestScheduler_InjectCreditEvent(t *testing.T) {
	// GIVEN: A live loan without delinquency terms
	// WHEN: A credit event is injected mid-life
	// THEN: It is applied in time order and marks the contract in default

	ctx := context.Background()
	s, _ := newScheduler(nil)
	cs, err := s.Deploy(ctx, date(2023, time.December, 31), bulletLoan())
	require.NoError(t, err)
	_, err = s.Tick(ctx, date(2024, time.January, 1))
	require.NoError(t, err)

	_, err = s.InjectCreditEvent(ctx, cs.ID, date(2024, time.January, 1))
	var vErr *actus.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "CREDIT_EVENT_BEFORE_STATUS_DATE", vErr.Code)

	updated, err := s.InjectCreditEvent(ctx, cs.ID, date(2024, time.June, 1))
	require.NoError(t, err)
	require.Len(t, updated.Schedule, 6)
	next, ok := updated.Next()
	require.True(t, ok)
	assert.Equal(t, generic.EventCE, next.Type)

	ptr, ok := s.Pointer(cs.ID)
	require.True(t, ok)
	assert.Equal(t, generic.EventCE, ptr.Event.Type)

	records, err := s.Progress(ctx, cs.ID, date(2024, time.June, 1))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, actus.PerformanceDefault, records[0].State.ContractPerformance)
	assertNumber(t, "0", records[0].Payoff)
}

func TestScheduler_Restore_RebuildsHeapFromStore(t *testing.T) {
	// GIVEN: Two contracts, one of them completed
	// WHEN: A fresh scheduler restores from the same store
	// THEN: Only the live contract is scheduled, at its stored pointer

	ctx := context.Background()
	mem := store.NewMemory()
	engine := actus.NewEngine(pam.New())
	first := actus.NewScheduler(engine, mem, nil, actus.NewLedger(mem), nil)

	short := pam.BulletLoanTerms("bank", "carol", "USD", num("500"), num("0"),
		date(2024, time.January, 1), date(2024, time.June, 1), "")
	done, err := first.Deploy(ctx, date(2023, time.December, 31), short)
	require.NoError(t, err)
	live, err := first.Deploy(ctx, date(2023, time.December, 31), bulletLoan())
	require.NoError(t, err)
	_, err = first.Tick(ctx, date(2024, time.July, 1))
	require.NoError(t, err)

	restarted := actus.NewScheduler(engine, mem, nil, actus.NewLedger(mem), nil)
	require.NoError(t, restarted.Restore(ctx))
	assert.Equal(t, 1, restarted.Live())

	_, ok := restarted.Pointer(done.ID)
	assert.False(t, ok)
	ptr, ok := restarted.Pointer(live.ID)
	require.True(t, ok)
	assert.Equal(t, 1, ptr.Index)
	assert.Equal(t, date(2025, time.January, 1), restarted.Status().Next.Event.Time)
}

func TestScheduler_Tick_RunsContractsInParallel(t *testing.T) {
	ctx := context.Background()
	s, mem := newScheduler(nil)
	s.Parallelism = 3

	for i := 0; i < 10; i++ {
		terms := bulletLoan()
		terms.ContractID = string(rune('a'+i)) + "-loan"
		_, err := s.Deploy(ctx, date(2023, time.December, 31), terms)
		require.NoError(t, err)
	}
	report, err := s.Tick(ctx, date(2027, time.January, 1))
	require.NoError(t, err)
	assert.Equal(t, 10, report.Contracts)
	assert.Equal(t, 50, report.Applied)
	assert.Len(t, report.Completed, 10)

	all, err := mem.Transfers(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 50)
}

func TestLedger_DuplicateKeyIsRejected(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	ledger := actus.NewLedger(mem)
	cs := &actus.ContractState{ID: "c1", Terms: bulletLoan()}

	tr, ok := actus.NewTransfer(cs, 3, generic.NewEvent(date(2025, time.January, 1), generic.EventIP), num("50"))
	require.True(t, ok)
	assert.Equal(t, "c1/3", tr.IdempotencyKey)
	assert.Equal(t, "alice", tr.From)
	assert.Equal(t, "bank", tr.To)

	require.NoError(t, ledger.Transfer(ctx, tr))
	assert.True(t, errors.Is(ledger.Transfer(ctx, tr), generic.ErrDuplicateIdempotencyKey))

	_, ok = actus.NewTransfer(cs, 4, generic.NewEvent(date(2025, time.January, 1), generic.EventRR), num("0"))
	assert.False(t, ok)
}

// =============================================================================
// TEST HELPERS
// =============================================================================

func newScheduler(oracle actus.Oracle) (*actus.Scheduler, *store.Memory) {
	mem := store.NewMemory()
	engine := actus.NewEngine(pam.New())
	return actus.NewScheduler(engine, mem, oracle, actus.NewLedger(mem), nil), mem
}

func assertNumber(t *testing.T, want string, got generic.Number) {
	t.Helper()
	assert.True(t, num(want).Equal(got), "want %s, got %s", want, got)
}
