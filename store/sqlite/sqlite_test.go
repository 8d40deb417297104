package sqlite_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/actus-engine/actus"
	"github.com/warp/actus-engine/generic"
	"github.com/warp/actus-engine/pam"
	"github.com/warp/actus-engine/store/sqlite"
)

func TestStore_CreateGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	cs := deployed(t, "loan-1")

	require.NoError(t, s.Create(ctx, cs))

	got, err := s.Get(ctx, "loan-1")
	require.NoError(t, err)
	assert.Equal(t, cs.ID, got.ID)
	assert.Equal(t, cs.Schedule, got.Schedule)
	assert.Equal(t, cs.DeployedAt, got.DeployedAt)
	assert.Equal(t, 0, got.NextEvent)
	assert.Equal(t, cs.Terms.ContractType, got.Terms.ContractType)
	assert.True(t, cs.Terms.NotionalPrincipal.Equal(got.Terms.NotionalPrincipal))
	assert.Equal(t, cs.Terms.CycleOfInterestPayment, got.Terms.CycleOfInterestPayment)
	assert.True(t, cs.State.NominalInterestRate.Equal(got.State.NominalInterestRate))

	err = s.Create(ctx, cs)
	assert.True(t, errors.Is(err, generic.ErrContractExists))

	_, err = s.Get(ctx, "missing")
	assert.True(t, errors.Is(err, generic.ErrContractNotFound))
}

func TestStore_CommitEvent_GuardsTheIndex(t *testing.T) {
	// GIVEN: A stored contract at event 0
	// WHEN: Committing index 0, then 0 again, then 2
	// THEN: Only the first commit lands; the others are concurrent modifications

	ctx := context.Background()
	s := newStore(t)
	cs := deployed(t, "loan-1")
	require.NoError(t, s.Create(ctx, cs))

	rec := actus.EventRecord{
		ContractID: cs.ID,
		Index:      0,
		Event:      cs.Schedule[0],
		Payoff:     generic.MustParseNumber("-1000"),
		State:      cs.State,
		TransferID: "tr-0",
	}
	rec.State.NotionalPrincipal = generic.MustParseNumber("1000")
	require.NoError(t, s.CommitEvent(ctx, cs.ID, rec))

	err := s.CommitEvent(ctx, cs.ID, rec)
	assert.True(t, errors.Is(err, generic.ErrConcurrentModification))

	rec.Index = 2
	err = s.CommitEvent(ctx, cs.ID, rec)
	assert.True(t, errors.Is(err, generic.ErrConcurrentModification))

	err = s.CommitEvent(ctx, "missing", rec)
	assert.True(t, errors.Is(err, generic.ErrContractNotFound))

	got, err := s.Get(ctx, cs.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.NextEvent)
	assert.True(t, got.State.NotionalPrincipal.Equal(generic.MustParseNumber("1000")))

	history, err := s.History(ctx, cs.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, cs.Schedule[0], history[0].Event)
	assert.Equal(t, "tr-0", history[0].TransferID)
	assert.True(t, history[0].Payoff.Equal(generic.MustParseNumber("-1000")))
}

func TestStore_ReplacePendingAndDelete(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	cs := deployed(t, "loan-1")
	require.NoError(t, s.Create(ctx, cs))

	ce := generic.NewEvent(generic.NewTimePoint(2024, time.June, 1), generic.EventCE)
	pending := append([]generic.Event{ce}, cs.Schedule...)

	err := s.ReplacePending(ctx, cs.ID, 1, pending)
	assert.True(t, errors.Is(err, generic.ErrConcurrentModification))

	require.NoError(t, s.ReplacePending(ctx, cs.ID, 0, pending))
	got, err := s.Get(ctx, cs.ID)
	require.NoError(t, err)
	require.Len(t, got.Schedule, len(cs.Schedule)+1)
	assert.Equal(t, ce, got.Schedule[0])

	require.NoError(t, s.Delete(ctx, cs.ID))
	assert.True(t, errors.Is(s.Delete(ctx, cs.ID), generic.ErrContractNotFound))
	_, err = s.History(ctx, cs.ID)
	assert.True(t, errors.Is(err, generic.ErrContractNotFound))
}

func TestStore_EventTypesStoredAsCodes(t *testing.T) {
	// GIVEN: A committed IED event and its transfer
	// WHEN: Reading the raw rows back
	// THEN: Both tables hold the ACTUS code, and an unknown code fails the read

	ctx := context.Background()
	s := newStore(t)
	ledger := actus.NewLedger(s)
	cs := deployed(t, "loan-1")
	require.NoError(t, s.Create(ctx, cs))

	tr, ok := actus.NewTransfer(cs, 0, cs.Schedule[0], generic.MustParseNumber("-1000"))
	require.True(t, ok)
	require.NoError(t, ledger.Transfer(ctx, tr))
	require.NoError(t, s.CommitEvent(ctx, cs.ID, actus.EventRecord{
		ContractID: cs.ID,
		Index:      0,
		Event:      cs.Schedule[0],
		Payoff:     generic.MustParseNumber("-1000"),
		State:      cs.State,
		TransferID: tr.ID,
	}))

	var eventCode, transferCode string
	require.NoError(t, s.WithTx(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, "SELECT event_type FROM contract_events WHERE contract_id = ?", "loan-1").Scan(&eventCode); err != nil {
			return err
		}
		return tx.QueryRowContext(ctx, "SELECT event_type FROM transfers WHERE contract_id = ?", "loan-1").Scan(&transferCode)
	}))
	assert.Equal(t, "IED", eventCode)
	assert.Equal(t, "IED", transferCode)

	history, err := s.History(ctx, cs.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, generic.EventIED, history[0].Event.Type)

	require.NoError(t, s.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "UPDATE contract_events SET event_type = 'XX' WHERE contract_id = ?", "loan-1")
		return err
	}))
	_, err = s.History(ctx, cs.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "XX")
}

func TestStore_ListOrdersByID(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, s.Create(ctx, deployed(t, id)))
	}

	all, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, generic.ContractID("a"), all[0].ID)
	assert.Equal(t, generic.ContractID("c"), all[2].ID)
}

func TestStore_Transfers_AppendOnlyWithUniqueKeys(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	ledger := actus.NewLedger(s)
	cs := deployed(t, "loan-1")

	tr, ok := actus.NewTransfer(cs, 1, cs.Schedule[1], generic.MustParseNumber("50"))
	require.True(t, ok)
	require.NoError(t, ledger.Transfer(ctx, tr))

	exists, err := s.TransferExists(ctx, tr.IdempotencyKey)
	require.NoError(t, err)
	assert.True(t, exists)

	// The store enforces the key even when the ledger check is bypassed.
	err = s.AppendTransfer(ctx, tr)
	assert.True(t, errors.Is(err, generic.ErrDuplicateIdempotencyKey))

	first, ok := actus.NewTransfer(cs, 0, cs.Schedule[0], generic.MustParseNumber("-1000"))
	require.True(t, ok)
	require.NoError(t, ledger.Transfer(ctx, first))

	transfers, err := s.Transfers(ctx, cs.ID)
	require.NoError(t, err)
	require.Len(t, transfers, 2)
	assert.Equal(t, 0, transfers[0].EventIndex)
	assert.Equal(t, "bank", transfers[0].From)
	assert.True(t, transfers[0].Amount.Equal(generic.MustParseNumber("1000")))
	assert.Equal(t, cs.Schedule[1].Time, transfers[1].At)
	assert.Equal(t, generic.EventIP, transfers[1].EventType)

	all, err := s.Transfers(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestStore_Observations_LatestWins(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	_, err := s.Latest(ctx, "SOFR")
	assert.True(t, errors.Is(err, generic.ErrLookup))
	assert.True(t, errors.Is(err, generic.ErrObservationNotFound))

	record := func(day int, value string) {
		require.NoError(t, s.RecordObservation(ctx, actus.Observation{
			MarketObjectCode: "SOFR",
			Time:             generic.NewTimePoint(2024, time.March, day),
			Value:            generic.MustParseNumber(value),
		}))
	}
	record(2, "0.051")
	record(1, "0.050")
	record(2, "0.052")

	latest, err := s.Latest(ctx, "SOFR")
	require.NoError(t, err)
	assert.True(t, latest.Value.Equal(generic.MustParseNumber("0.052")))

	series, err := s.Observations(ctx, "SOFR")
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, generic.NewTimePoint(2024, time.March, 1), series[0].Time)
}

func TestStore_DrivesTheScheduler(t *testing.T) {
	// GIVEN: A scheduler persisting to SQLite
	// WHEN: It runs a loan to maturity and a second scheduler restores
	// THEN: History and transfers are complete and nothing is left to schedule

	ctx := context.Background()
	s := newStore(t)
	engine := actus.NewEngine(pam.New())
	sched := actus.NewScheduler(engine, s, s, actus.NewLedger(s), nil)

	cs, err := sched.Deploy(ctx, generic.NewTimePoint(2023, time.December, 31), bulletLoan())
	require.NoError(t, err)
	report, err := sched.Tick(ctx, generic.NewTimePoint(2030, time.January, 1))
	require.NoError(t, err)
	assert.Equal(t, len(cs.Schedule), report.Applied)

	history, err := s.History(ctx, cs.ID)
	require.NoError(t, err)
	assert.Len(t, history, len(cs.Schedule))

	transfers, err := s.Transfers(ctx, cs.ID)
	require.NoError(t, err)
	assert.True(t, actus.Balance(transfers, "bank", "USD").Equal(generic.MustParseNumber("150")))

	restored := actus.NewScheduler(engine, s, s, actus.NewLedger(s), nil)
	require.NoError(t, restored.Restore(ctx))
	assert.Equal(t, 0, restored.Live())
}

func TestStore_Reset(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.Create(ctx, deployed(t, "loan-1")))

	require.NoError(t, s.Reset(ctx))
	all, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

// =============================================================================
// TEST HELPERS
// =============================================================================

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(filepath.Join(t.TempDir(), "actus.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func bulletLoan() actus.ContractTerms {
	return pam.BulletLoanTerms("bank", "alice", "USD",
		generic.MustParseNumber("1000"), generic.MustParseNumber("0.05"),
		generic.NewTimePoint(2024, time.January, 1), generic.NewTimePoint(2027, time.January, 1), "P1YL0")
}

func deployed(t *testing.T, id string) *actus.ContractState {
	t.Helper()
	cs, err := actus.NewEngine(pam.New()).Deploy(generic.NewTimePoint(2023, time.December, 31), bulletLoan())
	require.NoError(t, err)
	cs.ID = generic.ContractID(id)
	return cs
}
