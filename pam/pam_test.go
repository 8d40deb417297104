package pam_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/actus-engine/actus"
	"github.com/warp/actus-engine/generic"
	"github.com/warp/actus-engine/pam"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func date(y int, m time.Month, d int) generic.TimePoint {
	return generic.NewTimePoint(y, m, d)
}

func num(s string) generic.Number {
	return generic.MustParseNumber(s)
}

func assertNumber(t *testing.T, want string, got generic.Number) {
	t.Helper()
	assert.True(t, num(want).Equal(got), "want %s, got %s", want, got)
}

func newEngine() *actus.Engine {
	return actus.NewEngine(pam.New())
}

func loan(notional, rate string, ied, md generic.TimePoint) actus.ContractTerms {
	return pam.BulletLoanTerms("bank", "alice", "USD", num(notional), num(rate), ied, md, "P1YL0")
}

func types(events []generic.Event) []generic.EventType {
	out := make([]generic.EventType, len(events))
	for i, ev := range events {
		out[i] = ev.Type
	}
	return out
}

func fixedOracle(values map[string]string) actus.Oracle {
	return actus.OracleFunc(func(_ context.Context, code string) (actus.Observation, error) {
		v, ok := values[code]
		if !ok {
			return actus.Observation{}, generic.ErrObservationNotFound
		}
		return actus.Observation{MarketObjectCode: code, Value: num(v)}, nil
	})
}

// =============================================================================
// LIFECYCLE TESTS
// =============================================================================

func TestPAM_ZeroRateLoan_ExchangesAndRepaysNotional(t *testing.T) {
	// GIVEN: 1000 at 0%, no interest cycle
	// WHEN: Deploying before the initial exchange and applying every event
	// THEN: IED sets notional 1000 with zero rate and accrual; MD zeroes both
	//       and pays back 1000 plus the (zero) final accrual

	engine := newEngine()
	terms := pam.BulletLoanTerms("bank", "alice", "USD", num("1000"), num("0"),
		date(2024, time.January, 2), date(2025, time.January, 2), "")
	t0 := date(2024, time.January, 1)

	cs, err := engine.Deploy(t0, terms)
	require.NoError(t, err)
	require.Equal(t, []generic.EventType{generic.EventIED, generic.EventMD}, types(cs.Schedule))
	assertNumber(t, "0", cs.State.NotionalPrincipal)

	payoff, st, err := engine.Progress(context.Background(), cs.Schedule[0], &cs.Terms, cs.State, nil)
	require.NoError(t, err)
	assertNumber(t, "-1000", payoff)
	assertNumber(t, "1000", st.NotionalPrincipal)
	assertNumber(t, "0", st.NominalInterestRate)
	assertNumber(t, "0", st.AccruedInterest)

	payoff, st, err = engine.Progress(context.Background(), cs.Schedule[1], &cs.Terms, st, nil)
	require.NoError(t, err)
	assertNumber(t, "1000", payoff)
	assertNumber(t, "0", st.NotionalPrincipal)
	assertNumber(t, "0", st.NominalInterestRate)
	assert.Equal(t, actus.PerformanceMatured, st.ContractPerformance)
	assert.Equal(t, date(2025, time.January, 2), st.StatusDate)
}

func TestPAM_BulletLoan_PaysAnnualInterest(t *testing.T) {
	// GIVEN: 1000 at 5%, 30E/360, yearly interest over three years
	// WHEN: Projecting the contract
	// THEN: Three coupons of 50 and the notional back at maturity

	terms := loan("1000", "0.05", date(2024, time.January, 15), date(2027, time.January, 15))

	records, err := actus.Project(context.Background(), newEngine(), date(2024, time.January, 1), terms, nil)
	require.NoError(t, err)

	want := []struct {
		typ    generic.EventType
		payoff string
	}{
		{generic.EventIED, "-1000"},
		{generic.EventIP, "50"},
		{generic.EventIP, "50"},
		{generic.EventIP, "50"},
		{generic.EventMD, "1000"},
	}
	require.Len(t, records, len(want))
	for i, w := range want {
		assert.Equal(t, w.typ, records[i].Event.Type, "event %d", i)
		assertNumber(t, w.payoff, records[i].Payoff)
		assert.Equal(t, i, records[i].Index)
	}
	assert.Equal(t, date(2027, time.January, 15), records[4].Event.Time)
}

func TestPAM_DeployAfterInitialExchange_AccruesSinceLastPayment(t *testing.T) {
	// GIVEN: A loan exchanged on 2024-01-01 at 5%, yearly interest
	// WHEN: Deploying mid-period on 2024-07-01
	// THEN: Notional is live and half a year of interest has accrued

	terms := loan("1000", "0.05", date(2024, time.January, 1), date(2026, time.January, 1))
	cs, err := newEngine().Deploy(date(2024, time.July, 1), terms)
	require.NoError(t, err)

	assertNumber(t, "1000", cs.State.NotionalPrincipal)
	assertNumber(t, "0.05", cs.State.NominalInterestRate)
	assertNumber(t, "25", cs.State.AccruedInterest)
	assert.Equal(t, generic.EventIP, cs.Schedule[0].Type)
	for _, ev := range cs.Schedule {
		assert.True(t, ev.Time.After(date(2024, time.July, 1)))
	}
}

func TestPAM_ExplicitAccruedInterest_OverridesComputation(t *testing.T) {
	terms := loan("1000", "0.05", date(2024, time.January, 1), date(2026, time.January, 1))
	terms.AccruedInterest = num("7")

	cs, err := newEngine().Deploy(date(2024, time.July, 1), terms)
	require.NoError(t, err)
	assertNumber(t, "7", cs.State.AccruedInterest)
}

func TestPAM_LiabilityRole_FlipsSigns(t *testing.T) {
	// GIVEN: The borrower's side of a zero-rate loan
	// THEN: The borrower receives the notional at IED and repays at MD

	terms := loan("1000", "0", date(2024, time.January, 2), date(2025, time.January, 2))
	terms.ContractRole = actus.RoleRealPositionLiability

	records, err := actus.Project(context.Background(), newEngine(), date(2024, time.January, 1), terms, nil)
	require.NoError(t, err)
	assertNumber(t, "1000", records[0].Payoff)
	assertNumber(t, "-1000", records[0].State.NotionalPrincipal)
	assertNumber(t, "-1000", records[len(records)-1].Payoff)
}

// =============================================================================
// RATE RESET TESTS
// =============================================================================

func TestPAM_RateReset_AppliesSpreadAndLifeCap(t *testing.T) {
	// GIVEN: 5% floating note resetting yearly to index + 1%, capped at 7%
	// WHEN: The index reads 7% at the reset
	// THEN: The rate moves to 7% (8% capped) and the second coupon is 70

	terms := loan("1000", "0.05", date(2024, time.January, 1), date(2026, time.January, 1))
	terms.CycleOfRateReset = generic.NewCycle(1, generic.UnitYear)
	terms.MarketObjectCodeOfRateReset = "SOFR"
	terms.RateSpread = num("0.01")
	terms.LifeCap = num("0.07")

	records, err := actus.Project(context.Background(), newEngine(), date(2023, time.December, 31), terms,
		fixedOracle(map[string]string{"SOFR": "0.07"}))
	require.NoError(t, err)

	assert.Equal(t, []generic.EventType{
		generic.EventIED, generic.EventIP, generic.EventRR, generic.EventIP, generic.EventMD,
	}, func() []generic.EventType {
		out := make([]generic.EventType, len(records))
		for i, r := range records {
			out[i] = r.Event.Type
		}
		return out
	}())
	assertNumber(t, "50", records[1].Payoff)
	assertNumber(t, "0.07", records[2].State.NominalInterestRate)
	assertNumber(t, "70", records[3].Payoff)
}

func TestPAM_RateReset_PeriodBoundsLimitTheChange(t *testing.T) {
	terms := &actus.ContractTerms{
		RateMultiplier: num("1"),
		RateSpread:     num("0"),
		PeriodCap:      num("0.01"),
		PeriodFloor:    num("0.005"),
		LifeFloor:      num("0.02"),
	}

	assertNumber(t, "0.06", actus.ResetRate(terms, num("0.05"), num("0.09")))
	assertNumber(t, "0.045", actus.ResetRate(terms, num("0.05"), num("0.01")))
	assertNumber(t, "0.02", actus.ResetRate(terms, num("0.022"), num("0")))
}

func TestPAM_NextResetRate_MakesFirstFutureResetAFixing(t *testing.T) {
	terms := loan("1000", "0.05", date(2024, time.January, 1), date(2027, time.January, 1))
	terms.CycleOfRateReset = generic.NewCycle(1, generic.UnitYear)
	terms.MarketObjectCodeOfRateReset = "SOFR"
	terms.NextResetRate = num("0.06")

	cs, err := newEngine().Deploy(date(2023, time.December, 31), terms)
	require.NoError(t, err)

	var resets []generic.EventType
	for _, ev := range cs.Schedule {
		if ev.Type == generic.EventRR || ev.Type == generic.EventRRF {
			resets = append(resets, ev.Type)
		}
	}
	assert.Equal(t, []generic.EventType{generic.EventRRF, generic.EventRR}, resets)

	records, err := actus.Project(context.Background(), newEngine(), date(2023, time.December, 31), terms,
		fixedOracle(map[string]string{"SOFR": "0.04"}))
	require.NoError(t, err)
	for _, rec := range records {
		if rec.Event.Type == generic.EventRRF {
			assertNumber(t, "0.06", rec.State.NominalInterestRate)
		}
	}
}

func TestPAM_MissingObservation_IsLookupError(t *testing.T) {
	// GIVEN: A floating note whose index has no observation
	// WHEN: The reset is applied
	// THEN: A LookupError naming the market object stops the projection

	terms := loan("1000", "0.05", date(2024, time.January, 1), date(2026, time.January, 1))
	terms.CycleOfRateReset = generic.NewCycle(1, generic.UnitYear)
	terms.MarketObjectCodeOfRateReset = "SOFR"

	records, err := actus.Project(context.Background(), newEngine(), date(2023, time.December, 31), terms,
		fixedOracle(nil))
	require.Error(t, err)
	assert.True(t, errors.Is(err, generic.ErrLookup))

	var lookup *actus.LookupError
	require.True(t, errors.As(err, &lookup))
	assert.Equal(t, "SOFR", lookup.MarketObjectCode)

	var applyErr *actus.ApplyError
	require.True(t, errors.As(err, &applyErr))
	assert.Equal(t, generic.EventRR, applyErr.Event.Type)
	assert.Len(t, records, applyErr.Index)
}

// =============================================================================
// SCHEDULE TESTS
// =============================================================================

func TestPAM_Capitalization_SplitsInterestEvents(t *testing.T) {
	// GIVEN: Semi-annual interest capitalized until 2025-01-01
	// THEN: Points up to the capitalization end are IPCI, later ones IP

	terms := loan("1000", "0.04", date(2024, time.January, 1), date(2026, time.January, 1))
	terms.CycleOfInterestPayment = generic.NewCycle(6, generic.UnitMonth)
	terms.CycleAnchorDateOfInterestPayment = date(2024, time.July, 1)
	terms.CapitalizationEndDate = date(2025, time.January, 1)

	cs, err := newEngine().Deploy(date(2023, time.December, 31), terms)
	require.NoError(t, err)
	assert.Equal(t, []generic.EventType{
		generic.EventIED,
		generic.EventIPCI, generic.EventIPCI,
		generic.EventIP, generic.EventIP,
		generic.EventMD,
	}, types(cs.Schedule))

	records, err := actus.Project(context.Background(), newEngine(), date(2023, time.December, 31), terms, nil)
	require.NoError(t, err)
	// 1000 * 1.02 * 1.02
	assertNumber(t, "1040.4", records[2].State.NotionalPrincipal)
	assertNumber(t, "0", records[2].Payoff)
	assertNumber(t, "20.808", records[3].Payoff)
}

func TestPAM_Termination_DropsLaterEvents(t *testing.T) {
	// GIVEN: A zero-coupon schedule terminated at 990 on 2024-07-01
	// THEN: Nothing after the termination is scheduled and the termination
	//       pays the price plus half a year of 5% interest

	terms := pam.BulletLoanTerms("bank", "alice", "USD", num("1000"), num("0.05"),
		date(2024, time.January, 1), date(2026, time.January, 1), "")
	terms.TerminationDate = date(2024, time.July, 1)
	terms.PriceAtTerminationDate = num("990")

	records, err := actus.Project(context.Background(), newEngine(), date(2023, time.December, 31), terms, nil)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, generic.EventTD, records[1].Event.Type)
	assertNumber(t, "1015", records[1].Payoff)
	assert.Equal(t, actus.PerformanceTerminated, records[1].State.ContractPerformance)
}

func TestPAM_Termination_DropsSameDayEventsOrderedAfterIt(t *testing.T) {
	// GIVEN: A floating note terminated on the date of its first rate reset
	// WHEN: Deploying and projecting without any market data
	// THEN: The reset on the termination date is not scheduled, so the
	//       contract ends with TD and never asks the oracle

	terms := pam.BulletLoanTerms("bank", "alice", "USD", num("1000"), num("0.05"),
		date(2024, time.January, 1), date(2026, time.January, 1), "")
	terms.TerminationDate = date(2024, time.July, 1)
	terms.PriceAtTerminationDate = num("990")
	terms.CycleOfRateReset = generic.NewCycle(6, generic.UnitMonth)
	terms.CycleAnchorDateOfRateReset = date(2024, time.July, 1)
	terms.MarketObjectCodeOfRateReset = "SOFR"

	cs, err := newEngine().Deploy(date(2023, time.December, 31), terms)
	require.NoError(t, err)
	assert.Equal(t, []generic.EventType{generic.EventIED, generic.EventTD}, types(cs.Schedule))

	records, err := actus.Project(context.Background(), newEngine(), date(2023, time.December, 31), terms, nil)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, generic.EventTD, records[1].Event.Type)
	assert.Equal(t, actus.PerformanceTerminated, records[1].State.ContractPerformance)
}

func TestPAM_BusinessDayConvention_ShiftsWeekendEvents(t *testing.T) {
	// 2025-03-01 is a Saturday.
	terms := pam.BulletLoanTerms("bank", "alice", "USD", num("1000"), num("0"),
		date(2024, time.March, 1), date(2025, time.March, 1), "")
	terms.Calendar = generic.CalendarMondayToFriday
	terms.BusinessDayConvention = generic.BusinessDayShiftCalcFollowing

	cs, err := newEngine().Deploy(date(2024, time.February, 1), terms)
	require.NoError(t, err)
	md := cs.Schedule[len(cs.Schedule)-1]
	assert.Equal(t, generic.EventMD, md.Type)
	assert.Equal(t, date(2025, time.March, 3), md.Time)
}

func TestPAM_AbsoluteFee_PaysFlatAmount(t *testing.T) {
	terms := pam.BulletLoanTerms("bank", "alice", "USD", num("1000"), num("0"),
		date(2024, time.January, 1), date(2025, time.January, 1), "")
	terms.FeeRate = num("12.5")
	terms.FeeBasis = actus.FeeBasisAbsolute
	terms.CycleOfFee = generic.NewCycle(6, generic.UnitMonth)

	records, err := actus.Project(context.Background(), newEngine(), date(2023, time.December, 31), terms, nil)
	require.NoError(t, err)

	fees := 0
	for _, rec := range records {
		if rec.Event.Type == generic.EventFP {
			fees++
			assertNumber(t, "12.5", rec.Payoff)
		}
	}
	assert.Equal(t, 2, fees)
}

func TestPAM_CreditEvent_FollowsGraceAndDelinquencyPeriods(t *testing.T) {
	grace, err := generic.ParsePeriod("P1M")
	require.NoError(t, err)
	delinquency, err := generic.ParsePeriod("P3M")
	require.NoError(t, err)

	terms := &actus.ContractTerms{
		NonPerformingDate: date(2024, time.January, 1),
		GracePeriod:       grace,
		DelinquencyPeriod: delinquency,
	}
	assert.Equal(t, actus.PerformanceDelayed, actus.PerformanceAt(terms, date(2024, time.January, 15)))
	assert.Equal(t, actus.PerformanceDelinquent, actus.PerformanceAt(terms, date(2024, time.March, 1)))
	assert.Equal(t, actus.PerformanceDefault, actus.PerformanceAt(terms, date(2024, time.May, 1)))
	assert.Equal(t, actus.PerformanceDefault, actus.PerformanceAt(&actus.ContractTerms{}, date(2024, time.May, 1)))
}

// =============================================================================
// DISPATCH TESTS
// =============================================================================

func TestPAM_EveryScheduledEventHasAFunctionPair(t *testing.T) {
	// GIVEN: Terms exercising every PAM event family
	// WHEN: Deploying and applying every generated event in order
	// THEN: No event is unsupported

	terms := loan("1000", "0.05", date(2024, time.January, 1), date(2027, time.January, 1))
	terms.FeeRate = num("0.001")
	terms.FeeBasis = actus.FeeBasisNotional
	terms.CycleOfFee = generic.NewCycle(6, generic.UnitMonth)
	terms.CapitalizationEndDate = date(2024, time.June, 1)
	terms.CycleOfRateReset = generic.NewCycle(1, generic.UnitYear)
	terms.MarketObjectCodeOfRateReset = "SOFR"
	terms.ScalingEffect = actus.ScalingInterestNotional
	terms.ScalingIndexAtContractDealDate = num("100")
	terms.MarketObjectCodeOfScalingIndex = "CPI"
	terms.CycleOfScalingIndex = generic.NewCycle(1, generic.UnitYear)
	terms.PrepaymentEffect = actus.PrepaymentReduceAmount
	terms.CycleOfOptionality = generic.NewCycle(1, generic.UnitYear)
	terms.ObjectCodeOfPrepaymentModel = "PREPAY"
	terms.PenaltyType = actus.PenaltyFixedAmount
	terms.PenaltyRate = num("5")
	terms.PurchaseDate = date(2024, time.August, 1)
	terms.PriceAtPurchaseDate = num("1000")

	oracle := fixedOracle(map[string]string{"SOFR": "0.04", "CPI": "103", "PREPAY": "0.1"})
	records, err := actus.Project(context.Background(), newEngine(), date(2023, time.December, 31), terms, oracle)
	require.NoError(t, err)

	seen := map[generic.EventType]bool{}
	for _, rec := range records {
		seen[rec.Event.Type] = true
		assert.NoError(t, rec.State.Checked())
	}
	for _, typ := range []generic.EventType{
		generic.EventIED, generic.EventIPCI, generic.EventIP, generic.EventFP, generic.EventPRD,
		generic.EventRR, generic.EventSC, generic.EventPP, generic.EventPY, generic.EventMD,
	} {
		assert.True(t, seen[typ], "missing %s", typ)
	}
}

func TestPAM_UnsupportedEvent_IsStableError(t *testing.T) {
	engine := newEngine()
	terms := loan("1000", "0", date(2024, time.January, 1), date(2025, time.January, 1))
	cs, err := engine.Deploy(date(2023, time.December, 31), terms)
	require.NoError(t, err)

	_, _, err = engine.Progress(context.Background(),
		generic.NewEvent(date(2024, time.June, 1), generic.EventPR), &cs.Terms, cs.State, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, generic.ErrUnsupportedOperation))
	assert.False(t, engine.Supports(actus.ContractTypePAM, generic.EventPR))
	assert.True(t, engine.Supports(actus.ContractTypePAM, generic.EventCE))
}
