package ann_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/actus-engine/actus"
	"github.com/warp/actus-engine/ann"
	"github.com/warp/actus-engine/generic"
	"github.com/warp/actus-engine/pam"
)

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

// float converts a non-null Number for approximate comparisons.
func float(t *testing.T, n generic.Number) float64 {
	t.Helper()
	d, ok := n.Decimal()
	require.True(t, ok, "expected a non-null number")
	return d.InexactFloat64()
}

func newEngine() *actus.Engine {
	return actus.NewEngine(pam.New(), ann.New())
}

func monthly(rate string) actus.ContractTerms {
	return ann.AnnuityTerms("bank", "bob", "EUR", num("1200"), num(rate),
		date(2024, time.January, 1), date(2025, time.January, 1), "P1ML0")
}

func byType(records []actus.EventRecord, typ generic.EventType) []actus.EventRecord {
	var out []actus.EventRecord
	for _, r := range records {
		if r.Event.Type == typ {
			out = append(out, r)
		}
	}
	return out
}

func TestANN_Schedule_RedeemsMonthlyWithInterestAtEachDate(t *testing.T) {
	cs, err := newEngine().Deploy(date(2023, time.December, 31), monthly("0.12"))
	require.NoError(t, err)

	var prs, ips int
	for _, ev := range cs.Schedule {
		switch ev.Type {
		case generic.EventPR:
			prs++
			assert.True(t, ev.Time.Before(date(2025, time.January, 1)))
		case generic.EventIP:
			ips++
		}
	}
	assert.Equal(t, 11, prs)
	assert.Equal(t, 12, ips)
	assert.Equal(t, generic.EventMD, cs.Schedule[len(cs.Schedule)-1].Type)
}

func TestANN_ZeroRate_RepaysInEqualInstalments(t *testing.T) {
	// GIVEN: 1200 at 0% over twelve monthly dates
	// THEN: Every redemption and the maturity pay 100

	records, err := actus.Project(context.Background(), newEngine(), date(2023, time.December, 31), monthly("0"), nil)
	require.NoError(t, err)

	assertNumber(t, "100", records[0].State.NextPrincipalRedemptionPayment)
	prs := byType(records, generic.EventPR)
	require.Len(t, prs, 11)
	for _, pr := range prs {
		assertNumber(t, "100", pr.Payoff)
	}
	md := records[len(records)-1]
	assert.Equal(t, generic.EventMD, md.Event.Type)
	assertNumber(t, "100", md.Payoff)
	assertNumber(t, "0", md.State.NotionalPrincipal)
}

func TestANN_LevelPayment_AmortizesFully(t *testing.T) {
	// GIVEN: 1200 at 12%, 30E/360, monthly
	// WHEN: Projecting the whole contract
	// THEN: Interest plus principal is the same level amount on every date,
	//       principal sums to the notional and almost nothing is left for MD

	records, err := actus.Project(context.Background(), newEngine(), date(2023, time.December, 31), monthly("0.12"), nil)
	require.NoError(t, err)

	level := records[0].State.NextPrincipalRedemptionPayment
	// 1200 * 0.01 / (1 - 1.01^-12)
	assert.InDelta(t, 106.6185, float(t, level), 0.001)

	ips := byType(records, generic.EventIP)
	prs := byType(records, generic.EventPR)
	require.Len(t, prs, 11)
	for i, pr := range prs {
		assert.Equal(t, ips[i].Event.Time, pr.Event.Time)
		assertNumber(t, level.String(), ips[i].Payoff.Add(pr.Payoff))
	}

	principal := generic.Zero
	for _, pr := range prs {
		principal = principal.Add(pr.Payoff)
	}
	md := records[len(records)-1]
	assertNumber(t, "1200", principal.Add(md.Payoff))
	assert.InDelta(t, float(t, level), float(t, md.Payoff.Add(ips[len(ips)-1].Payoff)), 0.01)
}

func TestANN_RateReset_RecomputesLevelPayment(t *testing.T) {
	// GIVEN: A 6% annuity resetting after six months to 12%
	// THEN: The level payment rises at the reset

	terms := monthly("0.06")
	terms.CycleAnchorDateOfRateReset = date(2024, time.July, 1)
	terms.CycleOfRateReset = generic.NewCycle(1, generic.UnitYear)
	terms.MarketObjectCodeOfRateReset = "EURIBOR"

	oracle := actus.OracleFunc(func(_ context.Context, code string) (actus.Observation, error) {
		return actus.Observation{MarketObjectCode: code, Value: num("0.12")}, nil
	})
	records, err := actus.Project(context.Background(), newEngine(), date(2023, time.December, 31), terms, oracle)
	require.NoError(t, err)

	resets := byType(records, generic.EventRR)
	require.Len(t, resets, 1)
	before := records[resets[0].Index-1].State.NextPrincipalRedemptionPayment
	after := resets[0].State.NextPrincipalRedemptionPayment
	assertNumber(t, "0.12", resets[0].State.NominalInterestRate)
	assert.True(t, after.GreaterThan(before), "level %s should exceed %s", after, before)

	md := records[len(records)-1]
	assertNumber(t, "0", md.State.NotionalPrincipal)
}

func TestANN_FixedNextPayment_IsNotRecomputed(t *testing.T) {
	terms := monthly("0.12")
	terms.NextPrincipalRedemptionPayment = num("150")

	records, err := actus.Project(context.Background(), newEngine(), date(2023, time.December, 31), terms, nil)
	require.NoError(t, err)
	for _, rec := range records[:len(records)-1] {
		assertNumber(t, "150", rec.State.NextPrincipalRedemptionPayment)
	}
	// 150 a month pays the loan off early; later redemptions are clamped to zero.
	last := byType(records, generic.EventPR)
	assertNumber(t, "0", last[len(last)-1].Payoff)
	assertNumber(t, "0", records[len(records)-1].Payoff)
}

func TestANN_LaggedInterestBase_FixesOnItsCycle(t *testing.T) {
	terms := monthly("0.12")
	terms.InterestCalculationBase = actus.InterestBaseNotionalLagged
	terms.CycleOfInterestCalculationBase = generic.NewCycle(3, generic.UnitMonth)

	records, err := actus.Project(context.Background(), newEngine(), date(2023, time.December, 31), terms, nil)
	require.NoError(t, err)

	fixings := byType(records, generic.EventIPCB)
	require.Len(t, fixings, 3)
	for _, f := range fixings {
		assert.True(t, f.State.InterestCalculationBaseAmount.Equal(f.State.NotionalPrincipal))
	}
	assertNumber(t, "1200", records[0].State.InterestCalculationBaseAmount)
}

func TestANN_EveryScheduledEventHasAFunctionPair(t *testing.T) {
	terms := monthly("0.05")
	terms.CycleOfRateReset = generic.NewCycle(6, generic.UnitMonth)
	terms.MarketObjectCodeOfRateReset = "EURIBOR"
	terms.NextResetRate = num("0.055")
	terms.PrepaymentEffect = actus.PrepaymentReduceAmount
	terms.CycleOfOptionality = generic.NewCycle(6, generic.UnitMonth)
	terms.ObjectCodeOfPrepaymentModel = "PREPAY"
	terms.InterestCalculationBase = actus.InterestBaseNotionalLagged
	terms.CycleOfInterestCalculationBase = generic.NewCycle(6, generic.UnitMonth)

	oracle := actus.OracleFunc(func(_ context.Context, code string) (actus.Observation, error) {
		values := map[string]string{"EURIBOR": "0.04", "PREPAY": "0.05"}
		return actus.Observation{MarketObjectCode: code, Value: num(values[code])}, nil
	})
	records, err := actus.Project(context.Background(), newEngine(), date(2023, time.December, 31), terms, oracle)
	require.NoError(t, err)

	seen := map[generic.EventType]bool{}
	for _, rec := range records {
		seen[rec.Event.Type] = true
	}
	for _, typ := range []generic.EventType{
		generic.EventIED, generic.EventIP, generic.EventPR, generic.EventRRF,
		generic.EventPP, generic.EventIPCB, generic.EventMD,
	} {
		assert.True(t, seen[typ], "missing %s", typ)
	}
	assertNumber(t, "0", records[len(records)-1].State.NotionalPrincipal)
}

func TestANN_Payment_SingleDateIncludesInterest(t *testing.T) {
	terms := monthly("0.12").WithDefaults()
	env := &actus.Env{Terms: &terms}

	a, err := ann.Payment(env, date(2024, time.January, 1),
		[]generic.TimePoint{date(2024, time.February, 1)}, num("1000"), num("0"), num("0.12"))
	require.NoError(t, err)
	assertNumber(t, "1010", a)
}
