/*
Package ann implements the Annuity contract type.

An ANN contract amortizes its notional with a level payment: every principal
redemption date pays the same total amount, interest first and principal for
the rest. The level amount is recomputed whenever the rate or the notional
changes outside the plan (rate resets, prepayments that reduce the amount).

ANNUITY FORMULA:
  For redemption dates t_1 < ... < t_m after s (t_0 = s), notional n,
  accrued interest a and rate r:

              (n + a) * P_0
    A = -------------------------     P_i = prod_{j=i..m-1} (1 + r * Y(t_j, t_j+1))
         1 + sum_{i=1..m-1} P_i

  With one date left this is n + a plus the interest up to that date.

SCHEDULE:
  Everything PAM schedules, plus
  PR     redemption cycle before maturity
  IP     falls back to the redemption cycle when no interest cycle is given
  IPCB   base fixing cycle before maturity, when the base is lagged (NTL)
*/
package ann

import (
	"github.com/warp/actus-engine/actus"
	"github.com/warp/actus-engine/generic"
	"github.com/warp/actus-engine/pam"
)

// Annuity is the ANN contract type.
type Annuity struct{}

func New() *Annuity { return &Annuity{} }

func (*Annuity) Code() actus.ContractTypeCode { return actus.ContractTypeANN }

func (*Annuity) Schedule(t0 generic.TimePoint, terms *actus.ContractTerms) ([]generic.Event, error) {
	md := terms.Maturity()
	events := pam.SingleEvents(terms, md)

	redemptions, err := redemptionTimes(terms, false)
	if err != nil {
		return nil, err
	}
	events = append(events, generic.EventsAt(redemptions, generic.EventPR)...)

	anchor, cycle := terms.CycleAnchorDateOfInterestPayment, terms.CycleOfInterestPayment
	if anchor.IsNull() && cycle == nil {
		anchor, cycle = terms.CycleAnchorDateOfPrincipalRedemption, terms.CycleOfPrincipalRedemption
	}
	interest, err := pam.InterestEvents(terms, anchor, cycle, md)
	if err != nil {
		return nil, err
	}
	fees, err := pam.FeeEvents(terms, md)
	if err != nil {
		return nil, err
	}
	resets, err := pam.RateResetEvents(t0, terms, md)
	if err != nil {
		return nil, err
	}
	scaling, err := pam.ScalingEvents(terms, md)
	if err != nil {
		return nil, err
	}
	prepayments, err := pam.PrepaymentEvents(terms, md)
	if err != nil {
		return nil, err
	}

	var fixings []generic.TimePoint
	if terms.InterestCalculationBase == actus.InterestBaseNotionalLagged {
		fixings, err = pam.RecurringTimes(terms, nil, nil,
			terms.CycleAnchorDateOfInterestCalculationBase, terms.CycleOfInterestCalculationBase, md, false)
		if err != nil {
			return nil, err
		}
	}

	for _, family := range [][]generic.Event{interest, fees, resets, scaling, prepayments, generic.EventsAt(fixings, generic.EventIPCB)} {
		events = append(events, family...)
	}
	return pam.ShiftEvents(terms, events), nil
}

// InitialState is the PAM initial state plus the level payment.
func (*Annuity) InitialState(t0 generic.TimePoint, terms *actus.ContractTerms, schedule []generic.Event) (actus.RunningState, error) {
	st, err := pam.InitialState(t0, terms, schedule)
	if err != nil {
		return st, err
	}
	st.NextPrincipalRedemptionPayment = generic.Zero
	if !terms.NextPrincipalRedemptionPayment.IsNull() {
		st.NextPrincipalRedemptionPayment = terms.ContractRole.Sign().Mul(terms.NextPrincipalRedemptionPayment)
		return st, nil
	}
	if terms.InitialExchangeDate.After(t0) {
		return st, nil
	}
	env := &actus.Env{Terms: terms}
	st.NextPrincipalRedemptionPayment, err = levelPayment(env, t0, st)
	return st, err
}

func (*Annuity) Functions() map[generic.EventType]actus.FunctionPair {
	fns := pam.Functions()
	fns[generic.EventIED] = actus.FunctionPair{Payoff: actus.POFInitialExchange, Transition: stfInitialExchange}
	fns[generic.EventPR] = actus.FunctionPair{Payoff: pofPrincipalRedemption, Transition: stfPrincipalRedemption}
	fns[generic.EventIPCB] = actus.FunctionPair{Payoff: actus.POFZero, Transition: stfInterestBaseFixing}
	fns[generic.EventRR] = actus.FunctionPair{Payoff: actus.POFZero, Transition: recomputing(fns[generic.EventRR].Transition)}
	fns[generic.EventRRF] = actus.FunctionPair{Payoff: actus.POFZero, Transition: recomputing(fns[generic.EventRRF].Transition)}
	fns[generic.EventPP] = actus.FunctionPair{Payoff: actus.POFPrepayment, Transition: stfPrepayment}
	return fns
}

// =============================================================================
// LEVEL PAYMENT
// =============================================================================

// redemptionTimes returns the business-day shifted redemption dates.
// includeEnd adds the maturity date, the final payment of the annuity.
func redemptionTimes(terms *actus.ContractTerms, includeEnd bool) ([]generic.TimePoint, error) {
	times, err := pam.RecurringTimes(terms,
		terms.ArrayCycleAnchorDateOfPrincipalRedemption, terms.ArrayCycleOfPrincipalRedemption,
		terms.CycleAnchorDateOfPrincipalRedemption, terms.CycleOfPrincipalRedemption,
		terms.Maturity(), includeEnd)
	if err != nil {
		return nil, err
	}
	if includeEnd && len(times) == 0 && !terms.Maturity().IsNull() {
		times = []generic.TimePoint{terms.Maturity()}
	}
	if !includeEnd {
		return times, nil
	}
	for i := range times {
		times[i] = terms.Shift(times[i])
	}
	return times, nil
}

// Payment is the level amount that pays off notional plus accrued over the
// given dates after from.
func Payment(env *actus.Env, from generic.TimePoint, dates []generic.TimePoint, notional, accrued, rate generic.Number) (generic.Number, error) {
	var remaining []generic.TimePoint
	for _, t := range dates {
		if t.After(from) {
			remaining = append(remaining, t)
		}
	}
	total := notional.Add(accrued)
	if len(remaining) == 0 {
		return total, nil
	}

	growth := generic.One
	sum := generic.Zero
	for j := len(remaining) - 2; j >= 0; j-- {
		y, err := env.YearFraction(remaining[j], remaining[j+1])
		if err != nil {
			return generic.Null(), err
		}
		growth = growth.Mul(generic.One.Add(rate.Mul(y)))
		sum = sum.Add(growth)
	}
	first, err := env.YearFraction(from, remaining[0])
	if err != nil {
		return generic.Null(), err
	}
	growth = growth.Mul(generic.One.Add(rate.Mul(first)))
	return total.Mul(growth).Div(generic.One.Add(sum))
}

func levelPayment(env *actus.Env, from generic.TimePoint, st actus.RunningState) (generic.Number, error) {
	dates, err := redemptionTimes(env.Terms, true)
	if err != nil {
		return generic.Null(), err
	}
	return Payment(env, from, dates, st.NotionalPrincipal, st.AccruedInterest, st.NominalInterestRate)
}

// recomputing runs a transition, then refreshes the level payment unless it
// was fixed in the terms.
func recomputing(inner actus.TransitionFunc) actus.TransitionFunc {
	return func(env *actus.Env, ev generic.Event, st actus.RunningState) (actus.RunningState, error) {
		next, err := inner(env, ev, st)
		if err != nil || !env.Terms.NextPrincipalRedemptionPayment.IsNull() {
			return next, err
		}
		next.NextPrincipalRedemptionPayment, err = levelPayment(env, ev.Time, next)
		return next, err
	}
}

// =============================================================================
// FUNCTIONS
// =============================================================================

var stfInitialExchange = recomputing(actus.STFInitialExchange)

// stfPrepayment lowers the level payment only when the prepayment reduces
// the amount; otherwise the term shortens.
var stfPrepayment = func(env *actus.Env, ev generic.Event, st actus.RunningState) (actus.RunningState, error) {
	if env.Terms.PrepaymentEffect == actus.PrepaymentReduceAmount {
		return recomputing(actus.STFPrepayment)(env, ev, st)
	}
	return actus.STFPrepayment(env, ev, st)
}

// principalDue is the principal part of the level payment at the event: the
// payment minus the interest settled at the same date, kept between zero and
// the outstanding notional.
func principalDue(ev generic.Event, acc actus.RunningState) generic.Number {
	interest := acc.AccruedInterest
	if !acc.LastInterestPaymentDate.IsNull() && acc.LastInterestPaymentDate.Equal(ev.Time) {
		interest = interest.Add(acc.LastInterestPaid)
	}
	principal := acc.NextPrincipalRedemptionPayment.Sub(interest)

	lo, hi := generic.Zero, acc.NotionalPrincipal
	if hi.IsNegative() {
		lo, hi = hi, generic.Zero
	}
	return principal.Max(lo).Min(hi)
}

var pofPrincipalRedemption = actus.Payoff(func(_ *actus.Env, ev generic.Event, acc actus.RunningState) (generic.Number, error) {
	return acc.NotionalScalingMultiplier.Mul(principalDue(ev, acc)), nil
})

var stfPrincipalRedemption = actus.Transition(func(_ *actus.Env, ev generic.Event, st actus.RunningState) (actus.RunningState, error) {
	st.NotionalPrincipal = st.NotionalPrincipal.Sub(principalDue(ev, st))
	return st, nil
})

var stfInterestBaseFixing = actus.Transition(func(_ *actus.Env, _ generic.Event, st actus.RunningState) (actus.RunningState, error) {
	st.InterestCalculationBaseAmount = st.NotionalPrincipal
	return st, nil
})

var _ actus.ContractType = (*Annuity)(nil)
