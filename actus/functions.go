package actus

import (
	"github.com/warp/actus-engine/generic"
)

// =============================================================================
// SHARED PAYOFF AND TRANSITION FUNCTIONS
// =============================================================================
//
// Every transition first accrues interest and notional-based fees from the
// state's last event date to the event time, then applies its own change,
// then stamps the state with the event time. Payoffs read the same accrued
// values without mutating anything.
//
// Amounts in RunningState are already signed by the contract role, so only
// formulas that read raw terms (notional, prices, absolute fees) multiply by
// ContractRole.Sign().

// Accrue adds interest and notional-based fees earned since LastEventDate.
func Accrue(env *Env, st RunningState, t generic.TimePoint) (RunningState, error) {
	y, err := env.YearFraction(st.LastEventDate, t)
	if err != nil {
		return st, err
	}
	st.AccruedInterest = st.AccruedInterest.Add(y.Mul(st.NominalInterestRate).Mul(st.InterestBase()))
	if !env.Terms.FeeRate.IsNull() && env.Terms.FeeBasis == FeeBasisNotional {
		st.FeeAccrued = st.FeeAccrued.Add(y.Mul(env.Terms.FeeRate).Mul(st.NotionalPrincipal))
	}
	return st, nil
}

// Mutation is the event-specific part of a transition, applied to an
// already accrued state.
type Mutation func(env *Env, ev generic.Event, st RunningState) (RunningState, error)

// Transition wraps a mutation with accrual and the status-date update. A nil
// mutation only accrues.
func Transition(mutate Mutation) TransitionFunc {
	return func(env *Env, ev generic.Event, st RunningState) (RunningState, error) {
		st, err := Accrue(env, st, ev.Time)
		if err != nil {
			return st, err
		}
		if mutate != nil {
			if st, err = mutate(env, ev, st); err != nil {
				return st, err
			}
		}
		return st.advance(ev.Time), nil
	}
}

// Payoff wraps a formula that reads the state accrued to the event time.
func Payoff(formula func(env *Env, ev generic.Event, acc RunningState) (generic.Number, error)) PayoffFunc {
	return func(env *Env, ev generic.Event, st RunningState) (generic.Number, error) {
		acc, err := Accrue(env, st, ev.Time)
		if err != nil {
			return generic.Null(), err
		}
		return formula(env, ev, acc)
	}
}

// =============================================================================
// PAYOFFS
// =============================================================================

// POFZero is the payoff of events that move no money.
func POFZero(*Env, generic.Event, RunningState) (generic.Number, error) {
	return generic.Zero, nil
}

// POFInitialExchange pays out the notional plus premium or discount.
func POFInitialExchange(env *Env, _ generic.Event, _ RunningState) (generic.Number, error) {
	t := env.Terms
	return t.ContractRole.Sign().Mul(t.NotionalPrincipal.Add(t.PremiumDiscountAtIED.ValueOr(generic.Zero))).Neg(), nil
}

// POFMaturity repays the scaled notional with the final interest and fees.
var POFMaturity = Payoff(func(_ *Env, _ generic.Event, acc RunningState) (generic.Number, error) {
	return acc.NotionalScalingMultiplier.Mul(acc.NotionalPrincipal).
		Add(acc.InterestScalingMultiplier.Mul(acc.AccruedInterest)).
		Add(acc.FeeAccrued), nil
})

// POFInterestPayment pays the scaled accrued interest.
var POFInterestPayment = Payoff(func(_ *Env, _ generic.Event, acc RunningState) (generic.Number, error) {
	return acc.InterestScalingMultiplier.Mul(acc.AccruedInterest), nil
})

// POFFee pays a flat fee (basis A) or the accrued notional fee (basis N).
var POFFee = Payoff(func(env *Env, _ generic.Event, acc RunningState) (generic.Number, error) {
	t := env.Terms
	if t.FeeRate.IsNull() {
		return generic.Zero, nil
	}
	if t.FeeBasis == FeeBasisAbsolute {
		return t.ContractRole.Sign().Mul(t.FeeRate), nil
	}
	return acc.FeeAccrued, nil
})

// POFPurchase pays the purchase price plus accrued interest to the seller.
var POFPurchase = Payoff(func(env *Env, _ generic.Event, acc RunningState) (generic.Number, error) {
	t := env.Terms
	return t.ContractRole.Sign().Mul(t.PriceAtPurchaseDate).Add(acc.AccruedInterest).Neg(), nil
})

// POFTermination receives the termination price plus accrued interest.
var POFTermination = Payoff(func(env *Env, _ generic.Event, acc RunningState) (generic.Number, error) {
	t := env.Terms
	return t.ContractRole.Sign().Mul(t.PriceAtTerminationDate).Add(acc.AccruedInterest), nil
})

// POFPenalty charges a prepayment penalty:
//   - A: the fixed amount PenaltyRate
//   - N: PenaltyRate on the notional over the remaining life
//   - I: the positive rate differential against the reset index over the
//     remaining life
var POFPenalty = Payoff(func(env *Env, ev generic.Event, acc RunningState) (generic.Number, error) {
	t := env.Terms
	switch t.PenaltyType {
	case PenaltyFixedAmount:
		return t.ContractRole.Sign().Mul(t.PenaltyRate), nil
	case PenaltyRelative, PenaltyRateDiff:
		remaining := generic.Zero
		if ev.Time.Before(acc.MaturityDate) {
			y, err := env.YearFraction(ev.Time, acc.MaturityDate)
			if err != nil {
				return generic.Null(), err
			}
			remaining = y
		}
		rate := t.PenaltyRate
		if t.PenaltyType == PenaltyRateDiff {
			market, err := env.Observe(t.MarketObjectCodeOfRateReset)
			if err != nil {
				return generic.Null(), err
			}
			rate = acc.NominalInterestRate.Sub(market).Max(generic.Zero)
		}
		return remaining.Mul(acc.NotionalPrincipal).Mul(rate), nil
	}
	return generic.Zero, nil
})

// POFPrepayment pays back the prepaid part of the notional.
var POFPrepayment = Payoff(func(env *Env, _ generic.Event, acc RunningState) (generic.Number, error) {
	amount, err := PrepaymentAmount(env, acc)
	if err != nil {
		return generic.Null(), err
	}
	return acc.NotionalScalingMultiplier.Mul(amount), nil
})

// PrepaymentAmount reads the prepayment model as a fraction of the
// outstanding notional, clamped to [0, 1].
func PrepaymentAmount(env *Env, st RunningState) (generic.Number, error) {
	rate, err := env.Observe(env.Terms.ObjectCodeOfPrepaymentModel)
	if err != nil {
		return generic.Null(), err
	}
	return st.NotionalPrincipal.Mul(rate.Max(generic.Zero).Min(generic.One)), nil
}

// =============================================================================
// TRANSITIONS
// =============================================================================

// STFAccrue only accrues. Used by analysis, purchase and penalty events.
var STFAccrue = Transition(nil)

// STFInitialExchange sets notional, rate and opening accruals.
var STFInitialExchange = Transition(func(env *Env, ev generic.Event, st RunningState) (RunningState, error) {
	t := env.Terms
	role := t.ContractRole.Sign()
	st.NotionalPrincipal = role.Mul(t.NotionalPrincipal)
	st.NominalInterestRate = t.NominalInterestRate
	st.AccruedInterest = generic.Zero
	if !t.AccruedInterest.IsNull() {
		st.AccruedInterest = role.Mul(t.AccruedInterest)
	} else if anchor := t.CycleAnchorDateOfInterestPayment; !anchor.IsNull() && anchor.Before(ev.Time) {
		y, err := env.YearFraction(anchor, ev.Time)
		if err != nil {
			return st, err
		}
		st.AccruedInterest = y.Mul(st.NotionalPrincipal).Mul(st.NominalInterestRate)
	}
	st.FeeAccrued = role.Mul(t.FeeAccrued.ValueOr(generic.Zero))
	switch t.InterestCalculationBase {
	case InterestBaseNotionalAtIED, InterestBaseNotionalLagged:
		if !t.InterestCalculationBaseAmount.IsNull() {
			st.InterestCalculationBaseAmount = role.Mul(t.InterestCalculationBaseAmount)
		} else {
			st.InterestCalculationBaseAmount = st.NotionalPrincipal
		}
	}
	return st, nil
})

// STFMaturity retires the contract.
var STFMaturity = Transition(func(_ *Env, _ generic.Event, st RunningState) (RunningState, error) {
	st.NotionalPrincipal = generic.Zero
	st.NominalInterestRate = generic.Zero
	st.AccruedInterest = generic.Zero
	st.FeeAccrued = generic.Zero
	if !st.InterestCalculationBaseAmount.IsNull() {
		st.InterestCalculationBaseAmount = generic.Zero
	}
	if !st.NextPrincipalRedemptionPayment.IsNull() {
		st.NextPrincipalRedemptionPayment = generic.Zero
	}
	st.ContractPerformance = PerformanceMatured
	return st, nil
})

// STFInterestPayment settles accrued interest.
var STFInterestPayment = Transition(func(_ *Env, ev generic.Event, st RunningState) (RunningState, error) {
	st.LastInterestPaid = st.AccruedInterest
	st.LastInterestPaymentDate = ev.Time
	st.AccruedInterest = generic.Zero
	return st, nil
})

// STFCapitalization adds accrued interest to the notional.
var STFCapitalization = Transition(func(_ *Env, _ generic.Event, st RunningState) (RunningState, error) {
	st.NotionalPrincipal = st.NotionalPrincipal.Add(st.AccruedInterest)
	st.AccruedInterest = generic.Zero
	return st, nil
})

// STFFee settles accrued fees.
var STFFee = Transition(func(_ *Env, _ generic.Event, st RunningState) (RunningState, error) {
	st.FeeAccrued = generic.Zero
	return st, nil
})

// STFTermination closes the contract early.
var STFTermination = Transition(func(_ *Env, _ generic.Event, st RunningState) (RunningState, error) {
	st.NotionalPrincipal = generic.Zero
	st.NominalInterestRate = generic.Zero
	st.AccruedInterest = generic.Zero
	st.FeeAccrued = generic.Zero
	st.ContractPerformance = PerformanceTerminated
	return st, nil
})

// STFPrepayment reduces the notional by the prepaid amount.
var STFPrepayment = Transition(func(env *Env, _ generic.Event, st RunningState) (RunningState, error) {
	amount, err := PrepaymentAmount(env, st)
	if err != nil {
		return st, err
	}
	st.NotionalPrincipal = st.NotionalPrincipal.Sub(amount)
	return st, nil
})

// STFRateReset resets the rate from the market, within period and life
// bounds.
var STFRateReset = Transition(func(env *Env, _ generic.Event, st RunningState) (RunningState, error) {
	observed, err := env.Observe(env.Terms.MarketObjectCodeOfRateReset)
	if err != nil {
		return st, err
	}
	st.NominalInterestRate = ResetRate(env.Terms, st.NominalInterestRate, observed)
	return st, nil
})

// STFRateFixing applies the pre-agreed next reset rate.
var STFRateFixing = Transition(func(env *Env, _ generic.Event, st RunningState) (RunningState, error) {
	if !env.Terms.NextResetRate.IsNull() {
		st.NominalInterestRate = env.Terms.NextResetRate
	}
	return st, nil
})

// STFScaling refreshes the scaling multipliers from the index.
var STFScaling = Transition(func(env *Env, _ generic.Event, st RunningState) (RunningState, error) {
	t := env.Terms
	index, err := env.Observe(t.MarketObjectCodeOfScalingIndex)
	if err != nil {
		return st, err
	}
	ratio, err := index.Div(t.ScalingIndexAtContractDealDate)
	if err != nil {
		return st, err
	}
	if t.ScalingEffect.ScalesNotional() {
		st.NotionalScalingMultiplier = ratio
	}
	if t.ScalingEffect.ScalesInterest() {
		st.InterestScalingMultiplier = ratio
	}
	return st, nil
})

// STFCreditEvent moves the performance status along grace and delinquency
// periods counted from the non-performing date.
var STFCreditEvent = Transition(func(env *Env, ev generic.Event, st RunningState) (RunningState, error) {
	st.ContractPerformance = PerformanceAt(env.Terms, ev.Time)
	return st, nil
})

// ResetRate computes the new rate: the market rate times the multiplier plus
// the spread, with the change clamped by the period floor and cap and the
// result clamped by the life floor and cap. Null bounds are ignored.
func ResetRate(terms *ContractTerms, current, observed generic.Number) generic.Number {
	target := observed.Mul(terms.RateMultiplier.ValueOr(generic.One)).Add(terms.RateSpread.ValueOr(generic.Zero))
	delta := target.Sub(current)
	if !terms.PeriodFloor.IsNull() {
		delta = delta.Max(terms.PeriodFloor.Neg())
	}
	if !terms.PeriodCap.IsNull() {
		delta = delta.Min(terms.PeriodCap)
	}
	rate := current.Add(delta)
	if !terms.LifeFloor.IsNull() {
		rate = rate.Max(terms.LifeFloor)
	}
	if !terms.LifeCap.IsNull() {
		rate = rate.Min(terms.LifeCap)
	}
	return rate
}

// PerformanceAt is the credit status at t after a credit event. Without a
// non-performing date or grace period the contract defaults immediately.
func PerformanceAt(terms *ContractTerms, t generic.TimePoint) ContractPerformance {
	npd := terms.NonPerformingDate
	if npd.IsNull() || terms.GracePeriod == nil {
		return PerformanceDefault
	}
	if t.Before(terms.GracePeriod.AddTo(npd)) {
		return PerformanceDelayed
	}
	if terms.DelinquencyPeriod != nil && t.Before(terms.DelinquencyPeriod.AddTo(npd)) {
		return PerformanceDelinquent
	}
	return PerformanceDefault
}
