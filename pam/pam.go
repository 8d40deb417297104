/*
Package pam implements the Principal At Maturity contract type.

A PAM contract exchanges the notional once at the initial exchange date, pays
interest on a cycle and repays the whole notional at maturity: a bullet loan
or a plain bond.

SCHEDULE:
  IED, MD                 always
  PRD, TD                 when a purchase or termination date is set
  FP                      when a fee rate is set, up to and including MD
  IP / IPCI               interest cycle up to and including MD, split at
                          the capitalization end date
  RR / RRF                rate reset cycle before MD
  SC                      scaling index cycle before MD
  PP (+ PY)               optionality cycle before MD, cut at the option
                          exercise end date

USAGE:
  engine := actus.NewEngine(pam.New(), ann.New())
  cs, err := engine.Deploy(t0, pam.BulletLoanTerms(...))
*/
package pam

import (
	"github.com/warp/actus-engine/actus"
	"github.com/warp/actus-engine/generic"
)

// PrincipalAtMaturity is the PAM contract type.
type PrincipalAtMaturity struct{}

func New() *PrincipalAtMaturity { return &PrincipalAtMaturity{} }

func (*PrincipalAtMaturity) Code() actus.ContractTypeCode { return actus.ContractTypePAM }

// Schedule unions the single events with every recurring family.
func (*PrincipalAtMaturity) Schedule(t0 generic.TimePoint, terms *actus.ContractTerms) ([]generic.Event, error) {
	md := terms.MaturityDate
	events := SingleEvents(terms, md)

	fees, err := FeeEvents(terms, md)
	if err != nil {
		return nil, err
	}
	interest, err := InterestEvents(terms, terms.CycleAnchorDateOfInterestPayment, terms.CycleOfInterestPayment, md)
	if err != nil {
		return nil, err
	}
	resets, err := RateResetEvents(t0, terms, md)
	if err != nil {
		return nil, err
	}
	scaling, err := ScalingEvents(terms, md)
	if err != nil {
		return nil, err
	}
	prepayments, err := PrepaymentEvents(terms, md)
	if err != nil {
		return nil, err
	}

	for _, family := range [][]generic.Event{fees, interest, resets, scaling, prepayments} {
		events = append(events, family...)
	}
	return ShiftEvents(terms, events), nil
}

// InitialState derives the state at t0. Before the initial exchange the
// contract holds nothing.
func (*PrincipalAtMaturity) InitialState(t0 generic.TimePoint, terms *actus.ContractTerms, schedule []generic.Event) (actus.RunningState, error) {
	return InitialState(t0, terms, schedule)
}

// InitialState is the PAM initial state, shared with the annuity type.
func InitialState(t0 generic.TimePoint, terms *actus.ContractTerms, schedule []generic.Event) (actus.RunningState, error) {
	st := actus.RunningState{
		NotionalPrincipal:         generic.Zero,
		NominalInterestRate:       generic.Zero,
		AccruedInterest:           generic.Zero,
		FeeAccrued:                generic.Zero,
		NotionalScalingMultiplier: generic.One,
		InterestScalingMultiplier: generic.One,
		LastInterestPaid:          generic.Zero,
		MaturityDate:              terms.Maturity(),
		StatusDate:                t0,
		LastEventDate:             t0,
		ContractPerformance:       terms.ContractPerformance,
	}

	if !terms.ScalingIndexAtStatusDate.IsNull() && !terms.ScalingIndexAtContractDealDate.IsNull() {
		ratio, err := terms.ScalingIndexAtStatusDate.Div(terms.ScalingIndexAtContractDealDate)
		if err != nil {
			return st, err
		}
		if terms.ScalingEffect.ScalesNotional() {
			st.NotionalScalingMultiplier = ratio
		}
		if terms.ScalingEffect.ScalesInterest() {
			st.InterestScalingMultiplier = ratio
		}
	}

	if terms.InitialExchangeDate.After(t0) {
		return st, nil
	}

	role := terms.ContractRole.Sign()
	st.NotionalPrincipal = role.Mul(terms.NotionalPrincipal)
	st.NominalInterestRate = terms.NominalInterestRate

	if !terms.AccruedInterest.IsNull() {
		st.AccruedInterest = role.Mul(terms.AccruedInterest)
	} else {
		from := lastBoundary(schedule, t0, terms.InitialExchangeDate, generic.EventIP, generic.EventIPCI)
		y, err := yearFraction(terms, from, t0)
		if err != nil {
			return st, err
		}
		st.AccruedInterest = y.Mul(st.NotionalPrincipal).Mul(st.NominalInterestRate)
	}

	fee, err := initialFee(t0, terms, schedule, st.NotionalPrincipal)
	if err != nil {
		return st, err
	}
	st.FeeAccrued = fee

	switch terms.InterestCalculationBase {
	case actus.InterestBaseNotionalAtIED, actus.InterestBaseNotionalLagged:
		st.InterestCalculationBaseAmount = st.NotionalPrincipal
		if !terms.InterestCalculationBaseAmount.IsNull() {
			st.InterestCalculationBaseAmount = role.Mul(terms.InterestCalculationBaseAmount)
		}
	}
	return st, nil
}

// initialFee is the fee accrued at t0: the explicit term, the notional-based
// accrual since the last fee payment (basis N), or the elapsed share of the
// current fee period's flat amount (basis A).
func initialFee(t0 generic.TimePoint, terms *actus.ContractTerms, schedule []generic.Event, notional generic.Number) (generic.Number, error) {
	role := terms.ContractRole.Sign()
	if !terms.FeeAccrued.IsNull() {
		return role.Mul(terms.FeeAccrued), nil
	}
	if terms.FeeRate.IsNull() {
		return generic.Zero, nil
	}
	from := lastBoundary(schedule, t0, terms.InitialExchangeDate, generic.EventFP)
	elapsed, err := yearFraction(terms, from, t0)
	if err != nil {
		return generic.Null(), err
	}
	if terms.FeeBasis == actus.FeeBasisNotional {
		return elapsed.Mul(terms.FeeRate).Mul(notional), nil
	}

	to, ok := nextBoundary(schedule, t0, generic.EventFP)
	if !ok {
		return generic.Zero, nil
	}
	period, err := yearFraction(terms, from, to)
	if err != nil || period.IsZero() {
		return generic.Zero, err
	}
	share, err := elapsed.Div(period)
	if err != nil {
		return generic.Null(), err
	}
	return share.Mul(role).Mul(terms.FeeRate), nil
}

// lastBoundary is the latest event of the given types at or before t0, or
// fallback.
func lastBoundary(schedule []generic.Event, t0, fallback generic.TimePoint, types ...generic.EventType) generic.TimePoint {
	last := fallback
	for _, ev := range schedule {
		if ev.Time.After(t0) {
			break
		}
		for _, typ := range types {
			if ev.Type == typ && ev.Time.After(last) {
				last = ev.Time
			}
		}
	}
	return last
}

func nextBoundary(schedule []generic.Event, t0 generic.TimePoint, typ generic.EventType) (generic.TimePoint, bool) {
	for _, ev := range schedule {
		if ev.Type == typ && ev.Time.After(t0) {
			return ev.Time, true
		}
	}
	return generic.TimePoint{}, false
}

func yearFraction(terms *actus.ContractTerms, from, to generic.TimePoint) (generic.Number, error) {
	env := &actus.Env{Terms: terms}
	return env.YearFraction(from, to)
}

// Functions is the PAM dispatch table. Each call returns a fresh map.
func (*PrincipalAtMaturity) Functions() map[generic.EventType]actus.FunctionPair {
	return Functions()
}

// Functions returns the PAM function pairs.
func Functions() map[generic.EventType]actus.FunctionPair {
	return map[generic.EventType]actus.FunctionPair{
		generic.EventIED:  {Payoff: actus.POFInitialExchange, Transition: actus.STFInitialExchange},
		generic.EventFP:   {Payoff: actus.POFFee, Transition: actus.STFFee},
		generic.EventIP:   {Payoff: actus.POFInterestPayment, Transition: actus.STFInterestPayment},
		generic.EventIPCI: {Payoff: actus.POFZero, Transition: actus.STFCapitalization},
		generic.EventPRD:  {Payoff: actus.POFPurchase, Transition: actus.STFAccrue},
		generic.EventTD:   {Payoff: actus.POFTermination, Transition: actus.STFTermination},
		generic.EventPP:   {Payoff: actus.POFPrepayment, Transition: actus.STFPrepayment},
		generic.EventPY:   {Payoff: actus.POFPenalty, Transition: actus.STFAccrue},
		generic.EventRR:   {Payoff: actus.POFZero, Transition: actus.STFRateReset},
		generic.EventRRF:  {Payoff: actus.POFZero, Transition: actus.STFRateFixing},
		generic.EventSC:   {Payoff: actus.POFZero, Transition: actus.STFScaling},
		generic.EventCE:   {Payoff: actus.POFZero, Transition: actus.STFCreditEvent},
		generic.EventAD:   {Payoff: actus.POFZero, Transition: actus.STFAccrue},
		generic.EventMD:   {Payoff: actus.POFMaturity, Transition: actus.STFMaturity},
	}
}

var _ actus.ContractType = (*PrincipalAtMaturity)(nil)
