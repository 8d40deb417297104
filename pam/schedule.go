package pam

import (
	"github.com/warp/actus-engine/actus"
	"github.com/warp/actus-engine/generic"
)

// =============================================================================
// SCHEDULE BUILDERS - Recurring event families
// =============================================================================
//
// Each builder returns the events of one family between its anchor and the
// contract end. When only a cycle is given the anchor defaults to the initial
// exchange date plus one cycle. Builders return nil when the family does not
// apply. The annuity type reuses them.

// CycleTimes returns the cycle points from anchor to end. includeEnd keeps
// end itself in the result.
func CycleTimes(anchor generic.TimePoint, cycle *generic.Cycle, end generic.TimePoint, eom generic.EndOfMonthConvention, includeEnd bool) ([]generic.TimePoint, error) {
	if anchor.IsNull() {
		return nil, nil
	}
	if !end.IsNull() && !anchor.Before(end) {
		if includeEnd && anchor.Equal(end) {
			return []generic.TimePoint{anchor}, nil
		}
		return nil, nil
	}
	if end.IsNull() {
		return []generic.TimePoint{anchor}, nil
	}
	times, err := generic.Schedule(anchor, end, cycle, eom)
	if err != nil {
		return nil, err
	}
	if !includeEnd && len(times) > 0 && times[len(times)-1].Equal(end) {
		times = times[:len(times)-1]
	}
	return times, nil
}

// defaultAnchor is anchor, or the initial exchange date plus one cycle.
func defaultAnchor(terms *actus.ContractTerms, anchor generic.TimePoint, cycle *generic.Cycle) generic.TimePoint {
	if !anchor.IsNull() {
		return anchor
	}
	return generic.SumCycle(terms.InitialExchangeDate, cycle, terms.EndOfMonthConvention)
}

// RecurringTimes returns the times of an array schedule when anchors are
// given, otherwise of the single anchor and cycle pair.
func RecurringTimes(terms *actus.ContractTerms, anchors []generic.TimePoint, cycles []*generic.Cycle, anchor generic.TimePoint, cycle *generic.Cycle, end generic.TimePoint, includeEnd bool) ([]generic.TimePoint, error) {
	if len(anchors) > 0 {
		times, err := generic.ArraySchedule(anchors, cycles, end, terms.EndOfMonthConvention)
		if err != nil {
			return nil, err
		}
		if !includeEnd && len(times) > 0 && times[len(times)-1].Equal(end) {
			times = times[:len(times)-1]
		}
		return times, nil
	}
	if anchor.IsNull() && cycle == nil {
		return nil, nil
	}
	return CycleTimes(defaultAnchor(terms, anchor, cycle), cycle, end, terms.EndOfMonthConvention, includeEnd)
}

// FeeEvents returns the fee payments up to and including end.
func FeeEvents(terms *actus.ContractTerms, end generic.TimePoint) ([]generic.Event, error) {
	if terms.FeeRate.IsNull() {
		return nil, nil
	}
	times, err := RecurringTimes(terms, nil, nil, terms.CycleAnchorDateOfFee, terms.CycleOfFee, end, true)
	if err != nil {
		return nil, err
	}
	return generic.EventsAt(times, generic.EventFP), nil
}

// InterestEvents returns interest payments from anchor to end. Points up to
// the capitalization end date become capitalizations, and the
// capitalization end date itself always carries one.
func InterestEvents(terms *actus.ContractTerms, anchor generic.TimePoint, cycle *generic.Cycle, end generic.TimePoint) ([]generic.Event, error) {
	times, err := RecurringTimes(terms,
		terms.ArrayCycleAnchorDateOfInterestPayment, terms.ArrayCycleOfInterestPayment,
		anchor, cycle, end, true)
	if err != nil {
		return nil, err
	}

	ipced := terms.CapitalizationEndDate
	out := make([]generic.Event, 0, len(times)+1)
	capitalized := false
	for _, t := range times {
		if !ipced.IsNull() && !t.After(ipced) {
			out = append(out, generic.NewEvent(t, generic.EventIPCI))
			capitalized = capitalized || t.Equal(ipced)
			continue
		}
		out = append(out, generic.NewEvent(t, generic.EventIP))
	}
	if !ipced.IsNull() && !capitalized {
		out = append(out, generic.NewEvent(ipced, generic.EventIPCI))
	}
	return out, nil
}

// RateResetEvents returns the resets before end. When a next reset rate is
// agreed, the first reset after t0 is a fixing (RRF) instead of a market
// reset (RR).
func RateResetEvents(t0 generic.TimePoint, terms *actus.ContractTerms, end generic.TimePoint) ([]generic.Event, error) {
	times, err := RecurringTimes(terms,
		terms.ArrayCycleAnchorDateOfRateReset, terms.ArrayCycleOfRateReset,
		terms.CycleAnchorDateOfRateReset, terms.CycleOfRateReset, end, false)
	if err != nil {
		return nil, err
	}
	out := generic.EventsAt(times, generic.EventRR)
	if !terms.NextResetRate.IsNull() {
		for i := range out {
			if out[i].Time.After(t0) {
				out[i].Type = generic.EventRRF
				break
			}
		}
	}
	return out, nil
}

// ScalingEvents returns the scaling index revisions before end.
func ScalingEvents(terms *actus.ContractTerms, end generic.TimePoint) ([]generic.Event, error) {
	if !terms.ScalingEffect.Active() {
		return nil, nil
	}
	times, err := RecurringTimes(terms, nil, nil, terms.CycleAnchorDateOfScalingIndex, terms.CycleOfScalingIndex, end, false)
	if err != nil {
		return nil, err
	}
	return generic.EventsAt(times, generic.EventSC), nil
}

// PrepaymentEvents returns the optional prepayments before end, cut at the
// option exercise end date, each followed by a penalty when one applies.
func PrepaymentEvents(terms *actus.ContractTerms, end generic.TimePoint) ([]generic.Event, error) {
	if !terms.PrepaymentEffect.Active() {
		return nil, nil
	}
	times, err := RecurringTimes(terms, nil, nil, terms.CycleAnchorDateOfOptionality, terms.CycleOfOptionality, end, false)
	if err != nil {
		return nil, err
	}
	var out []generic.Event
	for _, t := range times {
		if !terms.OptionExerciseEndDate.IsNull() && t.After(terms.OptionExerciseEndDate) {
			break
		}
		out = append(out, generic.NewEvent(t, generic.EventPP))
		if terms.PenaltyType.Active() {
			out = append(out, generic.NewEvent(t, generic.EventPY))
		}
	}
	return out, nil
}

// SingleEvents returns the initial exchange, the purchase and termination
// when set, and the maturity at end.
func SingleEvents(terms *actus.ContractTerms, end generic.TimePoint) []generic.Event {
	out := []generic.Event{
		generic.NewEvent(terms.InitialExchangeDate, generic.EventIED),
		generic.NewEvent(end, generic.EventMD),
	}
	if !terms.PurchaseDate.IsNull() {
		out = append(out, generic.NewEvent(terms.PurchaseDate, generic.EventPRD))
	}
	if !terms.TerminationDate.IsNull() {
		out = append(out, generic.NewEvent(terms.TerminationDate, generic.EventTD))
	}
	return out
}

// ShiftEvents applies the business-day convention and strips events with no
// time.
func ShiftEvents(terms *actus.ContractTerms, events []generic.Event) []generic.Event {
	out := events[:0]
	for _, ev := range events {
		if ev.Time.IsNull() {
			continue
		}
		ev.Time = terms.Shift(ev.Time)
		out = append(out, ev)
	}
	return out
}
