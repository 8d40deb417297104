package actus

import (
	"fmt"

	"github.com/warp/actus-engine/generic"
)

// =============================================================================
// TERM VALIDATION
// =============================================================================
//
// Validation runs in three layers and reports every violation found:
//   1. Value ranges: non-negative amounts and rates, known enum codes,
//      positive cycle counts
//   2. Date ordering: the lifecycle dates must be non-decreasing wherever
//      both sides are set
//   3. Applicability: the rule table in rules.go

// Validate runs all three layers. It returns nil for valid terms.
func Validate(terms *ContractTerms) ValidationErrors {
	var errs ValidationErrors
	errs = append(errs, checkRanges(terms)...)
	errs = append(errs, checkEnums(terms)...)
	errs = append(errs, checkDateOrder(terms)...)
	errs = append(errs, CheckApplicability(terms)...)
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// IsValid reports whether terms pass every validation layer.
func IsValid(terms *ContractTerms) bool {
	return len(Validate(terms)) == 0
}

// =============================================================================
// LAYER 1 - VALUE RANGES
// =============================================================================

type numberRule struct {
	field string
	code  string
	get   func(*ContractTerms) generic.Number
}

var nonNegativeRules = []numberRule{
	{"NotionalPrincipal", "NEGATIVE_NOTIONAL_PRINCIPAL", func(t *ContractTerms) generic.Number { return t.NotionalPrincipal }},
	{"NominalInterestRate", "NEGATIVE_NOMINAL_INTEREST_RATE", func(t *ContractTerms) generic.Number { return t.NominalInterestRate }},
	{"FeeRate", "NEGATIVE_FEE_RATE", func(t *ContractTerms) generic.Number { return t.FeeRate }},
	{"Quantity", "NEGATIVE_QUANTITY", func(t *ContractTerms) generic.Number { return t.Quantity }},
	{"PriceAtPurchaseDate", "NEGATIVE_PRICE_AT_PURCHASE_DATE", func(t *ContractTerms) generic.Number { return t.PriceAtPurchaseDate }},
	{"PriceAtTerminationDate", "NEGATIVE_PRICE_AT_TERMINATION_DATE", func(t *ContractTerms) generic.Number { return t.PriceAtTerminationDate }},
	{"MarketValueObserved", "NEGATIVE_MARKET_VALUE_OBSERVED", func(t *ContractTerms) generic.Number { return t.MarketValueObserved }},
	{"RateMultiplier", "NEGATIVE_RATE_MULTIPLIER", func(t *ContractTerms) generic.Number { return t.RateMultiplier }},
	{"LifeCap", "NEGATIVE_LIFE_CAP", func(t *ContractTerms) generic.Number { return t.LifeCap }},
	{"LifeFloor", "NEGATIVE_LIFE_FLOOR", func(t *ContractTerms) generic.Number { return t.LifeFloor }},
	{"PeriodCap", "NEGATIVE_PERIOD_CAP", func(t *ContractTerms) generic.Number { return t.PeriodCap }},
	{"PeriodFloor", "NEGATIVE_PERIOD_FLOOR", func(t *ContractTerms) generic.Number { return t.PeriodFloor }},
	{"NextResetRate", "NEGATIVE_NEXT_RESET_RATE", func(t *ContractTerms) generic.Number { return t.NextResetRate }},
	{"PenaltyRate", "NEGATIVE_PENALTY_RATE", func(t *ContractTerms) generic.Number { return t.PenaltyRate }},
	{"DelinquencyRate", "NEGATIVE_DELINQUENCY_RATE", func(t *ContractTerms) generic.Number { return t.DelinquencyRate }},
	{"NextPrincipalRedemptionPayment", "NEGATIVE_NEXT_PRINCIPAL_REDEMPTION_PAYMENT", func(t *ContractTerms) generic.Number { return t.NextPrincipalRedemptionPayment }},
	{"InterestCalculationBaseAmount", "NEGATIVE_INTEREST_CALCULATION_BASE_AMOUNT", func(t *ContractTerms) generic.Number { return t.InterestCalculationBaseAmount }},
	{"ScalingIndexAtStatusDate", "NEGATIVE_SCALING_INDEX_AT_STATUS_DATE", func(t *ContractTerms) generic.Number { return t.ScalingIndexAtStatusDate }},
	{"CoverageOfCreditEnhancement", "NEGATIVE_COVERAGE_OF_CREDIT_ENHANCEMENT", func(t *ContractTerms) generic.Number { return t.CoverageOfCreditEnhancement }},
}

type cycleRule struct {
	field string
	code  string
	get   func(*ContractTerms) *generic.Cycle
}

var cycleRules = []cycleRule{
	{"CycleOfFee", "ZERO_CYCLE_OF_FEE", func(t *ContractTerms) *generic.Cycle { return t.CycleOfFee }},
	{"CycleOfInterestPayment", "ZERO_CYCLE_OF_INTEREST_PAYMENT", func(t *ContractTerms) *generic.Cycle { return t.CycleOfInterestPayment }},
	{"CycleOfInterestCalculationBase", "ZERO_CYCLE_OF_INTEREST_CALCULATION_BASE", func(t *ContractTerms) *generic.Cycle { return t.CycleOfInterestCalculationBase }},
	{"CycleOfPrincipalRedemption", "ZERO_CYCLE_OF_PRINCIPAL_REDEMPTION", func(t *ContractTerms) *generic.Cycle { return t.CycleOfPrincipalRedemption }},
	{"CycleOfScalingIndex", "ZERO_CYCLE_OF_SCALING_INDEX", func(t *ContractTerms) *generic.Cycle { return t.CycleOfScalingIndex }},
	{"CycleOfOptionality", "ZERO_CYCLE_OF_OPTIONALITY", func(t *ContractTerms) *generic.Cycle { return t.CycleOfOptionality }},
	{"CycleOfRateReset", "ZERO_CYCLE_OF_RATE_RESET", func(t *ContractTerms) *generic.Cycle { return t.CycleOfRateReset }},
}

func checkRanges(t *ContractTerms) ValidationErrors {
	var errs ValidationErrors
	for _, r := range nonNegativeRules {
		if r.get(t).IsNegative() {
			errs = append(errs, &ValidationError{Code: r.code, Field: r.field, Message: fmt.Sprintf("%s must not be negative", r.field)})
		}
	}
	if t.ScalingIndexAtContractDealDate.Sign() <= 0 && !t.ScalingIndexAtContractDealDate.IsNull() {
		errs = append(errs, &ValidationError{
			Code:    "NON_POSITIVE_SCALING_INDEX_AT_CONTRACT_DEAL_DATE",
			Field:   "ScalingIndexAtContractDealDate",
			Message: "ScalingIndexAtContractDealDate must be positive",
		})
	}
	if t.CoverageOfCreditEnhancement.GreaterThan(generic.One) {
		errs = append(errs, &ValidationError{
			Code:    "COVERAGE_OF_CREDIT_ENHANCEMENT_ABOVE_ONE",
			Field:   "CoverageOfCreditEnhancement",
			Message: "CoverageOfCreditEnhancement must not exceed 1",
		})
	}
	if !t.LifeFloor.IsNull() && !t.LifeCap.IsNull() && t.LifeFloor.GreaterThan(t.LifeCap) {
		errs = append(errs, &ValidationError{Code: "LIFE_FLOOR_ABOVE_LIFE_CAP", Field: "LifeFloor", Message: "LifeFloor must not exceed LifeCap"})
	}
	for _, r := range cycleRules {
		if c := r.get(t); c != nil && c.Count <= 0 {
			errs = append(errs, &ValidationError{Code: r.code, Field: r.field, Message: fmt.Sprintf("%s must have a positive count", r.field)})
		}
	}
	arrays := []struct {
		code    string
		field   string
		anchors int
		cycles  int
	}{
		{"ARRAY_INTEREST_PAYMENT_LENGTH_MISMATCH", "ArrayCycleOfInterestPayment", len(t.ArrayCycleAnchorDateOfInterestPayment), len(t.ArrayCycleOfInterestPayment)},
		{"ARRAY_PRINCIPAL_REDEMPTION_LENGTH_MISMATCH", "ArrayCycleOfPrincipalRedemption", len(t.ArrayCycleAnchorDateOfPrincipalRedemption), len(t.ArrayCycleOfPrincipalRedemption)},
		{"ARRAY_RATE_RESET_LENGTH_MISMATCH", "ArrayCycleOfRateReset", len(t.ArrayCycleAnchorDateOfRateReset), len(t.ArrayCycleOfRateReset)},
	}
	for _, a := range arrays {
		if a.anchors != a.cycles {
			errs = append(errs, &ValidationError{
				Code:    a.code,
				Field:   a.field,
				Message: fmt.Sprintf("%d anchors but %d cycles", a.anchors, a.cycles),
			})
		}
	}
	return errs
}

func checkEnums(t *ContractTerms) ValidationErrors {
	var errs ValidationErrors
	invalid := func(code, field string, value any) {
		errs = append(errs, &ValidationError{Code: code, Field: field, Message: fmt.Sprintf("unknown %s %q", field, value)})
	}
	if t.ContractRole != "" && t.ContractRole.Sign().IsNull() {
		invalid("INVALID_CONTRACT_ROLE", "ContractRole", t.ContractRole)
	}
	if t.DayCountConvention != "" && !t.DayCountConvention.Valid() {
		invalid("INVALID_DAY_COUNT_CONVENTION", "DayCountConvention", t.DayCountConvention)
	}
	if t.BusinessDayConvention != "" && !t.BusinessDayConvention.Valid() {
		invalid("INVALID_BUSINESS_DAY_CONVENTION", "BusinessDayConvention", t.BusinessDayConvention)
	}
	switch t.Calendar {
	case "", generic.CalendarNoCalendar, generic.CalendarMondayToFriday:
	default:
		invalid("INVALID_CALENDAR", "Calendar", t.Calendar)
	}
	switch t.EndOfMonthConvention {
	case "", generic.EndOfMonthSameDay, generic.EndOfMonthEndOfMonth:
	default:
		invalid("INVALID_END_OF_MONTH_CONVENTION", "EndOfMonthConvention", t.EndOfMonthConvention)
	}
	switch t.FeeBasis {
	case "", FeeBasisAbsolute, FeeBasisNotional:
	default:
		invalid("INVALID_FEE_BASIS", "FeeBasis", t.FeeBasis)
	}
	switch t.ScalingEffect {
	case "", ScalingNone, ScalingInterest, ScalingNotional, ScalingInterestNotional:
	default:
		invalid("INVALID_SCALING_EFFECT", "ScalingEffect", t.ScalingEffect)
	}
	switch t.InterestCalculationBase {
	case "", InterestBaseNotional, InterestBaseNotionalAtIED, InterestBaseNotionalLagged:
	default:
		invalid("INVALID_INTEREST_CALCULATION_BASE", "InterestCalculationBase", t.InterestCalculationBase)
	}
	switch t.PrepaymentEffect {
	case "", PrepaymentNone, PrepaymentReduceAmount, PrepaymentReduceMaturity:
	default:
		invalid("INVALID_PREPAYMENT_EFFECT", "PrepaymentEffect", t.PrepaymentEffect)
	}
	switch t.PenaltyType {
	case "", PenaltyNone, PenaltyFixedAmount, PenaltyRelative, PenaltyRateDiff:
	default:
		invalid("INVALID_PENALTY_TYPE", "PenaltyType", t.PenaltyType)
	}
	switch t.ContractPerformance {
	case "", PerformancePerforming, PerformanceDelayed, PerformanceDelinquent, PerformanceDefault, PerformanceMatured, PerformanceTerminated:
	default:
		invalid("INVALID_CONTRACT_PERFORMANCE", "ContractPerformance", t.ContractPerformance)
	}
	for field, cp := range map[string]CyclePoint{
		"CyclePointOfInterestPayment": t.CyclePointOfInterestPayment,
		"CyclePointOfRateReset":       t.CyclePointOfRateReset,
	} {
		switch cp {
		case "", CyclePointBeginning, CyclePointEnd:
		default:
			invalid("INVALID_"+screamingSnake(field), field, cp)
		}
	}
	return errs
}

// =============================================================================
// LAYER 2 - DATE ORDERING
// =============================================================================

type dateField struct {
	name string
	get  func(*ContractTerms) generic.TimePoint
}

// lifecycleDates must be non-decreasing. A null date is a wildcard: the
// comparison skips it and checks the nearest set neighbours instead.
var lifecycleDates = []dateField{
	{"ContractDealDate", func(t *ContractTerms) generic.TimePoint { return t.ContractDealDate }},
	{"InitialExchangeDate", func(t *ContractTerms) generic.TimePoint { return t.InitialExchangeDate }},
	{"CapitalizationEndDate", func(t *ContractTerms) generic.TimePoint { return t.CapitalizationEndDate }},
	{"PurchaseDate", func(t *ContractTerms) generic.TimePoint { return t.PurchaseDate }},
	{"TerminationDate", func(t *ContractTerms) generic.TimePoint { return t.TerminationDate }},
	{"MaturityDate", func(t *ContractTerms) generic.TimePoint { return t.MaturityDate }},
	{"AmortizationDate", func(t *ContractTerms) generic.TimePoint { return t.AmortizationDate }},
	{"SettlementDate", func(t *ContractTerms) generic.TimePoint { return t.SettlementDate }},
}

// cycleAnchors must lie within [InitialExchangeDate, maturity].
var cycleAnchors = []dateField{
	{"CycleAnchorDateOfFee", func(t *ContractTerms) generic.TimePoint { return t.CycleAnchorDateOfFee }},
	{"CycleAnchorDateOfInterestPayment", func(t *ContractTerms) generic.TimePoint { return t.CycleAnchorDateOfInterestPayment }},
	{"CycleAnchorDateOfInterestCalculationBase", func(t *ContractTerms) generic.TimePoint { return t.CycleAnchorDateOfInterestCalculationBase }},
	{"CycleAnchorDateOfPrincipalRedemption", func(t *ContractTerms) generic.TimePoint { return t.CycleAnchorDateOfPrincipalRedemption }},
	{"CycleAnchorDateOfScalingIndex", func(t *ContractTerms) generic.TimePoint { return t.CycleAnchorDateOfScalingIndex }},
	{"CycleAnchorDateOfOptionality", func(t *ContractTerms) generic.TimePoint { return t.CycleAnchorDateOfOptionality }},
	{"CycleAnchorDateOfRateReset", func(t *ContractTerms) generic.TimePoint { return t.CycleAnchorDateOfRateReset }},
}

func checkDateOrder(t *ContractTerms) ValidationErrors {
	var errs ValidationErrors

	var prev *dateField
	var prevValue generic.TimePoint
	for i := range lifecycleDates {
		cur := &lifecycleDates[i]
		v := cur.get(t)
		if v.IsNull() {
			continue
		}
		if prev != nil && v.Before(prevValue) {
			errs = append(errs, &ValidationError{
				Code:    screamingSnake(prev.name) + "_AFTER_" + screamingSnake(cur.name),
				Field:   cur.name,
				Message: fmt.Sprintf("%s (%s) is after %s (%s)", prev.name, prevValue, cur.name, v),
			})
		}
		prev, prevValue = cur, v
	}

	ied := t.InitialExchangeDate
	end := t.Maturity()
	for _, a := range cycleAnchors {
		v := a.get(t)
		if v.IsNull() {
			continue
		}
		if !ied.IsNull() && v.Before(ied) {
			errs = append(errs, &ValidationError{
				Code:    screamingSnake(a.name) + "_BEFORE_INITIAL_EXCHANGE_DATE",
				Field:   a.name,
				Message: fmt.Sprintf("%s (%s) is before InitialExchangeDate (%s)", a.name, v, ied),
			})
		}
		if !end.IsNull() && v.After(end) {
			errs = append(errs, &ValidationError{
				Code:    screamingSnake(a.name) + "_AFTER_MATURITY",
				Field:   a.name,
				Message: fmt.Sprintf("%s (%s) is after maturity (%s)", a.name, v, end),
			})
		}
	}
	return errs
}

// screamingSnake turns "CycleAnchorDateOfFee" into "CYCLE_ANCHOR_DATE_OF_FEE".
func screamingSnake(name string) string {
	out := make([]byte, 0, len(name)+8)
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c >= 'A' && c <= 'Z' {
			if i > 0 && (name[i-1] < 'A' || name[i-1] > 'Z') {
				out = append(out, '_')
			}
			out = append(out, c)
			continue
		}
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out = append(out, c)
	}
	return string(out)
}
