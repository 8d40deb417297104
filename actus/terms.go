package actus

import "github.com/warp/actus-engine/generic"

// =============================================================================
// CONTRACT TERMS - The attribute record supplied at deployment
// =============================================================================

// ContractTerms is the full ACTUS attribute record of a contract. Every
// attribute is optional at the type level; which ones are required depends on
// the contract type and on the other attributes set (see rules.go).
//
// Absent values are null: a nil pointer or slice, an empty string, or a null
// Number/TimePoint.
type ContractTerms struct {
	// Identification and counterparties
	ContractType        ContractTypeCode    `json:"contractType"`
	ContractID          string              `json:"contractID,omitempty"`
	ContractRole        ContractRole        `json:"contractRole"`
	StatusDate          generic.TimePoint   `json:"statusDate"`
	CreatorID           string              `json:"creatorID"`
	CounterpartyID      string              `json:"counterpartyID"`
	MarketObjectCode    string              `json:"marketObjectCode,omitempty"`
	Currency            string              `json:"currency"`
	SettlementCurrency  string              `json:"settlementCurrency,omitempty"`
	Seniority           Seniority           `json:"seniority,omitempty"`
	ContractPerformance ContractPerformance `json:"contractPerformance,omitempty"`

	// Credit
	NonPerformingDate           generic.TimePoint `json:"nonPerformingDate"`
	GracePeriod                 *generic.Period   `json:"gracePeriod,omitempty"`
	DelinquencyPeriod           *generic.Period   `json:"delinquencyPeriod,omitempty"`
	DelinquencyRate             generic.Number    `json:"delinquencyRate"`
	CoverageOfCreditEnhancement generic.Number    `json:"coverageOfCreditEnhancement"`

	// Calendar
	Calendar              generic.BusinessDayCalendar   `json:"calendar,omitempty"`
	BusinessDayConvention generic.BusinessDayConvention `json:"businessDayConvention,omitempty"`
	EndOfMonthConvention  generic.EndOfMonthConvention  `json:"endOfMonthConvention,omitempty"`

	// Fees
	FeeBasis             FeeBasis          `json:"feeBasis,omitempty"`
	FeeRate              generic.Number    `json:"feeRate"`
	FeeAccrued           generic.Number    `json:"feeAccrued"`
	CycleAnchorDateOfFee generic.TimePoint `json:"cycleAnchorDateOfFee"`
	CycleOfFee           *generic.Cycle    `json:"cycleOfFee,omitempty"`

	// Interest
	CycleAnchorDateOfInterestPayment      generic.TimePoint          `json:"cycleAnchorDateOfInterestPayment"`
	CycleOfInterestPayment                *generic.Cycle             `json:"cycleOfInterestPayment,omitempty"`
	ArrayCycleAnchorDateOfInterestPayment []generic.TimePoint        `json:"arrayCycleAnchorDateOfInterestPayment,omitempty"`
	ArrayCycleOfInterestPayment           []*generic.Cycle           `json:"arrayCycleOfInterestPayment,omitempty"`
	NominalInterestRate                   generic.Number             `json:"nominalInterestRate"`
	DayCountConvention                    generic.DayCountConvention `json:"dayCountConvention,omitempty"`
	AccruedInterest                       generic.Number             `json:"accruedInterest"`
	CapitalizationEndDate                 generic.TimePoint          `json:"capitalizationEndDate"`
	CyclePointOfInterestPayment           CyclePoint                 `json:"cyclePointOfInterestPayment,omitempty"`

	// Interest calculation base
	InterestCalculationBase                  InterestCalculationBase `json:"interestCalculationBase,omitempty"`
	InterestCalculationBaseAmount            generic.Number          `json:"interestCalculationBaseAmount"`
	CycleAnchorDateOfInterestCalculationBase generic.TimePoint       `json:"cycleAnchorDateOfInterestCalculationBase"`
	CycleOfInterestCalculationBase           *generic.Cycle          `json:"cycleOfInterestCalculationBase,omitempty"`

	// Notional principal
	NotionalPrincipal                        generic.Number      `json:"notionalPrincipal"`
	PremiumDiscountAtIED                     generic.Number      `json:"premiumDiscountAtIED"`
	Quantity                                 generic.Number      `json:"quantity"`
	ContractDealDate                         generic.TimePoint   `json:"contractDealDate"`
	InitialExchangeDate                      generic.TimePoint   `json:"initialExchangeDate"`
	MaturityDate                             generic.TimePoint   `json:"maturityDate"`
	AmortizationDate                         generic.TimePoint   `json:"amortizationDate"`
	CycleAnchorDateOfPrincipalRedemption     generic.TimePoint   `json:"cycleAnchorDateOfPrincipalRedemption"`
	CycleOfPrincipalRedemption               *generic.Cycle      `json:"cycleOfPrincipalRedemption,omitempty"`
	ArrayCycleAnchorDateOfPrincipalRedemption []generic.TimePoint `json:"arrayCycleAnchorDateOfPrincipalRedemption,omitempty"`
	ArrayCycleOfPrincipalRedemption          []*generic.Cycle    `json:"arrayCycleOfPrincipalRedemption,omitempty"`
	NextPrincipalRedemptionPayment           generic.Number      `json:"nextPrincipalRedemptionPayment"`

	// Purchase, termination and settlement
	PurchaseDate           generic.TimePoint `json:"purchaseDate"`
	PriceAtPurchaseDate    generic.Number    `json:"priceAtPurchaseDate"`
	TerminationDate        generic.TimePoint `json:"terminationDate"`
	PriceAtTerminationDate generic.Number    `json:"priceAtTerminationDate"`
	MarketValueObserved    generic.Number    `json:"marketValueObserved"`
	SettlementDate         generic.TimePoint `json:"settlementDate"`

	// Scaling
	ScalingEffect                   ScalingEffect     `json:"scalingEffect,omitempty"`
	ScalingIndexAtStatusDate        generic.Number    `json:"scalingIndexAtStatusDate"`
	ScalingIndexAtContractDealDate  generic.Number    `json:"scalingIndexAtContractDealDate"`
	MarketObjectCodeOfScalingIndex  string            `json:"marketObjectCodeOfScalingIndex,omitempty"`
	CycleAnchorDateOfScalingIndex   generic.TimePoint `json:"cycleAnchorDateOfScalingIndex"`
	CycleOfScalingIndex             *generic.Cycle    `json:"cycleOfScalingIndex,omitempty"`

	// Optionality and penalties
	CycleAnchorDateOfOptionality generic.TimePoint `json:"cycleAnchorDateOfOptionality"`
	CycleOfOptionality           *generic.Cycle    `json:"cycleOfOptionality,omitempty"`
	OptionExerciseEndDate        generic.TimePoint `json:"optionExerciseEndDate"`
	PrepaymentEffect             PrepaymentEffect  `json:"prepaymentEffect,omitempty"`
	PrepaymentPeriod             *generic.Period   `json:"prepaymentPeriod,omitempty"`
	ObjectCodeOfPrepaymentModel  string            `json:"objectCodeOfPrepaymentModel,omitempty"`
	PenaltyType                  PenaltyType       `json:"penaltyType,omitempty"`
	PenaltyRate                  generic.Number    `json:"penaltyRate"`

	// Rate reset
	CycleAnchorDateOfRateReset      generic.TimePoint   `json:"cycleAnchorDateOfRateReset"`
	CycleOfRateReset                *generic.Cycle      `json:"cycleOfRateReset,omitempty"`
	ArrayCycleAnchorDateOfRateReset []generic.TimePoint `json:"arrayCycleAnchorDateOfRateReset,omitempty"`
	ArrayCycleOfRateReset           []*generic.Cycle    `json:"arrayCycleOfRateReset,omitempty"`
	MarketObjectCodeOfRateReset     string              `json:"marketObjectCodeOfRateReset,omitempty"`
	RateSpread                      generic.Number      `json:"rateSpread"`
	RateMultiplier                  generic.Number      `json:"rateMultiplier"`
	LifeCap                         generic.Number      `json:"lifeCap"`
	LifeFloor                       generic.Number      `json:"lifeFloor"`
	PeriodCap                       generic.Number      `json:"periodCap"`
	PeriodFloor                     generic.Number      `json:"periodFloor"`
	NextResetRate                   generic.Number      `json:"nextResetRate"`
	CyclePointOfRateReset           CyclePoint          `json:"cyclePointOfRateReset,omitempty"`
	FixingPeriod                    *generic.Period     `json:"fixingPeriod,omitempty"`
}

// WithDefaults fills the attributes that have an ACTUS default value and are
// not themselves the subject of an applicability rule.
func (t ContractTerms) WithDefaults() ContractTerms {
	if t.Calendar == "" {
		t.Calendar = generic.CalendarNoCalendar
	}
	if t.BusinessDayConvention == "" {
		t.BusinessDayConvention = generic.BusinessDayNoShift
	}
	if t.EndOfMonthConvention == "" {
		t.EndOfMonthConvention = generic.EndOfMonthSameDay
	}
	if t.ContractPerformance == "" {
		t.ContractPerformance = PerformancePerforming
	}
	if t.ScalingEffect == "" {
		t.ScalingEffect = ScalingNone
	}
	if t.InterestCalculationBase == "" {
		t.InterestCalculationBase = InterestBaseNotional
	}
	if t.PrepaymentEffect == "" {
		t.PrepaymentEffect = PrepaymentNone
	}
	if t.PenaltyType == "" {
		t.PenaltyType = PenaltyNone
	}
	if t.CyclePointOfInterestPayment == "" {
		t.CyclePointOfInterestPayment = CyclePointEnd
	}
	if t.CyclePointOfRateReset == "" {
		t.CyclePointOfRateReset = CyclePointBeginning
	}
	if t.PremiumDiscountAtIED.IsNull() {
		t.PremiumDiscountAtIED = generic.Zero
	}
	if t.RateSpread.IsNull() {
		t.RateSpread = generic.Zero
	}
	if t.RateMultiplier.IsNull() {
		t.RateMultiplier = generic.One
	}
	return t
}

// SettlementAsset is the currency transfers are denominated in.
func (t *ContractTerms) SettlementAsset() string {
	if t.SettlementCurrency != "" {
		return t.SettlementCurrency
	}
	return t.Currency
}

// Maturity is the contract end: the maturity date, or the amortization date
// for amortizing contracts that only define the latter.
func (t *ContractTerms) Maturity() generic.TimePoint {
	if !t.MaturityDate.IsNull() {
		return t.MaturityDate
	}
	return t.AmortizationDate
}

// YearFraction applies the contract's day-count convention.
func (t *ContractTerms) YearFraction(from, to generic.TimePoint) generic.Number {
	return generic.YearFraction(from, to, t.DayCountConvention)
}

// Shift applies the contract's business-day convention and calendar.
func (t *ContractTerms) Shift(tp generic.TimePoint) generic.TimePoint {
	return t.BusinessDayConvention.Shift(tp, t.Calendar)
}
