package actus_test

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/actus-engine/actus"
	"github.com/warp/actus-engine/generic"
	"github.com/warp/actus-engine/pam"
)

func date(y int, m time.Month, d int) generic.TimePoint {
	return generic.NewTimePoint(y, m, d)
}

func num(s string) generic.Number {
	return generic.MustParseNumber(s)
}

func bulletLoan() actus.ContractTerms {
	return pam.BulletLoanTerms("bank", "alice", "USD", num("1000"), num("0.05"),
		date(2024, time.January, 1), date(2027, time.January, 1), "P1YL0")
}

func TestValidate_AcceptsCompleteTerms(t *testing.T) {
	terms := bulletLoan()
	assert.Nil(t, actus.Validate(&terms))
	assert.True(t, actus.IsValid(&terms))
}

func TestValidate_EmptyTerms_ReportsEveryMissingIdentifier(t *testing.T) {
	errs := actus.Validate(&actus.ContractTerms{})
	require.NotNil(t, errs)
	for _, code := range []string{
		"CONTRACT_TYPE_REQUIRED", "CONTRACT_ROLE_REQUIRED", "STATUS_DATE_REQUIRED",
		"CURRENCY_REQUIRED", "CREATOR_ID_REQUIRED", "COUNTERPARTY_ID_REQUIRED",
	} {
		assert.True(t, errs.Has(code), "missing %s in %v", code, errs.Codes())
	}
	assert.True(t, errors.Is(errs, generic.ErrValidation))
}

func TestValidate_NegativeAmounts(t *testing.T) {
	terms := bulletLoan()
	terms.NotionalPrincipal = num("-1")
	terms.NominalInterestRate = num("-0.01")

	errs := actus.Validate(&terms)
	assert.True(t, errs.Has("NEGATIVE_NOTIONAL_PRINCIPAL"))
	assert.True(t, errs.Has("NEGATIVE_NOMINAL_INTEREST_RATE"))
}

func TestValidate_DateOrder_NullIsWildcard(t *testing.T) {
	// GIVEN: Maturity before the initial exchange with the dates in between unset
	// THEN: The violation is reported against the nearest set neighbour

	terms := bulletLoan()
	terms.CycleOfInterestPayment = nil
	terms.CycleAnchorDateOfInterestPayment = generic.NullTimePoint()
	terms.MaturityDate = date(2023, time.June, 1)

	errs := actus.Validate(&terms)
	assert.True(t, errs.Has("INITIAL_EXCHANGE_DATE_AFTER_MATURITY_DATE"), "%v", errs.Codes())

	terms.MaturityDate = date(2025, time.June, 1)
	assert.Nil(t, actus.Validate(&terms))
}

func TestValidate_CycleAnchorsWithinLife(t *testing.T) {
	terms := bulletLoan()
	terms.CycleAnchorDateOfInterestPayment = date(2023, time.June, 1)
	assert.True(t, actus.Validate(&terms).Has("CYCLE_ANCHOR_DATE_OF_INTEREST_PAYMENT_BEFORE_INITIAL_EXCHANGE_DATE"))

	terms.CycleAnchorDateOfInterestPayment = date(2028, time.June, 1)
	assert.True(t, actus.Validate(&terms).Has("CYCLE_ANCHOR_DATE_OF_INTEREST_PAYMENT_AFTER_MATURITY"))
}

func TestValidate_ZeroCycleAndUnknownEnums(t *testing.T) {
	terms := bulletLoan()
	terms.CycleOfInterestPayment = &generic.Cycle{Count: 0, Unit: generic.UnitMonth}
	terms.DayCountConvention = "A999"
	terms.ContractRole = "XX"

	errs := actus.Validate(&terms)
	assert.True(t, errs.Has("ZERO_CYCLE_OF_INTEREST_PAYMENT"))
	assert.True(t, errs.Has("INVALID_DAY_COUNT_CONVENTION"), "%v", errs.Codes())
	assert.True(t, errs.Has("INVALID_CONTRACT_ROLE"), "%v", errs.Codes())
}

func TestApplicability_TriggeredGroups(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*actus.ContractTerms)
		code   string
	}{
		{"fee needs basis", func(t *actus.ContractTerms) {
			t.FeeRate = num("0.01")
			t.CycleOfFee = generic.NewCycle(1, generic.UnitYear)
		}, "FEE_BASIS_REQUIRED"},
		{"purchase needs price", func(t *actus.ContractTerms) {
			t.PurchaseDate = date(2024, time.June, 1)
		}, "PRICE_AT_PURCHASE_DATE_REQUIRED"},
		{"termination needs price", func(t *actus.ContractTerms) {
			t.TerminationDate = date(2025, time.June, 1)
		}, "PRICE_AT_TERMINATION_DATE_REQUIRED"},
		{"rate reset needs market object", func(t *actus.ContractTerms) {
			t.CycleOfRateReset = generic.NewCycle(1, generic.UnitYear)
		}, "MARKET_OBJECT_CODE_OF_RATE_RESET_REQUIRED"},
		{"scaling needs index", func(t *actus.ContractTerms) {
			t.ScalingEffect = actus.ScalingNotional
		}, "SCALING_INDEX_AT_CONTRACT_DEAL_DATE_REQUIRED"},
		{"prepayment needs model", func(t *actus.ContractTerms) {
			t.PrepaymentEffect = actus.PrepaymentReduceAmount
			t.CycleOfOptionality = generic.NewCycle(1, generic.UnitYear)
		}, "OBJECT_CODE_OF_PREPAYMENT_MODEL_REQUIRED"},
		{"penalty needs rate", func(t *actus.ContractTerms) {
			t.PenaltyType = actus.PenaltyFixedAmount
		}, "PENALTY_RATE_REQUIRED"},
		{"delinquency needs grace", func(t *actus.ContractTerms) {
			p, _ := generic.ParsePeriod("P3M")
			t.DelinquencyPeriod = p
		}, "GRACE_PERIOD_REQUIRED"},
		{"interest needs day count", func(t *actus.ContractTerms) {
			t.DayCountConvention = ""
		}, "DAY_COUNT_CONVENTION_REQUIRED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			terms := bulletLoan()
			tt.modify(&terms)
			errs := actus.CheckApplicability(&terms)
			assert.True(t, errs.Has(tt.code), "want %s, got %v", tt.code, errs.Codes())
		})
	}
}

func TestApplicability_AnnuityNeedsRedemptionCycle(t *testing.T) {
	terms := bulletLoan()
	terms.ContractType = actus.ContractTypeANN
	assert.True(t, actus.CheckApplicability(&terms).Has("PRINCIPAL_REDEMPTION_CYCLE_REQUIRED"))

	terms.CycleOfPrincipalRedemption = generic.NewCycle(1, generic.UnitMonth)
	assert.False(t, actus.CheckApplicability(&terms).Has("PRINCIPAL_REDEMPTION_CYCLE_REQUIRED"))
}

func TestRules_CodesAreDistinctAndFieldsExist(t *testing.T) {
	// Every code identifies exactly one rule site, and every attribute
	// name in the table exists on ContractTerms.
	seen := map[string]bool{}
	for _, rule := range actus.Rules {
		for _, req := range rule.Require {
			assert.False(t, seen[req.Code], "duplicate code %s", req.Code)
			seen[req.Code] = true
			assert.NotEmpty(t, req.Fields)
		}
	}

	typ := reflect.TypeOf(actus.ContractTerms{})
	for _, field := range actus.RuleFields() {
		_, ok := typ.FieldByName(field)
		assert.True(t, ok, "unknown attribute %s", field)
	}
}

func TestIsSet(t *testing.T) {
	terms := actus.ContractTerms{
		Currency:          "USD",
		NotionalPrincipal: num("0"),
		CycleOfFee:        generic.NewCycle(1, generic.UnitDay),
	}
	assert.True(t, actus.IsSet(&terms, "Currency"))
	assert.True(t, actus.IsSet(&terms, "NotionalPrincipal"))
	assert.True(t, actus.IsSet(&terms, "CycleOfFee"))
	assert.False(t, actus.IsSet(&terms, "MaturityDate"))
	assert.False(t, actus.IsSet(&terms, "ArrayCycleOfRateReset"))
	assert.False(t, actus.IsSet(&terms, "NoSuchField"))
}

func TestEngine_Deploy_RejectsInvalidTermsAtomically(t *testing.T) {
	engine := actus.NewEngine(pam.New())
	terms := bulletLoan()
	terms.NotionalPrincipal = num("-5")

	cs, err := engine.Deploy(date(2023, time.December, 31), terms)
	assert.Nil(t, cs)
	errs, ok := actus.AsValidationErrors(err)
	require.True(t, ok)
	assert.True(t, errs.Has("NEGATIVE_NOTIONAL_PRINCIPAL"))
}

func TestEngine_Deploy_UnregisteredType(t *testing.T) {
	engine := actus.NewEngine(pam.New())
	terms := bulletLoan()
	terms.ContractType = actus.ContractTypeANN
	terms.CycleOfPrincipalRedemption = generic.NewCycle(1, generic.UnitMonth)

	_, err := engine.Deploy(date(2023, time.December, 31), terms)
	assert.True(t, errors.Is(err, generic.ErrUnsupportedOperation))
}
