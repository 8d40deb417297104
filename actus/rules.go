package actus

import (
	"fmt"
	"reflect"
	"strings"
)

// =============================================================================
// APPLICABILITY RULES - Declarative attribute dependencies
// =============================================================================

// Rule is one row of the applicability table. A rule is active when its
// trigger holds: When names an attribute that must be set, and Cond, when
// present, must also return true. An active rule checks every Requirement.
type Rule struct {
	Group   string
	When    string
	Cond    func(*ContractTerms) bool
	Require []Requirement
}

// Requirement is satisfied when at least one of Fields is set. A single
// field makes it mandatory.
type Requirement struct {
	Code   string
	Fields []string
}

func isType(codes ...ContractTypeCode) func(*ContractTerms) bool {
	return func(t *ContractTerms) bool {
		for _, c := range codes {
			if t.ContractType == c {
				return true
			}
		}
		return false
	}
}

// Rules is the applicability table, grouped as the ACTUS dictionary groups
// attributes.
var Rules = []Rule{
	{
		Group: "Contract identification",
		Require: []Requirement{
			{Code: "CONTRACT_TYPE_REQUIRED", Fields: []string{"ContractType"}},
			{Code: "CONTRACT_ROLE_REQUIRED", Fields: []string{"ContractRole"}},
			{Code: "STATUS_DATE_REQUIRED", Fields: []string{"StatusDate"}},
			{Code: "CURRENCY_REQUIRED", Fields: []string{"Currency"}},
		},
	},
	{
		Group: "Counterparty",
		Require: []Requirement{
			{Code: "CREATOR_ID_REQUIRED", Fields: []string{"CreatorID"}},
			{Code: "COUNTERPARTY_ID_REQUIRED", Fields: []string{"CounterpartyID"}},
		},
	},
	{
		Group: "Notional principal",
		Cond:  isType(ContractTypePAM, ContractTypeANN),
		Require: []Requirement{
			{Code: "INITIAL_EXCHANGE_DATE_REQUIRED", Fields: []string{"InitialExchangeDate"}},
			{Code: "NOTIONAL_PRINCIPAL_REQUIRED", Fields: []string{"NotionalPrincipal"}},
			{Code: "NOMINAL_INTEREST_RATE_REQUIRED", Fields: []string{"NominalInterestRate"}},
		},
	},
	{
		Group: "Principal at maturity",
		Cond:  isType(ContractTypePAM),
		Require: []Requirement{
			{Code: "MATURITY_DATE_REQUIRED", Fields: []string{"MaturityDate"}},
		},
	},
	{
		Group: "Annuity",
		Cond:  isType(ContractTypeANN),
		Require: []Requirement{
			{Code: "ANNUITY_MATURITY_REQUIRED", Fields: []string{"MaturityDate", "AmortizationDate"}},
			{Code: "PRINCIPAL_REDEMPTION_CYCLE_REQUIRED", Fields: []string{"CycleAnchorDateOfPrincipalRedemption", "CycleOfPrincipalRedemption", "ArrayCycleAnchorDateOfPrincipalRedemption"}},
		},
	},
	{
		Group: "Interest",
		When:  "NominalInterestRate",
		Require: []Requirement{
			{Code: "DAY_COUNT_CONVENTION_REQUIRED", Fields: []string{"DayCountConvention"}},
		},
	},
	{
		Group: "Interest",
		When:  "ArrayCycleAnchorDateOfInterestPayment",
		Require: []Requirement{
			{Code: "ARRAY_CYCLE_OF_INTEREST_PAYMENT_REQUIRED", Fields: []string{"ArrayCycleOfInterestPayment"}},
		},
	},
	{
		Group: "Capitalization",
		When:  "CapitalizationEndDate",
		Require: []Requirement{
			{Code: "CAPITALIZATION_REQUIRES_INTEREST_CYCLE", Fields: []string{"CycleAnchorDateOfInterestPayment", "CycleOfInterestPayment", "ArrayCycleAnchorDateOfInterestPayment"}},
		},
	},
	{
		Group: "Interest calculation base",
		Cond: func(t *ContractTerms) bool {
			return t.InterestCalculationBase == InterestBaseNotionalLagged
		},
		Require: []Requirement{
			{Code: "INTEREST_CALCULATION_BASE_CYCLE_REQUIRED", Fields: []string{"CycleAnchorDateOfInterestCalculationBase", "CycleOfInterestCalculationBase"}},
		},
	},
	{
		Group: "Fees",
		When:  "FeeRate",
		Require: []Requirement{
			{Code: "FEE_BASIS_REQUIRED", Fields: []string{"FeeBasis"}},
			{Code: "FEE_CYCLE_REQUIRED", Fields: []string{"CycleAnchorDateOfFee", "CycleOfFee"}},
		},
	},
	{
		Group: "Purchase",
		When:  "PurchaseDate",
		Require: []Requirement{
			{Code: "PRICE_AT_PURCHASE_DATE_REQUIRED", Fields: []string{"PriceAtPurchaseDate"}},
		},
	},
	{
		Group: "Termination",
		When:  "TerminationDate",
		Require: []Requirement{
			{Code: "PRICE_AT_TERMINATION_DATE_REQUIRED", Fields: []string{"PriceAtTerminationDate"}},
		},
	},
	{
		Group: "Rate reset",
		Cond: func(t *ContractTerms) bool {
			return !t.CycleAnchorDateOfRateReset.IsNull() || t.CycleOfRateReset != nil || len(t.ArrayCycleAnchorDateOfRateReset) > 0
		},
		Require: []Requirement{
			{Code: "MARKET_OBJECT_CODE_OF_RATE_RESET_REQUIRED", Fields: []string{"MarketObjectCodeOfRateReset"}},
		},
	},
	{
		Group: "Rate reset",
		When:  "NextResetRate",
		Require: []Requirement{
			{Code: "NEXT_RESET_RATE_REQUIRES_RESET_CYCLE", Fields: []string{"CycleAnchorDateOfRateReset", "CycleOfRateReset", "ArrayCycleAnchorDateOfRateReset"}},
		},
	},
	{
		Group: "Scaling",
		Cond:  func(t *ContractTerms) bool { return t.ScalingEffect.Active() },
		Require: []Requirement{
			{Code: "MARKET_OBJECT_CODE_OF_SCALING_INDEX_REQUIRED", Fields: []string{"MarketObjectCodeOfScalingIndex"}},
			{Code: "SCALING_INDEX_AT_CONTRACT_DEAL_DATE_REQUIRED", Fields: []string{"ScalingIndexAtContractDealDate"}},
			{Code: "SCALING_CYCLE_REQUIRED", Fields: []string{"CycleAnchorDateOfScalingIndex", "CycleOfScalingIndex"}},
		},
	},
	{
		Group: "Optionality",
		Cond:  func(t *ContractTerms) bool { return t.PrepaymentEffect.Active() },
		Require: []Requirement{
			{Code: "PREPAYMENT_CYCLE_REQUIRED", Fields: []string{"CycleAnchorDateOfOptionality", "CycleOfOptionality"}},
			{Code: "OBJECT_CODE_OF_PREPAYMENT_MODEL_REQUIRED", Fields: []string{"ObjectCodeOfPrepaymentModel"}},
		},
	},
	{
		Group: "Penalty",
		Cond:  func(t *ContractTerms) bool { return t.PenaltyType.Active() },
		Require: []Requirement{
			{Code: "PENALTY_RATE_REQUIRED", Fields: []string{"PenaltyRate"}},
		},
	},
	{
		Group: "Penalty",
		Cond:  func(t *ContractTerms) bool { return t.PenaltyType == PenaltyRateDiff },
		Require: []Requirement{
			{Code: "PENALTY_RATE_INDEX_REQUIRED", Fields: []string{"MarketObjectCodeOfRateReset"}},
		},
	},
	{
		Group: "Credit",
		When:  "DelinquencyRate",
		Require: []Requirement{
			{Code: "DELINQUENCY_PERIOD_REQUIRED", Fields: []string{"DelinquencyPeriod"}},
		},
	},
	{
		Group: "Credit",
		When:  "DelinquencyPeriod",
		Require: []Requirement{
			{Code: "GRACE_PERIOD_REQUIRED", Fields: []string{"GracePeriod"}},
		},
	},
}

// CheckApplicability evaluates the rule table and reports one violation per
// unmet requirement.
func CheckApplicability(terms *ContractTerms) ValidationErrors {
	var errs ValidationErrors
	for _, rule := range Rules {
		if !rule.active(terms) {
			continue
		}
		for _, req := range rule.Require {
			if anySet(terms, req.Fields) {
				continue
			}
			errs = append(errs, &ValidationError{
				Code:    req.Code,
				Field:   req.Fields[0],
				Message: requirementMessage(rule, req),
			})
		}
	}
	return errs
}

func (r Rule) active(terms *ContractTerms) bool {
	if r.When != "" && !IsSet(terms, r.When) {
		return false
	}
	if r.Cond != nil && !r.Cond(terms) {
		return false
	}
	return true
}

func requirementMessage(rule Rule, req Requirement) string {
	what := req.Fields[0] + " is required"
	if len(req.Fields) > 1 {
		what = "one of " + strings.Join(req.Fields, ", ") + " is required"
	}
	if rule.When != "" {
		return fmt.Sprintf("%s: %s when %s is set", rule.Group, what, rule.When)
	}
	return fmt.Sprintf("%s: %s", rule.Group, what)
}

func anySet(terms *ContractTerms, fields []string) bool {
	for _, f := range fields {
		if IsSet(terms, f) {
			return true
		}
	}
	return false
}

// IsSet reports whether the named attribute carries a value. Unknown names
// are never set.
func IsSet(terms *ContractTerms, field string) bool {
	v := reflect.ValueOf(terms).Elem().FieldByName(field)
	if !v.IsValid() {
		return false
	}
	switch v.Kind() {
	case reflect.Pointer:
		return !v.IsNil()
	case reflect.Slice:
		return v.Len() > 0
	case reflect.String:
		return v.Len() > 0
	case reflect.Struct:
		if n, ok := v.Interface().(interface{ IsNull() bool }); ok {
			return !n.IsNull()
		}
	}
	return !v.IsZero()
}

// RuleFields lists every attribute name the table references.
func RuleFields() []string {
	var out []string
	for _, r := range Rules {
		if r.When != "" {
			out = append(out, r.When)
		}
		for _, req := range r.Require {
			out = append(out, req.Fields...)
		}
	}
	return out
}
