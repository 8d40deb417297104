package ann

import (
	"encoding/json"

	"github.com/warp/actus-engine/actus"
	"github.com/warp/actus-engine/generic"
)

// AnnuityTerms returns a fixed-rate amortizing loan from the lender's side,
// paying a level amount on cycle (for example "P1ML0") from ied to md.
func AnnuityTerms(creator, counterparty, currency string, notional, rate generic.Number, ied, md generic.TimePoint, cycle string) actus.ContractTerms {
	terms := actus.ContractTerms{
		ContractType:        actus.ContractTypeANN,
		ContractRole:        actus.RoleRealPositionAsset,
		StatusDate:          ied.AddDays(-1),
		CreatorID:           creator,
		CounterpartyID:      counterparty,
		Currency:            currency,
		ContractDealDate:    ied.AddDays(-1),
		InitialExchangeDate: ied,
		MaturityDate:        md,
		NotionalPrincipal:   notional,
		NominalInterestRate: rate,
		DayCountConvention:  generic.DayCount30E360,
	}
	if c, err := generic.ParseCycle(cycle); err == nil {
		terms.CycleOfPrincipalRedemption = c
		terms.CycleAnchorDateOfPrincipalRedemption = generic.SumCycle(ied, c, generic.EndOfMonthSameDay)
	}
	return terms
}

// AnnuityJSON returns the JSON terms of a fixed-rate amortizing loan.
func AnnuityJSON(creator, counterparty, currency string, notional, rate float64, ied, md, cycle string) string {
	t := map[string]interface{}{
		"contractType":               "ANN",
		"contractRole":               "RPA",
		"statusDate":                 ied,
		"creatorID":                  creator,
		"counterpartyID":             counterparty,
		"currency":                   currency,
		"initialExchangeDate":        ied,
		"maturityDate":               md,
		"notionalPrincipal":          notional,
		"nominalInterestRate":        rate,
		"dayCountConvention":         "30E360",
		"cycleOfPrincipalRedemption": cycle,
	}
	b, _ := json.MarshalIndent(t, "", "  ")
	return string(b)
}
