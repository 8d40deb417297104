package pam

import (
	"encoding/json"

	"github.com/warp/actus-engine/actus"
	"github.com/warp/actus-engine/generic"
)

// =============================================================================
// PRESETS - Ready-made PAM term sheets
// =============================================================================
//
// The *JSON variants build the wire form accepted by factory.ParseTerms and
// POST /api/contracts. They construct JSON directly to avoid an import cycle
// with the factory package.

// BulletLoanTerms returns a fixed-rate bullet loan from the lender's side,
// paying interest on interestCycle (for example "P1YL0") from ied to md.
func BulletLoanTerms(creator, counterparty, currency string, notional, rate generic.Number, ied, md generic.TimePoint, interestCycle string) actus.ContractTerms {
	terms := actus.ContractTerms{
		ContractType:        actus.ContractTypePAM,
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
	if interestCycle != "" {
		if c, err := generic.ParseCycle(interestCycle); err == nil {
			terms.CycleOfInterestPayment = c
			terms.CycleAnchorDateOfInterestPayment = generic.SumCycle(ied, c, generic.EndOfMonthSameDay)
		}
	}
	return terms
}

// BulletLoanJSON returns the JSON terms of a fixed-rate bullet loan.
func BulletLoanJSON(creator, counterparty, currency string, notional, rate float64, ied, md, interestCycle string) string {
	t := map[string]interface{}{
		"contractType":        "PAM",
		"contractRole":        "RPA",
		"statusDate":          ied,
		"creatorID":           creator,
		"counterpartyID":      counterparty,
		"currency":            currency,
		"initialExchangeDate": ied,
		"maturityDate":        md,
		"notionalPrincipal":   notional,
		"nominalInterestRate": rate,
		"dayCountConvention":  "30E360",
	}
	if interestCycle != "" {
		t["cycleOfInterestPayment"] = interestCycle
	}
	b, _ := json.MarshalIndent(t, "", "  ")
	return string(b)
}

// FloatingRateNoteJSON returns the JSON terms of a PAM whose rate resets on
// resetCycle from the market object rateIndex, within a life floor and cap.
func FloatingRateNoteJSON(creator, counterparty, currency string, notional, rate float64, ied, md, resetCycle, rateIndex string, spread, lifeFloor, lifeCap float64) string {
	t := map[string]interface{}{
		"contractType":                "PAM",
		"contractRole":                "RPA",
		"statusDate":                  ied,
		"creatorID":                   creator,
		"counterpartyID":              counterparty,
		"currency":                    currency,
		"initialExchangeDate":         ied,
		"maturityDate":                md,
		"notionalPrincipal":           notional,
		"nominalInterestRate":         rate,
		"dayCountConvention":          "A365",
		"cycleOfInterestPayment":      resetCycle,
		"cycleOfRateReset":            resetCycle,
		"marketObjectCodeOfRateReset": rateIndex,
		"rateSpread":                  spread,
		"lifeFloor":                   lifeFloor,
		"lifeCap":                     lifeCap,
	}
	b, _ := json.MarshalIndent(t, "", "  ")
	return string(b)
}
