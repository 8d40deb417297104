/*
Package actus implements the contract engine shared by every ACTUS contract
type.

PURPOSE:
  A contract is described once by its terms. From the terms the engine
  derives a deterministic event schedule and an initial running state, then
  advances the state one event at a time through a table of
  (payoff, transition) function pairs keyed by event type.

KEY CONCEPTS:
  - ContractTerms: the immutable attribute record supplied at deployment
  - RunningState: the mutable values carried from event to event
  - ContractType: a pluggable contract algorithm (see packages pam, ann)
  - Engine: validation, schedule building and event dispatch
  - Scheduler: drives many deployed contracts forward in time

DATA FLOW:
  terms -> Validate -> ContractType.Schedule -> InitialState
        -> for each due event: Payoff + Transition -> Ledger transfer
           -> ContractStore.CommitEvent

SEE ALSO:
  - generic/: numbers, time points, cycles and the event model
  - pam/, ann/: the concrete contract types
  - store/sqlite: durable storage for contracts, transfers and observations
*/
package actus

import "github.com/warp/actus-engine/generic"

// =============================================================================
// ENUMERATED ATTRIBUTES
// =============================================================================

// ContractTypeCode names an ACTUS contract algorithm.
type ContractTypeCode string

const (
	ContractTypePAM ContractTypeCode = "PAM" // principal at maturity
	ContractTypeANN ContractTypeCode = "ANN" // annuity
	ContractTypeLAM ContractTypeCode = "LAM" // linear amortizer
	ContractTypeNAM ContractTypeCode = "NAM" // negative amortizer
	ContractTypeCSH ContractTypeCode = "CSH" // cash
	ContractTypeSTK ContractTypeCode = "STK" // stock
)

// ContractRole fixes the sign of cash flows from the creator's perspective.
type ContractRole string

const (
	RoleRealPositionAsset     ContractRole = "RPA"
	RoleRealPositionLiability ContractRole = "RPL"
	RoleLong                  ContractRole = "LG"
	RoleShort                 ContractRole = "ST"
	RoleBuyer                 ContractRole = "BUY"
	RoleSeller                ContractRole = "SEL"
	RoleReceiveFirstLeg       ContractRole = "RFL"
	RolePayFirstLeg           ContractRole = "PFL"
)

// Sign returns +1 for asset-side roles and -1 for liability-side roles.
// Unknown roles return null.
func (r ContractRole) Sign() generic.Number {
	switch r {
	case RoleRealPositionAsset, RoleLong, RoleBuyer, RoleReceiveFirstLeg:
		return generic.One
	case RoleRealPositionLiability, RoleShort, RoleSeller, RolePayFirstLeg:
		return generic.NewNumber(-1)
	}
	return generic.Null()
}

// ContractPerformance is the credit status of a contract.
type ContractPerformance string

const (
	PerformancePerforming ContractPerformance = "PF"
	PerformanceDelayed    ContractPerformance = "DL"
	PerformanceDelinquent ContractPerformance = "DQ"
	PerformanceDefault    ContractPerformance = "DF"
	PerformanceMatured    ContractPerformance = "MA"
	PerformanceTerminated ContractPerformance = "TE"
)

// FeeBasis selects between absolute (A) and notional-relative (N) fees.
type FeeBasis string

const (
	FeeBasisAbsolute FeeBasis = "A"
	FeeBasisNotional FeeBasis = "N"
)

// ScalingEffect is a three-character code: position 1 is 'I' when interest
// is indexed, position 2 is 'N' when notional is indexed.
type ScalingEffect string

const (
	ScalingNone             ScalingEffect = "000"
	ScalingInterest         ScalingEffect = "I00"
	ScalingNotional         ScalingEffect = "0N0"
	ScalingInterestNotional ScalingEffect = "IN0"
)

func (s ScalingEffect) ScalesInterest() bool { return len(s) >= 1 && s[0] == 'I' }
func (s ScalingEffect) ScalesNotional() bool { return len(s) >= 2 && s[1] == 'N' }
func (s ScalingEffect) Active() bool         { return s.ScalesInterest() || s.ScalesNotional() }

// InterestCalculationBase selects what interest accrues on.
type InterestCalculationBase string

const (
	InterestBaseNotional       InterestCalculationBase = "NT"
	InterestBaseNotionalAtIED  InterestCalculationBase = "NTIED"
	InterestBaseNotionalLagged InterestCalculationBase = "NTL"
)

// PrepaymentEffect describes what a prepayment does to the contract.
type PrepaymentEffect string

const (
	PrepaymentNone           PrepaymentEffect = "N"
	PrepaymentReduceAmount   PrepaymentEffect = "A"
	PrepaymentReduceMaturity PrepaymentEffect = "M"
)

// Active reports whether prepayments are possible.
func (p PrepaymentEffect) Active() bool { return p != "" && p != PrepaymentNone }

// PenaltyType selects how prepayment penalties are computed.
type PenaltyType string

const (
	PenaltyNone        PenaltyType = "O"
	PenaltyFixedAmount PenaltyType = "A"
	PenaltyRelative    PenaltyType = "N"
	PenaltyRateDiff    PenaltyType = "I"
)

func (p PenaltyType) Active() bool { return p != "" && p != PenaltyNone }

// CyclePoint places a payment or reset at the beginning or end of its cycle.
type CyclePoint string

const (
	CyclePointBeginning CyclePoint = "B"
	CyclePointEnd       CyclePoint = "E"
)

// Seniority ranks claims in default.
type Seniority string

const (
	SenioritySenior Seniority = "S"
	SeniorityJunior Seniority = "J"
)
