package actus

import (
	"fmt"

	"github.com/warp/actus-engine/generic"
)

// =============================================================================
// RUNNING STATE - Values carried from event to event
// =============================================================================

// RunningState is the mutable part of a contract. Amounts are signed from the
// creator's perspective: a lender's (RPA) notional is positive.
type RunningState struct {
	NotionalPrincipal              generic.Number      `json:"notionalPrincipal"`
	NominalInterestRate            generic.Number      `json:"nominalInterestRate"`
	AccruedInterest                generic.Number      `json:"accruedInterest"`
	FeeAccrued                     generic.Number      `json:"feeAccrued"`
	NotionalScalingMultiplier      generic.Number      `json:"notionalScalingMultiplier"`
	InterestScalingMultiplier      generic.Number      `json:"interestScalingMultiplier"`
	NextPrincipalRedemptionPayment generic.Number      `json:"nextPrincipalRedemptionPayment"`
	InterestCalculationBaseAmount  generic.Number      `json:"interestCalculationBaseAmount"`
	LastInterestPaid               generic.Number      `json:"lastInterestPaid"`
	LastInterestPaymentDate        generic.TimePoint   `json:"lastInterestPaymentDate"`
	MaturityDate                   generic.TimePoint   `json:"maturityDate"`
	StatusDate                     generic.TimePoint   `json:"statusDate"`
	LastEventDate                  generic.TimePoint   `json:"lastEventDate"`
	ContractPerformance            ContractPerformance `json:"contractPerformance"`
}

// InterestBase is the amount interest accrues on: the interest calculation
// base amount when one is tracked, otherwise the notional.
func (s RunningState) InterestBase() generic.Number {
	if !s.InterestCalculationBaseAmount.IsNull() {
		return s.InterestCalculationBaseAmount
	}
	return s.NotionalPrincipal
}

// Checked rejects states holding values outside the fixed-point range.
func (s RunningState) Checked() error {
	fields := []struct {
		name  string
		value generic.Number
	}{
		{"notionalPrincipal", s.NotionalPrincipal},
		{"nominalInterestRate", s.NominalInterestRate},
		{"accruedInterest", s.AccruedInterest},
		{"feeAccrued", s.FeeAccrued},
		{"notionalScalingMultiplier", s.NotionalScalingMultiplier},
		{"interestScalingMultiplier", s.InterestScalingMultiplier},
		{"nextPrincipalRedemptionPayment", s.NextPrincipalRedemptionPayment},
		{"interestCalculationBaseAmount", s.InterestCalculationBaseAmount},
		{"lastInterestPaid", s.LastInterestPaid},
	}
	for _, f := range fields {
		if err := f.value.Checked(); err != nil {
			return fmt.Errorf("%s: %w", f.name, err)
		}
	}
	return nil
}

// advance stamps the state with the time of the event just applied.
func (s RunningState) advance(t generic.TimePoint) RunningState {
	s.StatusDate = t
	s.LastEventDate = t
	return s
}

// =============================================================================
// CONTRACT STATE - A deployed contract
// =============================================================================

// ContractState is everything the scheduler needs to resume a contract: its
// terms, the running state, the pending schedule and the index of the next
// event to apply.
type ContractState struct {
	ID         generic.ContractID `json:"id"`
	Terms      ContractTerms      `json:"terms"`
	State      RunningState       `json:"state"`
	Schedule   []generic.Event    `json:"schedule"`
	NextEvent  int                `json:"next_event"`
	DeployedAt generic.TimePoint  `json:"deployed_at"`
}

// Done reports whether every scheduled event has been applied.
func (c *ContractState) Done() bool { return c.NextEvent >= len(c.Schedule) }

// Next returns the next pending event.
func (c *ContractState) Next() (generic.Event, bool) {
	if c.Done() {
		return generic.Event{}, false
	}
	return c.Schedule[c.NextEvent], true
}

// Pointer is the scheduler heap entry for the contract, if any event remains.
func (c *ContractState) Pointer() (generic.ScheduledEvent, bool) {
	ev, ok := c.Next()
	if !ok {
		return generic.ScheduledEvent{}, false
	}
	return generic.ScheduledEvent{ContractID: c.ID, Event: ev, Index: c.NextEvent}, true
}

// Pending returns the events not yet applied.
func (c *ContractState) Pending() []generic.Event {
	if c.Done() {
		return nil
	}
	out := make([]generic.Event, len(c.Schedule)-c.NextEvent)
	copy(out, c.Schedule[c.NextEvent:])
	return out
}

// EventRecord is one applied event in a contract's history.
type EventRecord struct {
	ContractID generic.ContractID `json:"contract_id"`
	Index      int                `json:"index"`
	Event      generic.Event      `json:"event"`
	Payoff     generic.Number     `json:"payoff"`
	State      RunningState       `json:"state"`
	TransferID string             `json:"transfer_id,omitempty"`
}
