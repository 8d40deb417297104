package actus

import (
	"context"
	"fmt"
	"sort"

	"github.com/warp/actus-engine/generic"
)

// =============================================================================
// CONTRACT TYPE - A pluggable contract algorithm
// =============================================================================

// PayoffFunc computes the cash flow of an event from the pre-event state.
type PayoffFunc func(env *Env, ev generic.Event, st RunningState) (generic.Number, error)

// TransitionFunc computes the post-event state from the pre-event state.
type TransitionFunc func(env *Env, ev generic.Event, st RunningState) (RunningState, error)

// FunctionPair is one cell of the dispatch table.
type FunctionPair struct {
	Payoff     PayoffFunc
	Transition TransitionFunc
}

// ContractType is implemented by each contract algorithm.
type ContractType interface {
	Code() ContractTypeCode

	// Schedule returns every event the terms imply, including events at or
	// before the deployment time. The engine filters and sorts.
	Schedule(t0 generic.TimePoint, terms *ContractTerms) ([]generic.Event, error)

	// InitialState derives the running state at t0. schedule is the
	// unfiltered output of Schedule.
	InitialState(t0 generic.TimePoint, terms *ContractTerms, schedule []generic.Event) (RunningState, error)

	// Functions is the dispatch table keyed by event type.
	Functions() map[generic.EventType]FunctionPair
}

// Env is the read-only context of one event application.
type Env struct {
	Ctx    context.Context
	Terms  *ContractTerms
	Oracle Oracle
}

// Observe reads the latest value of a market object.
func (env *Env) Observe(code string) (generic.Number, error) {
	return observe(env.Ctx, env.Oracle, code)
}

// YearFraction applies the contract day count and fails instead of
// returning null.
func (env *Env) YearFraction(from, to generic.TimePoint) (generic.Number, error) {
	y := env.Terms.YearFraction(from, to)
	if y.IsNull() {
		return y, fmt.Errorf("%w: year fraction undefined from %s to %s (%q)",
			generic.ErrArithmetic, from, to, env.Terms.DayCountConvention)
	}
	return y, nil
}

// =============================================================================
// ENGINE - Validation, deployment and event dispatch
// =============================================================================

// Engine holds the registered contract types.
type Engine struct {
	types map[ContractTypeCode]ContractType
}

func NewEngine(types ...ContractType) *Engine {
	e := &Engine{types: make(map[ContractTypeCode]ContractType)}
	for _, ct := range types {
		e.Register(ct)
	}
	return e
}

// Register adds or replaces a contract type.
func (e *Engine) Register(ct ContractType) {
	e.types[ct.Code()] = ct
}

// ContractTypes lists the registered codes in order.
func (e *Engine) ContractTypes() []ContractTypeCode {
	out := make([]ContractTypeCode, 0, len(e.types))
	for code := range e.types {
		out = append(out, code)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (e *Engine) lookup(code ContractTypeCode) (ContractType, error) {
	ct, ok := e.types[code]
	if !ok {
		return nil, &UnsupportedOperationError{ContractType: code}
	}
	return ct, nil
}

// Supports reports whether the contract type has a function pair for typ.
func (e *Engine) Supports(code ContractTypeCode, typ generic.EventType) bool {
	ct, ok := e.types[code]
	if !ok {
		return false
	}
	_, ok = ct.Functions()[typ]
	return ok
}

// Deploy validates terms and builds the initial contract state at t0. The
// returned state has no ID; the scheduler assigns one.
//
// The schedule keeps only events strictly after t0 and drops everything
// after a termination date.
func (e *Engine) Deploy(t0 generic.TimePoint, terms ContractTerms) (*ContractState, error) {
	if t0.IsNull() {
		return nil, fmt.Errorf("%w: deployment time is null", generic.ErrInvalidTimePoint)
	}
	if errs := Validate(&terms); errs != nil {
		return nil, errs
	}
	ct, err := e.lookup(terms.ContractType)
	if err != nil {
		return nil, err
	}
	terms = terms.WithDefaults()

	full, err := ct.Schedule(t0, &terms)
	if err != nil {
		return nil, err
	}
	generic.SortEvents(full)

	state, err := ct.InitialState(t0, &terms, full)
	if err != nil {
		return nil, err
	}
	if err := state.Checked(); err != nil {
		return nil, err
	}

	return &ContractState{
		Terms:      terms,
		State:      state,
		Schedule:   pendingAfter(t0, &terms, full),
		DeployedAt: t0,
	}, nil
}

func pendingAfter(t0 generic.TimePoint, terms *ContractTerms, events []generic.Event) []generic.Event {
	// Events sorting after TD, including those on the termination date itself,
	// never apply.
	td := terms.TerminationDate
	end := generic.NewEvent(td, generic.EventTD)
	out := make([]generic.Event, 0, len(events))
	for _, ev := range events {
		if ev.Time.IsNull() || !ev.Time.After(t0) {
			continue
		}
		if !td.IsNull() && ev.Compare(end) > 0 {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// Progress applies one event to a state and returns the payoff and the next
// state. It has no side effects.
func (e *Engine) Progress(ctx context.Context, ev generic.Event, terms *ContractTerms, st RunningState, oracle Oracle) (generic.Number, RunningState, error) {
	ct, err := e.lookup(terms.ContractType)
	if err != nil {
		return generic.Null(), st, err
	}
	pair, ok := ct.Functions()[ev.Type]
	if !ok || pair.Payoff == nil || pair.Transition == nil {
		typ := ev.Type
		return generic.Null(), st, &UnsupportedOperationError{ContractType: terms.ContractType, EventType: &typ}
	}

	env := &Env{Ctx: ctx, Terms: terms, Oracle: oracle}
	payoff, err := pair.Payoff(env, ev, st)
	if err != nil {
		return generic.Null(), st, err
	}
	next, err := pair.Transition(env, ev, st)
	if err != nil {
		return generic.Null(), st, err
	}
	if err := payoff.Checked(); err != nil {
		return generic.Null(), st, fmt.Errorf("payoff: %w", err)
	}
	if err := next.Checked(); err != nil {
		return generic.Null(), st, err
	}
	return payoff, next, nil
}
