package actus

import (
	"context"
	"errors"

	"github.com/warp/actus-engine/generic"
)

// =============================================================================
// ORACLE - Market observations keyed by market object code
// =============================================================================

// Observation is a recorded market value.
type Observation struct {
	MarketObjectCode string            `json:"market_object_code"`
	Time             generic.TimePoint `json:"time"`
	Value            generic.Number    `json:"value"`
}

// Oracle returns the latest observation for a market object code. It never
// changes contract state.
type Oracle interface {
	Latest(ctx context.Context, marketObjectCode string) (Observation, error)
}

// OracleFunc adapts a function to Oracle.
type OracleFunc func(ctx context.Context, marketObjectCode string) (Observation, error)

func (f OracleFunc) Latest(ctx context.Context, marketObjectCode string) (Observation, error) {
	return f(ctx, marketObjectCode)
}

// observe reads a value and wraps every failure in a LookupError.
func observe(ctx context.Context, oracle Oracle, code string) (generic.Number, error) {
	if oracle == nil {
		return generic.Null(), &LookupError{MarketObjectCode: code, Err: errors.New("no oracle configured")}
	}
	obs, err := oracle.Latest(ctx, code)
	if err != nil {
		var lookup *LookupError
		if errors.As(err, &lookup) {
			return generic.Null(), err
		}
		return generic.Null(), &LookupError{MarketObjectCode: code, Err: err}
	}
	if obs.Value.IsNull() {
		return generic.Null(), &LookupError{MarketObjectCode: code, Err: generic.ErrObservationNotFound}
	}
	return obs.Value, nil
}
