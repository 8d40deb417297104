package actus

import (
	"context"

	"github.com/warp/actus-engine/generic"
)

// Project deploys terms at t0 and applies every pending event in order
// without persisting anything. It returns the event table a live contract
// would produce given the oracle's current observations.
//
// The first failing event stops the projection; the records applied so far
// are returned with the error.
func Project(ctx context.Context, engine *Engine, t0 generic.TimePoint, terms ContractTerms, oracle Oracle) ([]EventRecord, error) {
	cs, err := engine.Deploy(t0, terms)
	if err != nil {
		return nil, err
	}
	id, err := NewContractID(terms, t0)
	if err != nil {
		return nil, err
	}
	cs.ID = id

	records := make([]EventRecord, 0, len(cs.Schedule))
	st := cs.State
	for i, ev := range cs.Schedule {
		payoff, next, err := engine.Progress(ctx, ev, &cs.Terms, st, oracle)
		if err != nil {
			return records, &ApplyError{ContractID: id, Index: i, Event: ev, Err: err}
		}
		rec := EventRecord{ContractID: id, Index: i, Event: ev, Payoff: payoff, State: next}
		if tr, ok := NewTransfer(cs, i, ev, payoff); ok {
			rec.TransferID = tr.ID
		}
		records = append(records, rec)
		st = next
	}
	return records, nil
}
