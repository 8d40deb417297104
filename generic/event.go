package generic

import (
	"fmt"
	"sort"
)

// =============================================================================
// EVENT MODEL - Typed, totally ordered contract events
// =============================================================================

// EventType identifies a contractual event. The declaration order is the
// tie-break priority for events sharing a time point: lower fires first.
type EventType int

const (
	EventIED  EventType = iota // initial exchange
	EventIPCI                  // interest capitalization
	EventIP                    // interest payment
	EventFP                    // fee payment
	EventPR                    // principal redemption
	EventPD                    // principal drawing
	EventPRF                   // principal payment amount fixing
	EventPY                    // penalty payment
	EventPP                    // principal prepayment
	EventPRD                   // purchase
	EventTD                    // termination
	EventCE                    // credit event
	EventRRF                   // rate reset fixing with known rate
	EventRR                    // rate reset
	EventDV                    // dividend
	EventIPCB                  // interest calculation base fixing
	EventMR                    // margining
	EventXD                    // exercise
	EventSTD                   // settlement
	EventMD                    // maturity
	EventSC                    // scaling index fixing
	EventAD                    // analysis
)

var eventTypeCodes = [...]string{
	EventIED:  "IED",
	EventIPCI: "IPCI",
	EventIP:   "IP",
	EventFP:   "FP",
	EventPR:   "PR",
	EventPD:   "PD",
	EventPRF:  "PRF",
	EventPY:   "PY",
	EventPP:   "PP",
	EventPRD:  "PRD",
	EventTD:   "TD",
	EventCE:   "CE",
	EventRRF:  "RRF",
	EventRR:   "RR",
	EventDV:   "DV",
	EventIPCB: "IPCB",
	EventMR:   "MR",
	EventXD:   "XD",
	EventSTD:  "STD",
	EventMD:   "MD",
	EventSC:   "SC",
	EventAD:   "AD",
}

// AllEventTypes lists every event type in priority order.
func AllEventTypes() []EventType {
	out := make([]EventType, len(eventTypeCodes))
	for i := range eventTypeCodes {
		out[i] = EventType(i)
	}
	return out
}

// Priority is the position of t in the same-time ordering.
func (t EventType) Priority() int { return int(t) }

func (t EventType) String() string {
	if t < 0 || int(t) >= len(eventTypeCodes) {
		return fmt.Sprintf("EventType(%d)", int(t))
	}
	return eventTypeCodes[t]
}

// ParseEventType maps an ACTUS event code to its EventType.
func ParseEventType(code string) (EventType, error) {
	for i, c := range eventTypeCodes {
		if c == code {
			return EventType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown event type %q", code)
}

func (t EventType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *EventType) UnmarshalText(text []byte) error {
	parsed, err := ParseEventType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Event is a typed point on a contract's timeline.
type Event struct {
	Time TimePoint `json:"time"`
	Type EventType `json:"type"`
}

func NewEvent(t TimePoint, typ EventType) Event {
	return Event{Time: t, Type: typ}
}

// Compare orders by time, then by type priority.
func (e Event) Compare(other Event) int {
	if c := e.Time.Compare(other.Time); c != 0 {
		return c
	}
	switch {
	case e.Type < other.Type:
		return -1
	case e.Type > other.Type:
		return 1
	}
	return 0
}

func (e Event) Before(other Event) bool { return e.Compare(other) < 0 }

func (e Event) String() string { return fmt.Sprintf("%s@%s", e.Type, e.Time) }

// SortEvents sorts events in place by the event total order.
func SortEvents(events []Event) {
	sort.Slice(events, func(i, j int) bool { return events[i].Compare(events[j]) < 0 })
}

// EventsAt builds one event of type typ per time point.
func EventsAt(times []TimePoint, typ EventType) []Event {
	out := make([]Event, 0, len(times))
	for _, t := range times {
		out = append(out, Event{Time: t, Type: typ})
	}
	return out
}
