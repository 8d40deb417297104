package generic

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// =============================================================================
// CYCLE - The recurrence unit of every schedule
// =============================================================================

// CycleUnit is the calendar unit of a Cycle or Period.
type CycleUnit int

const (
	UnitDay CycleUnit = iota
	UnitWeek
	UnitMonth
	UnitQuarter
	UnitHalfYear
	UnitYear
)

var cycleUnitCodes = map[CycleUnit]byte{
	UnitDay:      'D',
	UnitWeek:     'W',
	UnitMonth:    'M',
	UnitQuarter:  'Q',
	UnitHalfYear: 'H',
	UnitYear:     'Y',
}

func parseCycleUnit(c byte) (CycleUnit, bool) {
	for unit, code := range cycleUnitCodes {
		if code == c {
			return unit, true
		}
	}
	return 0, false
}

// months returns the unit length in months, or 0 for day-based units.
func (u CycleUnit) months() int {
	switch u {
	case UnitMonth:
		return 1
	case UnitQuarter:
		return 3
	case UnitHalfYear:
		return 6
	case UnitYear:
		return 12
	}
	return 0
}

// days returns the unit length in days, or 0 for month-based units.
func (u CycleUnit) days() int {
	switch u {
	case UnitDay:
		return 1
	case UnitWeek:
		return 7
	}
	return 0
}

// Cycle is a recurrence such as "every 3 months". LongStub selects how an
// off-grid end date is handled: a long stub merges the last partial period
// into the previous one, a short stub keeps it separate.
//
// Text form: P<count><unit>L<0|1>, e.g. "P3ML1" (quarterly, long stub).
type Cycle struct {
	Count    int
	Unit     CycleUnit
	LongStub bool
}

// NewCycle builds a short-stub cycle.
func NewCycle(count int, unit CycleUnit) *Cycle {
	return &Cycle{Count: count, Unit: unit}
}

// ParseCycle reads the ACTUS text form. A missing stub suffix means short
// stub.
func ParseCycle(s string) (*Cycle, error) {
	s = strings.TrimSpace(s)
	if len(s) < 3 || s[0] != 'P' {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCycle, s)
	}
	body := s[1:]
	longStub := false
	if i := strings.IndexByte(body, 'L'); i >= 0 {
		switch body[i+1:] {
		case "0":
		case "1":
			longStub = true
		default:
			return nil, fmt.Errorf("%w: bad stub in %q", ErrInvalidCycle, s)
		}
		body = body[:i]
	}
	p, err := parsePeriodBody(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCycle, s)
	}
	return &Cycle{Count: p.Count, Unit: p.Unit, LongStub: longStub}, nil
}

func (c Cycle) String() string {
	stub := "0"
	if c.LongStub {
		stub = "1"
	}
	return fmt.Sprintf("P%d%cL%s", c.Count, cycleUnitCodes[c.Unit], stub)
}

func (c Cycle) MarshalJSON() ([]byte, error) { return json.Marshal(c.String()) }

func (c *Cycle) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidCycle, data)
	}
	parsed, err := ParseCycle(s)
	if err != nil {
		return err
	}
	*c = *parsed
	return nil
}

// advance returns anchor moved by n cycles. Month-based units add raw months
// and then apply the end-of-month convention.
func (c Cycle) advance(anchor TimePoint, n int, eom EndOfMonthConvention) TimePoint {
	return Period{Count: c.Count, Unit: c.Unit}.advance(anchor, n, eom)
}

// =============================================================================
// PERIOD - A duration without stub semantics
// =============================================================================

// Period is a duration such as a grace period. Text form: P<count><unit>.
type Period struct {
	Count int
	Unit  CycleUnit
}

func ParsePeriod(s string) (*Period, error) {
	s = strings.TrimSpace(s)
	if len(s) < 3 || s[0] != 'P' {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCycle, s)
	}
	p, err := parsePeriodBody(s[1:])
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCycle, s)
	}
	return &p, nil
}

func parsePeriodBody(body string) (Period, error) {
	if len(body) < 2 {
		return Period{}, ErrInvalidCycle
	}
	unit, ok := parseCycleUnit(body[len(body)-1])
	if !ok {
		return Period{}, ErrInvalidCycle
	}
	count, err := strconv.Atoi(body[:len(body)-1])
	if err != nil || count < 0 {
		return Period{}, ErrInvalidCycle
	}
	return Period{Count: count, Unit: unit}, nil
}

func (p Period) String() string {
	return fmt.Sprintf("P%d%c", p.Count, cycleUnitCodes[p.Unit])
}

func (p Period) MarshalJSON() ([]byte, error) { return json.Marshal(p.String()) }

func (p *Period) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidCycle, data)
	}
	parsed, err := ParsePeriod(s)
	if err != nil {
		return err
	}
	*p = *parsed
	return nil
}

// AddTo moves t forward by the period, clamping to month end.
func (p Period) AddTo(t TimePoint) TimePoint {
	return p.advance(t, 1, EndOfMonthSameDay)
}

func (p Period) advance(anchor TimePoint, n int, eom EndOfMonthConvention) TimePoint {
	if anchor.IsNull() {
		return anchor
	}
	if d := p.Unit.days(); d > 0 {
		return anchor.AddDays(n * p.Count * d)
	}
	y, m := anchor.addMonthsRaw(n * p.Count * p.Unit.months())
	if y < 0 || y > 9999 {
		return TimePoint{}
	}
	return shiftEndOfMonth(y, m, anchor.Day(), anchor.Hour(), anchor.Minute(), anchor.Second(), eom)
}

// =============================================================================
// END OF MONTH CONVENTION
// =============================================================================

// EndOfMonthConvention decides where month-based cycles land when the anchor
// is the last day of a month.
type EndOfMonthConvention string

const (
	// EndOfMonthSameDay keeps the anchor's day, clamped to the month length.
	EndOfMonthSameDay EndOfMonthConvention = "SD"
	// EndOfMonthEndOfMonth snaps every point to the last day of its month.
	EndOfMonthEndOfMonth EndOfMonthConvention = "EOM"
)

// EndOfMonthShift is the date-only form of the end-of-month adjustment:
// EOM moves to the month's last day, SD clamps day to the month length.
func EndOfMonthShift(year, month, day int, convention EndOfMonthConvention) TimePoint {
	return shiftEndOfMonth(year, month, day, 0, 0, 0, convention)
}

func shiftEndOfMonth(year, month, day, hour, minute, second int, convention EndOfMonthConvention) TimePoint {
	last := DaysInMonth(year, month)
	if last == 0 {
		return TimePoint{}
	}
	if convention == EndOfMonthEndOfMonth || day > last {
		day = last
	}
	return TimePointFromValues(year, month, day, hour, minute, second)
}

// effectiveEOM downgrades EOM to SD unless the anchor is a month end and the
// cycle is month-based.
func effectiveEOM(anchor TimePoint, unit CycleUnit, eom EndOfMonthConvention) EndOfMonthConvention {
	if eom == EndOfMonthEndOfMonth && anchor.IsEndOfMonth() && unit.months() > 0 {
		return EndOfMonthEndOfMonth
	}
	return EndOfMonthSameDay
}

// =============================================================================
// SCHEDULE GENERATOR
// =============================================================================

// Schedule generates the ordered time points of a cycle between anchor s and
// end t.
//
// Rules:
//   - s and t both null, s null, or s >= t is an error
//   - t null yields [s]
//   - a nil cycle yields [s, t]
//   - otherwise every s + i*cycle strictly before t, then t itself; with a
//     long stub and an off-grid t the last generated point is dropped
func Schedule(s, t TimePoint, cycle *Cycle, eom EndOfMonthConvention) ([]TimePoint, error) {
	if s.IsNull() && t.IsNull() {
		return nil, &ScheduleError{Reason: "anchor and end are both null"}
	}
	if s.IsNull() {
		return nil, &ScheduleError{Reason: "anchor is null"}
	}
	if t.IsNull() {
		return []TimePoint{s}, nil
	}
	if !s.Before(t) {
		return nil, &ScheduleError{Reason: fmt.Sprintf("anchor %s is not before end %s", s, t)}
	}
	if cycle == nil {
		return []TimePoint{s, t}, nil
	}
	if cycle.Count <= 0 {
		return nil, &ScheduleError{Reason: fmt.Sprintf("cycle %s has zero count", cycle)}
	}

	conv := effectiveEOM(s, cycle.Unit, eom)
	points := []TimePoint{s}
	onGrid := false
	for i := 1; ; i++ {
		p := cycle.advance(s, i, conv)
		if p.IsNull() {
			break
		}
		if !p.Before(t) {
			onGrid = p.Equal(t)
			break
		}
		points = append(points, p)
	}
	if cycle.LongStub && !onGrid && len(points) > 1 {
		points = points[:len(points)-1]
	}
	return append(points, t), nil
}

// SumCycle returns t moved forward by one cycle, or null when t or the cycle
// is absent.
func SumCycle(t TimePoint, cycle *Cycle, eom EndOfMonthConvention) TimePoint {
	if t.IsNull() || cycle == nil || cycle.Count <= 0 {
		return TimePoint{}
	}
	return cycle.advance(t, 1, effectiveEOM(t, cycle.Unit, eom))
}

// ArraySchedule concatenates the schedules of consecutive (anchor, cycle)
// segments. Segment i runs from anchors[i] to anchors[i+1], the last one to
// end. Boundaries shared by adjacent segments appear once.
func ArraySchedule(anchors []TimePoint, cycles []*Cycle, end TimePoint, eom EndOfMonthConvention) ([]TimePoint, error) {
	if len(anchors) == 0 {
		return nil, &ScheduleError{Reason: "array schedule has no anchors"}
	}
	if len(anchors) != len(cycles) {
		return nil, &ScheduleError{Reason: fmt.Sprintf("array schedule has %d anchors but %d cycles", len(anchors), len(cycles))}
	}
	var out []TimePoint
	for i, anchor := range anchors {
		segmentEnd := end
		if i+1 < len(anchors) {
			segmentEnd = anchors[i+1]
		}
		segment, err := Schedule(anchor, segmentEnd, cycles[i], eom)
		if err != nil {
			return nil, err
		}
		if len(out) > 0 && len(segment) > 0 && out[len(out)-1].Equal(segment[0]) {
			segment = segment[1:]
		}
		out = append(out, segment...)
	}
	return out, nil
}
