package generic

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// DAY COUNT CONVENTIONS - Year fractions between two time points
// =============================================================================

// DayCountConvention names the rule used to turn a date interval into a
// fraction of a year.
type DayCountConvention string

const (
	DayCountActualActual DayCountConvention = "AA"
	DayCountActual360    DayCountConvention = "A360"
	DayCountActual365    DayCountConvention = "A365"
	DayCount30E360       DayCountConvention = "30E360"
	DayCount30360        DayCountConvention = "30360"
)

// Valid reports whether c is a known convention.
func (c DayCountConvention) Valid() bool {
	switch c {
	case DayCountActualActual, DayCountActual360, DayCountActual365, DayCount30E360, DayCount30360:
		return true
	}
	return false
}

// YearFraction returns the fraction of a year between s and t under
// convention. It is null when either side is null, s is after t, or the
// convention is unknown. Only the date part of s and t is used.
func YearFraction(s, t TimePoint, convention DayCountConvention) Number {
	days, ok := DiffDays(s, t)
	if !ok {
		return Null()
	}
	switch convention {
	case DayCountActual360:
		return ratio(days, 360)
	case DayCountActual365:
		return ratio(days, 365)
	case DayCountActualActual:
		return actualActual(s, t)
	case DayCount30E360:
		return thirty360(s, t, true)
	case DayCount30360:
		return thirty360(s, t, false)
	}
	return Null()
}

func ratio(num, den int64) Number {
	return NewNumberFromDecimal(decimal.NewFromInt(num).DivRound(decimal.NewFromInt(den), Scale))
}

func daysInYear(year int) int64 {
	if IsLeapYear(year) {
		return 366
	}
	return 365
}

// actualActual splits the interval at year boundaries: days falling in a
// leap year count 1/366, the others 1/365.
func actualActual(s, t TimePoint) Number {
	if s.Year() == t.Year() {
		days, _ := DiffDays(s.Date(), t.Date())
		return ratio(days, daysInYear(s.Year()))
	}
	nextYear := NewTimePoint(s.Year()+1, 1, 1)
	head, _ := DiffDays(s.Date(), nextYear)
	startOfLast := NewTimePoint(t.Year(), 1, 1)
	tail, _ := DiffDays(startOfLast, t.Date())
	whole := int64(t.Year() - s.Year() - 1)
	return ratio(head, daysInYear(s.Year())).
		Add(NewNumber(whole)).
		Add(ratio(tail, daysInYear(t.Year())))
}

// thirty360 implements 30E/360 (both ends clamped to 30) and the 30/360 bond
// basis (the end clamps only when the start was clamped).
func thirty360(s, t TimePoint, european bool) Number {
	d1, d2 := s.Day(), t.Day()
	if european {
		d1 = min(d1, 30)
		d2 = min(d2, 30)
	} else {
		if d1 == 31 {
			d1 = 30
		}
		if d2 == 31 && d1 >= 30 {
			d2 = 30
		}
	}
	days := 360*(t.Year()-s.Year()) + 30*(t.Month()-s.Month()) + (d2 - d1)
	return ratio(int64(days), 360)
}

// =============================================================================
// BUSINESS DAY CALENDARS AND SHIFT CONVENTIONS
// =============================================================================

// BusinessDayCalendar decides which days are business days.
type BusinessDayCalendar string

const (
	// CalendarNoCalendar treats every day as a business day.
	CalendarNoCalendar BusinessDayCalendar = "NC"
	// CalendarMondayToFriday excludes weekends.
	CalendarMondayToFriday BusinessDayCalendar = "MF"
)

func (c BusinessDayCalendar) IsBusinessDay(t TimePoint) bool {
	if c == CalendarMondayToFriday {
		return t.IsWorkday()
	}
	return !t.IsNull()
}

// BusinessDayConvention moves event dates that fall on non-business days.
// The "SC" family shifts then calculates (the shifted date drives accrual),
// the "CS" family calculates on the unshifted date; the engine schedules
// both on the shifted date.
type BusinessDayConvention string

const (
	BusinessDayNoShift                    BusinessDayConvention = "NOS"
	BusinessDayShiftCalcFollowing         BusinessDayConvention = "SCF"
	BusinessDayShiftCalcModifiedFollowing BusinessDayConvention = "SCMF"
	BusinessDayCalcShiftFollowing         BusinessDayConvention = "CSF"
	BusinessDayCalcShiftModifiedFollowing BusinessDayConvention = "CSMF"
	BusinessDayShiftCalcPreceding         BusinessDayConvention = "SCP"
	BusinessDayShiftCalcModifiedPreceding BusinessDayConvention = "SCMP"
	BusinessDayCalcShiftPreceding         BusinessDayConvention = "CSP"
	BusinessDayCalcShiftModifiedPreceding BusinessDayConvention = "CSMP"
)

func (c BusinessDayConvention) Valid() bool {
	switch c {
	case BusinessDayNoShift,
		BusinessDayShiftCalcFollowing, BusinessDayShiftCalcModifiedFollowing,
		BusinessDayCalcShiftFollowing, BusinessDayCalcShiftModifiedFollowing,
		BusinessDayShiftCalcPreceding, BusinessDayShiftCalcModifiedPreceding,
		BusinessDayCalcShiftPreceding, BusinessDayCalcShiftModifiedPreceding:
		return true
	}
	return false
}

// Shift moves t to a business day of calendar.
func (c BusinessDayConvention) Shift(t TimePoint, calendar BusinessDayCalendar) TimePoint {
	if t.IsNull() || calendar.IsBusinessDay(t) {
		return t
	}
	switch c {
	case BusinessDayShiftCalcFollowing, BusinessDayCalcShiftFollowing:
		return nextBusinessDay(t, calendar, 1)
	case BusinessDayShiftCalcPreceding, BusinessDayCalcShiftPreceding:
		return nextBusinessDay(t, calendar, -1)
	case BusinessDayShiftCalcModifiedFollowing, BusinessDayCalcShiftModifiedFollowing:
		shifted := nextBusinessDay(t, calendar, 1)
		if shifted.Month() != t.Month() {
			return nextBusinessDay(t, calendar, -1)
		}
		return shifted
	case BusinessDayShiftCalcModifiedPreceding, BusinessDayCalcShiftModifiedPreceding:
		shifted := nextBusinessDay(t, calendar, -1)
		if shifted.Month() != t.Month() {
			return nextBusinessDay(t, calendar, 1)
		}
		return shifted
	}
	return t
}

func nextBusinessDay(t TimePoint, calendar BusinessDayCalendar, step int) TimePoint {
	for i := 0; i < 7; i++ {
		t = t.AddDays(step)
		if t.IsNull() || calendar.IsBusinessDay(t) {
			return t
		}
	}
	return t
}
