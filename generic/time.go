package generic

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// =============================================================================
// TIME POINT - Nullable calendar point with second precision
// =============================================================================

// TimePoint is a calendar date-time in years 0..9999 with second precision,
// or null. The zero value is null. TimePoint is comparable and can be used as
// a map key; all nulls are equal.
type TimePoint struct {
	year   uint16
	month  uint8
	day    uint8
	hour   uint8
	minute uint8
	second uint8
	valid  bool
}

// timeLayout is the canonical text form.
const timeLayout = "2006-01-02T15:04:05"

// julianUnixEpoch is the Julian day number of 1970-01-01.
const julianUnixEpoch = 2440588

const secondsPerDay = 86400

// NullTimePoint returns the null TimePoint.
func NullTimePoint() TimePoint { return TimePoint{} }

// IsLeapYear applies the Gregorian rule.
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// DaysInMonth returns the length of month in year, or 0 for an invalid month.
func DaysInMonth(year, month int) int {
	switch month {
	case 1, 3, 5, 7, 8, 10, 12:
		return 31
	case 4, 6, 9, 11:
		return 30
	case 2:
		if IsLeapYear(year) {
			return 29
		}
		return 28
	}
	return 0
}

// TimePointFromValues validates the components and returns null when any of
// them is out of range.
func TimePointFromValues(year, month, day, hour, minute, second int) TimePoint {
	if year < 0 || year > 9999 || month < 1 || month > 12 {
		return TimePoint{}
	}
	if day < 1 || day > DaysInMonth(year, month) {
		return TimePoint{}
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 || second < 0 || second > 59 {
		return TimePoint{}
	}
	return TimePoint{
		year:   uint16(year),
		month:  uint8(month),
		day:    uint8(day),
		hour:   uint8(hour),
		minute: uint8(minute),
		second: uint8(second),
		valid:  true,
	}
}

// TimePointFromUnchecked accepts raw unsigned components, typically decoded
// from storage, and still yields null for impossible dates.
func TimePointFromUnchecked(year, month, day, hour, minute, second uint32) TimePoint {
	if year > 9999 || month > 12 || day > 31 || hour > 23 || minute > 59 || second > 59 {
		return TimePoint{}
	}
	return TimePointFromValues(int(year), int(month), int(day), int(hour), int(minute), int(second))
}

// NewTimePoint returns midnight of the given date.
func NewTimePoint(year int, month time.Month, day int) TimePoint {
	return TimePointFromValues(year, int(month), day, 0, 0, 0)
}

// TimePointFromUnix converts seconds since the Unix epoch. Negative values and
// results beyond year 9999 yield null.
func TimePointFromUnix(ts int64) TimePoint {
	if ts < 0 {
		return TimePoint{}
	}
	days := ts / secondsPerDay
	rem := ts % secondsPerDay
	y, m, d := civilFromJulian(days + julianUnixEpoch)
	return TimePointFromValues(y, m, d, int(rem/3600), int(rem%3600/60), int(rem%60))
}

// TimePointFromTime converts a time.Time in UTC.
func TimePointFromTime(t time.Time) TimePoint {
	t = t.UTC()
	return TimePointFromValues(t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())
}

// Now returns the current wall-clock time in UTC.
func Now() TimePoint { return TimePointFromTime(time.Now()) }

// ParseTimePoint accepts "2006-01-02T15:04:05", "2006-01-02" or "null".
func ParseTimePoint(s string) (TimePoint, error) {
	if s == "" || s == "null" {
		return TimePoint{}, nil
	}
	var (
		t   time.Time
		err error
	)
	if len(s) == len("2006-01-02") {
		t, err = time.Parse("2006-01-02", s)
	} else {
		t, err = time.Parse(timeLayout, s)
	}
	if err != nil {
		return TimePoint{}, fmt.Errorf("%w: %q", ErrInvalidTimePoint, s)
	}
	tp := TimePointFromTime(t)
	if tp.IsNull() {
		return TimePoint{}, fmt.Errorf("%w: %q out of range", ErrInvalidTimePoint, s)
	}
	return tp, nil
}

// MustParseTimePoint is ParseTimePoint for constants.
func MustParseTimePoint(s string) TimePoint {
	tp, err := ParseTimePoint(s)
	if err != nil {
		panic(err)
	}
	return tp
}

// =============================================================================
// PROPERTIES
// =============================================================================

func (tp TimePoint) IsNull() bool { return !tp.valid }
func (tp TimePoint) Year() int    { return int(tp.year) }
func (tp TimePoint) Month() int   { return int(tp.month) }
func (tp TimePoint) Day() int     { return int(tp.day) }
func (tp TimePoint) Hour() int    { return int(tp.hour) }
func (tp TimePoint) Minute() int  { return int(tp.minute) }
func (tp TimePoint) Second() int  { return int(tp.second) }

// Date strips the time of day.
func (tp TimePoint) Date() TimePoint {
	if !tp.valid {
		return tp
	}
	tp.hour, tp.minute, tp.second = 0, 0, 0
	return tp
}

// IsEndOfMonth reports whether tp falls on the last day of its month.
func (tp TimePoint) IsEndOfMonth() bool {
	return tp.valid && tp.Day() == DaysInMonth(tp.Year(), tp.Month())
}

// DayOfWeek returns the ISO weekday, 1 = Monday through 7 = Sunday, using
// Zeller's congruence. Null yields 0.
func (tp TimePoint) DayOfWeek() int {
	if !tp.valid {
		return 0
	}
	q, m, y := tp.Day(), tp.Month(), tp.Year()
	if m < 3 {
		m += 12
		y--
	}
	if y < 0 {
		// Zeller needs a non-negative century; year 0 Jan/Feb goes via JDN.
		return int(tp.Julian()%7) + 1
	}
	k, j := y%100, y/100
	h := (q + 13*(m+1)/5 + k + k/4 + j/4 + 5*j) % 7
	return (h+5)%7 + 1
}

func (tp TimePoint) IsWeekend() bool { return tp.DayOfWeek() >= 6 }
func (tp TimePoint) IsWorkday() bool { return tp.valid && !tp.IsWeekend() }

// =============================================================================
// COMPARISON - null sorts as the minimum
// =============================================================================

// Compare returns -1, 0 or 1 by lexicographic (date, time-of-day) order.
func (tp TimePoint) Compare(other TimePoint) int {
	switch {
	case !tp.valid && !other.valid:
		return 0
	case !tp.valid:
		return -1
	case !other.valid:
		return 1
	}
	a, b := tp.key(), other.key()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func (tp TimePoint) key() int64 {
	return ((((int64(tp.year)*13+int64(tp.month))*32+int64(tp.day))*24+int64(tp.hour))*60+int64(tp.minute))*60 + int64(tp.second)
}

func (tp TimePoint) Before(other TimePoint) bool        { return tp.Compare(other) < 0 }
func (tp TimePoint) After(other TimePoint) bool         { return tp.Compare(other) > 0 }
func (tp TimePoint) Equal(other TimePoint) bool         { return tp.Compare(other) == 0 }
func (tp TimePoint) BeforeOrEqual(other TimePoint) bool { return tp.Compare(other) <= 0 }
func (tp TimePoint) AfterOrEqual(other TimePoint) bool  { return tp.Compare(other) >= 0 }

// MinTime and MaxTime follow the null-as-minimum order.
func MinTime(a, b TimePoint) TimePoint {
	if a.Before(b) {
		return a
	}
	return b
}

func MaxTime(a, b TimePoint) TimePoint {
	if a.After(b) {
		return a
	}
	return b
}

// =============================================================================
// ARITHMETIC - via Julian day numbers
// =============================================================================

// Julian returns the Julian day number of the date part.
func (tp TimePoint) Julian() int64 {
	return julianFromCivil(tp.Year(), tp.Month(), tp.Day())
}

// AddDays moves by n whole days, keeping the time of day. Results outside
// years 0..9999 are null.
func (tp TimePoint) AddDays(n int) TimePoint {
	if !tp.valid {
		return tp
	}
	y, m, d := civilFromJulian(tp.Julian() + int64(n))
	return TimePointFromValues(y, m, d, tp.Hour(), tp.Minute(), tp.Second())
}

// addMonthsRaw moves by n months without clamping the day; the caller
// applies an end-of-month shift.
func (tp TimePoint) addMonthsRaw(n int) (year, month int) {
	total := tp.Year()*12 + tp.Month() - 1 + n
	if total < 0 {
		return -1, 0
	}
	return total / 12, total%12 + 1
}

// DiffDays returns the whole days from a to b. It fails when either side is
// null or a is after b.
func DiffDays(a, b TimePoint) (int64, bool) {
	if a.IsNull() || b.IsNull() || a.After(b) {
		return 0, false
	}
	return b.Julian() - a.Julian(), true
}

// Unix returns seconds since the epoch; null yields 0.
func (tp TimePoint) Unix() int64 {
	if !tp.valid {
		return 0
	}
	return (tp.Julian()-julianUnixEpoch)*secondsPerDay +
		int64(tp.hour)*3600 + int64(tp.minute)*60 + int64(tp.second)
}

// Time converts to time.Time in UTC; null yields the zero time.
func (tp TimePoint) Time() time.Time {
	if !tp.valid {
		return time.Time{}
	}
	return time.Date(tp.Year(), time.Month(tp.Month()), tp.Day(), tp.Hour(), tp.Minute(), tp.Second(), 0, time.UTC)
}

func julianFromCivil(year, month, day int) int64 {
	a := (14 - month) / 12
	y := int64(year) + 4800 - int64(a)
	m := int64(month) + 12*int64(a) - 3
	return int64(day) + (153*m+2)/5 + 365*y + y/4 - y/100 + y/400 - 32045
}

func civilFromJulian(jdn int64) (year, month, day int) {
	a := jdn + 32044
	b := (4*a + 3) / 146097
	c := a - 146097*b/4
	d := (4*c + 3) / 1461
	e := c - 1461*d/4
	m := (5*e + 2) / 153
	day = int(e - (153*m+2)/5 + 1)
	month = int(m + 3 - 12*(m/10))
	year = int(100*b + d - 4800 + m/10)
	return year, month, day
}

// =============================================================================
// ENCODING
// =============================================================================

func (tp TimePoint) String() string {
	if !tp.valid {
		return "null"
	}
	return fmt.Sprintf("%04d-%02d-%02dT%02d:%02d:%02d",
		tp.year, tp.month, tp.day, tp.hour, tp.minute, tp.second)
}

func (tp TimePoint) MarshalJSON() ([]byte, error) {
	if !tp.valid {
		return []byte("null"), nil
	}
	return json.Marshal(tp.String())
}

func (tp *TimePoint) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*tp = TimePoint{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidTimePoint, data)
	}
	parsed, err := ParseTimePoint(s)
	if err != nil {
		return err
	}
	*tp = parsed
	return nil
}
