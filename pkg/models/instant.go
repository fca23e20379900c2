package models

import "fmt"

const (
	msPerSecond = int64(1000)
	msPerMinute = 60 * msPerSecond
	msPerHour   = 60 * msPerMinute
	msPerDay    = 24 * msPerHour
)

// Instant is a calendar timestamp with millisecond resolution as reported
// by a summary source. Simulations routinely run centuries past the range
// many date libraries accept, so conversions to and from epoch
// milliseconds use plain integer arithmetic on the proleptic Gregorian
// calendar and never go through time.Time.
type Instant struct {
	Year        int
	Month       int
	Day         int
	Hour        int
	Minute      int
	Second      int
	Millisecond int
}

// Date returns an Instant at midnight of the given day.
func Date(year, month, day int) Instant {
	return Instant{Year: year, Month: month, Day: day}
}

// Valid reports whether every field is within its calendar range.
func (i Instant) Valid() bool {
	if i.Month < 1 || i.Month > 12 || i.Day < 1 || i.Day > daysInMonth(i.Year, i.Month) {
		return false
	}
	return i.Hour >= 0 && i.Hour < 24 &&
		i.Minute >= 0 && i.Minute < 60 &&
		i.Second >= 0 && i.Second < 60 &&
		i.Millisecond >= 0 && i.Millisecond < 1000
}

// EpochMillis returns milliseconds since 1970-01-01T00:00:00 (no zone).
func (i Instant) EpochMillis() int64 {
	days := daysFromCivil(int64(i.Year), int64(i.Month), int64(i.Day))
	return days*msPerDay +
		int64(i.Hour)*msPerHour +
		int64(i.Minute)*msPerMinute +
		int64(i.Second)*msPerSecond +
		int64(i.Millisecond)
}

// AddMillis returns the instant ms milliseconds after i.
func (i Instant) AddMillis(ms int64) Instant {
	return InstantFromEpochMillis(i.EpochMillis() + ms)
}

// InstantFromEpochMillis is the inverse of Instant.EpochMillis.
func InstantFromEpochMillis(ms int64) Instant {
	days := floorDiv(ms, msPerDay)
	rem := ms - days*msPerDay
	y, m, d := civilFromDays(days)
	return Instant{
		Year:        int(y),
		Month:       int(m),
		Day:         int(d),
		Hour:        int(rem / msPerHour),
		Minute:      int(rem % msPerHour / msPerMinute),
		Second:      int(rem % msPerMinute / msPerSecond),
		Millisecond: int(rem % msPerSecond),
	}
}

// String formats the instant as ISO 8601 without a zone designator.
func (i Instant) String() string {
	return fmt.Sprintf("%04d-%02d-%02dT%02d:%02d:%02d.%03d",
		i.Year, i.Month, i.Day, i.Hour, i.Minute, i.Second, i.Millisecond)
}

// daysFromCivil and civilFromDays follow H. Hinnant's
// "chrono-compatible low-level date algorithms".
func daysFromCivil(y, m, d int64) int64 {
	if m <= 2 {
		y--
	}
	era := floorDiv(y, 400)
	yoe := y - era*400
	mp := (m + 9) % 12
	doy := (153*mp+2)/5 + d - 1
	doe := yoe*365 + yoe/4 - yoe/100 + doy
	return era*146097 + doe - 719468
}

func civilFromDays(z int64) (y, m, d int64) {
	z += 719468
	era := floorDiv(z, 146097)
	doe := z - era*146097
	yoe := (doe - doe/1460 + doe/36524 - doe/146096) / 365
	y = yoe + era*400
	doy := doe - (365*yoe + yoe/4 - yoe/100)
	mp := (5*doy + 2) / 153
	d = doy - (153*mp+2)/5 + 1
	if mp < 10 {
		m = mp + 3
	} else {
		m = mp - 9
	}
	if m <= 2 {
		y++
	}
	return y, m, d
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func daysInMonth(year, month int) int {
	switch month {
	case 2:
		if year%4 == 0 && (year%100 != 0 || year%400 == 0) {
			return 29
		}
		return 28
	case 4, 6, 9, 11:
		return 30
	default:
		return 31
	}
}
