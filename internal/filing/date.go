package filing

import (
	"fmt"
	"time"
)

const (
	dateLayout    = "2006-01-02"
	compactLayout = "20060102"
)

// Date is a calendar day with no time-of-day or zone component.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate builds a normalized Date (out-of-range days roll over like time.Date).
func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC), time.UTC)
}

// DateOf returns the calendar day of t as observed in loc.
func DateOf(t time.Time, loc *time.Location) Date {
	if loc != nil {
		t = t.In(loc)
	}
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return DateOf(t, time.UTC), nil
}

// ParseCompactDate parses a YYYYMMDD string as used by the EDGAR indexes.
func ParseCompactDate(s string) (Date, error) {
	t, err := time.Parse(compactLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse compact date %q: %w", s, err)
	}
	return DateOf(t, time.UTC), nil
}

// Time returns midnight of the day in UTC.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d == Date{}
}

// AddDays returns the day n days after d (n may be negative).
func (d Date) AddDays(n int) Date {
	return DateOf(d.Time().AddDate(0, 0, n), time.UTC)
}

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool {
	return d.Time().Before(other.Time())
}

// After reports whether d is strictly later than other.
func (d Date) After(other Date) bool {
	return d.Time().After(other.Time())
}

// String formats the day as YYYY-MM-DD.
func (d Date) String() string {
	return d.Time().Format(dateLayout)
}

// Compact formats the day as YYYYMMDD.
func (d Date) Compact() string {
	return d.Time().Format(compactLayout)
}

// Quarter returns the EDGAR quarter label (QTR1..QTR4) for the day's month.
func (d Date) Quarter() string {
	return fmt.Sprintf("QTR%d", (int(d.Month)-1)/3+1)
}

// MarshalText implements encoding.TextMarshaler.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Date) UnmarshalText(text []byte) error {
	parsed, err := ParseDate(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
