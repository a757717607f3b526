package shared

import (
	"encoding/json"
	"fmt"
	"time"
)

// Period identifies one accounting month.
type Period struct {
	Year  int
	Month time.Month
}

// PeriodOf returns the period containing t.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// ParsePeriod reads a YYYY-MM code.
func ParsePeriod(code string) (Period, error) {
	t, err := time.Parse("2006-01", code)
	if err != nil {
		return Period{}, fmt.Errorf("shared: parse period %q: %w", code, err)
	}
	return PeriodOf(t), nil
}

// Code renders the period as YYYY-MM.
func (p Period) Code() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// MarshalJSON renders the period as its YYYY-MM code.
func (p Period) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Code())
}

// UnmarshalJSON reads a YYYY-MM code.
func (p *Period) UnmarshalJSON(data []byte) error {
	var code string
	if err := json.Unmarshal(data, &code); err != nil {
		return err
	}
	parsed, err := ParsePeriod(code)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Start returns midnight UTC on the first day of the period.
func (p Period) Start() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End returns the last instant before the next period starts.
func (p Period) End() time.Time {
	return p.Next().Start().Add(-time.Nanosecond)
}

// Next returns the following month.
func (p Period) Next() Period {
	return PeriodOf(p.Start().AddDate(0, 1, 0))
}

// Prev returns the preceding month.
func (p Period) Prev() Period {
	return PeriodOf(p.Start().AddDate(0, -1, 0))
}

// Before reports whether p precedes other.
func (p Period) Before(other Period) bool {
	if p.Year != other.Year {
		return p.Year < other.Year
	}
	return p.Month < other.Month
}

// Contains reports whether t falls inside the period.
func (p Period) Contains(t time.Time) bool {
	return t.Year() == p.Year && t.Month() == p.Month
}

// IsZero reports an unset period.
func (p Period) IsZero() bool {
	return p.Year == 0 && p.Month == 0
}

// WholeMonthsBetween counts calendar months from the month of a to the month
// of b, ignoring the day component. Negative when b precedes a's month.
func WholeMonthsBetween(a, b time.Time) int {
	return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
}
