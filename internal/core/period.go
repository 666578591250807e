package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Period identifies a calendar month. Its String form, "YYYY-MM", is the key
// persisted for monthly statuses and month-bound cash flows.
type Period struct {
	Year  int
	Month int // 1-12
}

// NewPeriod builds a Period from year and month.
func NewPeriod(year, month int) Period {
	return Period{Year: year, Month: month}
}

// PeriodOf returns the period containing t.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: int(t.Month())}
}

// ParsePeriod parses a zero-padded "YYYY-MM" key.
func ParsePeriod(s string) (Period, error) {
	s = strings.TrimSpace(s)
	if len(s) != 7 || s[4] != '-' || !allDigits(s[:4]) || !allDigits(s[5:]) {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
	y, err := strconv.Atoi(s[:4])
	if err != nil {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
	m, err := strconv.Atoi(s[5:])
	if err != nil {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
	p := Period{Year: y, Month: m}
	if err := p.Validate(); err != nil {
		return Period{}, err
	}
	return p, nil
}

// allDigits reports whether s is non-empty ASCII digits. strconv.Atoi alone
// would let signs through.
func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func (p Period) Validate() error {
	if p.Month < 1 || p.Month > 12 {
		return fmt.Errorf("%w: month %d", ErrInvalidPeriod, p.Month)
	}
	if p.Year < 1 || p.Year > 9999 {
		return fmt.Errorf("%w: year %d", ErrInvalidPeriod, p.Year)
	}
	return nil
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

// FirstDay returns the first day of the month, the reference point for
// range membership.
func (p Period) FirstDay() Date {
	return NewDate(p.Year, p.Month, 1)
}

// AddMonths steps the period by n months, rolling the year as needed.
func (p Period) AddMonths(n int) Period {
	total := p.Year*12 + (p.Month - 1) + n
	return Period{Year: total / 12, Month: total%12 + 1}
}

// Before reports whether p is strictly earlier than o.
func (p Period) Before(o Period) bool {
	if p.Year != o.Year {
		return p.Year < o.Year
	}
	return p.Month < o.Month
}

// MonthName returns the English month name, e.g. "March".
func (p Period) MonthName() string {
	return time.Month(p.Month).String()
}

// Label renders "Mar 2026".
func (p Period) Label() string {
	return p.FirstDay().Format("Jan 2006")
}
