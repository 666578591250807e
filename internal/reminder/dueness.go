// Package reminder warns about card payments falling due: a cron job checks
// every card's due day and hands pending ones to the configured notifiers.
package reminder

import (
	"time"

	"installments/internal/core"
)

// DueChecker is the strategy deciding whether a card should be reminded about
// today. reminded is the period of the last due date a reminder went out for,
// zero when none did.
type DueChecker interface {
	IsDue(card core.Card, reminded core.Period, now time.Time) bool
}

// DueDate returns the card's due date in period p. A due day past the end of
// the month falls on the month's last day.
func DueDate(card core.Card, p core.Period) core.Date {
	day := card.DueDay
	if day < 1 {
		day = core.DefaultDueDay
	}
	last := time.Date(p.Year, time.Month(p.Month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > last {
		day = last
	}
	return core.NewDate(p.Year, p.Month, day)
}

// NextDueDate is the first due date on or after today: this month's when it
// has not passed yet, otherwise next month's.
func NextDueDate(card core.Card, today core.Date) core.Date {
	due := DueDate(card, today.Period())
	if today.After(due.Time) {
		return DueDate(card, today.Period().AddMonths(1))
	}
	return due
}

// OnDueDay fires on the due day itself.
type OnDueDay struct{}

func (OnDueDay) IsDue(card core.Card, reminded core.Period, now time.Time) bool {
	today := core.DateOf(now)
	due := NextDueDate(card, today)
	if reminded == due.Period() {
		return false
	}
	return today.Equal(due.Time)
}

// DaysBefore fires once per due date as soon as it is at most Days away, up
// to and including the due day. The window may start in the previous month.
type DaysBefore struct {
	Days int
}

func (d DaysBefore) IsDue(card core.Card, reminded core.Period, now time.Time) bool {
	today := core.DateOf(now)
	due := NextDueDate(card, today)
	if reminded == due.Period() {
		return false
	}
	return !today.AddDate(0, 0, d.Days).Before(due.Time)
}

// CheckerFor picks the strategy for a lead time in days.
func CheckerFor(leadDays int) DueChecker {
	if leadDays <= 0 {
		return OnDueDay{}
	}
	return DaysBefore{Days: leadDays}
}
