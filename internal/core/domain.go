package core

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	DefaultCardColor     = "#6366f1"
	DefaultCategoryColor = "#94a3b8"
	DefaultDueDay        = 15

	UnknownCardName = "Unknown"
)

type (
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	Card struct {
		ID     int64
		Name   string
		Color  string
		DueDay int
	}

	Payee struct {
		ID   int64
		Name string
	}

	Category struct {
		ID    int64
		Name  string
		Color string
	}

	Installment struct {
		ID             int64
		Description    string
		TotalAmount    Money
		MonthlyPayment Money
		StartDate      Date
		EndDate        Date
		CardID         int64
		PayeeID        int64
		CategoryID     *int64

		// Resolved relations, filled by the store when available.
		Card     *Card
		Payee    *Payee
		Category *Category
	}

	MonthlyStatus struct {
		ID     int64
		CardID int64
		Period Period
		IsPaid bool
		PaidAt *time.Time
	}

	CashFlow struct {
		ID          int64
		Description string
		Amount      Money // positive = income, negative = expense
		IsRecurring bool
		Period      *Period
		CategoryID  *int64
		Category    *Category
	}

	User struct {
		ID           int64
		Username     string
		PasswordHash string
	}
)

var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidDuration   = errors.New("invalid duration")
	ErrInvalidPeriod     = errors.New("invalid period")
	ErrInvalidDateRange  = errors.New("end date before start date")
	ErrEmptyDescription  = errors.New("empty description")
	ErrEmptyName         = errors.New("empty name")
	ErrInvalidDueDay     = errors.New("invalid due day")
	ErrInvalidColor      = errors.New("invalid color")
	ErrMissingRelation   = errors.New("missing required relation")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrDuplicateName     = errors.New("name already exists")
	ErrInvalidCredential = errors.New("invalid credentials")
)

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// ReferencedError reports a delete blocked by rows still pointing at the entity.
type ReferencedError struct {
	Kind         string
	Name         string
	Installments int
	CashFlows    int
}

func (e *ReferencedError) Error() string {
	parts := make([]string, 0, 2)
	if e.Installments > 0 {
		parts = append(parts, fmt.Sprintf("%d installment(s)", e.Installments))
	}
	if e.CashFlows > 0 {
		parts = append(parts, fmt.Sprintf("%d cash flow(s)", e.CashFlows))
	}
	return fmt.Sprintf("%s %q is still used by %s", e.Kind, e.Name, strings.Join(parts, " and "))
}

func (e *ReferencedError) Is(target error) bool {
	return target == ErrConflict
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in UTC.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// Period returns the calendar month the date falls in.
func (d Date) Period() Period {
	return Period{Year: d.Year(), Month: d.Month()}
}

// AddMonths moves the date by n calendar months, clamping to the last day of the
// target month instead of overflowing into the next one.
func (d Date) AddMonths(n int) Date {
	total := d.Year()*12 + (d.Month() - 1) + n
	y, m := total/12, total%12+1
	day := d.Day()
	if last := daysIn(y, m); day > last {
		day = last
	}
	return NewDate(y, m, day)
}

func daysIn(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (c Card) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if len(c.Name) > 100 {
		return errors.New("name too long (max 100 characters)")
	}
	if c.DueDay < 1 || c.DueDay > 31 {
		return ErrInvalidDueDay
	}
	if !hexColor.MatchString(c.Color) {
		return ErrInvalidColor
	}
	return nil
}

func (p Payee) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyName
	}
	if len(p.Name) > 100 {
		return errors.New("name too long (max 100 characters)")
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if len(c.Name) > 100 {
		return errors.New("name too long (max 100 characters)")
	}
	if !hexColor.MatchString(c.Color) {
		return ErrInvalidColor
	}
	return nil
}

func (i Installment) Validate() error {
	if len(strings.TrimSpace(i.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(i.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if err := i.TotalAmount.Validate(); err != nil {
		return err
	}
	if err := i.MonthlyPayment.Validate(); err != nil {
		return err
	}
	if i.StartDate.IsZero() || i.EndDate.IsZero() {
		return ErrInvalidDateRange
	}
	if i.EndDate.Before(i.StartDate.Time) {
		return ErrInvalidDateRange
	}
	if i.CardID <= 0 || i.PayeeID <= 0 {
		return ErrMissingRelation
	}
	return nil
}

func (c CashFlow) Validate() error {
	if len(strings.TrimSpace(c.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(c.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	if c.Amount.Cents == 0 {
		return ErrInvalidAmount
	}
	if !c.IsRecurring && c.Period == nil {
		return ErrInvalidPeriod
	}
	if c.Period != nil {
		if err := c.Period.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// IsIncome reports whether the entry adds money.
func (c CashFlow) IsIncome() bool {
	return c.Amount.Cents > 0
}

// CardName returns the resolved card name, or the "Unknown" label.
func (i Installment) CardName() string {
	if i.Card == nil {
		return UnknownCardName
	}
	return i.Card.Name
}
