package core

// Progress describes how far an installment has run.
type Progress struct {
	Percent float64 // rounded to one decimal
	Current int     // months elapsed, 1-based, capped at Total
	Total   int
}

// monthsBetween counts whole calendar months from a to b. A trailing partial
// month (b's day earlier than a's) is not counted.
func monthsBetween(a, b Date) int {
	delta := (b.Year()-a.Year())*12 + b.Month() - a.Month()
	if delta > 0 && b.Day() < a.Day() {
		delta--
	} else if delta < 0 && b.Day() > a.Day() {
		delta++
	}
	return delta
}

// TotalMonths returns the inclusive month span between start and end date.
// Missing dates fall back to a single month.
func (i Installment) TotalMonths() int {
	if i.StartDate.IsZero() || i.EndDate.IsZero() {
		return 1
	}
	total := monthsBetween(i.StartDate, i.EndDate) + 1
	if total < 1 {
		return 1
	}
	return total
}

// Progress reports the elapsed month count as of today.
func (i Installment) Progress(today Date) Progress {
	total := i.TotalMonths()
	if i.StartDate.IsZero() || today.Before(i.StartDate.Time) {
		return Progress{Percent: 0, Current: 0, Total: total}
	}
	current := monthsBetween(i.StartDate, today) + 1
	if current > total {
		current = total
	}
	return Progress{
		Percent: Percent(int64(current), int64(total), 1),
		Current: current,
		Total:   total,
	}
}

// RemainingBalance is the sum of the monthly payments still ahead of today.
func (i Installment) RemainingBalance(today Date) Money {
	p := i.Progress(today)
	left := p.Total - p.Current
	if left <= 0 {
		return Money{}
	}
	return i.MonthlyPayment.Times(left)
}

// ActiveOn reports whether day falls within [StartDate, EndDate], both inclusive.
func (i Installment) ActiveOn(day Date) bool {
	return !day.Before(i.StartDate.Time) && !day.After(i.EndDate.Time)
}

// CheckRange fails when the stored range is inverted.
func (i Installment) CheckRange() error {
	if !i.StartDate.IsZero() && !i.EndDate.IsZero() && i.EndDate.Before(i.StartDate.Time) {
		return ErrInvalidDateRange
	}
	return nil
}

// NewInstallment derives the monthly payment and end date for a plan of
// months payments starting in the given period.
func NewInstallment(description string, total Money, months int, start Period, cardID, payeeID int64, categoryID *int64) (Installment, error) {
	if err := total.Validate(); err != nil {
		return Installment{}, err
	}
	if err := start.Validate(); err != nil {
		return Installment{}, err
	}
	monthly, err := SplitEvenly(total, months)
	if err != nil {
		return Installment{}, err
	}
	startDate := start.FirstDay()
	inst := Installment{
		Description:    description,
		TotalAmount:    total,
		MonthlyPayment: monthly,
		StartDate:      startDate,
		EndDate:        startDate.AddMonths(months - 1),
		CardID:         cardID,
		PayeeID:        payeeID,
		CategoryID:     categoryID,
	}
	if err := inst.Validate(); err != nil {
		return Installment{}, err
	}
	return inst, nil
}
