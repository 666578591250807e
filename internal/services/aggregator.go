package services

import (
	"context"
	"fmt"
	"time"

	"installments/internal/core"
	"installments/internal/ledger"
)

// trendHorizon is how many months ahead the trend compares against.
const trendHorizon = 3

// Aggregator computes the monthly totals, the burn-down forecast and the
// freedom date from a fresh snapshot of the store on every call.
type Aggregator struct {
	installments ledger.InstallmentReader
	statuses     ledger.StatusStore
	now          func() time.Time
}

func NewAggregator(installments ledger.InstallmentReader, statuses ledger.StatusStore, now func() time.Time) *Aggregator {
	if now == nil {
		now = time.Now
	}
	return &Aggregator{installments: installments, statuses: statuses, now: now}
}

func (a *Aggregator) today() core.Date {
	return core.DateOf(a.now())
}

// CalculateMonthlyTotals aggregates the installments active in the requested
// month into pending and paid card buckets. Card and payee filters narrow
// the month's totals only; TotalRemainingDebt always covers every installment.
func (a *Aggregator) CalculateMonthlyTotals(ctx context.Context, q core.TotalsQuery) (core.MonthlyTotals, error) {
	today := a.today()
	period := today.Period()
	if q.Period != nil {
		period = *q.Period
	}
	if err := period.Validate(); err != nil {
		return core.MonthlyTotals{}, err
	}
	target := period.FirstDay()

	filter := ledger.InstallmentFilter{CardID: q.CardID, PayeeID: q.PayeeID}
	items, err := a.installments.ListInstallments(ctx, filter)
	if err != nil {
		return core.MonthlyTotals{}, fmt.Errorf("load installments: %w", err)
	}
	all := items
	if q.CardID != nil || q.PayeeID != nil {
		if all, err = a.installments.ListInstallments(ctx, ledger.InstallmentFilter{}); err != nil {
			return core.MonthlyTotals{}, fmt.Errorf("load installments: %w", err)
		}
	}

	statuses, err := a.statuses.ListMonthlyStatuses(ctx, period)
	if err != nil {
		return core.MonthlyTotals{}, fmt.Errorf("load statuses for %s: %w", period, err)
	}
	paid := make(map[int64]bool, len(statuses))
	for _, st := range statuses {
		paid[st.CardID] = st.IsPaid
	}

	res := core.MonthlyTotals{
		PendingCards: map[string]core.CardBucket{},
		PaidCards:    map[string]core.CardBucket{},
		Items:        []core.Installment{},
		MonthName:    period.MonthName(),
		Year:         period.Year,
		Month:        period.Month,
	}

	for _, inst := range all {
		if err := inst.CheckRange(); err != nil {
			return core.MonthlyTotals{}, fmt.Errorf("installment %d: %w", inst.ID, err)
		}
		res.TotalRemainingDebt = res.TotalRemainingDebt.Add(inst.RemainingBalance(today))
	}

	for _, inst := range items {
		if err := inst.CheckRange(); err != nil {
			return core.MonthlyTotals{}, fmt.Errorf("installment %d: %w", inst.ID, err)
		}
		if !inst.ActiveOn(target) {
			continue
		}
		res.Items = append(res.Items, inst)

		name, id := core.UnknownCardName, int64(0)
		if inst.Card != nil {
			name, id = inst.Card.Name, inst.Card.ID
		}
		buckets, status := res.PendingCards, core.StatusPending
		if inst.Card != nil && paid[inst.Card.ID] {
			buckets, status = res.PaidCards, core.StatusPaid
		}
		b := buckets[name]
		b.ID = id
		b.Status = status
		b.Total = b.Total.Add(inst.MonthlyPayment)
		buckets[name] = b
	}

	for _, b := range res.PendingCards {
		res.TotalBurn = res.TotalBurn.Add(b.Total)
	}
	for _, b := range res.PaidCards {
		res.TotalPaid = res.TotalPaid.Add(b.Total)
	}
	res.TotalDue = res.TotalBurn.Add(res.TotalPaid)
	res.PercentagePaid = int(core.Percent(res.TotalPaid.Cents, res.TotalDue.Cents, 0))

	future := today.Period().AddMonths(trendHorizon)
	res.FutureTotalDue = activeTotal(all, future.FirstDay())
	res.SavingsDelta = res.TotalDue.Sub(res.FutureTotalDue)
	res.PercentDrop = core.Percent(res.SavingsDelta.Cents, res.TotalDue.Cents, 1)

	return res, nil
}

// activeTotal sums the monthly payments of installments active on day.
func activeTotal(items []core.Installment, day core.Date) core.Money {
	var total core.Money
	for _, inst := range items {
		if inst.ActiveOn(day) {
			total = total.Add(inst.MonthlyPayment)
		}
	}
	return total
}

// Forecast returns months points starting at the current month, each the sum
// of the monthly payments active on that month's first day.
func (a *Aggregator) Forecast(ctx context.Context, months int) ([]core.ForecastPoint, error) {
	if months < 0 {
		return nil, core.ErrInvalidDuration
	}
	items, err := a.installments.ListInstallments(ctx, ledger.InstallmentFilter{})
	if err != nil {
		return nil, fmt.Errorf("load installments: %w", err)
	}
	for _, inst := range items {
		if err := inst.CheckRange(); err != nil {
			return nil, fmt.Errorf("installment %d: %w", inst.ID, err)
		}
	}

	start := a.today().Period()
	out := make([]core.ForecastPoint, 0, months)
	for i := 0; i < months; i++ {
		p := start.AddMonths(i)
		out = append(out, core.ForecastPoint{
			Period: p,
			Label:  p.Label(),
			Total:  activeTotal(items, p.FirstDay()),
		})
	}
	return out, nil
}

// FreedomDate returns the month the last installment ends.
func (a *Aggregator) FreedomDate(ctx context.Context) (core.FreedomDate, error) {
	items, err := a.installments.ListInstallments(ctx, ledger.InstallmentFilter{})
	if err != nil {
		return core.FreedomDate{}, fmt.Errorf("load installments: %w", err)
	}
	if len(items) == 0 {
		return core.FreedomDate{Label: core.NoActiveDebtLabel}, nil
	}
	latest := items[0].EndDate
	for _, inst := range items[1:] {
		if inst.EndDate.After(latest.Time) {
			latest = inst.EndDate
		}
	}
	return core.FreedomDate{
		HasDebt: true,
		Period:  latest.Period(),
		Label:   latest.Format("January 2006"),
	}, nil
}
