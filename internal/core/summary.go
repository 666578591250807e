package core

// CardStatus is the paid state of a card for one month.
type CardStatus string

const (
	StatusPaid    CardStatus = "PAID"
	StatusPending CardStatus = "PENDING"
	StatusOverdue CardStatus = "OVERDUE"
)

// CardBucket is the amount owed on one card for the viewed month.
type CardBucket struct {
	ID     int64
	Total  Money
	Status CardStatus
}

// TotalsQuery selects the month and optional filters for the aggregator.
// A nil Period means the current month.
type TotalsQuery struct {
	Period  *Period
	CardID  *int64
	PayeeID *int64
}

// MonthlyTotals is the aggregate for one month.
type MonthlyTotals struct {
	TotalBurn          Money // pending payments for the month
	TotalPaid          Money
	TotalDue           Money
	TotalRemainingDebt Money // all future payments, ignores filters
	PercentagePaid     int

	PendingCards map[string]CardBucket
	PaidCards    map[string]CardBucket
	Items        []Installment // active in the month

	MonthName string
	Year      int
	Month     int

	FutureTotalDue Money
	SavingsDelta   Money
	PercentDrop    float64
}

// ForecastPoint is one month of the burn-down series.
type ForecastPoint struct {
	Period Period
	Label  string
	Total  Money
}

// FreedomDate is the month the last installment ends.
type FreedomDate struct {
	HasDebt bool
	Period  Period
	Label   string
}

// NoActiveDebtLabel is shown when no installment exists.
const NoActiveDebtLabel = "No active debt"

// CashFlowSummary aggregates income and expenses for a month.
type CashFlowSummary struct {
	Period             Period
	Items              []CashFlow
	TotalIncome        Money
	TotalOtherExpenses Money
	LiquidCash         Money
}

// DisposableCash is what is left once this month's pending card payments are covered.
func DisposableCash(liquid, burn Money) Money {
	return liquid.Sub(burn)
}
