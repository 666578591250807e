package services

import (
	"context"
	"fmt"

	"installments/internal/core"
	"installments/internal/ledger"
)

// CashFlowAggregator totals the income and non-card expenses of a month.
type CashFlowAggregator struct {
	store ledger.CashFlowStore
}

func NewCashFlowAggregator(store ledger.CashFlowStore) *CashFlowAggregator {
	return &CashFlowAggregator{store: store}
}

// MonthlyCashFlow selects recurring entries plus those tagged with p.
func (c *CashFlowAggregator) MonthlyCashFlow(ctx context.Context, p core.Period) (core.CashFlowSummary, error) {
	if err := p.Validate(); err != nil {
		return core.CashFlowSummary{}, err
	}
	flows, err := c.store.ListCashFlows(ctx, p)
	if err != nil {
		return core.CashFlowSummary{}, fmt.Errorf("load cash flows for %s: %w", p, err)
	}

	sum := core.CashFlowSummary{Period: p, Items: make([]core.CashFlow, 0, len(flows))}
	for _, f := range flows {
		if !f.IsRecurring && (f.Period == nil || *f.Period != p) {
			continue
		}
		sum.Items = append(sum.Items, f)
		switch {
		case f.Amount.Cents > 0:
			sum.TotalIncome = sum.TotalIncome.Add(f.Amount)
		case f.Amount.Cents < 0:
			sum.TotalOtherExpenses = sum.TotalOtherExpenses.Add(f.Amount.Abs())
		}
	}
	sum.LiquidCash = sum.TotalIncome.Sub(sum.TotalOtherExpenses)
	return sum, nil
}
