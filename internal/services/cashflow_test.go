package services

import (
	"context"
	"errors"
	"testing"

	"installments/internal/core"
)

func TestMonthlyCashFlow(t *testing.T) {
	f := newFixture(t)
	c := NewCatalog(f.store, nil)
	ctx := context.Background()
	march, april := core.NewPeriod(2026, 3), core.NewPeriod(2026, 4)

	entries := []CashFlowInput{
		{Description: "Salary", Amount: core.Money{Cents: 50000_00}, IsIncome: true, IsRecurring: true},
		{Description: "Rent", Amount: core.Money{Cents: 15000_00}, IsRecurring: true},
		{Description: "Bonus", Amount: core.Money{Cents: 10000_00}, IsIncome: true, Period: &march},
		{Description: "Trip", Amount: core.Money{Cents: 8000_00}, Period: &april},
	}
	for _, in := range entries {
		if _, err := c.CreateCashFlow(ctx, in); err != nil {
			t.Fatalf("CreateCashFlow(%s) error = %v", in.Description, err)
		}
	}

	agg := NewCashFlowAggregator(f.store)
	tests := []struct {
		period                   core.Period
		income, expenses, liquid int64
		items                    int
	}{
		{march, 60000_00, 15000_00, 45000_00, 3},
		{april, 50000_00, 23000_00, 27000_00, 3},
		{core.NewPeriod(2026, 5), 50000_00, 15000_00, 35000_00, 2},
	}
	for _, tt := range tests {
		t.Run(tt.period.String(), func(t *testing.T) {
			got, err := agg.MonthlyCashFlow(ctx, tt.period)
			if err != nil {
				t.Fatalf("MonthlyCashFlow() error = %v", err)
			}
			if got.TotalIncome.Cents != tt.income || got.TotalOtherExpenses.Cents != tt.expenses || got.LiquidCash.Cents != tt.liquid {
				t.Errorf("got income %d expenses %d liquid %d, want %d %d %d",
					got.TotalIncome.Cents, got.TotalOtherExpenses.Cents, got.LiquidCash.Cents,
					tt.income, tt.expenses, tt.liquid)
			}
			if len(got.Items) != tt.items {
				t.Errorf("items = %d, want %d", len(got.Items), tt.items)
			}
		})
	}
}

func TestMonthlyCashFlowEmpty(t *testing.T) {
	agg := NewCashFlowAggregator(newFixture(t).store)
	got, err := agg.MonthlyCashFlow(context.Background(), core.NewPeriod(2026, 3))
	if err != nil {
		t.Fatal(err)
	}
	if got.TotalIncome.Cents != 0 || got.LiquidCash.Cents != 0 || len(got.Items) != 0 {
		t.Errorf("empty summary = %+v", got)
	}
	if _, err := agg.MonthlyCashFlow(context.Background(), core.NewPeriod(2026, 0)); !errors.Is(err, core.ErrInvalidPeriod) {
		t.Errorf("bad period error = %v", err)
	}
}

func TestDisposableCash(t *testing.T) {
	got := core.DisposableCash(core.Money{Cents: 45000_00}, core.Money{Cents: 800_00})
	if got.Cents != 44200_00 {
		t.Errorf("DisposableCash = %d, want 4420000", got.Cents)
	}
}
