package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"installments/internal/core"
)

func TestResolveStatus(t *testing.T) {
	current := core.NewPeriod(2026, 3)
	tests := []struct {
		name   string
		paid   bool
		period core.Period
		want   core.CardStatus
	}{
		{"paid past month", true, core.NewPeriod(2026, 1), core.StatusPaid},
		{"paid future month", true, core.NewPeriod(2026, 9), core.StatusPaid},
		{"unpaid previous month", false, core.NewPeriod(2026, 2), core.StatusOverdue},
		{"unpaid previous year", false, core.NewPeriod(2025, 12), core.StatusOverdue},
		{"unpaid current month", false, current, core.StatusPending},
		{"unpaid next month", false, core.NewPeriod(2026, 4), core.StatusPending},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveStatus(tt.paid, tt.period, current); got != tt.want {
				t.Errorf("ResolveStatus() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestCardStatusWithoutRecord(t *testing.T) {
	f := newFixture(t, "BDO")
	r := NewStatusResolver(f.store, nil, fixedClock(2026, 3, 31))
	ctx := context.Background()
	card := f.cards["BDO"].ID

	tests := []struct {
		year, month int
		want        core.CardStatus
	}{
		{2026, 2, core.StatusOverdue},
		{2026, 3, core.StatusPending},
		{2026, 4, core.StatusPending},
	}
	for _, tt := range tests {
		got, err := r.CardStatus(ctx, card, tt.year, tt.month)
		if err != nil {
			t.Fatalf("CardStatus(%d-%d) error = %v", tt.year, tt.month, err)
		}
		if got != tt.want {
			t.Errorf("CardStatus(%d-%d) = %s, want %s", tt.year, tt.month, got, tt.want)
		}
	}

	// A card that does not exist is simply unpaid.
	if got, err := r.CardStatus(ctx, 9999, 2026, 4); err != nil || got != core.StatusPending {
		t.Errorf("CardStatus(unknown card) = %s, %v", got, err)
	}
}

func TestCardStatusRejectsBadMonth(t *testing.T) {
	r := NewStatusResolver(newFixture(t).store, nil, fixedClock(2026, 3, 1))
	if _, err := r.CardStatus(context.Background(), 1, 2026, 13); !errors.Is(err, core.ErrInvalidPeriod) {
		t.Errorf("CardStatus(month 13) error = %v, want ErrInvalidPeriod", err)
	}
	if _, err := r.ToggleCardStatus(context.Background(), 1, 2026, 0); !errors.Is(err, core.ErrInvalidPeriod) {
		t.Errorf("ToggleCardStatus(month 0) error = %v, want ErrInvalidPeriod", err)
	}
}

func TestToggleCardStatusRoundTrip(t *testing.T) {
	f := newFixture(t, "BDO")
	pub := &recordingPublisher{}
	r := NewStatusResolver(f.store, pub, fixedClock(2026, 3, 15))
	ctx := context.Background()
	card := f.cards["BDO"].ID

	st, err := r.ToggleCardStatus(ctx, card, 2026, 2)
	if err != nil {
		t.Fatalf("first toggle: %v", err)
	}
	if !st.IsPaid || st.PaidAt == nil {
		t.Fatalf("first toggle = %+v, want paid with timestamp", st)
	}
	if got, _ := r.CardStatus(ctx, card, 2026, 2); got != core.StatusPaid {
		t.Errorf("status after first toggle = %s, want PAID", got)
	}

	st, err = r.ToggleCardStatus(ctx, card, 2026, 2)
	if err != nil {
		t.Fatalf("second toggle: %v", err)
	}
	if st.IsPaid || st.PaidAt != nil {
		t.Errorf("second toggle = %+v, want unpaid without timestamp", st)
	}
	if got, _ := r.CardStatus(ctx, card, 2026, 2); got != core.StatusOverdue {
		t.Errorf("status after second toggle = %s, want OVERDUE", got)
	}

	rows, _ := f.store.ListMonthlyStatuses(ctx, core.NewPeriod(2026, 2))
	if len(rows) != 1 {
		t.Errorf("got %d status rows, want 1", len(rows))
	}
	if len(pub.toggled) != 2 {
		t.Errorf("published %d events, want 2", len(pub.toggled))
	}
}

func TestToggleCardStatusIgnoresPublishFailure(t *testing.T) {
	f := newFixture(t, "RCBC")
	pub := &recordingPublisher{failWith: errors.New("broker down")}
	r := NewStatusResolver(f.store, pub, fixedClock(2026, 3, 15))

	st, err := r.ToggleCardStatus(context.Background(), f.cards["RCBC"].ID, 2026, 3)
	if err != nil {
		t.Fatalf("ToggleCardStatus() error = %v", err)
	}
	if !st.IsPaid {
		t.Error("expected paid")
	}
}

func TestToggleCardStatusConcurrent(t *testing.T) {
	f := newFixture(t, "JCB")
	r := NewStatusResolver(f.store, nil, fixedClock(2026, 3, 15))
	ctx := context.Background()
	card := f.cards["JCB"].ID

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.ToggleCardStatus(ctx, card, 2026, 3); err != nil {
				t.Errorf("toggle: %v", err)
			}
		}()
	}
	wg.Wait()

	rows, _ := f.store.ListMonthlyStatuses(ctx, core.NewPeriod(2026, 3))
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if rows[0].IsPaid {
		t.Error("an even number of toggles should leave the card unpaid")
	}
}
