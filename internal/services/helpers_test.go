package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"installments/internal/core"
	"installments/internal/ledger"
	"installments/internal/ledger/memory"
)

func fixedClock(year, month, day int) func() time.Time {
	t := time.Date(year, time.Month(month), day, 10, 0, 0, 0, time.UTC)
	return func() time.Time { return t }
}

type recordingPublisher struct {
	mu       sync.Mutex
	created  []int64
	deleted  []int64
	toggled  []core.MonthlyStatus
	failWith error
}

func (p *recordingPublisher) PublishInstallmentCreated(_ context.Context, inst core.Installment) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, inst.ID)
	return p.failWith
}

func (p *recordingPublisher) PublishInstallmentDeleted(_ context.Context, id int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleted = append(p.deleted, id)
	return p.failWith
}

func (p *recordingPublisher) PublishStatusToggled(_ context.Context, st core.MonthlyStatus) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.toggled = append(p.toggled, st)
	return p.failWith
}

// stubReader serves a fixed installment list, bypassing store validation.
type stubReader struct {
	items []core.Installment
}

func (s stubReader) ListInstallments(_ context.Context, f ledger.InstallmentFilter) ([]core.Installment, error) {
	var out []core.Installment
	for _, inst := range s.items {
		if f.Matches(inst) {
			out = append(out, inst)
		}
	}
	return out, nil
}

func (s stubReader) GetInstallment(_ context.Context, id int64) (core.Installment, error) {
	for _, inst := range s.items {
		if inst.ID == id {
			return inst, nil
		}
	}
	return core.Installment{}, core.ErrNotFound
}

type fixture struct {
	store *memory.Store
	payee core.Payee
	cards map[string]core.Card
}

func newFixture(t *testing.T, cardNames ...string) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{store: memory.New(), cards: map[string]core.Card{}}
	for _, name := range cardNames {
		c, err := f.store.CreateCard(ctx, core.Card{Name: name, Color: core.DefaultCardColor, DueDay: core.DefaultDueDay})
		if err != nil {
			t.Fatalf("create card %s: %v", name, err)
		}
		f.cards[name] = c
	}
	var err error
	if f.payee, err = f.store.CreatePayee(ctx, core.Payee{Name: "Abenson"}); err != nil {
		t.Fatalf("create payee: %v", err)
	}
	return f
}

// plan stores an installment of months payments of monthlyCents each.
func (f *fixture) plan(t *testing.T, desc, card string, monthlyCents int64, months int, start core.Period) core.Installment {
	t.Helper()
	inst, err := core.NewInstallment(desc, core.Money{Cents: monthlyCents * int64(months)}, months, start, f.cards[card].ID, f.payee.ID, nil)
	if err != nil {
		t.Fatalf("new installment: %v", err)
	}
	saved, err := f.store.CreateInstallment(context.Background(), inst)
	if err != nil {
		t.Fatalf("save installment: %v", err)
	}
	return saved
}

func ptr[T any](v T) *T { return &v }
