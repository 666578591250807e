package storage

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"installments/internal/core"
	"installments/internal/ledger"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "test.db"))
	if err != nil {
		t.Fatalf("open repo: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedPlan(t *testing.T, repo *SQLiteRepository) (core.Card, core.Payee, core.Installment) {
	t.Helper()
	ctx := context.Background()
	card, err := repo.CreateCard(ctx, core.Card{Name: "BDO", Color: core.DefaultCardColor, DueDay: 20})
	if err != nil {
		t.Fatalf("create card: %v", err)
	}
	payee, err := repo.CreatePayee(ctx, core.Payee{Name: "Lazada"})
	if err != nil {
		t.Fatalf("create payee: %v", err)
	}
	inst, err := core.NewInstallment("Laptop", core.Money{Cents: 120000}, 12, core.NewPeriod(2026, 1), card.ID, payee.ID, nil)
	if err != nil {
		t.Fatal(err)
	}
	saved, err := repo.CreateInstallment(ctx, inst)
	if err != nil {
		t.Fatalf("create installment: %v", err)
	}
	return card, payee, saved
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twice.db")
	for i := 0; i < 2; i++ {
		repo, err := NewSQLiteRepository(path)
		if err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
		repo.Close()
	}
}

func TestInstallmentRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	card, payee, saved := seedPlan(t, repo)

	if saved.ID == 0 || saved.Card == nil || saved.Card.Name != card.Name || saved.Payee == nil || saved.Payee.Name != payee.Name {
		t.Fatalf("relations not resolved: %+v", saved)
	}
	if saved.StartDate != core.NewDate(2026, 1, 1) || saved.EndDate != core.NewDate(2026, 12, 1) {
		t.Fatalf("dates: %v %v", saved.StartDate, saved.EndDate)
	}
	if saved.MonthlyPayment.Cents != 10000 {
		t.Fatalf("monthly payment: %d", saved.MonthlyPayment.Cents)
	}

	list, err := repo.ListInstallments(context.Background(), ledger.InstallmentFilter{CardID: &card.ID})
	if err != nil || len(list) != 1 {
		t.Fatalf("list: %v %v", list, err)
	}
	other := card.ID + 100
	list, _ = repo.ListInstallments(context.Background(), ledger.InstallmentFilter{CardID: &other})
	if len(list) != 0 {
		t.Fatalf("expected empty filtered list, got %d", len(list))
	}

	pending, err := repo.PendingSyncInstallments(context.Background(), 10)
	if err != nil || len(pending) != 1 {
		t.Fatalf("pending: %v %v", pending, err)
	}
	if err := repo.MarkSynced(context.Background(), saved.ID); err != nil {
		t.Fatal(err)
	}
	pending, _ = repo.PendingSyncInstallments(context.Background(), 10)
	if len(pending) != 0 {
		t.Fatalf("expected nothing pending after sync, got %d", len(pending))
	}

	if err := repo.DeleteInstallment(context.Background(), saved.ID); err != nil {
		t.Fatal(err)
	}
	if err := repo.DeleteInstallment(context.Background(), saved.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestPendingSyncIncludesFailedExports(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	_, _, saved := seedPlan(t, repo)

	if err := repo.MarkSyncError(ctx, saved.ID); err != nil {
		t.Fatal(err)
	}
	pending, err := repo.PendingSyncInstallments(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].ID != saved.ID {
		t.Fatalf("errored installment should stay queued, got %+v", pending)
	}

	if err := repo.MarkSynced(ctx, saved.ID); err != nil {
		t.Fatal(err)
	}
	pending, _ = repo.PendingSyncInstallments(ctx, 10)
	if len(pending) != 0 {
		t.Fatalf("expected nothing pending after retry succeeded, got %d", len(pending))
	}
}

func TestCreateInstallmentUnknownCard(t *testing.T) {
	repo := newTestRepo(t)
	payee, _ := repo.CreatePayee(context.Background(), core.Payee{Name: "Shop"})
	inst, _ := core.NewInstallment("x", core.Money{Cents: 100}, 1, core.NewPeriod(2026, 1), 999, payee.ID, nil)
	_, err := repo.CreateInstallment(context.Background(), inst)
	if !errors.Is(err, core.ErrMissingRelation) {
		t.Fatalf("expected ErrMissingRelation, got %v", err)
	}
}

func TestToggleMonthlyStatus(t *testing.T) {
	repo := newTestRepo(t)
	card, _, _ := seedPlan(t, repo)
	ctx := context.Background()
	p := core.NewPeriod(2026, 3)
	now := time.Date(2026, 3, 12, 8, 30, 0, 0, time.UTC)

	if _, err := repo.GetMonthlyStatus(ctx, card.ID, p); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected no row before toggle, got %v", err)
	}

	st, err := repo.ToggleMonthlyStatus(ctx, card.ID, p, now)
	if err != nil || !st.IsPaid || st.PaidAt == nil || !st.PaidAt.Equal(now) {
		t.Fatalf("first toggle: %+v err=%v", st, err)
	}
	st, err = repo.ToggleMonthlyStatus(ctx, card.ID, p, now.Add(time.Hour))
	if err != nil || st.IsPaid || st.PaidAt != nil {
		t.Fatalf("second toggle: %+v err=%v", st, err)
	}

	all, err := repo.ListMonthlyStatuses(ctx, p)
	if err != nil || len(all) != 1 {
		t.Fatalf("expected a single row, got %v err=%v", all, err)
	}
}

func TestToggleMonthlyStatusUnknownCard(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	p := core.NewPeriod(2026, 3)

	if _, err := repo.ToggleMonthlyStatus(ctx, 999, p, time.Now()); !errors.Is(err, core.ErrMissingRelation) {
		t.Fatalf("expected ErrMissingRelation, got %v", err)
	}
	if _, err := repo.GetMonthlyStatus(ctx, 999, p); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected no row, got %v", err)
	}
}

func TestToggleMonthlyStatusConcurrent(t *testing.T) {
	repo := newTestRepo(t)
	card, _, _ := seedPlan(t, repo)
	ctx := context.Background()
	p := core.NewPeriod(2026, 5)

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.ToggleMonthlyStatus(ctx, card.ID, p, time.Now()); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("toggle failed: %v", err)
	}

	all, _ := repo.ListMonthlyStatuses(ctx, p)
	if len(all) != 1 {
		t.Fatalf("expected one row, got %d", len(all))
	}
	if all[0].IsPaid {
		t.Fatalf("even number of toggles should leave the card unpaid")
	}
}

func TestCashFlows(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	cat, err := repo.CreateCategory(ctx, core.Category{Name: "Home", Color: core.DefaultCategoryColor})
	if err != nil {
		t.Fatal(err)
	}
	feb := core.NewPeriod(2026, 2)

	if _, err := repo.CreateCashFlow(ctx, core.CashFlow{Description: "Salary", Amount: core.Money{Cents: 5000000}, IsRecurring: true}); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.CreateCashFlow(ctx, core.CashFlow{Description: "Rent", Amount: core.Money{Cents: -1500000}, Period: &feb, CategoryID: &cat.ID}); err != nil {
		t.Fatal(err)
	}

	flows, err := repo.ListCashFlows(ctx, feb)
	if err != nil || len(flows) != 2 {
		t.Fatalf("feb flows: %v err=%v", flows, err)
	}
	if flows[1].Category == nil || flows[1].Category.Name != "Home" || flows[1].Period == nil || *flows[1].Period != feb {
		t.Fatalf("rent not resolved: %+v", flows[1])
	}
	flows, _ = repo.ListCashFlows(ctx, core.NewPeriod(2026, 3))
	if len(flows) != 1 {
		t.Fatalf("march should only see the recurring row, got %d", len(flows))
	}

	refs, err := repo.CountCategoryReferences(ctx, cat.ID)
	if err != nil || refs.CashFlows != 1 {
		t.Fatalf("refs: %+v err=%v", refs, err)
	}
}

func TestDuplicateCardName(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	if _, err := repo.CreateCard(ctx, core.Card{Name: "JCB", Color: core.DefaultCardColor, DueDay: 15}); err != nil {
		t.Fatal(err)
	}
	_, err := repo.CreateCard(ctx, core.Card{Name: "JCB", Color: core.DefaultCardColor, DueDay: 15})
	if !errors.Is(err, core.ErrDuplicateName) {
		t.Fatalf("expected ErrDuplicateName, got %v", err)
	}
}

func TestUsers(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	if _, err := repo.CreateUser(ctx, "rey", "hash"); err != nil {
		t.Fatal(err)
	}
	u, err := repo.FindUserByUsername(ctx, "rey")
	if err != nil || u.PasswordHash != "hash" {
		t.Fatalf("find: %+v err=%v", u, err)
	}
	if _, err := repo.FindUserByUsername(ctx, "nobody"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	n, _ := repo.CountUsers(ctx)
	if n != 1 {
		t.Fatalf("count = %d", n)
	}
}
