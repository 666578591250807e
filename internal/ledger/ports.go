// Package ledger defines the data-access ports consumed by the services.
// Implementations live in ledger/memory and storage.
package ledger

import (
	"context"
	"time"

	"installments/internal/core"
)

// InstallmentFilter narrows an installment listing. Nil fields match everything.
type InstallmentFilter struct {
	CardID  *int64
	PayeeID *int64
}

// Matches reports whether inst passes the filter.
func (f InstallmentFilter) Matches(inst core.Installment) bool {
	if f.CardID != nil && inst.CardID != *f.CardID {
		return false
	}
	if f.PayeeID != nil && inst.PayeeID != *f.PayeeID {
		return false
	}
	return true
}

// References counts rows pointing at a catalog entity.
type References struct {
	Installments int
	CashFlows    int
}

// Any reports whether at least one row still points at the entity.
func (r References) Any() bool {
	return r.Installments > 0 || r.CashFlows > 0
}

// Ports for outbound adapters.
type (
	InstallmentReader interface {
		// ListInstallments returns installments with Card, Payee and Category
		// resolved, ordered by start date descending then id.
		ListInstallments(ctx context.Context, f InstallmentFilter) ([]core.Installment, error)
		GetInstallment(ctx context.Context, id int64) (core.Installment, error)
	}

	InstallmentWriter interface {
		CreateInstallment(ctx context.Context, inst core.Installment) (core.Installment, error)
		DeleteInstallment(ctx context.Context, id int64) error
	}

	StatusStore interface {
		ListMonthlyStatuses(ctx context.Context, p core.Period) ([]core.MonthlyStatus, error)
		// GetMonthlyStatus returns core.ErrNotFound when no row exists.
		GetMonthlyStatus(ctx context.Context, cardID int64, p core.Period) (core.MonthlyStatus, error)
		// ToggleMonthlyStatus flips is_paid for (cardID, p), creating the row as
		// paid when it does not exist. Lookup and write happen atomically.
		// An unknown cardID yields core.ErrMissingRelation.
		ToggleMonthlyStatus(ctx context.Context, cardID int64, p core.Period, now time.Time) (core.MonthlyStatus, error)
	}

	CashFlowStore interface {
		// ListCashFlows returns recurring rows plus rows tagged with p.
		ListCashFlows(ctx context.Context, p core.Period) ([]core.CashFlow, error)
		CreateCashFlow(ctx context.Context, cf core.CashFlow) (core.CashFlow, error)
		DeleteCashFlow(ctx context.Context, id int64) error
	}

	CatalogStore interface {
		ListCards(ctx context.Context) ([]core.Card, error)
		GetCard(ctx context.Context, id int64) (core.Card, error)
		CreateCard(ctx context.Context, c core.Card) (core.Card, error)
		DeleteCard(ctx context.Context, id int64) error
		CountCardReferences(ctx context.Context, id int64) (References, error)

		ListPayees(ctx context.Context) ([]core.Payee, error)
		GetPayee(ctx context.Context, id int64) (core.Payee, error)
		CreatePayee(ctx context.Context, p core.Payee) (core.Payee, error)
		DeletePayee(ctx context.Context, id int64) error
		CountPayeeReferences(ctx context.Context, id int64) (References, error)

		ListCategories(ctx context.Context) ([]core.Category, error)
		GetCategory(ctx context.Context, id int64) (core.Category, error)
		CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
		DeleteCategory(ctx context.Context, id int64) error
		CountCategoryReferences(ctx context.Context, id int64) (References, error)
	}

	UserStore interface {
		CreateUser(ctx context.Context, username, passwordHash string) (core.User, error)
		// FindUserByUsername returns core.ErrNotFound for unknown users.
		FindUserByUsername(ctx context.Context, username string) (core.User, error)
		CountUsers(ctx context.Context) (int, error)
	}

	// Store is the full data-access surface a backend provides.
	Store interface {
		InstallmentReader
		InstallmentWriter
		StatusStore
		CashFlowStore
		CatalogStore
		UserStore
	}
)
