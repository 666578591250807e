package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"installments/internal/core"
	"installments/internal/ledger"
)

// Catalog owns every write to the ledger: installments, cash flows and the
// card/payee/category lists, with the guards the store cannot express.
type Catalog struct {
	store  ledger.Store
	events EventPublisher
}

func NewCatalog(store ledger.Store, events EventPublisher) *Catalog {
	return &Catalog{store: store, events: publisherOrNoop(events)}
}

// InstallmentInput is what a user supplies to start a plan.
type InstallmentInput struct {
	Description string
	Total       core.Money
	Months      int
	Start       core.Period
	CardID      int64
	PayeeID     int64
	CategoryID  *int64
}

// CashFlowInput describes an income or expense entry. Amount is unsigned;
// IsIncome picks the sign.
type CashFlowInput struct {
	Description string
	Amount      core.Money
	IsIncome    bool
	IsRecurring bool
	Period      *core.Period
	CategoryID  *int64
}

func requireRelation(kind string, get func() error) error {
	err := get()
	if errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("%w: %s does not exist", core.ErrMissingRelation, kind)
	}
	return err
}

// CreateInstallment splits the total over Months payments starting in Start.
func (c *Catalog) CreateInstallment(ctx context.Context, in InstallmentInput) (core.Installment, error) {
	inst, err := core.NewInstallment(strings.TrimSpace(in.Description), in.Total, in.Months, in.Start, in.CardID, in.PayeeID, in.CategoryID)
	if err != nil {
		return core.Installment{}, err
	}
	if err := requireRelation("card", func() error { _, err := c.store.GetCard(ctx, in.CardID); return err }); err != nil {
		return core.Installment{}, err
	}
	if err := requireRelation("payee", func() error { _, err := c.store.GetPayee(ctx, in.PayeeID); return err }); err != nil {
		return core.Installment{}, err
	}
	if in.CategoryID != nil {
		if err := requireRelation("category", func() error { _, err := c.store.GetCategory(ctx, *in.CategoryID); return err }); err != nil {
			return core.Installment{}, err
		}
	}

	saved, err := c.store.CreateInstallment(ctx, inst)
	if err != nil {
		return core.Installment{}, fmt.Errorf("save installment: %w", err)
	}

	slog.InfoContext(ctx, "Installment created",
		"installment_id", saved.ID,
		"months", in.Months,
		"monthly_payment_cents", saved.MonthlyPayment.Cents)

	if err := c.events.PublishInstallmentCreated(ctx, saved); err != nil {
		slog.ErrorContext(ctx, "Failed to publish installment event",
			"installment_id", saved.ID, "error", err)
	}
	return saved, nil
}

// DeleteInstallment removes an installment for good.
func (c *Catalog) DeleteInstallment(ctx context.Context, id int64) error {
	if err := c.store.DeleteInstallment(ctx, id); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Installment deleted", "installment_id", id)
	if err := c.events.PublishInstallmentDeleted(ctx, id); err != nil {
		slog.ErrorContext(ctx, "Failed to publish installment event",
			"installment_id", id, "error", err)
	}
	return nil
}

func (c *Catalog) ListInstallments(ctx context.Context, f ledger.InstallmentFilter) ([]core.Installment, error) {
	return c.store.ListInstallments(ctx, f)
}

func (c *Catalog) Cards(ctx context.Context) ([]core.Card, error) {
	return c.store.ListCards(ctx)
}

func (c *Catalog) Payees(ctx context.Context) ([]core.Payee, error) {
	return c.store.ListPayees(ctx)
}

func (c *Catalog) Categories(ctx context.Context) ([]core.Category, error) {
	return c.store.ListCategories(ctx)
}

// CreateCard adds a card. An empty color or zero due day takes the default.
func (c *Catalog) CreateCard(ctx context.Context, name, color string, dueDay int) (core.Card, error) {
	card := core.Card{Name: strings.TrimSpace(name), Color: strings.TrimSpace(color), DueDay: dueDay}
	if card.Color == "" {
		card.Color = core.DefaultCardColor
	}
	if card.DueDay == 0 {
		card.DueDay = core.DefaultDueDay
	}
	return c.store.CreateCard(ctx, card)
}

func (c *Catalog) CreatePayee(ctx context.Context, name string) (core.Payee, error) {
	return c.store.CreatePayee(ctx, core.Payee{Name: strings.TrimSpace(name)})
}

func (c *Catalog) CreateCategory(ctx context.Context, name, color string) (core.Category, error) {
	cat := core.Category{Name: strings.TrimSpace(name), Color: strings.TrimSpace(color)}
	if cat.Color == "" {
		cat.Color = core.DefaultCategoryColor
	}
	return c.store.CreateCategory(ctx, cat)
}

// DeleteCard refuses while installments still point at the card.
func (c *Catalog) DeleteCard(ctx context.Context, id int64) error {
	card, err := c.store.GetCard(ctx, id)
	if err != nil {
		return err
	}
	refs, err := c.store.CountCardReferences(ctx, id)
	if err != nil {
		return err
	}
	if refs.Any() {
		return &core.ReferencedError{Kind: "card", Name: card.Name, Installments: refs.Installments, CashFlows: refs.CashFlows}
	}
	return c.store.DeleteCard(ctx, id)
}

// DeletePayee refuses while installments still point at the payee.
func (c *Catalog) DeletePayee(ctx context.Context, id int64) error {
	payee, err := c.store.GetPayee(ctx, id)
	if err != nil {
		return err
	}
	refs, err := c.store.CountPayeeReferences(ctx, id)
	if err != nil {
		return err
	}
	if refs.Any() {
		return &core.ReferencedError{Kind: "payee", Name: payee.Name, Installments: refs.Installments, CashFlows: refs.CashFlows}
	}
	return c.store.DeletePayee(ctx, id)
}

// DeleteCategory refuses while installments or cash flows use the category.
func (c *Catalog) DeleteCategory(ctx context.Context, id int64) error {
	cat, err := c.store.GetCategory(ctx, id)
	if err != nil {
		return err
	}
	refs, err := c.store.CountCategoryReferences(ctx, id)
	if err != nil {
		return err
	}
	if refs.Any() {
		return &core.ReferencedError{Kind: "category", Name: cat.Name, Installments: refs.Installments, CashFlows: refs.CashFlows}
	}
	return c.store.DeleteCategory(ctx, id)
}

// CreateCashFlow records income or an expense, either every month or for one.
func (c *Catalog) CreateCashFlow(ctx context.Context, in CashFlowInput) (core.CashFlow, error) {
	if err := in.Amount.Validate(); err != nil {
		return core.CashFlow{}, err
	}
	amount := in.Amount
	if !in.IsIncome {
		amount = core.Money{Cents: -amount.Cents}
	}
	cf := core.CashFlow{
		Description: strings.TrimSpace(in.Description),
		Amount:      amount,
		IsRecurring: in.IsRecurring,
		Period:      in.Period,
		CategoryID:  in.CategoryID,
	}
	if cf.IsRecurring {
		cf.Period = nil
	}
	if err := cf.Validate(); err != nil {
		return core.CashFlow{}, err
	}
	if in.CategoryID != nil {
		if err := requireRelation("category", func() error { _, err := c.store.GetCategory(ctx, *in.CategoryID); return err }); err != nil {
			return core.CashFlow{}, err
		}
	}
	return c.store.CreateCashFlow(ctx, cf)
}

func (c *Catalog) DeleteCashFlow(ctx context.Context, id int64) error {
	return c.store.DeleteCashFlow(ctx, id)
}
