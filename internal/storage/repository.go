package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"installments/internal/core"
	"installments/internal/ledger"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const dateLayout = "2006-01-02"

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

var _ ledger.Store = (*SQLiteRepository)(nil)

// dsn enables foreign keys and a busy timeout on every pooled connection.
func dsn(dbPath string) string {
	return "file:" + dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn(dbPath)); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// mapErr translates driver errors into domain errors.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrNotFound
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return fmt.Errorf("%w: %v", core.ErrDuplicateName, err)
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return fmt.Errorf("%w: %v", core.ErrMissingRelation, err)
		}
	}
	return err
}

func nullID(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func idPtr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func parseDate(s string) (core.Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return core.Date{}, fmt.Errorf("parse stored date %q: %w", s, err)
	}
	return core.DateOf(t), nil
}

func (row installmentRow) toCore() (core.Installment, error) {
	start, err := parseDate(row.StartDate)
	if err != nil {
		return core.Installment{}, err
	}
	end, err := parseDate(row.EndDate)
	if err != nil {
		return core.Installment{}, err
	}
	inst := core.Installment{
		ID:             row.ID,
		Description:    row.Description,
		TotalAmount:    core.Money{Cents: row.TotalAmountCents},
		MonthlyPayment: core.Money{Cents: row.MonthlyPaymentCents},
		StartDate:      start,
		EndDate:        end,
		CardID:         row.CardID,
		PayeeID:        row.PayeeID,
		CategoryID:     idPtr(row.CategoryID),
	}
	if row.CardName.Valid {
		inst.Card = &core.Card{ID: row.CardID, Name: row.CardName.String, Color: row.CardColor.String, DueDay: int(row.CardDueDay.Int64)}
	}
	if row.PayeeName.Valid {
		inst.Payee = &core.Payee{ID: row.PayeeID, Name: row.PayeeName.String}
	}
	if row.CategoryName.Valid && inst.CategoryID != nil {
		inst.Category = &core.Category{ID: *inst.CategoryID, Name: row.CategoryName.String, Color: row.CategoryColor.String}
	}
	return inst, nil
}

func installmentsToCore(rows []installmentRow) ([]core.Installment, error) {
	out := make([]core.Installment, 0, len(rows))
	for _, row := range rows {
		inst, err := row.toCore()
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, nil
}

// ListInstallments implements ledger.InstallmentReader
func (r *SQLiteRepository) ListInstallments(ctx context.Context, f ledger.InstallmentFilter) ([]core.Installment, error) {
	rows, err := r.queries.ListInstallments(ctx, nullID(f.CardID), nullID(f.PayeeID))
	if err != nil {
		return nil, fmt.Errorf("list installments: %w", err)
	}
	return installmentsToCore(rows)
}

// GetInstallment implements ledger.InstallmentReader
func (r *SQLiteRepository) GetInstallment(ctx context.Context, id int64) (core.Installment, error) {
	row, err := r.queries.GetInstallment(ctx, id)
	if err != nil {
		return core.Installment{}, fmt.Errorf("get installment %d: %w", id, mapErr(err))
	}
	return row.toCore()
}

// CreateInstallment implements ledger.InstallmentWriter
func (r *SQLiteRepository) CreateInstallment(ctx context.Context, inst core.Installment) (core.Installment, error) {
	if err := inst.Validate(); err != nil {
		return core.Installment{}, err
	}
	id, err := r.queries.CreateInstallment(ctx, CreateInstallmentParams{
		Description:         inst.Description,
		TotalAmountCents:    inst.TotalAmount.Cents,
		MonthlyPaymentCents: inst.MonthlyPayment.Cents,
		StartDate:           inst.StartDate.Format(dateLayout),
		EndDate:             inst.EndDate.Format(dateLayout),
		CardID:              inst.CardID,
		PayeeID:             inst.PayeeID,
		CategoryID:          nullID(inst.CategoryID),
	})
	if err != nil {
		return core.Installment{}, fmt.Errorf("create installment: %w", mapErr(err))
	}

	slog.InfoContext(ctx, "Installment saved to SQLite",
		"id", id,
		"description", inst.Description,
		"monthly_payment_cents", inst.MonthlyPayment.Cents,
		"start", inst.StartDate.Format(dateLayout),
		"end", inst.EndDate.Format(dateLayout))

	return r.GetInstallment(ctx, id)
}

// DeleteInstallment implements ledger.InstallmentWriter
func (r *SQLiteRepository) DeleteInstallment(ctx context.Context, id int64) error {
	n, err := r.queries.DeleteInstallment(ctx, id)
	if err != nil {
		return fmt.Errorf("delete installment %d: %w", id, mapErr(err))
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// PendingSyncInstallments returns installments not yet mirrored to the sheet,
// including those whose last export failed.
func (r *SQLiteRepository) PendingSyncInstallments(ctx context.Context, limit int) ([]core.Installment, error) {
	rows, err := r.queries.GetPendingSyncInstallments(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("get pending sync installments: %w", err)
	}
	return installmentsToCore(rows)
}

// MarkSynced marks an installment as successfully mirrored.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id int64) error {
	if err := r.queries.MarkInstallmentSynced(ctx, id); err != nil {
		return fmt.Errorf("mark installment synced: %w", err)
	}
	slog.InfoContext(ctx, "Installment marked as synced", "id", id)
	return nil
}

// MarkSyncError marks an installment as having sync errors.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id int64) error {
	if err := r.queries.MarkInstallmentSyncError(ctx, id); err != nil {
		return fmt.Errorf("mark installment sync error: %w", err)
	}
	slog.WarnContext(ctx, "Installment marked with sync error", "id", id)
	return nil
}

func (row statusRow) toCore() (core.MonthlyStatus, error) {
	p, err := core.ParsePeriod(row.MonthYear)
	if err != nil {
		return core.MonthlyStatus{}, err
	}
	st := core.MonthlyStatus{ID: row.ID, CardID: row.CardID, Period: p, IsPaid: row.IsPaid}
	if row.PaidAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, row.PaidAt.String)
		if err != nil {
			return core.MonthlyStatus{}, fmt.Errorf("parse paid_at %q: %w", row.PaidAt.String, err)
		}
		st.PaidAt = &t
	}
	return st, nil
}

// ListMonthlyStatuses implements ledger.StatusStore
func (r *SQLiteRepository) ListMonthlyStatuses(ctx context.Context, p core.Period) ([]core.MonthlyStatus, error) {
	rows, err := r.queries.ListMonthlyStatuses(ctx, p.String())
	if err != nil {
		return nil, fmt.Errorf("list monthly statuses: %w", err)
	}
	out := make([]core.MonthlyStatus, 0, len(rows))
	for _, row := range rows {
		st, err := row.toCore()
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

// GetMonthlyStatus implements ledger.StatusStore
func (r *SQLiteRepository) GetMonthlyStatus(ctx context.Context, cardID int64, p core.Period) (core.MonthlyStatus, error) {
	row, err := r.queries.GetMonthlyStatus(ctx, cardID, p.String())
	if err != nil {
		return core.MonthlyStatus{}, mapErr(err)
	}
	return row.toCore()
}

// ToggleMonthlyStatus implements ledger.StatusStore. The upsert runs inside a
// transaction so the returned row is the one this call wrote.
func (r *SQLiteRepository) ToggleMonthlyStatus(ctx context.Context, cardID int64, p core.Period, now time.Time) (core.MonthlyStatus, error) {
	if err := p.Validate(); err != nil {
		return core.MonthlyStatus{}, err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.MonthlyStatus{}, fmt.Errorf("begin toggle: %w", err)
	}
	defer tx.Rollback()

	row, err := r.queries.WithTx(tx).ToggleMonthlyStatus(ctx, cardID, p.String(), now.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return core.MonthlyStatus{}, fmt.Errorf("toggle status card=%d period=%s: %w", cardID, p, mapErr(err))
	}
	if err := tx.Commit(); err != nil {
		return core.MonthlyStatus{}, fmt.Errorf("commit toggle: %w", err)
	}
	return row.toCore()
}

// ListCashFlows implements ledger.CashFlowStore
func (r *SQLiteRepository) ListCashFlows(ctx context.Context, p core.Period) ([]core.CashFlow, error) {
	rows, err := r.queries.ListCashFlows(ctx, p.String())
	if err != nil {
		return nil, fmt.Errorf("list cash flows: %w", err)
	}
	out := make([]core.CashFlow, 0, len(rows))
	for _, row := range rows {
		cf := core.CashFlow{
			ID:          row.ID,
			Description: row.Description,
			Amount:      core.Money{Cents: row.AmountCents},
			IsRecurring: row.IsRecurring,
			CategoryID:  idPtr(row.CategoryID),
		}
		if row.MonthYear.Valid {
			mp, err := core.ParsePeriod(row.MonthYear.String)
			if err != nil {
				return nil, err
			}
			cf.Period = &mp
		}
		if row.CategoryName.Valid && cf.CategoryID != nil {
			cf.Category = &core.Category{ID: *cf.CategoryID, Name: row.CategoryName.String, Color: row.CategoryColor.String}
		}
		out = append(out, cf)
	}
	return out, nil
}

// CreateCashFlow implements ledger.CashFlowStore
func (r *SQLiteRepository) CreateCashFlow(ctx context.Context, cf core.CashFlow) (core.CashFlow, error) {
	if err := cf.Validate(); err != nil {
		return core.CashFlow{}, err
	}
	var month sql.NullString
	if cf.IsRecurring {
		cf.Period = nil
	} else {
		month = sql.NullString{String: cf.Period.String(), Valid: true}
	}
	id, err := r.queries.CreateCashFlow(ctx, cf.Description, cf.Amount.Cents, cf.IsRecurring, month, nullID(cf.CategoryID))
	if err != nil {
		return core.CashFlow{}, fmt.Errorf("create cash flow: %w", mapErr(err))
	}
	cf.ID = id
	cf.Category = nil
	return cf, nil
}

// DeleteCashFlow implements ledger.CashFlowStore
func (r *SQLiteRepository) DeleteCashFlow(ctx context.Context, id int64) error {
	n, err := r.queries.DeleteCashFlow(ctx, id)
	if err != nil {
		return fmt.Errorf("delete cash flow %d: %w", id, err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// ListCards implements ledger.CatalogStore
func (r *SQLiteRepository) ListCards(ctx context.Context) ([]core.Card, error) {
	rows, err := r.queries.ListCards(ctx)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	out := make([]core.Card, len(rows))
	for i, c := range rows {
		out[i] = core.Card{ID: c.ID, Name: c.Name, Color: c.Color, DueDay: int(c.DueDay)}
	}
	return out, nil
}

func (r *SQLiteRepository) GetCard(ctx context.Context, id int64) (core.Card, error) {
	c, err := r.queries.GetCard(ctx, id)
	if err != nil {
		return core.Card{}, mapErr(err)
	}
	return core.Card{ID: c.ID, Name: c.Name, Color: c.Color, DueDay: int(c.DueDay)}, nil
}

func (r *SQLiteRepository) CreateCard(ctx context.Context, c core.Card) (core.Card, error) {
	if err := c.Validate(); err != nil {
		return core.Card{}, err
	}
	id, err := r.queries.CreateCard(ctx, c.Name, c.Color, int64(c.DueDay))
	if err != nil {
		return core.Card{}, fmt.Errorf("create card %q: %w", c.Name, mapErr(err))
	}
	c.ID = id
	return c, nil
}

func (r *SQLiteRepository) DeleteCard(ctx context.Context, id int64) error {
	n, err := r.queries.DeleteCard(ctx, id)
	if err != nil {
		return fmt.Errorf("delete card %d: %w", id, mapErr(err))
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) CountCardReferences(ctx context.Context, id int64) (ledger.References, error) {
	n, err := r.queries.CountCardInstallments(ctx, id)
	if err != nil {
		return ledger.References{}, fmt.Errorf("count card references: %w", err)
	}
	return ledger.References{Installments: int(n)}, nil
}

// ListPayees implements ledger.CatalogStore
func (r *SQLiteRepository) ListPayees(ctx context.Context) ([]core.Payee, error) {
	rows, err := r.queries.ListPayees(ctx)
	if err != nil {
		return nil, fmt.Errorf("list payees: %w", err)
	}
	out := make([]core.Payee, len(rows))
	for i, p := range rows {
		out[i] = core.Payee{ID: p.ID, Name: p.Name}
	}
	return out, nil
}

func (r *SQLiteRepository) GetPayee(ctx context.Context, id int64) (core.Payee, error) {
	p, err := r.queries.GetPayee(ctx, id)
	if err != nil {
		return core.Payee{}, mapErr(err)
	}
	return core.Payee{ID: p.ID, Name: p.Name}, nil
}

func (r *SQLiteRepository) CreatePayee(ctx context.Context, p core.Payee) (core.Payee, error) {
	if err := p.Validate(); err != nil {
		return core.Payee{}, err
	}
	id, err := r.queries.CreatePayee(ctx, p.Name)
	if err != nil {
		return core.Payee{}, fmt.Errorf("create payee %q: %w", p.Name, mapErr(err))
	}
	p.ID = id
	return p, nil
}

func (r *SQLiteRepository) DeletePayee(ctx context.Context, id int64) error {
	n, err := r.queries.DeletePayee(ctx, id)
	if err != nil {
		return fmt.Errorf("delete payee %d: %w", id, mapErr(err))
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) CountPayeeReferences(ctx context.Context, id int64) (ledger.References, error) {
	n, err := r.queries.CountPayeeInstallments(ctx, id)
	if err != nil {
		return ledger.References{}, fmt.Errorf("count payee references: %w", err)
	}
	return ledger.References{Installments: int(n)}, nil
}

// ListCategories implements ledger.CatalogStore
func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.queries.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	out := make([]core.Category, len(rows))
	for i, c := range rows {
		out[i] = core.Category{ID: c.ID, Name: c.Name, Color: c.Color}
	}
	return out, nil
}

func (r *SQLiteRepository) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	c, err := r.queries.GetCategory(ctx, id)
	if err != nil {
		return core.Category{}, mapErr(err)
	}
	return core.Category{ID: c.ID, Name: c.Name, Color: c.Color}, nil
}

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	id, err := r.queries.CreateCategory(ctx, c.Name, c.Color)
	if err != nil {
		return core.Category{}, fmt.Errorf("create category %q: %w", c.Name, mapErr(err))
	}
	c.ID = id
	return c, nil
}

func (r *SQLiteRepository) DeleteCategory(ctx context.Context, id int64) error {
	n, err := r.queries.DeleteCategory(ctx, id)
	if err != nil {
		return fmt.Errorf("delete category %d: %w", id, mapErr(err))
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) CountCategoryReferences(ctx context.Context, id int64) (ledger.References, error) {
	inst, flows, err := r.queries.CountCategoryReferences(ctx, id)
	if err != nil {
		return ledger.References{}, fmt.Errorf("count category references: %w", err)
	}
	return ledger.References{Installments: int(inst), CashFlows: int(flows)}, nil
}

// CreateUser implements ledger.UserStore
func (r *SQLiteRepository) CreateUser(ctx context.Context, username, passwordHash string) (core.User, error) {
	id, err := r.queries.CreateUser(ctx, username, passwordHash)
	if err != nil {
		return core.User{}, fmt.Errorf("create user %q: %w", username, mapErr(err))
	}
	return core.User{ID: id, Username: username, PasswordHash: passwordHash}, nil
}

func (r *SQLiteRepository) FindUserByUsername(ctx context.Context, username string) (core.User, error) {
	id, name, hash, err := r.queries.GetUserByUsername(ctx, username)
	if err != nil {
		return core.User{}, mapErr(err)
	}
	return core.User{ID: id, Username: name, PasswordHash: hash}, nil
}

func (r *SQLiteRepository) CountUsers(ctx context.Context) (int, error) {
	n, err := r.queries.CountUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return int(n), nil
}
