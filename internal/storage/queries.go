package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// Row types

type installmentRow struct {
	ID                  int64
	Description         string
	TotalAmountCents    int64
	MonthlyPaymentCents int64
	StartDate           string
	EndDate             string
	CardID              int64
	PayeeID             int64
	CategoryID          sql.NullInt64
	CardName            sql.NullString
	CardColor           sql.NullString
	CardDueDay          sql.NullInt64
	PayeeName           sql.NullString
	CategoryName        sql.NullString
	CategoryColor       sql.NullString
	SyncStatus          string
}

type statusRow struct {
	ID        int64
	CardID    int64
	MonthYear string
	IsPaid    bool
	PaidAt    sql.NullString
}

type cashFlowRow struct {
	ID            int64
	Description   string
	AmountCents   int64
	IsRecurring   bool
	MonthYear     sql.NullString
	CategoryID    sql.NullInt64
	CategoryName  sql.NullString
	CategoryColor sql.NullString
}

// Installments

const installmentColumns = `
SELECT i.id, i.description, i.total_amount_cents, i.monthly_payment_cents,
       i.start_date, i.end_date, i.card_id, i.payee_id, i.category_id,
       c.name, c.color, c.due_day, p.name, cat.name, cat.color, i.sync_status
FROM installments i
LEFT JOIN cards c ON c.id = i.card_id
LEFT JOIN payees p ON p.id = i.payee_id
LEFT JOIN categories cat ON cat.id = i.category_id
`

const listInstallments = installmentColumns + `
WHERE (? IS NULL OR i.card_id = ?)
  AND (? IS NULL OR i.payee_id = ?)
ORDER BY i.start_date DESC, i.id ASC
`

const getInstallment = installmentColumns + `WHERE i.id = ?`

const getPendingSyncInstallments = installmentColumns + `
WHERE i.sync_status IN ('pending', 'error')
ORDER BY i.created_at ASC, i.id ASC
LIMIT ?
`

func scanInstallment(sc interface{ Scan(...interface{}) error }) (installmentRow, error) {
	var r installmentRow
	err := sc.Scan(&r.ID, &r.Description, &r.TotalAmountCents, &r.MonthlyPaymentCents,
		&r.StartDate, &r.EndDate, &r.CardID, &r.PayeeID, &r.CategoryID,
		&r.CardName, &r.CardColor, &r.CardDueDay, &r.PayeeName,
		&r.CategoryName, &r.CategoryColor, &r.SyncStatus)
	return r, err
}

func (q *Queries) ListInstallments(ctx context.Context, cardID, payeeID sql.NullInt64) ([]installmentRow, error) {
	rows, err := q.db.QueryContext(ctx, listInstallments, cardID, cardID, payeeID, payeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []installmentRow
	for rows.Next() {
		r, err := scanInstallment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

func (q *Queries) GetInstallment(ctx context.Context, id int64) (installmentRow, error) {
	return scanInstallment(q.db.QueryRowContext(ctx, getInstallment, id))
}

func (q *Queries) GetPendingSyncInstallments(ctx context.Context, limit int64) ([]installmentRow, error) {
	rows, err := q.db.QueryContext(ctx, getPendingSyncInstallments, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []installmentRow
	for rows.Next() {
		r, err := scanInstallment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const createInstallment = `
INSERT INTO installments (description, total_amount_cents, monthly_payment_cents,
                          start_date, end_date, card_id, payee_id, category_id)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id
`

type CreateInstallmentParams struct {
	Description         string
	TotalAmountCents    int64
	MonthlyPaymentCents int64
	StartDate           string
	EndDate             string
	CardID              int64
	PayeeID             int64
	CategoryID          sql.NullInt64
}

func (q *Queries) CreateInstallment(ctx context.Context, arg CreateInstallmentParams) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, createInstallment,
		arg.Description, arg.TotalAmountCents, arg.MonthlyPaymentCents,
		arg.StartDate, arg.EndDate, arg.CardID, arg.PayeeID, arg.CategoryID,
	).Scan(&id)
	return id, err
}

const deleteInstallment = `DELETE FROM installments WHERE id = ?`

func (q *Queries) DeleteInstallment(ctx context.Context, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteInstallment, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const markInstallmentSynced = `UPDATE installments SET sync_status = 'synced' WHERE id = ?`

func (q *Queries) MarkInstallmentSynced(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, markInstallmentSynced, id)
	return err
}

const markInstallmentSyncError = `UPDATE installments SET sync_status = 'error' WHERE id = ?`

func (q *Queries) MarkInstallmentSyncError(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, markInstallmentSyncError, id)
	return err
}

// Monthly statuses

const listMonthlyStatuses = `
SELECT id, card_id, month_year, is_paid, paid_at
FROM card_monthly_statuses
WHERE month_year = ?
ORDER BY card_id
`

func (q *Queries) ListMonthlyStatuses(ctx context.Context, monthYear string) ([]statusRow, error) {
	rows, err := q.db.QueryContext(ctx, listMonthlyStatuses, monthYear)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []statusRow
	for rows.Next() {
		var r statusRow
		if err := rows.Scan(&r.ID, &r.CardID, &r.MonthYear, &r.IsPaid, &r.PaidAt); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const getMonthlyStatus = `
SELECT id, card_id, month_year, is_paid, paid_at
FROM card_monthly_statuses
WHERE card_id = ? AND month_year = ?
`

func (q *Queries) GetMonthlyStatus(ctx context.Context, cardID int64, monthYear string) (statusRow, error) {
	var r statusRow
	err := q.db.QueryRowContext(ctx, getMonthlyStatus, cardID, monthYear).
		Scan(&r.ID, &r.CardID, &r.MonthYear, &r.IsPaid, &r.PaidAt)
	return r, err
}

// A missing row is inserted as paid; an existing row flips. The CASE reads the
// pre-update is_paid.
const toggleMonthlyStatus = `
INSERT INTO card_monthly_statuses (card_id, month_year, is_paid, paid_at)
VALUES (?, ?, 1, ?)
ON CONFLICT (card_id, month_year) DO UPDATE SET
    is_paid = 1 - card_monthly_statuses.is_paid,
    paid_at = CASE WHEN card_monthly_statuses.is_paid = 0 THEN excluded.paid_at ELSE NULL END
RETURNING id, card_id, month_year, is_paid, paid_at
`

func (q *Queries) ToggleMonthlyStatus(ctx context.Context, cardID int64, monthYear, paidAt string) (statusRow, error) {
	var r statusRow
	err := q.db.QueryRowContext(ctx, toggleMonthlyStatus, cardID, monthYear, paidAt).
		Scan(&r.ID, &r.CardID, &r.MonthYear, &r.IsPaid, &r.PaidAt)
	return r, err
}

// Cash flows

const listCashFlows = `
SELECT f.id, f.description, f.amount_cents, f.is_recurring, f.month_year,
       f.category_id, cat.name, cat.color
FROM cash_flows f
LEFT JOIN categories cat ON cat.id = f.category_id
WHERE f.is_recurring = 1 OR f.month_year = ?
ORDER BY f.id
`

func (q *Queries) ListCashFlows(ctx context.Context, monthYear string) ([]cashFlowRow, error) {
	rows, err := q.db.QueryContext(ctx, listCashFlows, monthYear)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []cashFlowRow
	for rows.Next() {
		var r cashFlowRow
		if err := rows.Scan(&r.ID, &r.Description, &r.AmountCents, &r.IsRecurring, &r.MonthYear,
			&r.CategoryID, &r.CategoryName, &r.CategoryColor); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const createCashFlow = `
INSERT INTO cash_flows (description, amount_cents, is_recurring, month_year, category_id)
VALUES (?, ?, ?, ?, ?)
RETURNING id
`

func (q *Queries) CreateCashFlow(ctx context.Context, description string, amountCents int64, recurring bool, monthYear sql.NullString, categoryID sql.NullInt64) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, createCashFlow, description, amountCents, recurring, monthYear, categoryID).Scan(&id)
	return id, err
}

const deleteCashFlow = `DELETE FROM cash_flows WHERE id = ?`

func (q *Queries) DeleteCashFlow(ctx context.Context, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteCashFlow, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Cards

const listCards = `SELECT id, name, color, due_day FROM cards ORDER BY name COLLATE NOCASE`

func (q *Queries) ListCards(ctx context.Context) ([]cardRow, error) {
	rows, err := q.db.QueryContext(ctx, listCards)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []cardRow
	for rows.Next() {
		var r cardRow
		if err := rows.Scan(&r.ID, &r.Name, &r.Color, &r.DueDay); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

type cardRow struct {
	ID     int64
	Name   string
	Color  string
	DueDay int64
}

const getCard = `SELECT id, name, color, due_day FROM cards WHERE id = ?`

func (q *Queries) GetCard(ctx context.Context, id int64) (cardRow, error) {
	var r cardRow
	err := q.db.QueryRowContext(ctx, getCard, id).Scan(&r.ID, &r.Name, &r.Color, &r.DueDay)
	return r, err
}

const createCard = `INSERT INTO cards (name, color, due_day) VALUES (?, ?, ?) RETURNING id`

func (q *Queries) CreateCard(ctx context.Context, name, color string, dueDay int64) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, createCard, name, color, dueDay).Scan(&id)
	return id, err
}

const deleteCard = `DELETE FROM cards WHERE id = ?`

func (q *Queries) DeleteCard(ctx context.Context, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteCard, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const countCardInstallments = `SELECT COUNT(*) FROM installments WHERE card_id = ?`

func (q *Queries) CountCardInstallments(ctx context.Context, id int64) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countCardInstallments, id).Scan(&n)
	return n, err
}

// Payees

const listPayees = `SELECT id, name FROM payees ORDER BY name COLLATE NOCASE`

func (q *Queries) ListPayees(ctx context.Context) ([]namedRow, error) {
	rows, err := q.db.QueryContext(ctx, listPayees)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []namedRow
	for rows.Next() {
		var r namedRow
		if err := rows.Scan(&r.ID, &r.Name); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

type namedRow struct {
	ID    int64
	Name  string
	Color string
}

const getPayee = `SELECT id, name FROM payees WHERE id = ?`

func (q *Queries) GetPayee(ctx context.Context, id int64) (namedRow, error) {
	var r namedRow
	err := q.db.QueryRowContext(ctx, getPayee, id).Scan(&r.ID, &r.Name)
	return r, err
}

const createPayee = `INSERT INTO payees (name) VALUES (?) RETURNING id`

func (q *Queries) CreatePayee(ctx context.Context, name string) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, createPayee, name).Scan(&id)
	return id, err
}

const deletePayee = `DELETE FROM payees WHERE id = ?`

func (q *Queries) DeletePayee(ctx context.Context, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deletePayee, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const countPayeeInstallments = `SELECT COUNT(*) FROM installments WHERE payee_id = ?`

func (q *Queries) CountPayeeInstallments(ctx context.Context, id int64) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countPayeeInstallments, id).Scan(&n)
	return n, err
}

// Categories

const listCategories = `SELECT id, name, color FROM categories ORDER BY name COLLATE NOCASE`

func (q *Queries) ListCategories(ctx context.Context) ([]namedRow, error) {
	rows, err := q.db.QueryContext(ctx, listCategories)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []namedRow
	for rows.Next() {
		var r namedRow
		if err := rows.Scan(&r.ID, &r.Name, &r.Color); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const getCategory = `SELECT id, name, color FROM categories WHERE id = ?`

func (q *Queries) GetCategory(ctx context.Context, id int64) (namedRow, error) {
	var r namedRow
	err := q.db.QueryRowContext(ctx, getCategory, id).Scan(&r.ID, &r.Name, &r.Color)
	return r, err
}

const createCategory = `INSERT INTO categories (name, color) VALUES (?, ?) RETURNING id`

func (q *Queries) CreateCategory(ctx context.Context, name, color string) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, createCategory, name, color).Scan(&id)
	return id, err
}

const deleteCategory = `DELETE FROM categories WHERE id = ?`

func (q *Queries) DeleteCategory(ctx context.Context, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteCategory, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const countCategoryReferences = `
SELECT (SELECT COUNT(*) FROM installments WHERE category_id = ?),
       (SELECT COUNT(*) FROM cash_flows WHERE category_id = ?)
`

func (q *Queries) CountCategoryReferences(ctx context.Context, id int64) (installments, cashFlows int64, err error) {
	err = q.db.QueryRowContext(ctx, countCategoryReferences, id, id).Scan(&installments, &cashFlows)
	return installments, cashFlows, err
}

// Users

const createUser = `INSERT INTO users (username, hashed_password) VALUES (?, ?) RETURNING id`

func (q *Queries) CreateUser(ctx context.Context, username, hash string) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, createUser, username, hash).Scan(&id)
	return id, err
}

const getUserByUsername = `SELECT id, username, hashed_password FROM users WHERE username = ?`

func (q *Queries) GetUserByUsername(ctx context.Context, username string) (id int64, name, hash string, err error) {
	err = q.db.QueryRowContext(ctx, getUserByUsername, username).Scan(&id, &name, &hash)
	return id, name, hash, err
}

const countUsers = `SELECT COUNT(*) FROM users`

func (q *Queries) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countUsers).Scan(&n)
	return n, err
}
