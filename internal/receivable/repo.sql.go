package receivable

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/cashbook-erp/cashbook/internal/platform/db"
)

// Repository persists receivable rows in the finances table.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations. Payment application
// always runs under a row lock so the remaining-amount check and the
// installment counter cannot race.
type TxRepository interface {
	GetForUpdate(ctx context.Context, id int64) (Receivable, error)
	ApplyPayment(ctx context.Context, id int64, paid decimal.Decimal, paymentCount, status int) (Receivable, error)
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes fn within a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const receivableColumns = `id, employee_id, employee_name, amount, paid, payment_count, status, description, warehouse_id, created_at, updated_at`

func scanReceivable(row pgx.Row) (Receivable, error) {
	var rec Receivable
	err := row.Scan(&rec.ID, &rec.EmployeeID, &rec.EmployeeName, &rec.Amount, &rec.Paid,
		&rec.PaymentCount, &rec.Status, &rec.Description, &rec.WarehouseID, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Receivable{}, ErrReceivableNotFound
	}
	return rec, err
}

func (r *txRepository) GetForUpdate(ctx context.Context, id int64) (Receivable, error) {
	return scanReceivable(r.tx.QueryRow(ctx,
		`SELECT `+receivableColumns+` FROM finances WHERE id = $1 FOR UPDATE`, id))
}

func (r *txRepository) ApplyPayment(ctx context.Context, id int64, paid decimal.Decimal, paymentCount, status int) (Receivable, error) {
	return scanReceivable(r.tx.QueryRow(ctx, `UPDATE finances
SET paid = $2, payment_count = $3, status = $4, updated_at = now()
WHERE id = $1 RETURNING `+receivableColumns,
		id, paid, paymentCount, status))
}

// Insert opens a receivable row.
func (r *Repository) Insert(ctx context.Context, in CreateInput) (Receivable, error) {
	return scanReceivable(r.pool.QueryRow(ctx, `INSERT INTO finances
(employee_id, employee_name, amount, paid, payment_count, status, description, warehouse_id, created_at, updated_at)
VALUES ($1, $2, $3, 0, 0, $4, $5, $6, now(), now())
RETURNING `+receivableColumns,
		in.EmployeeID, in.EmployeeName, in.Amount, StatusOpen, in.Description, in.WarehouseID))
}

// Get fetches one receivable.
func (r *Repository) Get(ctx context.Context, id int64) (Receivable, error) {
	return scanReceivable(r.pool.QueryRow(ctx,
		`SELECT `+receivableColumns+` FROM finances WHERE id = $1`, id))
}

// List returns receivables matching the filter, newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Receivable, error) {
	var status any
	if filter.Status != nil {
		status = *filter.Status
	}
	rows, err := r.pool.Query(ctx, `SELECT `+receivableColumns+` FROM finances
WHERE ($1::int IS NULL OR status = $1)
  AND ($2 = 0 OR employee_id = $2)
  AND ($3 = 0 OR warehouse_id = $3)
  AND ($4 = '' OR employee_name ILIKE '%' || $4 || '%')
ORDER BY created_at DESC
LIMIT $5 OFFSET $6`,
		status, filter.EmployeeID, filter.WarehouseID, filter.Search,
		filter.Page.PerPage, filter.Page.Offset())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Receivable
	for rows.Next() {
		rec, err := scanReceivable(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Delete removes one receivable row.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM finances WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrReceivableNotFound
	}
	return nil
}
