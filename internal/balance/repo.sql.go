package balance

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository reads aggregate ledger activity. It never writes: balances
// are projections, and the only tables touched are the journal and the
// chart of accounts, both owned by other modules.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ActivityTotals sums the journal amounts touching one account in the
// inclusive date range. Index-backed by (debit_account_id, date_issued)
// and (credit_account_id, date_issued).
func (r *Repository) ActivityTotals(ctx context.Context, accountID int64, start, end time.Time) (Activity, error) {
	var activity Activity
	err := r.pool.QueryRow(ctx, `SELECT
  COALESCE(SUM(amount) FILTER (WHERE debit_account_id = $1), 0),
  COALESCE(SUM(amount) FILTER (WHERE credit_account_id = $1), 0)
FROM journals
WHERE (debit_account_id = $1 OR credit_account_id = $1) AND date_issued BETWEEN $2 AND $3`,
		accountID, start, end).Scan(&activity.Debit, &activity.Credit)
	if err != nil {
		return Activity{}, err
	}
	return activity, nil
}

// ActivityTotalsBulk sums journal amounts per account for a set of
// accounts over a date range. Accounts with no activity are simply absent;
// callers treat absence as zero.
func (r *Repository) ActivityTotalsBulk(ctx context.Context, accountIDs []int64, start, end time.Time) (map[int64]Activity, error) {
	rows, err := r.pool.Query(ctx, `SELECT account_id, SUM(debit), SUM(credit) FROM (
  SELECT debit_account_id AS account_id, amount AS debit, 0::numeric AS credit
  FROM journals WHERE debit_account_id = ANY($1) AND date_issued BETWEEN $2 AND $3
  UNION ALL
  SELECT credit_account_id AS account_id, 0::numeric AS debit, amount AS credit
  FROM journals WHERE credit_account_id = ANY($1) AND date_issued BETWEEN $2 AND $3
) sides GROUP BY account_id`, accountIDs, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	totals := make(map[int64]Activity)
	for rows.Next() {
		var id int64
		var activity Activity
		if err := rows.Scan(&id, &activity.Debit, &activity.Credit); err != nil {
			return nil, err
		}
		totals[id] = activity
	}
	return totals, rows.Err()
}

// TrxTypeTotal aggregates amount and fee sums for one transaction class,
// the reporting primitive behind the daily dashboard.
type TrxTypeTotal struct {
	TrxType string
	Amount  decimal.Decimal
	Fee     decimal.Decimal
	Count   int64
}

// TrxTypeTotals sums journal amounts and fees per transaction class in
// the range, optionally scoped to one warehouse (0 means all).
func (r *Repository) TrxTypeTotals(ctx context.Context, warehouseID int64, start, end time.Time) (map[string]TrxTypeTotal, error) {
	rows, err := r.pool.Query(ctx, `SELECT trx_type, COALESCE(SUM(amount),0), COALESCE(SUM(fee_amount),0), COUNT(*)
FROM journals
WHERE date_issued BETWEEN $1 AND $2 AND ($3 = 0 OR warehouse_id = $3)
GROUP BY trx_type`, start, end, warehouseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	totals := make(map[string]TrxTypeTotal)
	for rows.Next() {
		var t TrxTypeTotal
		if err := rows.Scan(&t.TrxType, &t.Amount, &t.Fee, &t.Count); err != nil {
			return nil, err
		}
		totals[t.TrxType] = t
	}
	return totals, rows.Err()
}
