package journal

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cashbook-erp/cashbook/internal/platform/db"
	"github.com/cashbook-erp/cashbook/internal/shared"
)

// Repository persists journal entries.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	AcquireSequenceLock(ctx context.Context, key int64) error
	MaxInvoiceSequence(ctx context.Context, scope SequenceScope) (int, error)
	AccountsExist(ctx context.Context, debitID, creditID int64) (bool, error)
	InsertEntry(ctx context.Context, invoice string, in PostInput) (Entry, error)
	MarkAccountsLocked(ctx context.Context, debitID, creditID int64) error
	GetEntryForUpdate(ctx context.Context, entryID int64) (Entry, error)
	UpdateEntryFields(ctx context.Context, in UpdateInput) (Entry, error)
	DeleteEntry(ctx context.Context, entryID int64) error
	DeleteDependentsByInvoice(ctx context.Context, invoice string) (int64, error)
	AccountNames(ctx context.Context, ids []int64) (map[int64]string, error)
	RecordActivity(ctx context.Context, log shared.ActivityLog) error
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes fn within a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("journal repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const entryColumns = `id, invoice, date_issued, debit_account_id, credit_account_id, amount, fee_amount, trx_type, description, warehouse_id, user_id, is_confirmed, status, created_at, updated_at`

func scanEntry(row pgx.Row) (Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.Invoice, &e.DateIssued, &e.DebitAccountID, &e.CreditAccountID, &e.Amount, &e.FeeAmount,
		&e.TrxType, &e.Description, &e.WarehouseID, &e.UserID, &e.IsConfirmed, &e.Status, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

func (r *txRepository) AcquireSequenceLock(ctx context.Context, key int64) error {
	_, err := r.tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, key)
	return err
}

func (r *txRepository) MaxInvoiceSequence(ctx context.Context, scope SequenceScope) (int, error) {
	var max *int
	err := r.tx.QueryRow(ctx, `SELECT MAX(RIGHT(invoice, 7)::int) FROM journals
WHERE user_id=$1 AND created_at::date=$2 AND invoice LIKE $3 || '.%' AND trx_type NOT IN ($4, $5)`,
		scope.UserID, scope.Day, scope.Prefix, TrxTypeSales, TrxTypePurchase).Scan(&max)
	if err != nil {
		return 0, err
	}
	if max == nil {
		return 0, nil
	}
	return *max, nil
}

func (r *txRepository) AccountsExist(ctx context.Context, debitID, creditID int64) (bool, error) {
	var count int
	err := r.tx.QueryRow(ctx, `SELECT COUNT(DISTINCT id) FROM chart_of_accounts WHERE id = ANY($1)`,
		[]int64{debitID, creditID}).Scan(&count)
	if err != nil {
		return false, err
	}
	want := 2
	if debitID == creditID {
		want = 1
	}
	return count == want, nil
}

func (r *txRepository) InsertEntry(ctx context.Context, invoice string, in PostInput) (Entry, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO journals (invoice, date_issued, debit_account_id, credit_account_id, amount, fee_amount, trx_type, description, warehouse_id, user_id, is_confirmed, status)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,false,0) RETURNING `+entryColumns,
		invoice, in.DateIssued, in.DebitAccountID, in.CreditAccountID, in.Amount, in.FeeAmount, in.TrxType, in.Description, in.WarehouseID, in.UserID)
	return scanEntry(row)
}

func (r *txRepository) MarkAccountsLocked(ctx context.Context, debitID, creditID int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE chart_of_accounts SET is_locked=true, updated_at=NOW()
WHERE id = ANY($1) AND NOT is_locked`, []int64{debitID, creditID})
	return err
}

func (r *txRepository) GetEntryForUpdate(ctx context.Context, entryID int64) (Entry, error) {
	entry, err := scanEntry(r.tx.QueryRow(ctx, `SELECT `+entryColumns+` FROM journals WHERE id=$1 FOR UPDATE`, entryID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, ErrEntryNotFound
		}
		return Entry{}, err
	}
	return entry, nil
}

func (r *txRepository) UpdateEntryFields(ctx context.Context, in UpdateInput) (Entry, error) {
	row := r.tx.QueryRow(ctx, `UPDATE journals SET
  amount = COALESCE($2, amount),
  fee_amount = COALESCE($3, fee_amount),
  description = COALESCE($4, description),
  updated_at = NOW()
WHERE id=$1 RETURNING `+entryColumns, in.ID, in.Amount, in.FeeAmount, in.Description)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, ErrEntryNotFound
		}
		return Entry{}, err
	}
	return entry, nil
}

func (r *txRepository) DeleteEntry(ctx context.Context, entryID int64) error {
	cmd, err := r.tx.Exec(ctx, `DELETE FROM journals WHERE id=$1`, entryID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func (r *txRepository) DeleteDependentsByInvoice(ctx context.Context, invoice string) (int64, error) {
	cmd, err := r.tx.Exec(ctx, `DELETE FROM transaction_details WHERE invoice=$1`, invoice)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *txRepository) AccountNames(ctx context.Context, ids []int64) (map[int64]string, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, name FROM chart_of_accounts WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	names := make(map[int64]string, len(ids))
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		names[id] = name
	}
	return names, rows.Err()
}

func (r *txRepository) RecordActivity(ctx context.Context, log shared.ActivityLog) error {
	return shared.RecordTx(ctx, r.tx, log)
}

// Get fetches one entry outside a transaction.
func (r *Repository) Get(ctx context.Context, entryID int64) (Entry, error) {
	entry, err := scanEntry(r.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM journals WHERE id=$1`, entryID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, ErrEntryNotFound
		}
		return Entry{}, err
	}
	return entry, nil
}

// GetByInvoice returns every entry sharing the invoice number, the
// grouping key for multi-leg postings.
func (r *Repository) GetByInvoice(ctx context.Context, invoice string) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+entryColumns+` FROM journals WHERE invoice=$1 ORDER BY id`, invoice)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEntries(rows)
}

// List returns entries matching the filter, newest accounting date first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+entryColumns+` FROM journals
WHERE date_issued BETWEEN $1 AND $2
  AND ($3 = 0 OR debit_account_id = $3 OR credit_account_id = $3)
  AND ($4 = 0 OR warehouse_id = $4)
  AND ($5 = '' OR trx_type = $5)
  AND ($6 = '' OR invoice ILIKE '%' || $6 || '%' OR description ILIKE '%' || $6 || '%' OR amount::text LIKE '%' || $6 || '%')
ORDER BY date_issued DESC, id DESC
LIMIT $7 OFFSET $8`,
		filter.Start, filter.End, filter.AccountID, filter.WarehouseID, filter.TrxType, filter.Search,
		filter.Page.PerPage, filter.Page.Offset())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEntries(rows)
}

// EntriesForAccount returns the entries touching one account in a date
// range in accounting order, the mutation-history primitive.
func (r *Repository) EntriesForAccount(ctx context.Context, accountID int64, start, end time.Time) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+entryColumns+` FROM journals
WHERE (debit_account_id = $1 OR credit_account_id = $1) AND date_issued BETWEEN $2 AND $3
ORDER BY date_issued, id`, accountID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEntries(rows)
}

// SetConfirmed flips the manual review flag. It never affects balances.
func (r *Repository) SetConfirmed(ctx context.Context, entryIDs []int64, confirmed bool) (int64, error) {
	cmd, err := r.pool.Exec(ctx, `UPDATE journals SET is_confirmed=$2, updated_at=NOW() WHERE id = ANY($1)`, entryIDs, confirmed)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

// SetStatus updates the delivery/workflow flag. It never affects balances.
func (r *Repository) SetStatus(ctx context.Context, entryID int64, status int) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE journals SET status=$2, updated_at=NOW() WHERE id=$1`, entryID, status)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func collectEntries(rows pgx.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
