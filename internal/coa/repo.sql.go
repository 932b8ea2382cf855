package coa

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cashbook-erp/cashbook/internal/platform/db"
)

// Repository persists chart of accounts entities.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	GetCategoryForUpdate(ctx context.Context, categoryID int64) (Category, error)
	MaxCodeSuffix(ctx context.Context, categoryID int64) (int, error)
	InsertAccount(ctx context.Context, code string, in CreateAccountInput) (Account, error)
	GetAccountForUpdate(ctx context.Context, accountID int64) (Account, error)
	UpdateAccount(ctx context.Context, in UpdateAccountInput) (Account, error)
	DeleteAccount(ctx context.Context, accountID int64) error
	SetWarehouse(ctx context.Context, accountID int64, warehouseID *int64) (Account, error)
	JournalReferenceExists(ctx context.Context, accountID int64) (bool, error)
	LockedAccountIDs(ctx context.Context, ids []int64) ([]int64, error)
	DeleteAccounts(ctx context.Context, ids []int64) (int64, error)
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes fn within a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("coa repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const accountColumns = `id, code, name, category_id, warehouse_id, starting_balance, is_locked, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Code, &a.Name, &a.CategoryID, &a.WarehouseID, &a.StartingBalance, &a.IsLocked, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (r *txRepository) GetCategoryForUpdate(ctx context.Context, categoryID int64) (Category, error) {
	var c Category
	err := r.tx.QueryRow(ctx, `SELECT id, code, name, normal_side, created_at, updated_at
FROM account_categories WHERE id=$1 FOR UPDATE`, categoryID).
		Scan(&c.ID, &c.Code, &c.Name, &c.NormalSide, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Category{}, ErrCategoryNotFound
		}
		return Category{}, err
	}
	return c, nil
}

func (r *txRepository) MaxCodeSuffix(ctx context.Context, categoryID int64) (int, error) {
	var max *int
	err := r.tx.QueryRow(ctx, `SELECT MAX(RIGHT(code, 3)::int) FROM chart_of_accounts WHERE category_id=$1`, categoryID).Scan(&max)
	if err != nil {
		return 0, err
	}
	if max == nil {
		return 0, nil
	}
	return *max, nil
}

func (r *txRepository) InsertAccount(ctx context.Context, code string, in CreateAccountInput) (Account, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO chart_of_accounts (code, name, category_id, warehouse_id, starting_balance, is_locked)
VALUES ($1,$2,$3,$4,$5,false) RETURNING `+accountColumns, code, in.Name, in.CategoryID, in.WarehouseID, in.StartingBalance)
	account, err := scanAccount(row)
	if err != nil {
		if isUniqueViolation(err) {
			return Account{}, ErrNameTaken
		}
		return Account{}, err
	}
	return account, nil
}

func (r *txRepository) GetAccountForUpdate(ctx context.Context, accountID int64) (Account, error) {
	account, err := scanAccount(r.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM chart_of_accounts WHERE id=$1 FOR UPDATE`, accountID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	return account, nil
}

func (r *txRepository) UpdateAccount(ctx context.Context, in UpdateAccountInput) (Account, error) {
	row := r.tx.QueryRow(ctx, `UPDATE chart_of_accounts SET name=$2, starting_balance=$3, updated_at=NOW()
WHERE id=$1 RETURNING `+accountColumns, in.ID, in.Name, in.StartingBalance)
	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		if isUniqueViolation(err) {
			return Account{}, ErrNameTaken
		}
		return Account{}, err
	}
	return account, nil
}

func (r *txRepository) DeleteAccount(ctx context.Context, accountID int64) error {
	cmd, err := r.tx.Exec(ctx, `DELETE FROM chart_of_accounts WHERE id=$1`, accountID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *txRepository) SetWarehouse(ctx context.Context, accountID int64, warehouseID *int64) (Account, error) {
	row := r.tx.QueryRow(ctx, `UPDATE chart_of_accounts SET warehouse_id=$2, updated_at=NOW()
WHERE id=$1 RETURNING `+accountColumns, accountID, warehouseID)
	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	return account, nil
}

func (r *txRepository) JournalReferenceExists(ctx context.Context, accountID int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM journals WHERE debit_account_id=$1 OR credit_account_id=$1)`, accountID).Scan(&exists)
	return exists, err
}

func (r *txRepository) LockedAccountIDs(ctx context.Context, ids []int64) ([]int64, error) {
	rows, err := r.tx.Query(ctx, `SELECT id FROM chart_of_accounts WHERE id = ANY($1) AND is_locked`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var locked []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		locked = append(locked, id)
	}
	return locked, rows.Err()
}

func (r *txRepository) DeleteAccounts(ctx context.Context, ids []int64) (int64, error) {
	cmd, err := r.tx.Exec(ctx, `DELETE FROM chart_of_accounts WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

// GetAccount fetches one account outside a transaction.
func (r *Repository) GetAccount(ctx context.Context, accountID int64) (Account, error) {
	account, err := scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM chart_of_accounts WHERE id=$1`, accountID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	return account, nil
}

// GetCategory fetches one category.
func (r *Repository) GetCategory(ctx context.Context, categoryID int64) (Category, error) {
	var c Category
	err := r.pool.QueryRow(ctx, `SELECT id, code, name, normal_side, created_at, updated_at FROM account_categories WHERE id=$1`, categoryID).
		Scan(&c.ID, &c.Code, &c.Name, &c.NormalSide, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Category{}, ErrCategoryNotFound
		}
		return Category{}, err
	}
	return c, nil
}

// ListCategories returns every account category ordered by code.
func (r *Repository) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, code, name, normal_side, created_at, updated_at FROM account_categories ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var categories []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Code, &c.Name, &c.NormalSide, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// ListAccounts returns accounts matching the filter ordered by code.
func (r *Repository) ListAccounts(ctx context.Context, filter ListFilter) ([]Account, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+accountColumns+` FROM chart_of_accounts
WHERE ($1 = '' OR name ILIKE '%' || $1 || '%' OR code ILIKE '%' || $1 || '%')
  AND (cardinality($2::bigint[]) = 0 OR category_id = ANY($2))
  AND ($3::bigint IS NULL OR warehouse_id = $3)
ORDER BY code
LIMIT $4 OFFSET $5`,
		filter.Search, filter.CategoryIDs, filter.WarehouseID, filter.Page.PerPage, filter.Page.Offset())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAccounts(rows)
}

// AccountsByCategories returns every account whose category is in ids,
// optionally restricted to one warehouse ("all" callers pass nil).
func (r *Repository) AccountsByCategories(ctx context.Context, categoryIDs []int64, warehouseID *int64) ([]Account, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+accountColumns+` FROM chart_of_accounts
WHERE (cardinality($1::bigint[]) = 0 OR category_id = ANY($1))
  AND ($2::bigint IS NULL OR warehouse_id = $2)
ORDER BY code`, categoryIDs, warehouseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAccounts(rows)
}

// AllAccounts returns the whole chart ordered by code.
func (r *Repository) AllAccounts(ctx context.Context) ([]Account, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+accountColumns+` FROM chart_of_accounts ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAccounts(rows)
}

func collectAccounts(rows pgx.Rows) ([]Account, error) {
	var accounts []Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
