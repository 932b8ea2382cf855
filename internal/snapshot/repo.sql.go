package snapshot

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository persists daily balance rows in account_balances. The
// (account_id, balance_date) pair is unique; writes are upserts so a
// rebuild of an already materialized day converges instead of failing.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Ending reads one materialized ending balance. The second return is
// false when the (account, day) pair has not been materialized.
func (r *Repository) Ending(ctx context.Context, accountID int64, date time.Time) (decimal.Decimal, bool, error) {
	var ending decimal.Decimal
	err := r.pool.QueryRow(ctx,
		`SELECT ending_balance FROM account_balances WHERE account_id = $1 AND balance_date = $2`,
		accountID, date).Scan(&ending)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Decimal{}, false, nil
	}
	if err != nil {
		return decimal.Decimal{}, false, err
	}
	return ending, true, nil
}

// EndingBulk reads materialized balances for a set of accounts on one
// day. Absent pairs are simply missing from the map.
func (r *Repository) EndingBulk(ctx context.Context, accountIDs []int64, date time.Time) (map[int64]decimal.Decimal, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT account_id, ending_balance FROM account_balances WHERE account_id = ANY($1) AND balance_date = $2`,
		accountIDs, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]decimal.Decimal)
	for rows.Next() {
		var id int64
		var ending decimal.Decimal
		if err := rows.Scan(&id, &ending); err != nil {
			return nil, err
		}
		out[id] = ending
	}
	return out, rows.Err()
}

// UpsertBulk writes one day of ending balances in a single batch.
func (r *Repository) UpsertBulk(ctx context.Context, date time.Time, endings map[int64]decimal.Decimal) error {
	if len(endings) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for accountID, ending := range endings {
		batch.Queue(`INSERT INTO account_balances (account_id, balance_date, ending_balance, created_at, updated_at)
VALUES ($1, $2, $3, now(), now())
ON CONFLICT (account_id, balance_date)
DO UPDATE SET ending_balance = EXCLUDED.ending_balance, updated_at = now()`,
			accountID, date, ending)
	}
	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range endings {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return results.Close()
}
