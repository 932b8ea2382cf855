package correction

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists correction rows.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const correctionColumns = `id, ref, journal_id, wrapper_journal_id, amount, note, image_url, warehouse_id, user_id, created_at, updated_at`

func scanCorrection(row pgx.Row) (Correction, error) {
	var c Correction
	err := row.Scan(&c.ID, &c.Ref, &c.EntryID, &c.WrapperID, &c.Amount, &c.Note, &c.ImageURL,
		&c.WarehouseID, &c.UserID, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Correction{}, ErrCorrectionNotFound
	}
	return c, err
}

// Insert stores a correction row.
func (r *Repository) Insert(ctx context.Context, ref uuid.UUID, in CreateInput, wrapperID int64) (Correction, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO corrections
(ref, journal_id, wrapper_journal_id, amount, note, image_url, warehouse_id, user_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
RETURNING `+correctionColumns,
		ref, in.EntryID, wrapperID, in.Amount, in.Note, in.ImageURL, in.WarehouseID, in.UserID)
	return scanCorrection(row)
}

// Get fetches one correction by id.
func (r *Repository) Get(ctx context.Context, id int64) (Correction, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+correctionColumns+` FROM corrections WHERE id = $1`, id)
	return scanCorrection(row)
}

// GetByRef fetches one correction by its public reference.
func (r *Repository) GetByRef(ctx context.Context, ref uuid.UUID) (Correction, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+correctionColumns+` FROM corrections WHERE ref = $1`, ref)
	return scanCorrection(row)
}

// Delete removes one correction row.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM corrections WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCorrectionNotFound
	}
	return nil
}

// List returns corrections matching the filter, newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Correction, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+correctionColumns+` FROM corrections
WHERE ($1::timestamptz IS NULL OR created_at >= $1)
  AND ($2::timestamptz IS NULL OR created_at <= $2)
  AND ($3 = 0 OR warehouse_id = $3)
ORDER BY created_at DESC
LIMIT $4 OFFSET $5`,
		nullableTime(filter.Start), nullableTime(filter.End), filter.WarehouseID,
		filter.Page.PerPage, filter.Page.Offset())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Correction
	for rows.Next() {
		c, err := scanCorrection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
