package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ActivityLog records a ledger mutation: who changed what, with the
// old and new values for every touched numeric field.
type ActivityLog struct {
	ID          int64
	ActorID     int64
	WarehouseID int64
	Action      string
	Entity      string
	EntityID    string
	Description string
	Meta        map[string]any
	At          time.Time
}

// ActivityRecorder is implemented by the activity logger and by the
// transactional variant used inside ledger mutations.
type ActivityRecorder interface {
	Record(ctx context.Context, log ActivityLog) error
}

// ActivityLogger writes records into activity_logs.
type ActivityLogger struct {
	pool *pgxpool.Pool
}

// NewActivityLogger returns a new ActivityLogger.
func NewActivityLogger(pool *pgxpool.Pool) *ActivityLogger {
	return &ActivityLogger{pool: pool}
}

const insertActivitySQL = `INSERT INTO activity_logs (actor_id, warehouse_id, action, entity, entity_id, description, meta, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, NOW()))`

// Record persists the log entry.
func (l *ActivityLogger) Record(ctx context.Context, log ActivityLog) error {
	if l == nil {
		return errors.New("activity logger not initialised")
	}
	if log.Action == "" || log.Entity == "" || log.EntityID == "" {
		return errors.New("activity log requires action/entity/entity_id")
	}
	metaJSON, err := json.Marshal(log.Meta)
	if err != nil {
		return err
	}
	_, err = l.pool.Exec(ctx, insertActivitySQL,
		log.ActorID, log.WarehouseID, log.Action, log.Entity, log.EntityID, log.Description, metaJSON, log.At)
	return err
}

// RecordTx persists the log entry inside an existing transaction so the
// activity record commits or rolls back with the mutation it describes.
func RecordTx(ctx context.Context, tx pgx.Tx, log ActivityLog) error {
	if log.Action == "" || log.Entity == "" || log.EntityID == "" {
		return errors.New("activity log requires action/entity/entity_id")
	}
	metaJSON, err := json.Marshal(log.Meta)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, insertActivitySQL,
		log.ActorID, log.WarehouseID, log.Action, log.Entity, log.EntityID, log.Description, metaJSON, log.At)
	return err
}

// ListActivity returns activity records in a date range, newest first,
// optionally restricted to one warehouse.
func (l *ActivityLogger) ListActivity(ctx context.Context, start, end time.Time, warehouseID int64, page Pagination) ([]ActivityLog, error) {
	rows, err := l.pool.Query(ctx, `SELECT id, actor_id, warehouse_id, action, entity, entity_id, description, meta, occurred_at
FROM activity_logs
WHERE occurred_at BETWEEN $1 AND $2 AND ($3 = 0 OR warehouse_id = $3)
ORDER BY occurred_at DESC
LIMIT $4 OFFSET $5`, start, end, warehouseID, page.PerPage, page.Offset())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var logs []ActivityLog
	for rows.Next() {
		var log ActivityLog
		var metaJSON []byte
		if err := rows.Scan(&log.ID, &log.ActorID, &log.WarehouseID, &log.Action, &log.Entity, &log.EntityID, &log.Description, &metaJSON, &log.At); err != nil {
			return nil, err
		}
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &log.Meta); err != nil {
				return nil, err
			}
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}
