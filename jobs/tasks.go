package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSnapshotRebuild materializes daily balance snapshots.
	TaskSnapshotRebuild = "snapshot:rebuild"
	// TaskLedgerIntegrity cross-checks snapshots against a journal replay.
	TaskLedgerIntegrity = "ledger:integrity"
)

// SnapshotRebuildPayload names the day range to materialize. A zero Start
// means "yesterday only"; End is clamped to the last closed day.
type SnapshotRebuildPayload struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewSnapshotRebuildTask constructs an Asynq task for snapshot rebuilds.
func NewSnapshotRebuildTask(payload SnapshotRebuildPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSnapshotRebuild, body, asynq.Queue(QueueDefault)), nil
}

// LedgerIntegrityPayload carries scheduling metadata for integrity scans.
type LedgerIntegrityPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewLedgerIntegrityTask constructs an Asynq task for the integrity scan.
func NewLedgerIntegrityTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(LedgerIntegrityPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrity, body, asynq.Queue(QueueDefault)), nil
}
