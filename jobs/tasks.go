package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeOverdueScan flips past-due pending installments to overdue.
	TaskTypeOverdueScan = "ar:overdue_scan"
)

// OverdueScanPayload carries the cutoff date for an overdue scan. A zero
// AsOf means "now".
type OverdueScanPayload struct {
	AsOf time.Time `json:"as_of"`
}

// NewOverdueScanTask constructs an Asynq task.
func NewOverdueScanTask(payload OverdueScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeOverdueScan, data), nil
}

// OverdueMarker is the receivables slice the scan drives.
type OverdueMarker interface {
	MarkOverdue(ctx context.Context, asOf time.Time) (int64, error)
}

// NewOverdueScanHandler returns the handler for TaskTypeOverdueScan tasks.
func NewOverdueScanHandler(logger *slog.Logger, marker OverdueMarker) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload OverdueScanPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		asOf := payload.AsOf
		if asOf.IsZero() {
			asOf = time.Now()
		}
		changed, err := marker.MarkOverdue(ctx, asOf)
		if err != nil {
			logger.Error("overdue scan", slog.Any("error", err))
			return err
		}
		logger.Info("overdue scan complete", slog.Int64("installments", changed), slog.Time("as_of", asOf))
		return nil
	}
}
