package jobs

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

type fakeMarker struct {
	asOf    time.Time
	changed int64
	err     error
}

func (f *fakeMarker) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	f.asOf = asOf
	return f.changed, f.err
}

func TestOverdueScanHandler(t *testing.T) {
	marker := &fakeMarker{changed: 3}
	handler := NewOverdueScanHandler(slog.Default(), marker)

	cutoff := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	task, err := NewOverdueScanTask(OverdueScanPayload{AsOf: cutoff})
	require.NoError(t, err)

	require.NoError(t, handler(context.Background(), task))
	require.Equal(t, cutoff, marker.asOf)
}

func TestOverdueScanHandlerZeroCutoffDefaultsToNow(t *testing.T) {
	marker := &fakeMarker{}
	handler := NewOverdueScanHandler(slog.Default(), marker)

	task, err := NewOverdueScanTask(OverdueScanPayload{})
	require.NoError(t, err)

	before := time.Now()
	require.NoError(t, handler(context.Background(), task))
	require.False(t, marker.asOf.Before(before))
}

func TestOverdueScanHandlerSkipsBadPayload(t *testing.T) {
	handler := NewOverdueScanHandler(slog.Default(), &fakeMarker{})

	err := handler(context.Background(), asynq.NewTask(TaskTypeOverdueScan, []byte("{not json")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestOverdueScanHandlerPropagatesError(t *testing.T) {
	marker := &fakeMarker{err: errors.New("db down")}
	handler := NewOverdueScanHandler(slog.Default(), marker)

	task, err := NewOverdueScanTask(OverdueScanPayload{})
	require.NoError(t, err)
	require.Error(t, handler(context.Background(), task))
}
