package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

type fakeMarker struct {
	asOf   time.Time
	marked int64
	err    error
}

func (f *fakeMarker) MarkOverdue(_ context.Context, asOf time.Time) (int64, error) {
	f.asOf = asOf
	return f.marked, f.err
}

type fakeExpirer struct {
	expired int64
}

func (f *fakeExpirer) ExpireStale(_ context.Context, _ time.Time) (int64, error) {
	return f.expired, nil
}

type fakeCleaner struct {
	olderThan time.Duration
	removed   int64
}

func (f *fakeCleaner) Cleanup(_ context.Context, olderThan time.Duration) (int64, error) {
	f.olderThan = olderThan
	return f.removed, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestInvoiceOverdueJobUsesPayloadCutoff(t *testing.T) {
	marker := &fakeMarker{marked: 3}
	job := NewInvoiceOverdueJob(marker, testLogger(), nil)

	asOf := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	task, err := NewInvoiceOverdueScanTask(asOf)
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, asOf, marker.asOf)
}

func TestInvoiceOverdueJobPropagatesError(t *testing.T) {
	marker := &fakeMarker{err: errors.New("db down")}
	job := NewInvoiceOverdueJob(marker, testLogger(), nil)

	task, err := NewInvoiceOverdueScanTask(time.Now())
	require.NoError(t, err)
	require.Error(t, job.Handle(context.Background(), task))
}

func TestInvoiceOverdueJobSkipsRetryOnBadPayload(t *testing.T) {
	job := NewInvoiceOverdueJob(&fakeMarker{}, testLogger(), nil)

	task := asynq.NewTask(TaskInvoiceOverdueScan, []byte("{not json"))
	err := job.Handle(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestQuotationExpiryJob(t *testing.T) {
	job := NewQuotationExpiryJob(&fakeExpirer{expired: 2}, testLogger(), nil)

	task, err := NewQuotationExpiryScanTask(time.Now())
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
}

func TestIdempotencyCleanupJobDefaultsRetention(t *testing.T) {
	cleaner := &fakeCleaner{removed: 5}
	job := NewIdempotencyCleanupJob(cleaner, testLogger(), nil)

	body, err := json.Marshal(CleanupPayload{})
	require.NoError(t, err)
	task := asynq.NewTask(TaskIdempotencyCleanup, body)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 24*time.Hour, cleaner.olderThan)
}

func TestIdempotencyCleanupJobHonorsRetention(t *testing.T) {
	cleaner := &fakeCleaner{}
	job := NewIdempotencyCleanupJob(cleaner, testLogger(), nil)

	task, err := NewIdempotencyCleanupTask(72 * time.Hour)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 72*time.Hour, cleaner.olderThan)
}
