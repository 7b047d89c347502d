package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/meridian-erp/meridian-erp/internal/jobs"
)

// OverdueMarker flips past-due invoices to OVERDUE. Implemented by the
// invoices service.
type OverdueMarker interface {
	MarkOverdue(ctx context.Context, asOf time.Time) (int64, error)
}

// QuotationExpirer expires quotations past their validity date.
// Implemented by the quotations service.
type QuotationExpirer interface {
	ExpireStale(ctx context.Context, asOf time.Time) (int64, error)
}

// InvoiceOverdueJob runs the scheduled overdue-invoice scan.
type InvoiceOverdueJob struct {
	invoices OverdueMarker
	logger   *slog.Logger
	metrics  *jobmetrics.Metrics
}

func NewInvoiceOverdueJob(invoices OverdueMarker, logger *slog.Logger, metrics *jobmetrics.Metrics) *InvoiceOverdueJob {
	return &InvoiceOverdueJob{invoices: invoices, logger: logger, metrics: metrics}
}

func (j *InvoiceOverdueJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track(TaskInvoiceOverdueScan)
	var payload ScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		_ = tracker.End(err)
		return asynq.SkipRetry
	}
	asOf := payload.AsOf
	if asOf.IsZero() {
		asOf = time.Now()
	}
	n, err := j.invoices.MarkOverdue(ctx, asOf)
	if err != nil {
		j.logger.Error("overdue scan", slog.Any("error", err))
		return tracker.End(err)
	}
	j.metrics.AddAffected(TaskInvoiceOverdueScan, n)
	j.logger.Info("overdue scan done", slog.Int64("marked", n))
	return tracker.End(nil)
}

// QuotationExpiryJob runs the scheduled quotation-expiry scan.
type QuotationExpiryJob struct {
	quotations QuotationExpirer
	logger     *slog.Logger
	metrics    *jobmetrics.Metrics
}

func NewQuotationExpiryJob(quotations QuotationExpirer, logger *slog.Logger, metrics *jobmetrics.Metrics) *QuotationExpiryJob {
	return &QuotationExpiryJob{quotations: quotations, logger: logger, metrics: metrics}
}

func (j *QuotationExpiryJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track(TaskQuotationExpiryScan)
	var payload ScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		_ = tracker.End(err)
		return asynq.SkipRetry
	}
	asOf := payload.AsOf
	if asOf.IsZero() {
		asOf = time.Now()
	}
	n, err := j.quotations.ExpireStale(ctx, asOf)
	if err != nil {
		j.logger.Error("quotation expiry scan", slog.Any("error", err))
		return tracker.End(err)
	}
	j.metrics.AddAffected(TaskQuotationExpiryScan, n)
	j.logger.Info("quotation expiry scan done", slog.Int64("expired", n))
	return tracker.End(nil)
}

// KeyCleaner prunes idempotency keys older than a retention window.
// Implemented by shared.IdempotencyStore.
type KeyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// IdempotencyCleanupJob prunes stale idempotency keys.
type IdempotencyCleanupJob struct {
	store   KeyCleaner
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

func NewIdempotencyCleanupJob(store KeyCleaner, logger *slog.Logger, metrics *jobmetrics.Metrics) *IdempotencyCleanupJob {
	return &IdempotencyCleanupJob{store: store, logger: logger, metrics: metrics}
}

func (j *IdempotencyCleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track(TaskIdempotencyCleanup)
	var payload CleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		_ = tracker.End(err)
		return asynq.SkipRetry
	}
	retention := time.Duration(payload.RetentionHours) * time.Hour
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	n, err := j.store.Cleanup(ctx, retention)
	if err != nil {
		j.logger.Error("idempotency cleanup", slog.Any("error", err))
		return tracker.End(err)
	}
	j.metrics.AddAffected(TaskIdempotencyCleanup, n)
	j.logger.Info("idempotency cleanup done", slog.Int64("removed", n))
	return tracker.End(nil)
}
