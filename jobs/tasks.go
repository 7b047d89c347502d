package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskInvoiceOverdueScan flips past-due invoices to OVERDUE.
	TaskInvoiceOverdueScan = "invoices:overdue-scan"
	// TaskQuotationExpiryScan expires quotations past their validity date.
	TaskQuotationExpiryScan = "quotations:expiry-scan"
	// TaskIdempotencyCleanup prunes expired idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// ScanPayload carries the cutoff for a document scan.
type ScanPayload struct {
	AsOf time.Time `json:"as_of"`
}

// NewInvoiceOverdueScanTask constructs an overdue-invoice scan task.
func NewInvoiceOverdueScanTask(asOf time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(ScanPayload{AsOf: asOf})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInvoiceOverdueScan, body, asynq.Queue(QueueDefault)), nil
}

// NewQuotationExpiryScanTask constructs a quotation-expiry scan task.
func NewQuotationExpiryScanTask(asOf time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(ScanPayload{AsOf: asOf})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskQuotationExpiryScan, body, asynq.Queue(QueueDefault)), nil
}

// CleanupPayload carries the retention window for key pruning.
type CleanupPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewIdempotencyCleanupTask constructs a cleanup task.
func NewIdempotencyCleanupTask(retention time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(CleanupPayload{RetentionHours: int(retention.Hours())})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault)), nil
}
