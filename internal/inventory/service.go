package inventory

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Repository persists stock rows and ledger transactions. Apply methods
// run in a single database transaction: every line is checked before
// any line is mutated, and each line writes exactly one ledger row.
type Repository interface {
	GetStock(ctx context.Context, productID, locationID int64) (Stock, error)
	ListStock(ctx context.Context, locationID int64, page, limit int) ([]Stock, int, error)
	ListLowStock(ctx context.Context) ([]Stock, error)
	ListTransactions(ctx context.Context, productID int64, limit int) ([]Transaction, error)

	ApplyReceipt(ctx context.Context, locationID int64, lines []ReceiptLine, txType TransactionType, ref Reference, performedBy int64) ([]Transaction, error)
	ApplyDeduction(ctx context.Context, locationID int64, lines []DeductionLine, txType TransactionType, ref Reference, performedBy int64) ([]Transaction, error)
	ApplyAdjustment(ctx context.Context, productID, locationID int64, delta float64, txType TransactionType, ref Reference, performedBy int64) (Transaction, error)
}

type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (s *Service) Stock(ctx context.Context, productID, locationID int64) (Stock, error) {
	return s.repo.GetStock(ctx, productID, locationID)
}

func (s *Service) ListStock(ctx context.Context, locationID int64, page, limit int) ([]Stock, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	return s.repo.ListStock(ctx, locationID, page, limit)
}

// LowStock lists stocks at or below their reorder level.
func (s *Service) LowStock(ctx context.Context) ([]Stock, error) {
	return s.repo.ListLowStock(ctx)
}

func (s *Service) History(ctx context.Context, productID int64, limit int) ([]Transaction, error) {
	if productID <= 0 {
		return nil, fmt.Errorf("%w: invalid product ID", shared.ErrValidation)
	}
	if limit < 1 || limit > 500 {
		limit = 100
	}
	return s.repo.ListTransactions(ctx, productID, limit)
}

// Receive books inbound stock against a reference document. The
// transaction type distinguishes GRN receipts from manual stock-in.
func (s *Service) Receive(ctx context.Context, locationID int64, lines []ReceiptLine, txType TransactionType, ref Reference, performedBy int64) ([]Transaction, error) {
	if err := validateReceiptLines(locationID, lines); err != nil {
		return nil, err
	}
	if !txType.Inbound() {
		return nil, fmt.Errorf("%w: %q is not an inbound type", shared.ErrValidation, txType)
	}
	txs, err := s.repo.ApplyReceipt(ctx, locationID, lines, txType, ref, performedBy)
	if err != nil {
		return nil, err
	}
	s.logger.Info("stock received",
		slog.Int64("location_id", locationID),
		slog.Int("lines", len(lines)),
		slog.String("reference", ref.Number))
	return txs, nil
}

// Deduct books outbound stock. Availability of every line is verified
// before any quantity changes; a single short line fails the whole call.
func (s *Service) Deduct(ctx context.Context, locationID int64, lines []DeductionLine, ref Reference, performedBy int64) ([]Transaction, error) {
	if err := validateDeductionLines(locationID, lines); err != nil {
		return nil, err
	}
	txs, err := s.repo.ApplyDeduction(ctx, locationID, lines, TransactionSale, ref, performedBy)
	if err != nil {
		return nil, err
	}
	s.logger.Info("stock deducted",
		slog.Int64("location_id", locationID),
		slog.Int("lines", len(lines)),
		slog.String("reference", ref.Number))
	return txs, nil
}

// Adjust applies a signed correction. Write-off types (damage, loss,
// expiry) are recorded under their own transaction type.
func (s *Service) Adjust(ctx context.Context, productID, locationID int64, delta float64, txType TransactionType, reason string, performedBy int64) (Transaction, error) {
	if productID <= 0 || locationID <= 0 {
		return Transaction{}, fmt.Errorf("%w: invalid product or location", shared.ErrValidation)
	}
	if delta == 0 {
		return Transaction{}, fmt.Errorf("%w: adjustment delta must be non-zero", shared.ErrValidation)
	}
	switch txType {
	case TransactionAdjustment, TransactionDamage, TransactionLoss, TransactionExpiry:
	default:
		return Transaction{}, fmt.Errorf("%w: %q is not an adjustment type", shared.ErrValidation, txType)
	}
	tx, err := s.repo.ApplyAdjustment(ctx, productID, locationID, delta, txType, Reference{Type: "adjustment", Number: reason}, performedBy)
	if err != nil {
		return Transaction{}, err
	}
	s.logger.Info("stock adjusted",
		slog.Int64("product_id", productID),
		slog.Int64("location_id", locationID),
		slog.Float64("delta", delta),
		slog.String("type", string(txType)))
	return tx, nil
}

// Transfer moves quantity between locations as two ledger legs. If the
// destination leg fails after the source was deducted, a compensating
// receipt restores the source before the error is returned.
func (s *Service) Transfer(ctx context.Context, productID, fromLocationID, toLocationID int64, quantity float64, performedBy int64) error {
	if productID <= 0 || fromLocationID <= 0 || toLocationID <= 0 {
		return fmt.Errorf("%w: invalid product or location", shared.ErrValidation)
	}
	if fromLocationID == toLocationID {
		return fmt.Errorf("%w: source and destination locations are the same", shared.ErrValidation)
	}
	if quantity <= 0 {
		return fmt.Errorf("%w: transfer quantity must be positive", shared.ErrValidation)
	}

	ref := Reference{Type: "transfer"}
	lines := []DeductionLine{{ProductID: productID, Quantity: quantity}}
	if _, err := s.repo.ApplyDeduction(ctx, fromLocationID, lines, TransactionTransfer, ref, performedBy); err != nil {
		return err
	}

	receipt := []ReceiptLine{{ProductID: productID, Quantity: quantity}}
	if _, err := s.repo.ApplyReceipt(ctx, toLocationID, receipt, TransactionTransfer, ref, performedBy); err != nil {
		if _, restoreErr := s.repo.ApplyReceipt(ctx, fromLocationID, receipt, TransactionTransfer, ref, performedBy); restoreErr != nil {
			s.logger.Error("transfer compensation failed",
				slog.Int64("product_id", productID),
				slog.Int64("location_id", fromLocationID),
				slog.Any("error", restoreErr))
			return fmt.Errorf("transfer failed and source not restored: %w", err)
		}
		return fmt.Errorf("transfer destination update: %w", err)
	}

	s.logger.Info("stock transferred",
		slog.Int64("product_id", productID),
		slog.Int64("from", fromLocationID),
		slog.Int64("to", toLocationID),
		slog.Float64("quantity", quantity))
	return nil
}

func validateReceiptLines(locationID int64, lines []ReceiptLine) error {
	if locationID <= 0 {
		return fmt.Errorf("%w: invalid location", shared.ErrValidation)
	}
	if len(lines) == 0 {
		return fmt.Errorf("%w: receipt requires at least one line", shared.ErrValidation)
	}
	for _, line := range lines {
		if line.ProductID <= 0 {
			return fmt.Errorf("%w: invalid product ID", shared.ErrValidation)
		}
		if line.Quantity <= 0 {
			return fmt.Errorf("%w: quantity must be positive", shared.ErrValidation)
		}
	}
	return nil
}

func validateDeductionLines(locationID int64, lines []DeductionLine) error {
	if locationID <= 0 {
		return fmt.Errorf("%w: invalid location", shared.ErrValidation)
	}
	if len(lines) == 0 {
		return fmt.Errorf("%w: deduction requires at least one line", shared.ErrValidation)
	}
	for _, line := range lines {
		if line.ProductID <= 0 {
			return fmt.Errorf("%w: invalid product ID", shared.ErrValidation)
		}
		if line.Quantity <= 0 {
			return fmt.Errorf("%w: quantity must be positive", shared.ErrValidation)
		}
	}
	return nil
}
