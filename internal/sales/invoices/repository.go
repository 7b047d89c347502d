package invoices

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

type Repository interface {
	Get(ctx context.Context, id int64) (*Invoice, error)
	List(ctx context.Context, filter ListFilter) ([]Invoice, int, error)
	Create(ctx context.Context, inv Invoice) (int64, error)
	Delete(ctx context.Context, id int64) error
	LinkQuotation(ctx context.Context, id, quotationID int64) error
	UpdateStatus(ctx context.Context, id int64, status Status) error
	UpdateApprovalStatus(ctx context.Context, id int64, status ApprovalStatus) error
	UpdateBalances(ctx context.Context, id int64, paid, balance float64, status Status) error
	MarkOverdue(ctx context.Context, asOf time.Time) (int64, error)

	GetPayment(ctx context.Context, id int64) (*Payment, error)
	ListPayments(ctx context.Context, invoiceID int64) ([]Payment, error)
	CreatePayment(ctx context.Context, p Payment) (int64, error)
	UpdatePayment(ctx context.Context, id int64, p Payment) error
	DeletePayment(ctx context.Context, id int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const invoiceCols = `id, number, customer_id, quotation_id, location_id, status, approval_status,
	invoice_date, due_date, subtotal, discount_percent, discount_amount, tax_amount, total,
	paid_amount, balance_amount, tax_ids, notes, created_by, created_at, updated_at`

func scanInvoice(row pgx.Row, inv *Invoice) error {
	return row.Scan(&inv.ID, &inv.Number, &inv.CustomerID, &inv.QuotationID, &inv.LocationID,
		&inv.Status, &inv.ApprovalStatus, &inv.InvoiceDate, &inv.DueDate, &inv.Subtotal,
		&inv.DiscountPercent, &inv.DiscountAmount, &inv.TaxAmount, &inv.Total,
		&inv.PaidAmount, &inv.BalanceAmount, &inv.TaxIDs, &inv.Notes,
		&inv.CreatedBy, &inv.CreatedAt, &inv.UpdatedAt)
}

func (r *repository) Get(ctx context.Context, id int64) (*Invoice, error) {
	var inv Invoice
	err := scanInvoice(r.pool.QueryRow(ctx, `SELECT `+invoiceCols+` FROM invoices WHERE id = $1`, id), &inv)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, invoice_id, product_id, description, quantity, unit_price, discount_percent, line_total
		FROM invoice_items WHERE invoice_id = $1 ORDER BY id ASC
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.InvoiceID, &item.ProductID, &item.Description,
			&item.Quantity, &item.UnitPrice, &item.DiscountPercent, &item.LineTotal); err != nil {
			return nil, err
		}
		inv.Items = append(inv.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]Invoice, int, error) {
	query := `SELECT ` + invoiceCols + ` FROM invoices WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM invoices WHERE 1=1`
	args := []interface{}{}

	if filter.CustomerID > 0 {
		args = append(args, filter.CustomerID)
		cond := fmt.Sprintf(` AND customer_id = $%d`, len(args))
		query += cond
		countQuery += cond
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		cond := fmt.Sprintf(` AND status = $%d`, len(args))
		query += cond
		countQuery += cond
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY id DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, (filter.Page-1)*filter.Limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Invoice
	for rows.Next() {
		var inv Invoice
		if err := scanInvoice(rows, &inv); err != nil {
			return nil, 0, err
		}
		out = append(out, inv)
	}
	return out, total, rows.Err()
}

func (r *repository) Create(ctx context.Context, inv Invoice) (int64, error) {
	var id int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO invoices (number, customer_id, quotation_id, location_id, status, approval_status,
				invoice_date, due_date, subtotal, discount_percent, discount_amount, tax_amount, total,
				paid_amount, balance_amount, tax_ids, notes, created_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
			RETURNING id
		`, inv.Number, inv.CustomerID, inv.QuotationID, inv.LocationID, inv.Status, inv.ApprovalStatus,
			inv.InvoiceDate, inv.DueDate, inv.Subtotal, inv.DiscountPercent, inv.DiscountAmount,
			inv.TaxAmount, inv.Total, inv.PaidAmount, inv.BalanceAmount, inv.TaxIDs, inv.Notes, inv.CreatedBy).Scan(&id)
		if err != nil {
			return err
		}
		for _, item := range inv.Items {
			if _, err := tx.Exec(ctx, `
				INSERT INTO invoice_items (invoice_id, product_id, description, quantity, unit_price, discount_percent, line_total)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			`, id, item.ProductID, item.Description, item.Quantity, item.UnitPrice, item.DiscountPercent, item.LineTotal); err != nil {
				return err
			}
		}
		return nil
	})
	return id, err
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM invoice_items WHERE invoice_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM invoices WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

func (r *repository) LinkQuotation(ctx context.Context, id, quotationID int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE invoices SET quotation_id = $1, updated_at = NOW() WHERE id = $2`, quotationID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) UpdateStatus(ctx context.Context, id int64, status Status) error {
	tag, err := r.pool.Exec(ctx, `UPDATE invoices SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// UpdateApprovalStatus resolves a pending approval exactly once.
func (r *repository) UpdateApprovalStatus(ctx context.Context, id int64, status ApprovalStatus) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE invoices SET approval_status = $1, updated_at = NOW()
		WHERE id = $2 AND approval_status = 'PENDING'
	`, status, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrInvalidState
	}
	return nil
}

func (r *repository) UpdateBalances(ctx context.Context, id int64, paid, balance float64, status Status) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE invoices SET paid_amount = $1, balance_amount = $2, status = $3, updated_at = NOW()
		WHERE id = $4
	`, paid, balance, status, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE invoices SET status = 'OVERDUE', updated_at = NOW()
		WHERE status IN ('SENT', 'PARTIAL') AND due_date < $1 AND balance_amount > 0
	`, asOf)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const paymentCols = `id, number, invoice_id, amount, method, status, paid_at, notes, created_at`

func (r *repository) GetPayment(ctx context.Context, id int64) (*Payment, error) {
	var p Payment
	err := r.pool.QueryRow(ctx, `SELECT `+paymentCols+` FROM payments WHERE id = $1`, id).Scan(
		&p.ID, &p.Number, &p.InvoiceID, &p.Amount, &p.Method, &p.Status, &p.PaidAt, &p.Notes, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *repository) ListPayments(ctx context.Context, invoiceID int64) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+paymentCols+` FROM payments WHERE invoice_id = $1 ORDER BY id ASC`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.Number, &p.InvoiceID, &p.Amount, &p.Method, &p.Status, &p.PaidAt, &p.Notes, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *repository) CreatePayment(ctx context.Context, p Payment) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO payments (number, invoice_id, amount, method, status, paid_at, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, p.Number, p.InvoiceID, p.Amount, p.Method, p.Status, p.PaidAt, p.Notes).Scan(&id)
	return id, err
}

func (r *repository) UpdatePayment(ctx context.Context, id int64, p Payment) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE payments SET amount = $1, method = $2, status = $3, notes = $4 WHERE id = $5
	`, p.Amount, p.Method, p.Status, p.Notes, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) DeletePayment(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM payments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
