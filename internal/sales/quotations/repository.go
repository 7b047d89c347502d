package quotations

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
	Get(ctx context.Context, id int64) (*Quotation, error)
	List(ctx context.Context, filter ListFilter) ([]Quotation, int, error)
	Create(ctx context.Context, q Quotation) (int64, error)
	Update(ctx context.Context, id int64, q Quotation) error
	UpdateStatus(ctx context.Context, id int64, status Status) error
	MarkConverted(ctx context.Context, id, invoiceID int64) error
	ExpireStale(ctx context.Context, asOf time.Time) (int64, error)
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const quotationCols = `id, number, customer_id, status, quote_date, valid_until,
	subtotal, discount_percent, discount_amount, tax_amount, total, tax_ids, notes,
	converted_to_invoice, invoice_id, created_by, created_at, updated_at`

func (r *repository) Get(ctx context.Context, id int64) (*Quotation, error) {
	var q Quotation
	err := r.pool.QueryRow(ctx, `SELECT `+quotationCols+` FROM quotations WHERE id = $1`, id).Scan(
		&q.ID, &q.Number, &q.CustomerID, &q.Status, &q.QuoteDate, &q.ValidUntil,
		&q.Subtotal, &q.DiscountPercent, &q.DiscountAmount, &q.TaxAmount, &q.Total, &q.TaxIDs, &q.Notes,
		&q.ConvertedToInvoice, &q.InvoiceID, &q.CreatedBy, &q.CreatedAt, &q.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, quotation_id, product_id, description, quantity, unit_price, discount_percent, line_total
		FROM quotation_items WHERE quotation_id = $1 ORDER BY id ASC
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.QuotationID, &item.ProductID, &item.Description,
			&item.Quantity, &item.UnitPrice, &item.DiscountPercent, &item.LineTotal); err != nil {
			return nil, err
		}
		q.Items = append(q.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]Quotation, int, error) {
	query := `SELECT ` + quotationCols + ` FROM quotations WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM quotations WHERE 1=1`
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

	var out []Quotation
	for rows.Next() {
		var q Quotation
		if err := rows.Scan(&q.ID, &q.Number, &q.CustomerID, &q.Status, &q.QuoteDate, &q.ValidUntil,
			&q.Subtotal, &q.DiscountPercent, &q.DiscountAmount, &q.TaxAmount, &q.Total, &q.TaxIDs, &q.Notes,
			&q.ConvertedToInvoice, &q.InvoiceID, &q.CreatedBy, &q.CreatedAt, &q.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, q)
	}
	return out, total, rows.Err()
}

// Create writes the header and items in one transaction.
func (r *repository) Create(ctx context.Context, q Quotation) (int64, error) {
	var id int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO quotations (number, customer_id, status, quote_date, valid_until,
				subtotal, discount_percent, discount_amount, tax_amount, total, tax_ids, notes, created_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			RETURNING id
		`, q.Number, q.CustomerID, q.Status, q.QuoteDate, q.ValidUntil,
			q.Subtotal, q.DiscountPercent, q.DiscountAmount, q.TaxAmount, q.Total, q.TaxIDs, q.Notes, q.CreatedBy).Scan(&id)
		if err != nil {
			return err
		}
		return insertItems(ctx, tx, id, q.Items)
	})
	return id, err
}

func (r *repository) Update(ctx context.Context, id int64, q Quotation) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE quotations SET quote_date = $1, valid_until = $2, subtotal = $3,
				discount_percent = $4, discount_amount = $5, tax_amount = $6, total = $7,
				tax_ids = $8, notes = $9, updated_at = NOW()
			WHERE id = $10
		`, q.QuoteDate, q.ValidUntil, q.Subtotal,
			q.DiscountPercent, q.DiscountAmount, q.TaxAmount, q.Total,
			q.TaxIDs, q.Notes, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		if _, err := tx.Exec(ctx, `DELETE FROM quotation_items WHERE quotation_id = $1`, id); err != nil {
			return err
		}
		return insertItems(ctx, tx, id, q.Items)
	})
}

func (r *repository) UpdateStatus(ctx context.Context, id int64, status Status) error {
	tag, err := r.pool.Exec(ctx, `UPDATE quotations SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// MarkConverted flips the conversion flag exactly once.
func (r *repository) MarkConverted(ctx context.Context, id, invoiceID int64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE quotations SET converted_to_invoice = TRUE, invoice_id = $1, updated_at = NOW()
		WHERE id = $2 AND converted_to_invoice = FALSE
	`, invoiceID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrConflict
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM quotation_items WHERE quotation_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM quotations WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

func insertItems(ctx context.Context, tx pgx.Tx, quotationID int64, items []Item) error {
	for _, item := range items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO quotation_items (quotation_id, product_id, description, quantity, unit_price, discount_percent, line_total)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, quotationID, item.ProductID, item.Description, item.Quantity, item.UnitPrice, item.DiscountPercent, item.LineTotal); err != nil {
			return err
		}
	}
	return nil
}

func (r *repository) ExpireStale(ctx context.Context, asOf time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE quotations SET status = 'EXPIRED', updated_at = NOW()
		WHERE status IN ('SENT', 'APPROVED') AND valid_until < $1
	`, asOf)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
