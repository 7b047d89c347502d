package procurement

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
	GetPO(ctx context.Context, id int64) (*PurchaseOrder, error)
	ListPOs(ctx context.Context, filter POListFilter) ([]PurchaseOrder, int, error)
	CreatePO(ctx context.Context, po PurchaseOrder) (int64, error)
	UpdatePOStatus(ctx context.Context, id int64, status POStatus, stamps map[string]interface{}) error
	MarkPOConverted(ctx context.Context, id, grnID int64) error
	DeletePO(ctx context.Context, id int64) error

	GetGRN(ctx context.Context, id int64) (*GRN, error)
	ListGRNs(ctx context.Context, filter GRNListFilter) ([]GRN, int, error)
	CreateGRN(ctx context.Context, grn GRN) (int64, error)
	UpdateGRN(ctx context.Context, id int64, grn GRN) error
	UpdateGRNStatus(ctx context.Context, id int64, status GRNStatus) error
	UpdateGRNBalances(ctx context.Context, id int64, paid, balance float64, status GRNPaymentStatus) error
	MarkGRNCompleted(ctx context.Context, id int64) error
	DeleteGRN(ctx context.Context, id int64) error

	GetSupplierPayment(ctx context.Context, id int64) (*SupplierPayment, error)
	ListSupplierPayments(ctx context.Context, grnID int64) ([]SupplierPayment, error)
	CreateSupplierPayment(ctx context.Context, p SupplierPayment) (int64, error)
	UpdateSupplierPayment(ctx context.Context, id int64, p SupplierPayment) error
	UpdateSupplierPaymentStatus(ctx context.Context, id int64, status SupplierPaymentStatus, paidAt *time.Time) error
	DeleteSupplierPayment(ctx context.Context, id int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const poCols = `id, number, supplier_id, status, order_date, expected_date,
	subtotal, discount_percent, discount_amount, tax_amount, total, tax_ids,
	converted_to_grn, grn_id, approved_by, approved_at, sent_by, sent_at,
	notes, created_by, created_at, updated_at`

func scanPO(row pgx.Row, po *PurchaseOrder) error {
	return row.Scan(&po.ID, &po.Number, &po.SupplierID, &po.Status, &po.OrderDate, &po.ExpectedDate,
		&po.Subtotal, &po.DiscountPercent, &po.DiscountAmount, &po.TaxAmount, &po.Total, &po.TaxIDs,
		&po.ConvertedToGRN, &po.GRNID, &po.ApprovedBy, &po.ApprovedAt, &po.SentBy, &po.SentAt,
		&po.Notes, &po.CreatedBy, &po.CreatedAt, &po.UpdatedAt)
}

func (r *repository) GetPO(ctx context.Context, id int64) (*PurchaseOrder, error) {
	var po PurchaseOrder
	err := scanPO(r.pool.QueryRow(ctx, `SELECT `+poCols+` FROM purchase_orders WHERE id = $1`, id), &po)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, purchase_order_id, product_id, description, quantity, unit_price, discount_percent, line_total
		FROM purchase_order_items WHERE purchase_order_id = $1 ORDER BY id ASC
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var item POItem
		if err := rows.Scan(&item.ID, &item.PurchaseOrderID, &item.ProductID, &item.Description,
			&item.Quantity, &item.UnitPrice, &item.DiscountPercent, &item.LineTotal); err != nil {
			return nil, err
		}
		po.Items = append(po.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &po, nil
}

func (r *repository) ListPOs(ctx context.Context, filter POListFilter) ([]PurchaseOrder, int, error) {
	query := `SELECT ` + poCols + ` FROM purchase_orders WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM purchase_orders WHERE 1=1`
	args := []interface{}{}

	if filter.SupplierID > 0 {
		args = append(args, filter.SupplierID)
		cond := fmt.Sprintf(` AND supplier_id = $%d`, len(args))
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

	var out []PurchaseOrder
	for rows.Next() {
		var po PurchaseOrder
		if err := scanPO(rows, &po); err != nil {
			return nil, 0, err
		}
		out = append(out, po)
	}
	return out, total, rows.Err()
}

func (r *repository) CreatePO(ctx context.Context, po PurchaseOrder) (int64, error) {
	var id int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO purchase_orders (number, supplier_id, status, order_date, expected_date,
				subtotal, discount_percent, discount_amount, tax_amount, total, tax_ids, notes, created_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			RETURNING id
		`, po.Number, po.SupplierID, po.Status, po.OrderDate, po.ExpectedDate,
			po.Subtotal, po.DiscountPercent, po.DiscountAmount, po.TaxAmount, po.Total,
			po.TaxIDs, po.Notes, po.CreatedBy).Scan(&id)
		if err != nil {
			return err
		}
		for _, item := range po.Items {
			if _, err := tx.Exec(ctx, `
				INSERT INTO purchase_order_items (purchase_order_id, product_id, description, quantity, unit_price, discount_percent, line_total)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			`, id, item.ProductID, item.Description, item.Quantity, item.UnitPrice, item.DiscountPercent, item.LineTotal); err != nil {
				return err
			}
		}
		return nil
	})
	return id, err
}

func (r *repository) UpdatePOStatus(ctx context.Context, id int64, status POStatus, stamps map[string]interface{}) error {
	query := `UPDATE purchase_orders SET status = $1, updated_at = NOW()`
	args := []interface{}{status}
	for col, val := range stamps {
		args = append(args, val)
		query += fmt.Sprintf(`, %s = $%d`, col, len(args))
	}
	args = append(args, id)
	query += fmt.Sprintf(` WHERE id = $%d`, len(args))

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// MarkPOConverted stamps the conversion exactly once.
func (r *repository) MarkPOConverted(ctx context.Context, id, grnID int64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE purchase_orders SET converted_to_grn = TRUE, grn_id = $1, status = 'CONVERTED', updated_at = NOW()
		WHERE id = $2 AND converted_to_grn = FALSE
	`, grnID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrConflict
	}
	return nil
}

func (r *repository) DeletePO(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM purchase_order_items WHERE purchase_order_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM purchase_orders WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

const grnCols = `id, number, purchase_order_id, supplier_id, location_id, status, received_date,
	total, paid_amount, balance_amount, payment_status, stock_updated, notes, created_by, created_at, updated_at`

func scanGRN(row pgx.Row, g *GRN) error {
	return row.Scan(&g.ID, &g.Number, &g.PurchaseOrderID, &g.SupplierID, &g.LocationID, &g.Status,
		&g.ReceivedDate, &g.Total, &g.PaidAmount, &g.BalanceAmount, &g.PaymentStatus,
		&g.StockUpdated, &g.Notes, &g.CreatedBy, &g.CreatedAt, &g.UpdatedAt)
}

func (r *repository) GetGRN(ctx context.Context, id int64) (*GRN, error) {
	var g GRN
	err := scanGRN(r.pool.QueryRow(ctx, `SELECT `+grnCols+` FROM grns WHERE id = $1`, id), &g)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, grn_id, product_id, ordered_quantity, accepted_quantity, short_quantity,
		       unit_price, quality_status, batch_number, expiry_date, serial_numbers
		FROM grn_items WHERE grn_id = $1 ORDER BY id ASC
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var item GRNItem
		if err := rows.Scan(&item.ID, &item.GRNID, &item.ProductID, &item.OrderedQuantity,
			&item.AcceptedQuantity, &item.ShortQuantity, &item.UnitPrice, &item.QualityStatus,
			&item.BatchNumber, &item.ExpiryDate, &item.SerialNumbers); err != nil {
			return nil, err
		}
		g.Items = append(g.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *repository) ListGRNs(ctx context.Context, filter GRNListFilter) ([]GRN, int, error) {
	query := `SELECT ` + grnCols + ` FROM grns WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM grns WHERE 1=1`
	args := []interface{}{}

	if filter.SupplierID > 0 {
		args = append(args, filter.SupplierID)
		cond := fmt.Sprintf(` AND supplier_id = $%d`, len(args))
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

	var out []GRN
	for rows.Next() {
		var g GRN
		if err := scanGRN(rows, &g); err != nil {
			return nil, 0, err
		}
		out = append(out, g)
	}
	return out, total, rows.Err()
}

func (r *repository) CreateGRN(ctx context.Context, grn GRN) (int64, error) {
	var id int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO grns (number, purchase_order_id, supplier_id, location_id, status, received_date,
				total, paid_amount, balance_amount, payment_status, notes, created_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			RETURNING id
		`, grn.Number, grn.PurchaseOrderID, grn.SupplierID, grn.LocationID, grn.Status, grn.ReceivedDate,
			grn.Total, grn.PaidAmount, grn.BalanceAmount, grn.PaymentStatus, grn.Notes, grn.CreatedBy).Scan(&id)
		if err != nil {
			return err
		}
		return insertGRNItems(ctx, tx, id, grn.Items)
	})
	return id, err
}

// UpdateGRN rewrites the header fields inspection touches plus all
// items in one transaction.
func (r *repository) UpdateGRN(ctx context.Context, id int64, grn GRN) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE grns SET status = $1, total = $2, balance_amount = $3, notes = $4, updated_at = NOW()
			WHERE id = $5
		`, grn.Status, grn.Total, grn.BalanceAmount, grn.Notes, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		if _, err := tx.Exec(ctx, `DELETE FROM grn_items WHERE grn_id = $1`, id); err != nil {
			return err
		}
		return insertGRNItems(ctx, tx, id, grn.Items)
	})
}

func (r *repository) UpdateGRNStatus(ctx context.Context, id int64, status GRNStatus) error {
	tag, err := r.pool.Exec(ctx, `UPDATE grns SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) UpdateGRNBalances(ctx context.Context, id int64, paid, balance float64, status GRNPaymentStatus) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE grns SET paid_amount = $1, balance_amount = $2, payment_status = $3, updated_at = NOW()
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

// MarkGRNCompleted sets COMPLETED and the permanent stock flag in one
// statement; the guard predicate makes the flip one-shot.
func (r *repository) MarkGRNCompleted(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE grns SET status = 'COMPLETED', stock_updated = TRUE, updated_at = NOW()
		WHERE id = $1 AND stock_updated = FALSE
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrConflict
	}
	return nil
}

func (r *repository) DeleteGRN(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM grn_items WHERE grn_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM grns WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

func insertGRNItems(ctx context.Context, tx pgx.Tx, grnID int64, items []GRNItem) error {
	for _, item := range items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO grn_items (grn_id, product_id, ordered_quantity, accepted_quantity, short_quantity,
				unit_price, quality_status, batch_number, expiry_date, serial_numbers)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, grnID, item.ProductID, item.OrderedQuantity, item.AcceptedQuantity, item.ShortQuantity,
			item.UnitPrice, item.QualityStatus, item.BatchNumber, item.ExpiryDate, item.SerialNumbers); err != nil {
			return err
		}
	}
	return nil
}

const supplierPaymentCols = `id, number, grn_id, supplier_id, amount, method, status, paid_at, notes, created_at`

func (r *repository) GetSupplierPayment(ctx context.Context, id int64) (*SupplierPayment, error) {
	var p SupplierPayment
	err := r.pool.QueryRow(ctx, `SELECT `+supplierPaymentCols+` FROM supplier_payments WHERE id = $1`, id).Scan(
		&p.ID, &p.Number, &p.GRNID, &p.SupplierID, &p.Amount, &p.Method, &p.Status, &p.PaidAt, &p.Notes, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *repository) ListSupplierPayments(ctx context.Context, grnID int64) ([]SupplierPayment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+supplierPaymentCols+` FROM supplier_payments WHERE grn_id = $1 ORDER BY id ASC`, grnID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SupplierPayment
	for rows.Next() {
		var p SupplierPayment
		if err := rows.Scan(&p.ID, &p.Number, &p.GRNID, &p.SupplierID, &p.Amount, &p.Method, &p.Status, &p.PaidAt, &p.Notes, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *repository) CreateSupplierPayment(ctx context.Context, p SupplierPayment) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO supplier_payments (number, grn_id, supplier_id, amount, method, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, p.Number, p.GRNID, p.SupplierID, p.Amount, p.Method, p.Status, p.Notes).Scan(&id)
	return id, err
}

func (r *repository) UpdateSupplierPayment(ctx context.Context, id int64, p SupplierPayment) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE supplier_payments SET amount = $1, method = $2, notes = $3 WHERE id = $4
	`, p.Amount, p.Method, p.Notes, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) UpdateSupplierPaymentStatus(ctx context.Context, id int64, status SupplierPaymentStatus, paidAt *time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE supplier_payments SET status = $1, paid_at = COALESCE($2, paid_at) WHERE id = $3
	`, status, paidAt, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) DeleteSupplierPayment(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM supplier_payments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
