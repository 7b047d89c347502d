package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const stockCols = `id, product_id, location_id, quantity, min_level, reorder_level`

func (r *repository) GetStock(ctx context.Context, productID, locationID int64) (Stock, error) {
	var st Stock
	err := r.pool.QueryRow(ctx, `
		SELECT `+stockCols+` FROM stocks WHERE product_id = $1 AND location_id = $2
	`, productID, locationID).Scan(&st.ID, &st.ProductID, &st.LocationID, &st.Quantity, &st.MinLevel, &st.ReorderLevel)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Stock{}, shared.ErrNotFound
		}
		return Stock{}, err
	}
	return st, nil
}

func (r *repository) ListStock(ctx context.Context, locationID int64, page, limit int) ([]Stock, int, error) {
	query := `SELECT ` + stockCols + ` FROM stocks`
	countQuery := `SELECT COUNT(*) FROM stocks`
	args := []interface{}{}
	if locationID > 0 {
		query += ` WHERE location_id = $1`
		countQuery += ` WHERE location_id = $1`
		args = append(args, locationID)
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY product_id ASC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, (page-1)*limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	stocks, err := scanStocks(rows)
	return stocks, total, err
}

func (r *repository) ListLowStock(ctx context.Context) ([]Stock, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+stockCols+` FROM stocks
		WHERE reorder_level > 0 AND quantity <= reorder_level
		ORDER BY quantity ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStocks(rows)
}

func (r *repository) ListTransactions(ctx context.Context, productID int64, limit int) ([]Transaction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, product_id, transaction_type, quantity, from_location_id, to_location_id,
		       balance_before, balance_after, reference_type, reference_id, reference_number,
		       performed_by, transaction_date
		FROM stock_transactions
		WHERE product_id = $1
		ORDER BY transaction_date DESC, id DESC
		LIMIT $2
	`, productID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var tx Transaction
		if err := rows.Scan(&tx.ID, &tx.ProductID, &tx.Type, &tx.Quantity, &tx.FromLocationID, &tx.ToLocationID,
			&tx.BalanceBefore, &tx.BalanceAfter, &tx.ReferenceType, &tx.ReferenceID, &tx.ReferenceNumber,
			&tx.PerformedBy, &tx.TransactionDate); err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

// ApplyReceipt increments every line's stock in one transaction,
// creating missing stock rows and appending batch/serial sub-records.
func (r *repository) ApplyReceipt(ctx context.Context, locationID int64, lines []ReceiptLine, txType TransactionType, ref Reference, performedBy int64) ([]Transaction, error) {
	var out []Transaction
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		out = out[:0]
		for _, line := range lines {
			stockID, before, err := lockOrCreateStock(ctx, tx, line.ProductID, locationID)
			if err != nil {
				return err
			}
			after := before + line.Quantity
			if _, err := tx.Exec(ctx, `UPDATE stocks SET quantity = $1 WHERE id = $2`, after, stockID); err != nil {
				return err
			}
			ledger, err := insertTransaction(ctx, tx, Transaction{
				ProductID:       line.ProductID,
				Type:            txType,
				Quantity:        line.Quantity,
				ToLocationID:    &locationID,
				BalanceBefore:   before,
				BalanceAfter:    after,
				ReferenceType:   ref.Type,
				ReferenceID:     ref.ID,
				ReferenceNumber: ref.Number,
				PerformedBy:     performedBy,
			})
			if err != nil {
				return err
			}
			if line.Batch != nil {
				if _, err := tx.Exec(ctx, `
					INSERT INTO stock_batches (stock_id, batch_number, quantity, expiry_date)
					VALUES ($1, $2, $3, $4)
					ON CONFLICT (stock_id, batch_number)
					DO UPDATE SET quantity = stock_batches.quantity + EXCLUDED.quantity
				`, stockID, line.Batch.BatchNumber, line.Quantity, line.Batch.ExpiryDate); err != nil {
					return err
				}
			}
			for _, serial := range line.Serials {
				if _, err := tx.Exec(ctx, `
					INSERT INTO stock_serials (stock_id, serial_number, status)
					VALUES ($1, $2, 'IN_STOCK')
				`, stockID, serial); err != nil {
					return err
				}
			}
			out = append(out, ledger)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ApplyDeduction checks availability of every line under row locks
// before mutating any line. A single short line aborts the whole call.
func (r *repository) ApplyDeduction(ctx context.Context, locationID int64, lines []DeductionLine, txType TransactionType, ref Reference, performedBy int64) ([]Transaction, error) {
	var out []Transaction
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		out = out[:0]
		type locked struct {
			stockID int64
			before  float64
		}
		states := make([]locked, len(lines))
		// Running balance per stock row, so repeated lines for the same
		// product are checked against the cumulative requirement.
		running := make(map[int64]float64)
		stockIDs := make(map[int64]int64)
		for i, line := range lines {
			stockID, ok := stockIDs[line.ProductID]
			if !ok {
				var qty float64
				err := tx.QueryRow(ctx, `
					SELECT id, quantity FROM stocks
					WHERE product_id = $1 AND location_id = $2
					FOR UPDATE
				`, line.ProductID, locationID).Scan(&stockID, &qty)
				if err != nil {
					if errors.Is(err, pgx.ErrNoRows) {
						return fmt.Errorf("%w: product %d has no stock at location %d", shared.ErrInsufficientStock, line.ProductID, locationID)
					}
					return err
				}
				stockIDs[line.ProductID] = stockID
				running[stockID] = qty
			}
			before := running[stockID]
			if before < line.Quantity {
				return fmt.Errorf("%w: product %d requested %.2f, available %.2f", shared.ErrInsufficientStock, line.ProductID, line.Quantity, before)
			}
			states[i] = locked{stockID: stockID, before: before}
			running[stockID] = before - line.Quantity
		}
		for i, line := range lines {
			after := states[i].before - line.Quantity
			if _, err := tx.Exec(ctx, `UPDATE stocks SET quantity = $1 WHERE id = $2`, after, states[i].stockID); err != nil {
				return err
			}
			ledger, err := insertTransaction(ctx, tx, Transaction{
				ProductID:       line.ProductID,
				Type:            txType,
				Quantity:        line.Quantity,
				FromLocationID:  &locationID,
				BalanceBefore:   states[i].before,
				BalanceAfter:    after,
				ReferenceType:   ref.Type,
				ReferenceID:     ref.ID,
				ReferenceNumber: ref.Number,
				PerformedBy:     performedBy,
			})
			if err != nil {
				return err
			}
			out = append(out, ledger)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repository) ApplyAdjustment(ctx context.Context, productID, locationID int64, delta float64, txType TransactionType, ref Reference, performedBy int64) (Transaction, error) {
	var out Transaction
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		stockID, before, err := lockOrCreateStock(ctx, tx, productID, locationID)
		if err != nil {
			return err
		}
		after := before + delta
		if after < 0 {
			return fmt.Errorf("%w: adjustment of %.2f would leave %.2f", shared.ErrInsufficientStock, delta, after)
		}
		if _, err := tx.Exec(ctx, `UPDATE stocks SET quantity = $1 WHERE id = $2`, after, stockID); err != nil {
			return err
		}
		rec := Transaction{
			ProductID:       productID,
			Type:            txType,
			Quantity:        delta,
			BalanceBefore:   before,
			BalanceAfter:    after,
			ReferenceType:   ref.Type,
			ReferenceID:     ref.ID,
			ReferenceNumber: ref.Number,
			PerformedBy:     performedBy,
		}
		if delta >= 0 {
			rec.ToLocationID = &locationID
		} else {
			rec.Quantity = -delta
			rec.FromLocationID = &locationID
		}
		out, err = insertTransaction(ctx, tx, rec)
		return err
	})
	if err != nil {
		return Transaction{}, err
	}
	return out, nil
}

func lockOrCreateStock(ctx context.Context, tx pgx.Tx, productID, locationID int64) (int64, float64, error) {
	var stockID int64
	var quantity float64
	err := tx.QueryRow(ctx, `
		SELECT id, quantity FROM stocks
		WHERE product_id = $1 AND location_id = $2
		FOR UPDATE
	`, productID, locationID).Scan(&stockID, &quantity)
	if errors.Is(err, pgx.ErrNoRows) {
		err = tx.QueryRow(ctx, `
			INSERT INTO stocks (product_id, location_id, quantity)
			VALUES ($1, $2, 0)
			RETURNING id
		`, productID, locationID).Scan(&stockID)
		return stockID, 0, err
	}
	return stockID, quantity, err
}

func insertTransaction(ctx context.Context, tx pgx.Tx, rec Transaction) (Transaction, error) {
	err := tx.QueryRow(ctx, `
		INSERT INTO stock_transactions (
			product_id, transaction_type, quantity, from_location_id, to_location_id,
			balance_before, balance_after, reference_type, reference_id, reference_number,
			performed_by, transaction_date
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
		RETURNING id, transaction_date
	`, rec.ProductID, rec.Type, rec.Quantity, rec.FromLocationID, rec.ToLocationID,
		rec.BalanceBefore, rec.BalanceAfter, rec.ReferenceType, rec.ReferenceID, rec.ReferenceNumber,
		rec.PerformedBy).Scan(&rec.ID, &rec.TransactionDate)
	return rec, err
}

func scanStocks(rows pgx.Rows) ([]Stock, error) {
	var out []Stock
	for rows.Next() {
		var st Stock
		if err := rows.Scan(&st.ID, &st.ProductID, &st.LocationID, &st.Quantity, &st.MinLevel, &st.ReorderLevel); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}
