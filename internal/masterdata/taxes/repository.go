package taxes

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	mdshared "github.com/meridian-erp/meridian-erp/internal/masterdata/shared"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

type Repository interface {
	List(ctx context.Context, filters mdshared.ListFilters) ([]Tax, int, error)
	Get(ctx context.Context, id int64) (Tax, error)
	Create(ctx context.Context, tax Tax) (Tax, error)
	Update(ctx context.Context, id int64, tax Tax) error
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) List(ctx context.Context, filters mdshared.ListFilters) ([]Tax, int, error) {
	query := `SELECT id, code, name, rate, is_default, enabled FROM taxes WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM taxes WHERE 1=1`
	args := []interface{}{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		cond := ` AND (name ILIKE $` + strconv.Itoa(argCount) + ` OR code ILIKE $` + strconv.Itoa(argCount) + `)`
		query += cond
		countQuery += cond
		args = append(args, "%"+filters.Search+"%")
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY name ASC`
	argCount++
	query += ` LIMIT $` + strconv.Itoa(argCount)
	args = append(args, filters.Limit)
	argCount++
	query += ` OFFSET $` + strconv.Itoa(argCount)
	args = append(args, (filters.Page-1)*filters.Limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var taxes []Tax
	for rows.Next() {
		var t Tax
		if err := rows.Scan(&t.ID, &t.Code, &t.Name, &t.Rate, &t.IsDefault, &t.Enabled); err != nil {
			return nil, 0, err
		}
		taxes = append(taxes, t)
	}
	return taxes, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Tax, error) {
	var t Tax
	err := r.pool.QueryRow(ctx, `SELECT id, code, name, rate, is_default, enabled FROM taxes WHERE id = $1`, id).
		Scan(&t.ID, &t.Code, &t.Name, &t.Rate, &t.IsDefault, &t.Enabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Tax{}, shared.ErrNotFound
		}
		return Tax{}, err
	}
	return t, nil
}

func (r *repository) Create(ctx context.Context, tax Tax) (Tax, error) {
	created := tax
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if tax.IsDefault {
			if _, err := tx.Exec(ctx, `UPDATE taxes SET is_default = FALSE WHERE is_default`); err != nil {
				return err
			}
		}
		return tx.QueryRow(ctx, `
			INSERT INTO taxes (code, name, rate, is_default, enabled)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id
		`, tax.Code, tax.Name, tax.Rate, tax.IsDefault, tax.Enabled).Scan(&created.ID)
	})
	if err != nil {
		return Tax{}, err
	}
	return created, nil
}

func (r *repository) Update(ctx context.Context, id int64, tax Tax) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if tax.IsDefault {
			if _, err := tx.Exec(ctx, `UPDATE taxes SET is_default = FALSE WHERE is_default AND id <> $1`, id); err != nil {
				return err
			}
		}
		tag, err := tx.Exec(ctx, `
			UPDATE taxes SET code = $1, name = $2, rate = $3, is_default = $4, enabled = $5
			WHERE id = $6
		`, tax.Code, tax.Name, tax.Rate, tax.IsDefault, tax.Enabled, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM taxes WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
