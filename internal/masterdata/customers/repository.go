package customers

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	mdshared "github.com/meridian-erp/meridian-erp/internal/masterdata/shared"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

type Repository interface {
	List(ctx context.Context, filters mdshared.ListFilters) ([]Customer, int, error)
	Get(ctx context.Context, id int64) (Customer, error)
	Create(ctx context.Context, rec Customer) (Customer, error)
	Update(ctx context.Context, id int64, rec Customer) error
	SetActive(ctx context.Context, id int64, active bool) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const cols = `id, code, name, email, phone, address, is_active`

func (r *repository) List(ctx context.Context, filters mdshared.ListFilters) ([]Customer, int, error) {
	query := `SELECT ` + cols + ` FROM customers WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM customers WHERE 1=1`
	args := []interface{}{}
	argCount := 0

	if filters.Search != "" {
		argCount++
		cond := ` AND (name ILIKE $` + strconv.Itoa(argCount) + ` OR code ILIKE $` + strconv.Itoa(argCount) + `)`
		query += cond
		countQuery += cond
		args = append(args, "%"+filters.Search+"%")
	}
	if filters.IsActive != nil {
		argCount++
		cond := ` AND is_active = $` + strconv.Itoa(argCount)
		query += cond
		countQuery += cond
		args = append(args, *filters.IsActive)
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY code ASC LIMIT $` + strconv.Itoa(argCount+1) + ` OFFSET $` + strconv.Itoa(argCount+2)
	args = append(args, filters.Limit, (filters.Page-1)*filters.Limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Customer
	for rows.Next() {
		var rec Customer
		if err := rows.Scan(&rec.ID, &rec.Code, &rec.Name, &rec.Email, &rec.Phone, &rec.Address, &rec.IsActive); err != nil {
			return nil, 0, err
		}
		out = append(out, rec)
	}
	return out, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Customer, error) {
	var rec Customer
	err := r.pool.QueryRow(ctx, `SELECT `+cols+` FROM customers WHERE id = $1`, id).
		Scan(&rec.ID, &rec.Code, &rec.Name, &rec.Email, &rec.Phone, &rec.Address, &rec.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Customer{}, shared.ErrNotFound
		}
		return Customer{}, err
	}
	return rec, nil
}

func (r *repository) Create(ctx context.Context, rec Customer) (Customer, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO customers (code, name, email, phone, address, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, rec.Code, rec.Name, rec.Email, rec.Phone, rec.Address, rec.IsActive).Scan(&rec.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Customer{}, shared.ErrConflict
		}
		return Customer{}, err
	}
	return rec, nil
}

func (r *repository) Update(ctx context.Context, id int64, rec Customer) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE customers SET name = $1, email = $2, phone = $3, address = $4 WHERE id = $5
	`, rec.Name, rec.Email, rec.Phone, rec.Address, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) SetActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE customers SET is_active = $1 WHERE id = $2`, active, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
