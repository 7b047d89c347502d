package locations

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
	List(ctx context.Context, filters mdshared.ListFilters) ([]Location, int, error)
	Get(ctx context.Context, id int64) (Location, error)
	Create(ctx context.Context, loc Location) (Location, error)
	Update(ctx context.Context, id int64, loc Location) error
	SetActive(ctx context.Context, id int64, active bool) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) List(ctx context.Context, filters mdshared.ListFilters) ([]Location, int, error) {
	query := `SELECT id, code, name, address, is_active FROM locations WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM locations WHERE 1=1`
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

	var out []Location
	for rows.Next() {
		var loc Location
		if err := rows.Scan(&loc.ID, &loc.Code, &loc.Name, &loc.Address, &loc.IsActive); err != nil {
			return nil, 0, err
		}
		out = append(out, loc)
	}
	return out, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Location, error) {
	var loc Location
	err := r.pool.QueryRow(ctx, `SELECT id, code, name, address, is_active FROM locations WHERE id = $1`, id).
		Scan(&loc.ID, &loc.Code, &loc.Name, &loc.Address, &loc.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Location{}, shared.ErrNotFound
		}
		return Location{}, err
	}
	return loc, nil
}

func (r *repository) Create(ctx context.Context, loc Location) (Location, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO locations (code, name, address, is_active)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, loc.Code, loc.Name, loc.Address, loc.IsActive).Scan(&loc.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Location{}, shared.ErrConflict
		}
		return Location{}, err
	}
	return loc, nil
}

func (r *repository) Update(ctx context.Context, id int64, loc Location) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE locations SET code = $1, name = $2, address = $3, is_active = $4 WHERE id = $5
	`, loc.Code, loc.Name, loc.Address, loc.IsActive, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) SetActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE locations SET is_active = $1 WHERE id = $2`, active, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
