package sequence

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository stores counters in document_sequences. The upsert-and-return is
// a single statement so the read-modify-write cannot interleave.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// NextValue atomically increments the counter for docType, creating it with
// value 1 when absent, and returns the issued value.
func (r *Repository) NextValue(ctx context.Context, docType string, prefix string) (int64, error) {
	var value int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO document_sequences (doc_type, prefix, current)
		VALUES ($1, $2, 1)
		ON CONFLICT (doc_type)
		DO UPDATE SET current = document_sequences.current + 1
		RETURNING current
	`, docType, prefix).Scan(&value)
	if err != nil {
		return 0, err
	}
	return value, nil
}
