package postgres

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dafibh/eventcore/internal/domain"
)

// DiscountRepository implements domain.DiscountRepository on PostgreSQL.
type DiscountRepository struct {
	pool *pgxpool.Pool
}

func NewDiscountRepository(pool *pgxpool.Pool) *DiscountRepository {
	return &DiscountRepository{pool: pool}
}

const createDiscountCodesTable = `
CREATE TABLE IF NOT EXISTS discount_codes (
	id TEXT PRIMARY KEY,
	code TEXT UNIQUE NOT NULL,
	doc JSONB NOT NULL
)`

func (r *DiscountRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, createDiscountCodesTable)
	return err
}

func (r *DiscountRepository) Create(d *domain.DiscountCode) (*domain.DiscountCode, error) {
	ctx := context.Background()
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	doc, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	_, err = r.pool.Exec(ctx, `INSERT INTO discount_codes (id, code, doc) VALUES ($1, $2, $3)`, d.ID, d.Code, doc)
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (r *DiscountRepository) GetByID(id string) (*domain.DiscountCode, error) {
	return r.queryOne(`SELECT doc FROM discount_codes WHERE id = $1`, id)
}

func (r *DiscountRepository) GetByCode(code string) (*domain.DiscountCode, error) {
	return r.queryOne(`SELECT doc FROM discount_codes WHERE code = $1`, code)
}

func (r *DiscountRepository) Update(d *domain.DiscountCode) (*domain.DiscountCode, error) {
	ctx := context.Background()
	doc, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	tag, err := r.pool.Exec(ctx, `UPDATE discount_codes SET code = $2, doc = $3 WHERE id = $1`, d.ID, d.Code, doc)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, domain.ErrDiscountCodeNotFound
	}
	return d, nil
}

func (r *DiscountRepository) Delete(id string) error {
	ctx := context.Background()
	tag, err := r.pool.Exec(ctx, `DELETE FROM discount_codes WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDiscountCodeNotFound
	}
	return nil
}

func (r *DiscountRepository) queryOne(sql string, arg any) (*domain.DiscountCode, error) {
	ctx := context.Background()
	var doc []byte
	err := r.pool.QueryRow(ctx, sql, arg).Scan(&doc)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	var d domain.DiscountCode
	if err := json.Unmarshal(doc, &d); err != nil {
		return nil, err
	}
	return &d, nil
}
