package postgres

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dafibh/eventcore/internal/domain"
)

// LedgerRepository implements domain.LedgerRepository on PostgreSQL.
type LedgerRepository struct {
	pool *pgxpool.Pool
}

func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

const createTransactionsTable = `
CREATE TABLE IF NOT EXISTS event_transactions (
	id TEXT PRIMARY KEY,
	order_id TEXT UNIQUE,
	instance_id TEXT NOT NULL,
	blueprint_id TEXT NOT NULL,
	status TEXT NOT NULL,
	doc JSONB NOT NULL
)`

func (r *LedgerRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, createTransactionsTable)
	return err
}

func (r *LedgerRepository) Create(t *domain.Transaction) (*domain.Transaction, error) {
	ctx := context.Background()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	doc, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO event_transactions (id, order_id, instance_id, blueprint_id, status, doc)
		 VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6)`,
		t.ID, t.OrderID, t.InstanceID, t.BlueprintID, string(t.Status), doc)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *LedgerRepository) GetByID(id string) (*domain.Transaction, error) {
	return r.queryOne(`SELECT doc FROM event_transactions WHERE id = $1`, id)
}

func (r *LedgerRepository) GetByOrderID(orderID string) (*domain.Transaction, error) {
	return r.queryOne(`SELECT doc FROM event_transactions WHERE order_id = $1`, orderID)
}

func (r *LedgerRepository) Update(t *domain.Transaction) (*domain.Transaction, error) {
	ctx := context.Background()
	doc, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE event_transactions SET order_id = NULLIF($2, ''), status = $3, doc = $4 WHERE id = $1`,
		t.ID, t.OrderID, string(t.Status), doc)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, domain.ErrTransactionNotFound
	}
	return t, nil
}

func (r *LedgerRepository) ListUpcomingPaidByBlueprint(blueprintID string) ([]*domain.Transaction, error) {
	return r.queryMany(
		`SELECT doc FROM event_transactions WHERE blueprint_id = $1 AND status IN ($2, $3)`,
		blueprintID, string(domain.TransactionStatusCaptured), string(domain.TransactionStatusPartiallyRefunded))
}

func (r *LedgerRepository) queryOne(sql string, arg any) (*domain.Transaction, error) {
	ctx := context.Background()
	var doc []byte
	err := r.pool.QueryRow(ctx, sql, arg).Scan(&doc)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	var t domain.Transaction
	if err := json.Unmarshal(doc, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *LedgerRepository) queryMany(sql string, args ...any) ([]*domain.Transaction, error) {
	ctx := context.Background()
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*domain.Transaction, 0)
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var t domain.Transaction
		if err := json.Unmarshal(doc, &t); err != nil {
			return nil, err
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}
