package postgres

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dafibh/eventcore/internal/domain"
)

// BlueprintRepository implements domain.BlueprintRepository on PostgreSQL.
// The blueprint is stored as a single JSONB document: its shape mirrors the
// store's conceptual "events" collection closely enough that no
// generated query layer earns its keep here, so the SQL is hand-written
// rather than sqlc-generated.
type BlueprintRepository struct {
	pool *pgxpool.Pool
}

func NewBlueprintRepository(pool *pgxpool.Pool) *BlueprintRepository {
	return &BlueprintRepository{pool: pool}
}

const createBlueprintsTable = `
CREATE TABLE IF NOT EXISTS event_blueprints (
	id TEXT PRIMARY KEY,
	publishing BOOLEAN NOT NULL DEFAULT true,
	doc JSONB NOT NULL
)`

// EnsureSchema creates the table if it doesn't exist. Called once at startup.
func (r *BlueprintRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, createBlueprintsTable)
	return err
}

func (r *BlueprintRepository) Create(b *domain.EventBlueprint) (*domain.EventBlueprint, error) {
	ctx := context.Background()
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	doc, err := json.Marshal(b)
	if err != nil {
		return nil, err
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO event_blueprints (id, publishing, doc) VALUES ($1, $2, $3)`,
		b.ID, b.CurrentlyPublishing, doc)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (r *BlueprintRepository) GetByID(id string) (*domain.EventBlueprint, error) {
	ctx := context.Background()
	var doc []byte
	err := r.pool.QueryRow(ctx, `SELECT doc FROM event_blueprints WHERE id = $1`, id).Scan(&doc)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	var b domain.EventBlueprint
	if err := json.Unmarshal(doc, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *BlueprintRepository) Update(b *domain.EventBlueprint) (*domain.EventBlueprint, error) {
	ctx := context.Background()
	doc, err := json.Marshal(b)
	if err != nil {
		return nil, err
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE event_blueprints SET publishing = $2, doc = $3 WHERE id = $1`,
		b.ID, b.CurrentlyPublishing, doc)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, domain.ErrBlueprintNotFound
	}
	return b, nil
}

func (r *BlueprintRepository) Delete(id string) error {
	ctx := context.Background()
	tag, err := r.pool.Exec(ctx, `DELETE FROM event_blueprints WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBlueprintNotFound
	}
	return nil
}

// ListPublishing returns every blueprint flagged as publishing. The flag is
// denormalized into its own column so this listing doesn't require a JSONB
// containment scan on the hot "what's currently publishing" query.
func (r *BlueprintRepository) ListPublishing() ([]*domain.EventBlueprint, error) {
	ctx := context.Background()
	rows, err := r.pool.Query(ctx, `SELECT doc FROM event_blueprints WHERE publishing = true`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*domain.EventBlueprint, 0)
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var b domain.EventBlueprint
		if err := json.Unmarshal(doc, &b); err != nil {
			return nil, err
		}
		out = append(out, &b)
	}
	return out, rows.Err()
}
