package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dafibh/eventcore/internal/domain"
)

// InstanceRepository implements domain.InstanceRepository on PostgreSQL.
// seats_filled is kept as its own column, read with SELECT ... FOR UPDATE
// inside a transaction, so ConditionalUpdateRegistration's optimistic check
// happens against a row lock rather than a client-side compare: two
// concurrent callers racing for the last seat serialize on the row, and the
// loser still gets the same ErrConflict contract the in-memory driver gives.
type InstanceRepository struct {
	pool *pgxpool.Pool
}

func NewInstanceRepository(pool *pgxpool.Pool) *InstanceRepository {
	return &InstanceRepository{pool: pool}
}

const createInstancesTable = `
CREATE TABLE IF NOT EXISTS event_instances (
	id TEXT PRIMARY KEY,
	blueprint_id TEXT NOT NULL,
	scheduled_date TIMESTAMPTZ NOT NULL,
	seats_filled INTEGER NOT NULL DEFAULT 0,
	series_index INTEGER NOT NULL DEFAULT 0,
	doc JSONB NOT NULL
)`

func (r *InstanceRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, createInstancesTable)
	return err
}

func (r *InstanceRepository) Create(i *domain.EventInstance) (*domain.EventInstance, error) {
	ctx := context.Background()
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	if i.RegistrationDetails == nil {
		i.RegistrationDetails = make(map[string]domain.RegistrationDetails)
	}
	doc, err := json.Marshal(i)
	if err != nil {
		return nil, err
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO event_instances (id, blueprint_id, scheduled_date, seats_filled, series_index, doc)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		i.ID, i.BlueprintID, i.ScheduledDate, i.SeatsFilled, i.SeriesIndex, doc)
	if err != nil {
		return nil, err
	}
	return i, nil
}

func (r *InstanceRepository) GetByID(id string) (*domain.EventInstance, error) {
	ctx := context.Background()
	var doc []byte
	err := r.pool.QueryRow(ctx, `SELECT doc FROM event_instances WHERE id = $1`, id).Scan(&doc)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return decodeInstance(doc)
}

func (r *InstanceRepository) Update(i *domain.EventInstance) (*domain.EventInstance, error) {
	ctx := context.Background()
	doc, err := json.Marshal(i)
	if err != nil {
		return nil, err
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE event_instances SET blueprint_id = $2, scheduled_date = $3, seats_filled = $4, series_index = $5, doc = $6 WHERE id = $1`,
		i.ID, i.BlueprintID, i.ScheduledDate, i.SeatsFilled, i.SeriesIndex, doc)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, domain.ErrInstanceNotFound
	}
	return i, nil
}

func (r *InstanceRepository) Delete(id string) error {
	ctx := context.Background()
	tag, err := r.pool.Exec(ctx, `DELETE FROM event_instances WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInstanceNotFound
	}
	return nil
}

func (r *InstanceRepository) ListFutureByBlueprint(blueprintID string, now time.Time) ([]*domain.EventInstance, error) {
	return r.queryInstances(`SELECT doc FROM event_instances WHERE blueprint_id = $1 AND scheduled_date >= $2`, blueprintID, now)
}

func (r *InstanceRepository) ListAllByBlueprint(blueprintID string) ([]*domain.EventInstance, error) {
	return r.queryInstances(`SELECT doc FROM event_instances WHERE blueprint_id = $1`, blueprintID)
}

func (r *InstanceRepository) MaxSeriesIndex(blueprintID string) (int, error) {
	ctx := context.Background()
	var max *int
	err := r.pool.QueryRow(ctx, `SELECT MAX(series_index) FROM event_instances WHERE blueprint_id = $1`, blueprintID).Scan(&max)
	if err != nil {
		return -1, err
	}
	if max == nil {
		return -1, nil
	}
	return *max, nil
}

func (r *InstanceRepository) ConditionalUpdateRegistration(instanceID string, expectedSeats int, fn func(*domain.EventInstance) error) (*domain.EventInstance, error) {
	ctx := context.Background()
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var doc []byte
	var seatsFilled int
	err = tx.QueryRow(ctx, `SELECT doc, seats_filled FROM event_instances WHERE id = $1 FOR UPDATE`, instanceID).Scan(&doc, &seatsFilled)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrInstanceNotFound
		}
		return nil, err
	}
	if seatsFilled != expectedSeats {
		return nil, domain.NewError(domain.KindConflict, "instance registration changed concurrently")
	}

	working, err := decodeInstance(doc)
	if err != nil {
		return nil, err
	}
	if err := fn(working); err != nil {
		return nil, err
	}

	newDoc, err := json.Marshal(working)
	if err != nil {
		return nil, err
	}
	_, err = tx.Exec(ctx,
		`UPDATE event_instances SET seats_filled = $2, doc = $3 WHERE id = $1`,
		instanceID, working.SeatsFilled, newDoc)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return working, nil
}

func (r *InstanceRepository) queryInstances(sql string, args ...any) ([]*domain.EventInstance, error) {
	ctx := context.Background()
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*domain.EventInstance, 0)
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		i, err := decodeInstance(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

func decodeInstance(doc []byte) (*domain.EventInstance, error) {
	var i domain.EventInstance
	if err := json.Unmarshal(doc, &i); err != nil {
		return nil, err
	}
	return &i, nil
}
