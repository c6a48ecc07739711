package memory

import (
	"sync"

	"github.com/google/uuid"

	"github.com/dafibh/eventcore/internal/domain"
)

// BlueprintRepository is an in-memory domain.BlueprintRepository, suitable
// for development and for REPOSITORY_DRIVER=memory deployments that don't
// need durability across restarts.
type BlueprintRepository struct {
	mu   sync.RWMutex
	byID map[string]*domain.EventBlueprint
}

func NewBlueprintRepository() *BlueprintRepository {
	return &BlueprintRepository{byID: make(map[string]*domain.EventBlueprint)}
}

func (r *BlueprintRepository) Create(b *domain.EventBlueprint) (*domain.EventBlueprint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	cp := *b
	r.byID[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (r *BlueprintRepository) GetByID(id string) (*domain.EventBlueprint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	out := *b
	return &out, nil
}

func (r *BlueprintRepository) Update(b *domain.EventBlueprint) (*domain.EventBlueprint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[b.ID]; !ok {
		return nil, domain.ErrBlueprintNotFound
	}
	cp := *b
	r.byID[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (r *BlueprintRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return domain.ErrBlueprintNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *BlueprintRepository) ListPublishing() ([]*domain.EventBlueprint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.EventBlueprint, 0)
	for _, b := range r.byID {
		if !b.CurrentlyPublishing {
			continue
		}
		cp := *b
		out = append(out, &cp)
	}
	return out, nil
}
