package memory

import (
	"sync"

	"github.com/google/uuid"

	"github.com/dafibh/eventcore/internal/domain"
)

// DiscountRepository is an in-memory domain.DiscountRepository.
type DiscountRepository struct {
	mu     sync.RWMutex
	byID   map[string]*domain.DiscountCode
	byCode map[string]string
}

func NewDiscountRepository() *DiscountRepository {
	return &DiscountRepository{
		byID:   make(map[string]*domain.DiscountCode),
		byCode: make(map[string]string),
	}
}

func (r *DiscountRepository) Create(d *domain.DiscountCode) (*domain.DiscountCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	cp := *d
	r.byID[cp.ID] = &cp
	r.byCode[cp.Code] = cp.ID
	out := cp
	return &out, nil
}

func (r *DiscountRepository) GetByID(id string) (*domain.DiscountCode, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	out := *d
	return &out, nil
}

func (r *DiscountRepository) GetByCode(code string) (*domain.DiscountCode, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byCode[code]
	if !ok {
		return nil, nil
	}
	out := *r.byID[id]
	return &out, nil
}

func (r *DiscountRepository) Update(d *domain.DiscountCode) (*domain.DiscountCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[d.ID]; !ok {
		return nil, domain.ErrDiscountCodeNotFound
	}
	cp := *d
	r.byID[cp.ID] = &cp
	r.byCode[cp.Code] = cp.ID
	out := cp
	return &out, nil
}

func (r *DiscountRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.byID[id]
	if !ok {
		return domain.ErrDiscountCodeNotFound
	}
	delete(r.byCode, d.Code)
	delete(r.byID, id)
	return nil
}
