package memory

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dafibh/eventcore/internal/domain"
)

// LedgerRepository is an in-memory domain.LedgerRepository, indexed by both
// internal id and provider order id as the domain interface requires.
type LedgerRepository struct {
	mu sync.RWMutex
	byID map[string]*domain.Transaction
	byOrderID map[string]string
}

func NewLedgerRepository() *LedgerRepository {
	return &LedgerRepository{
		byID: make(map[string]*domain.Transaction),
		byOrderID: make(map[string]string),
	}
}

func (r *LedgerRepository) Create(t *domain.Transaction) (*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	cp := *t
	r.byID[cp.ID] = &cp
	if cp.OrderID != "" {
		r.byOrderID[cp.OrderID] = cp.ID
	}
	out := cp
	return &out, nil
}

func (r *LedgerRepository) GetByID(id string) (*domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	out := *t
	return &out, nil
}

func (r *LedgerRepository) GetByOrderID(orderID string) (*domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byOrderID[orderID]
	if !ok {
		return nil, nil
	}
	out := *r.byID[id]
	return &out, nil
}

func (r *LedgerRepository) Update(t *domain.Transaction) (*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[t.ID]; !ok {
		return nil, domain.ErrTransactionNotFound
	}
	t.UpdatedAt = time.Now().UTC()
	cp := *t
	r.byID[cp.ID] = &cp
	if cp.OrderID != "" {
		r.byOrderID[cp.OrderID] = cp.ID
	}
	out := cp
	return &out, nil
}

// ListUpcomingPaidByBlueprint returns every captured or partially-refunded
// transaction for blueprintID. Narrowing to instances that are still in the
// future is the caller's job, since a
// transaction record carries no event date of its own.
func (r *LedgerRepository) ListUpcomingPaidByBlueprint(blueprintID string) ([]*domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Transaction, 0)
	for _, t := range r.byID {
		if t.BlueprintID != blueprintID {
			continue
		}
		if t.Status != domain.TransactionStatusCaptured && t.Status != domain.TransactionStatusPartiallyRefunded {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}
