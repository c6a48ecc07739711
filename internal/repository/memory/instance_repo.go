package memory

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dafibh/eventcore/internal/domain"
)

// InstanceRepository is an in-memory domain.InstanceRepository. A single
// mutex serializes ConditionalUpdateRegistration with every other write,
// which is sufficient to provide the same optimistic-concurrency guarantee
// a document store's matched_count primitive would, without one.
type InstanceRepository struct {
	mu sync.Mutex
	byID map[string]*domain.EventInstance
}

func NewInstanceRepository() *InstanceRepository {
	return &InstanceRepository{byID: make(map[string]*domain.EventInstance)}
}

func (r *InstanceRepository) Create(i *domain.EventInstance) (*domain.EventInstance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	if i.RegistrationDetails == nil {
		i.RegistrationDetails = make(map[string]domain.RegistrationDetails)
	}
	cp := *i
	r.byID[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (r *InstanceRepository) GetByID(id string) (*domain.EventInstance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	out := *i
	return &out, nil
}

func (r *InstanceRepository) Update(i *domain.EventInstance) (*domain.EventInstance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[i.ID]; !ok {
		return nil, domain.ErrInstanceNotFound
	}
	cp := *i
	r.byID[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (r *InstanceRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return domain.ErrInstanceNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *InstanceRepository) ListFutureByBlueprint(blueprintID string, now time.Time) ([]*domain.EventInstance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.EventInstance, 0)
	for _, i := range r.byID {
		if i.BlueprintID != blueprintID {
			continue
		}
		if i.ScheduledDate.Before(now) {
			continue
		}
		cp := *i
		out = append(out, &cp)
	}
	return out, nil
}

func (r *InstanceRepository) ListAllByBlueprint(blueprintID string) ([]*domain.EventInstance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.EventInstance, 0)
	for _, i := range r.byID {
		if i.BlueprintID != blueprintID {
			continue
		}
		cp := *i
		out = append(out, &cp)
	}
	return out, nil
}

func (r *InstanceRepository) MaxSeriesIndex(blueprintID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	max := -1
	for _, i := range r.byID {
		if i.BlueprintID != blueprintID {
			continue
		}
		if i.SeriesIndex > max {
			max = i.SeriesIndex
		}
	}
	return max, nil
}

// ConditionalUpdateRegistration loads the instance, checks seats_filled
// against expectedSeats, runs fn against a working copy, and persists it
// only if the precondition still held. Holding the repository mutex across
// the whole read-modify-write makes the single in-process map behave like
// the document store's compare-and-swap for callers racing on one instance.
func (r *InstanceRepository) ConditionalUpdateRegistration(instanceID string, expectedSeats int, fn func(*domain.EventInstance) error) (*domain.EventInstance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.byID[instanceID]
	if !ok {
		return nil, domain.ErrInstanceNotFound
	}
	if current.SeatsFilled != expectedSeats {
		return nil, domain.NewError(domain.KindConflict, "instance registration changed concurrently")
	}

	working := *current
	if err := fn(&working); err != nil {
		return nil, err
	}

	r.byID[instanceID] = &working
	out := working
	return &out, nil
}
