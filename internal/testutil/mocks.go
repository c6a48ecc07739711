// Package testutil provides in-memory fakes of the domain repository
// interfaces for use in service- and handler-level tests.
package testutil

import (
	"time"

	"github.com/google/uuid"

	"github.com/dafibh/eventcore/internal/domain"
)

// MockBlueprintRepository is a mock implementation of domain.BlueprintRepository.
type MockBlueprintRepository struct {
	ByID map[string]*domain.EventBlueprint
	CreateErr error
	UpdateErr error
}

func NewMockBlueprintRepository() *MockBlueprintRepository {
	return &MockBlueprintRepository{ByID: make(map[string]*domain.EventBlueprint)}
}

func (m *MockBlueprintRepository) Create(b *domain.EventBlueprint) (*domain.EventBlueprint, error) {
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	m.ByID[b.ID] = b
	return b, nil
}

func (m *MockBlueprintRepository) GetByID(id string) (*domain.EventBlueprint, error) {
	b, ok := m.ByID[id]
	if !ok {
		return nil, nil
	}
	return b, nil
}

func (m *MockBlueprintRepository) Update(b *domain.EventBlueprint) (*domain.EventBlueprint, error) {
	if m.UpdateErr != nil {
		return nil, m.UpdateErr
	}
	if _, ok := m.ByID[b.ID]; !ok {
		return nil, domain.ErrBlueprintNotFound
	}
	m.ByID[b.ID] = b
	return b, nil
}

func (m *MockBlueprintRepository) Delete(id string) error {
	if _, ok := m.ByID[id]; !ok {
		return domain.ErrBlueprintNotFound
	}
	delete(m.ByID, id)
	return nil
}

func (m *MockBlueprintRepository) ListPublishing() ([]*domain.EventBlueprint, error) {
	out := make([]*domain.EventBlueprint, 0, len(m.ByID))
	for _, b := range m.ByID {
		out = append(out, b)
	}
	return out, nil
}

// MockInstanceRepository is a mock implementation of domain.InstanceRepository.
// ConditionalUpdateRegistration mirrors the real optimistic-concurrency
// contract so service tests can exercise race behavior deterministically.
type MockInstanceRepository struct {
	ByID map[string]*domain.EventInstance
	ConditionalUpdateFn func(instanceID string, expectedSeats int, fn func(*domain.EventInstance) error) (*domain.EventInstance, error)
}

func NewMockInstanceRepository() *MockInstanceRepository {
	return &MockInstanceRepository{ByID: make(map[string]*domain.EventInstance)}
}

func (m *MockInstanceRepository) Create(i *domain.EventInstance) (*domain.EventInstance, error) {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	if i.RegistrationDetails == nil {
		i.RegistrationDetails = make(map[string]domain.RegistrationDetails)
	}
	m.ByID[i.ID] = i
	return i, nil
}

func (m *MockInstanceRepository) GetByID(id string) (*domain.EventInstance, error) {
	i, ok := m.ByID[id]
	if !ok {
		return nil, nil
	}
	return i, nil
}

func (m *MockInstanceRepository) Update(i *domain.EventInstance) (*domain.EventInstance, error) {
	if _, ok := m.ByID[i.ID]; !ok {
		return nil, domain.ErrInstanceNotFound
	}
	m.ByID[i.ID] = i
	return i, nil
}

func (m *MockInstanceRepository) Delete(id string) error {
	if _, ok := m.ByID[id]; !ok {
		return domain.ErrInstanceNotFound
	}
	delete(m.ByID, id)
	return nil
}

func (m *MockInstanceRepository) ListFutureByBlueprint(blueprintID string, now time.Time) ([]*domain.EventInstance, error) {
	out := make([]*domain.EventInstance, 0)
	for _, i := range m.ByID {
		if i.BlueprintID == blueprintID && !i.ScheduledDate.Before(now) {
			out = append(out, i)
		}
	}
	return out, nil
}

func (m *MockInstanceRepository) ListAllByBlueprint(blueprintID string) ([]*domain.EventInstance, error) {
	out := make([]*domain.EventInstance, 0)
	for _, i := range m.ByID {
		if i.BlueprintID == blueprintID {
			out = append(out, i)
		}
	}
	return out, nil
}

func (m *MockInstanceRepository) MaxSeriesIndex(blueprintID string) (int, error) {
	max := -1
	for _, i := range m.ByID {
		if i.BlueprintID == blueprintID && i.SeriesIndex > max {
			max = i.SeriesIndex
		}
	}
	return max, nil
}

func (m *MockInstanceRepository) ConditionalUpdateRegistration(instanceID string, expectedSeats int, fn func(*domain.EventInstance) error) (*domain.EventInstance, error) {
	if m.ConditionalUpdateFn != nil {
		return m.ConditionalUpdateFn(instanceID, expectedSeats, fn)
	}
	current, ok := m.ByID[instanceID]
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
	m.ByID[instanceID] = &working
	return &working, nil
}

// MockLedgerRepository is a mock implementation of domain.LedgerRepository.
type MockLedgerRepository struct {
	ByID map[string]*domain.Transaction
	ByOrderID map[string]string
}

func NewMockLedgerRepository() *MockLedgerRepository {
	return &MockLedgerRepository{ByID: make(map[string]*domain.Transaction), ByOrderID: make(map[string]string)}
}

func (m *MockLedgerRepository) Create(t *domain.Transaction) (*domain.Transaction, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	m.ByID[t.ID] = t
	if t.OrderID != "" {
		m.ByOrderID[t.OrderID] = t.ID
	}
	return t, nil
}

func (m *MockLedgerRepository) GetByID(id string) (*domain.Transaction, error) {
	t, ok := m.ByID[id]
	if !ok {
		return nil, nil
	}
	return t, nil
}

func (m *MockLedgerRepository) GetByOrderID(orderID string) (*domain.Transaction, error) {
	id, ok := m.ByOrderID[orderID]
	if !ok {
		return nil, nil
	}
	return m.ByID[id], nil
}

func (m *MockLedgerRepository) Update(t *domain.Transaction) (*domain.Transaction, error) {
	if _, ok := m.ByID[t.ID]; !ok {
		return nil, domain.ErrTransactionNotFound
	}
	m.ByID[t.ID] = t
	if t.OrderID != "" {
		m.ByOrderID[t.OrderID] = t.ID
	}
	return t, nil
}

func (m *MockLedgerRepository) ListUpcomingPaidByBlueprint(blueprintID string) ([]*domain.Transaction, error) {
	out := make([]*domain.Transaction, 0)
	for _, t := range m.ByID {
		if t.BlueprintID != blueprintID {
			continue
		}
		if t.Status == domain.TransactionStatusCaptured || t.Status == domain.TransactionStatusPartiallyRefunded {
			out = append(out, t)
		}
	}
	return out, nil
}

// MockDiscountRepository is a mock implementation of domain.DiscountRepository.
type MockDiscountRepository struct {
	ByID map[string]*domain.DiscountCode
	ByCode map[string]string
}

func NewMockDiscountRepository() *MockDiscountRepository {
	return &MockDiscountRepository{ByID: make(map[string]*domain.DiscountCode), ByCode: make(map[string]string)}
}

func (m *MockDiscountRepository) Create(d *domain.DiscountCode) (*domain.DiscountCode, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	m.ByID[d.ID] = d
	m.ByCode[d.Code] = d.ID
	return d, nil
}

func (m *MockDiscountRepository) GetByID(id string) (*domain.DiscountCode, error) {
	d, ok := m.ByID[id]
	if !ok {
		return nil, nil
	}
	return d, nil
}

func (m *MockDiscountRepository) GetByCode(code string) (*domain.DiscountCode, error) {
	id, ok := m.ByCode[code]
	if !ok {
		return nil, nil
	}
	return m.ByID[id], nil
}

func (m *MockDiscountRepository) Update(d *domain.DiscountCode) (*domain.DiscountCode, error) {
	if _, ok := m.ByID[d.ID]; !ok {
		return nil, domain.ErrDiscountCodeNotFound
	}
	m.ByID[d.ID] = d
	m.ByCode[d.Code] = d.ID
	return d, nil
}

func (m *MockDiscountRepository) Delete(id string) error {
	d, ok := m.ByID[id]
	if !ok {
		return domain.ErrDiscountCodeNotFound
	}
	delete(m.ByCode, d.Code)
	delete(m.ByID, id)
	return nil
}

// MockCallerProvider is a mock implementation of middleware.CallerProvider.
type MockCallerProvider struct {
	ByAuth0ID map[string]domain.UserSnapshot
	Err error
}

func NewMockCallerProvider() *MockCallerProvider {
	return &MockCallerProvider{ByAuth0ID: make(map[string]domain.UserSnapshot)}
}

func (m *MockCallerProvider) GetCallerByAuth0ID(auth0ID string) (domain.UserSnapshot, error) {
	if m.Err != nil {
		return domain.UserSnapshot{}, m.Err
	}
	if snap, ok := m.ByAuth0ID[auth0ID]; ok {
		return snap, nil
	}
	return domain.UserSnapshot{UID: auth0ID}, nil
}
