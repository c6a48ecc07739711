package service

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dafibh/eventcore/internal/domain"
)

// DiscountService implements the auxiliary discount-code rules
type DiscountService struct {
	repo domain.DiscountRepository
}

func NewDiscountService(repo domain.DiscountRepository) *DiscountService {
	return &DiscountService{repo: repo}
}

// ResolveInput is the outcome of validating and pricing a discount code
// against a specific registration batch.
type ResolveInput struct {
	CodeID string
	BlueprintID string
	UID string
	BasePrice decimal.Decimal
	AdditionCount int
}

// Resolve validates the code for this blueprint/user and computes the
// mean unit price across additionCount registrants.
func (s *DiscountService) Resolve(in ResolveInput) (*domain.DiscountCode, decimal.Decimal, error) {
	code, err := s.repo.GetByID(in.CodeID)
	if err != nil {
		return nil, decimal.Zero, err
	}
	if code == nil {
		return nil, decimal.Zero, domain.ErrDiscountCodeNotFound
	}
	if err := domain.ValidateForRedemption(code, in.BlueprintID, in.UID); err != nil {
		return nil, decimal.Zero, err
	}
	usesLeft := code.UsesLeft(in.UID)
	price := domain.ComputeDiscountedUnitPrice(in.BasePrice, code, in.AdditionCount, usesLeft)
	return code, price, nil
}

// RecordRedemption increments usage_history[uid] by the number of
// registrants who actually received the discounted rate.
func (s *DiscountService) RecordRedemption(codeID, uid string, count int) error {
	code, err := s.repo.GetByID(codeID)
	if err != nil {
		return err
	}
	if code == nil {
		return domain.ErrDiscountCodeNotFound
	}
	if code.UsageHistory == nil {
		code.UsageHistory = make(map[string]int)
	}
	code.UsageHistory[uid] += count
	_, err = s.repo.Update(code)
	return err
}

// Create persists a new discount code.
func (s *DiscountService) Create(d *domain.DiscountCode) (*domain.DiscountCode, error) {
	d.ID = uuid.NewString()
	d.CreatedOn = time.Now().UTC()
	if d.UsageHistory == nil {
		d.UsageHistory = make(map[string]int)
	}
	return s.repo.Create(d)
}

// GetByID returns a discount code by id.
func (s *DiscountService) GetByID(id string) (*domain.DiscountCode, error) {
	d, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, domain.ErrDiscountCodeNotFound
	}
	return d, nil
}

// Update persists an edited discount code.
func (s *DiscountService) Update(d *domain.DiscountCode) (*domain.DiscountCode, error) {
	return s.repo.Update(d)
}

// Delete removes a discount code.
func (s *DiscountService) Delete(id string) error {
	return s.repo.Delete(id)
}
