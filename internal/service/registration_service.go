package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dafibh/eventcore/internal/domain"
)

// RegistrationService implements the Registration State Machine (C6): the
// atomic seat/capacity update and the validation gate that precedes it.
type RegistrationService struct {
	instances domain.InstanceRepository
	blueprints domain.BlueprintRepository
	overrides *OverrideService
	discounts *DiscountService
	refunds *RefundService
}

func NewRegistrationService(instances domain.InstanceRepository, blueprints domain.BlueprintRepository, overrides *OverrideService, discounts *DiscountService, refunds *RefundService) *RegistrationService {
	return &RegistrationService{instances: instances, blueprints: blueprints, overrides: overrides, discounts: discounts, refunds: refunds}
}

// Addition is one registrant to add, with the payment type they declared.
type Addition struct {
	PersonID string
	PaymentType domain.PaymentType
}

// LineLineage maps a newly-captured registrant to the ledger line that
// funded them — the glossary's "lineage map".
type LineLineage struct {
	OrderID string
	LineID string
	RefundableAmount decimal.Decimal
}

// ChangeRequest bundles one registration change for a single (instance, uid).
type ChangeRequest struct {
	InstanceID string
	Caller domain.Caller
	Additions []Addition
	Removals []string
	DiscountCodeID *string
	Now time.Time
}

// ValidatedChange is the result of Validate: everything
// ProcessChangeEventRegistration needs to perform the write.
type ValidatedChange struct {
	Instance *domain.EventInstance
	Effective domain.EffectiveEvent
	Existing domain.RegistrationDetails
	Additions []Addition
	Removals []string
	UnitPrice decimal.Decimal
	DiscountedCount int
	SeatDelta int
}

// Validate implements do_registration_validation.
func (s *RegistrationService) Validate(req ChangeRequest) (*ValidatedChange, error) {
	inst, err := s.instances.GetByID(req.InstanceID)
	if err != nil {
		return nil, err
	}
	if inst == nil {
		return nil, domain.ErrInstanceNotFound
	}
	bp, err := s.blueprints.GetByID(inst.BlueprintID)
	if err != nil {
		return nil, err
	}
	if bp == nil {
		return nil, domain.ErrBlueprintNotFound
	}
	eff := domain.ComputeEffectiveEvent(bp, inst)
	existing := inst.RegistrationDetails[req.Caller.UID]

	additions := dedupAdditions(req.Additions)
	removals := dedupStrings(req.Removals)

	if len(additions) == 0 && len(removals) == 0 {
		return nil, domain.NewError(domain.KindValidationFailed, "no-op registration change")
	}

	// Step 2: cross-check against existing registration.
	for _, a := range additions {
		if a.PersonID == domain.SelfPersonID {
			if existing.SelfRegistered {
				return nil, domain.WrapError(domain.KindConflict, "already self-registered", nil)
			}
		} else if existing.HasFamilyMember(a.PersonID) {
			return nil, domain.NewError(domain.KindConflict, "family member already registered")
		}
	}
	for _, r := range removals {
		if r == domain.SelfPersonID {
			if !existing.SelfRegistered {
				return nil, domain.NewError(domain.KindConflict, "not registered")
			}
		} else if !existing.HasFamilyMember(r) {
			return nil, domain.NewError(domain.KindConflict, "not registered")
		}
	}

	// Step 3: event already occurred.
	if !req.Now.Before(eff.Date) {
		return nil, domain.ErrClosed
	}

	// Step 4: additions require registration to be allowed and open.
	if len(additions) > 0 {
		if !eff.RegistrationAllowed {
			return nil, domain.ErrClosed
		}
		if eff.RegistrationOpens != nil && req.Now.Before(*eff.RegistrationOpens) {
			return nil, domain.ErrClosed
		}
		if eff.RegistrationDeadline != nil && !req.Now.Before(*eff.RegistrationDeadline) {
			return nil, domain.ErrClosed
		}
	}

	// Step 5: payment type declared and consistent with effective options.
	for _, a := range additions {
		if a.PaymentType == "" {
			return nil, domain.NewError(domain.KindValidationFailed, "payment type is required")
		}
		if eff.Price.IsPositive() && a.PaymentType == domain.PaymentTypeFree {
			return nil, domain.NewError(domain.KindValidationFailed, "free payment type not allowed for a priced event")
		}
		if a.PaymentType == domain.PaymentTypePayPal && !eff.HasPaymentOption(domain.PaymentOptionPayPal) {
			return nil, domain.NewError(domain.KindValidationFailed, "paypal is not an accepted payment option")
		}
		if a.PaymentType == domain.PaymentTypeDoor && !eff.HasPaymentOption(domain.PaymentOptionDoor) {
			return nil, domain.NewError(domain.KindValidationFailed, "door is not an accepted payment option")
		}
	}

	// Step 6: members-only gate.
	if eff.MembersOnly && len(additions) > 0 && !req.Caller.User.Membership {
		return nil, domain.NewError(domain.KindForbidden, "event is members-only")
	}

	// Step 7: price selection.
	basePrice := eff.Price
	if eff.MemberPrice != nil && req.Caller.User.Membership {
		basePrice = *eff.MemberPrice
	}

	// Step 8: discount code resolution.
	unitPrice := basePrice
	discountedCount := 0
	if req.DiscountCodeID != nil && len(additions) > 0 {
		code, price, err := s.discounts.Resolve(ResolveInput{
				CodeID: *req.DiscountCodeID,
				BlueprintID: bp.ID,
				UID: req.Caller.UID,
				BasePrice: basePrice,
				AdditionCount: len(additions),
		})
		if err != nil {
			return nil, err
		}
		unitPrice = price
		usesLeft := code.UsesLeft(req.Caller.UID)
		discountedCount = len(additions)
		if usesLeft >= 0 && usesLeft < discountedCount {
			discountedCount = usesLeft
		}
	}
	if unitPrice.GreaterThan(basePrice) {
		unitPrice = basePrice
	}

	// Step 9: free-check against the resolved (possibly discounted) price.
	if unitPrice.IsPositive() {
		for _, a := range additions {
			if a.PaymentType == domain.PaymentTypeFree {
				return nil, domain.NewError(domain.KindValidationFailed, "free payment type not allowed at this price")
			}
		}
	}

	// Step 10: capacity check.
	seatDelta := len(additions) - len(removals)
	if eff.MaxSpots != nil && inst.SeatsFilled+seatDelta > *eff.MaxSpots {
		return nil, domain.ErrCapacityExceeded
	}

	// Step 11: per-registrant eligibility.
	for _, a := range additions {
		person, ok := resolvePerson(req.Caller, a.PersonID)
		if !ok {
			return nil, domain.NewError(domain.KindValidationFailed, "unknown person id: "+a.PersonID)
		}
		if !genderCompatible(eff.Gender, person.Gender) {
			return nil, domain.NewError(domain.KindForbidden, "registrant does not meet gender restriction")
		}
		if !ageCompatible(eff.MinAge, eff.MaxAge, person.Birthday, eff.Date) {
			return nil, domain.NewError(domain.KindForbidden, "registrant does not meet age restriction")
		}
	}

	return &ValidatedChange{
		Instance: inst,
		Effective: eff,
		Existing: existing,
		Additions: additions,
		Removals: removals,
		UnitPrice: unitPrice,
		DiscountedCount: discountedCount,
		SeatDelta: seatDelta,
	}, nil
}

func dedupAdditions(in []Addition) []Addition {
	seen := make(map[string]bool)
	out := make([]Addition, 0, len(in))
	for _, a := range in {
		if seen[a.PersonID] {
			continue
		}
		seen[a.PersonID] = true
		out = append(out, a)
	}
	return out
}

func dedupStrings(in []string) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, len(in))
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func resolvePerson(caller domain.Caller, personID string) (domain.FamilyMember, bool) {
	if personID == domain.SelfPersonID {
		return domain.FamilyMember{ID: domain.SelfPersonID, Gender: caller.User.Gender, Birthday: caller.User.Birthday}, true
	}
	return caller.User.FamilyMemberByID(personID)
}

func genderCompatible(restriction domain.GenderRestriction, g domain.Gender) bool {
	switch restriction {
	case domain.GenderRestrictionMale:
		return g == domain.GenderMale
	case domain.GenderRestrictionFemale:
		return g == domain.GenderFemale
	default:
		return true
	}
}

func ageCompatible(minAge, maxAge *int, birthday *time.Time, eventDate time.Time) bool {
	if minAge == nil && maxAge == nil {
		return true
	}
	if birthday == nil {
		return false
	}
	age := ageAt(*birthday, eventDate)
	if minAge != nil && age < *minAge {
		return false
	}
	if maxAge != nil && age > *maxAge {
		return false
	}
	return true
}

func ageAt(birthday, at time.Time) int {
	age := at.Year() - birthday.Year()
	if at.Month() < birthday.Month() || (at.Month() == birthday.Month() && at.Day() < birthday.Day()) {
		age--
	}
	return age
}

// UpdateRegistration implements update_registration: the single
// atomic write. expectedSeats must be the seats_filled value observed by
// the caller when it built newDetails, so the repository's conditional
// update can detect a concurrent racing writer.
func (s *RegistrationService) UpdateRegistration(instanceID, uid string, newDetails domain.RegistrationDetails, seatDelta int, capacityLimit *int, expectedSeats int) (*domain.EventInstance, error) {
	fn := func(inst *domain.EventInstance) error {
		if seatDelta > 0 && capacityLimit != nil && inst.SeatsFilled+seatDelta > *capacityLimit {
			return domain.ErrCapacityExceeded
		}
		if seatDelta < 0 && inst.SeatsFilled+seatDelta < 0 {
			return domain.NewError(domain.KindConflict, "seat underflow")
		}
		if inst.RegistrationDetails == nil {
			inst.RegistrationDetails = make(map[string]domain.RegistrationDetails)
		}
		if newDetails.IsEmpty() {
			delete(inst.RegistrationDetails, uid)
		} else {
			inst.RegistrationDetails[uid] = newDetails
		}
		if seatDelta != 0 {
			inst.SeatsFilled += seatDelta
		}
		return nil
	}
	return s.instances.ConditionalUpdateRegistration(instanceID, expectedSeats, fn)
}

// ChangeResult is the outcome of ProcessChangeEventRegistration.
type ChangeResult struct {
	Instance *domain.EventInstance
	RegistrationDetails domain.RegistrationDetails
	UnitPrice decimal.Decimal
	SeatDelta int
	RollbackFailed bool
}

// ProcessChangeEventRegistration orchestrates a registration change: build the
// new RegistrationDetails from validated additions/removals plus any
// captured-lineage/refundable maps, write it atomically, then run removal
// refunds. A refund failure triggers a best-effort compensating write; if
// that also fails, RollbackFailed is set (operator intervention required)
// but the ledger is never undone.
func (s *RegistrationService) ProcessChangeEventRegistration(ctx context.Context, req ChangeRequest, lineage map[string]LineLineage) (*ChangeResult, error) {
	vc, err := s.Validate(req)
	if err != nil {
		return nil, err
	}

	oldDetails := vc.Existing
	newDetails := oldDetails
	newDetails.FamilyRegistered = append([]string{}, oldDetails.FamilyRegistered...)
	if oldDetails.FamilyPaymentDetails != nil {
		newDetails.FamilyPaymentDetails = make(map[string]*domain.PaymentDetails, len(oldDetails.FamilyPaymentDetails))
		for k, v := range oldDetails.FamilyPaymentDetails {
			newDetails.FamilyPaymentDetails[k] = v
		}
	}

	for _, r := range vc.Removals {
		if r == domain.SelfPersonID {
			newDetails.SelfRegistered = false
			newDetails.SelfPaymentDetails = nil
		} else {
			newDetails.FamilyRegistered = removeString(newDetails.FamilyRegistered, r)
			if newDetails.FamilyPaymentDetails != nil {
				delete(newDetails.FamilyPaymentDetails, r)
			}
		}
	}

	for _, a := range vc.Additions {
		pd := &domain.PaymentDetails{
			Type: a.PaymentType,
			Price: vc.UnitPrice,
			PaymentComplete: a.PaymentType == domain.PaymentTypeFree,
			DiscountCodeID: req.DiscountCodeID,
		}
		if lin, ok := lineage[a.PersonID]; ok {
			pd.OrderID = lin.OrderID
			pd.LineID = lin.LineID
			pd.PaymentComplete = true
			refundable := lin.RefundableAmount
			pd.RefundableAmount = &refundable
		}
		if a.PersonID == domain.SelfPersonID {
			newDetails.SelfRegistered = true
			newDetails.SelfPaymentDetails = pd
		} else {
			newDetails.FamilyRegistered = append(newDetails.FamilyRegistered, a.PersonID)
			if newDetails.FamilyPaymentDetails == nil {
				newDetails.FamilyPaymentDetails = make(map[string]*domain.PaymentDetails)
			}
			newDetails.FamilyPaymentDetails[a.PersonID] = pd
		}
	}

	updatedInst, err := s.UpdateRegistration(req.InstanceID, req.Caller.UID, newDetails, vc.SeatDelta, vc.Effective.MaxSpots, vc.Instance.SeatsFilled)
	if err != nil {
		return nil, err
	}

	result := &ChangeResult{
		Instance: updatedInst,
		RegistrationDetails: newDetails,
		UnitPrice: vc.UnitPrice,
		SeatDelta: vc.SeatDelta,
	}

	if len(vc.Removals) > 0 {
		refundErr := s.refunds.ProcessRefundsForRemovals(ctx, req.InstanceID, vc.Effective, req.Caller.UID, oldDetails, vc.Removals, req.Now)
		if refundErr != nil {
			_, compErr := s.UpdateRegistration(req.InstanceID, req.Caller.UID, oldDetails, -vc.SeatDelta, vc.Effective.MaxSpots, updatedInst.SeatsFilled)
			if compErr != nil {
				result.RollbackFailed = true
				return result, domain.WrapError(domain.KindRollbackFailed, "refund failed and compensating write also failed", compErr)
			}
			return nil, refundErr
		}
	}

	if req.DiscountCodeID != nil && vc.DiscountedCount > 0 {
		_ = s.discounts.RecordRedemption(*req.DiscountCodeID, req.Caller.UID, vc.DiscountedCount)
	}

	return result, nil
}

func removeString(list []string, target string) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		if s != target {
			out = append(out, s)
		}
	}
	return out
}
