package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentDetails is the per-registrant payment record embedded in a
// RegistrationDetails entry.
type PaymentDetails struct {
	Type PaymentType `json:"type"`
	Price decimal.Decimal `json:"price"`
	RefundableAmount *decimal.Decimal `json:"refundable_amount,omitempty"`
	AmountRefunded decimal.Decimal `json:"amount_refunded"`
	PaymentComplete bool `json:"payment_complete"`
	DiscountCodeID *string `json:"discount_code_id,omitempty"`
	AutomaticRefundEligibility bool `json:"automatic_refund_eligibility"`
	OrderID string `json:"order_id,omitempty"`
	LineID string `json:"line_id,omitempty"`
	IsForced bool `json:"is_forced"`
}

// RemainingRefundable returns refundable_amount - amount_refunded, clamped at zero.
// Non-paypal PaymentDetails have no refundable ceiling distinct from price.
func (p *PaymentDetails) RemainingRefundable() decimal.Decimal {
	ceiling := p.Price
	if p.RefundableAmount != nil {
		ceiling = *p.RefundableAmount
	}
	return ClampNonNegative(ceiling.Sub(p.AmountRefunded))
}

// RegistrationDetails is the value object stored per-user inside an instance.
type RegistrationDetails struct {
	SelfRegistered bool `json:"self_registered"`
	FamilyRegistered []string `json:"family_registered"`
	SelfPaymentDetails *PaymentDetails `json:"self_payment_details,omitempty"`
	FamilyPaymentDetails map[string]*PaymentDetails `json:"family_payment_details,omitempty"`
}

// IsEmpty reports whether this registration carries no registrants, which
// signals the state machine to remove the entry entirely.
func (r *RegistrationDetails) IsEmpty() bool {
	return !r.SelfRegistered && len(r.FamilyRegistered) == 0
}

// HasFamilyMember reports whether familyID is already registered.
func (r *RegistrationDetails) HasFamilyMember(familyID string) bool {
	for _, id := range r.FamilyRegistered {
		if id == familyID {
			return true
		}
	}
	return false
}

// SeatCount returns the number of registrants this entry represents.
func (r *RegistrationDetails) SeatCount() int {
	n := len(r.FamilyRegistered)
	if r.SelfRegistered {
		n++
	}
	return n
}

// PaymentDetailsFor returns the PaymentDetails for a person id (SELF or a
// family member id), and whether it was found.
func (r *RegistrationDetails) PaymentDetailsFor(personID string) (*PaymentDetails, bool) {
	if personID == SelfPersonID {
		if r.SelfPaymentDetails == nil {
			return nil, false
		}
		return r.SelfPaymentDetails, true
	}
	if r.FamilyPaymentDetails == nil {
		return nil, false
	}
	pd, ok := r.FamilyPaymentDetails[personID]
	return pd, ok
}

// OverridesTracker records which of the seven override groups are
// active on an instance. Index order matches the OverrideGroup* constants.
type OverridesTracker [7]bool

// InstanceOverrides carries the subset of blueprint fields an instance may
// override, grouped per the seven override groups. Pointers distinguish
// "not overridden" (nil) from "overridden to a field-appropriate zero value".
type InstanceOverrides struct {
	Localizations map[string]Localization `json:"localizations,omitempty"`

	LocationAddress *string `json:"location_address,omitempty"`

	ImageID *string `json:"image_id,omitempty"`

	Date *time.Time `json:"date,omitempty"`
	EndDate *time.Time `json:"end_date,omitempty"`

	RSVPRequired *bool `json:"rsvp_required,omitempty"`
	RegistrationOpens *time.Time `json:"registration_opens,omitempty"`
	RegistrationDeadline *time.Time `json:"registration_deadline,omitempty"`
	AutomaticRefundDeadline *time.Time `json:"automatic_refund_deadline,omitempty"`
	MaxSpots *int `json:"max_spots,omitempty"`
	Price *decimal.Decimal `json:"price,omitempty"`
	MemberPrice *decimal.Decimal `json:"member_price,omitempty"`
	PaymentOptions []PaymentOption `json:"payment_options,omitempty"`

	MembersOnly *bool `json:"members_only,omitempty"`
	Gender *GenderRestriction `json:"gender,omitempty"`
	MinAge *int `json:"min_age,omitempty"`
	MaxAge *int `json:"max_age,omitempty"`

	RegistrationAllowed *bool `json:"registration_allowed,omitempty"`
	Hidden *bool `json:"hidden,omitempty"`
}

// EventInstance is a concrete occurrence projected from a blueprint.
type EventInstance struct {
	ID string `json:"id"`
	BlueprintID string `json:"blueprint_id"`
	SeriesIndex int `json:"series_index"`
	Overrides InstanceOverrides `json:"overrides"`
	OverridesTracker OverridesTracker `json:"overrides_tracker"`
	SeatsFilled int `json:"seats_filled"`
	RegistrationDetails map[string]RegistrationDetails `json:"registration_details"`
	TargetDate time.Time `json:"target_date"`
	ScheduledDate time.Time `json:"scheduled_date"`
	OverridesDateUpdatedOn time.Time `json:"overrides_date_updated_on"`
}

// HasDateOverride reports whether the G4 (date/end_date) group is active.
func (e *EventInstance) HasDateOverride() bool {
	return e.OverridesTracker[OverrideGroupDate]
}

// InstanceRepository persists EventInstance documents and exposes the
// conditional seat/registration update the registration state machine
// relies on for atomicity under contention.
type InstanceRepository interface {
	Create(i *EventInstance) (*EventInstance, error)
	GetByID(id string) (*EventInstance, error)
	Update(i *EventInstance) (*EventInstance, error)
	Delete(id string) error
	ListFutureByBlueprint(blueprintID string, now time.Time) ([]*EventInstance, error)
	ListAllByBlueprint(blueprintID string) ([]*EventInstance, error)
	MaxSeriesIndex(blueprintID string) (int, error)

	// ConditionalUpdateRegistration performs the single atomic write the
	// registration state machine relies on: it applies fn to a freshly
	// loaded instance and persists the result only if the instance's
	// seats_filled still equals expectedSeats at write time (optimistic
	// concurrency). It returns ErrConflict-kind
	// domain errors when the precondition fails, mirroring a document
	// store's matched_count == 0 semantics so two concurrent callers racing
	// for the last seat cannot both succeed.
	ConditionalUpdateRegistration(instanceID string, expectedSeats int, fn func(*EventInstance) error) (*EventInstance, error)
}
