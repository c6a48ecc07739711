package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Recurrence drives the instance projection engine's date arithmetic.
type Recurrence string

const (
	RecurrenceNone Recurrence = "none"
	RecurrenceDaily Recurrence = "daily"
	RecurrenceWeekly Recurrence = "weekly"
	RecurrenceMonthly Recurrence = "monthly"
	RecurrenceYearly Recurrence = "yearly"
)

// GenderRestriction governs who may register for an event.
type GenderRestriction string

const (
	GenderRestrictionAll GenderRestriction = "all"
	GenderRestrictionMale GenderRestriction = "male"
	GenderRestrictionFemale GenderRestriction = "female"
)

// PaymentOption is one of the ways a registrant may settle an event's price.
type PaymentOption string

const (
	PaymentOptionPayPal PaymentOption = "paypal"
	PaymentOptionDoor PaymentOption = "door"
)

// PaymentType is the kind of PaymentDetails attached to a single registrant.
type PaymentType string

const (
	PaymentTypeFree PaymentType = "free"
	PaymentTypePayPal PaymentType = "paypal"
	PaymentTypeDoor PaymentType = "door"
)

// Localization holds the per-language display copy for a blueprint or override.
type Localization struct {
	Title string `json:"title"`
	Description string `json:"description"`
	Location string `json:"location"`
}

// AgeWindow restricts registrants by age, evaluated against the event date.
type AgeWindow struct {
	MinAge *int `json:"min_age,omitempty"`
	MaxAge *int `json:"max_age,omitempty"`
}

// EventBlueprint is the admin-authored template an instance is projected from.
type EventBlueprint struct {
	ID string `json:"id"`
	Localizations map[string]Localization `json:"localizations"`
	Date time.Time `json:"date"`
	EndDate *time.Time `json:"end_date,omitempty"`
	Recurring Recurrence `json:"recurring"`
	Hidden bool `json:"hidden"`
	RegistrationAllowed bool `json:"registration_allowed"`
	RegistrationOpens *time.Time `json:"registration_opens,omitempty"`
	RegistrationDeadline *time.Time `json:"registration_deadline,omitempty"`
	AutomaticRefundDeadline *time.Time `json:"automatic_refund_deadline,omitempty"`
	MinistryIDs []string `json:"ministry_ids"`
	MembersOnly bool `json:"members_only"`
	RSVPRequired bool `json:"rsvp_required"`
	MaxSpots *int `json:"max_spots,omitempty"`
	Price decimal.Decimal `json:"price"`
	MemberPrice *decimal.Decimal `json:"member_price,omitempty"`
	AgeWindow *AgeWindow `json:"age_window,omitempty"`
	Gender GenderRestriction `json:"gender"`
	LocationAddress string `json:"location_address"`
	ImageID string `json:"image_id"`
	PaymentOptions []PaymentOption `json:"payment_options"`
	DiscountCodeIDs []string `json:"discount_code_ids"`
	MaxPublished int `json:"max_published"`
	CurrentlyPublishing bool `json:"currently_publishing"`
	AnchorIndex int `json:"anchor_index"`
	UpdatedOn time.Time `json:"updated_on"`
}

// HasPaymentOption reports whether the blueprint accepts the given option.
func (b *EventBlueprint) HasPaymentOption(opt PaymentOption) bool {
	for _, p := range b.PaymentOptions {
		if p == opt {
			return true
		}
	}
	return false
}

// ValidateBlueprint enforces field invariants on a blueprint.
// skipFutureDateCheck is set by the override validator when an edit
// doesn't touch the date.
func ValidateBlueprint(b *EventBlueprint, now time.Time, skipFutureDateCheck bool) error {
	if !skipFutureDateCheck && !b.Date.After(now) {
		return NewError(KindValidationFailed, "event date must be in the future")
	}
	if len(b.Localizations) == 0 {
		return NewError(KindValidationFailed, "at least one localization is required")
	}
	for lang, loc := range b.Localizations {
		if strings.TrimSpace(loc.Title) == "" {
			return NewError(KindValidationFailed, "localization "+lang+" requires a title")
		}
		if len(loc.Title) > MaxLocalizationTitleLength {
			return NewError(KindValidationFailed, "localization "+lang+" title too long")
		}
	}
	if strings.TrimSpace(b.LocationAddress) == "" {
		return NewError(KindValidationFailed, "location_address is required")
	}
	if len(b.LocationAddress) > MaxLocationAddressLength {
		return NewError(KindValidationFailed, "location_address too long")
	}
	if strings.TrimSpace(b.ImageID) == "" {
		return NewError(KindValidationFailed, "image_id is required")
	}

	if b.RegistrationOpens != nil && b.RegistrationDeadline != nil {
		if !b.RegistrationOpens.Before(*b.RegistrationDeadline) {
			return NewError(KindValidationFailed, "registration_opens must precede registration_deadline")
		}
	}
	if b.RegistrationDeadline != nil && b.RegistrationDeadline.After(b.Date) {
		return NewError(KindValidationFailed, "registration_deadline must not be after the event date")
	}
	if b.RegistrationOpens != nil && b.RegistrationOpens.After(b.Date) {
		return NewError(KindValidationFailed, "registration_opens must not be after the event date")
	}
	if b.AutomaticRefundDeadline != nil {
		if !b.AutomaticRefundDeadline.Before(b.Date) {
			return NewError(KindValidationFailed, "automatic_refund_deadline must precede the event date")
		}
		if b.RegistrationDeadline != nil && b.AutomaticRefundDeadline.Before(*b.RegistrationDeadline) {
			return NewError(KindValidationFailed, "automatic_refund_deadline must not precede registration_deadline")
		}
		if !b.HasPaymentOption(PaymentOptionPayPal) || b.HasPaymentOption(PaymentOptionDoor) {
			return NewError(KindValidationFailed, "automatic_refund_deadline requires paypal-only payment options")
		}
	}
	if b.Price.IsNegative() {
		return NewError(KindValidationFailed, "price must be non-negative")
	}
	if b.Price.IsPositive() && len(b.PaymentOptions) == 0 {
		return NewError(KindValidationFailed, "price > 0 requires at least one payment option")
	}
	if b.MemberPrice != nil && b.MemberPrice.GreaterThan(b.Price) {
		return NewError(KindValidationFailed, "member_price must not exceed price")
	}
	if b.MaxSpots != nil && *b.MaxSpots <= 0 {
		return NewError(KindValidationFailed, "max_spots must be positive when set")
	}
	if b.Hidden && b.RegistrationAllowed {
		return NewError(KindValidationFailed, "hidden events cannot allow registration")
	}
	if b.MaxPublished < 1 {
		return NewError(KindValidationFailed, "max_published must be at least 1")
	}
	switch b.Gender {
	case GenderRestrictionAll, GenderRestrictionMale, GenderRestrictionFemale:
	default:
		return NewError(KindValidationFailed, "invalid gender restriction")
	}
	switch b.Recurring {
	case RecurrenceNone, RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly, RecurrenceYearly:
	default:
		return NewError(KindValidationFailed, "invalid recurrence")
	}
	for _, p := range b.PaymentOptions {
		if p != PaymentOptionPayPal && p != PaymentOptionDoor {
			return NewError(KindValidationFailed, "invalid payment option")
		}
	}
	return nil
}

// BlueprintRepository persists EventBlueprint documents.
type BlueprintRepository interface {
	Create(b *EventBlueprint) (*EventBlueprint, error)
	GetByID(id string) (*EventBlueprint, error)
	Update(b *EventBlueprint) (*EventBlueprint, error)
	Delete(id string) error
	ListPublishing() ([]*EventBlueprint, error)
}
