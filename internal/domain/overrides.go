package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Override group indices, matching OverridesTracker's slot order.
const (
	OverrideGroupLocalization = iota
	OverrideGroupLocation
	OverrideGroupImage
	OverrideGroupDate
	OverrideGroupRegistrationTerms
	OverrideGroupEligibility
	OverrideGroupVisibility
	overrideGroupCount
)

// overrideFieldGroup maps every overridable field name to its group index.
var overrideFieldGroup = map[string]int{
	"localizations": OverrideGroupLocalization,

	"location_address": OverrideGroupLocation,

	"image_id": OverrideGroupImage,

	"date": OverrideGroupDate,
	"end_date": OverrideGroupDate,

	"rsvp_required": OverrideGroupRegistrationTerms,
	"registration_opens": OverrideGroupRegistrationTerms,
	"registration_deadline": OverrideGroupRegistrationTerms,
	"automatic_refund_deadline": OverrideGroupRegistrationTerms,
	"max_spots": OverrideGroupRegistrationTerms,
	"price": OverrideGroupRegistrationTerms,
	"member_price": OverrideGroupRegistrationTerms,
	"payment_options": OverrideGroupRegistrationTerms,

	"members_only": OverrideGroupEligibility,
	"gender": OverrideGroupEligibility,
	"min_age": OverrideGroupEligibility,
	"max_age": OverrideGroupEligibility,

	"registration_allowed": OverrideGroupVisibility,
	"hidden": OverrideGroupVisibility,
}

// allowedNoneFields may be explicitly set to null within a touched group,
// as opposed to being merely absent from the payload.
var allowedNoneFields = map[string]bool{
	"end_date": true,
	"registration_opens": true,
	"registration_deadline": true,
	"automatic_refund_deadline": true,
	"max_spots": true,
	"member_price": true,
	"min_age": true,
	"max_age": true,
}

// OverridesInput is a partial, tri-state override payload: Present marks
// which field keys were named in the request at all (distinguishing "absent"
// from "present but null"); the typed pointer fields hold the value when
// non-null. Implementations must not conflate null-in-payload with
// field-missing — see design notes.
type OverridesInput struct {
	Present map[string]bool

	Localizations map[string]Localization

	LocationAddress *string

	ImageID *string

	Date *time.Time
	EndDate *time.Time

	RSVPRequired *bool
	RegistrationOpens *time.Time
	RegistrationDeadline *time.Time
	AutomaticRefundDeadline *time.Time
	MaxSpots *int
	Price *decimal.Decimal
	MemberPrice *decimal.Decimal
	PaymentOptions []PaymentOption

	MembersOnly *bool
	Gender *GenderRestriction
	MinAge *int
	MaxAge *int

	RegistrationAllowed *bool
	Hidden *bool
}

// touchedGroups returns the set of group indices named by the input.
func (in OverridesInput) touchedGroups() map[int]bool {
	touched := make(map[int]bool)
	for field := range in.Present {
		if group, ok := overrideFieldGroup[field]; ok {
			touched[group] = true
		}
	}
	return touched
}

// PackageOverrides merges a partial override request into an instance's
// existing overrides, honoring the all-or-nothing group semantics.
// Groups not touched by input retain their prior overrides/tracker state
// (an earlier edit's override is not undone by an unrelated later edit).
// Groups touched by input are fully re-expanded: any group member absent
// from input is filled from the blueprint, except allowed-none fields which
// may be explicitly nulled.
func PackageOverrides(b *EventBlueprint, existing InstanceOverrides, existingTracker OverridesTracker, in OverridesInput) (InstanceOverrides, OverridesTracker, error) {
	out := existing
	tracker := existingTracker
	touched := in.touchedGroups()

	for group := range touched {
		tracker[group] = true
	}

	if touched[OverrideGroupLocalization] {
		if in.Present["localizations"] && in.Localizations != nil {
			out.Localizations = in.Localizations
		} else if !in.Present["localizations"] {
			out.Localizations = b.Localizations
		} else {
			return out, tracker, NewError(KindValidationFailed, "localizations may not be null")
		}
	}

	if touched[OverrideGroupLocation] {
		if err := fillStringField(&out.LocationAddress, "location_address", in.Present, in.LocationAddress, b.LocationAddress); err != nil {
			return out, tracker, err
		}
	}

	if touched[OverrideGroupImage] {
		if err := fillStringField(&out.ImageID, "image_id", in.Present, in.ImageID, b.ImageID); err != nil {
			return out, tracker, err
		}
	}

	if touched[OverrideGroupDate] {
		if in.Present["date"] {
			if in.Date == nil {
				return out, tracker, NewError(KindValidationFailed, "date may not be null")
			}
			out.Date = in.Date
		} else {
			out.Date = &b.Date
		}
		if in.Present["end_date"] {
			out.EndDate = in.EndDate // nil permitted: allowed-none
		} else {
			out.EndDate = b.EndDate
		}
	}

	if touched[OverrideGroupRegistrationTerms] {
		if in.Present["rsvp_required"] {
			out.RSVPRequired = in.RSVPRequired
		} else {
			out.RSVPRequired = &b.RSVPRequired
		}
		if in.Present["registration_opens"] {
			out.RegistrationOpens = in.RegistrationOpens
		} else {
			out.RegistrationOpens = b.RegistrationOpens
		}
		if in.Present["registration_deadline"] {
			out.RegistrationDeadline = in.RegistrationDeadline
		} else {
			out.RegistrationDeadline = b.RegistrationDeadline
		}
		if in.Present["automatic_refund_deadline"] {
			out.AutomaticRefundDeadline = in.AutomaticRefundDeadline
		} else {
			out.AutomaticRefundDeadline = b.AutomaticRefundDeadline
		}
		if in.Present["max_spots"] {
			out.MaxSpots = in.MaxSpots
		} else {
			out.MaxSpots = b.MaxSpots
		}
		if in.Present["price"] {
			if in.Price == nil {
				return out, tracker, NewError(KindValidationFailed, "price may not be null")
			}
			out.Price = in.Price
		} else {
			p := b.Price
			out.Price = &p
		}
		if in.Present["member_price"] {
			out.MemberPrice = in.MemberPrice
		} else {
			out.MemberPrice = b.MemberPrice
		}
		if in.Present["payment_options"] {
			out.PaymentOptions = in.PaymentOptions
		} else {
			out.PaymentOptions = b.PaymentOptions
		}
	}

	if touched[OverrideGroupEligibility] {
		if in.Present["members_only"] {
			out.MembersOnly = in.MembersOnly
		} else {
			out.MembersOnly = &b.MembersOnly
		}
		if in.Present["gender"] {
			out.Gender = in.Gender
		} else {
			out.Gender = &b.Gender
		}
		if in.Present["min_age"] {
			out.MinAge = in.MinAge
		} else if b.AgeWindow != nil {
			out.MinAge = b.AgeWindow.MinAge
		} else {
			out.MinAge = nil
		}
		if in.Present["max_age"] {
			out.MaxAge = in.MaxAge
		} else if b.AgeWindow != nil {
			out.MaxAge = b.AgeWindow.MaxAge
		} else {
			out.MaxAge = nil
		}
	}

	if touched[OverrideGroupVisibility] {
		if in.Present["registration_allowed"] {
			out.RegistrationAllowed = in.RegistrationAllowed
		} else {
			out.RegistrationAllowed = &b.RegistrationAllowed
		}
		if in.Present["hidden"] {
			out.Hidden = in.Hidden
		} else {
			out.Hidden = &b.Hidden
		}
	}

	return out, tracker, nil
}

func fillStringField(dst **string, name string, present map[string]bool, value *string, fallback string) error {
	if present[name] {
		if value == nil {
			return NewError(KindValidationFailed, name+" may not be null")
		}
		*dst = value
		return nil
	}
	*dst = &fallback
	return nil
}

// EffectiveEvent is the merged view of a blueprint and an instance's
// overrides, used for validation and for user-facing display.
type EffectiveEvent struct {
	Localizations map[string]Localization
	Date time.Time
	EndDate *time.Time

	RSVPRequired bool
	RegistrationOpens *time.Time
	RegistrationDeadline *time.Time
	AutomaticRefundDeadline *time.Time
	MaxSpots *int
	Price decimal.Decimal
	MemberPrice *decimal.Decimal
	PaymentOptions []PaymentOption

	MembersOnly bool
	Gender GenderRestriction
	MinAge *int
	MaxAge *int

	RegistrationAllowed bool
	Hidden bool

	LocationAddress string
	ImageID string
}

func addDelta(instanceDate time.Time, blueprintField *time.Time, blueprintDate time.Time) *time.Time {
	if blueprintField == nil {
		return nil
	}
	delta := blueprintField.Sub(blueprintDate)
	t := instanceDate.Add(delta)
	return &t
}

// ComputeEffectiveEvent assembles the effective view for an instance.
func ComputeEffectiveEvent(b *EventBlueprint, inst *EventInstance) EffectiveEvent {
	eff := EffectiveEvent{
		Localizations: b.Localizations,
		LocationAddress: b.LocationAddress,
		ImageID: b.ImageID,
		RSVPRequired: b.RSVPRequired,
		MaxSpots: b.MaxSpots,
		Price: b.Price,
		MemberPrice: b.MemberPrice,
		PaymentOptions: b.PaymentOptions,
		MembersOnly: b.MembersOnly,
		Gender: b.Gender,
		RegistrationAllowed: b.RegistrationAllowed,
		Hidden: b.Hidden,
	}
	if b.AgeWindow != nil {
		eff.MinAge = b.AgeWindow.MinAge
		eff.MaxAge = b.AgeWindow.MaxAge
	}

	o := inst.Overrides
	tr := inst.OverridesTracker

	if tr[OverrideGroupLocalization] && o.Localizations != nil {
		eff.Localizations = o.Localizations
	}
	if tr[OverrideGroupLocation] && o.LocationAddress != nil {
		eff.LocationAddress = *o.LocationAddress
	}
	if tr[OverrideGroupImage] && o.ImageID != nil {
		eff.ImageID = *o.ImageID
	}

	// Date group: instance.ScheduledDate is already the effective date
	// (the projection engine keeps it in sync; see C4 recalculation).
	eff.Date = inst.ScheduledDate
	if tr[OverrideGroupDate] {
		eff.EndDate = o.EndDate
	} else {
		eff.EndDate = addDelta(eff.Date, b.EndDate, b.Date)
	}

	if tr[OverrideGroupRegistrationTerms] {
		if o.RSVPRequired != nil {
			eff.RSVPRequired = *o.RSVPRequired
		}
		eff.RegistrationOpens = o.RegistrationOpens
		eff.RegistrationDeadline = o.RegistrationDeadline
		eff.AutomaticRefundDeadline = o.AutomaticRefundDeadline
		eff.MaxSpots = o.MaxSpots
		if o.Price != nil {
			eff.Price = *o.Price
		}
		eff.MemberPrice = o.MemberPrice
		if o.PaymentOptions != nil {
			eff.PaymentOptions = o.PaymentOptions
		}
	} else {
		eff.RegistrationOpens = addDelta(eff.Date, b.RegistrationOpens, b.Date)
		eff.RegistrationDeadline = addDelta(eff.Date, b.RegistrationDeadline, b.Date)
		eff.AutomaticRefundDeadline = addDelta(eff.Date, b.AutomaticRefundDeadline, b.Date)
	}

	if tr[OverrideGroupEligibility] {
		if o.MembersOnly != nil {
			eff.MembersOnly = *o.MembersOnly
		}
		if o.Gender != nil {
			eff.Gender = *o.Gender
		}
		eff.MinAge = o.MinAge
		eff.MaxAge = o.MaxAge
	}

	if tr[OverrideGroupVisibility] {
		if o.RegistrationAllowed != nil {
			eff.RegistrationAllowed = *o.RegistrationAllowed
		}
		if o.Hidden != nil {
			eff.Hidden = *o.Hidden
		}
	}

	return eff
}

// HasPaymentOption reports whether the effective event accepts opt.
func (e EffectiveEvent) HasPaymentOption(opt PaymentOption) bool {
	for _, p := range e.PaymentOptions {
		if p == opt {
			return true
		}
	}
	return false
}

// ValidateEffectiveEvent mirrors the blueprint invariants, evaluated
// against the merged payload.
func ValidateEffectiveEvent(e EffectiveEvent, now time.Time, skipFutureDateCheck bool) error {
	if !skipFutureDateCheck && !e.Date.After(now) {
		return NewError(KindValidationFailed, "event date must be in the future")
	}
	if e.RegistrationOpens != nil && e.RegistrationDeadline != nil && !e.RegistrationOpens.Before(*e.RegistrationDeadline) {
		return NewError(KindValidationFailed, "registration_opens must precede registration_deadline")
	}
	if e.RegistrationDeadline != nil && e.RegistrationDeadline.After(e.Date) {
		return NewError(KindValidationFailed, "registration_deadline must not be after the event date")
	}
	if e.RegistrationOpens != nil && e.RegistrationOpens.After(e.Date) {
		return NewError(KindValidationFailed, "registration_opens must not be after the event date")
	}
	if e.AutomaticRefundDeadline != nil {
		if !e.AutomaticRefundDeadline.Before(e.Date) {
			return NewError(KindValidationFailed, "automatic_refund_deadline must precede the event date")
		}
		if e.RegistrationDeadline != nil && e.AutomaticRefundDeadline.Before(*e.RegistrationDeadline) {
			return NewError(KindValidationFailed, "automatic_refund_deadline must not precede registration_deadline")
		}
		if !e.HasPaymentOption(PaymentOptionPayPal) || e.HasPaymentOption(PaymentOptionDoor) {
			return NewError(KindValidationFailed, "automatic_refund_deadline requires paypal-only payment options")
		}
	}
	if e.Price.IsNegative() {
		return NewError(KindValidationFailed, "price must be non-negative")
	}
	if e.Price.IsPositive() && len(e.PaymentOptions) == 0 {
		return NewError(KindValidationFailed, "price > 0 requires at least one payment option")
	}
	if e.MemberPrice != nil && e.MemberPrice.GreaterThan(e.Price) {
		return NewError(KindValidationFailed, "member_price must not exceed price")
	}
	if e.MaxSpots != nil && *e.MaxSpots <= 0 {
		return NewError(KindValidationFailed, "max_spots must be positive when set")
	}
	if e.Hidden && e.RegistrationAllowed {
		return NewError(KindValidationFailed, "hidden events cannot allow registration")
	}
	return nil
}
