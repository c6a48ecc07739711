package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func sampleBlueprint() *EventBlueprint {
	return &EventBlueprint{
		ID: "bp-1",
		Localizations: map[string]Localization{"en": {Title: "Picnic"}},
		Date: time.Date(2026, time.September, 1, 18, 0, 0, 0, time.UTC),
		LocationAddress: "123 Main St",
		ImageID: "img-1",
		RSVPRequired: false,
		Price: decimal.NewFromInt(10),
		PaymentOptions: []PaymentOption{PaymentOptionDoor},
		MembersOnly: false,
		Gender: GenderRestrictionAll,
		RegistrationAllowed: true,
		Hidden: false,
		MaxPublished: 3,
	}
}

func TestPackageOverrides_UntouchedGroupKeepsPriorState(t *testing.T) {
	b := sampleBlueprint()
	existing := InstanceOverrides{}
	var tracker OverridesTracker
	tracker[OverrideGroupLocation] = true
	addr := "999 Old Rd"
	existing.LocationAddress = &addr

	in := OverridesInput{Present: map[string]bool{"hidden": true}, Hidden: boolPtr(true)}

	out, newTracker, err := PackageOverrides(b, existing, tracker, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !newTracker[OverrideGroupLocation] {
		t.Error("location group should remain tracked from the prior edit")
	}
	if out.LocationAddress == nil || *out.LocationAddress != "999 Old Rd" {
		t.Errorf("location override was dropped by an unrelated edit: %+v", out.LocationAddress)
	}
	if !newTracker[OverrideGroupVisibility] {
		t.Error("visibility group should now be tracked")
	}
	if out.Hidden == nil || !*out.Hidden {
		t.Error("hidden override was not applied")
	}
}

func TestPackageOverrides_TouchedGroupFillsAbsentMembersFromBlueprint(t *testing.T) {
	b := sampleBlueprint()
	// Only price is named; member_price, payment_options etc in the same
	// group are absent and must be filled from the blueprint, not left nil.
	price := decimal.NewFromInt(20)
	in := OverridesInput{Present: map[string]bool{"price": true}, Price: &price}

	out, tracker, err := PackageOverrides(b, InstanceOverrides{}, OverridesTracker{}, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !tracker[OverrideGroupRegistrationTerms] {
		t.Fatal("registration terms group should be tracked")
	}
	if out.Price == nil || !out.Price.Equal(price) {
		t.Errorf("price: got %v, want %v", out.Price, price)
	}
	if len(out.PaymentOptions) != 1 || out.PaymentOptions[0] != PaymentOptionDoor {
		t.Errorf("payment_options should be filled from blueprint: got %v", out.PaymentOptions)
	}
	if out.RSVPRequired == nil || *out.RSVPRequired != b.RSVPRequired {
		t.Errorf("rsvp_required should be filled from blueprint: got %v", out.RSVPRequired)
	}
}

func TestPackageOverrides_RequiredFieldRejectsExplicitNull(t *testing.T) {
	b := sampleBlueprint()
	in := OverridesInput{Present: map[string]bool{"price": true}, Price: nil}

	_, _, err := PackageOverrides(b, InstanceOverrides{}, OverridesTracker{}, in)
	if err == nil {
		t.Fatal("expected an error nulling a required field")
	}
}

func TestPackageOverrides_AllowedNoneFieldAcceptsExplicitNull(t *testing.T) {
	b := sampleBlueprint()
	in := OverridesInput{Present: map[string]bool{"price": true, "member_price": true}, Price: &b.Price, MemberPrice: nil}

	out, _, err := PackageOverrides(b, InstanceOverrides{}, OverridesTracker{}, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.MemberPrice != nil {
		t.Errorf("member_price should be nulled, got %v", out.MemberPrice)
	}
}

func TestComputeEffectiveEvent_DateShiftCarriesDependentDeadlines(t *testing.T) {
	b := sampleBlueprint()
	opens := b.Date.AddDate(0, 0, -14)
	b.RegistrationOpens = &opens

	inst := &EventInstance{
		ScheduledDate: b.Date.AddDate(0, 0, 7),
	}

	eff := ComputeEffectiveEvent(b, inst)
	want := eff.Date.AddDate(0, 0, -14)
	if eff.RegistrationOpens == nil || !eff.RegistrationOpens.Equal(want) {
		t.Errorf("registration_opens should shift with the instance date: got %v, want %v", eff.RegistrationOpens, want)
	}
}

func TestComputeEffectiveEvent_RegistrationTermsOverrideBreaksTheDelta(t *testing.T) {
	b := sampleBlueprint()
	opens := b.Date.AddDate(0, 0, -14)
	b.RegistrationOpens = &opens

	fixedOpens := time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC)
	inst := &EventInstance{
		ScheduledDate: b.Date.AddDate(0, 0, 7),
		Overrides: InstanceOverrides{RegistrationOpens: &fixedOpens},
		OverridesTracker: OverridesTracker{OverrideGroupRegistrationTerms: true},
	}

	eff := ComputeEffectiveEvent(b, inst)
	if eff.RegistrationOpens == nil || !eff.RegistrationOpens.Equal(fixedOpens) {
		t.Errorf("got %v, want overridden %v", eff.RegistrationOpens, fixedOpens)
	}
}

func TestValidateEffectiveEvent_HiddenCannotAllowRegistration(t *testing.T) {
	e := EffectiveEvent{
		Date: time.Now().Add(48 * time.Hour),
		Hidden: true,
		RegistrationAllowed: true,
	}
	if err := ValidateEffectiveEvent(e, time.Now(), false); err == nil {
		t.Fatal("expected validation error for hidden+registration_allowed")
	}
}

func boolPtr(b bool) *bool { return &b }
