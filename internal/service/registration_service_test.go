package service

import (
	"testing"

	"github.com/dafibh/eventcore/internal/domain"
	"github.com/dafibh/eventcore/internal/testutil"
)

func TestRegistrationService_UpdateRegistration_ConflictOnStaleSeatCount(t *testing.T) {
	repo := testutil.NewMockInstanceRepository()
	inst := &domain.EventInstance{ID: "inst-1", SeatsFilled: 2}
	if _, err := repo.Create(inst); err != nil {
		t.Fatalf("create: %v", err)
	}

	// Simulate a concurrent writer landing between the caller's read and its
	// write: seats_filled has moved from 2 (what the caller observed) to 3.
	inst.SeatsFilled = 3

	s := &RegistrationService{instances: repo}
	max := 5
	details := domain.RegistrationDetails{SelfRegistered: true}

	_, err := s.UpdateRegistration("inst-1", "uid-1", details, 1, &max, 2)
	if err == nil {
		t.Fatal("expected a conflict error when expectedSeats is stale")
	}
	domainErr, ok := err.(*domain.Error)
	if !ok || domainErr.Kind != domain.KindConflict {
		t.Fatalf("got %v, want a KindConflict domain error", err)
	}
}

func TestRegistrationService_UpdateRegistration_CapacityExceededStopsTheWrite(t *testing.T) {
	repo := testutil.NewMockInstanceRepository()
	inst := &domain.EventInstance{ID: "inst-1", SeatsFilled: 4}
	if _, err := repo.Create(inst); err != nil {
		t.Fatalf("create: %v", err)
	}

	s := &RegistrationService{instances: repo}
	max := 5
	details := domain.RegistrationDetails{SelfRegistered: true, FamilyRegistered: []string{"child-1"}}

	_, err := s.UpdateRegistration("inst-1", "uid-1", details, 2, &max, 4)
	if err == nil {
		t.Fatal("expected capacity_exceeded adding 2 seats against 1 remaining slot")
	}
	domainErr, ok := err.(*domain.Error)
	if !ok || domainErr.Kind != domain.KindCapacityExceeded {
		t.Fatalf("got %v, want a KindCapacityExceeded domain error", err)
	}
	if repo.ByID["inst-1"].SeatsFilled != 4 {
		t.Errorf("seats_filled must be unchanged on a rejected write, got %d", repo.ByID["inst-1"].SeatsFilled)
	}
}

func TestRegistrationService_UpdateRegistration_RemovalClearsEmptyEntry(t *testing.T) {
	repo := testutil.NewMockInstanceRepository()
	inst := &domain.EventInstance{
		ID: "inst-1",
		SeatsFilled: 1,
		RegistrationDetails: map[string]domain.RegistrationDetails{
			"uid-1": {SelfRegistered: true},
		},
	}
	if _, err := repo.Create(inst); err != nil {
		t.Fatalf("create: %v", err)
	}

	s := &RegistrationService{instances: repo}
	empty := domain.RegistrationDetails{}

	updated, err := s.UpdateRegistration("inst-1", "uid-1", empty, -1, nil, 1)
	if err != nil {
		t.Fatalf("UpdateRegistration: %v", err)
	}
	if _, ok := updated.RegistrationDetails["uid-1"]; ok {
		t.Error("an emptied registration entry should be removed, not stored as a zero value")
	}
	if updated.SeatsFilled != 0 {
		t.Errorf("got seats_filled %d, want 0", updated.SeatsFilled)
	}
}
