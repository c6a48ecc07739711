package service

import (
	"time"

	"github.com/dafibh/eventcore/internal/domain"
)

// OverrideService implements the Override Packager & Validator (C5).
type OverrideService struct {
	blueprints domain.BlueprintRepository
	instances domain.InstanceRepository
}

func NewOverrideService(blueprints domain.BlueprintRepository, instances domain.InstanceRepository) *OverrideService {
	return &OverrideService{blueprints: blueprints, instances: instances}
}

// ApplyOverrides packages in against inst's current overrides, validates the
// resulting effective event, and persists the instance on success.
func (s *OverrideService) ApplyOverrides(instanceID string, in domain.OverridesInput, now time.Time) (*domain.EventInstance, error) {
	inst, err := s.instances.GetByID(instanceID)
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

	newOverrides, newTracker, err := domain.PackageOverrides(bp, inst.Overrides, inst.OverridesTracker, in)
	if err != nil {
		return nil, err
	}

	updated := *inst
	updated.Overrides = newOverrides
	updated.OverridesTracker = newTracker
	if newTracker[domain.OverrideGroupDate] && newOverrides.Date != nil {
		updated.ScheduledDate = *newOverrides.Date
		updated.OverridesDateUpdatedOn = now
	} else if !newTracker[domain.OverrideGroupDate] {
		updated.ScheduledDate = updated.TargetDate
	}

	eff := domain.ComputeEffectiveEvent(bp, &updated)
	skipFutureCheck := !newTracker[domain.OverrideGroupDate]
	if err := domain.ValidateEffectiveEvent(eff, now, skipFutureCheck); err != nil {
		return nil, err
	}

	return s.instances.Update(&updated)
}

// EffectiveEvent exposes the merged read view for handlers.
func (s *OverrideService) EffectiveEvent(instanceID string) (*domain.EventInstance, domain.EffectiveEvent, error) {
	inst, err := s.instances.GetByID(instanceID)
	if err != nil {
		return nil, domain.EffectiveEvent{}, err
	}
	if inst == nil {
		return nil, domain.EffectiveEvent{}, domain.ErrInstanceNotFound
	}
	bp, err := s.blueprints.GetByID(inst.BlueprintID)
	if err != nil {
		return nil, domain.EffectiveEvent{}, err
	}
	if bp == nil {
		return nil, domain.EffectiveEvent{}, domain.ErrBlueprintNotFound
	}
	return inst, domain.ComputeEffectiveEvent(bp, inst), nil
}
