package service

import (
	"time"

	"github.com/google/uuid"

	"github.com/dafibh/eventcore/internal/domain"
)

// BlueprintService implements the Event Blueprint component (C3): field
// validation and persistence, wired to the projection engine so a freshly
// created or edited blueprint immediately (re)materializes its instances.
type BlueprintService struct {
	blueprints domain.BlueprintRepository
	projection *ProjectionService
	refunds *RefundService
	snapshots *SnapshotService
}

func NewBlueprintService(blueprints domain.BlueprintRepository, projection *ProjectionService, refunds *RefundService, snapshots *SnapshotService) *BlueprintService {
	return &BlueprintService{blueprints: blueprints, projection: projection, refunds: refunds, snapshots: snapshots}
}

// Create validates and persists a new blueprint, then runs the publish loop
// so it immediately has a window of future instances.
func (s *BlueprintService) Create(b *domain.EventBlueprint, now time.Time) (*domain.EventBlueprint, error) {
	b.ID = uuid.NewString()
	b.UpdatedOn = now
	b.AnchorIndex = 0
	if err := domain.ValidateBlueprint(b, now, false); err != nil {
		return nil, err
	}
	created, err := s.blueprints.Create(b)
	if err != nil {
		return nil, err
	}
	if _, err := s.projection.PublishFuture(created, now); err != nil {
		return created, err
	}
	return created, nil
}

func (s *BlueprintService) GetByID(id string) (*domain.EventBlueprint, error) {
	b, err := s.blueprints.GetByID(id)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, domain.ErrBlueprintNotFound
	}
	return b, nil
}

// Update validates and persists a blueprint edit. When the origin date or
// recurrence changed, it recomputes instance dates before running the
// publish loop again to fill any newly opened slots (e.g. max_published
// increased).
func (s *BlueprintService) Update(updated *domain.EventBlueprint, now time.Time) (*domain.EventBlueprint, error) {
	existing, err := s.GetByID(updated.ID)
	if err != nil {
		return nil, err
	}

	dateOrRecurrenceChanged := !updated.Date.Equal(existing.Date) || updated.Recurring != existing.Recurring
	updated.UpdatedOn = now
	updated.AnchorIndex = existing.AnchorIndex

	if err := domain.ValidateBlueprint(updated, now, !dateOrRecurrenceChanged); err != nil {
		return nil, err
	}

	saved, err := s.blueprints.Update(updated)
	if err != nil {
		return nil, err
	}

	if dateOrRecurrenceChanged {
		newAnchor, err := s.projection.RecalculateOnEdit(saved, now)
		if err != nil {
			return saved, err
		}
		saved.AnchorIndex = newAnchor
		if saved, err = s.blueprints.Update(saved); err != nil {
			return saved, err
		}
	}

	if _, err := s.projection.PublishFuture(saved, now); err != nil {
		return saved, err
	}
	return saved, nil
}

// ListPublishing returns every currently-publishing blueprint.
func (s *BlueprintService) ListPublishing() ([]*domain.EventBlueprint, error) {
	return s.blueprints.ListPublishing()
}

// Delete implements the blueprint-deletion sequence and: refund
// every upcoming paid line, write a durable snapshot, then delete every
// instance before deleting the blueprint itself. The snapshot write happens
// before deletion and aborts the whole operation on failure.
func (s *BlueprintService) Delete(id string, adminUID string, now time.Time) error {
	b, err := s.GetByID(id)
	if err != nil {
		return err
	}

	instances, err := s.projection.instances.ListAllByBlueprint(id)
	if err != nil {
		return err
	}

	if err := s.refunds.RefundUpcomingForDeletion(b, instances, adminUID, now); err != nil {
		return err
	}

	if err := s.snapshots.WriteDeletionSnapshot(b, instances, now); err != nil {
		return domain.WrapError(domain.KindValidationFailed, "snapshot write failed, deletion aborted", err)
	}

	for _, inst := range instances {
		if err := s.projection.instances.Delete(inst.ID); err != nil {
			return err
		}
	}

	return s.blueprints.Delete(id)
}
