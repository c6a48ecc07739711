package service

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dafibh/eventcore/internal/domain"
)

// ProjectionService implements the Instance Projection Engine (C4): it
// materializes EventInstances to maintain a rolling window of max_published
// future occurrences per blueprint, and recomputes dates when a blueprint's
// origin date or recurrence changes.
type ProjectionService struct {
	instances domain.InstanceRepository

	// publishMu is the process-wide publish mutex: held only across the
	// read-count-insert sequence for a single blueprint, so concurrent
	// publishes cannot double-insert the same series_index.
	publishMu sync.Mutex
}

func NewProjectionService(instances domain.InstanceRepository) *ProjectionService {
	return &ProjectionService{instances: instances}
}

// ListFuture returns every instance for blueprintID not yet in the past.
func (s *ProjectionService) ListFuture(blueprintID string, now time.Time) ([]*domain.EventInstance, error) {
	return s.instances.ListFutureByBlueprint(blueprintID, now)
}

// ListAll returns every instance projected for blueprintID, past and future.
func (s *ProjectionService) ListAll(blueprintID string) ([]*domain.EventInstance, error) {
	return s.instances.ListAllByBlueprint(blueprintID)
}

// ComputeTargetDate implements the date arithmetic: given an origin
// date anchored at anchorIndex, derive the date for seriesIndex under the
// blueprint's recurrence rule. All arithmetic preserves time-of-day and
// timezone of origin.
func ComputeTargetDate(origin time.Time, recurrence domain.Recurrence, anchorIndex, seriesIndex int) time.Time {
	delta := seriesIndex - anchorIndex
	switch recurrence {
	case domain.RecurrenceDaily:
		return origin.AddDate(0, 0, delta)
	case domain.RecurrenceWeekly:
		return origin.AddDate(0, 0, 7*delta)
	case domain.RecurrenceMonthly:
		return addMonthsClamped(origin, delta)
	case domain.RecurrenceYearly:
		return addYearsClamped(origin, delta)
	default: // RecurrenceNone: exactly one instance at D0
		return origin
	}
}

// addMonthsClamped adds months calendar months to origin, clamping the day
// to the target month's last day when it doesn't exist there (e.g. Jan 31 +
// 1 month -> Feb 28/29). Grounded on the month-end-via-day-zero trick.
func addMonthsClamped(origin time.Time, months int) time.Time {
	y, m, d := origin.Date()
	total := int(m) - 1 + months
	targetYear := y + total/12
	targetIdx := total % 12
	if targetIdx < 0 {
		targetIdx += 12
		targetYear--
	}
	targetMonth := time.Month(targetIdx + 1)
	lastDay := time.Date(targetYear, targetMonth+1, 0, 0, 0, 0, 0, origin.Location()).Day()
	day := d
	if day > lastDay {
		day = lastDay
	}
	return time.Date(targetYear, targetMonth, day, origin.Hour(), origin.Minute(), origin.Second(), origin.Nanosecond(), origin.Location())
}

// addYearsClamped adds years to origin, clamping Feb 29 to Feb 28 in years
// that aren't leap years.
func addYearsClamped(origin time.Time, years int) time.Time {
	y, m, d := origin.Date()
	targetYear := y + years
	if m == time.February && d == 29 && !isLeapYear(targetYear) {
		d = 28
	}
	return time.Date(targetYear, m, d, origin.Hour(), origin.Minute(), origin.Second(), origin.Nanosecond(), origin.Location())
}

func isLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// PublishFuture runs the publish loop for one blueprint, returning
// the number of instances inserted.
func (s *ProjectionService) PublishFuture(bp *domain.EventBlueprint, now time.Time) (int, error) {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	future, err := s.instances.ListFutureByBlueprint(bp.ID, now)
	if err != nil {
		return 0, err
	}
	need := bp.MaxPublished - len(future)
	if need <= 0 {
		return 0, nil
	}

	maxIdx, err := s.instances.MaxSeriesIndex(bp.ID)
	if err != nil {
		return 0, err
	}
	nextIndex := maxIdx + 1
	if nextIndex < bp.AnchorIndex {
		nextIndex = bp.AnchorIndex
	}

	for j := 0; j < need; j++ {
		idx := nextIndex + j
		date := ComputeTargetDate(bp.Date, bp.Recurring, bp.AnchorIndex, idx)
		inst := &domain.EventInstance{
			ID: uuid.NewString(),
			BlueprintID: bp.ID,
			SeriesIndex: idx,
			RegistrationDetails: make(map[string]domain.RegistrationDetails),
			TargetDate: date,
			ScheduledDate: date,
			OverridesDateUpdatedOn: bp.UpdatedOn,
		}
		if _, err := s.instances.Create(inst); err != nil {
			return j, err
		}
	}
	return need, nil
}

// RecalculateOnEdit implements recalculation on blueprint edit: when
// date or recurring changes, past instances are untouched; each future
// instance's target_date is recomputed from a new anchor index equal to the
// series_index of the earliest remaining future instance. Instances without
// an active G4 override follow the shift; instances with one keep their
// administrator-chosen date. It returns the new anchor index to persist on
// the blueprint.
func (s *ProjectionService) RecalculateOnEdit(bp *domain.EventBlueprint, now time.Time) (int, error) {
	future, err := s.instances.ListFutureByBlueprint(bp.ID, now)
	if err != nil {
		return bp.AnchorIndex, err
	}
	if len(future) == 0 {
		return bp.AnchorIndex, nil
	}

	newAnchor := future[0].SeriesIndex
	for _, inst := range future {
		if inst.SeriesIndex < newAnchor {
			newAnchor = inst.SeriesIndex
		}
	}

	for _, inst := range future {
		inst.TargetDate = ComputeTargetDate(bp.Date, bp.Recurring, newAnchor, inst.SeriesIndex)
		if !inst.HasDateOverride() {
			inst.ScheduledDate = inst.TargetDate
			inst.OverridesDateUpdatedOn = bp.UpdatedOn
		}
		if _, err := s.instances.Update(inst); err != nil {
			return newAnchor, err
		}
	}
	return newAnchor, nil
}
