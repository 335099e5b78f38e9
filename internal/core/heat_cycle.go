package core

import (
	"context"
	"herdcore/pkg/domain"
	"strings"
	"time"
)

// HeatObservationInput describes a heat seen on a dam.
type HeatObservationInput struct {
	DamID        string
	ObservedDate time.Time
	Intensity    domain.HeatIntensity
	Notes        string
}

func validIntensity(i domain.HeatIntensity) bool {
	switch i {
	case domain.IntensityWeak, domain.IntensityModerate, domain.IntensityStrong, domain.IntensityStandingHeat:
		return true
	}
	return false
}

func (s *Service) validateObservation(date time.Time, intensity domain.HeatIntensity) error {
	if date.IsZero() {
		return domain.Invalid("observed_date", "is required")
	}
	if domain.Date(date).After(s.today()) {
		return domain.Invalid("observed_date", "%s is in the future", date.Format(time.DateOnly))
	}
	if !validIntensity(intensity) {
		return domain.Invalid("intensity", "unknown value %q", intensity)
	}
	return nil
}

// RecordHeatObservation stores an observed heat and predicts the next one
// 21 days later.
func (s *Service) RecordHeatObservation(ctx context.Context, in HeatObservationInput) (HeatCycle, Result, error) {
	var created HeatCycle
	res, err := s.run(ctx, opRecordHeatObservation, func(tx Transaction) (string, error) {
		if _, err := scopedDam(ctx, tx, in.DamID); err != nil {
			return "", err
		}
		if err := s.validateObservation(in.ObservedDate, in.Intensity); err != nil {
			return "", err
		}
		var err error
		created, err = tx.CreateHeatCycle(HeatCycle{
			DamID:            in.DamID,
			ObservedDate:     domain.DatePtr(in.ObservedDate),
			Intensity:        in.Intensity,
			NextExpectedDate: domain.AddDays(in.ObservedDate, domain.EstrousCycleDays),
			Notes:            strings.TrimSpace(in.Notes),
			Source:           domain.HeatSourceObserved,
		})
		return created.ID, err
	})
	return created, res, err
}

// ConfirmScheduledHeat records that a predicted cycle has actually been
// observed, making it a regular observed cycle.
func (s *Service) ConfirmScheduledHeat(ctx context.Context, id string, observedDate time.Time, intensity domain.HeatIntensity) (HeatCycle, Result, error) {
	var updated HeatCycle
	res, err := s.run(ctx, opConfirmScheduledHeat, func(tx Transaction) (string, error) {
		cycle, err := scopedHeatCycle(ctx, tx, id)
		if err != nil {
			return id, err
		}
		if cycle.Observed() {
			return id, domain.Conflict(domain.EntityHeatCycle, id, "already observed on %s", cycle.ObservedDate.Format(time.DateOnly))
		}
		if err := s.validateObservation(observedDate, intensity); err != nil {
			return id, err
		}
		updated, err = tx.UpdateHeatCycle(id, func(h *HeatCycle) error {
			h.ObservedDate = domain.DatePtr(observedDate)
			h.Intensity = intensity
			h.NextExpectedDate = domain.AddDays(observedDate, domain.EstrousCycleDays)
			return nil
		})
		return id, err
	})
	return updated, res, err
}

// ReleaseHeatCycle clears the inseminated flag of a cycle that no active
// insemination holds, typically after a mistaken insemination was deleted.
// A zero asOf means today.
func (s *Service) ReleaseHeatCycle(ctx context.Context, id string, asOf time.Time) (HeatCycle, Result, error) {
	if asOf.IsZero() {
		asOf = s.today()
	}
	var updated HeatCycle
	res, err := s.run(ctx, opReleaseHeatCycle, func(tx Transaction) (string, error) {
		if _, err := scopedHeatCycle(ctx, tx, id); err != nil {
			return id, err
		}
		if domain.Date(asOf).After(s.today()) {
			return id, domain.Invalid("as_of", "%s is in the future", asOf.Format(time.DateOnly))
		}
		if holder, held := heldByOther(tx, id, ""); held {
			return id, domain.Conflict(domain.EntityHeatCycle, id, "still held by insemination %s", holder.ID)
		}
		var err error
		updated, err = releaseHeatCycle(tx, id, asOf)
		return id, err
	})
	return updated, res, err
}

// DeleteHeatCycle removes a cycle that no insemination references.
func (s *Service) DeleteHeatCycle(ctx context.Context, id string) (Result, error) {
	return s.run(ctx, opDeleteHeatCycle, func(tx Transaction) (string, error) {
		if _, err := scopedHeatCycle(ctx, tx, id); err != nil {
			return id, err
		}
		if refs := tx.ListInseminationsByHeatCycle(id); len(refs) > 0 {
			return id, domain.Conflict(domain.EntityHeatCycle, id, "referenced by insemination %s", refs[0].ID)
		}
		return id, tx.DeleteHeatCycle(id)
	})
}

// ListHeatCycles returns the dam's cycles ordered by expected date.
func (s *Service) ListHeatCycles(ctx context.Context, damID string) ([]HeatCycle, error) {
	var out []HeatCycle
	err := s.view(ctx, func(view TransactionView) error {
		if _, err := scopedAnimal(ctx, view, damID); err != nil {
			return err
		}
		out = view.ListHeatCyclesByDam(damID)
		return nil
	})
	return out, err
}

// NextExpectedHeat returns the latest predicted heat among the dam's cycles
// that are not currently consumed. ok is false when no such cycle exists.
func (s *Service) NextExpectedHeat(ctx context.Context, damID string) (next time.Time, ok bool, err error) {
	err = s.view(ctx, func(view TransactionView) error {
		if _, err := scopedAnimal(ctx, view, damID); err != nil {
			return err
		}
		for _, cycle := range view.ListHeatCyclesByDam(damID) {
			if cycle.Inseminated {
				continue
			}
			next, ok = cycle.NextExpectedDate, true
		}
		return nil
	})
	return next, ok, err
}

// scheduleNextFromDelivery predicts the postpartum heat of a dam.
func scheduleNextFromDelivery(tx Transaction, damID string, deliveryDate time.Time, deliveryID string) (HeatCycle, error) {
	source := deliveryID
	return tx.CreateHeatCycle(HeatCycle{
		DamID:            damID,
		NextExpectedDate: domain.AddDays(deliveryDate, domain.PostpartumHeatDays),
		Source:           domain.HeatSourceScheduled,
		SourceDeliveryID: &source,
	})
}

// releaseHeatCycle frees a cycle and restarts its prediction from asOf.
func releaseHeatCycle(tx Transaction, id string, asOf time.Time) (HeatCycle, error) {
	cycle, ok := tx.FindHeatCycle(id)
	if !ok {
		return HeatCycle{}, domain.NotFoundError{Entity: domain.EntityHeatCycle, ID: id}
	}
	next := domain.AddDays(asOf, domain.EstrousCycleDays)
	if !cycle.Inseminated && cycle.NextExpectedDate.Equal(next) {
		return cycle, nil
	}
	return tx.UpdateHeatCycle(id, func(h *HeatCycle) error {
		h.Inseminated = false
		h.NextExpectedDate = next
		return nil
	})
}

// consumeHeatCycle flags a cycle as taken by an insemination.
func consumeHeatCycle(tx Transaction, id string) (HeatCycle, error) {
	cycle, ok := tx.FindHeatCycle(id)
	if !ok {
		return HeatCycle{}, domain.NotFoundError{Entity: domain.EntityHeatCycle, ID: id}
	}
	if cycle.Inseminated {
		return HeatCycle{}, domain.Conflict(domain.EntityHeatCycle, id, "already inseminated")
	}
	return tx.UpdateHeatCycle(id, func(h *HeatCycle) error {
		h.Inseminated = true
		return nil
	})
}

// heldByOther reports an insemination other than except that holds the cycle.
func heldByOther(tx Transaction, cycleID, except string) (Insemination, bool) {
	for _, insem := range tx.ListInseminationsByHeatCycle(cycleID) {
		if insem.ID != except && insem.HoldsHeatCycle() {
			return insem, true
		}
	}
	return Insemination{}, false
}
