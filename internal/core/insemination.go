package core

import (
	"context"
	"herdcore/pkg/domain"
	"strings"
	"time"
)

// InseminationInput describes a breeding attempt. Natural service names a
// sire; AI names a straw.
type InseminationInput struct {
	DamID       string
	SireID      string
	SemenID     string
	HeatCycleID string
	Method      domain.BreedingMethod
	Date        time.Time
	Notes       string
}

// CreateInsemination records a breeding attempt on a heat cycle. The cycle is
// consumed and, for AI, the straw is marked used in the same transaction.
func (s *Service) CreateInsemination(ctx context.Context, in InseminationInput) (Insemination, Result, error) {
	var created Insemination
	res, err := s.run(ctx, opCreateInsemination, func(tx Transaction) (string, error) {
		dam, err := scopedDam(ctx, tx, in.DamID)
		if err != nil {
			return "", err
		}
		if in.Date.IsZero() {
			return "", domain.Invalid("insemination_date", "is required")
		}
		date := domain.Date(in.Date)
		if date.After(s.today()) {
			return "", domain.Invalid("insemination_date", "%s is in the future", date.Format(time.DateOnly))
		}

		cycle, ok := tx.FindHeatCycle(in.HeatCycleID)
		if !ok {
			return "", domain.NotFoundError{Entity: domain.EntityHeatCycle, ID: in.HeatCycleID}
		}
		if cycle.DamID != dam.ID {
			return "", domain.Invalid("heat_cycle_id", "heat cycle %s does not belong to dam %s", cycle.ID, dam.ID)
		}
		if cycle.Inseminated {
			return "", domain.Conflict(domain.EntityHeatCycle, cycle.ID, "already inseminated")
		}
		if cycle.ObservedDate != nil && date.Before(*cycle.ObservedDate) {
			return "", domain.Invalid("insemination_date", "%s is before the heat observed on %s", date.Format(time.DateOnly), cycle.ObservedDate.Format(time.DateOnly))
		}

		insem := Insemination{
			DamID:                dam.ID,
			HeatCycleID:          cycle.ID,
			Method:               in.Method,
			InseminationDate:     date,
			ExpectedDeliveryDate: domain.DatePtr(domain.ExpectedDeliveryDate(dam.Species, date)),
			Status:               domain.StatusPending,
			Notes:                strings.TrimSpace(in.Notes),
		}
		switch in.Method {
		case domain.MethodNatural:
			if in.SireID == "" || in.SemenID != "" {
				return "", domain.Invalid("sire_id", "natural service requires a sire and no semen straw")
			}
			if err := validateSire(ctx, tx, dam, in.SireID); err != nil {
				return "", err
			}
			sire := in.SireID
			insem.SireID = &sire
		case domain.MethodAI:
			if in.SemenID == "" || in.SireID != "" {
				return "", domain.Invalid("semen_id", "artificial insemination requires a semen straw and no sire")
			}
			if _, err := scopedStraw(ctx, tx, in.SemenID); err != nil {
				return "", err
			}
			semen := in.SemenID
			insem.SemenID = &semen
		default:
			return "", domain.Invalid("breeding_method", "unknown value %q", in.Method)
		}

		created, err = tx.CreateInsemination(insem)
		if err != nil {
			return "", err
		}
		if _, err := consumeHeatCycle(tx, cycle.ID); err != nil {
			return created.ID, err
		}
		if insem.SemenID != nil {
			if _, err := consumeStraw(tx, *insem.SemenID, dam.FarmerID, date); err != nil {
				return created.ID, err
			}
		}
		return created.ID, nil
	})
	return created, res, err
}

func validateSire(ctx context.Context, view domain.RuleView, dam Animal, sireID string) error {
	if sireID == dam.ID {
		return domain.Invalid("sire_id", "sire and dam are the same animal")
	}
	sire, err := scopedAnimal(ctx, view, sireID)
	if err != nil {
		return err
	}
	if sire.Sex != domain.SexMale {
		return domain.Invalid("sire_id", "animal %s is not male", sire.ID)
	}
	return nil
}

// MarkInseminationFailed closes a breeding attempt by hand. The heat cycle is
// released as of date; a zero date means today.
func (s *Service) MarkInseminationFailed(ctx context.Context, id string, date time.Time, note string) (Insemination, Result, error) {
	if date.IsZero() {
		date = s.today()
	}
	var updated Insemination
	res, err := s.run(ctx, opMarkInseminationFail, func(tx Transaction) (string, error) {
		insem, _, err := scopedInsemination(ctx, tx, id)
		if err != nil {
			return id, err
		}
		switch {
		case insem.Status == domain.StatusDelivered:
			return id, domain.Conflict(domain.EntityInsemination, id, "already delivered")
		case insem.ClosedManually:
			return id, domain.Conflict(domain.EntityInsemination, id, "already closed")
		}
		date = domain.Date(date)
		if date.After(s.today()) {
			return id, domain.Invalid("date", "%s is in the future", date.Format(time.DateOnly))
		}
		if date.Before(insem.InseminationDate) {
			return id, domain.Invalid("date", "%s is before the insemination date", date.Format(time.DateOnly))
		}
		updated, err = tx.UpdateInsemination(id, func(i *Insemination) error {
			i.Status = domain.StatusFailed
			i.ClosedManually = true
			i.ExpectedDeliveryDate = nil
			if note = strings.TrimSpace(note); note != "" {
				i.Notes = strings.TrimSpace(i.Notes + "\n" + note)
			}
			return nil
		})
		if err != nil {
			return id, err
		}
		if insem.HoldsHeatCycle() {
			if _, err := releaseHeatCycle(tx, insem.HeatCycleID, date); err != nil {
				return id, err
			}
		}
		return id, nil
	})
	return updated, res, err
}

// DeleteInsemination removes a mistaken insemination and its pregnancy
// checks. The heat cycle and straw stay consumed; ReleaseHeatCycle frees the
// cycle explicitly.
func (s *Service) DeleteInsemination(ctx context.Context, id string) (Result, error) {
	return s.run(ctx, opDeleteInsemination, func(tx Transaction) (string, error) {
		if _, _, err := scopedInsemination(ctx, tx, id); err != nil {
			return id, err
		}
		if delivery, ok := tx.FindDeliveryByInsemination(id); ok {
			return id, domain.Conflict(domain.EntityInsemination, id, "delivery %s exists", delivery.ID)
		}
		for _, check := range tx.ListPregnancyChecksByInsemination(id) {
			if err := tx.DeletePregnancyCheck(check.ID); err != nil {
				return id, err
			}
		}
		return id, tx.DeleteInsemination(id)
	})
}

// GetInsemination returns one insemination.
func (s *Service) GetInsemination(ctx context.Context, id string) (Insemination, error) {
	var out Insemination
	err := s.view(ctx, func(view TransactionView) error {
		var err error
		out, _, err = scopedInsemination(ctx, view, id)
		return err
	})
	return out, err
}

// ListInseminations returns the dam's inseminations ordered by date.
func (s *Service) ListInseminations(ctx context.Context, damID string) ([]Insemination, error) {
	var out []Insemination
	err := s.view(ctx, func(view TransactionView) error {
		if _, err := scopedAnimal(ctx, view, damID); err != nil {
			return err
		}
		out = view.ListInseminationsByDam(damID)
		return nil
	})
	return out, err
}
