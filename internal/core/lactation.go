package core

import (
	"context"
	"herdcore/pkg/domain"
	"time"

	"github.com/shopspring/decimal"
)

// openLactation starts the dam's next numbered lactation. A dam may only have
// one Ongoing lactation.
func openLactation(tx Transaction, damID string, start time.Time, deliveryID string) (Lactation, error) {
	existing := tx.ListLactationsByDam(damID)
	for _, l := range existing {
		if l.Status == domain.LactationOngoing {
			return Lactation{}, domain.Conflict(domain.EntityLactation, l.ID, "dam %s already has ongoing lactation %d", damID, l.LactationNumber)
		}
	}
	source := deliveryID
	return tx.CreateLactation(Lactation{
		DamID:            damID,
		LactationNumber:  len(existing) + 1,
		StartDate:        domain.Date(start),
		Status:           domain.LactationOngoing,
		TotalMilkKg:      decimal.Zero,
		SourceDeliveryID: &source,
	})
}

// CloseLactation dries off a lactation and records its total yield.
func (s *Service) CloseLactation(ctx context.Context, id string, dryOffDate time.Time, totalMilkKg decimal.Decimal) (Lactation, Result, error) {
	var updated Lactation
	res, err := s.run(ctx, opCloseLactation, func(tx Transaction) (string, error) {
		current, err := scopedLactation(ctx, tx, id)
		if err != nil {
			return id, err
		}
		if current.Status == domain.LactationCompleted {
			return id, domain.Conflict(domain.EntityLactation, id, "already completed")
		}
		if dryOffDate.IsZero() {
			return id, domain.Invalid("dry_off_date", "is required")
		}
		dry := domain.Date(dryOffDate)
		switch {
		case dry.Before(current.StartDate):
			return id, domain.Invalid("dry_off_date", "%s is before the start date %s", dry.Format(time.DateOnly), current.StartDate.Format(time.DateOnly))
		case dry.After(s.today()):
			return id, domain.Invalid("dry_off_date", "%s is in the future", dry.Format(time.DateOnly))
		case current.PeakDate != nil && dry.Before(*current.PeakDate):
			return id, domain.Invalid("dry_off_date", "%s is before the peak date %s", dry.Format(time.DateOnly), current.PeakDate.Format(time.DateOnly))
		case totalMilkKg.IsNegative():
			return id, domain.Invalid("total_milk_kg", "cannot be negative")
		}
		updated, err = tx.UpdateLactation(id, func(l *Lactation) error {
			l.Status = domain.LactationCompleted
			l.DryOffDate = &dry
			l.TotalMilkKg = totalMilkKg
			return nil
		})
		return id, err
	})
	return updated, res, err
}

// RecordLactationPeak stores the date of peak yield of an ongoing lactation.
func (s *Service) RecordLactationPeak(ctx context.Context, id string, peakDate time.Time) (Lactation, Result, error) {
	var updated Lactation
	res, err := s.run(ctx, opRecordLactationPeak, func(tx Transaction) (string, error) {
		current, err := scopedLactation(ctx, tx, id)
		if err != nil {
			return id, err
		}
		if current.Status == domain.LactationCompleted {
			return id, domain.Conflict(domain.EntityLactation, id, "already completed")
		}
		if peakDate.IsZero() {
			return id, domain.Invalid("peak_date", "is required")
		}
		peak := domain.Date(peakDate)
		if peak.Before(current.StartDate) || peak.After(s.today()) {
			return id, domain.Invalid("peak_date", "%s must fall between %s and today", peak.Format(time.DateOnly), current.StartDate.Format(time.DateOnly))
		}
		updated, err = tx.UpdateLactation(id, func(l *Lactation) error {
			l.PeakDate = &peak
			return nil
		})
		return id, err
	})
	return updated, res, err
}

// ListLactations returns the dam's lactations ordered by number.
func (s *Service) ListLactations(ctx context.Context, damID string) ([]Lactation, error) {
	var out []Lactation
	err := s.view(ctx, func(view TransactionView) error {
		if _, err := scopedAnimal(ctx, view, damID); err != nil {
			return err
		}
		out = view.ListLactationsByDam(damID)
		return nil
	})
	return out, err
}
