package core

import (
	"context"
	"herdcore/pkg/domain"
	"strings"
	"time"
)

// PregnancyCheckInput is one confirmation entry. ExpectedDeliveryDate is only
// kept for Pregnant results; when absent the gestation length applies.
type PregnancyCheckInput struct {
	InseminationID       string
	CheckDate            time.Time
	Method               domain.CheckMethod
	Result               domain.CheckResult
	FetusCount           *int
	ExpectedDeliveryDate *time.Time
	Notes                string
}

func (s *Service) validateCheck(insem Insemination, in PregnancyCheckInput) error {
	if in.CheckDate.IsZero() {
		return domain.Invalid("check_date", "is required")
	}
	date := domain.Date(in.CheckDate)
	if !date.After(insem.InseminationDate) {
		return domain.Invalid("check_date", "%s must be after the insemination date %s", date.Format(time.DateOnly), insem.InseminationDate.Format(time.DateOnly))
	}
	if date.After(s.today()) {
		return domain.Invalid("check_date", "%s is in the future", date.Format(time.DateOnly))
	}
	switch in.Method {
	case domain.CheckUltrasound, domain.CheckPalpation, domain.CheckBloodTest, domain.CheckObservation:
	default:
		return domain.Invalid("method", "unknown value %q", in.Method)
	}
	switch in.Result {
	case domain.ResultPregnant:
		if in.FetusCount != nil && *in.FetusCount < 1 {
			return domain.Invalid("fetus_count", "must be at least 1 for a pregnant result")
		}
		if in.ExpectedDeliveryDate != nil && !domain.Date(*in.ExpectedDeliveryDate).After(date) {
			return domain.Invalid("expected_delivery_date", "must be after the check date")
		}
	case domain.ResultNotPregnant, domain.ResultReabsorbed:
		if in.FetusCount != nil && *in.FetusCount < 0 {
			return domain.Invalid("fetus_count", "cannot be negative")
		}
	default:
		return domain.Invalid("result", "unknown value %q", in.Result)
	}
	return nil
}

func checkAllowed(insem Insemination) error {
	switch {
	case insem.Status == domain.StatusDelivered:
		return domain.Conflict(domain.EntityInsemination, insem.ID, "already delivered")
	case insem.ClosedManually:
		return domain.Conflict(domain.EntityInsemination, insem.ID, "closed manually")
	}
	return nil
}

func applyCheckInput(c *PregnancyCheck, in PregnancyCheckInput) {
	c.CheckDate = domain.Date(in.CheckDate)
	c.Method = in.Method
	c.Result = in.Result
	c.Notes = strings.TrimSpace(in.Notes)
	c.FetusCount = nil
	if in.FetusCount != nil {
		n := *in.FetusCount
		c.FetusCount = &n
	}
	c.ExpectedDeliveryDate = nil
	if in.Result == domain.ResultPregnant && in.ExpectedDeliveryDate != nil {
		c.ExpectedDeliveryDate = domain.DatePtr(*in.ExpectedDeliveryDate)
	}
}

// RecordPregnancyCheck appends a check and recomputes the insemination status
// from the whole journal.
func (s *Service) RecordPregnancyCheck(ctx context.Context, in PregnancyCheckInput) (PregnancyCheck, Result, error) {
	var created PregnancyCheck
	res, err := s.run(ctx, opRecordPregnancyCheck, func(tx Transaction) (string, error) {
		insem, dam, err := scopedInsemination(ctx, tx, in.InseminationID)
		if err != nil {
			return "", err
		}
		if err := checkAllowed(insem); err != nil {
			return "", err
		}
		if err := s.validateCheck(insem, in); err != nil {
			return "", err
		}
		check := PregnancyCheck{InseminationID: insem.ID}
		applyCheckInput(&check, in)
		created, err = tx.CreatePregnancyCheck(check)
		if err != nil {
			return "", err
		}
		return created.ID, reconcileInsemination(tx, insem.ID, dam.Species)
	})
	return created, res, err
}

// UpdatePregnancyCheck corrects a check and recomputes the insemination.
func (s *Service) UpdatePregnancyCheck(ctx context.Context, id string, in PregnancyCheckInput) (PregnancyCheck, Result, error) {
	var updated PregnancyCheck
	res, err := s.run(ctx, opUpdatePregnancyCheck, func(tx Transaction) (string, error) {
		current, ok := tx.FindPregnancyCheck(id)
		if !ok {
			return id, domain.NotFoundError{Entity: domain.EntityPregnancyCheck, ID: id}
		}
		if in.InseminationID != "" && in.InseminationID != current.InseminationID {
			return id, domain.Invalid("insemination_id", "a check cannot move to another insemination")
		}
		insem, dam, err := scopedInsemination(ctx, tx, current.InseminationID)
		if err != nil {
			return id, domain.NotFoundError{Entity: domain.EntityPregnancyCheck, ID: id}
		}
		if err := checkAllowed(insem); err != nil {
			return id, err
		}
		if err := s.validateCheck(insem, in); err != nil {
			return id, err
		}
		updated, err = tx.UpdatePregnancyCheck(id, func(c *PregnancyCheck) error {
			applyCheckInput(c, in)
			return nil
		})
		if err != nil {
			return id, err
		}
		return id, reconcileInsemination(tx, insem.ID, dam.Species)
	})
	return updated, res, err
}

// DeletePregnancyCheck removes a check and recomputes the insemination from
// the remaining journal.
func (s *Service) DeletePregnancyCheck(ctx context.Context, id string) (Result, error) {
	return s.run(ctx, opDeletePregnancyCheck, func(tx Transaction) (string, error) {
		current, ok := tx.FindPregnancyCheck(id)
		if !ok {
			return id, domain.NotFoundError{Entity: domain.EntityPregnancyCheck, ID: id}
		}
		insem, dam, err := scopedInsemination(ctx, tx, current.InseminationID)
		if err != nil {
			return id, domain.NotFoundError{Entity: domain.EntityPregnancyCheck, ID: id}
		}
		if err := checkAllowed(insem); err != nil {
			return id, err
		}
		if err := tx.DeletePregnancyCheck(id); err != nil {
			return id, err
		}
		return id, reconcileInsemination(tx, insem.ID, dam.Species)
	})
}

// ListPregnancyChecks returns the journal of an insemination ordered by check date.
func (s *Service) ListPregnancyChecks(ctx context.Context, inseminationID string) ([]PregnancyCheck, error) {
	var out []PregnancyCheck
	err := s.view(ctx, func(view TransactionView) error {
		if _, _, err := scopedInsemination(ctx, view, inseminationID); err != nil {
			return err
		}
		out = view.ListPregnancyChecksByInsemination(inseminationID)
		return nil
	})
	return out, err
}

// reconcileInsemination derives status and due date from the latest check,
// then consumes or releases the heat cycle to match.
func reconcileInsemination(tx Transaction, id, species string) error {
	insem, ok := tx.FindInsemination(id)
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityInsemination, ID: id}
	}

	status := domain.StatusPending
	expected := domain.DatePtr(domain.ExpectedDeliveryDate(species, insem.InseminationDate))
	var releaseAsOf time.Time
	if checks := tx.ListPregnancyChecksByInsemination(id); len(checks) > 0 {
		latest := checks[len(checks)-1]
		switch latest.Result {
		case domain.ResultPregnant:
			status = domain.StatusConfirmedPregnant
			if latest.ExpectedDeliveryDate != nil {
				expected = domain.DatePtr(*latest.ExpectedDeliveryDate)
			}
		case domain.ResultNotPregnant:
			status, expected, releaseAsOf = domain.StatusNotPregnant, nil, latest.CheckDate
		case domain.ResultReabsorbed:
			status, expected, releaseAsOf = domain.StatusFailed, nil, latest.CheckDate
		}
	}

	if insem.Status != status || !sameDate(insem.ExpectedDeliveryDate, expected) {
		var err error
		insem, err = tx.UpdateInsemination(id, func(i *Insemination) error {
			i.Status = status
			i.ExpectedDeliveryDate = expected
			return nil
		})
		if err != nil {
			return err
		}
	}

	cycle, ok := tx.FindHeatCycle(insem.HeatCycleID)
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityHeatCycle, ID: insem.HeatCycleID}
	}
	holder, taken := heldByOther(tx, cycle.ID, insem.ID)
	if insem.HoldsHeatCycle() {
		if taken {
			return domain.Conflict(domain.EntityHeatCycle, cycle.ID, "taken by insemination %s", holder.ID)
		}
		if !cycle.Inseminated {
			_, err := consumeHeatCycle(tx, cycle.ID)
			return err
		}
		return nil
	}
	if taken {
		return nil
	}
	_, err := releaseHeatCycle(tx, cycle.ID, releaseAsOf)
	return err
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
