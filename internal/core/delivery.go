package core

import (
	"context"
	"fmt"
	"herdcore/pkg/domain"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OffspringInput describes one animal born in a delivery. ID is empty for new
// offspring and names an existing one when a delivery is corrected.
type OffspringInput struct {
	ID              string
	Tag             string
	Gender          domain.Sex
	BirthWeightKg   decimal.Decimal
	BirthCondition  domain.BirthCondition
	ColostrumIntake domain.ColostrumIntake
}

// DeliveryInput describes a birth event. A zero TotalBorn is taken from the
// number of offspring.
type DeliveryInput struct {
	InseminationID    string
	ActualDate        time.Time
	Type              domain.DeliveryType
	EaseScore         int
	TotalBorn         int
	Offspring         []OffspringInput
	DamConditionAfter string
	Notes             string
}

// DeliveryRecord is a delivery together with its offspring.
type DeliveryRecord struct {
	Delivery  Delivery    `json:"delivery"`
	Offspring []Offspring `json:"offspring"`
}

func (s *Service) validateDelivery(insem Insemination, in DeliveryInput) error {
	if in.ActualDate.IsZero() {
		return domain.Invalid("actual_delivery_date", "is required")
	}
	date := domain.Date(in.ActualDate)
	if date.After(s.today()) {
		return domain.Invalid("actual_delivery_date", "%s is in the future", date.Format(time.DateOnly))
	}
	if !date.After(insem.InseminationDate) {
		return domain.Invalid("actual_delivery_date", "%s must be after the insemination date %s", date.Format(time.DateOnly), insem.InseminationDate.Format(time.DateOnly))
	}
	switch in.Type {
	case domain.DeliveryNormal, domain.DeliveryAssisted, domain.DeliveryCaesarean, domain.DeliveryAbortion:
	default:
		return domain.Invalid("delivery_type", "unknown value %q", in.Type)
	}
	if in.EaseScore < 1 || in.EaseScore > 5 {
		return domain.Invalid("calving_ease_score", "%d is outside 1..5", in.EaseScore)
	}
	if len(in.Offspring) == 0 {
		return domain.Invalid("offspring", "at least one offspring is required")
	}
	if in.TotalBorn != 0 && in.TotalBorn != len(in.Offspring) {
		return domain.Invalid("total_born", "%d does not match %d offspring", in.TotalBorn, len(in.Offspring))
	}
	for i, o := range in.Offspring {
		field := func(name string) string { return fmt.Sprintf("offspring[%d].%s", i, name) }
		switch o.Gender {
		case domain.SexFemale, domain.SexMale:
		default:
			return domain.Invalid(field("gender"), "unknown value %q", o.Gender)
		}
		switch o.BirthCondition {
		case domain.ConditionVigorous, domain.ConditionWeak, domain.ConditionStillborn:
		default:
			return domain.Invalid(field("birth_condition"), "unknown value %q", o.BirthCondition)
		}
		switch o.ColostrumIntake {
		case "", domain.ColostrumAdequate, domain.ColostrumPartial, domain.ColostrumNone:
		default:
			return domain.Invalid(field("colostrum_intake"), "unknown value %q", o.ColostrumIntake)
		}
		if o.BirthWeightKg.IsNegative() {
			return domain.Invalid(field("birth_weight_kg"), "cannot be negative")
		}
	}
	return nil
}

// checkOffspringTags validates the incoming tag set as a whole: no tag twice,
// and none already carried by the farmer's animals or by offspring of the
// farmer's other deliveries. Offspring of deliveryID are being replaced, so
// their current tags do not count.
func checkOffspringTags(view domain.RuleView, farmerID, deliveryID string, offspring []OffspringInput) error {
	taken := make(map[string]domain.EntityType)
	for _, a := range view.ListAnimals() {
		if a.FarmerID == farmerID && a.Tag != "" {
			taken[a.Tag] = domain.EntityAnimal
		}
	}
	for _, o := range view.ListOffspring() {
		if o.Tag == "" || o.DeliveryID == deliveryID {
			continue
		}
		if d, ok := view.FindDelivery(o.DeliveryID); ok {
			if dam, ok := view.FindAnimal(d.DamID); ok && dam.FarmerID == farmerID {
				taken[o.Tag] = domain.EntityOffspring
			}
		}
	}
	seen := make(map[string]bool, len(offspring))
	for i, o := range offspring {
		tag := strings.TrimSpace(o.Tag)
		if tag == "" {
			continue
		}
		if seen[tag] {
			return domain.Invalid(fmt.Sprintf("offspring[%d].tag", i), "%q is listed twice", tag)
		}
		seen[tag] = true
		if holder, ok := taken[tag]; ok {
			return domain.Conflict(domain.EntityOffspring, o.ID, "tag %q already used by another %s", tag, holder)
		}
	}
	return nil
}

func tally(offspring []OffspringInput) (live, still int) {
	for _, o := range offspring {
		if o.BirthCondition == domain.ConditionStillborn {
			still++
		} else {
			live++
		}
	}
	return live, still
}

func applyOffspringInput(o *Offspring, in OffspringInput) {
	o.Tag = strings.TrimSpace(in.Tag)
	o.Gender = in.Gender
	o.BirthWeightKg = in.BirthWeightKg
	o.BirthCondition = in.BirthCondition
	o.ColostrumIntake = in.ColostrumIntake
}

func applyDeliveryInput(d *Delivery, in DeliveryInput) {
	live, still := tally(in.Offspring)
	d.ActualDeliveryDate = domain.Date(in.ActualDate)
	d.Type = in.Type
	d.CalvingEaseScore = in.EaseScore
	d.TotalBorn = len(in.Offspring)
	d.LiveBorn = live
	d.Stillborn = still
	d.DamConditionAfter = strings.TrimSpace(in.DamConditionAfter)
	d.Notes = strings.TrimSpace(in.Notes)
}

// RecordDelivery closes a confirmed pregnancy. The delivery, its offspring,
// the insemination status, a new lactation, and the postpartum heat cycle
// are written in one transaction.
func (s *Service) RecordDelivery(ctx context.Context, in DeliveryInput) (DeliveryRecord, Result, error) {
	var record DeliveryRecord
	res, err := s.run(ctx, opRecordDelivery, func(tx Transaction) (string, error) {
		insem, dam, err := scopedInsemination(ctx, tx, in.InseminationID)
		if err != nil {
			return "", err
		}
		if insem.Status != domain.StatusConfirmedPregnant {
			return "", domain.Conflict(domain.EntityInsemination, insem.ID, "status is %s, not %s", insem.Status, domain.StatusConfirmedPregnant)
		}
		if existing, ok := tx.FindDeliveryByInsemination(insem.ID); ok {
			return "", domain.Conflict(domain.EntityDelivery, existing.ID, "insemination %s already has a delivery", insem.ID)
		}
		if err := s.validateDelivery(insem, in); err != nil {
			return "", err
		}
		if err := checkOffspringTags(tx, dam.FarmerID, "", in.Offspring); err != nil {
			return "", err
		}

		delivery := Delivery{InseminationID: insem.ID, DamID: dam.ID}
		applyDeliveryInput(&delivery, in)
		record.Delivery, err = tx.CreateDelivery(delivery)
		if err != nil {
			return "", err
		}
		id := record.Delivery.ID
		for _, o := range in.Offspring {
			child := Offspring{DeliveryID: id}
			applyOffspringInput(&child, o)
			created, err := tx.CreateOffspring(child)
			if err != nil {
				return id, err
			}
			record.Offspring = append(record.Offspring, created)
		}
		if _, err := tx.UpdateInsemination(insem.ID, func(i *Insemination) error {
			i.Status = domain.StatusDelivered
			return nil
		}); err != nil {
			return id, err
		}
		if _, err := openLactation(tx, dam.ID, record.Delivery.ActualDeliveryDate, id); err != nil {
			return id, err
		}
		if _, err := scheduleNextFromDelivery(tx, dam.ID, record.Delivery.ActualDeliveryDate, id); err != nil {
			return id, err
		}
		return id, nil
	})
	return record, res, err
}

// UpdateDelivery corrects a delivery and reconciles its offspring by ID:
// missing ones are deleted, known ones updated, new ones inserted. A changed
// delivery date also moves the lactation and the untouched heat cycle it
// created.
func (s *Service) UpdateDelivery(ctx context.Context, id string, in DeliveryInput) (DeliveryRecord, Result, error) {
	var record DeliveryRecord
	res, err := s.run(ctx, opUpdateDelivery, func(tx Transaction) (string, error) {
		current, err := scopedDelivery(ctx, tx, id)
		if err != nil {
			return id, err
		}
		if in.InseminationID != "" && in.InseminationID != current.InseminationID {
			return id, domain.Invalid("insemination_id", "a delivery cannot move to another insemination")
		}
		insem, dam, err := scopedInsemination(ctx, tx, current.InseminationID)
		if err != nil {
			return id, err
		}
		if err := s.validateDelivery(insem, in); err != nil {
			return id, err
		}
		if err := checkOffspringTags(tx, dam.FarmerID, id, in.Offspring); err != nil {
			return id, err
		}

		existing := make(map[string]string)
		for _, o := range tx.ListOffspringByDelivery(id) {
			existing[o.ID] = o.Tag
		}
		keep := make(map[string]bool)
		for _, o := range in.Offspring {
			if o.ID == "" {
				continue
			}
			if _, ok := existing[o.ID]; !ok {
				return id, domain.NotFoundError{Entity: domain.EntityOffspring, ID: o.ID}
			}
			if keep[o.ID] {
				return id, domain.Invalid("offspring", "offspring %s listed twice", o.ID)
			}
			keep[o.ID] = true
		}
		for oid := range existing {
			if !keep[oid] {
				if err := tx.DeleteOffspring(oid); err != nil {
					return id, err
				}
			}
		}
		// Tags may move between offspring of this delivery; release the ones
		// that change before any of them is taken again.
		for _, o := range in.Offspring {
			if o.ID == "" || existing[o.ID] == "" || existing[o.ID] == strings.TrimSpace(o.Tag) {
				continue
			}
			if _, err := tx.UpdateOffspring(o.ID, func(child *Offspring) error {
				child.Tag = ""
				return nil
			}); err != nil {
				return id, err
			}
		}
		for _, o := range in.Offspring {
			if o.ID == "" {
				continue
			}
			if _, err := tx.UpdateOffspring(o.ID, func(child *Offspring) error {
				applyOffspringInput(child, o)
				return nil
			}); err != nil {
				return id, err
			}
		}
		for _, o := range in.Offspring {
			if o.ID != "" {
				continue
			}
			child := Offspring{DeliveryID: id}
			applyOffspringInput(&child, o)
			if _, err := tx.CreateOffspring(child); err != nil {
				return id, err
			}
		}

		record.Delivery, err = tx.UpdateDelivery(id, func(d *Delivery) error {
			applyDeliveryInput(d, in)
			return nil
		})
		if err != nil {
			return id, err
		}
		record.Offspring = tx.ListOffspringByDelivery(id)

		if !record.Delivery.ActualDeliveryDate.Equal(current.ActualDeliveryDate) {
			if err := shiftDeliveryEffects(tx, id, record.Delivery.ActualDeliveryDate); err != nil {
				return id, err
			}
		}
		return id, nil
	})
	return record, res, err
}

// shiftDeliveryEffects moves the Ongoing lactation and the still-predicted
// heat cycle created by a delivery to its corrected date.
func shiftDeliveryEffects(tx Transaction, deliveryID string, date time.Time) error {
	for _, lactation := range tx.ListLactations() {
		if !linkedTo(lactation.SourceDeliveryID, deliveryID) || lactation.Status != domain.LactationOngoing {
			continue
		}
		if lactation.PeakDate != nil && lactation.PeakDate.Before(date) {
			return domain.Conflict(domain.EntityLactation, lactation.ID, "peak date %s precedes the corrected delivery date", lactation.PeakDate.Format(time.DateOnly))
		}
		if _, err := tx.UpdateLactation(lactation.ID, func(l *Lactation) error {
			l.StartDate = date
			return nil
		}); err != nil {
			return err
		}
	}
	for _, cycle := range tx.ListHeatCycles() {
		if !linkedTo(cycle.SourceDeliveryID, deliveryID) || cycle.Observed() || cycle.Inseminated {
			continue
		}
		if _, err := tx.UpdateHeatCycle(cycle.ID, func(h *HeatCycle) error {
			h.NextExpectedDate = domain.AddDays(date, domain.PostpartumHeatDays)
			return nil
		}); err != nil {
			return err
		}
	}
	return nil
}

// DeleteDelivery reverses RecordDelivery: offspring are removed, the
// insemination returns to ConfirmedPregnant, and the lactation and untouched
// heat cycle the delivery created are deleted. A heat cycle that has since
// been observed or used is kept and only loses its link.
func (s *Service) DeleteDelivery(ctx context.Context, id string) (Result, error) {
	return s.run(ctx, opDeleteDelivery, func(tx Transaction) (string, error) {
		delivery, err := scopedDelivery(ctx, tx, id)
		if err != nil {
			return id, err
		}
		for _, o := range tx.ListOffspringByDelivery(id) {
			if err := tx.DeleteOffspring(o.ID); err != nil {
				return id, err
			}
		}
		if err := tx.DeleteDelivery(id); err != nil {
			return id, err
		}
		if _, err := tx.UpdateInsemination(delivery.InseminationID, func(i *Insemination) error {
			i.Status = domain.StatusConfirmedPregnant
			return nil
		}); err != nil {
			return id, err
		}
		for _, lactation := range tx.ListLactationsByDam(delivery.DamID) {
			if !linkedTo(lactation.SourceDeliveryID, id) {
				continue
			}
			if err := tx.DeleteLactation(lactation.ID); err != nil {
				return id, err
			}
		}
		for _, cycle := range tx.ListHeatCyclesByDam(delivery.DamID) {
			if !linkedTo(cycle.SourceDeliveryID, id) {
				continue
			}
			untouched := !cycle.Observed() && !cycle.Inseminated && len(tx.ListInseminationsByHeatCycle(cycle.ID)) == 0
			if untouched {
				err = tx.DeleteHeatCycle(cycle.ID)
			} else {
				_, err = tx.UpdateHeatCycle(cycle.ID, func(h *HeatCycle) error {
					h.SourceDeliveryID = nil
					return nil
				})
			}
			if err != nil {
				return id, err
			}
		}
		return id, nil
	})
}

// GetDelivery returns a delivery with its offspring.
func (s *Service) GetDelivery(ctx context.Context, id string) (DeliveryRecord, error) {
	var record DeliveryRecord
	err := s.view(ctx, func(view TransactionView) error {
		delivery, err := scopedDelivery(ctx, view, id)
		if err != nil {
			return err
		}
		record = DeliveryRecord{Delivery: delivery, Offspring: view.ListOffspringByDelivery(id)}
		return nil
	})
	return record, err
}

func linkedTo(ref *string, id string) bool {
	return ref != nil && *ref == id
}
