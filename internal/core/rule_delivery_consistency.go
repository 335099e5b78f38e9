package core

import (
	"context"
	"fmt"
	"herdcore/pkg/domain"
)

// DeliveryConsistencyRule enforces birth totals against the offspring set and
// ties every delivery to a single delivered insemination.
func DeliveryConsistencyRule() domain.Rule {
	return deliveryConsistencyRule{}
}

type deliveryConsistencyRule struct{}

func (deliveryConsistencyRule) Name() string { return "delivery_consistency" }

func (deliveryConsistencyRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	if !touches(changes, domain.EntityDelivery, domain.EntityOffspring, domain.EntityInsemination) {
		return res, nil
	}

	type tally struct{ total, still int }
	counts := make(map[string]tally)
	for _, o := range view.ListOffspring() {
		t := counts[o.DeliveryID]
		t.total++
		if o.Stillborn() {
			t.still++
		}
		counts[o.DeliveryID] = t
	}

	perInsemination := make(map[string]int)
	for _, d := range view.ListDeliveries() {
		perInsemination[d.InseminationID]++
		t := counts[d.ID]
		if d.LiveBorn+d.Stillborn != d.TotalBorn {
			res.Violations = append(res.Violations, deliveryViolation(d.ID, fmt.Sprintf("delivery %s live %d + stillborn %d != total %d", d.ID, d.LiveBorn, d.Stillborn, d.TotalBorn)))
		}
		if t.total != d.TotalBorn || t.still != d.Stillborn {
			res.Violations = append(res.Violations, deliveryViolation(d.ID, fmt.Sprintf("delivery %s records %d born (%d stillborn) but has %d offspring (%d stillborn)", d.ID, d.TotalBorn, d.Stillborn, t.total, t.still)))
		}
		insem, ok := view.FindInsemination(d.InseminationID)
		if !ok {
			res.Violations = append(res.Violations, deliveryViolation(d.ID, fmt.Sprintf("delivery %s references missing insemination %s", d.ID, d.InseminationID)))
			continue
		}
		if insem.Status != domain.StatusDelivered {
			res.Violations = append(res.Violations, deliveryViolation(d.ID, fmt.Sprintf("delivery %s closes insemination %s in status %s", d.ID, insem.ID, insem.Status)))
		}
	}
	for inseminationID, n := range perInsemination {
		if n > 1 {
			res.Violations = append(res.Violations, deliveryViolation(inseminationID, fmt.Sprintf("insemination %s has %d deliveries", inseminationID, n)))
		}
	}
	for deliveryID := range counts {
		if _, ok := view.FindDelivery(deliveryID); !ok {
			res.Violations = append(res.Violations, deliveryViolation(deliveryID, fmt.Sprintf("offspring reference missing delivery %s", deliveryID)))
		}
	}
	return res, nil
}

func deliveryViolation(id, message string) domain.Violation {
	return domain.Violation{
		Rule:     "delivery_consistency",
		Severity: domain.SeverityBlock,
		Message:  message,
		Entity:   domain.EntityDelivery,
		EntityID: id,
	}
}

func touches(changes []domain.Change, entities ...domain.EntityType) bool {
	for _, change := range changes {
		for _, entity := range entities {
			if change.Entity == entity {
				return true
			}
		}
	}
	return false
}
