package core

import (
	"context"
	"fmt"
	"herdcore/pkg/domain"
)

// HeatCycleExclusivityRule blocks a heat cycle from being held by more than one
// active insemination and requires a held cycle to carry the inseminated flag.
func HeatCycleExclusivityRule() domain.Rule {
	return heatCycleExclusivityRule{}
}

type heatCycleExclusivityRule struct{}

func (heatCycleExclusivityRule) Name() string { return "heat_cycle_exclusivity" }

func (heatCycleExclusivityRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	holders := make(map[string][]string)
	for _, insem := range view.ListInseminations() {
		if !insem.HoldsHeatCycle() {
			continue
		}
		holders[insem.HeatCycleID] = append(holders[insem.HeatCycleID], insem.ID)
	}

	res := domain.Result{}
	for _, heat := range view.ListHeatCycles() {
		held := holders[heat.ID]
		switch {
		case len(held) > 1:
			res.Violations = append(res.Violations, heatViolation(heat.ID, fmt.Sprintf("heat cycle %s is held by %d inseminations %v", heat.ID, len(held), held)))
		case len(held) == 1 && !heat.Inseminated:
			res.Violations = append(res.Violations, heatViolation(heat.ID, fmt.Sprintf("heat cycle %s is held by insemination %s but not marked inseminated", heat.ID, held[0])))
		}
	}
	return res, nil
}

func heatViolation(id, message string) domain.Violation {
	return domain.Violation{
		Rule:     "heat_cycle_exclusivity",
		Severity: domain.SeverityBlock,
		Message:  message,
		Entity:   domain.EntityHeatCycle,
		EntityID: id,
	}
}
