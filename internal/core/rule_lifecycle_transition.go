package core

import (
	"context"
	"fmt"
	"herdcore/pkg/domain"
)

// LifecycleTransitionRule blocks illegal status transitions on inseminations
// and lactations.
func LifecycleTransitionRule() domain.Rule {
	return lifecycleTransitionRule{}
}

type lifecycleTransitionRule struct{}

type lifecycleMachine struct {
	entity    domain.EntityType
	label     string
	valid     map[string]struct{}
	allowed   map[string]map[string]struct{}
	extractor func(payload domain.ChangePayload) (id string, state string, ok bool)
	// guard reports an extra reason to reject a legal edge, given the post-transaction view.
	guard func(view domain.RuleView, id, from, to string) string
}

var lifecycleMachines = map[domain.EntityType]lifecycleMachine{
	domain.EntityInsemination: {
		entity: domain.EntityInsemination,
		label:  "insemination",
		valid: toSet(
			string(domain.StatusPending),
			string(domain.StatusConfirmedPregnant),
			string(domain.StatusNotPregnant),
			string(domain.StatusDelivered),
			string(domain.StatusFailed),
		),
		allowed: map[string]map[string]struct{}{
			string(domain.StatusPending): toSet(
				string(domain.StatusConfirmedPregnant),
				string(domain.StatusNotPregnant),
				string(domain.StatusFailed),
			),
			string(domain.StatusConfirmedPregnant): toSet(
				string(domain.StatusPending),
				string(domain.StatusNotPregnant),
				string(domain.StatusFailed),
				string(domain.StatusDelivered),
			),
			string(domain.StatusNotPregnant): toSet(
				string(domain.StatusPending),
				string(domain.StatusConfirmedPregnant),
				string(domain.StatusFailed),
			),
			string(domain.StatusFailed): toSet(
				string(domain.StatusPending),
				string(domain.StatusConfirmedPregnant),
				string(domain.StatusNotPregnant),
			),
			string(domain.StatusDelivered): toSet(string(domain.StatusConfirmedPregnant)),
		},
		extractor: func(payload domain.ChangePayload) (string, string, bool) {
			insem, ok := domain.DecodePayload[domain.Insemination](payload)
			if !ok {
				return "", "", false
			}
			return insem.ID, string(insem.Status), true
		},
		guard: func(view domain.RuleView, id, from, to string) string {
			if from != string(domain.StatusDelivered) {
				return ""
			}
			for _, d := range view.ListDeliveries() {
				if d.InseminationID == id {
					return fmt.Sprintf("delivery %s still exists", d.ID)
				}
			}
			return ""
		},
	},
	domain.EntityLactation: {
		entity: domain.EntityLactation,
		label:  "lactation",
		valid:  toSet(string(domain.LactationOngoing), string(domain.LactationCompleted)),
		allowed: map[string]map[string]struct{}{
			string(domain.LactationOngoing): toSet(string(domain.LactationCompleted)),
		},
		extractor: func(payload domain.ChangePayload) (string, string, bool) {
			lactation, ok := domain.DecodePayload[domain.Lactation](payload)
			if !ok {
				return "", "", false
			}
			return lactation.ID, string(lactation.Status), true
		},
	},
}

func (lifecycleTransitionRule) Name() string { return "lifecycle_transition" }

func (lifecycleTransitionRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	block := func(machine lifecycleMachine, id, msg string) {
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     "lifecycle_transition",
			Severity: domain.SeverityBlock,
			Message:  msg,
			Entity:   machine.entity,
			EntityID: id,
		})
	}
	for _, change := range changes {
		machine, ok := lifecycleMachines[change.Entity]
		if !ok {
			continue
		}

		afterID, afterState, ok := machine.extractor(change.After)
		if !ok {
			continue
		}
		if _, valid := machine.valid[afterState]; !valid {
			block(machine, afterID, fmt.Sprintf("%s %s is set to invalid state %s", machine.label, afterID, afterState))
			continue
		}

		_, beforeState, ok := machine.extractor(change.Before)
		if !ok || beforeState == afterState {
			continue
		}
		if _, legal := machine.allowed[beforeState][afterState]; !legal {
			block(machine, afterID, fmt.Sprintf("cannot move %s %s from %s to %s", machine.label, afterID, beforeState, afterState))
			continue
		}
		if machine.guard != nil {
			if reason := machine.guard(view, afterID, beforeState, afterState); reason != "" {
				block(machine, afterID, fmt.Sprintf("cannot move %s %s from %s to %s: %s", machine.label, afterID, beforeState, afterState, reason))
			}
		}
	}
	return res, nil
}

func toSet(values ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
