package core

import (
	"context"
	"fmt"
	"herdcore/pkg/domain"
)

// SingleOngoingLactationRule blocks a dam from having two ongoing lactations.
func SingleOngoingLactationRule() domain.Rule {
	return singleOngoingLactationRule{}
}

type singleOngoingLactationRule struct{}

func (singleOngoingLactationRule) Name() string { return "single_ongoing_lactation" }

func (singleOngoingLactationRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	dams := make(map[string]struct{})
	for _, change := range changes {
		if change.Entity != domain.EntityLactation {
			continue
		}
		if l, ok := domain.DecodePayload[domain.Lactation](change.After); ok {
			dams[l.DamID] = struct{}{}
		}
	}
	if len(dams) == 0 {
		return res, nil
	}

	ongoing := make(map[string][]string)
	for _, l := range view.ListLactations() {
		if l.Status == domain.LactationOngoing {
			ongoing[l.DamID] = append(ongoing[l.DamID], l.ID)
		}
	}
	for damID := range dams {
		if ids := ongoing[damID]; len(ids) > 1 {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "single_ongoing_lactation",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("dam %s has %d ongoing lactations %v", damID, len(ids), ids),
				Entity:   domain.EntityLactation,
				EntityID: ids[len(ids)-1],
			})
		}
	}
	return res, nil
}
