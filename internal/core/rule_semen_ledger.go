package core

import (
	"context"
	"fmt"
	"herdcore/pkg/domain"
)

// SemenLedgerRule ensures every straw referenced by an insemination is marked
// used and that no straw is consumed twice.
func SemenLedgerRule() domain.Rule {
	return semenLedgerRule{}
}

type semenLedgerRule struct{}

func (semenLedgerRule) Name() string { return "semen_ledger" }

func (semenLedgerRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	if !touches(changes, domain.EntityInsemination, domain.EntitySemenStraw) {
		return res, nil
	}
	consumers := make(map[string][]string)
	for _, insem := range view.ListInseminations() {
		if insem.SemenID != nil {
			consumers[*insem.SemenID] = append(consumers[*insem.SemenID], insem.ID)
		}
	}
	for strawID, users := range consumers {
		straw, ok := view.FindSemenStraw(strawID)
		switch {
		case !ok:
			// straws may be archived by the inventory collaborator after use
			continue
		case len(users) > 1:
			res.Violations = append(res.Violations, strawViolation(strawID, fmt.Sprintf("straw %s consumed by %d inseminations", straw.Code, len(users))))
		case !straw.Used:
			res.Violations = append(res.Violations, strawViolation(strawID, fmt.Sprintf("straw %s referenced by insemination %s but not marked used", straw.Code, users[0])))
		}
	}
	return res, nil
}

func strawViolation(id, message string) domain.Violation {
	return domain.Violation{
		Rule:     "semen_ledger",
		Severity: domain.SeverityBlock,
		Message:  message,
		Entity:   domain.EntitySemenStraw,
		EntityID: id,
	}
}
