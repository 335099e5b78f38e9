package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestResultMergeAndBlocking(t *testing.T) {
	var result Result
	result.Merge(Result{Violations: []Violation{{Rule: "warn", Severity: SeverityWarn}}})
	if result.HasBlocking() {
		t.Fatalf("expected no blocking violations")
	}
	result.Merge(Result{Violations: []Violation{{Rule: "block", Severity: SeverityBlock}}})
	if !result.HasBlocking() {
		t.Fatalf("expected blocking violation")
	}
	err := RuleViolationError{Result: result}
	if err.Error() != "transaction blocked by rules: block: " {
		t.Fatalf("unexpected error string %q", err.Error())
	}
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("rule violations must match ErrConflict")
	}
}

func TestResultTouched(t *testing.T) {
	result := Result{Changes: []Change{
		{Entity: EntityHeatCycle, Action: ActionUpdate, EntityID: "h-1"},
		{Entity: EntityInsemination, Action: ActionCreate, EntityID: "i-1"},
		{Entity: EntityHeatCycle, Action: ActionCreate, EntityID: "h-2"},
	}}
	touched := result.Touched(EntityHeatCycle)
	if len(touched) != 2 || touched[0].EntityID != "h-1" || touched[1].EntityID != "h-2" {
		t.Fatalf("unexpected heat cycle changes: %+v", touched)
	}
	if got := result.Touched(EntityDelivery); got != nil {
		t.Fatalf("expected no delivery changes, got %+v", got)
	}
}

func TestRulesEngineNamesInOrder(t *testing.T) {
	engine := NewRulesEngine()
	engine.Register(staticRule{"first"})
	engine.Register(errorRule{})
	names := engine.Rules()
	if len(names) != 2 || names[0] != "first" || names[1] != "error" {
		t.Fatalf("unexpected rule names %v", names)
	}
}

func TestResultMergeEmptyInput(t *testing.T) {
	original := Result{Violations: []Violation{{Rule: "existing", Severity: SeverityWarn}}}
	original.Merge(Result{})
	if len(original.Violations) != 1 || original.Violations[0].Rule != "existing" {
		t.Fatalf("expected original violations to remain, got %+v", original.Violations)
	}
}

func TestRulesEngineEvaluate(t *testing.T) {
	engine := NewRulesEngine()
	engine.Register(staticRule{"warn"})
	res, err := engine.Evaluate(context.Background(), emptyView{}, nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(res.Violations) != 1 {
		t.Fatalf("expected violation")
	}
}

type staticRule struct{ name string }

func (r staticRule) Name() string { return r.name }

func (r staticRule) Evaluate(ctx context.Context, view RuleView, changes []Change) (Result, error) {
	return Result{Violations: []Violation{{Rule: r.name, Severity: SeverityWarn}}}, nil
}

// emptyView satisfies RuleView for rules that never read the snapshot.
type emptyView struct{ RuleView }

func TestRulesEngineEvaluateError(t *testing.T) {
	engine := NewRulesEngine()
	engine.Register(errorRule{})
	if _, err := engine.Evaluate(context.Background(), emptyView{}, nil); err == nil {
		t.Fatalf("expected evaluation error")
	}
}

type errorRule struct{}

func (errorRule) Name() string { return "error" }

func (errorRule) Evaluate(ctx context.Context, view RuleView, changes []Change) (Result, error) {
	return Result{}, fmt.Errorf("boom")
}
