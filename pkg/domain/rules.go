package domain

import "context"

// RuleView provides read-only access to domain entities for rule evaluation.
type RuleView interface {
	ListAnimals() []Animal
	ListSemenStraws() []SemenStraw
	ListHeatCycles() []HeatCycle
	ListInseminations() []Insemination
	ListPregnancyChecks() []PregnancyCheck
	ListDeliveries() []Delivery
	ListOffspring() []Offspring
	ListLactations() []Lactation
	FindAnimal(id string) (Animal, bool)
	FindSemenStraw(id string) (SemenStraw, bool)
	FindHeatCycle(id string) (HeatCycle, bool)
	FindInsemination(id string) (Insemination, bool)
	FindPregnancyCheck(id string) (PregnancyCheck, bool)
	FindDelivery(id string) (Delivery, bool)
	FindLactation(id string) (Lactation, bool)
}

// Rule defines an evaluation executed within a transaction boundary.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, view RuleView, changes []Change) (Result, error)
}

// RulesEngine orchestrates rule evaluation.
type RulesEngine struct {
	rules []Rule
}

// NewRulesEngine constructs an engine instance.
func NewRulesEngine() *RulesEngine {
	return &RulesEngine{}
}

// Register appends a rule to the engine.
func (e *RulesEngine) Register(rule Rule) {
	e.rules = append(e.rules, rule)
}

// Rules returns the registered rule names in evaluation order.
func (e *RulesEngine) Rules() []string {
	out := make([]string, 0, len(e.rules))
	for _, r := range e.rules {
		out = append(out, r.Name())
	}
	return out
}

// Evaluate executes all registered rules and aggregates their results.
func (e *RulesEngine) Evaluate(ctx context.Context, view RuleView, changes []Change) (Result, error) {
	var combined Result
	for _, rule := range e.rules {
		res, err := rule.Evaluate(ctx, view, changes)
		if err != nil {
			return Result{}, err
		}
		combined.Merge(res)
	}
	return combined, nil
}
