package core

import "herdcore/pkg/domain"

// NewRulesEngine constructs an empty engine instance.
func NewRulesEngine() *RulesEngine {
	return domain.NewRulesEngine()
}

// NewDefaultRulesEngine builds a rules engine with the built-in invariant set.
func NewDefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(HeatCycleExclusivityRule())
	engine.Register(DeliveryConsistencyRule())
	engine.Register(SingleOngoingLactationRule())
	engine.Register(SemenLedgerRule())
	engine.Register(LifecycleTransitionRule())
	return engine
}
