package core

import "herdcore/pkg/domain"

type (
	EntityType         = domain.EntityType
	Severity           = domain.Severity
	Base               = domain.Base
	Animal             = domain.Animal
	SemenStraw         = domain.SemenStraw
	HeatCycle          = domain.HeatCycle
	Insemination       = domain.Insemination
	PregnancyCheck     = domain.PregnancyCheck
	Delivery           = domain.Delivery
	Offspring          = domain.Offspring
	Lactation          = domain.Lactation
	Change             = domain.Change
	Action             = domain.Action
	Violation          = domain.Violation
	Result             = domain.Result
	Rule               = domain.Rule
	RulesEngine        = domain.RulesEngine
	RuleViolationError = domain.RuleViolationError
	Transaction        = domain.Transaction
	TransactionView    = domain.TransactionView
	PersistentStore    = domain.PersistentStore
)

const (
	EntityAnimal         = domain.EntityAnimal
	EntitySemenStraw     = domain.EntitySemenStraw
	EntityHeatCycle      = domain.EntityHeatCycle
	EntityInsemination   = domain.EntityInsemination
	EntityPregnancyCheck = domain.EntityPregnancyCheck
	EntityDelivery       = domain.EntityDelivery
	EntityOffspring      = domain.EntityOffspring
	EntityLactation      = domain.EntityLactation
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
	SeverityLog   = domain.SeverityLog
)

const (
	ActionCreate = domain.ActionCreate
	ActionUpdate = domain.ActionUpdate
	ActionDelete = domain.ActionDelete
)
