package domain

import (
	"context"
	"time"
)

// TransactionView provides read-only access to snapshot data. Inside a
// transaction it reflects the uncommitted writes made so far.
type TransactionView interface {
	RuleView
	ListHeatCyclesByDam(damID string) []HeatCycle
	ListInseminationsByDam(damID string) []Insemination
	ListInseminationsByHeatCycle(heatCycleID string) []Insemination
	ListPregnancyChecksByInsemination(inseminationID string) []PregnancyCheck
	FindDeliveryByInsemination(inseminationID string) (Delivery, bool)
	ListOffspringByDelivery(deliveryID string) []Offspring
	ListLactationsByDam(damID string) []Lactation
}

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope. Every mutation is recorded as a Change.
type Transaction interface {
	TransactionView
	Snapshot() TransactionView
	Now() time.Time

	CreateAnimal(Animal) (Animal, error)
	UpdateAnimal(id string, mutator func(*Animal) error) (Animal, error)
	DeleteAnimal(id string) error
	CreateSemenStraw(SemenStraw) (SemenStraw, error)
	UpdateSemenStraw(id string, mutator func(*SemenStraw) error) (SemenStraw, error)
	DeleteSemenStraw(id string) error
	CreateHeatCycle(HeatCycle) (HeatCycle, error)
	UpdateHeatCycle(id string, mutator func(*HeatCycle) error) (HeatCycle, error)
	DeleteHeatCycle(id string) error
	CreateInsemination(Insemination) (Insemination, error)
	UpdateInsemination(id string, mutator func(*Insemination) error) (Insemination, error)
	DeleteInsemination(id string) error
	CreatePregnancyCheck(PregnancyCheck) (PregnancyCheck, error)
	UpdatePregnancyCheck(id string, mutator func(*PregnancyCheck) error) (PregnancyCheck, error)
	DeletePregnancyCheck(id string) error
	CreateDelivery(Delivery) (Delivery, error)
	UpdateDelivery(id string, mutator func(*Delivery) error) (Delivery, error)
	DeleteDelivery(id string) error
	CreateOffspring(Offspring) (Offspring, error)
	UpdateOffspring(id string, mutator func(*Offspring) error) (Offspring, error)
	DeleteOffspring(id string) error
	CreateLactation(Lactation) (Lactation, error)
	UpdateLactation(id string, mutator func(*Lactation) error) (Lactation, error)
	DeleteLactation(id string) error
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	RulesEngine() *RulesEngine
}
