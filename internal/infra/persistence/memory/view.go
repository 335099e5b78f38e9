package memory

import (
	"herdcore/pkg/domain"
	"strings"
)

type transactionView struct {
	state *memoryState
}

func valuesOf[T any](in map[string]T, cloneFn func(T) T, keep func(T) bool) []T {
	out := make([]T, 0, len(in))
	for _, v := range in {
		if keep != nil && !keep(v) {
			continue
		}
		out = append(out, cloneFn(v))
	}
	return out
}

func animalBase(a Animal) domain.Base             { return a.Base }
func strawBase(s SemenStraw) domain.Base          { return s.Base }
func heatBase(h HeatCycle) domain.Base            { return h.Base }
func inseminationBase(i Insemination) domain.Base { return i.Base }
func checkBase(c PregnancyCheck) domain.Base      { return c.Base }
func deliveryBase(d Delivery) domain.Base         { return d.Base }
func offspringBase(o Offspring) domain.Base       { return o.Base }
func lactationBase(l Lactation) domain.Base       { return l.Base }

func byHeatDate(a, b HeatCycle) int {
	return a.NextExpectedDate.Compare(b.NextExpectedDate)
}

func byInseminationDate(a, b Insemination) int {
	return a.InseminationDate.Compare(b.InseminationDate)
}

func byCheckDate(a, b PregnancyCheck) int {
	return a.CheckDate.Compare(b.CheckDate)
}

func byLactationNumber(a, b Lactation) int {
	return a.LactationNumber - b.LactationNumber
}

// ListAnimals returns animals ordered by tag.
func (v transactionView) ListAnimals() []Animal {
	out := valuesOf(v.state.animals, cloneAnimal, nil)
	sortByCreated(out, animalBase, func(a, b Animal) int { return strings.Compare(a.Tag, b.Tag) })
	return out
}

// ListSemenStraws returns straws in registration order.
func (v transactionView) ListSemenStraws() []SemenStraw {
	out := valuesOf(v.state.straws, cloneStraw, nil)
	sortByCreated(out, strawBase, nil)
	return out
}

// ListHeatCycles returns heat cycles ordered by their expected date.
func (v transactionView) ListHeatCycles() []HeatCycle {
	out := valuesOf(v.state.heatCycles, cloneHeatCycle, nil)
	sortByCreated(out, heatBase, byHeatDate)
	return out
}

// ListInseminations returns inseminations ordered by insemination date.
func (v transactionView) ListInseminations() []Insemination {
	out := valuesOf(v.state.inseminations, cloneInsemination, nil)
	sortByCreated(out, inseminationBase, byInseminationDate)
	return out
}

// ListPregnancyChecks returns every journal entry ordered by check date.
func (v transactionView) ListPregnancyChecks() []PregnancyCheck {
	out := valuesOf(v.state.checks, cloneCheck, nil)
	sortByCreated(out, checkBase, byCheckDate)
	return out
}

// ListDeliveries returns deliveries ordered by delivery date.
func (v transactionView) ListDeliveries() []Delivery {
	out := valuesOf(v.state.deliveries, cloneDelivery, nil)
	sortByCreated(out, deliveryBase, func(a, b Delivery) int {
		return a.ActualDeliveryDate.Compare(b.ActualDeliveryDate)
	})
	return out
}

// ListOffspring returns every offspring in creation order.
func (v transactionView) ListOffspring() []Offspring {
	out := valuesOf(v.state.offspring, cloneOffspring, nil)
	sortByCreated(out, offspringBase, nil)
	return out
}

// ListLactations returns lactations ordered by lactation number.
func (v transactionView) ListLactations() []Lactation {
	out := valuesOf(v.state.lactations, cloneLactation, nil)
	sortByCreated(out, lactationBase, byLactationNumber)
	return out
}

// FindAnimal retrieves an animal by ID.
func (v transactionView) FindAnimal(id string) (Animal, bool) {
	a, ok := v.state.animals[id]
	return cloneAnimal(a), ok
}

// FindSemenStraw retrieves a straw by ID.
func (v transactionView) FindSemenStraw(id string) (SemenStraw, bool) {
	s, ok := v.state.straws[id]
	if !ok {
		return SemenStraw{}, false
	}
	return cloneStraw(s), true
}

// FindHeatCycle retrieves a heat cycle by ID.
func (v transactionView) FindHeatCycle(id string) (HeatCycle, bool) {
	h, ok := v.state.heatCycles[id]
	if !ok {
		return HeatCycle{}, false
	}
	return cloneHeatCycle(h), true
}

// FindInsemination retrieves an insemination by ID.
func (v transactionView) FindInsemination(id string) (Insemination, bool) {
	i, ok := v.state.inseminations[id]
	if !ok {
		return Insemination{}, false
	}
	return cloneInsemination(i), true
}

// FindPregnancyCheck retrieves a journal entry by ID.
func (v transactionView) FindPregnancyCheck(id string) (PregnancyCheck, bool) {
	c, ok := v.state.checks[id]
	if !ok {
		return PregnancyCheck{}, false
	}
	return cloneCheck(c), true
}

// FindDelivery retrieves a delivery by ID.
func (v transactionView) FindDelivery(id string) (Delivery, bool) {
	d, ok := v.state.deliveries[id]
	return cloneDelivery(d), ok
}

// FindLactation retrieves a lactation by ID.
func (v transactionView) FindLactation(id string) (Lactation, bool) {
	l, ok := v.state.lactations[id]
	if !ok {
		return Lactation{}, false
	}
	return cloneLactation(l), true
}

// ListHeatCyclesByDam returns the dam's heat cycles ordered by expected date.
func (v transactionView) ListHeatCyclesByDam(damID string) []HeatCycle {
	out := valuesOf(v.state.heatCycles, cloneHeatCycle, func(h HeatCycle) bool { return h.DamID == damID })
	sortByCreated(out, heatBase, byHeatDate)
	return out
}

// ListInseminationsByDam returns the dam's inseminations ordered by date.
func (v transactionView) ListInseminationsByDam(damID string) []Insemination {
	out := valuesOf(v.state.inseminations, cloneInsemination, func(i Insemination) bool { return i.DamID == damID })
	sortByCreated(out, inseminationBase, byInseminationDate)
	return out
}

// ListInseminationsByHeatCycle returns every insemination that references the cycle.
func (v transactionView) ListInseminationsByHeatCycle(heatCycleID string) []Insemination {
	out := valuesOf(v.state.inseminations, cloneInsemination, func(i Insemination) bool { return i.HeatCycleID == heatCycleID })
	sortByCreated(out, inseminationBase, byInseminationDate)
	return out
}

// ListPregnancyChecksByInsemination returns the journal of an insemination
// ordered by check date, ties broken by creation order.
func (v transactionView) ListPregnancyChecksByInsemination(inseminationID string) []PregnancyCheck {
	out := valuesOf(v.state.checks, cloneCheck, func(c PregnancyCheck) bool { return c.InseminationID == inseminationID })
	sortByCreated(out, checkBase, byCheckDate)
	return out
}

// FindDeliveryByInsemination returns the delivery closing an insemination, if any.
func (v transactionView) FindDeliveryByInsemination(inseminationID string) (Delivery, bool) {
	for _, d := range v.state.deliveries {
		if d.InseminationID == inseminationID {
			return cloneDelivery(d), true
		}
	}
	return Delivery{}, false
}

// ListOffspringByDelivery returns the offspring of a delivery in creation order.
func (v transactionView) ListOffspringByDelivery(deliveryID string) []Offspring {
	out := valuesOf(v.state.offspring, cloneOffspring, func(o Offspring) bool { return o.DeliveryID == deliveryID })
	sortByCreated(out, offspringBase, nil)
	return out
}

// ListLactationsByDam returns the dam's lactations ordered by lactation number.
func (v transactionView) ListLactationsByDam(damID string) []Lactation {
	out := valuesOf(v.state.lactations, cloneLactation, func(l Lactation) bool { return l.DamID == damID })
	sortByCreated(out, lactationBase, byLactationNumber)
	return out
}
