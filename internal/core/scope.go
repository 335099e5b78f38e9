package core

import (
	"context"
	"herdcore/pkg/domain"
	"strings"
)

type farmerKey struct{}

// WithFarmer binds the calling farmer to ctx. Operations run under a bound
// farmer only see that farmer's animals and straws.
func WithFarmer(ctx context.Context, farmerID string) context.Context {
	return context.WithValue(ctx, farmerKey{}, strings.TrimSpace(farmerID))
}

// FarmerFromContext returns the bound farmer, if any.
func FarmerFromContext(ctx context.Context) (string, bool) {
	farmerID, ok := ctx.Value(farmerKey{}).(string)
	if !ok || farmerID == "" {
		return "", false
	}
	return farmerID, true
}

func inScope(ctx context.Context, farmerID string) bool {
	bound, ok := FarmerFromContext(ctx)
	return !ok || bound == farmerID
}

// resolveFarmer picks the farmer for a new record: the bound farmer wins and
// an explicit mismatch is rejected.
func resolveFarmer(ctx context.Context, explicit string) (string, error) {
	explicit = strings.TrimSpace(explicit)
	bound, ok := FarmerFromContext(ctx)
	switch {
	case ok && explicit != "" && explicit != bound:
		return "", domain.Invalid("farmer_id", "%s does not match the calling farmer", explicit)
	case ok:
		return bound, nil
	case explicit == "":
		return "", domain.Invalid("farmer_id", "is required")
	default:
		return explicit, nil
	}
}

func scopedAnimal(ctx context.Context, view domain.RuleView, id string) (Animal, error) {
	animal, ok := view.FindAnimal(id)
	if !ok || !inScope(ctx, animal.FarmerID) {
		return Animal{}, domain.NotFoundError{Entity: domain.EntityAnimal, ID: id}
	}
	return animal, nil
}

func scopedDam(ctx context.Context, view domain.RuleView, id string) (Animal, error) {
	dam, err := scopedAnimal(ctx, view, id)
	if err != nil {
		return Animal{}, err
	}
	if err := requireFemale(dam); err != nil {
		return Animal{}, err
	}
	return dam, nil
}

func requireFemale(a Animal) error {
	if a.Sex != domain.SexFemale {
		return domain.Invalid("dam_id", "animal %s is not female", a.ID)
	}
	return nil
}

func scopedStraw(ctx context.Context, view domain.RuleView, id string) (SemenStraw, error) {
	straw, ok := view.FindSemenStraw(id)
	if !ok || !inScope(ctx, straw.FarmerID) {
		return SemenStraw{}, domain.NotFoundError{Entity: domain.EntitySemenStraw, ID: id}
	}
	return straw, nil
}

// scopedInsemination resolves an insemination through its dam's ownership.
func scopedInsemination(ctx context.Context, view domain.RuleView, id string) (Insemination, Animal, error) {
	insem, ok := view.FindInsemination(id)
	if !ok {
		return Insemination{}, Animal{}, domain.NotFoundError{Entity: domain.EntityInsemination, ID: id}
	}
	dam, ok := view.FindAnimal(insem.DamID)
	if !ok || !inScope(ctx, dam.FarmerID) {
		return Insemination{}, Animal{}, domain.NotFoundError{Entity: domain.EntityInsemination, ID: id}
	}
	return insem, dam, nil
}

func scopedHeatCycle(ctx context.Context, view domain.RuleView, id string) (HeatCycle, error) {
	cycle, ok := view.FindHeatCycle(id)
	if !ok {
		return HeatCycle{}, domain.NotFoundError{Entity: domain.EntityHeatCycle, ID: id}
	}
	dam, ok := view.FindAnimal(cycle.DamID)
	if !ok || !inScope(ctx, dam.FarmerID) {
		return HeatCycle{}, domain.NotFoundError{Entity: domain.EntityHeatCycle, ID: id}
	}
	return cycle, nil
}

func scopedDelivery(ctx context.Context, view domain.RuleView, id string) (Delivery, error) {
	delivery, ok := view.FindDelivery(id)
	if !ok {
		return Delivery{}, domain.NotFoundError{Entity: domain.EntityDelivery, ID: id}
	}
	dam, ok := view.FindAnimal(delivery.DamID)
	if !ok || !inScope(ctx, dam.FarmerID) {
		return Delivery{}, domain.NotFoundError{Entity: domain.EntityDelivery, ID: id}
	}
	return delivery, nil
}

func scopedLactation(ctx context.Context, view domain.RuleView, id string) (Lactation, error) {
	lactation, ok := view.FindLactation(id)
	if !ok {
		return Lactation{}, domain.NotFoundError{Entity: domain.EntityLactation, ID: id}
	}
	dam, ok := view.FindAnimal(lactation.DamID)
	if !ok || !inScope(ctx, dam.FarmerID) {
		return Lactation{}, domain.NotFoundError{Entity: domain.EntityLactation, ID: id}
	}
	return lactation, nil
}
