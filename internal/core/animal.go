package core

import (
	"context"
	"herdcore/pkg/domain"
	"strings"
)

// AnimalInput seeds a dam or sire from the livestock registry.
type AnimalInput struct {
	ID       string
	FarmerID string
	Tag      string
	Name     string
	Species  string
	Sex      domain.Sex
}

// RegisterAnimal stores a registry animal so breeding records can resolve its
// owner, sex, and species. Tags are unique per farmer.
func (s *Service) RegisterAnimal(ctx context.Context, in AnimalInput) (Animal, Result, error) {
	var created Animal
	res, err := s.run(ctx, opRegisterAnimal, func(tx Transaction) (string, error) {
		farmerID, err := resolveFarmer(ctx, in.FarmerID)
		if err != nil {
			return "", err
		}
		tag := strings.TrimSpace(in.Tag)
		if tag == "" {
			return "", domain.Invalid("tag", "is required")
		}
		switch in.Sex {
		case domain.SexFemale, domain.SexMale:
		default:
			return "", domain.Invalid("sex", "unknown value %q", in.Sex)
		}
		created, err = tx.CreateAnimal(Animal{
			Base:     domain.Base{ID: in.ID},
			FarmerID: farmerID,
			Tag:      tag,
			Name:     strings.TrimSpace(in.Name),
			Species:  strings.TrimSpace(in.Species),
			Sex:      in.Sex,
		})
		return created.ID, err
	})
	return created, res, err
}

// ListAnimals returns the animals visible to the calling farmer.
func (s *Service) ListAnimals(ctx context.Context) ([]Animal, error) {
	var out []Animal
	err := s.view(ctx, func(view TransactionView) error {
		for _, a := range view.ListAnimals() {
			if inScope(ctx, a.FarmerID) {
				out = append(out, a)
			}
		}
		return nil
	})
	return out, err
}
