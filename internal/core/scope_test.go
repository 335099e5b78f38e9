package core

import (
	"context"
	"herdcore/pkg/domain"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFarmerFromContext(t *testing.T) {
	_, ok := FarmerFromContext(context.Background())
	assert.False(t, ok)
	_, ok = FarmerFromContext(WithFarmer(context.Background(), "   "))
	assert.False(t, ok)
	farmer, ok := FarmerFromContext(WithFarmer(context.Background(), " farm-1 "))
	assert.True(t, ok)
	assert.Equal(t, "farm-1", farmer)
}

func TestResolveFarmer(t *testing.T) {
	bound := WithFarmer(context.Background(), "farm-1")
	cases := []struct {
		name     string
		ctx      context.Context
		explicit string
		want     string
		wantErr  bool
	}{
		{"bound only", bound, "", "farm-1", false},
		{"bound matches", bound, "farm-1", "farm-1", false},
		{"bound mismatch", bound, "farm-2", "", true},
		{"explicit only", context.Background(), " farm-3 ", "farm-3", false},
		{"neither", context.Background(), "", "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := resolveFarmer(tc.ctx, tc.explicit)
			if tc.wantErr {
				assert.ErrorIs(t, err, domain.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestOtherFarmerSeesNothing(t *testing.T) {
	f := newFixture(t)
	insem := f.pregnantDam()
	other := WithFarmer(f.ctx, "farm-2")

	_, err := f.service.GetInsemination(other, insem.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.service.ListHeatCycles(other, "dam-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.service.ListPregnancyChecks(other, insem.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, _, err = f.service.RecordHeatObservation(other, HeatObservationInput{DamID: "dam-1", ObservedDate: day("2025-06-01"), Intensity: domain.IntensityWeak})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, _, err = f.service.MarkInseminationFailed(other, insem.ID, day("2025-06-01"), "")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	animals, err := f.service.ListAnimals(other)
	require.NoError(t, err)
	assert.Empty(t, animals)
	straws, err := f.service.ListAvailableStraws(other, "")
	require.NoError(t, err)
	assert.Empty(t, straws)

	owner := WithFarmer(f.ctx, "farm-1")
	animals, err = f.service.ListAnimals(owner)
	require.NoError(t, err)
	assert.Len(t, animals, 1)
	_, err = f.service.GetInsemination(owner, insem.ID)
	require.NoError(t, err)
}

func TestForeignStrawAndSireAreNotFound(t *testing.T) {
	f := newFixture(t)
	f.dam("dam-1")
	h := f.heat("dam-1", "2025-01-01")
	farm2 := WithFarmer(f.ctx, "farm-2")
	_, _, err := f.service.RegisterSemenStraw(farm2, SemenStrawInput{ID: "straw-b", Code: "B-1"})
	require.NoError(t, err)
	_, _, err = f.service.RegisterAnimal(farm2, AnimalInput{ID: "bull-b", Tag: "B-BULL", Species: "cattle", Sex: domain.SexMale})
	require.NoError(t, err)

	farm1 := WithFarmer(f.ctx, "farm-1")
	_, _, err = f.service.CreateInsemination(farm1, InseminationInput{DamID: "dam-1", SemenID: "straw-b", HeatCycleID: h.ID, Method: domain.MethodAI, Date: day("2025-01-01")})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, _, err = f.service.CreateInsemination(farm1, InseminationInput{DamID: "dam-1", SireID: "bull-b", HeatCycleID: h.ID, Method: domain.MethodNatural, Date: day("2025-01-01")})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// without a bound farmer the straw still belongs to another herd
	_, _, err = f.service.CreateInsemination(f.ctx, InseminationInput{DamID: "dam-1", SemenID: "straw-b", HeatCycleID: h.ID, Method: domain.MethodAI, Date: day("2025-01-01")})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.False(t, f.heatCycle(h.ID).Inseminated)
}

func TestRegistryUniqueness(t *testing.T) {
	f := newFixture(t)
	f.dam("dam-1")
	f.straw("straw-1")

	_, _, err := f.service.RegisterAnimal(f.ctx, AnimalInput{FarmerID: "farm-1", Tag: "tag-dam-1", Sex: domain.SexFemale})
	assert.ErrorIs(t, err, domain.ErrConflict)
	_, _, err = f.service.RegisterAnimal(f.ctx, AnimalInput{FarmerID: "farm-2", Tag: "tag-dam-1", Sex: domain.SexFemale})
	require.NoError(t, err, "tags are scoped per farmer")
	_, _, err = f.service.RegisterAnimal(f.ctx, AnimalInput{FarmerID: "farm-1", Tag: "x", Sex: "Other"})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, _, err = f.service.RegisterAnimal(f.ctx, AnimalInput{FarmerID: "farm-1", Tag: " ", Sex: domain.SexMale})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, _, err = f.service.RegisterSemenStraw(f.ctx, SemenStrawInput{FarmerID: "farm-1", Code: "code-straw-1"})
	assert.ErrorIs(t, err, domain.ErrConflict)
	_, _, err = f.service.RegisterSemenStraw(f.ctx, SemenStrawInput{FarmerID: "farm-1"})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, _, err = f.service.RegisterSemenStraw(f.ctx, SemenStrawInput{Code: "orphan"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}
