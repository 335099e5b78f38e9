package core

import (
	"herdcore/pkg/domain"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deliveredDam(t *testing.T, f *fixture) (Insemination, DeliveryRecord) {
	t.Helper()
	insem := f.pregnantDam()
	first := calf(domain.ConditionVigorous)
	first.Tag = "calf-1"
	record, _, err := f.service.RecordDelivery(f.ctx, DeliveryInput{
		InseminationID:    insem.ID,
		ActualDate:        day("2025-10-10"),
		Type:              domain.DeliveryNormal,
		EaseScore:         2,
		Offspring:         []OffspringInput{first},
		DamConditionAfter: " Good ",
	})
	require.NoError(t, err)
	return insem, record
}

func TestRecordDeliveryValidation(t *testing.T) {
	f := newFixture(t)
	insem := f.pregnantDam()
	base := DeliveryInput{
		InseminationID: insem.ID,
		ActualDate:     day("2025-10-10"),
		Type:           domain.DeliveryNormal,
		EaseScore:      1,
		Offspring:      []OffspringInput{calf(domain.ConditionVigorous)},
	}
	cases := []struct {
		name   string
		mutate func(in *DeliveryInput)
		want   error
	}{
		{"future", func(in *DeliveryInput) { in.ActualDate = day("2026-02-01") }, domain.ErrValidation},
		{"before insemination", func(in *DeliveryInput) { in.ActualDate = day("2025-01-02") }, domain.ErrValidation},
		{"unknown type", func(in *DeliveryInput) { in.Type = "Breech" }, domain.ErrValidation},
		{"ease too low", func(in *DeliveryInput) { in.EaseScore = 0 }, domain.ErrValidation},
		{"ease too high", func(in *DeliveryInput) { in.EaseScore = 6 }, domain.ErrValidation},
		{"no offspring", func(in *DeliveryInput) { in.Offspring = nil }, domain.ErrValidation},
		{"bad gender", func(in *DeliveryInput) {
			o := calf(domain.ConditionVigorous)
			o.Gender = "Unknown"
			in.Offspring = []OffspringInput{o}
		}, domain.ErrValidation},
		{"bad condition", func(in *DeliveryInput) { in.Offspring = []OffspringInput{calf("Sleepy")} }, domain.ErrValidation},
		{"bad colostrum", func(in *DeliveryInput) {
			o := calf(domain.ConditionWeak)
			o.ColostrumIntake = "Lots"
			in.Offspring = []OffspringInput{o}
		}, domain.ErrValidation},
		{"negative weight", func(in *DeliveryInput) {
			o := calf(domain.ConditionWeak)
			o.BirthWeightKg = decimal.NewFromInt(-1)
			in.Offspring = []OffspringInput{o}
		}, domain.ErrValidation},
		{"tag of registered animal", func(in *DeliveryInput) {
			o := calf(domain.ConditionWeak)
			o.Tag = "tag-dam-1"
			in.Offspring = []OffspringInput{o}
		}, domain.ErrConflict},
		{"unknown insemination", func(in *DeliveryInput) { in.InseminationID = "missing" }, domain.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := base
			tc.mutate(&in)
			_, _, err := f.service.RecordDelivery(f.ctx, in)
			assert.ErrorIs(t, err, tc.want)
		})
	}
	assert.Equal(t, domain.StatusConfirmedPregnant, f.insemination(insem.ID).Status)
}

func TestRecordDeliveryCascade(t *testing.T) {
	f := newFixture(t)
	insem, record := deliveredDam(t, f)

	assert.Equal(t, insem.ID, record.Delivery.InseminationID)
	assert.Equal(t, "dam-1", record.Delivery.DamID)
	assert.Equal(t, "Good", record.Delivery.DamConditionAfter)
	require.Len(t, record.Offspring, 1)
	assert.Equal(t, "calf-1", record.Offspring[0].Tag)

	got, err := f.service.GetDelivery(f.ctx, record.Delivery.ID)
	require.NoError(t, err)
	assert.Equal(t, record.Delivery.ID, got.Delivery.ID)
	assert.Len(t, got.Offspring, 1)

	_, err = f.service.GetDelivery(f.ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateDeliveryReconcilesOffspring(t *testing.T) {
	f := newFixture(t)
	_, record := deliveredDam(t, f)
	existing := record.Offspring[0]

	keep := calf(domain.ConditionWeak)
	keep.ID = existing.ID
	keep.Tag = "calf-1"
	added := calf(domain.ConditionStillborn)
	added.Gender = domain.SexMale

	updated, res, err := f.service.UpdateDelivery(f.ctx, record.Delivery.ID, DeliveryInput{
		ActualDate: day("2025-10-10"),
		Type:       domain.DeliveryAssisted,
		EaseScore:  4,
		Offspring:  []OffspringInput{keep, added},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Delivery.TotalBorn)
	assert.Equal(t, 1, updated.Delivery.LiveBorn)
	assert.Equal(t, 1, updated.Delivery.Stillborn)
	assert.Equal(t, domain.DeliveryAssisted, updated.Delivery.Type)
	require.Len(t, updated.Offspring, 2)
	assert.Equal(t, existing.ID, updated.Offspring[0].ID)
	assert.Equal(t, domain.ConditionWeak, updated.Offspring[0].BirthCondition)
	assert.Empty(t, res.Touched(EntityLactation), "same date leaves the lactation alone")

	only := calf(domain.ConditionVigorous)
	updated, _, err = f.service.UpdateDelivery(f.ctx, record.Delivery.ID, DeliveryInput{
		ActualDate: day("2025-10-10"),
		Type:       domain.DeliveryNormal,
		EaseScore:  1,
		Offspring:  []OffspringInput{only},
	})
	require.NoError(t, err)
	require.Len(t, updated.Offspring, 1)
	assert.NotEqual(t, existing.ID, updated.Offspring[0].ID)
	assert.Equal(t, 1, updated.Delivery.TotalBorn)
}

func TestUpdateDeliveryRejectsUnknownOffspring(t *testing.T) {
	f := newFixture(t)
	_, record := deliveredDam(t, f)
	ghost := calf(domain.ConditionVigorous)
	ghost.ID = "ghost"
	_, _, err := f.service.UpdateDelivery(f.ctx, record.Delivery.ID, DeliveryInput{ActualDate: day("2025-10-10"), Type: domain.DeliveryNormal, EaseScore: 1, Offspring: []OffspringInput{ghost}})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	twice := calf(domain.ConditionVigorous)
	twice.ID = record.Offspring[0].ID
	_, _, err = f.service.UpdateDelivery(f.ctx, record.Delivery.ID, DeliveryInput{ActualDate: day("2025-10-10"), Type: domain.DeliveryNormal, EaseScore: 1, Offspring: []OffspringInput{twice, twice}})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, _, err = f.service.UpdateDelivery(f.ctx, record.Delivery.ID, DeliveryInput{InseminationID: "other", ActualDate: day("2025-10-10"), Type: domain.DeliveryNormal, EaseScore: 1, Offspring: []OffspringInput{calf(domain.ConditionVigorous)}})
	assert.ErrorIs(t, err, domain.ErrValidation)

	got, err := f.service.GetDelivery(f.ctx, record.Delivery.ID)
	require.NoError(t, err)
	require.Len(t, got.Offspring, 1)
	assert.Equal(t, record.Offspring[0].ID, got.Offspring[0].ID)
}

func TestUpdateDeliveryDateShiftsLactationAndHeat(t *testing.T) {
	f := newFixture(t)
	_, record := deliveredDam(t, f)

	keep := calf(domain.ConditionVigorous)
	keep.ID = record.Offspring[0].ID
	_, res, err := f.service.UpdateDelivery(f.ctx, record.Delivery.ID, DeliveryInput{
		ActualDate: day("2025-10-05"),
		Type:       domain.DeliveryNormal,
		EaseScore:  1,
		Offspring:  []OffspringInput{keep},
	})
	require.NoError(t, err)
	assert.Len(t, res.Touched(EntityLactation), 1)

	lactations, err := f.service.ListLactations(f.ctx, "dam-1")
	require.NoError(t, err)
	require.Len(t, lactations, 1)
	assert.Equal(t, day("2025-10-05"), lactations[0].StartDate)

	next, ok, err := f.service.NextExpectedHeat(f.ctx, "dam-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, day("2025-12-24"), next)
}

func TestUpdateDeliveryDateAfterPeakConflicts(t *testing.T) {
	f := newFixture(t)
	_, record := deliveredDam(t, f)
	lactations, err := f.service.ListLactations(f.ctx, "dam-1")
	require.NoError(t, err)
	_, _, err = f.service.RecordLactationPeak(f.ctx, lactations[0].ID, day("2025-11-20"))
	require.NoError(t, err)

	keep := calf(domain.ConditionVigorous)
	keep.ID = record.Offspring[0].ID
	_, _, err = f.service.UpdateDelivery(f.ctx, record.Delivery.ID, DeliveryInput{
		ActualDate: day("2025-12-01"),
		Type:       domain.DeliveryNormal,
		EaseScore:  1,
		Offspring:  []OffspringInput{keep},
	})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestOffspringTagsScopedToFarmer(t *testing.T) {
	f := newFixture(t)
	_, first := deliveredDam(t, f)

	other := WithFarmer(f.ctx, "farm-2")
	_, _, err := f.service.RegisterAnimal(other, AnimalInput{ID: "dam-2", Tag: "tag-dam-2", Species: "cattle", Sex: domain.SexFemale})
	require.NoError(t, err)
	_, _, err = f.service.RegisterSemenStraw(other, SemenStrawInput{ID: "straw-2", Code: "code-straw-2"})
	require.NoError(t, err)
	h, _, err := f.service.RecordHeatObservation(other, HeatObservationInput{DamID: "dam-2", ObservedDate: day("2025-01-01"), Intensity: domain.IntensityStrong})
	require.NoError(t, err)
	insem, _, err := f.service.CreateInsemination(other, InseminationInput{DamID: "dam-2", SemenID: "straw-2", HeatCycleID: h.ID, Method: domain.MethodAI, Date: day("2025-01-02")})
	require.NoError(t, err)
	_, _, err = f.service.RecordPregnancyCheck(other, PregnancyCheckInput{InseminationID: insem.ID, CheckDate: day("2025-02-01"), Method: domain.CheckPalpation, Result: domain.ResultPregnant})
	require.NoError(t, err)

	reused := calf(domain.ConditionVigorous)
	reused.Tag = "calf-1"
	record, _, err := f.service.RecordDelivery(other, DeliveryInput{
		InseminationID: insem.ID,
		ActualDate:     day("2025-10-11"),
		Type:           domain.DeliveryNormal,
		EaseScore:      1,
		Offspring:      []OffspringInput{reused},
	})
	require.NoError(t, err, "farm-1 already uses calf-1, farm-2 may too")
	require.Len(t, record.Offspring, 1)
	assert.Equal(t, "calf-1", record.Offspring[0].Tag)

	twin := calf(domain.ConditionWeak)
	twin.Tag = "calf-1"
	keep := calf(domain.ConditionVigorous)
	keep.ID = first.Offspring[0].ID
	keep.Tag = "calf-1"
	_, _, err = f.service.UpdateDelivery(f.ctx, first.Delivery.ID, DeliveryInput{
		ActualDate: day("2025-10-10"),
		Type:       domain.DeliveryNormal,
		EaseScore:  2,
		Offspring:  []OffspringInput{keep, twin},
	})
	require.ErrorIs(t, err, domain.ErrValidation)

	sibling := calf(domain.ConditionWeak)
	sibling.Tag = "calf-1"
	_, _, err = f.service.UpdateDelivery(other, record.Delivery.ID, DeliveryInput{
		ActualDate: day("2025-10-11"),
		Type:       domain.DeliveryNormal,
		EaseScore:  1,
		Offspring:  []OffspringInput{sibling},
	})
	require.NoError(t, err, "replacing the only calf frees its tag")
}

func TestOffspringTagConflictDoesNotNameOtherRecords(t *testing.T) {
	f := newFixture(t)
	insem := f.pregnantDam()
	_, _, err := f.service.RegisterAnimal(f.ctx, AnimalInput{ID: "animal-42", FarmerID: "farm-1", Tag: "EAR-77", Sex: domain.SexMale})
	require.NoError(t, err)

	taken := calf(domain.ConditionVigorous)
	taken.Tag = "EAR-77"
	_, _, err = f.service.RecordDelivery(f.ctx, DeliveryInput{
		InseminationID: insem.ID,
		ActualDate:     day("2025-10-10"),
		Type:           domain.DeliveryNormal,
		EaseScore:      1,
		Offspring:      []OffspringInput{taken},
	})
	require.ErrorIs(t, err, domain.ErrConflict)
	assert.Contains(t, err.Error(), "already used by another animal")
	assert.NotContains(t, err.Error(), "animal-42")
}

func TestUpdateDeliverySwapsTagsBetweenOffspring(t *testing.T) {
	f := newFixture(t)
	insem := f.pregnantDam()
	a := calf(domain.ConditionVigorous)
	a.Tag = "T1"
	b := calf(domain.ConditionWeak)
	b.Tag = "T2"
	record, _, err := f.service.RecordDelivery(f.ctx, DeliveryInput{
		InseminationID: insem.ID,
		ActualDate:     day("2025-10-10"),
		Type:           domain.DeliveryNormal,
		EaseScore:      1,
		Offspring:      []OffspringInput{a, b},
	})
	require.NoError(t, err)
	require.Len(t, record.Offspring, 2)

	a.ID, a.Tag = record.Offspring[0].ID, "T2"
	b.ID, b.Tag = record.Offspring[1].ID, "T1"
	updated, _, err := f.service.UpdateDelivery(f.ctx, record.Delivery.ID, DeliveryInput{
		ActualDate: day("2025-10-10"),
		Type:       domain.DeliveryNormal,
		EaseScore:  1,
		Offspring:  []OffspringInput{a, b},
	})
	require.NoError(t, err)
	require.Len(t, updated.Offspring, 2)
	assert.Equal(t, a.ID, updated.Offspring[0].ID)
	assert.Equal(t, "T2", updated.Offspring[0].Tag)
	assert.Equal(t, "T1", updated.Offspring[1].Tag)
}
