package core

import (
	"context"
	"fmt"
	"herdcore/internal/infra/persistence/memory"
	"herdcore/pkg/domain"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, time.January, 15, 9, 30, 0, 0, time.UTC)

func day(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func intPtr(v int) *int { return &v }

func timePtr(t time.Time) *time.Time { return &t }

// sequentialIDs returns a generator producing id-0001, id-0002, ...
func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%04d", n)
	}
}

type fixture struct {
	t       *testing.T
	ctx     context.Context
	store   *memory.Store
	service *Service
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	clock := func() time.Time { return fixedNow }
	store := memory.NewStore(NewDefaultRulesEngine(), memory.WithClock(clock), memory.WithIDGenerator(sequentialIDs()))
	opts = append([]Option{WithClock(ClockFunc(clock))}, opts...)
	return &fixture{
		t:       t,
		ctx:     context.Background(),
		store:   store,
		service: NewService(store, opts...),
	}
}

func (f *fixture) animal(id, species string, sex domain.Sex) Animal {
	f.t.Helper()
	a, _, err := f.service.RegisterAnimal(f.ctx, AnimalInput{ID: id, FarmerID: "farm-1", Tag: "tag-" + id, Species: species, Sex: sex})
	require.NoError(f.t, err)
	return a
}

func (f *fixture) dam(id string) Animal {
	return f.animal(id, "cattle", domain.SexFemale)
}

func (f *fixture) straw(id string) SemenStraw {
	f.t.Helper()
	s, _, err := f.service.RegisterSemenStraw(f.ctx, SemenStrawInput{ID: id, FarmerID: "farm-1", Code: "code-" + id, SireBreed: "Holstein"})
	require.NoError(f.t, err)
	return s
}

func (f *fixture) heat(damID, date string) HeatCycle {
	f.t.Helper()
	h, _, err := f.service.RecordHeatObservation(f.ctx, HeatObservationInput{DamID: damID, ObservedDate: day(date), Intensity: domain.IntensityStrong})
	require.NoError(f.t, err)
	return h
}

func (f *fixture) inseminateAI(damID, heatID, strawID, date string) Insemination {
	f.t.Helper()
	insem, _, err := f.service.CreateInsemination(f.ctx, InseminationInput{
		DamID:       damID,
		SemenID:     strawID,
		HeatCycleID: heatID,
		Method:      domain.MethodAI,
		Date:        day(date),
	})
	require.NoError(f.t, err)
	return insem
}

func (f *fixture) check(inseminationID, date string, result domain.CheckResult) PregnancyCheck {
	f.t.Helper()
	c, _, err := f.service.RecordPregnancyCheck(f.ctx, PregnancyCheckInput{
		InseminationID: inseminationID,
		CheckDate:      day(date),
		Method:         domain.CheckUltrasound,
		Result:         result,
	})
	require.NoError(f.t, err)
	return c
}

func (f *fixture) insemination(id string) Insemination {
	f.t.Helper()
	insem, err := f.service.GetInsemination(f.ctx, id)
	require.NoError(f.t, err)
	return insem
}

func (f *fixture) heatCycle(id string) HeatCycle {
	f.t.Helper()
	var out HeatCycle
	require.NoError(f.t, f.store.View(f.ctx, func(view TransactionView) error {
		var ok bool
		out, ok = view.FindHeatCycle(id)
		require.True(f.t, ok, "heat cycle %s", id)
		return nil
	}))
	return out
}

func (f *fixture) heatCycles(damID string) []HeatCycle {
	f.t.Helper()
	cycles, err := f.service.ListHeatCycles(f.ctx, damID)
	require.NoError(f.t, err)
	return cycles
}

func calf(condition domain.BirthCondition) OffspringInput {
	return OffspringInput{
		Gender:          domain.SexFemale,
		BirthWeightKg:   decimal.NewFromInt(30),
		BirthCondition:  condition,
		ColostrumIntake: domain.ColostrumAdequate,
	}
}

// pregnantDam prepares dam-1 with an AI insemination confirmed pregnant.
func (f *fixture) pregnantDam() Insemination {
	f.t.Helper()
	f.dam("dam-1")
	f.straw("straw-9")
	h := f.heat("dam-1", "2025-01-01")
	insem := f.inseminateAI("dam-1", h.ID, "straw-9", "2025-01-02")
	f.check(insem.ID, "2025-02-01", domain.ResultPregnant)
	return f.insemination(insem.ID)
}

func mustChangePayload[T any](t *testing.T, value T) domain.ChangePayload {
	t.Helper()
	payload, err := domain.NewChangePayloadFromValue(value)
	require.NoError(t, err)
	return payload
}
