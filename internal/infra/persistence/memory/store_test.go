package memory

import (
	"context"
	"errors"
	"fmt"
	"herdcore/pkg/domain"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestStore(engine *domain.RulesEngine) *Store {
	seq := 0
	return NewStore(engine,
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("id-%04d", seq)
		}),
	)
}

func seedDam(t *testing.T, store *Store) (Animal, HeatCycle) {
	t.Helper()
	var dam Animal
	var heat HeatCycle
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		var err error
		dam, err = tx.CreateAnimal(Animal{FarmerID: "f1", Tag: "D-1", Species: "cattle", Sex: domain.SexFemale})
		if err != nil {
			return err
		}
		observed := domain.Date(fixedNow)
		heat, err = tx.CreateHeatCycle(HeatCycle{
			DamID:            dam.ID,
			ObservedDate:     &observed,
			NextExpectedDate: domain.AddDays(observed, domain.EstrousCycleDays),
			Source:           domain.HeatSourceObserved,
		})
		return err
	})
	require.NoError(t, err)
	return dam, heat
}

func TestStoreRunInTransactionAndSnapshots(t *testing.T) {
	store := newTestStore(nil)
	ctx := context.Background()

	res, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, ok := tx.FindAnimal("missing")
		assert.False(t, ok)
		created, err := tx.CreateAnimal(Animal{FarmerID: "f1", Tag: "A-1", Species: "goat", Sex: domain.SexFemale})
		if err != nil {
			return err
		}
		assert.Equal(t, "id-0001", created.ID)
		assert.Equal(t, fixedNow, created.CreatedAt)
		assert.Len(t, tx.Snapshot().ListAnimals(), 1)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, res.Changes, 1)
	assert.Equal(t, domain.ActionCreate, res.Changes[0].Action)
	assert.False(t, res.Changes[0].Before.Defined())
	assert.True(t, res.Changes[0].After.Defined())

	snapshot := store.ExportState()
	assert.Len(t, snapshot.Animals, 1)
	store.ImportState(Snapshot{})
	require.NoError(t, store.View(ctx, func(v domain.TransactionView) error {
		assert.Empty(t, v.ListAnimals())
		return nil
	}))
	store.ImportState(snapshot)
	require.NoError(t, store.View(ctx, func(v domain.TransactionView) error {
		assert.Len(t, v.ListAnimals(), 1)
		return nil
	}))
	assert.NotNil(t, store.RulesEngine())
	assert.NotNil(t, store.NowFunc())
}

func TestStoreRollbackOnError(t *testing.T) {
	store := newTestStore(nil)
	boom := errors.New("boom")
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.CreateAnimal(Animal{FarmerID: "f1", Tag: "A-1"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Empty(t, store.ExportState().Animals)
}

func TestStoreRollbackOnCancelledContext(t *testing.T) {
	store := newTestStore(nil)
	ctx, cancel := context.WithCancel(context.Background())
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreateAnimal(Animal{FarmerID: "f1", Tag: "A-1"})
		cancel()
		return err
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, store.ExportState().Animals)
}

type blockingRule struct{}

func (blockingRule) Name() string { return "block" }

func (blockingRule) Evaluate(_ context.Context, _ domain.RuleView, _ []domain.Change) (domain.Result, error) {
	return domain.Result{Violations: []domain.Violation{{Rule: "block", Severity: domain.SeverityBlock, Message: "nope"}}}, nil
}

func TestStoreRuleViolation(t *testing.T) {
	store := newTestStore(domain.NewRulesEngine())
	store.RulesEngine().Register(blockingRule{})
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, e := tx.CreateAnimal(Animal{FarmerID: "f1", Tag: "X"})
		return e
	})
	var violation domain.RuleViolationError
	require.ErrorAs(t, err, &violation)
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Contains(t, err.Error(), "nope")
	assert.Empty(t, store.ExportState().Animals)
}

func TestStoreUpdatePreservesIdentity(t *testing.T) {
	store := newTestStore(nil)
	_, heat := seedDam(t, store)
	res, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.UpdateHeatCycle(heat.ID, func(h *HeatCycle) error {
			h.ID = "hijack"
			h.Inseminated = true
			return nil
		})
		return err
	})
	require.NoError(t, err)
	require.Len(t, res.Changes, 1)
	assert.Equal(t, heat.ID, res.Changes[0].EntityID)
	got, ok := store.ExportState().HeatCycles[heat.ID]
	require.True(t, ok)
	assert.True(t, got.Inseminated)
}

func TestStoreNotFound(t *testing.T) {
	store := newTestStore(nil)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.UpdateInsemination("missing", func(*Insemination) error { return nil })
		return err
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		return tx.DeleteLactation("missing")
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateHeatCycle(HeatCycle{DamID: "ghost"})
		return err
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStoreDeliveryUniquePerInsemination(t *testing.T) {
	store := newTestStore(nil)
	dam, heat := seedDam(t, store)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		insem, err := tx.CreateInsemination(Insemination{DamID: dam.ID, HeatCycleID: heat.ID, Status: domain.StatusConfirmedPregnant})
		if err != nil {
			return err
		}
		if _, err := tx.CreateDelivery(Delivery{InseminationID: insem.ID, DamID: dam.ID}); err != nil {
			return err
		}
		_, err = tx.CreateDelivery(Delivery{InseminationID: insem.ID, DamID: dam.ID})
		return err
	})
	require.ErrorIs(t, err, domain.ErrConflict)
	assert.Empty(t, store.ExportState().Inseminations)
}

func TestStoreReferentialGuards(t *testing.T) {
	store := newTestStore(nil)
	dam, heat := seedDam(t, store)
	var insem Insemination
	var delivery Delivery
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		var err error
		insem, err = tx.CreateInsemination(Insemination{DamID: dam.ID, HeatCycleID: heat.ID, Status: domain.StatusConfirmedPregnant})
		if err != nil {
			return err
		}
		if _, err = tx.CreatePregnancyCheck(PregnancyCheck{InseminationID: insem.ID, Result: domain.ResultPregnant}); err != nil {
			return err
		}
		delivery, err = tx.CreateDelivery(Delivery{InseminationID: insem.ID, DamID: dam.ID})
		if err != nil {
			return err
		}
		_, err = tx.CreateOffspring(Offspring{DeliveryID: delivery.ID, Tag: "C-1"})
		return err
	})
	require.NoError(t, err)

	cases := map[string]func(tx domain.Transaction) error{
		"heat cycle":   func(tx domain.Transaction) error { return tx.DeleteHeatCycle(heat.ID) },
		"insemination": func(tx domain.Transaction) error { return tx.DeleteInsemination(insem.ID) },
		"delivery":     func(tx domain.Transaction) error { return tx.DeleteDelivery(delivery.ID) },
		"dam":          func(tx domain.Transaction) error { return tx.DeleteAnimal(dam.ID) },
		"tag": func(tx domain.Transaction) error {
			_, err := tx.CreateOffspring(Offspring{DeliveryID: delivery.ID, Tag: "C-1"})
			return err
		},
	}
	for name, fn := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := store.RunInTransaction(context.Background(), fn)
			assert.ErrorIs(t, err, domain.ErrConflict)
		})
	}
}

func TestStoreStrawDeleteGuard(t *testing.T) {
	store := newTestStore(nil)
	var straw SemenStraw
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		var err error
		straw, err = tx.CreateSemenStraw(SemenStraw{FarmerID: "f1", Code: "S-1"})
		if err != nil {
			return err
		}
		_, err = tx.UpdateSemenStraw(straw.ID, func(s *SemenStraw) error {
			s.Used = true
			s.UsedAt = domain.DatePtr(fixedNow)
			return nil
		})
		return err
	})
	require.NoError(t, err)
	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		return tx.DeleteSemenStraw(straw.ID)
	})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestViewOrdering(t *testing.T) {
	store := newTestStore(nil)
	dam, heat := seedDam(t, store)
	d := func(day int) time.Time { return time.Date(2024, 4, day, 0, 0, 0, 0, time.UTC) }
	var insemID string
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		insem, err := tx.CreateInsemination(Insemination{DamID: dam.ID, HeatCycleID: heat.ID})
		if err != nil {
			return err
		}
		insemID = insem.ID
		for _, c := range []PregnancyCheck{
			{InseminationID: insem.ID, CheckDate: d(20), Result: domain.ResultNotPregnant},
			{InseminationID: insem.ID, CheckDate: d(10), Result: domain.ResultPregnant},
			{InseminationID: insem.ID, CheckDate: d(20), Result: domain.ResultPregnant},
		} {
			if _, err := tx.CreatePregnancyCheck(c); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, store.View(context.Background(), func(v domain.TransactionView) error {
		checks := v.ListPregnancyChecksByInsemination(insemID)
		require.Len(t, checks, 3)
		assert.Equal(t, d(10), checks[0].CheckDate)
		assert.Equal(t, domain.ResultNotPregnant, checks[1].Result)
		assert.Equal(t, domain.ResultPregnant, checks[2].Result)
		assert.Len(t, v.ListInseminationsByHeatCycle(heat.ID), 1)
		assert.Len(t, v.ListHeatCyclesByDam(dam.ID), 1)
		assert.Empty(t, v.ListHeatCyclesByDam("other"))
		return nil
	}))
}

func TestViewIsolation(t *testing.T) {
	store := newTestStore(nil)
	_, heat := seedDam(t, store)
	require.NoError(t, store.View(context.Background(), func(v domain.TransactionView) error {
		got, ok := v.FindHeatCycle(heat.ID)
		require.True(t, ok)
		*got.ObservedDate = got.ObservedDate.AddDate(1, 0, 0)
		return nil
	}))
	assert.Equal(t, domain.Date(fixedNow), *store.ExportState().HeatCycles[heat.ID].ObservedDate)
}

func TestCommitHookFailureRollsBack(t *testing.T) {
	var seen []Snapshot
	fail := false
	store := NewStore(nil, WithCommitHook(func(_ context.Context, s Snapshot) error {
		if fail {
			return errors.New("disk full")
		}
		seen = append(seen, s)
		return nil
	}))
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateAnimal(Animal{FarmerID: "f1", Tag: "A-1"})
		return err
	})
	require.NoError(t, err)
	require.Len(t, seen, 1)
	assert.Len(t, seen[0].Animals, 1)

	fail = true
	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateAnimal(Animal{FarmerID: "f1", Tag: "A-2"})
		return err
	})
	require.ErrorContains(t, err, "disk full")
	assert.Len(t, store.ExportState().Animals, 1)
}

func TestSyncHookReplacesStaleState(t *testing.T) {
	durable := Snapshot{Animals: map[string]Animal{
		"a-1": {Base: domain.Base{ID: "a-1"}, FarmerID: "f1", Tag: "D-1", Sex: domain.SexFemale},
	}}
	stale := true
	var syncErr error
	store := NewStore(nil, WithSyncHook(func(context.Context) (Snapshot, bool, error) {
		if syncErr != nil {
			return Snapshot{}, false, syncErr
		}
		was := stale
		stale = false
		return durable, was, nil
	}))

	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateAnimal(Animal{FarmerID: "f1", Tag: "D-1"})
		return err
	})
	require.ErrorIs(t, err, domain.ErrConflict, "the durable animal is visible before the write")

	durable.Animals["a-2"] = Animal{Base: domain.Base{ID: "a-2"}, FarmerID: "f1", Tag: "D-2"}
	stale = true
	require.NoError(t, store.View(context.Background(), func(v TransactionView) error {
		assert.Len(t, v.ListAnimals(), 2)
		return nil
	}))

	syncErr = errors.New("database is locked")
	_, err = store.RunInTransaction(context.Background(), func(domain.Transaction) error { return nil })
	require.ErrorContains(t, err, "sync snapshot: database is locked")
	require.ErrorContains(t, store.View(context.Background(), func(TransactionView) error { return nil }), "database is locked")
}

func TestBucketsRoundTrip(t *testing.T) {
	store := newTestStore(nil)
	seedDam(t, store)
	encoded, err := EncodeBuckets(store.ExportState())
	require.NoError(t, err)
	require.Len(t, encoded, len(Buckets))

	var restored Snapshot
	for bucket, payload := range encoded {
		require.NoError(t, DecodeBucket(&restored, bucket, payload))
	}
	require.NoError(t, DecodeBucket(&restored, "unknown", []byte("{}")))
	assert.Len(t, restored.Animals, 1)
	assert.Len(t, restored.HeatCycles, 1)
	assert.Error(t, DecodeBucket(&restored, "animals", []byte("{")))
}

func TestBucketDiffReportsOnlyChangedBuckets(t *testing.T) {
	store := newTestStore(nil)
	seedDam(t, store)

	var diff BucketDiff
	first, err := diff.Pending(store.ExportState())
	require.NoError(t, err)
	assert.Equal(t, Buckets, Ordered(first))
	diff.Ack(first)

	again, err := diff.Pending(store.ExportState())
	require.NoError(t, err)
	assert.Empty(t, again)

	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateSemenStraw(SemenStraw{FarmerID: "f1", Code: "S-1"})
		return err
	})
	require.NoError(t, err)
	changed, err := diff.Pending(store.ExportState())
	require.NoError(t, err)
	assert.Equal(t, []string{"semen_straws"}, Ordered(changed))
}

func TestOffspringTagsScopedToFarmer(t *testing.T) {
	store := newTestStore(nil)
	deliver := func(farmerID, damTag string) Delivery {
		var delivery Delivery
		_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
			dam, err := tx.CreateAnimal(Animal{FarmerID: farmerID, Tag: damTag, Sex: domain.SexFemale})
			if err != nil {
				return err
			}
			heat, err := tx.CreateHeatCycle(HeatCycle{DamID: dam.ID, Source: domain.HeatSourceObserved})
			if err != nil {
				return err
			}
			insem, err := tx.CreateInsemination(Insemination{DamID: dam.ID, HeatCycleID: heat.ID, Status: domain.StatusConfirmedPregnant})
			if err != nil {
				return err
			}
			delivery, err = tx.CreateDelivery(Delivery{InseminationID: insem.ID, DamID: dam.ID})
			return err
		})
		require.NoError(t, err)
		return delivery
	}
	addCalf := func(deliveryID, tag string) (Offspring, error) {
		var calf Offspring
		_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
			var err error
			calf, err = tx.CreateOffspring(Offspring{DeliveryID: deliveryID, Tag: tag})
			return err
		})
		return calf, err
	}

	farmA := deliver("farm-A", "D-1")
	farmB := deliver("farm-B", "D-1")
	first, err := addCalf(farmA.ID, "CALF-1")
	require.NoError(t, err)
	other, err := addCalf(farmB.ID, "CALF-1")
	require.NoError(t, err, "another farmer may reuse the tag")

	_, err = addCalf(farmA.ID, "CALF-1")
	require.ErrorIs(t, err, domain.ErrConflict)
	assert.NotContains(t, err.Error(), first.ID)

	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.UpdateOffspring(other.ID, func(*Offspring) error { return nil })
		return err
	})
	require.NoError(t, err, "updating in place keeps the tag")
}
