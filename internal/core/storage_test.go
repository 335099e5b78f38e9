package core

import (
	"context"
	"errors"
	"herdcore/internal/infra/persistence/memory"
	"herdcore/internal/infra/persistence/sqlite"
	"herdcore/pkg/domain"
	"path/filepath"
	"testing"
	"time"
)

func TestOpenPersistentStore_DefaultSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "herd.db")
	store, err := OpenPersistentStore(context.Background(), StorageConfig{SQLitePath: path}, nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	sqliteStore, ok := store.(*sqlite.Store)
	if !ok {
		t.Fatalf("expected *sqlite.Store, got %T", store)
	}
	t.Cleanup(func() { _ = sqliteStore.Close() })
	if sqliteStore.Path() != path {
		t.Fatalf("expected path %s, got %s", path, sqliteStore.Path())
	}
}

func TestOpenPersistentStore_Memory(t *testing.T) {
	store, err := OpenPersistentStore(context.Background(), StorageConfig{Driver: " Memory "}, NewDefaultRulesEngine())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if _, ok := store.(*memory.Store); !ok {
		t.Fatalf("expected *memory.Store, got %T", store)
	}
}

func TestOpenPersistentStore_SQLiteReload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "reload.db")
	cfg := StorageConfig{Driver: StorageSQLite, SQLitePath: path}
	store, err := OpenPersistentStore(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	svc := NewService(store)
	animal, _, err := svc.RegisterAnimal(ctx, AnimalInput{FarmerID: "farmer-1", Tag: "C-1", Species: "cattle", Sex: "Female"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	_ = store.(*sqlite.Store).Close()

	reopened, err := OpenPersistentStore(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = reopened.(*sqlite.Store).Close() })
	var found bool
	if err := reopened.View(ctx, func(view TransactionView) error {
		_, found = view.FindAnimal(animal.ID)
		return nil
	}); err != nil {
		t.Fatalf("view: %v", err)
	}
	if !found {
		t.Fatalf("expected animal %s to survive reload", animal.ID)
	}
}

func TestOpenPersistentStore_PostgresUnreachable(t *testing.T) {
	cfg := StorageConfig{Driver: StoragePostgres, PostgresDSN: "postgres://herdcore@127.0.0.1:1/herdcore?sslmode=disable&connect_timeout=1"}
	if _, err := OpenPersistentStore(context.Background(), cfg, nil); err == nil {
		t.Fatalf("expected ping error for unreachable postgres")
	}
}

func TestOpenPersistentStore_UnknownDriver(t *testing.T) {
	if _, err := OpenPersistentStore(context.Background(), StorageConfig{Driver: "bogus"}, nil); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}

func TestSQLiteServicesSharingAFileConflictOnSecondDelivery(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "shared.db")
	open := func() *Service {
		store, err := NewSQLiteStore(path, nil)
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		t.Cleanup(func() { _ = store.Close() })
		return NewService(store, WithClock(ClockFunc(func() time.Time { return fixedNow })))
	}
	a, b := open(), open()

	if _, _, err := a.RegisterAnimal(ctx, AnimalInput{ID: "dam-1", FarmerID: "farm-1", Tag: "C-1", Species: "cattle", Sex: domain.SexFemale}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, _, err := a.RegisterSemenStraw(ctx, SemenStrawInput{ID: "straw-1", FarmerID: "farm-1", Code: "S-1"}); err != nil {
		t.Fatalf("straw: %v", err)
	}
	heat, _, err := a.RecordHeatObservation(ctx, HeatObservationInput{DamID: "dam-1", ObservedDate: day("2025-01-01"), Intensity: domain.IntensityStrong})
	if err != nil {
		t.Fatalf("heat: %v", err)
	}
	insem, _, err := a.CreateInsemination(ctx, InseminationInput{DamID: "dam-1", SemenID: "straw-1", HeatCycleID: heat.ID, Method: domain.MethodAI, Date: day("2025-01-02")})
	if err != nil {
		t.Fatalf("inseminate: %v", err)
	}
	if _, _, err := a.RecordPregnancyCheck(ctx, PregnancyCheckInput{InseminationID: insem.ID, CheckDate: day("2025-02-01"), Method: domain.CheckUltrasound, Result: domain.ResultPregnant}); err != nil {
		t.Fatalf("check: %v", err)
	}

	in := DeliveryInput{
		InseminationID: insem.ID,
		ActualDate:     day("2025-10-10"),
		Type:           domain.DeliveryNormal,
		EaseScore:      1,
		Offspring:      []OffspringInput{calf(domain.ConditionVigorous)},
	}
	if _, _, err := a.RecordDelivery(ctx, in); err != nil {
		t.Fatalf("delivery through a: %v", err)
	}
	if _, _, err := b.RecordDelivery(ctx, in); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict for the second delivery, got %v", err)
	}

	reopened, err := NewSQLiteStore(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = reopened.Close() })
	state := reopened.ExportState()
	if len(state.Deliveries) != 1 || len(state.Lactations) != 1 || len(state.HeatCycles) != 2 {
		t.Fatalf("unexpected state: deliveries=%d lactations=%d heat_cycles=%d", len(state.Deliveries), len(state.Lactations), len(state.HeatCycles))
	}
	if got := state.Inseminations[insem.ID].Status; got != domain.StatusDelivered {
		t.Fatalf("expected insemination delivered, got %s", got)
	}
}
