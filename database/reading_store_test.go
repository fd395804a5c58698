package database

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/praisemwanza53/genset-monitoring/config"
	"github.com/praisemwanza53/genset-monitoring/models"
)

func newTestStore(t *testing.T) *ReadingStore {
	t.Helper()
	cfg := config.Default()
	cfg.Database.SQLite.Path = filepath.Join(t.TempDir(), "data", "genset_test.db")
	cfg.Logging.LogLevel = "error"

	db, err := Connect(cfg)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewReadingStore(db)
}

func reading(minute int, fuel, temp float64) models.SensorReading {
	base := time.Date(2025, 7, 15, 8, 32, 42, 0, time.UTC)
	return models.NewSensorReading(base.Add(time.Duration(minute)*time.Minute), fuel, temp)
}

func TestInsertDuplicateTimestampKeepsFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := reading(0, 97.0, 22.2)
	stored, err := store.Insert(ctx, first)
	if err != nil || !stored {
		t.Fatalf("first insert = %v, %v", stored, err)
	}

	second := first
	second.FuelLevel = 10
	second.Temperature = 99
	stored, err = store.Insert(ctx, second)
	if err != nil {
		t.Fatalf("duplicate insert returned error: %v", err)
	}
	if stored {
		t.Fatal("duplicate insert reported stored=true")
	}

	latest, found, err := store.Latest(ctx)
	if err != nil || !found {
		t.Fatalf("latest = %v, %v", found, err)
	}
	if latest != first {
		t.Fatalf("latest = %+v, want first write %+v", latest, first)
	}

	count, err := store.Count(ctx)
	if err != nil || count != 1 {
		t.Fatalf("count = %d, %v", count, err)
	}
}

func TestLatestOnEmptyStore(t *testing.T) {
	store := newTestStore(t)
	_, found, err := store.Latest(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Fatal("empty store reported a latest reading")
	}
}

func TestLatestDistinguishesZeroReading(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	zero := reading(0, 0, 0)
	if _, err := store.Insert(ctx, zero); err != nil {
		t.Fatal(err)
	}
	got, found, err := store.Latest(ctx)
	if err != nil || !found {
		t.Fatalf("latest = %v, %v", found, err)
	}
	if got != zero {
		t.Fatalf("latest = %+v, want %+v", got, zero)
	}
}

func TestRecentOrderingAndLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// insert out of order to make sure ordering comes from the query
	for _, m := range []int{3, 1, 4, 0, 2} {
		if _, err := store.Insert(ctx, reading(m, float64(90-m), 22)); err != nil {
			t.Fatal(err)
		}
	}

	all, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 5 {
		t.Fatalf("got %d readings, want 5", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].Timestamp <= all[i].Timestamp {
			t.Fatalf("readings not in descending order: %s then %s", all[i-1].Timestamp, all[i].Timestamp)
		}
	}

	one, err := store.Recent(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(one) != 1 || one[0] != reading(4, 86, 22) {
		t.Fatalf("Recent(1) = %+v", one)
	}
}

func TestRecentEmptyStoreReturnsEmptySlice(t *testing.T) {
	store := newTestStore(t)
	got, err := store.Recent(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("Recent on empty store = %#v, want empty non-nil slice", got)
	}
}

func TestClampLimit(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{-5, DefaultRecentLimit},
		{0, DefaultRecentLimit},
		{1, 1},
		{100, 100},
		{MaxRecentLimit, MaxRecentLimit},
		{MaxRecentLimit + 1, MaxRecentLimit},
		{1 << 30, MaxRecentLimit},
	}
	for _, tt := range tests {
		if got := ClampLimit(tt.in); got != tt.want {
			t.Errorf("ClampLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestRecentNonPositiveLimitBehavesAsDefault(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	batch := make([]models.SensorReading, 0, DefaultRecentLimit+20)
	for i := 0; i < DefaultRecentLimit+20; i++ {
		batch = append(batch, reading(i, 50, 30))
	}
	if _, err := store.InsertBatch(ctx, batch); err != nil {
		t.Fatal(err)
	}

	for _, limit := range []int{0, -1} {
		got, err := store.Recent(ctx, limit)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != DefaultRecentLimit {
			t.Errorf("Recent(%d) returned %d rows, want %d", limit, len(got), DefaultRecentLimit)
		}
	}
}

func TestInsertBatchIgnoresExisting(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Insert(ctx, reading(1, 80, 20)); err != nil {
		t.Fatal(err)
	}

	batch := []models.SensorReading{reading(0, 81, 21), reading(1, 1, 1), reading(2, 79, 22)}
	stored, err := store.InsertBatch(ctx, batch)
	if err != nil {
		t.Fatal(err)
	}
	if stored != 2 {
		t.Fatalf("stored = %d, want 2", stored)
	}

	got, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range got {
		if r.Timestamp == reading(1, 0, 0).Timestamp && r.FuelLevel != 80 {
			t.Fatalf("batch overwrote existing reading: %+v", r)
		}
	}

	earliest, latest, err := store.Range(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if earliest != reading(0, 0, 0).Timestamp || latest != reading(2, 0, 0).Timestamp {
		t.Fatalf("range = %s..%s", earliest, latest)
	}
}

func TestConcurrentInsertsAndReads(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	const writers = 8
	const perWriter = 10

	var wg sync.WaitGroup
	errs := make(chan error, writers*perWriter*2)
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				// every writer races on the same timestamps
				if _, err := store.Insert(ctx, reading(i, float64(w), 20)); err != nil {
					errs <- fmt.Errorf("writer %d insert %d: %w", w, i, err)
				}
				if _, err := store.Recent(ctx, 5); err != nil {
					errs <- fmt.Errorf("writer %d read %d: %w", w, i, err)
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != perWriter {
		t.Fatalf("count = %d, want %d distinct timestamps", count, perWriter)
	}
}

func TestPing(t *testing.T) {
	store := newTestStore(t)
	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}
