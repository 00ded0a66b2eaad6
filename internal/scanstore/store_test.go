package scanstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/vinscan/vinscan/internal/scan"
	"github.com/vinscan/vinscan/internal/shared"
)

func setupTestDB(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	store := NewStore(db)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migration failed: %v", err)
	}
	return store
}

func record(device, vinStr string, at time.Time) *ScanRecord {
	return &ScanRecord{
		DeviceID:   device,
		SessionID:  shared.NewID("sess_"),
		VIN:        vinStr,
		Confidence: 0.9,
		Source:     scan.SourceText,
		ScannedAt:  at,
	}
}

func TestStoreSaveAssignsID(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	rec := record("cam-1", "1HGCM82633A004352", time.Now())
	if err := store.Save(ctx, rec); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if rec.ID == "" {
		t.Fatal("Save should assign an ID")
	}

	got, err := store.GetByID(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.VIN != "1HGCM82633A004352" || got.DeviceID != "cam-1" {
		t.Errorf("got %+v", got)
	}
}

func TestStoreGetByIDNotFound(t *testing.T) {
	store := setupTestDB(t)
	_, err := store.GetByID(context.Background(), "scan_missing")
	if !errors.Is(err, shared.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestStoreListFilters(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	now := time.Now()

	store.Save(ctx, record("cam-1", "1HGCM82633A004352", now.Add(-2*time.Hour)))
	store.Save(ctx, record("cam-1", "2HGCM82633A004352", now))
	store.Save(ctx, record("cam-2", "1HGCM82633A004352", now))

	byDevice, err := store.List(ctx, Query{DeviceID: "cam-1"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(byDevice) != 2 {
		t.Errorf("device filter = %d records, want 2", len(byDevice))
	}
	// Newest first.
	if byDevice[0].VIN != "2HGCM82633A004352" {
		t.Errorf("first record VIN = %q, want the newest", byDevice[0].VIN)
	}

	byVIN, err := store.List(ctx, Query{VIN: "1HGCM82633A004352"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(byVIN) != 2 {
		t.Errorf("vin filter = %d records, want 2", len(byVIN))
	}

	recent, err := store.List(ctx, Query{From: now.Add(-time.Hour)})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recent) != 2 {
		t.Errorf("time filter = %d records, want 2", len(recent))
	}
}

func TestStoreListClampsLimit(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		store.Save(ctx, record("cam-1", "1HGCM82633A004352", time.Now()))
	}

	got, err := store.List(ctx, Query{Limit: 2})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("limited list = %d, want 2", len(got))
	}

	all, err := store.List(ctx, Query{Limit: 100000})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 5 {
		t.Errorf("clamped list = %d, want 5", len(all))
	}
}

func TestStoreCountByDevice(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	store.Save(ctx, record("cam-1", "1HGCM82633A004352", time.Now()))
	store.Save(ctx, record("cam-1", "1HGCM82633A004352", time.Now()))
	store.Save(ctx, record("cam-2", "1HGCM82633A004352", time.Now()))

	count, err := store.CountByDevice(ctx, "cam-1")
	if err != nil {
		t.Fatalf("CountByDevice: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
}

func TestStoreDeleteOld(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	store.Save(ctx, record("cam-1", "1HGCM82633A004352", time.Now().Add(-48*time.Hour)))
	store.Save(ctx, record("cam-1", "1HGCM82633A004352", time.Now()))

	dropped, err := store.DeleteOld(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("DeleteOld: %v", err)
	}
	if dropped != 1 {
		t.Errorf("dropped = %d, want 1", dropped)
	}

	remaining, _ := store.List(ctx, Query{})
	if len(remaining) != 1 {
		t.Errorf("remaining = %d, want 1", len(remaining))
	}
}

func TestFromOutcome(t *testing.T) {
	now := time.Now()
	out := scan.Outcome{
		SessionID: "sess_abc",
		Status:    scan.StatusOK,
		Attempts:  2,
		Duration:  450 * time.Millisecond,
		Frame: &scan.Frame{
			ID:                "frame_1",
			VIN:               "1HGCM82633A004352",
			Confidence:        0.92,
			ImageQuality:      0.8,
			Source:            scan.SourceBarcode,
			Timestamp:         now,
			KnownManufacturer: true,
		},
	}

	rec := FromOutcome("cam-1", out)
	if rec.ID != "frame_1" || rec.DeviceID != "cam-1" || rec.SessionID != "sess_abc" {
		t.Errorf("identifiers = %+v", rec)
	}
	if rec.VIN != "1HGCM82633A004352" || rec.Source != scan.SourceBarcode {
		t.Errorf("payload = %+v", rec)
	}
	if rec.DurationMs != 450 || rec.Attempts != 2 {
		t.Errorf("timing = %+v", rec)
	}
	if !rec.KnownManufacturer || rec.ScannedAt != now {
		t.Errorf("flags = %+v", rec)
	}
}
