package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"kvartaly_monitor/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestUpsertApartment(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	price := 12500000.0
	apt := &models.ScrapedApartment{
		ExternalID: "unit-1",
		Status:     models.StatusBooked,
		Price:      &price,
		Address:    "Корпус 3",
	}
	if err := store.UpsertApartment(ctx, "p1", apt); err != nil {
		t.Fatalf("UpsertApartment: %v", err)
	}

	// Same unit again with a new status must update, not duplicate.
	apt.Status = models.StatusAvailable
	if err := store.UpsertApartment(ctx, "p1", apt); err != nil {
		t.Fatalf("UpsertApartment update: %v", err)
	}

	got, err := store.GetApartmentsByProfile(ctx, "p1")
	if err != nil {
		t.Fatalf("GetApartmentsByProfile: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("apartments = %d, want 1", len(got))
	}
	stored := got["unit-1"]
	if stored == nil || stored.Status != models.StatusAvailable {
		t.Errorf("stored = %+v", stored)
	}
	if stored.Price == nil || *stored.Price != price {
		t.Errorf("price = %v, want %v", stored.Price, price)
	}
	if stored.Address != "Корпус 3" {
		t.Errorf("address = %q", stored.Address)
	}

	// A different profile sees nothing.
	other, err := store.GetApartmentsByProfile(ctx, "p2")
	if err != nil {
		t.Fatalf("GetApartmentsByProfile: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("other profile apartments = %d, want 0", len(other))
	}
}

func TestProfileStateRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	got, err := store.GetProfileState(ctx, "p1")
	if err != nil {
		t.Fatalf("GetProfileState: %v", err)
	}
	if got != nil {
		t.Fatalf("state before save = %+v, want nil", got)
	}

	state := &models.ProfileState{ProfileID: "p1", LastTotal: 25, LastBooked: 25, LastAvailable: 0}
	if err := store.SaveProfileState(ctx, state); err != nil {
		t.Fatalf("SaveProfileState: %v", err)
	}

	state.LastBooked, state.LastAvailable = 24, 1
	if err := store.SaveProfileState(ctx, state); err != nil {
		t.Fatalf("SaveProfileState update: %v", err)
	}

	got, err = store.GetProfileState(ctx, "p1")
	if err != nil {
		t.Fatalf("GetProfileState: %v", err)
	}
	if got == nil || got.LastTotal != 25 || got.LastBooked != 24 || got.LastAvailable != 1 {
		t.Errorf("state = %+v", got)
	}
}

func TestScanHistory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	old := time.Now().AddDate(0, 0, -40)
	records := []models.ScanRecord{
		{ProfileID: "p1", ProfileName: "Test", Total: 25, Booked: 25, ScannedAt: old},
		{ProfileID: "p1", ProfileName: "Test", Total: 25, Booked: 24, Available: 1, ScannedAt: time.Now().Add(-time.Hour)},
		{ProfileID: "p1", ProfileName: "Test", Error: "navigation failed", ScannedAt: time.Now()},
	}
	for i := range records {
		if err := store.AddScanRecord(ctx, &records[i]); err != nil {
			t.Fatalf("AddScanRecord: %v", err)
		}
	}

	recent, err := store.GetRecentScans(ctx, 2)
	if err != nil {
		t.Fatalf("GetRecentScans: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("recent = %d, want 2", len(recent))
	}
	if recent[0].Error != "navigation failed" {
		t.Errorf("newest record = %+v", recent[0])
	}
	if recent[1].Available != 1 {
		t.Errorf("second record = %+v", recent[1])
	}

	removed, err := store.PruneHistory(ctx, time.Now().AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("PruneHistory: %v", err)
	}
	if removed != 1 {
		t.Errorf("pruned = %d, want 1", removed)
	}
}

func TestSubscriberLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	added, err := store.AddSubscriber(ctx, "100", "anna", "Анна")
	if err != nil {
		t.Fatalf("AddSubscriber: %v", err)
	}
	if !added {
		t.Error("first AddSubscriber = false, want true")
	}

	added, err = store.AddSubscriber(ctx, "100", "anna", "Анна")
	if err != nil {
		t.Fatalf("AddSubscriber again: %v", err)
	}
	if added {
		t.Error("duplicate AddSubscriber = true, want false")
	}

	if ok, _ := store.IsSubscriber(ctx, "100"); !ok {
		t.Error("IsSubscriber = false after add")
	}

	removed, err := store.RemoveSubscriber(ctx, "100")
	if err != nil {
		t.Fatalf("RemoveSubscriber: %v", err)
	}
	if !removed {
		t.Error("RemoveSubscriber = false, want true")
	}
	if ok, _ := store.IsSubscriber(ctx, "100"); ok {
		t.Error("IsSubscriber = true after remove")
	}

	removed, err = store.RemoveSubscriber(ctx, "100")
	if err != nil {
		t.Fatalf("RemoveSubscriber again: %v", err)
	}
	if removed {
		t.Error("second RemoveSubscriber = true, want false")
	}

	// Resubscribing reactivates the soft-deleted row.
	added, err = store.AddSubscriber(ctx, "100", "anna", "Анна")
	if err != nil {
		t.Fatalf("AddSubscriber reactivate: %v", err)
	}
	if !added {
		t.Error("reactivating AddSubscriber = false, want true")
	}

	count, err := store.GetSubscriberCount(ctx)
	if err != nil {
		t.Fatalf("GetSubscriberCount: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}

	subs, err := store.GetSubscribers(ctx)
	if err != nil {
		t.Fatalf("GetSubscribers: %v", err)
	}
	if len(subs) != 1 || subs[0].ChatID != "100" || subs[0].Username != "anna" {
		t.Errorf("subscribers = %+v", subs)
	}
}

func TestRecordBotUsage(t *testing.T) {
	store := newTestStore(t)
	if err := store.RecordBotUsage(context.Background(), "100", "/status"); err != nil {
		t.Fatalf("RecordBotUsage: %v", err)
	}
}
