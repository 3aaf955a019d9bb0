package device

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory SQLite database with the device tables.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE devices (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			location TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'offline',
			battery REAL,
			last_seen TEXT,
			firmware_version TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL DEFAULT (datetime('now')),
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		);
		CREATE TABLE device_status (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			device_id TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'online',
			battery_level REAL,
			wifi_rssi REAL,
			free_heap REAL,
			uptime REAL,
			firmware_version TEXT NOT NULL DEFAULT '',
			ota_update INTEGER NOT NULL DEFAULT 0,
			reported_at TEXT NOT NULL DEFAULT (datetime('now'))
		);
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// testDevice creates a device for testing.
func testDevice(id, name string) *Device {
	return &Device{
		ID:       id,
		Name:     name,
		Location: "roof",
		Status:   StatusOffline,
	}
}

func TestCreateAndGetByID(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	d := testDevice("a4c9f0d2-1111-4222-8333-444455556666", "station-north")
	if err := repo.Create(ctx, d); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.GetByID(ctx, d.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}

	if got.Name != "station-north" {
		t.Errorf("Name = %q, want %q", got.Name, "station-north")
	}
	if got.Status != StatusOffline {
		t.Errorf("Status = %q, want %q", got.Status, StatusOffline)
	}
	if got.LastSeen != nil {
		t.Errorf("LastSeen = %v, want nil", got.LastSeen)
	}
}

func TestCreate_Duplicate(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	d := testDevice("a4c9f0d2-1111-4222-8333-444455556666", "station-north")
	if err := repo.Create(ctx, d); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	err := repo.Create(ctx, testDevice(d.ID, "imposter"))
	if !errors.Is(err, ErrDeviceExists) {
		t.Errorf("Create() duplicate error = %v, want ErrDeviceExists", err)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	_, err := repo.GetByID(context.Background(), "missing")
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("GetByID() error = %v, want ErrDeviceNotFound", err)
	}
}

func TestListByStatus(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	online := testDevice("a4c9f0d2-1111-4222-8333-444455556666", "alpha")
	online.Status = StatusOnline
	offline := testDevice("b5d0e1f3-2222-4333-9444-555566667777", "bravo")

	for _, d := range []*Device{online, offline} {
		if err := repo.Create(ctx, d); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	got, err := repo.ListByStatus(ctx, StatusOnline)
	if err != nil {
		t.Fatalf("ListByStatus() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != online.ID {
		t.Errorf("ListByStatus(online) = %v, want [%s]", got, online.ID)
	}

	all, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 2 {
		t.Errorf("List() returned %d devices, want 2", len(all))
	}

	n, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Count() = %d, want 2", n)
	}
}

func TestMarkSeen(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	d := testDevice("a4c9f0d2-1111-4222-8333-444455556666", "station-north")
	if err := repo.Create(ctx, d); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	seen := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := repo.MarkSeen(ctx, d.ID, seen); err != nil {
		t.Fatalf("MarkSeen() error = %v", err)
	}

	got, err := repo.GetByID(ctx, d.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Status != StatusOnline {
		t.Errorf("Status = %q, want online", got.Status)
	}
	if got.LastSeen == nil || !got.LastSeen.Equal(seen) {
		t.Errorf("LastSeen = %v, want %v", got.LastSeen, seen)
	}

	// Unknown device is an error, not an upsert.
	err = repo.MarkSeen(ctx, "c6e1f2a4-3333-4444-a555-666677778888", seen)
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("MarkSeen() unknown device error = %v, want ErrDeviceNotFound", err)
	}
}

func TestMarkReported(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	d := testDevice("a4c9f0d2-1111-4222-8333-444455556666", "station-north")
	if err := repo.Create(ctx, d); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	battery := 72.5
	if err := repo.MarkReported(ctx, d.ID, StatusOnline, &battery, at); err != nil {
		t.Fatalf("MarkReported() error = %v", err)
	}

	got, err := repo.GetByID(ctx, d.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Status != StatusOnline {
		t.Errorf("Status = %q, want online", got.Status)
	}
	if got.Battery == nil || *got.Battery != 72.5 {
		t.Errorf("Battery = %v, want 72.5", got.Battery)
	}

	// A heartbeat without a battery reading keeps the last known level.
	if err := repo.MarkReported(ctx, d.ID, StatusOffline, nil, at.Add(time.Minute)); err != nil {
		t.Fatalf("second MarkReported() error = %v", err)
	}
	got, err = repo.GetByID(ctx, d.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Status != StatusOffline {
		t.Errorf("Status = %q, want offline", got.Status)
	}
	if got.Battery == nil || *got.Battery != 72.5 {
		t.Errorf("Battery after nil report = %v, want 72.5", got.Battery)
	}

	err = repo.MarkReported(ctx, "c6e1f2a4-3333-4444-a555-666677778888", StatusOnline, nil, at)
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("MarkReported() unknown device error = %v, want ErrDeviceNotFound", err)
	}
}

func TestMarkOnlineAndOfflineExcept(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	wasOffline := testDevice("a4c9f0d2-1111-4222-8333-444455556666", "reporting")
	stillQuiet := testDevice("b5d0e1f3-2222-4333-9444-555566667777", "quiet")
	stillQuiet.Status = StatusOnline
	alreadyOnline := testDevice("c6e1f2a4-3333-4444-a555-666677778888", "steady")
	alreadyOnline.Status = StatusOnline

	for _, d := range []*Device{wasOffline, stillQuiet, alreadyOnline} {
		if err := repo.Create(ctx, d); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	active := []string{wasOffline.ID, alreadyOnline.ID}

	// Only the offline reporter transitions; the already-online one
	// is not counted.
	n, err := repo.MarkOnline(ctx, active)
	if err != nil {
		t.Fatalf("MarkOnline() error = %v", err)
	}
	if n != 1 {
		t.Errorf("MarkOnline() = %d, want 1", n)
	}

	n, err = repo.MarkOfflineExcept(ctx, active)
	if err != nil {
		t.Fatalf("MarkOfflineExcept() error = %v", err)
	}
	if n != 1 {
		t.Errorf("MarkOfflineExcept() = %d, want 1", n)
	}

	got, err := repo.GetByID(ctx, stillQuiet.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Status != StatusOffline {
		t.Errorf("quiet device Status = %q, want offline", got.Status)
	}

	// Sweep is idempotent: running both again transitions nothing.
	if n, _ := repo.MarkOnline(ctx, active); n != 0 {
		t.Errorf("second MarkOnline() = %d, want 0", n)
	}
	if n, _ := repo.MarkOfflineExcept(ctx, active); n != 0 {
		t.Errorf("second MarkOfflineExcept() = %d, want 0", n)
	}
}

func TestMarkOnline_EmptyActiveSet(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	d := testDevice("a4c9f0d2-1111-4222-8333-444455556666", "station-north")
	d.Status = StatusOnline
	if err := repo.Create(ctx, d); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	n, err := repo.MarkOnline(ctx, nil)
	if err != nil {
		t.Fatalf("MarkOnline() error = %v", err)
	}
	if n != 0 {
		t.Errorf("MarkOnline(nil) = %d, want 0", n)
	}

	// No active devices: everything online goes offline.
	n, err = repo.MarkOfflineExcept(ctx, nil)
	if err != nil {
		t.Fatalf("MarkOfflineExcept() error = %v", err)
	}
	if n != 1 {
		t.Errorf("MarkOfflineExcept(nil) = %d, want 1", n)
	}
}

func TestRecordStatusAndLatest(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	d := testDevice("a4c9f0d2-1111-4222-8333-444455556666", "station-north")
	if err := repo.Create(ctx, d); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	battery := 84.0
	rssi := -61.0
	older := &StatusReport{
		DeviceID:     d.ID,
		BatteryLevel: &battery,
		ReportedAt:   time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC),
	}
	newer := &StatusReport{
		DeviceID:        d.ID,
		Status:          "updating",
		BatteryLevel:    &battery,
		WiFiRSSI:        &rssi,
		FirmwareVersion: "2.4.1",
		OTAUpdate:       true,
		ReportedAt:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	for _, report := range []*StatusReport{older, newer} {
		if err := repo.RecordStatus(ctx, report); err != nil {
			t.Fatalf("RecordStatus() error = %v", err)
		}
		if report.ID == 0 {
			t.Error("RecordStatus() did not set report ID")
		}
	}

	got, err := repo.LatestStatus(ctx, d.ID)
	if err != nil {
		t.Fatalf("LatestStatus() error = %v", err)
	}
	if got.FirmwareVersion != "2.4.1" {
		t.Errorf("LatestStatus() returned report %d, want newest", got.ID)
	}
	if got.WiFiRSSI == nil || *got.WiFiRSSI != -61.0 {
		t.Errorf("WiFiRSSI = %v, want -61", got.WiFiRSSI)
	}
	if got.FreeHeap != nil {
		t.Errorf("FreeHeap = %v, want nil", got.FreeHeap)
	}
	if got.Status != "updating" {
		t.Errorf("Status = %q, want updating", got.Status)
	}
	if !got.OTAUpdate {
		t.Error("OTAUpdate = false, want true")
	}
	if older.Status != "online" {
		t.Errorf("default report Status = %q, want online", older.Status)
	}

	_, err = repo.LatestStatus(ctx, "b5d0e1f3-2222-4333-9444-555566667777")
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("LatestStatus() for silent device error = %v, want ErrDeviceNotFound", err)
	}
}

func TestUpdateAndDelete(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	d := testDevice("a4c9f0d2-1111-4222-8333-444455556666", "station-north")
	if err := repo.Create(ctx, d); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	d.Name = "station-renamed"
	d.FirmwareVersion = "2.5.0"
	if err := repo.Update(ctx, d); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, err := repo.GetByID(ctx, d.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Name != "station-renamed" || got.FirmwareVersion != "2.5.0" {
		t.Errorf("Update() not persisted: %+v", got)
	}

	if err := repo.Delete(ctx, d.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := repo.Delete(ctx, d.ID); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("second Delete() error = %v, want ErrDeviceNotFound", err)
	}

	if err := repo.Update(ctx, d); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Update() after delete error = %v, want ErrDeviceNotFound", err)
	}
}
