package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for device persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// GetByID retrieves a device by its unique identifier.
	// Returns ErrDeviceNotFound if the device does not exist.
	GetByID(ctx context.Context, id string) (*Device, error)

	// List retrieves all devices.
	List(ctx context.Context) ([]Device, error)

	// ListByStatus retrieves all devices in a given liveness state.
	ListByStatus(ctx context.Context, status Status) ([]Device, error)

	// Count returns the total number of registered devices.
	Count(ctx context.Context) (int, error)

	// Create inserts a new device.
	// Returns ErrDeviceExists if a device with the same ID already exists.
	Create(ctx context.Context, d *Device) error

	// Update modifies an existing device.
	// Returns ErrDeviceNotFound if the device does not exist.
	Update(ctx context.Context, d *Device) error

	// Delete removes a device by ID.
	// Returns ErrDeviceNotFound if the device does not exist.
	Delete(ctx context.Context, id string) error

	// MarkSeen sets the device online and records the message time.
	// This runs on every accepted message, so it is a single UPDATE.
	MarkSeen(ctx context.Context, id string, at time.Time) error

	// MarkReported records a status-path heartbeat: the reported state
	// string, last-known battery, and the message time.
	MarkReported(ctx context.Context, id string, status Status, battery *float64, at time.Time) error

	// MarkOnline transitions the named devices to online. Devices
	// already online are untouched. Returns the number transitioned.
	MarkOnline(ctx context.Context, ids []string) (int64, error)

	// MarkOfflineExcept transitions every online device NOT in ids to
	// offline. Returns the number of devices transitioned.
	MarkOfflineExcept(ctx context.Context, ids []string) (int64, error)

	// RecordStatus persists a device health snapshot.
	RecordStatus(ctx context.Context, report *StatusReport) error

	// LatestStatus retrieves the most recent health snapshot for a device.
	// Returns ErrDeviceNotFound if the device has never reported status.
	LatestStatus(ctx context.Context, deviceID string) (*StatusReport, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const deviceColumns = `id, name, location, status, battery, last_seen, firmware_version, created_at, updated_at`

// GetByID retrieves a device by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE id = ?`

	d, err := scanDevice(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by id: %w", err)
	}
	return d, nil
}

// List retrieves all devices.
func (r *SQLiteRepository) List(ctx context.Context) ([]Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices ORDER BY name, id`
	return r.queryDevices(ctx, query)
}

// ListByStatus retrieves all devices in a given liveness state.
func (r *SQLiteRepository) ListByStatus(ctx context.Context, status Status) ([]Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE status = ? ORDER BY name, id`
	return r.queryDevices(ctx, query, string(status))
}

// Count returns the total number of registered devices.
func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM devices`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting devices: %w", err)
	}
	return n, nil
}

// Create inserts a new device.
func (r *SQLiteRepository) Create(ctx context.Context, d *Device) error {
	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now
	if d.Status == "" {
		d.Status = StatusOffline
	}

	query := `
		INSERT INTO devices (id, name, location, status, battery, last_seen, firmware_version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		d.ID,
		d.Name,
		d.Location,
		string(d.Status),
		nullableFloat(d.Battery),
		nullableTime(d.LastSeen),
		d.FirmwareVersion,
		d.CreatedAt.Format(time.RFC3339),
		d.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDeviceExists
		}
		return fmt.Errorf("inserting device: %w", err)
	}
	return nil
}

// Update modifies an existing device.
func (r *SQLiteRepository) Update(ctx context.Context, d *Device) error {
	d.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE devices
		SET name = ?, location = ?, status = ?, battery = ?, last_seen = ?, firmware_version = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		d.Name,
		d.Location,
		string(d.Status),
		nullableFloat(d.Battery),
		nullableTime(d.LastSeen),
		d.FirmwareVersion,
		d.UpdatedAt.Format(time.RFC3339),
		d.ID,
	)
	if err != nil {
		return fmt.Errorf("updating device: %w", err)
	}
	return requireRowAffected(result)
}

// Delete removes a device by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM devices WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}
	return requireRowAffected(result)
}

// MarkSeen sets the device online and records the message time.
func (r *SQLiteRepository) MarkSeen(ctx context.Context, id string, at time.Time) error {
	query := `
		UPDATE devices
		SET status = ?, last_seen = ?, updated_at = ?
		WHERE id = ?`

	now := time.Now().UTC().Format(time.RFC3339)
	result, err := r.db.ExecContext(ctx, query,
		string(StatusOnline),
		at.UTC().Format(time.RFC3339),
		now,
		id,
	)
	if err != nil {
		return fmt.Errorf("marking device seen: %w", err)
	}
	return requireRowAffected(result)
}

// MarkReported records a status-path heartbeat on the device row.
func (r *SQLiteRepository) MarkReported(ctx context.Context, id string, status Status, battery *float64, at time.Time) error {
	query := `
		UPDATE devices
		SET status = ?, battery = COALESCE(?, battery), last_seen = ?, updated_at = ?
		WHERE id = ?`

	now := time.Now().UTC().Format(time.RFC3339)
	result, err := r.db.ExecContext(ctx, query,
		string(status),
		nullableFloat(battery),
		at.UTC().Format(time.RFC3339),
		now,
		id,
	)
	if err != nil {
		return fmt.Errorf("recording device heartbeat: %w", err)
	}
	return requireRowAffected(result)
}

// MarkOnline transitions the named devices to online in one UPDATE.
func (r *SQLiteRepository) MarkOnline(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query := `
		UPDATE devices
		SET status = ?, updated_at = ?
		WHERE status != ? AND id IN (` + placeholders(len(ids)) + `)`

	args := make([]any, 0, len(ids)+3)
	args = append(args,
		string(StatusOnline),
		time.Now().UTC().Format(time.RFC3339),
		string(StatusOnline),
	)
	for _, id := range ids {
		args = append(args, id)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("marking active devices online: %w", err)
	}
	return transitionCount(result)
}

// MarkOfflineExcept transitions every online device not listed to offline.
func (r *SQLiteRepository) MarkOfflineExcept(ctx context.Context, ids []string) (int64, error) {
	query := `
		UPDATE devices
		SET status = ?, updated_at = ?
		WHERE status = ?`

	args := []any{
		string(StatusOffline),
		time.Now().UTC().Format(time.RFC3339),
		string(StatusOnline),
	}
	if len(ids) > 0 {
		query += ` AND id NOT IN (` + placeholders(len(ids)) + `)`
		for _, id := range ids {
			args = append(args, id)
		}
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("marking stale devices offline: %w", err)
	}
	return transitionCount(result)
}

// RecordStatus persists a device health snapshot.
func (r *SQLiteRepository) RecordStatus(ctx context.Context, report *StatusReport) error {
	if report.ReportedAt.IsZero() {
		report.ReportedAt = time.Now().UTC()
	}
	if report.Status == "" {
		report.Status = string(StatusOnline)
	}

	query := `
		INSERT INTO device_status (device_id, status, battery_level, wifi_rssi, free_heap, uptime, firmware_version, ota_update, reported_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		report.DeviceID,
		report.Status,
		nullableFloat(report.BatteryLevel),
		nullableFloat(report.WiFiRSSI),
		nullableFloat(report.FreeHeap),
		nullableFloat(report.Uptime),
		report.FirmwareVersion,
		report.OTAUpdate,
		report.ReportedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting status report: %w", err)
	}

	report.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading status report id: %w", err)
	}
	return nil
}

// LatestStatus retrieves the most recent health snapshot for a device.
func (r *SQLiteRepository) LatestStatus(ctx context.Context, deviceID string) (*StatusReport, error) {
	query := `
		SELECT id, device_id, status, battery_level, wifi_rssi, free_heap, uptime, firmware_version, ota_update, reported_at
		FROM device_status
		WHERE device_id = ?
		ORDER BY reported_at DESC, id DESC
		LIMIT 1`

	var (
		report     StatusReport
		battery    sql.NullFloat64
		rssi       sql.NullFloat64
		heap       sql.NullFloat64
		uptime     sql.NullFloat64
		reportedAt string
	)

	err := r.db.QueryRowContext(ctx, query, deviceID).Scan(
		&report.ID,
		&report.DeviceID,
		&report.Status,
		&battery,
		&rssi,
		&heap,
		&uptime,
		&report.FirmwareVersion,
		&report.OTAUpdate,
		&reportedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying latest status: %w", err)
	}

	report.BatteryLevel = floatPtr(battery)
	report.WiFiRSSI = floatPtr(rssi)
	report.FreeHeap = floatPtr(heap)
	report.Uptime = floatPtr(uptime)
	report.ReportedAt = parseTimestamp(reportedAt)

	return &report, nil
}

// queryDevices executes a query returning multiple device rows.
func (r *SQLiteRepository) queryDevices(ctx context.Context, query string, args ...any) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device row: %w", err)
		}
		devices = append(devices, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return devices, nil
}

// rowScanner abstracts sql.Row and sql.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanDevice scans a single device row.
func scanDevice(scanner rowScanner) (*Device, error) {
	var (
		d         Device
		status    string
		battery   sql.NullFloat64
		lastSeen  sql.NullString
		createdAt string
		updatedAt string
	)

	err := scanner.Scan(
		&d.ID,
		&d.Name,
		&d.Location,
		&status,
		&battery,
		&lastSeen,
		&d.FirmwareVersion,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.Status = Status(status)
	d.Battery = floatPtr(battery)
	if lastSeen.Valid {
		t := parseTimestamp(lastSeen.String)
		d.LastSeen = &t
	}
	d.CreatedAt = parseTimestamp(createdAt)
	d.UpdatedAt = parseTimestamp(updatedAt)

	return &d, nil
}

// placeholders returns "?, ?, ..." for an IN clause of n values.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// transitionCount reads rows affected from a sweep UPDATE.
func transitionCount(result sql.Result) (int64, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting transitioned devices: %w", err)
	}
	return n, nil
}

// requireRowAffected converts a zero-row UPDATE/DELETE into ErrDeviceNotFound.
func requireRowAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// parseTimestamp parses timestamps written by this package (RFC3339)
// and column defaults written by SQLite (datetime('now')).
func parseTimestamp(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	t, _ := time.Parse("2006-01-02 15:04:05", s) //nolint:errcheck // Zero time on unparseable value
	return t
}

func nullableTime(t *time.Time) sql.NullString {
	if t == nil || t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func nullableFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "unique constraint")
}
