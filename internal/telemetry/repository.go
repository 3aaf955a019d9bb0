package telemetry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Repository defines the interface for reading persistence operations.
type Repository interface {
	// Insert stores a reading and sets its ID.
	Insert(ctx context.Context, r *Reading) error

	// ListByDevice retrieves readings for a device newer than since,
	// newest first, capped at limit (0 means no cap).
	ListByDevice(ctx context.Context, deviceID string, since time.Time, limit int) ([]Reading, error)

	// TemperatureSeries retrieves the chronological temperature values
	// for a device newer than since. Readings without a temperature are
	// skipped.
	TemperatureSeries(ctx context.Context, deviceID string, since time.Time) ([]float64, error)

	// Latest retrieves the most recent reading for a device.
	// Returns ErrReadingNotFound if the device has no readings.
	Latest(ctx context.Context, deviceID string) (*Reading, error)

	// ActiveDeviceIDs lists the distinct devices with at least one
	// reading at or after since, sorted by ID.
	ActiveDeviceIDs(ctx context.Context, since time.Time) ([]string, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const readingColumns = `id, device_id, temperature, humidity, pressure, battery, payload, recorded_at`

// Insert stores a reading and sets its ID.
func (r *SQLiteRepository) Insert(ctx context.Context, reading *Reading) error {
	if reading.RecordedAt.IsZero() {
		reading.RecordedAt = time.Now().UTC()
	}
	if reading.Fields == nil {
		reading.Fields = map[string]float64{}
	}

	payload, err := json.Marshal(reading.Fields)
	if err != nil {
		return fmt.Errorf("marshalling reading fields: %w", err)
	}

	query := `
		INSERT INTO sensor_readings (device_id, temperature, humidity, pressure, battery, payload, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		reading.DeviceID,
		nullableFloat(reading.Temperature),
		nullableFloat(reading.Humidity),
		nullableFloat(reading.Pressure),
		nullableFloat(reading.Battery),
		string(payload),
		reading.RecordedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting reading: %w", err)
	}

	reading.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading insert id: %w", err)
	}
	return nil
}

// ListByDevice retrieves readings for a device, newest first.
func (r *SQLiteRepository) ListByDevice(ctx context.Context, deviceID string, since time.Time, limit int) ([]Reading, error) {
	query := `
		SELECT ` + readingColumns + `
		FROM sensor_readings
		WHERE device_id = ? AND recorded_at >= ?
		ORDER BY recorded_at DESC, id DESC`

	args := []any{deviceID, since.UTC().Format(time.RFC3339)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying readings: %w", err)
	}
	defer rows.Close()

	var readings []Reading
	for rows.Next() {
		reading, err := scanReading(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning reading row: %w", err)
		}
		readings = append(readings, *reading)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating readings: %w", err)
	}
	return readings, nil
}

// TemperatureSeries retrieves chronological temperature values.
func (r *SQLiteRepository) TemperatureSeries(ctx context.Context, deviceID string, since time.Time) ([]float64, error) {
	query := `
		SELECT temperature
		FROM sensor_readings
		WHERE device_id = ? AND recorded_at >= ? AND temperature IS NOT NULL
		ORDER BY recorded_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, deviceID, since.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("querying temperature series: %w", err)
	}
	defer rows.Close()

	var values []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scanning temperature value: %w", err)
		}
		values = append(values, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating temperature series: %w", err)
	}
	return values, nil
}

// ActiveDeviceIDs lists devices with recent reading activity.
func (r *SQLiteRepository) ActiveDeviceIDs(ctx context.Context, since time.Time) ([]string, error) {
	query := `
		SELECT DISTINCT device_id
		FROM sensor_readings
		WHERE recorded_at >= ?
		ORDER BY device_id`

	rows, err := r.db.QueryContext(ctx, query, since.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("querying active devices: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning active device id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating active devices: %w", err)
	}
	return ids, nil
}

// Latest retrieves the most recent reading for a device.
func (r *SQLiteRepository) Latest(ctx context.Context, deviceID string) (*Reading, error) {
	query := `
		SELECT ` + readingColumns + `
		FROM sensor_readings
		WHERE device_id = ?
		ORDER BY recorded_at DESC, id DESC
		LIMIT 1`

	reading, err := scanReading(r.db.QueryRowContext(ctx, query, deviceID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReadingNotFound
		}
		return nil, fmt.Errorf("querying latest reading: %w", err)
	}
	return reading, nil
}

// rowScanner abstracts sql.Row and sql.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanReading scans a single reading row.
func scanReading(scanner rowScanner) (*Reading, error) {
	var (
		reading     Reading
		temperature sql.NullFloat64
		humidity    sql.NullFloat64
		pressure    sql.NullFloat64
		battery     sql.NullFloat64
		payload     string
		recordedAt  string
	)

	err := scanner.Scan(
		&reading.ID,
		&reading.DeviceID,
		&temperature,
		&humidity,
		&pressure,
		&battery,
		&payload,
		&recordedAt,
	)
	if err != nil {
		return nil, err
	}

	reading.Temperature = floatPtr(temperature)
	reading.Humidity = floatPtr(humidity)
	reading.Pressure = floatPtr(pressure)
	reading.Battery = floatPtr(battery)

	if err := json.Unmarshal([]byte(payload), &reading.Fields); err != nil {
		return nil, fmt.Errorf("unmarshalling reading fields: %w", err)
	}

	t, err := time.Parse(time.RFC3339, recordedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing recorded_at: %w", err)
	}
	reading.RecordedAt = t

	return &reading, nil
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
