package sensor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for sensor persistence operations.
type Repository interface {
	// GetByID retrieves a sensor by its numeric identifier.
	// Returns ErrSensorNotFound if the sensor does not exist.
	GetByID(ctx context.Context, id int64) (*Sensor, error)

	// ListByDevice retrieves all sensors configured for a device.
	ListByDevice(ctx context.Context, deviceID string) ([]Sensor, error)

	// Create inserts a new sensor.
	// Returns ErrSensorExists if the device already has a sensor of this kind.
	Create(ctx context.Context, s *Sensor) error

	// UpdateThresholds replaces a sensor's alert thresholds.
	// Returns ErrSensorNotFound if the sensor does not exist.
	UpdateThresholds(ctx context.Context, id int64, minThreshold, maxThreshold *float64) error

	// UpdateCalibration replaces a sensor's calibration coefficients.
	// Returns ErrSensorNotFound if the sensor does not exist.
	UpdateCalibration(ctx context.Context, id int64, c Calibration) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const sensorColumns = `id, device_id, kind, unit, min_threshold, max_threshold, calibration_a, calibration_b, created_at, updated_at`

// GetByID retrieves a sensor by its numeric identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id int64) (*Sensor, error) {
	query := `SELECT ` + sensorColumns + ` FROM sensors WHERE id = ?`

	s, err := scanSensor(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSensorNotFound
		}
		return nil, fmt.Errorf("querying sensor by id: %w", err)
	}
	return s, nil
}

// ListByDevice retrieves all sensors configured for a device.
func (r *SQLiteRepository) ListByDevice(ctx context.Context, deviceID string) ([]Sensor, error) {
	query := `SELECT ` + sensorColumns + ` FROM sensors WHERE device_id = ? ORDER BY kind`

	rows, err := r.db.QueryContext(ctx, query, deviceID)
	if err != nil {
		return nil, fmt.Errorf("querying sensors: %w", err)
	}
	defer rows.Close()

	var sensors []Sensor
	for rows.Next() {
		s, err := scanSensor(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning sensor row: %w", err)
		}
		sensors = append(sensors, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sensors: %w", err)
	}
	return sensors, nil
}

// Create inserts a new sensor.
func (r *SQLiteRepository) Create(ctx context.Context, s *Sensor) error {
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
	if s.Calibration == (Calibration{}) {
		s.Calibration = DefaultCalibration()
	}

	query := `
		INSERT INTO sensors (device_id, kind, unit, min_threshold, max_threshold, calibration_a, calibration_b, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		s.DeviceID,
		string(s.Kind),
		s.Unit,
		nullableFloat(s.MinThreshold),
		nullableFloat(s.MaxThreshold),
		s.Calibration.A,
		s.Calibration.B,
		s.CreatedAt.Format(time.RFC3339),
		s.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrSensorExists
		}
		return fmt.Errorf("inserting sensor: %w", err)
	}

	s.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading sensor id: %w", err)
	}
	return nil
}

// UpdateThresholds replaces a sensor's alert thresholds.
func (r *SQLiteRepository) UpdateThresholds(ctx context.Context, id int64, minThreshold, maxThreshold *float64) error {
	query := `
		UPDATE sensors
		SET min_threshold = ?, max_threshold = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		nullableFloat(minThreshold),
		nullableFloat(maxThreshold),
		time.Now().UTC().Format(time.RFC3339),
		id,
	)
	if err != nil {
		return fmt.Errorf("updating sensor thresholds: %w", err)
	}
	return requireRowAffected(result)
}

// UpdateCalibration replaces a sensor's calibration coefficients.
func (r *SQLiteRepository) UpdateCalibration(ctx context.Context, id int64, c Calibration) error {
	query := `
		UPDATE sensors
		SET calibration_a = ?, calibration_b = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		c.A,
		c.B,
		time.Now().UTC().Format(time.RFC3339),
		id,
	)
	if err != nil {
		return fmt.Errorf("updating sensor calibration: %w", err)
	}
	return requireRowAffected(result)
}

// rowScanner abstracts sql.Row and sql.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanSensor scans a single sensor row.
func scanSensor(scanner rowScanner) (*Sensor, error) {
	var (
		s         Sensor
		kind      string
		minT      sql.NullFloat64
		maxT      sql.NullFloat64
		createdAt string
		updatedAt string
	)

	err := scanner.Scan(
		&s.ID,
		&s.DeviceID,
		&kind,
		&s.Unit,
		&minT,
		&maxT,
		&s.Calibration.A,
		&s.Calibration.B,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.Kind = Kind(kind)
	s.MinThreshold = floatPtr(minT)
	s.MaxThreshold = floatPtr(maxT)
	s.CreatedAt = parseTimestamp(createdAt)
	s.UpdatedAt = parseTimestamp(updatedAt)

	return &s, nil
}

// requireRowAffected converts a zero-row UPDATE into ErrSensorNotFound.
func requireRowAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrSensorNotFound
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
