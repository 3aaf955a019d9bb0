package alert

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for alert persistence operations.
type Repository interface {
	// InsertEvent stores an alert event.
	InsertEvent(ctx context.Context, e *Event) error

	// MarkDelivered flags an event as delivered.
	// Returns ErrEventNotFound if the event does not exist.
	MarkDelivered(ctx context.Context, id string) error

	// ListEventsByDevice retrieves recent events for a device,
	// newest first, capped at limit (0 means no cap).
	ListEventsByDevice(ctx context.Context, deviceID string, limit int) ([]Event, error)

	// ListEnabledSubscriptions retrieves the enabled recipients for a
	// device: chats subscribed to that device plus chats subscribed to
	// all devices.
	ListEnabledSubscriptions(ctx context.Context, deviceID string) ([]Subscription, error)

	// CreateSubscription registers a new recipient chat. Returns
	// ErrSubscriptionExists if the chat already subscribes to the same
	// device (or to all devices).
	CreateSubscription(ctx context.Context, s *Subscription) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// InsertEvent stores an alert event.
func (r *SQLiteRepository) InsertEvent(ctx context.Context, e *Event) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO sensor_alerts (id, device_id, sensor_kind, alert_type, value, threshold, message, delivered, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		e.ID,
		e.DeviceID,
		e.SensorKind,
		string(e.Type),
		e.Value,
		nullableFloat(e.Threshold),
		e.Message,
		boolToInt(e.Delivered),
		e.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting alert event: %w", err)
	}
	return nil
}

// MarkDelivered flags an event as delivered.
func (r *SQLiteRepository) MarkDelivered(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE sensor_alerts SET delivered = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("marking alert delivered: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrEventNotFound
	}
	return nil
}

// ListEventsByDevice retrieves recent events for a device, newest first.
func (r *SQLiteRepository) ListEventsByDevice(ctx context.Context, deviceID string, limit int) ([]Event, error) {
	query := `
		SELECT id, device_id, sensor_kind, alert_type, value, threshold, message, delivered, created_at
		FROM sensor_alerts
		WHERE device_id = ?
		ORDER BY created_at DESC, id DESC`

	args := []any{deviceID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying alert events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e         Event
			eventType string
			threshold sql.NullFloat64
			delivered int
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.DeviceID, &e.SensorKind, &eventType, &e.Value, &threshold, &e.Message, &delivered, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning alert row: %w", err)
		}
		e.Type = EventType(eventType)
		e.Threshold = floatPtr(threshold)
		e.Delivered = delivered != 0
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // Format is controlled
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating alert events: %w", err)
	}
	return events, nil
}

// ListEnabledSubscriptions retrieves the enabled recipients for a device.
func (r *SQLiteRepository) ListEnabledSubscriptions(ctx context.Context, deviceID string) ([]Subscription, error) {
	query := `
		SELECT id, chat_id, device_id, label, enabled, created_at
		FROM alert_subscriptions
		WHERE enabled = 1 AND (device_id IS NULL OR device_id = ?)
		ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, deviceID)
	if err != nil {
		return nil, fmt.Errorf("querying subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []Subscription
	for rows.Next() {
		var (
			s         Subscription
			deviceID  sql.NullString
			enabled   int
			createdAt string
		)
		if err := rows.Scan(&s.ID, &s.ChatID, &deviceID, &s.Label, &enabled, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning subscription row: %w", err)
		}
		if deviceID.Valid {
			s.DeviceID = &deviceID.String
		}
		s.Enabled = enabled != 0
		s.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // Format is controlled
		subs = append(subs, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating subscriptions: %w", err)
	}
	return subs, nil
}

// CreateSubscription registers a new recipient chat.
func (r *SQLiteRepository) CreateSubscription(ctx context.Context, s *Subscription) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO alert_subscriptions (chat_id, device_id, label, enabled, created_at)
		VALUES (?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		s.ChatID,
		nullableString(s.DeviceID),
		s.Label,
		boolToInt(s.Enabled),
		s.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrSubscriptionExists
		}
		return fmt.Errorf("inserting subscription: %w", err)
	}

	s.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading subscription id: %w", err)
	}
	return nil
}

func nullableString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
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

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
