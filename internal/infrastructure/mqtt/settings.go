package mqtt

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/astromon/skywatch-core/internal/infrastructure/config"
)

// Settings carries the broker parameters for a single connect attempt.
type Settings struct {
	Host      string
	Port      int
	Username  string
	Password  string
	TLS       bool
	TopicRoot string
}

// SettingsSource supplies broker settings per connect attempt.
//
// The connector consults the source before every attempt, so settings
// changed at runtime (for example via the persisted protocol_settings
// row) take effect on the next reconnect without a restart.
type SettingsSource interface {
	BrokerSettings(ctx context.Context) (Settings, error)
}

// StaticSettings is a SettingsSource that always returns the values
// from the loaded configuration file.
type StaticSettings struct {
	settings Settings
}

// NewStaticSettings builds a static source from the MQTT config section.
func NewStaticSettings(cfg config.MQTTConfig) *StaticSettings {
	return &StaticSettings{settings: settingsFromConfig(cfg)}
}

// BrokerSettings returns the configured broker settings.
func (s *StaticSettings) BrokerSettings(_ context.Context) (Settings, error) {
	return s.settings, nil
}

// SQLiteSettings reads broker settings from the protocol_settings row,
// falling back to the configuration file when no row has been saved.
type SQLiteSettings struct {
	db       *sql.DB
	fallback Settings
}

// NewSQLiteSettings creates a database-backed settings source.
//
// Parameters:
//   - db: Open database handle owning the protocol_settings table
//   - cfg: MQTT config section used when no persisted row exists
func NewSQLiteSettings(db *sql.DB, cfg config.MQTTConfig) *SQLiteSettings {
	return &SQLiteSettings{
		db:       db,
		fallback: settingsFromConfig(cfg),
	}
}

// BrokerSettings returns the persisted broker settings, or the config
// fallback when the table holds no row.
func (s *SQLiteSettings) BrokerSettings(ctx context.Context) (Settings, error) {
	query := `
		SELECT host, port, username, password, tls, topic_root
		FROM protocol_settings
		WHERE id = 1`

	var (
		settings Settings
		tls      int
	)
	err := s.db.QueryRowContext(ctx, query).Scan(
		&settings.Host,
		&settings.Port,
		&settings.Username,
		&settings.Password,
		&tls,
		&settings.TopicRoot,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return s.fallback, nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("loading protocol settings: %w", err)
	}
	settings.TLS = tls != 0

	if settings.Host == "" {
		settings.Host = s.fallback.Host
	}
	if settings.Port == 0 {
		settings.Port = s.fallback.Port
	}
	if settings.TopicRoot == "" {
		settings.TopicRoot = s.fallback.TopicRoot
	}

	return settings, nil
}

// Save persists broker settings, replacing any existing row.
func (s *SQLiteSettings) Save(ctx context.Context, settings Settings) error {
	query := `
		INSERT INTO protocol_settings (id, host, port, username, password, tls, topic_root)
		VALUES (1, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			host = excluded.host,
			port = excluded.port,
			username = excluded.username,
			password = excluded.password,
			tls = excluded.tls,
			topic_root = excluded.topic_root`

	tls := 0
	if settings.TLS {
		tls = 1
	}
	if _, err := s.db.ExecContext(ctx, query,
		settings.Host,
		settings.Port,
		settings.Username,
		settings.Password,
		tls,
		settings.TopicRoot,
	); err != nil {
		return fmt.Errorf("saving protocol settings: %w", err)
	}
	return nil
}

func settingsFromConfig(cfg config.MQTTConfig) Settings {
	return Settings{
		Host:      cfg.Broker.Host,
		Port:      cfg.Broker.Port,
		Username:  cfg.Auth.Username,
		Password:  cfg.Auth.Password,
		TLS:       cfg.Broker.TLS,
		TopicRoot: cfg.TopicRoot,
	}
}
