package mqtt

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/astromon/skywatch-core/internal/device"
	"github.com/astromon/skywatch-core/internal/infrastructure/config"
	"github.com/astromon/skywatch-core/internal/infrastructure/logging"
)

// Connection constants.
const (
	// connectTimeout is the maximum time to wait for a broker handshake.
	connectTimeout = 10 * time.Second

	// publishTimeout is the maximum time to wait for publish acknowledgment.
	publishTimeout = 5 * time.Second

	// disconnectQuiesce is the time to wait for pending operations on
	// disconnect, in milliseconds.
	disconnectQuiesce = 1000

	// keepAlive is the keepalive interval for the connection.
	keepAlive = 60 * time.Second

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12
)

// MessageSink receives validated device messages from the transport.
type MessageSink interface {
	HandleMessage(ctx context.Context, deviceID, kind string, payload []byte)
}

// Connector owns the single broker connection and supervises it for
// the lifetime of the process.
//
// Connection failures never propagate: every failure path schedules a
// retry through one cancelable timer, with the delay chosen by failure
// class. Broker settings are re-read from the SettingsSource before
// each attempt, so persisted settings changes apply on the next
// reconnect.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Connector struct {
	cfg      config.MQTTConfig
	settings SettingsSource
	sink     MessageSink
	logger   *logging.Logger

	scheduler reconnectScheduler

	mu      sync.Mutex
	client  pahomqtt.Client
	topics  Topics
	started bool
	closed  bool

	// ctx governs message delivery and is cancelled by Close.
	ctx    context.Context
	cancel context.CancelFunc

	closeDelay time.Duration
	errorDelay time.Duration
	panicDelay time.Duration
}

// NewConnector creates a broker connector.
//
// Parameters:
//   - cfg: MQTT config section (QoS, client ID, reconnect delays)
//   - settings: per-attempt broker settings source
//   - sink: receiver for validated device messages
//   - logger: structured logger
func NewConnector(cfg config.MQTTConfig, settings SettingsSource, sink MessageSink, logger *logging.Logger) *Connector {
	return &Connector{
		cfg:        cfg,
		settings:   settings,
		sink:       sink,
		logger:     logger.With("component", "mqtt"),
		topics:     NewTopics(cfg.TopicRoot),
		closeDelay: time.Duration(cfg.Reconnect.CloseDelay) * time.Second,
		errorDelay: time.Duration(cfg.Reconnect.ErrorDelay) * time.Second,
		panicDelay: time.Duration(cfg.Reconnect.PanicDelay) * time.Second,
	}
}

// Start begins supervising the broker connection.
//
// The first attempt runs asynchronously; Start never blocks on the
// network and never fails because the broker is down. Calling Start
// again while supervision is running is a no-op.
//
// Returns:
//   - error: ErrClosed if the connector was already shut down
func (c *Connector) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.started {
		return nil
	}
	c.started = true
	c.ctx, c.cancel = context.WithCancel(ctx)

	go c.attempt()
	return nil
}

// attempt performs one connect attempt. Any failure, including a panic
// out of the paho client during setup, schedules the next attempt and
// returns.
func (c *Connector) attempt() {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("panic during broker connect", "panic", r)
			c.scheduleRetry(c.panicDelay, "panic")
		}
	}()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	ctx := c.ctx
	c.mu.Unlock()

	settings := c.brokerSettings(ctx)

	topics := NewTopics(settings.TopicRoot)
	opts := c.buildOptions(settings, topics)
	client := pahomqtt.NewClient(opts)

	c.logger.Info("connecting to broker",
		"host", settings.Host,
		"port", settings.Port,
		"tls", settings.TLS)

	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		c.logger.Warn("broker connect timed out", "timeout", connectTimeout)
		c.scheduleRetry(c.errorDelay, "timeout")
		return
	}
	if err := token.Error(); err != nil {
		c.logger.Warn("broker connect failed", "error", err)
		c.scheduleRetry(c.errorDelay, "error")
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		client.Disconnect(disconnectQuiesce)
		return
	}
	c.client = client
	c.topics = topics
	c.mu.Unlock()

	c.subscribeAll(client, topics)
	c.publishOnline(client, topics)

	c.logger.Info("broker connected", "host", settings.Host, "port", settings.Port)
}

// buildOptions creates paho options for one attempt. Reconnection is
// handled by the scheduler, not by paho.
// brokerSettings reads the per-attempt broker settings. When the source
// is unavailable the attempt proceeds with the built-in configuration
// defaults rather than being abandoned.
func (c *Connector) brokerSettings(ctx context.Context) Settings {
	settings, err := c.settings.BrokerSettings(ctx)
	if err != nil {
		c.logger.Warn("loading broker settings failed, using configured defaults", "error", err)
		return settingsFromConfig(c.cfg)
	}
	return settings
}

func (c *Connector) buildOptions(settings Settings, topics Topics) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if settings.TLS {
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, settings.Host, settings.Port))
	opts.SetClientID(c.cfg.Broker.ClientID)

	if settings.Username != "" {
		opts.SetUsername(settings.Username)
		opts.SetPassword(settings.Password)
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetKeepAlive(keepAlive)

	if settings.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tlsMinVersion})
	}

	// Last Will lets subscribers detect an unclean exit.
	opts.SetWill(topics.SystemStatus(), statusPayload("offline", c.cfg.Broker.ClientID, "unexpected_disconnect"), 1, true)

	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.logger.Warn("broker connection lost", "error", err)
		c.scheduleRetry(c.closeDelay, "close")
	})

	return opts
}

// scheduleRetry queues the next connect attempt unless Close has run.
func (c *Connector) scheduleRetry(delay time.Duration, class string) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return
	}

	c.logger.Info("scheduling reconnect", "delay", delay, "class", class)
	c.scheduler.schedule(delay, c.attempt)
}

// subscribeAll subscribes the three device topic families. An
// individual rejection is logged and skipped; a device fleet with a
// restrictive broker ACL still receives the kinds it is allowed.
func (c *Connector) subscribeAll(client pahomqtt.Client, topics Topics) {
	qos := byte(c.cfg.QoS)
	for _, kind := range []string{"data", "status", "commands"} {
		topic := topics.DeviceWildcard(kind)
		token := client.Subscribe(topic, qos, c.handleMessage)
		if !token.WaitTimeout(publishTimeout) || token.Error() != nil {
			c.logger.Warn("subscription rejected", "topic", topic, "error", token.Error())
		}
	}
}

// handleMessage validates the topic and device ID before handing the
// payload to the sink. Malformed topics and non-canonical device IDs
// are dropped before any storage work.
func (c *Connector) handleMessage(_ pahomqtt.Client, msg pahomqtt.Message) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("message handler panic recovered", "topic", msg.Topic(), "panic", r)
		}
	}()

	c.mu.Lock()
	ctx := c.ctx
	topics := c.topics
	c.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}

	deviceID, kind, err := topics.ParseDeviceTopic(msg.Topic())
	if err != nil {
		c.logger.Warn("dropping message on malformed topic", "topic", msg.Topic())
		return
	}
	if err := device.ValidateID(deviceID); err != nil {
		c.logger.Warn("dropping message from invalid device id",
			"device_id", deviceID,
			"error", err)
		return
	}

	c.sink.HandleMessage(ctx, deviceID, kind, msg.Payload())
}

// publishOnline announces the service on the system status topic.
func (c *Connector) publishOnline(client pahomqtt.Client, topics Topics) {
	token := client.Publish(topics.SystemStatus(), byte(c.cfg.QoS), true, statusPayload("online", c.cfg.Broker.ClientID, ""))
	token.WaitTimeout(publishTimeout)
}

// Publish sends a payload to a device's command topic.
//
// Returns:
//   - error: ErrNotConnected when no broker session is up
func (c *Connector) Publish(deviceID string, payload []byte) error {
	c.mu.Lock()
	client := c.client
	topics := c.topics
	c.mu.Unlock()

	if client == nil || !client.IsConnected() {
		return ErrNotConnected
	}

	token := client.Publish(topics.DeviceCommands(deviceID), byte(c.cfg.QoS), false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, publishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// IsConnected reports whether a broker session is currently up.
func (c *Connector) IsConnected() bool {
	c.mu.Lock()
	client := c.client
	c.mu.Unlock()
	return client != nil && client.IsConnected()
}

// HealthCheck verifies the broker connection is alive.
func (c *Connector) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// Close shuts down supervision: any pending reconnect timer is
// cancelled, a graceful offline status is published, and the broker
// session is torn down. The connector cannot be restarted.
func (c *Connector) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	client := c.client
	topics := c.topics
	cancel := c.cancel
	c.client = nil
	c.mu.Unlock()

	c.scheduler.cancel()
	if cancel != nil {
		cancel()
	}

	if client != nil && client.IsConnected() {
		token := client.Publish(topics.SystemStatus(), byte(c.cfg.QoS), true, statusPayload("offline", c.cfg.Broker.ClientID, "graceful_shutdown"))
		token.WaitTimeout(publishTimeout)
		client.Disconnect(disconnectQuiesce)
	}

	return nil
}

// statusPayload builds the JSON announcement for the system status topic.
func statusPayload(status, clientID, reason string) string {
	if reason == "" {
		return fmt.Sprintf(
			`{"status":"%s","client_id":"%s","timestamp":"%s"}`,
			status, clientID, time.Now().UTC().Format(time.RFC3339))
	}
	return fmt.Sprintf(
		`{"status":"%s","client_id":"%s","reason":"%s","timestamp":"%s"}`,
		status, clientID, reason, time.Now().UTC().Format(time.RFC3339))
}
