package liveness

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/astromon/skywatch-core/internal/infrastructure/logging"
)

// ErrSweepInProgress is returned when a sweep is requested while one is
// already running.
var ErrSweepInProgress = errors.New("liveness: sweep already in progress")

// Registry is the slice of device persistence the monitor needs.
type Registry interface {
	MarkOnline(ctx context.Context, ids []string) (int64, error)
	MarkOfflineExcept(ctx context.Context, ids []string) (int64, error)
	Count(ctx context.Context) (int, error)
}

// ActivitySource supplies the set of devices with recent readings.
// Status-only chatter does not count as activity; a device must have
// produced at least one measurement inside the window to stay online.
type ActivitySource interface {
	ActiveDeviceIDs(ctx context.Context, since time.Time) ([]string, error)
}

// Result summarises one liveness sweep.
type Result struct {
	// OfflineCount is the number of devices transitioned to offline by
	// this sweep, not the total offline population.
	OfflineCount int64 `json:"offline_count"`

	// OnlineCount is the number of devices transitioned to online by
	// this sweep.
	OnlineCount int64 `json:"online_count"`

	// ActiveDeviceIDs lists the devices with a reading inside the
	// staleness window.
	ActiveDeviceIDs []string `json:"active_device_ids"`

	// TotalDevices is the registry size.
	TotalDevices int `json:"total_devices"`

	SweptAt time.Time `json:"swept_at"`
}

// Monitor reconciles device liveness state with recent reading activity.
//
// Thread Safety:
//   - Sweep is single-flight: overlapping calls (scheduler plus HTTP
//     trigger) fail fast with ErrSweepInProgress instead of queueing.
type Monitor struct {
	devices  Registry
	activity ActivitySource
	window   time.Duration
	logger   *logging.Logger
	running  atomic.Bool
}

// NewMonitor creates a liveness monitor.
//
// Parameters:
//   - devices: Device registry access
//   - activity: Recent-reading lookup the active set is derived from
//   - window: Staleness window; a device with no reading inside it is offline
//   - logger: Structured logger
func NewMonitor(devices Registry, activity ActivitySource, window time.Duration, logger *logging.Logger) *Monitor {
	return &Monitor{
		devices:  devices,
		activity: activity,
		window:   window,
		logger:   logger.With("component", "liveness"),
	}
}

// Sweep reconciles every device with the reading-derived active set and
// reports the transitions.
//
// Devices with a reading inside the window are brought online, everything
// else is taken offline. Only devices in the wrong state are written, so
// running a sweep twice in a row yields zero counts the second time.
func (m *Monitor) Sweep(ctx context.Context) (*Result, error) {
	if !m.running.CompareAndSwap(false, true) {
		return nil, ErrSweepInProgress
	}
	defer m.running.Store(false)

	now := time.Now().UTC()
	since := now.Add(-m.window)

	active, err := m.activity.ActiveDeviceIDs(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("resolving active devices: %w", err)
	}

	wentOnline, err := m.devices.MarkOnline(ctx, active)
	if err != nil {
		return nil, fmt.Errorf("sweeping active devices online: %w", err)
	}

	wentOffline, err := m.devices.MarkOfflineExcept(ctx, active)
	if err != nil {
		return nil, fmt.Errorf("sweeping stale devices offline: %w", err)
	}

	total, err := m.devices.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting devices: %w", err)
	}

	if active == nil {
		active = []string{}
	}

	result := &Result{
		OfflineCount:    wentOffline,
		OnlineCount:     wentOnline,
		ActiveDeviceIDs: active,
		TotalDevices:    total,
		SweptAt:         now,
	}

	if wentOnline > 0 || wentOffline > 0 {
		m.logger.Info("liveness sweep transitioned devices",
			"online_count", wentOnline,
			"offline_count", wentOffline,
			"active_devices", len(active),
			"total_devices", total,
		)
	} else {
		m.logger.Debug("liveness sweep clean",
			"active_devices", len(active),
			"total_devices", total,
		)
	}

	return result, nil
}

// Run sweeps on the given interval until the context is cancelled.
// An interval of zero disables the internal scheduler and Run returns
// immediately; sweeps can still be triggered over HTTP.
func (m *Monitor) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.Sweep(ctx); err != nil && !errors.Is(err, ErrSweepInProgress) {
				m.logger.Error("scheduled liveness sweep failed", "error", err)
			}
		}
	}
}
