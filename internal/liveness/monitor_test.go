package liveness

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/astromon/skywatch-core/internal/device"
	"github.com/astromon/skywatch-core/internal/infrastructure/logging"
)

// fakeRegistry is an in-memory Registry for monitor tests.
type fakeRegistry struct {
	mu       sync.Mutex
	devices  map[string]*device.Device
	sweepErr error

	// block lets tests hold a sweep open to provoke overlap.
	block chan struct{}
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{devices: map[string]*device.Device{}}
}

func (r *fakeRegistry) add(id string, status device.Status) {
	r.devices[id] = &device.Device{ID: id, Status: status}
}

func (r *fakeRegistry) status(id string) device.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.devices[id].Status
}

func (r *fakeRegistry) MarkOnline(_ context.Context, ids []string) (int64, error) {
	if r.block != nil {
		<-r.block
	}
	if r.sweepErr != nil {
		return 0, r.sweepErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, id := range ids {
		d, ok := r.devices[id]
		if ok && d.Status != device.StatusOnline {
			d.Status = device.StatusOnline
			n++
		}
	}
	return n, nil
}

func (r *fakeRegistry) MarkOfflineExcept(_ context.Context, ids []string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	active := map[string]bool{}
	for _, id := range ids {
		active[id] = true
	}

	var n int64
	for id, d := range r.devices {
		if d.Status == device.StatusOnline && !active[id] {
			d.Status = device.StatusOffline
			n++
		}
	}
	return n, nil
}

func (r *fakeRegistry) Count(context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.devices), nil
}

// fakeActivity maps device IDs to their most recent reading time.
type fakeActivity struct {
	readings map[string]time.Time
}

func (a *fakeActivity) ActiveDeviceIDs(_ context.Context, since time.Time) ([]string, error) {
	var ids []string
	for id, at := range a.readings {
		if !at.Before(since) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func newTestMonitor(reg *fakeRegistry, activity *fakeActivity) *Monitor {
	if activity == nil {
		activity = &fakeActivity{readings: map[string]time.Time{}}
	}
	return NewMonitor(reg, activity, 2*time.Minute, logging.Default())
}

func TestSweep(t *testing.T) {
	now := time.Now().UTC()

	reg := newFakeRegistry()
	reg.add("stale", device.StatusOnline)
	reg.add("fresh", device.StatusOnline)
	reg.add("silent", device.StatusOnline)
	reg.add("already-offline", device.StatusOffline)

	activity := &fakeActivity{readings: map[string]time.Time{
		"stale": now.Add(-5 * time.Minute),
		"fresh": now.Add(-30 * time.Second),
	}}

	m := newTestMonitor(reg, activity)

	result, err := m.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}

	if result.OfflineCount != 2 {
		t.Errorf("OfflineCount = %d, want 2 (stale and silent)", result.OfflineCount)
	}
	if result.OnlineCount != 0 {
		t.Errorf("OnlineCount = %d, want 0 (fresh was already online)", result.OnlineCount)
	}
	if len(result.ActiveDeviceIDs) != 1 || result.ActiveDeviceIDs[0] != "fresh" {
		t.Errorf("ActiveDeviceIDs = %v, want [fresh]", result.ActiveDeviceIDs)
	}
	if result.TotalDevices != 4 {
		t.Errorf("TotalDevices = %d, want 4", result.TotalDevices)
	}
}

func TestSweep_RecoversOfflineDeviceWithRecentReading(t *testing.T) {
	now := time.Now().UTC()

	reg := newFakeRegistry()
	reg.add("recovered", device.StatusOffline)

	activity := &fakeActivity{readings: map[string]time.Time{
		"recovered": now,
	}}

	m := newTestMonitor(reg, activity)

	result, err := m.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}

	if got := reg.status("recovered"); got != device.StatusOnline {
		t.Errorf("device status after sweep = %q, want online", got)
	}
	if result.OnlineCount != 1 {
		t.Errorf("OnlineCount = %d, want 1", result.OnlineCount)
	}
	if len(result.ActiveDeviceIDs) != 1 || result.ActiveDeviceIDs[0] != "recovered" {
		t.Errorf("ActiveDeviceIDs = %v, want [recovered]", result.ActiveDeviceIDs)
	}
	if result.OfflineCount != 0 {
		t.Errorf("OfflineCount = %d, want 0", result.OfflineCount)
	}
}

func TestSweep_Idempotent(t *testing.T) {
	reg := newFakeRegistry()
	reg.add("stale", device.StatusOnline)

	m := newTestMonitor(reg, nil)
	ctx := context.Background()

	first, err := m.Sweep(ctx)
	if err != nil {
		t.Fatalf("first Sweep() error = %v", err)
	}
	if first.OfflineCount != 1 {
		t.Fatalf("first OfflineCount = %d, want 1", first.OfflineCount)
	}

	second, err := m.Sweep(ctx)
	if err != nil {
		t.Fatalf("second Sweep() error = %v", err)
	}
	if second.OfflineCount != 0 || second.OnlineCount != 0 {
		t.Errorf("second sweep transitions = %d/%d, want 0/0",
			second.OnlineCount, second.OfflineCount)
	}
	if second.TotalDevices != first.TotalDevices {
		t.Errorf("TotalDevices changed between sweeps: %d vs %d", first.TotalDevices, second.TotalDevices)
	}
}

func TestSweep_SingleFlight(t *testing.T) {
	reg := newFakeRegistry()
	reg.block = make(chan struct{})

	m := newTestMonitor(reg, nil)

	firstDone := make(chan error, 1)
	go func() {
		_, err := m.Sweep(context.Background())
		firstDone <- err
	}()

	// Wait for the first sweep to be inside the registry call.
	deadline := time.After(2 * time.Second)
	for !m.running.Load() {
		select {
		case <-deadline:
			t.Fatal("first sweep never started")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	_, err := m.Sweep(context.Background())
	if !errors.Is(err, ErrSweepInProgress) {
		t.Errorf("overlapping Sweep() error = %v, want ErrSweepInProgress", err)
	}

	close(reg.block)
	if err := <-firstDone; err != nil {
		t.Fatalf("first Sweep() error = %v", err)
	}

	// Guard releases once the sweep finishes.
	reg.block = nil
	if _, err := m.Sweep(context.Background()); err != nil {
		t.Errorf("Sweep() after completion error = %v", err)
	}
}

func TestSweep_RegistryError(t *testing.T) {
	reg := newFakeRegistry()
	reg.add("any", device.StatusOnline)
	reg.sweepErr = errors.New("database locked")

	activity := &fakeActivity{readings: map[string]time.Time{
		"any": time.Now().UTC(),
	}}

	m := newTestMonitor(reg, activity)

	if _, err := m.Sweep(context.Background()); err == nil {
		t.Fatal("Sweep() expected error when registry fails")
	}
}

func TestRun_ZeroIntervalReturns(t *testing.T) {
	m := newTestMonitor(newFakeRegistry(), nil)

	done := make(chan struct{})
	go func() {
		m.Run(context.Background(), 0)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run() with zero interval did not return")
	}
}
