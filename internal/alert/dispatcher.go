package alert

import (
	"context"
	"fmt"

	"github.com/astromon/skywatch-core/internal/infrastructure/logging"
)

// Notifier delivers one message to one recipient.
// notify.Telegram satisfies this; tests substitute fakes.
type Notifier interface {
	Send(ctx context.Context, chatID, message string) error
}

// Dispatcher persists alert events and fans them out to subscribers.
//
// Persistence happens before delivery so the audit trail survives
// transport failures. Individual recipient failures are logged and
// isolated; one unreachable chat never blocks the rest.
type Dispatcher struct {
	repo     Repository
	notifier Notifier
	logger   *logging.Logger
}

// NewDispatcher creates a dispatcher.
//
// Parameters:
//   - repo: Alert persistence
//   - notifier: Outbound transport (nil disables delivery, events are
//     still persisted)
//   - logger: Structured logger
func NewDispatcher(repo Repository, notifier Notifier, logger *logging.Logger) *Dispatcher {
	return &Dispatcher{
		repo:     repo,
		notifier: notifier,
		logger:   logger.With("component", "alert"),
	}
}

// Dispatch stores an event and delivers it to every enabled subscriber
// of the event's device, including chats subscribed to all devices.
//
// Returns an error only when persistence fails. Delivery failures are
// logged per recipient; the event stays undelivered if no recipient
// accepted it.
func (d *Dispatcher) Dispatch(ctx context.Context, e *Event) error {
	if err := d.repo.InsertEvent(ctx, e); err != nil {
		return fmt.Errorf("persisting alert event: %w", err)
	}

	subs, err := d.repo.ListEnabledSubscriptions(ctx, e.DeviceID)
	if err != nil {
		d.logger.Error("listing alert subscriptions", "error", err, "event_id", e.ID)
		return nil
	}

	if d.notifier == nil || len(subs) == 0 {
		// Nothing to deliver to counts as delivered.
		d.markDelivered(ctx, e)
		return nil
	}

	delivered := 0
	for _, sub := range subs {
		if err := d.notifier.Send(ctx, sub.ChatID, e.Message); err != nil {
			d.logger.Warn("alert delivery failed",
				"event_id", e.ID,
				"chat_id", sub.ChatID,
				"error", err,
			)
			continue
		}
		delivered++
	}

	d.logger.Info("alert dispatched",
		"event_id", e.ID,
		"device_id", e.DeviceID,
		"type", e.Type,
		"recipients", len(subs),
		"delivered", delivered,
	)

	if delivered > 0 {
		d.markDelivered(ctx, e)
	}
	return nil
}

// DispatchAll dispatches a batch of events, continuing past failures.
func (d *Dispatcher) DispatchAll(ctx context.Context, events []*Event) {
	for _, e := range events {
		if err := d.Dispatch(ctx, e); err != nil {
			d.logger.Error("dispatching alert", "error", err, "event_id", e.ID)
		}
	}
}

func (d *Dispatcher) markDelivered(ctx context.Context, e *Event) {
	if err := d.repo.MarkDelivered(ctx, e.ID); err != nil {
		d.logger.Warn("marking alert delivered", "error", err, "event_id", e.ID)
		return
	}
	e.Delivered = true
}
