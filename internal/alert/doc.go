// Package alert persists threshold breach events and fans them out to
// Telegram subscribers.
//
// # Dispatch Order
//
// Events are written to sensor_alerts before any delivery attempt, so
// the audit trail is complete even when the transport is down. Delivery
// then runs per subscriber with failures isolated: one dead chat never
// blocks the others, and the delivered flag flips once any recipient
// (or an empty recipient list) accepts the message.
//
// # Advisories
//
// Besides threshold breaches, the package derives advisory events from
// device status reports: critical/low battery, weak WiFi signal, and
// low free heap.
package alert
