// Package api provides the HTTP REST API and WebSocket server for
// Skywatch Core.
//
// It exposes telemetry ingestion, device and reading queries, threshold
// checks, calibration, forecasting, the liveness sweep trigger and a
// live status feed to dashboard consumers.
//
// The server follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple
// goroutines.
package api
