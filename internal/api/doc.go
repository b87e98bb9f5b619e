// Package api provides the HTTP REST API and WebSocket server for NomNom Core.
//
// It exposes the live feeder telemetry snapshot, feed command endpoints, the
// archived telemetry history, and a WebSocket stream of routed telemetry to
// dashboards.
//
// The server follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
