// Package server assembles the control plane HTTP server.
//
// Routes:
//   - /health, /status: liveness, unauthenticated
//   - /metrics: Prometheus exposition, unauthenticated
//   - /ws: WebSocket view; authentication happens in the handshake message
//   - /api/...: bearer token protected; power routes are rate limited
//
// The user-facing listener is not served here: it is owned by the
// coordinator through its handle and runs on its own port.
package server
