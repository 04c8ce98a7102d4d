// Package server exposes the session over HTTP and pushes live state to
// renderers over WebSocket.
package server

import "time"

const (
	// Inbound WebSocket messages per connection.
	ConnRateLimit = 10 // per second
	ConnRateBurst = 20

	// Global IP-based rate limiting (prevents multi-connection bypass)
	IPRateLimit                = 30 // messages per second per IP
	IPRateBurst                = 30
	IPRateLimitCleanupInterval = 5 * time.Minute  // How often to purge stale IP entries
	IPRateLimitEntryTTL        = 10 * time.Minute // TTL for inactive IP entries

	// Frame pushes per connection; notices beyond this only refresh the overlay.
	FramePushRate = 15 // per second

	JPEGQuality  = 80
	WriteTimeout = 2 * time.Second

	// Upper bound on a surface the renderer may report.
	MaxSurfaceSide = 16384
)
