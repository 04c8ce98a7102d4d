// Package grpcclient provides the recognition engine client
package grpcclient

import "time"

// Client configuration defaults
const (
	// Keepalive configuration
	DefaultKeepaliveTime    = 10 * time.Second
	DefaultKeepaliveTimeout = 3 * time.Second

	// Health check configuration
	HealthCheckTimeout = 2 * time.Second

	// DetectMethod is the full gRPC method name served by the engine.
	DetectMethod = "/ocr.v1.Recognizer/Detect"
	// ServiceName is the engine's service, also used for health checks.
	ServiceName = "ocr.v1.Recognizer"

	maxMessageSize = 64 << 20
)
