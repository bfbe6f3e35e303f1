// Package timeouts defines shared timeout constants for the todos process.
package timeouts

import "time"

// ReadHeader limits how long the HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Idle caps how long keep-alive connections stay open between requests.
const Idle = 60 * time.Second

// Shutdown limits how long servers wait for in-flight requests during
// graceful shutdown.
const Shutdown = 5 * time.Second

// TelemetryShutdown bounds the final span flush on process exit.
const TelemetryShutdown = 5 * time.Second
