// Package timeouts defines shared timeout values for livepreview servers.
package timeouts

import "time"

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long an HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second

// WebsocketWrite caps one frame write to a preview peer. Peers that cannot
// keep up are dropped rather than stalling the broadcast.
const WebsocketWrite = 2 * time.Second

// TelemetryShutdown caps the final span flush on exit.
const TelemetryShutdown = 5 * time.Second
