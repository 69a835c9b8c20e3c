// Package timeouts defines shared timeout constants used across services.
// Centralizing these values prevents drift between service boundaries and
// makes the durations discoverable.
package timeouts

import "time"

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long an HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second

// BridgeRequest caps the time allowed for a single non-generating request
// from a client to the bridge.
const BridgeRequest = 10 * time.Second

// Generation caps how long a single turn generation may run. Local models
// on modest hardware can take minutes per turn.
const Generation = 300 * time.Second
