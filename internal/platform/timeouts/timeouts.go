// Package timeouts defines shared timeout constants used across binaries.
package timeouts

import "time"

// EngineDial caps the wait time when connecting to the engine API socket.
const EngineDial = 2 * time.Second

// EngineRequest caps one request/response round trip on the engine socket
// when the caller's context carries no deadline.
const EngineRequest = 5 * time.Second

// GRPCDial caps the wait time when dialing a gRPC peer.
const GRPCDial = 2 * time.Second

// Shutdown limits how long servers wait for in-flight work during graceful
// shutdown.
const Shutdown = 5 * time.Second
