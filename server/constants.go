package server

import "time"

// WebSocket and HTTP timing constants
const (
	// ControlBufferSize is the maximum number of status messages queued per tile
	ControlBufferSize = 32

	// WebSocketPingInterval is how often to send ping messages to clients
	WebSocketPingInterval = 54 * time.Second

	// WebSocketReadDeadline is the deadline for reading WebSocket messages
	WebSocketReadDeadline = 60 * time.Second

	// WebSocketWriteDeadline is the deadline for writing WebSocket messages
	WebSocketWriteDeadline = 10 * time.Second

	// WebSocketReadLimit is the maximum message size for incoming WebSocket messages
	WebSocketReadLimit = 512

	// FrameRequestTimeout is the timeout for HTTP frame requests
	FrameRequestTimeout = 5 * time.Second

	// GracefulShutdownDelay is the time to wait for FFmpeg to stop gracefully
	GracefulShutdownDelay = 100 * time.Millisecond
)
