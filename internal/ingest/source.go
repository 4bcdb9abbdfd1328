package ingest

import "context"

// State constants for source lifecycle.
const (
	StateStarting = "starting"
	StateRunning  = "running"
	StateStopped  = "stopped"
	StateError    = "error"
)

// Sink receives frames. *relay.Relay satisfies it.
type Sink interface {
	// Push hands over a frame; the sink may keep a reference to it.
	Push(frame []byte)
	// Ready reports whether the sink wants another frame now.
	Ready() bool
}

// Source is the interface for any frame producer (test pattern, ffmpeg, ...).
type Source interface {
	// Start begins producing frames. Blocks until ctx is cancelled,
	// the source ends, or an error occurs.
	Start(ctx context.Context) error
	// Stop terminates the source. Idempotent.
	Stop()
	// Status returns a snapshot of current source state.
	Status() Status
}

// Status describes the current state of a source.
type Status struct {
	State         string `json:"state"`
	Kind          string `json:"kind"`
	SourceURL     string `json:"sourceUrl,omitempty"`
	FramesPushed  int64  `json:"framesPushed"`
	FramesSkipped int64  `json:"framesSkipped"`
	BytesRead     int64  `json:"bytesRead,omitempty"`
	LastError     string `json:"lastError,omitempty"`
}
