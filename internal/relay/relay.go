// Package relay serves the most recent frame pushed by a producer to at most
// one consumer connected over a local unix socket.
//
// A single worker goroutine accepts connections and runs each consumer
// session inline, so sessions never overlap. The producer calls Push and
// Ready from its own goroutines; Start and Stop may be called from anywhere.
package relay

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/RenatoCabral2022/framerelay/internal/config"
	"github.com/RenatoCabral2022/framerelay/internal/metrics"
	"github.com/RenatoCabral2022/framerelay/internal/session"
	"github.com/RenatoCabral2022/framerelay/internal/slot"
	"github.com/RenatoCabral2022/framerelay/internal/throttle"
)

// Relay owns the frame slot, the listening socket and the worker goroutine.
type Relay struct {
	cfg    *config.Config
	logger *zap.Logger
	slot   *slot.Slot

	running atomic.Bool
	rate    atomic.Uint32

	lifecycle sync.Mutex    // serializes Start and Stop
	done      chan struct{} // closed when the current worker exits, nil before the first Start

	mu      sync.Mutex // guards active and lastErr
	active  *session.Session
	lastErr error
}

// Status is a point-in-time view of the relay.
type Status struct {
	Running            bool          `json:"running"`
	SocketPath         string        `json:"socketPath"`
	Rate               uint8         `json:"rate"`
	HoldSlotDuringSend bool          `json:"holdSlotDuringSend"`
	Session            *session.Info `json:"session"`
	Slot               slot.Stats    `json:"slot"`
	LastError          string        `json:"lastError,omitempty"`
}

// New creates a stopped relay. Nothing is bound until Start.
func New(cfg *config.Config, logger *zap.Logger) *Relay {
	return &Relay{
		cfg:    cfg,
		logger: logger.With(zap.String("socket", cfg.SocketPath)),
		slot:   slot.New(),
	}
}

// Start binds the socket and launches the worker. It is a no-op while the
// relay is running. A previous worker is always joined first, so two workers
// never overlap. On a bind failure the relay stays stopped.
func (r *Relay) Start() error {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()

	if r.running.Load() {
		return nil
	}
	if r.done != nil {
		<-r.done
	}

	ln, err := listen(r.cfg.SocketPath)
	if err != nil {
		r.logger.Error("relay start failed", zap.Error(err))
		r.setLastErr(err)
		return err
	}

	r.setLastErr(nil)
	done := make(chan struct{})
	r.done = done
	r.running.Store(true)
	metrics.Running.Set(1)

	go r.run(ln, done)
	r.logger.Info("relay started",
		zap.Duration("pollInterval", r.cfg.PollInterval),
		zap.Bool("holdSlotDuringSend", r.cfg.HoldSlotDuringSend),
	)
	return nil
}

// Stop requests shutdown and blocks until the worker has exited and the
// socket is removed. It wakes a session waiting for a frame and closes the
// active consumer connection. Idempotent; a no-op on a relay never started.
func (r *Relay) Stop() {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()

	if r.done == nil {
		return
	}
	if r.running.CompareAndSwap(true, false) {
		// Close first: a send in progress may hold the slot lock that Wake needs.
		r.mu.Lock()
		if r.active != nil {
			r.active.Close()
		}
		r.mu.Unlock()

		r.slot.Wake()
	}
	<-r.done
}

// Close stops the relay. It lets the relay be released with a deferred Close.
func (r *Relay) Close() error {
	r.Stop()
	return nil
}

// Push hands a frame to the relay, replacing any frame not yet sent.
// The relay keeps a reference to frame; the caller must not modify it
// until the next Push or until Stop returns.
func (r *Relay) Push(frame []byte) {
	if r.slot.Push(frame) {
		metrics.FramesDroppedTotal.Inc()
	}
	metrics.FramesPushedTotal.Inc()
}

// Ready reports whether the producer should push another frame, based on
// the time of the last push and the rate negotiated by the latest consumer.
func (r *Relay) Ready() bool {
	return throttle.Ready(r.slot.LastPush(), r.Rate(), time.Now())
}

// Rate returns the rate requested by the most recent consumer, 0 if none.
func (r *Relay) Rate() uint8 {
	return uint8(r.rate.Load())
}

// Running reports whether the worker is up.
func (r *Relay) Running() bool {
	return r.running.Load()
}

// Status returns a snapshot for diagnostics.
func (r *Relay) Status() Status {
	st := Status{
		Running:            r.running.Load(),
		SocketPath:         r.cfg.SocketPath,
		Rate:               r.Rate(),
		HoldSlotDuringSend: r.cfg.HoldSlotDuringSend,
		Slot:               r.slot.Stats(),
	}

	r.mu.Lock()
	if r.active != nil {
		info := r.active.Info()
		st.Session = &info
	}
	if r.lastErr != nil {
		st.LastError = r.lastErr.Error()
	}
	r.mu.Unlock()
	return st
}

func (r *Relay) stopped() bool {
	return !r.running.Load()
}

func (r *Relay) setLastErr(err error) {
	r.mu.Lock()
	r.lastErr = err
	r.mu.Unlock()
}
