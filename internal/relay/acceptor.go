package relay

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/RenatoCabral2022/framerelay/internal/metrics"
	"github.com/RenatoCabral2022/framerelay/internal/session"
)

// listen removes a stale socket left by a previous run and binds a fresh one.
func listen(path string) (*net.UnixListener, error) {
	if err := removeSocket(path); err != nil {
		return nil, fmt.Errorf("remove stale socket: %w", err)
	}
	addr, err := net.ResolveUnixAddr("unix", path)
	if err != nil {
		return nil, fmt.Errorf("resolve socket address: %w", err)
	}
	ln, err := net.ListenUnix("unix", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", path, err)
	}
	// removal is done explicitly on teardown
	ln.SetUnlinkOnClose(false)
	return ln, nil
}

func removeSocket(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// run is the worker body: accept loop, then full teardown.
func (r *Relay) run(ln *net.UnixListener, done chan struct{}) {
	defer close(done)

	loopErr := r.acceptLoop(ln)
	if loopErr != nil {
		metrics.AcceptLoopFailuresTotal.Inc()
		r.logger.Error("accept loop failed", zap.Error(loopErr))
	}

	if err := multierr.Combine(ln.Close(), removeSocket(r.cfg.SocketPath)); err != nil {
		r.logger.Warn("socket teardown incomplete", zap.Error(err))
		loopErr = multierr.Append(loopErr, err)
	}
	r.setLastErr(loopErr)

	// A fatal exit clears the flag itself so a later Start brings up a new worker.
	r.running.Store(false)
	r.slot.Clear()
	metrics.Running.Set(0)
	r.logger.Info("relay worker exited")
}

// acceptLoop waits for consumers with a bounded wait so a stop request is
// noticed within one poll interval. Each accepted connection is served to
// completion before the next accept.
func (r *Relay) acceptLoop(ln *net.UnixListener) error {
	for r.running.Load() {
		if err := ln.SetDeadline(time.Now().Add(r.cfg.PollInterval)); err != nil {
			return fmt.Errorf("set accept deadline: %w", err)
		}

		conn, err := ln.Accept()
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if errors.Is(err, syscall.EINTR) || errors.Is(err, syscall.ECONNABORTED) {
				continue
			}
			return fmt.Errorf("accept: %w", err)
		}

		r.serve(conn)
	}
	return nil
}

// serve runs one consumer session: rate negotiation, then frame delivery
// until the consumer goes away or the relay stops.
func (r *Relay) serve(conn net.Conn) {
	sess := session.New(conn, r.logger)
	logger := sess.Logger()

	r.mu.Lock()
	if !r.running.Load() {
		r.mu.Unlock()
		sess.Close()
		return
	}
	r.active = sess
	r.mu.Unlock()

	metrics.SessionsTotal.Inc()
	metrics.ActiveSessions.Inc()
	defer func() {
		r.mu.Lock()
		r.active = nil
		r.mu.Unlock()
		sess.Close()
		metrics.ActiveSessions.Dec()
		logger.Info("session ended", zap.Uint64("framesSent", sess.Info().FramesSent))
	}()

	logger.Info("consumer connected")

	rate, err := sess.Negotiate()
	if err != nil {
		if r.stopped() {
			return
		}
		logger.Warn("consumer did not send a rate", zap.Error(err))
		metrics.SessionErrorsTotal.WithLabelValues("negotiate").Inc()
		return
	}
	r.rate.Store(uint32(rate))
	metrics.NegotiatedRate.Set(float64(rate))

	for r.running.Load() {
		ok, err := r.slot.Deliver(r.stopped, r.cfg.HoldSlotDuringSend, sess.Send)
		if !ok {
			logger.Info("stop requested while waiting for a frame")
			return
		}
		if err != nil {
			if r.stopped() {
				return
			}
			logger.Warn("send failed, waiting for a new consumer", zap.Error(err))
			metrics.SessionErrorsTotal.WithLabelValues("send").Inc()
			return
		}
	}
}
