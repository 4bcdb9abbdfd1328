package session

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/RenatoCabral2022/framerelay/internal/metrics"
)

var (
	// ErrNegotiate is returned when the consumer did not deliver its rate byte.
	ErrNegotiate = errors.New("rate negotiation failed")
	// ErrSend is returned when a frame could not be written to the consumer.
	ErrSend = errors.New("frame send failed")
)

// Session holds per-connection state for one consumer.
type Session struct {
	ID        string
	StartedAt time.Time

	conn   net.Conn
	logger *zap.Logger

	rate       atomic.Uint32
	framesSent atomic.Uint64
	bytesSent  atomic.Uint64
	closeOnce  sync.Once
	closeErr   error
}

// Info is a point-in-time view of a session.
type Info struct {
	ID         string    `json:"id"`
	Remote     string    `json:"remote"`
	Rate       uint8     `json:"rate"`
	StartedAt  time.Time `json:"startedAt"`
	FramesSent uint64    `json:"framesSent"`
	BytesSent  uint64    `json:"bytesSent"`
}

// New wraps an accepted connection in a session with a fresh id.
func New(conn net.Conn, logger *zap.Logger) *Session {
	id := uuid.NewString()
	return &Session{
		ID:        id,
		StartedAt: time.Now(),
		conn:      conn,
		logger:    logger.With(zap.String("session", id)),
	}
}

// Negotiate reads the single rate byte the consumer sends after connecting.
// 0 means unthrottled.
func (s *Session) Negotiate() (uint8, error) {
	var buf [1]byte
	if _, err := io.ReadFull(s.conn, buf[:]); err != nil {
		return 0, fmt.Errorf("%w: read rate byte: %v", ErrNegotiate, err)
	}
	rate := buf[0]
	s.rate.Store(uint32(rate))
	s.logger.Info("consumer requested rate", zap.Uint8("fps", rate))
	return rate, nil
}

// Send writes one frame as a single write with no framing. Zero-length frames
// are skipped with a warning and are not an error.
func (s *Session) Send(frame []byte) error {
	if len(frame) == 0 {
		s.logger.Warn("empty frame, skipping transmission")
		metrics.EmptyFramesTotal.Inc()
		return nil
	}

	start := time.Now()
	n, err := s.conn.Write(frame)
	if err != nil {
		return fmt.Errorf("%w: wrote %d of %d bytes: %v", ErrSend, n, len(frame), err)
	}
	metrics.SendLatency.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	metrics.FramesSentTotal.Inc()
	metrics.BytesSentTotal.Add(float64(n))

	s.framesSent.Add(1)
	s.bytesSent.Add(uint64(n))
	return nil
}

// Rate returns the negotiated rate, 0 before negotiation.
func (s *Session) Rate() uint8 {
	return uint8(s.rate.Load())
}

// Logger returns the session-scoped logger.
func (s *Session) Logger() *zap.Logger {
	return s.logger
}

// Info returns a snapshot of the session.
func (s *Session) Info() Info {
	remote := ""
	if addr := s.conn.RemoteAddr(); addr != nil {
		remote = addr.String()
	}
	return Info{
		ID:         s.ID,
		Remote:     remote,
		Rate:       s.Rate(),
		StartedAt:  s.StartedAt,
		FramesSent: s.framesSent.Load(),
		BytesSent:  s.bytesSent.Load(),
	}
}

// Close closes the connection. Idempotent and safe for concurrent use.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}
