package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/RenatoCabral2022/framerelay/internal/metrics"
)

// FFmpegSource decodes a video URL with ffmpeg into fixed-size 8-bit
// grayscale frames and pushes them to a sink whenever it is ready.
type FFmpegSource struct {
	url     string
	width   int
	height  int
	fps     int
	sink    Sink
	logger  *zap.Logger
	command string

	mu        sync.Mutex
	state     string
	lastError string
	cancel    context.CancelFunc

	bytesRead atomic.Int64
	pushed    atomic.Int64
	skipped   atomic.Int64
}

// NewFFmpegSource creates an ffmpeg-based source. The URL should already have
// passed ValidateSourceURL.
func NewFFmpegSource(sourceURL string, width, height, fps int, sink Sink, logger *zap.Logger) *FFmpegSource {
	return &FFmpegSource{
		url:     sourceURL,
		width:   width,
		height:  height,
		fps:     fps,
		sink:    sink,
		logger:  logger.With(zap.String("source", "ffmpeg"), zap.String("ingestURL", sourceURL)),
		command: "ffmpeg",
		state:   StateStopped,
	}
}

// FrameSize is the byte length of one decoded frame.
func (f *FFmpegSource) FrameSize() int {
	return f.width * f.height
}

func (f *FFmpegSource) args() []string {
	args := []string{"-nostdin", "-hide_banner", "-loglevel", "error"}
	if IsLocalFile(f.url) {
		// files decode faster than realtime otherwise
		args = append(args, "-re")
	}
	return append(args,
		"-i", f.url,
		"-an",
		"-vf", fmt.Sprintf("scale=%d:%d", f.width, f.height),
		"-r", strconv.Itoa(f.fps),
		"-pix_fmt", "gray",
		"-f", "rawvideo",
		"pipe:1",
	)
}

// Start runs ffmpeg and relays its frames. Blocks until the stream ends,
// ctx is cancelled, or Stop is called.
func (f *FFmpegSource) Start(ctx context.Context) error {
	f.mu.Lock()
	if f.state == StateRunning || f.state == StateStarting {
		f.mu.Unlock()
		return fmt.Errorf("ingest already running")
	}
	f.state = StateStarting
	f.lastError = ""
	f.bytesRead.Store(0)

	ingestCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.mu.Unlock()

	defer cancel()

	cmd := exec.CommandContext(ingestCtx, f.command, f.args()...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		f.setError(fmt.Sprintf("stdout pipe: %v", err))
		return err
	}
	if err := cmd.Start(); err != nil {
		f.setError(fmt.Sprintf("ffmpeg start: %v", err))
		return err
	}

	f.mu.Lock()
	f.state = StateRunning
	f.mu.Unlock()

	f.logger.Info("ingest started",
		zap.Int("width", f.width),
		zap.Int("height", f.height),
		zap.Int("fps", f.fps),
	)

	readErr := f.readLoop(ingestCtx, stdout)
	waitErr := cmd.Wait()

	f.mu.Lock()
	defer f.mu.Unlock()

	if ingestCtx.Err() != nil {
		f.state = StateStopped
		f.logger.Info("ingest stopped", zap.Int64("bytesRead", f.bytesRead.Load()))
		return nil
	}

	if readErr != nil || waitErr != nil {
		errMsg := ""
		if readErr != nil {
			errMsg = readErr.Error()
		} else {
			errMsg = waitErr.Error()
		}
		f.state = StateError
		f.lastError = errMsg
		f.logger.Warn("ingest error", zap.String("error", errMsg))
		return fmt.Errorf("ingest failed: %s", errMsg)
	}

	f.state = StateStopped
	f.logger.Info("ingest completed (source ended)",
		zap.Int64("bytesRead", f.bytesRead.Load()),
		zap.Int64("framesPushed", f.pushed.Load()))
	return nil
}

// readLoop reads whole frames from r into a scratch buffer and asks the sink
// once a frame is complete. Pushed frames are copied into a fresh buffer
// because the sink keeps a reference.
func (f *FFmpegSource) readLoop(ctx context.Context, r io.Reader) error {
	size := f.FrameSize()
	scratch := make([]byte, size)
	lastLog := time.Now()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		n, err := io.ReadFull(r, scratch)
		f.bytesRead.Add(int64(n))
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if errors.Is(err, io.ErrUnexpectedEOF) {
				f.logger.Warn("trailing partial frame discarded", zap.Int("bytes", n))
				return nil
			}
			return err
		}

		if f.sink.Ready() {
			frame := make([]byte, size)
			copy(frame, scratch)
			f.sink.Push(frame)
			f.pushed.Add(1)
		} else {
			f.skipped.Add(1)
			metrics.SourceFramesSkippedTotal.Inc()
		}

		if time.Since(lastLog) >= 5*time.Second {
			f.logger.Info("ingest progress",
				zap.Int64("framesPushed", f.pushed.Load()),
				zap.Int64("framesSkipped", f.skipped.Load()),
				zap.Int64("bytesRead", f.bytesRead.Load()))
			lastLog = time.Now()
		}
	}
}

// Stop terminates the ingest. Idempotent.
func (f *FFmpegSource) Stop() {
	f.mu.Lock()
	cancel := f.cancel
	f.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Status returns a snapshot of current ingest state.
func (f *FFmpegSource) Status() Status {
	f.mu.Lock()
	state := f.state
	lastErr := f.lastError
	f.mu.Unlock()

	return Status{
		State:         state,
		Kind:          "ffmpeg",
		SourceURL:     f.url,
		FramesPushed:  f.pushed.Load(),
		FramesSkipped: f.skipped.Load(),
		BytesRead:     f.bytesRead.Load(),
		LastError:     lastErr,
	}
}

func (f *FFmpegSource) setError(msg string) {
	f.mu.Lock()
	f.state = StateError
	f.lastError = msg
	f.mu.Unlock()
}
