package ingest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/RenatoCabral2022/framerelay/internal/metrics"
)

const barWidth = 16

// GeneratePattern renders an 8-bit grayscale test frame: a horizontal
// gradient with a white vertical bar whose position advances with seq.
func GeneratePattern(width, height, seq int) []byte {
	frame := make([]byte, width*height)
	if width == 0 {
		return frame
	}
	barX := (seq * 4) % width
	for y := 0; y < height; y++ {
		row := frame[y*width : (y+1)*width]
		for x := range row {
			if x >= barX && x < barX+barWidth {
				row[x] = 0xFF
				continue
			}
			row[x] = byte(x * 200 / width)
		}
	}
	return frame
}

// PatternSource pushes generated test frames at a fixed rate, skipping
// ticks where the sink is not ready.
type PatternSource struct {
	sink    Sink
	width   int
	height  int
	limiter *rate.Limiter
	logger  *zap.Logger

	mu     sync.Mutex
	state  string
	cancel context.CancelFunc

	pushed  atomic.Int64
	skipped atomic.Int64
}

// NewPatternSource creates a test-pattern source producing width x height frames at fps.
func NewPatternSource(sink Sink, width, height, fps int, logger *zap.Logger) *PatternSource {
	return &PatternSource{
		sink:    sink,
		width:   width,
		height:  height,
		limiter: rate.NewLimiter(rate.Limit(fps), 1),
		logger:  logger.With(zap.String("source", "pattern")),
		state:   StateStopped,
	}
}

// Start produces frames until ctx is cancelled or Stop is called.
func (p *PatternSource) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.state == StateRunning {
		p.mu.Unlock()
		return fmt.Errorf("pattern source already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.state = StateRunning
	p.mu.Unlock()
	defer cancel()

	p.logger.Info("pattern source started",
		zap.Int("width", p.width),
		zap.Int("height", p.height),
		zap.Float64("fps", float64(p.limiter.Limit())),
	)

	for seq := 0; ; seq++ {
		if err := p.limiter.Wait(runCtx); err != nil {
			if runCtx.Err() != nil {
				p.setState(StateStopped)
				p.logger.Info("pattern source stopped", zap.Int64("pushed", p.pushed.Load()))
				return nil
			}
			p.setState(StateError)
			return fmt.Errorf("pace frames: %w", err)
		}

		if !p.sink.Ready() {
			p.skipped.Add(1)
			metrics.SourceFramesSkippedTotal.Inc()
			continue
		}
		p.sink.Push(GeneratePattern(p.width, p.height, seq))
		p.pushed.Add(1)
	}
}

// Stop terminates the source. Idempotent.
func (p *PatternSource) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Status returns a snapshot of current source state.
func (p *PatternSource) Status() Status {
	p.mu.Lock()
	state := p.state
	p.mu.Unlock()

	return Status{
		State:         state,
		Kind:          "pattern",
		FramesPushed:  p.pushed.Load(),
		FramesSkipped: p.skipped.Load(),
	}
}

func (p *PatternSource) setState(state string) {
	p.mu.Lock()
	p.state = state
	p.mu.Unlock()
}
