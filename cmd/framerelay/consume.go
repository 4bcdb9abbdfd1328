package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/RenatoCabral2022/framerelay/internal/client"
	"github.com/RenatoCabral2022/framerelay/internal/config"
)

func newConsumeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "consume",
		Short: "Connect to a running relay and report the frame rate received",
		Args:  cobra.NoArgs,
		RunE:  runConsume,
	}

	f := cmd.Flags()
	f.Uint8("rate", 10, "frames per second to request, 0 for unthrottled")
	f.Int("max-frames", 0, "exit after this many frames, 0 to run until interrupted")
	f.Duration("dial-timeout", 5*time.Second, "how long to wait for the relay socket")
	return cmd
}

func runConsume(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}
	rate, _ := cmd.Flags().GetUint8("rate")
	maxFrames, _ := cmd.Flags().GetInt("max-frames")
	dialTimeout, _ := cmd.Flags().GetDuration("dial-timeout")

	logger, err := newLogger(cfg.LogDevelopment)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	frameSize := cfg.Source.FrameSize()
	if frameSize <= 0 {
		return fmt.Errorf("invalid frame geometry %dx%d", cfg.Source.Width, cfg.Source.Height)
	}

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	c, err := client.Dial(ctx, cfg.SocketPath, rate)
	cancel()
	if err != nil {
		return err
	}
	defer c.Close()

	logger.Info("connected to relay",
		zap.String("socket", cfg.SocketPath),
		zap.Uint8("rate", rate),
		zap.Int("frameSize", frameSize),
	)

	// Closing the connection unblocks ReadFrame on interrupt.
	interrupted := make(chan struct{})
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)
	go func() {
		if _, ok := <-quit; ok {
			close(interrupted)
			c.Close()
		}
	}()

	buf := make([]byte, frameSize)
	var total, window int
	windowStart := time.Now()
	for maxFrames == 0 || total < maxFrames {
		if err := c.ReadFrame(buf); err != nil {
			select {
			case <-interrupted:
				logger.Info("interrupted", zap.Int("frames", total))
				return nil
			default:
			}
			logger.Info("relay closed the connection", zap.Int("frames", total), zap.Error(err))
			return nil
		}
		total++
		window++

		if elapsed := time.Since(windowStart); elapsed >= time.Second {
			logger.Info("receiving frames",
				zap.Float64("fps", float64(window)/elapsed.Seconds()),
				zap.Int("total", total),
			)
			window = 0
			windowStart = time.Now()
		}
	}

	logger.Info("frame limit reached", zap.Int("frames", total))
	return nil
}
