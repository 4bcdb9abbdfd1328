package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/RenatoCabral2022/framerelay/internal/api"
	"github.com/RenatoCabral2022/framerelay/internal/config"
	"github.com/RenatoCabral2022/framerelay/internal/ingest"
	"github.com/RenatoCabral2022/framerelay/internal/relay"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the relay with its built-in frame source and internal API",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	f := cmd.Flags()
	f.Duration("poll-interval", time.Second, "how often the accept loop re-checks for shutdown")
	f.Bool("hold-slot", true, "hold the frame slot while sending (producer waits for slow consumers)")
	f.String("api-listen", "127.0.0.1:9091", "internal API address, empty to disable")
	f.String("source", config.SourcePattern, "frame source: pattern, ffmpeg or none")
	f.String("source-url", "", "video URL or absolute path for the ffmpeg source")
	f.Int("fps", 30, "source frame rate")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogDevelopment)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("framerelay starting",
		zap.String("socket", cfg.SocketPath),
		zap.String("internalAPI", cfg.InternalAPIAddr),
		zap.String("source", cfg.Source.Kind),
		zap.Int("width", cfg.Source.Width),
		zap.Int("height", cfg.Source.Height),
	)

	rl := relay.New(cfg, logger)
	src, err := newSource(cfg, rl, logger)
	if err != nil {
		return err
	}
	if err := rl.Start(); err != nil {
		return fmt.Errorf("start relay: %w", err)
	}

	stopSource := func() {}
	if src != nil {
		stopSource = startSource(context.Background(), src, logger)
	}

	var srv *http.Server
	if cfg.InternalAPIAddr != "" {
		srv = &http.Server{
			Addr:         cfg.InternalAPIAddr,
			Handler:      api.New(rl, src, logger).Handler(),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 20 * time.Second,
		}
		go func() {
			logger.Info("internal API listening", zap.String("addr", cfg.InternalAPIAddr))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("internal API failed", zap.Error(err))
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	stopSource()
	rl.Stop()

	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}
	return nil
}

// startSource runs src in the background. The returned func stops it and
// waits for Start to return; cancelling the context covers a Stop that lands
// before Start has registered its own cancel.
func startSource(ctx context.Context, src ingest.Source, logger *zap.Logger) func() {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := src.Start(ctx); err != nil {
			logger.Error("frame source failed", zap.Error(err))
		}
	}()
	return func() {
		src.Stop()
		cancel()
		<-done
	}
}

// newSource builds the configured producer feeding sink, or nil for "none".
func newSource(cfg *config.Config, sink ingest.Sink, logger *zap.Logger) (ingest.Source, error) {
	sc := cfg.Source
	switch sc.Kind {
	case config.SourcePattern:
		return ingest.NewPatternSource(sink, sc.Width, sc.Height, sc.FPS, logger), nil
	case config.SourceFFmpeg:
		if err := ingest.ValidateSourceURL(sc.URL); err != nil {
			return nil, fmt.Errorf("invalid source url: %w", err)
		}
		return ingest.NewFFmpegSource(sc.URL, sc.Width, sc.Height, sc.FPS, sink, logger), nil
	default:
		return nil, nil
	}
}
