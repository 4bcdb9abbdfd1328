package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/RenatoCabral2022/framerelay/internal/config"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "framerelay",
		Short: "Relay the latest video frame to a local consumer at the rate it asks for",
		Long: `framerelay keeps the most recent frame from a producer and streams it to a
single consumer connected on a unix socket. The consumer sends one byte with
the frames per second it wants (0 for as fast as frames arrive) and then
reads raw frames back to back; frames it cannot keep up with are dropped.`,
		SilenceUsage: true,
	}

	pf := cmd.PersistentFlags()
	pf.String("config", "", "path to a framerelay.yaml config file")
	pf.String("socket", config.DefaultSocketPath, "unix socket path")
	pf.Int("width", 640, "frame width in pixels")
	pf.Int("height", 480, "frame height in pixels")
	pf.Bool("dev", false, "human-readable development logging")

	cmd.AddCommand(newServeCmd(), newConsumeCmd())
	return cmd
}

func newLogger(development bool) (*zap.Logger, error) {
	if development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
