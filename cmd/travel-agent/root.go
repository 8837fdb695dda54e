package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/manthysbr/travelagent/internal/config"
	"github.com/manthysbr/travelagent/internal/core/domain"
)

var flagConfig string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "travel-agent",
		Short:         "Retrieval-augmented travel planning agent",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&flagConfig, "config", os.Getenv("TRAVEL_AGENT_CONFIG"), "path to a YAML config file")

	root.AddCommand(newServeCmd(), newAskCmd(), newIndexCmd(), newMCPCmd())
	return root
}

// loadConfig reads the config and builds a JSON logger writing to w.
func loadConfig(w io.Writer) (*domain.AppConfig, *slog.Logger, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, nil, err
	}
	level, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	return cfg, logger, nil
}
