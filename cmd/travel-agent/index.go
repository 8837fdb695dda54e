package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/manthysbr/travelagent/internal/adapters/providers"
	"github.com/manthysbr/travelagent/internal/adapters/vectorstore"
	"github.com/manthysbr/travelagent/internal/core/services"
)

func newIndexCmd() *cobra.Command {
	var snapshot string
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Load the embeddings snapshot into the duckdb or sqlite backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(os.Stderr)
			if err != nil {
				return err
			}
			if snapshot == "" {
				snapshot = cfg.Retrieval.SnapshotPath
			}

			backend, err := providers.BuildVectorIndex(cmd.Context(), logger, cfg)
			if err != nil {
				return err
			}
			defer backend.Close()

			if backend.Writer == nil {
				return fmt.Errorf("backend %q reads the snapshot directly; set retrieval.backend to duckdb or sqlite", backend.Name)
			}

			n, err := services.ImportChunks(cmd.Context(), logger, vectorstore.NewFileSource(snapshot), backend.Writer)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d chunks into %s\n", n, backend.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&snapshot, "snapshot", "", "snapshot path (default retrieval.snapshot_path)")
	return cmd
}
