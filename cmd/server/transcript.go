package main

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ashureev/finboard/internal/config"
	"github.com/ashureev/finboard/internal/store"
)

func newTranscriptCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "transcript <workspace-id>",
		Short: "Print the recorded chat exchanges of a workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if !cfg.Transcript.Enabled {
				return fmt.Errorf("transcripts are disabled (TRANSCRIPT_ENABLED=false)")
			}

			repo, err := store.NewSQLite(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open transcript store: %w", err)
			}
			defer func() {
				if closeErr := repo.Close(); closeErr != nil {
					slog.Error("Failed to close repository", "error", closeErr)
				}
			}()

			exchanges, err := repo.ListExchanges(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, e := range exchanges {
				if err := enc.Encode(e); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum number of exchanges to print")
	return cmd
}
