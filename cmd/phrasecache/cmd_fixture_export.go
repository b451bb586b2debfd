package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/adaptive-state/phrase-cache/internal/replay"
)

// #region fixture-export

func newFixtureExportCmd(opts *rootOptions) *cobra.Command {
	var (
		out  string
		last int
		k    int
	)
	cmd := &cobra.Command{
		Use:   "fixture-export",
		Short: "Write a replay fixture built from journaled outcomes",
		Long: "fixture-export reads the most recent outcomes from the journal, rebuilds a\n" +
			"representative felt context for each entry key and writes a fixture whose\n" +
			"expectations are the rankings those outcomes produce on a fresh store.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()
			if s.journal == nil {
				return fmt.Errorf("outcome journal is disabled; set persistence.journal with the sqlite backend")
			}

			outcomes, err := s.journal.RecentOutcomes(last)
			if err != nil {
				return err
			}
			if len(outcomes) == 0 {
				return fmt.Errorf("no outcomes recorded")
			}
			f, err := replay.FromOutcomes(cmd.Context(), outcomes, s.config, k)
			if err != nil {
				return err
			}

			data, err := json.MarshalIndent(f, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal fixture: %w", err)
			}
			data = append(data, '\n')
			if out == "" || out == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("write fixture: %w", err)
			}
			s.logger.Info("fixture exported",
				zap.String("path", out),
				zap.Int("interactions", len(f.Interactions)),
				zap.Int("queries", len(f.Queries)),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d interactions, %d queries)\n", out, len(f.Interactions), len(f.Queries))
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "output path, stdout when empty or -")
	cmd.Flags().IntVar(&last, "last", 100, "export the N most recent outcomes")
	cmd.Flags().IntVar(&k, "k", 5, "candidates per exported query")
	return cmd
}

// #endregion fixture-export
