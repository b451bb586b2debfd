package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/adaptive-state/phrase-cache/internal/replay"
)

// #region replay

func newReplayCmd(opts *rootOptions) *cobra.Command {
	var fixtures []string
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay JSON fixtures against fresh in-memory stores",
		Long: `Each fixture runs against its own in-memory store, so replay never touches the
configured backend. Fixtures run concurrently; the command fails if any query or
stats expectation does not hold.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, _, err := opts.logger()
			if err != nil {
				return err
			}
			defer logger.Sync()

			reports, err := replay.RunFiles(cmd.Context(), fixtures, logger)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			failed := 0
			for _, fr := range reports {
				sum := replay.Summarize(fr.Report)
				status := "PASS"
				if !fr.Report.OK() {
					status = "FAIL"
					failed++
				}
				fmt.Fprintf(w, "%s  %s  queries=%d passed=%d failed=%d entries=%d phrases=%d\n",
					status, fr.Path, sum.Queries, sum.Passed, sum.Failed, sum.Stats.EntryCount, sum.Stats.PhraseCount)
				for _, r := range fr.Report.Results {
					if !r.Passed {
						fmt.Fprintf(w, "    %s (turn %d): %s\n", r.Name, r.Turn, r.Reason)
					}
				}
				if !fr.Report.StatsPassed {
					fmt.Fprintf(w, "    stats: %s\n", fr.Report.StatsReason)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d fixture(s) failed", failed, len(reports))
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&fixtures, "fixture", nil, "fixture JSON file (repeatable)")
	_ = cmd.MarkFlagRequired("fixture")
	return cmd
}

// #endregion replay
