package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/adaptive-state/phrase-cache/internal/patterns"
	"github.com/danielpatrickdp/adaptive-state/phrase-cache/internal/persist"
)

// #region stats

func newStatsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print entry and phrase counts and the quality distribution",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()
			return writeJSON(cmd.OutOrStdout(), s.store.Stats())
		},
	}
}

// #endregion stats

// #region candidates

func newCandidatesCmd(opts *rootOptions) *cobra.Command {
	var (
		contextPath string
		k           int
		turn        int64
		exact       bool
		tolerance   int
		jsonOut     bool
	)
	cmd := &cobra.Command{
		Use:   "candidates",
		Short: "Rank cached phrases for a felt context",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sig, err := readContext(contextPath, cmd.InOrStdin())
			if err != nil {
				return err
			}
			s, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			var qopts []patterns.QueryOption
			if exact {
				qopts = append(qopts, patterns.WithoutFuzzy())
			}
			if cmd.Flags().Changed("tolerance") {
				qopts = append(qopts, patterns.WithTolerance(tolerance))
			}
			got := s.store.Candidates(sig, k, turn, qopts...)

			if jsonOut {
				type row struct {
					Text  string  `json:"text"`
					Score float64 `json:"score"`
					Key   string  `json:"key"`
				}
				rows := make([]row, len(got))
				for i, c := range got {
					rows[i] = row{Text: c.Text, Score: c.Score, Key: c.Key.String()}
				}
				return writeJSON(cmd.OutOrStdout(), rows)
			}
			if len(got) == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "no candidates")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RANK\tSCORE\tEMA\tPHRASE")
			for i, c := range got {
				fmt.Fprintf(tw, "%d\t%.4f\t%.4f\t%s\n", i+1, c.Score, c.EMAQuality, c.Text)
			}
			return tw.Flush()
		},
	}
	f := cmd.Flags()
	f.StringVar(&contextPath, "context", "-", "felt context JSON file (- for stdin)")
	f.IntVar(&k, "k", 5, "maximum candidates")
	f.Int64Var(&turn, "turn", 0, "current turn for recency weighting")
	f.BoolVar(&exact, "exact", false, "disable fuzzy matching")
	f.IntVar(&tolerance, "tolerance", 1, "fuzzy bin radius (overrides config)")
	f.BoolVar(&jsonOut, "json", false, "output as JSON")
	return cmd
}

// #endregion candidates

// #region record

func newRecordCmd(opts *rootOptions) *cobra.Command {
	var (
		contextPath  string
		phrase       string
		satisfaction float64
		turn         int64
	)
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a satisfaction outcome for a phrase in a felt context",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sig, err := readContext(contextPath, cmd.InOrStdin())
			if err != nil {
				return err
			}
			s, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			recErr := s.store.Record(cmd.Context(), sig, phrase, satisfaction, turn)
			closeErr := s.Close()
			if err := errors.Join(recErr, closeErr); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "recorded %q (satisfaction %.2f, turn %d)\n", phrase, satisfaction, turn)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&contextPath, "context", "-", "felt context JSON file (- for stdin)")
	f.StringVar(&phrase, "phrase", "", "phrase text")
	f.Float64Var(&satisfaction, "satisfaction", 0, "satisfaction in [0,1]")
	f.Int64Var(&turn, "turn", 0, "turn number")
	_ = cmd.MarkFlagRequired("phrase")
	_ = cmd.MarkFlagRequired("satisfaction")
	return cmd
}

// #endregion record

// #region export

func newExportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Write the store document as JSON to stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()
			return writeJSON(cmd.OutOrStdout(), s.store.Snapshot())
		},
	}
}

// #endregion export

// #region snapshots

func newSnapshotsCmd(opts *rootOptions) *cobra.Command {
	var last int
	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "List recent durable writes (sqlite backend)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			sq, ok := s.adapter.(*persist.SQLiteAdapter)
			if !ok {
				return fmt.Errorf("snapshots require the sqlite backend")
			}
			snaps, err := sq.ListSnapshots(last)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SNAPSHOT\tKIND\tPUT\tDEL\tENTRIES\tCREATED")
			for _, sn := range snaps {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\n",
					sn.SnapshotID, sn.Kind, sn.PutCount, sn.DeleteCount, sn.EntryCount, sn.CreatedAt.Format("2006-01-02 15:04:05"))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&last, "last", 20, "show N most recent snapshots")
	return cmd
}

// #endregion snapshots

// #region outcomes

func newOutcomesCmd(opts *rootOptions) *cobra.Command {
	var last int
	cmd := &cobra.Command{
		Use:   "outcomes",
		Short: "List recent recorded outcomes (sqlite backend with journal enabled)",
		Args:  cobra.NoArgs,
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
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TURN\tACTION\tSAT\tPHRASE\tEVICTED")
			for _, o := range outcomes {
				evicted := "-"
				if o.EvictedKey != "" {
					evicted = o.EvictedKey
				}
				fmt.Fprintf(tw, "%d\t%s\t%.2f\t%s\t%s\n", o.Turn, o.Action, o.Satisfaction, o.Phrase, evicted)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&last, "last", 20, "show N most recent outcomes")
	return cmd
}

// #endregion outcomes
