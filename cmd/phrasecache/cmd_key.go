package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/adaptive-state/phrase-cache/internal/signature"
)

// #region key

func newKeyCmd() *cobra.Command {
	var (
		contextPath string
		precision   string
		tolerance   int
		fuzzy       bool
	)
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Print the cache key of a felt context",
		Long: "key builds the signature of a felt context and prints its key at the chosen\n" +
			"precision, one canonical encoding per line. With --fuzzy it prints every\n" +
			"neighbour key a fuzzy lookup would probe.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := signature.ParsePrecision(precision)
			if err != nil {
				return err
			}
			sig, err := readContext(contextPath, cmd.InOrStdin())
			if err != nil {
				return err
			}
			keys := []signature.Key{signature.Project(sig, p)}
			if fuzzy {
				keys = signature.FuzzyKeys(sig, tolerance, p)
			}
			for _, k := range keys {
				fmt.Fprintln(cmd.OutOrStdout(), k.String())
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&contextPath, "context", "-", "felt context JSON file (- for stdin)")
	f.StringVar(&precision, "precision", "standard", "key precision: coarse, standard or full")
	f.BoolVar(&fuzzy, "fuzzy", false, "print the fuzzy neighbourhood instead of the exact key")
	f.IntVar(&tolerance, "tolerance", 1, "fuzzy bin radius")
	return cmd
}

// #endregion key
