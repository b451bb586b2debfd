package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/adaptive-state/phrase-cache/internal/config"
	"github.com/danielpatrickdp/adaptive-state/phrase-cache/internal/logging"
	"github.com/danielpatrickdp/adaptive-state/phrase-cache/internal/patterns"
	"github.com/danielpatrickdp/adaptive-state/phrase-cache/internal/persist"
	"github.com/danielpatrickdp/adaptive-state/phrase-cache/internal/signature"
)

// #region root

type rootOptions struct {
	configPath string
	backend    string
	path       string
	verbose    bool
	getenv     func(string) string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{getenv: os.Getenv}
	cmd := &cobra.Command{
		Use:           "phrasecache",
		Short:         "Inspect and exercise a felt-context phrase cache",
		Long:          "phrasecache opens a phrase cache store, records outcomes, ranks candidate\nphrases for a felt context and replays JSON fixtures against a fresh store.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "YAML or TOML config file")
	pf.StringVar(&opts.backend, "backend", "", "storage backend: file, sqlite, leveldb or memory")
	pf.StringVar(&opts.path, "path", "", "storage location for the backend")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging to stderr")

	cmd.AddCommand(
		newStatsCmd(opts),
		newCandidatesCmd(opts),
		newRecordCmd(opts),
		newExportCmd(opts),
		newSnapshotsCmd(opts),
		newOutcomesCmd(opts),
		newReplayCmd(opts),
		newFixtureExportCmd(opts),
		newKeyCmd(),
	)
	return cmd
}

// #endregion root

// #region session

// loadConfig layers file, environment and flags, in that order.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(o.getenv); err != nil {
		return nil, err
	}
	if o.backend != "" {
		cfg.Persistence.Backend = o.backend
	}
	if o.path != "" {
		cfg.Persistence.Path = o.path
	}
	if o.verbose {
		cfg.Logging.Level = "debug"
		cfg.Logging.Encoding = "console"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func (o *rootOptions) logger() (*zap.Logger, *config.Config, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		return nil, nil, err
	}
	return logger, cfg, nil
}

// session is an open store plus the handles the subcommands need.
type session struct {
	store   *patterns.Store
	adapter persist.Adapter
	journal *logging.Journal
	logger  *zap.Logger
	config  patterns.Config
}

func (o *rootOptions) open(ctx context.Context) (*session, error) {
	logger, cfg, err := o.logger()
	if err != nil {
		return nil, err
	}
	pc, err := cfg.PatternConfig()
	if err != nil {
		return nil, err
	}
	adapter, err := persist.Open(cfg.Persistence.Backend, cfg.Persistence.Path)
	if err != nil {
		return nil, err
	}

	s := &session{adapter: adapter, logger: logger, config: pc}
	storeOpts := []patterns.Option{patterns.WithLogger(logger)}
	if cfg.Persistence.Journal {
		sq, ok := adapter.(*persist.SQLiteAdapter)
		if !ok {
			adapter.Close()
			return nil, fmt.Errorf("outcome journal requires the sqlite backend")
		}
		j, err := logging.NewJournal(sq.DB())
		if err != nil {
			adapter.Close()
			return nil, err
		}
		s.journal = j
		storeOpts = append(storeOpts, patterns.WithJournal(j))
	}

	store, err := patterns.Open(ctx, adapter, pc, storeOpts...)
	if err != nil {
		adapter.Close()
		return nil, err
	}
	s.store = store
	return s, nil
}

func (s *session) Close() error {
	err := s.store.Close()
	_ = s.logger.Sync()
	return err
}

// #endregion session

// #region helpers

// readContext decodes a FeltContext from a JSON file, or stdin for "-".
func readContext(path string, stdin io.Reader) (signature.Signature, error) {
	var r io.Reader
	if path == "-" {
		r = stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return signature.Signature{}, fmt.Errorf("open context: %w", err)
		}
		defer f.Close()
		r = f
	}
	var fc signature.FeltContext
	if err := json.NewDecoder(r).Decode(&fc); err != nil {
		return signature.Signature{}, fmt.Errorf("decode context: %w", err)
	}
	return signature.Build(fc)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// #endregion helpers
