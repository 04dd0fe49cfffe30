package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/SDM-TIB/Behnoosh-Thesis/pkg/rulemetrics/config"
	"github.com/SDM-TIB/Behnoosh-Thesis/pkg/rulemetrics/ingest"
	"github.com/SDM-TIB/Behnoosh-Thesis/pkg/rulemetrics/internalerr"
	"github.com/SDM-TIB/Behnoosh-Thesis/pkg/rulemetrics/store"
	"github.com/SDM-TIB/Behnoosh-Thesis/pkg/rulemetrics/store/mangle"
	"github.com/SDM-TIB/Behnoosh-Thesis/pkg/rulemetrics/store/memstore"
	"github.com/SDM-TIB/Behnoosh-Thesis/pkg/rulemetrics/store/sqlite"
)

var version = "dev"

// app carries settings and the logger shared by all commands.
type app struct {
	v      *viper.Viper
	logger *zap.Logger
}

// backend is a store that ingestion can load.
type backend interface {
	store.Store
	store.Loader
}

// newRootCmd builds the command tree. A nil logger is built from --verbose.
func newRootCmd(logger *zap.Logger) *cobra.Command {
	a := &app{v: viper.New(), logger: logger}

	root := &cobra.Command{
		Use:   "pca-metrics",
		Short: "Partition-aware PCA confidence for mined rules",
		Long: `pca-metrics scores mined Horn rules over a labelled knowledge graph.

For every rule it computes PCA confidence separately over entities labelled
valid and invalid by a constraint checker, plus the normalized share of
support each partition holds.

Settings come from flags, then PCA_* environment variables.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if a.logger != nil {
				return nil
			}
			cfg := zap.NewProductionConfig()
			if a.v.GetBool("verbose") {
				cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			var err error
			a.logger, err = cfg.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "vocabulary and evaluation config (YAML); built-in lung cancer vocabulary if empty")
	pf.String("graph", "", "N-Triples graph with validation status triples")
	pf.String("db", "", "SQLite graph database (created by import)")
	pf.String("backend", "memory", "store for --graph without --db: memory or mangle")
	pf.BoolP("verbose", "v", false, "debug logging")
	_ = a.v.BindPFlags(pf)

	a.v.SetEnvPrefix("PCA")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	root.AddCommand(a.evaluateCmd(), a.importCmd(), a.statsCmd(), versionCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "pca-metrics %s\n", version)
		},
	}
}

func (a *app) loadConfig() (*config.Config, error) {
	path := a.v.GetString("config")
	if path == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	a.logger.Debug("config loaded", zap.String("path", path))
	return cfg, nil
}

// openStore opens --db or an in-process backend and loads --graph into it.
func (a *app) openStore(ctx context.Context, cfg *config.Config) (backend, error) {
	dbPath := a.v.GetString("db")
	graphPath := a.v.GetString("graph")

	var b backend
	switch {
	case dbPath != "":
		if graphPath == "" {
			if _, err := os.Stat(dbPath); errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("database %s: %w", dbPath, internalerr.ErrNotFound)
			}
		}
		st, err := sqlite.OpenSQLite(ctx, dbPath)
		if err != nil {
			return nil, err
		}
		b = st
	case graphPath == "":
		return nil, fmt.Errorf("--graph or --db is required: %w", internalerr.ErrInvalidInput)
	default:
		switch name := a.v.GetString("backend"); name {
		case "memory":
			b = memstore.New()
		case "mangle":
			b = mangle.New()
		default:
			return nil, fmt.Errorf("backend %q: %w", name, internalerr.ErrInvalidInput)
		}
	}

	if graphPath == "" {
		return b, nil
	}
	f, err := os.Open(graphPath)
	if err != nil {
		b.Close()
		return nil, err
	}
	defer f.Close()

	st, err := ingest.ReadNTriples(ctx, f, b, cfg.StatusPredicateIRI())
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("load %s: %w", graphPath, err)
	}
	a.logger.Info("graph loaded",
		zap.String("path", graphPath),
		zap.Int("facts", st.Facts),
		zap.Int("labels", st.Labels))
	return b, nil
}
