package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/SDM-TIB/Behnoosh-Thesis/pkg/rulemetrics/internalerr"
	"github.com/SDM-TIB/Behnoosh-Thesis/pkg/rulemetrics/query"
)

func (a *app) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import",
		Short: "Load an N-Triples graph into a SQLite database",
		Long: `Parses --graph and stores its facts and validation labels in --db, so later
runs can evaluate with --db alone.

Example:
  pca-metrics import --graph kg_with_status.nt --db kg.db`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.v.GetString("db") == "" || a.v.GetString("graph") == "" {
				return fmt.Errorf("import needs --graph and --db: %w", internalerr.ErrInvalidInput)
			}
			return a.printStats(cmd, args)
		},
	}
}

func (a *app) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show fact and label counts",
		RunE:  a.printStats,
	}
}

func (a *app) printStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	st, err := a.openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	stats, err := st.Stats(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "facts: %d\n", stats.Facts)

	labels := make([]query.Label, 0, len(stats.Labels))
	for l := range stats.Labels {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i] < labels[j] })
	for _, l := range labels {
		fmt.Fprintf(out, "%s: %d\n", l, stats.Labels[l])
	}
	return nil
}
