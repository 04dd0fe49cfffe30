package main

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/SDM-TIB/Behnoosh-Thesis/pkg/rulemetrics"
	"github.com/SDM-TIB/Behnoosh-Thesis/pkg/rulemetrics/ingest"
	"github.com/SDM-TIB/Behnoosh-Thesis/pkg/rulemetrics/internalerr"
	"github.com/SDM-TIB/Behnoosh-Thesis/pkg/rulemetrics/pca"
	"github.com/SDM-TIB/Behnoosh-Thesis/pkg/rulemetrics/rule"
)

func (a *app) evaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score a rules table against the graph",
		Long: `Reads a CSV rules table with Body and Head columns, scores every rule over
the valid and invalid partitions, and writes the table back with PCA_valid,
PCA_invalid and Error columns appended. Rules that fail are reported, not
fatal.

Example:
  pca-metrics evaluate --graph kg_with_status.nt --rules rules.csv --mode normalized`,
		RunE: a.runEvaluate,
	}
	f := cmd.Flags()
	f.String("rules", "", "rules CSV (required)")
	f.StringP("output", "o", "-", "report CSV, - for stdout")
	f.String("mode", string(ingest.ModeRaw), "scores in the report: raw or normalized")
	f.Duration("rule-timeout", 0, "per-rule time limit; overrides the config file")
	f.String("metrics-file", "", "write Prometheus metrics to this file after the run")
	_ = a.v.BindPFlags(f)
	return cmd
}

func (a *app) runEvaluate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	rulesPath := a.v.GetString("rules")
	if rulesPath == "" {
		return fmt.Errorf("--rules is required: %w", internalerr.ErrInvalidInput)
	}
	mode, err := ingest.ParseMode(a.v.GetString("mode"))
	if err != nil {
		return err
	}

	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	rules, err := readRules(rulesPath)
	if err != nil {
		return err
	}

	st, err := a.openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	compiler, err := cfg.Compiler()
	if err != nil {
		return err
	}
	evaluator, err := pca.NewEvaluator(st, compiler, cfg.CacheSize)
	if err != nil {
		return err
	}

	timeout := cfg.RuleTimeout
	if d := a.v.GetDuration("rule-timeout"); d > 0 {
		timeout = d
	}
	registry := prometheus.NewRegistry()
	agg, err := rulemetrics.New(rulemetrics.Options{
		Compiler:    compiler,
		Evaluator:   evaluator,
		Logger:      a.logger,
		Registerer:  registry,
		RuleTimeout: timeout,
	})
	if err != nil {
		return err
	}

	batch, runErr := agg.Run(ctx, rules)

	if err := a.writeReport(cmd, batch.Records, mode); err != nil {
		return err
	}
	if path := a.v.GetString("metrics-file"); path != "" {
		if err := prometheus.WriteToTextfile(path, registry); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}

	s := batch.Summary
	a.logger.Info("evaluation summary",
		zap.String("batch", batch.ID),
		zap.Int("rules", s.Rules),
		zap.Int("evaluated", s.Evaluated),
		zap.Int("failed", s.Failed),
		zap.Float64("pca_valid_mean", s.RawValid.Mean),
		zap.Float64("pca_invalid_mean", s.RawInvalid.Mean),
		zap.Float64("normalized_valid_mean", s.NormalizedValid.Mean),
		zap.Float64("normalized_invalid_mean", s.NormalizedInvalid.Mean))

	return runErr
}

func (a *app) writeReport(cmd *cobra.Command, records []rulemetrics.Record, mode ingest.Mode) error {
	path := a.v.GetString("output")
	if path == "" || path == "-" {
		return ingest.WriteReport(cmd.OutOrStdout(), records, mode)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := ingest.WriteReport(f, records, mode); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	a.logger.Info("report written", zap.String("path", path), zap.Int("rows", len(records)))
	return nil
}

func readRules(path string) ([]rule.Descriptor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rules, err := ingest.ReadRules(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return rules, nil
}
