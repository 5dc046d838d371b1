/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package main

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/acronis/go-sawtooth/config"
	"github.com/acronis/go-sawtooth/internal/diagserver"
	"github.com/acronis/go-sawtooth/internal/stress"
	"github.com/acronis/go-sawtooth/limiter"
	"github.com/acronis/go-sawtooth/log"
	"github.com/acronis/go-sawtooth/service"
)

const metricsNamespace = "sawtooth_stress"

type runOptions struct {
	configPath  string
	output      string
	requests    int
	supported   float64
	diagAddress string
	logLevel    string
}

func newRunCmd() *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the stress scenario and write sampled limiter state into a CSV file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStress(cmd.Context(), cmd, opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "path to the configuration file (.yaml, .yml or .json)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "path to the output CSV file")
	cmd.Flags().IntVar(&opts.requests, "requests", 0, "total number of operations")
	cmd.Flags().Float64Var(&opts.supported, "supported", 0, "initial concurrency supported by the downstream")
	cmd.Flags().StringVar(&opts.diagAddress, "diag-address", "", "enable the diagnostics server on the address")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "logging level (error, warn, info, debug)")
	return cmd
}

type appConfig struct {
	scenario *stress.Scenario
	log      *log.Config
	diag     *diagserver.Config
}

func loadConfig(cmd *cobra.Command, opts runOptions) (*appConfig, error) {
	cfg := &appConfig{scenario: stress.NewScenario(), log: log.NewConfig(), diag: diagserver.NewConfig()}
	loader := config.NewDefaultLoader(envVarsPrefix)

	flags := cmd.Flags()
	if flags.Changed("output") {
		loader.DataProvider.Set("stress.output", opts.output)
	}
	if flags.Changed("requests") {
		loader.DataProvider.Set("stress.requests", opts.requests)
	}
	if flags.Changed("supported") {
		loader.DataProvider.Set("stress.supportedConcurrency", opts.supported)
	}
	if flags.Changed("diag-address") {
		loader.DataProvider.Set("diagserver.enabled", true)
		loader.DataProvider.Set("diagserver.address", opts.diagAddress)
	}
	if flags.Changed("log-level") {
		loader.DataProvider.Set("log.level", opts.logLevel)
	}

	if opts.configPath == "" {
		if err := loader.Load(cfg.scenario, cfg.log, cfg.diag); err != nil {
			return nil, fmt.Errorf("load configuration: %w", err)
		}
		return cfg, nil
	}
	dataType, err := config.DataTypeFromPath(opts.configPath)
	if err != nil {
		return nil, err
	}
	if err = loader.LoadFromFile(opts.configPath, dataType, cfg.scenario, cfg.log, cfg.diag); err != nil {
		return nil, fmt.Errorf("load configuration from %q: %w", opts.configPath, err)
	}
	return cfg, nil
}

func runStress(ctx context.Context, cmd *cobra.Command, opts runOptions, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}

	logger, closeLogger := log.NewLogger(cfg.log)
	defer closeLogger()

	runner, err := stress.NewRunner(cfg.scenario, stress.RunnerOpts{
		Logger:           logger,
		MetricsCollector: limiter.NewMetricsCollector(metricsNamespace),
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	runnerUnit := service.NewWorkerUnitWithOpts(service.WorkerFunc(func(workerCtx context.Context) error {
		defer cancel()
		return runner.Run(workerCtx)
	}), service.WorkerUnitOpts{MetricsRegisterer: runner})
	units := []service.Unit{runnerUnit, service.NewWorkerUnit(runner.NewSamplerWorker())}
	if cfg.diag.Enabled {
		diagServer := diagserver.New(cfg.diag, logger, diagserver.Opts{LimiterStats: runner.Limiter().Stats})
		logger.Info("diagnostics server enabled", log.String("url", diagServer.URL))
		units = append(units, diagServer)
	}

	if err = service.New(logger, service.NewCompositeUnit(units...)).StartContext(ctx); err != nil {
		return err
	}

	summary, finished := runner.Summary()
	if !finished {
		return fmt.Errorf("stress run has not finished")
	}
	if err = stress.WriteCSVFile(cfg.scenario.Output, runner.Sampler().Samples()); err != nil {
		return err
	}
	printSummary(out, summary, cfg.scenario.Output)
	return nil
}

func printSummary(w io.Writer, summary stress.Summary, output string) {
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)

	if summary.Interrupted {
		_, _ = yellow.Fprintf(w, "Stress run interrupted after %s\n", summary.Duration)
	} else {
		_, _ = green.Fprintf(w, "Stress run finished in %s\n", summary.Duration)
	}
	_, _ = bold.Fprintf(w, "Operations: ")
	_, _ = fmt.Fprintf(w, "%d/%d completed, %d backpressured, %d failed\n",
		summary.Completed, summary.Requests, summary.Backpressured, summary.Failed)
	_, _ = bold.Fprintf(w, "Concurrency: ")
	_, _ = fmt.Fprintf(w, "final %.2f, avg %.2f, peak %d, threshold %.2f, supported %.2f\n",
		summary.FinalConcurrency, summary.AvgConcurrency, summary.PeakConcurrency,
		summary.FinalThreshold, summary.Supported)
	_, _ = cyan.Fprintf(w, "%d samples written to %s\n", summary.Samples, output)
}
