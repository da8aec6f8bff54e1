package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"panval/internal/platform/config"
	"panval/internal/platform/httpserver"
	"panval/internal/platform/logger"
	platformmetrics "panval/internal/platform/metrics"
	"panval/internal/screening"
	"panval/internal/screening/metrics"
	"panval/internal/screening/service"
)

var (
	runSource  string
	runInput   string
	runFormat  string
	runColumn  string
	runSinks   []string
	runWorkers int
	runDetails bool
)

// runCmd executes the pipeline once
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the cleaning and classification pipeline once",
	Long: `Loads the raw dataset from the configured source, cleans and classifies it,
and writes the results and summary to every configured sink.

Example:
  panval run --input pans.txt
  PANVAL_SOURCE=postgres DATABASE_URL=postgres://... panval run --sink report,postgres`,
	Args: cobra.NoArgs,
	RunE: runPipeline,
}

func init() {
	runCmd.Flags().StringVar(&runSource, "source", "", "input source (file, postgres, sqlite)")
	runCmd.Flags().StringVarP(&runInput, "input", "i", "", "input file path for the file source")
	runCmd.Flags().StringVar(&runFormat, "format", "", "input file format (lines, csv)")
	runCmd.Flags().StringVar(&runColumn, "column", "", "csv header of the PAN column")
	runCmd.Flags().StringSliceVar(&runSinks, "sink", nil, "output sinks (report, postgres, sqlite, kafka)")
	runCmd.Flags().IntVar(&runWorkers, "workers", 0, "classification workers (0 = GOMAXPROCS)")
	runCmd.Flags().BoolVar(&runDetails, "details", false, "print every classification in the report")
}

func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("source") {
		cfg.Source.Kind = runSource
	}
	if flags.Changed("input") {
		cfg.Source.Path = runInput
	}
	if flags.Changed("format") {
		cfg.Source.Format = runFormat
	}
	if flags.Changed("column") {
		cfg.Source.Column = runColumn
	}
	if flags.Changed("sink") {
		cfg.Sinks = runSinks
	}
	if flags.Changed("workers") {
		cfg.Workers = runWorkers
	}
	if flags.Changed("details") {
		cfg.Report.Details = runDetails
	}
}

func runPipeline(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyRunFlags(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.New(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	reg := platformmetrics.NewRegistry()
	m := metrics.New(reg)

	d := newDeps(cfg, log)
	defer func() {
		if err := d.Close(); err != nil {
			log.Warn("closing backends", "error", err)
		}
	}()

	source, err := d.source(ctx)
	if err != nil {
		return err
	}
	sink, err := d.sink(ctx, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	cache, err := d.cache(ctx)
	if err != nil {
		return err
	}

	opts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(m),
		service.WithClassifier(screening.NewClassifier(screening.WithWorkers(cfg.Workers))),
	}
	if cache != nil {
		opts = append(opts, service.WithCache(cache))
	}
	svc, err := service.New(source, sink, opts...)
	if err != nil {
		return err
	}

	if cfg.Metrics.Addr != "" {
		srv := httpserver.New(cfg.Metrics.Addr, httpserver.NewOpsRouter(reg, d.checks))
		go func() {
			log.Info("serving ops endpoints", "addr", cfg.Metrics.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("ops server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Warn("ops server shutdown", "error", err)
			}
		}()
	}

	_, runErr := svc.Run(ctx)

	if cfg.Metrics.TextfilePath != "" {
		if err := platformmetrics.WriteTextfile(cfg.Metrics.TextfilePath, reg); err != nil {
			log.Warn("metrics textfile not written", "error", err)
		}
	}
	return runErr
}
