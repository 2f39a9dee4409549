package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nurburg-dev/redis-sample-project/internal/config"
	"github.com/nurburg-dev/redis-sample-project/internal/loadtest"
	"github.com/nurburg-dev/redis-sample-project/internal/logging"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath  string
	host        string
	seed        int64
	vus         int
	duration    time.Duration
	sleep       time.Duration
	metricsAddr string
	noColor     bool
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the staged gateway scenario and evaluate thresholds",
	RunE: func(cmd *cobra.Command, args []string) error {
		harness, err := loadHarness(cmd)
		if err != nil {
			return err
		}

		logger, err := logging.New(logLevel, logFormat)
		if err != nil {
			return err
		}
		defer logger.Sync()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		result, err := execute(ctx, harness, logger)
		if err != nil {
			return err
		}

		result.Report(cmd.OutOrStdout())
		return result.Err()
	},
}

func init() {
	runCmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML traffic profile (stages, thresholds, sleep, seed)")
	runCmd.Flags().StringVar(&host, "host", "", "Gateway base URL (default $API_HOST)")
	runCmd.Flags().Int64Var(&seed, "seed", 0, "Seed for keys and fake values (default: time based)")
	runCmd.Flags().IntVar(&vus, "vus", 0, "Run a constant number of VUs instead of the staged profile")
	runCmd.Flags().DurationVar(&duration, "duration", 0, "Duration of the constant profile, used with --vus")
	runCmd.Flags().DurationVar(&sleep, "sleep", 0, "Pause between iterations of one VU")
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve live harness metrics on this address, e.g. :9100")
	runCmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored report output")
}

// loadHarness merges the config file with command line flags. Flags win.
func loadHarness(cmd *cobra.Command) (*config.Harness, error) {
	harness := config.DefaultHarness()
	if configPath != "" {
		h, err := config.LoadHarnessFile(configPath)
		if err != nil {
			return nil, err
		}
		harness = h
	}

	if host != "" {
		harness.Host = host
	}
	if cmd.Flags().Changed("seed") {
		harness.Seed = seed
	} else if harness.Seed == 0 {
		harness.Seed = time.Now().UnixNano()
	}
	if cmd.Flags().Changed("vus") || cmd.Flags().Changed("duration") {
		if vus <= 0 || duration <= 0 {
			return nil, fmt.Errorf("--vus and --duration must both be positive")
		}
		harness.Stages = []config.HarnessStage{
			{Duration: config.Duration{Duration: 0}, Target: vus},
			{Duration: config.Duration{Duration: duration}, Target: vus},
		}
	}
	if cmd.Flags().Changed("sleep") {
		harness.Sleep = config.Duration{Duration: sleep}
	}
	if noColor {
		color.NoColor = true
	}

	if err := harness.Validate(); err != nil {
		return nil, err
	}
	return harness, nil
}

func execute(ctx context.Context, harness *config.Harness, logger *zap.Logger) (*loadtest.Result, error) {
	opts, err := harness.ToOptions()
	if err != nil {
		return nil, err
	}
	opts.Logger = logger

	registry := loadtest.NewRegistry()

	if metricsAddr != "" {
		promRegistry := prometheus.NewRegistry()
		exporter := loadtest.NewExporter(promRegistry)
		registry.Observe(exporter.Observe)

		srv := &http.Server{
			Addr:    metricsAddr,
			Handler: promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{EnableOpenMetrics: true}),
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server failed", zap.Error(err))
			}
		}()
		defer srv.Close()
		logger.Info("Serving harness metrics", zap.String("addr", metricsAddr))
	}

	client := loadtest.NewClient(harness.Host, harness.RequestTimeout.Duration, registry)
	scenario := loadtest.NewGatewayScenario(harness.Host, client, registry, logger, harness.LatencyCeiling.Duration)

	logger.Info("Load test configured",
		zap.String("host", harness.Host),
		zap.Int64("seed", harness.Seed),
		zap.Duration("duration", opts.Schedule.Total()),
		zap.Int("max_vus", opts.Schedule.MaxTarget()),
	)

	return loadtest.New(opts, scenario, registry).Run(ctx)
}
