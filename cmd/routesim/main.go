// Command routesim runs a scenario configuration through the simulator
// and prints the final route report.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/nkessler1/routesim/internal/config"
	"github.com/nkessler1/routesim/internal/metrics"
	"github.com/nkessler1/routesim/internal/network"
	"github.com/nkessler1/routesim/internal/router"
)

var (
	algorithm     string
	metricsEnable bool
	metricsAddr   string
	verbose       bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "routesim",
		Short:        "Discrete, time-accurate simulator for routing algorithms",
		SilenceUsage: true,
	}

	runCmd := &cobra.Command{
		Use:   "run <config-path>",
		Short: "Run a scenario configuration to completion and print its report",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}
	runCmd.Flags().StringVar(&algorithm, "router", "", `routing algorithm to load ("" for the built-in echo default, "DV", or "LS")`)
	runCmd.Flags().BoolVar(&metricsEnable, "metrics-enable", false, "enable a prometheus /metrics endpoint for the duration of the run")
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":8080", "address to listen on for prometheus metrics")
	runCmd.Flags().BoolVar(&verbose, "verbose", false, "enable debug-level logging")

	root.AddCommand(runCmd)
	return root
}

func runScenario(cmd *cobra.Command, args []string) error {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	scenario, err := config.Load(args[0])
	if err != nil {
		return fmt.Errorf("load scenario: %w", err)
	}

	var mcollector *metrics.Collector
	if metricsEnable {
		mcollector = metrics.New()
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(mcollector.Registry, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: metricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
		defer srv.Close()
		logger.Info("metrics enabled", "addr", metricsAddr)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	net, err := network.New(scenario, algorithm, router.NewRegistry(), nil, mcollector, logger)
	if err != nil {
		return fmt.Errorf("build network: %w", err)
	}

	report, err := net.Run(ctx)
	if err != nil {
		return fmt.Errorf("run scenario: %w", err)
	}

	fmt.Print(report)

	// A FAILURE verdict is normal completion (spec §6): exit 0 regardless
	// of verdict. Only a configuration error above exits non-zero.
	return nil
}
