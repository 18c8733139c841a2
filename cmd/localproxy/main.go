package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuemby/localproxy/pkg/cache"
	"github.com/cuemby/localproxy/pkg/dispatch"
	"github.com/cuemby/localproxy/pkg/ingress"
	"github.com/cuemby/localproxy/pkg/log"
	"github.com/cuemby/localproxy/pkg/manifest"
	"github.com/cuemby/localproxy/pkg/metrics"
	"github.com/cuemby/localproxy/pkg/router"
	"github.com/cuemby/localproxy/pkg/supervisor"
	"github.com/spf13/cobra"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "localproxy",
	Short:   "localproxy - a local reverse proxy that dispatches requests to worker processes",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("localproxy version %s (%s)\n", Version, Commit))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(runCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Load a manifest and run the proxy",
	RunE:  runProxy,
}

func init() {
	runCmd.Flags().String("manifest", "", "Path to the YAML manifest (required)")
	runCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Metrics/health listener address")
	_ = runCmd.MarkFlagRequired("manifest")
}

func runProxy(cmd *cobra.Command, args []string) error {
	manifestPath, _ := cmd.Flags().GetString("manifest")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

	m, err := manifest.Load(manifestPath)
	if err != nil {
		return fmt.Errorf("load manifest: %w", err)
	}

	table, err := router.Compile(m.Workers)
	if err != nil {
		return fmt.Errorf("compile routes: %w", err)
	}

	respCache, err := cache.New(m.Cache.Capacity)
	if err != nil {
		return fmt.Errorf("create cache: %w", err)
	}

	tmpDir, err := os.MkdirTemp("", "localproxy-")
	if err != nil {
		return fmt.Errorf("create runtime dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	sup := supervisor.New(tmpDir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Workers run under their own context: cancelling ctx stops the
	// ingress server, and must not kill the workers (they are started with
	// exec.CommandContext) before Shutdown has sent them SIGTERM.
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	if err := sup.Spawn(workerCtx, m.Workers); err != nil {
		return fmt.Errorf("spawn workers: %w", err)
	}
	log.Info(fmt.Sprintf("spawned %d worker(s)", len(m.Workers)))

	pipeline := dispatch.New(table, respCache, sup)
	server := ingress.NewServer(m.IngressAddr, pipeline)

	metrics.SetVersion(Version)
	metrics.RegisterComponent("ingress", true, "ready")
	metrics.RegisterComponent("supervisor", true, fmt.Sprintf("%d worker(s)", len(m.Workers)))

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.Handle("/health", metrics.HealthHandler())
		mux.Handle("/ready", metrics.ReadyHandler())
		mux.Handle("/live", metrics.LivenessHandler())
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			log.Error(fmt.Sprintf("metrics server error: %v", err))
		}
	}()
	log.Info(fmt.Sprintf("metrics endpoint: http://%s/metrics", metricsAddr))

	serveErrCh := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil {
			serveErrCh <- err
		}
		close(serveErrCh)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info("shutting down")
	case err := <-serveErrCh:
		if err != nil {
			log.Error(fmt.Sprintf("ingress server error: %v", err))
		}
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := sup.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown supervisor: %w", err)
	}

	log.Info("shutdown complete")
	return nil
}
