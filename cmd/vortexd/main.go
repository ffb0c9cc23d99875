// Command vortexd runs a single vortex server process: one Engine with
// one shard reactor per configured core.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vortexdb/vortex"
	"github.com/vortexdb/vortex/internal/config"
	"github.com/vortexdb/vortex/internal/logging"
	"github.com/vortexdb/vortex/internal/metrics"
)

func main() {
	var (
		yamlPath   = flag.String("config", "", "Path to a YAML config file")
		envPath    = flag.String("env", ".env", "Path to a .env file (ignored if missing)")
		port       = flag.Int("port", 0, "Listening port (overrides config)")
		storageDir = flag.String("storage-dir", "", "WAL storage directory (overrides config)")
		shardCount = flag.Int("shards", 0, "Number of shards (overrides config)")
		metricsPort = flag.Int("metrics-port", 9090, "Port to serve Prometheus metrics on")
		verbose    = flag.Bool("v", false, "Verbose logging")
	)
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	cfg, err := config.Load(*yamlPath, *envPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *storageDir != "" {
		cfg.StorageDir = *storageDir
	}
	if *shardCount != 0 {
		cfg.ShardCount = *shardCount
	}

	reg := prometheus.NewRegistry()
	observer := metrics.NewPrometheusObserver(reg)

	engineInstance, err := vortex.Start(cfg, &vortex.Options{Observer: observer})
	if err != nil {
		logger.Error("failed to start engine", "error", err)
		os.Exit(1)
	}
	defer func() {
		logger.Info("stopping engine")
		if err := engineInstance.Stop(); err != nil {
			logger.Error("error stopping engine", "error", err)
		}
	}()

	logger.Info("engine started",
		"port", cfg.Port,
		"shards", cfg.ShardCount,
		"dim", cfg.Dim,
		"storage_dir", cfg.StorageDir)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	go func() {
		addr := fmt.Sprintf(":%d", *metricsPort)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("metrics server exited", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
}
