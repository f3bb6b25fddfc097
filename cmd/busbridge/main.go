// Command busbridge runs the HTTP to message bus request/response bridge.
//
// Exit codes: 0 after a clean drain, 1 on configuration or bus init
// failure, 2 when an HTTP listener cannot bind.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voyahub/busbridge/internal/bridge"
	"github.com/voyahub/busbridge/internal/bus"
	"github.com/voyahub/busbridge/internal/config"
	"github.com/voyahub/busbridge/internal/httpapi"
	"github.com/voyahub/busbridge/internal/ids"
	"github.com/voyahub/busbridge/internal/logging"
	_ "github.com/voyahub/busbridge/transport/transports"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to a config file (YAML, JSON, or .env)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("busbridge " + version)
		return 0
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "busbridge: "+err.Error())
		return 1
	}

	slogger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	instanceID := ids.CreateULID()
	logger := logging.NewSlogServiceLogger(slogger.With(
		slog.String("service", "busbridge"),
		slog.String("instanceId", instanceID),
	))

	logger.Info("starting", logging.LogFields{
		"version": version,
		"system":  cfg.BusSystem,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	busClient := bus.NewClient(cfg, logger, instanceID)
	if err := busClient.Connect(ctx); err != nil {
		logger.Error("bus connect failed", err, nil)
		return 1
	}

	svc, err := bridge.NewService(cfg, logger, busClient, instanceID)
	if err != nil {
		logger.Error("bridge init failed", err, nil)
		_ = busClient.Close()
		return 1
	}
	if err := svc.Start(ctx); err != nil {
		logger.Error("bridge start failed", err, nil)
		_ = busClient.Close()
		return 1
	}

	handlers := httpapi.NewHandlers(svc, logger, cfg.MaxBodyBytes)
	apiServer := httpapi.NewServer(cfg.HTTPAddr, httpapi.NewRouter(handlers, logger), logger)
	apiErrs, err := apiServer.Start()
	if err != nil {
		logger.Error("http bind failed", err, logging.LogFields{"addr": cfg.HTTPAddr})
		svc.Stop()
		_ = busClient.Close()
		return 2
	}

	var metricsServer *httpapi.Server
	var metricsErrs <-chan error
	if cfg.MetricsEnabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = httpapi.NewServer(fmt.Sprintf(":%d", cfg.MetricsPort), mux, logger)
		metricsErrs, err = metricsServer.Start()
		if err != nil {
			logger.Error("metrics bind failed", err, logging.LogFields{"port": cfg.MetricsPort})
			_ = apiServer.Shutdown(context.Background())
			svc.Stop()
			_ = busClient.Close()
			return 2
		}
	}

	select {
	case <-ctx.Done():
	case err := <-apiErrs:
		logger.Error("http server failed", err, nil)
		svc.Stop()
		_ = busClient.Close()
		return 2
	case err := <-metricsErrs:
		logger.Error("metrics server failed", err, nil)
		_ = apiServer.Shutdown(context.Background())
		svc.Stop()
		_ = busClient.Close()
		return 2
	}

	logger.Info("shutdown signal received", nil)
	svc.BeginDrain()

	// In-flight waiters ride out the grace window inside their HTTP
	// handlers; whatever is left gets failed by Stop below.
	graceCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace())
	defer cancel()
	if err := apiServer.Shutdown(graceCtx); err != nil {
		logger.Error("http shutdown incomplete", err, nil)
	}
	if metricsServer != nil {
		_ = metricsServer.Shutdown(graceCtx)
	}

	svc.Stop()
	if err := busClient.Close(); err != nil {
		logger.Error("bus close failed", err, nil)
	}

	logger.Info("shutdown complete", nil)
	return 0
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

func logLevel(name string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
