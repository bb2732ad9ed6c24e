// Package main is the entry point for the MQTT topic exporter: it serves
// MQTT messages on configured topics as Prometheus metrics.
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
	"time"

	"github.com/mqtt-tools/mqttbridge/internal/api"
	"github.com/mqtt-tools/mqttbridge/internal/config"
	"github.com/mqtt-tools/mqttbridge/internal/engine"
	"github.com/mqtt-tools/mqttbridge/internal/journal"
	"github.com/mqtt-tools/mqttbridge/internal/receiver"
	"github.com/mqtt-tools/mqttbridge/internal/rules"
	"github.com/mqtt-tools/mqttbridge/internal/series"
	"github.com/mqtt-tools/mqttbridge/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	verbose := flag.Bool("verbose", false, "show debug output")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := run(*configPath, logger); err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, logger *slog.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	metricRules, err := cfg.CompileMetricRules()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if len(metricRules) == 0 {
		return fmt.Errorf("no metric rules configured")
	}
	ruleSet := rules.NewRuleSet(metricRules, nil)

	metrics := telemetry.New()
	store := series.New()

	jrnl, err := journal.Open(context.Background(), cfg.Journal, logger)
	if err != nil {
		return err
	}
	async := journal.NewAsync(jrnl, 256, logger, func() { metrics.JournalErrors.Inc() })

	eng := engine.New(ruleSet, engine.Options{
		Store:   store,
		Journal: async,
		Metrics: metrics,
		Logger:  logger,
	})

	recv := receiver.New(receiver.Config{
		Broker:    cfg.MQTT.Broker,
		ClientID:  cfg.MQTT.ClientID,
		Username:  cfg.MQTT.Username,
		Password:  cfg.MQTT.Password,
		Keepalive: time.Duration(cfg.MQTT.Keepalive),
	}, ruleSet.Topics(), eng, metrics, logger)

	server := api.NewServer(api.Options{
		Addr:        cfg.Exporter.Listen,
		MetricsPath: cfg.Exporter.MetricsPath,
		Store:       store,
		Journal:     jrnl,
		Metrics:     metrics,
		Connected:   recv.Connected,
		Logger:      logger,
	})

	// Configuration is valid from here on: connect and serve.
	connectCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := recv.Start(connectCtx); err != nil {
		logger.Warn("first connection to broker failed, retrying in background", "error", err)
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("serving metrics", "addr", cfg.Exporter.Listen, "path", cfg.Exporter.MetricsPath)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		logger.Info("received signal, shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown", "error", err)
	}
	recv.Shutdown()
	if err := async.Close(); err != nil {
		logger.Error("journal close", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}
