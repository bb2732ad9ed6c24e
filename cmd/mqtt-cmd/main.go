// Package main is the entry point for the MQTT command runner: it runs
// pre-defined commands when receiving MQTT messages on configured topics.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mqtt-tools/mqttbridge/internal/config"
	"github.com/mqtt-tools/mqttbridge/internal/engine"
	"github.com/mqtt-tools/mqttbridge/internal/journal"
	"github.com/mqtt-tools/mqttbridge/internal/receiver"
	"github.com/mqtt-tools/mqttbridge/internal/rules"
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

	commandRules, err := cfg.CompileCommandRules()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if len(commandRules) == 0 {
		return fmt.Errorf("no command rules configured")
	}
	ruleSet := rules.NewRuleSet(nil, commandRules)

	metrics := telemetry.New()

	jrnl, err := journal.Open(context.Background(), cfg.Journal, logger)
	if err != nil {
		return err
	}
	async := journal.NewAsync(jrnl, 256, logger, func() { metrics.JournalErrors.Inc() })

	disp := engine.NewDispatcher(commandRules, engine.DispatcherOptions{
		Journal: async,
		Metrics: metrics,
		Logger:  logger,
	})
	eng := engine.New(ruleSet, engine.Options{
		Dispatcher: disp,
		Journal:    async,
		Metrics:    metrics,
		Logger:     logger,
	})

	recv := receiver.New(receiver.Config{
		Broker:    cfg.MQTT.Broker,
		ClientID:  cfg.MQTT.ClientID,
		Username:  cfg.MQTT.Username,
		Password:  cfg.MQTT.Password,
		Keepalive: time.Duration(cfg.MQTT.Keepalive),
	}, ruleSet.Topics(), eng, metrics, logger)

	connectCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := recv.Start(connectCtx); err != nil {
		logger.Warn("first connection to broker failed, retrying in background", "error", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("received signal, shutting down", "signal", sig.String())

	recv.Shutdown()
	if err := async.Close(); err != nil {
		logger.Error("journal close", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}
