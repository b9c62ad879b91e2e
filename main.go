package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/angas/entsoe-go/config"
	"github.com/angas/entsoe-go/database"
	"github.com/angas/entsoe-go/hamqtt"
	"github.com/angas/entsoe-go/host"
	"github.com/angas/entsoe-go/integration"
	"github.com/angas/entsoe-go/logging"
	"github.com/angas/entsoe-go/metrics"
	"github.com/angas/entsoe-go/sensor"
	"github.com/angas/entsoe-go/task"
	"github.com/angas/entsoe-go/www"
	"github.com/lmittmann/tint"
)

var Version = "?.?.?"

func main() {
	defer func() {
		if err := recover(); err != nil {
			exitWithError(slog.Default(), fmt.Errorf("application panicked: %v", err))
		} else {
			slog.Default().Info("application is shutting down...")
		}
	}()

	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	loader := config.NewLoader(*configPath)
	cnfg, err := loader.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	loc, err := time.LoadLocation(cnfg.EnergyPrice.GetTimezone())
	if err != nil {
		panic(fmt.Sprintf("failed to load timezone: %v", err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consoleHandler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      cnfg.Logging.GetConsoleLevel(),
		TimeFormat: time.RFC3339,
	})
	slog.New(consoleHandler).Debug("entsoe is starting...", slog.String("version", Version))

	registry, err := host.OpenBoltRegistry(cnfg.Database.GetRegistryPath())
	if err != nil {
		panic(fmt.Sprintf("failed to open entity registry: %v", err))
	}
	defer registry.Close()

	// The registry is archived together with the database.
	db, err := database.New(ctx, cnfg.Database.Path, database.WithBackupSource(registry))
	if err != nil {
		panic(fmt.Sprintf("failed to connect to database: %v", err))
	}
	defer db.Close()

	logger := slog.New(logging.NewMultiHandler(
		consoleHandler,
		logging.NewSQLiteHandler(db, cnfg.Logging.GetDbLevel(), cnfg.Logging.GetDbAttrsFormat())))
	slog.SetDefault(logger)

	// Now we can use the logger to log database operations into the database itself
	db.SetLogger(logger.With("module", "database"))

	metrics.Init()

	h := host.New(host.WithRegistry(registry))
	defer h.Close()
	go h.Run(ctx)

	integ := integration.New(h, db, cnfg.EnergyPrice.Area, loc)
	for _, entry := range integration.EntriesFromConfig(cnfg.Entries) {
		if err := h.Call(ctx, func(ctx context.Context) error { return integ.SetupEntry(ctx, entry) }); err != nil {
			logger.Error("failed to set up config entry", slog.String("entry_id", entry.EntryID), slog.Any("error", err))
		}
	}

	tasks := task.NewTasks(db, task.NewEnergyPriceProviders(cnfg.EnergyPrice), integ.Coordinators, cnfg)
	if isDevMode() {
		logger.Info("dev mode, skipping task scheduling")
	} else {
		tasks.Run()
		defer tasks.Stop()
	}

	if cnfg.Mqtt.Enabled() {
		client := hamqtt.NewClient(
			cnfg.Mqtt.Host,
			cnfg.Mqtt.Port,
			cnfg.Mqtt.Username,
			cnfg.Mqtt.Password,
			cnfg.Mqtt.GetClientId(),
			hamqtt.AvailabilityTopic(cnfg.Mqtt.GetBaseTopic()))
		bridge := hamqtt.NewBridge(client, h.States, cnfg.Mqtt.GetDiscoveryPrefix(), cnfg.Mqtt.GetBaseTopic(), sensor.Domain)
		client.OnConnect(bridge.Resync)
		go bridge.Run(ctx)

		if err := client.Connect(); err != nil {
			logger.Error("MQTT connection error, states are not published", slog.Any("error", err))
		} else {
			defer client.Disconnect()
		}
	} else {
		logger.Info("no MQTT host configured, skipping Home Assistant publishing")
	}

	loader.Watch(func(c *config.AppConfig) {
		logger.Info("config file changed, applying entries")
		entries := integration.EntriesFromConfig(c.Entries)
		h.Post(func(ctx context.Context) {
			if err := integ.ApplyConfig(ctx, entries); err != nil {
				logger.Error("failed to apply config entries", slog.Any("error", err))
			}
		})
	}, func(err error) {
		logger.Warn("ignoring config change", slog.Any("error", err))
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case <-ctx.Done():
			logger.Info("main context done")
		case sig := <-sigCh:
			logger.Info("received signal", slog.Any("signal", sig))
			cancel()
		}
	}()

	reload := func(ctx context.Context, entryID string) error {
		return h.Call(ctx, func(ctx context.Context) error { return integ.ReloadEntry(ctx, entryID) })
	}
	prices := func(entryID string) (www.PriceSource, bool) {
		c, ok := integ.Coordinator(entryID)
		if !ok {
			return nil, false
		}
		return c, true
	}
	server := www.NewServer(h, db, reload, prices, cnfg.Api)
	server.Run(ctx)
}

func isDevMode() bool {
	return strings.EqualFold(os.Getenv("APP_ENV"), "development")
}

func exitWithError(logger *slog.Logger, err error) {
	if err != nil {
		logger.Error("application shutting down with error", slog.Any("error", err))
	}
	if syncer, ok := logger.Handler().(interface{ Sync() error }); ok {
		if syncErr := syncer.Sync(); syncErr != nil {
			logger.Error("failed to flush logger", slog.Any("error", syncErr))
		}
	}

	time.Sleep(2 * time.Second)
	os.Exit(1)
}
