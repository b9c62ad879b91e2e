package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/angas/entsoe-go/config"
	"github.com/angas/entsoe-go/database"
	"github.com/angas/entsoe-go/task"
	"github.com/lmittmann/tint"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	logger := slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: time.RFC3339Nano,
	}))
	slog.SetDefault(logger)

	cnfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}
	db, err := database.New(context.Background(), cnfg.Database.Path)
	if err != nil {
		panic(err)
	}
	defer db.Close()

	// No coordinators to refresh, the daemon picks the prices up from the
	// database on its next refresh.
	task.NewEnergyPriceTask(logger, db, task.NewEnergyPriceProviders(cnfg.EnergyPrice), func() []task.Refresher { return nil })()
}
