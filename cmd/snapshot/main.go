package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/angas/entsoe-go/config"
	"github.com/angas/entsoe-go/database"
	"github.com/angas/entsoe-go/host"
	"github.com/angas/entsoe-go/integration"
	"github.com/angas/entsoe-go/sensor"
	"github.com/lmittmann/tint"
)

// snapshot prints the processed price snapshot of a config entry and the
// state of each of its sensors.
func main() {
	configPath := flag.String("config", "", "path to config file")
	entryID := flag.String("entry", "", "config entry id, default: the first entry")
	flag.Parse()

	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slog.LevelWarn,
		TimeFormat: time.RFC3339,
	})))

	cnfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}
	loc, err := time.LoadLocation(cnfg.EnergyPrice.GetTimezone())
	if err != nil {
		panic(err)
	}

	ctx := context.Background()
	db, err := database.New(ctx, cnfg.Database.Path)
	if err != nil {
		panic(err)
	}
	defer db.Close()

	entries := integration.EntriesFromConfig(cnfg.Entries)
	entry := entries[0]
	for _, e := range entries {
		if e.EntryID == *entryID {
			entry = e
		}
	}

	h := host.New(host.WithTracker(host.NewManualTracker()))
	integ := integration.New(h, db, cnfg.EnergyPrice.Area, loc)
	if err := integ.SetupEntry(ctx, entry); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}

	c, _ := integ.Coordinator(entry.EntryID)
	out := struct {
		EntryID  string         `json:"entry_id"`
		Snapshot map[string]any `json:"snapshot"`
		States   []host.State   `json:"states"`
	}{
		EntryID:  entry.EntryID,
		Snapshot: c.ProcessedData(),
		States:   h.States.All(),
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		panic(err)
	}

	for _, e := range h.Entities(entry.EntryID) {
		s := e.(*sensor.Sensor)
		fmt.Fprintf(os.Stderr, "%-45s %-25s %s\n", e.EntityID(), s.Description().Key, host.FormatState(e.NativeValue()))
	}
}
