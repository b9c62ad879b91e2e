package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/angas/entsoe-go/database"
	"github.com/angas/entsoe-go/hours"
	"github.com/angas/entsoe-go/metrics"
	"github.com/angas/entsoe-go/types"
)

type PriceStore interface {
	SaveEnergyPrices(ctx context.Context, rows []database.EnergyPriceRow) error
	GetEnergyPrice(ctx context.Context, dh hours.DateHour) (database.EnergyPriceRow, error)
}

// Refresher is a coordinator that reloads its prices from the store.
type Refresher interface {
	Area() string
	Refresh(ctx context.Context) error
}

var ErrNoPrices = errors.New("no energy prices fetched")

func NewEnergyPriceTask(logger *slog.Logger, store PriceStore, providers []types.EnergyPriceProvider, coordinators func() []Refresher) func() {
	if len(providers) == 0 {
		panic("no energy price providers")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if needImmediateEnergyPriceUpdate(ctx, store, time.Now()) {
		logger.Info("need an immediate update of energy prices")
		runEnergyPriceTask(logger, store, providers, coordinators)
	} else {
		logger.Debug("no need for immediate update of energy prices")
	}

	return func() { runEnergyPriceTask(logger, store, providers, coordinators) }
}

func runEnergyPriceTask(logger *slog.Logger, store PriceStore, providers []types.EnergyPriceProvider, coordinators func() []Refresher) {
	logger.Debug("running energy price task...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := updateEnergyPrices(ctx, logger, store, providers)
	if err != nil {
		logger.Error("energy price task error", slog.Any("error", err))
	} else {
		logger.Info("energy price task done", slog.Int("noOfHoursUpdated", n))
	}

	// Coordinators are refreshed even when fetching failed, the day may
	// have changed since their last refresh.
	refreshCoordinators(ctx, logger, coordinators())
}

// updateEnergyPrices fetches prices from the first provider that returns
// any and saves them.
func updateEnergyPrices(ctx context.Context, logger *slog.Logger, store PriceStore, providers []types.EnergyPriceProvider) (int, error) {
	var rows []database.EnergyPriceRow
	for _, provider := range providers {
		prices, err := provider.GetEnergyPrices(ctx)
		if err != nil {
			metrics.EnergyPriceFetch(provider.Name(), metrics.ResultError)
			logger.Warn("fetching energy prices failed", slog.String("provider", provider.Name()), slog.Any("error", err))
			continue
		}
		if len(prices) == 0 {
			metrics.EnergyPriceFetch(provider.Name(), metrics.ResultAbsent)
			logger.Warn("provider returned no energy prices", slog.String("provider", provider.Name()))
			continue
		}

		metrics.EnergyPriceFetch(provider.Name(), metrics.ResultSuccess)
		rows = make([]database.EnergyPriceRow, len(prices))
		for i, ep := range prices {
			logger.Debug("energy price", slog.String("hour", ep.Hour.IsoString()), slog.Float64("price", ep.Price))
			rows[i] = database.EnergyPriceRow{When: ep.Hour, Price: ep.Price, Provider: provider.Name()}
		}
		break
	}

	if len(rows) == 0 {
		return 0, ErrNoPrices
	}

	if err := store.SaveEnergyPrices(ctx, rows); err != nil {
		return 0, fmt.Errorf("saving energy prices: %w", err)
	}
	return len(rows), nil
}

func refreshCoordinators(ctx context.Context, logger *slog.Logger, coordinators []Refresher) {
	for _, c := range coordinators {
		start := time.Now()
		err := c.Refresh(ctx)
		metrics.ObserveCoordinatorRefresh(c.Area(), err, time.Since(start))
		if err != nil {
			logger.Error("coordinator refresh failed", slog.String("area", c.Area()), slog.Any("error", err))
		}
	}
}

// needImmediateEnergyPriceUpdate reports whether the price twelve hours
// ahead is missing.
func needImmediateEnergyPriceUpdate(ctx context.Context, store PriceStore, now time.Time) bool {
	dh := hours.FromTime(now).Add(12)
	if _, err := store.GetEnergyPrice(ctx, dh); err != nil {
		return true
	}
	return false
}
