package www

import (
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"slices"
	"time"

	"github.com/angas/entsoe-go/coordinator"
	"github.com/angas/entsoe-go/hours"
	"github.com/angas/entsoe-go/sensor"
	"github.com/angas/entsoe-go/www/chartjs"
	"github.com/go-chi/chi/v5"
)

// PriceSource is the part of a coordinator the chart endpoint reads.
type PriceSource interface {
	Area() string
	StartOfToday() time.Time
	ProcessedData() coordinator.Snapshot
}

// PriceSourceFunc looks up the coordinator of a loaded config entry.
type PriceSourceFunc func(entryID string) (PriceSource, bool)

func NewChartHandler(logger *slog.Logger, lookup PriceSourceFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entryID := chi.URLParam(r, "entryID")
		src, ok := lookup(entryID)
		if !ok {
			writeError(w, http.StatusNotFound, fmt.Errorf("entry %s not loaded", entryID))
			return
		}

		data := src.ProcessedData()
		today, err := data.Floats(coordinator.FieldPricesToday)
		if err != nil {
			logger.Error("handling chart request", slog.String("entry_id", entryID), slog.Any("error", err))
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		tomorrow, err := data.Floats(coordinator.FieldPricesTomorrow)
		if err != nil {
			logger.Error("handling chart request", slog.String("entry_id", entryID), slog.Any("error", err))
			writeError(w, http.StatusInternalServerError, err)
			return
		}

		midnight := src.StartOfToday()
		noOfHours := max(hours.HoursSince(midnight, midnight.AddDate(0, 0, 1)), len(tomorrow))

		chart := chartjs.NewPriceChart(fmt.Sprintf("Day-ahead prices %s", src.Area()), midnight, noOfHours)
		chart.SetPrices(0, today)
		chart.SetPrices(1, tomorrow)
		chart.SetPriceUnit(sensor.UnitPrice)

		all := append(slices.Clone(today), tomorrow...)
		if len(all) > 0 {
			// Negative prices happen, keep zero on the axis either way.
			lo := math.Floor(min(slices.Min(all), 0)*10) / 10
			hi := math.Ceil(max(slices.Max(all), 0)*10) / 10
			chart.Options.Scales[chartjs.PriceAxis] = chart.Options.Scales[chartjs.PriceAxis].WithMinAndMax(lo, hi)
		}

		writeJSON(w, http.StatusOK, chart)
	}
}
