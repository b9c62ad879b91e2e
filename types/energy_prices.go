package types

import (
	"context"

	"github.com/angas/entsoe-go/hours"
)

type EnergyPrice struct {
	Hour  hours.DateHour
	Price float64 // Day-ahead price in EUR per kWh excluding VAT
}

type EnergyPriceProvider interface {
	Name() string
	GetEnergyPrices(ctx context.Context) ([]EnergyPrice, error)
}
