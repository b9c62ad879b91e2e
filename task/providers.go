package task

import (
	"strings"

	"github.com/angas/entsoe-go/config"
	"github.com/angas/entsoe-go/elprisetjustnu"
	"github.com/angas/entsoe-go/nordpool"
	"github.com/angas/entsoe-go/tibber"
	"github.com/angas/entsoe-go/types"
)

// NewEnergyPriceProviders returns the providers for the configured area in
// the order they are tried.
func NewEnergyPriceProviders(cnfg config.AppConfigEnergyPrice) []types.EnergyPriceProvider {
	providers := []types.EnergyPriceProvider{nordpool.New(cnfg.Area)}
	// elprisetjustnu.se only publishes the Swedish bidding zones
	if strings.HasPrefix(strings.ToUpper(cnfg.Area), "SE") {
		providers = append(providers, elprisetjustnu.New(cnfg.Area))
	}
	if cnfg.TibberToken != "" {
		providers = append(providers, tibber.New(cnfg.TibberToken, cnfg.TibberHomeId))
	}
	return providers
}
