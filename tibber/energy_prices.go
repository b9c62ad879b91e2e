package tibber

import (
	"context"
	"fmt"
	"time"

	"github.com/angas/entsoe-go/hours"
	"github.com/angas/entsoe-go/types"
)

type priceInfo struct {
	StartsAt string  `json:"startsAt"`
	Energy   float64 `json:"energy"`
	Currency string  `json:"currency"`
}

type priceInfoResponse struct {
	CurrentSubscription struct {
		PriceInfo struct {
			Today    []priceInfo `json:"today"`
			Tomorrow []priceInfo `json:"tomorrow"`
		} `json:"priceInfo"`
	} `json:"currentSubscription"`
}

// GetEnergyPrices returns the spot part (energy) of the home's price info.
// Only EUR priced homes are accepted since every sensor reports EUR/kWh.
func (t *Tibber) GetEnergyPrices(ctx context.Context) ([]types.EnergyPrice, error) {
	query := `
		currentSubscription {
			priceInfo {
				today { startsAt energy currency }
				tomorrow { startsAt energy currency }
			}
		}`

	body, err := doQuery[priceInfoResponse](ctx, t, query)
	if err != nil {
		return nil, err
	}

	info := body.Data.Viewer.Home.CurrentSubscription.PriceInfo
	todayAndTomorrow := append(info.Today, info.Tomorrow...)

	prices := make([]types.EnergyPrice, 0, len(todayAndTomorrow))
	for _, price := range todayAndTomorrow {
		if price.Currency != "" && price.Currency != "EUR" {
			return nil, fmt.Errorf("unsupported currency %q", price.Currency)
		}
		startsAt, err := time.Parse(time.RFC3339, price.StartsAt)
		if err != nil {
			return nil, fmt.Errorf("parse startsAt %q: %w", price.StartsAt, err)
		}
		prices = append(prices, types.EnergyPrice{Hour: hours.FromTime(startsAt), Price: price.Energy})
	}

	return prices, nil
}
