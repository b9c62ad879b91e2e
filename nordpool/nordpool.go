package nordpool

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"slices"
	"time"

	"github.com/angas/entsoe-go/hours"
	"github.com/angas/entsoe-go/types"
)

const DefaultBaseURL = "https://dataportal-api.nordpoolgroup.com"

type Nordpool struct {
	area    string
	baseURL string
	client  *http.Client
	now     func() time.Time
}

func New(area string) Nordpool {
	return NewWithBaseURL(area, DefaultBaseURL)
}

func NewWithBaseURL(area, baseURL string) Nordpool {
	return Nordpool{
		area:    area,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		now:     time.Now,
	}
}

func (n Nordpool) Name() string {
	return "nordpool"
}

func (n Nordpool) GetEnergyPrices(ctx context.Context) ([]types.EnergyPrice, error) {
	t := n.now()
	today, err := n.getEnergyPrices(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch prices from nordpool for today: %w", err)
	}

	tomorrow, err := n.getEnergyPrices(ctx, t.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch prices from nordpool for tomorrow: %w", err)
	}

	return append(today, tomorrow...), nil
}

func (n Nordpool) getEnergyPrices(ctx context.Context, date time.Time) ([]types.EnergyPrice, error) {
	url := fmt.Sprintf("%s/api/DayAheadPrices?date=%s&market=DayAhead&deliveryArea=%s&currency=EUR",
		n.baseURL,
		date.Format("2006-01-02"),
		n.area)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch prices: %w", err)
	}
	defer resp.Body.Close()

	// No content until the auction for that day is published.
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNoContent {
		return []types.EnergyPrice{}, nil
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var data nordpoolData
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	prices := make([]types.EnergyPrice, 0, len(data.MultiAreaEntries))
	for _, entry := range data.MultiAreaEntries {
		hour := hours.FromTime(entry.DeliveryStart)
		if slices.ContainsFunc(prices, func(p types.EnergyPrice) bool { return p.Hour == hour }) {
			continue
		}
		price, ok := entry.EntryPerArea[n.area]
		if ok {
			prices = append(prices, types.EnergyPrice{
				Hour:  hour,
				Price: normalizePrice(price),
			})
		}
	}

	return prices, nil
}

// normalizePrice converts EUR/MWh into EUR/kWh with four decimals.
func normalizePrice(price float64) float64 {
	precision := math.Pow(10, float64(4))
	return math.Round(price*precision/1e3) / precision
}
