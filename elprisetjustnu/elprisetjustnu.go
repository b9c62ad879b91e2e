package elprisetjustnu

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
	_ "time/tzdata"

	"github.com/angas/entsoe-go/hours"
	"github.com/angas/entsoe-go/types"
)

const DefaultBaseURL = "https://www.elprisetjustnu.se"

// Files are named after the Swedish calendar day.
var stockholm = mustLoadLocation("Europe/Stockholm")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

type rawPrice struct {
	SEKPerKWh float64   `json:"SEK_per_kWh"`
	EURPerKWh float64   `json:"EUR_per_kWh"`
	EXR       float64   `json:"EXR"`
	TimeStart time.Time `json:"time_start"`
	TimeEnd   time.Time `json:"time_end"`
}

type ElPrisetJustNu struct {
	area    string
	baseURL string
	client  *http.Client
	now     func() time.Time
}

func New(area string) ElPrisetJustNu {
	return NewWithBaseURL(area, DefaultBaseURL)
}

func NewWithBaseURL(area, baseURL string) ElPrisetJustNu {
	return ElPrisetJustNu{
		area:    area,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		now:     time.Now,
	}
}

func (e ElPrisetJustNu) Name() string {
	return "elprisetjustnu"
}

func (e ElPrisetJustNu) GetEnergyPrices(ctx context.Context) ([]types.EnergyPrice, error) {
	t := e.now().In(stockholm)
	today, err := e.getEnergyPrices(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch prices for today: %w", err)
	}

	tomorrow, err := e.getEnergyPrices(ctx, t.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch prices for tomorrow: %w", err)
	}

	return append(today, tomorrow...), nil
}

func (e ElPrisetJustNu) getEnergyPrices(ctx context.Context, date time.Time) ([]types.EnergyPrice, error) {
	url := fmt.Sprintf("%s/api/v1/prices/%d/%02d-%02d_%s.json",
		e.baseURL, date.Year(), int(date.Month()), date.Day(), e.area)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch prices: %w", err)
	}
	defer resp.Body.Close()

	// Tomorrow's prices are published around 13:00 CET, until then 404.
	if resp.StatusCode == http.StatusNotFound {
		return []types.EnergyPrice{}, nil
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var rawPrices []rawPrice
	if err := json.NewDecoder(resp.Body).Decode(&rawPrices); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	prices := make([]types.EnergyPrice, 0, len(rawPrices))
	for _, raw := range rawPrices {
		prices = append(prices, types.EnergyPrice{
			Hour:  hours.FromTime(raw.TimeStart),
			Price: raw.EURPerKWh,
		})
	}

	return prices, nil
}
