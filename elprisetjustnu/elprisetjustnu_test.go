package elprisetjustnu

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/angas/entsoe-go/hours"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEnergyPrices(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if r.URL.Path != "/api/v1/prices/2025/01-15_SE3.json" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `[
			{"SEK_per_kWh": 1.1, "EUR_per_kWh": 0.1, "EXR": 11, "time_start": "2025-01-15T00:00:00+01:00", "time_end": "2025-01-15T01:00:00+01:00"},
			{"SEK_per_kWh": 2.2, "EUR_per_kWh": 0.2, "EXR": 11, "time_start": "2025-01-15T01:00:00+01:00", "time_end": "2025-01-15T02:00:00+01:00"}
		]`)
	}))
	defer srv.Close()

	e := NewWithBaseURL("SE3", srv.URL)
	e.now = func() time.Time { return time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC) }

	prices, err := e.GetEnergyPrices(context.Background())
	require.NoError(t, err)
	require.Len(t, prices, 2)
	assert.Equal(t, hours.DateHour{Date: "2025-01-14", Hour: 23}, prices[0].Hour)
	assert.Equal(t, 0.1, prices[0].Price)
	assert.Equal(t, hours.DateHour{Date: "2025-01-15", Hour: 0}, prices[1].Hour)
	assert.Equal(t, []string{"/api/v1/prices/2025/01-15_SE3.json", "/api/v1/prices/2025/01-16_SE3.json"}, paths)
}

func TestGetEnergyPricesUsesSwedishDate(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	e := NewWithBaseURL("SE3", srv.URL)
	// 00:30 on the 16th in Stockholm.
	e.now = func() time.Time { return time.Date(2025, 1, 15, 23, 30, 0, 0, time.UTC) }

	prices, err := e.GetEnergyPrices(context.Background())
	require.NoError(t, err)
	assert.Empty(t, prices)
	assert.Equal(t, []string{"/api/v1/prices/2025/01-16_SE3.json", "/api/v1/prices/2025/01-17_SE3.json"}, paths)
}

func TestGetEnergyPricesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewWithBaseURL("SE3", srv.URL).GetEnergyPrices(context.Background())
	assert.ErrorContains(t, err, "unexpected status code: 502")
}
