package nordpool

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
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/DayAheadPrices", r.URL.Path)
		assert.Equal(t, "NL", r.URL.Query().Get("deliveryArea"))
		assert.Equal(t, "EUR", r.URL.Query().Get("currency"))
		if r.URL.Query().Get("date") != "2025-01-15" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		// Quarter hour entries collapse into the first entry of each hour.
		fmt.Fprint(w, `{"multiAreaEntries": [
			{"deliveryStart": "2025-01-15T00:00:00Z", "entryPerArea": {"NL": 85.123}},
			{"deliveryStart": "2025-01-15T00:15:00Z", "entryPerArea": {"NL": 99.9}},
			{"deliveryStart": "2025-01-15T01:00:00Z", "entryPerArea": {"NL": -4.2}},
			{"deliveryStart": "2025-01-15T02:00:00Z", "entryPerArea": {"BE": 10}}
		]}`)
	}))
	defer srv.Close()

	n := NewWithBaseURL("NL", srv.URL)
	n.now = func() time.Time { return time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC) }

	prices, err := n.GetEnergyPrices(context.Background())
	require.NoError(t, err)
	require.Len(t, prices, 2)
	assert.Equal(t, hours.DateHour{Date: "2025-01-15", Hour: 0}, prices[0].Hour)
	assert.Equal(t, 0.0851, prices[0].Price)
	assert.Equal(t, -0.0042, prices[1].Price)
}

func TestNormalizePrice(t *testing.T) {
	assert.Equal(t, 0.1, normalizePrice(100))
	assert.Equal(t, 0.1235, normalizePrice(123.456))
}
