package www

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/angas/entsoe-go/config"
	"github.com/angas/entsoe-go/coordinator"
	"github.com/angas/entsoe-go/database"
	"github.com/angas/entsoe-go/host"
	"github.com/angas/entsoe-go/www/chartjs"
	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLogs struct {
	rows     []database.LogEntryRow
	minLevel slog.Level
	page     int
	pageSize int
}

func (f *fakeLogs) GetLogEntries(_ context.Context, minLvl slog.Level, page, pageSize int) ([]database.LogEntryRow, error) {
	f.minLevel, f.page, f.pageSize = minLvl, page, pageSize
	return f.rows, nil
}

var now = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, reload ReloadFunc) (*Server, *host.Host, *fakeLogs) {
	t.Helper()
	h := host.New(host.WithTracker(host.NewManualTracker()), host.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	h.States.Set("sensor.current_price", "0.23", map[string]any{"friendly_name": "Current electricity market price"}, now)
	h.States.Set("sensor.min_price", "0.1", nil, now)
	_, err := h.Registry.Register(host.RegistryEntry{UniqueID: "sensor.current_price", EntityID: "sensor.current_price", ConfigEntryID: "e1", ModifiedAt: now})
	require.NoError(t, err)

	logs := &fakeLogs{rows: []database.LogEntryRow{{Timestamp: now, Level: int(slog.LevelWarn), Message: "provider failed", Attrs: `[{"provider":"nordpool"}]`}}}
	if reload == nil {
		reload = func(context.Context, string) error { return nil }
	}
	prices := func(entryID string) (PriceSource, bool) {
		if entryID != "e1" {
			return nil, false
		}
		return fakePrices{}, true
	}
	return NewServer(h, logs, reload, prices, config.AppConfigApi{Port: 8080}), h, logs
}

type fakePrices struct{}

func (fakePrices) Area() string { return "NL" }

func (fakePrices) StartOfToday() time.Time {
	return time.Date(2025, 3, 9, 23, 0, 0, 0, time.UTC)
}

func (fakePrices) ProcessedData() coordinator.Snapshot {
	return coordinator.Snapshot{
		coordinator.FieldPricesToday:    []float64{0.12344, -0.05, 0.31},
		coordinator.FieldPricesTomorrow: []float64{},
	}
}

func get(t *testing.T, s *Server, url string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
	return rec
}

func TestStatesHandlers(t *testing.T) {
	s, _, _ := newTestServer(t, nil)

	rec := get(t, s, "/api/states")
	require.Equal(t, http.StatusOK, rec.Code)
	var states []host.State
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &states))
	require.Len(t, states, 2)
	assert.Equal(t, "sensor.current_price", states[0].EntityID)

	rec = get(t, s, "/api/states/sensor.current_price")
	require.Equal(t, http.StatusOK, rec.Code)
	var state host.State
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Equal(t, "0.23", state.State)
	assert.Equal(t, "Current electricity market price", state.Attributes["friendly_name"])

	rec = get(t, s, "/api/states/sensor.nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "sensor.nope")
}

func TestRegistryHandler(t *testing.T) {
	s, _, _ := newTestServer(t, nil)

	rec := get(t, s, "/api/registry")
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []host.RegistryEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "e1", entries[0].ConfigEntryID)
}

func TestReloadHandler(t *testing.T) {
	var reloaded []string
	s, _, _ := newTestServer(t, func(_ context.Context, entryID string) error {
		reloaded = append(reloaded, entryID)
		if entryID == "bad" {
			return errors.New("unknown entry")
		}
		return nil
	})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/entries/e1/reload", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/entries/bad/reload", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown entry")

	assert.Equal(t, []string{"e1", "bad"}, reloaded)

	rec = get(t, s, "/api/entries/e1/reload")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestChartHandler(t *testing.T) {
	s, _, _ := newTestServer(t, nil)

	rec := get(t, s, "/api/entries/e1/chart")
	require.Equal(t, http.StatusOK, rec.Code)
	var chart chartjs.Chart
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &chart))

	require.Len(t, chart.Data.Labels, 24)
	assert.Equal(t, "23:00", chart.Data.Labels[0])
	assert.Equal(t, "Day-ahead prices NL", chart.Options.Plugins.Title.Text)

	today := chart.Data.Datasets[0].Data
	require.NotNil(t, today[0])
	assert.InDelta(t, 0.1234, *today[0], 1e-9)
	assert.InDelta(t, -0.05, *today[1], 1e-9)
	assert.Nil(t, today[3], "hours without a price are gaps")
	assert.Nil(t, chart.Data.Datasets[1].Data[0])

	scale := chart.Options.Scales[chartjs.PriceAxis]
	assert.Equal(t, "€/kWh", scale.Title.Text)
	require.NotNil(t, scale.Min)
	assert.InDelta(t, -0.1, *scale.Min, 1e-9)
	assert.InDelta(t, 0.4, *scale.Max, 1e-9)

	rec = get(t, s, "/api/entries/e2/chart")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLogHandler(t *testing.T) {
	s, _, logs := newTestServer(t, nil)

	rec := get(t, s, "/api/log?page=2&pageSize=10&level=warn")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, slog.LevelWarn, logs.minLevel)
	assert.Equal(t, 2, logs.page)
	assert.Equal(t, 10, logs.pageSize)

	var page logPage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Entries, 1)
	assert.Equal(t, "WARN", page.Entries[0].Level)
	assert.Equal(t, "provider failed", page.Entries[0].Message)

	get(t, s, "/api/log?page=-3&pageSize=100000")
	assert.Equal(t, slog.LevelDebug, logs.minLevel)
	assert.Equal(t, 1, logs.page)
	assert.Equal(t, 500, logs.pageSize)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _, _ := newTestServer(t, nil)
	rec := get(t, s, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebSocketStreamsStateChanges(t *testing.T) {
	s, h, _ := newTestServer(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	go s.hub.Run(ctx.Done())
	unsubscribe := h.States.Subscribe(func(ev host.StateChangedEvent) {
		payload, _ := json.Marshal(stateChange{EntityID: ev.EntityID, OldState: ev.Old, NewState: ev.New})
		s.hub.Broadcast <- stateMessage{entityID: ev.EntityID, payload: payload}
	})
	defer unsubscribe()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?prefix=sensor.current"
	conn, _, err := ws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return s.hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	h.States.Set("sensor.min_price", "0.09", nil, now)
	h.States.Set("sensor.current_price", "0.24", nil, now)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var change stateChange
	require.NoError(t, json.Unmarshal(msg, &change))
	assert.Equal(t, "sensor.current_price", change.EntityID, "filtered by prefix")
	require.NotNil(t, change.NewState)
	assert.Equal(t, "0.24", change.NewState.State)
	require.NotNil(t, change.OldState)
	assert.Equal(t, "0.23", change.OldState.State)
}
