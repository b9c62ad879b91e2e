package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/angas/entsoe-go/database"
	"github.com/angas/entsoe-go/hours"
)

type PriceStore interface {
	GetEnergyPricesBetween(ctx context.Context, from, to hours.DateHour) ([]database.EnergyPriceRow, error)
}

type Option func(*Coordinator)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

// Coordinator caches the day-ahead prices of one bidding zone and derives
// the processed snapshot the sensors read from.
type Coordinator struct {
	logger      *slog.Logger
	store       PriceStore
	area        string
	loc         *time.Location
	now         func() time.Time
	mu          sync.RWMutex
	prices      map[hours.DateHour]float64
	lastRefresh time.Time
	listenerMu  sync.Mutex
	listeners   map[int]func()
	nextID      int
}

func New(store PriceStore, area string, loc *time.Location, opts ...Option) *Coordinator {
	c := &Coordinator{
		logger:    slog.Default().With("module", "coordinator", "area", area),
		store:     store,
		area:      area,
		loc:       loc,
		now:       time.Now,
		prices:    make(map[hours.DateHour]float64),
		listeners: make(map[int]func()),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) Area() string {
	return c.area
}

// StartOfToday is local midnight in the bidding zone, the first hour of
// prices_today.
func (c *Coordinator) StartOfToday() time.Time {
	return hours.StartOfDay(c.now(), c.loc)
}

// Refresh reloads today's and tomorrow's prices from the store and notifies
// listeners.
func (c *Coordinator) Refresh(ctx context.Context) error {
	midnight := hours.StartOfDay(c.now(), c.loc)
	from := hours.FromTime(midnight)
	to := hours.FromTime(midnight.AddDate(0, 0, 2))

	rows, err := c.store.GetEnergyPricesBetween(ctx, from, to)
	if err != nil {
		return fmt.Errorf("refresh prices %s..%s: %w", from, to, err)
	}

	prices := make(map[hours.DateHour]float64, len(rows))
	for _, r := range rows {
		prices[r.When] = r.Price
	}

	c.mu.Lock()
	c.prices = prices
	c.lastRefresh = c.now()
	c.mu.Unlock()

	c.logger.Debug("prices refreshed", slog.Int("hours", len(prices)))
	c.notify()
	return nil
}

// AddListener registers fn to be called after every refresh.
func (c *Coordinator) AddListener(fn func()) (remove func()) {
	c.listenerMu.Lock()
	defer c.listenerMu.Unlock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	return func() {
		c.listenerMu.Lock()
		defer c.listenerMu.Unlock()
		delete(c.listeners, id)
	}
}

func (c *Coordinator) notify() {
	c.listenerMu.Lock()
	ids := slices.Sorted(maps.Keys(c.listeners))
	fns := make([]func(), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, c.listeners[id])
	}
	c.listenerMu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// ProcessedData builds the snapshot for the current moment. Prices that are
// not known yet are left out: price lists end at the first missing hour and
// aggregates are nil when today has no prices at all.
func (c *Coordinator) ProcessedData() Snapshot {
	now := c.now()
	midnight := hours.StartOfDay(now, c.loc)
	tomorrowMidnight := midnight.AddDate(0, 0, 1)
	dayAfter := midnight.AddDate(0, 0, 2)

	c.mu.RLock()
	today := c.series(midnight, tomorrowMidnight)
	tomorrow := c.series(tomorrowMidnight, dayAfter)
	lastRefresh := c.lastRefresh
	c.mu.RUnlock()

	all := slices.Clone(today)
	if len(today) == hours.HoursSince(midnight, tomorrowMidnight) {
		all = append(all, tomorrow...)
	}

	s := Snapshot{
		FieldArea:              c.area,
		FieldCurrentHour:       hours.HoursSince(midnight, now),
		FieldMinPrice:          nil,
		FieldMaxPrice:          nil,
		FieldAvgPrice:          nil,
		FieldTimeMin:           nil,
		FieldTimeMax:           nil,
		FieldPricesToday:       today,
		FieldPricesTomorrow:    tomorrow,
		FieldPrices:            all,
		FieldPricesTimestamped: timestamped(midnight, all, c.loc),
		FieldLastRefresh:       nil,
	}
	if !lastRefresh.IsZero() {
		s[FieldLastRefresh] = lastRefresh.UTC().Format(time.RFC3339)
	}

	if len(today) > 0 {
		minIdx, maxIdx, sum := 0, 0, 0.0
		for i, p := range today {
			if p < today[minIdx] {
				minIdx = i
			}
			if p > today[maxIdx] {
				maxIdx = i
			}
			sum += p
		}
		s[FieldMinPrice] = today[minIdx]
		s[FieldMaxPrice] = today[maxIdx]
		s[FieldAvgPrice] = sum / float64(len(today))
		s[FieldTimeMin] = midnight.Add(time.Duration(minIdx) * time.Hour).In(c.loc)
		s[FieldTimeMax] = midnight.Add(time.Duration(maxIdx) * time.Hour).In(c.loc)
	}

	return s
}

// series returns the contiguous prices from start up to end. Must be called
// with c.mu held.
func (c *Coordinator) series(start, end time.Time) []float64 {
	prices := make([]float64, 0, 25)
	for t := start; t.Before(end); t = t.Add(time.Hour) {
		p, ok := c.prices[hours.FromTime(t)]
		if !ok {
			break
		}
		prices = append(prices, p)
	}
	return prices
}

func timestamped(start time.Time, prices []float64, loc *time.Location) []map[string]any {
	out := make([]map[string]any, 0, len(prices))
	for i, p := range prices {
		out = append(out, map[string]any{
			"time":  start.Add(time.Duration(i) * time.Hour).In(loc).Format(time.RFC3339),
			"price": p,
		})
	}
	return out
}
