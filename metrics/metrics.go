package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	metricPrefix = "entsoe_"

	ResultValue   = "value"
	ResultAbsent  = "absent"
	ResultSuccess = "success"
	ResultError   = "error"
)

var (
	registerOnce sync.Once

	sensorUpdates           *prometheus.CounterVec
	pendingScheduledUpdates prometheus.Gauge
	coordinatorRefreshes    *prometheus.CounterVec
	coordinatorRefreshTime  *prometheus.HistogramVec
	mqttPublishes           *prometheus.CounterVec
	energyPriceFetches      *prometheus.CounterVec
)

// Init registers the metrics with the default registry. Until it is called
// every helper is a no-op.
func Init() {
	registerOnce.Do(func() {
		sensorUpdates = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "sensor_updates_total",
				Help: "Total sensor updates by result",
			},
			[]string{"result"},
		)
		pendingScheduledUpdates = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "pending_scheduled_updates",
				Help: "Scheduled entity updates that have not fired yet",
			},
		)
		coordinatorRefreshes = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "coordinator_refreshes_total",
				Help: "Total coordinator refreshes by result",
			},
			[]string{"area", "result"},
		)
		coordinatorRefreshTime = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "coordinator_refresh_seconds",
				Help:    "Coordinator refresh latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"area"},
		)
		mqttPublishes = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "mqtt_publishes_total",
				Help: "Total MQTT publishes by result",
			},
			[]string{"result"},
		)
		energyPriceFetches = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "energy_price_fetches_total",
				Help: "Total energy price fetches by provider and result",
			},
			[]string{"provider", "result"},
		)

		prometheus.MustRegister(
			sensorUpdates,
			pendingScheduledUpdates,
			coordinatorRefreshes,
			coordinatorRefreshTime,
			mqttPublishes,
			energyPriceFetches,
		)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func SensorUpdate(result string) {
	if sensorUpdates != nil {
		sensorUpdates.WithLabelValues(result).Inc()
	}
}

func SetPendingScheduledUpdates(n int64) {
	if pendingScheduledUpdates != nil {
		pendingScheduledUpdates.Set(float64(n))
	}
}

func ObserveCoordinatorRefresh(area string, err error, duration time.Duration) {
	result := ResultSuccess
	if err != nil {
		result = ResultError
	}
	if coordinatorRefreshes != nil {
		coordinatorRefreshes.WithLabelValues(area, result).Inc()
	}
	if coordinatorRefreshTime != nil {
		coordinatorRefreshTime.WithLabelValues(area).Observe(duration.Seconds())
	}
}

func MqttPublish(result string) {
	if mqttPublishes != nil {
		mqttPublishes.WithLabelValues(result).Inc()
	}
}

func EnergyPriceFetch(provider, result string) {
	if energyPriceFetches != nil {
		energyPriceFetches.WithLabelValues(provider, result).Inc()
	}
}
