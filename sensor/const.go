package sensor

import (
	"errors"

	"github.com/angas/entsoe-go/convert"
	"github.com/angas/entsoe-go/coordinator"
)

const (
	Domain          = "entsoe"
	ConfCoordinator = "coordinator"
	ConfEntityName  = "name"

	Attribution = "Data provided by ENTSO-e Transparency Platform"
	Icon        = "mdi:currency-eur"

	UnitPrice      = "€/kWh"
	UnitPercentage = "%"
)

var ErrDivisionByZero = errors.New("division by zero")

// EntityDescription describes one price sensor.
type EntityDescription struct {
	Key                     string
	Name                    string
	NativeUnitOfMeasurement string
	DeviceClass             string
	StateClass              string
	// ValueFn extracts the sensor value from a snapshot. Errors for which
	// coordinator.IsNoData is true mean there is no value yet.
	ValueFn func(coordinator.Snapshot) (any, error)
}

// SensorTypes are the sensors created for every config entry.
var SensorTypes = []EntityDescription{
	{
		Key:                     "current_price",
		Name:                    "Current electricity market price",
		NativeUnitOfMeasurement: UnitPrice,
		StateClass:              "measurement",
		ValueFn:                 currentPrice,
	},
	{
		Key:                     "next_hour_price",
		Name:                    "Next hour electricity market price",
		NativeUnitOfMeasurement: UnitPrice,
		StateClass:              "measurement",
		ValueFn: func(s coordinator.Snapshot) (any, error) {
			hour, err := s.Int(coordinator.FieldCurrentHour)
			if err != nil {
				return nil, err
			}
			return s.PriceAt(coordinator.FieldPrices, hour+1)
		},
	},
	{
		Key:                     "min_price",
		Name:                    "Lowest energy price today",
		NativeUnitOfMeasurement: UnitPrice,
		ValueFn:                 floatField(coordinator.FieldMinPrice),
	},
	{
		Key:                     "max_price",
		Name:                    "Highest energy price today",
		NativeUnitOfMeasurement: UnitPrice,
		ValueFn:                 floatField(coordinator.FieldMaxPrice),
	},
	{
		Key:                     "avg_price",
		Name:                    "Average electricity price today",
		NativeUnitOfMeasurement: UnitPrice,
		ValueFn:                 floatField(coordinator.FieldAvgPrice),
	},
	{
		Key:                     "percentage_of_max",
		Name:                    "Current percentage of highest electricity price today",
		NativeUnitOfMeasurement: UnitPercentage,
		StateClass:              "measurement",
		ValueFn: func(s coordinator.Snapshot) (any, error) {
			current, err := currentPrice(s)
			if err != nil {
				return nil, err
			}
			highest, err := s.Float(coordinator.FieldMaxPrice)
			if err != nil {
				return nil, err
			}
			if highest == 0 {
				return nil, ErrDivisionByZero
			}
			return convert.Percentage(current.(float64), highest), nil
		},
	},
	{
		Key:         "highest_price_time_today",
		Name:        "Time of highest price today",
		DeviceClass: "timestamp",
		ValueFn:     timeField(coordinator.FieldTimeMax),
	},
	{
		Key:         "lowest_price_time_today",
		Name:        "Time of lowest price today",
		DeviceClass: "timestamp",
		ValueFn:     timeField(coordinator.FieldTimeMin),
	},
}

func currentPrice(s coordinator.Snapshot) (any, error) {
	hour, err := s.Int(coordinator.FieldCurrentHour)
	if err != nil {
		return nil, err
	}
	return s.PriceAt(coordinator.FieldPricesToday, hour)
}

func floatField(key string) func(coordinator.Snapshot) (any, error) {
	return func(s coordinator.Snapshot) (any, error) {
		return s.Float(key)
	}
}

func timeField(key string) func(coordinator.Snapshot) (any, error) {
	return func(s coordinator.Snapshot) (any, error) {
		return s.Time(key)
	}
}
