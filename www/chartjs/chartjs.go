package chartjs

import (
	"math"
	"time"
)

const ColorYellow = "#ffc107d4"
const ColorRed = "#f44336d4"

const PriceAxis = "YAxisPrice"

// NewPriceChart returns a line chart with one hourly slot per label. Days
// with a daylight saving switch get 23 or 25 labels.
func NewPriceChart(title string, midnight time.Time, noOfHours int) Chart {
	labels := make([]string, noOfHours)
	for i := range labels {
		labels[i] = midnight.Add(time.Duration(i) * time.Hour).Format("15:04")
	}

	chart := Chart{
		Type: "line",
		Data: ChartData{
			Labels: labels,
			Datasets: []ChartDataset{
				{
					Label:       "Today",
					Data:        make([]*float64, noOfHours),
					BorderWidth: 1,
					Tension:     0.4,
					Fill:        true,
					BorderColor: ColorYellow,
					YAxisID:     PriceAxis,
				},
				{
					Label:       "Tomorrow",
					Data:        make([]*float64, noOfHours),
					BorderWidth: 1,
					Tension:     0.4,
					Fill:        false,
					BorderColor: ColorRed,
					YAxisID:     PriceAxis,
				},
			},
		},
		Options: ChartOptions{
			Responsive: true,
			Plugins: ChartPlugins{
				Legend: ChartLegend{Display: true},
				Title:  ChartTitle{Display: false},
			},
			Scales: map[string]ChartScale{
				PriceAxis: {
					Type:     "linear",
					Display:  true,
					Position: "left",
					Title:    ChartScaleTitle{Display: true, Text: ""}},
			},
		},
	}

	if title != "" {
		chart.Options.Plugins.Title = ChartTitle{Display: true, Text: title}
	}

	return chart
}

// SetPrices fills dataset i from prices. Hours without a price stay nil so
// the chart shows a gap.
func (c *Chart) SetPrices(i int, prices []float64) {
	data := c.Data.Datasets[i].Data
	for h := range data {
		if h < len(prices) {
			data[h] = FixedFloat64(prices[h], 4)
		}
	}
}

func (c *Chart) SetPriceUnit(unit string) {
	c.Options.Scales[PriceAxis] = c.Options.Scales[PriceAxis].WithTitle(unit)
}

func (cs ChartScale) WithTitle(title string) ChartScale {
	cs.Title.Text = title
	return cs
}

func (cs ChartScale) WithMinAndMax(min, max float64) ChartScale {
	cs.Min = &min
	cs.Max = &max
	return cs
}

func FixedFloat64(num float64, precision int) *float64 {
	p := math.Pow(10, float64(precision))
	rounded := math.Round(num * p)
	result := rounded / p
	return &result
}
