package nordpool

import "time"

type nordpoolData struct {
	DeliveryDateCET  string            `json:"deliveryDateCET"`
	Version          int               `json:"version"`
	UpdatedAt        time.Time         `json:"updatedAt"`
	DeliveryAreas    []string          `json:"deliveryAreas"`
	Market           string            `json:"market"`
	MultiAreaEntries []multiAreaEntry  `json:"multiAreaEntries"`
	Currency         string            `json:"currency"`
	AreaStates       []areaState       `json:"areaStates"`
	AreaAverages     []areaAverageItem `json:"areaAverages"`
}

type multiAreaEntry struct {
	DeliveryStart time.Time          `json:"deliveryStart"`
	DeliveryEnd   time.Time          `json:"deliveryEnd"`
	EntryPerArea  map[string]float64 `json:"entryPerArea"`
}

type areaState struct {
	State string   `json:"state"`
	Areas []string `json:"areas"`
}

type areaAverageItem struct {
	AreaCode string  `json:"areaCode"`
	Price    float64 `json:"price"`
}
