package domain

// Quote is a real-world price reference for one symbol.
type Quote struct {
	ID               int     `json:"id"`
	Symbol           string  `json:"symbol"`
	Name             string  `json:"name"`
	PriceUSD         float64 `json:"price"`
	PercentChange24h float64 `json:"percent_change_24h"`
}
