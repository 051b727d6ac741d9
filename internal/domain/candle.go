package domain

import "time"

// Candle is one simulated trading day of price action.
// Invariants: Low <= min(Open, Close), High >= max(Open, Close),
// all prices > 0.
type Candle struct {
	Date   time.Time `json:"date"` // trading day, UTC midnight, never Sat/Sun
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"` // sum of trade amounts that tick, or a noise floor
}
