package reporting

import "time"

// Report summarizes one finished simulation session.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	SessionID   string
	Ticks       int

	// Market outcome
	Summary MarketSummary

	// Rug pulls observed during the session, in firing order
	RugPulls []RugPullEvent

	// Final state of every agent
	Agents []AgentRow
}

// MarketSummary contains the session's aggregate price action.
type MarketSummary struct {
	CandleCount int
	OpenPrice   float64 // first live candle's open
	ClosePrice  float64 // last candle's close
	PeakPrice   float64
	TroughPrice float64
	TotalVolume float64
	TradeCount  int
	BuyCount    int
	SellCount   int
}

// RugPullEvent records one rug pull and the price it fired at.
type RugPullEvent struct {
	Tick         int
	Source       string // "manual" or "scheduled"
	PriceAtStart float64
}

// AgentRow represents one agent's final holdings.
type AgentRow struct {
	ID             string
	Name           string
	Type           string
	Strategy       string
	Aggressiveness int
	Balance        float64
	Tokens         float64
	NetWorth       float64 // balance + tokens * final price
}
