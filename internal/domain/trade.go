package domain

// TradeSide is the direction of a trade.
type TradeSide string

// Trade side constants
const (
	TradeBuy  TradeSide = "buy"
	TradeSell TradeSide = "sell"
)

// Trade represents a single simulated order fill.
// Immutable once created. Price is the pre-tick price: trades are
// priced at the price the agent observed, not the post-impact price.
type Trade struct {
	TradeID     string    `json:"trade_id"` // deterministic hash, see internal/idhash
	Side        TradeSide `json:"side"`
	Amount      float64   `json:"amount"` // base-asset units, > 0
	Price       float64   `json:"price"`  // quote per base unit, > 0
	TimestampMs int64     `json:"timestamp_ms"`
	AgentID     string    `json:"agent_id"`
	AgentName   string    `json:"agent_name"`
}

// Notional returns the quote-currency value of the trade.
func (t *Trade) Notional() float64 {
	return t.Amount * t.Price
}
