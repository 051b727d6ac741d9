package reporting

import (
	"math"
	"time"

	"github.com/root-daemon/saveme/internal/domain"
	"github.com/root-daemon/saveme/internal/market"
)

// Collector accumulates per-tick observations over a session. The
// simulation's trade log is bounded, so counts are tallied here as
// ticks happen rather than reconstructed from the final snapshot.
type Collector struct {
	sessionID string

	ticks       int
	buyCount    int
	sellCount   int
	totalVolume float64
	openPrice   float64
	peak        float64
	trough      float64
	rugPulls    []RugPullEvent
}

// NewCollector creates a collector for one session.
func NewCollector(sessionID string) *Collector {
	return &Collector{
		sessionID: sessionID,
		trough:    math.MaxFloat64,
	}
}

// ObserveTick records one tick's outcome.
func (c *Collector) ObserveTick(res market.TickResult) {
	if c.ticks == 0 {
		c.openPrice = res.Candle.Open
	}
	c.ticks++
	c.totalVolume += res.Candle.Volume
	c.peak = math.Max(c.peak, res.Candle.High)
	c.trough = math.Min(c.trough, res.Candle.Low)

	for _, t := range res.NewTrades {
		if t.Side == domain.TradeBuy {
			c.buyCount++
		} else {
			c.sellCount++
		}
	}
}

// ObserveRugPull records a rug pull firing at the current tick.
func (c *Collector) ObserveRugPull(source string, priceAtStart float64) {
	c.rugPulls = append(c.rugPulls, RugPullEvent{
		Tick:         c.ticks,
		Source:       source,
		PriceAtStart: priceAtStart,
	})
}

// Build assembles the final report from the collected tallies and the
// simulation's closing snapshot.
func (c *Collector) Build(snap market.Snapshot, now time.Time) *Report {
	trough := c.trough
	if c.ticks == 0 {
		trough = 0
	}

	r := &Report{
		GeneratedAt: now,
		SessionID:   c.sessionID,
		Ticks:       c.ticks,
		Summary: MarketSummary{
			CandleCount: len(snap.Candles),
			OpenPrice:   c.openPrice,
			ClosePrice:  snap.CurrentPrice,
			PeakPrice:   c.peak,
			TroughPrice: trough,
			TotalVolume: c.totalVolume,
			TradeCount:  c.buyCount + c.sellCount,
			BuyCount:    c.buyCount,
			SellCount:   c.sellCount,
		},
		RugPulls: c.rugPulls,
	}

	for _, a := range snap.Agents {
		r.Agents = append(r.Agents, AgentRow{
			ID:             a.ID,
			Name:           a.Name,
			Type:           string(a.Type),
			Strategy:       string(a.Strategy),
			Aggressiveness: a.Aggressiveness,
			Balance:        a.Balance,
			Tokens:         a.Tokens,
			NetWorth:       a.Balance + a.Tokens*snap.CurrentPrice,
		})
	}
	return r
}
