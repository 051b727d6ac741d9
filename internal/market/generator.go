package market

import (
	"math"
	"math/rand"

	"github.com/root-daemon/saveme/internal/domain"
	"github.com/root-daemon/saveme/internal/idhash"
)

// dustThreshold rejects trades too small to matter.
const dustThreshold = 0.1

// RugPullStatus is the scheduler state a generator decision depends on.
type RugPullStatus struct {
	Armed        bool
	Countdown    int // seconds remaining, valid only when HasCountdown
	HasCountdown bool
}

// finalCountdown reports whether the pull fires in under 10 seconds,
// the point where manipulative agents dump instead of pump.
func (s RugPullStatus) finalCountdown() bool {
	return s.Armed && s.HasCountdown && s.Countdown < 10
}

// Generator decides, per agent per tick, whether a trade occurs and how
// large it is. All randomness comes from the injected source so tests
// can seed it.
type Generator struct {
	rng *rand.Rand
	seq uint64 // trade sequence for deterministic IDs
}

// NewGenerator creates a trade generator over the given random source.
func NewGenerator(rng *rand.Rand) *Generator {
	return &Generator{rng: rng}
}

// Propose returns the agent's trade for this tick, or nil if the agent
// sits out. priceDelta is the tick's base random-walk movement; the
// returned trade is priced at currentPrice, the pre-tick price.
//
// Degenerate inputs (non-positive price, aggressiveness outside 0-10)
// yield nil rather than an error: this is a best-effort simulation.
func (g *Generator) Propose(agent *domain.Agent, currentPrice, priceDelta float64, rp RugPullStatus, nowMs int64) *domain.Trade {
	if agent == nil || !agent.Active || currentPrice <= 0 {
		return nil
	}
	if agent.Aggressiveness < 0 || agent.Aggressiveness > 10 {
		return nil
	}

	// Participation gate: aggressiveness 10 always trades, 0 never.
	if g.rng.Float64() > float64(agent.Aggressiveness)/10 {
		return nil
	}

	side, amount := g.decide(agent, currentPrice, priceDelta, rp)

	// Clamp to what the agent can actually afford or deliver.
	if side == domain.TradeBuy {
		amount = math.Min(amount, agent.Balance/currentPrice)
	} else {
		amount = math.Min(amount, agent.Tokens)
	}

	if amount < dustThreshold {
		return nil
	}

	g.seq++
	return &domain.Trade{
		TradeID:     idhash.ComputeTradeID(agent.ID, string(side), nowMs, g.seq),
		Side:        side,
		Amount:      amount,
		Price:       currentPrice,
		TimestampMs: nowMs,
		AgentID:     agent.ID,
		AgentName:   agent.Name,
	}
}

// Synthesize builds a trade with an externally chosen direction and raw
// size, applying the same clamps and dust threshold as Propose. The tick
// driver uses it for minimum-activity filler and post-reset bursts.
func (g *Generator) Synthesize(agent *domain.Agent, side domain.TradeSide, amount, currentPrice float64, nowMs int64) *domain.Trade {
	if agent == nil || currentPrice <= 0 {
		return nil
	}

	if side == domain.TradeBuy {
		amount = math.Min(amount, agent.Balance/currentPrice)
	} else {
		amount = math.Min(amount, agent.Tokens)
	}
	if amount < dustThreshold {
		return nil
	}

	g.seq++
	return &domain.Trade{
		TradeID:     idhash.ComputeTradeID(agent.ID, string(side), nowMs, g.seq),
		Side:        side,
		Amount:      amount,
		Price:       currentPrice,
		TimestampMs: nowMs,
		AgentID:     agent.ID,
		AgentName:   agent.Name,
	}
}

// decide picks direction and raw (unclamped) size per strategy.
func (g *Generator) decide(agent *domain.Agent, currentPrice, priceDelta float64, rp RugPullStatus) (domain.TradeSide, float64) {
	aggr := float64(agent.Aggressiveness)

	switch agent.Strategy {
	case domain.StrategyMomentum:
		// Follow the move: buy rising, sell falling.
		side := domain.TradeSell
		if priceDelta >= 0 {
			side = domain.TradeBuy
		}
		return side, math.Abs(priceDelta) * aggr * (g.rng.Float64()*10 + 5)

	case domain.StrategyContrarian:
		// Fade the move.
		side := domain.TradeBuy
		if priceDelta >= 0 {
			side = domain.TradeSell
		}
		return side, math.Abs(priceDelta) * aggr * (g.rng.Float64()*8 + 3)

	case domain.StrategyRandom:
		side := domain.TradeSell
		if g.rng.Float64() > 0.5 {
			side = domain.TradeBuy
		}
		return side, g.rng.Float64() * aggr * 10

	case domain.StrategyManipulative:
		if rp.finalCountdown() {
			// Dump ~80% of holdings right before the pull fires.
			return domain.TradeSell, agent.Tokens * 0.8 * (g.rng.Float64()*0.2 + 0.8)
		}
		if rp.Armed {
			// Artificial pump while the pull is pending.
			return domain.TradeBuy, (agent.Balance / currentPrice) * 0.1 * (g.rng.Float64()*0.5 + 0.5)
		}
		// Quiet accumulation: 30% buys, 70% small sells.
		if g.rng.Float64() > 0.7 {
			return domain.TradeBuy, (agent.Balance / currentPrice) * 0.05 * (g.rng.Float64()*0.5 + 0.5)
		}
		return domain.TradeSell, agent.Tokens * 0.05 * (g.rng.Float64()*0.5 + 0.5)
	}

	return domain.TradeBuy, 0 // unknown strategy trades nothing
}
