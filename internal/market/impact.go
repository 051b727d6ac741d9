package market

import (
	"math"
	"math/rand"

	"github.com/root-daemon/saveme/internal/domain"
)

// ComputeImpact turns a tick's trade set into a signed price delta.
//
// The model is deliberately saturating: impact = net / (liquidity + |net|)
// approaches ±1 asymptotically, so large one-sided volume cannot move the
// price unboundedly in a single tick. Liquidity depth rises when a pull is
// armed (the manipulator is propping the book) and the impact multiplier
// rises with it, producing sharper moves on the same flow.
//
// With no trades at all the tick still drifts by small symmetric noise.
func ComputeImpact(trades []*domain.Trade, currentPrice float64, armed bool, rng *rand.Rand) float64 {
	if len(trades) == 0 {
		return (rng.Float64() - 0.5) * 0.00003
	}

	var buyVolume, sellVolume float64
	for _, t := range trades {
		if t.Side == domain.TradeBuy {
			buyVolume += t.Notional()
		} else {
			sellVolume += t.Notional()
		}
	}
	netVolume := buyVolume - sellVolume

	depth := 8000.0
	multiplier := 0.0002
	if armed {
		depth = 10000.0
		multiplier = 0.0005
	}

	liquidity := currentPrice * depth
	impact := netVolume / (liquidity + math.Abs(netVolume))
	scaled := impact * multiplier * currentPrice * 0.1

	noise := (rng.Float64() - 0.5) * 0.3 * math.Abs(scaled)
	return scaled + noise
}
