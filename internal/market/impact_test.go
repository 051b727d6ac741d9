package market

import (
	"math"
	"math/rand"
	"testing"

	"github.com/root-daemon/saveme/internal/domain"
)

func buyTrade(notional float64) *domain.Trade {
	return &domain.Trade{Side: domain.TradeBuy, Amount: notional, Price: 1}
}

func sellTrade(notional float64) *domain.Trade {
	return &domain.Trade{Side: domain.TradeSell, Amount: notional, Price: 1}
}

func TestComputeImpact_EmptyTradesNoiseBand(t *testing.T) {
	for seed := int64(0); seed < 500; seed++ {
		rng := rand.New(rand.NewSource(seed))
		impact := ComputeImpact(nil, 100, false, rng)
		if math.Abs(impact) > 0.000015 {
			t.Fatalf("Seed %d: empty-tick impact %g outside noise band", seed, impact)
		}
	}
}

func TestComputeImpact_SignFollowsNetVolume(t *testing.T) {
	for seed := int64(0); seed < 200; seed++ {
		rng := rand.New(rand.NewSource(seed))

		up := ComputeImpact([]*domain.Trade{buyTrade(500)}, 1, false, rng)
		if up <= 0 {
			t.Fatalf("Seed %d: net buying produced impact %g", seed, up)
		}

		down := ComputeImpact([]*domain.Trade{sellTrade(500)}, 1, false, rng)
		if down >= 0 {
			t.Fatalf("Seed %d: net selling produced impact %g", seed, down)
		}
	}
}

func TestComputeImpact_BalancedFlowNearZero(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	trades := []*domain.Trade{buyTrade(500), sellTrade(500)}

	if impact := ComputeImpact(trades, 1, false, rng); impact != 0 {
		t.Errorf("Balanced flow should have zero impact, got %g", impact)
	}
}

func TestComputeImpact_SaturatesOnLargeVolume(t *testing.T) {
	// The impact curve approaches a hard asymptote: multiplier * price * 0.1,
	// plus at most 15% noise. No volume may exceed it.
	const price = 1.0
	bound := 0.0002 * price * 0.1 * 1.15

	rng := rand.New(rand.NewSource(13))
	for _, notional := range []float64{1e3, 1e6, 1e9, 1e12} {
		impact := ComputeImpact([]*domain.Trade{buyTrade(notional)}, price, false, rng)
		if impact > bound {
			t.Errorf("Notional %g: impact %g exceeds asymptote %g", notional, impact, bound)
		}
	}
}

func TestComputeImpact_SublinearInVolume(t *testing.T) {
	// 1000x the one-sided volume must move the price far less than 1000x.
	rng := rand.New(rand.NewSource(21))

	small := math.Abs(ComputeImpact([]*domain.Trade{buyTrade(100)}, 1, false, rng))
	large := math.Abs(ComputeImpact([]*domain.Trade{buyTrade(100_000)}, 1, false, rng))

	if ratio := large / small; ratio > 150 {
		t.Errorf("Impact ratio %f for 1000x volume, expected heavy saturation", ratio)
	}
}

func TestComputeImpact_ArmedAmplifiesSaturatedFlow(t *testing.T) {
	// At saturation the armed multiplier dominates the deeper book.
	trades := []*domain.Trade{buyTrade(1e9)}

	calm := ComputeImpact(trades, 1, false, rand.New(rand.NewSource(5)))
	armed := ComputeImpact(trades, 1, true, rand.New(rand.NewSource(5)))

	if armed <= calm {
		t.Errorf("Armed impact %g should exceed calm impact %g on saturated flow", armed, calm)
	}
}
