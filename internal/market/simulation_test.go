package market

import (
	"math/rand"
	"testing"
	"time"

	"github.com/root-daemon/saveme/internal/domain"
)

// fixedClock is a Wednesday so seed history lands on recent weekdays.
var fixedClock = time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)

func newTestSimulation(seed int64) *Simulation {
	cfg := DefaultConfig(100)
	cfg.AutoRugPull = false
	cfg.Rand = rand.New(rand.NewSource(seed))
	cfg.Now = func() time.Time { return fixedClock }
	return New(cfg)
}

func checkCandle(t *testing.T, c domain.Candle, i int) {
	t.Helper()
	if c.Low <= 0 {
		t.Fatalf("Candle %d: low %g not positive", i, c.Low)
	}
	body := c.Open
	if c.Close < body {
		body = c.Close
	}
	if c.Low > body+1e-9 {
		t.Fatalf("Candle %d: low %g above body %g", i, c.Low, body)
	}
	top := c.Open
	if c.Close > top {
		top = c.Close
	}
	if c.High < top-1e-9 {
		t.Fatalf("Candle %d: high %g below body %g", i, c.High, top)
	}
	wd := c.Date.Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		t.Fatalf("Candle %d dated on a weekend: %s", i, c.Date)
	}
}

func TestSimulation_SeedHistory(t *testing.T) {
	s := newTestSimulation(1)
	snap := s.Start(nil)

	if len(snap.Candles) != 130 {
		t.Fatalf("Seed history has %d candles, want 130", len(snap.Candles))
	}
	for i, c := range snap.Candles {
		checkCandle(t, c, i)
		if i > 0 && !c.Date.After(snap.Candles[i-1].Date) {
			t.Fatalf("Candle %d date %s not after previous %s", i, c.Date, snap.Candles[i-1].Date)
		}
	}
	if snap.CurrentPrice != snap.Candles[len(snap.Candles)-1].Close {
		t.Error("Current price does not match last seed close")
	}
	if snap.Phase != domain.RugPullIdle {
		t.Errorf("Fresh simulation phase %s, want idle", snap.Phase)
	}
}

func TestSimulation_TickIntegrity(t *testing.T) {
	s := newTestSimulation(2)
	s.Start(nil)

	prevClose := s.Snapshot().CurrentPrice
	for i := 0; i < 200; i++ {
		res := s.Tick()

		if res.Candle.Open != prevClose {
			t.Fatalf("Tick %d: open %g does not continue previous close %g", i, res.Candle.Open, prevClose)
		}
		if res.NewPrice < priceFloor {
			t.Fatalf("Tick %d: price %g below floor", i, res.NewPrice)
		}
		checkCandle(t, res.Candle, i)
		prevClose = res.NewPrice
	}

	snap := s.Snapshot()
	// 130 seeded + 200 live fits inside the 365-candle window.
	if len(snap.Candles) != 330 {
		t.Errorf("Candle count %d after 200 ticks, want 330", len(snap.Candles))
	}
	if len(snap.Trades) > 100 {
		t.Errorf("Trade log grew to %d, cap is 100", len(snap.Trades))
	}
	for _, a := range snap.Agents {
		if a.Balance < 0 || a.Tokens < 0 {
			t.Errorf("Agent %s holds negative position: balance=%g tokens=%g", a.ID, a.Balance, a.Tokens)
		}
	}
}

func TestSimulation_CandleWindowBounded(t *testing.T) {
	cfg := DefaultConfig(100)
	cfg.AutoRugPull = false
	cfg.MaxCandles = 50
	cfg.SeedHistoryDays = 40
	cfg.Rand = rand.New(rand.NewSource(3))
	cfg.Now = func() time.Time { return fixedClock }
	s := New(cfg)
	s.Start(nil)

	for i := 0; i < 100; i++ {
		s.Tick()
	}
	if got := len(s.Snapshot().Candles); got != 50 {
		t.Errorf("Candle window %d, want 50", got)
	}
}

func TestSimulation_TriggerRugPull(t *testing.T) {
	s := newTestSimulation(4)
	s.Start(nil)
	triggerPrice := s.Snapshot().CurrentPrice

	if !s.TriggerRugPull() {
		t.Fatal("Trigger refused on idle simulation")
	}
	if s.TriggerRugPull() {
		t.Error("Second trigger accepted while sequence runs")
	}

	// Whales and the manipulator turn predatory at trigger time.
	for _, a := range s.Snapshot().Agents {
		if a.Type == domain.AgentTypeWhale || a.Type == domain.AgentTypeManipulator {
			if a.Strategy != domain.StrategyManipulative || a.Aggressiveness != 10 {
				t.Errorf("Agent %s not shifted: strategy=%s aggr=%d", a.ID, a.Strategy, a.Aggressiveness)
			}
		}
	}

	var last TickResult
	for i := 0; i < domain.SequenceStages; i++ {
		last = s.Tick()
	}
	if last.Phase != domain.RugPullComplete {
		t.Fatalf("Phase after %d scripted ticks is %s, want complete", domain.SequenceStages, last.Phase)
	}
	if last.NewPrice >= triggerPrice {
		t.Errorf("Price %g after collapse not below trigger price %g", last.NewPrice, triggerPrice)
	}

	// The reset reactivates everyone with sane parameters.
	for _, a := range s.Snapshot().Agents {
		if !a.Active {
			t.Errorf("Agent %s inactive after reset", a.ID)
		}
		if a.Aggressiveness < 1 || a.Aggressiveness > 10 {
			t.Errorf("Agent %s aggressiveness %d out of range after reset", a.ID, a.Aggressiveness)
		}
	}
}

func TestSimulation_CollapseStagesDropPrice(t *testing.T) {
	s := newTestSimulation(5)
	s.Start(nil)
	s.TriggerRugPull()

	var closes []float64
	for i := 0; i < domain.SequenceStages; i++ {
		closes = append(closes, s.Tick().NewPrice)
	}

	// Stages 3-5 are the collapse: each close strictly below the previous.
	for i := 3; i <= 5; i++ {
		if closes[i] >= closes[i-1] {
			t.Errorf("Stage %d close %g did not drop from %g", i, closes[i], closes[i-1])
		}
	}
}

func TestSimulation_ToggledAgentSitsOut(t *testing.T) {
	s := newTestSimulation(6)
	s.Start(nil)

	if !s.ToggleAgent("retail1") {
		t.Fatal("Toggle refused for known agent")
	}
	if s.ToggleAgent("nobody") {
		t.Error("Toggle accepted unknown agent")
	}

	for i := 0; i < 50; i++ {
		for _, tr := range s.Tick().NewTrades {
			if tr.AgentID == "retail1" {
				t.Fatal("Disabled agent traded")
			}
		}
	}
}

func TestSimulation_TradeIDsUnique(t *testing.T) {
	s := newTestSimulation(7)
	s.Start(nil)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		for _, tr := range s.Tick().NewTrades {
			if seen[tr.TradeID] {
				t.Fatalf("Duplicate trade ID %s", tr.TradeID)
			}
			seen[tr.TradeID] = true
		}
	}
	if len(seen) == 0 {
		t.Fatal("100 ticks produced no trades")
	}
}
