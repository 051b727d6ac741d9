package market

import (
	"context"
	"io"
	"log"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/root-daemon/saveme/internal/domain"
)

// priceFloor is the clamp below which the simulated price never falls.
const priceFloor = 0.0001

// Config holds simulation parameters. Zero values are filled by New.
type Config struct {
	InitialPrice    float64
	MaxCandles      int // bounded candle window
	MaxTrades       int // bounded trade log
	SeedHistoryDays int // weekday candles generated before the first live tick
	AutoRugPull     bool
	RugPull         domain.RugPullConfig
	Rand            *rand.Rand
	Now             func() time.Time
	Logger          *log.Logger
}

// DefaultConfig returns the live-dashboard configuration.
func DefaultConfig(initialPrice float64) Config {
	return Config{
		InitialPrice:    initialPrice,
		MaxCandles:      365,
		MaxTrades:       100,
		SeedHistoryDays: 130,
		AutoRugPull:     true,
		RugPull:         domain.DefaultRugPullConfig(),
	}
}

// TickResult is what one simulated step produced.
type TickResult struct {
	NewPrice    float64
	PriceChange float64
	NewTrades   []*domain.Trade
	NewVolume   float64
	Volatility  float64
	Candle      domain.Candle
	Phase       domain.RugPullPhase
}

// Snapshot is a consistent copy of the observable simulation state.
type Snapshot struct {
	Agents       []domain.Agent
	Trades       []*domain.Trade
	Candles      []domain.Candle
	CurrentPrice float64
	Phase        domain.RugPullPhase
	Armed        bool
	Countdown    *int // live countdown seconds, nil unless counting down
}

// Simulation owns the agent registry, the bounded trade log, the candle
// window, and the rug-pull scheduler. All state mutation happens inside
// Tick, TriggerRugPull, and ToggleAgent under one mutex; the scheduler's
// timers never touch agent state directly.
type Simulation struct {
	mu       sync.Mutex
	cfg      Config
	rng      *rand.Rand
	now      func() time.Time
	logger   *log.Logger
	registry *Registry
	gen      *Generator
	sched    *Scheduler

	candles      []domain.Candle
	trades       []*domain.Trade
	currentPrice float64
	nextDay      time.Time
	started      bool
}

// New creates a simulation over the fixed seed roster.
func New(cfg Config) *Simulation {
	if cfg.InitialPrice <= 0 {
		cfg.InitialPrice = 1784.57
	}
	if cfg.MaxCandles <= 0 {
		cfg.MaxCandles = 365
	}
	if cfg.MaxTrades <= 0 {
		cfg.MaxTrades = 100
	}
	if cfg.SeedHistoryDays <= 0 {
		cfg.SeedHistoryDays = 130
	}
	if cfg.RugPull == (domain.RugPullConfig{}) {
		cfg.RugPull = domain.DefaultRugPullConfig()
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard, "", 0)
	}

	s := &Simulation{
		cfg:      cfg,
		rng:      cfg.Rand,
		now:      cfg.Now,
		logger:   cfg.Logger,
		registry: NewRegistry(SeedAgents()),
		gen:      NewGenerator(cfg.Rand),
	}
	// The scheduler gets its own random source so its timer goroutine
	// never races the tick driver's draws.
	schedRng := rand.New(rand.NewSource(cfg.Rand.Int63()))
	s.sched = NewScheduler(cfg.RugPull, schedRng, s.onAutoTrigger)
	return s
}

// Start seeds the historical candle window, begins the automatic
// rug-pull cycle when configured, and returns the initial snapshot.
// Cancelling ctx clears all pending scheduler timers.
func (s *Simulation) Start(ctx context.Context) Snapshot {
	s.mu.Lock()
	if !s.started {
		s.started = true
		s.seedHistory()
	}
	s.mu.Unlock()

	if s.cfg.AutoRugPull && ctx != nil {
		go s.sched.Run(ctx)
	}
	return s.Snapshot()
}

// Tick advances the simulation by one trading day and returns the
// resulting market update.
func (s *Simulation) Tick() TickResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		s.started = true
		s.seedHistory()
	}

	last := s.candles[len(s.candles)-1]
	nowMs := s.now().UnixMilli()
	rp := s.sched.generatorStatus()

	// Base random walk, independent of agents.
	volatility := 0.0001 + s.rng.Float64()*0.0003
	randomMovement := (s.rng.Float64() - 0.5) * volatility * 0.6

	// Every active agent gets a chance to trade at the pre-tick price.
	newTrades := s.collectTrades(rp, randomMovement, nowMs)

	// Guarantee a minimum of organic-looking activity outside pulls.
	minActive := int(float64(len(s.registry.Agents())) * 0.3)
	if minActive < 1 {
		minActive = 1
	}
	if len(newTrades) < minActive && !rp.Armed {
		newTrades = s.fillTrades(newTrades, minActive, nowMs)
	}

	tradeImpact := ComputeImpact(newTrades, s.currentPrice, rp.Armed, s.rng)
	priceChange := randomMovement + tradeImpact

	volume := 0.0
	for _, t := range newTrades {
		volume += t.Amount
	}

	var burst []*domain.Trade
	if env, ok := s.sched.NextStage(s.rng); ok {
		// Scripted sequence overrides the organic values entirely.
		priceChange = env.PriceChange
		volatility = env.Volatility
		volume = env.Volume
		s.logger.Printf("cash out stage %d: priceChange=%.6f", env.Stage, env.PriceChange)
		if env.Complete {
			burst = s.resetAfterRugPull(nowMs)
			s.logger.Printf("cash out complete, %d agents reset", len(s.registry.Agents()))
		}
	} else if rp.Armed {
		// Pull pending: the market leaks downward even before the script.
		if rp.finalCountdown() {
			volatility *= 3
			priceChange = -math.Abs(priceChange) - (s.rng.Float64()*0.0012 + 0.0003)
		} else {
			volatility *= 1.5
			priceChange = -math.Abs(priceChange)*0.5 - (s.rng.Float64()*0.0002 + 0.00005)
		}
	}

	candle := s.foldCandle(last, priceChange, volatility, volume)
	s.appendCandle(candle)
	s.currentPrice = candle.Close

	s.appendTrades(newTrades)
	s.appendTrades(burst)

	phase, _, _ := s.sched.Status()
	return TickResult{
		NewPrice:    candle.Close,
		PriceChange: priceChange,
		NewTrades:   newTrades,
		NewVolume:   candle.Volume,
		Volatility:  volatility,
		Candle:      candle,
		Phase:       phase,
	}
}

// TriggerRugPull force-starts the scripted collapse. No-op (false) if a
// sequence is already in flight. Aggressive agents switch to the
// manipulative strategy immediately.
func (s *Simulation) TriggerRugPull() bool {
	if !s.sched.Trigger() {
		return false
	}

	s.mu.Lock()
	s.shiftAgentsLocked()
	s.mu.Unlock()

	s.logger.Println("cash out initiated")
	return true
}

// ToggleAgent enables or disables one agent's participation.
// Returns false if the ID is unknown.
func (s *Simulation) ToggleAgent(agentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry.ToggleActive(agentID)
}

// Snapshot returns a consistent copy of the observable state.
func (s *Simulation) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	agents := s.registry.Agents()
	snap := Snapshot{
		Agents:       make([]domain.Agent, len(agents)),
		Trades:       make([]*domain.Trade, len(s.trades)),
		Candles:      make([]domain.Candle, len(s.candles)),
		CurrentPrice: s.currentPrice,
	}
	for i, a := range agents {
		snap.Agents[i] = *a
	}
	copy(snap.Trades, s.trades)
	copy(snap.Candles, s.candles)

	phase, countdown, _ := s.sched.Status()
	snap.Phase = phase
	snap.Armed = phase.Armed()
	snap.Countdown = countdown
	return snap
}

// onAutoTrigger is the scheduler's countdown-zero callback.
func (s *Simulation) onAutoTrigger() {
	s.mu.Lock()
	s.shiftAgentsLocked()
	s.mu.Unlock()
	s.logger.Println("scheduled cash out fired")
}

// collectTrades runs the generator across the roster and settles each
// accepted trade. Caller holds mu.
func (s *Simulation) collectTrades(rp RugPullStatus, randomMovement float64, nowMs int64) []*domain.Trade {
	var out []*domain.Trade

	baseChance, boost, thresholdDiv := 0.8, 0.1, 15.0
	if rp.Armed {
		baseChance, boost, thresholdDiv = 0.6, 0.3, 20.0
	}

	for _, agent := range s.registry.Agents() {
		if !agent.Active {
			continue
		}
		chance := s.rng.Float64() * (1 + boost) * baseChance
		if chance >= float64(agent.Aggressiveness)/thresholdDiv {
			continue
		}
		t := s.gen.Propose(agent, s.currentPrice, randomMovement, rp, nowMs)
		if t == nil {
			continue
		}
		if err := s.registry.ApplyTrade(agent.ID, t); err != nil {
			s.logger.Printf("drop trade: %v", err)
			continue
		}
		out = append(out, t)
	}
	return out
}

// fillTrades synthesizes small trades from agents that sat out so the
// tape never looks dead. Caller holds mu.
func (s *Simulation) fillTrades(trades []*domain.Trade, minActive int, nowMs int64) []*domain.Trade {
	traded := make(map[string]bool, len(trades))
	for _, t := range trades {
		traded[t.AgentID] = true
	}

	var idle []*domain.Agent
	for _, a := range s.registry.Agents() {
		if a.Active && !traded[a.ID] {
			idle = append(idle, a)
		}
	}

	for len(trades) < minActive && len(idle) > 0 {
		i := s.rng.Intn(len(idle))
		agent := idle[i]
		idle = append(idle[:i], idle[i+1:]...)

		side := domain.TradeSell
		if s.rng.Float64() > 0.5 {
			side = domain.TradeBuy
		}
		var amount float64
		if side == domain.TradeBuy {
			amount = (agent.Balance / s.currentPrice) * 0.01 * (s.rng.Float64() + 0.5)
		} else {
			amount = agent.Tokens * 0.01 * (s.rng.Float64() + 0.5)
		}

		t := s.gen.Synthesize(agent, side, amount, s.currentPrice, nowMs)
		if t == nil {
			continue
		}
		if err := s.registry.ApplyTrade(agent.ID, t); err != nil {
			s.logger.Printf("drop filler trade: %v", err)
			continue
		}
		trades = append(trades, t)
	}
	return trades
}

// shiftAgentsLocked turns the aggressive half of the roster predatory
// at trigger time. Caller holds mu.
func (s *Simulation) shiftAgentsLocked() {
	for _, agent := range s.registry.Agents() {
		switch agent.Type {
		case domain.AgentTypeWhale, domain.AgentTypeManipulator:
			agent.Strategy = domain.StrategyManipulative
			agent.Aggressiveness = 10
		case domain.AgentTypeBot:
			if s.rng.Float64() > 0.5 {
				agent.Strategy = domain.StrategyManipulative
			}
			if agent.Aggressiveness+2 < 10 {
				agent.Aggressiveness += 2
			} else {
				agent.Aggressiveness = 10
			}
		}
	}
}

// resetAfterRugPull reassigns every agent a fresh randomized strategy
// biased by type, reactivates the roster, and injects a burst of trades
// from about half the agents to restart organic activity.
// Caller holds mu. Returned trades are already settled.
func (s *Simulation) resetAfterRugPull(nowMs int64) []*domain.Trade {
	agents := s.registry.Agents()

	for _, agent := range agents {
		switch agent.Type {
		case domain.AgentTypeWhale:
			agent.Strategy = domain.StrategyMomentum
			if s.rng.Float64() > 0.6 {
				agent.Strategy = domain.StrategyManipulative
			}
			agent.Aggressiveness = s.rng.Intn(3) + 6
		case domain.AgentTypeBot:
			agent.Strategy = domain.StrategyContrarian
			if s.rng.Float64() > 0.4 {
				agent.Strategy = domain.StrategyMomentum
			}
			agent.Aggressiveness = s.rng.Intn(3) + 5
		case domain.AgentTypeRetail:
			agent.Strategy = domain.StrategyMomentum
			if s.rng.Float64() > 0.3 {
				agent.Strategy = domain.StrategyRandom
			}
			agent.Aggressiveness = s.rng.Intn(3) + 4
		case domain.AgentTypeManipulator:
			agent.Strategy = domain.StrategyMomentum
			if s.rng.Float64() > 0.3 {
				agent.Strategy = domain.StrategyManipulative
			}
			agent.Aggressiveness = s.rng.Intn(3) + 7
		}
		agent.Active = true
	}

	var burst []*domain.Trade
	pool := make([]*domain.Agent, len(agents))
	copy(pool, agents)

	for i := 0; i < len(agents)/2 && len(pool) > 0; i++ {
		j := s.rng.Intn(len(pool))
		agent := pool[j]
		pool = append(pool[:j], pool[j+1:]...)

		side := domain.TradeSell
		if s.rng.Float64() > 0.7 {
			side = domain.TradeBuy
		}
		var amount float64
		if side == domain.TradeBuy {
			amount = (agent.Balance / s.currentPrice) * 0.05 * (s.rng.Float64() + 0.5)
		} else {
			amount = agent.Tokens * 0.03 * (s.rng.Float64() + 0.5)
		}

		t := s.gen.Synthesize(agent, side, amount, s.currentPrice, nowMs)
		if t == nil {
			continue
		}
		if err := s.registry.ApplyTrade(agent.ID, t); err != nil {
			continue
		}
		burst = append(burst, t)
	}
	return burst
}

// seedHistory generates the historical weekday candles the chart opens
// with: a gentle random walk around the initial price. Caller holds mu.
func (s *Simulation) seedHistory() {
	days := s.cfg.SeedHistoryDays

	// Walk back far enough that `days` weekdays land before today.
	day := s.now().UTC().Truncate(24 * time.Hour).AddDate(0, 0, -(days/5)*7-7)
	for day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
		day = day.AddDate(0, 0, 1)
	}

	price := s.cfg.InitialPrice + s.rng.Float64()*10

	for len(s.candles) < days {
		if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
			day = day.AddDate(0, 0, 1)
			continue
		}

		change := (s.rng.Float64() - 0.45) * 2
		open := price
		close := math.Max(priceFloor, open+change)
		candle := s.makeCandle(day, open, close, 3, s.rng.Float64()*100)

		s.candles = append(s.candles, candle)
		price = close
		day = day.AddDate(0, 0, 1)
	}

	s.currentPrice = price
	s.nextDay = nextTradingDay(s.candles[len(s.candles)-1].Date)
}

// foldCandle builds the next candle from the previous close.
func (s *Simulation) foldCandle(last domain.Candle, priceChange, volatility, volume float64) domain.Candle {
	open := last.Close
	close := math.Max(priceFloor, open+priceChange)
	if volume == 0 {
		volume = s.rng.Float64() * 100
	}

	day := s.nextDay
	s.nextDay = nextTradingDay(day)
	c := s.makeCandle(day, open, close, volatility, volume)
	return c
}

// makeCandle pads high/low around the body with the volatility term,
// keeping low positive and inside the body bounds.
func (s *Simulation) makeCandle(day time.Time, open, close, volatility, volume float64) domain.Candle {
	high := math.Max(open, close) + s.rng.Float64()*volatility
	low := math.Min(open, close) - s.rng.Float64()*volatility*0.5
	if low <= 0 {
		low = math.Min(open, close) / 2
	}
	return domain.Candle{
		Date:   day,
		Open:   open,
		High:   high,
		Low:    low,
		Close:  close,
		Volume: volume,
	}
}

func (s *Simulation) appendCandle(c domain.Candle) {
	s.candles = append(s.candles, c)
	if len(s.candles) > s.cfg.MaxCandles {
		s.candles = s.candles[len(s.candles)-s.cfg.MaxCandles:]
	}
}

func (s *Simulation) appendTrades(trades []*domain.Trade) {
	if len(trades) == 0 {
		return
	}
	s.trades = append(s.trades, trades...)
	if len(s.trades) > s.cfg.MaxTrades {
		s.trades = s.trades[len(s.trades)-s.cfg.MaxTrades:]
	}
}

// nextTradingDay advances one calendar day, skipping Saturday and Sunday.
func nextTradingDay(day time.Time) time.Time {
	next := day.AddDate(0, 0, 1)
	switch next.Weekday() {
	case time.Saturday:
		next = next.AddDate(0, 0, 2)
	case time.Sunday:
		next = next.AddDate(0, 0, 1)
	}
	return next
}
