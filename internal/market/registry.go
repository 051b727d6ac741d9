package market

import (
	"errors"
	"fmt"

	"github.com/root-daemon/saveme/internal/domain"
)

// Registry errors
var (
	// ErrInvariantViolation indicates a trade was applied without being
	// clamped first. This is a programming error, not a market condition.
	ErrInvariantViolation = errors.New("agent balance or tokens went negative")
)

// balanceEpsilon absorbs float rounding when a trade spends an agent's
// entire balance or token holding.
const balanceEpsilon = 1e-6

// Registry owns the roster of simulated market participants.
// It is not safe for concurrent use; the tick driver serializes access.
type Registry struct {
	agents []*domain.Agent
	index  map[string]*domain.Agent
}

// SeedAgents returns the fixed five-agent starting roster spanning all
// four participant types. Values are hand-tuned: the whale can move the
// market, retail cannot.
func SeedAgents() []*domain.Agent {
	return []*domain.Agent{
		{
			ID:             "whale1",
			Name:           "Whale Trader",
			Type:           domain.AgentTypeWhale,
			Balance:        1_000_000,
			Tokens:         5000,
			Strategy:       domain.StrategyManipulative,
			Aggressiveness: 8,
			Active:         true,
		},
		{
			ID:             "bot1",
			Name:           "Momentum Bot",
			Type:           domain.AgentTypeBot,
			Balance:        250_000,
			Tokens:         2500,
			Strategy:       domain.StrategyMomentum,
			Aggressiveness: 6,
			Active:         true,
		},
		{
			ID:             "retail1",
			Name:           "Retail Trader 1",
			Type:           domain.AgentTypeRetail,
			Balance:        50_000,
			Tokens:         500,
			Strategy:       domain.StrategyRandom,
			Aggressiveness: 4,
			Active:         true,
		},
		{
			ID:             "manipulator1",
			Name:           "Market Maker",
			Type:           domain.AgentTypeManipulator,
			Balance:        500_000,
			Tokens:         3000,
			Strategy:       domain.StrategyManipulative,
			Aggressiveness: 9,
			Active:         true,
		},
		{
			ID:             "bot2",
			Name:           "Arbitrage Bot",
			Type:           domain.AgentTypeBot,
			Balance:        300_000,
			Tokens:         1500,
			Strategy:       domain.StrategyContrarian,
			Aggressiveness: 7,
			Active:         true,
		},
	}
}

// NewRegistry creates a registry over the given roster. Agents are held
// by reference and mutated in place by ApplyTrade.
func NewRegistry(agents []*domain.Agent) *Registry {
	index := make(map[string]*domain.Agent, len(agents))
	for _, a := range agents {
		index[a.ID] = a
	}
	return &Registry{agents: agents, index: index}
}

// Agents returns the live roster. Callers outside the tick driver should
// use Snapshot on the simulation instead.
func (r *Registry) Agents() []*domain.Agent {
	return r.agents
}

// Get returns the agent with the given ID, or nil if unknown.
func (r *Registry) Get(id string) *domain.Agent {
	return r.index[id]
}

// ApplyTrade settles a trade against the agent's balance and holdings.
// A buy spends balance and gains tokens, a sell the reverse. The caller
// must have clamped the trade amount beforehand; a post-update negative
// balance or holding is reported as ErrInvariantViolation.
func (r *Registry) ApplyTrade(agentID string, t *domain.Trade) error {
	agent := r.index[agentID]
	if agent == nil || t == nil {
		return nil // unknown agent is a no-op, not an error
	}

	switch t.Side {
	case domain.TradeBuy:
		agent.Balance -= t.Notional()
		agent.Tokens += t.Amount
	case domain.TradeSell:
		agent.Balance += t.Notional()
		agent.Tokens -= t.Amount
	default:
		return fmt.Errorf("unknown trade side %q", t.Side)
	}

	// Absorb rounding from trades sized at exactly the available amount.
	if agent.Balance < 0 && agent.Balance > -balanceEpsilon {
		agent.Balance = 0
	}
	if agent.Tokens < 0 && agent.Tokens > -balanceEpsilon {
		agent.Tokens = 0
	}

	if agent.Balance < 0 || agent.Tokens < 0 {
		return fmt.Errorf("%w: agent %s balance=%f tokens=%f after %s %f @ %f",
			ErrInvariantViolation, agentID, agent.Balance, agent.Tokens, t.Side, t.Amount, t.Price)
	}

	agent.LastAction = t
	return nil
}

// ToggleActive flips the active flag of one agent.
// Returns false (no-op) if the ID is unknown.
func (r *Registry) ToggleActive(agentID string) bool {
	agent := r.index[agentID]
	if agent == nil {
		return false
	}
	agent.Active = !agent.Active
	return true
}
