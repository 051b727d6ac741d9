package domain

// AgentType classifies a simulated market participant.
type AgentType string

// Agent type constants
const (
	AgentTypeWhale       AgentType = "whale"
	AgentTypeRetail      AgentType = "retail"
	AgentTypeBot         AgentType = "bot"
	AgentTypeManipulator AgentType = "manipulator"
)

// Strategy determines how an agent trades each tick.
type Strategy string

// Strategy constants
const (
	StrategyMomentum     Strategy = "momentum"
	StrategyContrarian   Strategy = "contrarian"
	StrategyRandom       Strategy = "random"
	StrategyManipulative Strategy = "manipulative"
)

// Agent represents a simulated market participant with private
// quote-currency balance and base-asset holdings.
// Balance and Tokens never go negative: trade sizes are clamped
// before a Trade is constructed.
type Agent struct {
	ID             string
	Name           string
	Type           AgentType
	Balance        float64 // quote currency
	Tokens         float64 // base asset
	Strategy       Strategy
	Aggressiveness int // 0-10, participation probability and sizing weight
	Active         bool
	LastAction     *Trade // most recent trade, nil until first trade
}
