package market

import (
	"errors"
	"testing"

	"github.com/root-daemon/saveme/internal/domain"
)

func TestSeedAgents_Roster(t *testing.T) {
	agents := SeedAgents()

	if len(agents) != 5 {
		t.Fatalf("Expected 5 seed agents, got %d", len(agents))
	}

	types := make(map[domain.AgentType]int)
	for _, a := range agents {
		types[a.Type]++

		if !a.Active {
			t.Errorf("Agent %s should start active", a.ID)
		}
		if a.Balance < 0 || a.Tokens < 0 {
			t.Errorf("Agent %s has negative seed holdings", a.ID)
		}
		if a.Aggressiveness < 0 || a.Aggressiveness > 10 {
			t.Errorf("Agent %s aggressiveness %d out of range", a.ID, a.Aggressiveness)
		}
	}

	for _, typ := range []domain.AgentType{
		domain.AgentTypeWhale, domain.AgentTypeRetail,
		domain.AgentTypeBot, domain.AgentTypeManipulator,
	} {
		if types[typ] == 0 {
			t.Errorf("Seed roster missing agent type %s", typ)
		}
	}
}

func TestApplyTrade_Buy(t *testing.T) {
	r := NewRegistry(SeedAgents())
	agent := r.Get("retail1")
	startBalance, startTokens := agent.Balance, agent.Tokens

	trade := &domain.Trade{Side: domain.TradeBuy, Amount: 10, Price: 100}
	if err := r.ApplyTrade("retail1", trade); err != nil {
		t.Fatalf("ApplyTrade failed: %v", err)
	}

	if agent.Balance != startBalance-1000 {
		t.Errorf("Balance: got %f, want %f", agent.Balance, startBalance-1000)
	}
	if agent.Tokens != startTokens+10 {
		t.Errorf("Tokens: got %f, want %f", agent.Tokens, startTokens+10)
	}
	if agent.LastAction != trade {
		t.Error("LastAction not recorded")
	}
}

func TestApplyTrade_Sell(t *testing.T) {
	r := NewRegistry(SeedAgents())
	agent := r.Get("retail1")
	startBalance, startTokens := agent.Balance, agent.Tokens

	trade := &domain.Trade{Side: domain.TradeSell, Amount: 10, Price: 100}
	if err := r.ApplyTrade("retail1", trade); err != nil {
		t.Fatalf("ApplyTrade failed: %v", err)
	}

	if agent.Balance != startBalance+1000 {
		t.Errorf("Balance: got %f, want %f", agent.Balance, startBalance+1000)
	}
	if agent.Tokens != startTokens-10 {
		t.Errorf("Tokens: got %f, want %f", agent.Tokens, startTokens-10)
	}
}

func TestApplyTrade_InvariantViolation(t *testing.T) {
	r := NewRegistry(SeedAgents())

	// retail1 holds 500 tokens; selling more must be rejected loudly.
	trade := &domain.Trade{Side: domain.TradeSell, Amount: 10_000, Price: 100}
	err := r.ApplyTrade("retail1", trade)
	if !errors.Is(err, ErrInvariantViolation) {
		t.Errorf("Expected ErrInvariantViolation, got %v", err)
	}
}

func TestApplyTrade_ExactSpendRoundsToZero(t *testing.T) {
	r := NewRegistry(SeedAgents())
	agent := r.Get("retail1")

	// Spend the entire balance; float rounding must not trip the invariant.
	trade := &domain.Trade{Side: domain.TradeBuy, Amount: agent.Balance / 3.07, Price: 3.07}
	if err := r.ApplyTrade("retail1", trade); err != nil {
		t.Fatalf("ApplyTrade failed: %v", err)
	}
	if agent.Balance < 0 {
		t.Errorf("Balance went negative: %g", agent.Balance)
	}
}

func TestApplyTrade_UnknownAgentNoOp(t *testing.T) {
	r := NewRegistry(SeedAgents())

	trade := &domain.Trade{Side: domain.TradeBuy, Amount: 1, Price: 1}
	if err := r.ApplyTrade("nobody", trade); err != nil {
		t.Errorf("Unknown agent should be a no-op, got %v", err)
	}
}

func TestToggleActive(t *testing.T) {
	r := NewRegistry(SeedAgents())

	if !r.ToggleActive("bot1") {
		t.Fatal("ToggleActive returned false for known agent")
	}
	if r.Get("bot1").Active {
		t.Error("Agent still active after toggle")
	}
	if !r.ToggleActive("bot1") {
		t.Fatal("Second toggle failed")
	}
	if !r.Get("bot1").Active {
		t.Error("Agent not reactivated after second toggle")
	}

	if r.ToggleActive("nobody") {
		t.Error("ToggleActive should return false for unknown agent")
	}
}
