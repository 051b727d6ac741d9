package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders a session report as a Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Session Report\n\n")
	sb.WriteString(fmt.Sprintf("Session: %s\n\n", r.SessionID))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Ticks: %d\n\n", r.Ticks))

	// Market Summary
	sb.WriteString("## Market Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Candles | %d |\n", r.Summary.CandleCount))
	sb.WriteString(fmt.Sprintf("| Open | %.6f |\n", r.Summary.OpenPrice))
	sb.WriteString(fmt.Sprintf("| Close | %.6f |\n", r.Summary.ClosePrice))
	sb.WriteString(fmt.Sprintf("| Peak | %.6f |\n", r.Summary.PeakPrice))
	sb.WriteString(fmt.Sprintf("| Trough | %.6f |\n", r.Summary.TroughPrice))
	sb.WriteString(fmt.Sprintf("| Total Volume | %.2f |\n", r.Summary.TotalVolume))
	sb.WriteString(fmt.Sprintf("| Trades | %d (%d buy / %d sell) |\n",
		r.Summary.TradeCount, r.Summary.BuyCount, r.Summary.SellCount))
	sb.WriteString("\n")

	// Rug Pulls
	sb.WriteString("## Rug Pulls\n\n")
	if len(r.RugPulls) > 0 {
		sb.WriteString("| Tick | Source | Price at Start |\n")
		sb.WriteString("|------|--------|----------------|\n")
		for _, p := range r.RugPulls {
			sb.WriteString(fmt.Sprintf("| %d | %s | %.6f |\n", p.Tick, p.Source, p.PriceAtStart))
		}
	} else {
		sb.WriteString("No rug pulls fired this session.\n")
	}
	sb.WriteString("\n")

	// Final Holdings
	sb.WriteString("## Final Agent Holdings\n\n")
	if len(r.Agents) > 0 {
		sb.WriteString("| Agent | Type | Strategy | Aggr | Balance | Tokens | Net Worth |\n")
		sb.WriteString("|-------|------|----------|------|---------|--------|----------|\n")
		for _, a := range r.Agents {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %d | %.2f | %.2f | %.2f |\n",
				a.Name, a.Type, a.Strategy, a.Aggressiveness, a.Balance, a.Tokens, a.NetWorth))
		}
	} else {
		sb.WriteString("No agent data available.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}
