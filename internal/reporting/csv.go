package reporting

import (
	"fmt"
	"strings"

	"github.com/root-daemon/saveme/internal/domain"
)

// RenderCandlesCSV renders a candle series as a CSV string.
func RenderCandlesCSV(candles []domain.Candle) string {
	var sb strings.Builder

	sb.WriteString("date,open,high,low,close,volume\n")

	for _, c := range candles {
		sb.WriteString(fmt.Sprintf("%s,%.6f,%.6f,%.6f,%.6f,%.6f\n",
			c.Date.Format("2006-01-02"),
			c.Open,
			c.High,
			c.Low,
			c.Close,
			c.Volume,
		))
	}

	return sb.String()
}

// RenderAgentsCSV renders final agent holdings as a CSV string.
func RenderAgentsCSV(agents []AgentRow) string {
	var sb strings.Builder

	sb.WriteString("agent_id,name,type,strategy,aggressiveness,balance,tokens,net_worth\n")

	for _, a := range agents {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%d,%.6f,%.6f,%.6f\n",
			a.ID,
			a.Name,
			a.Type,
			a.Strategy,
			a.Aggressiveness,
			a.Balance,
			a.Tokens,
			a.NetWorth,
		))
	}

	return sb.String()
}
