package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeTradeID computes a deterministic trade_id using SHA256.
// Formula: SHA256(agent_id|side|timestamp_ms|seq)
// Returns hex-encoded hash (64 characters).
//
// seq disambiguates multiple trades by the same agent within one
// millisecond (the tick driver can emit a filler trade and an organic
// trade in the same tick).
func ComputeTradeID(agentID, side string, timestampMs int64, seq uint64) string {
	data := fmt.Sprintf("%s|%s|%d|%d", agentID, side, timestampMs, seq)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
