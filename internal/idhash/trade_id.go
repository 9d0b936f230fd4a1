package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeRunID computes a deterministic run_id using SHA256.
// Formula: SHA256(symbol|config_fingerprint|first_bar_ms|last_bar_ms)
// Returns hex-encoded hash (64 characters).
func ComputeRunID(symbol, configFingerprint string, firstBarMs, lastBarMs int64) string {
	data := fmt.Sprintf("%s|%s|%d|%d", symbol, configFingerprint, firstBarMs, lastBarMs)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputeTradeID computes a deterministic trade_id using SHA256.
// Formula: SHA256(run_id|entry_time|side|entry_index)
// Returns hex-encoded hash (64 characters).
func ComputeTradeID(runID string, entryTime int64, side string, entryIndex int) string {
	data := fmt.Sprintf("%s|%d|%s|%d", runID, entryTime, side, entryIndex)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
