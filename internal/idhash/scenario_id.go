package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/shopspring/decimal"
)

// ComputeScenarioID computes a deterministic scenario_id using SHA256.
// Formula: SHA256(project|template|rules_version|budget)
// Returns hex-encoded hash (64 characters).
func ComputeScenarioID(
	project string,
	template string,
	rulesVersion string,
	budget decimal.Decimal,
) string {
	data := fmt.Sprintf("%s|%s|%s|%s",
		project,
		template,
		rulesVersion,
		budget.String(),
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
