package nft

import (
	"encoding/json"
	"strings"
)

// extractArtifactField returns the named field of a compiler artifact (hardhat / foundry),
// or the input unchanged when it is not such an artifact.
func extractArtifactField(raw []byte, field string) string {
	trimmed := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(trimmed, "{") {
		return trimmed
	}

	var artifact map[string]json.RawMessage
	if err := json.Unmarshal(raw, &artifact); err != nil {
		return trimmed
	}
	value, ok := artifact[field]
	if !ok {
		return trimmed
	}

	// foundry nests bytecode as {"object": "0x..."}
	var nested struct {
		Object string `json:"object"`
	}
	if err := json.Unmarshal(value, &nested); err == nil && nested.Object != "" {
		return nested.Object
	}

	var s string
	if err := json.Unmarshal(value, &s); err == nil {
		return s
	}
	return string(value)
}
