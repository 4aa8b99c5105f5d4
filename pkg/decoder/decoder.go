package decoder

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ABIWrapper decodes receipt logs using go-ethereum's ABI parser.
type ABIWrapper struct {
	parsedABI abi.ABI
}

// NewFromJSON creates a decoder from a JSON ABI string
func NewFromJSON(jsonStr string) (*ABIWrapper, error) {
	parsed, err := abi.JSON(strings.NewReader(jsonStr))
	if err != nil {
		return nil, err
	}
	return &ABIWrapper{parsedABI: parsed}, nil
}

// NewFromABI wraps an already parsed ABI
func NewFromABI(parsed abi.ABI) *ABIWrapper {
	return &ABIWrapper{parsedABI: parsed}
}

// DecodedLog contains parsed data from a single event log.
type DecodedLog struct {
	Name    string                 // Event name (e.g., Transfer)
	Address common.Address         // Emitting contract
	Inputs  map[string]interface{} // Parameter key-value pairs (e.g., from: 0x..., tokenId: 7)
}

// Decode parses a single Log
func (w *ABIWrapper) Decode(log types.Log) (*DecodedLog, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("log has no topics")
	}

	// Topic[0] is the event signature
	event, err := w.parsedABI.EventByID(log.Topics[0])
	if err != nil {
		return nil, fmt.Errorf("event signature not found in ABI")
	}

	result := &DecodedLog{
		Name:    event.Name,
		Address: log.Address,
		Inputs:  make(map[string]interface{}),
	}

	// Non-indexed parameters live in Data
	if len(log.Data) > 0 {
		if err := w.parsedABI.UnpackIntoMap(result.Inputs, event.Name, log.Data); err != nil {
			return nil, err
		}
	}

	var indexedArgs abi.Arguments
	for _, arg := range event.Inputs {
		if arg.Indexed {
			indexedArgs = append(indexedArgs, arg)
		}
	}

	// ERC-20 and ERC-721 share the Transfer signature but differ in indexed count, so the
	// count has to match exactly.
	if len(log.Topics)-1 != len(indexedArgs) {
		return nil, fmt.Errorf("topic count mismatch: expected %d, got %d", len(indexedArgs), len(log.Topics)-1)
	}

	if err := abi.ParseTopicsIntoMap(result.Inputs, indexedArgs, log.Topics[1:]); err != nil {
		return nil, err
	}

	return result, nil
}

// FindEvents decodes every log emitted by contract that matches the named event.
// Logs from other contracts or with other signatures are skipped.
func (w *ABIWrapper) FindEvents(logs []*types.Log, contract common.Address, name string) []*DecodedLog {
	event, ok := w.parsedABI.Events[name]
	if !ok {
		return nil
	}

	var out []*DecodedLog
	for _, l := range logs {
		if l == nil || l.Address != contract || len(l.Topics) == 0 || l.Topics[0] != event.ID {
			continue
		}
		decoded, err := w.Decode(*l)
		if err != nil {
			continue
		}
		out = append(out, decoded)
	}
	return out
}
