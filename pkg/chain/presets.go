package chain

import (
	"sync"
	"time"
)

// Preset defines the default behavior parameters for a chain
type Preset struct {
	ChainID       uint64
	BlockTime     time.Duration // Average block time, used as the default poll interval
	Confirmations uint64        // Blocks to wait before a block is considered for tracking
}

var (
	registry = make(map[string]Preset)
	mu       sync.RWMutex
)

// Register adds a new chain preset to the global registry.
func Register(name string, p Preset) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = p
}

// Get retrieves a preset configuration from the registry by its name.
func Get(name string) (Preset, bool) {
	mu.RLock()
	defer mu.RUnlock()
	p, ok := registry[name]
	return p, ok
}

// ByChainID looks a preset up by numeric chain id. The first registered match wins.
func ByChainID(id uint64) (string, Preset, bool) {
	mu.RLock()
	defer mu.RUnlock()
	for name, p := range registry {
		if p.ChainID == id {
			return name, p, true
		}
	}
	return "", Preset{}, false
}

// Built-in presets
func init() {
	Register("eth-mainnet", Preset{
		ChainID:       1,
		BlockTime:     12 * time.Second,
		Confirmations: 2,
	})

	Register("eth-sepolia", Preset{
		ChainID:       11155111,
		BlockTime:     12 * time.Second,
		Confirmations: 2,
	})

	Register("bsc-mainnet", Preset{
		ChainID:       56,
		BlockTime:     3 * time.Second,
		Confirmations: 5,
	})

	Register("polygon-mainnet", Preset{
		ChainID:       137,
		BlockTime:     2 * time.Second,
		Confirmations: 10, // Polygon reorgs are shallow but frequent
	})

	Register("base-mainnet", Preset{
		ChainID:       8453,
		BlockTime:     2 * time.Second,
		Confirmations: 3,
	})

	// Local development node (anvil / hardhat)
	Register("local", Preset{
		ChainID:       31337,
		BlockTime:     1 * time.Second,
		Confirmations: 0,
	})
}
