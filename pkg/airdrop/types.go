package airdrop

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/84hero/nft-dropbot/pkg/nft"
	"github.com/ethereum/go-ethereum/common"
)

// Tx is the part of a transaction the tracker cares about.
type Tx struct {
	Hash   common.Hash
	Sender common.Address
	To     *common.Address // nil for contract creation
}

// Block is a block as delivered by the scanner, with senders already recovered.
type Block struct {
	Number       uint64
	Hash         common.Hash
	Transactions []Tx
}

// Minter sends one NFT to an address. tokenID is nil when the contract assigns ids.
type Minter interface {
	Mint(ctx context.Context, to common.Address, tokenID *big.Int) (*nft.MintReceipt, error)
}

// CounterStore persists the next sequential token id.
type CounterStore interface {
	Load(key string) (uint64, error)
	Save(key string, value uint64) error
}

// Policy selects how token ids are chosen.
type Policy string

const (
	// PolicySequential mints safeMint(to, id) with ids from the local counter.
	PolicySequential Policy = "sequential"
	// PolicyContract mints mint(to) and lets the contract pick the id.
	PolicyContract Policy = "contract"
)

const (
	DefaultSequentialInterval uint64 = 25
	DefaultContractInterval   uint64 = 100
	DefaultMintTimeout               = 2 * time.Minute
)

// ParsePolicy parses a policy name case-insensitively. Empty means sequential.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicySequential:
		return PolicySequential, nil
	case PolicyContract:
		return PolicyContract, nil
	default:
		return "", fmt.Errorf("unknown drop policy %q", s)
	}
}

// DefaultInterval is the cadence used when none is configured.
func (p Policy) DefaultInterval() uint64 {
	if p == PolicyContract {
		return DefaultContractInterval
	}
	return DefaultSequentialInterval
}

// MintMethod is the contract method the policy calls.
func (p Policy) MintMethod() string {
	if p == PolicyContract {
		return "mint"
	}
	return "safeMint"
}

// AssignsIDs reports whether the tracker picks token ids itself.
func (p Policy) AssignsIDs() bool {
	return p == PolicySequential
}
