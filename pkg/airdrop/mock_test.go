package airdrop

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/84hero/nft-dropbot/pkg/nft"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/mock"
)

type MockMinter struct {
	mock.Mock
}

func (m *MockMinter) Mint(ctx context.Context, to common.Address, tokenID *big.Int) (*nft.MintReceipt, error) {
	args := m.Called(ctx, to, tokenID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*nft.MintReceipt), args.Error(1)
}

type mintCall struct {
	to      common.Address
	tokenID *big.Int
}

// recordingMinter records calls and fails for addresses in failFor.
type recordingMinter struct {
	mu      sync.Mutex
	calls   []mintCall
	failFor map[common.Address]error
}

func (r *recordingMinter) Mint(ctx context.Context, to common.Address, tokenID *big.Int) (*nft.MintReceipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var id *big.Int
	if tokenID != nil {
		id = new(big.Int).Set(tokenID)
	}
	r.calls = append(r.calls, mintCall{to: to, tokenID: id})
	if err, ok := r.failFor[to]; ok {
		return nil, err
	}
	return &nft.MintReceipt{To: to, TokenID: id, TxHash: common.BytesToHash(to.Bytes())}, nil
}

func (r *recordingMinter) recipients() []common.Address {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]common.Address, 0, len(r.calls))
	for _, c := range r.calls {
		out = append(out, c.to)
	}
	return out
}

// chainMinter behaves like an ERC-721 with caller-chosen ids: an id can be minted
// once. Mints to addresses in slow are broadcast but the wait for them times out.
type chainMinter struct {
	owners map[int64]common.Address
	slow   map[common.Address]bool
	calls  []mintCall
}

func newChainMinter(slow ...common.Address) *chainMinter {
	m := &chainMinter{owners: make(map[int64]common.Address), slow: make(map[common.Address]bool)}
	for _, a := range slow {
		m.slow[a] = true
	}
	return m
}

func (c *chainMinter) Mint(ctx context.Context, to common.Address, tokenID *big.Int) (*nft.MintReceipt, error) {
	c.calls = append(c.calls, mintCall{to: to, tokenID: new(big.Int).Set(tokenID)})
	if _, taken := c.owners[tokenID.Int64()]; taken {
		return nil, errors.New("estimate gas: execution reverted: token already minted")
	}
	c.owners[tokenID.Int64()] = to

	receipt := &nft.MintReceipt{To: to, TokenID: tokenID, TxHash: common.BigToHash(tokenID)}
	if c.slow[to] {
		return receipt, fmt.Errorf("wait for mint %s: %w", receipt.TxHash, context.DeadlineExceeded)
	}
	return receipt, nil
}

type memCounter struct {
	data       map[string]uint64
	loadErr    error
	loadErrFor string // when set, only this key fails to load
	saveErr    error
}

func newMemCounter() *memCounter {
	return &memCounter{data: make(map[string]uint64)}
}

func (m *memCounter) Load(key string) (uint64, error) {
	if m.loadErr != nil && (m.loadErrFor == "" || m.loadErrFor == key) {
		return 0, m.loadErr
	}
	return m.data[key], nil
}

func (m *memCounter) Save(key string, value uint64) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.data[key] = value
	return nil
}
