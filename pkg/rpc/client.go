package rpc

import (
	"context"
	"errors"
	"math/big"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
)

// Error definitions
var (
	ErrNoAvailableNodes = errors.New("no available rpc nodes")
	ErrNoConfigs        = errors.New("no rpc configs provided")
)

// maxAttempts caps how many nodes a single read is tried on.
const maxAttempts = 3

// MultiClient manages multiple RPC nodes, providing load balancing and failover
type MultiClient struct {
	nodes        []*Node
	globalHeight uint64
	syncInterval time.Duration

	mu sync.RWMutex
}

// NewClient dials every configured node and returns a client over the reachable ones
func NewClient(ctx context.Context, configs []NodeConfig) (*MultiClient, error) {
	if len(configs) == 0 {
		return nil, ErrNoConfigs
	}

	nodes := make([]*Node, 0, len(configs))
	for _, cfg := range configs {
		n, err := NewNode(ctx, cfg)
		if err != nil {
			// Unreachable nodes are skipped as long as at least one connects.
			log.Warn("Failed to dial rpc node", "url", cfg.URL, "err", err)
			continue
		}
		nodes = append(nodes, n)
	}

	return NewClientWithNodes(ctx, nodes)
}

// NewClientWithNodes initializes MultiClient with existing nodes (for testing or advanced usage)
func NewClientWithNodes(ctx context.Context, nodes []*Node) (*MultiClient, error) {
	if len(nodes) == 0 {
		return nil, errors.New("failed to connect to any rpc node")
	}

	mc := &MultiClient{
		nodes:        nodes,
		syncInterval: 5 * time.Second,
	}

	go mc.startBackgroundSync(ctx)

	return mc, nil
}

// Nodes returns the managed nodes
func (mc *MultiClient) Nodes() []*Node {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	out := make([]*Node, len(mc.nodes))
	copy(out, mc.nodes)
	return out
}

// startBackgroundSync periodically polls all nodes to update their heights and scores
func (mc *MultiClient) startBackgroundSync(ctx context.Context) {
	ticker := time.NewTicker(mc.syncInterval)
	defer ticker.Stop()

	mc.syncNodes(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			mc.syncNodes(ctx)
		}
	}
}

func (mc *MultiClient) syncNodes(ctx context.Context) {
	var maxH uint64
	var hMu sync.Mutex
	var wg sync.WaitGroup

	for _, n := range mc.Nodes() {
		wg.Add(1)
		go func(node *Node) {
			defer wg.Done()
			// Maintenance traffic bypasses the rate limiter
			h, err := node.BlockNumber(ctx)
			if err != nil {
				return
			}
			hMu.Lock()
			if h > maxH {
				maxH = h
			}
			hMu.Unlock()
		}(n)
	}
	wg.Wait()

	if maxH > 0 {
		atomic.StoreUint64(&mc.globalHeight, maxH)
	}
}

// execute performs an RPC request with retry logic and auto node switching
func (mc *MultiClient) execute(ctx context.Context, attempts int, op func(*Node) error) error {
	if n := len(mc.nodes); attempts > n {
		attempts = n
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		node, err := mc.pickNode(ctx)
		if err != nil {
			return err
		}

		err = op(node)
		if err == nil {
			return nil
		}

		lastErr = err
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		// NotFound is a definitive answer, asking another node will not change it
		if errors.Is(err, ethereum.NotFound) {
			return err
		}
		// The failed node's score drops via RecordMetric, so the next pick prefers another one
	}

	return lastErr
}

// pickNode returns the best-scored node that has rate budget, or waits on the best node
func (mc *MultiClient) pickNode(ctx context.Context) (*Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	globalH := atomic.LoadUint64(&mc.globalHeight)
	candidates := mc.Nodes()
	if len(candidates) == 0 {
		return nil, ErrNoAvailableNodes
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score(globalH) > candidates[j].Score(globalH)
	})

	for _, node := range candidates {
		if node.Allow() {
			return node, nil
		}
	}

	// Every node is rate limited, block on the best one
	best := candidates[0]
	if err := best.Wait(ctx); err != nil {
		return nil, err
	}
	return best, nil
}

// ChainID retrieves the chain ID from the best available node
func (mc *MultiClient) ChainID(ctx context.Context) (*big.Int, error) {
	var res *big.Int
	err := mc.execute(ctx, maxAttempts, func(n *Node) error {
		var e error
		res, e = n.ChainID(ctx)
		return e
	})
	return res, err
}

// BlockNumber retrieves the latest block height across all nodes (cached if possible)
func (mc *MultiClient) BlockNumber(ctx context.Context) (uint64, error) {
	var res uint64
	err := mc.execute(ctx, maxAttempts, func(n *Node) error {
		var e error
		res, e = n.BlockNumber(ctx)
		return e
	})
	if err != nil {
		// Fall back to the last height seen by the background sync
		if h := atomic.LoadUint64(&mc.globalHeight); h > 0 && ctx.Err() == nil {
			return h, nil
		}
		return 0, err
	}
	return res, nil
}

// HeaderByNumber retrieves a block header from the best available node
func (mc *MultiClient) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	var res *types.Header
	err := mc.execute(ctx, maxAttempts, func(n *Node) error {
		var e error
		res, e = n.HeaderByNumber(ctx, number)
		return e
	})
	return res, err
}

// BlockByNumber retrieves a full block from the best available node
func (mc *MultiClient) BlockByNumber(ctx context.Context, number *big.Int) (*types.Block, error) {
	var res *types.Block
	err := mc.execute(ctx, maxAttempts, func(n *Node) error {
		var e error
		res, e = n.BlockByNumber(ctx, number)
		return e
	})
	return res, err
}

// CodeAt retrieves the contract code at a given address from the best available node
func (mc *MultiClient) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	var res []byte
	err := mc.execute(ctx, maxAttempts, func(n *Node) error {
		var e error
		res, e = n.CodeAt(ctx, account, blockNumber)
		return e
	})
	return res, err
}

func (mc *MultiClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	var res uint64
	err := mc.execute(ctx, maxAttempts, func(n *Node) error {
		var e error
		res, e = n.PendingNonceAt(ctx, account)
		return e
	})
	return res, err
}

func (mc *MultiClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	var res *big.Int
	err := mc.execute(ctx, maxAttempts, func(n *Node) error {
		var e error
		res, e = n.SuggestGasPrice(ctx)
		return e
	})
	return res, err
}

func (mc *MultiClient) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	var res *big.Int
	err := mc.execute(ctx, maxAttempts, func(n *Node) error {
		var e error
		res, e = n.SuggestGasTipCap(ctx)
		return e
	})
	return res, err
}

func (mc *MultiClient) PendingCodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	var res []byte
	err := mc.execute(ctx, maxAttempts, func(n *Node) error {
		var e error
		res, e = n.PendingCodeAt(ctx, account)
		return e
	})
	return res, err
}

func (mc *MultiClient) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	var res uint64
	err := mc.execute(ctx, maxAttempts, func(n *Node) error {
		var e error
		res, e = n.EstimateGas(ctx, msg)
		return e
	})
	return res, err
}

// SendTransaction submits a signed transaction exactly once.
// Rebroadcasting to another node after an ambiguous failure could surface as "already known" or
// "nonce too low", so the caller decides what to do with the error.
func (mc *MultiClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	return mc.execute(ctx, 1, func(n *Node) error {
		return n.SendTransaction(ctx, tx)
	})
}

func (mc *MultiClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	var res *types.Receipt
	err := mc.execute(ctx, maxAttempts, func(n *Node) error {
		var e error
		res, e = n.TransactionReceipt(ctx, txHash)
		return e
	})
	return res, err
}

// Close closes all underlying RPC connections
func (mc *MultiClient) Close() {
	for _, n := range mc.Nodes() {
		n.Close()
	}
}
