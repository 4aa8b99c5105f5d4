package rpc

import (
	"context"
	"errors"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/time/rate"
)

// NodeConfig represents configuration for a single RPC node
type NodeConfig struct {
	URL       string  `mapstructure:"url"`
	Priority  int     `mapstructure:"priority"`   // Initial weight (1-100), higher is more preferred
	RateLimit float64 `mapstructure:"rate_limit"` // Max requests per second, 0 means unlimited
	Burst     int     `mapstructure:"burst"`
}

// Node wraps the underlying ethclient and provides health monitoring
type Node struct {
	config  NodeConfig
	client  EthClient
	limiter *rate.Limiter

	// Dynamic metrics (atomic operations)
	errorCount  uint64 // Consecutive error count
	totalErrors uint64
	latency     int64 // Average latency (ms)
	latestBlock uint64
}

// NewNode dials a new RPC node
func NewNode(ctx context.Context, cfg NodeConfig) (*Node, error) {
	client, err := ethclient.DialContext(ctx, cfg.URL)
	if err != nil {
		return nil, err
	}

	return NewNodeWithClient(cfg, client), nil
}

// NewNodeWithClient initializes Node with a pre-created client (Testing/DI)
func NewNodeWithClient(cfg NodeConfig, client EthClient) *Node {
	n := &Node{
		config: cfg,
		client: client,
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		n.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return n
}

// URL returns the node address
func (n *Node) URL() string {
	return n.config.URL
}

// Priority returns the configured weight
func (n *Node) Priority() int {
	return n.config.Priority
}

// Score calculates the real-time score of the node. Higher is better.
// Formula: (Priority * 100) - (Latency / 10) - (ConsecutiveErrors * 500)
// Points are also deducted if the node lags too far behind the global max height.
func (n *Node) Score(globalMaxHeight uint64) int64 {
	score := int64(n.config.Priority) * 100

	avgLatency := atomic.LoadInt64(&n.latency)
	score -= (avgLatency / 10)

	errs := atomic.LoadUint64(&n.errorCount)
	score -= int64(errs) * 500

	myHeight := atomic.LoadUint64(&n.latestBlock)
	if globalMaxHeight > 0 && myHeight < globalMaxHeight {
		lag := globalMaxHeight - myHeight
		if lag > 5 {
			score -= int64(lag) * 50
		}
	}

	return score
}

// Allow reports whether the node can take a request right now without exceeding its rate limit.
func (n *Node) Allow() bool {
	if n.limiter == nil {
		return true
	}
	return n.limiter.Allow()
}

// Wait blocks until the node's rate limiter admits a request.
func (n *Node) Wait(ctx context.Context) error {
	if n.limiter == nil {
		return ctx.Err()
	}
	return n.limiter.Wait(ctx)
}

// RecordMetric records result of a call, updating latency and error count
func (n *Node) RecordMetric(start time.Time, err error) {
	duration := time.Since(start).Milliseconds()

	oldLatency := atomic.LoadInt64(&n.latency)
	if oldLatency == 0 {
		atomic.StoreInt64(&n.latency, duration)
	} else {
		// New latency weight 20%
		atomic.StoreInt64(&n.latency, (oldLatency*8+duration*2)/10)
	}

	// A missing receipt is an answer, not a node failure.
	if err != nil && !errors.Is(err, ethereum.NotFound) {
		atomic.AddUint64(&n.errorCount, 1)
		atomic.AddUint64(&n.totalErrors, 1)
		return
	}
	// Decrease error count slowly on success to avoid "jitter"
	if current := atomic.LoadUint64(&n.errorCount); current > 0 {
		atomic.StoreUint64(&n.errorCount, current-1)
	}
}

// UpdateHeight updates the latest block height for the node
func (n *Node) UpdateHeight(h uint64) {
	current := atomic.LoadUint64(&n.latestBlock)
	if h > current {
		atomic.StoreUint64(&n.latestBlock, h)
	}
}

func (n *Node) GetErrorCount() uint64 {
	return atomic.LoadUint64(&n.errorCount)
}

func (n *Node) GetTotalErrors() uint64 {
	return atomic.LoadUint64(&n.totalErrors)
}

func (n *Node) GetLatency() int64 {
	return atomic.LoadInt64(&n.latency)
}

func (n *Node) GetLatestBlock() uint64 {
	return atomic.LoadUint64(&n.latestBlock)
}

// Proxy Methods (implement Client interface)

func (n *Node) BlockNumber(ctx context.Context) (uint64, error) {
	start := time.Now()
	h, err := n.client.BlockNumber(ctx)
	n.RecordMetric(start, err)
	if err == nil {
		n.UpdateHeight(h)
	}
	return h, err
}

func (n *Node) ChainID(ctx context.Context) (*big.Int, error) {
	start := time.Now()
	id, err := n.client.ChainID(ctx)
	n.RecordMetric(start, err)
	return id, err
}

func (n *Node) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	start := time.Now()
	h, err := n.client.HeaderByNumber(ctx, number)
	n.RecordMetric(start, err)
	return h, err
}

func (n *Node) BlockByNumber(ctx context.Context, number *big.Int) (*types.Block, error) {
	start := time.Now()
	b, err := n.client.BlockByNumber(ctx, number)
	n.RecordMetric(start, err)
	return b, err
}

func (n *Node) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	start := time.Now()
	code, err := n.client.CodeAt(ctx, account, blockNumber)
	n.RecordMetric(start, err)
	return code, err
}

func (n *Node) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	start := time.Now()
	nonce, err := n.client.PendingNonceAt(ctx, account)
	n.RecordMetric(start, err)
	return nonce, err
}

func (n *Node) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	start := time.Now()
	price, err := n.client.SuggestGasPrice(ctx)
	n.RecordMetric(start, err)
	return price, err
}

func (n *Node) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	start := time.Now()
	tip, err := n.client.SuggestGasTipCap(ctx)
	n.RecordMetric(start, err)
	return tip, err
}

func (n *Node) PendingCodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	start := time.Now()
	code, err := n.client.PendingCodeAt(ctx, account)
	n.RecordMetric(start, err)
	return code, err
}

func (n *Node) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	start := time.Now()
	gas, err := n.client.EstimateGas(ctx, msg)
	n.RecordMetric(start, err)
	return gas, err
}

func (n *Node) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	start := time.Now()
	err := n.client.SendTransaction(ctx, tx)
	n.RecordMetric(start, err)
	return err
}

func (n *Node) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	start := time.Now()
	r, err := n.client.TransactionReceipt(ctx, txHash)
	n.RecordMetric(start, err)
	return r, err
}

func (n *Node) Close() {
	n.client.Close()
}
