package rpc

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// EthClient abstracts the underlying ethclient.Client implementation for easier mocking/testing
type EthClient interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	BlockByNumber(ctx context.Context, number *big.Int) (*types.Block, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	PendingCodeAt(ctx context.Context, account common.Address) ([]byte, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	Close()
}

// Client defines the set of RPC methods required by the block observer and the minter.
// This allows for mocking the client in tests or implementing multi-node load balancing.
type Client interface {
	// ChainID retrieves the chain ID (used for transaction signing and sender recovery)
	ChainID(ctx context.Context) (*big.Int, error)

	// BlockNumber retrieves the latest block height
	BlockNumber(ctx context.Context) (uint64, error)

	// HeaderByNumber retrieves a block header
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)

	// BlockByNumber retrieves a full block including transactions
	BlockByNumber(ctx context.Context, number *big.Int) (*types.Block, error)

	// CodeAt checks contract code (used to validate an attached contract)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)

	// PendingNonceAt returns the next nonce for the signing account
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)

	// SuggestGasPrice returns the current legacy gas price
	SuggestGasPrice(ctx context.Context) (*big.Int, error)

	// SuggestGasTipCap returns the priority fee for EIP-1559 transactions
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)

	// PendingCodeAt checks contract code in the pending state (used before gas estimation)
	PendingCodeAt(ctx context.Context, account common.Address) ([]byte, error)

	// EstimateGas estimates the gas needed for a call
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)

	// SendTransaction submits a signed transaction
	SendTransaction(ctx context.Context, tx *types.Transaction) error

	// TransactionReceipt returns the receipt of a mined transaction, or ethereum.NotFound
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)

	// Close closes the connection
	Close()
}
