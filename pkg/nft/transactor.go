package nft

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
)

// Backend is the slice of the RPC client needed to deploy contracts and send mints.
// rpc.MultiClient and ethclient.Client both satisfy it.
type Backend interface {
	bind.ContractTransactor
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
}

var ErrEmptyKey = errors.New("signer private key is empty")

// ParsePrivateKey decodes a hex secp256k1 key, with or without 0x prefix.
func ParsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	hexKey = strings.TrimSpace(hexKey)
	hexKey = strings.TrimPrefix(strings.TrimPrefix(hexKey, "0x"), "0X")
	if hexKey == "" {
		return nil, ErrEmptyKey
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid signer key: %w", err)
	}
	return key, nil
}

// Transactor sends transactions from a single keyed account through bind.
// Nonces are assigned locally so back-to-back mints never race the node's pending
// state, and are reloaded from the node after any failed submission.
type Transactor struct {
	backend Backend
	auth    *bind.TransactOpts
	chainID *big.Int

	mu          sync.Mutex
	nonce       uint64
	nonceLoaded bool
}

// NewTransactor binds key to backend, reading the chain id from the node.
func NewTransactor(ctx context.Context, backend Backend, key *ecdsa.PrivateKey) (*Transactor, error) {
	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("read chain id: %w", err)
	}
	auth, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return nil, err
	}
	return &Transactor{
		backend: backend,
		auth:    auth,
		chainID: chainID,
	}, nil
}

// From returns the signing account
func (t *Transactor) From() common.Address {
	return t.auth.From
}

// ChainID returns the chain id transactions are signed for
func (t *Transactor) ChainID() *big.Int {
	return new(big.Int).Set(t.chainID)
}

// bound returns a bind handle on address that can only transact.
func (t *Transactor) bound(address common.Address, parsed abi.ABI) *bind.BoundContract {
	return bind.NewBoundContract(address, parsed, nil, t.backend, nil)
}

// Transact runs send with options carrying ctx and the next nonce. The nonce only
// advances when a transaction was submitted.
func (t *Transactor) Transact(ctx context.Context, send func(*bind.TransactOpts) (*types.Transaction, error)) (*types.Transaction, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.nonceLoaded {
		nonce, err := t.backend.PendingNonceAt(ctx, t.auth.From)
		if err != nil {
			return nil, fmt.Errorf("read nonce: %w", err)
		}
		t.nonce = nonce
		t.nonceLoaded = true
	}

	opts := *t.auth
	opts.Context = ctx
	opts.Nonce = new(big.Int).SetUint64(t.nonce)

	tx, err := send(&opts)
	if err != nil {
		t.nonceLoaded = false
		return nil, err
	}
	t.nonce++

	log.Debug("Transaction sent", "hash", tx.Hash(), "nonce", tx.Nonce(), "gas", tx.Gas())
	return tx, nil
}

// WaitMined polls for the receipt of hash until it is mined or ctx ends.
func (t *Transactor) WaitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	return bind.WaitMinedHash(ctx, t.backend, hash)
}
