package nft

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/84hero/nft-dropbot/pkg/decoder"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
)

var (
	ErrNoCode            = errors.New("no contract code at address")
	ErrReverted          = errors.New("transaction reverted")
	ErrTokenIDRequired   = errors.New("mint method takes a token id but none was given")
	ErrUnsupportedMethod = errors.New("mint method must take (address) or (address,uint256)")
)

// Options controls how a Contract mints
type Options struct {
	MintMethod  string // ABI method name, e.g. "mint" or "safeMint"
	WaitReceipt bool   // Wait for the receipt and fail on revert
}

// MintReceipt describes a submitted mint
type MintReceipt struct {
	To          common.Address
	TxHash      common.Hash
	TokenID     *big.Int // nil when the contract assigned it and no receipt was read
	BlockNumber uint64   // 0 when the receipt was not awaited
}

// Contract is a handle on a deployed NFT contract
type Contract struct {
	address  common.Address
	abi      abi.ABI
	tx       *Transactor
	bound    *bind.BoundContract
	events   *decoder.ABIWrapper
	opts     Options
	deployTx common.Hash
}

// Deploy sends the creation transaction and waits for it to be mined.
func Deploy(ctx context.Context, t *Transactor, parsed abi.ABI, bytecode []byte, opts Options, args ...interface{}) (*Contract, error) {
	input, err := parsed.Pack("", args...)
	if err != nil {
		return nil, fmt.Errorf("pack constructor: %w", err)
	}
	data := append(append([]byte{}, bytecode...), input...)

	creator := t.bound(common.Address{}, parsed)
	tx, err := t.Transact(ctx, func(o *bind.TransactOpts) (*types.Transaction, error) {
		return creator.RawCreationTransact(o, data)
	})
	if err != nil {
		return nil, fmt.Errorf("deploy: %w", err)
	}
	log.Debug("Creation transaction sent", "tx", tx.Hash(), "from", t.From())

	receipt, err := t.WaitMined(ctx, tx.Hash())
	if err != nil {
		return nil, fmt.Errorf("wait for deployment %s: %w", tx.Hash(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("deploy %s: %w", tx.Hash(), ErrReverted)
	}

	address := receipt.ContractAddress
	if address == (common.Address{}) {
		address = crypto.CreateAddress(t.From(), tx.Nonce())
	}
	c := newContract(address, parsed, t, opts)
	c.deployTx = tx.Hash()
	return c, nil
}

// Attach binds to an already deployed contract, checking that code exists at address.
func Attach(ctx context.Context, t *Transactor, parsed abi.ABI, address common.Address, opts Options) (*Contract, error) {
	code, err := t.backend.CodeAt(ctx, address, nil)
	if err != nil {
		return nil, fmt.Errorf("read code at %s: %w", address, err)
	}
	if len(code) == 0 {
		return nil, fmt.Errorf("%s: %w", address, ErrNoCode)
	}
	return newContract(address, parsed, t, opts), nil
}

func newContract(address common.Address, parsed abi.ABI, t *Transactor, opts Options) *Contract {
	if opts.MintMethod == "" {
		opts.MintMethod = "mint"
	}
	return &Contract{
		address: address,
		abi:     parsed,
		tx:      t,
		bound:   t.bound(address, parsed),
		events:  decoder.NewFromABI(parsed),
		opts:    opts,
	}
}

// Address returns the contract address
func (c *Contract) Address() common.Address {
	return c.address
}

// DeployTx returns the creation transaction hash, zero when attached
func (c *Contract) DeployTx() common.Hash {
	return c.deployTx
}

// TakesTokenID reports whether the configured mint method takes a caller-chosen token id.
func (c *Contract) TakesTokenID() (bool, error) {
	method, ok := c.abi.Methods[c.opts.MintMethod]
	if !ok {
		return false, fmt.Errorf("method %q not in abi", c.opts.MintMethod)
	}
	switch len(method.Inputs) {
	case 1:
		return false, nil
	case 2:
		return true, nil
	default:
		return false, ErrUnsupportedMethod
	}
}

// Mint sends one mint to `to`. tokenID is required when the method takes one and ignored otherwise.
// A receipt is returned alongside a wait error so the caller still learns the tx hash.
func (c *Contract) Mint(ctx context.Context, to common.Address, tokenID *big.Int) (*MintReceipt, error) {
	takesID, err := c.TakesTokenID()
	if err != nil {
		return nil, err
	}

	args := []interface{}{to}
	if takesID {
		if tokenID == nil {
			return nil, ErrTokenIDRequired
		}
		args = append(args, tokenID)
	} else {
		tokenID = nil
	}

	tx, err := c.tx.Transact(ctx, func(o *bind.TransactOpts) (*types.Transaction, error) {
		return c.bound.Transact(o, c.opts.MintMethod, args...)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.opts.MintMethod, err)
	}

	result := &MintReceipt{To: to, TxHash: tx.Hash(), TokenID: tokenID}
	if !c.opts.WaitReceipt {
		return result, nil
	}

	receipt, err := c.tx.WaitMined(ctx, tx.Hash())
	if err != nil {
		return result, fmt.Errorf("wait for mint %s: %w", tx.Hash(), err)
	}
	if receipt.BlockNumber != nil {
		result.BlockNumber = receipt.BlockNumber.Uint64()
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return result, fmt.Errorf("mint %s: %w", tx.Hash(), ErrReverted)
	}

	if result.TokenID == nil {
		result.TokenID = c.mintedTokenID(receipt, to)
	}
	return result, nil
}

// mintedTokenID reads the id of the token transferred to `to` from the receipt's Transfer logs.
func (c *Contract) mintedTokenID(receipt *types.Receipt, to common.Address) *big.Int {
	for _, ev := range c.events.FindEvents(receipt.Logs, c.address, "Transfer") {
		if recipient, ok := ev.Inputs["to"].(common.Address); !ok || recipient != to {
			continue
		}
		if id, ok := ev.Inputs["tokenId"].(*big.Int); ok {
			return id
		}
	}
	return nil
}
